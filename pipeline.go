package framework

import (
	"context"
	"fmt"

	"github.com/vgmdb/framework/tree"
)

// Pipeline is an ordered, immutable list of passes. Build it once before any
// load and hand it to the loader.
type Pipeline struct {
	passes []Pass
}

// NewPipeline creates a pipeline applying passes in the given order.
func NewPipeline(passes ...Pass) *Pipeline {
	p := &Pipeline{passes: make([]Pass, 0, len(passes))}
	for _, pass := range passes {
		if pass != nil {
			p.passes = append(p.passes, pass)
		}
	}
	return p
}

// With returns a new pipeline with pass appended. The receiver is unchanged.
func (p *Pipeline) With(pass Pass) *Pipeline {
	next := make([]Pass, 0, p.Len()+1)
	if p != nil {
		next = append(next, p.passes...)
	}
	return NewPipeline(append(next, pass)...)
}

// Len returns the number of passes.
func (p *Pipeline) Len() int {
	if p == nil {
		return 0
	}
	return len(p.passes)
}

// Names returns the pass names in registration order.
func (p *Pipeline) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, len(p.passes))
	for i, pass := range p.passes {
		names[i] = PassName(pass)
	}
	return names
}

// Apply folds t through every pass in registration order. Validation errors
// are returned unwrapped so callers can match them with errors.As.
func (p *Pipeline) Apply(ctx context.Context, t *tree.Tree) (*tree.Tree, error) {
	if p == nil {
		return t, nil
	}
	for _, pass := range p.passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := pass.Apply(ctx, t)
		if err != nil {
			if _, ok := err.(*ConfigValidationError); ok {
				return nil, err
			}
			return nil, fmt.Errorf("pass %s: %w", PassName(pass), err)
		}
		if out == nil {
			return nil, fmt.Errorf("pass %s returned no tree", PassName(pass))
		}
		t = out
	}
	return t, nil
}
