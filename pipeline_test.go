package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vgmdb/framework/tree"
)

type namedPass struct {
	name string
}

func (p namedPass) Name() string { return p.name }

func (p namedPass) Apply(_ context.Context, t *tree.Tree) (*tree.Tree, error) {
	order, _ := t.Get("order")
	s, _ := order.(string)
	t.Set("order", s+p.name)
	return t, nil
}

func TestPipeline_AppliesInOrder(t *testing.T) {
	p := NewPipeline(namedPass{"a"}, nil, namedPass{"b"})
	p = p.With(namedPass{"c"})

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []string{"a", "b", "c"}, p.Names())

	out, err := p.Apply(context.Background(), tree.New())
	require.NoError(t, err)
	v, _ := out.Get("order")
	assert.Equal(t, "abc", v)
}

func TestPipeline_WithDoesNotModifyReceiver(t *testing.T) {
	base := NewPipeline(namedPass{"a"})
	extended := base.With(namedPass{"b"})

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, 2, extended.Len())
}

func TestPipeline_Empty(t *testing.T) {
	in := tree.FromMap(map[string]any{"x": 1})

	var nilPipeline *Pipeline
	out, err := nilPipeline.Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)

	out, err = NewPipeline().Apply(context.Background(), in)
	require.NoError(t, err)
	assert.Same(t, in, out)
}

func TestPipeline_Errors(t *testing.T) {
	validation := &ConfigValidationError{KeyErrors: []KeyError{{KeyPath: "x", Code: ErrCodeRequired}}}
	boom := errors.New("boom")

	_, err := NewPipeline(PassFunc(func(context.Context, *tree.Tree) (*tree.Tree, error) {
		return nil, validation
	})).Apply(context.Background(), tree.New())
	assert.Same(t, validation, err, "validation errors are returned unwrapped")

	_, err = NewPipeline(namedPass{"a"}, PassFunc(func(context.Context, *tree.Tree) (*tree.Tree, error) {
		return nil, boom
	})).Apply(context.Background(), tree.New())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "pass framework.PassFunc")

	_, err = NewPipeline(PassFunc(func(context.Context, *tree.Tree) (*tree.Tree, error) {
		return nil, nil
	})).Apply(context.Background(), tree.New())
	assert.ErrorContains(t, err, "returned no tree")
}

func TestPipeline_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(namedPass{"a"}).Apply(ctx, tree.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPassName(t *testing.T) {
	assert.Equal(t, "database", PassName(namedPass{"database"}))
	assert.Equal(t, "framework.PassFunc", PassName(PassFunc(nil)))
}
