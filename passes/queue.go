package passes

import (
	"context"

	framework "github.com/vgmdb/framework"
	"github.com/vgmdb/framework/tree"
)

const queueSection = "queue"

// Queue defaults.
const (
	DefaultQueueRetries = 3
	DefaultQueueTimeout = 60
)

// Queue drivers and their default ports. The sync driver runs jobs inline
// and has no server.
var queueDrivers = map[string]int64{
	"sync":       0,
	"beanstalkd": 11300,
	"amqp":       5672,
	"redis":      6379,
}

// QueuePass normalizes the queue section. queues may be a list of names or
// a mapping of name to settings; either becomes a mapping with retries and
// timeout filled in. A section without queues gets a single "default" queue.
type QueuePass struct{}

func (p *QueuePass) Name() string { return "queue" }

func (p *QueuePass) Apply(_ context.Context, t *tree.Tree) (*tree.Tree, error) {
	raw, ok := t.Get(queueSection)
	if !ok {
		return t, nil
	}

	var c framework.Checker
	section, ok := c.Mapping(queueSection, raw)
	if !ok {
		return nil, c.Err()
	}

	out := tree.New()

	driver := "sync"
	if v := mustGet(section, "driver"); v != nil {
		driver, _ = c.String(path(queueSection, "driver"), v, true)
	}
	port, known := queueDrivers[driver]
	if !known && driver != "" {
		c.OneOf(path(queueSection, "driver"), driver, "sync", "beanstalkd", "amqp", "redis")
	}
	out.Set("driver", driver)

	if driver != "sync" {
		host, _ := c.String(path(queueSection, "host"), mustGet(section, "host"), false)
		if host == "" {
			host = "localhost"
		}
		if v := mustGet(section, "port"); v != nil {
			port, _ = c.Int(path(queueSection, "port"), v, 1, 65535)
		}
		out.Set("host", host)
		out.Set("port", port)
	}

	copyExtras(out, section, "driver", "host", "port", "queues")
	out.Set("queues", normalizeQueues(&c, mustGet(section, "queues")))

	if err := c.Err(); err != nil {
		return nil, err
	}
	t.Set(queueSection, out)
	return t, nil
}

func normalizeQueues(c *framework.Checker, raw any) *tree.Tree {
	keyPath := path(queueSection, "queues")
	out := tree.New()

	switch queues := raw.(type) {
	case nil:
		out.Set("default", queueSettings(c, keyPath+".default", nil))
	case []any:
		for i, item := range queues {
			itemPath := indexPath(keyPath, i)
			name, ok := c.String(itemPath, item, true)
			if !ok {
				continue
			}
			if out.Has(name) {
				c.Fail(itemPath, framework.ErrCodeOneOf, "duplicate queue "+name)
				continue
			}
			out.Set(name, queueSettings(c, path(keyPath, name), nil))
		}
	case *tree.Tree:
		for _, name := range queues.Keys() {
			v, _ := queues.Get(name)
			out.Set(name, queueSettings(c, path(keyPath, name), v))
		}
	default:
		c.Fail(keyPath, framework.ErrCodeInvalidType, "expected sequence or mapping, got "+tree.Kind(raw))
	}
	return out
}

func queueSettings(c *framework.Checker, keyPath string, raw any) *tree.Tree {
	out := tree.New()
	out.Set("retries", int64(DefaultQueueRetries))
	out.Set("timeout", int64(DefaultQueueTimeout))
	if raw == nil {
		return out
	}

	settings, ok := c.Mapping(keyPath, raw)
	if !ok {
		return out
	}
	if v := mustGet(settings, "retries"); v != nil {
		retries, _ := c.Int(path(keyPath, "retries"), v, 0, 100)
		out.Set("retries", retries)
	}
	if v := mustGet(settings, "timeout"); v != nil {
		timeout, _ := c.Int(path(keyPath, "timeout"), v, 1, 86400)
		out.Set("timeout", timeout)
	}
	copyExtras(out, settings, "retries", "timeout")
	return out
}
