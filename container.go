package framework

import "sync"

// Container is the application's key/value binding namespace. Providers
// read parameters from it; the loader installs the loaded tree into it.
type Container interface {
	Set(key string, value any) error
	Get(key string) (any, bool)
}

// MapContainer is an in-memory Container that keeps keys in insertion order.
// Thread-safe.
type MapContainer struct {
	mu        sync.RWMutex
	keys      []string
	values    map[string]any
	protected map[string]bool
}

// NewMapContainer creates an empty container.
func NewMapContainer() *MapContainer {
	return &MapContainer{
		values:    make(map[string]any),
		protected: make(map[string]bool),
	}
}

// Set binds key to value, replacing any previous binding unless the key is
// protected and already bound.
func (c *MapContainer) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.values[key]
	if exists && c.protected[key] {
		return &DuplicateBindingError{Key: key}
	}
	if !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
	return nil
}

// Get returns the value bound to key.
func (c *MapContainer) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Protect makes keys reject redefinition once bound.
func (c *MapContainer) Protect(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.protected[k] = true
	}
}

// Keys returns the bound keys in insertion order.
func (c *MapContainer) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}
