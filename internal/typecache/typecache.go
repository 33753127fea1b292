// Package typecache holds per-class method/property tables learned
// from the kernel (typically from a `naming` or reflection-style
// response), cached by FQN for the lifetime of the client.
//
// sync.Map fits the access pattern well: reads vastly outnumber
// writes, and each key is written once the first time a given class is
// seen and read many times afterward on every subsequent call into it.
package typecache

import "sync"

// Member describes one method or property of a class/interface as
// learned from the kernel.
type Member struct {
	Name       string
	IsProperty bool
	// ParamCount is informational only; the authoritative per-parameter
	// descriptors live with the generated host bindings that call
	// Request — the cache just remembers that the kernel confirmed this
	// member's shape.
	ParamCount int
}

// ClassInfo is the cached table for one FQN.
type ClassInfo struct {
	FQN     string
	Members map[string]Member
}

// Cache holds one ClassInfo per FQN.
type Cache struct {
	tables sync.Map // string (FQN) -> *ClassInfo
	loadMu sync.Mutex
}

func New() *Cache {
	return &Cache{}
}

// Get returns the cached table for fqn, if the kernel has told us about
// it already.
func (c *Cache) Get(fqn string) (*ClassInfo, bool) {
	v, ok := c.tables.Load(fqn)
	if !ok {
		return nil, false
	}
	return v.(*ClassInfo), true
}

// Put installs (or replaces) the table for fqn.
func (c *Cache) Put(info *ClassInfo) {
	c.tables.Store(info.FQN, info)
}

// GetOrLoad returns the cached table for fqn, calling load to populate
// it on a miss. load is only invoked once per fqn even under
// concurrent callers that race on the same miss: misses are serialized
// and re-check the cache before loading.
func (c *Cache) GetOrLoad(fqn string, load func() (*ClassInfo, error)) (*ClassInfo, error) {
	if v, ok := c.tables.Load(fqn); ok {
		return v.(*ClassInfo), nil
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if v, ok := c.tables.Load(fqn); ok {
		return v.(*ClassInfo), nil
	}
	info, err := load()
	if err != nil {
		return nil, err
	}
	actual, _ := c.tables.LoadOrStore(fqn, info)
	return actual.(*ClassInfo), nil
}
