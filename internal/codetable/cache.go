package codetable

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// cacheKey identifies a cached table: the section pass it belongs to plus
// the table name.
type cacheKey struct {
	section string
	name    string
}

func (k cacheKey) String() string { return k.section + "\x00" + k.name }

// Cache holds the tables loaded during one validation call. Each table is
// read from disk at most once even when several workers ask for it at the
// same time. Failed loads are not cached.
type Cache struct {
	mu     sync.RWMutex
	tables map[cacheKey]*Table
	group  singleflight.Group
	loads  int
	load   func(path string) (*Table, error)
}

// NewCache returns an empty cache reading tables with Load.
func NewCache() *Cache {
	return &Cache{tables: make(map[cacheKey]*Table), load: Load}
}

// Get returns table name of the given section pass, loading it from dir on
// first use.
func (c *Cache) Get(section, dir, name string) (*Table, error) {
	k := cacheKey{section: section, name: name}
	c.mu.RLock()
	t, ok := c.tables[k]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}

	v, err, _ := c.group.Do(k.String(), func() (any, error) {
		c.mu.RLock()
		t, ok := c.tables[k]
		c.mu.RUnlock()
		if ok {
			return t, nil
		}
		t, err := c.load(Path(dir, name))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tables[k] = t
		c.loads++
		c.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Table), nil
}

// Loads returns how many tables were read from disk.
func (c *Cache) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}
