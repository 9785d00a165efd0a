package cache

import (
	"container/list"
	"sync"

	"github.com/web3infra-foundation/git-internal/plumbing"
	"github.com/web3infra-foundation/git-internal/plumbing/hash"
)

// ObjectLRU implements an object cache with an LRU eviction policy and a
// maximum size (measured in payload bytes). It is the memory tier of the
// two-tier cache; an optional eviction hook observes every entry that
// falls off the cold end.
type ObjectLRU struct {
	// MaxSize is the payload budget in bytes.
	MaxSize FileSize

	onEvict    func(plumbing.Entry)
	actualSize FileSize
	ll         *list.List
	cache      map[hash.ObjectID]*list.Element
	mut        sync.Mutex
}

// NewObjectLRU returns an ObjectLRU with the given payload budget.
// onEvict, if not nil, is called for every evicted entry, in eviction
// order, while the cache lock is held.
func NewObjectLRU(maxSize FileSize, onEvict func(plumbing.Entry)) *ObjectLRU {
	return &ObjectLRU{
		MaxSize: maxSize,
		onEvict: onEvict,
	}
}

// Put puts an entry into the cache. If the entry is already in the cache,
// it is moved to the front of the LRU. Entries whose payload exceeds the
// whole budget are handed straight to the eviction hook.
func (c *ObjectLRU) Put(e plumbing.Entry) {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.cache == nil {
		c.actualSize = 0
		c.cache = make(map[hash.ObjectID]*list.Element, 1000)
		c.ll = list.New()
	}

	objSize := FileSize(len(e.Data))
	if ee, ok := c.cache[e.Hash]; ok {
		oldSize := FileSize(len(ee.Value.(plumbing.Entry).Data))
		c.actualSize += objSize - oldSize
		ee.Value = e
		c.ll.MoveToFront(ee)
		c.evictFor(0)
		return
	}

	if objSize > c.MaxSize {
		if c.onEvict != nil {
			c.onEvict(e)
		}
		return
	}

	c.evictFor(objSize)

	ee := c.ll.PushFront(e)
	c.cache[e.Hash] = ee
	c.actualSize += objSize
}

// evictFor evicts LRU entries one at a time until incoming extra bytes
// fit within the budget.
func (c *ObjectLRU) evictFor(extra FileSize) {
	for c.actualSize+extra > c.MaxSize {
		last := c.ll.Back()
		if last == nil {
			return
		}

		lastObj := last.Value.(plumbing.Entry)

		c.ll.Remove(last)
		delete(c.cache, lastObj.Hash)
		c.actualSize -= FileSize(len(lastObj.Data))

		if c.onEvict != nil {
			c.onEvict(lastObj)
		}
	}
}

// Get returns an entry by its id, moving it to the front of the LRU.
func (c *ObjectLRU) Get(id hash.ObjectID) (plumbing.Entry, bool) {
	c.mut.Lock()
	defer c.mut.Unlock()

	ee, ok := c.cache[id]
	if !ok {
		return plumbing.Entry{}, false
	}

	c.ll.MoveToFront(ee)
	return ee.Value.(plumbing.Entry), true
}

// Contains reports whether the id is resident, without touching the LRU
// order.
func (c *ObjectLRU) Contains(id hash.ObjectID) bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	_, ok := c.cache[id]
	return ok
}

// Size returns the accounted payload bytes currently resident.
func (c *ObjectLRU) Size() FileSize {
	c.mut.Lock()
	defer c.mut.Unlock()

	return c.actualSize
}

// Clear drops every resident entry without invoking the eviction hook.
func (c *ObjectLRU) Clear() {
	c.mut.Lock()
	defer c.mut.Unlock()

	c.ll = nil
	c.cache = nil
	c.actualSize = 0
}
