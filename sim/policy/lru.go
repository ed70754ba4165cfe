package policy

import "container/list"

type lruEntry struct {
	id   uint64
	size uint64
}

// lru is the classic least-recently-used policy: hits move to the front,
// evictions come off the back.
type lru struct {
	capacity uint64
	used     uint64
	order    *list.List // front = most recent
	items    map[uint64]*list.Element
}

func newLRU(capacity uint64) *lru {
	return &lru{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

func (c *lru) Name() string { return "lru" }

func (c *lru) Request(objID, size uint64) bool {
	if e, ok := c.items[objID]; ok {
		c.order.MoveToFront(e)
		ent := e.Value.(*lruEntry)
		if ent.size != size {
			c.used += size - ent.size
			ent.size = size
			c.evict()
		}
		return true
	}
	if size > c.capacity {
		return false
	}
	c.items[objID] = c.order.PushFront(&lruEntry{id: objID, size: size})
	c.used += size
	c.evict()
	return false
}

func (c *lru) evict() {
	for c.used > c.capacity {
		e := c.order.Back()
		if e == nil {
			return
		}
		ent := e.Value.(*lruEntry)
		c.order.Remove(e)
		delete(c.items, ent.id)
		c.used -= ent.size
	}
}

func (c *lru) UsedBytes() uint64 { return c.used }
