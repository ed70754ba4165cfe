package policy

import "container/list"

// fifo evicts in insertion order; hits do not refresh an object's position.
type fifo struct {
	capacity uint64
	used     uint64
	order    *list.List // front = newest
	items    map[uint64]*list.Element
}

func newFIFO(capacity uint64) *fifo {
	return &fifo{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

func (c *fifo) Name() string { return "fifo" }

func (c *fifo) Request(objID, size uint64) bool {
	if e, ok := c.items[objID]; ok {
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

func (c *fifo) evict() {
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

func (c *fifo) UsedBytes() uint64 { return c.used }
