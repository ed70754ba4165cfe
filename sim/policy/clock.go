package policy

import "container/list"

type clockEntry struct {
	id   uint64
	size uint64
	ref  bool
}

// clock is the second-chance approximation of LRU: a hit sets the entry's
// reference bit, and the eviction hand skips (and clears) referenced entries
// before removing one.
type clock struct {
	capacity uint64
	used     uint64
	ring     *list.List
	hand     *list.Element
	items    map[uint64]*list.Element
}

func newClock(capacity uint64) *clock {
	return &clock{
		capacity: capacity,
		ring:     list.New(),
		items:    make(map[uint64]*list.Element),
	}
}

func (c *clock) Name() string { return "clock" }

func (c *clock) Request(objID, size uint64) bool {
	if e, ok := c.items[objID]; ok {
		ent := e.Value.(*clockEntry)
		ent.ref = true
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
	c.items[objID] = c.ring.PushBack(&clockEntry{id: objID, size: size})
	c.used += size
	c.evict()
	return false
}

func (c *clock) advance(e *list.Element) *list.Element {
	if n := e.Next(); n != nil {
		return n
	}
	return c.ring.Front()
}

func (c *clock) evict() {
	for c.used > c.capacity && c.ring.Len() > 0 {
		if c.hand == nil {
			c.hand = c.ring.Front()
		}
		ent := c.hand.Value.(*clockEntry)
		if ent.ref {
			ent.ref = false
			c.hand = c.advance(c.hand)
			continue
		}
		victim := c.hand
		c.hand = c.advance(c.hand)
		if c.hand == victim {
			c.hand = nil
		}
		c.ring.Remove(victim)
		delete(c.items, ent.id)
		c.used -= ent.size
	}
}

func (c *clock) UsedBytes() uint64 { return c.used }
