package policy

// infinite never evicts. It is the baseline for compulsory-miss analysis:
// every miss it records is a first touch.
type infinite struct {
	used  uint64
	items map[uint64]uint64
}

func newInfinite() *infinite {
	return &infinite{items: make(map[uint64]uint64)}
}

func (c *infinite) Name() string { return "infinite" }

func (c *infinite) Request(objID, size uint64) bool {
	if old, ok := c.items[objID]; ok {
		if old != size {
			c.used += size - old
			c.items[objID] = size
		}
		return true
	}
	c.items[objID] = size
	c.used += size
	return false
}

func (c *infinite) UsedBytes() uint64 { return c.used }
