// Package policy holds the cache replacement policies the simulator drives.
// A policy consumes one request at a time and manages its own bookkeeping;
// hit/miss accounting lives in the simulation, not here.
package policy

import "fmt"

// Policy is a byte-capacity-bounded cache replacement strategy. Request
// reports whether the access hit and updates the policy's state, evicting as
// needed to stay within capacity. Implementations are not safe for
// concurrent use; the simulator gives every worker its own instance.
type Policy interface {
	Name() string
	// Request processes one access and reports a hit. Objects larger than
	// the cache are bypassed: a miss that caches nothing.
	Request(objID, size uint64) bool
	// UsedBytes is the current cached footprint.
	UsedBytes() uint64
}

// New builds a policy by name: "lru", "fifo", "clock", or "infinite".
// capacityBytes bounds the cached footprint; infinite ignores it.
func New(name string, capacityBytes uint64) (Policy, error) {
	switch name {
	case "lru":
		return newLRU(capacityBytes), nil
	case "fifo":
		return newFIFO(capacityBytes), nil
	case "clock":
		return newClock(capacityBytes), nil
	case "infinite":
		return newInfinite(), nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", name)
	}
}

// Known reports whether name is a registered policy.
func Known(name string) bool {
	_, err := New(name, 1)
	return err == nil
}
