package sim

import "fmt"

// Stats is the hit/miss accumulator for one (policy, capacity) simulation.
// It is mutated only by its owning worker while the simulation runs and is
// read-only once Run returns.
type Stats struct {
	Hits   uint64
	Misses uint64
	// Byte totals exclude zero-size requests by construction: a zero-size
	// access contributes to object ratios but adds nothing here.
	HitBytes  uint64
	MissBytes uint64
}

// Requests is the number of recorded (post-warm-up, post-sampling) requests.
func (s *Stats) Requests() uint64 { return s.Hits + s.Misses }

// ObjectHitRatio is hits over recorded requests, 0 for an empty simulation.
func (s *Stats) ObjectHitRatio() float64 {
	if n := s.Requests(); n > 0 {
		return float64(s.Hits) / float64(n)
	}
	return 0
}

// ByteHitRatio is hit bytes over total recorded bytes, 0 when no non-zero
// sized request was recorded.
func (s *Stats) ByteHitRatio() float64 {
	if total := s.HitBytes + s.MissBytes; total > 0 {
		return float64(s.HitBytes) / float64(total)
	}
	return 0
}

// MissRatio is the complement of ObjectHitRatio over recorded requests.
func (s *Stats) MissRatio() float64 {
	if s.Requests() == 0 {
		return 0
	}
	return 1 - s.ObjectHitRatio()
}

func (s *Stats) String() string {
	return fmt.Sprintf("requests=%d hits=%d misses=%d objHit=%.4f byteHit=%.4f",
		s.Requests(), s.Hits, s.Misses, s.ObjectHitRatio(), s.ByteHitRatio())
}
