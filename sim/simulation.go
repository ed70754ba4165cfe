package sim

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mrc-sim/mrc-sim/sim/policy"
	"github.com/mrc-sim/mrc-sim/sim/sampler"
	"github.com/mrc-sim/mrc-sim/sim/trace"
)

// cancelCheckInterval is how many requests a simulation processes between
// context checks. A simulation otherwise runs to completion; there is no
// mid-request cancellation.
const cancelCheckInterval = 4096

// Simulation replays one request stream against one cache policy at one
// capacity. It owns its reader cursor, sampler, and stats outright, so
// simulations sharing a logical trace can run concurrently without locks.
type Simulation struct {
	Reader  *trace.Reader
	Sampler sampler.Sampler // optional; nil replays the full stream
	Policy  policy.Policy
	// Capacity is the policy's byte capacity. Zero degenerates to an
	// all-miss run rather than an error.
	Capacity uint64
	// WarmupSeconds excludes requests within this much simulated time of
	// the trace start from the recorded statistics. Warm-up requests still
	// exercise the policy, so the cache is warm when recording begins.
	WarmupSeconds uint32

	stats Stats
}

// Run consumes the stream to its end and returns the finalized statistics.
// ctx is checked between requests; the partial stats of a cancelled run are
// not returned.
func (s *Simulation) Run(ctx context.Context) (*Stats, error) {
	var (
		req        trace.Request
		first      uint32
		haveFirst  bool
		sinceCheck int
	)
	for {
		if sinceCheck++; sinceCheck >= cancelCheckInterval {
			sinceCheck = 0
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}
		err := s.Reader.Read(&req)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if s.Sampler != nil && !s.Sampler.Sample(req.ID) {
			continue
		}
		if !haveFirst {
			first = req.Clock
			haveFirst = true
		}

		hit := false
		if s.Capacity > 0 {
			hit = s.Policy.Request(req.ID, req.Size)
		}

		// Widened so the window stays intact when the trace starts near
		// the top of the clock range.
		warmEnd := uint64(first) + uint64(s.WarmupSeconds)
		if uint64(req.Clock) < warmEnd && req.Clock >= first {
			continue // within warm-up: exercised but not recorded
		}
		if hit {
			s.stats.Hits++
			s.stats.HitBytes += req.Size
		} else {
			s.stats.Misses++
			s.stats.MissBytes += req.Size
		}
	}
	logrus.Debugf("simulation done policy=%s capacity=%d %s",
		s.Policy.Name(), s.Capacity, s.stats.String())
	return &s.stats, nil
}
