package sim

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mrc-sim/mrc-sim/sim/policy"
	"github.com/mrc-sim/mrc-sim/sim/sampler"
	"github.com/mrc-sim/mrc-sim/sim/trace"
)

// Point is one (policy, capacity) cell of a miss-ratio curve. A failed
// combination carries its error here; it never disturbs sibling cells.
type Point struct {
	Policy   string
	Capacity uint64
	Stats    *Stats
	Err      error
}

// MRC is the miss-ratio curve: one Point per scheduled (policy, capacity)
// combination, ordered by policy then capacity.
type MRC struct {
	Points []Point
}

// String renders the curve as an aligned text table.
func (m *MRC) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-10s %14s %12s %12s %12s\n",
		"policy", "capacity", "requests", "miss ratio", "byte miss")
	for _, p := range m.Points {
		if p.Err != nil {
			fmt.Fprintf(&sb, "%-10s %14d  error: %v\n", p.Policy, p.Capacity, p.Err)
			continue
		}
		fmt.Fprintf(&sb, "%-10s %14d %12d %12.4f %12.4f\n",
			p.Policy, p.Capacity, p.Stats.Requests(),
			p.Stats.MissRatio(), 1-p.Stats.ByteHitRatio())
	}
	return sb.String()
}

// Profiler expands a trace, a set of policies, and a set of capacities into
// independent simulations and runs them, bounded by Workers at a time. Each
// combination gets its own reader clone, sampler clone, and fresh policy, and
// writes only its pre-allocated result slot, so aggregation needs no locking.
type Profiler struct {
	Reader  *trace.Reader
	Sampler sampler.Sampler // optional; cloned per combination

	Policies   []string
	Capacities []uint64
	// CapacityRatios are resolved against the trace header's distinct-byte
	// working set and appended to Capacities.
	CapacityRatios []float64

	WarmupSeconds uint32
	// Workers bounds concurrent simulations; 0 or less runs one goroutine
	// per combination.
	Workers int
}

// resolveCapacities merges absolute capacities with working-set ratios.
func (p *Profiler) resolveCapacities() ([]uint64, error) {
	caps := append([]uint64(nil), p.Capacities...)
	if len(p.CapacityRatios) > 0 {
		h := p.Reader.Header()
		if h == nil || h.Stat.DistinctBytes == 0 {
			return nil, fmt.Errorf("capacity ratios need a trace header with a distinct-byte working set")
		}
		ws := float64(h.Stat.DistinctBytes)
		for _, r := range p.CapacityRatios {
			if r <= 0 {
				return nil, fmt.Errorf("capacity ratio %v must be positive", r)
			}
			caps = append(caps, uint64(math.Round(r*ws)))
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps, nil
}

// Run produces the miss-ratio curve. Combination-level failures (unknown
// policy, reader clone failure, stream corruption) are reported per Point;
// Run itself fails only when the profile cannot be scheduled at all.
func (p *Profiler) Run(ctx context.Context) (*MRC, error) {
	if len(p.Policies) == 0 {
		return nil, fmt.Errorf("no cache policies configured")
	}
	caps, err := p.resolveCapacities()
	if err != nil {
		return nil, err
	}
	if len(caps) == 0 {
		return nil, fmt.Errorf("no capacities configured")
	}

	points := make([]Point, 0, len(p.Policies)*len(caps))
	for _, name := range p.Policies {
		for _, c := range caps {
			points = append(points, Point{Policy: name, Capacity: c})
		}
	}

	workers := p.Workers
	if workers <= 0 {
		workers = len(points)
	}
	logrus.Infof("profiling %d combinations (%d policies x %d capacities), %d workers",
		len(points), len(p.Policies), len(caps), workers)

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range points {
		wg.Add(1)
		sem <- struct{}{}
		go func(pt *Point) {
			defer wg.Done()
			defer func() { <-sem }()
			pt.Stats, pt.Err = p.runOne(ctx, pt.Policy, pt.Capacity)
			if pt.Err != nil {
				logrus.Warnf("combination policy=%s capacity=%d failed: %v",
					pt.Policy, pt.Capacity, pt.Err)
			}
		}(&points[i])
	}
	wg.Wait()

	return &MRC{Points: points}, nil
}

// runOne builds and runs a single combination on its own clones.
func (p *Profiler) runOne(ctx context.Context, name string, capacity uint64) (*Stats, error) {
	pol, err := policy.New(name, capacity)
	if err != nil {
		return nil, err
	}
	r, err := p.Reader.Clone()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if err := r.Reset(); err != nil {
		return nil, err
	}
	var smp sampler.Sampler
	if p.Sampler != nil {
		smp = p.Sampler.Clone()
	}
	s := &Simulation{
		Reader:        r,
		Sampler:       smp,
		Policy:        pol,
		Capacity:      capacity,
		WarmupSeconds: p.WarmupSeconds,
	}
	return s.Run(ctx)
}
