package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrc-sim/mrc-sim/sim/internal/testutil"
	"github.com/mrc-sim/mrc-sim/sim/trace"
)

// skewedRequests interleaves a hot object into a scan so different
// capacities actually produce different miss ratios.
func skewedRequests(n int) []trace.Request {
	reqs := make([]trace.Request, n)
	for i := range reqs {
		id := uint64(1) // hot object on even positions
		if i%2 == 1 {
			id = uint64(2 + i%50)
		}
		reqs[i] = trace.Request{
			Clock: uint32(i), ID: id, Size: 10, NextAccess: trace.NoNextAccess,
		}
	}
	return reqs
}

func missRatioAt(t *testing.T, mrc *MRC, policy string, capacity uint64) float64 {
	t.Helper()
	for _, p := range mrc.Points {
		if p.Policy == policy && p.Capacity == capacity {
			require.NoError(t, p.Err)
			return p.Stats.MissRatio()
		}
	}
	t.Fatalf("no point for (%s, %d)", policy, capacity)
	return 0
}

func TestProfilerMonotonicity(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin", 1, skewedRequests(2000))

	r := openTrace(t, path)
	p := &Profiler{
		Reader:     r,
		Policies:   []string{"lru"},
		Capacities: []uint64{50, 100, 200, 400},
		Workers:    4,
	}
	mrc, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, mrc.Points, 4)

	// LRU is a stack algorithm: a bigger cache never misses more.
	prev := 1.1
	for _, capacity := range []uint64{50, 100, 200, 400} {
		mr := missRatioAt(t, mrc, "lru", capacity)
		assert.LessOrEqual(t, mr, prev, "capacity %d", capacity)
		prev = mr
	}
}

func TestProfilerParallelMatchesSequential(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin", 1, skewedRequests(1000))

	run := func(workers int) *MRC {
		p := &Profiler{
			Reader:     openTrace(t, path),
			Policies:   []string{"lru", "fifo", "clock"},
			Capacities: []uint64{50, 150, 300},
			Workers:    workers,
		}
		mrc, err := p.Run(context.Background())
		require.NoError(t, err)
		return mrc
	}

	sequential := run(1)
	parallel := run(9)
	require.Equal(t, len(sequential.Points), len(parallel.Points))
	for i := range sequential.Points {
		assert.Equal(t, sequential.Points[i].Policy, parallel.Points[i].Policy)
		assert.Equal(t, sequential.Points[i].Capacity, parallel.Points[i].Capacity)
		assert.Equal(t, *sequential.Points[i].Stats, *parallel.Points[i].Stats)
	}
}

func TestProfilerCombinationErrorIsolation(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin", 1, skewedRequests(100))

	p := &Profiler{
		Reader:     openTrace(t, path),
		Policies:   []string{"lru", "belady"}, // belady is not registered
		Capacities: []uint64{100},
	}
	mrc, err := p.Run(context.Background())
	require.NoError(t, err, "one bad combination must not sink the run")
	require.Len(t, mrc.Points, 2)

	for _, pt := range mrc.Points {
		switch pt.Policy {
		case "lru":
			assert.NoError(t, pt.Err)
			assert.NotNil(t, pt.Stats)
		case "belady":
			assert.Error(t, pt.Err)
			assert.Nil(t, pt.Stats)
		}
	}
}

func TestProfilerCapacityRatios(t *testing.T) {
	// 50 distinct objects of 10 bytes: working set is 500 bytes.
	path := testutil.WriteTrace(t, "t.bin", 1, testutil.CyclicRequests(500, 50, 10))

	p := &Profiler{
		Reader:         openTrace(t, path),
		Policies:       []string{"lru"},
		CapacityRatios: []float64{0.1, 1.0},
	}
	mrc, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, mrc.Points, 2)
	assert.Equal(t, uint64(50), mrc.Points[0].Capacity)
	assert.Equal(t, uint64(500), mrc.Points[1].Capacity)

	// At full working-set capacity LRU only takes compulsory misses.
	assert.InDelta(t, 50.0/500.0, missRatioAt(t, mrc, "lru", 500), 1e-9)
}

func TestProfilerCapacityRatioNeedsHeader(t *testing.T) {
	path := testutil.WriteOracleTrace(t, "t.oracle", testutil.Requests(10, 10))

	p := &Profiler{
		Reader:         openTrace(t, path, trace.WithFormat(trace.FormatOracle)),
		Policies:       []string{"lru"},
		CapacityRatios: []float64{0.5},
	}
	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestProfilerZeroCapacityPoint(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin", 1, skewedRequests(100))

	p := &Profiler{
		Reader:     openTrace(t, path),
		Policies:   []string{"lru"},
		Capacities: []uint64{0, 100},
	}
	mrc, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(1), missRatioAt(t, mrc, "lru", 0), "capacity zero degenerates to all-miss")
	assert.Less(t, missRatioAt(t, mrc, "lru", 100), 1.0)
}

func TestProfilerCompressedTrace(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin.zst", 1, skewedRequests(400))

	p := &Profiler{
		Reader:     openTrace(t, path),
		Policies:   []string{"lru", "fifo"},
		Capacities: []uint64{50, 200},
		Workers:    4,
	}
	mrc, err := p.Run(context.Background())
	require.NoError(t, err)
	for _, pt := range mrc.Points {
		require.NoError(t, pt.Err)
		assert.Equal(t, uint64(400), pt.Stats.Requests())
	}
}

func TestProfilerNoPolicies(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin", 1, skewedRequests(10))
	p := &Profiler{Reader: openTrace(t, path), Capacities: []uint64{10}}
	_, err := p.Run(context.Background())
	assert.Error(t, err)
}

func TestMRCString(t *testing.T) {
	path := testutil.WriteTrace(t, "t.bin", 1, skewedRequests(100))
	p := &Profiler{
		Reader:     openTrace(t, path),
		Policies:   []string{"lru"},
		Capacities: []uint64{100},
	}
	mrc, err := p.Run(context.Background())
	require.NoError(t, err)
	out := mrc.String()
	assert.Contains(t, out, "policy")
	assert.Contains(t, out, "lru")
}
