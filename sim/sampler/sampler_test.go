package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const population = 200000

func keptFraction(s Sampler) float64 {
	kept := 0
	for id := uint64(0); id < population; id++ {
		if s.Sample(id*2654435761 + 17) { // scatter ids, not sequential
			kept++
		}
	}
	return float64(kept) / population
}

func TestHashSamplerRetainsRatio(t *testing.T) {
	for _, ratio := range []float64{0.01, 0.1, 0.25, 0.5, 0.75, 1.0} {
		s, err := NewHashSampler(ratio, 0)
		require.NoError(t, err)
		assert.InDelta(t, ratio, keptFraction(s), 0.01, "ratio %v", ratio)
	}
}

func TestSpatialSamplerRetainsRatio(t *testing.T) {
	for _, ratio := range []float64{0.1, 0.25, 0.5} {
		s, err := NewSpatialSampler(ratio, 0)
		require.NoError(t, err)
		assert.InDelta(t, ratio, keptFraction(s), 0.01, "ratio %v", ratio)
	}
}

func TestSamplerDeterminism(t *testing.T) {
	h, err := NewHashSampler(0.3, 42)
	require.NoError(t, err)
	sp, err := NewSpatialSampler(0.3, 42)
	require.NoError(t, err)

	for _, s := range []Sampler{h, sp} {
		for id := uint64(0); id < 1000; id++ {
			assert.Equal(t, s.Sample(id), s.Sample(id), "id %d", id)
		}
	}
}

func TestSamplerCloneAgrees(t *testing.T) {
	h, err := NewHashSampler(0.2, 7)
	require.NoError(t, err)
	sp, err := NewSpatialSampler(0.2, 7)
	require.NoError(t, err)

	for _, s := range []Sampler{h, sp} {
		c := s.Clone()
		assert.Equal(t, s.Ratio(), c.Ratio())
		for id := uint64(0); id < 1000; id++ {
			assert.Equal(t, s.Sample(id), c.Sample(id), "id %d", id)
		}
	}
}

func TestHashSamplerRatioBounds(t *testing.T) {
	for _, ratio := range []float64{0, -0.1, 1.0001, 2} {
		_, err := NewHashSampler(ratio, 0)
		assert.ErrorIs(t, err, ErrInvalidRatio, "ratio %v", ratio)
	}
	_, err := NewHashSampler(1, 0)
	assert.NoError(t, err)
}

func TestSpatialSamplerRejectsLargeRatio(t *testing.T) {
	for _, ratio := range []float64{0.51, 0.75, 1} {
		_, err := NewSpatialSampler(ratio, 0)
		assert.ErrorIs(t, err, ErrInvalidRatio, "ratio %v", ratio)
	}
	_, err := NewSpatialSampler(0.5, 0)
	assert.NoError(t, err)
}

func TestSaltDecorrelates(t *testing.T) {
	unsalted, err := NewSpatialSampler(0.25, 0)
	require.NoError(t, err)
	salted, err := NewSpatialSampler(0.25, 0xdecafbad)
	require.NoError(t, err)

	differ := 0
	for id := uint64(0); id < 10000; id++ {
		if unsalted.Sample(id) != salted.Sample(id) {
			differ++
		}
	}
	assert.Greater(t, differ, 0, "salting must change the kept set")
}

func TestHashSamplerRatioOneKeepsEverything(t *testing.T) {
	s, err := NewHashSampler(1, 0)
	require.NoError(t, err)
	for id := uint64(0); id < 10000; id++ {
		assert.True(t, s.Sample(id))
	}
}

func TestNewByName(t *testing.T) {
	s, err := New("hash", 0.5, 0)
	require.NoError(t, err)
	assert.IsType(t, &HashSampler{}, s)

	s, err = New("spatial", 0.5, 0)
	require.NoError(t, err)
	assert.IsType(t, &SpatialSampler{}, s)

	_, err = New("stratified", 0.5, 0)
	assert.Error(t, err)
}
