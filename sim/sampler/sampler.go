// Package sampler thins a request stream deterministically by object
// identifier, so a sampled trace stays self-consistent: either every access
// to an object is kept or none is.
package sampler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// ErrInvalidRatio is returned at construction for a sampling ratio outside
// the sampler's legal range. Ratios are never silently clamped.
var ErrInvalidRatio = errors.New("sampler: ratio outside valid range")

// Sampler decides whether to keep a request. The decision is a pure function
// of (object id, ratio, salt): the same id always gets the same answer.
type Sampler interface {
	// Sample reports whether requests for the given object are kept.
	Sample(objID uint64) bool
	// Clone returns an independent sampler with identical configuration and
	// no shared mutable state, safe to hand to a concurrent simulation.
	Clone() Sampler
	// Ratio returns the configured sampling ratio.
	Ratio() float64
}

const (
	hashWindowBits = 24
	hashWindowMask = 1<<hashWindowBits - 1
)

// HashSampler keeps an object when a 24-bit window of its hash falls under a
// ratio-scaled threshold. Unlike naive modulo sampling this bounds the
// sampled cardinality and holds up under skewed popularity distributions.
type HashSampler struct {
	ratio     float64
	threshold uint64
	salt      uint64
}

// NewHashSampler builds a fixed-rate hash sampler. ratio must be in (0, 1];
// salt (optional, 0 = unsalted) decorrelates this sampling from another one
// of the same trace.
func NewHashSampler(ratio float64, salt uint64) (*HashSampler, error) {
	if ratio <= 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: hash ratio %v not in (0, 1]", ErrInvalidRatio, ratio)
	}
	return &HashSampler{
		ratio:     ratio,
		threshold: uint64(ratio * float64(uint64(1)<<hashWindowBits)),
		salt:      salt,
	}, nil
}

func (s *HashSampler) Sample(objID uint64) bool {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], objID)
	var h uint64
	if s.salt != 0 {
		binary.LittleEndian.PutUint64(b[8:16], s.salt)
		h = xxhash.Sum64(b[:])
	} else {
		h = xxhash.Sum64(b[:8])
	}
	return h&hashWindowMask < s.threshold
}

func (s *HashSampler) Clone() Sampler {
	c := *s
	return &c
}

func (s *HashSampler) Ratio() float64 { return s.ratio }

// SpatialSampler keeps every object whose hashed identifier lands on a fixed
// residue modulo the inverse ratio. Restricted to ratio ≤ 0.5: above that
// the rounded inverse collapses to 1 and the sampler would keep everything.
type SpatialSampler struct {
	ratio   float64
	inverse uint64
	salt    uint64
}

// NewSpatialSampler builds a spatial (modulo-based) sampler. ratio must be
// in (0, 0.5]; salt is XORed into the identifier before hashing.
func NewSpatialSampler(ratio float64, salt uint64) (*SpatialSampler, error) {
	if ratio <= 0 || ratio > 0.5 {
		return nil, fmt.Errorf("%w: spatial ratio %v not in (0, 0.5]", ErrInvalidRatio, ratio)
	}
	return &SpatialSampler{
		ratio:   ratio,
		inverse: uint64(math.Round(1 / ratio)),
		salt:    salt,
	}, nil
}

func (s *SpatialSampler) Sample(objID uint64) bool {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], objID^s.salt)
	return murmur3.Sum64(b[:])%s.inverse == 0
}

func (s *SpatialSampler) Clone() Sampler {
	c := *s
	return &c
}

func (s *SpatialSampler) Ratio() float64 { return s.ratio }

// New builds a sampler by config name: "hash" or "spatial".
func New(kind string, ratio float64, salt uint64) (Sampler, error) {
	switch kind {
	case "hash":
		return NewHashSampler(ratio, salt)
	case "spatial":
		return NewSpatialSampler(ratio, salt)
	default:
		return nil, fmt.Errorf("unknown sampler type %q", kind)
	}
}
