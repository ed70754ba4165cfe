package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrc-sim/mrc-sim/sim/policy"
	"github.com/mrc-sim/mrc-sim/sim/sampler"
	"github.com/mrc-sim/mrc-sim/sim/trace"
)

// ProfileSpec is a complete MRC profiling run, loadable from a YAML file.
type ProfileSpec struct {
	// Trace is the path of the trace file to replay.
	Trace string `yaml:"trace"`
	// Format selects the record layout family: "container" (default),
	// "oracle", or "objid".
	Format string `yaml:"format,omitempty"`
	// Compression overrides extension-based detection: "auto" (default),
	// "none", "zstd", "gzip".
	Compression string `yaml:"compression,omitempty"`
	// SkipZeroSize drops zero-size requests on forward reads.
	SkipZeroSize bool `yaml:"skip_zero_size,omitempty"`

	Sampling *SamplingSpec `yaml:"sampling,omitempty"`

	// Policies are the cache policies to profile.
	Policies []string `yaml:"policies"`
	// Capacities are absolute cache sizes in bytes.
	Capacities []uint64 `yaml:"capacities,omitempty"`
	// CapacityRatios are cache sizes as fractions of the trace's
	// distinct-byte working set (container traces only).
	CapacityRatios []float64 `yaml:"capacity_ratios,omitempty"`

	// WarmupSeconds of simulated time are excluded from recorded stats.
	WarmupSeconds uint32 `yaml:"warmup_seconds,omitempty"`
	// Workers bounds concurrent simulations; 0 = one per combination.
	Workers int `yaml:"workers,omitempty"`
}

// SamplingSpec configures optional trace sub-sampling.
type SamplingSpec struct {
	Type  string  `yaml:"type"` // "hash" or "spatial"
	Ratio float64 `yaml:"ratio"`
	Salt  uint64  `yaml:"salt,omitempty"`
}

// LoadProfileSpec reads and parses a YAML profile file.
func LoadProfileSpec(path string) (*ProfileSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile spec: %w", err)
	}
	var spec ProfileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing profile spec: %w", err)
	}
	return &spec, nil
}

var validCompressions = map[string]trace.Compression{
	"": trace.CompressionAuto, "auto": trace.CompressionAuto,
	"none": trace.CompressionNone,
	"zstd": trace.CompressionZstd,
	"gzip": trace.CompressionGzip,
}

// Validate checks names and ranges before anything is opened. Sampler ratio
// bounds are re-enforced by the sampler constructors; checking here just
// fails earlier with a path-level message.
func (s *ProfileSpec) Validate() error {
	if s.Trace == "" {
		return fmt.Errorf("trace path is required")
	}
	if _, err := trace.ParseFormat(s.Format); err != nil {
		return err
	}
	if _, ok := validCompressions[s.Compression]; !ok {
		return fmt.Errorf("unknown compression %q", s.Compression)
	}
	if len(s.Policies) == 0 {
		return fmt.Errorf("at least one policy is required")
	}
	for _, p := range s.Policies {
		if !policy.Known(p) {
			return fmt.Errorf("unknown cache policy %q", p)
		}
	}
	if len(s.Capacities) == 0 && len(s.CapacityRatios) == 0 {
		return fmt.Errorf("at least one capacity or capacity ratio is required")
	}
	if s.Sampling != nil {
		if _, err := sampler.New(s.Sampling.Type, s.Sampling.Ratio, s.Sampling.Salt); err != nil {
			return err
		}
	}
	if s.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", s.Workers)
	}
	return nil
}

// Build validates the spec, opens the trace, and assembles a Profiler. The
// caller owns the returned reader and must Close it after the run.
func (s *ProfileSpec) Build() (*Profiler, *trace.Reader, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	format, _ := trace.ParseFormat(s.Format)
	opts := []trace.Option{
		trace.WithFormat(format),
		trace.WithCompression(validCompressions[s.Compression]),
	}
	if s.SkipZeroSize {
		opts = append(opts, trace.WithSkipZeroSize())
	}
	r, err := trace.Open(s.Trace, opts...)
	if err != nil {
		return nil, nil, err
	}
	var smp sampler.Sampler
	if s.Sampling != nil {
		smp, err = sampler.New(s.Sampling.Type, s.Sampling.Ratio, s.Sampling.Salt)
		if err != nil {
			r.Close()
			return nil, nil, err
		}
	}
	p := &Profiler{
		Reader:         r,
		Sampler:        smp,
		Policies:       s.Policies,
		Capacities:     s.Capacities,
		CapacityRatios: s.CapacityRatios,
		WarmupSeconds:  s.WarmupSeconds,
		Workers:        s.Workers,
	}
	return p, r, nil
}
