package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mrc-sim/mrc-sim/sim"
)

var (
	specPath string // YAML profile spec path

	// Inline alternative to a spec file
	tracePath      string    // Trace file to replay
	traceFormat    string    // Record layout family
	compression    string    // Compression override (auto by extension)
	policies       []string  // Cache policies to profile
	capacities     []int64   // Absolute capacities in bytes
	capacityRatios []float64 // Capacities as working-set fractions
	samplerType    string    // Sampler type (hash, spatial) or empty
	samplingRatio  float64   // Sampling ratio
	samplingSalt   uint64    // Sampling salt
	warmupSeconds  uint32    // Simulated warm-up excluded from stats
	workers        int       // Concurrent simulations (0 = unbounded)
	skipZeroSize   bool      // Drop zero-size requests on forward reads
)

// profileCmd replays a trace against every (policy, capacity) combination
// and prints the resulting miss-ratio curve.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile a trace into a miss-ratio curve",
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := assembleSpec()
		if err != nil {
			return err
		}
		profiler, reader, err := spec.Build()
		if err != nil {
			return err
		}
		defer reader.Close()

		mrc, err := profiler.Run(context.Background())
		if err != nil {
			return err
		}
		fmt.Print(mrc.String())
		return nil
	},
}

func assembleSpec() (*sim.ProfileSpec, error) {
	if specPath != "" {
		logrus.Debugf("loading profile spec from %s", specPath)
		return sim.LoadProfileSpec(specPath)
	}
	spec := &sim.ProfileSpec{
		Trace:          tracePath,
		Format:         traceFormat,
		Compression:    compression,
		SkipZeroSize:   skipZeroSize,
		Policies:       policies,
		CapacityRatios: capacityRatios,
		WarmupSeconds:  warmupSeconds,
		Workers:        workers,
	}
	for _, c := range capacities {
		if c < 0 {
			return nil, fmt.Errorf("capacity must be non-negative, got %d", c)
		}
		spec.Capacities = append(spec.Capacities, uint64(c))
	}
	if samplerType != "" {
		spec.Sampling = &sim.SamplingSpec{Type: samplerType, Ratio: samplingRatio, Salt: samplingSalt}
	}
	return spec, nil
}

func init() {
	profileCmd.Flags().StringVar(&specPath, "spec", "", "YAML profile spec (overrides the other flags)")
	profileCmd.Flags().StringVar(&tracePath, "trace", "", "Trace file to replay")
	profileCmd.Flags().StringVar(&traceFormat, "format", "container", "Trace format (container, oracle, objid)")
	profileCmd.Flags().StringVar(&compression, "compression", "", "Trace compression (zstd, gzip, none); empty infers from the extension")
	profileCmd.Flags().StringSliceVar(&policies, "policy", []string{"lru"}, "Cache policies to profile")
	profileCmd.Flags().Int64SliceVar(&capacities, "capacity", nil, "Cache capacities in bytes")
	profileCmd.Flags().Float64SliceVar(&capacityRatios, "capacity-ratio", nil, "Cache capacities as working-set fractions")
	profileCmd.Flags().StringVar(&samplerType, "sampler", "", "Sampler type (hash, spatial); empty disables sampling")
	profileCmd.Flags().Float64Var(&samplingRatio, "sampling-ratio", 0.1, "Sampling ratio")
	profileCmd.Flags().Uint64Var(&samplingSalt, "sampling-salt", 0, "Sampling salt")
	profileCmd.Flags().Uint32Var(&warmupSeconds, "warmup", 0, "Warm-up interval in simulated seconds")
	profileCmd.Flags().IntVar(&workers, "workers", 0, "Max concurrent simulations (0 = one per combination)")
	profileCmd.Flags().BoolVar(&skipZeroSize, "skip-zero-size", false, "Drop zero-size requests on forward reads")
}
