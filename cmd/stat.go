package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrc-sim/mrc-sim/sim/trace"
)

// statCmd prints a container trace's precomputed statistics block. It reads
// only the fixed-size header, so it costs the same for a gigabyte trace as
// for an empty one — cheap triage before committing to a full simulation.
var statCmd = &cobra.Command{
	Use:   "stat <trace>",
	Short: "Print a trace header's aggregate statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := trace.ReadHeader(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("version:        %d\n", h.Version)
		fmt.Print(h.Stat.String())
		return nil
	},
}
