// Command routectl computes distances, route summaries and simulated unit
// runs from the command line, using the same packages as the service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/asistentevial/eta-worker/internal/calculator"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	speed float64
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "routectl",
		Short:        "Distance, ETA and unit simulation tools",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.speed <= 0 {
				return fmt.Errorf("--speed must be positive, got %v", opts.speed)
			}
			return nil
		},
	}

	cmd.PersistentFlags().Float64Var(&opts.speed, "speed", calculator.DefaultAverageSpeedKMH, "average speed in km/h")

	cmd.AddCommand(
		newDistanceCmd(opts),
		newSummarizeCmd(opts),
		newSimulateCmd(opts),
	)

	return cmd
}

func parseCoordinates(args []string) ([]calculator.Coordinate, error) {
	coords := make([]calculator.Coordinate, len(args))
	for i, arg := range args {
		c, err := calculator.ParseCoordinate(arg)
		if err != nil {
			return nil, err
		}
		coords[i] = c
	}
	return coords, nil
}
