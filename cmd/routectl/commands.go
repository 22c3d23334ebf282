package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/asistentevial/eta-worker/internal/calculator"
	"github.com/asistentevial/eta-worker/internal/directions"
	"github.com/asistentevial/eta-worker/internal/route"
	"github.com/asistentevial/eta-worker/internal/simulator"
)

func newDistanceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "distance <lat,lon> <lat,lon>",
		Short:   "Great-circle distance and ETA between two points",
		Example: "  routectl distance 19.4326,-99.1332 19.0414,-98.2063",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoordinates(args)
			if err != nil {
				return err
			}

			km := calculator.DistanceKM(coords[0], coords[1])
			minutes := calculator.EstimateDurationMinutes(km, opts.speed)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "distance: %s (%.3f km)\n", calculator.FormatDistanceKM(km), km)
			fmt.Fprintf(out, "eta:      %s at %g km/h\n", calculator.FormatDuration(minutes*60), opts.speed)
			return nil
		},
	}
}

func newSummarizeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "summarize <origin> [stop...]",
		Short:   "Sum the legs of a multi-stop route",
		Example: "  routectl summarize 19.4326,-99.1332 19.4270,-99.1677 19.3500,-99.1620",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoordinates(args)
			if err != nil {
				return err
			}

			planner := route.NewPlanner(opts.speed)
			if err := planner.SetOrigin(route.Waypoint{Coordinate: coords[0], Label: "origen"}); err != nil {
				return err
			}
			for i, c := range coords[1:] {
				if err := planner.AddStop(route.Waypoint{Coordinate: c, Label: fmt.Sprintf("parada %d", i+1)}); err != nil {
					return err
				}
			}

			summary := planner.Summary()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FROM\tTO\tDISTANCE")
			for _, leg := range summary.Legs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", leg.From, leg.To, leg.Distance)
			}
			fmt.Fprintf(w, "total\t%d stops\t%s\n", summary.TotalStops, summary.Distance())
			fmt.Fprintf(w, "eta\t\t%s\n", summary.Duration())
			return w.Flush()
		},
	}
}

type simulateOptions struct {
	provider string
	osrmURL  string
	via      []string
	duration time.Duration
	factor   float64
	timeout  time.Duration
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	simOpts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <origin> <destination>",
		Short: "Run a simulated responder unit from origin to destination",
		Long: `Builds a polyline (straight line through --via points, or an OSRM route)
and moves a unit along it one vertex per tick, printing every snapshot.`,
		Example: "  routectl simulate 19.4326,-99.1332 19.4270,-99.1677 --factor 60",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoordinates(args)
			if err != nil {
				return err
			}
			vias, err := parseCoordinates(simOpts.via)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			polyline, duration, err := simOpts.plan(ctx, coords[0], coords[1], vias, opts.speed)
			if err != nil {
				return err
			}

			sim := simulator.New(simulator.ScaledClock{Factor: simOpts.factor})
			if err := sim.Start(polyline, duration); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "unit en route: %d points, eta %s, tick every %s\n",
				len(polyline), calculator.FormatDuration(duration), sim.TickInterval())

			err = sim.Run(ctx, func(u simulator.Unit) {
				fmt.Fprintf(out, "[%d/%d] %s  %-8s eta %s  remaining %s\n",
					u.StepIndex, u.TotalSteps-1, u.CurrentPosition, u.Status,
					calculator.FormatDuration(u.RemainingETASeconds),
					calculator.FormatDistanceKM(u.RemainingDistanceKM))
			})
			if err != nil {
				sim.Cancel()
				return fmt.Errorf("simulation stopped: %w", err)
			}

			fmt.Fprintln(out, "unit arrived")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&simOpts.provider, "provider", "straight_line", "polyline source: straight_line or osrm")
	f.StringVar(&simOpts.osrmURL, "osrm-url", "https://router.project-osrm.org", "OSRM base URL")
	f.StringArrayVar(&simOpts.via, "via", nil, "intermediate lat,lon point for straight_line (repeatable)")
	f.DurationVar(&simOpts.duration, "duration", 0, "total travel time (default: estimated from --speed)")
	f.Float64Var(&simOpts.factor, "factor", 1, "run the simulation this many times faster than real time")
	f.DurationVar(&simOpts.timeout, "timeout", 10*time.Second, "directions request timeout")

	return cmd
}

// plan returns the polyline and total duration in seconds for the run
func (o *simulateOptions) plan(ctx context.Context, origin, destination calculator.Coordinate, vias []calculator.Coordinate, speed float64) ([]calculator.Coordinate, float64, error) {
	var polyline []calculator.Coordinate
	var seconds float64

	switch o.provider {
	case "osrm":
		d, err := directions.NewOSRMProvider(o.osrmURL, o.timeout).Route(ctx, origin, destination)
		if err != nil {
			return nil, 0, fmt.Errorf("routing unavailable: %w", err)
		}
		polyline, seconds = d.Polyline, d.DurationSeconds
	case "straight_line":
		polyline = append(append([]calculator.Coordinate{origin}, vias...), destination)
		r := make(route.Route, len(polyline))
		for i, c := range polyline {
			r[i] = route.Waypoint{Coordinate: c}
		}
		seconds = route.Summarize(r, speed).EstimatedDurationMinutes * 60
	default:
		return nil, 0, fmt.Errorf("unknown provider %q", o.provider)
	}

	if o.duration > 0 {
		seconds = o.duration.Seconds()
	}

	return polyline, seconds, nil
}
