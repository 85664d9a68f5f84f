package main

import (
	"encoding/json"
	"fmt"
	"io"

	"ringstat/adapters/tables"
	"ringstat/app"
	"ringstat/domain/activity"
	"ringstat/domain/sweep"
	"ringstat/internal"
	"ringstat/internal/config"
	"ringstat/internal/synth"

	"github.com/spf13/cobra"
)

// sweepFlags are shared by every command that runs trials
type sweepFlags struct {
	runtimeOptions
	target    int
	trials    int
	landmarks int
	maxTime   int
	seed      int64
}

func (f *sweepFlags) register(cmd *cobra.Command) {
	f.runtimeOptions.register(cmd)
	cmd.Flags().IntVar(&f.target, "target", 1, "Feature count that counts as a success")
	cmd.Flags().IntVar(&f.trials, "trials", 0, "Trials per grid cell (overrides TRIAL_COUNT)")
	cmd.Flags().IntVar(&f.landmarks, "landmarks", 0, "Landmark subsample size (overrides LANDMARKS)")
	cmd.Flags().IntVar(&f.maxTime, "max-time", 0, "Keep only the first N timepoints (0 keeps all)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Base seed (overrides TRIAL_SEED; 0 derives one from the clock)")
}

func (f *sweepFlags) params(cfg config.TrialConfig) app.SweepParams {
	return app.SweepParams{
		Target:    f.target,
		Trials:    orDefault(f.trials, cfg.Count),
		Landmarks: orDefault(f.landmarks, cfg.Landmarks),
		MaxTime:   f.maxTime,
		Seed:      resolveSeed(f.seed, cfg),
	}
}

func newDiagramCmd() *cobra.Command {
	var (
		flags  sweepFlags
		cells  int
		maxDim int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "diagram <data-file>",
		Short: "Compute persistence diagrams and the largest-gap feature count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd, flags.runtimeOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := c.Diagrams.Diagram(cmd.Context(), app.DiagramRequest{
				Source:      args[0],
				Cells:       cells,
				MaxDim:      maxDim,
				Coefficient: c.Config.Engine.Coefficient,
				Landmarks:   orDefault(flags.landmarks, c.Config.Trials.Landmarks),
				MaxTime:     flags.maxTime,
				Seed:        resolveSeed(flags.seed, c.Config.Trials),
			})
			if err != nil {
				return err
			}

			if out != "" {
				if err := tables.WriteFile(out, tables.SuffixDiagrams, func(w io.Writer) error {
					return tables.WriteDiagrams(w, res.Diagrams)
				}); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "points=%d channels=%d H1 features=%d gap=%.5f count=%d (%s)\n",
				res.Points, res.Channels, len(res.Diagrams[1]), res.Gap.MaxGap, res.Gap.Count, res.Gap.State)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&cells, "cells", 0, "Subsample this many channels first (0 keeps all)")
	cmd.Flags().IntVar(&maxDim, "max-dim", 1, "Highest homology dimension")
	cmd.Flags().StringVar(&out, "out", "", "Write the diagrams to <out>"+tables.SuffixDiagrams)
	return cmd
}

func newCoordsCmd() *cobra.Command {
	var (
		flags sweepFlags
		cells int
	)

	cmd := &cobra.Command{
		Use:   "coords <data-file> <output-root>",
		Short: "Extract circular coordinates of the two most persistent features per trial",
		Long: `Repeatedly subsample channels and decode two circular coordinates per trial.

Writes <output-root>_coords.csv (time index, then two columns per trial) and
<output-root>_gaps.csv (largest-gap feature count per trial).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd, flags.runtimeOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			p := flags.params(c.Config.Trials)
			res, err := c.Coordinates.Coordinates(cmd.Context(), app.CoordinatesRequest{
				Source:    args[0],
				Cells:     cells,
				Trials:    p.Trials,
				Landmarks: p.Landmarks,
				MaxTime:   p.MaxTime,
				Seed:      p.Seed,
			})
			if err != nil {
				return err
			}

			root := args[1]
			if err := tables.WriteFile(root, tables.SuffixCoords, func(w io.Writer) error {
				return tables.WriteCoords(w, res.Time, res.Coords)
			}); err != nil {
				return err
			}
			return tables.WriteFile(root, tables.SuffixGaps, func(w io.Writer) error {
				return tables.WriteGaps(w, res.Gaps)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&cells, "cells", 0, "Channels per trial (0 keeps all)")
	return cmd
}

func newSweepCellsCmd() *cobra.Command {
	var (
		flags sweepFlags
		cells []int
	)

	cmd := &cobra.Command{
		Use:   "sweep-cells <data-file> <output-root>",
		Short: "Success rate as a function of subsample size",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd, flags.runtimeOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			grid, err := c.Sweeps.SweepCells(cmd.Context(), app.CellsRequest{
				SweepParams: flags.params(c.Config.Trials),
				Source:      args[0],
				Cells:       cells,
			})
			if err != nil {
				return err
			}
			return writeSweepTables(args[1], grid)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&cells, "cells", nil, "Subsample sizes, e.g. 5,10,20,50")
	cmd.MarkFlagRequired("cells")
	return cmd
}

func newSweepCellsTwoCmd() *cobra.Command {
	var (
		flags          sweepFlags
		cellsA, cellsB []int
	)

	cmd := &cobra.Command{
		Use:   "sweep-cells-two <data-file-a> <data-file-b> <output-root>",
		Short: "Success rate over subsample sizes drawn from two datasets",
		Long: `Merge subsamples of two datasets recorded over the same timepoints.

Rows of <output-root>_success.csv follow --cells-a (<output-root>_n.csv),
columns follow --cells-b (<output-root>_n2.csv). A size of 0 leaves that
dataset out of the merged cloud.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd, flags.runtimeOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			grid, err := c.Sweeps.SweepCellsTwo(cmd.Context(), app.CellsTwoRequest{
				SweepParams: flags.params(c.Config.Trials),
				SourceA:     args[0],
				SourceB:     args[1],
				CellsA:      cellsA,
				CellsB:      cellsB,
			})
			if err != nil {
				return err
			}
			return writeSweepTables(args[2], grid)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntSliceVar(&cellsA, "cells-a", nil, "Subsample sizes of the first dataset")
	cmd.Flags().IntSliceVar(&cellsB, "cells-b", nil, "Subsample sizes of the second dataset")
	cmd.MarkFlagRequired("cells-a")
	cmd.MarkFlagRequired("cells-b")
	return cmd
}

func newSweepTimesCmd() *cobra.Command {
	var (
		flags sweepFlags
		cells int
		times []int
	)

	cmd := &cobra.Command{
		Use:   "sweep-times <data-file> <output-root>",
		Short: "Success rate as a function of recording length",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := setup(cmd, flags.runtimeOptions)
			if err != nil {
				return err
			}
			defer cleanup()

			grid, err := c.Sweeps.SweepTimes(cmd.Context(), app.TimesRequest{
				SweepParams: flags.params(c.Config.Trials),
				Source:      args[0],
				Cells:       cells,
				Times:       times,
			})
			if err != nil {
				return err
			}
			return writeSweepTables(args[1], grid)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&cells, "cells", 0, "Channels per trial (0 keeps all)")
	cmd.Flags().IntSliceVar(&times, "times", nil, "Window lengths in timepoints, e.g. 500,1000,2000")
	cmd.MarkFlagRequired("times")
	return cmd
}

func newSweepPlanCmd() *cobra.Command {
	var (
		opts     runtimeOptions
		planPath string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the sweep described by a YAML plan",
		Long: `Run a sweep from a plan file, for example:

  name: merged
  kind: cells_two
  sources: [session_a.csv, session_b.csv]
  output: results/merged
  target: 1
  trials: 100
  cells_a: [0, 10, 20, 40]
  cells_b: [0, 10, 20, 40]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := config.LoadPlan(planPath)
			if err != nil {
				return err
			}
			if plan.Workers > 0 && opts.workers == 0 {
				opts.workers = plan.Workers
			}
			c, cleanup, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			plan.ApplyDefaults(c.Config.Trials)
			params := app.SweepParams{
				Target:    plan.Target,
				Trials:    plan.Trials,
				Landmarks: plan.Landmarks,
				MaxTime:   plan.MaxTime,
				Seed:      resolveSeed(plan.Seed, c.Config.Trials),
			}

			var grid *sweep.Grid
			switch plan.Kind {
			case sweep.KindCells:
				grid, err = c.Sweeps.SweepCells(cmd.Context(), app.CellsRequest{SweepParams: params, Source: plan.Sources[0], Cells: plan.Cells})
			case sweep.KindCellsTwo:
				grid, err = c.Sweeps.SweepCellsTwo(cmd.Context(), app.CellsTwoRequest{
					SweepParams: params,
					SourceA:     plan.Sources[0],
					SourceB:     plan.Sources[1],
					CellsA:      plan.CellsA,
					CellsB:      plan.CellsB,
				})
			case sweep.KindTimes:
				grid, err = c.Sweeps.SweepTimes(cmd.Context(), app.TimesRequest{SweepParams: params, Source: plan.Sources[0], Cells: plan.NCells, Times: plan.Times})
			}
			if err != nil {
				return err
			}
			if plan.Name != "" {
				internal.DefaultLogger.Info("Plan %q finished as sweep %s", plan.Name, grid.ID)
			}
			return writeSweepTables(plan.Output, grid)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&planPath, "plan", "", "Path to the YAML plan")
	cmd.MarkFlagRequired("plan")
	return cmd
}

func newSynthCmd() *cobra.Command {
	cfg := synth.DefaultRingConfig()
	var noiseOnly bool

	cmd := &cobra.Command{
		Use:   "synth <output-file>",
		Short: "Write a synthetic ring dataset (channels x timepoints)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := generateActivity(cfg, noiseOnly)
			if err != nil {
				return err
			}

			path := args[0]
			if err := tables.WriteFile(path, "", func(w io.Writer) error {
				return tables.WriteActivity(w, m)
			}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d channels x %d timepoints to %s\n", cfg.Channels, cfg.Timepoints, path)
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.Timepoints, "timepoints", cfg.Timepoints, "Number of timepoints")
	cmd.Flags().IntVar(&cfg.Channels, "channels", cfg.Channels, "Number of channels")
	cmd.Flags().Float64Var(&cfg.Amplitude, "amplitude", cfg.Amplitude, "Tuning amplitude")
	cmd.Flags().Float64Var(&cfg.Noise, "noise", cfg.Noise, "Gaussian noise level")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Generator seed")
	cmd.Flags().BoolVar(&noiseOnly, "noise-only", false, "Omit the ring signal")
	return cmd
}

func generateActivity(cfg synth.RingConfig, noiseOnly bool) (activity.Matrix, error) {
	if noiseOnly {
		return synth.GenerateNoise(cfg)
	}
	ring, err := synth.GenerateRing(cfg)
	if err != nil {
		return activity.Matrix{}, err
	}
	return ring.Activity, nil
}

// writeSweepTables writes the success table, one parameter table per axis,
// and the full grid as JSON for later import into the sweep store
func writeSweepTables(root string, grid *sweep.Grid) error {
	if err := tables.WriteFile(root, tables.SuffixSuccess, func(w io.Writer) error {
		return tables.WriteSuccess(w, grid.Rates(), len(grid.Axes))
	}); err != nil {
		return err
	}
	suffixes := []string{tables.SuffixParams, tables.SuffixParamsB}
	for d, axis := range grid.Axes {
		values := axis.Values
		if err := tables.WriteFile(root, suffixes[d], func(w io.Writer) error {
			return tables.WriteInts(w, values)
		}); err != nil {
			return err
		}
	}
	return tables.WriteFile(root, tables.SuffixGrid, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	})
}
