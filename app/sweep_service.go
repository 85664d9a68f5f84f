package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"ringstat/adapters/rng"
	"ringstat/domain/activity"
	"ringstat/domain/sweep"
	"ringstat/internal"
	"ringstat/internal/dataset"
	"ringstat/internal/errors"
	"ringstat/internal/sampling"
	"ringstat/internal/topology"
	"ringstat/internal/trials"
	"ringstat/ports"

	"github.com/google/uuid"
)

// Axis names used in grids and progress labels
const (
	AxisCells  = "cells"
	AxisCellsA = "cells_a"
	AxisCellsB = "cells_b"
	AxisTime   = "time"
)

// SweepService runs success-rate sweeps over subsample size and time window
type SweepService struct {
	loader   *dataset.Loader
	engine   ports.PersistenceEngine
	rngPort  ports.RNGPort
	pool     *trials.Pool
	progress ports.ProgressSink
	repo     ports.SweepRepository
	reports  []ports.ReportSink
	logger   *internal.Logger
	now      func() time.Time
}

// SweepParams are shared by every sweep kind
type SweepParams struct {
	Target    int    // number of features counted as a success
	Trials    int    // trials per grid cell
	Landmarks int    // geometric subsample size passed to the engine
	MaxTime   int    // timepoints kept from each dataset, 0 keeps all
	Seed      int64  // base seed of every trial stream
	SweepID   string // optional, generated if empty
}

// CellsRequest sweeps the subsample size of one dataset
type CellsRequest struct {
	SweepParams
	Source string
	Cells  []int
}

// CellsTwoRequest sweeps subsample sizes of two datasets jointly. A value of
// 0 on either axis leaves that dataset out of the merged cloud.
type CellsTwoRequest struct {
	SweepParams
	SourceA, SourceB string
	CellsA, CellsB   []int
}

// TimesRequest sweeps the time window at a fixed subsample size.
// Cells <= 0 keeps every channel.
type TimesRequest struct {
	SweepParams
	Source string
	Cells  int
	Times  []int
}

// cloudFunc draws the point cloud of one trial
type cloudFunc func(r *rand.Rand) (activity.Matrix, error)

// NewSweepService creates a sweep service
func NewSweepService(loader *dataset.Loader, engine ports.PersistenceEngine, rngPort ports.RNGPort, pool *trials.Pool) *SweepService {
	return &SweepService{
		loader:  loader,
		engine:  engine,
		rngPort: rngPort,
		pool:    pool,
		logger:  internal.DefaultLogger.For("SweepService"),
		now:     time.Now,
	}
}

// WithProgress sets the sink that receives one event per finished cell
func (s *SweepService) WithProgress(sink ports.ProgressSink) *SweepService {
	s.progress = sink
	return s
}

// WithRepository stores every finished grid in repo
func (s *SweepService) WithRepository(repo ports.SweepRepository) *SweepService {
	s.repo = repo
	return s
}

// WithReports renders every finished grid with the given sinks
func (s *SweepService) WithReports(sinks ...ports.ReportSink) *SweepService {
	s.reports = append(s.reports, sinks...)
	return s
}

// SweepCells estimates the success rate for each subsample size
func (s *SweepService) SweepCells(ctx context.Context, req CellsRequest) (*sweep.Grid, error) {
	if err := validateParams(req.SweepParams); err != nil {
		return nil, err
	}
	m, _, err := s.loader.Load(req.Source, req.MaxTime)
	if err != nil {
		return nil, err
	}
	if err := checkAxis(AxisCells, req.Cells, m.Channels()); err != nil {
		return nil, err
	}

	grid := s.newGrid(sweep.KindCells, req.SweepParams, []string{req.Source}, sweep.Axis{Name: AxisCells, Values: req.Cells})
	err = s.run(ctx, grid, req.SweepParams, func(index []int) (cloudFunc, error) {
		k := req.Cells[index[0]]
		return func(r *rand.Rand) (activity.Matrix, error) {
			return subsampleActive(r, m, k)
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, grid), nil
}

// SweepCellsTwo estimates the success rate for every pair of subsample sizes
// drawn from two datasets recorded over the same timepoints. Rows of the grid
// follow CellsA, columns follow CellsB.
func (s *SweepService) SweepCellsTwo(ctx context.Context, req CellsTwoRequest) (*sweep.Grid, error) {
	if err := validateParams(req.SweepParams); err != nil {
		return nil, err
	}
	pair, err := s.loader.LoadTwo(req.SourceA, req.SourceB, req.MaxTime)
	if err != nil {
		return nil, err
	}
	if err := checkAxis(AxisCellsA, req.CellsA, pair.A.Channels()); err != nil {
		return nil, err
	}
	if err := checkAxis(AxisCellsB, req.CellsB, pair.B.Channels()); err != nil {
		return nil, err
	}

	grid := s.newGrid(sweep.KindCellsTwo, req.SweepParams, []string{req.SourceA, req.SourceB},
		sweep.Axis{Name: AxisCellsA, Values: req.CellsA},
		sweep.Axis{Name: AxisCellsB, Values: req.CellsB},
	)
	err = s.run(ctx, grid, req.SweepParams, func(index []int) (cloudFunc, error) {
		kA, kB := req.CellsA[index[0]], req.CellsB[index[1]]
		if kA <= 0 && kB <= 0 {
			return nil, nil
		}
		return func(r *rand.Rand) (activity.Matrix, error) {
			m, _, err := sampling.MergeSubsamples(r, pair.A, kA, pair.B, kB, pair.Time)
			return m, err
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, grid), nil
}

// SweepTimes estimates the success rate for each time window. Every window is
// cut from the raw recording and normalized on its own.
func (s *SweepService) SweepTimes(ctx context.Context, req TimesRequest) (*sweep.Grid, error) {
	if err := validateParams(req.SweepParams); err != nil {
		return nil, err
	}
	for _, t := range req.Times {
		if t <= 0 {
			return nil, errors.InvalidInput(fmt.Sprintf("time windows must be positive, got %d", t))
		}
	}
	if len(req.Times) == 0 {
		return nil, errors.InvalidInput("time axis has no values")
	}
	raw, err := s.loader.LoadRaw(req.Source)
	if err != nil {
		return nil, err
	}
	if req.Cells > raw.Channels() {
		return nil, errors.InvalidInput(fmt.Sprintf("cannot subsample %d channels from %d", req.Cells, raw.Channels()))
	}

	grid := s.newGrid(sweep.KindTimes, req.SweepParams, []string{req.Source}, sweep.Axis{Name: AxisTime, Values: req.Times})
	err = s.run(ctx, grid, req.SweepParams, func(index []int) (cloudFunc, error) {
		m, _, err := s.loader.Window(raw, req.Times[index[0]])
		if err != nil {
			return nil, err
		}
		if req.Cells > m.Channels() {
			return nil, errors.InvalidInput(fmt.Sprintf("window %d keeps %d channels, cannot subsample %d", req.Times[index[0]], m.Channels(), req.Cells))
		}
		return func(r *rand.Rand) (activity.Matrix, error) {
			return subsampleActive(r, m, req.Cells)
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, grid), nil
}

func (s *SweepService) newGrid(kind sweep.Kind, params SweepParams, sources []string, axes ...sweep.Axis) *sweep.Grid {
	id := params.SweepID
	if id == "" {
		id = newSweepID()
	}
	return &sweep.Grid{
		ID:        id,
		Kind:      kind,
		Sources:   sources,
		Target:    params.Target,
		Trials:    params.Trials,
		Landmarks: params.Landmarks,
		Seed:      params.Seed,
		Axes:      axes,
		StartedAt: s.now(),
	}
}

// run walks the grid in row-major order, outer axis first. Each cell is one
// trial batch; the next cell starts only after every trial of the current one
// has finished. A nil cloudFunc marks a cell with no channels, which fails
// every trial without calling the engine.
func (s *SweepService) run(ctx context.Context, grid *sweep.Grid, params SweepParams, cellCloud func(index []int) (cloudFunc, error)) error {
	total := grid.Size()
	grid.Cells = make([]sweep.Cell, 0, total)
	s.logger.Info("Sweep %s (%s): %d cells x %d trials, target %d features", grid.ID, grid.Kind, total, params.Trials, params.Target)

	for flat := 0; flat < total; flat++ {
		index, values := position(grid.Axes, flat)
		labels := make([]sweep.Label, len(grid.Axes))
		for d, a := range grid.Axes {
			labels[d] = sweep.Label{Axis: a.Name, Value: values[d]}
		}
		event := sweep.ProgressEvent{SweepID: grid.ID, Kind: grid.Kind, Current: flat + 1, Total: total, Labels: labels}

		cloud, err := cellCloud(index)
		if err != nil {
			return errors.Wrapf(err, "cell %s", event.Describe())
		}

		outcome := trials.Outcome{Trials: params.Trials}
		if cloud != nil {
			cell := flat
			outcome, err = trials.SuccessRate(ctx, s.pool, params.Trials, func(ctx context.Context, i int) (bool, error) {
				// streams depend on the seed only, never on the sweep id
				r, err := s.rngPort.Stream(ctx, "", string(grid.Kind), rng.TrialKey(cell, i), params.Seed)
				if err != nil {
					return false, err
				}
				m, err := cloud(r)
				if err != nil {
					return false, err
				}
				gap, err := topology.DetectFeatureCount(ctx, s.engine, m, params.Landmarks)
				if err != nil {
					return false, err
				}
				return gap.Matches(params.Target), nil
			})
			if err != nil {
				return errors.Wrapf(err, "cell %s", event.Describe())
			}
		}

		c := sweep.NewCell(index, values, outcome.Successes, outcome.Trials)
		grid.Cells = append(grid.Cells, c)
		event.Rate = c.Rate
		s.logger.Info("[%d/%d] %s: success rate %.3f", event.Current, total, event.Describe(), c.Rate)
		if s.progress != nil {
			s.progress.Report(ctx, event)
		}
	}
	return nil
}

// finish stamps the grid and hands it to the optional store and reports.
// Store and report failures are logged; the computed grid is still returned.
func (s *SweepService) finish(ctx context.Context, grid *sweep.Grid) *sweep.Grid {
	grid.FinishedAt = s.now()
	grid.Duration = grid.FinishedAt.Sub(grid.StartedAt)

	if s.repo != nil {
		if err := s.repo.Save(ctx, grid); err != nil {
			s.logger.Error("Failed to store sweep %s: %v", grid.ID, err)
		}
	}
	for _, r := range s.reports {
		if err := r.WriteGrid(grid); err != nil {
			s.logger.Error("Failed to write report for sweep %s: %v", grid.ID, err)
		}
	}
	s.logger.Info("Sweep %s finished in %s", grid.ID, grid.Duration.Round(time.Millisecond))
	return grid
}

// position converts a row-major cell number into axis indices and values
func position(axes []sweep.Axis, flat int) ([]int, []int) {
	index := make([]int, len(axes))
	values := make([]int, len(axes))
	for d := len(axes) - 1; d >= 0; d-- {
		n := len(axes[d].Values)
		index[d] = flat % n
		values[d] = axes[d].Values[index[d]]
		flat /= n
	}
	return index, values
}

// subsampleActive draws k channels and drops rows that fell silent
func subsampleActive(r *rand.Rand, m activity.Matrix, k int) (activity.Matrix, error) {
	sub, err := sampling.Subsample(r, m, k)
	if err != nil {
		return activity.Matrix{}, err
	}
	out, _ := sub.DropSilent(nil)
	return out, nil
}

func validateParams(p SweepParams) error {
	if p.Trials < 1 {
		return errors.InvalidInput(fmt.Sprintf("trials per cell must be at least 1, got %d", p.Trials))
	}
	if p.Target < 0 {
		return errors.InvalidInput(fmt.Sprintf("target feature count must not be negative, got %d", p.Target))
	}
	return nil
}

// checkAxis accepts subsample sizes in [0, channels]. Zero keeps every
// channel on a 1D axis and leaves the dataset out on a 2D axis.
func checkAxis(name string, values []int, channels int) error {
	if len(values) == 0 {
		return errors.InvalidInput(fmt.Sprintf("%s axis has no values", name))
	}
	for _, k := range values {
		switch {
		case k < 0:
			return errors.InvalidInput(fmt.Sprintf("%s axis value %d is not a valid subsample size", name, k))
		case k > channels:
			return errors.InvalidInput(fmt.Sprintf("%s axis value %d exceeds the %d available channels", name, k, channels))
		}
	}
	return nil
}

func newSweepID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
