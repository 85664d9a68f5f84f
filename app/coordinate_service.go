package app

import (
	"context"
	"fmt"

	"ringstat/adapters/rng"
	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal"
	"ringstat/internal/dataset"
	"ringstat/internal/errors"
	"ringstat/internal/sampling"
	"ringstat/internal/topology"
	"ringstat/internal/trials"
	"ringstat/ports"

	"gonum.org/v1/gonum/mat"
)

const coordinateStage = "coords"

// CoordinateService extracts circular coordinates from repeated subsamples
type CoordinateService struct {
	loader  *dataset.Loader
	engine  ports.CoordinateEngine
	rngPort ports.RNGPort
	pool    *trials.Pool
	retries int
	logger  *internal.Logger
}

// CoordinatesRequest describes one coordinate run
type CoordinatesRequest struct {
	Source    string
	Cells     int // channels per trial, <= 0 keeps all
	Trials    int
	Landmarks int
	MaxTime   int
	Seed      int64
	RunID     string // optional, generated if empty
}

// CoordinatesResult holds the concatenated coordinates of every trial.
// Row r of Coords belongs to timepoint Time[r]; columns 2i and 2i+1 and
// Gaps[i] belong to trial i.
type CoordinatesResult struct {
	RunID  string
	Time   activity.TimeIndex
	Coords *mat.Dense
	Gaps   []persistence.GapResult
}

// NewCoordinateService creates a coordinate service
func NewCoordinateService(loader *dataset.Loader, engine ports.CoordinateEngine, rngPort ports.RNGPort, pool *trials.Pool) *CoordinateService {
	return &CoordinateService{
		loader:  loader,
		engine:  engine,
		rngPort: rngPort,
		pool:    pool,
		logger:  internal.DefaultLogger.For("CoordinateService"),
	}
}

// WithRetries redraws the subsample of a trial up to n more times when its
// diagram has fewer than two features
func (s *CoordinateService) WithRetries(n int) *CoordinateService {
	if n > 0 {
		s.retries = n
	}
	return s
}

// Coordinates loads the dataset once and runs the trials over it. Trials do
// not drop rows after subsampling, so every trial shares the time index.
func (s *CoordinateService) Coordinates(ctx context.Context, req CoordinatesRequest) (*CoordinatesResult, error) {
	if req.Trials < 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("trials must be at least 1, got %d", req.Trials))
	}
	m, t, err := s.loader.Load(req.Source, req.MaxTime)
	if err != nil {
		return nil, err
	}
	if req.Cells > m.Channels() {
		return nil, errors.InvalidInput(fmt.Sprintf("cannot subsample %d channels from %d", req.Cells, m.Channels()))
	}
	runID := req.RunID
	if runID == "" {
		runID = newSweepID()
	}
	s.logger.Info("Coordinates %s: %d trials of %d channels over %d timepoints", runID, req.Trials, req.Cells, m.Timepoints())

	trial := func(ctx context.Context, i, attempt int) (trials.CoordinateTrial, error) {
		key := rng.TrialKey(0, i)
		if attempt > 0 {
			key = fmt.Sprintf("%s/attempt=%d", key, attempt)
			s.logger.Debug("Trial %d: redrawing subsample (attempt %d)", i, attempt)
		}
		r, err := s.rngPort.Stream(ctx, "", coordinateStage, key, req.Seed)
		if err != nil {
			return trials.CoordinateTrial{}, err
		}
		sub, err := sampling.Subsample(r, m, req.Cells)
		if err != nil {
			return trials.CoordinateTrial{}, err
		}
		res, err := topology.ExtractCoordinates(ctx, s.engine, sub, req.Landmarks)
		if err != nil {
			return trials.CoordinateTrial{}, err
		}
		return trials.CoordinateTrial{Coords: res.Coords, Gap: res.Gap}, nil
	}
	insufficient := func(err error) bool {
		return errors.HasCode(err, errors.CodeInsufficientFeatures)
	}

	batch, err := trials.CollectCoordinates(ctx, s.pool, req.Trials, trials.Retry(s.retries, insufficient, trial))
	if err != nil {
		return nil, err
	}
	return &CoordinatesResult{RunID: runID, Time: t, Coords: batch.Coords, Gaps: batch.Gaps}, nil
}
