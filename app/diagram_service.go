package app

import (
	"context"
	"fmt"

	"ringstat/domain/persistence"
	"ringstat/internal"
	"ringstat/internal/dataset"
	"ringstat/internal/errors"
	"ringstat/internal/topology"
	"ringstat/ports"
)

// DiagramService computes the persistence diagrams of one dataset
type DiagramService struct {
	loader  *dataset.Loader
	engine  ports.PersistenceEngine
	rngPort ports.RNGPort
	logger  *internal.Logger
}

// DiagramRequest describes one diagram computation
type DiagramRequest struct {
	Source      string
	Cells       int // channels to subsample, <= 0 keeps all
	MaxDim      int
	Coefficient int // prime field, 0 uses the default
	Landmarks   int
	MaxTime     int
	Seed        int64
}

// DiagramResult holds diagrams for dimensions 0..MaxDim and the gap decision
// of the dimension-1 diagram
type DiagramResult struct {
	Diagrams []persistence.Diagram
	Gap      persistence.GapResult
	Points   int
	Channels int
}

// NewDiagramService creates a diagram service
func NewDiagramService(loader *dataset.Loader, engine ports.PersistenceEngine, rngPort ports.RNGPort) *DiagramService {
	return &DiagramService{
		loader:  loader,
		engine:  engine,
		rngPort: rngPort,
		logger:  internal.DefaultLogger.For("DiagramService"),
	}
}

// Diagram loads the dataset, optionally subsamples its channels, and computes its diagrams
func (s *DiagramService) Diagram(ctx context.Context, req DiagramRequest) (*DiagramResult, error) {
	if req.MaxDim < 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("max dimension must be at least 1, got %d", req.MaxDim))
	}
	coeff := req.Coefficient
	if coeff == 0 {
		coeff = ports.DefaultCoefficientField
	}

	m, _, err := s.loader.Load(req.Source, req.MaxTime)
	if err != nil {
		return nil, err
	}
	if req.Cells > m.Channels() {
		return nil, errors.InvalidInput(fmt.Sprintf("cannot subsample %d channels from %d", req.Cells, m.Channels()))
	}
	if req.Cells > 0 {
		r, err := s.rngPort.SeededStream(ctx, "diagram", req.Seed)
		if err != nil {
			return nil, err
		}
		if m, err = subsampleActive(r, m, req.Cells); err != nil {
			return nil, err
		}
	}

	landmarks := topology.ClampLandmarks(req.Landmarks, m.Timepoints())
	diagrams, err := s.engine.ComputeDiagrams(ctx, m, req.MaxDim, coeff, landmarks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute diagrams")
	}
	if len(diagrams) < 2 {
		return nil, errors.EngineError("persistence", fmt.Errorf("expected %d diagrams, got %d", req.MaxDim+1, len(diagrams)))
	}

	result := &DiagramResult{
		Diagrams: diagrams,
		Gap:      persistence.FindMaxGap(diagrams[1]),
		Points:   m.Timepoints(),
		Channels: m.Channels(),
	}
	s.logger.Info("H1 of %s: %d features, largest gap %.4f (%s, count %d)", req.Source, len(diagrams[1]), result.Gap.MaxGap, result.Gap.State, result.Gap.Count)
	return result, nil
}
