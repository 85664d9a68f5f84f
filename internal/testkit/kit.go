package testkit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/domain/sweep"
	"ringstat/ports"
)

// ScriptedEngine is an in-memory persistence and coordinate engine. The
// dimension-1 diagram of every point cloud comes from Script; coordinates are
// the row index scaled into [0,1) and offset by the feature index.
type ScriptedEngine struct {
	Script func(m activity.Matrix) persistence.Diagram
	Err    error

	mu        sync.Mutex
	calls     int
	landmarks []int
	closed    int
}

var (
	_ ports.PersistenceEngine = (*ScriptedEngine)(nil)
	_ ports.CoordinateEngine  = (*ScriptedEngine)(nil)
)

// NewScriptedEngine returns an engine that always yields the same diagram
func NewScriptedEngine(dgm persistence.Diagram) *ScriptedEngine {
	return &ScriptedEngine{Script: func(activity.Matrix) persistence.Diagram { return dgm }}
}

// NewChannelCountEngine returns an engine whose diagram depends on the number
// of channels: clouds with at least threshold channels show one clear loop,
// smaller clouds show noise.
func NewChannelCountEngine(threshold int) *ScriptedEngine {
	return &ScriptedEngine{Script: func(m activity.Matrix) persistence.Diagram {
		if m.Channels() >= threshold {
			return persistence.Diagram{{Birth: 0.1, Death: 2.0}, {Birth: 0.2, Death: 0.3}, {Birth: 0.2, Death: 0.25}}
		}
		// two comparable short loops: the gap rule counts 2
		return persistence.Diagram{{Birth: 0.1, Death: 0.5}, {Birth: 0.1, Death: 0.48}, {Birth: 0.1, Death: 0.2}}
	}}
}

// ComputeDiagrams returns an empty dimension-0 diagram and the scripted dimension-1 diagram
func (e *ScriptedEngine) ComputeDiagrams(ctx context.Context, m activity.Matrix, maxDim, coefficientField, landmarks int) ([]persistence.Diagram, error) {
	e.record(landmarks)
	if e.Err != nil {
		return nil, e.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]persistence.Diagram, maxDim+1)
	out[0] = persistence.Diagram{{Birth: 0, Death: math.Inf(1)}}
	if maxDim >= 1 {
		out[1] = e.Script(m)
	}
	return out, nil
}

// Open starts a scripted coordinate session
func (e *ScriptedEngine) Open(ctx context.Context, m activity.Matrix, landmarks int) (ports.CoordinateSession, error) {
	e.record(landmarks)
	if e.Err != nil {
		return nil, e.Err
	}
	return &scriptedSession{engine: e, m: m, dgm: e.Script(m)}, nil
}

// Calls returns how many diagrams or sessions were requested
func (e *ScriptedEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Landmarks returns the landmark counts passed to every call, in call order
func (e *ScriptedEngine) Landmarks() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.landmarks...)
}

// Closed returns how many sessions were closed
func (e *ScriptedEngine) Closed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *ScriptedEngine) record(landmarks int) {
	e.mu.Lock()
	e.calls++
	e.landmarks = append(e.landmarks, landmarks)
	e.mu.Unlock()
}

type scriptedSession struct {
	engine *ScriptedEngine
	m      activity.Matrix
	dgm    persistence.Diagram
}

func (s *scriptedSession) Diagram() persistence.Diagram {
	return s.dgm
}

func (s *scriptedSession) CoordinatesFor(ctx context.Context, featureIndices []int) ([]float64, error) {
	if len(featureIndices) == 0 {
		return nil, fmt.Errorf("no features selected")
	}
	for _, f := range featureIndices {
		if f < 0 || f >= len(s.dgm) {
			return nil, fmt.Errorf("feature %d out of range", f)
		}
	}
	n := s.m.Timepoints()
	out := make([]float64, n)
	for t := range out {
		out[t] = math.Mod(float64(t)/float64(n)+0.1*float64(featureIndices[0]), 1)
	}
	return out, nil
}

func (s *scriptedSession) Close() error {
	s.engine.mu.Lock()
	s.engine.closed++
	s.engine.mu.Unlock()
	return nil
}

// RecordingSink keeps every progress event it receives
type RecordingSink struct {
	mu     sync.Mutex
	events []sweep.ProgressEvent
}

// Report stores the event
func (r *RecordingSink) Report(_ context.Context, ev sweep.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events
func (r *RecordingSink) Events() []sweep.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sweep.ProgressEvent(nil), r.events...)
}

// Matrix builds an activity matrix from rows and panics on malformed input
func Matrix(rows [][]float64) activity.Matrix {
	m, err := activity.NewMatrix(rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Constant returns a timepoints × channels matrix filled with v
func Constant(timepoints, channels int, v float64) activity.Matrix {
	rows := make([][]float64, timepoints)
	for t := range rows {
		rows[t] = make([]float64, channels)
		for c := range rows[t] {
			rows[t][c] = v
		}
	}
	return Matrix(rows)
}
