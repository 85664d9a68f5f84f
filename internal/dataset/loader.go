package dataset

import (
	"os"

	"ringstat/domain/activity"
	"ringstat/internal"
	"ringstat/internal/errors"
	"ringstat/ports"
)

// Loader turns channel×timepoint tables into normalized activity matrices.
//
// Truncation and normalization are coupled: a window is always cut from the
// raw matrix first and normalized afterwards, so changing the window means
// calling Window again on the raw data, never slicing a normalized matrix.
type Loader struct {
	reader ports.MatrixReader
	logger *internal.Logger
}

// Pair is two datasets recorded over the same timepoints
type Pair struct {
	A, B activity.Matrix
	Time activity.TimeIndex
}

// NewLoader creates a loader backed by reader
func NewLoader(reader ports.MatrixReader) *Loader {
	return &Loader{reader: reader, logger: internal.DefaultLogger.For("DatasetLoader")}
}

// Load reads path, keeps the first maxTime timepoints (all when maxTime <= 0),
// normalizes every channel to mean 1 and drops rows where all channels are silent.
func (l *Loader) Load(path string, maxTime int) (activity.Matrix, activity.TimeIndex, error) {
	raw, err := l.LoadRaw(path)
	if err != nil {
		return activity.Matrix{}, nil, err
	}
	return l.Window(raw, maxTime)
}

// LoadRaw reads path and transposes it to timepoints×channels without normalizing
func (l *Loader) LoadRaw(path string) (activity.Matrix, error) {
	if err := requireFile(path); err != nil {
		return activity.Matrix{}, err
	}
	table, err := l.reader.ReadTable(path)
	if err != nil {
		return activity.Matrix{}, errors.Wrapf(err, "failed to read %s", path)
	}
	channels, err := activity.NewMatrix(table)
	if err != nil {
		return activity.Matrix{}, errors.Wrapf(errors.InvalidInput(err.Error()), "malformed table %s", path)
	}
	raw := channels.T()
	l.logger.Info("Data shape %s: %d timepoints x %d channels", path, raw.Timepoints(), raw.Channels())
	return raw, nil
}

// Window truncates raw to maxTime timepoints, normalizes, and drops silent rows
func (l *Loader) Window(raw activity.Matrix, maxTime int) (activity.Matrix, activity.TimeIndex, error) {
	m, err := l.normalizeWindow(raw, maxTime)
	if err != nil {
		return activity.Matrix{}, nil, err
	}
	out, t := m.DropSilent(activity.Sequence(m.Timepoints()))
	if dropped := m.Timepoints() - out.Timepoints(); dropped > 0 {
		l.logger.Debug("Dropped %d silent timepoints", dropped)
	}
	return out, t, nil
}

// LoadTwo reads two datasets that must share their timepoint count. Channels
// are never merged here. Only rows silent in both datasets are dropped, so the
// rows of A and B stay aligned under one time index.
func (l *Loader) LoadTwo(pathA, pathB string, maxTime int) (Pair, error) {
	if err := requireFile(pathA); err != nil {
		return Pair{}, err
	}
	if err := requireFile(pathB); err != nil {
		return Pair{}, err
	}
	rawA, err := l.LoadRaw(pathA)
	if err != nil {
		return Pair{}, err
	}
	rawB, err := l.LoadRaw(pathB)
	if err != nil {
		return Pair{}, err
	}
	return l.WindowPair(rawA, rawB, maxTime)
}

// WindowPair applies Window semantics to two raw datasets jointly
func (l *Loader) WindowPair(rawA, rawB activity.Matrix, maxTime int) (Pair, error) {
	if rawA.Timepoints() != rawB.Timepoints() {
		return Pair{}, errors.SizeMismatch(rawA.Timepoints(), rawB.Timepoints())
	}
	a, err := l.normalizeWindow(rawA, maxTime)
	if err != nil {
		return Pair{}, err
	}
	b, err := l.normalizeWindow(rawB, maxTime)
	if err != nil {
		return Pair{}, err
	}

	silentA, silentB := a.SilentRows(), b.SilentRows()
	keep := make([]bool, len(silentA))
	for i := range keep {
		keep[i] = !(silentA[i] && silentB[i])
	}
	return Pair{
		A:    a.KeepRows(keep),
		B:    b.KeepRows(keep),
		Time: activity.Sequence(a.Timepoints()).Keep(keep),
	}, nil
}

func (l *Loader) normalizeWindow(raw activity.Matrix, maxTime int) (activity.Matrix, error) {
	window := raw.Truncate(maxTime)
	if window.Empty() {
		return activity.Matrix{}, errors.InvalidInput("dataset has no values")
	}
	m, dropped, err := window.Normalize()
	if err != nil {
		return activity.Matrix{}, errors.Wrap(err, "failed to normalize channels")
	}
	if len(dropped) > 0 {
		l.logger.Warn("Dropped %d channels with zero mean activity: %v", len(dropped), dropped)
	}
	if m.Channels() == 0 {
		return activity.Matrix{}, errors.InvalidInput("no channel has non-zero mean activity")
	}
	return m, nil
}

func requireFile(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return errors.DataNotFound(path)
	}
	return nil
}
