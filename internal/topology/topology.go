package topology

import (
	"context"
	"fmt"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
	"ringstat/internal/errors"
	"ringstat/ports"

	"gonum.org/v1/gonum/mat"
)

// CoordinateFeatures is the number of persistent features turned into coordinates per trial
const CoordinateFeatures = 2

// ClampLandmarks bounds a geometric subsample size by the number of points.
// Non-positive sizes and sizes above the point count mean "use every point".
func ClampLandmarks(landmarks, points int) int {
	if landmarks <= 0 || landmarks > points {
		return points
	}
	return landmarks
}

// DetectFeatureCount computes the dimension-1 diagram of m and applies the
// largest-gap rule to it.
func DetectFeatureCount(ctx context.Context, engine ports.PersistenceEngine, m activity.Matrix, landmarks int) (persistence.GapResult, error) {
	diagrams, err := engine.ComputeDiagrams(ctx, m, 1, ports.DefaultCoefficientField, ClampLandmarks(landmarks, m.Timepoints()))
	if err != nil {
		return persistence.GapResult{}, errors.Wrap(err, "failed to compute diagrams")
	}
	if len(diagrams) < 2 {
		return persistence.GapResult{}, errors.EngineError("persistence", fmt.Errorf("expected diagrams for dimensions 0..1, got %d", len(diagrams)))
	}
	return persistence.FindMaxGap(diagrams[1]), nil
}

// CoordinateResult is the output of one coordinate extraction
type CoordinateResult struct {
	Coords   *mat.Dense // timepoints × CoordinateFeatures
	Gap      persistence.GapResult
	Features []int // diagram indices of the chosen features, most persistent first
}

// ExtractCoordinates opens a session on m, records the gap decision of its
// diagram, and builds one circular coordinate for each of the two most
// persistent features. A diagram with fewer than two features yields an
// INSUFFICIENT_FEATURES error.
func ExtractCoordinates(ctx context.Context, engine ports.CoordinateEngine, m activity.Matrix, landmarks int) (CoordinateResult, error) {
	session, err := engine.Open(ctx, m, ClampLandmarks(landmarks, m.Timepoints()))
	if err != nil {
		return CoordinateResult{}, errors.Wrap(err, "failed to open coordinate session")
	}
	defer session.Close()

	dgm := session.Diagram()
	result := CoordinateResult{Gap: persistence.FindMaxGap(dgm)}

	if len(dgm) < CoordinateFeatures {
		return result, errors.InsufficientFeatures(len(dgm), CoordinateFeatures)
	}
	result.Features = dgm.MostPersistent(CoordinateFeatures)

	result.Coords = mat.NewDense(m.Timepoints(), CoordinateFeatures, nil)
	for j, feature := range result.Features {
		values, err := session.CoordinatesFor(ctx, []int{feature})
		if err != nil {
			return result, errors.Wrapf(err, "failed to compute coordinates for feature %d", feature)
		}
		if len(values) != m.Timepoints() {
			return result, errors.EngineError("coordinate", fmt.Errorf("feature %d: got %d values for %d timepoints", feature, len(values), m.Timepoints()))
		}
		result.Coords.SetCol(j, values)
	}
	return result, nil
}
