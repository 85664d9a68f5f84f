package ports

import (
	"context"

	"ringstat/domain/activity"
	"ringstat/domain/persistence"
)

// DefaultCoefficientField is the prime p of Z/pZ used for cohomology
const DefaultCoefficientField = 3

// DefaultCoordinatePrime is the field used when lifting cocycles to circular coordinates
const DefaultCoordinatePrime = 41

// PersistenceEngine computes persistence diagrams of a point cloud.
// Rows of the matrix are the points. The returned slice holds one diagram
// per dimension 0..maxDim. landmarks bounds the geometric subsample.
type PersistenceEngine interface {
	ComputeDiagrams(ctx context.Context, m activity.Matrix, maxDim, coefficientField, landmarks int) ([]persistence.Diagram, error)
}

// CoordinateEngine opens a circular-coordinate session over a point cloud
type CoordinateEngine interface {
	Open(ctx context.Context, m activity.Matrix, landmarks int) (CoordinateSession, error)
}

// CoordinateSession holds the dimension-1 diagram of one point cloud and
// turns chosen features into one circular coordinate per timepoint.
type CoordinateSession interface {
	Diagram() persistence.Diagram
	CoordinatesFor(ctx context.Context, featureIndices []int) ([]float64, error)
	Close() error
}
