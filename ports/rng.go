package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// Stream creates an independent generator for one trial of one sweep cell.
	// The same (runID, stage, key, baseSeed) always yields the same stream,
	// whichever goroutine asks for it.
	Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed checks that the named stream produces the expected leading draws
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
