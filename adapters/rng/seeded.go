package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
)

// SeededRNG implements ports.RNGPort with math/rand sources whose seeds are
// derived from stream names, so a trial's draws do not depend on which worker
// runs it or when.
type SeededRNG struct{}

// New returns a SeededRNG
func New() *SeededRNG {
	return &SeededRNG{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (r *SeededRNG) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(deriveSeed(seed, name))), nil
}

// Stream creates a deterministic RNG stream for a run/stage/key combination
func (r *SeededRNG) Stream(ctx context.Context, runID, stageName, key string, baseSeed int64) (*rand.Rand, error) {
	return rand.New(rand.NewSource(deriveSeed(baseSeed, runID, stageName, key))), nil
}

// ValidateSeed compares the leading Float64 draws of a named stream with expected
func (r *SeededRNG) ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error {
	stream, err := r.SeededStream(ctx, name, seed)
	if err != nil {
		return err
	}
	for i, want := range expected {
		if got := stream.Float64(); math.Abs(got-want) > 1e-15 {
			return fmt.Errorf("stream %q seed %d: draw %d is %v, expected %v", name, seed, i, got, want)
		}
	}
	return nil
}

// TrialKey names the stream of one trial inside one grid cell
func TrialKey(cell, trial int) string {
	return "cell=" + strconv.Itoa(cell) + "/trial=" + strconv.Itoa(trial)
}

// deriveSeed hashes the parts with FNV-1a, separated by NUL, and mixes in the base seed
func deriveSeed(base int64, parts ...string) int64 {
	h := fnv.New64a()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return int64(splitmix(h.Sum64() ^ uint64(base)))
}

func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
