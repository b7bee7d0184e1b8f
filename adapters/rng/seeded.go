package rng

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"schoolprep/ports"
)

// SeededAdapter implements ports.RNGPort with PCG streams. The stream name
// selects the second PCG word so distinct operations never share a sequence.
type SeededAdapter struct{}

// NewSeededAdapter creates the RNG adapter
func NewSeededAdapter() ports.RNGPort {
	return &SeededAdapter{}
}

// SeededStream creates a deterministic random source for a named operation
func (a *SeededAdapter) SeededStream(ctx context.Context, name string, seed int64) (rand.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("stream name cannot be empty")
	}
	return rand.NewPCG(uint64(seed), hashName(name)), nil
}

// hashName maps a stream name onto a PCG stream selector
func hashName(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
