// Package embedding provides the pluggable Embedder capability: batch
// embedding, fixed dimensionality, provider identity, and a health
// check, behind variants for local/null/HTTP-backed remote providers.
package embedding

import (
	"context"
	"math"
)

// Embedding is a dense vector with provenance.
type Embedding struct {
	Vector     []float32
	Dimensions int
	Model      string
}

// Embedder is the capability contract every provider implements.
type Embedder interface {
	// EmbedText embeds a single query-side string.
	EmbedText(ctx context.Context, text string) (Embedding, error)

	// EmbedBatch embeds N inputs into N vectors in the same order. On
	// partial provider failure the whole batch fails; callers retry.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)

	// Dimensions is constant for the lifetime of the provider instance.
	Dimensions() int

	// ProviderName identifies the backend for metrics/logging.
	ProviderName() string

	// HealthCheck reports whether the provider is currently usable.
	HealthCheck(ctx context.Context) error
}

// normalize scales v to unit length; a zero vector is returned unchanged.
func normalize(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / magnitude)
	}
	return out
}
