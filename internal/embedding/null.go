package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// NullProvider returns deterministic pseudo-random vectors derived from a
// hash of the input text. It makes no network calls and is used for tests
// and local development without a model.
type NullProvider struct {
	dimensions int
}

// NewNullProvider creates a NullProvider producing vectors of dimensions length.
func NewNullProvider(dimensions int) *NullProvider {
	if dimensions <= 0 {
		dimensions = 8
	}
	return &NullProvider{dimensions: dimensions}
}

func (p *NullProvider) EmbedText(ctx context.Context, text string) (Embedding, error) {
	return Embedding{Vector: p.vectorFor(text), Dimensions: p.dimensions, Model: "null"}, nil
}

func (p *NullProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		out[i] = Embedding{Vector: p.vectorFor(t), Dimensions: p.dimensions, Model: "null"}
	}
	return out, nil
}

func (p *NullProvider) Dimensions() int       { return p.dimensions }
func (p *NullProvider) ProviderName() string  { return "null" }
func (p *NullProvider) HealthCheck(context.Context) error { return nil }

// vectorFor derives a deterministic vector from a seed computed over text,
// so the same input always produces the same output (useful for tests that
// assert on retrievability rather than semantic quality).
func (p *NullProvider) vectorFor(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()
	r := rand.New(rand.NewSource(int64(seed)))

	v := make([]float32, p.dimensions)
	for i := range v {
		v[i] = float32(r.NormFloat64())
	}
	return normalize(v)
}
