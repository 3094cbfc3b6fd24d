package search

import (
	"context"
	"log/slog"

	"github.com/sourcelens/sourcelens/internal/bm25"
	"github.com/sourcelens/sourcelens/internal/coreerr"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

// Config tunes the Engine's hybrid-search behavior.
type Config struct {
	ExpansionFactor int     // k_expanded = max(k, k*ExpansionFactor)
	HybridEnabled   bool
	HybridAlpha     float64 // vector weight in the fused sum
	BM25            bm25.Config
}

// DefaultConfig returns suggested defaults: expansion factor 3, hybrid
// enabled, alpha favoring vector recall.
func DefaultConfig() Config {
	return Config{
		ExpansionFactor: 3,
		HybridEnabled:   true,
		HybridAlpha:     0.65,
		BM25:            bm25.DefaultConfig(),
	}
}

// ScoredChunk is a single ranked search hit.
type ScoredChunk struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Engine implements the §4.6 hybrid vector+BM25 search contract:
// embed the query, over-fetch candidates from the vector store, score
// each candidate against the raw query with BM25, fuse, sort, truncate.
type Engine struct {
	vectors  vectorstore.Store
	embedder embedding.Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates an Engine. vectors and embedder must be non-nil.
func New(vectors vectorstore.Store, embedder embedding.Embedder, cfg Config, logger *slog.Logger) *Engine {
	if cfg.ExpansionFactor <= 0 {
		cfg.ExpansionFactor = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{vectors: vectors, embedder: embedder, cfg: cfg, logger: logger}
}

// Search runs the hybrid search contract against collection.
func (e *Engine) Search(ctx context.Context, collection string, queryText string, k int) ([]ScoredChunk, error) {
	if queryText == "" || k <= 0 {
		return nil, nil
	}

	exists, err := e.vectors.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, coreerr.Newf(coreerr.NotFound, "search: collection %q not found", collection)
	}

	queryEmb, err := e.embedder.EmbedText(ctx, queryText)
	if err != nil {
		return nil, err
	}

	kExpanded := k * e.cfg.ExpansionFactor
	if kExpanded < k {
		kExpanded = k
	}

	vecResults, err := e.vectors.SearchSimilar(ctx, collection, queryEmb.Vector, kExpanded, nil)
	if err != nil {
		return nil, err
	}
	if len(vecResults) == 0 {
		return nil, nil
	}

	if !e.cfg.HybridEnabled {
		return vectorOnly(vecResults, k), nil
	}

	docs := make([]bm25.Document, len(vecResults))
	for i, r := range vecResults {
		docs[i] = bm25.Document{ID: r.ID, Content: r.Metadata["content"]}
	}
	scorer := bm25.NewScorer(e.cfg.BM25)
	scorer.Build(docs)

	candidates := make([]Candidate, len(vecResults))
	for i, r := range vecResults {
		bmScore := scorer.Score(docs[i], queryText)
		candidates[i] = Candidate{
			ID:        r.ID,
			VectorRaw: float64(r.Score),
			BM25Raw:   float64(bmScore),
			Metadata:  r.Metadata,
		}
	}

	fused := Fuse(candidates, e.cfg.HybridAlpha)
	if len(fused) > k {
		fused = fused[:k]
	}

	out := make([]ScoredChunk, len(fused))
	for i, f := range fused {
		out[i] = ScoredChunk{ID: f.ID, Score: f.Score, Metadata: f.Metadata}
	}
	return out, nil
}

func vectorOnly(results []vectorstore.Result, k int) []ScoredChunk {
	if len(results) > k {
		results = results[:k]
	}
	out := make([]ScoredChunk, len(results))
	for i, r := range results {
		out[i] = ScoredChunk{ID: r.ID, Score: float64(r.Score), Metadata: r.Metadata}
	}
	return out
}
