// Package providers adapts the embedding and vector-store capability
// interfaces to the two narrower contracts the rest of the system
// drives restarts and health checks through: health.Probe and
// lifecycle.Provider. Neither embedding.Embedder nor vectorstore.Store
// carries an identity or an accepting-gate/in-flight-counter on its
// own, since those concerns belong to whichever component is being
// supervised, not to the capability contract itself.
package providers

import (
	"context"
	"sync/atomic"

	"github.com/sourcelens/sourcelens/internal/coreerr"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

// EmbedderGate wraps an embedding.Embedder with the id, accepting-gate,
// and in-flight counter the Provider Lifecycle Manager needs to drive
// its four-phase restart, while still satisfying embedding.Embedder
// itself so callers don't need to know it's gated.
type EmbedderGate struct {
	id    string
	inner embedding.Embedder

	accepting atomic.Bool
	inFlight  atomic.Int64
}

// NewEmbedderGate wraps inner under id, open for business immediately.
func NewEmbedderGate(id string, inner embedding.Embedder) *EmbedderGate {
	g := &EmbedderGate{id: id, inner: inner}
	g.accepting.Store(true)
	return g
}

func (g *EmbedderGate) ID() string { return g.id }

func (g *EmbedderGate) SetAccepting(accepting bool) { g.accepting.Store(accepting) }

func (g *EmbedderGate) InFlight() int { return int(g.inFlight.Load()) }

// Close is a no-op beyond closing the gate: the wrapped providers hold
// no resources that outlive a single request (an HTTP client, a
// deterministic generator), so there's nothing further to release.
func (g *EmbedderGate) Close(ctx context.Context) error {
	g.accepting.Store(false)
	return nil
}

func (g *EmbedderGate) Dimensions() int      { return g.inner.Dimensions() }
func (g *EmbedderGate) ProviderName() string { return g.inner.ProviderName() }

func (g *EmbedderGate) HealthCheck(ctx context.Context) error {
	return g.inner.HealthCheck(ctx)
}

func (g *EmbedderGate) EmbedText(ctx context.Context, text string) (embedding.Embedding, error) {
	if !g.accepting.Load() {
		return embedding.Embedding{}, coreerr.New(coreerr.Unavailable, "embedder "+g.id+" is not accepting work")
	}
	g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	return g.inner.EmbedText(ctx, text)
}

func (g *EmbedderGate) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Embedding, error) {
	if !g.accepting.Load() {
		return nil, coreerr.New(coreerr.Unavailable, "embedder "+g.id+" is not accepting work")
	}
	g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	return g.inner.EmbedBatch(ctx, texts)
}

// StoreGate is the vectorstore.Store equivalent of EmbedderGate: same
// id/accepting-gate/in-flight shape, delegating every Store method to
// inner. vectorstore.Store has no HealthCheck of its own, so the gate
// treats a successful ListCollections call as the liveness signal —
// the cheapest operation every backend (memory, HNSW, encrypted
// wrapper) already implements without side effects.
type StoreGate struct {
	id    string
	inner vectorstore.Store

	accepting atomic.Bool
	inFlight  atomic.Int64
}

func NewStoreGate(id string, inner vectorstore.Store) *StoreGate {
	g := &StoreGate{id: id, inner: inner}
	g.accepting.Store(true)
	return g
}

func (g *StoreGate) ID() string { return g.id }

func (g *StoreGate) SetAccepting(accepting bool) { g.accepting.Store(accepting) }

func (g *StoreGate) InFlight() int { return int(g.inFlight.Load()) }

func (g *StoreGate) Close(ctx context.Context) error {
	g.accepting.Store(false)
	return nil
}

func (g *StoreGate) HealthCheck(ctx context.Context) error {
	_, err := g.inner.ListCollections(ctx)
	return err
}

func (g *StoreGate) enter() error {
	if !g.accepting.Load() {
		return coreerr.New(coreerr.Unavailable, "vector store "+g.id+" is not accepting work")
	}
	g.inFlight.Add(1)
	return nil
}

func (g *StoreGate) leave() { g.inFlight.Add(-1) }

func (g *StoreGate) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()
	return g.inner.CreateCollection(ctx, name, dimensions)
}

func (g *StoreGate) DeleteCollection(ctx context.Context, name string) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()
	return g.inner.DeleteCollection(ctx, name)
}

func (g *StoreGate) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := g.enter(); err != nil {
		return false, err
	}
	defer g.leave()
	return g.inner.CollectionExists(ctx, name)
}

func (g *StoreGate) InsertVectors(ctx context.Context, collection string, vectors []vectorstore.Vector) ([]string, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.InsertVectors(ctx, collection, vectors)
}

func (g *StoreGate) SearchSimilar(ctx context.Context, collection string, query []float32, k int, filter vectorstore.Filter) ([]vectorstore.Result, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.SearchSimilar(ctx, collection, query, k, filter)
}

func (g *StoreGate) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()
	return g.inner.DeleteVectors(ctx, collection, ids)
}

func (g *StoreGate) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]vectorstore.Vector, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.GetVectorsByIDs(ctx, collection, ids)
}

func (g *StoreGate) ListVectors(ctx context.Context, collection string, limit int) ([]vectorstore.Vector, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.ListVectors(ctx, collection, limit)
}

func (g *StoreGate) GetStats(ctx context.Context, collection string) (map[string]int, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.GetStats(ctx, collection)
}

func (g *StoreGate) Flush(ctx context.Context, collection string) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.leave()
	return g.inner.Flush(ctx, collection)
}

func (g *StoreGate) ListCollections(ctx context.Context) ([]vectorstore.CollectionInfo, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.ListCollections(ctx)
}

func (g *StoreGate) ListFilePaths(ctx context.Context, collection string, limit int) ([]string, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.ListFilePaths(ctx, collection, limit)
}

func (g *StoreGate) GetChunksByFile(ctx context.Context, collection string, filePath string) ([]vectorstore.Vector, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.leave()
	return g.inner.GetChunksByFile(ctx, collection, filePath)
}

var (
	_ embedding.Embedder  = (*EmbedderGate)(nil)
	_ vectorstore.Store   = (*StoreGate)(nil)
)
