package bm25

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// Result is a single scored hit from an Index.
type Result struct {
	DocID string
	Score float32
}

// Index is the document-index interface BleveIndex satisfies. The
// hand-rolled Scorer does not implement it; it is used directly.
type Index interface {
	Index(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Delete(ctx context.Context, docIDs []string) error
	Close() error
}

// BleveIndex is the scale-out BM25 backend for larger corpora, backed by a
// persistent (or in-memory) Bleve index. It exists alongside Scorer because
// Bleve owns its own inverted index and scoring pipeline rather than
// exposing the raw per-term statistics the literal BM25 formula needs.
// Scorer stays the direct reference implementation and is the backend
// collections use; nothing in the app constructs a BleveIndex, and the
// bm25.backend config key is not read.
type BleveIndex struct {
	mu    sync.RWMutex
	index bleve.Index
}

type bleveDoc struct {
	Content string `json:"content"`
}

// NewBleveIndex opens (or creates) a Bleve index at path. An empty path
// creates an in-memory index, used in tests.
func NewBleveIndex(path string) (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, mapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("bm25: open bleve index: %w", err)
	}
	return &BleveIndex{index: idx}, nil
}

func (b *BleveIndex) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, bleveDoc{Content: d.Content}); err != nil {
			return fmt.Errorf("bm25: index document %s: %w", d.ID, err)
		}
	}
	return b.index.Batch(batch)
}

func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	match := bleve.NewMatchQuery(query)
	match.SetField("Content")
	req := bleve.NewSearchRequest(match)
	req.Size = limit

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bm25: search: %w", err)
	}

	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, Result{DocID: hit.ID, Score: float32(hit.Score)})
	}
	return out, nil
}

func (b *BleveIndex) Delete(ctx context.Context, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.index.NewBatch()
	for _, id := range docIDs {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
