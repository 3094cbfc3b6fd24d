// Package vectorstore implements the collection-oriented Vector Store
// Abstraction: collection lifecycle, insert/search/delete/list,
// metadata filters, behind a stable interface multiple backends satisfy.
package vectorstore

import "context"

// Vector is a stored embedding plus the chunk metadata it was inserted
// with.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]string
}

// Filter restricts search_similar/list_vectors to vectors whose Metadata
// matches every key/value pair (AND semantics).
type Filter map[string]string

// Match matches m against a vector's metadata.
func (f Filter) Match(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// Result is a single scored hit from search_similar.
type Result struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

// CollectionInfo describes one collection for list_collections.
type CollectionInfo struct {
	Name        string
	Dimensions  int
	VectorCount int
	Provider    string
}

// Store is the §4.5 contract. Every backend (in-memory, HNSW, encrypted
// wrapper, distributed) satisfies this interface without leaking
// backend-specific behavior through it.
type Store interface {
	CreateCollection(ctx context.Context, name string, dimensions int) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)

	InsertVectors(ctx context.Context, collection string, vectors []Vector) ([]string, error)
	SearchSimilar(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]Result, error)
	DeleteVectors(ctx context.Context, collection string, ids []string) error
	GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]Vector, error)
	ListVectors(ctx context.Context, collection string, limit int) ([]Vector, error)

	GetStats(ctx context.Context, collection string) (map[string]int, error)
	Flush(ctx context.Context, collection string) error

	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	ListFilePaths(ctx context.Context, collection string, limit int) ([]string, error)
	GetChunksByFile(ctx context.Context, collection string, filePath string) ([]Vector, error)
}
