package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/sourcelens/sourcelens/internal/coreerr"
)

type memoryCollection struct {
	dimensions int
	vectors    map[string]Vector
	order      []string
}

// MemoryStore is the brute-force cosine-similarity reference
// implementation of Store. It scans every vector in a collection on each
// search, trading throughput for the simplest possible correctness
// baseline that other backends are tested against.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	if name == "" {
		return coreerr.New(coreerr.InvalidArgument, "vectorstore: collection name required")
	}
	if dimensions <= 0 {
		return coreerr.New(coreerr.InvalidArgument, "vectorstore: dimensions must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return coreerr.Newf(coreerr.Conflict, "vectorstore: collection %q already exists", name)
	}
	s.collections[name] = &memoryCollection{dimensions: dimensions, vectors: make(map[string]Vector)}
	return nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return coreerr.Newf(coreerr.NotFound, "vectorstore: collection %q not found", name)
	}
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryStore) get(name string) (*memoryCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, coreerr.Newf(coreerr.NotFound, "vectorstore: collection %q not found", name)
	}
	return c, nil
}

func (s *MemoryStore) InsertVectors(ctx context.Context, collection string, vectors []Vector) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(vectors))
	for i, v := range vectors {
		if len(v.Values) != c.dimensions {
			return nil, coreerr.Newf(coreerr.InvalidArgument, "vectorstore: vector %q has %d dims, collection expects %d", v.ID, len(v.Values), c.dimensions)
		}
		if _, exists := c.vectors[v.ID]; !exists {
			c.order = append(c.order, v.ID)
		}
		c.vectors[v.ID] = v
		ids[i] = v.ID
	}
	return ids, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func (s *MemoryStore) SearchSimilar(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != c.dimensions {
		return nil, coreerr.Newf(coreerr.InvalidArgument, "vectorstore: query has %d dims, collection expects %d", len(query), c.dimensions)
	}

	results := make([]Result, 0, len(c.vectors))
	for _, v := range c.vectors {
		if filter != nil && !filter.Match(v.Metadata) {
			continue
		}
		results = append(results, Result{ID: v.ID, Score: cosineSimilarity(query, v.Values), Metadata: v.Metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryStore) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(collection)
	if err != nil {
		return err
	}
	toDelete := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		delete(c.vectors, id)
		toDelete[id] = struct{}{}
	}
	kept := c.order[:0:0]
	for _, id := range c.order {
		if _, gone := toDelete[id]; !gone {
			kept = append(kept, id)
		}
	}
	c.order = kept
	return nil
}

func (s *MemoryStore) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	out := make([]Vector, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.vectors[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListVectors(ctx context.Context, collection string, limit int) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	out := make([]Vector, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.vectors[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) GetStats(ctx context.Context, collection string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	return map[string]int{"vector_count": len(c.vectors), "dimensions": c.dimensions}, nil
}

func (s *MemoryStore) Flush(ctx context.Context, collection string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.get(collection)
	return err
}

func (s *MemoryStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CollectionInfo, 0, len(s.collections))
	for name, c := range s.collections {
		out = append(out, CollectionInfo{Name: name, Dimensions: c.dimensions, VectorCount: len(c.vectors), Provider: "memory"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListFilePaths(ctx context.Context, collection string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, id := range c.order {
		fp := c.vectors[id].Metadata["file_path"]
		if fp == "" {
			continue
		}
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, fp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) GetChunksByFile(ctx context.Context, collection string, filePath string) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	var out []Vector
	for _, id := range c.order {
		v := c.vectors[id]
		if v.Metadata["file_path"] == filePath {
			out = append(out, v)
		}
	}
	return out, nil
}
