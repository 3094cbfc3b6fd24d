package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/sourcelens/sourcelens/internal/coreerr"
)

// hnswCollection wraps one coder/hnsw graph plus the string<->uint64 ID
// mapping the library needs, along with the metadata attached to every
// vector. Deletion is lazy: the graph never drops a
// node mid-life because coder/hnsw corrupts its internal state when the
// last remaining node is deleted. An orphaned key is simply unmapped and
// skipped on search/list.
type hnswCollection struct {
	graph      *hnsw.Graph[uint64]
	dimensions int
	idMap      map[string]uint64
	keyMap     map[uint64]string
	metadata   map[string]map[string]string
	// vectors mirrors what was inserted (pre-normalization) so
	// GetVectorsByIDs/ListVectors/GetChunksByFile can return raw values
	// without depending on a lookup-by-key primitive the graph doesn't
	// expose.
	vectors map[string][]float32
	nextKey uint64
}

// HNSWStore is the approximate-nearest-neighbor backend, one graph per
// collection.
type HNSWStore struct {
	mu          sync.RWMutex
	collections map[string]*hnswCollection
	m           int
	efSearch    int
}

// NewHNSWStore creates an empty HNSWStore. m and efSearch are applied to
// every collection's graph; zero values fall back to coder/hnsw defaults
// (M=16, EfSearch=20).
func NewHNSWStore(m, efSearch int) *HNSWStore {
	if m == 0 {
		m = 16
	}
	if efSearch == 0 {
		efSearch = 20
	}
	return &HNSWStore{collections: make(map[string]*hnswCollection), m: m, efSearch: efSearch}
}

func (s *HNSWStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
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

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = s.m
	graph.EfSearch = s.efSearch
	graph.Ml = 0.25

	s.collections[name] = &hnswCollection{
		graph:      graph,
		dimensions: dimensions,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		metadata:   make(map[string]map[string]string),
		vectors:    make(map[string][]float32),
	}
	return nil
}

func (s *HNSWStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return coreerr.Newf(coreerr.NotFound, "vectorstore: collection %q not found", name)
	}
	delete(s.collections, name)
	return nil
}

func (s *HNSWStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *HNSWStore) get(name string) (*hnswCollection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, coreerr.Newf(coreerr.NotFound, "vectorstore: collection %q not found", name)
	}
	return c, nil
}

func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32) float32 {
	return 1.0 - distance/2.0
}

func (s *HNSWStore) InsertVectors(ctx context.Context, collection string, vectors []Vector) ([]string, error) {
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

		if existingKey, exists := c.idMap[v.ID]; exists {
			delete(c.keyMap, existingKey)
			delete(c.idMap, v.ID)
		}

		key := c.nextKey
		c.nextKey++

		raw := make([]float32, len(v.Values))
		copy(raw, v.Values)
		normalized := make([]float32, len(v.Values))
		copy(normalized, v.Values)
		normalizeInPlace(normalized)

		c.graph.Add(hnsw.MakeNode(key, normalized))
		c.idMap[v.ID] = key
		c.keyMap[key] = v.ID
		c.metadata[v.ID] = v.Metadata
		c.vectors[v.ID] = raw
		ids[i] = v.ID
	}
	return ids, nil
}

func (s *HNSWStore) SearchSimilar(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	if len(query) != c.dimensions {
		return nil, coreerr.Newf(coreerr.InvalidArgument, "vectorstore: query has %d dims, collection expects %d", len(query), c.dimensions)
	}
	if c.graph.Len() == 0 {
		return nil, nil
	}

	normalizedQuery := make([]float32, len(query))
	copy(normalizedQuery, query)
	normalizeInPlace(normalizedQuery)

	// Over-fetch to absorb orphaned (lazily-deleted) nodes and
	// post-search metadata filtering without starving the caller of k
	// live results.
	orphans := c.graph.Len() - len(c.idMap)
	fetch := k + orphans
	if filter != nil {
		fetch = k*4 + orphans
	}
	if fetch < k {
		fetch = k
	}
	nodes := c.graph.Search(normalizedQuery, fetch)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, ok := c.keyMap[node.Key]
		if !ok {
			continue
		}
		meta := c.metadata[id]
		if filter != nil && !filter.Match(meta) {
			continue
		}
		distance := c.graph.Distance(normalizedQuery, node.Value)
		results = append(results, Result{ID: id, Score: distanceToScore(distance), Metadata: meta})
		if len(results) >= k {
			break
		}
	}
	return results, nil
}

func (s *HNSWStore) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if key, exists := c.idMap[id]; exists {
			delete(c.keyMap, key)
			delete(c.idMap, id)
			delete(c.metadata, id)
			delete(c.vectors, id)
		}
	}
	return nil
}

func (s *HNSWStore) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	out := make([]Vector, 0, len(ids))
	for _, id := range ids {
		if _, ok := c.idMap[id]; !ok {
			continue
		}
		out = append(out, Vector{ID: id, Values: c.vectors[id], Metadata: c.metadata[id]})
	}
	return out, nil
}

func (s *HNSWStore) ListVectors(ctx context.Context, collection string, limit int) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	out := make([]Vector, 0, len(c.idMap))
	for id := range c.idMap {
		out = append(out, Vector{ID: id, Values: c.vectors[id], Metadata: c.metadata[id]})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *HNSWStore) GetStats(ctx context.Context, collection string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		"vector_count": len(c.idMap),
		"dimensions":   c.dimensions,
		"graph_nodes":  c.graph.Len(),
		"orphans":      c.graph.Len() - len(c.idMap),
	}, nil
}

func (s *HNSWStore) Flush(ctx context.Context, collection string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.get(collection)
	return err
}

func (s *HNSWStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CollectionInfo, 0, len(s.collections))
	for name, c := range s.collections {
		out = append(out, CollectionInfo{Name: name, Dimensions: c.dimensions, VectorCount: len(c.idMap), Provider: "hnsw"})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *HNSWStore) ListFilePaths(ctx context.Context, collection string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for id := range c.idMap {
		fp := c.metadata[id]["file_path"]
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

func (s *HNSWStore) GetChunksByFile(ctx context.Context, collection string, filePath string) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	var out []Vector
	for id := range c.idMap {
		if c.metadata[id]["file_path"] != filePath {
			continue
		}
		out = append(out, Vector{ID: id, Values: c.vectors[id], Metadata: c.metadata[id]})
	}
	return out, nil
}
