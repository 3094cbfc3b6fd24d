package collection

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sourcelens/sourcelens/internal/chunker"
	"github.com/sourcelens/sourcelens/internal/coreerr"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/fingerprint"
	"github.com/sourcelens/sourcelens/internal/scanner"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
	"github.com/sourcelens/sourcelens/internal/watcher"
)

// State is a collection's position in the Uninitialized→Empty→Populated
// state machine.
type State int

const (
	StateUninitialized State = iota
	StateEmpty
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateEmpty:
		return "empty"
	case StatePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// Report summarizes one indexing run.
type Report struct {
	FilesChanged int
	ChunksAdded  int
	ChunksRemoved int
	Duration     time.Duration
}

// Config bounds what index() is willing to touch.
type Config struct {
	MaxFileSize     int64 // bytes; 0 disables the ceiling
	ExcludePatterns []string
}

// DefaultConfig applies a 100MB per-file ceiling.
func DefaultConfig() Config {
	return Config{MaxFileSize: 100 * 1024 * 1024}
}

type collectionState struct {
	mu          sync.Mutex
	state       State
	snapshot    *CodebaseSnapshot
	lastIndexed time.Time
}

// Manager is the Collection Manager: it owns each collection's state
// machine and snapshot, and serializes concurrent index() calls per
// collection id.
type Manager struct {
	vectors  vectorstore.Store
	embedder embedding.Embedder
	chunks   *chunker.Service
	scanner  *scanner.Scanner
	cfg      Config
	logger   *slog.Logger

	mu          sync.Mutex
	collections map[string]*collectionState
	flight      singleflight.Group
}

// New creates a Manager backed by vectors for storage, embedder for
// embedding, and chunks for chunking. Its file-discovery walk is the
// gitignore-aware Scanner (spec's Gitignore-aware scanning supplement),
// not a bare filepath.WalkDir.
func New(vectors vectorstore.Store, embedder embedding.Embedder, chunks *chunker.Service, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	// scanner.New only fails building its LRU cache with a non-positive
	// size, which its fixed internal constant never produces.
	scn, _ := scanner.New()
	return &Manager{
		vectors:     vectors,
		embedder:    embedder,
		chunks:      chunks,
		scanner:     scn,
		cfg:         cfg,
		logger:      logger,
		collections: make(map[string]*collectionState),
	}
}

func (m *Manager) stateFor(name string) *collectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.collections[name]
	if !ok {
		cs = &collectionState{state: StateUninitialized}
		m.collections[name] = cs
	}
	return cs
}

// State reports a collection's current lifecycle state.
func (m *Manager) State(name string) State {
	cs := m.stateFor(name)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.state
}

// Index runs the §4.7 algorithm for one collection. Concurrent calls for
// the same collection id attach to the in-flight run and receive its
// report rather than starting a second one (single-writer, attachment
// keyed by the collection name).
func (m *Manager) Index(ctx context.Context, rootPath, name string) (Report, error) {
	v, err, _ := m.flight.Do(name, func() (interface{}, error) {
		return m.index(ctx, rootPath, name)
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

// Watch starts a live-reindex trigger (fsnotify, falling back to
// polling) over rootPath: every debounced batch of file system events
// feeds an Index call for name, as an edge input alongside the normal
// on-demand snapshot diff rather than a replacement for it. The
// returned stop function tears down the watcher; the background
// goroutine exits once ctx is cancelled or stop is called.
func (m *Manager) Watch(ctx context.Context, rootPath, name string) (stop func() error, err error) {
	w, err := watcher.NewHybridWatcher(watcher.DefaultOptions())
	if err != nil {
		return nil, coreerr.Wrap("collection", coreerr.Internal, err)
	}
	if err := w.Start(ctx, rootPath); err != nil {
		return nil, coreerr.Wrap("collection", coreerr.Internal, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-w.Events():
				if !ok {
					return
				}
				if _, err := m.Index(ctx, rootPath, name); err != nil {
					m.logger.Warn("watch-triggered index failed",
						slog.String("collection", name), slog.String("error", err.Error()))
				}
			case err, ok := <-w.Errors():
				if !ok {
					continue
				}
				m.logger.Warn("watcher error", slog.String("collection", name), slog.String("error", err.Error()))
			}
		}
	}()

	return w.Stop, nil
}

// scanSnapshot discovers every indexable file under rootPath via the
// gitignore-aware Scanner and hashes each one into a CodebaseSnapshot.
func (m *Manager) scanSnapshot(ctx context.Context, rootPath string) (*CodebaseSnapshot, error) {
	results, err := m.scanner.Scan(ctx, &scanner.ScanOptions{
		RootDir:          rootPath,
		ExcludePatterns:  m.cfg.ExcludePatterns,
		MaxFileSize:      m.cfg.MaxFileSize,
		RespectGitignore: true,
	})
	if err != nil {
		return nil, err
	}

	snap := &CodebaseSnapshot{RootPath: rootPath, Files: make(map[string]FileSnapshot), TakenAt: time.Now()}
	for result := range results {
		if result.Error != nil {
			return nil, result.Error
		}
		f := result.File
		hash, err := hashFile(f.AbsPath)
		if err != nil {
			return nil, err
		}
		relPath := filepath.ToSlash(f.Path)
		snap.Files[relPath] = FileSnapshot{
			Path:    relPath,
			Size:    f.Size,
			ModTime: f.ModTime,
			Hash:    hash,
		}
	}
	return snap, nil
}

func (m *Manager) index(ctx context.Context, rootPath, name string) (Report, error) {
	start := time.Now()
	cs := m.stateFor(name)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.state == StateUninitialized {
		if err := m.initializeCollection(ctx, name); err != nil {
			return Report{}, err
		}
		cs.state = StateEmpty
	}

	newSnap, err := m.scanSnapshot(ctx, rootPath)
	if err != nil {
		return Report{}, coreerr.Wrap("collection", coreerr.Internal, err)
	}

	diff := ComputeDiff(cs.snapshot, newSnap)

	var chunksRemoved, chunksAdded int
	for _, path := range diff.Removed {
		removed, err := m.removeFile(ctx, name, path)
		if err != nil {
			return Report{}, err
		}
		chunksRemoved += removed
	}

	for _, path := range append(append([]string{}, diff.Added...), diff.Modified...) {
		if contains(diff.Modified, path) {
			removed, err := m.removeFile(ctx, name, path)
			if err != nil {
				return Report{}, err
			}
			chunksRemoved += removed
		}
		added, err := m.indexFile(ctx, rootPath, name, path)
		if err != nil {
			return Report{}, err
		}
		chunksAdded += added
	}

	// Replace-on-success: only commit the new snapshot once every file
	// in the batch has indexed cleanly. A fatal failure above returns
	// before this point, leaving cs.snapshot (and the old state) intact
	// so the next run retries from the last good state.
	cs.snapshot = newSnap
	cs.lastIndexed = time.Now()
	if chunksAdded > 0 || cs.state == StateEmpty {
		cs.state = StatePopulated
	}

	return Report{
		FilesChanged:  len(diff.Added) + len(diff.Modified) + len(diff.Removed),
		ChunksAdded:   chunksAdded,
		ChunksRemoved: chunksRemoved,
		Duration:      time.Since(start),
	}, nil
}

func contains(xs []string, target string) bool {
	for _, x := range xs {
		if x == target {
			return true
		}
	}
	return false
}

func (m *Manager) initializeCollection(ctx context.Context, name string) error {
	exists, err := m.vectors.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return m.vectors.CreateCollection(ctx, name, m.embedder.Dimensions())
}

func (m *Manager) removeFile(ctx context.Context, collectionName, relPath string) (int, error) {
	existing, err := m.vectors.GetChunksByFile(ctx, collectionName, relPath)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		return 0, nil
	}
	ids := make([]string, len(existing))
	for i, c := range existing {
		ids[i] = c.ID
	}
	if err := m.vectors.DeleteVectors(ctx, collectionName, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (m *Manager) indexFile(ctx context.Context, rootPath, collectionName, relPath string) (int, error) {
	content, err := os.ReadFile(filepath.Join(rootPath, relPath))
	if err != nil {
		return 0, coreerr.Wrap("collection", coreerr.Internal, err)
	}

	chunks, err := m.chunks.Chunk(ctx, &chunker.FileInput{Path: relPath, Content: content})
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(embeddings) != len(chunks) {
		return 0, coreerr.Newf(coreerr.Internal, "collection: embedded %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	vectors := make([]vectorstore.Vector, len(chunks))
	for i, c := range chunks {
		meta := map[string]string{
			"file_path":  relPath,
			"content":    c.Content,
			"language":   c.Language,
			"chunk_type": c.Metadata["chunk_type"],
			"start_line": strconv.Itoa(c.StartLine),
		}
		vectors[i] = vectorstore.Vector{ID: c.ID, Values: embeddings[i].Vector, Metadata: meta}
	}

	if _, err := m.vectors.InsertVectors(ctx, collectionName, vectors); err != nil {
		return 0, err
	}
	return len(vectors), nil
}

// Clear empties a collection's chunks and resets its state to Empty
// without deleting the collection itself (§4.7 state machine transition
// Populated→clear→Empty).
func (m *Manager) Clear(ctx context.Context, name string) error {
	cs := m.stateFor(name)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.state == StateUninitialized {
		return coreerr.Newf(coreerr.InvalidArgument, "collection: %q is not initialized", name)
	}

	paths, err := m.vectors.ListFilePaths(ctx, name, 0)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if _, err := m.removeFile(ctx, name, p); err != nil {
			return err
		}
	}
	cs.snapshot = nil
	cs.state = StateEmpty
	return nil
}

// Delete removes a collection entirely, returning it to Uninitialized.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := m.vectors.DeleteCollection(ctx, name); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.collections, name)
	m.mu.Unlock()
	return nil
}

// Info is the admin-surface summary of one collection (§6.2 GET /collections).
type Info struct {
	Name        string
	VectorCount int
	FileCount   int
	LastIndexed *time.Time
	Provider    string
}

// List reports every collection the vector store knows about, joined
// with the local file-count and last-indexed bookkeeping this Manager
// tracks alongside it.
func (m *Manager) List(ctx context.Context) ([]Info, error) {
	backendInfos, err := m.vectors.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(backendInfos))
	for _, bi := range backendInfos {
		info := Info{Name: bi.Name, VectorCount: bi.VectorCount, Provider: bi.Provider}
		m.mu.Lock()
		cs, ok := m.collections[bi.Name]
		m.mu.Unlock()
		if ok {
			cs.mu.Lock()
			if cs.snapshot != nil {
				info.FileCount = len(cs.snapshot.Files)
			}
			if !cs.lastIndexed.IsZero() {
				t := cs.lastIndexed
				info.LastIndexed = &t
			}
			cs.mu.Unlock()
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Files lists up to limit relative file paths indexed into a
// collection (0 means unbounded), for the admin file-listing endpoint.
func (m *Manager) Files(ctx context.Context, name string, limit int) ([]string, error) {
	return m.vectors.ListFilePaths(ctx, name, limit)
}

// Chunks returns every stored chunk for a single file path within a
// collection, for the admin chunk-inspection endpoint.
func (m *Manager) Chunks(ctx context.Context, name, filePath string) ([]vectorstore.Vector, error) {
	return m.vectors.GetChunksByFile(ctx, name, filePath)
}

// FindDuplicates runs the Fingerprinter over every chunk
// currently stored in a collection and returns verified duplicate pairs.
// window is the token-window size; callers with no opinion should pass 0
// to get the package default.
func (m *Manager) FindDuplicates(ctx context.Context, name string, window int) ([]fingerprint.Match, error) {
	if window <= 0 {
		window = defaultFingerprintWindow
	}
	vectors, err := m.vectors.ListVectors(ctx, name, 0)
	if err != nil {
		return nil, err
	}

	chunks := make([]fingerprint.StoredChunk, 0, len(vectors))
	for _, v := range vectors {
		startLine, _ := strconv.Atoi(v.Metadata["start_line"])
		chunks = append(chunks, fingerprint.StoredChunk{
			FilePath:  v.Metadata["file_path"],
			Content:   v.Metadata["content"],
			StartLine: startLine,
		})
	}

	return fingerprint.DetectDuplicates(chunks, window), nil
}

// defaultFingerprintWindow is a reasonable window size for Type-2
// clone detection over short functions.
const defaultFingerprintWindow = 15

// TreeNode is one entry in the hierarchical file tree returned by the
// admin tree endpoint. Dir nodes carry Children; file nodes don't.
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree builds a hierarchical view of a collection's indexed files from
// their flat relative paths.
func (m *Manager) Tree(ctx context.Context, name string) (*TreeNode, error) {
	paths, err := m.vectors.ListFilePaths(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	root := &TreeNode{Name: "", Path: "", IsDir: true}
	dirs := map[string]*TreeNode{"": root}

	for _, p := range paths {
		segments := strings.Split(p, "/")
		parentPath := ""
		for i, seg := range segments {
			isLeaf := i == len(segments)-1
			nodePath := seg
			if parentPath != "" {
				nodePath = parentPath + "/" + seg
			}
			if isLeaf && !strings.HasSuffix(p, "/") {
				parent := dirs[parentPath]
				parent.Children = append(parent.Children, &TreeNode{Name: seg, Path: nodePath, IsDir: false})
				break
			}
			if _, ok := dirs[nodePath]; !ok {
				node := &TreeNode{Name: seg, Path: nodePath, IsDir: true}
				dirs[nodePath] = node
				dirs[parentPath].Children = append(dirs[parentPath].Children, node)
			}
			parentPath = nodePath
		}
	}
	return root, nil
}
