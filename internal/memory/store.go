// Package memory implements session memory: an append-only,
// content-hash-idempotent log of session observations plus session
// summaries, queryable by id, tag, time window, or semantic
// similarity, backed by a WAL-mode SQLite database with a
// corruption-check-then-reopen pattern on startup. Semantic query
// delegates to the Search Engine over a dedicated collection rather
// than duplicating vector search here.
package memory

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sourcelens/sourcelens/internal/coreerr"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/search"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

// Collection is the dedicated vector-store collection observations are
// embedded into for semantic recall. Double-underscore name keeps it
// out of the way of user-named collections.
const Collection = "__memory__"

// Observation is one append-only session event.
type Observation struct {
	ID              string
	Content         string
	ContentHash     string
	Tags            []string
	ObservationType string
	Metadata        map[string]string
	CreatedAt       time.Time
	SessionID       string
	EmbeddingID     string
}

// SessionSummary is a rolled-up summary of one session.
type SessionSummary struct {
	ID        string
	SessionID string
	Summary   string
	CreatedAt time.Time
}

// Store is the SQLite-backed session memory store.
type Store struct {
	mu       sync.RWMutex
	db       *sql.DB
	vectors  vectorstore.Store
	embedder embedding.Embedder
	search   *search.Engine
	logger   *slog.Logger
}

// validateIntegrity runs SQLite's integrity check on an existing store
// file. New deletes a file that fails it, so a corrupted memory store
// starts fresh rather than refusing to boot.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// New opens (creating if necessary) a memory store at path. path == ""
// opens a private in-memory database, useful for tests. vectors and
// embedder back the dedicated Collection; searchEngine must be backed
// by the same vectors/embedder pair.
func New(path string, vectors vectorstore.Store, embedder embedding.Embedder, searchEngine *search.Engine, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, coreerr.Wrap("memory", coreerr.Internal, err)
		}
		if err := validateIntegrity(path); err != nil {
			logger.Warn("memory: store corrupted, clearing", "path", path, "error", err)
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, coreerr.Wrap("memory", coreerr.Internal, err)
		}
	}

	s := &Store{db: db, vectors: vectors, embedder: embedder, search: searchEngine, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL,
		content_hash     TEXT NOT NULL UNIQUE,
		tags             TEXT NOT NULL DEFAULT '',
		observation_type TEXT NOT NULL DEFAULT '',
		metadata         TEXT NOT NULL DEFAULT '{}',
		created_at       INTEGER NOT NULL,
		session_id       TEXT NOT NULL DEFAULT '',
		embedding_id     TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_observations_created_at ON observations(created_at);
	CREATE INDEX IF NOT EXISTS idx_observations_session_id ON observations(session_id);

	CREATE VIRTUAL TABLE IF NOT EXISTS observations_fts USING fts5(
		content, content=observations, content_rowid=rowid
	);

	CREATE TABLE IF NOT EXISTS session_summaries (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		summary    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_summaries_session_id ON session_summaries(session_id);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return coreerr.Wrap("memory", coreerr.Internal, err)
	}
	return nil
}

func encodeMetadata(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMetadata(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.vectors.CollectionExists(ctx, Collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.vectors.CreateCollection(ctx, Collection, s.embedder.Dimensions())
}

// StoreObservation records content as a new observation. Re-storing
// identical content (by sha256 of content) is idempotent and returns
// the original observation rather than creating a duplicate.
func (s *Store) StoreObservation(ctx context.Context, content, observationType, sessionID string, tags []string, metadata map[string]string) (*Observation, error) {
	if content == "" {
		return nil, coreerr.New(coreerr.InvalidArgument, "memory: observation content must not be empty")
	}
	hash := contentHash(content)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, err := s.getByHash(ctx, hash); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	if err := s.ensureCollection(ctx); err != nil {
		return nil, err
	}
	embedded, err := s.embedder.EmbedText(ctx, content)
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Unavailable, err)
	}

	id := uuid.NewString()
	if _, err := s.vectors.InsertVectors(ctx, Collection, []vectorstore.Vector{{
		ID:     id,
		Values: embedded.Vector,
		Metadata: map[string]string{
			"observation_id": id,
			"content":        content,
		},
	}}); err != nil {
		return nil, err
	}

	obs := &Observation{
		ID:              id,
		Content:         content,
		ContentHash:     hash,
		Tags:            tags,
		ObservationType: observationType,
		Metadata:        metadata,
		CreatedAt:       time.Now(),
		SessionID:       sessionID,
		EmbeddingID:     id,
	}

	metaJSON := encodeMetadata(metadata)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO observations (id, content, content_hash, tags, observation_type, metadata, created_at, session_id, embedding_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obs.ID, obs.Content, obs.ContentHash, strings.Join(tags, ","), observationType, metaJSON, obs.CreatedAt.Unix(), sessionID, obs.EmbeddingID,
	)
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	return obs, nil
}

func (s *Store) getByHash(ctx context.Context, hash string) (*Observation, error) {
	row := s.db.QueryRowContext(ctx, observationSelect+" WHERE content_hash = ?", hash)
	obs, err := scanObservationRows(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	return obs, nil
}

// GetByID retrieves one observation by id.
func (s *Store) GetByID(ctx context.Context, id string) (*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, observationSelect+" WHERE id = ?", id)
	obs, err := scanObservationRows(row)
	if err == sql.ErrNoRows {
		return nil, coreerr.Newf(coreerr.NotFound, "memory: observation %q not found", id)
	}
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	return obs, nil
}

// GetByTag returns observations carrying tag, most recent first.
func (s *Store) GetByTag(ctx context.Context, tag string, limit int) ([]*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := observationSelect + ` WHERE (',' || tags || ',') LIKE ? ORDER BY created_at DESC`
	args := []any{"%," + tag + ",%"}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryObservations(ctx, query, args...)
}

// GetByTimeWindow returns observations created within [from, to],
// most recent first.
func (s *Store) GetByTimeWindow(ctx context.Context, from, to time.Time, limit int) ([]*Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := observationSelect + ` WHERE created_at BETWEEN ? AND ? ORDER BY created_at DESC`
	args := []any{from.Unix(), to.Unix()}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryObservations(ctx, query, args...)
}

// SearchSemantic runs queryText through the Search Engine against the
// dedicated memory collection and resolves the resulting vector ids
// back to full Observation rows.
func (s *Store) SearchSemantic(ctx context.Context, queryText string, k int) ([]*Observation, error) {
	if s.search == nil {
		return nil, coreerr.New(coreerr.Configuration, "memory: no search engine configured")
	}
	hits, err := s.search.Search(ctx, Collection, queryText, k)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Observation, 0, len(hits))
	for _, h := range hits {
		row := s.db.QueryRowContext(ctx, observationSelect+" WHERE id = ?", h.ID)
		obs, err := scanObservationRows(row)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, coreerr.Wrap("memory", coreerr.Internal, err)
		}
		out = append(out, obs)
	}
	return out, nil
}

// StoreSessionSummary records a rolled-up summary for a session.
func (s *Store) StoreSessionSummary(ctx context.Context, sessionID, summary string) (*SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := &SessionSummary{ID: uuid.NewString(), SessionID: sessionID, Summary: summary, CreatedAt: time.Now()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO session_summaries (id, session_id, summary, created_at) VALUES (?, ?, ?, ?)`,
		sum.ID, sum.SessionID, sum.Summary, sum.CreatedAt.Unix())
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	return sum, nil
}

// GetSessionSummaries returns every summary recorded for a session,
// oldest first.
func (s *Store) GetSessionSummaries(ctx context.Context, sessionID string) ([]*SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `SELECT id, session_id, summary, created_at FROM session_summaries WHERE session_id = ? ORDER BY created_at ASC`, sessionID)
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	defer rows.Close()

	var out []*SessionSummary
	for rows.Next() {
		var sum SessionSummary
		var createdAt int64
		if err := rows.Scan(&sum.ID, &sum.SessionID, &sum.Summary, &createdAt); err != nil {
			return nil, coreerr.Wrap("memory", coreerr.Internal, err)
		}
		sum.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, &sum)
	}
	return out, rows.Err()
}

// HealthCheck satisfies health.Probe.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ID satisfies health.Probe.
func (s *Store) ID() string { return "memory-store" }

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const observationSelect = `SELECT id, content, content_hash, tags, observation_type, metadata, created_at, session_id, embedding_id FROM observations`

func (s *Store) queryObservations(ctx context.Context, query string, args ...any) ([]*Observation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, coreerr.Wrap("memory", coreerr.Internal, err)
	}
	defer rows.Close()

	var out []*Observation
	for rows.Next() {
		obs, err := scanObservationRows(rows)
		if err != nil {
			return nil, coreerr.Wrap("memory", coreerr.Internal, err)
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservationRows(row rowScanner) (*Observation, error) {
	var obs Observation
	var tags, metaJSON string
	var createdAt int64
	if err := row.Scan(&obs.ID, &obs.Content, &obs.ContentHash, &tags, &obs.ObservationType, &metaJSON, &createdAt, &obs.SessionID, &obs.EmbeddingID); err != nil {
		return nil, err
	}
	if tags != "" {
		obs.Tags = strings.Split(tags, ",")
	}
	obs.Metadata = decodeMetadata(metaJSON)
	obs.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &obs, nil
}
