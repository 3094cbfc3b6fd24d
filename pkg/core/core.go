// Package core is the plain-Go-interface boundary a tool dispatcher
// mounts its handlers on: a thin MCP tool dispatcher (transports,
// argument parsing, provenance validation) is deliberately out of
// scope here, but whatever implements it needs a small set of ordinary
// Go calls to drive the indexing/search/memory/collection core
// underneath. Core wraps an *internal/app.App and exposes exactly that
// surface, mapping loosely onto the `index`, `search`, `memory`, and
// `project` tool-call families (agent/entity/session/validate/vcs stay
// external).
package core

import (
	"context"

	"github.com/sourcelens/sourcelens/internal/app"
	"github.com/sourcelens/sourcelens/internal/collection"
	"github.com/sourcelens/sourcelens/internal/fingerprint"
	"github.com/sourcelens/sourcelens/internal/memory"
	"github.com/sourcelens/sourcelens/internal/search"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

// Core is the callable surface a dispatcher mounts its tool handlers
// on. Every method forwards to the corresponding subsystem the
// composition root already wired; Core adds no logic of its own beyond
// picking which subsystem answers which call.
type Core struct {
	app *app.App
}

// New wraps an already-constructed App. Use app.New to build one from
// configuration first.
func New(a *app.App) *Core {
	return &Core{app: a}
}

// Index runs an incremental index pass over rootPath into the named
// collection, creating it if absent.
func (c *Core) Index(ctx context.Context, rootPath, collectionName string) (collection.Report, error) {
	return c.app.Collections.Index(ctx, rootPath, collectionName)
}

// Watch starts a live-reindex trigger over rootPath for collectionName,
// feeding filesystem change batches into Index as they're debounced.
// The returned stop function tears the watcher down.
func (c *Core) Watch(ctx context.Context, rootPath, collectionName string) (stop func() error, err error) {
	return c.app.Collections.Watch(ctx, rootPath, collectionName)
}

// ListCollections returns every known collection's summary info.
func (c *Core) ListCollections(ctx context.Context) ([]collection.Info, error) {
	return c.app.Collections.List(ctx)
}

// ListFiles lists up to limit file paths indexed under collectionName.
func (c *Core) ListFiles(ctx context.Context, collectionName string, limit int) ([]string, error) {
	return c.app.Collections.Files(ctx, collectionName, limit)
}

// FileChunks returns the chunks indexed for a single file path.
func (c *Core) FileChunks(ctx context.Context, collectionName, filePath string) ([]vectorstore.Vector, error) {
	return c.app.Collections.Chunks(ctx, collectionName, filePath)
}

// Tree returns the hierarchical file tree for a collection.
func (c *Core) Tree(ctx context.Context, collectionName string) (*collection.TreeNode, error) {
	return c.app.Collections.Tree(ctx, collectionName)
}

// ClearCollection empties a collection's vectors without deleting the
// collection itself.
func (c *Core) ClearCollection(ctx context.Context, collectionName string) error {
	return c.app.Collections.Clear(ctx, collectionName)
}

// DeleteCollection removes a collection entirely.
func (c *Core) DeleteCollection(ctx context.Context, collectionName string) error {
	return c.app.Collections.Delete(ctx, collectionName)
}

// FindDuplicates runs the Fingerprinter over a collection's stored
// chunks and returns verified duplicate pairs. window <= 0 uses the
// package default token-window size.
func (c *Core) FindDuplicates(ctx context.Context, collectionName string, window int) ([]fingerprint.Match, error) {
	return c.app.Collections.FindDuplicates(ctx, collectionName, window)
}

// Search runs hybrid vector+BM25 search against a collection.
func (c *Core) Search(ctx context.Context, collectionName, queryText string, k int) ([]search.ScoredChunk, error) {
	return c.app.Search.Search(ctx, collectionName, queryText, k)
}

// RecordObservation stores a piece of session memory, deduplicated by
// content hash.
func (c *Core) RecordObservation(ctx context.Context, content, observationType, sessionID string, tags []string, metadata map[string]string) (*memory.Observation, error) {
	return c.app.Memory.StoreObservation(ctx, content, observationType, sessionID, tags, metadata)
}

// RecallByTag returns up to limit observations carrying tag.
func (c *Core) RecallByTag(ctx context.Context, tag string, limit int) ([]*memory.Observation, error) {
	return c.app.Memory.GetByTag(ctx, tag, limit)
}

// RecallSemantic runs a semantic (embedding-backed) search over stored
// observations.
func (c *Core) RecallSemantic(ctx context.Context, queryText string, k int) ([]*memory.Observation, error) {
	return c.app.Memory.SearchSemantic(ctx, queryText, k)
}

// RecordSessionSummary stores a rollup summary for sessionID.
func (c *Core) RecordSessionSummary(ctx context.Context, sessionID, summary string) (*memory.SessionSummary, error) {
	return c.app.Memory.StoreSessionSummary(ctx, sessionID, summary)
}

// SessionSummaries returns every stored summary for sessionID, oldest first.
func (c *Core) SessionSummaries(ctx context.Context, sessionID string) ([]*memory.SessionSummary, error) {
	return c.app.Memory.GetSessionSummaries(ctx, sessionID)
}

// HealthStatus reports the last-known health of every registered
// provider, keyed by provider id.
func (c *Core) HealthStatus() map[string]bool {
	status := make(map[string]bool)
	for _, id := range c.app.Monitor.IDs() {
		status[id] = c.app.Monitor.IsHealthy(id)
	}
	return status
}

// Start begins the background health/recovery loops; Stop tears down
// the whole wired App, including the gated providers and event bus.
func (c *Core) Start(ctx context.Context) { c.app.Start(ctx) }

func (c *Core) Stop(ctx context.Context) error { return c.app.Stop(ctx) }
