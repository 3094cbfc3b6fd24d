package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/chunker"
	"github.com/sourcelens/sourcelens/internal/collection"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/eventbus"
	"github.com/sourcelens/sourcelens/internal/health"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

const testAdminKey = "secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := vectorstore.NewMemoryStore()
	embedder := embedding.NewNullProvider(8)
	chunks := chunker.New(chunker.DefaultConfig(), nil)
	manager := collection.New(store, embedder, chunks, collection.DefaultConfig(), nil)

	require.NoError(t, store.CreateCollection(context.Background(), "demo", embedder.Dimensions()))

	return New(Config{
		Collections: manager,
		Monitor:     health.New(eventbus.NewInProcBus(1), health.DefaultConfig(), nil),
		Jobs:        NewJobTracker(),
		AdminKey:    testAdminKey,
	})
}

func TestServer_HealthAndLiveAreUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/live", "/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		assert.NotEqual(t, http.StatusUnauthorized, w.Code, "path %s should not require a key", path)
	}
}

func TestServer_AdminRoutesRejectMissingKey(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/collections", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_ListCollectionsWithValidKey(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/collections", http.NoBody)
	req.Header.Set("X-Admin-Key", testAdminKey)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var infos []collection.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "demo", infos[0].Name)
}

func TestServer_ReadyListsRegisteredSubsystems(t *testing.T) {
	bus := eventbus.NewInProcBus(1)
	monitor := health.New(bus, health.DefaultConfig(), nil)
	monitor.Register(&alwaysFailProbe{id: "embedder"})
	monitor.Start(context.Background())
	t.Cleanup(monitor.Stop)

	// Forcing a failure recording directly isn't exposed, and with the
	// default interval no tick has fired yet, so the registered probe
	// still holds its initial healthy state; this checks only that
	// /ready reports the structure and lists the registered subsystem.
	s := New(Config{
		Collections: nil,
		Monitor:     monitor,
		Jobs:        NewJobTracker(),
		AdminKey:    testAdminKey,
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	subsystems, ok := body["subsystems"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, subsystems, "embedder")
}

type alwaysFailProbe struct{ id string }

func (p *alwaysFailProbe) ID() string { return p.id }
func (p *alwaysFailProbe) HealthCheck(ctx context.Context) error {
	return context.DeadlineExceeded
}

func TestServer_JobsEndpointListsTrackedJobs(t *testing.T) {
	s := newTestServer(t)
	s.jobs.Start("demo")

	req := httptest.NewRequest(http.MethodGet, "/jobs", http.NoBody)
	req.Header.Set("X-Admin-Key", testAdminKey)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Jobs []*Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, JobRunning, body.Jobs[0].Status)
}
