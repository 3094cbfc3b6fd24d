// Package httpapi implements the administrative HTTP surface (spec
// §6.2): liveness/readiness probes, Prometheus exposition, and
// read-only collection/job introspection, all gated behind a shared
// admin key. Grounded on the go-chi router/middleware/route-group
// shape used for admin surfaces across the pack.
package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/alecthomas/chroma/v2/formatters/html"
	chromalexers "github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sourcelens/sourcelens/internal/collection"
	"github.com/sourcelens/sourcelens/internal/health"
	"github.com/sourcelens/sourcelens/internal/metrics"
)

var startedAt = time.Now()

// Server wires the admin HTTP surface to its backing components.
type Server struct {
	mux         *chi.Mux
	collections *collection.Manager
	monitor     *health.Monitor
	jobs        *JobTracker
	metrics     *metrics.Registry
	adminKey    string
}

// Config carries the dependencies and the shared admin key every
// request under this surface must present via X-Admin-Key.
type Config struct {
	Collections *collection.Manager
	Monitor     *health.Monitor
	Jobs        *JobTracker
	Metrics     *metrics.Registry
	AdminKey    string
}

func New(cfg Config) *Server {
	s := &Server{
		mux:         chi.NewRouter(),
		collections: cfg.Collections,
		monitor:     cfg.Monitor,
		jobs:        cfg.Jobs,
		metrics:     cfg.Metrics,
		adminKey:    cfg.AdminKey,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.Use(chimiddleware.Recoverer)
	s.mux.Use(chimiddleware.RequestID)
	s.mux.Use(chimiddleware.Timeout(30 * time.Second))

	// Liveness/readiness are unauthenticated so orchestrators (k8s
	// probes, load balancers) don't need the admin key.
	s.mux.Get("/health", s.handleHealth)
	s.mux.Get("/live", s.handleLive)
	s.mux.Get("/ready", s.handleReady)

	s.mux.Group(func(admin chi.Router) {
		admin.Use(s.requireAdminKey)
		admin.Handle("/metrics", promhttp.Handler())
		admin.Get("/collections", s.handleListCollections)
		admin.Get("/collections/{name}/files", s.handleListFiles)
		admin.Get("/collections/{name}/chunks/*", s.handleChunks)
		admin.Get("/collections/{name}/tree", s.handleTree)
		admin.Get("/jobs", s.handleJobs)
	})
}

func (s *Server) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" || r.Header.Get("X-Admin-Key") != s.adminKey {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid X-Admin-Key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(startedAt).String(),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "alive"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "subsystems": map[string]bool{}})
		return
	}
	subsystems := make(map[string]bool)
	allHealthy := true
	for _, id := range s.monitor.IDs() {
		healthy := s.monitor.IsHealthy(id)
		subsystems[id] = healthy
		allHealthy = allHealthy && healthy
	}
	status := http.StatusOK
	statusText := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		statusText = "not_ready"
	}
	writeJSON(w, status, map[string]any{"status": statusText, "subsystems": subsystems})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	infos, err := s.collections.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	files, err := s.collections.Files(r.Context(), name, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FILES_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path := chi.URLParam(r, "*")
	chunks, err := s.collections.Chunks(r.Context(), name, path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "GET_CHUNKS_FAILED", err.Error())
		return
	}

	highlight := r.URL.Query().Get("highlight") == "true"
	type chunkView struct {
		ID          string            `json:"id"`
		Content     string            `json:"content"`
		Highlighted string            `json:"highlighted,omitempty"`
		Metadata    map[string]string `json:"metadata"`
	}
	views := make([]chunkView, len(chunks))
	for i, c := range chunks {
		content := c.Metadata["content"]
		view := chunkView{ID: c.ID, Content: content, Metadata: c.Metadata}
		if highlight {
			if rendered, err := highlightSource(path, content); err == nil {
				view.Highlighted = rendered
			}
		}
		views[i] = view
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": views})
}

// highlightSource renders content as HTML with syntax highlighting
// inferred from the file path's extension, falling back to a
// plain-text lexer when nothing matches.
func highlightSource(path, content string) (string, error) {
	lexer := chromalexers.Match(path)
	if lexer == nil {
		lexer = chromalexers.Fallback
	}
	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		return "", err
	}
	formatter := html.New(html.WithClasses(true))
	style := styles.Get("github")

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tree, err := s.collections.Tree(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "TREE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": []*Job{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.jobs.List()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
