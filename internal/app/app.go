// Package app is the composition root: it takes a loaded config.Config
// and wires every subsystem (cache, event bus, health, recovery,
// lifecycle, embedding, vector store, chunker, collections, search,
// memory, admin HTTP) into a single running App, following a
// load-config-then-construct-every-subsystem sequence. It exposes that
// sequence as a library a thin CLI or test harness can call, rather
// than hand-rolling it inline in a cobra command.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sourcelens/sourcelens/internal/bm25"
	"github.com/sourcelens/sourcelens/internal/cache"
	"github.com/sourcelens/sourcelens/internal/chunker"
	"github.com/sourcelens/sourcelens/internal/collection"
	"github.com/sourcelens/sourcelens/internal/config"
	"github.com/sourcelens/sourcelens/internal/coreerr"
	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/eventbus"
	"github.com/sourcelens/sourcelens/internal/health"
	"github.com/sourcelens/sourcelens/internal/httpapi"
	"github.com/sourcelens/sourcelens/internal/lifecycle"
	"github.com/sourcelens/sourcelens/internal/memory"
	"github.com/sourcelens/sourcelens/internal/metrics"
	"github.com/sourcelens/sourcelens/internal/providers"
	"github.com/sourcelens/sourcelens/internal/recovery"
	"github.com/sourcelens/sourcelens/internal/search"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

// App bundles every constructed subsystem. Fields are exported so a
// thin CLI harness or test can reach past the composition root when it
// needs something narrower than the full wiring (e.g. calling
// Collections.Index directly without going through HTTP).
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Bus         eventbus.Bus
	Cache       cache.Cache
	Embedder    embedding.Embedder
	Vectors     vectorstore.Store
	Chunks      *chunker.Service
	Collections *collection.Manager
	Search      *search.Engine
	Memory      *memory.Store
	Monitor     *health.Monitor
	Recovery    *recovery.Manager
	Lifecycle   *lifecycle.Manager
	Registry    *lifecycle.Registry
	Metrics     *metrics.Registry
	AdminServer *httpapi.Server

	embedderGate *providers.EmbedderGate
	storeGate    *providers.StoreGate
}

// New constructs every subsystem from cfg but starts nothing
// background-running yet; call Start to begin the health monitor,
// recovery manager, and event consumption.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bus, err := buildEventBus(cfg.EventBus)
	if err != nil {
		return nil, fmt.Errorf("app: event bus: %w", err)
	}

	cacheImpl, err := buildCache(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("app: cache: %w", err)
	}

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("app: embedder: %w", err)
	}
	embedderGate := providers.NewEmbedderGate("embedder:"+cfg.Embedding.Provider, embedder)

	store, err := buildVectorStore(cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("app: vector store: %w", err)
	}
	storeGate := providers.NewStoreGate("vectorstore:"+cfg.VectorStore.Provider, store)

	chunkSvc := chunker.New(chunker.Config{GenericWindowLines: cfg.Chunker.GenericWindowLines}, logger)

	collectionCfg := collection.DefaultConfig()
	collectionCfg.MaxFileSize = cfg.Chunker.MaxFileSizeBytes
	collectionCfg.ExcludePatterns = cfg.Chunker.ExcludePatterns
	collections := collection.New(storeGate, embedderGate, chunkSvc, collectionCfg, logger)

	searchCfg := search.DefaultConfig()
	searchCfg.HybridAlpha = cfg.Search.HybridAlpha
	searchCfg.ExpansionFactor = cfg.Search.ExpansionFactor
	searchCfg.BM25 = bm25.Config{
		K1:          cfg.BM25.K1,
		B:           cfg.BM25.B,
		MinTokenLen: cfg.BM25.MinTokenLen,
	}
	searchEngine := search.New(storeGate, embedderGate, searchCfg, logger)

	memPath := ""
	if cfg.DataDir != "" {
		memPath = filepath.Join(cfg.DataDir, "memory.db")
	}
	memStore, err := memory.New(memPath, storeGate, embedderGate, searchEngine, logger)
	if err != nil {
		return nil, fmt.Errorf("app: memory store: %w", err)
	}

	metricsReg := metrics.New(prometheus.DefaultRegisterer)

	monitor := health.New(bus, health.Config{
		Interval:         time.Duration(cfg.Health.ProbeIntervalSecs) * time.Second,
		Timeout:          time.Duration(cfg.Health.ProbeTimeoutSecs) * time.Second,
		FailureThreshold: cfg.Health.FailureThreshold,
	}, logger)
	monitor.Register(embedderGate)
	monitor.Register(storeGate)
	monitor.Register(memStore)

	registry := lifecycle.NewRegistry()
	registry.Register(embedderGate)
	registry.Register(storeGate)

	factories := map[string]lifecycle.Factory{
		embedderGate.ID(): func(ctx context.Context) (lifecycle.Provider, error) {
			e, ferr := buildEmbedder(cfg.Embedding)
			if ferr != nil {
				return nil, ferr
			}
			return providers.NewEmbedderGate(embedderGate.ID(), e), nil
		},
		storeGate.ID(): func(ctx context.Context) (lifecycle.Provider, error) {
			s, ferr := buildVectorStore(cfg.VectorStore)
			if ferr != nil {
				return nil, ferr
			}
			return providers.NewStoreGate(storeGate.ID(), s), nil
		},
	}
	lifecycleMgr := lifecycle.New(registry, factories, lifecycle.DefaultConfig(), bus, logger)

	recoveryMgr := recovery.New(bus, lifecycleMgr, recovery.Config{
		BaseDelay:  time.Duration(cfg.Recovery.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Recovery.MaxDelayMs) * time.Millisecond,
		MaxRetries: cfg.Recovery.MaxRetries,
	}, logger)

	adminServer := httpapi.New(httpapi.Config{
		Collections: collections,
		Monitor:     monitor,
		Jobs:        httpapi.NewJobTracker(),
		Metrics:     metricsReg,
		AdminKey:    cfg.Admin.Key,
	})

	return &App{
		Config:       cfg,
		Logger:       logger,
		Bus:          bus,
		Cache:        cacheImpl,
		Embedder:     embedderGate,
		Vectors:      storeGate,
		Chunks:       chunkSvc,
		Collections:  collections,
		Search:       searchEngine,
		Memory:       memStore,
		Monitor:      monitor,
		Recovery:     recoveryMgr,
		Lifecycle:    lifecycleMgr,
		Registry:     registry,
		Metrics:      metricsReg,
		AdminServer:  adminServer,
		embedderGate: embedderGate,
		storeGate:    storeGate,
	}, nil
}

// Start begins the health monitor and recovery manager's background
// loops. Cancel ctx (or call Stop) to tear them down.
func (a *App) Start(ctx context.Context) {
	a.Monitor.Start(ctx)
	a.Recovery.Start(ctx)
}

// Stop closes the event bus and the gated providers, releasing any
// resources they hold. The health monitor and recovery manager are
// stopped by cancelling the context passed to Start.
func (a *App) Stop(ctx context.Context) error {
	_ = a.embedderGate.Close(ctx)
	_ = a.storeGate.Close(ctx)
	return a.Bus.Close()
}

// AdminHandler exposes the administrative HTTP surface for a caller
// (test harness, real server) to mount.
func (a *App) AdminHandler() http.Handler {
	return a.AdminServer.Handler()
}

func buildEventBus(cfg config.EventBusConfig) (eventbus.Bus, error) {
	switch cfg.Backend {
	case "", "in_process":
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 256
		}
		return eventbus.NewInProcBus(capacity), nil
	case "distributed":
		return nil, coreerr.New(coreerr.Configuration, "distributed event bus requires a live NATS connection; construct eventbus.NewNATSBus directly with a *nats.Conn")
	default:
		return nil, coreerr.New(coreerr.Configuration, "unknown event_bus.backend: "+cfg.Backend)
	}
}

func buildCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "", "local":
		return cache.NewLocalCache(1024), nil
	case "remote":
		if cfg.RedisAddr == "" {
			return nil, coreerr.New(coreerr.Configuration, "cache.redis_addr is required when cache.backend is remote")
		}
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisCache(client), nil
	default:
		return nil, coreerr.New(coreerr.Configuration, "unknown cache.backend: "+cfg.Backend)
	}
}

func buildEmbedder(cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "", "null":
		dims := cfg.Dimensions
		if dims <= 0 {
			dims = 384
		}
		return embedding.NewNullProvider(dims), nil
	case "openai", "voyage", "gemini":
		// All three speak an OpenAI-compatible embeddings wire format
		// closely enough that a distinct request builder isn't
		// warranted here; BaseURL is what actually distinguishes them.
		return embedding.NewHTTPProvider(cfg.Provider, embedding.HTTPConfig{
			BaseURL:        cfg.BaseURL,
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			Dimensions:     cfg.Dimensions,
			RequestBuilder: embedding.OpenAIRequestBuilder,
			ResponseParser: embedding.OpenAIResponseParser,
		}), nil
	case "ollama":
		return embedding.NewHTTPProvider(cfg.Provider, embedding.HTTPConfig{
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Dimensions:     cfg.Dimensions,
			RequestBuilder: embedding.OllamaRequestBuilder,
			ResponseParser: embedding.OllamaResponseParser,
		}), nil
	default:
		return nil, coreerr.New(coreerr.Configuration, "unknown embedding.provider: "+cfg.Provider)
	}
}

func buildVectorStore(cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return vectorstore.NewMemoryStore(), nil
	case "hnsw":
		m, ef := cfg.HNSWM, cfg.HNSWEfSearch
		if m <= 0 {
			m = 16
		}
		if ef <= 0 {
			ef = 64
		}
		return vectorstore.NewHNSWStore(m, ef), nil
	case "encrypted":
		if cfg.EncryptionKey == "" {
			return nil, coreerr.New(coreerr.Configuration, "vector_store.encryption_key is required when vector_store.provider is encrypted")
		}
		inner := vectorstore.NewMemoryStore()
		return vectorstore.NewEncryptedStore(inner, []byte(cfg.EncryptionKey))
	default:
		return nil, coreerr.New(coreerr.Configuration, "unknown vector_store.provider: "+cfg.Provider)
	}
}
