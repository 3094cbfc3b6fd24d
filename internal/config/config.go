// Package config implements the YAML configuration surface: cache,
// event bus, health, recovery, search, BM25, chunker, embedding, and
// vector-store selection, plus ambient keys (data_dir, log.level,
// log.file_path). Loading follows a fixed precedence chain — hardcoded
// defaults, then user/global config, then project config, then
// environment variables — ending in a validation pass so bad input
// fails fast as coreerr.Configuration at startup rather than surfacing
// later as a confusing runtime error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sourcelens/sourcelens/internal/coreerr"
)

// Config is the root configuration object: per-subsystem tuning plus
// the ambient DataDir/Log/Admin sections every component needs at startup.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	DataDir     string            `yaml:"data_dir" json:"data_dir"`
	Log         LogConfig         `yaml:"log" json:"log"`
	Admin       AdminConfig       `yaml:"admin" json:"admin"`
	Cache       CacheConfig       `yaml:"cache" json:"cache"`
	EventBus    EventBusConfig    `yaml:"event_bus" json:"event_bus"`
	Health      HealthConfig      `yaml:"health" json:"health"`
	Recovery    RecoveryConfig    `yaml:"recovery" json:"recovery"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	BM25        BM25Config        `yaml:"bm25" json:"bm25"`
	Chunker     ChunkerConfig     `yaml:"chunker" json:"chunker"`
	Embedding   EmbeddingConfig   `yaml:"embedding" json:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store" json:"vector_store"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// AdminConfig configures the administrative HTTP surface (§6.2).
type AdminConfig struct {
	Addr string `yaml:"addr" json:"addr"`
	Key  string `yaml:"key" json:"key"`
}

// CacheConfig selects and tunes the Cache Abstraction (§4.8).
type CacheConfig struct {
	Backend           string `yaml:"backend" json:"backend"` // "local" or "remote"
	DefaultTTLSeconds int    `yaml:"default_ttl_seconds" json:"default_ttl_seconds"`
	RedisAddr         string `yaml:"redis_addr" json:"redis_addr"`
}

// EventBusConfig selects and tunes the Event Bus (§4.9).
type EventBusConfig struct {
	Backend  string `yaml:"backend" json:"backend"` // "in_process" or "distributed"
	Capacity int    `yaml:"capacity" json:"capacity"`
	NATSURL  string `yaml:"nats_url" json:"nats_url"`
}

// HealthConfig tunes the Health Monitor (§4.10).
type HealthConfig struct {
	ProbeIntervalSecs int `yaml:"probe_interval_secs" json:"probe_interval_secs"`
	ProbeTimeoutSecs  int `yaml:"probe_timeout_secs" json:"probe_timeout_secs"`
	FailureThreshold  int `yaml:"failure_threshold" json:"failure_threshold"`
}

// RecoveryConfig tunes the Recovery Manager's back-off curve (§4.11).
type RecoveryConfig struct {
	BaseDelayMs int `yaml:"base_delay_ms" json:"base_delay_ms"`
	MaxDelayMs  int `yaml:"max_delay_ms" json:"max_delay_ms"`
	MaxRetries  int `yaml:"max_retries" json:"max_retries"`
}

// SearchConfig tunes hybrid fusion (§4.6).
type SearchConfig struct {
	HybridAlpha     float64 `yaml:"hybrid_alpha" json:"hybrid_alpha"`
	ExpansionFactor int     `yaml:"expansion_factor" json:"expansion_factor"`
}

// BM25Config tunes the keyword scorer (§4.2).
type BM25Config struct {
	K1          float64 `yaml:"k1" json:"k1"`
	B           float64 `yaml:"b" json:"b"`
	MinTokenLen int     `yaml:"min_token_len" json:"min_token_len"`
	Backend     string  `yaml:"backend" json:"backend"` // "scorer" (default) or "bleve"; parsed but not read when building indexes
}

// ChunkerConfig tunes the Chunker and the gitignore-aware scan that
// feeds it.
type ChunkerConfig struct {
	GenericWindowLines int      `yaml:"generic_window_lines" json:"generic_window_lines"`
	ExcludePatterns    []string `yaml:"exclude_patterns" json:"exclude_patterns"`
	MaxFileSizeBytes   int64    `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
}

// EmbeddingConfig selects the Embedder provider (§4.4).
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" json:"provider"` // "null", "openai", "voyage", "ollama", "gemini"
	Model      string `yaml:"model" json:"model"`
	APIKey     string `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	BaseURL    string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
}

// VectorStoreConfig selects the Store backend (§4.5).
type VectorStoreConfig struct {
	Provider      string `yaml:"provider" json:"provider"` // "memory", "hnsw", "encrypted"
	EncryptionKey string `yaml:"encryption_key,omitempty" json:"encryption_key,omitempty"`
	HNSWM         int    `yaml:"hnsw_m" json:"hnsw_m"`
	HNSWEfSearch  int    `yaml:"hnsw_ef_search" json:"hnsw_ef_search"`
}

// defaultExcludePatterns are always excluded from a codebase snapshot
// walk, gitignore rules notwithstanding.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
}

// DefaultMaxFileSize skips pathologically large files during indexing
// rather than risking memory exhaustion on a single file.
const DefaultMaxFileSize = 5 * 1024 * 1024

// NewConfig returns a Config populated with sensible defaults, the
// starting point for every precedence layer Load applies on top.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		DataDir: defaultDataDir(),
		Log: LogConfig{
			Level:    "info",
			FilePath: "",
		},
		Admin: AdminConfig{
			Addr: "127.0.0.1:8765",
			Key:  "",
		},
		Cache: CacheConfig{
			Backend:           "local",
			DefaultTTLSeconds: 3600,
		},
		EventBus: EventBusConfig{
			Backend:  "in_process",
			Capacity: 256,
		},
		Health: HealthConfig{
			ProbeIntervalSecs: 10,
			ProbeTimeoutSecs:  5,
			FailureThreshold:  3,
		},
		Recovery: RecoveryConfig{
			BaseDelayMs: 1000,
			MaxDelayMs:  30000,
			MaxRetries:  5,
		},
		Search: SearchConfig{
			HybridAlpha:     0.5,
			ExpansionFactor: 4,
		},
		BM25: BM25Config{
			K1:          1.2,
			B:           0.75,
			MinTokenLen: 2,
			Backend:     "scorer",
		},
		Chunker: ChunkerConfig{
			GenericWindowLines: 40,
			ExcludePatterns:    defaultExcludePatterns,
			MaxFileSizeBytes:   DefaultMaxFileSize,
		},
		Embedding: EmbeddingConfig{
			Provider:   "null",
			Model:      "",
			Dimensions: 384,
			BatchSize:  32,
		},
		VectorStore: VectorStoreConfig{
			Provider:     "memory",
			HNSWM:        16,
			HNSWEfSearch: 64,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sourcelens")
	}
	return filepath.Join(home, ".sourcelens")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sourcelens", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "sourcelens", "config.yaml")
	}
	return filepath.Join(home, ".config", "sourcelens", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file, or returns a nil
// config and nil error if none exists.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration from dir, applying precedence layers in
// increasing priority: hardcoded defaults, user/global config
// (~/.config/sourcelens/config.yaml), project config (.sourcelens.yaml
// in dir), then SOURCELENS_* environment variables. Validation runs
// last so a bad final value always surfaces as coreerr.Configuration
// territory regardless of which layer introduced it.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, coreerr.Wrap("config", coreerr.Configuration, fmt.Errorf("failed to load user config: %w", err))
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, coreerr.Wrap("config", coreerr.Configuration, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, coreerr.Wrap("config", coreerr.Configuration, fmt.Errorf("invalid configuration: %w", err))
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".sourcelens.yaml")
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".sourcelens.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays every non-zero field of other onto c. Zero values
// are ambiguous between "not set" and "explicitly set to zero" for
// numeric/string fields in a YAML-driven config, so only non-zero
// values are merged throughout.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}
	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.FilePath != "" {
		c.Log.FilePath = other.Log.FilePath
	}

	if other.Admin.Addr != "" {
		c.Admin.Addr = other.Admin.Addr
	}
	if other.Admin.Key != "" {
		c.Admin.Key = other.Admin.Key
	}

	if other.Cache.Backend != "" {
		c.Cache.Backend = other.Cache.Backend
	}
	if other.Cache.DefaultTTLSeconds != 0 {
		c.Cache.DefaultTTLSeconds = other.Cache.DefaultTTLSeconds
	}
	if other.Cache.RedisAddr != "" {
		c.Cache.RedisAddr = other.Cache.RedisAddr
	}

	if other.EventBus.Backend != "" {
		c.EventBus.Backend = other.EventBus.Backend
	}
	if other.EventBus.Capacity != 0 {
		c.EventBus.Capacity = other.EventBus.Capacity
	}
	if other.EventBus.NATSURL != "" {
		c.EventBus.NATSURL = other.EventBus.NATSURL
	}

	if other.Health.ProbeIntervalSecs != 0 {
		c.Health.ProbeIntervalSecs = other.Health.ProbeIntervalSecs
	}
	if other.Health.ProbeTimeoutSecs != 0 {
		c.Health.ProbeTimeoutSecs = other.Health.ProbeTimeoutSecs
	}
	if other.Health.FailureThreshold != 0 {
		c.Health.FailureThreshold = other.Health.FailureThreshold
	}

	if other.Recovery.BaseDelayMs != 0 {
		c.Recovery.BaseDelayMs = other.Recovery.BaseDelayMs
	}
	if other.Recovery.MaxDelayMs != 0 {
		c.Recovery.MaxDelayMs = other.Recovery.MaxDelayMs
	}
	if other.Recovery.MaxRetries != 0 {
		c.Recovery.MaxRetries = other.Recovery.MaxRetries
	}

	if other.Search.HybridAlpha != 0 {
		c.Search.HybridAlpha = other.Search.HybridAlpha
	}
	if other.Search.ExpansionFactor != 0 {
		c.Search.ExpansionFactor = other.Search.ExpansionFactor
	}

	if other.BM25.K1 != 0 {
		c.BM25.K1 = other.BM25.K1
	}
	if other.BM25.B != 0 {
		c.BM25.B = other.BM25.B
	}
	if other.BM25.MinTokenLen != 0 {
		c.BM25.MinTokenLen = other.BM25.MinTokenLen
	}
	if other.BM25.Backend != "" {
		c.BM25.Backend = other.BM25.Backend
	}

	if other.Chunker.GenericWindowLines != 0 {
		c.Chunker.GenericWindowLines = other.Chunker.GenericWindowLines
	}
	if len(other.Chunker.ExcludePatterns) > 0 {
		c.Chunker.ExcludePatterns = append(c.Chunker.ExcludePatterns, other.Chunker.ExcludePatterns...)
	}
	if other.Chunker.MaxFileSizeBytes != 0 {
		c.Chunker.MaxFileSizeBytes = other.Chunker.MaxFileSizeBytes
	}

	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.APIKey != "" {
		c.Embedding.APIKey = other.Embedding.APIKey
	}
	if other.Embedding.BaseURL != "" {
		c.Embedding.BaseURL = other.Embedding.BaseURL
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}
	if other.Embedding.BatchSize != 0 {
		c.Embedding.BatchSize = other.Embedding.BatchSize
	}

	if other.VectorStore.Provider != "" {
		c.VectorStore.Provider = other.VectorStore.Provider
	}
	if other.VectorStore.EncryptionKey != "" {
		c.VectorStore.EncryptionKey = other.VectorStore.EncryptionKey
	}
	if other.VectorStore.HNSWM != 0 {
		c.VectorStore.HNSWM = other.VectorStore.HNSWM
	}
	if other.VectorStore.HNSWEfSearch != 0 {
		c.VectorStore.HNSWEfSearch = other.VectorStore.HNSWEfSearch
	}
}

// applyEnvOverrides applies SOURCELENS_* environment variable
// overrides, highest precedence of every layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SOURCELENS_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("SOURCELENS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SOURCELENS_ADMIN_ADDR"); v != "" {
		c.Admin.Addr = v
	}
	if v := os.Getenv("SOURCELENS_ADMIN_KEY"); v != "" {
		c.Admin.Key = v
	}
	if v := os.Getenv("SOURCELENS_EMBEDDING_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("SOURCELENS_EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("SOURCELENS_EMBEDDING_API_KEY"); v != "" {
		c.Embedding.APIKey = v
	}
	if v := os.Getenv("SOURCELENS_EMBEDDING_BASE_URL"); v != "" {
		c.Embedding.BaseURL = v
	}
	if v := os.Getenv("SOURCELENS_VECTOR_STORE_PROVIDER"); v != "" {
		c.VectorStore.Provider = v
	}
	if v := os.Getenv("SOURCELENS_HYBRID_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Search.HybridAlpha = f
		}
	}
}

// FindProjectRoot walks up from startDir looking for a .git directory
// or a .sourcelens.yaml/.yml file, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".sourcelens.yaml")) ||
			fileExists(filepath.Join(currentDir, ".sourcelens.yml")) {
			return currentDir, nil
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate checks that the final merged configuration is internally
// consistent, returning a plain error; Load wraps it as
// coreerr.Configuration.
func (c *Config) Validate() error {
	if c.Search.HybridAlpha < 0 || c.Search.HybridAlpha > 1 {
		return fmt.Errorf("search.hybrid_alpha must be between 0 and 1, got %f", c.Search.HybridAlpha)
	}
	if c.Search.ExpansionFactor < 1 {
		return fmt.Errorf("search.expansion_factor must be at least 1, got %d", c.Search.ExpansionFactor)
	}
	if c.BM25.K1 < 0 {
		return fmt.Errorf("bm25.k1 must be non-negative, got %f", c.BM25.K1)
	}
	if c.BM25.B < 0 || c.BM25.B > 1 {
		return fmt.Errorf("bm25.b must be between 0 and 1, got %f", c.BM25.B)
	}
	if c.Recovery.MaxRetries < 0 {
		return fmt.Errorf("recovery.max_retries must be non-negative, got %d", c.Recovery.MaxRetries)
	}
	if c.Recovery.BaseDelayMs < 0 || c.Recovery.MaxDelayMs < 0 {
		return fmt.Errorf("recovery.base_delay_ms and max_delay_ms must be non-negative")
	}

	validCacheBackends := map[string]bool{"local": true, "remote": true}
	if !validCacheBackends[strings.ToLower(c.Cache.Backend)] {
		return fmt.Errorf("cache.backend must be 'local' or 'remote', got %s", c.Cache.Backend)
	}

	validBusBackends := map[string]bool{"in_process": true, "distributed": true}
	if !validBusBackends[strings.ToLower(c.EventBus.Backend)] {
		return fmt.Errorf("event_bus.backend must be 'in_process' or 'distributed', got %s", c.EventBus.Backend)
	}

	validEmbeddingProviders := map[string]bool{"null": true, "openai": true, "voyage": true, "ollama": true, "gemini": true}
	if !validEmbeddingProviders[strings.ToLower(c.Embedding.Provider)] {
		return fmt.Errorf("embedding.provider must be one of null/openai/voyage/ollama/gemini, got %s", c.Embedding.Provider)
	}

	validStoreProviders := map[string]bool{"memory": true, "hnsw": true, "encrypted": true}
	if !validStoreProviders[strings.ToLower(c.VectorStore.Provider)] {
		return fmt.Errorf("vector_store.provider must be one of memory/hnsw/encrypted, got %s", c.VectorStore.Provider)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level must be debug/info/warn/error, got %s", c.Log.Level)
	}

	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
