package chunker

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sourcelens/sourcelens/internal/coreerr"
)

// Config tunes the generic fallback chunker (chunker.generic_window_lines).
type Config struct {
	GenericWindowLines int
}

// DefaultConfig returns the default tuning.
func DefaultConfig() Config {
	return Config{GenericWindowLines: GenericWindowLines}
}

// Service is the Chunker implementation used by the rest of the server: it
// dispatches to AST chunking when a tree-sitter grammar is registered for
// the file's language, and falls back to generic line-window chunking
// otherwise or on any parse failure.
type Service struct {
	cfg      Config
	ast      *astChunker
	registry *LanguageRegistry
	logger   *slog.Logger
}

// New builds a Service with the default language registry.
func New(cfg Config, logger *slog.Logger) *Service {
	if cfg.GenericWindowLines <= 0 {
		cfg.GenericWindowLines = GenericWindowLines
	}
	if logger == nil {
		logger = slog.Default()
	}
	registry := DefaultRegistry()
	return &Service{
		cfg:      cfg,
		ast:      newASTChunker(registry),
		registry: registry,
		logger:   logger,
	}
}

// LanguageForExtension maps a file extension to a language tag understood
// by the AST chunker, or "" if none is registered.
func (s *Service) LanguageForExtension(ext string) string {
	return s.registry.ByExtension(ext)
}

// Chunk splits file into an ordered, non-overlapping sequence of chunks.
// Absolute file paths are rejected here, at the boundary, before a chunk
// can ever reach the vector store.
func (s *Service) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if err := validateRelativePath(file.Path); err != nil {
		return nil, err
	}
	if len(file.Content) == 0 {
		return nil, nil
	}

	if file.Language == "" {
		file.Language = s.LanguageForExtension(filepath.Ext(file.Path))
	}

	if chunks, ok := s.ast.chunk(ctx, file); ok {
		return chunks, nil
	}

	s.logger.Debug("chunker: falling back to generic chunking",
		slog.String("path", file.Path), slog.String("language", file.Language))
	return genericChunk(file, s.cfg.GenericWindowLines), nil
}

// SupportedExtensions lists extensions with an AST Processor. The generic
// fallback handles every other extension, so this is informational only.
func (s *Service) SupportedExtensions() []string {
	return s.registry.SupportedExtensions()
}

// validateRelativePath enforces the Chunk invariant that file_path never
// traverses parents and is never absolute.
func validateRelativePath(path string) error {
	if path == "" {
		return coreerr.New(coreerr.InvalidArgument, "file_path must not be empty")
	}
	if filepath.IsAbs(path) {
		return coreerr.Newf(coreerr.InvalidArgument, "file_path must be relative, got absolute path %q", path)
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return coreerr.Newf(coreerr.InvalidArgument, "file_path must not traverse parent directories, got %q", path)
	}
	return nil
}
