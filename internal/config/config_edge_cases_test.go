package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonMarshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Edge Case Tests - scenarios that could cause silent failures or
// unexpected behavior beyond the happy-path coverage in config_test.go.

// =============================================================================
// FindProjectRoot Edge Cases
// =============================================================================

func TestFindProjectRoot_NonExistentDir_ReturnsRootOrError(t *testing.T) {
	nonExistent := "/nonexistent/path/that/does/not/exist"

	root, err := FindProjectRoot(nonExistent)

	// filepath.Abs succeeds even for non-existent paths, so this may not error.
	if err != nil {
		assert.Error(t, err)
	} else {
		assert.NotEmpty(t, root)
	}
}

func TestFindProjectRoot_DeepNesting_FindsGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	deepNested := filepath.Join(tmpDir, "a", "b", "c", "d", "e", "f", "g", "h")
	require.NoError(t, os.Mkdir(gitDir, 0o755))
	require.NoError(t, os.MkdirAll(deepNested, 0o755))

	root, err := FindProjectRoot(deepNested)

	require.NoError(t, err)
	assert.Equal(t, tmpDir, root)
}

func TestFindProjectRoot_RelativePath_ResolvesToAbsolute(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))

	oldWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(tmpDir))

	root, err := FindProjectRoot(".")

	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(root), "Root should be absolute path")
	expectedRoot, _ := filepath.EvalSymlinks(tmpDir)
	actualRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, expectedRoot, actualRoot)
}

func TestFindProjectRoot_EmptyString_UsesCurrentDir(t *testing.T) {
	tmpDir := t.TempDir()
	gitDir := filepath.Join(tmpDir, ".git")
	require.NoError(t, os.Mkdir(gitDir, 0o755))

	oldWd, _ := os.Getwd()
	defer func() { _ = os.Chdir(oldWd) }()
	require.NoError(t, os.Chdir(tmpDir))

	root, err := FindProjectRoot("")

	require.NoError(t, err)
	expectedRoot, _ := filepath.EvalSymlinks(tmpDir)
	actualRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, expectedRoot, actualRoot)
}

// =============================================================================
// Config Merge Edge Cases
// =============================================================================

func TestLoad_MergeExcludePatterns_AppendsToDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
chunker:
  exclude_patterns:
    - "**/.custom_ignore/**"
embedding:
  provider: ollama
`
	err := os.WriteFile(filepath.Join(tmpDir, ".sourcelens.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	assert.Contains(t, cfg.Chunker.ExcludePatterns, "**/node_modules/**", "default exclude should be preserved")
	assert.Contains(t, cfg.Chunker.ExcludePatterns, "**/.git/**", "default exclude should be preserved")
	assert.Contains(t, cfg.Chunker.ExcludePatterns, "**/.custom_ignore/**", "custom exclude should be added")
}

func TestLoad_ZeroValuesNotMerged(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
search:
  hybrid_alpha: 0
  expansion_factor: 0
bm25:
  k1: 0
embedding:
  provider: ollama
`
	err := os.WriteFile(filepath.Join(tmpDir, ".sourcelens.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.NoError(t, err)
	defaults := NewConfig()
	assert.Equal(t, defaults.Search.HybridAlpha, cfg.Search.HybridAlpha, "zero should not override default hybrid_alpha")
	assert.Equal(t, defaults.Search.ExpansionFactor, cfg.Search.ExpansionFactor, "zero should not override default expansion_factor")
	assert.Equal(t, defaults.BM25.K1, cfg.BM25.K1, "zero should not override default bm25 k1")
}

func TestLoad_HybridAlphaAboveOne_FailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
search:
  hybrid_alpha: 1.5
`
	err := os.WriteFile(filepath.Join(tmpDir, ".sourcelens.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
}

func TestLoad_NegativeRecoveryMaxRetries_FailsValidation(t *testing.T) {
	tmpDir := t.TempDir()
	configContent := `
recovery:
  max_retries: -1
`
	err := os.WriteFile(filepath.Join(tmpDir, ".sourcelens.yaml"), []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := Load(tmpDir)

	require.Error(t, err)
	require.Nil(t, cfg)
}

// =============================================================================
// Config File Permission Edge Cases
// =============================================================================

func TestLoad_UnreadableConfigFile_ReturnsError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("test requires non-root user")
	}

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ".sourcelens.yaml")
	err := os.WriteFile(configPath, []byte("data_dir: /tmp/x"), 0o000)
	require.NoError(t, err)
	defer func() { _ = os.Chmod(configPath, 0o644) }()

	cfg, err := Load(tmpDir)

	require.Error(t, err, "Load should fail for unreadable config file")
	assert.Nil(t, cfg)
}

// =============================================================================
// Config JSON Marshaling Edge Cases
// =============================================================================

func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.HybridAlpha = 0.3
	cfg.BM25.K1 = 1.5
	cfg.Embedding.Provider = "openai"

	data, err := jsonMarshal(cfg)
	require.NoError(t, err)

	var parsed Config
	err = jsonUnmarshal(data, &parsed)
	require.NoError(t, err)

	assert.InDelta(t, 0.3, parsed.Search.HybridAlpha, 0.0001)
	assert.InDelta(t, 1.5, parsed.BM25.K1, 0.0001)
	assert.Equal(t, "openai", parsed.Embedding.Provider)
}

func TestConfig_UnmarshalJSON_InvalidJSON_ReturnsError(t *testing.T) {
	invalidJSON := []byte("{invalid json")

	var cfg Config
	err := jsonUnmarshal(invalidJSON, &cfg)

	require.Error(t, err, "unmarshal should fail for invalid JSON")
}

// =============================================================================
// Defaults Edge Cases
// =============================================================================

func TestNewConfig_DataDir_IsNonEmpty(t *testing.T) {
	cfg := NewConfig()

	assert.NotEmpty(t, cfg.DataDir)
}

func TestNewConfig_ChunkerExcludePatterns_CoverCommonDirs(t *testing.T) {
	cfg := NewConfig()

	assert.Contains(t, cfg.Chunker.ExcludePatterns, "**/node_modules/**")
	assert.Contains(t, cfg.Chunker.ExcludePatterns, "**/.git/**")
}
