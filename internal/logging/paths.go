package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.sourcelens/logs/).
// Falls back to temp directory if home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".sourcelens", "logs")
	}
	return filepath.Join(home, ".sourcelens", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}

// ProviderLogPath returns the log path for out-of-process provider
// adapters (e.g. a local embedding or recovery sidecar).
func ProviderLogPath() string {
	return filepath.Join(DefaultLogDir(), "provider.log")
}

// LogSource represents the source of logs to view.
type LogSource string

const (
	// LogSourceGo is the server's own logs (default).
	LogSourceGo LogSource = "go"
	// LogSourceProvider is an out-of-process provider adapter's logs.
	LogSourceProvider LogSource = "provider"
	// LogSourceAll combines all log sources.
	LogSourceAll LogSource = "all"
)

// FindLogFile attempts to find the log file for viewing.
// Priority:
// 1. Explicit path (if provided)
// 2. ~/.sourcelens/logs/server.log (global)
//
// Returns an error if no log file is found.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	// Try global path
	globalPath := DefaultLogPath()
	if _, err := os.Stat(globalPath); err == nil {
		return globalPath, nil
	}

	return "", fmt.Errorf("no log file found. Server may not have run yet.\nExpected at: %s", globalPath)
}

// FindLogFileBySource finds log files based on the source type.
// Returns a list of log file paths that exist.
func FindLogFileBySource(source LogSource, explicit string) ([]string, error) {
	// Explicit path takes precedence
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return []string{explicit}, nil
		}
		return nil, fmt.Errorf("log file not found: %s", explicit)
	}

	var paths []string
	var checked []string

	switch source {
	case LogSourceGo:
		goPath := DefaultLogPath()
		checked = append(checked, goPath)
		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}

	case LogSourceProvider:
		providerPath := ProviderLogPath()
		checked = append(checked, providerPath)
		if _, err := os.Stat(providerPath); err == nil {
			paths = append(paths, providerPath)
		}

	case LogSourceAll:
		goPath := DefaultLogPath()
		providerPath := ProviderLogPath()
		checked = append(checked, goPath, providerPath)

		if _, err := os.Stat(goPath); err == nil {
			paths = append(paths, goPath)
		}
		if _, err := os.Stat(providerPath); err == nil {
			paths = append(paths, providerPath)
		}

	default:
		return nil, fmt.Errorf("unknown log source: %s (use: go, provider, all)", source)
	}

	if len(paths) == 0 {
		hint := getLogHint(source)
		return nil, fmt.Errorf("no log files found for source '%s'.\nChecked: %v\n\n%s", source, checked, hint)
	}

	return paths, nil
}

// ParseLogSource parses a string into a LogSource.
func ParseLogSource(s string) LogSource {
	switch s {
	case "provider":
		return LogSourceProvider
	case "all":
		return LogSourceAll
	default:
		return LogSourceGo
	}
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	dir := DefaultLogDir()
	return os.MkdirAll(dir, 0o755)
}

// getLogHint returns a helpful message on how to generate logs for the given source.
func getLogHint(source LogSource) string {
	switch source {
	case LogSourceGo:
		return "To generate server logs:\n  sourcelens-check --root <dir>"
	case LogSourceProvider:
		return "To generate provider logs, check the configured provider's own logging setup."
	case LogSourceAll:
		return "To generate logs:\n  Server:   sourcelens-check --root <dir>\n  Provider: see the configured provider's own logging setup"
	default:
		return ""
	}
}
