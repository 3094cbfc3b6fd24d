// Package logging provides file-based logging with size-based rotation.
// Setup writes logs to a rotating file in the log directory and, when
// Config.WriteToStderr is set, to stderr as well. The sourcelens-check
// command always calls Setup with stderr output enabled.
package logging
