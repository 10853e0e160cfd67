package application

import "log/slog"

// ResolveLogger lets use cases and workers be built as zero-value structs in
// tests; a missing logger falls back to the process default.
func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
