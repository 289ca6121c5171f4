// Package logging provides a minimal logging interface and slog adapters.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that agents, tools and clients use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (tests, library defaults)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "text"})
//	client := ntfy.NewClient(func(o *ntfy.Options) { o.Logger = logger })
//
// The interface is kept small so callers can plug any structured logger.
package logging
