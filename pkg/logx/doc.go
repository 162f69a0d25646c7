// Package logx provides a thin structured logging wrapper around zerolog.
//
// Goals:
//   - slog-like ergonomics (Field helpers) without committing call sites
//     to a concrete backend
//   - a zero value that is safe to use (no-op)
//   - console and file sinks behind one Config
package logx
