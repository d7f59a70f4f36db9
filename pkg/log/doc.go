// Package log provides structured event logging for the device bridge.
//
// Events are captured at three layers: the serial channel (raw lines), the
// protocol codec (complete exchanges) and the bridge core (state changes,
// safety decisions). Applications receive events through the Logger
// interface and choose where they go:
//
//   - FileLogger writes compact CBOR records to a file
//   - SlogAdapter feeds events into a standard log/slog logger
//   - MultiLogger fans out to several sinks
//   - NoopLogger discards everything
//
// Reader decodes FileLogger output, optionally filtered, for offline
// inspection.
//
// Logging must never disrupt bridge operation: implementations swallow
// their own errors, and the bridge treats Log as fire-and-forget.
package log
