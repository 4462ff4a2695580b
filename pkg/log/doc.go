// Package log defines the structured protocol event logger used across the
// base station: a Logger interface, a CBOR-encoded Event type, and adapters
// (file, slog, multi) for where those events go. This is distinct from the
// bounded in-memory activity rings consumed by the status surface (see
// package activity); this logger is for replayable diagnostics.
package log
