// Package vcrlog provides the structured logger used to trace cassette
// lookups, record-mode decisions, and interceptor activity.
//
// Unlike an application, a library has no business picking its own log
// file path or rotation policy, so New takes the destination writer from
// the caller instead of computing one.
package vcrlog

import (
	"context"
	"io"
	"log/slog"
)

// New builds a JSON-handler logger writing to w. When debug is true the
// level is set to slog.LevelDebug and source locations are attached to
// each record; otherwise the level is slog.LevelInfo with no source.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})

	return slog.New(handler)
}

// Nop returns a logger that discards every record. Callers that don't
// care about VCR tracing can use this instead of threading a nil check
// through every interceptor.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler       { return h }
func (h nopHandler) WithGroup(string) slog.Handler            { return h }
