// Package logger builds the application logger on top of log/slog.
package logger

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
)

// New returns a logger writing to w. With jsonOut set it emits one JSON
// object per record; otherwise it uses a tinted text handler, with colors
// only when w is a terminal.
func New(w io.Writer, jsonOut, isTTY bool) *slog.Logger {
	if jsonOut {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		NoColor:    !isTTY,
		TimeFormat: "2006-01-02 15:04:05.000",
	}))
}
