// Package logging sets up the agent's file-backed slog logger. Every
// record goes to the operational log; error-level records are copied
// to a separate error log so `logs --errors` has a short file to show.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Options configure Setup.
type Options struct {
	Path      string    // operational log, appended
	ErrorPath string    // error-level copy, appended
	Console   io.Writer // optional mirror for foreground runs
	Debug     bool      // lower the level to debug
}

// Setup opens both log files and returns the logger plus a closer for
// the underlying files.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	mainFile, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	errFile, err := os.OpenFile(opts.ErrorPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		mainFile.Close()
		return nil, nil, fmt.Errorf("opening error log file: %w", err)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var mainOut io.Writer = mainFile
	if opts.Console != nil {
		mainOut = io.MultiWriter(mainFile, opts.Console)
	}

	handler := &teeHandler{
		main: slog.NewTextHandler(mainOut, &slog.HandlerOptions{Level: level}),
		errs: slog.NewTextHandler(errFile, &slog.HandlerOptions{Level: slog.LevelError}),
	}

	closer := func() error {
		err1 := mainFile.Close()
		err2 := errFile.Close()
		if err1 != nil {
			return err1
		}
		return err2
	}
	return slog.New(handler), closer, nil
}

// teeHandler forwards every record to main and error-level records to
// errs as well.
type teeHandler struct {
	main slog.Handler
	errs slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.main.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.main.Handle(ctx, r.Clone())
	if r.Level >= slog.LevelError {
		if e := h.errs.Handle(ctx, r.Clone()); err == nil {
			err = e
		}
	}
	return err
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{main: h.main.WithAttrs(attrs), errs: h.errs.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{main: h.main.WithGroup(name), errs: h.errs.WithGroup(name)}
}
