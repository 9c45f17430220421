package sync

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	gosync "sync"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// logger is the package-level structured logger for all sync operations.
// Defaults to a no-op (discard) handler until InitLogger is called.
var logger *slog.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

// recentErrorLimit bounds how many error records the status endpoint reports.
const recentErrorLimit = 5

// InitLogger configures the process logger and installs it as slog's
// default, so the transport and vault packages share the same handlers.
// Console output: INFO (DEBUG with verbose) to stdout, WARN/ERROR to stderr,
// colorized when attached to a terminal.
// If logDir is non-empty, also writes to level-split log files:
//   - vaultsync_warn.log  : WARN + ERROR
//   - vaultsync_info.log  : INFO only (1MB, 1 backup)
//   - vaultsync_debug.log : DEBUG only (1MB, 1 backup), verbose only
func InitLogger(logDir string, verbose bool) {
	minLevel := slog.LevelInfo
	if verbose {
		minLevel = slog.LevelDebug
	}

	routes := []route{
		{minLevel, slog.LevelInfo, newConsoleSide(os.Stdout, minLevel)},
		{slog.LevelWarn, maxLevel, newConsoleSide(os.Stderr, slog.LevelWarn)},
		{slog.LevelError, maxLevel, &errorRecorder{}},
	}

	if logDir != "" {
		os.MkdirAll(logDir, 0750) //nolint:errcheck

		routes = append(routes,
			route{slog.LevelWarn, maxLevel, rotatingText(logDir, "vaultsync_warn.log", 100, 3, slog.LevelWarn)},
			route{slog.LevelInfo, slog.LevelInfo, rotatingText(logDir, "vaultsync_info.log", 1, 1, slog.LevelInfo)},
		)
		if verbose {
			routes = append(routes,
				route{slog.LevelDebug, slog.LevelDebug, rotatingText(logDir, "vaultsync_debug.log", 1, 1, slog.LevelDebug)})
		}
	}

	logger = slog.New(levelRouter(routes))
	slog.SetDefault(logger)
}

func newConsoleSide(f *os.File, level slog.Level) slog.Handler {
	return tint.NewHandler(f, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(f.Fd()),
	})
}

func rotatingText(dir, name string, maxMB, backups int, level slog.Level) slog.Handler {
	return slog.NewTextHandler(&lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    maxMB,
		MaxBackups: backups,
	}, &slog.HandlerOptions{Level: level})
}

// sub returns a child logger tagged with the given component name.
func sub(component string) *slog.Logger {
	return logger.With("comp", component)
}

// logEnabled reports whether the given log level is enabled.
// Use this to guard expensive DEBUG logging in hot paths.
func logEnabled(level slog.Level) bool {
	return logger.Enabled(context.Background(), level)
}

const maxLevel = slog.Level(1 << 10)

// route sends records within [min, max] to one handler.
type route struct {
	min, max slog.Level
	h        slog.Handler
}

// levelRouter fans each record out to every route whose range covers it.
type levelRouter []route

func (lr levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	for _, r := range lr {
		if level >= r.min && level <= r.max {
			return true
		}
	}
	return false
}

func (lr levelRouter) Handle(ctx context.Context, rec slog.Record) error {
	var first error
	for _, r := range lr {
		if rec.Level < r.min || rec.Level > r.max {
			continue
		}
		if err := r.h.Handle(ctx, rec.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (lr levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return lr.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (lr levelRouter) WithGroup(name string) slog.Handler {
	return lr.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (lr levelRouter) derive(fn func(slog.Handler) slog.Handler) levelRouter {
	out := make(levelRouter, len(lr))
	for i, r := range lr {
		out[i] = route{r.min, r.max, fn(r.h)}
	}
	return out
}

// LogEntry is one captured error record, served by the status endpoint.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Comp    string    `json:"comp,omitempty"`
	Run     string    `json:"run,omitempty"`
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
}

var errorRing struct {
	mu      gosync.Mutex
	entries [recentErrorLimit]LogEntry
	count   int
}

// RecentErrors returns the latest captured error records, newest first.
func RecentErrors() []LogEntry {
	errorRing.mu.Lock()
	defer errorRing.mu.Unlock()
	n := min(errorRing.count, recentErrorLimit)
	out := make([]LogEntry, n)
	for i := 0; i < n; i++ {
		out[i] = errorRing.entries[(errorRing.count-1-i)%recentErrorLimit]
	}
	return out
}

func recordError(e LogEntry) {
	errorRing.mu.Lock()
	errorRing.entries[errorRing.count%recentErrorLimit] = e
	errorRing.count++
	errorRing.mu.Unlock()
}

// errorRecorder keeps attrs bound through With so sub() loggers report
// their component.
type errorRecorder struct {
	bound []slog.Attr
}

func (h *errorRecorder) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *errorRecorder) Handle(_ context.Context, r slog.Record) error {
	e := LogEntry{Time: r.Time, Message: r.Message}
	pick := func(a slog.Attr) bool {
		switch a.Key {
		case "comp":
			e.Comp = a.Value.String()
		case "run":
			e.Run = a.Value.String()
		case "err":
			e.Error = a.Value.String()
		}
		return true
	}
	for _, a := range h.bound {
		pick(a)
	}
	r.Attrs(pick)
	recordError(e)
	return nil
}

func (h *errorRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &errorRecorder{bound: append(slices.Clone(h.bound), attrs...)}
}

func (h *errorRecorder) WithGroup(string) slog.Handler { return h }
