package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"dailyanalytics/internal/config"
)

type traceKey struct{}

// process-wide logger installed by InitializeLogger
var global struct {
	once   sync.Once
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
}

// InitializeLogger builds the JSON logger described by cfg and installs it as
// the slog default. Later calls return the first logger unchanged.
func InitializeLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var err error
	global.once.Do(func() {
		var out io.Writer
		out, err = logWriter(cfg)
		if err != nil {
			return
		}
		global.logger = NewLoggerWithWriter(out, &slog.HandlerOptions{
			AddSource: true,
			Level:     ParseLogLevel(cfg.Level),
		})
		slog.SetDefault(global.logger)
	})
	return global.logger, err
}

// GetLogger returns the installed logger, or slog.Default before
// InitializeLogger has run.
func GetLogger() *slog.Logger {
	if global.logger == nil {
		return slog.Default()
	}
	return global.logger
}

// logWriter maps the output setting to a writer. "file" and "both" open
// cfg.FilePath for append; anything else is stdout.
func logWriter(cfg config.LoggingConfig) (io.Writer, error) {
	output := strings.ToLower(cfg.Output)
	if output != "file" && output != "both" {
		return os.Stdout, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", cfg.FilePath, err)
	}

	global.mu.Lock()
	global.file = f
	global.mu.Unlock()

	if output == "both" {
		return io.MultiWriter(os.Stdout, f), nil
	}
	return f, nil
}

// NewLoggerWithWriter returns a JSON logger on w that adds trace_id to every
// record logged with a context carrying one.
func NewLoggerWithWriter(w io.Writer, opts *slog.HandlerOptions) *slog.Logger {
	return slog.New(traceHandler{slog.NewJSONHandler(w, opts)})
}

type traceHandler struct {
	slog.Handler
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := GetTraceID(ctx); id != "" {
		r.AddAttrs(slog.String("trace_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return traceHandler{h.Handler.WithAttrs(attrs)}
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return traceHandler{h.Handler.WithGroup(name)}
}

// ParseLogLevel accepts debug, info, warn(ing) and error in any case.
// Unknown names mean info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func GetTraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

// EnsureTraceID keeps an existing trace ID or attaches a fresh UUID.
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, uuid.NewString())
}

// CloseLogFile closes the file opened by InitializeLogger, if any.
func CloseLogFile() error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.file == nil {
		return nil
	}
	err := global.file.Close()
	global.file = nil
	return err
}

// ResetLoggerForTesting forgets the installed logger so the next
// InitializeLogger call takes effect.
func ResetLoggerForTesting() {
	_ = CloseLogFile()
	global.logger = nil
	global.once = sync.Once{}
}
