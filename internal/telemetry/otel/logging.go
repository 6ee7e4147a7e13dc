package otel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// DefaultMaskKeys are attribute keys whose values never reach a log sink.
var DefaultMaskKeys = []string{"code", "otp", "code_hash", "api_key", "authorization"}

// LogConfig drives SetupLogging.
type LogConfig struct {
	ServiceName string
	// Level is one of debug, info, warn, error; anything else means info.
	Level string
	// Output defaults to os.Stdout.
	Output io.Writer
	// LoggerProvider, when set, also receives every record through the otelslog bridge.
	LoggerProvider *sdklog.LoggerProvider
	// MaskKeys defaults to DefaultMaskKeys.
	MaskKeys []string
}

// ParseLevel maps a LOG_LEVEL string to a slog level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the JSON logger (fanned out to OTel when a LoggerProvider is given)
// with masking of sensitive keys.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(cfg.Level)
	jsonHandler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				a.Key = "severity"
			}
			return a
		},
	})

	var handler slog.Handler = jsonHandler
	if cfg.LoggerProvider != nil {
		handler = &multiHandler{handlers: []slog.Handler{
			jsonHandler,
			otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(cfg.LoggerProvider)),
		}}
	}

	maskKeys := cfg.MaskKeys
	if maskKeys == nil {
		maskKeys = DefaultMaskKeys
	}
	logger := slog.New(&maskHandler{handler: handler, maskKeys: buildMaskKeys(maskKeys)})
	if cfg.ServiceName != "" {
		logger = logger.With("service", cfg.ServiceName)
	}
	return logger
}

// SetupLogging builds the logger and installs it as the slog default.
func SetupLogging(cfg LogConfig) *slog.Logger {
	logger := NewLogger(cfg)
	slog.SetDefault(logger)
	return logger
}

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h.WithAttrs(attrs))
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h.WithGroup(name))
	}
	return &multiHandler{handlers: handlers}
}

// maskHandler replaces the values of masked keys, including inside groups and attrs bound by With.
type maskHandler struct {
	handler  slog.Handler
	maskKeys map[string]struct{}
}

func (h *maskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *maskHandler) Handle(ctx context.Context, record slog.Record) error {
	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(maskAttr(a, h.maskKeys))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = maskAttr(a, h.maskKeys)
	}
	return &maskHandler{handler: h.handler.WithAttrs(out), maskKeys: h.maskKeys}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{handler: h.handler.WithGroup(name), maskKeys: h.maskKeys}
}

func buildMaskKeys(fields []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			keys[f] = struct{}{}
		}
	}
	return keys
}

func maskAttr(a slog.Attr, keys map[string]struct{}) slog.Attr {
	if _, ok := keys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "***")
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = maskAttr(ga, keys)
		}
		a.Value = slog.GroupValue(out...)
	}
	return a
}
