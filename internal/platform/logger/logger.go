// Package logger provides a zerolog wrapper with opinionated defaults and
// worker-scoped logging support
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nexusprover/internal/platform/config/raw"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// Options configures the logger
type Options struct {
	Level        string
	Format       string
	Service      string
	Component    string
	Writer       io.Writer
	WithCaller   bool
	StaticFields map[string]string
}

// FromEnv builds Options using the logging-free raw config view (no cycles).
// The level string accepts RUST_LOG-style filters; see ParseFilter.
func FromEnv() Options {
	rc := raw.New()
	return Options{
		Level:      rc.Prefix("LOG_").Get("LEVEL", rc.Get("RUST_LOG", "info")),
		Format:     strings.ToLower(rc.Prefix("LOG_").Get("FORMAT", "console")),
		Service:    rc.Prefix("LOG_").Get("SERVICE", "nexus-cli"),
		Component:  rc.Prefix("LOG_").Get("COMPONENT", ""),
		WithCaller: rc.Prefix("LOG_").GetBool("CALLER", false),
	}
}

var (
	once   sync.Once
	root   atomic.Pointer[zerolog.Logger] // internal storage of the root logger
	inited atomic.Bool
)

// Logger is the project-wide logging type - today it's just a zerolog.Logger, but it can be swapped later
type Logger = zerolog.Logger

// Get returns the process-wide root logger as a pointer
func Get() *Logger {
	if !inited.Load() {
		Init(FromEnv())
	}
	return root.Load()
}

// Init configures zerolog and builds the root logger, safe to call once
func Init(opt Options) {
	once.Do(func() {
		zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
		zerolog.TimeFieldFormat = time.RFC3339Nano

		lvl := ParseFilter(opt.Level)

		var w io.Writer = os.Stdout
		if opt.Writer != nil {
			w = opt.Writer
		}
		if opt.Format == "console" {
			w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		}

		ctx := zerolog.New(w).Level(lvl).With().Timestamp()
		if opt.Service != "" {
			ctx = ctx.Str("service", opt.Service)
		}
		if opt.Component != "" {
			ctx = ctx.Str("component", opt.Component)
		}
		for k, v := range opt.StaticFields {
			ctx = ctx.Str(k, v)
		}

		log := ctx.Logger()
		if opt.WithCaller {
			log = log.With().Caller().Logger()
		}

		root.Store(&log)
		inited.Store(true)
	})
}

// ParseFilter resolves a RUST_LOG-style filter string to a threshold level.
// The first "module=level" token wins; a bare level also works. Anything
// unparseable falls back to info
func ParseFilter(s string) zerolog.Level {
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if _, lvl, ok := strings.Cut(tok, "="); ok {
			tok = lvl
		}
		if l, ok := parseLevel(tok); ok {
			return l
		}
	}
	return zerolog.InfoLevel
}

// parseLevel supports string-only levels
func parseLevel(s string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "fatal":
		return zerolog.FatalLevel, true
	default:
		return zerolog.NoLevel, false
	}
}

type ctxKey struct{ name string }

var keyWorker = ctxKey{"worker"}

// WithWorker annotates ctx with the worker identity that emits the logs
func WithWorker(ctx context.Context, worker string) context.Context {
	if worker == "" {
		return ctx
	}
	return context.WithValue(ctx, keyWorker, worker)
}

// C returns a child logger enriched from ctx (worker identity)
func C(ctx context.Context) *Logger {
	l := Get()
	builder := l.With()
	if v := ctx.Value(keyWorker); v != nil {
		if s, ok := v.(string); ok && s != "" {
			builder = builder.Str("worker", s)
		}
	}
	ll := builder.Logger()
	return &ll
}

// Named returns a child logger with a component field
func Named(component string) *Logger {
	if component == "" {
		return Get()
	}
	ll := Get().With().Str("component", component).Logger()
	return &ll
}
