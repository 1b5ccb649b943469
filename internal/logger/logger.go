// Package logger is the process-wide structured logger. It writes JSON to
// stdout by default and can be switched to an OpenTelemetry log exporter.
// Warnings and errors are sampled; the counters below are not and feed the
// /metrics endpoint.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

// Output formats accepted by Setup.
const (
	FormatJSON = "json"
	FormatOTEL = "otel"
)

var (
	Logger       *slog.Logger
	sampleRate   atomic.Int32
	programLevel = new(slog.LevelVar)
	shutdownFunc func(context.Context) error
)

// Counters for the metrics endpoint, incremented regardless of sampling.
var (
	TotalErrors        atomic.Int64
	TotalWarnings      atomic.Int64
	Total5xxErrors     atomic.Int64
	Total4xxErrors     atomic.Int64
	Total404Errors     atomic.Int64
	Total422Errors     atomic.Int64
	TotalUpstreamFails atomic.Int64
	DegradedResults    atomic.Int64
	SlowRequests       atomic.Int64
)

func init() {
	sampleRate.Store(1)
	programLevel.Set(slog.LevelInfo)
	setupJSONLogging(os.Stdout)
}

// Options configures Setup. Zero values keep JSON output at INFO with every
// warning and error logged.
type Options struct {
	Level       string
	Format      string
	ServiceName string
	// SampleRate logs one in every N warnings and errors.
	SampleRate int
	// Output overrides stdout for JSON output.
	Output io.Writer
}

// Setup replaces the default logger. On OTEL setup failure it falls back to
// JSON and returns the error so the caller can report it.
func Setup(ctx context.Context, opts Options) error {
	if opts.Level != "" {
		level, err := ParseLevel(opts.Level)
		if err != nil {
			return err
		}
		programLevel.Set(level)
	}
	if opts.SampleRate > 0 {
		sampleRate.Store(int32(opts.SampleRate))
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		setupJSONLogging(out)
		return nil
	case FormatOTEL:
		name := opts.ServiceName
		if name == "" {
			name = "rulebuilder"
		}
		shutdown, err := setupOTELLogging(ctx, name)
		if err != nil {
			setupJSONLogging(out)
			return fmt.Errorf("OTEL logging unavailable, using JSON: %w", err)
		}
		shutdownFunc = shutdown
		return nil
	default:
		return fmt.Errorf("unknown log format: %s", opts.Format)
	}
}

func setupJSONLogging(out io.Writer) {
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: programLevel})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func setupOTELLogging(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	Logger = slog.New(&levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	})
	slog.SetDefault(Logger)

	return provider.Shutdown, nil
}

// levelHandler adds level filtering to handlers that lack it.
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter, if one is active.
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to slog.Level.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func shouldSample() bool {
	rate := sampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts every call and logs a sample.
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every call and logs a sample.
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs unsampled, flushes OTEL and exits.
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}

// Degraded records an enrichment step that failed without failing the write.
func Degraded(component string, args ...any) {
	DegradedResults.Add(1)
	Warn("degraded result: "+component, args...)
}

// Upstream records a failed catalog or store call.
func Upstream(op string, err error) {
	TotalUpstreamFails.Add(1)
	Error("upstream call failed", "op", op, "error", err)
}

// ErrorHttp5xx counts a 5xx response.
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx counts a 4xx response.
func WarnHttp4xx(status int) {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)

	switch status {
	case 404:
		Total404Errors.Add(1)
	case 422:
		Total422Errors.Add(1)
	}
}

// WarnSlowRequest counts a request over the slow threshold.
func WarnSlowRequest() {
	SlowRequests.Add(1)
	TotalWarnings.Add(1)
}
