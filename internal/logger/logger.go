package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

const defaultServiceName = "workflowrules"

var (
	mu              sync.Mutex
	logger          = slog.Default()
	programLevel    = new(slog.LevelVar)
	errorSampleRate atomic.Int32
	shutdownFunc    func(context.Context) error
)

// Counters are incremented whether or not the log line is sampled
var (
	TotalErrors    atomic.Int64
	TotalWarnings  atomic.Int64
	Total4xxErrors atomic.Int64
	Total5xxErrors atomic.Int64
)

func init() {
	errorSampleRate.Store(1)
}

// Setup installs the process logger as slog's default. level is parsed
// with ParseLevel; an unknown level falls back to INFO.
//
// OTEL_ENABLED=true routes records through the OpenTelemetry bridge to an
// OTLP/gRPC collector, named by OTEL_SERVICE_NAME. ERROR_SAMPLE_RATE=N
// keeps one in N Warn/Error lines.
func Setup(level string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	parsed, err := ParseLevel(level)
	programLevel.Set(parsed)

	if raw := os.Getenv("ERROR_SAMPLE_RATE"); raw != "" {
		if rate, convErr := strconv.Atoi(raw); convErr == nil && rate > 0 {
			errorSampleRate.Store(int32(rate))
		}
	}

	if strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true") {
		serviceName := os.Getenv("OTEL_SERVICE_NAME")
		if serviceName == "" {
			serviceName = defaultServiceName
		}
		handler, shutdown, otelErr := otelHandler(context.Background(), serviceName)
		if otelErr == nil {
			install(slog.New(handler))
			shutdownFunc = shutdown
		} else {
			install(slog.New(jsonHandler(os.Stdout)))
			logger.Warn("OpenTelemetry logging unavailable, using JSON", slog.Any("error", otelErr))
		}
	} else {
		install(slog.New(jsonHandler(os.Stdout)))
	}

	if err != nil {
		logger.Warn("invalid log level", slog.String("level", level))
	}
	return logger
}

// SetupWriter installs a JSON logger writing to w, for tests and tools
func SetupWriter(w io.Writer, level slog.Level) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	programLevel.Set(level)
	install(slog.New(jsonHandler(w)))
	return logger
}

func install(l *slog.Logger) {
	logger = l
	slog.SetDefault(l)
}

func jsonHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: programLevel})
}

func otelHandler(ctx context.Context, serviceName string) (slog.Handler, func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	handler := &levelHandler{
		level:   programLevel,
		handler: otelslog.NewHandler(serviceName, otelslog.WithLoggerProvider(provider)),
	}
	return handler, provider.Shutdown, nil
}

// levelHandler applies the program level to handlers that lack one
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

// Shutdown flushes the OpenTelemetry exporter, if one is installed
func Shutdown(ctx context.Context) error {
	mu.Lock()
	fn := shutdownFunc
	shutdownFunc = nil
	mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// Get returns the process logger
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// WithModule returns the process logger tagged with a module attribute
func WithModule(name string) *slog.Logger {
	return Get().With(slog.String("module", name))
}

// SetLevel changes the minimum level at runtime
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts TRACE, DEBUG, INFO, WARN/WARNING, ERROR or FATAL
// (any case) to a level. Empty means INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

// SetSampleRate keeps one in rate Warn/Error lines; rate <= 1 keeps all
func SetSampleRate(rate int) {
	if rate < 1 {
		rate = 1
	}
	errorSampleRate.Store(int32(rate))
}

func shouldSample() bool {
	rate := errorSampleRate.Load()
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Warn logs a sampled warning and always counts it
func Warn(ctx context.Context, msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Get().WarnContext(ctx, msg, args...)
	}
}

// Error logs a sampled error and always counts it
func Error(ctx context.Context, msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Get().ErrorContext(ctx, msg, args...)
	}
}

// CountHTTPStatus records 4xx and 5xx responses in the counters
func CountHTTPStatus(status int) {
	switch {
	case status >= 500:
		Total5xxErrors.Add(1)
		TotalErrors.Add(1)
	case status >= 400:
		Total4xxErrors.Add(1)
		TotalWarnings.Add(1)
	}
}
