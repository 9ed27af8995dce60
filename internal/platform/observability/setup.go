package observability

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "blog-image-server"

// Metric names emitted by the service.
const (
	MetricArtifactsGenerated = "image.artifacts.generated"
	MetricGenerationFailed   = "image.generation.failed"
	MetricServe              = "image.serve"
	MetricSweepRemoved       = "image.sweep.removed"
	MetricHTTPRequests       = "http.requests"
	MetricHTTPDuration       = "http.request.duration_ms"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
}

// ShutdownFunc allows callers to tear down any observability exporters.
type ShutdownFunc func(context.Context) error

var (
	loggerMu             sync.RWMutex
	instrumentationLog   *slog.Logger
	instrumentationState Config
	meter                metric.Meter
	tracer               trace.Tracer
	registry             = newRegistry()
)

func currentLogger() (*slog.Logger, Config) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return instrumentationLog, instrumentationState
}

func currentInstruments() (metric.Meter, trace.Tracer) {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return meter, tracer
}

// Setup binds the logger and the global OpenTelemetry providers.
// Exporters are left to whatever provider the process installs.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	loggerMu.Lock()
	instrumentationLog = logger
	instrumentationState = cfg
	if cfg.Enabled {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
		tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	} else {
		meter = nil
		tracer = nil
	}
	loggerMu.Unlock()

	registry.reset()

	if logger != nil {
		if cfg.Enabled {
			logger.InfoContext(ctx, "[OBS] instrumentation enabled")
		} else {
			logger.InfoContext(ctx, "[OBS] disabled")
		}
	}
	return func(context.Context) error {
		loggerMu.Lock()
		meter = nil
		tracer = nil
		loggerMu.Unlock()
		return nil
	}, nil
}
