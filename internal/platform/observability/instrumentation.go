package observability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan opens an OpenTelemetry span and logs its lifecycle at debug level.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if !cfg.Enabled {
		return ctx, func(error) {}
	}

	_, tr := currentInstruments()
	start := time.Now()

	spanCtx := ctx
	var end func(error)
	if tr != nil {
		c, span := tr.Start(ctx, component+"."+operation)
		span.SetAttributes(attribute.String("component", component))
		spanCtx = c
		end = func(err error) {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}

	if logger != nil {
		logger.LogAttrs(ctx, slog.LevelDebug, "[OBS] span start",
			slog.String("component", component),
			slog.String("operation", operation),
		)
	}

	return spanCtx, func(err error) {
		if end != nil {
			end(err)
		}
		if logger == nil {
			return
		}

		level := slog.LevelDebug
		if err != nil {
			level = slog.LevelError
		}

		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}

		logger.LogAttrs(ctx, level, "[OBS] span end", attrs...)
	}
}

// RecordMetric adds value to the named counter, mirrored to an OTel instrument.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, cfg := currentLogger()
	if !cfg.Enabled {
		return
	}

	registry.add(ctx, name, value, labels)

	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "[OBS] metric", attrs...)
}

// Snapshot returns the accumulated counters keyed by name{label=value,...}.
func Snapshot() map[string]float64 {
	return registry.snapshot()
}

type counterRegistry struct {
	mu       sync.RWMutex
	values   map[string]float64
	otelCtrs map[string]metric.Float64Counter
}

func newRegistry() *counterRegistry {
	return &counterRegistry{
		values:   make(map[string]float64),
		otelCtrs: make(map[string]metric.Float64Counter),
	}
}

func (r *counterRegistry) reset() {
	r.mu.Lock()
	r.values = make(map[string]float64)
	r.otelCtrs = make(map[string]metric.Float64Counter)
	r.mu.Unlock()
}

// fullKey makes a deterministic key from name and labels.
func fullKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (r *counterRegistry) add(ctx context.Context, name string, value float64, labels map[string]string) {
	key := fullKey(name, labels)
	m, _ := currentInstruments()

	r.mu.Lock()
	r.values[key] += value
	inst := r.otelCtrs[name]
	if inst == nil && m != nil {
		if ctr, err := m.Float64Counter(name); err == nil {
			r.otelCtrs[name] = ctr
			inst = ctr
		}
	}
	r.mu.Unlock()

	if inst != nil {
		attrs := make([]attribute.KeyValue, 0, len(labels))
		for k, v := range labels {
			attrs = append(attrs, attribute.String(k, v))
		}
		inst.Add(ctx, value, metric.WithAttributes(attrs...))
	}
}

func (r *counterRegistry) snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}
