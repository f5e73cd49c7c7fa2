// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ReconcileCycles    prometheus.Counter
	ReconcileSkips     prometheus.Counter
	RenamesIssued      prometheus.Counter
	RenamesCooledDown  prometheus.Counter
	CraftyAuthErrors   prometheus.Counter
	CraftyAPIErrors    prometheus.Counter
	CraftyTransportErr prometheus.Counter

	// Histograms (seconds)
	CraftyRequestDuration prometheus.Observer
	CycleDuration         prometheus.Observer

	// Gauges
	ServerMapSize prometheus.Gauge
	GuildsGauge   prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ReconcileCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_reconcile_cycles_total", Help: "Number of reconcile cycles run"})
		ReconcileSkips = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_reconcile_skipped_cycles_total", Help: "Number of reconcile cycles skipped because the server map refresh failed"})
		RenamesIssued = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_channel_renames_total", Help: "Number of channel renames issued"})
		RenamesCooledDown = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_channel_renames_cooldown_total", Help: "Number of channel renames blocked by the per-channel cooldown"})
		CraftyAuthErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_auth_errors_total", Help: "Number of Crafty login failures"})
		CraftyAPIErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_api_errors_total", Help: "Number of Crafty API responses >= 400 after permitted retry"})
		CraftyTransportErr = promauto.NewCounter(prometheus.CounterOpts{Name: "crafty_transport_errors_total", Help: "Number of Crafty connection/timeout failures"})
		CraftyRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "crafty_request_duration_seconds", Help: "Crafty API request duration seconds", Buckets: prometheus.DefBuckets})
		CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "crafty_reconcile_cycle_duration_seconds", Help: "Reconcile cycle duration seconds", Buckets: prometheus.DefBuckets})
		ServerMapSize = promauto.NewGauge(prometheus.GaugeOpts{Name: "crafty_server_map_size", Help: "Number of entries in the friendly-name to server-id map"})
		GuildsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "crafty_guilds", Help: "Number of guilds with channel bindings"})
	})
}

// SetServerMapSize records the current server map entry count.
func SetServerMapSize(n int) {
	if ServerMapSize != nil {
		ServerMapSize.Set(float64(n))
	}
}

// SetGuildCount records the number of guilds with channel bindings.
func SetGuildCount(n int) {
	if GuildsGauge != nil {
		GuildsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
