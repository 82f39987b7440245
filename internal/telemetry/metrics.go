// Package telemetry provides Prometheus metrics for the polling engine and
// an optional /metrics HTTP endpoint.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamwatch/pkg/logx"
)

var (
	once sync.Once

	// Counters
	Polls         prometheus.Counter
	FetchErrors   prometheus.Counter
	Publishes     prometheus.Counter
	PublishErrors prometheus.Counter
	OfflineEdits  prometheus.Counter
	EditErrors    prometheus.Counter

	// Gauges / histograms
	TenantsGauge prometheus.Gauge
	TickDuration prometheus.Observer
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Polls = promauto.NewCounter(prometheus.CounterOpts{Name: "streamwatch_polls_total", Help: "Number of per-tenant page fetches attempted"})
		FetchErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "streamwatch_fetch_errors_total", Help: "Number of page fetches that failed or timed out"})
		Publishes = promauto.NewCounter(prometheus.CounterOpts{Name: "streamwatch_publishes_total", Help: "Number of live announcements published"})
		PublishErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "streamwatch_publish_errors_total", Help: "Number of live announcements that failed to deliver"})
		OfflineEdits = promauto.NewCounter(prometheus.CounterOpts{Name: "streamwatch_offline_edits_total", Help: "Number of announcements closed out as offline"})
		EditErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "streamwatch_edit_errors_total", Help: "Number of offline edits that failed to deliver"})
		TenantsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "streamwatch_tenants", Help: "Currently enabled tenants"})
		TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "streamwatch_tick_duration_seconds", Help: "Scheduler tick duration seconds", Buckets: prometheus.DefBuckets})
	})
}

// SetTenants records the number of enabled tenants seen by the last tick.
func SetTenants(n int) {
	if TenantsGauge != nil {
		TenantsGauge.Set(float64(n))
	}
}

// ObserveTick records one tick duration.
func ObserveTick(d time.Duration) {
	if TickDuration != nil {
		TickDuration.Observe(d.Seconds())
	}
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log logx.Logger) error {
	if addr == "" {
		addr = "127.0.0.1:9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("metrics listening", logx.String("addr", addr))

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
