package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "checkpoint"

// Metrics — Prometheus метрики выполнения сценариев.
//
// Все методы безопасны для nil: выполнение без метрик
// не требует проверок в вызывающем коде.
type Metrics struct {
	registry *prometheus.Registry

	stepsTotal       *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	scenariosTotal   *prometheus.CounterVec
	scenarioDuration prometheus.Histogram
	mismatchesTotal  *prometheus.CounterVec
}

// NewMetrics создаёт метрики в собственном registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "steps_total",
			Help:      "Executed scenario steps by final status.",
		}, []string{"status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time including request and assertions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		scenariosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "scenarios_total",
			Help:      "Executed scenarios by result.",
		}, []string{"result"}),
		scenarioDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "scenario_duration_seconds",
			Help:      "Scenario execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		mismatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "assertion_mismatches_total",
			Help:      "Assertion mismatches by expectation kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.stepsTotal,
		m.stepDuration,
		m.scenariosTotal,
		m.scenarioDuration,
		m.mismatchesTotal,
		collectors.NewGoCollector(),
	)

	return m
}

// ObserveStep учитывает выполненный шаг.
func (m *Metrics) ObserveStep(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(status).Inc()
	m.stepDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// ObserveMismatch учитывает несовпадение проверки.
func (m *Metrics) ObserveMismatch(kind string) {
	if m == nil {
		return
	}
	m.mismatchesTotal.WithLabelValues(kind).Inc()
}

// ObserveScenario учитывает выполненный сценарий.
func (m *Metrics) ObserveScenario(success bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "passed"
	}
	m.scenariosTotal.WithLabelValues(result).Inc()
	m.scenarioDuration.Observe(elapsed.Seconds())
}

// Handler возвращает HTTP mux с /metrics и /healthz.
func (m *Metrics) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if m != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Serve запускает HTTP сервер метрик до отмены ctx.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}
	logger.Info("metrics server stopped")
	return nil
}
