package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		env  string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Setenv("LOG_LEVEL", tt.env)
		if got := LogLevel(); got != tt.want {
			t.Errorf("LogLevel(%q) = %v, want %v", tt.env, got, tt.want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, "text")
	WithStep(WithScenario(logger, "checkout", "a.yaml"), 0, "create").Info("step passed")

	out := buf.String()
	for _, want := range []string{"scenario=checkout", "source=a.yaml", "step=1", "step_name=create"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q should contain %q", out, want)
		}
	}

	buf.Reset()
	NewLogger(&buf, slog.LevelInfo, "").Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message should be filtered, got %q", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("FromContext should return stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to default logger")
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveStep("PASSED", 10*time.Millisecond)
	m.ObserveStep("PASSED", 20*time.Millisecond)
	m.ObserveStep("FAILED", 5*time.Millisecond)
	m.ObserveMismatch("status")
	m.ObserveScenario(false, time.Second)

	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues("PASSED")); got != 2 {
		t.Errorf("steps_total{PASSED} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.scenariosTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("scenarios_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.mismatchesTotal.WithLabelValues("status")); got != 1 {
		t.Errorf("assertion_mismatches_total{status} = %v, want 1", got)
	}

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "checkpoint_steps_total") {
		t.Error("/metrics should expose checkpoint_steps_total")
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d", health.StatusCode)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveStep("PASSED", time.Millisecond)
	m.ObserveMismatch("json")
	m.ObserveScenario(true, time.Millisecond)
}

func TestMetrics_ServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewMetrics().Serve(ctx, "127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}
