package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	// Every recording method must be a no-op on a nil receiver.
	m.RunStarted("alice@ws:1")
	m.RunCompleted("succeeded", time.Second)
	m.ItemReconciled("file", "fixed", time.Millisecond)
	m.LockContention()
	m.LockReclaimed()
}

func TestDisabledMetricsAreSafe(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RunStarted("alice@ws:1")
	m.RunCompleted("succeeded", time.Second)
}

func TestMetricsExposition(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "wield"})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RunStarted("alice@ws:1")
	m.ItemReconciled("file", "fixed", 50*time.Millisecond)
	m.RunCompleted("succeeded", time.Second)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"wield_runs_started_total",
		"wield_items_reconciled_total",
		"wield_run_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition should contain %s", want)
		}
	}
}

func TestLoggerFields(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "debug", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	// Field helpers must return derived loggers, not mutate the parent.
	derived := log.WithNodeID("web1").WithRunID("run-1").WithItemID("file:/a")
	if derived == log {
		t.Error("field helpers should derive a new logger")
	}

	component := log.NewComponentLogger("runner")
	if component == nil {
		t.Fatal("component logger must not be nil")
	}
}

func TestLoggerContext(t *testing.T) {
	log, err := NewLogger(LoggingConfig{Level: "error"})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	ctx := log.WithContext(context.Background())
	if FromContext(ctx) != log {
		t.Error("FromContext should return the stored logger")
	}
	if FromContext(context.Background()) == nil {
		t.Error("FromContext should fall back to a default logger")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}

	bad := DefaultConfig()
	bad.Logging.Format = "xml"
	if err := bad.Validate(); err == nil {
		t.Error("unknown log format should be invalid")
	}

	badTracing := DefaultConfig()
	badTracing.Tracing.Enabled = true
	badTracing.Tracing.Exporter = "jaeger"
	if err := badTracing.Validate(); err == nil {
		t.Error("unknown trace exporter should be invalid")
	}

	badRate := DefaultConfig()
	badRate.Tracing.Enabled = true
	badRate.Tracing.Exporter = "none"
	badRate.Tracing.SamplingRate = 1.5
	if err := badRate.Validate(); err == nil {
		t.Error("out-of-range sampling rate should be invalid")
	}
}

func TestTracerDisabled(t *testing.T) {
	tracer, err := NewTracer(TracingConfig{Enabled: false}, "wield", "test")
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}

	ctx, span := tracer.StartRun(context.Background(), "run-1", "web1")
	if ctx == nil || span == nil {
		t.Fatal("disabled tracer must still produce usable spans")
	}
	span.End()

	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}
