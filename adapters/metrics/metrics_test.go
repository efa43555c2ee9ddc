package metrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/artpar/kvorm/adapters/metrics"
)

func TestNewWithRegistry(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.OpsTotal == nil {
		t.Error("OpsTotal is nil")
	}
	if m.OpDuration == nil {
		t.Error("OpDuration is nil")
	}
	if m.DocumentsScanned == nil {
		t.Error("DocumentsScanned is nil")
	}
	if m.ValidationFailures == nil {
		t.Error("ValidationFailures is nil")
	}
	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestsInFlight == nil {
		t.Error("RequestsInFlight is nil")
	}
	if m.AuthFailures == nil {
		t.Error("AuthFailures is nil")
	}
	if m.StoreErrors == nil {
		t.Error("StoreErrors is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
}

func gatherNames(t *testing.T, reg *prometheus.Registry) map[string]int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	names := make(map[string]int, len(families))
	for _, f := range families {
		names[f.GetName()] = len(f.GetMetric())
	}
	return names
}

func TestObserverOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.Op("users", "create", 2*time.Millisecond, nil)
	m.Op("users", "create", time.Millisecond, errors.New("bad"))
	m.Op("users", "find", time.Millisecond, nil)

	names := gatherNames(t, reg)
	if got := names["kvorm_ops_total"]; got != 3 {
		t.Errorf("expected 3 ops series (two outcomes + one op), got %d", got)
	}
	if got := names["kvorm_op_duration_seconds"]; got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestObserverScan(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.Scan("users", 10)
	m.Scan("users", 5)
	m.Scan("articles", 1)

	names := gatherNames(t, reg)
	if got := names["kvorm_documents_scanned_total"]; got != 2 {
		t.Errorf("expected 2 collections, got %d series", got)
	}
}

func TestObserverValidationFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ValidationFailure("users", "email")
	m.ValidationFailure("users", "name")

	names := gatherNames(t, reg)
	if got := names["kvorm_validation_failures_total"]; got != 2 {
		t.Errorf("expected 2 field series, got %d", got)
	}
}

func TestRequestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.RequestsTotal.WithLabelValues("GET", "/api/{collection}", "200").Inc()
	m.RequestsTotal.WithLabelValues("POST", "/api/{collection}", "422").Add(5)
	m.RequestDuration.WithLabelValues("GET", "/api/{collection}", "200").Observe(0.05)
	m.RequestsInFlight.Inc()
	m.RequestsInFlight.Inc()
	m.RequestsInFlight.Dec()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	var sawTotal, sawDuration bool
	for _, f := range families {
		switch f.GetName() {
		case "kvorm_requests_total":
			sawTotal = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric series, got %d", len(f.GetMetric()))
			}
		case "kvorm_request_duration_seconds":
			sawDuration = true
		case "kvorm_requests_in_flight":
			if val := f.GetMetric()[0].GetGauge().GetValue(); val != 1 {
				t.Errorf("expected in-flight value 1, got %f", val)
			}
		}
	}
	if !sawTotal {
		t.Error("kvorm_requests_total metric not found")
	}
	if !sawDuration {
		t.Error("kvorm_request_duration_seconds metric not found")
	}
}

func TestStoreErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.StoreErrors.WithLabelValues("redis").Inc()
	m.StoreErrors.WithLabelValues("sqlite").Add(2)

	names := gatherNames(t, reg)
	if got := names["kvorm_store_errors_total"]; got != 2 {
		t.Errorf("expected 2 backend series, got %d", got)
	}
}

func TestConfigReloads(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ConfigReloads.Inc()
	m.ConfigLastReload.SetToCurrentTime()

	names := gatherNames(t, reg)
	if _, ok := names["kvorm_config_reloads_total"]; !ok {
		t.Error("kvorm_config_reloads_total metric not found")
	}
	if _, ok := names["kvorm_config_last_reload_timestamp"]; !ok {
		t.Error("kvorm_config_last_reload_timestamp metric not found")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/api/users", "/api/users"},
		{"/api/{collection}/{id}", "/api/{collection}/{id}"},
		{"/health", "/health"},
	}

	for _, tt := range tests {
		result := metrics.NormalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("NormalizePath(%s) = %s, want %s", tt.input, result, tt.expected)
		}
	}

	longPath := "/very/long/path/that/exceeds/fifty/characters/in/total/length"
	result := metrics.NormalizePath(longPath)
	if len(result) != 53 {
		t.Errorf("expected 50 chars plus ellipsis, got len=%d", len(result))
	}
	if result[len(result)-3:] != "..." {
		t.Errorf("truncated path should end with '...', got %s", result)
	}
}
