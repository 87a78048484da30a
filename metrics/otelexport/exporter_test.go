package otelexport

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/gatehouse-auth/gatehouse/metrics"
)

func TestNew_Validation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	if _, err := New(nil, metrics.New()); !errors.Is(err, ErrNilMeter) {
		t.Errorf("New(nil meter) error = %v, want %v", err, ErrNilMeter)
	}
	if _, err := New(meter, nil); !errors.Is(err, ErrNilRegistry) {
		t.Errorf("New(nil registry) error = %v, want %v", err, ErrNilRegistry)
	}
}

// Requirement: each collection cycle observes the current counter values
// under the registry's metric names.
func TestExporter_Collect(t *testing.T) {
	registry := metrics.New()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	exporter, err := New(meter, registry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer exporter.Close()

	registry.Inc(metrics.SignInSuccess)
	registry.Inc(metrics.SignInSuccess)
	registry.Inc(metrics.SessionExpired)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	got := flatten(t, rm)
	if got[metrics.SignInSuccess.Name()] != 2 {
		t.Errorf("%s = %d, want 2", metrics.SignInSuccess.Name(), got[metrics.SignInSuccess.Name()])
	}
	if got[metrics.SessionExpired.Name()] != 1 {
		t.Errorf("%s = %d, want 1", metrics.SessionExpired.Name(), got[metrics.SessionExpired.Name()])
	}

	// Counters keep their cumulative value across cycles
	registry.Inc(metrics.SignInSuccess)
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("second Collect() error = %v", err)
	}
	got = flatten(t, rm)
	if got[metrics.SignInSuccess.Name()] != 3 {
		t.Errorf("%s after second cycle = %d, want 3", metrics.SignInSuccess.Name(), got[metrics.SignInSuccess.Name()])
	}
}

func TestExporter_Close(t *testing.T) {
	registry := metrics.New()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	exporter, err := New(meter, registry)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := exporter.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	var nilExporter *Exporter
	if err := nilExporter.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func flatten(t *testing.T, rm metricdata.ResourceMetrics) map[string]int64 {
	t.Helper()

	out := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %s is not an int64 sum", m.Name)
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] = dp.Value
			}
		}
	}
	return out
}
