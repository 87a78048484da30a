// Package otelexport bridges the auth metrics registry to OpenTelemetry.
// Counters are exposed as observable instruments read from a snapshot on
// each collection cycle, so the auth hot path never touches the SDK.
package otelexport

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"

	"github.com/gatehouse-auth/gatehouse/metrics"
)

var (
	ErrNilMeter    = errors.New("nil meter")
	ErrNilRegistry = errors.New("nil metrics registry")
)

type observedCounter struct {
	id         metrics.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter registers one observable counter per auth metric.
type Exporter struct {
	registry     *metrics.Registry
	registration metric.Registration
	counters     []observedCounter
}

func New(meter metric.Meter, registry *metrics.Registry) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if registry == nil {
		return nil, ErrNilRegistry
	}

	ids := metrics.IDs()
	exporter := &Exporter{
		registry: registry,
		counters: make([]observedCounter, 0, len(ids)),
	}

	observables := make([]metric.Observable, 0, len(ids))
	for _, id := range ids {
		ins, err := meter.Int64ObservableCounter(id.Name())
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", id.Name(), err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: id, instrument: ins})
		observables = append(observables, ins)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.registry.Snapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Get(c.id)))
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
