// Package metric holds the OpenTelemetry instruments of the runtime.
package metric

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
)

// InstrumentationName is the meter name used by the runtime
const InstrumentationName = "github.com/hedisam/goactor/v2"

// ProcessMetric defines the process table instrumentation
type ProcessMetric struct {
	spawned      metric.Int64Counter
	terminated   metric.Int64Counter
	live         metric.Int64ObservableGauge
	registration metric.Registration
	unregistered *atomic.Bool
}

// NewProcessMetric creates the process instruments. liveFn is polled by the
// live process gauge until Unregister is called.
func NewProcessMetric(meter metric.Meter, liveFn func() int64) (*ProcessMetric, error) {
	m := &ProcessMetric{unregistered: atomic.NewBool(false)}
	var err error
	if m.spawned, err = meter.Int64Counter(
		"process.spawned.count",
		metric.WithDescription("Total number of spawned processes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create spawned instrument, %w", err)
	}

	if m.terminated, err = meter.Int64Counter(
		"process.terminated.count",
		metric.WithDescription("Total number of terminated processes by exit reason"),
	); err != nil {
		return nil, fmt.Errorf("failed to create terminated instrument, %w", err)
	}

	if m.live, err = meter.Int64ObservableGauge(
		"process.live.count",
		metric.WithDescription("Number of live processes"),
	); err != nil {
		return nil, fmt.Errorf("failed to create live instrument, %w", err)
	}

	if m.registration, err = meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(m.live, liveFn())
		return nil
	}, m.live); err != nil {
		return nil, fmt.Errorf("failed to register live callback, %w", err)
	}
	return m, nil
}

// Unregister stops polling the live process gauge. It is safe to call more than once.
func (m *ProcessMetric) Unregister() error {
	if !m.unregistered.CompareAndSwap(false, true) {
		return nil
	}
	return m.registration.Unregister()
}

// Spawned records a new process
func (m *ProcessMetric) Spawned(ctx context.Context) {
	m.spawned.Add(ctx, 1)
}

// Terminated records a terminated process with the kind of its exit reason
func (m *ProcessMetric) Terminated(ctx context.Context, reason string) {
	m.terminated.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// SupervisorMetric defines the supervisor instrumentation
type SupervisorMetric struct {
	restarts metric.Int64Counter
}

// NewSupervisorMetric creates the supervisor instruments
func NewSupervisorMetric(meter metric.Meter) (*SupervisorMetric, error) {
	restarts, err := meter.Int64Counter(
		"supervisor.restarts.count",
		metric.WithDescription("Total number of child restarts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create restarts instrument, %w", err)
	}
	return &SupervisorMetric{restarts: restarts}, nil
}

// Restarted records one child restart
func (m *SupervisorMetric) Restarted(ctx context.Context, supervisor, strategy string) {
	m.restarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("supervisor", supervisor),
		attribute.String("strategy", strategy),
	))
}
