package metric

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"
)

// recordingMeter keeps the registered callbacks so tests can collect them
type recordingMeter struct {
	noop.Meter
	callbacks     []metric.Callback
	registrations []*recordingRegistration
}

func (m *recordingMeter) RegisterCallback(f metric.Callback, _ ...metric.Observable) (metric.Registration, error) {
	m.callbacks = append(m.callbacks, f)
	reg := &recordingRegistration{}
	m.registrations = append(m.registrations, reg)
	return reg, nil
}

type recordingRegistration struct {
	embedded.Registration
	calls int
}

func (r *recordingRegistration) Unregister() error {
	r.calls++
	return nil
}

type recordingObserver struct {
	embedded.Observer
	ints []int64
}

func (o *recordingObserver) ObserveFloat64(metric.Float64Observable, float64, ...metric.ObserveOption) {
}

func (o *recordingObserver) ObserveInt64(_ metric.Int64Observable, value int64, _ ...metric.ObserveOption) {
	o.ints = append(o.ints, value)
}

func TestProcessMetric(t *testing.T) {
	meter := noop.NewMeterProvider().Meter(InstrumentationName)
	m, err := NewProcessMetric(meter, func() int64 { return 3 })
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.NotPanics(t, func() {
		m.Spawned(context.Background())
		m.Terminated(context.Background(), "normal")
	})
	assert.NoError(t, m.Unregister())
}

func TestProcessMetricLiveCallback(t *testing.T) {
	meter := &recordingMeter{}
	m, err := NewProcessMetric(meter, func() int64 { return 7 })
	require.NoError(t, err)
	require.Len(t, meter.callbacks, 1)
	require.Len(t, meter.registrations, 1)

	observer := &recordingObserver{}
	require.NoError(t, meter.callbacks[0](context.Background(), observer))
	assert.Equal(t, []int64{7}, observer.ints)

	require.NoError(t, m.Unregister())
	require.NoError(t, m.Unregister())
	assert.Equal(t, 1, meter.registrations[0].calls)
}

func TestSupervisorMetric(t *testing.T) {
	meter := noop.NewMeterProvider().Meter(InstrumentationName)
	m, err := NewSupervisorMetric(meter)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		m.Restarted(context.Background(), "root", "one_for_one")
	})
}
