package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_Disabled(t *testing.T) {
	p, err := New(Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.Nil(t, p.MeterProvider())
	assert.Equal(t, noop.Meter{}, p.Meter("x"))
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_EnabledWithoutOutputs(t *testing.T) {
	_, err := New(Config{Enabled: true, ServiceName: "test"})
	assert.Error(t, err)
}

func TestNew_LogsAndMetrics(t *testing.T) {
	var logs, metrics bytes.Buffer
	p, err := New(Config{
		Enabled:        true,
		ServiceName:    "cspdemo-test",
		BatchTimeout:   time.Second,
		LogWriter:      &logs,
		MetricWriter:   &metrics,
		MetricInterval: time.Hour,
	})
	require.NoError(t, err)
	require.NotNil(t, p.LoggerProvider())
	require.NotNil(t, p.MeterProvider())

	counter, err := p.Meter("test").Int64Counter("csp.test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	require.NoError(t, p.Flush(context.Background()))
	assert.Contains(t, metrics.String(), "csp.test.counter")
	assert.Contains(t, metrics.String(), "cspdemo-test")

	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_LogsOnly(t *testing.T) {
	var logs bytes.Buffer
	p, err := New(Config{
		Enabled:      true,
		ServiceName:  "logs-only",
		BatchTimeout: time.Second,
		LogWriter:    &logs,
	})
	require.NoError(t, err)
	assert.NotNil(t, p.LoggerProvider())
	assert.Nil(t, p.MeterProvider())
	require.NoError(t, p.Shutdown(context.Background()))
}
