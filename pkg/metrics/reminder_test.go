package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"LunaCare/internal/reminder"
)

func newTestMetrics(t *testing.T) (*ReminderMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewReminderMetrics(provider.Meter("lunacare.test"))
	require.NoError(t, err)
	return m, reader
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestReminderMetricsRecord(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordTick(ctx, &reminder.TickReport{Candidates: 3, Duration: 2 * time.Second})
	m.RecordOutcome(ctx, reminder.Outcome{Decision: reminder.Decision{Send: true}, Status: reminder.StatusSent})
	m.RecordOutcome(ctx, reminder.Outcome{Decision: reminder.Decision{Reason: reminder.ReasonRecentActivity}, Status: reminder.StatusSkipped})
	m.RecordOutcome(ctx, reminder.Outcome{Status: reminder.StatusFailed})
	m.RecordPruned(ctx, 2)
	m.RecordPruned(ctx, 0)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(1), sums["reminder.ticks.total"])
	assert.Equal(t, int64(3), sums["reminder.decisions.total"])
	assert.Equal(t, int64(1), sums["reminder.dispatch.total"])
	assert.Equal(t, int64(2), sums["reminder.endpoints.pruned.total"])
}
