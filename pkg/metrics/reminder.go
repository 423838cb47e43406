package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"LunaCare/internal/reminder"
)

// ReminderMetrics 提醒调度指标，实现 reminder.Recorder
type ReminderMetrics struct {
	TicksTotal     metric.Int64Counter
	TickDuration   metric.Float64Histogram
	TickCandidates metric.Int64Histogram
	DecisionsTotal metric.Int64Counter
	DispatchTotal  metric.Int64Counter
	PrunedTotal    metric.Int64Counter
}

// NewReminderMetrics 在 meter 上注册提醒相关指标
func NewReminderMetrics(meter metric.Meter) (*ReminderMetrics, error) {
	var (
		m   ReminderMetrics
		err error
	)

	m.TicksTotal, err = meter.Int64Counter(
		"reminder.ticks.total",
		metric.WithDescription("Total number of reminder ticks"),
		metric.WithUnit("{tick}"),
	)
	if err != nil {
		return nil, err
	}

	m.TickDuration, err = meter.Float64Histogram(
		"reminder.tick.duration",
		metric.WithDescription("Reminder tick duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, err
	}

	m.TickCandidates, err = meter.Int64Histogram(
		"reminder.tick.candidates",
		metric.WithDescription("Number of candidate users per reminder tick"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	m.DecisionsTotal, err = meter.Int64Counter(
		"reminder.decisions.total",
		metric.WithDescription("Reminder decisions by outcome and reason"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	m.DispatchTotal, err = meter.Int64Counter(
		"reminder.dispatch.total",
		metric.WithDescription("Reminder dispatch results"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, err
	}

	m.PrunedTotal, err = meter.Int64Counter(
		"reminder.endpoints.pruned.total",
		metric.WithDescription("Push endpoints removed after the push service reported them gone"),
		metric.WithUnit("{endpoint}"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

var _ reminder.Recorder = (*ReminderMetrics)(nil)

// RecordTick 记录一轮 tick
func (m *ReminderMetrics) RecordTick(ctx context.Context, report *reminder.TickReport) {
	m.TicksTotal.Add(ctx, 1)
	m.TickDuration.Record(ctx, report.Duration.Seconds())
	m.TickCandidates.Record(ctx, int64(report.Candidates))
}

// RecordOutcome 记录单个用户的判定和投递结果
func (m *ReminderMetrics) RecordOutcome(ctx context.Context, outcome reminder.Outcome) {
	var decision string
	switch {
	case outcome.Decision.Send:
		decision = "send"
	case outcome.Status == reminder.StatusSkipped:
		decision = "skip"
	default:
		// 判定前失败，例如读取活动记录出错
		decision = "error"
	}
	m.DecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("reason", string(outcome.Decision.Reason)),
	))

	if outcome.Decision.Send {
		m.DispatchTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(outcome.Status)),
		))
	}
}

// RecordPruned 记录清理的失效端点数
func (m *ReminderMetrics) RecordPruned(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	m.PrunedTotal.Add(ctx, int64(n))
}
