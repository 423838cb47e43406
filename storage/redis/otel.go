package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook 为每条 Redis 命令创建 client span 并记录耗时
type TracingHook struct {
	tracer   trace.Tracer
	attrs    []attribute.KeyValue
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTracingHook 创建追踪 Hook，指标注册失败时只保留 span
func NewTracingHook(serviceName string, db int) *TracingHook {
	meter := otel.Meter(serviceName + ".redis")
	total, _ := meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	duration, _ := meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)

	return &TracingHook{
		tracer: otel.Tracer(serviceName + ".redis"),
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			semconv.DBRedisDBIndex(db),
		},
		total:    total,
		duration: duration,
	}
}

// DialHook 实现 redis.Hook 接口
func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

// ProcessHook 实现 redis.Hook 接口
func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, cmd.Name(),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		// 只记录命令名，不记录参数值
		span.SetAttributes(semconv.DBOperation(cmd.Name()))

		start := time.Now()
		err := next(ctx, cmd)

		status := "success"
		switch {
		case errors.Is(err, redis.Nil):
			status = "not_found"
			span.SetStatus(codes.Ok, "Key not found")
		case err != nil:
			status = "error"
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		default:
			span.SetStatus(codes.Ok, "")
		}

		labels := metric.WithAttributes(
			attribute.String("redis.command", cmd.Name()),
			attribute.String("redis.status", status),
		)
		if th.total != nil {
			th.total.Add(ctx, 1, labels)
		}
		if th.duration != nil {
			th.duration.Record(ctx, time.Since(start).Seconds(), labels)
		}

		return err
	}
}

// ProcessPipelineHook 实现 redis.Hook 接口
func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		span.SetAttributes(attribute.Int("redis.pipeline.count", len(cmds)))
		err := next(ctx, cmds)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		return err
	}
}
