package database

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const (
	spanKey       = "otel:span"
	startTimeKey  = "otel:start_time"
	maxSQLLength  = 500
	tracerName    = "lunacare.gorm"
	pluginName    = "otel_tracing"
	callbackScope = "otel"
)

var (
	// 数据库相关指标
	dbQueriesTotal  metric.Int64Counter
	dbQueryDuration metric.Float64Histogram
)

// InitDatabaseMetrics 初始化数据库指标
func InitDatabaseMetrics(meter metric.Meter) error {
	var err error

	dbQueriesTotal, err = meter.Int64Counter(
		"db.queries.total",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return err
	}

	dbQueryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	return err
}

// TracingPlugin 为每条 SQL 创建 client span 并记录耗时指标
type TracingPlugin struct {
	tracer trace.Tracer
}

// Name 实现 gorm.Plugin 接口
func (p *TracingPlugin) Name() string {
	return pluginName
}

// Initialize 注册回调
func (p *TracingPlugin) Initialize(db *gorm.DB) error {
	p.tracer = otel.Tracer(tracerName)

	cb := db.Callback()
	hooks := []struct {
		name     string
		register func(before, after func(*gorm.DB)) error
	}{
		{"query", func(b, a func(*gorm.DB)) error {
			if err := cb.Query().Before("gorm:query").Register(callbackScope+":before_query", b); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register(callbackScope+":after_query", a)
		}},
		{"create", func(b, a func(*gorm.DB)) error {
			if err := cb.Create().Before("gorm:create").Register(callbackScope+":before_create", b); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register(callbackScope+":after_create", a)
		}},
		{"update", func(b, a func(*gorm.DB)) error {
			if err := cb.Update().Before("gorm:update").Register(callbackScope+":before_update", b); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register(callbackScope+":after_update", a)
		}},
		{"delete", func(b, a func(*gorm.DB)) error {
			if err := cb.Delete().Before("gorm:delete").Register(callbackScope+":before_delete", b); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register(callbackScope+":after_delete", a)
		}},
		{"raw", func(b, a func(*gorm.DB)) error {
			if err := cb.Raw().Before("gorm:raw").Register(callbackScope+":before_raw", b); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register(callbackScope+":after_raw", a)
		}},
	}

	for _, h := range hooks {
		op := h.name
		if err := h.register(p.before(op), p.after(op)); err != nil {
			return err
		}
	}
	return nil
}

func (p *TracingPlugin) before(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx, span := p.tracer.Start(db.Statement.Context, "db."+op,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemPostgreSQL,
				attribute.String("db.table", db.Statement.Table),
			),
		)
		db.InstanceSet(startTimeKey, time.Now())
		db.InstanceSet(spanKey, span)
		db.Statement.Context = ctx
	}
}

func (p *TracingPlugin) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(spanKey)
		if !ok {
			return
		}
		span, ok := v.(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		sql := db.Statement.SQL.String()
		if len(sql) > maxSQLLength {
			sql = sql[:maxSQLLength] + "..."
		}
		// 只记录带占位符的 SQL，参数值可能包含用户数据
		span.SetAttributes(
			semconv.DBStatement(strings.TrimSpace(sql)),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)

		status := "success"
		if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			status = "error"
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if v, ok := db.InstanceGet(startTimeKey); ok {
			if start, ok := v.(time.Time); ok {
				recordQuery(db.Statement.Context, op, status, time.Since(start).Seconds())
			}
		}
	}
}

func recordQuery(ctx context.Context, op, status string, seconds float64) {
	if dbQueriesTotal == nil || dbQueryDuration == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.status", status),
	)
	dbQueriesTotal.Add(ctx, 1, attrs)
	dbQueryDuration.Record(ctx, seconds, attrs)
}
