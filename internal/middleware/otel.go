package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMetrics HTTP 服务端指标
type HTTPMetrics struct {
	requestTotal   metric.Int64Counter
	duration       metric.Float64Histogram
	activeRequests metric.Int64UpDownCounter
}

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标/trace 序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// NewHTTPMetrics 在 meter 上注册 HTTP 指标
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	var (
		m   HTTPMetrics
		err error
	)

	m.requestTotal, err = meter.Int64Counter(
		"http.server.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, err
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"http.server.active_requests",
		metric.WithDescription("Number of active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// MetricsMiddleware 记录请求数、耗时和活跃请求；span 由 hertz tracing 中间件创建，这里只补充属性
func MetricsMiddleware(m *HTTPMetrics) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if m == nil {
			c.Next(ctx)
			return
		}

		start := time.Now()
		m.activeRequests.Add(ctx, 1)
		defer m.activeRequests.Add(ctx, -1)

		span := trace.SpanFromContext(ctx)
		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("http.request_id", toValidUTF8(requestID)))
		}
		if userID := c.Param("user_id"); userID != "" {
			span.SetAttributes(attribute.String("enduser.id", toValidUTF8(userID)))
		}

		c.Next(ctx)

		// 用路由模板而不是实际路径，避免 user_id 撑爆指标基数
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := metric.WithAttributes(
			semconv.HTTPMethod(toValidUTF8(string(c.Method()))),
			semconv.HTTPRoute(route),
			semconv.HTTPStatusCode(c.Response.StatusCode()),
		)

		m.requestTotal.Add(ctx, 1, labels)
		m.duration.Record(ctx, time.Since(start).Seconds(), labels)
	}
}

// NewServerTracerConfig 创建 Hertz Server 的追踪配置
// 返回用于初始化 Hertz server 的配置选项和追踪中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
