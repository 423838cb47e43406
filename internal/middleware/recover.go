package middleware

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"LunaCare/pkg/errors"
	"LunaCare/pkg/logger"
	"LunaCare/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 是否启用堆栈追踪
	EnableStackTrace bool
	// 生产环境是否返回详细错误
	ExposeDetailsInProduction bool
	// 是否在 span 中记录异常
	RecordInSpan bool
	// 是否是生产环境
	IsProduction bool
}

// NewRecoverConfig 创建 recover 配置
func NewRecoverConfig(isProduction bool) RecoverConfig {
	return RecoverConfig{
		EnableStackTrace:          true,
		ExposeDetailsInProduction: false,
		RecordInSpan:              true,
		IsProduction:              isProduction,
	}
}

// RecoverMiddleware 捕获 handler panic，记录日志并返回 500
func RecoverMiddleware(cfg RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, cfg)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, cfg RecoverConfig) {
	var stack []byte
	if cfg.EnableStackTrace {
		stack = getStackTrace()
	}

	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("request_id", GetRequestID(c)),
	}
	if len(stack) > 0 {
		fields = append(fields, zap.ByteString("stack", stack))
	}
	logger.For("http").Error("[PANIC RECOVERED]", fields...)

	if cfg.RecordInSpan {
		span := trace.SpanFromContext(ctx)
		span.RecordError(fmt.Errorf("panic: %v", err))
		span.SetStatus(codes.Error, "panic recovered")
	}

	writeErrorResponse(ctx, c, err, stack, cfg)
	c.Abort()
}

func writeErrorResponse(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte, cfg RecoverConfig) {
	errDef := errors.Definition{
		Code:    "INTERNAL_SERVER_ERROR",
		Message: "Internal server error, please retry later",
	}

	if cfg.IsProduction && !cfg.ExposeDetailsInProduction {
		response.Error(ctx, c, errDef)
		return
	}

	errDef.Message = fmt.Sprintf("Internal error: %v", err)
	details := map[string]interface{}{
		"panic":     fmt.Sprintf("%v", err),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if len(stack) > 0 {
		details["stack"] = string(stack)
	}
	response.ErrorWithDetails(ctx, c, errDef, details)
}

// getStackTrace 当前 goroutine 的调用栈，跳过 runtime 帧
func getStackTrace() []byte {
	var buf bytes.Buffer
	buf.WriteString("goroutine panic:\n")

	pcs := make([]uintptr, 32)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&buf, "  %s:%d\n    %s\n", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}

	return buf.Bytes()
}
