package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware 透传或生成请求 ID，并写回响应头
func RequestIDMiddleware() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next(ctx)
	}
}

// GetRequestID 取当前请求 ID
func GetRequestID(c *app.RequestContext) string {
	return c.GetString(requestIDKey)
}
