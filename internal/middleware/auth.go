package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"LunaCare/pkg/errors"
	"LunaCare/pkg/response"
)

// AdminAuthMiddleware 运维接口的静态 Bearer token 校验，token 为空时拒绝所有请求
func AdminAuthMiddleware(token string) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		header := string(c.GetHeader("Authorization"))
		got, ok := strings.CutPrefix(header, "Bearer ")

		if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			response.Error(ctx, c, errors.Unauthorized)
			c.Abort()
			return
		}

		c.Next(ctx)
	}
}
