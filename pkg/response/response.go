package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"LunaCare/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

// SuccessResponse 统一的成功响应格式
type SuccessResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

func errorToHTTPStatus(err error) int {
	def, ok := asDefinition(err)
	if !ok {
		return http.StatusInternalServerError
	}

	// 根据错误码映射 HTTP 状态码
	switch def.Code {
	case errors.InvalidRequest.Code, errors.InvalidUserID.Code,
		errors.ReminderSettingsInvalid.Code, errors.IntakeInvalid.Code:
		return http.StatusBadRequest // 400
	case errors.Unauthorized.Code:
		return http.StatusUnauthorized // 401
	case errors.ReminderSettingsNotFound.Code:
		return http.StatusNotFound // 404
	case errors.ReminderTickBusy.Code:
		return http.StatusConflict // 409
	case errors.TooManyRequests.Code:
		return http.StatusTooManyRequests // 429
	default:
		return http.StatusInternalServerError // 500
	}
}

// asDefinition 沿错误链查找业务错误
func asDefinition(err error) (errors.Definition, bool) {
	var def errors.Definition
	if stderrors.As(err, &def) {
		return def, true
	}
	return errors.Definition{}, false
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	statusCode := errorToHTTPStatus(err)

	code, message := errorCodeAndMessage(err)

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// 非业务错误不向外暴露内部信息
func errorCodeAndMessage(err error) (string, string) {
	if def, ok := asDefinition(err); ok {
		return def.Code, def.Message
	}
	return "INTERNAL_ERROR", "Internal server error"
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	statusCode := errorToHTTPStatus(err)

	code, message := errorCodeAndMessage(err)

	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
	})
}

func SuccessWithMeta(ctx context.Context, c *app.RequestContext, data interface{}, meta map[string]interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data: data,
		Meta: meta,
	})
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:    errors.InvalidRequest.Code,
			Message: err.Error(),
		},
	})
}

func Created(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data: data,
	})
}
