package errors

import (
	stderrors "errors"
	"fmt"
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// WithMessage 复制错误码并替换提示信息，便于带上具体字段
func (d Definition) WithMessage(format string, args ...interface{}) Definition {
	return Definition{Code: d.Code, Message: fmt.Sprintf(format, args...)}
}

// 通用错误。
var (
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	InvalidUserID   = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests, please retry later"}
)

// 提醒设置模块错误。
var (
	ReminderSettingsInvalid  = Definition{Code: "REMINDER_SETTINGS_INVALID", Message: "Reminder settings invalid"}
	ReminderSettingsNotFound = Definition{Code: "REMINDER_SETTINGS_NOT_FOUND", Message: "Reminder settings not found"}
	ReminderTickBusy         = Definition{Code: "REMINDER_TICK_BUSY", Message: "A reminder tick is already running"}
)

// 饮水记录模块错误。
var (
	IntakeInvalid = Definition{Code: "INTAKE_INVALID", Message: "Water intake invalid"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:           InvalidRequest,
	InvalidUserID.Code:            InvalidUserID,
	Unauthorized.Code:             Unauthorized,
	TooManyRequests.Code:          TooManyRequests,
	ReminderSettingsInvalid.Code:  ReminderSettingsInvalid,
	ReminderSettingsNotFound.Code: ReminderSettingsNotFound,
	ReminderTickBusy.Code:         ReminderTickBusy,
	IntakeInvalid.Code:            IntakeInvalid,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// SkipMessageError 表示消息无需处理（重复投递等），消费者应直接 ack
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

// IsSkipMessageError 判断错误链中是否包含 SkipMessageError
func IsSkipMessageError(err error) bool {
	var target *SkipMessageError
	return stderrors.As(err, &target)
}
