package reminder

import (
	"time"

	"LunaCare/internal/model"
)

// Reason 跳过提醒的原因
type Reason string

const (
	ReasonNone           Reason = ""
	ReasonDisabled       Reason = "disabled"
	ReasonOutsideWindow  Reason = "outside_window"
	ReasonRecentlySent   Reason = "recently_sent"
	ReasonRecentActivity Reason = "recent_activity"
)

// Decision 单个用户在一次 tick 中的判定结果，不持久化
type Decision struct {
	Send   bool
	Reason Reason
}

func skip(reason Reason) Decision { return Decision{Reason: reason} }

func (d Decision) String() string {
	if d.Send {
		return "send"
	}
	return "skip:" + string(d.Reason)
}

// precheck 只依赖设置本身的判定，命中时无需再读取活动记录
func precheck(s *model.ReminderSettings, now time.Time, fallbackMinutes int) (Decision, bool) {
	if !s.Enabled {
		return skip(ReasonDisabled), true
	}
	if !s.InWindow(now) {
		return skip(ReasonOutsideWindow), true
	}
	if s.LastSentAt != nil && now.Sub(*s.LastSentAt) < s.Interval(fallbackMinutes) {
		return skip(ReasonRecentlySent), true
	}
	return Decision{}, false
}

// Evaluate 判定是否需要给用户发送提醒
// 顺序：开关 -> 窗口 -> 距上次提醒 -> 距上次饮水，任一间隔不足 interval 即跳过
func Evaluate(s *model.ReminderSettings, lastActivity *time.Time, now time.Time, fallbackMinutes int) Decision {
	if d, done := precheck(s, now, fallbackMinutes); done {
		return d
	}
	if lastActivity != nil && now.Sub(*lastActivity) < s.Interval(fallbackMinutes) {
		return skip(ReasonRecentActivity)
	}
	return Decision{Send: true}
}
