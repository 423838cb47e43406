package reminder

import (
	"context"
	"errors"
	"time"

	"LunaCare/internal/model"
)

var (
	// ErrStaleSettings 条件更新未命中：lastSentAt 已被其他 tick 改写，视为"本轮已有人发送"
	ErrStaleSettings = errors.New("reminder settings changed since read")
	// ErrNoEndpoints 用户没有任何可投递的推送端点
	ErrNoEndpoints = errors.New("user has no push endpoints")
	// ErrEndpointLookup 查询推送端点失败，投递尚未开始
	ErrEndpointLookup = errors.New("failed to look up push endpoints")
	// ErrTickInProgress 上一轮 tick 仍在执行
	ErrTickInProgress = errors.New("reminder tick already in progress")
	// ErrTickLocked 其他实例持有本轮 tick 锁
	ErrTickLocked = errors.New("reminder tick locked by another instance")
	// ErrAlreadyStarted Start 被重复调用
	ErrAlreadyStarted = errors.New("reminder scheduler already started")
)

// SettingsStore 提醒设置的读写能力
type SettingsStore interface {
	// ListDueCandidates 返回开启提醒且 now 的墙钟时间落在窗口内的用户设置（粗筛）
	ListDueCandidates(ctx context.Context, now time.Time) ([]*model.ReminderSettings, error)
	// UpdateLastSent 仅当 last_sent_at 仍等于 prev 时写入 sentAt，否则返回 ErrStaleSettings
	UpdateLastSent(ctx context.Context, userID int64, prev *time.Time, sentAt time.Time) error
}

// ActivityStore 读取用户最近一次完成目标动作的时间，没有记录时返回 nil
type ActivityStore interface {
	GetLastActivity(ctx context.Context, userID int64) (*time.Time, error)
}

// Notifier 向用户全部已注册端点投递通知，返回逐端点结果
// 用户没有端点时返回 ErrNoEndpoints
type Notifier interface {
	Send(ctx context.Context, userID int64, payload model.NotificationPayload) ([]DeliveryResult, error)
}

// Locker 跨实例的 tick 互斥，可选
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// DeliveryResult 单个端点的投递结果
type DeliveryResult struct {
	Endpoint   string
	StatusCode int
	Err        error
}

// OK 端点是否投递成功
func (r DeliveryResult) OK() bool {
	return r.Err == nil && (r.StatusCode == 0 || (r.StatusCode >= 200 && r.StatusCode < 300))
}

// Gone 端点已失效（404/410），应由订阅存储清理
func (r DeliveryResult) Gone() bool {
	return r.StatusCode == 404 || r.StatusCode == 410
}

// Recorder 记录调度指标，nil 时不记录
type Recorder interface {
	RecordTick(ctx context.Context, report *TickReport)
	RecordOutcome(ctx context.Context, outcome Outcome)
}

type tickIDKey struct{}

// WithTickID 把 tick ID 放入 context，Notifier 可据此关联消息
func WithTickID(ctx context.Context, tickID string) context.Context {
	return context.WithValue(ctx, tickIDKey{}, tickID)
}

// TickIDFromContext 取出当前 tick ID，不在 tick 中时返回空串
func TickIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(tickIDKey{}).(string)
	return id
}
