package model

// NotificationPayload 推送通知内容，字段与前端 service worker 的渲染保持一致
type NotificationPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Icon  string            `json:"icon,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// PushNotificationMessage 推送任务消息，queue 模式下由调度器发布、worker 消费
type PushNotificationMessage struct {
	MessageID   string              `json:"message_id"` // 消息唯一ID，用于幂等性检查
	TickID      string              `json:"tick_id"`
	UserID      int64               `json:"user_id"`
	Payload     NotificationPayload `json:"payload"`
	ScheduledAt string              `json:"scheduled_at"`
}
