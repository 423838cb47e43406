package model

// PushSubscription 浏览器推送订阅，注册流程由其他服务负责，这里只读取和清理
type PushSubscription struct {
	BaseModel
	UserID   int64  `gorm:"not null;index:idx_push_subscriptions_user" json:"user_id"`
	Endpoint string `gorm:"type:text;not null;uniqueIndex" json:"endpoint"`
	P256dh   string `gorm:"type:varchar(255);not null" json:"p256dh"`
	Auth     string `gorm:"type:varchar(255);not null" json:"auth"`
}

// TableName 指定表名
func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
