package model

import "time"

// WaterIntake 饮水记录，提醒的"已满足动作"
// 最近一条记录的 LoggedAt 即为调度器读取的活动标记
type WaterIntake struct {
	BaseModel
	UserID   int64     `gorm:"not null;index:idx_water_intakes_user_logged,priority:1" json:"user_id"`
	AmountML int       `gorm:"not null" json:"amount_ml"`
	LoggedAt time.Time `gorm:"type:timestamptz;not null;index:idx_water_intakes_user_logged,priority:2,sort:desc" json:"logged_at"`
}

// TableName 指定表名
func (WaterIntake) TableName() string {
	return "water_intakes"
}
