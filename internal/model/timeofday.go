package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimeOfDay 一天内的墙钟时间，精确到分钟，与日期无关
// 数据库中以 "HH:MM" 存储，零填充保证字符串比较与时间先后一致
type TimeOfDay int

const (
	minutesPerDay   = 24 * 60
	timeOfDayLayout = "15:04"
)

var errTimeOfDayRange = errors.New("time of day out of range")

// NewTimeOfDay 由小时和分钟构造
func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, errTimeOfDayRange
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustTimeOfDay 解析 "HH:MM"，失败 panic，仅用于常量和测试
func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay 解析 "HH:MM"，同时兼容 postgres time 列返回的 "HH:MM:SS"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	layout := timeOfDayLayout
	if len(s) == len("15:04:05") {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return NewTimeOfDay(t.Hour(), t.Minute())
}

// TimeOfDayOf 取时间点在其所在时区的墙钟时间
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// Within 判断 t 是否落在 [start, end] 闭区间内
// start > end 视为跨越午夜的窗口，例如 22:00-06:00
func (t TimeOfDay) Within(start, end TimeOfDay) bool {
	if start <= end {
		return t >= start && t <= end
	}
	return t >= start || t <= end
}

func (t TimeOfDay) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, errTimeOfDayRange
	}
	return t.String(), nil
}

func (t *TimeOfDay) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseTimeOfDay(v)
		if err != nil {
			return err
		}
		*t = parsed
	case []byte:
		parsed, err := ParseTimeOfDay(string(v))
		if err != nil {
			return err
		}
		*t = parsed
	case time.Time:
		*t = TimeOfDayOf(v)
	default:
		return fmt.Errorf("failed to scan TimeOfDay from %T", value)
	}
	return nil
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
