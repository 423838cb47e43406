package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"LunaCare/internal/model"
)

func at(hhmm string) time.Time {
	tod := model.MustTimeOfDay(hhmm)
	return time.Date(2026, 3, 10, tod.Hour(), tod.Minute(), 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func settingsFor(userID int64, start, end string, interval int) *model.ReminderSettings {
	return &model.ReminderSettings{
		UserID:          userID,
		Enabled:         true,
		WindowStart:     model.MustTimeOfDay(start),
		WindowEnd:       model.MustTimeOfDay(end),
		IntervalMinutes: interval,
	}
}

func TestEvaluate(t *testing.T) {
	now := at("14:00")

	tests := []struct {
		name         string
		settings     func() *model.ReminderSettings
		lastActivity *time.Time
		want         Decision
	}{
		{
			name: "disabled",
			settings: func() *model.ReminderSettings {
				s := settingsFor(1, "08:00", "22:00", 60)
				s.Enabled = false
				return s
			},
			want: Decision{Reason: ReasonDisabled},
		},
		{
			name:     "before window",
			settings: func() *model.ReminderSettings { return settingsFor(1, "15:00", "22:00", 60) },
			want:     Decision{Reason: ReasonOutsideWindow},
		},
		{
			name:     "after window",
			settings: func() *model.ReminderSettings { return settingsFor(1, "08:00", "13:59", 60) },
			want:     Decision{Reason: ReasonOutsideWindow},
		},
		{
			name:     "window start is inclusive",
			settings: func() *model.ReminderSettings { return settingsFor(1, "14:00", "22:00", 60) },
			want:     Decision{Send: true},
		},
		{
			name:     "window end is inclusive",
			settings: func() *model.ReminderSettings { return settingsFor(1, "08:00", "14:00", 60) },
			want:     Decision{Send: true},
		},
		{
			name:     "overnight window excludes afternoon",
			settings: func() *model.ReminderSettings { return settingsFor(1, "22:00", "06:00", 60) },
			want:     Decision{Reason: ReasonOutsideWindow},
		},
		{
			name: "sent one minute too recently",
			settings: func() *model.ReminderSettings {
				s := settingsFor(1, "08:00", "22:00", 60)
				s.LastSentAt = ptr(now.Add(-59 * time.Minute))
				return s
			},
			want: Decision{Reason: ReasonRecentlySent},
		},
		{
			name: "sent exactly one interval ago",
			settings: func() *model.ReminderSettings {
				s := settingsFor(1, "08:00", "22:00", 60)
				s.LastSentAt = ptr(now.Add(-60 * time.Minute))
				return s
			},
			want: Decision{Send: true},
		},
		{
			name: "last sent in the future counts as too soon",
			settings: func() *model.ReminderSettings {
				s := settingsFor(1, "08:00", "22:00", 60)
				s.LastSentAt = ptr(now.Add(5 * time.Minute))
				return s
			},
			want: Decision{Reason: ReasonRecentlySent},
		},
		{
			name:         "recent activity",
			settings:     func() *model.ReminderSettings { return settingsFor(1, "08:00", "22:00", 60) },
			lastActivity: ptr(now.Add(-30 * time.Minute)),
			want:         Decision{Reason: ReasonRecentActivity},
		},
		{
			name:         "stale activity",
			settings:     func() *model.ReminderSettings { return settingsFor(1, "08:00", "22:00", 60) },
			lastActivity: ptr(now.Add(-61 * time.Minute)),
			want:         Decision{Send: true},
		},
		{
			name:         "zero interval falls back to sixty minutes",
			settings:     func() *model.ReminderSettings { return settingsFor(1, "08:00", "22:00", 0) },
			lastActivity: ptr(now.Add(-45 * time.Minute)),
			want:         Decision{Reason: ReasonRecentActivity},
		},
		{
			name: "scenario from the product walkthrough",
			settings: func() *model.ReminderSettings {
				s := settingsFor(1, "08:00", "22:00", 60)
				s.LastSentAt = ptr(at("12:30"))
				return s
			},
			lastActivity: ptr(at("11:00")),
			want:         Decision{Send: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.settings(), tt.lastActivity, now, defaultFallbackMinutes)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateOvernightWindow(t *testing.T) {
	s := settingsFor(1, "22:00", "06:00", 60)

	assert.True(t, Evaluate(s, nil, at("23:30"), 60).Send)
	assert.True(t, Evaluate(s, nil, at("05:15"), 60).Send)
	assert.Equal(t, ReasonOutsideWindow, Evaluate(s, nil, at("06:01"), 60).Reason)
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "send", Decision{Send: true}.String())
	assert.Equal(t, "skip:recently_sent", Decision{Reason: ReasonRecentlySent}.String())
}

func TestDeliveryResult(t *testing.T) {
	assert.True(t, DeliveryResult{StatusCode: 201}.OK())
	assert.True(t, DeliveryResult{}.OK())
	assert.False(t, DeliveryResult{StatusCode: 500}.OK())
	assert.False(t, DeliveryResult{StatusCode: 410}.OK())
	assert.True(t, DeliveryResult{StatusCode: 410}.Gone())
	assert.True(t, DeliveryResult{StatusCode: 404}.Gone())
	assert.False(t, DeliveryResult{StatusCode: 429}.Gone())
}
