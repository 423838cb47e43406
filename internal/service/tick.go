package service

import (
	"context"
	"errors"
	"time"

	"LunaCare/internal/reminder"
	pkgerrors "LunaCare/pkg/errors"
)

// TickRunner 执行一轮提醒
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) (*reminder.TickReport, error)
}

// TickService 运维手动触发一轮提醒
type TickService struct {
	runner TickRunner
	now    func() time.Time
}

func NewTickService(runner TickRunner, now func() time.Time) *TickService {
	if now == nil {
		now = time.Now
	}
	return &TickService{runner: runner, now: now}
}

// Run 同步执行一轮 tick，上一轮未结束或其他实例持有锁时返回 ReminderTickBusy
func (s *TickService) Run(ctx context.Context) (*reminder.TickReport, error) {
	report, err := s.runner.RunTick(ctx, s.now())
	if errors.Is(err, reminder.ErrTickInProgress) || errors.Is(err, reminder.ErrTickLocked) {
		return nil, pkgerrors.ReminderTickBusy
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}
