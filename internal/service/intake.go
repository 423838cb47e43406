package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"LunaCare/internal/model"
	pkgerrors "LunaCare/pkg/errors"
)

const (
	MinIntakeML = 1
	MaxIntakeML = 5000
	// 允许客户端时钟略快于服务端
	maxIntakeClockSkew = 5 * time.Minute
)

// IntakeStore 饮水记录写入
type IntakeStore interface {
	Create(ctx context.Context, intake *model.WaterIntake) error
}

// LogIntakeRequest 记录一次饮水，logged_at 为空时取服务端时间
type LogIntakeRequest struct {
	LoggedAt *time.Time `json:"logged_at"`
	AmountML int        `json:"amount_ml"`
}

// IntakeService 饮水记录，最近一条记录会抑制下一次提醒
type IntakeService struct {
	store  IntakeStore
	now    func() time.Time
	logger *zap.Logger
}

func NewIntakeService(store IntakeStore, now func() time.Time, logger *zap.Logger) *IntakeService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntakeService{store: store, now: now, logger: logger}
}

// Log 校验并写入一条饮水记录
func (s *IntakeService) Log(ctx context.Context, userID int64, req LogIntakeRequest) (*model.WaterIntake, error) {
	if userID <= 0 {
		return nil, pkgerrors.InvalidUserID
	}
	if req.AmountML < MinIntakeML || req.AmountML > MaxIntakeML {
		return nil, pkgerrors.IntakeInvalid.WithMessage("amount_ml must be between %d and %d", MinIntakeML, MaxIntakeML)
	}

	now := s.now()
	loggedAt := now
	if req.LoggedAt != nil {
		if req.LoggedAt.After(now.Add(maxIntakeClockSkew)) {
			return nil, pkgerrors.IntakeInvalid.WithMessage("logged_at must not be in the future")
		}
		loggedAt = *req.LoggedAt
	}

	intake := &model.WaterIntake{
		UserID:   userID,
		AmountML: req.AmountML,
		LoggedAt: loggedAt.UTC(),
	}
	if err := s.store.Create(ctx, intake); err != nil {
		return nil, err
	}

	s.logger.Debug("Water intake logged",
		zap.Int64("user_id", userID),
		zap.Int("amount_ml", req.AmountML),
		zap.Time("logged_at", intake.LoggedAt),
	)
	return intake, nil
}
