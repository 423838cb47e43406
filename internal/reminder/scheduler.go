package reminder

// 饮水提醒调度器：固定周期扫描开启提醒的用户，判定是否需要推送，并回写 lastSentAt 防止重复发送

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"LunaCare/internal/model"
)

const (
	DefaultTickInterval    = 15 * time.Minute
	DefaultTickTimeout     = 5 * time.Minute
	DefaultCallTimeout     = 10 * time.Second
	DefaultConcurrency     = 4
	DefaultTickLockKey     = "reminder:tick"
	defaultFallbackMinutes = model.DefaultReminderIntervalMinutes
)

// Options 调度器配置
type Options struct {
	// Clock 返回当前时间，测试时注入
	Clock func() time.Time
	// NextID 生成 tick ID，默认使用时间戳
	NextID   func() (int64, error)
	Location *time.Location
	Payload  model.NotificationPayload
	LockKey  string

	TickInterval time.Duration
	// Schedule 可选的 cron 表达式（含 @every 描述符），设置后按墙钟对齐触发，TickInterval 仍作为锁的过期时间
	Schedule    string
	TickTimeout time.Duration
	CallTimeout time.Duration
	Concurrency int
	// DefaultIntervalMinutes 用户未设置间隔时的默认值
	DefaultIntervalMinutes int
	// RetryOnFailure 投递全部失败时不回写 lastSentAt，下一轮 tick 重新尝试
	// 默认 false：失败后仍回写，要等一个完整间隔才会再次提醒
	RetryOnFailure bool
}

// DefaultOptions 返回默认配置
func DefaultOptions() Options {
	return Options{
		Clock:                  time.Now,
		Location:               time.Local,
		Payload:                DefaultPayload(),
		LockKey:                DefaultTickLockKey,
		TickInterval:           DefaultTickInterval,
		TickTimeout:            DefaultTickTimeout,
		CallTimeout:            DefaultCallTimeout,
		Concurrency:            DefaultConcurrency,
		DefaultIntervalMinutes: defaultFallbackMinutes,
	}
}

// DefaultPayload 固定的提醒文案
func DefaultPayload() model.NotificationPayload {
	return model.NotificationPayload{
		Title: "Time to hydrate",
		Body:  "You haven't logged any water in a while. Take a sip and log it!",
		Icon:  "/icons/icon-192x192.png",
		Data:  map[string]string{"url": "/tracker/water"},
	}
}

// Dependencies 调度器依赖的外部能力
type Dependencies struct {
	Settings SettingsStore
	Activity ActivityStore
	Notifier Notifier
	// Locker 可选，为空时只做进程内防重入
	Locker   Locker
	Recorder Recorder
	Logger   *zap.Logger
}

// Scheduler 由进程启动时构造并持有，两轮 tick 之间不保存任何判定状态
type Scheduler struct {
	deps     Dependencies
	opts     Options
	logger   *zap.Logger
	schedule cron.Schedule
	started  atomic.Bool

	tickMu      sync.Mutex
	tickRunning bool
}

// New 创建调度器，未设置的配置项使用默认值
func New(deps Dependencies, opts Options) (*Scheduler, error) {
	if deps.Settings == nil || deps.Activity == nil || deps.Notifier == nil {
		return nil, fmt.Errorf("reminder scheduler requires settings, activity and notifier")
	}

	defaults := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.Location == nil {
		opts.Location = defaults.Location
	}
	if opts.Payload.Title == "" {
		opts.Payload = defaults.Payload
	}
	if opts.LockKey == "" {
		opts.LockKey = defaults.LockKey
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaults.TickInterval
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = defaults.TickTimeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaults.CallTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.DefaultIntervalMinutes <= 0 {
		opts.DefaultIntervalMinutes = defaults.DefaultIntervalMinutes
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Scheduler{
		deps:   deps,
		opts:   opts,
		logger: log,
	}
	if opts.Schedule != "" {
		schedule, err := cron.ParseStandard(opts.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid reminder schedule %q: %w", opts.Schedule, err)
		}
		s.schedule = schedule
	}
	return s, nil
}

// Options 返回生效的配置
func (s *Scheduler) Options() Options {
	return s.opts
}

// Start 在后台注册周期 tick，不阻塞调用方；返回的 channel 在循环退出后关闭
func (s *Scheduler) Start(ctx context.Context) (<-chan struct{}, error) {
	if !s.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyStarted
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if s.schedule != nil {
			s.cronLoop(ctx)
			return
		}
		s.loop(ctx)
	}()
	return done, nil
}

// cronLoop 按 cron 表达式触发 tick，ctx 结束后等待正在执行的 tick 完成
func (s *Scheduler) cronLoop(ctx context.Context) {
	c := cron.New(cron.WithLocation(s.opts.Location))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.runScheduledTick(ctx)
	}))

	s.logger.Info("Reminder scheduler started",
		zap.String("schedule", s.opts.Schedule),
		zap.Int("concurrency", s.opts.Concurrency),
		zap.Bool("retry_on_failure", s.opts.RetryOnFailure),
		zap.String("location", s.opts.Location.String()),
	)
	c.Start()

	<-ctx.Done()
	s.logger.Info("Reminder scheduler stopping")
	<-c.Stop().Done()
}

func (s *Scheduler) runScheduledTick(ctx context.Context) {
	if _, err := s.RunTick(ctx, s.opts.Clock()); err != nil {
		// tick 失败只记日志，下一轮独立执行，不在本轮重试
		s.logger.Error("Reminder tick failed", zap.Error(err))
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	s.logger.Info("Reminder scheduler started",
		zap.Duration("tick_interval", s.opts.TickInterval),
		zap.Int("concurrency", s.opts.Concurrency),
		zap.Bool("retry_on_failure", s.opts.RetryOnFailure),
		zap.String("location", s.opts.Location.String()),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder scheduler stopping")
			return
		case <-ticker.C:
			s.runScheduledTick(ctx)
		}
	}
}

// RunTick 执行一轮提醒判定，now 在整轮中保持不变
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) (*TickReport, error) {
	s.tickMu.Lock()
	if s.tickRunning {
		s.tickMu.Unlock()
		s.logger.Warn("Reminder tick already running, skipping")
		return nil, ErrTickInProgress
	}
	s.tickRunning = true
	s.tickMu.Unlock()

	defer func() {
		s.tickMu.Lock()
		s.tickRunning = false
		s.tickMu.Unlock()
	}()

	startTime := time.Now()
	now = now.In(s.opts.Location)

	tickCtx, cancel := context.WithTimeout(ctx, s.opts.TickTimeout)
	defer cancel()

	if s.deps.Locker != nil {
		locked, err := s.deps.Locker.TryLock(tickCtx, s.opts.LockKey, s.opts.TickInterval)
		switch {
		case err != nil:
			// 锁服务不可用时降级为单实例行为，条件更新仍能防止重复回写
			s.logger.Warn("Failed to acquire reminder tick lock, proceeding without it", zap.Error(err))
		case !locked:
			s.logger.Info("Reminder tick held by another instance, skipping")
			return nil, ErrTickLocked
		default:
			defer func() {
				unlockCtx, unlockCancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
				defer unlockCancel()
				if err := s.deps.Locker.Unlock(unlockCtx, s.opts.LockKey); err != nil {
					s.logger.Warn("Failed to release reminder tick lock", zap.Error(err))
				}
			}()
		}
	}

	report := newTickReport(s.nextTickID(now), now)
	tickCtx = WithTickID(tickCtx, report.TickID)
	log := s.logger.With(zap.String("tick_id", report.TickID))

	log.Info("Starting reminder tick", zap.Time("now", now))

	listCtx, listCancel := context.WithTimeout(tickCtx, s.opts.CallTimeout)
	candidates, err := s.deps.Settings.ListDueCandidates(listCtx, now)
	listCancel()
	if err != nil {
		report.Duration = time.Since(startTime)
		s.recordTick(ctx, report)
		log.Error("Failed to list reminder candidates", zap.Error(err))
		return report, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	report.Candidates = len(candidates)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	for _, candidate := range candidates {
		settings := candidate
		g.Go(func() error {
			outcome := s.safeEvaluate(tickCtx, log, settings, now)
			report.record(outcome)
			s.recordOutcome(ctx, outcome)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(startTime)
	s.recordTick(ctx, report)

	log.Info("Reminder tick completed", reportField(report))
	return report, nil
}

// safeEvaluate 隔离单个用户的失败（包括 panic），不影响同批其他用户
func (s *Scheduler) safeEvaluate(ctx context.Context, log *zap.Logger, settings *model.ReminderSettings, now time.Time) (outcome Outcome) {
	outcome.UserID = settings.UserID

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = StatusFailed
			outcome.Err = fmt.Errorf("panic while evaluating reminder: %v", r)
			log.Error("Reminder evaluation panicked",
				zap.Int64("user_id", settings.UserID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()

	return s.evaluateAndNotify(ctx, log, settings, now)
}

// evaluateAndNotify 单个用户的判定、投递与回写
func (s *Scheduler) evaluateAndNotify(ctx context.Context, log *zap.Logger, settings *model.ReminderSettings, now time.Time) Outcome {
	outcome := Outcome{UserID: settings.UserID}
	log = log.With(zap.Int64("user_id", settings.UserID))
	fallback := s.opts.DefaultIntervalMinutes

	if d, done := precheck(settings, now, fallback); done {
		outcome.Decision = d
		outcome.Status = StatusSkipped
		log.Debug("Reminder skipped", zap.String("reason", string(d.Reason)))
		return outcome
	}

	activityCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	lastActivity, err := s.deps.Activity.GetLastActivity(activityCtx, settings.UserID)
	cancel()
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("failed to get last activity: %w", err)
		log.Error("Failed to get last activity", zap.Error(err))
		return outcome
	}

	outcome.Decision = Evaluate(settings, lastActivity, now, fallback)
	if !outcome.Decision.Send {
		outcome.Status = StatusSkipped
		log.Debug("Reminder skipped", zap.String("reason", string(outcome.Decision.Reason)))
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	results, sendErr := s.deps.Notifier.Send(sendCtx, settings.UserID, s.opts.Payload)
	cancel()

	if errors.Is(sendErr, ErrNoEndpoints) {
		outcome.Status = StatusNoEndpoints
		log.Info("User has no push endpoints, reminder not sent")
		return outcome
	}
	if errors.Is(sendErr, ErrEndpointLookup) {
		// 未尝试投递，不回写，下一轮重新判定
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("failed to dispatch reminder: %w", sendErr)
		log.Error("Failed to look up push endpoints", zap.Error(sendErr))
		return outcome
	}

	for _, r := range results {
		if r.OK() {
			outcome.Delivered++
			continue
		}
		outcome.FailedEndpoints++
		log.Warn("Reminder delivery failed for endpoint",
			zap.String("endpoint", r.Endpoint),
			zap.Int("status_code", r.StatusCode),
			zap.Error(r.Err),
		)
	}

	dispatchFailed := sendErr != nil || outcome.Delivered == 0
	if dispatchFailed {
		if sendErr != nil {
			outcome.Err = fmt.Errorf("failed to dispatch reminder: %w", sendErr)
		} else {
			outcome.Err = fmt.Errorf("failed to dispatch reminder: all %d endpoints failed", outcome.FailedEndpoints)
		}
		log.Error("Reminder dispatch failed",
			zap.Error(outcome.Err),
			zap.Bool("retry_on_failure", s.opts.RetryOnFailure),
		)
		if s.opts.RetryOnFailure {
			outcome.Status = StatusFailed
			return outcome
		}
	}

	updateCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	err = s.deps.Settings.UpdateLastSent(updateCtx, settings.UserID, settings.LastSentAt, now)
	cancel()

	switch {
	case errors.Is(err, ErrStaleSettings):
		outcome.Status = StatusStale
		log.Info("Reminder already recorded by another tick")
		return outcome
	case err != nil:
		outcome.Status = StatusFailed
		outcome.Err = fmt.Errorf("failed to update last sent: %w", err)
		log.Error("Failed to update reminder last sent", zap.Error(err))
		return outcome
	}

	outcome.Marked = true
	if dispatchFailed {
		outcome.Status = StatusFailed
		return outcome
	}

	outcome.Status = StatusSent
	log.Info("Reminder sent",
		zap.Int("delivered", outcome.Delivered),
		zap.Int("failed_endpoints", outcome.FailedEndpoints),
	)
	return outcome
}

func (s *Scheduler) nextTickID(now time.Time) string {
	if s.opts.NextID != nil {
		if id, err := s.opts.NextID(); err == nil {
			return strconv.FormatInt(id, 10)
		} else {
			s.logger.Warn("Failed to generate tick ID, falling back to timestamp", zap.Error(err))
		}
	}
	return strconv.FormatInt(now.UnixNano(), 10)
}

func (s *Scheduler) recordTick(ctx context.Context, report *TickReport) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordTick(ctx, report)
	}
}

func (s *Scheduler) recordOutcome(ctx context.Context, outcome Outcome) {
	if s.deps.Recorder != nil {
		s.deps.Recorder.RecordOutcome(ctx, outcome)
	}
}
