package reminder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LunaCare/internal/model"
)

type harness struct {
	settings *fakeSettingsStore
	activity *fakeActivityStore
	notifier *fakeNotifier
	sched    *Scheduler
}

func newHarness(t *testing.T, opts Options, rows ...*model.ReminderSettings) *harness {
	t.Helper()

	h := &harness{
		settings: newFakeSettingsStore(rows...),
		activity: newFakeActivityStore(),
		notifier: newFakeNotifier(),
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	sched, err := New(Dependencies{
		Settings: h.settings,
		Activity: h.activity,
		Notifier: h.notifier,
	}, opts)
	require.NoError(t, err)
	h.sched = sched
	return h
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Dependencies{}, Options{})
	require.Error(t, err)
}

func TestNewAppliesDefaults(t *testing.T) {
	h := newHarness(t, Options{})
	opts := h.sched.Options()

	assert.Equal(t, DefaultTickInterval, opts.TickInterval)
	assert.Equal(t, DefaultCallTimeout, opts.CallTimeout)
	assert.Equal(t, DefaultConcurrency, opts.Concurrency)
	assert.Equal(t, 60, opts.DefaultIntervalMinutes)
	assert.Equal(t, "Time to hydrate", opts.Payload.Title)
	assert.Equal(t, "/tracker/water", opts.Payload.Data["url"])
}

func TestRunTickNeverRemindsDisabledUsers(t *testing.T) {
	disabled := settingsFor(1, "00:00", "23:59", 15)
	disabled.Enabled = false

	h := newHarness(t, DefaultOptions(), disabled)
	h.settings.returnAll = true

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.False(t, h.notifier.sentTo(1))
	assert.Equal(t, 1, report.Skipped[ReasonDisabled])
	assert.Zero(t, h.activity.calls)
}

func TestRunTickSkipsUsersOutsideWindow(t *testing.T) {
	h := newHarness(t, DefaultOptions(), settingsFor(1, "18:00", "22:00", 60))
	h.settings.returnAll = true

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.False(t, h.notifier.sentTo(1))
	assert.Equal(t, 1, report.Skipped[ReasonOutsideWindow])
}

func TestRunTickTooSoonSinceLastReminder(t *testing.T) {
	now := at("14:00")
	s := settingsFor(1, "08:00", "22:00", 60)
	s.LastSentAt = ptr(now.Add(-59 * time.Minute))

	h := newHarness(t, DefaultOptions(), s)

	report, err := h.sched.RunTick(context.Background(), now)
	require.NoError(t, err)

	assert.False(t, h.notifier.sentTo(1))
	assert.Equal(t, 1, report.Skipped[ReasonRecentlySent])
	assert.Zero(t, h.activity.calls, "activity must not be read when the last reminder is too recent")
}

func TestRunTickSendsWhenIntervalElapsed(t *testing.T) {
	now := at("14:00")
	s := settingsFor(1, "08:00", "22:00", 60)
	s.LastSentAt = ptr(now.Add(-61 * time.Minute))

	h := newHarness(t, DefaultOptions(), s)

	report, err := h.sched.RunTick(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, h.notifier.sentTo(1))
	sentAt, ok := h.settings.lastSent(1)
	require.True(t, ok)
	assert.True(t, sentAt.Equal(now))
	assert.Equal(t, 1, report.Sent)
}

func TestRunTickRecentActivitySuppressesReminder(t *testing.T) {
	now := at("14:00")
	h := newHarness(t, DefaultOptions(), settingsFor(1, "08:00", "22:00", 60))
	h.activity.last[1] = now.Add(-20 * time.Minute)

	report, err := h.sched.RunTick(context.Background(), now)
	require.NoError(t, err)

	assert.False(t, h.notifier.sentTo(1))
	assert.Equal(t, 1, report.Skipped[ReasonRecentActivity])
	_, written := h.settings.lastSent(1)
	assert.False(t, written)
}

func TestRunTickSendsWithoutHistory(t *testing.T) {
	now := at("14:00")
	h := newHarness(t, DefaultOptions(),
		settingsFor(1, "08:00", "22:00", 60),
		settingsFor(2, "08:00", "22:00", 60),
	)
	h.activity.last[2] = now.Add(-3 * time.Hour)

	report, err := h.sched.RunTick(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, h.notifier.sentTo(1))
	assert.True(t, h.notifier.sentTo(2))
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 2, report.Candidates)
}

func TestRunTickWalkthroughScenario(t *testing.T) {
	s := settingsFor(1, "08:00", "22:00", 60)
	s.LastSentAt = ptr(at("12:30"))

	h := newHarness(t, DefaultOptions(), s)
	h.activity.last[1] = at("11:00")

	_, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.True(t, h.notifier.sentTo(1))
	sentAt, ok := h.settings.lastSent(1)
	require.True(t, ok)
	assert.True(t, sentAt.Equal(at("14:00")))
}

func TestRunTickIsolatesPerUserFailures(t *testing.T) {
	now := at("14:00")
	h := newHarness(t, DefaultOptions(),
		settingsFor(1, "08:00", "22:00", 60),
		settingsFor(2, "08:00", "22:00", 60),
		settingsFor(3, "08:00", "22:00", 60),
	)
	h.activity.errs[1] = errors.New("activity store unavailable")
	h.notifier.panics[2] = true

	report, err := h.sched.RunTick(context.Background(), now)
	require.NoError(t, err)

	assert.True(t, h.notifier.sentTo(3))
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 2, report.Failed)
}

func TestRunTickNotifierErrorDoesNotAbortBatch(t *testing.T) {
	h := newHarness(t, DefaultOptions(),
		settingsFor(1, "08:00", "22:00", 60),
		settingsFor(2, "08:00", "22:00", 60),
	)
	h.notifier.errs[1] = errors.New("push service down")

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.True(t, h.notifier.sentTo(2))
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

func TestRunTickListFailure(t *testing.T) {
	h := newHarness(t, DefaultOptions(), settingsFor(1, "08:00", "22:00", 60))
	h.settings.listErr = errors.New("connection refused")

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.Error(t, err)
	require.NotNil(t, report)

	assert.False(t, h.notifier.sentTo(1))

	// 下一轮独立执行
	h.settings.listErr = nil
	_, err = h.sched.RunTick(context.Background(), at("14:15"))
	require.NoError(t, err)
	assert.True(t, h.notifier.sentTo(1))
}

func TestRunTickStaleUpdateIsNotAFailure(t *testing.T) {
	h := newHarness(t, DefaultOptions(), settingsFor(1, "08:00", "22:00", 60))
	h.settings.updateFn = func(int64) error { return ErrStaleSettings }

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Stale)
	assert.Zero(t, report.Failed)
}

func TestRunTickSecondTickSameMinuteDoesNotResend(t *testing.T) {
	h := newHarness(t, DefaultOptions(), settingsFor(1, "08:00", "22:00", 60))

	first, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)
	second, err := h.sched.RunTick(context.Background(), at("14:15"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Sent)
	assert.Zero(t, second.Sent)
	assert.Equal(t, 1, second.Skipped[ReasonRecentlySent])
}

func TestRunTickDispatchFailurePolicy(t *testing.T) {
	failing := []DeliveryResult{
		{Endpoint: "https://push.example/a", StatusCode: 500},
		{Endpoint: "https://push.example/b", Err: errors.New("timeout")},
	}

	tests := []struct {
		name           string
		retryOnFailure bool
		wantWritten    bool
	}{
		{name: "mark on failure", retryOnFailure: false, wantWritten: true},
		{name: "leave untouched for retry", retryOnFailure: true, wantWritten: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.RetryOnFailure = tt.retryOnFailure

			h := newHarness(t, opts, settingsFor(1, "08:00", "22:00", 60))
			h.notifier.results[1] = failing

			report, err := h.sched.RunTick(context.Background(), at("14:00"))
			require.NoError(t, err)

			_, written := h.settings.lastSent(1)
			assert.Equal(t, tt.wantWritten, written)
			assert.Equal(t, 1, report.Failed)
			assert.Zero(t, report.Sent)
		})
	}
}

func TestRunTickZeroOptionsMarkOnFailure(t *testing.T) {
	h := newHarness(t, Options{}, settingsFor(1, "08:00", "22:00", 60))
	h.notifier.results[1] = []DeliveryResult{{Endpoint: "https://push.example/a", StatusCode: 500}}

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.False(t, h.sched.Options().RetryOnFailure)
	assert.Equal(t, 1, report.Failed)
	_, written := h.settings.lastSent(1)
	assert.True(t, written)
}

func TestRunTickEndpointLookupFailureIsRetriedNextTick(t *testing.T) {
	for _, retry := range []bool{false, true} {
		opts := DefaultOptions()
		opts.RetryOnFailure = retry

		h := newHarness(t, opts, settingsFor(1, "08:00", "22:00", 60))
		h.notifier.errs[1] = fmt.Errorf("%w: %w", ErrEndpointLookup, errors.New("connection refused"))

		report, err := h.sched.RunTick(context.Background(), at("14:00"))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failed)
		assert.Zero(t, report.Sent)
		_, written := h.settings.lastSent(1)
		assert.False(t, written, "retry_on_failure=%v", retry)

		delete(h.notifier.errs, 1)
		report, err = h.sched.RunTick(context.Background(), at("14:30"))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Sent, "retry_on_failure=%v", retry)
		assert.Zero(t, report.Skipped[ReasonRecentlySent])
	}
}

func TestRunTickPartialDeliveryCountsAsSent(t *testing.T) {
	opts := DefaultOptions()
	opts.RetryOnFailure = true

	h := newHarness(t, opts, settingsFor(1, "08:00", "22:00", 60))
	h.notifier.results[1] = []DeliveryResult{
		{Endpoint: "https://push.example/a", StatusCode: 410},
		{Endpoint: "https://push.example/b", StatusCode: 201},
	}

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	_, written := h.settings.lastSent(1)
	assert.True(t, written)
}

func TestRunTickNoEndpoints(t *testing.T) {
	h := newHarness(t, DefaultOptions(), settingsFor(1, "08:00", "22:00", 60))
	h.notifier.errs[1] = ErrNoEndpoints

	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)

	assert.Equal(t, 1, report.NoEndpoints)
	_, written := h.settings.lastSent(1)
	assert.False(t, written)
}

func TestRunTickUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	opts := DefaultOptions()
	opts.Location = loc

	// 06:30 UTC 即 14:30 UTC+8，处于 08:00-22:00 窗口内
	h := newHarness(t, opts, settingsFor(1, "08:00", "22:00", 60))

	report, err := h.sched.RunTick(context.Background(), time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, loc, report.Now.Location())
}

type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingNotifier) Send(ctx context.Context, _ int64, _ model.NotificationPayload) ([]DeliveryResult, error) {
	close(b.entered)
	<-b.release
	return []DeliveryResult{{StatusCode: 201}}, nil
}

func TestRunTickRejectsOverlappingTick(t *testing.T) {
	notifier := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	sched, err := New(Dependencies{
		Settings: newFakeSettingsStore(settingsFor(1, "08:00", "22:00", 60)),
		Activity: newFakeActivityStore(),
		Notifier: notifier,
	}, Options{Location: time.UTC})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := sched.RunTick(context.Background(), at("14:00"))
		errCh <- err
	}()

	<-notifier.entered
	_, err = sched.RunTick(context.Background(), at("14:00"))
	assert.ErrorIs(t, err, ErrTickInProgress)

	close(notifier.release)
	require.NoError(t, <-errCh)
}

func TestRunTickHonorsDistributedLock(t *testing.T) {
	locker := &fakeLocker{}
	settings := newFakeSettingsStore(settingsFor(1, "08:00", "22:00", 60))
	notifier := newFakeNotifier()

	sched, err := New(Dependencies{
		Settings: settings,
		Activity: newFakeActivityStore(),
		Notifier: notifier,
		Locker:   locker,
	}, Options{Location: time.UTC})
	require.NoError(t, err)

	locked, err := locker.TryLock(context.Background(), DefaultTickLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	_, err = sched.RunTick(context.Background(), at("14:00"))
	assert.ErrorIs(t, err, ErrTickLocked)
	assert.False(t, notifier.sentTo(1))

	require.NoError(t, locker.Unlock(context.Background(), DefaultTickLockKey))

	report, err := sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 2, locker.unlocked)
}

func TestRunTickProceedsWhenLockServiceFails(t *testing.T) {
	sched, err := New(Dependencies{
		Settings: newFakeSettingsStore(settingsFor(1, "08:00", "22:00", 60)),
		Activity: newFakeActivityStore(),
		Notifier: newFakeNotifier(),
		Locker:   &fakeLocker{err: errors.New("redis down")},
	}, Options{Location: time.UTC})
	require.NoError(t, err)

	report, err := sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestRunTickUsesInjectedTickID(t *testing.T) {
	opts := DefaultOptions()
	opts.NextID = func() (int64, error) { return 42, nil }

	h := newHarness(t, opts)
	report, err := h.sched.RunTick(context.Background(), at("14:00"))
	require.NoError(t, err)
	assert.Equal(t, "42", report.TickID)
}

func TestStartRunsTicksUntilCancelled(t *testing.T) {
	opts := DefaultOptions()
	opts.TickInterval = 10 * time.Millisecond
	opts.Clock = func() time.Time { return at("14:00") }

	h := newHarness(t, opts, settingsFor(1, "08:00", "22:00", 60))

	ctx, cancel := context.WithCancel(context.Background())
	done, err := h.sched.Start(ctx)
	require.NoError(t, err)

	_, err = h.sched.Start(ctx)
	assert.ErrorIs(t, err, ErrAlreadyStarted)

	require.Eventually(t, func() bool { return h.notifier.sentTo(1) }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler loop did not stop after cancel")
	}
}

func TestNewRejectsInvalidSchedule(t *testing.T) {
	opts := DefaultOptions()
	opts.Schedule = "every fifteen minutes"

	_, err := New(Dependencies{
		Settings: newFakeSettingsStore(),
		Activity: newFakeActivityStore(),
		Notifier: newFakeNotifier(),
	}, opts)
	require.Error(t, err)
}

func TestStartWithCronSchedule(t *testing.T) {
	opts := DefaultOptions()
	opts.Schedule = "@every 1s"
	opts.Clock = func() time.Time { return at("14:00") }

	h := newHarness(t, opts, settingsFor(1, "08:00", "22:00", 60))

	ctx, cancel := context.WithCancel(context.Background())
	done, err := h.sched.Start(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.notifier.sentTo(1) }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cron scheduler did not stop after cancel")
	}
}
