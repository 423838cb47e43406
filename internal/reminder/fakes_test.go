package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"LunaCare/internal/model"
)

type fakeSettingsStore struct {
	mu      sync.Mutex
	rows    map[int64]*model.ReminderSettings
	listErr error
	// returnAll 跳过粗筛，直接把所有行交给调度器，用于验证逐用户判定
	returnAll bool
	updates   map[int64]time.Time
	updateFn  func(userID int64) error
}

func newFakeSettingsStore(rows ...*model.ReminderSettings) *fakeSettingsStore {
	f := &fakeSettingsStore{
		rows:    make(map[int64]*model.ReminderSettings),
		updates: make(map[int64]time.Time),
	}
	for _, r := range rows {
		f.rows[r.UserID] = r
	}
	return f
}

// ListDueCandidates 模拟数据库粗筛：开启且处于窗口内
func (f *fakeSettingsStore) ListDueCandidates(_ context.Context, now time.Time) ([]*model.ReminderSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*model.ReminderSettings
	for _, r := range f.rows {
		if f.returnAll || (r.Enabled && r.InWindow(now)) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSettingsStore) UpdateLastSent(_ context.Context, userID int64, prev *time.Time, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateFn != nil {
		if err := f.updateFn(userID); err != nil {
			return err
		}
	}
	row, ok := f.rows[userID]
	if !ok {
		return errors.New("settings not found")
	}
	if !sameTime(row.LastSentAt, prev) {
		return ErrStaleSettings
	}
	t := sentAt
	row.LastSentAt = &t
	f.updates[userID] = sentAt
	return nil
}

func (f *fakeSettingsStore) lastSent(userID int64) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.updates[userID]
	return t, ok
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

type fakeActivityStore struct {
	mu    sync.Mutex
	last  map[int64]time.Time
	errs  map[int64]error
	calls int
}

func newFakeActivityStore() *fakeActivityStore {
	return &fakeActivityStore{
		last: make(map[int64]time.Time),
		errs: make(map[int64]error),
	}
}

func (f *fakeActivityStore) GetLastActivity(_ context.Context, userID int64) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	t, ok := f.last[userID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    map[int64]model.NotificationPayload
	results map[int64][]DeliveryResult
	errs    map[int64]error
	panics  map[int64]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		sent:    make(map[int64]model.NotificationPayload),
		results: make(map[int64][]DeliveryResult),
		errs:    make(map[int64]error),
		panics:  make(map[int64]bool),
	}
}

func (f *fakeNotifier) Send(_ context.Context, userID int64, payload model.NotificationPayload) ([]DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.panics[userID] {
		panic("notifier exploded")
	}
	if err := f.errs[userID]; err != nil {
		return nil, err
	}
	f.sent[userID] = payload
	if r, ok := f.results[userID]; ok {
		return r, nil
	}
	return []DeliveryResult{{Endpoint: "https://push.example/1", StatusCode: 201}}, nil
}

func (f *fakeNotifier) sentTo(userID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sent[userID]
	return ok
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	unlocked int
}

func (f *fakeLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.held == nil {
		f.held = make(map[string]bool)
	}
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) Unlock(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.unlocked++
	return nil
}
