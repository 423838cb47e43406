package reminder

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Status 单个用户处理后的结果
type Status string

const (
	StatusSkipped     Status = "skipped"
	StatusSent        Status = "sent"
	StatusFailed      Status = "failed"
	StatusStale       Status = "stale"
	StatusNoEndpoints Status = "no_endpoints"
)

// Outcome 单个候选用户的处理结果
type Outcome struct {
	Err             error
	Decision        Decision
	Status          Status
	UserID          int64
	Delivered       int
	FailedEndpoints int
	// Marked 表示 lastSentAt 已回写
	Marked bool
}

// TickReport 一次 tick 的汇总
type TickReport struct {
	Now         time.Time      `json:"now"`
	Skipped     map[Reason]int `json:"skipped"`
	TickID      string         `json:"tick_id"`
	Candidates  int            `json:"candidates"`
	Sent        int            `json:"sent"`
	Failed      int            `json:"failed"`
	Stale       int            `json:"stale"`
	NoEndpoints int            `json:"no_endpoints"`
	Duration    time.Duration  `json:"duration"`
	mu          sync.Mutex
}

func newTickReport(tickID string, now time.Time) *TickReport {
	return &TickReport{
		TickID:  tickID,
		Now:     now,
		Skipped: make(map[Reason]int),
	}
}

func (r *TickReport) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch o.Status {
	case StatusSkipped:
		r.Skipped[o.Decision.Reason]++
	case StatusSent:
		r.Sent++
	case StatusStale:
		r.Stale++
	case StatusNoEndpoints:
		r.NoEndpoints++
	default:
		r.Failed++
	}
}

// SkippedTotal 跳过的用户总数
func (r *TickReport) SkippedTotal() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// MarshalLogObject 让 report 可以直接作为 zap.Object 输出
func (r *TickReport) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	enc.AddString("tick_id", r.TickID)
	enc.AddTime("now", r.Now)
	enc.AddInt("candidates", r.Candidates)
	enc.AddInt("sent", r.Sent)
	enc.AddInt("failed", r.Failed)
	enc.AddInt("stale", r.Stale)
	enc.AddInt("no_endpoints", r.NoEndpoints)
	enc.AddDuration("duration", r.Duration)
	return enc.AddObject("skipped", zapcore.ObjectMarshalerFunc(func(e zapcore.ObjectEncoder) error {
		for reason, n := range r.Skipped {
			e.AddInt(string(reason), n)
		}
		return nil
	}))
}

var _ zapcore.ObjectMarshaler = (*TickReport)(nil)

func reportField(r *TickReport) zap.Field {
	return zap.Object("report", r)
}
