package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen 熔断中，请求未被执行
var ErrOpen = errors.New("circuit breaker is open")

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 关闭状态：正常工作
	StateOpen                  // 开启状态：熔断中
	StateHalfOpen              // 半开状态：尝试恢复
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker 连续失败达到阈值后熔断，resetTimeout 后进入半开状态试探
type CircuitBreaker struct {
	now    func() time.Time
	logger *zap.Logger

	name             string
	maxFailures      int           // 最大失败次数
	resetTimeout     time.Duration // 重置超时时间
	halfOpenMaxCalls int           // 半开状态最大调用次数

	mu            sync.Mutex
	state         State
	failures      int
	lastFailTime  time.Time
	halfOpenCalls int
}

// Option 熔断器可选配置
type Option func(*CircuitBreaker)

// WithLogger 设置状态变化日志
func WithLogger(l *zap.Logger) Option {
	return func(cb *CircuitBreaker) { cb.logger = l }
}

// WithClock 注入时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithHalfOpenMaxCalls 半开状态允许的试探次数，默认 1
func WithHalfOpenMaxCalls(n int) Option {
	return func(cb *CircuitBreaker) {
		if n > 0 {
			cb.halfOpenMaxCalls = n
		}
	}
}

// New 创建熔断器
func New(name string, maxFailures int, resetTimeout time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		now:              time.Now,
		logger:           zap.NewNop(),
		name:             name,
		maxFailures:      maxFailures,
		resetTimeout:     resetTimeout,
		halfOpenMaxCalls: 1,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	if cb.maxFailures <= 0 {
		cb.maxFailures = 1
	}
	return cb
}

// Call 执行带熔断保护的操作；ctx 已取消导致的失败不计入熔断
func (cb *CircuitBreaker) Call(ctx context.Context, operation func() error) error {
	if !cb.allowRequest() {
		return fmt.Errorf("%w: %s", ErrOpen, cb.name)
	}

	err := operation()
	if err != nil && ctx.Err() != nil {
		cb.release()
		return err
	}
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) allowRequest() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailTime) < cb.resetTimeout {
			return false
		}
		cb.transitionTo(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.halfOpenMaxCalls {
			return false
		}
		cb.halfOpenCalls++
		return true
	default:
		return false
	}
}

// release 归还半开状态的试探名额
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateHalfOpen && cb.halfOpenCalls > 0 {
		cb.halfOpenCalls--
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		if cb.state == StateHalfOpen {
			cb.transitionTo(StateClosed)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	cb.lastFailTime = cb.now()

	cb.logger.Warn("Protected operation failed",
		zap.String("breaker", cb.name),
		zap.Int("failures", cb.failures),
		zap.String("state", cb.state.String()),
	)

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	}
}

func (cb *CircuitBreaker) transitionTo(state State) {
	cb.state = state
	cb.halfOpenCalls = 0
	if state == StateClosed {
		cb.failures = 0
	}

	fields := []zap.Field{zap.String("breaker", cb.name), zap.String("state", state.String())}
	if state == StateOpen {
		cb.logger.Warn("Circuit breaker transitioned", append(fields,
			zap.Int("failures", cb.failures),
			zap.Duration("reset_timeout", cb.resetTimeout),
		)...)
		return
	}
	cb.logger.Info("Circuit breaker transitioned", fields...)
}

// State 获取当前状态
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats 获取统计信息
func (cb *CircuitBreaker) Stats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"name":       cb.name,
		"state":      cb.state.String(),
		"failures":   cb.failures,
		"last_fail":  cb.lastFailTime,
		"half_calls": cb.halfOpenCalls,
	}
}
