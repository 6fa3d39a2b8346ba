package scheduler

import (
	"sync"
	"time"
)

type breakerState string

const (
	breakerClosed   breakerState = "closed"
	breakerOpen     breakerState = "open"
	breakerHalfOpen breakerState = "half-open"
)

// CircuitBreaker 简单的熔断器实现
type CircuitBreaker struct {
	mu              sync.RWMutex
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	state           breakerState
	threshold       int
	resetTimeout    time.Duration
	now             func() time.Time
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{
		state:        breakerClosed,
		threshold:    3, // 3次失败后打开
		resetTimeout: 60 * time.Second,
		now:          time.Now,
	}
}

// Call 通过熔断器调用函数。fn 执行期间不持有锁
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != breakerOpen {
		return nil
	}
	if cb.now().Sub(cb.lastFailureTime) <= cb.resetTimeout {
		return ErrCircuitOpen
	}
	cb.state = breakerHalfOpen
	cb.failureCount = 0
	cb.successCount = 0
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failureCount++
		cb.lastFailureTime = cb.now()
		if cb.state == breakerHalfOpen || cb.failureCount >= cb.threshold {
			cb.state = breakerOpen
		}
		return
	}
	switch cb.state {
	case breakerHalfOpen:
		cb.successCount++
		if cb.successCount >= 2 {
			cb.state = breakerClosed
			cb.failureCount = 0
		}
	case breakerClosed:
		cb.failureCount = 0
	}
}

// Available 熔断器打开且未到恢复时间时返回 false
func (cb *CircuitBreaker) Available() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state != breakerOpen || cb.now().Sub(cb.lastFailureTime) > cb.resetTimeout
}

func (cb *CircuitBreaker) State() string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return string(cb.state)
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failureCount = 0
	cb.successCount = 0
}
