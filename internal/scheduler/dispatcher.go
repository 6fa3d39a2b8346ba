package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobs/routineload/internal/biz/routineload"
	"github.com/jobs/routineload/pkg/config"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Backend 执行节点
type Backend struct {
	ID  int64
	URL string
}

func (b Backend) ExecURL() string {
	return strings.TrimRight(b.URL, "/") + "/execute"
}

func (b Backend) HealthCheckURL() string {
	return strings.TrimRight(b.URL, "/") + "/health"
}

// Dispatcher 选择执行节点并下发任务，每个执行节点一个熔断器
type Dispatcher struct {
	backends   []Backend
	httpClient *http.Client
	metrics    *Metrics
	logger     *zap.Logger
	next       atomic.Uint64

	breakerMu sync.RWMutex
	breakers  map[int64]*CircuitBreaker
	offline   map[int64]bool
}

func NewDispatcher(cfg config.Config, metrics *Metrics, logger *zap.Logger) *Dispatcher {
	timeout := cfg.Scheduler.DispatchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		backends: lo.Map(cfg.Executors, func(e config.ExecutorConfig, _ int) Backend {
			return Backend{ID: e.ID, URL: e.URL}
		}),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
		breakers:   make(map[int64]*CircuitBreaker),
		offline:    make(map[int64]bool),
	}
}

func (d *Dispatcher) Backends() []Backend {
	return d.backends
}

// Select 轮询选择在线且熔断器未打开的节点，有其他节点可选时避开 previousBeID
func (d *Dispatcher) Select(previousBeID int64) (Backend, error) {
	candidates := lo.Filter(d.backends, func(b Backend, _ int) bool {
		return d.IsOnline(b.ID) && d.getOrCreateBreaker(b.ID).Available()
	})
	if len(candidates) == 0 {
		return Backend{}, ErrNoExecutor
	}
	if len(candidates) > 1 {
		others := lo.Reject(candidates, func(b Backend, _ int) bool { return b.ID == previousBeID })
		if len(others) > 0 {
			candidates = others
		}
	}
	n := d.next.Add(1) - 1
	return candidates[n%uint64(len(candidates))], nil
}

// Dispatch 下发任务（带熔断器保护）
func (d *Dispatcher) Dispatch(ctx context.Context, be Backend, req *routineload.ExecutorRequest) error {
	breaker := d.getOrCreateBreaker(be.ID)
	err := breaker.Call(func() error {
		body, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, be.ExecURL(), bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := d.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("failed to call executor: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
			return fmt.Errorf("%w: executor %d returned status %d", ErrExecutorRejected, be.ID, resp.StatusCode)
		}
		return nil
	})

	result := "ok"
	if err != nil {
		result = "failed"
		d.logger.Warn("failed to dispatch routine load task",
			zap.String("task_id", req.TaskID),
			zap.Int64("be_id", be.ID),
			zap.String("breaker", breaker.State()),
			zap.Error(err))
	} else {
		d.logger.Info("successfully dispatched routine load task",
			zap.String("task_id", req.TaskID),
			zap.Int64("txn_id", req.TxnID),
			zap.Int64("be_id", be.ID))
	}
	if d.metrics != nil {
		d.metrics.DispatchTotal.WithLabelValues(cast.ToString(be.ID), result).Inc()
	}
	return err
}

// getOrCreateBreaker 获取或创建执行节点的熔断器
func (d *Dispatcher) getOrCreateBreaker(beID int64) *CircuitBreaker {
	d.breakerMu.RLock()
	breaker, exists := d.breakers[beID]
	d.breakerMu.RUnlock()

	if !exists {
		d.breakerMu.Lock()
		breaker, exists = d.breakers[beID]
		if !exists {
			breaker = NewCircuitBreaker()
			d.breakers[beID] = breaker
		}
		d.breakerMu.Unlock()
	}

	return breaker
}

func (d *Dispatcher) IsOnline(beID int64) bool {
	d.breakerMu.RLock()
	defer d.breakerMu.RUnlock()
	return !d.offline[beID]
}

// MarkOffline 节点下线，同时移除其熔断器避免错误计数累积
func (d *Dispatcher) MarkOffline(beID int64) {
	d.breakerMu.Lock()
	defer d.breakerMu.Unlock()
	d.offline[beID] = true
	delete(d.breakers, beID)
	d.logger.Debug("circuit breaker removed for offline executor",
		zap.Int64("be_id", beID))
}

func (d *Dispatcher) MarkOnline(beID int64) {
	d.breakerMu.Lock()
	delete(d.offline, beID)
	d.breakerMu.Unlock()
	d.ResetBreaker(beID)
}

// ResetBreaker 重置执行节点的熔断器（节点恢复时调用）
func (d *Dispatcher) ResetBreaker(beID int64) {
	d.breakerMu.RLock()
	breaker, exists := d.breakers[beID]
	d.breakerMu.RUnlock()
	if exists {
		breaker.Reset()
		d.logger.Debug("circuit breaker reset for recovered executor",
			zap.Int64("be_id", beID))
	}
}
