package scheduler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jobs/routineload/pkg/config"
	"go.uber.org/zap"
)

// HealthChecker 定期探测执行节点，连续失败达到阈值后下线节点
type HealthChecker struct {
	logger     *zap.Logger
	config     config.HealthCheckConfig
	httpClient *http.Client
	dispatcher *Dispatcher
	stopCh     chan struct{}
	wg         sync.WaitGroup

	mu       sync.Mutex
	failures map[int64]int
}

func NewHealthChecker(logger *zap.Logger, cfg config.Config, dispatcher *Dispatcher) *HealthChecker {
	return &HealthChecker{
		logger: logger,
		config: cfg.HealthCheck,
		httpClient: &http.Client{
			Timeout: cfg.HealthCheck.Timeout,
		},
		dispatcher: dispatcher,
		stopCh:     make(chan struct{}),
		failures:   make(map[int64]int),
	}
}

func (h *HealthChecker) Start() {
	if !h.config.Enabled {
		h.logger.Info("health checker is disabled")
		return
	}
	h.wg.Add(1)
	go h.run()
	h.logger.Info("health checker started",
		zap.Duration("interval", h.config.Interval))
}

func (h *HealthChecker) Stop() {
	select {
	case <-h.stopCh:
		return
	default:
		close(h.stopCh)
	}
	h.wg.Wait()
	h.logger.Info("health checker stopped")
}

func (h *HealthChecker) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	h.CheckAll()

	for {
		select {
		case <-ticker.C:
			h.CheckAll()
		case <-h.stopCh:
			return
		}
	}
}

// CheckAll 并发检查所有执行节点
func (h *HealthChecker) CheckAll() {
	var wg sync.WaitGroup
	for _, be := range h.dispatcher.Backends() {
		wg.Add(1)
		go func(be Backend) {
			defer wg.Done()
			h.checkBackend(be)
		}(be)
	}
	wg.Wait()
}

func (h *HealthChecker) checkBackend(be Backend) {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	healthy := h.ping(ctx, be)

	h.mu.Lock()
	defer h.mu.Unlock()

	if healthy {
		if !h.dispatcher.IsOnline(be.ID) {
			h.logger.Info("executor recovered to online", zap.Int64("be_id", be.ID))
			h.dispatcher.MarkOnline(be.ID)
		}
		h.failures[be.ID] = 0
		return
	}

	if !h.dispatcher.IsOnline(be.ID) {
		return
	}
	h.failures[be.ID]++
	if h.failures[be.ID] >= h.threshold() {
		h.logger.Warn("executor marked as offline due to health check failures",
			zap.Int64("be_id", be.ID),
			zap.Int("failures", h.failures[be.ID]))
		h.dispatcher.MarkOffline(be.ID)
	}
}

func (h *HealthChecker) threshold() int {
	if h.config.FailureThreshold <= 0 {
		return 1
	}
	return h.config.FailureThreshold
}

func (h *HealthChecker) ping(ctx context.Context, be Backend) bool {
	u := be.HealthCheckURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		h.logger.Error("failed to create health check request", zap.Int64("be_id", be.ID), zap.Error(err))
		return false
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.logger.Debug("health check failed", zap.Int64("be_id", be.ID), zap.String("url", u), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		h.logger.Debug("health check returned non-200 status", zap.Int64("be_id", be.ID), zap.Int("status_code", resp.StatusCode))
		return false
	}

	return true
}
