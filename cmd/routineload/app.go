package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/jobs/routineload/internal/api"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/scheduler"
	"github.com/jobs/routineload/pkg/config"
	"go.uber.org/zap"
)

type App struct {
	cfg       config.Config
	logger    *zap.Logger
	server    *api.Server
	scheduler *scheduler.TaskScheduler
	txns      *txn.Manager
	bus       *scheduler.EventBus
	health    *scheduler.HealthChecker
	rdb       *redis.Client

	httpServer *http.Server
	cancel     context.CancelFunc
}

func NewApp(
	cfg config.Config,
	logger *zap.Logger,
	server *api.Server,
	sched *scheduler.TaskScheduler,
	txns *txn.Manager,
	bus *scheduler.EventBus,
	health *scheduler.HealthChecker,
	rdb *redis.Client,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		server:    server,
		scheduler: sched,
		txns:      txns,
		bus:       bus,
		health:    health,
		rdb:       rdb,
	}
}

// Start 启动事件总线、调度器和 HTTP 服务
func (a *App) Start() error {
	a.txns.SetPublisher(a.bus)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if err := a.bus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe txn status: %w", err)
	}

	if err := a.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	a.health.Start()

	a.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:        a.server.Router(),
		ReadTimeout:    a.cfg.Server.ReadTimeout,
		WriteTimeout:   a.cfg.Server.WriteTimeout,
		MaxHeaderBytes: a.cfg.Server.MaxHeaderBytes,
	}
	go func() {
		a.logger.Info("Starting API server",
			zap.Int("port", a.cfg.Server.Port))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()
	return nil
}

// Stop 按启动的逆序关闭
func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("Failed to shutdown API server", zap.Error(err))
		}
	}
	a.health.Stop()
	if err := a.scheduler.Stop(); err != nil {
		a.logger.Error("Failed to stop scheduler", zap.Error(err))
	}
	if a.cancel != nil {
		a.cancel()
	}
	if err := a.bus.Close(); err != nil {
		a.logger.Error("Failed to close event bus", zap.Error(err))
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
