package scheduler

import (
	"database/sql"

	"github.com/google/wire"
	"github.com/jobs/routineload/pkg/config"
	"go.uber.org/zap"
)

var Provider = wire.NewSet(
	New,
	NewDispatcher,
	NewHealthChecker,
	NewEventBus,
	NewMetrics,
	NewLeaderLock,
	wire.Bind(new(TaskDispatcher), new(*Dispatcher)),
)

// NewLeaderLock mysql 使用 GET_LOCK 选主，sqlite 为单实例部署
func NewLeaderLock(cfg config.Config, db *sql.DB, logger *zap.Logger) LeaderLock {
	if cfg.Database.Driver == "sqlite" {
		return &localLock{}
	}
	return NewLocker(db, cfg.Scheduler.LockKey, cfg.Scheduler.LockTimeout, logger)
}
