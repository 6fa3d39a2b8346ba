package main

import (
	"database/sql"
	"fmt"

	redis "github.com/go-redis/redis/v8"
	"github.com/jobs/routineload/internal/biz/txn"
	"github.com/jobs/routineload/internal/infra/persistence/commonrepo"
	"github.com/jobs/routineload/internal/orm"
	"github.com/jobs/routineload/pkg/config"
	"github.com/jobs/routineload/pkg/ids"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// ProvideRedisClient builds a redis client from typed config.
// Returns nil when redis is disabled.
func ProvideRedisClient(cfg config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func ProvideDB(storage *orm.Storage) commonrepo.DB {
	return storage.DB()
}

// ProvideSQLDB 选主锁需要原生连接
func ProvideSQLDB(storage *orm.Storage) (*sql.DB, error) {
	return storage.DB().DB()
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideIDGenerator(cfg config.Config) txn.IDGenerator {
	return ids.NewGenerator(cfg.Scheduler.WorkerID)
}

// ProvideTxnManager 状态发布者依赖调度器，由 App 启动时注入
func ProvideTxnManager(repo txn.Repo, gen txn.IDGenerator, cfg config.Config, logger *zap.Logger) *txn.Manager {
	return txn.NewManager(repo, nil, gen, txn.ManagerConfig{
		MaxRunningPerDB: cfg.Txn.MaxRunningPerDB,
		PublishTimeout:  cfg.Txn.PublishTimeout,
	}, logger)
}

func storageConfig(cfg config.Config) orm.Config {
	return orm.Config{
		Driver:                cfg.Database.Driver,
		DSN:                   cfg.Database.DSN,
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        cfg.Database.MaxConnections,
		MaxIdleConnections:    cfg.Database.MaxIdleConnections,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	}
}
