package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jobs/routineload/internal/orm"
	"github.com/jobs/routineload/pkg/config"
	"github.com/jobs/routineload/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// 解析命令行参数
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 创建日志器
	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting routine load scheduler",
		zap.String("instance_id", cfg.Scheduler.InstanceID),
		zap.String("cluster", cfg.Scheduler.ClusterName))

	if cfg.Server.IP == "" {
		zapLogger.Fatal("Failed to get cfg.server.ip address")
	}

	// 创建存储
	storage, err := orm.New(storageConfig(*cfg))
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer storage.Close()

	app, err := InitializeApp(zapLogger, *cfg, storage)
	if err != nil {
		zapLogger.Fatal("Failed to initialize app", zap.Error(err))
	}
	if err := app.Start(); err != nil {
		zapLogger.Fatal("Failed to start app", zap.Error(err))
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	zapLogger.Info("Shutting down...")
	app.Stop()
	zapLogger.Info("Shutdown complete")
}
