package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/jobs/routineload/internal/orm"
	"github.com/jobs/routineload/pkg/config"
)

// 只做建表和索引迁移，不启动调度器
func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	storage, err := orm.New(orm.Config{
		Driver:                cfg.Database.Driver,
		DSN:                   cfg.Database.DSN,
		Host:                  cfg.Database.Host,
		Port:                  cfg.Database.Port,
		Database:              cfg.Database.Database,
		User:                  cfg.Database.User,
		Password:              cfg.Database.Password,
		MaxConnections:        1,
		MaxIdleConnections:    1,
		ConnectionMaxLifetime: cfg.Database.ConnectionMaxLifetime,
	})
	if err != nil {
		log.Fatal("Failed to migrate database:", err)
	}
	defer storage.Close()

	tables, err := storage.DB().Migrator().GetTables()
	if err != nil {
		log.Fatal("Failed to list tables:", err)
	}
	for _, t := range tables {
		fmt.Printf("table: %s\n", t)
	}
	fmt.Println("Migration completed successfully!")
}
