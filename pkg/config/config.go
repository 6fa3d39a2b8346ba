package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Txn         TxnConfig         `mapstructure:"txn"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Redis       RedisConfig       `mapstructure:"redis"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Executors   []ExecutorConfig  `mapstructure:"executors"`
}

type SchedulerConfig struct {
	InstanceID           string        `mapstructure:"instance_id"`
	ClusterName          string        `mapstructure:"cluster_name"`
	WorkerID             uint16        `mapstructure:"worker_id"`
	Interval             time.Duration `mapstructure:"interval"`
	TimeoutCheckInterval time.Duration `mapstructure:"timeout_check_interval"`
	DispatchTimeout      time.Duration `mapstructure:"dispatch_timeout"`
	LockKey              string        `mapstructure:"lock_key"`
	LockTimeout          time.Duration `mapstructure:"lock_timeout"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
}

type TxnConfig struct {
	MaxRunningPerDB int           `mapstructure:"max_running_per_db"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	PublishTimeout  time.Duration `mapstructure:"publish_timeout"` // 已提交事务等待执行节点发布的时间
}

type DatabaseConfig struct {
	Driver                string        `mapstructure:"driver"`
	DSN                   string        `mapstructure:"dsn"`
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Database              string        `mapstructure:"database"`
	User                  string        `mapstructure:"user"`
	Password              string        `mapstructure:"password"`
	MaxConnections        int           `mapstructure:"max_connections"`
	MaxIdleConnections    int           `mapstructure:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

type ServerConfig struct {
	IP             string        `mapstructure:"ip"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// HealthCheckConfig 执行节点健康检查
type HealthCheckConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// ExecutorConfig 执行节点
type ExecutorConfig struct {
	ID  int64  `mapstructure:"id"`
	URL string `mapstructure:"url"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scheduler.instance_id", "routineload-001")
	v.SetDefault("scheduler.cluster_name", "default_cluster")
	v.SetDefault("scheduler.worker_id", 1)
	v.SetDefault("scheduler.interval", "1s")
	v.SetDefault("scheduler.timeout_check_interval", "5s")
	v.SetDefault("scheduler.dispatch_timeout", "10s")
	v.SetDefault("scheduler.lock_key", "routineload:scheduler:leader")
	v.SetDefault("scheduler.lock_timeout", "3s")
	v.SetDefault("scheduler.heartbeat_interval", "5s")

	v.SetDefault("txn.max_running_per_db", 100)
	v.SetDefault("txn.sweep_interval", "10s")
	v.SetDefault("txn.publish_timeout", "30s")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_idle_connections", 10)
	v.SetDefault("database.connection_max_lifetime", "1h")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.max_header_bytes", 1048576)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "routineload:txn-status")

	v.SetDefault("health_check.enabled", true)
	v.SetDefault("health_check.interval", "10s")
	v.SetDefault("health_check.timeout", "3s")
	v.SetDefault("health_check.failure_threshold", 3)
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return unmarshal(v)
}

// Default 返回仅包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.TimeoutCheckInterval <= 0 {
		return fmt.Errorf("scheduler.timeout_check_interval must be positive")
	}
	if c.Scheduler.HeartbeatInterval <= 0 {
		return fmt.Errorf("scheduler.heartbeat_interval must be positive")
	}
	if c.HealthCheck.Enabled && c.HealthCheck.Interval <= 0 {
		return fmt.Errorf("health_check.interval must be positive")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	for _, e := range c.Executors {
		if e.ID <= 0 || e.URL == "" {
			return fmt.Errorf("executor entry requires positive id and url")
		}
	}
	return nil
}
