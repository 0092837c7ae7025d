// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Config 是服务的完整配置。来源优先级：环境变量 > 配置文件 > 默认值。
type Config struct {
	App   AppConfig   `yaml:"app"`
	Infra InfraConfig `yaml:"infra"`
}

type AppConfig struct {
	Name         string       `yaml:"name"`     // JHipster 风格的应用名，用于告警头 X-<name>-alert
	Port         int          `yaml:"port"`
	LogLevel     string       `yaml:"log_level"`
	FeatureFlags FeatureFlags `yaml:"feature_flags"`
}

type FeatureFlags struct {
	EnableResponseCache bool `yaml:"enable_response_cache"`
	EnableAlertFeed     bool `yaml:"enable_alert_feed"`
	EnableEventStream   bool `yaml:"enable_event_stream"`
}

type InfraConfig struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // mysql | sqlite
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	SQLitePath   string `yaml:"sqlite_path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Debug        bool   `yaml:"debug"`
}

type RedisConfig struct {
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	ServerAddrs string `yaml:"server_addrs"` // 为空时不做服务注册
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"` // 为空时迁移不加分布式锁
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

var current atomic.Pointer[Config]

// DefaultConfig 本地开发可直接运行的默认配置
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:     "ecomApp",
			Port:     8080,
			LogLevel: "info",
		},
		Infra: InfraConfig{
			Database: DatabaseConfig{
				Driver:       "sqlite",
				Host:         "localhost",
				Port:         3306,
				User:         "root",
				Name:         "ecom",
				SQLitePath:   "ecom.db",
				MaxOpenConns: 20,
			},
			Redis: RedisConfig{TTL: 5 * time.Minute},
			Kafka: KafkaConfig{Topic: "catalog-events", GroupID: "catalog-audit"},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{
				SessionTimeout: 10 * time.Second,
			},
		},
	}
}

// LoadConfig 读取配置文件（不存在时跳过），再用环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config file %s", path)
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init 加载配置并设为当前配置，main 中最先调用
func Init() (*Config, error) {
	cfg, err := LoadConfig(getEnv("CONFIG_FILE", "configs/catalog.yaml"))
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// GetCurrentConfig 返回当前生效的配置，未初始化时返回默认配置
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return DefaultConfig()
}

func applyEnv(cfg *Config) error {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)

	db := &cfg.Infra.Database
	db.Driver = getEnv("DB_DRIVER", db.Driver)
	db.Host = getEnv("DB_HOST", db.Host)
	db.User = getEnv("DB_USER", db.User)
	db.Password = getEnv("DB_PASSWORD", db.Password)
	db.Name = getEnv("DB_NAME", db.Name)
	db.SQLitePath = getEnv("DB_PATH", db.SQLitePath)

	var err error
	if cfg.App.Port, err = getEnvInt("APP_PORT", cfg.App.Port); err != nil {
		return err
	}
	if db.Port, err = getEnvInt("DB_PORT", db.Port); err != nil {
		return err
	}

	cfg.Infra.Redis.Addrs = getEnvList("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)
	cfg.Infra.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Infra.Kafka.Topic)
	cfg.Infra.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Infra.Kafka.GroupID)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.Zookeeper.Servers = getEnvList("ZK_SERVERS", cfg.Infra.Zookeeper.Servers)
	return nil
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid integer in %s", key)
	}
	return n, nil
}

// getEnvList 读取逗号分隔的列表
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
