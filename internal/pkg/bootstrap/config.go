// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 是服务的全部配置，来源优先级：环境变量 > Nacos 配置中心 > 本地 YAML 文件 > 默认值
type Config struct {
	App     AppConfig     `yaml:"app"`
	Infra   InfraConfig   `yaml:"infra"`
	Payment PaymentConfig `yaml:"payment"`
	Auth    AuthConfig    `yaml:"auth"`
	Point   PointConfig   `yaml:"point"`
}

type AppConfig struct {
	Name         string       `yaml:"name"`
	Port         int          `yaml:"port"`
	LogLevel     string       `yaml:"log_level"`
	LogPretty    bool         `yaml:"log_pretty"`
	FeatureFlags FeatureFlags `yaml:"feature_flags"`
}

type FeatureFlags struct {
	EnablePaymentConsumer bool `yaml:"enable_payment_consumer"` // 是否消费支付确认消息
	EnableCouponRules     bool `yaml:"enable_coupon_rules"`     // 是否执行优惠券 CEL 规则
}

type InfraConfig struct {
	Database  DatabaseConfig  `yaml:"database"`
	Lock      LockConfig      `yaml:"lock"`
	Redis     RedisConfig     `yaml:"redis"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"` // mysql / postgres / memory
	DSN          string `yaml:"dsn"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type LockConfig struct {
	Backend       string        `yaml:"backend"` // memory / zookeeper / redis
	SweepInterval time.Duration `yaml:"sweep_interval"`
	TTL           time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db"`
}

type ZookeeperConfig struct {
	Servers        []string      `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	Root           string        `yaml:"root"`
}

type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	GroupID string      `yaml:"group_id"`
	Topics  KafkaTopics `yaml:"topics"`
}

type KafkaTopics struct {
	OrderEvents      string `yaml:"order_events"`
	CouponEvents     string `yaml:"coupon_events"`
	PointEvents      string `yaml:"point_events"`
	PaymentConfirmed string `yaml:"payment_confirmed"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"` // "ip1:port1,ip2:port2"
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
	DataID    string `yaml:"data_id"` // 非空时从配置中心拉取配置
}

type PaymentConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type PointConfig struct {
	MinChargeAmount int64 `yaml:"min_charge_amount"`
	MaxChargeAmount int64 `yaml:"max_charge_amount"`
}

var current atomic.Pointer[Config]

func init() {
	cfg := DefaultConfig()
	current.Store(&cfg)
}

// GetCurrentConfig 返回当前生效的配置。配置中心推送新版本时会被整体替换，调用方不应缓存返回值。
func GetCurrentConfig() *Config {
	return current.Load()
}

func setCurrentConfig(cfg *Config) {
	current.Store(cfg)
}

func DefaultConfig() Config {
	return Config{
		App: AppConfig{
			Name:     "fulfillment-service",
			Port:     8080,
			LogLevel: "info",
			FeatureFlags: FeatureFlags{
				EnablePaymentConsumer: true,
				EnableCouponRules:     true,
			},
		},
		Infra: InfraConfig{
			Database: DatabaseConfig{Driver: "memory", MaxOpenConns: 50, MaxIdleConns: 10},
			Lock:     LockConfig{Backend: "memory", SweepInterval: 5 * time.Minute, TTL: 10 * time.Second},
			Zookeeper: ZookeeperConfig{
				SessionTimeout: 5 * time.Second,
				Root:           "/fulfillment_locks",
			},
			Kafka: KafkaConfig{
				GroupID: "fulfillment-service",
				Topics: KafkaTopics{
					OrderEvents:      "order-events",
					CouponEvents:     "coupon-events",
					PointEvents:      "point-events",
					PaymentConfirmed: "payment-confirmed",
				},
			},
			Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
			Nacos:  NacosConfig{Group: "DEFAULT_GROUP"},
		},
		Payment: PaymentConfig{BaseURL: "http://localhost:8090", Timeout: 3 * time.Second},
		Point:   PointConfig{MinChargeAmount: 1_000, MaxChargeAmount: 1_000_000},
	}
}

// LoadConfig 读取本地 YAML 文件（path 为空时只使用默认值），应用环境变量覆盖并校验。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}
	return finalize(&cfg)
}

// ParseConfig 在当前配置的基础上合并一份 YAML 内容，用于配置中心推送。
func ParseConfig(base *Config, content string) (*Config, error) {
	cfg := *base
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, errors.Wrap(err, "parse remote config")
	}
	return finalize(&cfg)
}

func finalize(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.Port = getEnvInt("APP_PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Infra.Database.Driver = getEnv("DB_DRIVER", cfg.Infra.Database.Driver)
	cfg.Infra.Database.DSN = getEnv("DB_DSN", cfg.Infra.Database.DSN)
	cfg.Infra.Lock.Backend = getEnv("LOCK_BACKEND", cfg.Infra.Lock.Backend)
	cfg.Infra.Redis.Addrs = getEnvList("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Zookeeper.Servers = getEnvList("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Infra.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Payment.BaseURL = getEnv("PAYMENT_BASE_URL", cfg.Payment.BaseURL)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
}

// Validate 检查启动所必需的配置
func (c *Config) Validate() error {
	if c.App.Port <= 0 {
		return errors.Errorf("invalid app.port %d", c.App.Port)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Point.MinChargeAmount <= 0 || c.Point.MinChargeAmount > c.Point.MaxChargeAmount {
		return errors.Errorf("invalid charge range [%d, %d]", c.Point.MinChargeAmount, c.Point.MaxChargeAmount)
	}

	switch c.Infra.Database.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.Infra.Database.DSN == "" {
			return errors.Errorf("infra.database.dsn is required for driver %s", c.Infra.Database.Driver)
		}
	default:
		return errors.Errorf("unknown database driver %q", c.Infra.Database.Driver)
	}

	switch c.Infra.Lock.Backend {
	case "memory":
	case "zookeeper":
		if len(c.Infra.Zookeeper.Servers) == 0 {
			return errors.New("infra.zookeeper.servers is required for zookeeper lock backend")
		}
	case "redis":
		if len(c.Infra.Redis.Addrs) == 0 {
			return errors.New("infra.redis.addrs is required for redis lock backend")
		}
	default:
		return errors.Errorf("unknown lock backend %q", c.Infra.Lock.Backend)
	}
	return nil
}

// getEnv 从环境变量中读取配置
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
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
