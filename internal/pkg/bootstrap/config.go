// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config 是所有服务共享的配置文档
type Config struct {
	App     AppConfig     `yaml:"app"`
	Infra   InfraConfig   `yaml:"infra"`
	Auth    AuthConfig    `yaml:"auth"`
	Payment PaymentConfig `yaml:"payment"`
	Log     LogConfig     `yaml:"log"`
}

type AppConfig struct {
	Name                string        `yaml:"name"`
	BaseURL             string        `yaml:"base_url"`
	Port                int           `yaml:"port"`
	Timezone            string        `yaml:"timezone"`
	ExternalCallTimeout time.Duration `yaml:"external_call_timeout"`
	Pricing             PricingConfig `yaml:"pricing"`
}

type PricingConfig struct {
	// 字符串形式，避免浮点误差
	PricePerKg string `yaml:"price_per_kg"`
	Currency   string `yaml:"currency"`
}

type InfraConfig struct {
	Jaeger   JaegerConfig   `yaml:"jaeger"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Nacos    NacosConfig    `yaml:"nacos"`
}

type JaegerConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type DatabaseConfig struct {
	Driver      string `yaml:"driver"` // mysql | sqlite
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SQLitePath  string `yaml:"sqlite_path"`
	AutoMigrate bool   `yaml:"auto_migrate"`
	MaxOpenConn int    `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Addrs    []string      `yaml:"addrs"`
	Password string        `yaml:"password"`
	DedupTTL time.Duration `yaml:"dedup_ttl"`
	// 处理中占位的时长，进程中途退出后重投在此之后可以再次处理
	ProcessingTTL time.Duration `yaml:"processing_ttl"`
}

type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
	Groups  KafkaGroups `yaml:"groups"`
}

type KafkaTopics struct {
	OrderEvents    string `yaml:"order_events"`
	IdentityEvents string `yaml:"identity_events"`
}

type KafkaGroups struct {
	IdentityLinker string `yaml:"identity_linker"`
	Notification   string `yaml:"notification"`
}

type NacosConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addrs     string `yaml:"addrs"`
	Namespace string `yaml:"namespace"`
	Group     string `yaml:"group"`
	DataID    string `yaml:"data_id"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type PaymentConfig struct {
	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

var currentConfig atomic.Pointer[Config]

// GetCurrentConfig 返回当前生效的配置快照，调用方不得修改返回值
func GetCurrentConfig() *Config {
	if c := currentConfig.Load(); c != nil {
		return c
	}
	return DefaultConfig()
}

// SetCurrentConfig 原子替换当前配置，用于启动加载和 Nacos 热更新
func SetCurrentConfig(c *Config) {
	currentConfig.Store(c)
}

func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:                "order-service",
			BaseURL:             "http://localhost:3000",
			Port:                8080,
			Timezone:            "Europe/Stockholm",
			ExternalCallTimeout: 10 * time.Second,
			Pricing:             PricingConfig{PricePerKg: "60", Currency: "sek"},
		},
		Infra: InfraConfig{
			Jaeger:   JaegerConfig{SampleRatio: 1},
			Database: DatabaseConfig{Driver: "sqlite", SQLitePath: "freshdrop.db", Port: 3306, AutoMigrate: true, MaxOpenConn: 20},
			Redis:    RedisConfig{DedupTTL: 24 * time.Hour, ProcessingTTL: time.Minute},
			Kafka: KafkaConfig{
				Topics: KafkaTopics{OrderEvents: "order-events", IdentityEvents: "identity-events"},
				Groups: KafkaGroups{IdentityLinker: "order-identity-linker", Notification: "notification-group"},
			},
			Nacos: NacosConfig{Group: "DEFAULT_GROUP", DataID: "freshdrop.yaml"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig 读取 YAML 文件（path 为空时只用默认值），再叠加环境变量
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// ParseConfig 在 base 的基础上解析一份 YAML 文档，用于配置中心推送
func ParseConfig(base *Config, content string) (*Config, error) {
	cfg := *base
	if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// ApplyRemoteConfig 在当前配置上叠加一份推送文档，校验通过才替换；
// 失败时当前配置保持不变。
func ApplyRemoteConfig(content string) (*Config, error) {
	current := GetCurrentConfig()
	next, err := ParseConfig(current, content)
	if err != nil {
		return nil, err
	}
	if err := next.ValidateReloadable(); err != nil {
		return nil, err
	}
	next.App.Name = current.App.Name
	SetCurrentConfig(next)
	return next, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.App.BaseURL = getEnv("APP_BASE_URL", cfg.App.BaseURL)
	cfg.App.Timezone = getEnv("APP_TIMEZONE", cfg.App.Timezone)
	if v, err := strconv.Atoi(getEnv("PORT", "")); err == nil {
		cfg.App.Port = v
	}
	cfg.App.Pricing.PricePerKg = getEnv("PRICE_PER_KG", cfg.App.Pricing.PricePerKg)

	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.Database.Driver = getEnv("DB_DRIVER", cfg.Infra.Database.Driver)
	cfg.Infra.Database.Host = getEnv("MYSQL_HOST", cfg.Infra.Database.Host)
	cfg.Infra.Database.User = getEnv("MYSQL_USER", cfg.Infra.Database.User)
	cfg.Infra.Database.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.Database.Password)
	cfg.Infra.Database.Name = getEnv("MYSQL_DATABASE", cfg.Infra.Database.Name)
	cfg.Infra.Database.SQLitePath = getEnv("SQLITE_PATH", cfg.Infra.Database.SQLitePath)
	if v := getEnv("REDIS_ADDRS", ""); v != "" {
		cfg.Infra.Redis.Addrs = splitList(v)
	}
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)
	if v := getEnv("KAFKA_BROKERS", ""); v != "" {
		cfg.Infra.Kafka.Brokers = splitList(v)
	}
	if v, err := strconv.ParseBool(getEnv("NACOS_ENABLED", "")); err == nil {
		cfg.Infra.Nacos.Enabled = v
	}
	cfg.Infra.Nacos.Addrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.Addrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Payment.StripeSecretKey = getEnv("STRIPE_SECRET_KEY", cfg.Payment.StripeSecretKey)
	cfg.Payment.StripeWebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", cfg.Payment.StripeWebhookSecret)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

// Validate 检查订单服务启动必需的配置项
func (c *Config) Validate() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.Payment.StripeSecretKey == "" {
		missing = append(missing, "payment.stripe_secret_key")
	}
	if c.Payment.StripeWebhookSecret == "" {
		missing = append(missing, "payment.stripe_webhook_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return c.ValidateReloadable()
}

// 与订单表 price_per_kg decimal(10,2) 列的取值范围一致
var maxPricePerKg = decimal.New(1, 8)

// ValidateReloadable 只校验配置中心可以热更新的字段
func (c *Config) ValidateReloadable() error {
	rate, err := decimal.NewFromString(c.App.Pricing.PricePerKg)
	if err != nil || !rate.IsPositive() {
		return fmt.Errorf("app.pricing.price_per_kg must be a positive decimal, got %q", c.App.Pricing.PricePerKg)
	}
	if rate.GreaterThanOrEqual(maxPricePerKg) {
		return fmt.Errorf("app.pricing.price_per_kg must be below %s, got %q", maxPricePerKg, c.App.Pricing.PricePerKg)
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone: %w", err)
	}
	if c.App.ExternalCallTimeout <= 0 {
		return fmt.Errorf("app.external_call_timeout must be positive")
	}
	return nil
}

// PricePerKg 返回当前价格快照；配置非法时返回零值，由 Validate 在启动时拦截
func (c *Config) PricePerKg() decimal.Decimal {
	rate, err := decimal.NewFromString(c.App.Pricing.PricePerKg)
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
