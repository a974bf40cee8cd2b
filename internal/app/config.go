package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (ORDER_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8003" usage:"HTTP listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (ORDER_DATABASE_URL or POSTGRES_URL)" flag:"database-url"`
	RedisURL    string `usage:"Redis connection URL (ORDER_REDIS_URL or REDIS_URL)" flag:"redis-url"`

	Fraud     FraudSimConfig
	Payment   PaymentSimConfig
	Pipeline  PipelineConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Graceful  GracefulConfig
}

// FraudSimConfig parametrizes the simulated fraud scoring step.
type FraudSimConfig struct {
	MinLatency     time.Duration `default:"10ms" usage:"Minimum simulated fraud scoring latency" flag:"fraud-min-latency"`
	MaxLatency     time.Duration `default:"50ms" usage:"Maximum simulated fraud scoring latency" flag:"fraud-max-latency"`
	SuspiciousRate float64       `default:"0.1"  usage:"Probability of a suspicious fraud verdict" flag:"fraud-suspicious-rate"`
}

// PaymentSimConfig parametrizes the simulated payment gateway.
type PaymentSimConfig struct {
	MinLatency  time.Duration `default:"20ms" usage:"Minimum simulated gateway latency" flag:"payment-min-latency"`
	MaxLatency  time.Duration `default:"60ms" usage:"Maximum simulated gateway latency" flag:"payment-max-latency"`
	DeclineRate float64       `default:"0.05" usage:"Probability of a declined capture" flag:"payment-decline-rate"`
	Method      string        `default:"credit_card" usage:"Payment method recorded on captures" flag:"payment-method"`
}

// PipelineConfig controls the orchestrator.
type PipelineConfig struct {
	CheckTimeout      time.Duration `default:"5s" usage:"Execution budget per concurrent check" flag:"check-timeout"`
	ReconcileInterval time.Duration `default:"1m" usage:"How often to scan for orders stuck between capture and completion" flag:"reconcile-interval"`
}

// CacheConfig controls the advisory Redis cache.
type CacheConfig struct {
	TTL       time.Duration `default:"300s"  usage:"Cache entry time-to-live" flag:"cache-ttl"`
	OpTimeout time.Duration `default:"500ms" usage:"Execution budget per cache operation" flag:"cache-op-timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "ORDER",
		Files:     []string{"config.yaml", "/etc/order-service/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ORDER_DATABASE_URL or POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("redis URL is required: set ORDER_REDIS_URL or REDIS_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps the environment variables the surrounding
// deployment already sets (POSTGRES_URL, REDIS_URL, PORT) onto the
// ORDER_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		for _, key := range []string{"POSTGRES_URL", "DATABASE_URL"} {
			if v := os.Getenv(key); v != "" {
				c.DatabaseURL = v
				break
			}
		}
	}
	if c.RedisURL == "" {
		if v := os.Getenv("REDIS_URL"); v != "" {
			c.RedisURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8003" {
		c.Addr = "0.0.0.0:" + port
	}
}
