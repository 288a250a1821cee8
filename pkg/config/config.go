package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "duzelt"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Identity  IdentityConfig
	Ollama    OllamaConfig
	Stripe    StripeConfig
	RateLimit RateLimitConfig
}

// Load parses configuration from the environment. Any missing required
// value is a startup failure, never a runtime one.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DUZELT_APP_ENV" required:"true"`
	Port         string `envconfig:"DUZELT_APP_PORT" required:"true"`
	URL          string `envconfig:"DUZELT_APP_URL" required:"true"`
	LogLevel     string `envconfig:"DUZELT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DUZELT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"DUZELT_DB_DSN" required:"true"`
	Driver string `envconfig:"DUZELT_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"DUZELT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DUZELT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DUZELT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DUZELT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"DUZELT_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DUZELT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DUZELT_REDIS_ADDR"`
	Password     string        `envconfig:"DUZELT_REDIS_PASSWORD"`
	DB           int           `envconfig:"DUZELT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DUZELT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DUZELT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DUZELT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DUZELT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DUZELT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// IdentityConfig holds what is needed to verify bearer tokens minted by
// the external identity provider.
type IdentityConfig struct {
	JWTSecret string `envconfig:"DUZELT_IDENTITY_JWT_SECRET" required:"true"`
	Issuer    string `envconfig:"DUZELT_IDENTITY_ISSUER"`
}

// RateLimitConfig bounds request bursts ahead of the monthly quota.
type RateLimitConfig struct {
	CorrectionsLimit  int64         `envconfig:"DUZELT_RATE_LIMIT_CORRECTIONS" default:"30"`
	CorrectionsWindow time.Duration `envconfig:"DUZELT_RATE_LIMIT_WINDOW" default:"1m"`
}

type OllamaConfig struct {
	BaseURL       string        `envconfig:"DUZELT_OLLAMA_BASE_URL" required:"true"`
	Model         string        `envconfig:"DUZELT_OLLAMA_MODEL" required:"true"`
	KeepAlive     string        `envconfig:"DUZELT_OLLAMA_KEEP_ALIVE" default:"10m"`
	NumPredict    int           `envconfig:"DUZELT_OLLAMA_NUM_PREDICT" default:"180"`
	Temperature   float64       `envconfig:"DUZELT_OLLAMA_TEMPERATURE" default:"0.1"`
	TopP          float64       `envconfig:"DUZELT_OLLAMA_TOP_P" default:"0.9"`
	ClientTimeout time.Duration `envconfig:"DUZELT_OLLAMA_CLIENT_TIMEOUT" default:"60s"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"DUZELT_STRIPE_API_KEY" required:"true"`
	WebhookSecret string `envconfig:"DUZELT_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env           string `envconfig:"DUZELT_STRIPE_ENV" default:"test"`
	PricePlus     string `envconfig:"DUZELT_STRIPE_PRICE_PLUS" required:"true"`
	PricePro      string `envconfig:"DUZELT_STRIPE_PRICE_PRO" required:"true"`
	TrialDays     int64  `envconfig:"DUZELT_STRIPE_TRIAL_DAYS" default:"3"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}
