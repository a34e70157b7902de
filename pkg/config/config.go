package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "payflow"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Scheduler    SchedulerConfig
	Retry        RetryConfig
	Rail         RailConfig
	Fees         FeeConfig
	Commission   CommissionConfig
	Health       HealthConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PAYFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"PAYFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PAYFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PAYFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"PAYFLOW_DB_DSN"`

	Host     string `envconfig:"PAYFLOW_DB_HOST"`
	Port     int    `envconfig:"PAYFLOW_DB_PORT" default:"5432"`
	User     string `envconfig:"PAYFLOW_DB_USER"`
	Password string `envconfig:"PAYFLOW_DB_PASSWORD"`
	Name     string `envconfig:"PAYFLOW_DB_NAME"`
	SSLMode  string `envconfig:"PAYFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PAYFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PAYFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PAYFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PAYFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either PAYFLOW_DB_DSN or host/user/name parts are required")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PAYFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PAYFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"PAYFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"PAYFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PAYFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PAYFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PAYFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PAYFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PAYFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SchedulerConfig bounds the payout trigger loop.
type SchedulerConfig struct {
	TickInterval    time.Duration `envconfig:"PAYFLOW_SCHEDULER_TICK_INTERVAL" default:"1m"`
	BatchSize       int           `envconfig:"PAYFLOW_SCHEDULER_BATCH_SIZE" default:"50"`
	MaxConcurrent   int           `envconfig:"PAYFLOW_SCHEDULER_MAX_CONCURRENT" default:"10"`
	OverdueAfter    time.Duration `envconfig:"PAYFLOW_SCHEDULER_OVERDUE_AFTER" default:"1h"`
	FailureCooldown time.Duration `envconfig:"PAYFLOW_SCHEDULER_FAILURE_COOLDOWN" default:"1h"`
	StaleAfter      time.Duration `envconfig:"PAYFLOW_SCHEDULER_STALE_AFTER" default:"30m"`
}

// RetryConfig bounds disbursement re-attempts.
type RetryConfig struct {
	MaxRetries  int           `envconfig:"PAYFLOW_RETRY_MAX_RETRIES" default:"3"`
	BaseBackoff time.Duration `envconfig:"PAYFLOW_RETRY_BASE_BACKOFF" default:"10m"`
	MaxBackoff  time.Duration `envconfig:"PAYFLOW_RETRY_MAX_BACKOFF" default:"4h"`
}

// RailConfig points at the external payment rail.
type RailConfig struct {
	BaseURL        string        `envconfig:"PAYFLOW_RAIL_BASE_URL" required:"true"`
	APIKey         string        `envconfig:"PAYFLOW_RAIL_API_KEY" required:"true"`
	RequestTimeout time.Duration `envconfig:"PAYFLOW_RAIL_REQUEST_TIMEOUT" default:"30s"`
}

// FeeConfig holds the platform fee schedule per transfer method.
// Percent values are expressed as percentages (0.25 means 0.25%).
type FeeConfig struct {
	StandardPercent  string `envconfig:"PAYFLOW_FEE_STANDARD_PERCENT" default:"0.25"`
	StandardFixed    string `envconfig:"PAYFLOW_FEE_STANDARD_FIXED" default:"0.25"`
	ExpeditedPercent string `envconfig:"PAYFLOW_FEE_EXPEDITED_PERCENT" default:"1.0"`
	ExpeditedFixed   string `envconfig:"PAYFLOW_FEE_EXPEDITED_FIXED" default:"0.25"`
}

func (f FeeConfig) validate() error {
	for _, raw := range []string{f.StandardPercent, f.StandardFixed, f.ExpeditedPercent, f.ExpeditedFixed} {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid fee value %q: %w", raw, err)
		}
	}
	return nil
}

// StandardRate returns the standard transfer percentage as a decimal fraction.
func (f FeeConfig) StandardRate() decimal.Decimal {
	return decimal.RequireFromString(f.StandardPercent).Div(decimal.NewFromInt(100))
}

// StandardFixedAmount returns the standard transfer fixed fee.
func (f FeeConfig) StandardFixedAmount() decimal.Decimal {
	return decimal.RequireFromString(f.StandardFixed)
}

// ExpeditedRate returns the expedited transfer percentage as a decimal fraction.
func (f FeeConfig) ExpeditedRate() decimal.Decimal {
	return decimal.RequireFromString(f.ExpeditedPercent).Div(decimal.NewFromInt(100))
}

// ExpeditedFixedAmount returns the expedited transfer fixed fee.
func (f FeeConfig) ExpeditedFixedAmount() decimal.Decimal {
	return decimal.RequireFromString(f.ExpeditedFixed)
}

// CommissionConfig holds the tiered commission rate table.
type CommissionConfig struct {
	BaseRate        string `envconfig:"PAYFLOW_COMMISSION_BASE_RATE" default:"0.70"`
	BonusRate       string `envconfig:"PAYFLOW_COMMISSION_BONUS_RATE" default:"0.05"`
	VolumeThreshold int    `envconfig:"PAYFLOW_COMMISSION_VOLUME_THRESHOLD" default:"10"`
}

func (c CommissionConfig) validate() error {
	for _, raw := range []string{c.BaseRate, c.BonusRate} {
		if _, err := decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid commission rate %q: %w", raw, err)
		}
	}
	if c.VolumeThreshold < 0 {
		return fmt.Errorf("commission volume threshold must be non-negative")
	}
	return nil
}

// BaseRateDecimal returns the base commission rate.
func (c CommissionConfig) BaseRateDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.BaseRate)
}

// BonusRateDecimal returns the above-threshold bonus increment.
func (c CommissionConfig) BonusRateDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.BonusRate)
}

// HealthConfig tunes the pipeline health monitor.
type HealthConfig struct {
	SlowThreshold        time.Duration `envconfig:"PAYFLOW_HEALTH_SLOW_THRESHOLD" default:"30s"`
	FailureRateThreshold float64       `envconfig:"PAYFLOW_HEALTH_FAILURE_RATE_THRESHOLD" default:"0.05"`
	MinSamples           int           `envconfig:"PAYFLOW_HEALTH_MIN_SAMPLES" default:"20"`
	SampleWindow         int           `envconfig:"PAYFLOW_HEALTH_SAMPLE_WINDOW" default:"100"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PAYFLOW_AUTO_MIGRATE" default:"false"`
}
