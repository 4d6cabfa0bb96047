package internal

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/multierr"
)

const (
	IntentDriverMemory = "memory"
	IntentDriverRedis  = "redis"
)

type Config struct {
	Env           string              `mapstructure:"env" envconfig:"APP_ENV" default:"development"`
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
	Gateway       GatewayConfig       `mapstructure:"gateway" envconfig:"GATEWAY"`
	SMS           SMSConfig           `mapstructure:"sms" envconfig:"SMS"`
	Intent        IntentConfig        `mapstructure:"intent" envconfig:"INTENT"`
	Redis         RedisConfig         `mapstructure:"redis" envconfig:"REDIS"`
	Frontend      FrontendConfig      `mapstructure:"frontend" envconfig:"FRONTEND"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL" default:"http://localhost:8080" validate:"required,url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"25" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5" validate:"min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" default:"5m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret           string        `mapstructure:"jwt_secret" envconfig:"JWT_SECRET" validate:"required,min=32"`
	JWTIssuer           string        `mapstructure:"jwt_issuer" envconfig:"JWT_ISSUER" default:"document-request"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration" envconfig:"ACCESS_TOKEN_DURATION" default:"1h"`
}

type GatewayConfig struct {
	BaseURL    string        `mapstructure:"base_url" envconfig:"BASE_URL" default:"https://api.paymongo.com" validate:"required,url"`
	SecretKey  string        `mapstructure:"secret_key" envconfig:"SECRET_KEY" validate:"required"`
	SuccessURL string        `mapstructure:"success_url" envconfig:"SUCCESS_URL" validate:"required,url"`
	CancelURL  string        `mapstructure:"cancel_url" envconfig:"CANCEL_URL" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT" default:"20s"`
	// SoftVerify lets reconciliation continue when the gateway cannot be reached.
	// Only meant for test credentials.
	SoftVerify bool `mapstructure:"soft_verify" envconfig:"SOFT_VERIFY" default:"false"`
}

type SMSConfig struct {
	Enabled    bool          `mapstructure:"enabled" envconfig:"ENABLED" default:"false"`
	BaseURL    string        `mapstructure:"base_url" envconfig:"BASE_URL" default:"https://api.semaphore.co" validate:"omitempty,url"`
	APIKey     string        `mapstructure:"api_key" envconfig:"API_KEY" validate:"required_if=Enabled true"`
	SenderName string        `mapstructure:"sender_name" envconfig:"SENDER_NAME" default:"SCHOOLDOCS"`
	Timeout    time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT" default:"15s"`
}

type IntentConfig struct {
	Driver         string        `mapstructure:"driver" envconfig:"DRIVER" default:"memory" validate:"oneof=memory redis"`
	TTL            time.Duration `mapstructure:"ttl" envconfig:"TTL" default:"1h"`
	FallbackMaxAge time.Duration `mapstructure:"fallback_max_age" envconfig:"FALLBACK_MAX_AGE" default:"600s"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" envconfig:"SWEEP_INTERVAL" default:"1m"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url" envconfig:"URL"`
	DB       int    `mapstructure:"db" envconfig:"DB" default:"0"`
	PoolSize int    `mapstructure:"pool_size" envconfig:"POOL_SIZE" default:"10"`
}

type FrontendConfig struct {
	SuccessURL string `mapstructure:"success_url" envconfig:"SUCCESS_URL" validate:"required,url"`
	FailureURL string `mapstructure:"failure_url" envconfig:"FAILURE_URL" validate:"required,url"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" envconfig:"ENABLED" default:"true"`
	Path    string `mapstructure:"path" envconfig:"PATH" default:"/metrics" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" default:"text" validate:"oneof=json text"`
}

// LoadConfigFromEnv builds the config from process environment, reading an
// optional .env file first.
func LoadConfigFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ----------------- VALIDATION -----------------

var configValidator = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	var errs error

	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = multierr.Append(errs, fmt.Errorf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = multierr.Append(errs, err)
		}
	}

	errs = multierr.Append(errs, wrapSection("server", c.Server.Validate()))
	errs = multierr.Append(errs, wrapSection("database", c.Database.Validate()))
	errs = multierr.Append(errs, wrapSection("intent", c.Intent.Validate(c.Redis)))
	errs = multierr.Append(errs, wrapSection("frontend", c.Frontend.Validate()))

	return errs
}

func wrapSection(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s config: %w", section, err)
}

func (c *ServerConfig) Validate() error {
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *IntentConfig) Validate(redisCfg RedisConfig) error {
	if c.FallbackMaxAge <= 0 {
		return errors.New("fallback_max_age must be positive")
	}
	if c.TTL < c.FallbackMaxAge {
		return errors.New("ttl must be >= fallback_max_age")
	}
	if c.Driver == IntentDriverRedis && strings.TrimSpace(redisCfg.URL) == "" {
		return errors.New("redis.url is required when intent.driver is redis")
	}
	if c.Driver == IntentDriverMemory && c.SweepInterval <= 0 {
		return errors.New("sweep_interval must be positive for the memory driver")
	}
	return nil
}

func (c *FrontendConfig) Validate() error {
	for name, raw := range map[string]string{"success_url": c.SuccessURL, "failure_url": c.FailureURL} {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
