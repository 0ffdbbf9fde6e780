package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr         string   `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel         string   `env:"LOG_LEVEL" envDefault:"info"`
	CORSAllowOrigins []string `env:"CORS_ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`

	Store StoreConfig
	Auth  AuthConfig
	OTP   OTPConfig
	Mail  MailConfig

	RedisURL string `env:"REDIS_URL"`
}

type StoreConfig struct {
	Driver        string `env:"STORE_DRIVER" envDefault:"mongo"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MongoURL      string `env:"MONGODB_URL"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"fitzone"`

	MongoConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MongoRetryAttempts  int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	MongoRetryInterval  time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}

type AuthConfig struct {
	JWTSecret      string        `env:"JWT_SECRET,required"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"fitzone"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"168h"`
}

type OTPConfig struct {
	TTL             time.Duration `env:"OTP_TTL" envDefault:"10m"`
	ResendCooldown  time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"60s"`
	MXLookupTimeout time.Duration `env:"MX_LOOKUP_TIMEOUT" envDefault:"5s"`
	MailSendTimeout time.Duration `env:"MAIL_SEND_TIMEOUT" envDefault:"20s"`
}

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Load reads an optional .env file and parses the environment.
func Load(files ...string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case StoreMongo:
		if c.Store.MongoURL == "" {
			return fmt.Errorf("%w: MONGODB_URL is required for STORE_DRIVER=mongo", ErrInvalidConfig)
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for STORE_DRIVER=postgres", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown STORE_DRIVER %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("%w: OTP_TTL must be positive", ErrInvalidConfig)
	}
	if c.OTP.ResendCooldown < 0 {
		return fmt.Errorf("%w: OTP_RESEND_COOLDOWN must not be negative", ErrInvalidConfig)
	}
	return nil
}
