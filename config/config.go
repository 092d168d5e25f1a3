// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AppName string `env:"APP_NAME" envDefault:"blockhub"`
	Env     string `env:"APP_ENV" envDefault:"development" validate:"oneof=development staging production"`
	Addr    string `env:"HTTP_ADDR" envDefault:":8090" validate:"required"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://127.0.0.1:27017" validate:"required"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"blockhub" validate:"required"`

	// RedisAddr enables cross-instance project update notifications.
	RedisAddr           string `env:"REDIS_ADDR"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	RedisProjectChannel string `env:"REDIS_PROJECT_CHANNEL" envDefault:"blockhub:projects"`

	SigningKey string        `env:"AUTH_SIGNING_KEY" validate:"required"`
	TokenTTL   time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"24h"`
	Admins     []string      `env:"ADMINS" envSeparator:","`

	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailgunSender string `env:"MAILGUN_SENDER" validate:"required_with=MailgunDomain"`

	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	MaxUsernameAttempts int `env:"MAX_USERNAME_ATTEMPTS" envDefault:"100" validate:"gt=0"`
}

// OAuthConfig configures one external login provider. It is disabled while
// Type is empty.
type OAuthConfig struct {
	Type         string   `env:"TYPE"`
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	TokenURL     string   `env:"TOKEN_URL" validate:"required_with=Type"`
	UserInfoURL  string   `env:"USERINFO_URL" validate:"required_with=Type"`
	Scopes       []string `env:"SCOPES" envSeparator:"," envDefault:"openid,email"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{Environment: env.ToMap(os.Environ())})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) MailEnabled() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != ""
}

// Logger writes text in development and JSON everywhere else.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if c.Env == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}
