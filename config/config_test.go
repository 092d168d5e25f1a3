package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{"AUTH_SIGNING_KEY": "secret"}})

	assert.NoError(t, err)
	assert.Equal(t, ":8090", cfg.Addr)
	assert.Equal(t, "blockhub", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 100, cfg.MaxUsernameAttempts)
	assert.Equal(t, []string{"openid", "email"}, cfg.OAuth.Scopes)
	assert.False(t, cfg.MailEnabled())
}

func TestParse(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"AUTH_SIGNING_KEY":   "secret",
		"APP_ENV":            "production",
		"ADMINS":             "root,ops",
		"MAILGUN_DOMAIN":     "mg.example.com",
		"MAILGUN_API_KEY":    "key",
		"MAILGUN_SENDER":     "noreply@example.com",
		"OAUTH_TYPE":         "Snap!",
		"OAUTH_TOKEN_URL":    "https://snap.example/token",
		"OAUTH_USERINFO_URL": "https://snap.example/userinfo",
	}})

	assert.NoError(t, err)
	assert.Equal(t, []string{"root", "ops"}, cfg.Admins)
	assert.True(t, cfg.MailEnabled())
	assert.Equal(t, "Snap!", cfg.OAuth.Type)
	assert.IsType(t, &logrus.JSONFormatter{}, cfg.Logger().Formatter)
}

func TestParse_Invalid(t *testing.T) {
	tests := []map[string]string{
		{},
		{"AUTH_SIGNING_KEY": "secret", "APP_ENV": "qa"},
		{"AUTH_SIGNING_KEY": "secret", "MAX_USERNAME_ATTEMPTS": "0"},
		{"AUTH_SIGNING_KEY": "secret", "MAILGUN_DOMAIN": "mg.example.com"},
		{"AUTH_SIGNING_KEY": "secret", "OAUTH_TYPE": "Snap!"},
	}

	for _, environment := range tests {
		_, err := parse(env.Options{Environment: environment})
		assert.Error(t, err, environment)
	}
}
