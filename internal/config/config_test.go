package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "products.db", cfg.Database.DSN)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval)
	assert.True(t, cfg.Scheduler.RunImmediately)
	assert.Equal(t, 5*time.Second, cfg.Checker.PacingDelay)
	assert.Equal(t, 1, cfg.Checker.Workers)
	assert.Equal(t, 15*time.Second, cfg.Fetcher.RequestTimeout)
	assert.Equal(t, "span.a-offscreen", cfg.Fetcher.DefaultSelector)
	require.Len(t, cfg.Fetcher.Sources, 1)
	assert.Equal(t, "amazon.com", cfg.Fetcher.Sources[0].Host)
	assert.Equal(t, ChannelEmail, cfg.Alerting.Channel)
	assert.Equal(t, "smtp.gmail.com", cfg.Alerting.Email.Host)
	assert.Equal(t, 587, cfg.Alerting.Email.Port)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, ":5000", cfg.API.Listen)
}

func TestLoadLegacySenderEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SENDER_EMAIL", "sender@example.com")
	t.Setenv("SENDER_PASSWORD", "app-password")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sender@example.com", cfg.Alerting.Email.Username)
	assert.Equal(t, "app-password", cfg.Alerting.Email.Password)
	assert.True(t, cfg.Alerting.Email.Configured())
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SENDER_EMAIL", "legacy@example.com")
	t.Setenv("PRICEWATCH_ALERTING_EMAIL_USERNAME", "current@example.com")
	t.Setenv("PRICEWATCH_SCHEDULER_INTERVAL", "15m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "current@example.com", cfg.Alerting.Email.Username)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricewatch.yaml")
	content := `
database:
  driver: postgres
  dsn: postgres://localhost/pricewatch
checker:
  pacing_delay: 2s
  workers: 4
fetcher:
  sources:
    - host: amazon.com
      selector: span.a-offscreen
    - host: bestbuy.com
      selector: div.priceView-customer-price span
alerting:
  channel: telegram
  telegram:
    bot_token: "123:abc"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 2*time.Second, cfg.Checker.PacingDelay)
	assert.Equal(t, 4, cfg.Checker.Workers)
	require.Len(t, cfg.Fetcher.Sources, 2)
	assert.Equal(t, "div.priceView-customer-price span", cfg.Fetcher.Sources[1].Selector)
	assert.Equal(t, ChannelTelegram, cfg.Alerting.Channel)
	assert.Equal(t, "123:abc", cfg.Alerting.Telegram.BotToken)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(c *Config){
		"driver":   func(c *Config) { c.Database.Driver = "mysql" },
		"interval": func(c *Config) { c.Scheduler.Interval = 0 },
		"pacing":   func(c *Config) { c.Checker.PacingDelay = -time.Second },
		"workers":  func(c *Config) { c.Checker.Workers = 0 },
		"timeout":  func(c *Config) { c.Fetcher.RequestTimeout = 0 },
		"selector": func(c *Config) { c.Fetcher.DefaultSelector = " " },
		"source":   func(c *Config) { c.Fetcher.Sources = []SourceConfig{{Host: "example.com"}} },
		"channel":  func(c *Config) { c.Alerting.Channel = "sms" },
		"listen":   func(c *Config) { c.API.Enabled = true; c.API.Listen = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := *base
			cfg.Fetcher.Sources = append([]SourceConfig(nil), base.Fetcher.Sources...)
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}
