package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"pricewatch/internal/logging"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Checker   CheckerConfig   `mapstructure:"checker"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	API       APIConfig       `mapstructure:"api"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig selects the tracked item store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs sweep cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	RunImmediately  bool          `mapstructure:"run_immediately"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// CheckerConfig tunes per-sweep behaviour.
type CheckerConfig struct {
	PacingDelay time.Duration `mapstructure:"pacing_delay"`
	Workers     int           `mapstructure:"workers"`
}

// FetcherConfig covers outbound price page requests.
type FetcherConfig struct {
	RequestTimeout  time.Duration  `mapstructure:"request_timeout"`
	UserAgent       string         `mapstructure:"user_agent"`
	AcceptLanguage  string         `mapstructure:"accept_language"`
	DefaultSelector string         `mapstructure:"default_selector"`
	Sources         []SourceConfig `mapstructure:"sources"`
	Breaker         BreakerConfig  `mapstructure:"breaker"`
}

// SourceConfig maps a retailer host to the CSS selector of its price element.
type SourceConfig struct {
	Host     string `mapstructure:"host"`
	Selector string `mapstructure:"selector"`
}

// BreakerConfig controls the per-host circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Channel  string         `mapstructure:"channel"`
	Email    EmailConfig    `mapstructure:"email"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Timeout  time.Duration  `mapstructure:"timeout"`
}

// EmailConfig 描述 SMTP 告警参数。
type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Configured reports whether credentials are present.
func (e EmailConfig) Configured() bool {
	return e.Username != "" && e.Password != ""
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// APIConfig sets the submission HTTP surface.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// bindLegacyEnv keeps the SENDER_EMAIL/SENDER_PASSWORD variables of the old
// checker .env files working.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("alerting.email.username", "PRICEWATCH_ALERTING_EMAIL_USERNAME", "SENDER_EMAIL")
	_ = v.BindEnv("alerting.email.password", "PRICEWATCH_ALERTING_EMAIL_PASSWORD", "SENDER_PASSWORD")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricewatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "products.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("scheduler.interval", "1h")
	v.SetDefault("scheduler.run_immediately", true)
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.advisory_lock_key", int64(0x70726963))

	v.SetDefault("checker.pacing_delay", "5s")
	v.SetDefault("checker.workers", 1)

	v.SetDefault("fetcher.request_timeout", "15s")
	v.SetDefault("fetcher.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("fetcher.accept_language", "en-US,en;q=0.9")
	v.SetDefault("fetcher.default_selector", "span.a-offscreen")
	v.SetDefault("fetcher.sources", []map[string]any{
		{"host": "amazon.com", "selector": "span.a-offscreen"},
	})
	v.SetDefault("fetcher.breaker.consecutive_failures", 5)
	v.SetDefault("fetcher.breaker.cooldown", "10m")

	v.SetDefault("alerting.channel", ChannelEmail)
	v.SetDefault("alerting.timeout", "15s")
	v.SetDefault("alerting.email.host", "smtp.gmail.com")
	v.SetDefault("alerting.email.port", 587)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen", ":5000")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Checker.PacingDelay < 0 {
		return fmt.Errorf("checker.pacing_delay cannot be negative")
	}
	if c.Checker.Workers < 1 {
		return fmt.Errorf("checker.workers must be at least 1")
	}
	if c.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be greater than zero")
	}
	if strings.TrimSpace(c.Fetcher.DefaultSelector) == "" {
		return fmt.Errorf("fetcher.default_selector must be configured")
	}
	for i, src := range c.Fetcher.Sources {
		if src.Host == "" || src.Selector == "" {
			return fmt.Errorf("fetcher.sources[%d] needs both host and selector", i)
		}
	}
	switch c.Alerting.Channel {
	case ChannelEmail, ChannelTelegram:
	default:
		return fmt.Errorf("alerting.channel must be %q or %q, got %q", ChannelEmail, ChannelTelegram, c.Alerting.Channel)
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen 必须配置")
	}
	return nil
}
