package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// EnvPrefix is prepended to every environment key, e.g. ALERT_COOLDOWN.
const EnvPrefix = "ALERT"

type Config struct {
	Addr     string `mapstructure:"addr"`      // API bind address
	LogDir   string `mapstructure:"log_dir"`   // logs directory
	LogLevel string `mapstructure:"log_level"` // debug|info|warn|error

	// Debouncer
	Cooldown     time.Duration `mapstructure:"cooldown"`
	Label        string        `mapstructure:"label"`         // sink display name
	GateRecovery bool          `mapstructure:"gate_recovery"` // apply cooldown to recoveries too

	// Outbound channel (exactly one, or none)
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	WebhookURL      string `mapstructure:"webhook_url"`
	WebhookSecret   string `mapstructure:"webhook_secret"`

	// API access
	PublicAPIKeys []string `mapstructure:"public_api_keys"`
	AdminAPIKeys  []string `mapstructure:"admin_api_keys"`
	PublicRPM     int      `mapstructure:"public_rpm"`
	PublicBurst   int      `mapstructure:"public_burst"`
	AdminRPM      int      `mapstructure:"admin_rpm"`
	AdminBurst    int      `mapstructure:"admin_burst"`

	AllowedOrigins []string `mapstructure:"allowed_origins"` // CORS; empty allows all

	// Built-in watcher; empty Targets or zero CheckInterval disables it.
	Targets             []string      `mapstructure:"targets"`
	CheckInterval       time.Duration `mapstructure:"check_interval"`
	CheckTimeout        time.Duration `mapstructure:"check_timeout"`
	MaxConcurrentChecks int           `mapstructure:"max_concurrent_checks"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryBackoff        time.Duration `mapstructure:"retry_backoff"`
	ResetEvery          time.Duration `mapstructure:"reset_every"` // periodic Clear(); 0 = never
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("cooldown", "60s")
	v.SetDefault("label", "default")
	v.SetDefault("gate_recovery", false)
	v.SetDefault("slack_webhook_url", "")
	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("public_api_keys", []string{})
	v.SetDefault("admin_api_keys", []string{})
	v.SetDefault("public_rpm", 120)
	v.SetDefault("public_burst", 60)
	v.SetDefault("admin_rpm", 60)
	v.SetDefault("admin_burst", 30)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("targets", []string{})
	v.SetDefault("check_interval", "0s")
	v.SetDefault("check_timeout", "10s")
	v.SetDefault("max_concurrent_checks", 4)
	v.SetDefault("retry_attempts", 2)
	v.SetDefault("retry_backoff", "300ms")
	v.SetDefault("reset_every", "0s")
}

// Load reads defaults, then the optional YAML file at path, then ALERT_*
// environment variables, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.PublicAPIKeys = splitList(cfg.PublicAPIKeys)
	cfg.AdminAPIKeys = splitList(cfg.AdminAPIKeys)
	cfg.Targets = splitList(cfg.Targets)
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, errors.New("addr is required"))
	}
	if c.Cooldown < 0 {
		err = multierr.Append(err, fmt.Errorf("cooldown %s must not be negative", c.Cooldown))
	}
	if c.SlackWebhookURL != "" && c.WebhookURL != "" {
		err = multierr.Append(err, errors.New("slack_webhook_url and webhook_url are mutually exclusive"))
	}
	for name, raw := range map[string]string{"slack_webhook_url": c.SlackWebhookURL, "webhook_url": c.WebhookURL} {
		if raw != "" && !isHTTPURL(raw) {
			err = multierr.Append(err, fmt.Errorf("%s %q is not an http(s) URL", name, raw))
		}
	}
	for _, t := range c.Targets {
		if !isHTTPURL(t) {
			err = multierr.Append(err, fmt.Errorf("target %q is not an http(s) URL", t))
		}
	}
	if c.CheckInterval < 0 || c.ResetEvery < 0 {
		err = multierr.Append(err, errors.New("check_interval and reset_every must not be negative"))
	}
	if c.MaxConcurrentChecks < 1 {
		err = multierr.Append(err, errors.New("max_concurrent_checks must be >= 1"))
	}
	if c.RetryAttempts < 1 {
		err = multierr.Append(err, errors.New("retry_attempts must be >= 1"))
	}
	return err
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// splitList flattens comma-separated entries and drops blanks, so both
// "a,b" from the environment and YAML lists work.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
