package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Tracking TrackingConfig `yaml:"tracking"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Sending  SendingConfig  `yaml:"sending"`
	Company  CompanyConfig  `yaml:"company"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	APIKey     string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type TrackingConfig struct {
	// Path of the bbolt file holding the append-only event log.
	Path string `yaml:"path"`
	// BaseURL is the public URL prefix for pixel/redirect links embedded in
	// outgoing mail. Tracking rewriting is disabled when empty.
	BaseURL string `yaml:"base_url"`
}

type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	StartTLS bool          `yaml:"starttls"`
	Timeout  time.Duration `yaml:"timeout"`
	// Dry run logs messages instead of delivering them.
	DryRun bool       `yaml:"dry_run"`
	DKIM   DKIMConfig `yaml:"dkim"`
}

type DKIMConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Domain     string `yaml:"domain"`
	Selector   string `yaml:"selector"`
	PrivateKey string `yaml:"private_key_file"`
}

type SendingConfig struct {
	// DefaultEmailGap is the pause between consecutive sends, in seconds,
	// used when a campaign does not set its own gap.
	DefaultEmailGap int `yaml:"default_email_gap"`
	// PollInterval is how often the scheduler looks for due campaigns.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// CompanyConfig seeds the company profile on first start. The profile is
// editable through the API afterwards.
type CompanyConfig struct {
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Phone   string `yaml:"phone"`
	Website string `yaml:"website"`
	Address string `yaml:"address"`
	Logo    string `yaml:"logo"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/mailkite/app.db"
	}
	if cfg.Tracking.Path == "" {
		cfg.Tracking.Path = "/var/lib/mailkite/tracking.db"
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.Timeout == 0 {
		cfg.SMTP.Timeout = 30 * time.Second
	}
	if cfg.Sending.DefaultEmailGap == 0 {
		cfg.Sending.DefaultEmailGap = 10
	}
	if cfg.Sending.PollInterval == 0 {
		cfg.Sending.PollInterval = time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if !cfg.SMTP.DryRun && cfg.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required unless smtp.dry_run is set")
	}
	if cfg.Sending.DefaultEmailGap < 0 {
		return fmt.Errorf("sending.default_email_gap must not be negative")
	}
	if cfg.Sending.PollInterval < time.Second {
		return fmt.Errorf("sending.poll_interval must be at least 1s")
	}
	if cfg.SMTP.DKIM.Enabled {
		if cfg.SMTP.DKIM.Domain == "" {
			return fmt.Errorf("smtp.dkim.domain is required when DKIM is enabled")
		}
		if cfg.SMTP.DKIM.Selector == "" {
			return fmt.Errorf("smtp.dkim.selector is required when DKIM is enabled")
		}
		if cfg.SMTP.DKIM.PrivateKey == "" {
			return fmt.Errorf("smtp.dkim.private_key_file is required when DKIM is enabled")
		}
	}
	return nil
}
