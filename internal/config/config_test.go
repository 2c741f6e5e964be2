package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
smtp:
  dry_run: true
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("smtp port = %d", cfg.SMTP.Port)
	}
	if cfg.SMTP.Timeout != 30*time.Second {
		t.Errorf("smtp timeout = %v", cfg.SMTP.Timeout)
	}
	if cfg.Sending.DefaultEmailGap != 10 {
		t.Errorf("default gap = %d", cfg.Sending.DefaultEmailGap)
	}
	if cfg.Sending.PollInterval != time.Minute {
		t.Errorf("poll interval = %v", cfg.Sending.PollInterval)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  listen_addr: ":9090"
  api_key: secret
database:
  path: /tmp/test/app.db
tracking:
  path: /tmp/test/tracking.db
  base_url: https://track.example.com
smtp:
  host: relay.example.com
  port: 2525
  username: user
  password: pass
  starttls: true
sending:
  default_email_gap: 20
  poll_interval: 30s
company:
  name: Mailkite
  email: hello@mailkite.example
logging:
  level: debug
  format: text
`))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.APIKey != "secret" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Tracking.BaseURL != "https://track.example.com" {
		t.Errorf("tracking base url = %q", cfg.Tracking.BaseURL)
	}
	if cfg.SMTP.Host != "relay.example.com" || cfg.SMTP.Port != 2525 || !cfg.SMTP.StartTLS {
		t.Errorf("smtp = %+v", cfg.SMTP)
	}
	if cfg.Sending.DefaultEmailGap != 20 || cfg.Sending.PollInterval != 30*time.Second {
		t.Errorf("sending = %+v", cfg.Sending)
	}
	if cfg.Company.Name != "Mailkite" {
		t.Errorf("company = %+v", cfg.Company)
	}
}

func TestLoadRejectsMissingSMTPHost(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  listen_addr: ":8080"
`))
	if err == nil {
		t.Fatal("config without smtp.host and without dry_run must be rejected")
	}
}

func TestLoadRejectsShortPollInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `
smtp:
  dry_run: true
sending:
  poll_interval: 100ms
`))
	if err == nil {
		t.Fatal("sub-second poll interval must be rejected")
	}
}

func TestLoadRejectsIncompleteDKIM(t *testing.T) {
	_, err := Load(writeConfig(t, `
smtp:
  host: relay.example.com
  dkim:
    enabled: true
    domain: example.com
`))
	if err == nil {
		t.Fatal("DKIM without selector and key must be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file must be an error")
	}
}
