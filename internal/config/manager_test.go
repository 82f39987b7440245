package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadRoundtrip(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
watcher:
  enabled: true
  tick_interval: "30s"
  fetch_timeout: "15s"
  fetch_rate_per_sec: 2
  fetch_burst: 4
storage:
  path: "/var/lib/streamwatch/watch.db"
metrics:
  enabled: true
  addr: "127.0.0.1:9090"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if !cfg.Watcher.Enabled || cfg.Watcher.TickInterval != "30s" || cfg.Watcher.FetchRatePerSec != 2 {
		t.Fatalf("watcher section = %+v", cfg.Watcher)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get must return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  tokne_typo: "oops"
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestHashSuppressesUnchangedConfig(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: \"123:abc\"\n")
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if hashConfig(cfg) != m.lastHash {
		t.Fatal("identical content must hash identically")
	}
}

func TestPublishDropsOldestForSlowSubscriber(t *testing.T) {
	m := NewManager("unused")
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	first := &Config{Telegram: TelegramConfig{Token: "first"}}
	second := &Config{Telegram: TelegramConfig{Token: "second"}}
	m.publish(first)
	m.publish(second)

	select {
	case got := <-sub:
		if got.Telegram.Token != "second" {
			t.Fatalf("got %q, want the newest config to win", got.Telegram.Token)
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}
}

func TestParseDuration(t *testing.T) {
	if d, err := ParseDuration("f", "", 30*time.Second); err != nil || d != 30*time.Second {
		t.Fatalf("empty: (%v, %v)", d, err)
	}
	if d, err := ParseDuration("f", "2m", 0); err != nil || d != 2*time.Minute {
		t.Fatalf("2m: (%v, %v)", d, err)
	}
	if _, err := ParseDuration("f", "soon", 0); err == nil {
		t.Fatal("malformed duration accepted")
	}
	if _, err := ParseDuration("f", "-5s", 0); err == nil {
		t.Fatal("negative duration accepted")
	}
}
