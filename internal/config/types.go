package config

// Config is the full on-disk configuration for the daemon.
//
// All durations are Go duration strings (e.g. "500ms", "30s", "2m").
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watcher  WatcherConfig  `yaml:"watcher"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	// PollTimeout is the long-poll timeout for incoming updates.
	PollTimeout string `yaml:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `yaml:"level"`
	Console bool        `yaml:"console"`
	File    LoggingFile `yaml:"file"`
}

type LoggingFile struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatcherConfig controls the polling engine.
//
// TickInterval is the global scan cadence; it must stay well below the
// smallest per-tenant poll interval (tenant cadence is gated separately,
// per tenant, against its persisted last-check timestamp).
type WatcherConfig struct {
	Enabled      bool   `yaml:"enabled"`
	TickInterval string `yaml:"tick_interval"` // default "30s"
	FetchTimeout string `yaml:"fetch_timeout"` // default "15s"

	// Global outbound fetch budget shared by all tenants.
	FetchRatePerSec int `yaml:"fetch_rate_per_sec"` // default 2
	FetchBurst      int `yaml:"fetch_burst"`        // default 4
}

type StorageConfig struct {
	Path        string `yaml:"path"`
	BusyTimeout string `yaml:"busy_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // default "127.0.0.1:9090"
}
