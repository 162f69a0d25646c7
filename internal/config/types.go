package config

// Config is the on-disk configuration. YAML and JSON are both accepted;
// YAML is coerced to JSON before strict decoding (see yaml.go).
//
// All durations are Go duration strings (e.g. "500ms", "20s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Catalog  CatalogConfig  `json:"catalog"`
	Monitor  MonitorConfig  `json:"monitor"`
	Storage  StorageConfig  `json:"storage"`
	Health   HealthConfig   `json:"health,omitempty"`
	Digest   DigestConfig   `json:"digest,omitempty"`
	Logging  LoggingConfig  `json:"logging,omitempty"`
}

// TelegramConfig identifies the alert channel.
//
// Token and ChatID may be left empty in the file and supplied via the
// STOCKWATCH_BOT_TOKEN / STOCKWATCH_CHAT_ID environment variables instead
// (see ApplyEnv); keeping secrets out of the config file is recommended.
type TelegramConfig struct {
	Token string `json:"token,omitempty"`
	// ChatID is a numeric chat id or an @channelname.
	ChatID      string `json:"chat_id,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"` // default "10s"
	RatePerSec  int    `json:"rate_per_sec,omitempty"` // default 3
}

// CatalogConfig points at the remote catalog listing.
type CatalogConfig struct {
	// URL is the full catalog query endpoint (JSON, product list under "products").
	URL string `json:"url"`
	// BaseLinkURL is prepended to each record's relative product url.
	BaseLinkURL  string `json:"base_link_url,omitempty"`
	FetchTimeout string `json:"fetch_timeout,omitempty"` // default "8s"

	// OptimisticStock treats a variant with no stock flag as available.
	// This mirrors upstream APIs that omit the flag for in-stock sizes.
	// Pointer so that "omitted" defaults to true.
	OptimisticStock *bool `json:"optimistic_stock,omitempty"`
}

// MonitorConfig controls the poll loop.
//
// Defaults (when fields are omitted/zero):
//   - interval: "20s"
//   - error_backoff: "5s"
//   - workers: 4
type MonitorConfig struct {
	Interval     string `json:"interval,omitempty"`
	ErrorBackoff string `json:"error_backoff,omitempty"`
	Workers      int    `json:"workers,omitempty"`
}

// StorageConfig controls the durable state backend.
//
// Driver values:
//   - "file" (default): single JSON document
//   - "sqlite": SQLite database file
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// HealthConfig controls the liveness HTTP endpoint.
type HealthConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default ":5000"
}

// DigestConfig controls the periodic summary message.
// Schedule is a cron spec (supports @every and descriptors); empty disables.
type DigestConfig struct {
	Schedule string `json:"schedule,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level,omitempty"`
	Console *bool             `json:"console,omitempty"` // default true
	File    LoggingFileConfig `json:"file,omitempty"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

func (c *CatalogConfig) OptimisticStockOrDefault() bool {
	if c.OptimisticStock == nil {
		return true
	}
	return *c.OptimisticStock
}

func (c *LoggingConfig) ConsoleOrDefault() bool {
	if c.Console == nil {
		return true
	}
	return *c.Console
}
