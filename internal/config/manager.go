package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "stockwatch/pkg/logx"
)

// Env variable names recognized by ApplyEnv. They override the config file
// so credentials can stay out of it.
const (
	EnvBotToken = "STOCKWATCH_BOT_TOKEN"
	EnvChatID   = "STOCKWATCH_CHAT_ID"
)

// Manager loads, validates, and watches the config file.
type Manager struct {
	path string

	mu  sync.RWMutex
	cfg *Config

	log logx.Logger

	// lastHash tracks the last successfully committed config content.
	// It avoids redundant publishes when the editor causes multiple write
	// events without content changes.
	lastHash uint64
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

func (m *Manager) Path() string { return m.path }

// Parse reads and strictly decodes the config file, then applies env
// overrides and validates.
func (m *Manager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := decodeStrict(m.path, b, &cfg); err != nil {
		return nil, err
	}

	ApplyEnv(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides credential fields from the environment.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvBotToken)); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvChatID)); v != "" {
		cfg.Telegram.ChatID = v
	}
}

// durationFields enumerates every duration-typed path in the schema, so
// Validate rejects a bad value at startup instead of deep inside the
// component that eventually parses it.
func durationFields(cfg *Config) []struct{ path, raw string } {
	return []struct{ path, raw string }{
		{"catalog.fetch_timeout", cfg.Catalog.FetchTimeout},
		{"telegram.send_timeout", cfg.Telegram.SendTimeout},
		{"monitor.interval", cfg.Monitor.Interval},
		{"monitor.error_backoff", cfg.Monitor.ErrorBackoff},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
	}
}

// Validate checks fields that would otherwise fail deep inside a component.
func Validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Catalog.URL) == "" {
		return errors.New("catalog.url is required")
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	for _, f := range durationFields(cfg) {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	if cfg.Monitor.Workers < 0 {
		return errors.New("monitor.workers must be >= 0")
	}
	return nil
}

// ParseDurationField parses one duration-typed config value. Durations are
// Go duration strings ("500ms", "20s", "1m"); empty means "unset" and maps
// to zero so the owning component picks its default.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration (want e.g. \"20s\")", path, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault resolves an optional duration field against the
// owning component's default.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// Watch re-parses the file on change events and calls onChange with the new
// config. Invalid edits are logged and skipped; the last good config stays
// committed. Blocks until ctx is done.
func (m *Manager) Watch(ctx context.Context, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors replace files via rename,
	// which drops a file-level watch.
	dir := filepath.Dir(m.path)
	if err := w.Add(dir); err != nil {
		return err
	}
	base := filepath.Base(m.path)

	var debounce *time.Timer
	var debounceC <-chan time.Time

	reload := func() {
		cfg, err := m.Parse()
		if err != nil {
			m.log.Warn("config reload skipped (parse failed)", logx.Err(err))
			return
		}
		m.mu.Lock()
		same := hashConfig(cfg) == m.lastHash
		m.mu.Unlock()
		if same {
			return
		}
		m.Commit(cfg)
		m.log.Info("config reloaded", logx.String("path", m.path))
		if onChange != nil {
			onChange(cfg)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Editors fire bursts of events per save; coalesce them.
			if debounce == nil {
				debounce = time.NewTimer(250 * time.Millisecond)
				debounceC = debounce.C
			} else {
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(250 * time.Millisecond)
			}
		case <-debounceC:
			debounce = nil
			debounceC = nil
			reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			m.log.Warn("config watcher error", logx.Err(err))
		}
	}
}
