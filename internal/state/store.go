package state

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "stockwatch/pkg/logx"
)

// Store is the durable mapping from product id to its last-known available
// sizes. It is the only stateful piece of the monitor.
//
// Concurrency contract: Get and Commit are safe from the cycle's worker
// pool; the implementation serializes them internally. Flush is called by
// the scheduler alone, after all workers for the cycle have finished.
//
// Entries are never deleted. Delisted products stay in the store; eviction
// would need its own policy and is deliberately out of scope.
type Store interface {
	// Get returns the stored sizes for id and whether the id is known.
	Get(id string) (sizes []string, known bool)
	// Commit overwrites the stored sizes for id in memory. It always
	// overwrites, even when the value is unchanged, so stale references
	// are released.
	Commit(id string, sizes []string)
	// Len reports the number of tracked products.
	Len() int
	// Flush persists the full mapping durably, once per cycle.
	Flush(ctx context.Context) error
	Close() error
}

// Config configures the state backend.
//
// Driver values:
//   - "file": single JSON document (default)
//   - "sqlite": SQLite database file
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured store and loads existing state.
// A missing file/database means empty state, not an error. A corrupt state
// file is logged and treated as empty; the monitor re-learns the catalog
// rather than refusing to start.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("state: path is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("state: unknown driver: " + cfg.Driver)
	}
}
