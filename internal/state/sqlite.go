package state

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	logx "stockwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore mirrors fileStore's in-memory map (the running process always
// trusts memory; see the PersistError policy) and flushes changed rows once
// per cycle.
type sqliteStore struct {
	log logx.Logger
	db  *sql.DB

	mu    sync.Mutex
	data  map[string][]string
	dirty map[string]struct{}
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &sqliteStore{
		log:   log,
		db:    db,
		data:  map[string][]string{},
		dirty: map[string]struct{}{},
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Debug("state loaded", logx.String("driver", "sqlite"), logx.Int("products", len(s.data)))
	return s, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, sizes FROM products`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, sizesJSON string
		if err := rows.Scan(&id, &sizesJSON); err != nil {
			return err
		}
		var sizes []string
		if err := json.Unmarshal([]byte(sizesJSON), &sizes); err != nil {
			s.log.Warn("state row corrupt, skipping", logx.String("id", id), logx.Err(err))
			continue
		}
		s.data[id] = sizes
	}
	return rows.Err()
}

func (s *sqliteStore) Get(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), sizes...), true
}

func (s *sqliteStore) Commit(id string, sizes []string) {
	cp := append([]string(nil), sizes...)
	sort.Strings(cp)
	s.mu.Lock()
	s.data[id] = cp
	s.dirty[id] = struct{}{}
	s.mu.Unlock()
}

func (s *sqliteStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *sqliteStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := make(map[string][]string, len(s.dirty))
	for id := range s.dirty {
		pending[id] = append([]string(nil), s.data[id]...)
	}
	s.dirty = map[string]struct{}{}
	s.mu.Unlock()

	if err := s.upsert(ctx, pending); err != nil {
		// Put the rows back on the pending set so a transient failure
		// self-heals on the next flush, whether or not the products
		// reappear in a fetch.
		s.mu.Lock()
		for id := range pending {
			s.dirty[id] = struct{}{}
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *sqliteStore) upsert(ctx context.Context, pending map[string][]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for id, sizes := range pending {
		b, err := json.Marshal(sizes)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products(id, sizes, updated_at) VALUES(?,?,?)
			 ON CONFLICT(id) DO UPDATE SET sizes=excluded.sizes, updated_at=excluded.updated_at`,
			id, string(b), now,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
