package state

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"

	logx "stockwatch/pkg/logx"
)

// entry is the on-disk value shape: {"availableSizes": ["M","L"]}.
type entry struct {
	AvailableSizes []string `json:"availableSizes"`
}

// fileStore keeps the whole mapping in memory and rewrites one JSON document
// per Flush, via tmp file + rename so a crash mid-write never truncates the
// last good snapshot.
type fileStore struct {
	log  logx.Logger
	path string

	mu    sync.Mutex
	data  map[string][]string
	dirty bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:  log,
		path: cfg.Path,
		data: map[string][]string{},
	}

	b, err := os.ReadFile(cfg.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// First run.
	case err != nil:
		return nil, err
	default:
		var doc map[string]entry
		if jerr := json.Unmarshal(b, &doc); jerr != nil {
			log.Warn("state file corrupt, starting empty", logx.String("path", cfg.Path), logx.Err(jerr))
		} else {
			for id, e := range doc {
				s.data[id] = append([]string(nil), e.AvailableSizes...)
			}
		}
	}

	log.Debug("state loaded", logx.String("driver", "file"), logx.Int("products", len(s.data)))
	return s, nil
}

func (s *fileStore) Get(id string) ([]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes, ok := s.data[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), sizes...), true
}

func (s *fileStore) Commit(id string, sizes []string) {
	cp := append([]string(nil), sizes...)
	sort.Strings(cp)
	s.mu.Lock()
	s.data[id] = cp
	s.dirty = true
	s.mu.Unlock()
}

func (s *fileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

func (s *fileStore) Flush(ctx context.Context) error {
	_ = ctx

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	doc := make(map[string]entry, len(s.data))
	for id, sizes := range s.data {
		doc[id] = entry{AvailableSizes: append([]string(nil), sizes...)}
	}
	s.dirty = false
	s.mu.Unlock()

	b, err := json.Marshal(doc)
	if err != nil {
		return s.markDirty(err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return s.markDirty(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return s.markDirty(err)
	}
	return nil
}

// markDirty re-arms the dirty flag after a failed write so the next flush
// retries even when no commit happened in between.
func (s *fileStore) markDirty(err error) error {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	return err
}

func (s *fileStore) Close() error { return nil }
