package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"stockwatch/internal/catalog"
	"stockwatch/internal/state"
	logx "stockwatch/pkg/logx"
)

// Config controls the poll loop. Zero fields fall back to defaults.
type Config struct {
	Interval     time.Duration // normal sleep between cycles; default 20s
	ErrorBackoff time.Duration // sleep after a failed fetch; default 5s
	Workers      int           // bounded per-cycle fan-out; default 4
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 20 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Service owns the poll loop: fetch, normalize, diff, dispatch, persist.
//
// One long-lived loop; per-cycle per-product work fans out across a bounded
// worker pool, and a barrier before Flush guarantees cycles never overlap.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log    logx.Logger
	source catalog.Source
	norm   catalog.Normalizer
	store  state.Store
	disp   *Dispatcher

	smu   sync.Mutex
	stats Status
}

func New(cfg Config, source catalog.Source, norm catalog.Normalizer, store state.Store, disp *Dispatcher, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		log:    log,
		source: source,
		norm:   norm,
		store:  store,
		disp:   disp,
	}
}

// Apply swaps the runtime-tunable knobs. Safe to call while Run is active;
// the new values take effect from the next cycle.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Status returns a read-only counters snapshot.
func (s *Service) Status() Status {
	s.smu.Lock()
	st := s.stats
	s.smu.Unlock()
	st.ProductsTracked = s.store.Len()
	return st
}

// Run polls until ctx is canceled. The first cycle starts immediately.
// It only ever returns ctx.Err(); no cycle failure terminates the loop.
func (s *Service) Run(ctx context.Context) error {
	for {
		delay := s.RunCycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// RunCycle executes one full cycle and returns the delay before the next:
// the normal interval after a processed cycle, the error backoff after a
// failed fetch.
func (s *Service) RunCycle(ctx context.Context) time.Duration {
	cfg := s.config()
	started := time.Now()

	records, err := s.source.FetchCatalog(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("cycle fetch failed", logx.Err(err), logx.Duration("backoff", cfg.ErrorBackoff))
		}
		s.noteCycle(started, false, 0)
		return cfg.ErrorBackoff
	}

	snapshots := make([]catalog.Snapshot, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, raw := range records {
		snap, err := s.norm.Normalize(raw)
		if err != nil {
			// One bad record never aborts the cycle.
			s.log.Warn("record skipped", logx.Err(err))
			s.smu.Lock()
			s.stats.RecordsSkipped++
			s.smu.Unlock()
			continue
		}
		// Some listings repeat an id; two workers on the same id would race
		// the store entry and double-alert. First occurrence wins.
		if _, dup := seen[snap.ID]; dup {
			s.log.Warn("duplicate record skipped", logx.String("id", snap.ID))
			s.smu.Lock()
			s.stats.RecordsSkipped++
			s.smu.Unlock()
			continue
		}
		seen[snap.ID] = struct{}{}
		snapshots = append(snapshots, snap)
	}

	// Bounded fan-out: unbounded parallel dispatch would trip the
	// notification channel's rate limits.
	jobs := make(chan catalog.Snapshot)
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range jobs {
				s.processProduct(ctx, snap)
			}
		}()
	}
	for _, snap := range snapshots {
		jobs <- snap
	}
	close(jobs)
	// Barrier: persistence must not start while workers are in flight.
	wg.Wait()

	if err := s.store.Flush(ctx); err != nil {
		// Degraded mode: in-memory state stays correct for this process,
		// it just won't survive a restart.
		s.log.Error("state persist failed", logx.Err(err))
	}

	s.noteCycle(started, true, len(snapshots))
	s.log.Debug("cycle done",
		logx.Int("products", len(snapshots)),
		logx.Duration("took", time.Since(started)))
	return cfg.Interval
}

// processProduct diffs one snapshot against the stored state, dispatches
// the resulting events in order, and commits the fresh sizes. The commit
// happens even when dispatch fails: re-alerting every cycle through a
// notification outage would be worse than a lost alert.
func (s *Service) processProduct(ctx context.Context, snap catalog.Snapshot) {
	prev, known := s.store.Get(snap.ID)

	for _, ev := range Diff(snap, prev, known) {
		if err := s.disp.Dispatch(ctx, ev); err != nil {
			s.smu.Lock()
			s.stats.DispatchErrors++
			s.smu.Unlock()
		} else {
			s.smu.Lock()
			switch ev.Kind {
			case KindNew:
				s.stats.AlertsNew++
			case KindRestock:
				s.stats.AlertsRestock++
			case KindSoldOut:
				s.stats.AlertsSoldOut++
			}
			s.smu.Unlock()
		}
	}

	s.store.Commit(snap.ID, snap.Sizes)
}

func (s *Service) noteCycle(started time.Time, ok bool, products int) {
	s.smu.Lock()
	s.stats.CyclesRun++
	if !ok {
		s.stats.CyclesFailed++
	}
	s.stats.LastCycleAt = started
	s.stats.LastCycleOK = ok
	s.stats.LastCycleCount = products
	s.smu.Unlock()
}
