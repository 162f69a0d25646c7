package monitor

import (
	"time"

	"stockwatch/internal/catalog"
)

// EventKind classifies one availability change.
type EventKind string

const (
	// KindNew fires once for a product id never seen before, whatever its
	// size set looks like. An out-of-stock new listing still alerts.
	KindNew EventKind = "new"
	// KindRestock carries the sizes that came back in stock.
	KindRestock EventKind = "restock"
	// KindSoldOut carries the sizes that went out of stock.
	KindSoldOut EventKind = "sold_out"
)

// Event is one typed change for one product in one cycle. Ephemeral: events
// are produced by Diff, consumed by the dispatcher, and never persisted.
type Event struct {
	Kind     EventKind
	Snapshot catalog.Snapshot
	// Sizes is the changed size set for Restock/SoldOut; empty for New
	// (the full current set rides on the Snapshot).
	Sizes []string
}

// Status is a read-only counters snapshot, exposed to the liveness endpoint
// and the digest.
type Status struct {
	CyclesRun       uint64    `json:"cycles_run"`
	CyclesFailed    uint64    `json:"cycles_failed"`
	LastCycleAt     time.Time `json:"last_cycle_at"`
	LastCycleOK     bool      `json:"last_cycle_ok"`
	LastCycleCount  int       `json:"last_cycle_products"`
	ProductsTracked int       `json:"products_tracked"`
	AlertsNew       uint64    `json:"alerts_new"`
	AlertsRestock   uint64    `json:"alerts_restock"`
	AlertsSoldOut   uint64    `json:"alerts_sold_out"`
	DispatchErrors  uint64    `json:"dispatch_errors"`
	RecordsSkipped  uint64    `json:"records_skipped"`
}
