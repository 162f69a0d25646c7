package monitor

import (
	"sort"

	"stockwatch/internal/catalog"
)

// Diff compares a fresh snapshot against the previously stored sizes and
// returns the change events for this cycle, in dispatch order.
//
// Pure function: it never touches the store. The caller commits
// snap.Sizes after dispatching, whether or not dispatch succeeded.
//
// Rules:
//   - unknown id: exactly one New event
//   - known id: SoldOut(prev−curr) then Restock(curr−prev), each only when
//     non-empty; both can fire in one cycle when sizes churned
//   - equal sets: no events (the caller still refreshes the stored value)
//
// SoldOut is ordered before Restock so a churn cycle never reads as a
// restock contradicting a sell-out the reader has not seen yet.
func Diff(snap catalog.Snapshot, prev []string, known bool) []Event {
	if !known {
		return []Event{{Kind: KindNew, Snapshot: snap}}
	}

	soldOut := subtract(prev, snap.Sizes)
	restocked := subtract(snap.Sizes, prev)

	var events []Event
	if len(soldOut) > 0 {
		events = append(events, Event{Kind: KindSoldOut, Snapshot: snap, Sizes: soldOut})
	}
	if len(restocked) > 0 {
		events = append(events, Event{Kind: KindRestock, Snapshot: snap, Sizes: restocked})
	}
	return events
}

// subtract returns a−b as a sorted slice of distinct labels.
func subtract(a, b []string) []string {
	if len(a) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(b))
	for _, s := range b {
		drop[s] = struct{}{}
	}
	seen := make(map[string]struct{}, len(a))
	var out []string
	for _, s := range a {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := drop[s]; !ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
