package monitor

import (
	"reflect"
	"testing"

	"stockwatch/internal/catalog"
)

func snap(id string, sizes ...string) catalog.Snapshot {
	return catalog.Snapshot{ID: id, Name: "Test " + id, Link: "https://shop.example/" + id, Sizes: sizes}
}

func TestDiffNewProduct(t *testing.T) {
	t.Parallel()

	events := Diff(snap("A1", "M", "L"), nil, false)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != KindNew {
		t.Fatalf("Kind = %s, want %s", events[0].Kind, KindNew)
	}
	if events[0].Snapshot.ID != "A1" {
		t.Fatalf("unexpected snapshot id %q", events[0].Snapshot.ID)
	}
}

func TestDiffNewProductEmptySizes(t *testing.T) {
	t.Parallel()

	// An out-of-stock new listing still gets a New event.
	events := Diff(snap("A1"), nil, false)
	if len(events) != 1 || events[0].Kind != KindNew {
		t.Fatalf("expected one New event, got %+v", events)
	}
}

func TestDiffVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		prev  []string
		curr  []string
		kinds []EventKind
		sizes [][]string
	}{
		{
			name: "no change",
			prev: []string{"M", "L"},
			curr: []string{"M", "L"},
		},
		{
			name: "no change different order",
			prev: []string{"L", "M"},
			curr: []string{"M", "L"},
		},
		{
			name:  "restock only",
			prev:  []string{"M"},
			curr:  []string{"M", "L", "XL"},
			kinds: []EventKind{KindRestock},
			sizes: [][]string{{"L", "XL"}},
		},
		{
			name:  "sold out only",
			prev:  []string{"M", "L"},
			curr:  []string{"M"},
			kinds: []EventKind{KindSoldOut},
			sizes: [][]string{{"L"}},
		},
		{
			name:  "full sell out",
			prev:  []string{"M", "L"},
			curr:  nil,
			kinds: []EventKind{KindSoldOut},
			sizes: [][]string{{"L", "M"}},
		},
		{
			name:  "churn orders sold out before restock",
			prev:  []string{"S", "M"},
			curr:  []string{"M", "XL"},
			kinds: []EventKind{KindSoldOut, KindRestock},
			sizes: [][]string{{"S"}, {"XL"}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			events := Diff(snap("A1", tt.curr...), tt.prev, true)
			if len(events) != len(tt.kinds) {
				t.Fatalf("got %d events, want %d: %+v", len(events), len(tt.kinds), events)
			}
			for i, ev := range events {
				if ev.Kind != tt.kinds[i] {
					t.Fatalf("event[%d].Kind = %s, want %s", i, ev.Kind, tt.kinds[i])
				}
				if !reflect.DeepEqual(ev.Sizes, tt.sizes[i]) {
					t.Fatalf("event[%d].Sizes = %v, want %v", i, ev.Sizes, tt.sizes[i])
				}
			}
		})
	}
}

func TestDiffIsPure(t *testing.T) {
	t.Parallel()

	prev := []string{"M", "L"}
	_ = Diff(snap("A1", "M"), prev, true)
	if !reflect.DeepEqual(prev, []string{"M", "L"}) {
		t.Fatalf("Diff mutated prev: %v", prev)
	}
}

func TestSubtractDeduplicates(t *testing.T) {
	t.Parallel()

	got := subtract([]string{"M", "M", "L"}, []string{"L"})
	if !reflect.DeepEqual(got, []string{"M"}) {
		t.Fatalf("subtract = %v, want [M]", got)
	}
}
