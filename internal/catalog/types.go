package catalog

import "encoding/json"

// RawRecord is one undecoded product entry as returned by the catalog API.
// The normalizer picks fields out of it without committing to a schema;
// upstream shapes drift between API revisions.
type RawRecord = json.RawMessage

// Snapshot is the normalized view of one product at one poll cycle.
//
// ID is the stable catalog key and never changes for a product entry.
// Everything else is replaceable each cycle. Sizes holds the distinct
// in-stock size labels, sorted for deterministic comparison and storage;
// an empty slice means out of stock (or a sizeless unavailable product).
type Snapshot struct {
	ID       string
	Name     string
	Price    float64
	ImageURL string
	Link     string
	Sizes    []string
}
