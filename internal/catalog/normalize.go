package catalog

import (
	"errors"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMissingID marks a record without a usable product id. Such records are
// skipped by the caller; one bad record must never abort a cycle.
var ErrMissingID = errors.New("catalog: record has no product id")

// Normalizer turns raw catalog entries into Snapshots.
type Normalizer struct {
	// BaseLinkURL is prepended to the record's relative product url.
	BaseLinkURL string

	// OptimisticStock treats a variant with no inStock flag as available.
	// Some API revisions omit the flag entirely for sellable sizes, so the
	// conservative reading would hide real stock.
	OptimisticStock bool
}

// Normalize extracts a Snapshot from one raw record.
//
// Field fallbacks (the upstream API is not stable across surfaces):
//   - price: offerPrice.value, then price.value, then 0
//   - variants: skuList, then variantOptions
//   - size label: size, then sizeName, then value
func (n Normalizer) Normalize(raw RawRecord) (Snapshot, error) {
	r := gjson.ParseBytes(raw)

	id := strings.TrimSpace(r.Get("code").String())
	if id == "" {
		return Snapshot{}, ErrMissingID
	}

	price := r.Get("offerPrice.value").Float()
	if !r.Get("offerPrice.value").Exists() {
		price = r.Get("price.value").Float()
	}
	if price < 0 {
		price = 0
	}

	snap := Snapshot{
		ID:       id,
		Name:     r.Get("name").String(),
		Price:    price,
		ImageURL: r.Get("images.0.url").String(),
		Link:     n.BaseLinkURL + r.Get("url").String(),
	}

	variants := r.Get("skuList")
	if !variants.Exists() || !variants.IsArray() {
		variants = r.Get("variantOptions")
	}

	seen := map[string]struct{}{}
	variants.ForEach(func(_, v gjson.Result) bool {
		label := firstString(v, "size", "sizeName", "value")
		if label == "" {
			return true
		}
		stock := v.Get("inStock")
		available := stock.Type == gjson.True
		// A JSON null counts as "flag absent", same as a missing key.
		if (!stock.Exists() || stock.Type == gjson.Null) && n.OptimisticStock {
			available = true
		}
		if available {
			seen[label] = struct{}{}
		}
		return true
	})

	snap.Sizes = make([]string, 0, len(seen))
	for s := range seen {
		snap.Sizes = append(snap.Sizes, s)
	}
	sort.Strings(snap.Sizes)
	return snap, nil
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			return s
		}
	}
	return ""
}
