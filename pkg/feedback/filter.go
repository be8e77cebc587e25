package feedback

import (
	"strings"

	"github.com/valentinpelus/voiceboard/pkg/types"
)

// FilterAll matches every status or product.
const FilterAll = "all"

// Filter narrows a record list the way the listing and management tabs do.
type Filter struct {
	Query   string // case-insensitive substring of content or type
	Status  string // "", "all" or a Status value; unset records match "pending"
	Product string // "", "all" or a product label
}

// Match reports whether f accepts record.
func (f Filter) Match(record types.Feedback) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(record.Content), q) &&
			!strings.Contains(strings.ToLower(record.Type), q) {
			return false
		}
	}
	if f.Status != "" && f.Status != FilterAll && string(record.Status.OrPending()) != f.Status {
		return false
	}
	if f.Product != "" && f.Product != FilterAll && record.Product != f.Product {
		return false
	}
	return true
}

// Apply returns the records accepted by f, keeping their order.
func (f Filter) Apply(records []types.Feedback) []types.Feedback {
	out := make([]types.Feedback, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Select returns the records whose id is in ids, in store order.
func Select(records []types.Feedback, ids []string) []types.Feedback {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	out := make([]types.Feedback, 0, len(ids))
	for _, r := range records {
		if wanted[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// ExportSet picks what an export covers: the selection when one exists,
// otherwise everything the filter accepts.
func ExportSet(records []types.Feedback, selected []string, f Filter) []types.Feedback {
	if len(selected) > 0 {
		return Select(records, selected)
	}
	return f.Apply(records)
}
