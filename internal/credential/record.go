// Package credential stores validated access tokens in the shared
// cache. Tokens arrive from independent triggers (a --token flag on
// start, an explicit token add), so the central operation is a merge
// that can absorb either side without losing the other.
package credential

import (
	"sort"
)

// Record is one validated token. IssuedAt is the epoch second the
// token was recorded locally, not the upstream issue time.
type Record struct {
	Token    string `json:"token"`
	Identity string `json:"identity"`
	IssuedAt int64  `json:"date"`
}

// key is the dedup identity of a record. Records for the same account
// collapse to one; records with no identity fall back to the token
// itself.
func (r Record) key() string {
	if r.Identity != "" {
		return r.Identity
	}
	return r.Token
}

// Merge combines two record lists into one, newest first, with one
// record per identity. When the same identity appears in both lists
// the more recent record wins; on an exact timestamp tie the incoming
// record wins. Inputs are not modified and Merge is idempotent:
// merging a list with itself returns the deduplicated list.
func Merge(existing, incoming []Record) []Record {
	combined := make([]Record, 0, len(existing)+len(incoming))
	// Incoming before existing so that a stable sort leaves incoming
	// records first among equal timestamps.
	combined = append(combined, incoming...)
	combined = append(combined, existing...)

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].IssuedAt > combined[j].IssuedAt
	})

	seen := make(map[string]bool, len(combined))
	merged := combined[:0]
	for _, r := range combined {
		k := r.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		merged = append(merged, r)
	}
	return merged
}
