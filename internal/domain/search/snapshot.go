// Package search scores and orders catalog entries against a user query.
package search

import (
	"strings"
	"time"

	"github.com/profboard/profboard/internal/domain/textnorm"
	"github.com/profboard/profboard/internal/domain/types"
)

// CatalogEntry is one searchable title, as read from storage.
type CatalogEntry struct {
	ID    int64
	Title string
	Kind  types.Kind
}

// entry is a catalog entry with matching keys precomputed at snapshot build.
type entry struct {
	CatalogEntry
	norm      string // normalized title
	firstWord string // first word of the title, lower-cased, for tie-breaks
}

// Snapshot is an immutable view of the searchable catalog. A snapshot is
// built once from storage rows and never mutated; refresh builds a new one
// and the owner swaps a single reference.
type Snapshot struct {
	entries []entry
	builtAt time.Time
}

// NewSnapshot precomputes matching keys for the given catalog rows.
func NewSnapshot(rows []CatalogEntry) *Snapshot {
	s := &Snapshot{
		entries: make([]entry, 0, len(rows)),
		builtAt: time.Now(),
	}
	for _, r := range rows {
		e := entry{CatalogEntry: r, norm: textnorm.Normalize(r.Title)}
		if fields := strings.Fields(strings.ToLower(r.Title)); len(fields) > 0 {
			e.firstWord = fields[0]
		}
		s.entries = append(s.entries, e)
	}
	return s
}

// Len returns the number of entries in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// BuiltAt returns the snapshot build time.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}
