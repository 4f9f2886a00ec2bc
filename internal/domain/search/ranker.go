package search

import (
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/profboard/profboard/internal/domain/textnorm"
	"github.com/profboard/profboard/internal/domain/types"
)

// Default ranking configuration constants.
const (
	defaultMaxResults = 20

	substringScore = 100

	// Substring hits are cheap to trust; pure fuzzy hits need a higher bar.
	defaultSubstringThreshold = 75
	defaultFuzzyThreshold     = 85

	priorityPrefix    = 1
	prioritySubstring = 2
	priorityFuzzy     = 3
)

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithMaxResults overrides the result cap.
func WithMaxResults(n int) Option {
	return func(r *Ranker) {
		if n > 0 {
			r.maxResults = n
		}
	}
}

// WithThresholds overrides the acceptance thresholds for substring and
// fuzzy-only matches.
func WithThresholds(substring, fuzzyOnly int) Option {
	return func(r *Ranker) {
		if substring > 0 {
			r.substringThreshold = substring
		}
		if fuzzyOnly > 0 {
			r.fuzzyThreshold = fuzzyOnly
		}
	}
}

// Ranker scores catalog entries against a normalized query and returns an
// ordered, capped result list. It is stateless apart from configuration and
// safe for concurrent use.
type Ranker struct {
	maxResults         int
	substringThreshold int
	fuzzyThreshold     int
}

// NewRanker creates a Ranker with default configuration.
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		maxResults:         defaultMaxResults,
		substringThreshold: defaultSubstringThreshold,
		fuzzyThreshold:     defaultFuzzyThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// candidate is a scored snapshot entry awaiting ordering.
type candidate struct {
	item      types.SearchItem
	priority  int
	score     int
	firstWord string
}

// Rank normalizes query and returns the matching snapshot entries, best
// first. kind narrows the candidate set to one catalog category; an empty
// kind searches both. An empty or punctuation-only query yields an empty
// list, never an error, as does a nil snapshot.
func (r *Ranker) Rank(query string, kind types.Kind, snap *Snapshot) []types.SearchItem {
	nq := textnorm.Normalize(query)
	if nq == "" || snap == nil {
		return nil
	}

	var matches []candidate
	for _, e := range snap.entries {
		if kind != "" && e.Kind != kind {
			continue
		}
		priority, score := r.scoreEntry(nq, e.norm)
		if priority == priorityFuzzy {
			if score < r.fuzzyThreshold {
				continue
			}
		} else if score < r.substringThreshold {
			continue
		}
		matches = append(matches, candidate{
			item:      types.SearchItem{ID: e.ID, Title: e.Title, Type: e.Kind},
			priority:  priority,
			score:     score,
			firstWord: e.firstWord,
		})
	}

	// Prefix hits first, then substring, then fuzzy; higher similarity wins
	// inside a tier and the title's first word breaks remaining ties. The
	// stable sort keeps snapshot order for full ties, so identical inputs
	// produce identical output.
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.score != b.score {
			return a.score > b.score
		}
		return a.firstWord < b.firstWord
	})

	if len(matches) > r.maxResults {
		matches = matches[:r.maxResults]
	}
	out := make([]types.SearchItem, len(matches))
	for i, m := range matches {
		out[i] = m.item
	}
	return out
}

// scoreEntry classifies a single normalized title against the normalized
// query. Substring containment is an exact hit; anything else falls back to
// the partial-ratio similarity metric, which tolerates length differences.
func (r *Ranker) scoreEntry(nq, nt string) (priority, score int) {
	if strings.Contains(nt, nq) {
		if strings.HasPrefix(nt, nq) {
			return priorityPrefix, substringScore
		}
		return prioritySubstring, substringScore
	}
	return priorityFuzzy, fuzzy.PartialRatio(nq, nt)
}
