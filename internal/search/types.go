// Package search orchestrates BM25, semantic, and hybrid queries over the
// BM25/vector/docstore triad, per §4.6. It borrows the indexes for the
// duration of a query and never owns mutation.
package search

import (
	"github.com/kioku-dev/kioku/internal/doc"
)

// Mode selects which leg(s) of the index a query consults. Internally a
// tagged variant; the string form ("bm25"/"semantic"/"hybrid") exists
// only at the CLI/config boundary (see ParseMode). Hybrid is the zero
// value, so an unset Options.Mode runs a hybrid query.
type Mode int

const (
	Hybrid Mode = iota
	BM25
	Semantic
)

// ParseMode converts the external string form to Mode. Unknown names
// degrade to Hybrid, the documented default, rather than erroring.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "bm25":
		return BM25, true
	case "semantic":
		return Semantic, true
	case "hybrid":
		return Hybrid, true
	default:
		return Hybrid, false
	}
}

func (m Mode) String() string {
	switch m {
	case BM25:
		return "bm25"
	case Semantic:
		return "semantic"
	case Hybrid:
		return "hybrid"
	default:
		return "hybrid"
	}
}

// TagFilter restricts results to documents carrying the given tag.
// Byte-exact per §3; empty means no filtering.
type TagFilter string

// RewriteHook receives the raw query string and returns a (possibly
// identical) rewritten string before tokenization and embedding. Its
// own caching is out of scope for the core per §4.6.
type RewriteHook func(query string) string

// Options configures a single Search call.
type Options struct {
	Mode       Mode
	TopK       int
	TagFilter  TagFilter
	RewriteHook RewriteHook
}

// DefaultTopK is used when Options.TopK is unset.
const DefaultTopK = 10

// Result is one hydrated hit: rank (1-based), fused/leg score, and the
// full Document body via Docstore lookup — never a direct pointer from
// an index entry to a document.
type Result struct {
	DocID    string
	Rank     int
	Score    float64
	Document doc.Document
}
