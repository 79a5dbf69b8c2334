// Package bm25 implements an inverted-index Okapi BM25 lexical index.
// Scoring is exact and deterministic so that query results are
// reproducible across runs and across platforms.
package bm25

import (
	"math"
	"sort"
	"sync"

	"github.com/kioku-dev/kioku/internal/tokenizer"
)

const (
	k1 = 1.5
	b  = 0.75
)

// posting is a single (doc_id, term frequency) pair within a token's
// postings list.
type posting struct {
	docID string
	tf    int
}

// Index is a concurrent-read, single-writer BM25 inverted index.
// Readers take the read lock and never block each other; mutations take
// the write lock and are expected to come only from the incremental
// builder's single-writer path.
type Index struct {
	mu         sync.RWMutex
	postings   map[string][]posting
	docLengths map[string]int
	totalLen   int
	n          int
}

// New returns an empty index.
func New() *Index {
	return &Index{
		postings:   make(map[string][]posting),
		docLengths: make(map[string]int),
	}
}

// Insert tokenizes text (the document's embedding text) and adds its
// postings and length to the index under docID. Calling Insert twice for
// the same docID without an intervening Remove corrupts avgdl and df
// bookkeeping; the incremental builder always issues Remove before
// Insert for a reused id.
func (idx *Index) Insert(docID string, text string) {
	tokens := tokenizer.Tokenize(text)

	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for token, tf := range counts {
		idx.postings[token] = append(idx.postings[token], posting{docID: docID, tf: tf})
	}
	idx.docLengths[docID] = len(tokens)
	idx.totalLen += len(tokens)
	idx.n++
}

// Remove deletes docID's postings and length entry. Idempotent: removing
// an id not present in the index is a no-op.
func (idx *Index) Remove(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	length, ok := idx.docLengths[docID]
	if !ok {
		return
	}
	delete(idx.docLengths, docID)
	idx.totalLen -= length
	idx.n--

	for token, list := range idx.postings {
		filtered := list[:0:0]
		for _, p := range list {
			if p.docID != docID {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(idx.postings, token)
		} else {
			idx.postings[token] = filtered
		}
	}
}

// Scored is one (doc_id, score) result from a query.
type Scored struct {
	DocID string
	Score float64
}

// TagFilter reports whether docID passes a tag filter; a nil TagFilter
// imposes no restriction. The caller (the searcher) supplies one backed
// by the docstore's tag index.
type TagFilter func(docID string) bool

// Query tokenizes text, scores every document that shares at least one
// token with it, and returns the top k by score descending, doc_id
// ascending on ties. A non-nil filter excludes documents before ranking.
func (idx *Index) Query(text string, k int, filter TagFilter) []Scored {
	tokens := tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.n == 0 {
		return nil
	}

	avgdl := float64(idx.totalLen) / float64(idx.n)

	seen := make(map[string]struct{}, len(tokens))
	scores := make(map[string]float64)

	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		list, ok := idx.postings[token]
		if !ok {
			continue
		}
		df := len(list)
		idf := math.Log((float64(idx.n)-float64(df)+0.5)/(float64(df)+0.5) + 1)

		for _, p := range list {
			if filter != nil && !filter(p.docID) {
				continue
			}
			dl := float64(idx.docLengths[p.docID])
			tf := float64(p.tf)
			tfPart := tf * (k1 + 1) / (tf + k1*(1-b+b*dl/avgdl))
			scores[p.docID] += idf * tfPart
		}
	}

	results := make([]Scored, 0, len(scores))
	for docID, score := range scores {
		results = append(results, Scored{DocID: docID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// Posting is an exported (doc_id, tf) pair for a single token, used by
// the persistence layer to serialize the postings map.
type Posting struct {
	DocID string
	TF    int
}

// Snapshot returns the index's full state for serialization: postings
// per token, per-document lengths, total token length, and document
// count. The returned maps are copies; mutating them does not affect
// the index.
func (idx *Index) Snapshot() (postings map[string][]Posting, docLengths map[string]int, totalLen, n int) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	postings = make(map[string][]Posting, len(idx.postings))
	for token, list := range idx.postings {
		copied := make([]Posting, len(list))
		for i, p := range list {
			copied[i] = Posting{DocID: p.docID, TF: p.tf}
		}
		postings[token] = copied
	}
	docLengths = make(map[string]int, len(idx.docLengths))
	for id, l := range idx.docLengths {
		docLengths[id] = l
	}
	return postings, docLengths, idx.totalLen, idx.n
}

// FromSnapshot rebuilds an Index from the state returned by Snapshot.
func FromSnapshot(postings map[string][]Posting, docLengths map[string]int, totalLen, n int) *Index {
	idx := New()
	for token, list := range postings {
		copied := make([]posting, len(list))
		for i, p := range list {
			copied[i] = posting{docID: p.DocID, tf: p.TF}
		}
		idx.postings[token] = copied
	}
	for id, l := range docLengths {
		idx.docLengths[id] = l
	}
	idx.totalLen = totalLen
	idx.n = n
	return idx
}

// N reports the current document count.
func (idx *Index) N() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.n
}

// DocIDs returns every document id currently present in the index, in no
// particular order. Used by diffing and invariant checks.
func (idx *Index) DocIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.docLengths))
	for id := range idx.docLengths {
		ids = append(ids, id)
	}
	return ids
}
