// Package vector implements an exact, brute-force dense-vector index with
// cosine-similarity top-k search. No approximate index from the
// reference dependency corpus is wired in here: the testable properties
// this module must satisfy require bit-reproducible top-k results and
// exact tie-breaking, which a black-box ANN structure cannot guarantee.
package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Index stores fixed-dimension dense vectors keyed by document id.
type Index struct {
	mu      sync.RWMutex
	dim     int
	vectors map[string][]float32
}

// New returns an empty index. dim is 0 until the first successful Add,
// after which it is fixed for the index's lifetime.
func New() *Index {
	return &Index{vectors: make(map[string][]float32)}
}

// Dim reports the index's fixed dimension, or 0 if no vector has been
// added yet.
func (idx *Index) Dim() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Add inserts or replaces docID's vector. The first call fixes the
// index's dimension; subsequent calls with a mismatched length are
// rejected.
func (idx *Index) Add(docID string, v []float32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dim == 0 {
		idx.dim = len(v)
	} else if len(v) != idx.dim {
		return fmt.Errorf("vector: dimension mismatch: index dim %d, got %d", idx.dim, len(v))
	}
	idx.vectors[docID] = v
	return nil
}

// Get returns docID's stored vector, if present.
func (idx *Index) Get(docID string) ([]float32, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.vectors[docID]
	return v, ok
}

// Remove deletes docID's vector. Idempotent.
func (idx *Index) Remove(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, docID)
}

// Scored is one (doc_id, similarity) result from a query.
type Scored struct {
	DocID      string
	Similarity float64
}

// Query returns the k ids with highest cosine similarity to qv, ties
// broken by doc_id ascending. Complexity is linear in the number of
// stored vectors.
func (idx *Index) Query(qv []float32, k int) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	qNorm := norm(qv)
	results := make([]Scored, 0, len(idx.vectors))
	for docID, v := range idx.vectors {
		sim := cosine(qv, v, qNorm)
		results = append(results, Scored{DocID: docID, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].DocID < results[j].DocID
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

// N reports the number of stored vectors.
func (idx *Index) N() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// DocIDs returns every document id currently present, in no particular
// order.
func (idx *Index) DocIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]string, 0, len(idx.vectors))
	for id := range idx.vectors {
		ids = append(ids, id)
	}
	return ids
}

func norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	return math.Sqrt(sumSquares)
}

func cosine(a, b []float32, aNorm float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	bNorm := norm(b)
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	return dot / (aNorm * bNorm)
}
