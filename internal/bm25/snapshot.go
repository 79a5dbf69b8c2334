package bm25

// Snapshot is the serializable form of an Index, matching the
// bm25_index.json layout: postings, doc_lengths, avgdl, and N.
type Snapshot struct {
	Postings   map[string][]PostingSnapshot `json:"postings"`
	DocLengths map[string]int               `json:"doc_lengths"`
	Avgdl      float64                      `json:"avgdl"`
	N          int                          `json:"n"`
}

// PostingSnapshot is the serializable form of a posting entry.
type PostingSnapshot struct {
	DocID string `json:"doc_id"`
	TF    int    `json:"tf"`
}

// Snapshot captures the index's current state for persistence.
func (idx *Index) Snapshot() Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	postings := make(map[string][]PostingSnapshot, len(idx.postings))
	for token, list := range idx.postings {
		out := make([]PostingSnapshot, len(list))
		for i, p := range list {
			out[i] = PostingSnapshot{DocID: p.docID, TF: p.tf}
		}
		postings[token] = out
	}

	docLengths := make(map[string]int, len(idx.docLengths))
	for id, length := range idx.docLengths {
		docLengths[id] = length
	}

	avgdl := 0.0
	if idx.n > 0 {
		avgdl = float64(idx.totalLen) / float64(idx.n)
	}

	return Snapshot{
		Postings:   postings,
		DocLengths: docLengths,
		Avgdl:      avgdl,
		N:          idx.n,
	}
}

// FromSnapshot rebuilds an Index from a previously captured Snapshot,
// used when loading persisted artifacts without replaying every Insert.
func FromSnapshot(s Snapshot) *Index {
	idx := New()
	idx.docLengths = make(map[string]int, len(s.DocLengths))
	for id, length := range s.DocLengths {
		idx.docLengths[id] = length
		idx.totalLen += length
	}
	idx.n = s.N
	idx.postings = make(map[string][]posting, len(s.Postings))
	for token, list := range s.Postings {
		out := make([]posting, len(list))
		for i, p := range list {
			out[i] = posting{docID: p.DocID, tf: p.TF}
		}
		idx.postings[token] = out
	}
	return idx
}
