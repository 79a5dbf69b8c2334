// Package fusion merges ranked candidate lists via unweighted Reciprocal
// Rank Fusion. There is no per-list weighting, no substitute rank for a
// document absent from a list, and no post-hoc score normalization: a
// document missing from a list contributes exactly zero from it.
package fusion

import "sort"

// Candidate is one (doc_id, score) entry in an input ranked list. Fuse
// only uses the ordering of each list, not the score values themselves.
type Candidate struct {
	DocID string
	Score float64
}

// Fused is one (doc_id, rrf_score) entry in the output of Fuse.
type Fused struct {
	DocID string
	Score float64
}

// rrfConstant is the k in 1/(k+rank).
const rrfConstant = 60

// Fuse merges two ranked lists (each sorted by score descending) via
// Reciprocal Rank Fusion with constant k=60. Rank within a list starts
// at 1. The result is sorted by fused score descending, ties broken by
// doc_id ascending. Fuse is commutative in its two arguments up to that
// tie-break.
func Fuse(a, b []Candidate) []Fused {
	scores := make(map[string]float64)
	addRanks(scores, a)
	addRanks(scores, b)

	out := make([]Fused, 0, len(scores))
	for id, score := range scores {
		out = append(out, Fused{DocID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

func addRanks(scores map[string]float64, list []Candidate) {
	for i, c := range list {
		rank := i + 1
		scores[c.DocID] += 1.0 / float64(rrfConstant+rank)
	}
}
