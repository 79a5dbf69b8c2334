package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_HybridOrderScenario(t *testing.T) {
	bm25 := []Candidate{{DocID: "A", Score: 9}, {DocID: "B", Score: 8}, {DocID: "C", Score: 7}}
	semantic := []Candidate{{DocID: "C", Score: 0.9}, {DocID: "A", Score: 0.8}, {DocID: "D", Score: 0.7}}

	fused := Fuse(bm25, semantic)
	require.Len(t, fused, 4)

	order := []string{fused[0].DocID, fused[1].DocID, fused[2].DocID, fused[3].DocID}
	assert.Equal(t, []string{"A", "C", "B", "D"}, order)

	assert.InDelta(t, 1.0/61+1.0/62, fused[0].Score, 1e-9) // A: rank1 bm25, rank2 semantic
	assert.InDelta(t, 1.0/63+1.0/61, fused[1].Score, 1e-9) // C: rank3 bm25, rank1 semantic
}

func TestFuse_AbsentListContributesExactlyZero(t *testing.T) {
	bm25 := []Candidate{{DocID: "A", Score: 9}}
	semantic := []Candidate{{DocID: "B", Score: 0.9}}

	fused := Fuse(bm25, semantic)
	require.Len(t, fused, 2)

	for _, f := range fused {
		assert.InDelta(t, 1.0/61, f.Score, 1e-9)
	}
}

func TestFuse_CommutativeUpToTieBreak(t *testing.T) {
	a := []Candidate{{DocID: "X", Score: 1}, {DocID: "Y", Score: 0.5}}
	b := []Candidate{{DocID: "Y", Score: 1}, {DocID: "X", Score: 0.5}}

	ab := Fuse(a, b)
	ba := Fuse(b, a)

	require.Len(t, ab, 2)
	require.Len(t, ba, 2)
	for i := range ab {
		assert.Equal(t, ab[i].DocID, ba[i].DocID)
		assert.InDelta(t, ab[i].Score, ba[i].Score, 1e-12)
	}
}

func TestFuse_TieBrokenByDocIDAscending(t *testing.T) {
	a := []Candidate{{DocID: "zeta", Score: 1}, {DocID: "alpha", Score: 1}}

	fused := Fuse(a, nil)
	require.Len(t, fused, 2)
	assert.Equal(t, "alpha", fused[0].DocID)
	assert.Equal(t, "zeta", fused[1].DocID)
}

func TestFuse_EmptyInputsYieldEmptyOutput(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil))
}
