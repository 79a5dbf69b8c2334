package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdd_DimensionMismatchRejected(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("a", []float32{1, 0, 0}))
	err := idx.Add("b", []float32{1, 0})
	assert.Error(t, err)
}

func TestQuery_SortedBySimilarityDescending(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("exact", []float32{1, 0}))
	require.NoError(t, idx.Add("orthogonal", []float32{0, 1}))
	require.NoError(t, idx.Add("opposite", []float32{-1, 0}))

	results := idx.Query([]float32{1, 0}, 3)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].DocID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
	assert.Equal(t, "orthogonal", results[1].DocID)
	assert.InDelta(t, 0.0, results[1].Similarity, 1e-9)
	assert.Equal(t, "opposite", results[2].DocID)
	assert.InDelta(t, -1.0, results[2].Similarity, 1e-9)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
	}
}

func TestQuery_TieBrokenByDocIDAscending(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("zeta", []float32{1, 1}))
	require.NoError(t, idx.Add("alpha", []float32{1, 1}))

	results := idx.Query([]float32{1, 1}, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].DocID)
	assert.Equal(t, "zeta", results[1].DocID)
}

func TestRemove_Idempotent(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("a", []float32{1}))
	idx.Remove("a")
	idx.Remove("a")
	assert.Equal(t, 0, idx.N())
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx := New()
	require.NoError(t, idx.Add("a", []float32{1, 2, 3}))

	restored := FromSnapshot(idx.Snapshot())
	assert.Equal(t, idx.Dim(), restored.Dim())
	assert.Equal(t, idx.N(), restored.N())
}
