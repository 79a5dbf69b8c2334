package build

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kioku-dev/kioku/internal/bm25"
	"github.com/kioku-dev/kioku/internal/doc"
	"github.com/kioku-dev/kioku/internal/docstore"
	"github.com/kioku-dev/kioku/internal/vector"
)

type fakeEmbedder struct {
	dim      int
	failText string // EmbedBatch fails (returns error) if any input exactly equals this
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if t == f.failText {
			return nil, errors.New("injected failure")
		}
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, f.dim)
		v[0] = float32(i + 1)
		out[i] = v
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int   { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Close() error      { return nil }

func newTriad() (*bm25.Index, *vector.Index, *docstore.Store) {
	return bm25.New(), vector.New(), docstore.New()
}

func TestComputeDiff_AddedModifiedRemovedUnchanged(t *testing.T) {
	kept := doc.New("Kept", time.Now(), nil, "kept text")
	newDoc := doc.New("New", time.Now(), nil, "new text")

	existing := map[string]string{
		kept.ID:  kept.ID,
		"gone01": "gone01",
	}

	diff := ComputeDiff([]doc.Document{kept, newDoc}, existing)

	if len(diff.Added) != 1 || diff.Added[0].ID != newDoc.ID {
		t.Errorf("expected newDoc in Added, got %+v", diff.Added)
	}
	if len(diff.Unchanged) != 1 || diff.Unchanged[0].ID != kept.ID {
		t.Errorf("expected kept in Unchanged, got %+v", diff.Unchanged)
	}
	if len(diff.Removed) != 1 || diff.Removed[0] != "gone01" {
		t.Errorf("expected gone01 in Removed, got %+v", diff.Removed)
	}
	if len(diff.Modified) != 0 {
		t.Errorf("expected Modified always empty, got %+v", diff.Modified)
	}
}

func TestBuilder_Apply_AddsAndEmbeds(t *testing.T) {
	b, v, d := newTriad()
	builder := New(b, v, d, &fakeEmbedder{dim: 4}, Config{Fanout: 2, BatchSize: 2})

	docs := []doc.Document{
		doc.New("A", time.Now(), nil, "alpha"),
		doc.New("B", time.Now(), nil, "beta"),
		doc.New("C", time.Now(), nil, "gamma"),
	}
	diff := Diff{Added: docs}

	result, err := builder.Apply(context.Background(), diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Added != 3 {
		t.Errorf("expected added=3, got %d", result.Added)
	}
	if result.EmbeddingsGenerated != 3 {
		t.Errorf("expected 3 embeddings generated, got %d", result.EmbeddingsGenerated)
	}
	if v.N() != 3 {
		t.Errorf("expected 3 vectors stored, got %d", v.N())
	}
	if b.N() != 3 {
		t.Errorf("expected 3 bm25 docs, got %d", b.N())
	}
}

func TestBuilder_Apply_ReportsProgressPerBatch(t *testing.T) {
	b, v, d := newTriad()

	var mu sync.Mutex
	var calls [][2]int
	builder := New(b, v, d, &fakeEmbedder{dim: 4}, Config{
		Fanout:    2,
		BatchSize: 2,
		OnProgress: func(completed, total int) {
			mu.Lock()
			defer mu.Unlock()
			calls = append(calls, [2]int{completed, total})
		},
	})

	docs := []doc.Document{
		doc.New("A", time.Now(), nil, "alpha"),
		doc.New("B", time.Now(), nil, "beta"),
		doc.New("C", time.Now(), nil, "gamma"),
	}

	if _, err := builder.Apply(context.Background(), Diff{Added: docs}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) == 0 {
		t.Fatal("expected at least one progress callback")
	}
	last := calls[len(calls)-1]
	if last[0] != 3 || last[1] != 3 {
		t.Errorf("expected final callback (3, 3), got %v", last)
	}
}

func TestBuilder_Apply_RemovesBeforeInserting(t *testing.T) {
	b, v, d := newTriad()
	old := doc.New("Old", time.Now(), nil, "stale text")
	d.Insert(old)
	b.Insert(old.ID, old.EmbeddingText())
	if err := v.Add(old.ID, []float32{1, 2}); err != nil {
		t.Fatal(err)
	}

	builder := New(b, v, d, nil, Config{})
	diff := Diff{Removed: []string{old.ID}}

	result, err := builder.Apply(context.Background(), diff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("expected removed=1, got %d", result.Removed)
	}
	if b.N() != 0 || v.N() != 0 || d.N() != 0 {
		t.Error("expected old document fully removed from all three structures")
	}
}

func TestBuilder_Apply_NilEmbedderLeavesVectorMissing(t *testing.T) {
	b, v, d := newTriad()
	builder := New(b, v, d, nil, Config{})

	newDoc := doc.New("NoEmbed", time.Now(), nil, "text")
	result, err := builder.Apply(context.Background(), Diff{Added: []doc.Document{newDoc}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.VectorMissing) != 1 || result.VectorMissing[0] != newDoc.ID {
		t.Errorf("expected doc marked vector-missing, got %+v", result.VectorMissing)
	}
	if v.N() != 0 {
		t.Error("expected no vector stored")
	}
	if b.N() != 1 {
		t.Error("expected document still BM25-searchable")
	}
}

func TestBuilder_EmbedBatchWithHalving_IsolatesBadDocument(t *testing.T) {
	b, v, d := newTriad()
	bad := doc.New("Bad", time.Now(), nil, "poison")
	good1 := doc.New("Good1", time.Now(), nil, "fine text one")
	good2 := doc.New("Good2", time.Now(), nil, "fine text two")

	embedder := &fakeEmbedder{dim: 3, failText: bad.EmbeddingText()}
	builder := New(b, v, d, embedder, Config{Fanout: 1, BatchSize: 4})

	result, err := builder.Apply(context.Background(), Diff{Added: []doc.Document{good1, good2, bad}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.EmbeddingsGenerated != 2 {
		t.Errorf("expected 2 successful embeddings, got %d", result.EmbeddingsGenerated)
	}
	if len(result.VectorMissing) != 1 || result.VectorMissing[0] != bad.ID {
		t.Errorf("expected only bad doc vector-missing, got %+v", result.VectorMissing)
	}
	if b.N() != 3 {
		t.Error("expected all three documents BM25-searchable regardless of embed outcome")
	}
}

func TestForceRebuild_OldSchemaVersion(t *testing.T) {
	if !ForceRebuild("1.0") {
		t.Error("expected schema 1.0 to force a rebuild")
	}
	if !ForceRebuild("") {
		t.Error("expected empty schema to force a rebuild")
	}
	if ForceRebuild(MinSchemaVersion) {
		t.Error("expected current schema version to not force a rebuild")
	}
}

func TestNewMetadata_CapturesDocHashes(t *testing.T) {
	_, _, d := newTriad()
	doc1 := doc.New("X", time.Now(), nil, "x text")
	d.Insert(doc1)

	meta := NewMetadata(d, 384)
	if meta.DocHashes[doc1.ID] != doc1.ID {
		t.Errorf("expected doc hash entry for %s", doc1.ID)
	}
	if meta.EmbeddingDim == nil || *meta.EmbeddingDim != 384 {
		t.Errorf("expected embedding dim 384, got %+v", meta.EmbeddingDim)
	}
	if meta.SchemaVersion != MinSchemaVersion {
		t.Errorf("expected schema version %s, got %s", MinSchemaVersion, meta.SchemaVersion)
	}
}
