package embed

import (
	"context"
	"testing"
)

type fakeEmbedder struct {
	calls [][]string
	dim   int
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 0, 0}
	}
	return out, nil
}
func (f *fakeEmbedder) Dimensions() int   { return f.dim }
func (f *fakeEmbedder) ModelName() string { return "fake" }
func (f *fakeEmbedder) Close() error      { return nil }

func TestCachedEmbedder_CacheHitSkipsInner(t *testing.T) {
	inner := &fakeEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	if _, err := c.EmbedBatch(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := c.EmbedBatch(context.Background(), []string{"hello"}); err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if len(inner.calls) != 1 {
		t.Errorf("expected inner embedder called once, got %d calls", len(inner.calls))
	}
}

func TestCachedEmbedder_MixedHitsAndMisses(t *testing.T) {
	inner := &fakeEmbedder{}
	c := NewCachedEmbedder(inner, 10)

	if _, err := c.EmbedBatch(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("priming call failed: %v", err)
	}

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("mixed call failed: %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vecs))
	}
	if len(inner.calls) != 2 {
		t.Errorf("expected inner called twice total, got %d", len(inner.calls))
	}
	if len(inner.calls[1]) != 1 || inner.calls[1][0] != "b" {
		t.Errorf("expected second call to embed only the miss, got %v", inner.calls[1])
	}
}

func TestCachedEmbedder_EmptyInput(t *testing.T) {
	c := NewCachedEmbedder(&fakeEmbedder{}, 10)
	vecs, err := c.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 0 {
		t.Errorf("expected no vectors, got %d", len(vecs))
	}
}
