package persist

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kioku-dev/kioku/internal/bm25"
	"github.com/kioku-dev/kioku/internal/doc"
	"github.com/kioku-dev/kioku/internal/docstore"
	"github.com/kioku-dev/kioku/internal/vector"
)

func buildSnapshot(t *testing.T) Snapshot {
	t.Helper()
	b := bm25.New()
	v := vector.New()
	d := docstore.New()

	d1 := doc.New("Doc One", time.Now(), []string{"a"}, "hello world")
	d2 := doc.New("Doc Two", time.Now(), []string{"b"}, "goodbye world")
	for _, dd := range []doc.Document{d1, d2} {
		d.Insert(dd)
		b.Insert(dd.ID, dd.EmbeddingText())
	}
	if err := v.Add(d1.ID, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := v.Add(d2.ID, []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	dim := 2
	return Snapshot{
		BM25:    b,
		Vectors: v,
		Docs:    d,
		Metadata: Metadata{
			SchemaVersion: CurrentSchemaVersion,
			BuiltAt:       time.Now().UTC(),
			EmbeddingDim:  &dim,
			DocHashes:     map[string]string{d1.ID: d1.ID, d2.ID: d2.ID},
		},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	snap := buildSnapshot(t)

	if err := Save(dir, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("expected Exists to report true after Save")
	}

	b, v, d, meta, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if b.N() != 2 {
		t.Errorf("expected 2 bm25 docs, got %d", b.N())
	}
	if d.N() != 2 {
		t.Errorf("expected 2 docstore docs, got %d", d.N())
	}
	if v.N() != 2 {
		t.Errorf("expected 2 vectors, got %d", v.N())
	}
	if meta.SchemaVersion != CurrentSchemaVersion {
		t.Errorf("expected schema version %s, got %s", CurrentSchemaVersion, meta.SchemaVersion)
	}

	results := b.Query("hello", 5, nil)
	if len(results) != 1 {
		t.Fatalf("expected bm25 query to survive round trip, got %d results", len(results))
	}
}

func TestLoad_MissingArtifact(t *testing.T) {
	dir := t.TempDir()
	_, _, _, _, err := Load(dir)
	if err == nil {
		t.Fatal("expected error loading from empty directory")
	}
}

func TestLoad_CorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	snap := buildSnapshot(t)
	if err := Save(dir, snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := writeJSON(filepath.Join(dir, metadataFile), "not-an-object"); err != nil {
		t.Fatal(err)
	}

	_, _, _, _, err := Load(dir)
	if err == nil {
		t.Fatal("expected schema mismatch error for corrupt metadata")
	}
}

func TestExists_FalseForEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if Exists(dir) {
		t.Error("expected Exists to be false for an empty directory")
	}
}
