// Package persist serializes the BM25 index, vector index, docstore,
// and build metadata to four JSON files and swaps them in atomically,
// per §6's on-disk index layout. Each file is written to a sibling
// ".tmp" path and renamed into place so a crash mid-write never leaves
// a torn file at the canonical path.
package persist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kioku-dev/kioku/internal/bm25"
	"github.com/kioku-dev/kioku/internal/docstore"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
	"github.com/kioku-dev/kioku/internal/vector"
)

const (
	bm25File     = "bm25_index.json"
	vectorFile   = "faiss_index.json"
	docstoreFile = "docstore.json"
	metadataFile = "metadata.json"

	// CurrentSchemaVersion is the current metadata schema_version. Save
	// writes whatever Metadata it is given and Load does not check the
	// version; the builder decides whether a loaded version forces a
	// full rebuild.
	CurrentSchemaVersion = "2.0"
)

// bm25Snapshot is the on-disk shape of the BM25 index: raw postings
// plus the length bookkeeping needed to resume avgdl computation.
type bm25Snapshot struct {
	Postings   map[string][]postingSnapshot `json:"postings"`
	DocLengths map[string]int               `json:"doc_lengths"`
	TotalLen   int                          `json:"total_len"`
	N          int                          `json:"n"`
}

type postingSnapshot struct {
	DocID string `json:"doc_id"`
	TF    int    `json:"tf"`
}

type vectorSnapshot struct {
	Dim     int                  `json:"dim"`
	Vectors map[string][]float32 `json:"vectors"`
}

// Metadata is the persisted build metadata block (§3, §4.9).
type Metadata struct {
	SchemaVersion string            `json:"schema_version"`
	BuiltAt       time.Time         `json:"built_at"`
	EmbeddingDim  *int              `json:"embedding_dim"`
	DocHashes     map[string]string `json:"doc_hashes"`
}

// Snapshot bundles everything a Save/Load round-trip needs.
type Snapshot struct {
	BM25     *bm25.Index
	Vectors  *vector.Index
	Docs     *docstore.Store
	Metadata Metadata
}

// Save writes all four artifacts into dir, each via write-temp-then-rename.
func Save(dir string, snap Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kerrors.IOError("failed to create index directory", err)
	}

	if err := writeJSON(filepath.Join(dir, bm25File), snapshotBM25(snap.BM25)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, vectorFile), snapshotVector(snap.Vectors)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, docstoreFile), snapshotDocstore(snap.Docs)); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), snap.Metadata); err != nil {
		return err
	}

	slog.Info("persist: wrote index artifacts", slog.String("dir", dir), slog.Int("docs", snap.Docs.N()))
	return nil
}

// Load reads all four artifacts from dir and rebuilds the in-memory
// triad. A schema_version older than CurrentSchemaVersion is reported
// via the returned Metadata so the builder can decide to force a full
// rebuild rather than trusting a stale schema.
func Load(dir string) (*bm25.Index, *vector.Index, *docstore.Store, Metadata, error) {
	var meta Metadata
	if err := readJSON(filepath.Join(dir, metadataFile), &meta); err != nil {
		return nil, nil, nil, meta, err
	}

	var bsnap bm25Snapshot
	if err := readJSON(filepath.Join(dir, bm25File), &bsnap); err != nil {
		return nil, nil, nil, meta, err
	}
	var vsnap vectorSnapshot
	if err := readJSON(filepath.Join(dir, vectorFile), &vsnap); err != nil {
		return nil, nil, nil, meta, err
	}
	var docs docstore.Snapshot
	if err := readJSON(filepath.Join(dir, docstoreFile), &docs); err != nil {
		return nil, nil, nil, meta, err
	}

	b := rebuildBM25(bsnap)
	v := rebuildVector(vsnap)
	d := docstore.FromSnapshot(docs)

	return b, v, d, meta, nil
}

// Exists reports whether dir already contains a persisted index.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, metadataFile))
	return err == nil
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return kerrors.IOError(fmt.Sprintf("failed to marshal %s", filepath.Base(path)), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return kerrors.IOError(fmt.Sprintf("failed to write %s", filepath.Base(tmp)), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return kerrors.IOError(fmt.Sprintf("failed to rename %s into place", filepath.Base(path)), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return kerrors.IndexUnavailable(fmt.Sprintf("missing artifact %s", filepath.Base(path)), err)
		}
		return kerrors.IOError(fmt.Sprintf("failed to read %s", filepath.Base(path)), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return kerrors.SchemaMismatchError(fmt.Sprintf("corrupt artifact %s: %v", filepath.Base(path), err))
	}
	return nil
}

func snapshotBM25(idx *bm25.Index) bm25Snapshot {
	postings, docLengths, totalLen, n := idx.Snapshot()
	out := make(map[string][]postingSnapshot, len(postings))
	for token, list := range postings {
		converted := make([]postingSnapshot, len(list))
		for i, p := range list {
			converted[i] = postingSnapshot{DocID: p.DocID, TF: p.TF}
		}
		out[token] = converted
	}
	return bm25Snapshot{Postings: out, DocLengths: docLengths, TotalLen: totalLen, N: n}
}

func snapshotVector(idx *vector.Index) vectorSnapshot {
	vectors := make(map[string][]float32)
	for _, id := range idx.DocIDs() {
		if v, ok := idx.Get(id); ok {
			vectors[id] = v
		}
	}
	return vectorSnapshot{Dim: idx.Dim(), Vectors: vectors}
}

func snapshotDocstore(s *docstore.Store) docstore.Snapshot {
	return s.Snapshot()
}

func rebuildBM25(snap bm25Snapshot) *bm25.Index {
	postings := make(map[string][]bm25.Posting, len(snap.Postings))
	for token, list := range snap.Postings {
		converted := make([]bm25.Posting, len(list))
		for i, p := range list {
			converted[i] = bm25.Posting{DocID: p.DocID, TF: p.TF}
		}
		postings[token] = converted
	}
	return bm25.FromSnapshot(postings, snap.DocLengths, snap.TotalLen, snap.N)
}

func rebuildVector(snap vectorSnapshot) *vector.Index {
	idx := vector.New()
	for id, v := range snap.Vectors {
		_ = idx.Add(id, v)
	}
	return idx
}
