// Package build implements the incremental build pipeline of §4.9:
// content-hash diffing against persisted metadata, selective
// re-embedding of only the added/modified set, and the schema-versioned
// metadata block. Writing the artifacts to disk is left to the caller
// (persist.Save).
package build

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kioku-dev/kioku/internal/bm25"
	"github.com/kioku-dev/kioku/internal/doc"
	"github.com/kioku-dev/kioku/internal/docstore"
	"github.com/kioku-dev/kioku/internal/embed"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
	"github.com/kioku-dev/kioku/internal/persist"
	"github.com/kioku-dev/kioku/internal/vector"
)

// MinSchemaVersion is the oldest metadata schema_version an incremental
// build will trust; anything older forces a full rebuild (§4.9, §8
// scenario 7).
const MinSchemaVersion = "2.0"

// Diff classifies a document set against persisted doc_hashes.
// Modified is always empty under the id==hash invariant (§4.9); it is
// kept as a distinct field because the source schema keeps it as one.
type Diff struct {
	Added     []doc.Document
	Modified  []doc.Document
	Removed   []string
	Unchanged []doc.Document
}

// ComputeDiff classifies docs against the existing id->content_hash map.
func ComputeDiff(docs []doc.Document, existingHashes map[string]string) Diff {
	var d Diff
	seen := make(map[string]struct{}, len(docs))

	for _, document := range docs {
		seen[document.ID] = struct{}{}
		if _, ok := existingHashes[document.ID]; ok {
			d.Unchanged = append(d.Unchanged, document)
		} else {
			d.Added = append(d.Added, document)
		}
	}
	for id := range existingHashes {
		if _, ok := seen[id]; !ok {
			d.Removed = append(d.Removed, id)
		}
	}
	return d
}

// Result is the summary record published after a build (§4.9).
type Result struct {
	Added               int
	Modified            int
	Removed             int
	Unchanged           int
	EmbeddingsGenerated int
	VectorMissing       []string // docs left without a semantic vector after retry exhaustion
}

// Config tunes the embedding stage's concurrency and batching.
type Config struct {
	Fanout    int
	BatchSize int
	// OnProgress, if set, is called after each embedding batch completes
	// with the running (completed, total) document counts.
	OnProgress func(completed, total int)
}

// DefaultConfig returns the spec's default fanout (4) and batch size (32).
func DefaultConfig() Config {
	return Config{Fanout: embed.DefaultFanout, BatchSize: embed.DefaultBatchSize}
}

// Builder owns the single-writer mutation path over a BM25/vector/
// docstore triad, applying diffs; it does not persist the result.
type Builder struct {
	bm25     *bm25.Index
	vectors  *vector.Index
	docs     *docstore.Store
	embedder embed.Embedder // nil disables the semantic leg entirely
	cfg      Config
}

// New constructs a Builder over an existing (possibly empty) triad.
// embedder may be nil, in which case every document is left
// vector-missing (BM25-only mode).
func New(b *bm25.Index, v *vector.Index, d *docstore.Store, embedder embed.Embedder, cfg Config) *Builder {
	if cfg.Fanout <= 0 {
		cfg.Fanout = embed.DefaultFanout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = embed.DefaultBatchSize
	}
	return &Builder{bm25: b, vectors: v, docs: d, embedder: embedder, cfg: cfg}
}

// Apply mutates the triad per the diff's four-step order (§4.9: remove,
// then insert, then embed, then vector-add) and returns the summary
// record. It does not persist; call persist.Save with the result.
func (b *Builder) Apply(ctx context.Context, diff Diff) (Result, error) {
	result := Result{
		Modified:  len(diff.Modified),
		Removed:   len(diff.Removed),
		Unchanged: len(diff.Unchanged),
	}

	for _, id := range diff.Removed {
		b.docs.Remove(id)
		b.bm25.Remove(id)
		b.vectors.Remove(id)
	}

	toEmbed := make([]doc.Document, 0, len(diff.Added)+len(diff.Modified))
	toEmbed = append(toEmbed, diff.Added...)
	toEmbed = append(toEmbed, diff.Modified...)

	for _, document := range toEmbed {
		b.docs.Insert(document)
		b.bm25.Insert(document.ID, document.EmbeddingText())
	}
	result.Added = len(diff.Added)

	if len(toEmbed) == 0 || b.embedder == nil {
		if b.embedder == nil {
			for _, document := range toEmbed {
				result.VectorMissing = append(result.VectorMissing, document.ID)
			}
		}
		return result, nil
	}

	generated, missing, err := b.embedAndStore(ctx, toEmbed)
	if err != nil {
		return result, err
	}
	result.EmbeddingsGenerated = generated
	result.VectorMissing = missing
	return result, nil
}

// embedAndStore batches toEmbed into cfg.BatchSize chunks, issues up to
// cfg.Fanout concurrent requests, and halves a batch's size down to a
// floor of 1 on failure before giving up on that document (§4.9 step 3).
func (b *Builder) embedAndStore(ctx context.Context, docs []doc.Document) (generated int, missing []string, err error) {
	batches := chunk(docs, b.cfg.BatchSize)
	sem := semaphore.NewWeighted(int64(b.cfg.Fanout))

	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error
	completed := 0
	total := len(docs)

	for _, batch := range batches {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = kerrors.Cancelled()
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(batch []doc.Document) {
			defer sem.Release(1)
			defer wg.Done()

			ok, failed := b.embedBatchWithHalving(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			generated += len(ok)
			for _, id := range failed {
				missing = append(missing, id)
			}
			for id, vec := range ok {
				if err := b.vectors.Add(id, vec); err != nil {
					slog.Warn("build: vector dimension mismatch, leaving document vector-missing",
						slog.String("doc_id", id), slog.Any("error", err))
					missing = append(missing, id)
				}
			}
			completed += len(batch)
			if b.cfg.OnProgress != nil {
				b.cfg.OnProgress(completed, total)
			}
		}(batch)
	}
	wg.Wait()

	return generated, missing, firstErr
}

// embedBatchWithHalving tries to embed batch as one request; on failure
// it halves the batch and retries each half independently down to a
// floor of 1, per §4.9 step 3. Returns the successfully embedded
// (doc_id -> vector) map and the ids that failed even at size 1.
func (b *Builder) embedBatchWithHalving(ctx context.Context, batch []doc.Document) (map[string][]float32, []string) {
	if len(batch) == 0 {
		return nil, nil
	}

	texts := make([]string, len(batch))
	for i, d := range batch {
		texts[i] = d.EmbeddingText()
	}

	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) == len(batch) {
		out := make(map[string][]float32, len(batch))
		for i, d := range batch {
			out[d.ID] = vecs[i]
		}
		return out, nil
	}

	if len(batch) == 1 {
		slog.Warn("build: embedding failed at batch size 1, leaving document vector-missing",
			slog.String("doc_id", batch[0].ID), slog.Any("error", err))
		return nil, []string{batch[0].ID}
	}

	mid := len(batch) / 2
	okA, failA := b.embedBatchWithHalving(ctx, batch[:mid])
	okB, failB := b.embedBatchWithHalving(ctx, batch[mid:])

	merged := make(map[string][]float32, len(okA)+len(okB))
	for k, v := range okA {
		merged[k] = v
	}
	for k, v := range okB {
		merged[k] = v
	}
	return merged, append(failA, failB...)
}

func chunk(docs []doc.Document, size int) [][]doc.Document {
	if size <= 0 {
		size = embed.DefaultBatchSize
	}
	var out [][]doc.Document
	for i := 0; i < len(docs); i += size {
		end := i + size
		if end > len(docs) {
			end = len(docs)
		}
		out = append(out, docs[i:end])
	}
	return out
}

// NewMetadata builds the persisted metadata block from the current
// triad state, for use after Apply.
func NewMetadata(docs *docstore.Store, embeddingDim int) persist.Metadata {
	hashes := make(map[string]string)
	for _, d := range docs.All() {
		hashes[d.ID] = d.ID
	}
	var dimPtr *int
	if embeddingDim > 0 {
		dimPtr = &embeddingDim
	}
	return persist.Metadata{
		SchemaVersion: MinSchemaVersion,
		BuiltAt:       time.Now().UTC(),
		DocHashes:     hashes,
		EmbeddingDim:  dimPtr,
	}
}

// ForceRebuild reports whether metadata's schema_version is too old to
// trust for an incremental diff (§4.9, §8 scenario 7).
func ForceRebuild(schemaVersion string) bool {
	return schemaVersion == "" || schemaVersion < MinSchemaVersion
}

// String renders a build result the way the builder's caller logs it.
func (r Result) String() string {
	return fmt.Sprintf("added=%d modified=%d removed=%d unchanged=%d embeddings_generated=%d",
		r.Added, r.Modified, r.Removed, r.Unchanged, r.EmbeddingsGenerated)
}
