package search

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kioku-dev/kioku/internal/bm25"
	"github.com/kioku-dev/kioku/internal/docstore"
	"github.com/kioku-dev/kioku/internal/embed"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
	"github.com/kioku-dev/kioku/internal/fusion"
	"github.com/kioku-dev/kioku/internal/vector"
)

// Searcher is the query-time entry point: it borrows the BM25 index, the
// vector index, and the docstore for the duration of a single Search
// call and never mutates them.
type Searcher struct {
	bm25     *bm25.Index
	vectors  *vector.Index
	docs     *docstore.Store
	embedder embed.Embedder // nil means the semantic capability is absent
}

// New constructs a Searcher over the given index triad. embedder may be
// nil; Search then fails semantic/hybrid queries with CapabilityMissing.
func New(b *bm25.Index, v *vector.Index, d *docstore.Store, embedder embed.Embedder) *Searcher {
	return &Searcher{bm25: b, vectors: v, docs: d, embedder: embedder}
}

// Search executes query under opts and returns hydrated, ranked results.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}

	rewritten := query
	if opts.RewriteHook != nil {
		rewritten = opts.RewriteHook(query)
	}

	select {
	case <-ctx.Done():
		return nil, kerrors.Cancelled()
	default:
	}

	switch opts.Mode {
	case BM25:
		return s.searchBM25(rewritten, opts)
	case Semantic:
		return s.searchSemantic(ctx, rewritten, opts)
	default:
		return s.searchHybrid(ctx, rewritten, opts)
	}
}

func (s *Searcher) searchBM25(query string, opts Options) ([]Result, error) {
	scored := s.bm25.Query(query, opts.TopK, s.tagFilter(opts.TagFilter))
	return s.hydrate(bm25Candidates(scored), opts.TopK), nil
}

// tagFilter adapts a search.TagFilter into a bm25.TagFilter closure backed
// by the docstore's tag index. Empty tag means no restriction.
func (s *Searcher) tagFilter(tag TagFilter) bm25.TagFilter {
	if tag == "" {
		return nil
	}
	t := string(tag)
	return func(docID string) bool { return s.docs.HasTag(docID, t) }
}

func (s *Searcher) searchSemantic(ctx context.Context, query string, opts Options) ([]Result, error) {
	if s.embedder == nil {
		return nil, kerrors.CapabilityMissing("semantic search requires an embedding hook")
	}
	qv, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	// Tag filtering must happen before the top-K cut (§4.6): when a tag
	// filter is set, pull the full ranked candidate list rather than
	// only the pre-filter top-K, so a matching document ranked just
	// below opts.TopK isn't silently dropped.
	scored := s.vectors.Query(qv, s.vectorPoolSize(opts))
	cands := s.filterByTag(vectorCandidates(scored), opts.TagFilter)
	return s.hydrate(cands, opts.TopK), nil
}

func (s *Searcher) searchHybrid(ctx context.Context, query string, opts Options) ([]Result, error) {
	if s.embedder == nil {
		return nil, kerrors.CapabilityMissing("hybrid search requires an embedding hook")
	}

	var bm25Hits []bm25.Scored
	var vecHits []vector.Scored

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		bm25Hits = s.bm25.Query(query, s.bm25PoolSize(opts), nil)
		return nil
	})
	g.Go(func() error {
		qv, err := s.embedQuery(gctx, query)
		if err != nil {
			return err
		}
		vecHits = s.vectors.Query(qv, s.vectorPoolSize(opts))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fusion.Fuse(bm25CandidatesToFusion(bm25Hits), vectorCandidatesToFusion(vecHits))
	cands := s.filterByTag(fusedCandidates(fused), opts.TagFilter)
	return s.hydrate(cands, opts.TopK), nil
}

// bm25PoolSize and vectorPoolSize widen a leg's candidate pool to the
// whole index when a tag filter is set, so filtering never starves the
// final top-K cut of matching documents ranked below it.
func (s *Searcher) bm25PoolSize(opts Options) int {
	if opts.TagFilter != "" {
		return s.bm25.N()
	}
	return opts.TopK
}

func (s *Searcher) vectorPoolSize(opts Options) int {
	if opts.TagFilter != "" {
		return s.vectors.N()
	}
	return opts.TopK
}

// filterByTag restricts candidates to documents carrying tag, looked up
// directly from the docstore's tag index without hydrating the full
// Document. Empty tag is a no-op.
func (s *Searcher) filterByTag(cands []candidate, tag TagFilter) []candidate {
	if tag == "" {
		return cands
	}
	t := string(tag)
	out := cands[:0:0]
	for _, c := range cands {
		if s.docs.HasTag(c.docID, t) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := s.embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, kerrors.New(kerrors.CodeEmbedParse, "embedder returned no vector for query", nil)
	}
	return vecs[0], nil
}

type candidate struct {
	docID string
	score float64
}

func bm25Candidates(scored []bm25.Scored) []candidate {
	out := make([]candidate, len(scored))
	for i, sc := range scored {
		out[i] = candidate{docID: sc.DocID, score: sc.Score}
	}
	return out
}

func vectorCandidates(scored []vector.Scored) []candidate {
	out := make([]candidate, len(scored))
	for i, sc := range scored {
		out[i] = candidate{docID: sc.DocID, score: sc.Similarity}
	}
	return out
}

func bm25CandidatesToFusion(scored []bm25.Scored) []fusion.Candidate {
	out := make([]fusion.Candidate, len(scored))
	for i, sc := range scored {
		out[i] = fusion.Candidate{DocID: sc.DocID, Score: sc.Score}
	}
	return out
}

func vectorCandidatesToFusion(scored []vector.Scored) []fusion.Candidate {
	out := make([]fusion.Candidate, len(scored))
	for i, sc := range scored {
		out[i] = fusion.Candidate{DocID: sc.DocID, Score: sc.Similarity}
	}
	return out
}

func (s *Searcher) hydrate(cands []candidate, topK int) []Result {
	if topK > 0 && len(cands) > topK {
		cands = cands[:topK]
	}
	results := make([]Result, 0, len(cands))
	for i, c := range cands {
		d, ok := s.docs.Get(c.docID)
		if !ok {
			continue
		}
		results = append(results, Result{DocID: c.docID, Rank: i + 1, Score: c.score, Document: d})
	}
	return results
}

func fusedCandidates(fused []fusion.Fused) []candidate {
	cands := make([]candidate, len(fused))
	for i, f := range fused {
		cands[i] = candidate{docID: f.DocID, score: f.Score}
	}
	return cands
}
