package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kioku-dev/kioku/internal/bm25"
	"github.com/kioku-dev/kioku/internal/build"
	"github.com/kioku-dev/kioku/internal/config"
	"github.com/kioku-dev/kioku/internal/docstore"
	"github.com/kioku-dev/kioku/internal/doc"
	"github.com/kioku-dev/kioku/internal/embed"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
	"github.com/kioku-dev/kioku/internal/loader"
	"github.com/kioku-dev/kioku/internal/logging"
	"github.com/kioku-dev/kioku/internal/output"
	"github.com/kioku-dev/kioku/internal/persist"
	"github.com/kioku-dev/kioku/internal/vector"
)

func newBuildCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run the incremental builder against the configured corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "force a full rebuild even if the index schema is current")
	return cmd
}

func runBuild(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dir := indexDir(cfg)

	lock := build.NewLock(dir)
	acquired, err := lock.TryLock()
	if err != nil {
		return kerrors.LockContention("failed to acquire build lock", err)
	}
	if !acquired {
		return kerrors.LockContention(fmt.Sprintf("another build is already in progress against %s", dir), nil)
	}
	defer func() { _ = lock.Unlock() }()

	docs, report, err := loadCorpus(cfg)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(report.Errors) > 0 {
		out.Warningf("skipped %d malformed record(s) while loading the corpus", len(report.Errors))
	}
	logging.BuildEvent(slog.Default(), "build_started", dir, len(docs))

	bmIdx, vecIdx, docs2, meta := bm25.New(), vector.New(), docstore.New(), persist.Metadata{}
	existingHashes := map[string]string{}

	if persist.Exists(dir) && !force {
		loadedBM, loadedVec, loadedDocs, loadedMeta, err := persist.Load(dir)
		if err != nil && kerrors.Code(err) != kerrors.CodeSchemaMismatch {
			return fmt.Errorf("failed to load existing index: %w", err)
		}
		if err == nil {
			bmIdx, vecIdx, docs2, meta = loadedBM, loadedVec, loadedDocs, loadedMeta
		}
		if err != nil || build.ForceRebuild(meta.SchemaVersion) {
			out.Warning("existing index schema is stale, forcing a full rebuild")
			bmIdx, vecIdx, docs2 = bm25.New(), vector.New(), docstore.New()
		} else {
			existingHashes = meta.DocHashes
		}
	} else if persist.Exists(dir) && force {
		out.Warning("forcing full rebuild; existing index will be replaced")
	}

	diff := build.ComputeDiff(docs, existingHashes)

	embedder := newEmbedder(cfg)
	if embedder != nil {
		defer func() { _ = embedder.Close() }()
	}

	builder := build.New(bmIdx, vecIdx, docs2, embedder, build.Config{
		Fanout:    cfg.Build.Fanout,
		BatchSize: cfg.Build.BatchSize,
		OnProgress: func(completed, total int) {
			out.Progress(completed, total, "embedding")
		},
	})

	result, err := builder.Apply(cmd.Context(), diff)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	dim := 0
	if embedder != nil {
		dim = embedder.Dimensions()
	}
	newMeta := build.NewMetadata(docs2, dim)
	snap := persist.Snapshot{BM25: bmIdx, Vectors: vecIdx, Docs: docs2, Metadata: newMeta}
	if err := persist.Save(dir, snap); err != nil {
		return fmt.Errorf("failed to persist index: %w", err)
	}

	slog.Info("build_completed", slog.String("dir", dir), slog.String("result", result.String()))
	out.Success(result.String())
	if len(result.VectorMissing) > 0 {
		out.Warningf("%d document(s) left without a semantic vector", len(result.VectorMissing))
	}
	return nil
}

// loadCorpus loads documents from every configured source, concatenating
// their loader.Report counters.
func loadCorpus(cfg *config.Config) ([]doc.Document, loader.Report, error) {
	var all []doc.Document
	var report loader.Report

	if cfg.Paths.Changelog != "" {
		data, err := os.ReadFile(cfg.Paths.Changelog)
		if err != nil {
			return nil, report, fmt.Errorf("failed to read changelog %s: %w", cfg.Paths.Changelog, err)
		}
		docs, r := loader.LoadChangelog(string(data))
		all = append(all, docs...)
		report.Loaded += r.Loaded
		report.Errors = append(report.Errors, r.Errors...)
	}

	if cfg.Paths.JSONL != "" {
		f, err := os.Open(cfg.Paths.JSONL)
		if err != nil {
			return nil, report, fmt.Errorf("failed to open JSONL corpus %s: %w", cfg.Paths.JSONL, err)
		}
		defer f.Close()
		docs, r := loader.LoadJSONL(f)
		all = append(all, docs...)
		report.Loaded += r.Loaded
		report.Errors = append(report.Errors, r.Errors...)
	}

	return all, report, nil
}

// newEmbedder constructs the configured HTTP embedder wrapped with an
// LRU cache, or nil if no endpoint is configured (BM25-only mode).
func newEmbedder(cfg *config.Config) embed.Embedder {
	if cfg.Embeddings.Endpoint == "" {
		return nil
	}
	base := embed.NewHTTPEmbedder(embed.HTTPEmbedderConfig{
		Endpoint:  cfg.Embeddings.Endpoint,
		Model:     cfg.Embeddings.Model,
		Token:     apiKeyFromEnv(cfg.Embeddings.APIKeyEnv),
		Timeout:   cfg.Embeddings.Timeout,
		BatchSize: cfg.Embeddings.BatchSize,
	})
	return embed.NewCachedEmbedder(base, cfg.Embeddings.CacheSize)
}
