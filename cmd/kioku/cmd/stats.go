package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kioku-dev/kioku/internal/output"
	"github.com/kioku-dev/kioku/internal/persist"
	"github.com/kioku-dev/kioku/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print docstore tag counts and summarizer telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd)
		},
	}
}

func runStats(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dir := indexDir(cfg)

	if !persist.Exists(dir) {
		return fmt.Errorf("no index found at %s; run `kioku build` first", dir)
	}
	bmIdx, vecIdx, docs, meta, err := persist.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	out.Successf("documents: %d", docs.N())
	out.Successf("bm25 postings: %d docs indexed", bmIdx.N())
	out.Successf("vectors: %d", vecIdx.N())
	if meta.EmbeddingDim != nil {
		out.Successf("embedding dimension: %d", *meta.EmbeddingDim)
	}
	out.Successf("schema version: %s", meta.SchemaVersion)
	out.Successf("built at: %s", meta.BuiltAt.Format("2006-01-02T15:04:05Z07:00"))

	out.Newline()
	out.Status("i", "tags")
	for _, tc := range docs.ListTags() {
		out.Statusf("-", "%s: %d", tc.Tag, tc.Count)
	}

	out.Newline()
	snap, err := telemetry.LoadSnapshot(dir)
	if err != nil {
		return fmt.Errorf("failed to load summarizer telemetry: %w", err)
	}
	out.Status("i", "summarizer telemetry")
	out.Statusf("-", "calls: %d", snap.Calls)
	out.Statusf("-", "failures: %d", snap.Failures)
	out.Statusf("-", "total tokens: %d", snap.TotalTokens)
	out.Statusf("-", "latency min/avg/max: %s / %s / %s", snap.LatencyMin, snap.LatencyAvg, snap.LatencyMax)
	if len(snap.RecentFailures) > 0 {
		out.Status("i", "recent failures")
		for _, f := range snap.RecentFailures {
			out.Statusf("-", "%s at %s", f.Reason, f.Time.Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	return nil
}
