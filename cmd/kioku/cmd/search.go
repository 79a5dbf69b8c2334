package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/kioku-dev/kioku/internal/config"
	"github.com/kioku-dev/kioku/internal/extract"
	"github.com/kioku-dev/kioku/internal/logging"
	"github.com/kioku-dev/kioku/internal/output"
	"github.com/kioku-dev/kioku/internal/persist"
	"github.com/kioku-dev/kioku/internal/search"
	"github.com/kioku-dev/kioku/internal/summarize"
	"github.com/kioku-dev/kioku/internal/telemetry"
)

func newSearchCmd() *cobra.Command {
	var (
		mode      string
		topK      int
		tag       string
		asJSON    bool
		noPreview bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single query and print results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, args[0], mode, topK, tag, asJSON, noPreview)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "query mode: bm25, semantic, or hybrid (default from config)")
	cmd.Flags().IntVar(&topK, "top-k", 0, "number of results to return (default from config)")
	cmd.Flags().StringVar(&tag, "tag", "", "restrict results to documents carrying this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().BoolVar(&noPreview, "no-preview", false, "skip summarization of result previews")

	return cmd
}

type searchResultView struct {
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Date    string  `json:"date"`
	Tags    []string `json:"tags,omitempty"`
	Preview string  `json:"preview,omitempty"`
}

func runSearch(cmd *cobra.Command, query, modeFlag string, topKFlag int, tag string, asJSON, noPreview bool) error {
	out := output.New(cmd.OutOrStdout())

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dir := indexDir(cfg)

	if !persist.Exists(dir) {
		return fmt.Errorf("no index found at %s; run `kioku build` first", dir)
	}
	bmIdx, vecIdx, docs, _, err := persist.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	modeStr := cfg.Search.Mode
	if modeFlag != "" {
		modeStr = modeFlag
	}
	mode, ok := search.ParseMode(modeStr)
	if !ok {
		slog.Warn("search: unknown mode, using hybrid", slog.String("mode", modeStr))
	}

	topK := cfg.Search.TopK
	if topKFlag > 0 {
		topK = topKFlag
	}
	if topK <= 0 {
		topK = search.DefaultTopK
	}

	embedder := newEmbedder(cfg)
	if embedder != nil {
		defer func() { _ = embedder.Close() }()
	}

	searcher := search.New(bmIdx, vecIdx, docs, embedder)
	started := time.Now()
	results, err := searcher.Search(cmd.Context(), query, search.Options{
		Mode:      mode,
		TopK:      topK,
		TagFilter: search.TagFilter(tag),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	logging.QueryEvent(slog.Default(), modeStr, topK, len(results), time.Since(started))

	var summarizer *summarize.Summarizer
	if !noPreview {
		summarizer = newSummarizer(cfg)
		defer func() {
			if err := telemetry.SaveSnapshot(dir, summarizer.Metrics().Snapshot()); err != nil {
				slog.Warn("search: failed to flush summarizer telemetry", slog.Any("error", err))
			}
		}()
	}

	previewChars := cfg.Search.Preview.Chars
	if previewChars <= 0 {
		previewChars = extract.DefaultPreviewChars
	}

	views := make([]searchResultView, 0, len(results))
	for _, r := range results {
		view := searchResultView{
			Rank:  r.Rank,
			Score: r.Score,
			Title: r.Document.Title,
			Date:  r.Document.Date.Format("2006-01-02"),
			Tags:  r.Document.Tags,
		}
		if summarizer != nil {
			content := extract.Extract(r.Document.Text, extract.Head, "", extract.TruncationConfig{MaxChars: previewChars})
			view.Preview = summarizer.Summarize(cmd.Context(), content).Text
		}
		views = append(views, view)
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	if len(views) == 0 {
		out.Status("i", "no results")
		return nil
	}
	for _, v := range views {
		out.Result(v.Rank, v.Score, v.Title, v.Date)
		if v.Preview != "" {
			out.Code(v.Preview)
		}
	}
	return nil
}

// newSummarizer builds the configured summarizer for result previews.
// Rule-based by default; LLM mode requires cfg.Summarizer.Endpoint.
func newSummarizer(cfg *config.Config) *summarize.Summarizer {
	method := summarize.MethodRuleBased
	if cfg.Summarizer.Method == "llm" && cfg.Summarizer.Endpoint != "" {
		method = summarize.MethodLLM
	}
	return summarize.New(summarize.Config{
		Method:       method,
		PreviewChars: cfg.Summarizer.PreviewChars,
		Endpoint:     cfg.Summarizer.Endpoint,
		Model:        cfg.Summarizer.Model,
		Token:        apiKeyFromEnv(cfg.Summarizer.APIKeyEnv),
		MaxTokens:    cfg.Summarizer.MaxTokens,
		Temperature:  cfg.Summarizer.Temperature,
		Timeout:      cfg.Summarizer.Timeout,
		MaxRetries:   cfg.Summarizer.MaxRetries,
		CacheSize:    cfg.Summarizer.CacheSize,
		CacheTTL:     cfg.Summarizer.CacheTTL,
	})
}
