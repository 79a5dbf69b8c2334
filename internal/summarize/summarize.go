// Package summarize implements the rule-based and LLM-backed
// summarizer variants described in §4.8. The LLM variant degrades to
// the rule-based path on any failure rather than surfacing an error.
package summarize

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kioku-dev/kioku/internal/embed"
	kerrors "github.com/kioku-dev/kioku/internal/errors"
	"github.com/kioku-dev/kioku/internal/extract"
	"github.com/kioku-dev/kioku/internal/telemetry"
)

// Method identifies which variant produced a Summary.
type Method string

const (
	MethodRuleBased Method = "rule-based"
	MethodLLM       Method = "llm"
)

// DefaultPreviewChars is the rule-based summary's default text budget.
const DefaultPreviewChars = 200

// Summary is the result of summarizing one hit's extracted content.
type Summary struct {
	Method Method
	Text   string
	Stats  extract.ContentStats
}

// FallbackReason explains why an LLM summarization attempt fell back
// to the rule-based path.
type FallbackReason string

const (
	FallbackNetwork      FallbackReason = "network"
	FallbackNonOK        FallbackReason = "non_ok_status"
	FallbackParse        FallbackReason = "parse"
	FallbackTimeout      FallbackReason = "timeout"
	FallbackRetryExhausted FallbackReason = "retry_exhausted"
)

// FallbackRecorder is a telemetry hook invoked whenever the LLM path
// degrades to rule-based. nil disables recording.
type FallbackRecorder func(reason FallbackReason, err error)

// ProviderRouting mirrors the optional "provider" object in a chat
// completion request body (§6).
type ProviderRouting struct {
	Order             []string `json:"order,omitempty"`
	AllowFallbacks    *bool    `json:"allow_fallbacks,omitempty"`
	Only              []string `json:"only,omitempty"`
	Ignore            []string `json:"ignore,omitempty"`
	Sort              string   `json:"sort,omitempty"`
	RequireParameters bool     `json:"require_parameters,omitempty"`
}

// Config configures a Summarizer.
type Config struct {
	Method       Method
	PreviewChars int

	Endpoint    string
	Model       string
	Token       string
	MaxTokens   int
	Temperature float64
	Provider    ProviderRouting

	Timeout    time.Duration
	MaxRetries int

	CacheSize int
	CacheTTL  time.Duration

	Recorder FallbackRecorder
	Metrics  *telemetry.SummarizerMetrics
}

const systemPrompt = "summarise the following text concisely"

// Summarizer produces Summary records for extracted content, routing
// between the rule-based and LLM variants per Config.Method.
type Summarizer struct {
	cfg    Config
	client *http.Client
	cache  *lru.LRU[string, Summary]
}

// New constructs a Summarizer. cfg.Method == MethodLLM requires a
// non-empty Endpoint; the caller (config.Validate) is expected to have
// already enforced that.
func New(cfg Config) *Summarizer {
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = DefaultPreviewChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NewSummarizerMetrics(20)
	}

	return &Summarizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		cache:  lru.NewLRU[string, Summary](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Metrics returns the summarizer's telemetry collector, for the CLI's
// stats surface.
func (s *Summarizer) Metrics() *telemetry.SummarizerMetrics {
	return s.cfg.Metrics
}

// Summarize produces a Summary for content, per cfg.Method. It never
// returns an error: the LLM variant degrades to rule-based on failure.
func (s *Summarizer) Summarize(ctx context.Context, content extract.Content) Summary {
	if s.cfg.Method != MethodLLM {
		return ruleBased(content, s.cfg.PreviewChars)
	}

	key := cacheKey(s.cfg.Model, content.Text)
	if cached, ok := s.cache.Get(key); ok {
		return cached
	}

	start := time.Now()
	summary, tokens, err := s.callLLM(ctx, content)
	latency := time.Since(start)
	if err != nil {
		reason := classifyFailure(err)
		s.cfg.Metrics.RecordFailure(latency, string(reason), start)
		s.recordFallback(reason, err)
		return ruleBased(content, s.cfg.PreviewChars)
	}
	s.cfg.Metrics.RecordSuccess(latency, tokens)

	s.cache.Add(key, summary)
	return summary
}

func (s *Summarizer) recordFallback(reason FallbackReason, err error) {
	if s.cfg.Recorder != nil {
		s.cfg.Recorder(reason, err)
		return
	}
	slog.Warn("summarize: llm call failed, falling back to rule-based",
		slog.String("reason", string(reason)), slog.Any("error", err))
}

func ruleBased(content extract.Content, previewChars int) Summary {
	runes := []rune(content.Text)
	if len(runes) > previewChars {
		runes = runes[:previewChars]
	}
	return Summary{Method: MethodRuleBased, Text: string(runes), Stats: content.Stats}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
	Provider    *ProviderRouting `json:"provider,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (s *Summarizer) callLLM(ctx context.Context, content extract.Content) (Summary, int, error) {
	var provider *ProviderRouting
	if hasRouting(s.cfg.Provider) {
		provider = &s.cfg.Provider
	}

	reqBody := chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content.Text},
		},
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		Provider:    provider,
	}

	retryCfg := embed.DefaultRetryConfig()
	retryCfg.MaxRetries = s.cfg.MaxRetries

	var text string
	var tokens int
	err := embed.WithRetry(ctx, retryCfg, func() error {
		result, usedTokens, callErr := s.doChatCall(ctx, reqBody)
		if callErr != nil {
			return callErr
		}
		text = result
		tokens = usedTokens
		return nil
	})
	if err != nil {
		return Summary{}, 0, err
	}

	return Summary{Method: MethodLLM, Text: text, Stats: content.Stats}, tokens, nil
}

func (s *Summarizer) doChatCall(ctx context.Context, reqBody chatRequest) (string, int, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, kerrors.New(kerrors.CodeEmbedParse, "failed to encode chat request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, kerrors.New(kerrors.CodeEmbedNetwork, "failed to build chat request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", 0, kerrors.Cancelled()
		}
		return "", 0, kerrors.New(kerrors.CodeEmbedNetwork, "chat request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, kerrors.New(kerrors.CodeEmbedNetwork, "failed to read chat response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		e := kerrors.New(kerrors.CodeEmbedRateLimited, "chat service rate limited", nil)
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			e = e.WithDetail("retry_after", ra)
		}
		return "", 0, e
	}
	if resp.StatusCode >= 500 {
		return "", 0, kerrors.New(kerrors.CodeEmbedServerError, fmt.Sprintf("chat service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, kerrors.New(kerrors.CodeEmbedNetwork, fmt.Sprintf("chat service returned %d", resp.StatusCode), nil)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", 0, kerrors.New(kerrors.CodeEmbedParse, "failed to parse chat response", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, kerrors.New(kerrors.CodeEmbedParse, "chat response has no choices", nil)
	}
	return parsed.Choices[0].Message.Content, parsed.Usage.TotalTokens, nil
}

func hasRouting(p ProviderRouting) bool {
	return len(p.Order) > 0 || p.AllowFallbacks != nil || len(p.Only) > 0 ||
		len(p.Ignore) > 0 || p.Sort != "" || p.RequireParameters
}

func classifyFailure(err error) FallbackReason {
	var kerr *kerrors.Error
	if errors.As(err, &kerr) {
		err = kerr
	}
	switch kerrors.Code(err) {
	case kerrors.CodeEmbedNetwork:
		return FallbackNetwork
	case kerrors.CodeEmbedParse:
		return FallbackParse
	case kerrors.CodeEmbedTimeout:
		return FallbackTimeout
	case kerrors.CodeEmbedServerError, kerrors.CodeEmbedRateLimited:
		return FallbackRetryExhausted
	default:
		return FallbackNonOK
	}
}

func cacheKey(model, content string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
