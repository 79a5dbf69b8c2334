package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	kerrors "github.com/kioku-dev/kioku/internal/errors"
)

// HTTPEmbedder calls an external embedding service over HTTP per §6: POST
// {model, input: [string, ...]} and read data[i].embedding. The core never
// touches credentials beyond passing the bearer token through.
type HTTPEmbedder struct {
	client    *http.Client
	endpoint  string
	model     string
	token     string
	dims      int
	batchSize int
}

var _ Embedder = (*HTTPEmbedder)(nil)

// HTTPEmbedderConfig configures an HTTPEmbedder.
type HTTPEmbedderConfig struct {
	Endpoint  string
	Model     string
	Token     string
	Timeout   time.Duration
	BatchSize int
}

// NewHTTPEmbedder constructs an HTTPEmbedder. The embedding dimension is
// not known until the first successful response per §3; Dimensions()
// returns 0 until then.
func NewHTTPEmbedder(cfg HTTPEmbedderConfig) *HTTPEmbedder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &HTTPEmbedder{
		client:    &http.Client{Timeout: cfg.Timeout},
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		token:     cfg.Token,
		batchSize: cfg.BatchSize,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch sends one request per call; batching into DefaultBatchSize
// chunks and halving retries on partial failure are the builder's job
// (§4.9 step 3), not this transport's.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, kerrors.New(kerrors.CodeEmbedParse, "failed to encode embedding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, kerrors.New(kerrors.CodeEmbedNetwork, "failed to build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, kerrors.Cancelled()
		}
		return nil, kerrors.New(kerrors.CodeEmbedNetwork, "embedding request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kerrors.New(kerrors.CodeEmbedNetwork, "failed to read embedding response", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retryAfterError(resp, raw)
	}
	if resp.StatusCode >= 500 {
		return nil, kerrors.New(kerrors.CodeEmbedServerError, fmt.Sprintf("embedding service returned %d", resp.StatusCode), nil).
			WithDetail("body", string(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, kerrors.New(kerrors.CodeEmbedNetwork, fmt.Sprintf("embedding service returned %d", resp.StatusCode), nil).
			WithDetail("body", string(raw))
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, kerrors.New(kerrors.CodeEmbedParse, "failed to parse embedding response", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, kerrors.New(kerrors.CodeEmbedParse, "embedding response length mismatch", nil).
			WithDetail("expected", fmt.Sprint(len(texts))).WithDetail("got", fmt.Sprint(len(parsed.Data)))
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
		if e.dims == 0 && len(d.Embedding) > 0 {
			e.dims = len(d.Embedding)
		}
	}
	return out, nil
}

func retryAfterError(resp *http.Response, body []byte) *kerrors.Error {
	err := kerrors.New(kerrors.CodeEmbedRateLimited, "embedding service rate limited", nil).
		WithDetail("body", string(body))
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		err = err.WithDetail("retry_after", ra)
	}
	return err
}

func (e *HTTPEmbedder) Dimensions() int  { return e.dims }
func (e *HTTPEmbedder) ModelName() string { return e.model }
func (e *HTTPEmbedder) Close() error       { e.client.CloseIdleConnections(); return nil }
