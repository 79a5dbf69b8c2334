package embed

import (
	"context"
	"math"
	"time"
)

// Tuning constants for the embedding capability. DefaultFanout bounds the
// number of concurrent outbound requests per §5; DefaultBatchSize bounds
// how many texts are sent per request before the builder's halving retry
// kicks in.
const (
	MinBatchSize      = 1
	DefaultBatchSize  = 32
	DefaultFanout     = 4
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
)

// Embedder is the capability contract the core consumes for turning text
// into dense vectors: strings in, vectors out. Retry with backoff lives
// in retry.go and caching in cached.go, not here.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Close() error
}

// normalizeVector normalizes a vector to unit length. Unused by the
// exact-cosine vector index, which accepts un-normalized vectors, but
// available to embedders that want to pre-normalize for speed.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	mag := math.Sqrt(sumSquares)
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / mag)
	}
	return out
}
