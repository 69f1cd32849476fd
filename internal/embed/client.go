package embed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	vaerrors "github.com/amanmcp/vaultengine/internal/errors"
	"github.com/amanmcp/vaultengine/internal/telemetry"
)

// Client is the embedding client (C3): it groups chunk texts into
// provider-sized batches, embeds up to MaxInflight batches concurrently, and
// enforces the order/length invariant between input texts and output
// vectors before returning.
type Client struct {
	Provider      Embedder
	BatchTokens   int
	BatchItems    int
	MaxInflight   int
	Metrics       *telemetry.Recorder
	breaker       *vaerrors.CircuitBreaker
}

// NewClient wraps provider with the §4.3 batching policy and a circuit
// breaker that trips after repeated provider failures.
func NewClient(provider Embedder, metrics *telemetry.Recorder) *Client {
	return &Client{
		Provider:    provider,
		BatchTokens: DefaultBatchTokens,
		BatchItems:  DefaultBatchItems,
		MaxInflight: DefaultMaxInflight,
		Metrics:     metrics,
		breaker:     vaerrors.NewCircuitBreaker("embed"),
	}
}

// EmbedBatch embeds texts in input order, returning one vector per input
// text. It batches internally by token budget and item count, runs up to
// MaxInflight batches concurrently, and retries a failed batch through
// errors.Retry before giving up. A provider-count/length mismatch on any
// batch is an InvariantViolation: fatal for this call, never silently
// truncated or padded.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := c.makeBatches(texts)
	results := make([][]float32, len(texts))

	if !c.breaker.Allow() {
		return nil, vaerrors.TransientIo(fmt.Sprintf("embed client circuit open (%s)", c.breaker.Name()), vaerrors.ErrCircuitOpen)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(c.MaxInflight)

	for _, b := range batches {
		b := b
		group.Go(func() error {
			vecs, err := c.embedOneBatch(gctx, b.texts)
			if err != nil {
				c.breaker.RecordFailure()
				return err
			}
			c.breaker.RecordSuccess()
			for i, v := range vecs {
				results[b.startIdx+i] = v
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	if c.Metrics != nil {
		c.Metrics.Counter("embed.texts_embedded", int64(len(texts)), nil)
		c.Metrics.Gauge("embed.batch_count", float64(len(batches)), nil)
	}

	return results, nil
}

type batch struct {
	texts    []string
	startIdx int
}

// makeBatches groups texts in order, splitting whenever adding the next text
// would exceed BatchTokens or BatchItems, so batch boundaries never reorder
// input.
func (c *Client) makeBatches(texts []string) []batch {
	var batches []batch
	var current []string
	currentTokens := 0

	flush := func(idx int) {
		if len(current) == 0 {
			return
		}
		batches = append(batches, batch{texts: current, startIdx: idx - len(current)})
		current = nil
		currentTokens = 0
	}

	for i, t := range texts {
		tokens := estimateTokens(t)
		if len(current) > 0 && (currentTokens+tokens > c.BatchTokens || len(current) >= c.BatchItems) {
			flush(i)
		}
		current = append(current, t)
		currentTokens += tokens
	}
	flush(len(texts))

	return batches
}

func estimateTokens(s string) int {
	n := len(s)
	if n == 0 {
		return 0
	}
	return (n + DefaultTokensPerChar - 1) / DefaultTokensPerChar
}

// WarmUp blocks until the provider reports itself available, retrying with
// backoff. Intended for startup, before the first real ingestion batch is
// submitted.
func (c *Client) WarmUp(ctx context.Context) error {
	return DownloadWithRetry(ctx, DefaultRetryConfig(), func() error {
		if c.Provider.Available(ctx) {
			return nil
		}
		return fmt.Errorf("provider %s not yet available", c.Provider.ModelName())
	})
}

func (c *Client) embedOneBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vecs [][]float32
	cfg := vaerrors.DefaultRetryConfig()
	err := vaerrors.Retry(ctx, cfg, func() error {
		v, err := c.Provider.EmbedBatch(ctx, texts)
		if err != nil {
			return vaerrors.TransientIo("embedding provider batch call", err)
		}
		vecs = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(vecs) != len(texts) {
		return nil, vaerrors.Invariant(
			fmt.Sprintf("embedding count mismatch: got %d vectors for %d texts", len(vecs), len(texts)),
			nil,
		)
	}
	dim := c.Provider.Dimensions()
	for i, v := range vecs {
		if dim > 0 && len(v) != dim {
			return nil, vaerrors.Invariant(
				fmt.Sprintf("embedding dimension mismatch at index %d: got %d, want %d", i, len(v), dim),
				nil,
			)
		}
	}

	return vecs, nil
}
