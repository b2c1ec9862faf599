package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBatchSize = 200
	DefaultPace      = 200 * time.Millisecond
)

var (
	// ErrCountMismatch means a provider returned a different number of
	// vectors than it was given texts.
	ErrCountMismatch = errors.New("embedding: vector count does not match input count")
	// ErrDimensionMismatch means a provider returned a vector whose length
	// differs from the configured dimension.
	ErrDimensionMismatch = errors.New("embedding: vector dimension does not match configuration")
)

// Batcher splits inputs into fixed-size chunks, sends one provider call per
// chunk and sleeps a fixed pace after each call. It does not retry.
type Batcher struct {
	provider  Provider
	batchSize int
	pace      time.Duration
	logger    *zap.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewBatcher wraps provider. Non-positive batchSize falls back to
// DefaultBatchSize; a zero pace disables the delay.
func NewBatcher(provider Provider, batchSize int, pace time.Duration, logger *zap.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if pace < 0 {
		pace = 0
	}
	return &Batcher{
		provider:  provider,
		batchSize: batchSize,
		pace:      pace,
		logger:    logger,
		sleep:     sleepContext,
	}
}

// Dimension reports the dimension every returned vector is checked against.
func (b *Batcher) Dimension() int {
	return b.provider.Dimension()
}

// EmbedAll embeds texts in order. Output position i corresponds to input
// position i. The first failing batch aborts the whole call.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := (len(texts) + b.batchSize - 1) / b.batchSize
	out := make([][]float32, 0, len(texts))
	for n, start := 0, 0; start < len(texts); n, start = n+1, start+b.batchSize {
		end := min(start+b.batchSize, len(texts))
		chunk := texts[start:end]

		vecs, err := b.provider.Embed(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", n+1, batches, err)
		}
		if err := b.check(chunk, vecs); err != nil {
			return nil, fmt.Errorf("embed batch %d/%d: %w", n+1, batches, err)
		}
		out = append(out, vecs...)

		b.logger.Debug("Embedded batch",
			zap.Int("batch", n+1),
			zap.Int("batches", batches),
			zap.Int("size", len(chunk)),
		)

		if b.pace > 0 {
			if err := b.sleep(ctx, b.pace); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// EmbedOne embeds a single text with the same configuration as EmbedAll.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := b.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (b *Batcher) check(chunk []string, vecs [][]float32) error {
	if len(vecs) != len(chunk) {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(vecs), len(chunk))
	}
	dim := b.provider.Dimension()
	if dim <= 0 {
		return nil
	}
	for i, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: item %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
