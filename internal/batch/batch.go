// Package batch runs the detector over multiple texts concurrently.
package batch

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/opensource-media/magpie/internal/detector"
	"github.com/opensource-media/magpie/internal/domain"
	"golang.org/x/sync/errgroup"
)

// previewChars is the input echo length on batch items.
const previewChars = 100

// Processor scores batches of texts with bounded concurrency.
// Blank entries are dropped before scoring; result order follows the
// order of the surviving inputs.
type Processor struct {
	detector    *detector.Detector
	concurrency int
	logger      *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets a custom logger for batch processing.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent predictions.
// Default is 8 if not specified.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// NewProcessor creates a batch processor around a detector.
func NewProcessor(d *detector.Detector, opts ...Option) *Processor {
	p := &Processor{
		detector:    d,
		concurrency: 8,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// Process scores all non-blank texts and returns the items in input
// order plus a label summary. Individual predictions never fail the
// batch; degenerate inputs produce UNKNOWN verdicts upstream of here
// and blanks are filtered out entirely.
func (p *Processor) Process(ctx context.Context, tenantID string, texts []string) ([]domain.BatchItem, domain.BatchSummary, error) {
	kept := make([]string, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) != "" {
			kept = append(kept, text)
		}
	}

	p.logger.Info("starting batch analysis",
		"tenantId", tenantID,
		"submitted", len(texts),
		"kept", len(kept),
		"concurrency", p.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate to keep input order
	items := make([]domain.BatchItem, len(kept))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, text := range kept {
		g.Go(func() error {
			// Check for cancellation before starting
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			verdict := p.detector.Predict(ctx, tenantID, strings.TrimSpace(text))
			items[i] = domain.BatchItem{
				Index:       i,
				TextPreview: preview(text),
				Verdict:     *verdict,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, domain.BatchSummary{}, err
	}

	summary := Summarize(items)

	p.logger.Info("batch analysis complete",
		"tenantId", tenantID,
		"total", summary.Total,
		"fake", summary.FakeCount,
		"real", summary.RealCount,
		"elapsed", time.Since(startTime),
	)

	return items, summary, nil
}

// Summarize counts verdict labels across batch items.
func Summarize(items []domain.BatchItem) domain.BatchSummary {
	summary := domain.BatchSummary{Total: len(items)}
	for _, item := range items {
		switch item.Verdict.Label {
		case domain.LabelFake:
			summary.FakeCount++
		case domain.LabelReal:
			summary.RealCount++
		}
	}
	return summary
}

// preview returns the first previewChars runes of the original input.
func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewChars {
		return text
	}
	return string([]rune(text)[:previewChars])
}
