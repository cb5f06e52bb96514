package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Runner executes a batch of single-URL audits strictly in sequence.
// Sequential execution is deliberate: concurrent browser instances are
// memory- and CPU-heavy, so throughput is traded for bounded resource usage.
type Runner struct {
	auditor Auditor
	logger  *zap.Logger
}

// NewRunner constructs a Runner over the given backend.
func NewRunner(auditor Auditor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{auditor: auditor, logger: logger}
}

// Run audits every URL in order under one concrete mode and returns the
// accumulated raw results and performance scores, positionally aligned.
// The first failure aborts the whole batch: no partial results are returned.
func (r *Runner) Run(ctx context.Context, urls []string, blockedPatterns []string, mode Mode) ([]RawResult, []float64, error) {
	if mode == ModeAll {
		return nil, nil, fmt.Errorf("runner requires a concrete mode, got %q", mode)
	}

	results := make([]RawResult, 0, len(urls))
	scores := make([]float64, 0, len(urls))
	for _, url := range urls {
		if err := ctx.Err(); err != nil {
			return nil, nil, fmt.Errorf("batch canceled before %s: %w", url, err)
		}
		outcome, err := r.auditor.Audit(ctx, url, mode, blockedPatterns)
		if err != nil {
			return nil, nil, fmt.Errorf("audit %s: %w", url, err)
		}
		r.logger.Debug("url audited",
			zap.String("url", url),
			zap.String("mode", string(mode)),
			zap.Float64("performance", outcome.Performance),
		)
		results = append(results, outcome.Metrics)
		scores = append(scores, outcome.Performance)
	}
	return results, scores, nil
}
