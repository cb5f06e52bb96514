// Package backend holds shared helpers for the audit backends.
package backend

import (
	"context"
	"time"

	"github.com/pagepulse/pagepulse/internal/audit"
	"github.com/pagepulse/pagepulse/internal/telemetry"
)

// Instrumented wraps an Auditor with Prometheus observations.
type Instrumented struct {
	Name  string
	Inner audit.Auditor
}

// Audit delegates to the wrapped backend and records the attempt.
func (i Instrumented) Audit(ctx context.Context, url string, mode audit.Mode, blockedPatterns []string) (audit.Outcome, error) {
	start := time.Now()
	outcome, err := i.Inner.Audit(ctx, url, mode, blockedPatterns)
	telemetry.ObserveAudit(i.Name, string(mode), err, time.Since(start))
	return outcome, err
}
