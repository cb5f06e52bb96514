// Package insights implements the audit backend on a hosted pagespeed
// insights endpoint.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pagepulse/pagepulse/internal/audit"
)

// DefaultEndpoint is the hosted insights API.
const DefaultEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Config controls the insights client. APIKey may be empty; requests then go
// out unauthenticated at the API's public quota.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Auditor calls the remote insights API and normalizes its envelope.
type Auditor struct {
	cfg    Config
	client *http.Client
}

// New builds an insights auditor.
func New(cfg Config) *Auditor {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Auditor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// envelope is the subset of the insights response the auditor reads.
type envelope struct {
	LighthouseResult struct {
		Audits     map[string]audit.Item `json:"audits"`
		Categories struct {
			Performance *struct {
				Score float64 `json:"score"`
			} `json:"performance"`
		} `json:"categories"`
	} `json:"lighthouseResult"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Audit fetches the insights report for one URL under the given strategy.
// Blocked patterns only apply to the browser backend and are ignored here.
func (a *Auditor) Audit(ctx context.Context, pageURL string, mode audit.Mode, _ []string) (audit.Outcome, error) {
	if mode == audit.ModeAll {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("mode %q must be expanded before the backend", mode)}
	}

	reqURL, err := a.buildRequestURL(pageURL, mode)
	if err != nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("decode response: %w", err)}
	}
	if env.Error != nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("api error: %s", env.Error.Message)}
	}
	if resp.StatusCode != http.StatusOK {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if env.LighthouseResult.Audits == nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("malformed response: missing audits")}
	}
	if env.LighthouseResult.Categories.Performance == nil {
		return audit.Outcome{}, &audit.Error{URL: pageURL, Backend: "insights", Err: fmt.Errorf("malformed response: missing performance category")}
	}

	return audit.Outcome{
		Metrics:     audit.RawResult{URL: pageURL, Audits: env.LighthouseResult.Audits},
		Performance: env.LighthouseResult.Categories.Performance.Score,
	}, nil
}

func (a *Auditor) buildRequestURL(pageURL string, mode audit.Mode) (string, error) {
	base, err := url.Parse(a.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	q := base.Query()
	q.Set("url", pageURL)
	q.Set("strategy", string(mode))
	q.Set("category", "performance")
	if a.cfg.APIKey != "" {
		q.Set("key", a.cfg.APIKey)
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}
