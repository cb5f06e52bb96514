// Package chrome implements the browser-driven audit backend on chromedp.
package chrome

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pagepulse/pagepulse/internal/audit"
)

// Config controls the behavior of the chrome auditor.
type Config struct {
	NavigationTimeout time.Duration
	Settle            time.Duration
}

// Auditor runs performance audits in headless Chrome. Each Audit call gets a
// fresh browser context so no state leaks between URLs.
type Auditor struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a chrome auditor backed by a shared exec allocator.
func New(cfg Config) (*Auditor, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Auditor{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting the browser down.
func (a *Auditor) Close() {
	a.allocCancel()
}

// Audit navigates the URL in an isolated page under the mode's device profile
// and returns the collected audit items plus an overall performance score.
func (a *Auditor) Audit(ctx context.Context, url string, mode audit.Mode, blockedPatterns []string) (audit.Outcome, error) {
	if mode == audit.ModeAll {
		return audit.Outcome{}, &audit.Error{URL: url, Backend: "chrome", Err: fmt.Errorf("mode %q must be expanded before the backend", mode)}
	}
	profile := ProfileFor(mode)

	taskCtx, taskCancel := chromedp.NewContext(a.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, a.cfg.NavigationTimeout)
	defer cancel()

	// Detach the page from the caller's deadline but still honor cancellation.
	stop := propagateCancel(ctx, taskCancel)
	defer stop()

	var probe perfProbe
	actions := []chromedp.Action{
		a.setupAction(profile, blockedPatterns),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(a.cfg.Settle),
		chromedp.Evaluate(perfProbeJS, &probe),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return audit.Outcome{}, &audit.Error{URL: url, Backend: "chrome", Err: err}
	}

	audits := probe.toAudits(mode)
	return audit.Outcome{
		Metrics:     audit.RawResult{URL: url, Audits: audits},
		Performance: overallScore(audits),
	}, nil
}

func (a *Auditor) setupAction(profile Profile, blockedPatterns []string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if len(blockedPatterns) > 0 {
			if err := network.SetBlockedURLs(blockedPatterns).Do(ctx); err != nil {
				return fmt.Errorf("set blocked urls: %w", err)
			}
		}
		if err := emulation.SetDeviceMetricsOverride(profile.Width, profile.Height, profile.ScaleFactor, profile.Mobile).Do(ctx); err != nil {
			return fmt.Errorf("set device metrics: %w", err)
		}
		if profile.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(profile.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if profile.EmulateThrottling {
			if err := network.EmulateNetworkConditions(false, profile.LatencyMs, profile.DownloadBytesSec, profile.UploadBytesSec).Do(ctx); err != nil {
				return fmt.Errorf("emulate network conditions: %w", err)
			}
			if profile.ThrottleCPURate > 0 {
				if err := emulation.SetCPUThrottlingRate(profile.ThrottleCPURate).Do(ctx); err != nil {
					return fmt.Errorf("set cpu throttling: %w", err)
				}
			}
		}
		return nil
	})
}

// propagateCancel cancels the page when the caller's context dies.
func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// perfProbe is the shape returned by perfProbeJS; times are milliseconds.
type perfProbe struct {
	FCP  float64 `json:"fcp"`
	LCP  float64 `json:"lcp"`
	CLS  float64 `json:"cls"`
	TBT  float64 `json:"tbt"`
	TTFB float64 `json:"ttfb"`
	TTI  float64 `json:"tti"`
	Load float64 `json:"load"`
}

// toAudits maps probe readings onto the shared audit-item keys with scores.
func (p perfProbe) toAudits(mode audit.Mode) map[string]audit.Item {
	lcp := p.LCP
	if lcp < p.FCP {
		lcp = p.FCP
	}
	tti := p.TTI
	if tti < p.FCP {
		tti = p.FCP
	}
	// No filmstrip without a trace; approximate speed index as the midpoint
	// of first paint and full load.
	load := p.Load
	if load < p.FCP {
		load = p.FCP
	}
	speedIndex := (p.FCP + load) / 2

	values := map[string]float64{
		"first-contentful-paint":   p.FCP,
		"largest-contentful-paint": lcp,
		"speed-index":              speedIndex,
		"total-blocking-time":      p.TBT,
		"cumulative-layout-shift":  p.CLS,
		"interactive":              tti,
		"server-response-time":     p.TTFB,
	}
	audits := make(map[string]audit.Item, len(values))
	for key, value := range values {
		audits[key] = audit.Item{NumericValue: value, Score: scoreMetric(key, value, mode)}
	}
	return audits
}

const perfProbeJS = `(() => {
	const nav = performance.getEntriesByType('navigation')[0] || {};
	const paint = performance.getEntriesByType('paint');
	const fcpEntry = paint.find((e) => e.name === 'first-contentful-paint');
	const fcp = fcpEntry ? fcpEntry.startTime : 0;
	const observe = (type, fn) => {
		try {
			const po = new PerformanceObserver(() => {});
			po.observe({type, buffered: true});
			po.takeRecords().forEach(fn);
			po.disconnect();
		} catch (e) {}
	};
	let lcp = 0;
	observe('largest-contentful-paint', (e) => { lcp = Math.max(lcp, e.startTime); });
	let cls = 0;
	observe('layout-shift', (e) => { if (!e.hadRecentInput) cls += e.value; });
	let tbt = 0;
	observe('longtask', (e) => { if (e.duration > 50) tbt += e.duration - 50; });
	const ttfb = nav.responseStart && nav.requestStart ? nav.responseStart - nav.requestStart : 0;
	return {
		fcp: fcp,
		lcp: lcp,
		cls: cls,
		tbt: tbt,
		ttfb: ttfb,
		tti: nav.domInteractive || 0,
		load: nav.loadEventEnd || 0,
	};
})()`
