// Package discover expands a seed page into an audit-ready URL batch using
// gocolly.
package discover

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxURLs   int
}

// Collector gathers same-host links from a single page.
type Collector struct {
	cfg Config
}

// New builds a Collector.
func New(cfg Config) *Collector {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 25
	}
	return &Collector{cfg: cfg}
}

// Discover fetches the seed page and returns the seed plus every same-host
// link found on it, deduplicated, in document order, capped at limit.
// limit <= 0 falls back to the configured maximum.
func (c *Collector) Discover(ctx context.Context, seed string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("discover canceled: %w", err)
	}
	if limit <= 0 || limit > c.cfg.MaxURLs {
		limit = c.cfg.MaxURLs
	}
	seedURL, err := url.Parse(seed)
	if err != nil || !seedURL.IsAbs() || seedURL.Host == "" {
		return nil, fmt.Errorf("seed must be an absolute url, got %q", seed)
	}

	collector := colly.NewCollector(colly.Async(false), colly.MaxDepth(1))
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	seen := map[string]struct{}{canonical(seedURL): {}}
	urls := []string{canonical(seedURL)}

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if len(urls) >= limit {
			return
		}
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		parsed, err := url.Parse(link)
		if err != nil {
			return
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return
		}
		if parsed.Host != seedURL.Host {
			return
		}
		key := canonical(parsed)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		urls = append(urls, key)
	})

	if err := collector.Visit(seedURL.String()); err != nil {
		return nil, fmt.Errorf("visit %s: %w", seed, err)
	}
	collector.Wait()

	return urls, nil
}

// canonical drops fragments so anchors on the same page do not multiply.
func canonical(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	return clean.String()
}
