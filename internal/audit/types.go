// Package audit defines core types shared across the audit subsystems.
package audit

import (
	"fmt"
	"time"
)

// Mode selects the device profile an audit runs under.
type Mode string

// Mode values accepted by the API and the backends.
const (
	ModeMobile  Mode = "mobile"
	ModeDesktop Mode = "desktop"
	ModeAll     Mode = "all"
)

// ParseMode validates a client-supplied mode string, defaulting to mobile.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case "":
		return ModeMobile, nil
	case ModeMobile, ModeDesktop, ModeAll:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// Expand resolves ModeAll into the concrete modes it stands for.
// Concrete modes expand to themselves.
func (m Mode) Expand() []Mode {
	if m == ModeAll {
		return []Mode{ModeMobile, ModeDesktop}
	}
	return []Mode{m}
}

// Item is a single audit-item measurement inside a raw result.
type Item struct {
	NumericValue float64 `json:"numericValue"`
	Score        float64 `json:"score"`
}

// RawResult is the engine-specific audit output for one (URL, mode) pair,
// keyed by audit-item identifiers such as "first-contentful-paint".
// The backend tags URL before returning; a RawResult with nil Audits marks
// a URL the backend produced no metrics for.
type RawResult struct {
	URL    string
	Audits map[string]Item
}

// Outcome is the normalized shape every backend returns.
type Outcome struct {
	Metrics     RawResult
	Performance float64
}

// Record is one flat formatted row ready for storage.
type Record map[string]any

// BatchRequest carries one inbound batch through the service layer.
type BatchRequest struct {
	URLs            []string
	BlockedRequests []string
	Mode            Mode
	StoreData       bool
}

// Field binds one output column to the raw audit-item key it reads.
type Field struct {
	Column string
	RawKey string
}

// FieldMapping is the ordered, immutable column table supplied at startup.
type FieldMapping []Field

// DefaultFieldMapping returns the mapping used for the standard
// performance-audit columns.
func DefaultFieldMapping() FieldMapping {
	return FieldMapping{
		{Column: "first_contentful_paint", RawKey: "first-contentful-paint"},
		{Column: "largest_contentful_paint", RawKey: "largest-contentful-paint"},
		{Column: "speed_index", RawKey: "speed-index"},
		{Column: "total_blocking_time", RawKey: "total-blocking-time"},
		{Column: "cumulative_layout_shift", RawKey: "cumulative-layout-shift"},
		{Column: "interactive", RawKey: "interactive"},
		{Column: "server_response_time", RawKey: "server-response-time"},
	}
}

// Validate rejects empty mappings and duplicate output columns.
func (m FieldMapping) Validate() error {
	if len(m) == 0 {
		return fmt.Errorf("field mapping is empty")
	}
	seen := make(map[string]struct{}, len(m))
	for _, f := range m {
		if f.Column == "" || f.RawKey == "" {
			return fmt.Errorf("field mapping entry %+v has empty column or raw key", f)
		}
		if _, dup := seen[f.Column]; dup {
			return fmt.Errorf("duplicate output column %q", f.Column)
		}
		seen[f.Column] = struct{}{}
	}
	return nil
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
