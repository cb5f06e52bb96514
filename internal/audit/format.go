package audit

import (
	"fmt"
	"strings"
)

// Extra carries per-batch context stamped onto every formatted record.
type Extra struct {
	Mode            Mode
	BlockedPatterns []string
}

// Formatter flattens raw audit results into fixed-column records.
type Formatter struct {
	mapping FieldMapping
	clock   Clock
}

// NewFormatter builds a Formatter. The mapping is validated once here and
// never changes afterwards.
func NewFormatter(mapping FieldMapping, clock Clock) (*Formatter, error) {
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("field mapping: %w", err)
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Formatter{mapping: mapping, clock: clock}, nil
}

// Mapping returns the configured field mapping.
func (f *Formatter) Mapping() FieldMapping {
	return f.mapping
}

// Format maps each raw result into one flat record. rawResults[i] corresponds
// positionally to performanceScores[i]; a length mismatch is a programming
// error and panics. Raw results with no audits are skipped.
func (f *Formatter) Format(rawResults []RawResult, performanceScores []float64, extra Extra) []Record {
	if len(rawResults) != len(performanceScores) {
		panic(fmt.Sprintf("formatter: %d raw results but %d performance scores", len(rawResults), len(performanceScores)))
	}

	now := f.clock.Now().UTC()
	records := make([]Record, 0, len(rawResults))
	for i, raw := range rawResults {
		if raw.Audits == nil {
			continue
		}
		rec := Record{}
		for _, field := range f.mapping {
			item, ok := raw.Audits[field.RawKey]
			if !ok {
				rec[field.Column] = float64(0)
				rec[field.Column+"_score"] = float64(0)
				continue
			}
			rec[field.Column] = item.NumericValue
			rec[field.Column+"_score"] = item.Score
		}
		rec["performance_score"] = performanceScores[i]
		rec["date"] = now.Format("2006-01-02")
		rec["timestamp"] = now.Format("2006-01-02T15:04:05Z07:00")
		rec["time"] = now.Format("15:04:05")
		rec["url"] = raw.URL
		if extra.Mode != "" {
			rec["mode"] = string(extra.Mode)
		}
		if extra.BlockedPatterns != nil {
			rec["blocked_requests"] = strings.Join(extra.BlockedPatterns, ",")
		}
		records = append(records, rec)
	}
	return records
}
