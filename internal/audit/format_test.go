// Package audit contains tests for the result formatter.
package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func testClock() fixedClock {
	return fixedClock{now: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)}
}

func TestFormatterMapsValuesAndScores(t *testing.T) {
	t.Parallel()

	f, err := NewFormatter(DefaultFieldMapping(), testClock())
	require.NoError(t, err)

	raw := []RawResult{{
		URL: "https://example.com",
		Audits: map[string]Item{
			"first-contentful-paint": {NumericValue: 123.4, Score: 0.9},
			"speed-index":            {NumericValue: 2100, Score: 0.75},
		},
	}}
	records := f.Format(raw, []float64{0.88}, Extra{Mode: ModeMobile})
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, 123.4, rec["first_contentful_paint"])
	assert.Equal(t, 0.9, rec["first_contentful_paint_score"])
	assert.Equal(t, 2100.0, rec["speed_index"])
	assert.Equal(t, 0.75, rec["speed_index_score"])
	assert.Equal(t, 0.88, rec["performance_score"])
	assert.Equal(t, "https://example.com", rec["url"])
	assert.Equal(t, "mobile", rec["mode"])
}

func TestFormatterDefaultsMissingItemsToZero(t *testing.T) {
	t.Parallel()

	f, err := NewFormatter(DefaultFieldMapping(), testClock())
	require.NoError(t, err)

	raw := []RawResult{{URL: "https://example.com", Audits: map[string]Item{}}}
	records := f.Format(raw, []float64{0.5}, Extra{})
	require.Len(t, records, 1)

	for _, field := range DefaultFieldMapping() {
		assert.Equal(t, float64(0), records[0][field.Column], field.Column)
		assert.Equal(t, float64(0), records[0][field.Column+"_score"], field.Column)
	}
}

func TestFormatterStampsDateAndTime(t *testing.T) {
	t.Parallel()

	f, err := NewFormatter(DefaultFieldMapping(), testClock())
	require.NoError(t, err)

	raw := []RawResult{{URL: "https://example.com", Audits: map[string]Item{}}}
	records := f.Format(raw, []float64{1}, Extra{BlockedPatterns: []string{"ads.js", "track"}})
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "2026-03-14", rec["date"])
	assert.Equal(t, "2026-03-14T09:26:53Z", rec["timestamp"])
	assert.Equal(t, "09:26:53", rec["time"])
	assert.Equal(t, "ads.js,track", rec["blocked_requests"])
}

func TestFormatterSkipsResultsWithoutAudits(t *testing.T) {
	t.Parallel()

	f, err := NewFormatter(DefaultFieldMapping(), testClock())
	require.NoError(t, err)

	raw := []RawResult{
		{URL: "https://a.example"},
		{URL: "https://b.example", Audits: map[string]Item{}},
	}
	records := f.Format(raw, []float64{0.1, 0.2}, Extra{})
	require.Len(t, records, 1)
	assert.Equal(t, "https://b.example", records[0]["url"])
	assert.Equal(t, 0.2, records[0]["performance_score"])
}

func TestFormatterPanicsOnLengthMismatch(t *testing.T) {
	t.Parallel()

	f, err := NewFormatter(DefaultFieldMapping(), testClock())
	require.NoError(t, err)

	assert.Panics(t, func() {
		f.Format([]RawResult{{URL: "https://example.com"}}, nil, Extra{})
	})
}

func TestFieldMappingValidateRejectsDuplicates(t *testing.T) {
	t.Parallel()

	m := FieldMapping{
		{Column: "speed_index", RawKey: "speed-index"},
		{Column: "speed_index", RawKey: "interactive"},
	}
	assert.Error(t, m.Validate())
	assert.Error(t, FieldMapping{}.Validate())
	assert.NoError(t, DefaultFieldMapping().Validate())
}
