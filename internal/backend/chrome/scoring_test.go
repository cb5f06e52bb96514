// Package chrome contains tests for the metric scoring curves.
package chrome

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagepulse/pagepulse/internal/audit"
)

func TestScoreMetricControlPoints(t *testing.T) {
	t.Parallel()

	for key, c := range mobileCurves {
		assert.InDelta(t, 0.9, scoreMetric(key, c.p10, audit.ModeMobile), 0.011, "%s p10", key)
		assert.InDelta(t, 0.5, scoreMetric(key, c.median, audit.ModeMobile), 0.011, "%s median", key)
	}
	for key, c := range desktopCurves {
		assert.InDelta(t, 0.9, scoreMetric(key, c.p10, audit.ModeDesktop), 0.011, "%s p10", key)
		assert.InDelta(t, 0.5, scoreMetric(key, c.median, audit.ModeDesktop), 0.011, "%s median", key)
	}
}

func TestScoreMetricMonotonicallyDecreases(t *testing.T) {
	t.Parallel()

	prev := 2.0
	for _, value := range []float64{100, 500, 1000, 2000, 4000, 8000, 16000} {
		score := scoreMetric("largest-contentful-paint", value, audit.ModeMobile)
		assert.LessOrEqual(t, score, prev, "value %v", value)
		prev = score
	}
}

func TestScoreMetricEdges(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, scoreMetric("first-contentful-paint", 0, audit.ModeMobile))
	assert.Equal(t, 0.0, scoreMetric("not-a-metric", 1000, audit.ModeMobile))
}

func TestOverallScoreWeighting(t *testing.T) {
	t.Parallel()

	perfect := map[string]audit.Item{
		"first-contentful-paint":   {Score: 1},
		"speed-index":              {Score: 1},
		"largest-contentful-paint": {Score: 1},
		"total-blocking-time":      {Score: 1},
		"cumulative-layout-shift":  {Score: 1},
	}
	assert.Equal(t, 1.0, overallScore(perfect))

	// Only TBT (weight 0.30) degraded to zero.
	degraded := map[string]audit.Item{
		"first-contentful-paint":   {Score: 1},
		"speed-index":              {Score: 1},
		"largest-contentful-paint": {Score: 1},
		"total-blocking-time":      {Score: 0},
		"cumulative-layout-shift":  {Score: 1},
	}
	assert.InDelta(t, 0.70, overallScore(degraded), 0.001)

	assert.Equal(t, 0.0, overallScore(map[string]audit.Item{}))
}

func TestProbeToAuditsTagsEveryMappedKey(t *testing.T) {
	t.Parallel()

	probe := perfProbe{FCP: 1200, LCP: 900, CLS: 0.05, TBT: 120, TTFB: 300, TTI: 800, Load: 3000}
	audits := probe.toAudits(audit.ModeMobile)

	for _, key := range []string{
		"first-contentful-paint",
		"largest-contentful-paint",
		"speed-index",
		"total-blocking-time",
		"cumulative-layout-shift",
		"interactive",
		"server-response-time",
	} {
		assert.Contains(t, audits, key)
	}
	// LCP and TTI are floored at FCP.
	assert.Equal(t, 1200.0, audits["largest-contentful-paint"].NumericValue)
	assert.Equal(t, 1200.0, audits["interactive"].NumericValue)
	assert.Equal(t, (1200.0+3000.0)/2, audits["speed-index"].NumericValue)
}

func TestProfileFor(t *testing.T) {
	t.Parallel()

	mobile := ProfileFor(audit.ModeMobile)
	assert.True(t, mobile.Mobile)
	assert.True(t, mobile.EmulateThrottling)

	desktop := ProfileFor(audit.ModeDesktop)
	assert.False(t, desktop.Mobile)
	assert.False(t, desktop.EmulateThrottling)
	assert.NotEqual(t, mobile.Width, desktop.Width)
}
