package chrome

import (
	"math"

	"github.com/pagepulse/pagepulse/internal/audit"
)

// curve holds the log-normal control points for one metric: the value that
// earns a 0.9 and the value that earns a 0.5.
type curve struct {
	p10    float64
	median float64
}

// Control points per form factor. Mobile values assume throttled hardware and
// network, so the thresholds are looser than desktop.
var mobileCurves = map[string]curve{
	"first-contentful-paint":   {p10: 1800, median: 3000},
	"largest-contentful-paint": {p10: 2500, median: 4000},
	"speed-index":              {p10: 3387, median: 5800},
	"total-blocking-time":      {p10: 200, median: 600},
	"cumulative-layout-shift":  {p10: 0.1, median: 0.25},
	"interactive":              {p10: 3785, median: 7300},
	"server-response-time":     {p10: 600, median: 1500},
}

var desktopCurves = map[string]curve{
	"first-contentful-paint":   {p10: 934, median: 1600},
	"largest-contentful-paint": {p10: 1200, median: 2400},
	"speed-index":              {p10: 1311, median: 2300},
	"total-blocking-time":      {p10: 150, median: 350},
	"cumulative-layout-shift":  {p10: 0.1, median: 0.25},
	"interactive":              {p10: 2468, median: 4500},
	"server-response-time":     {p10: 600, median: 1500},
}

// Weights of the metrics that contribute to the overall performance score.
var scoreWeights = map[string]float64{
	"first-contentful-paint":   0.10,
	"speed-index":              0.10,
	"largest-contentful-paint": 0.25,
	"total-blocking-time":      0.30,
	"cumulative-layout-shift":  0.25,
}

// z such that the standard normal CDF at z is 0.9.
const z90 = 1.281551565545

// scoreMetric maps a measured value onto [0,1] via the metric's log-normal
// distribution: the p10 control point scores 0.9, the median scores 0.5,
// lower values score higher. Unknown metrics score 0.
func scoreMetric(key string, value float64, mode audit.Mode) float64 {
	curves := mobileCurves
	if mode == audit.ModeDesktop {
		curves = desktopCurves
	}
	c, ok := curves[key]
	if !ok {
		return 0
	}
	if value <= 0 {
		return 1
	}
	mu := math.Log(c.median)
	sigma := (mu - math.Log(c.p10)) / z90
	z := (math.Log(value) - mu) / (sigma * math.Sqrt2)
	score := 0.5 * math.Erfc(z)
	// Round to two decimals the way audit reports present sub-scores.
	return math.Round(score*100) / 100
}

// overallScore computes the weighted performance score from the per-metric
// sub-scores already attached to the audit items.
func overallScore(audits map[string]audit.Item) float64 {
	var weighted, total float64
	for key, weight := range scoreWeights {
		item, ok := audits[key]
		if !ok {
			continue
		}
		weighted += item.Score * weight
		total += weight
	}
	if total == 0 {
		return 0
	}
	return math.Round(weighted/total*100) / 100
}
