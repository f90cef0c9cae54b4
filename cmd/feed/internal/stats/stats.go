// Package stats derives moving average and volatility from price histories.
//
// Compute is pure. Worker runs it behind a message boundary so the update loop
// never waits on analytics.
package stats

import (
	"math"

	"github.com/shubham-shewale/crypto-monitor/pkg/models"
)

// Compute returns one result per asset, in input order.
func Compute(assets []models.Asset) []models.StatisticsResult {
	results := make([]models.StatisticsResult, 0, len(assets))
	for _, a := range assets {
		avg, vol := Summarize(a.History)
		results = append(results, models.StatisticsResult{
			ID:         a.ID,
			Average:    avg,
			Volatility: vol,
		})
	}
	return results
}

// Summarize returns the arithmetic mean and population standard deviation of
// the finite samples in h. Empty input yields 0, 0.
func Summarize(h []float64) (average, volatility float64) {
	prices := Sanitize(h)
	if len(prices) == 0 {
		return 0, 0
	}

	n := float64(len(prices))
	var sum float64
	for _, p := range prices {
		sum += p
	}
	average = sum / n

	var sq float64
	for _, p := range prices {
		d := p - average
		sq += d * d
	}
	return average, math.Sqrt(sq / n)
}

// Sanitize drops NaN and infinite samples.
func Sanitize(h []float64) []float64 {
	out := make([]float64, 0, len(h))
	for _, p := range h {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}
