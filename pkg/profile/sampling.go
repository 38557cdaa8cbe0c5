package profile

import "math"

// SamplingRatio computes the unbiasing factor for totals accumulated from
// interval-sampled events. Events are recorded with probability proportional
// to their size at a mean interval of rate, so a sample whose mean event
// size is small underestimates its true total more than one whose events
// are large. The factor inverts that model:
//
//	size  = metric / count
//	ratio = 1 / (1 - e^(-size/rate))
//
// Degenerate inputs (rate <= 1, count < 1) disable the correction.
func SamplingRatio(rate, count, metric int64) float64 {
	if rate <= 1 {
		return 1.0
	}
	if count < 1 {
		return 1.0
	}

	size := float64(metric) / float64(count)
	return 1 / (1 - math.Exp(-size/float64(rate)))
}
