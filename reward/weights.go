package reward

import "math"

// BoostBeta controls how sharply publication weights concentrate on the
// best trust values.
const BoostBeta = 5.0

// NormalizeWeights converts a trust vector into publication weights: an
// exponential boost driven by the gap to the batch best, scaled by the
// batch standard deviation, normalized so the best value maps to 1.
// A zero-variance batch degenerates to an indicator of the maximum.
//
// This shapes what goes on chain only; trust values themselves are never
// boosted.
func NormalizeWeights(values []float64) []float64 {
	weights := make([]float64, len(values))
	if len(values) == 0 {
		return weights
	}

	best := values[0]
	mean := 0.0
	for _, v := range values {
		if v > best {
			best = v
		}
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	sigma := math.Sqrt(variance / float64(len(values)))

	if sigma == 0 {
		for i, v := range values {
			if v == best {
				weights[i] = 1
			}
		}
		return weights
	}

	for i, v := range values {
		weights[i] = math.Exp(BoostBeta * (v - best) / sigma)
	}
	return weights
}
