package analytics

import (
	"math"
	"sort"
)

// varMinSamples is the minimum return-series length for a meaningful VaR
// estimate; below it the metric is reported as exactly zero
const varMinSamples = 20

// periodReturns derives the return series from a value series.
// Periods whose prior value is not positive are excluded entirely, not
// treated as zero returns.
func periodReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev > 0 {
			returns = append(returns, (values[i]-prev)/prev)
		}
	}
	return returns
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev is the unbiased (n-1) estimator; fewer than two points yield 0
func sampleStdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(n-1))
}

// maxDrawdown tracks the running peak and returns the deepest peak-to-trough
// decline as a fraction. A non-positive peak contributes zero, never a
// division by it. Always >= 0; exactly 0 for a non-decreasing series.
func maxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	peak := values[0]
	var worst float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// valueAtRisk95 returns the 5th-percentile return via the sorted-array index
// floor(0.05 x n). With fewer than varMinSamples returns it reports 0.
func valueAtRisk95(returns []float64) float64 {
	if len(returns) < varMinSamples {
		return 0
	}
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)
	return sorted[int(0.05*float64(len(sorted)))]
}
