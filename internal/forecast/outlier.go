package forecast

import (
	"math"
	"sort"
)

// defaultOutlierThreshold is the z-score beyond which a day counts as extreme.
const defaultOutlierThreshold = 3.0

// ModerateOutliers caps statistically extreme daily values before fitting.
// Days whose net flow lies more than threshold standard deviations from the
// series mean trigger a percentile clamp: every value below the 5th
// percentile is raised to it, every value above the 95th lowered to it.
// Series shorter than 3 points pass through unchanged.
func ModerateOutliers(series DailySeries, threshold float64) DailySeries {
	if len(series) < 3 {
		return series
	}
	if threshold <= 0 {
		threshold = defaultOutlierThreshold
	}

	values := series.Values()
	mean, stddev := meanStddev(values)
	if stddev == 0 {
		return series
	}

	flagged := false
	for _, v := range values {
		if math.Abs((v-mean)/stddev) > threshold {
			flagged = true
			break
		}
	}
	if !flagged {
		return series
	}

	lower := percentile(values, 0.05)
	upper := percentile(values, 0.95)

	out := make(DailySeries, len(series))
	copy(out, series)
	for i := range out {
		if out[i].NetFlow < lower {
			out[i].NetFlow = lower
		} else if out[i].NetFlow > upper {
			out[i].NetFlow = upper
		}
	}
	return out
}

func meanStddev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var varianceSum float64
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	return mean, math.Sqrt(varianceSum / n)
}

// percentile computes the q-th quantile (0..1) with linear interpolation.
func percentile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
