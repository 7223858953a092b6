// Package outlier flags line items whose absolute amount is
// statistically extreme, using one of three interchangeable methods.
// Score scales are method-specific and deliberately not normalized
// across methods; thresholds are tuned per method.
package outlier

import (
	"math"
	"sort"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/anomaly/stats"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// madScale converts a MAD deviation to a z-equivalent score
const madScale = 0.6745

// Detect runs the configured method over the candidate set and returns
// observations sorted by score descending.
func Detect(items []model.LineItem, cfg anomaly.OutlierConfig) []anomaly.OutlierObservation {
	if len(items) == 0 {
		return nil
	}

	var observations []anomaly.OutlierObservation
	switch cfg.Method {
	case anomaly.MethodZScore:
		observations = detectZScore(items, cfg.ZScoreThreshold)
	case anomaly.MethodMAD:
		observations = detectMAD(items, cfg.MADThreshold)
	default:
		observations = detectIQR(items, cfg.IQRMultiplier)
	}

	sort.SliceStable(observations, func(i, j int) bool {
		return observations[i].Score > observations[j].Score
	})
	return observations
}

// MapSeverity classifies an outlier score. Thresholds apply to the raw
// method-specific score.
func MapSeverity(score float64) anomaly.Severity {
	switch {
	case score > 5:
		return anomaly.SeverityCritical
	case score > 3:
		return anomaly.SeverityHigh
	default:
		return anomaly.SeverityMedium
	}
}

func absAmounts(items []model.LineItem) []float64 {
	values := make([]float64, len(items))
	for i := range items {
		values[i] = items[i].AbsAmount()
	}
	return values
}

func detectZScore(items []model.LineItem, threshold float64) []anomaly.OutlierObservation {
	values := absAmounts(items)
	mean := stats.Mean(values)
	std := stats.StdDev(values)

	var observations []anomaly.OutlierObservation
	for i, v := range values {
		z := 0.0
		if std != 0 {
			z = (v - mean) / std
		}
		if math.Abs(z) > threshold {
			observations = append(observations, anomaly.OutlierObservation{
				Item:      items[i],
				Method:    anomaly.MethodZScore,
				Score:     math.Abs(z),
				Threshold: threshold,
				Deviation: v - mean,
				Mean:      mean,
				StdDev:    std,
			})
		}
	}
	return observations
}

func detectIQR(items []model.LineItem, multiplier float64) []anomaly.OutlierObservation {
	values := absAmounts(items)
	q1, q3 := stats.Quartiles(values)
	iqr := q3 - q1
	lower := q1 - multiplier*iqr
	upper := q3 + multiplier*iqr

	var observations []anomaly.OutlierObservation
	for i, v := range values {
		if v >= lower && v <= upper {
			continue
		}
		var distance float64
		if v < lower {
			distance = lower - v
		} else {
			distance = v - upper
		}
		score := 0.0
		if iqr != 0 {
			score = distance / iqr
		}
		observations = append(observations, anomaly.OutlierObservation{
			Item:      items[i],
			Method:    anomaly.MethodIQR,
			Score:     score,
			Threshold: multiplier,
			Deviation: distance,
		})
	}
	return observations
}

func detectMAD(items []model.LineItem, threshold float64) []anomaly.OutlierObservation {
	values := absAmounts(items)
	median := stats.Median(values)
	mad := stats.MAD(values)
	if mad == 0 {
		// A zero MAD would flag every non-median value; skip the method.
		return nil
	}

	var observations []anomaly.OutlierObservation
	for i, v := range values {
		madZ := madScale * math.Abs(v-median) / mad
		if madZ > threshold {
			observations = append(observations, anomaly.OutlierObservation{
				Item:      items[i],
				Method:    anomaly.MethodMAD,
				Score:     madZ,
				Threshold: threshold,
				Deviation: v - median,
			})
		}
	}
	return observations
}
