// Package benford tests whether the leading-digit distribution of an
// account's amounts deviates from Benford's Law.
package benford

import (
	"math"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// expectedPercent holds P(d) = log10(1 + 1/d) for d = 1..9, as percentages.
var expectedPercent = [9]float64{
	30.10299956639812,
	17.609125905568124,
	12.493873660829993,
	9.691001300805642,
	7.918124604762482,
	6.694678963061322,
	5.799194697768673,
	5.115252244738129,
	4.575749056067514,
}

// chiSquareAnchors is the critical-value table for 8 degrees of freedom.
// The p-value is approximated by linear interpolation between anchors;
// this coarse approximation is part of the contract: the severity ladder
// was tuned against it, so it must not be replaced by an exact inverse
// CDF.
var chiSquareAnchors = []struct {
	chiSquare float64
	pValue    float64
}{
	{1.344, 0.995},
	{1.646, 0.99},
	{2.733, 0.95},
	{3.490, 0.90},
	{7.344, 0.50},
	{13.362, 0.10},
	{15.507, 0.05},
	{20.090, 0.01},
	{21.955, 0.005},
}

// Analyze builds the first-digit distribution of one account and tests
// it against Benford's Law. Returns nil when the account has fewer than
// cfg.MinTransactions usable amounts.
func Analyze(account string, items []model.LineItem, cfg anomaly.BenfordConfig) *anomaly.BenfordResult {
	var counts [9]int
	total := 0
	for i := range items {
		digit := firstDigit(items[i].AbsAmount())
		if digit == 0 {
			continue
		}
		counts[digit-1]++
		total++
	}
	if total < cfg.MinTransactions {
		return nil
	}

	result := &anomaly.BenfordResult{
		GLAccount:        account,
		TransactionCount: total,
		DigitCounts:      counts,
		ExpectedPercent:  expectedPercent,
	}

	chiSquare := 0.0
	maxDeviation := 0.0
	maxDigit := 1
	for d := 0; d < 9; d++ {
		observed := float64(counts[d]) / float64(total) * 100
		result.ObservedPercent[d] = observed
		expected := expectedPercent[d]
		chiSquare += math.Pow(observed-expected, 2) / expected
		if dev := math.Abs(observed - expected); dev > maxDeviation {
			maxDeviation = dev
			maxDigit = d + 1
		}
	}

	result.ChiSquare = chiSquare
	result.PValue = approximatePValue(chiSquare)
	result.MaxDeviation = maxDeviation
	result.MaxDeviationDigit = maxDigit
	result.IsAnomalous = result.PValue < cfg.SignificanceLevel
	result.Severity = mapSeverity(result.PValue, maxDeviation)

	return result
}

// firstDigit extracts the first significant digit (1-9) of v, or 0 for
// zero amounts.
func firstDigit(v float64) int {
	if v == 0 {
		return 0
	}
	for v < 1 {
		v *= 10
	}
	for v >= 10 {
		v /= 10
	}
	return int(v)
}

// approximatePValue interpolates the p-value for a chi-square statistic
// with 8 degrees of freedom over the anchor table.
func approximatePValue(chiSquare float64) float64 {
	if chiSquare < chiSquareAnchors[0].chiSquare {
		return 1.0
	}
	last := chiSquareAnchors[len(chiSquareAnchors)-1]
	if chiSquare >= last.chiSquare {
		return 0.001
	}
	for i := 0; i < len(chiSquareAnchors)-1; i++ {
		lo := chiSquareAnchors[i]
		hi := chiSquareAnchors[i+1]
		if chiSquare >= lo.chiSquare && chiSquare < hi.chiSquare {
			fraction := (chiSquare - lo.chiSquare) / (hi.chiSquare - lo.chiSquare)
			return lo.pValue + fraction*(hi.pValue-lo.pValue)
		}
	}
	return 0.001
}

func mapSeverity(pValue, maxDeviation float64) anomaly.Severity {
	switch {
	// The interpolation floors at exactly 0.001, so the critical rung
	// compares inclusively.
	case pValue <= 0.001 && maxDeviation > 10:
		return anomaly.SeverityCritical
	case pValue < 0.01 && maxDeviation > 7:
		return anomaly.SeverityHigh
	case pValue < 0.05 && maxDeviation > 5:
		return anomaly.SeverityMedium
	default:
		return anomaly.SeverityLow
	}
}
