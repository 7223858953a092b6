// Package velocity compares per-period transaction count and amount
// against a rolling historical average to flag sudden spikes.
package velocity

import (
	"math"
	"sort"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

type periodActivity struct {
	year   int
	period int
	count  int
	amount float64
}

// Analyze groups one account's line items by fiscal period and flags
// periods whose count or amount deviation from the trailing average
// exceeds the configured threshold.
func Analyze(account string, items []model.LineItem, cfg anomaly.VelocityConfig) []anomaly.VelocityObservation {
	if len(items) == 0 {
		return nil
	}

	byPeriod := make(map[int]*periodActivity)
	for i := range items {
		key := items[i].FiscalYear*100 + items[i].FiscalPeriod
		activity, ok := byPeriod[key]
		if !ok {
			activity = &periodActivity{year: items[i].FiscalYear, period: items[i].FiscalPeriod}
			byPeriod[key] = activity
		}
		activity.count++
		activity.amount += items[i].AbsAmount()
	}

	keys := make([]int, 0, len(byPeriod))
	for key := range byPeriod {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	var observations []anomaly.VelocityObservation
	for i := 1; i < len(keys); i++ {
		current := byPeriod[keys[i]]

		start := i - cfg.LookbackPeriods
		if start < 0 {
			start = 0
		}
		priorCount := 0.0
		priorAmount := 0.0
		priorPeriods := 0
		for j := start; j < i; j++ {
			prior := byPeriod[keys[j]]
			priorCount += float64(prior.count)
			priorAmount += prior.amount
			priorPeriods++
		}
		avgCount := priorCount / float64(priorPeriods)
		avgAmount := priorAmount / float64(priorPeriods)

		countDev := deviationPercent(float64(current.count), avgCount)
		amountDev := deviationPercent(current.amount, avgAmount)
		maxDev := math.Max(math.Abs(countDev), math.Abs(amountDev))
		if maxDev <= cfg.DeviationThreshold {
			continue
		}

		score := anomaly.ClampScore(maxDev / 5)
		observations = append(observations, anomaly.VelocityObservation{
			GLAccount:        account,
			FiscalYear:       current.year,
			FiscalPeriod:     current.period,
			TransactionCount: current.count,
			TotalAmount:      current.amount,
			AverageCount:     avgCount,
			AverageAmount:    avgAmount,
			CountDeviation:   countDev,
			AmountDeviation:  amountDev,
			Score:            score,
			Severity:         mapSeverity(score),
		})
	}
	return observations
}

func deviationPercent(observed, average float64) float64 {
	if average == 0 {
		return 0
	}
	return (observed - average) / average * 100
}

func mapSeverity(score float64) anomaly.Severity {
	switch {
	case score >= 75:
		return anomaly.SeverityCritical
	case score >= 50:
		return anomaly.SeverityHigh
	case score >= 25:
		return anomaly.SeverityMedium
	default:
		return anomaly.SeverityLow
	}
}
