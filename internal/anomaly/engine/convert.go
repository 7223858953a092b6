package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/anomaly/outlier"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// The engine converts every detector-specific observation into the
// unified anomaly shape through the functions below; detectors never
// build anomalies themselves.

func (e *Engine) newAnomaly(t anomaly.Type, account string, items []model.LineItem, severity anomaly.Severity, score, confidence float64, detectedAt time.Time) anomaly.Anomaly {
	return anomaly.Anomaly{
		ID:         e.ids.NewID(),
		GLAccount:  account,
		LineItems:  items,
		Type:       t,
		Severity:   severity,
		Score:      anomaly.ClampScore(score),
		Confidence: anomaly.ClampScore(confidence),
		DetectedAt: detectedAt,
		Status:     anomaly.StatusOpen,
	}
}

func (e *Engine) convertOutlier(obs anomaly.OutlierObservation, detectedAt time.Time) anomaly.Anomaly {
	severity := outlier.MapSeverity(obs.Score)
	// Just past the method threshold reads as 50; twice the threshold
	// saturates.
	confidence := 0.0
	if obs.Threshold > 0 {
		confidence = obs.Score / obs.Threshold * 50
	}
	a := e.newAnomaly(anomaly.TypeStatisticalOutlier, obs.Item.GLAccount,
		[]model.LineItem{obs.Item}, severity, obs.Score*10, confidence, detectedAt)
	a.Description = fmt.Sprintf("Amount %s on document %s is a statistical outlier (%s score %.2f, threshold %.2f)",
		obs.Item.Amount.String(), obs.Item.DocumentNumber, obs.Method, obs.Score, obs.Threshold)
	a.Recommendation = "Verify the supporting documentation for this posting and confirm the amount was entered correctly"
	a.Evidence = map[string]interface{}{
		"method":    string(obs.Method),
		"score":     obs.Score,
		"threshold": obs.Threshold,
		"deviation": obs.Deviation,
	}
	if obs.Method == anomaly.MethodZScore {
		a.Evidence["population_mean"] = obs.Mean
		a.Evidence["population_std_dev"] = obs.StdDev
	}
	return a
}

func (e *Engine) convertBenford(res *anomaly.BenfordResult, items []model.LineItem, detectedAt time.Time) anomaly.Anomaly {
	// Confidence tracks the p-value: the stronger the rejection of the
	// expected distribution, the more certain the finding.
	score := anomaly.ClampScore((1 - res.PValue) * 100)
	a := e.newAnomaly(anomaly.TypeBenfordViolation, res.GLAccount, items, res.Severity, score, score, detectedAt)
	a.Description = fmt.Sprintf("Account %s first-digit distribution deviates from Benford's Law: digit %d appears %.1f%% of the time against an expected %.1f%% (chi-square %.2f, p=%.4f)",
		res.GLAccount, res.MaxDeviationDigit,
		res.ObservedPercent[res.MaxDeviationDigit-1],
		res.ExpectedPercent[res.MaxDeviationDigit-1],
		res.ChiSquare, res.PValue)
	a.Recommendation = "Review the account's postings for fabricated or systematically rounded amounts"
	a.Evidence = map[string]interface{}{
		"chi_square":          res.ChiSquare,
		"p_value":             res.PValue,
		"transaction_count":   res.TransactionCount,
		"max_deviation_digit": res.MaxDeviationDigit,
		"max_deviation_pct":   res.MaxDeviation,
		"observed_percent":    res.ObservedPercent,
		"expected_percent":    res.ExpectedPercent,
	}
	return a
}

func (e *Engine) convertBehavioral(match anomaly.BehavioralMatch, detectedAt time.Time) anomaly.Anomaly {
	a := e.newAnomaly(match.Type, match.GLAccount, match.Items, match.Severity, match.Score, match.Confidence, detectedAt)
	a.Description = match.Detail
	a.Recommendation = behavioralRecommendation(match.Type)
	a.Evidence = match.Evidence
	return a
}

func behavioralRecommendation(t anomaly.Type) string {
	switch t {
	case anomaly.TypeAfterHoursPosting:
		return "Confirm the posting user was authorized to work outside business hours"
	case anomaly.TypeWeekendPosting:
		return "Confirm weekend processing was scheduled and approved"
	case anomaly.TypeSameDayReversal:
		return "Review the reversal justification and the approver of the original entry"
	case anomaly.TypeRoundNumberPattern:
		return "Check whether round-amount postings reflect estimates posted without supporting detail"
	case anomaly.TypeDuplicateEntry:
		return "Verify whether the second posting duplicates the first and reverse it if so"
	default:
		return "Investigate the flagged postings"
	}
}

func (e *Engine) convertVelocity(obs anomaly.VelocityObservation, items []model.LineItem, detectedAt time.Time) anomaly.Anomaly {
	periodItems := make([]model.LineItem, 0, obs.TransactionCount)
	for i := range items {
		if items[i].FiscalYear == obs.FiscalYear && items[i].FiscalPeriod == obs.FiscalPeriod {
			periodItems = append(periodItems, items[i])
		}
	}
	maxDeviation := math.Max(math.Abs(obs.CountDeviation), math.Abs(obs.AmountDeviation))
	a := e.newAnomaly(anomaly.TypeVelocitySpike, obs.GLAccount, periodItems, obs.Severity, obs.Score, 50+maxDeviation/10, detectedAt)
	a.Description = fmt.Sprintf("Account %s activity in period %d/%02d deviates from its trailing average: %d postings (avg %.1f), amount %.2f (avg %.2f)",
		obs.GLAccount, obs.FiscalYear, obs.FiscalPeriod,
		obs.TransactionCount, obs.AverageCount, obs.TotalAmount, obs.AverageAmount)
	a.Recommendation = "Investigate what drove the activity spike in this period"
	a.Evidence = map[string]interface{}{
		"fiscal_year":          obs.FiscalYear,
		"fiscal_period":        obs.FiscalPeriod,
		"count_deviation_pct":  obs.CountDeviation,
		"amount_deviation_pct": obs.AmountDeviation,
		"average_count":        obs.AverageCount,
		"average_amount":       obs.AverageAmount,
	}
	return a
}
