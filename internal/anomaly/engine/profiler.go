package engine

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// Profiler derives a per-account risk rollup by re-running the engine
// scoped to one account.
type Profiler struct {
	logger *zap.SugaredLogger
	engine *Engine
}

// NewProfiler creates a profiler over the given engine.
func NewProfiler(logger *zap.SugaredLogger, eng *Engine) *Profiler {
	return &Profiler{logger: logger, engine: eng}
}

// riskWeights are the per-severity contributions to the account risk score.
var riskWeights = map[anomaly.Severity]float64{
	anomaly.SeverityCritical: 25,
	anomaly.SeverityHigh:     15,
	anomaly.SeverityMedium:   5,
}

// ProfileAccount runs detection scoped to one GL account and derives its
// risk profile. The filter's account list is overridden.
func (p *Profiler) ProfileAccount(ctx context.Context, tenantID, glAccount string, filter model.Filter) (*anomaly.AccountRiskProfile, error) {
	filter.GLAccounts = []string{glAccount}
	result, err := p.engine.Run(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("account risk profiling failed: %w", err)
	}

	profile := &anomaly.AccountRiskProfile{
		GLAccount:    glAccount,
		TenantID:     tenantID,
		AnomalyCount: len(result.Anomalies),
		GeneratedAt:  result.GeneratedAt,
	}

	factors := make(map[anomaly.Type]*anomaly.RiskFactor)
	present := make(map[anomaly.Type]bool)
	score := 0.0
	for _, a := range result.Anomalies {
		present[a.Type] = true
		weight := riskWeights[a.Severity]
		score += weight
		if a.Severity == anomaly.SeverityCritical {
			profile.CriticalCount++
		}

		factor, ok := factors[a.Type]
		if !ok {
			factor = &anomaly.RiskFactor{Type: a.Type, TopSeverity: a.Severity}
			factors[a.Type] = factor
		}
		factor.Occurrences++
		factor.Contribution += weight
		if a.Severity.Rank() > factor.TopSeverity.Rank() {
			factor.TopSeverity = a.Severity
		}
	}

	profile.RiskScore = anomaly.ClampScore(score)
	profile.RiskLevel = riskLevel(profile.RiskScore)
	profile.TopRiskFactors = topRiskFactors(factors)
	profile.ControlWeaknesses = controlWeaknesses(present)
	profile.Recommendations = recommendations(present)

	p.logger.Infow("Account risk profile generated",
		"tenant_id", tenantID,
		"gl_account", glAccount,
		"risk_score", profile.RiskScore,
		"risk_level", profile.RiskLevel,
		"anomalies", profile.AnomalyCount)

	return profile, nil
}

func riskLevel(score float64) anomaly.RiskLevel {
	switch {
	case score >= 75:
		return anomaly.RiskLevelCritical
	case score >= 50:
		return anomaly.RiskLevelHigh
	case score >= 25:
		return anomaly.RiskLevelMedium
	default:
		return anomaly.RiskLevelLow
	}
}

// topRiskFactors orders factors by contribution descending and keeps the
// top five, with the type name as a deterministic tiebreak.
func topRiskFactors(factors map[anomaly.Type]*anomaly.RiskFactor) []anomaly.RiskFactor {
	ordered := make([]anomaly.RiskFactor, 0, len(factors))
	for _, factor := range factors {
		ordered = append(ordered, *factor)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Contribution != ordered[j].Contribution {
			return ordered[i].Contribution > ordered[j].Contribution
		}
		return ordered[i].Type < ordered[j].Type
	})
	if len(ordered) > topListSize {
		ordered = ordered[:topListSize]
	}
	return ordered
}

func controlWeaknesses(present map[anomaly.Type]bool) []string {
	var weaknesses []string
	if present[anomaly.TypeAfterHoursPosting] || present[anomaly.TypeWeekendPosting] {
		weaknesses = append(weaknesses, "Posting access is not restricted to business hours; access controls may be weak")
	}
	if present[anomaly.TypeDuplicateEntry] {
		weaknesses = append(weaknesses, "Duplicate payment controls are not preventing near-identical postings")
	}
	if present[anomaly.TypeBenfordViolation] {
		weaknesses = append(weaknesses, "Amount distribution suggests possible data manipulation")
	}
	if present[anomaly.TypeSameDayReversal] {
		weaknesses = append(weaknesses, "Reversals can be posted without independent review")
	}
	return weaknesses
}

// recommendations is never empty: with no anomalies present it falls
// back to a monitoring message.
func recommendations(present map[anomaly.Type]bool) []string {
	var recs []string
	if present[anomaly.TypeAfterHoursPosting] || present[anomaly.TypeWeekendPosting] {
		recs = append(recs, "Restrict posting authorization to business hours or require approval for exceptions")
	}
	if present[anomaly.TypeDuplicateEntry] {
		recs = append(recs, "Enable duplicate invoice checking in the payables workflow")
	}
	if present[anomaly.TypeBenfordViolation] {
		recs = append(recs, "Perform a detailed substantive review of this account's postings")
	}
	if present[anomaly.TypeSameDayReversal] {
		recs = append(recs, "Require a second approver for reversals posted within 24 hours of the original entry")
	}
	if present[anomaly.TypeStatisticalOutlier] {
		recs = append(recs, "Set posting limits or secondary approval for unusually large amounts")
	}
	if present[anomaly.TypeVelocitySpike] {
		recs = append(recs, "Compare period activity against budget and investigate unexplained spikes")
	}
	if present[anomaly.TypeRoundNumberPattern] {
		recs = append(recs, "Require supporting detail for estimate postings at round amounts")
	}
	if len(recs) == 0 {
		recs = append(recs, "No anomalies detected; continue routine monitoring of this account")
	}
	return recs
}
