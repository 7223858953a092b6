// Package anomaly defines the shared data model of the GL anomaly
// detection engine: anomaly records, detector observations, detection
// configuration and the top-level result shape.
package anomaly

import (
	"time"

	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// Severity classifies how serious an anomaly is
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordering weight of a severity; higher is more severe.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Type tags an anomaly with the detector rule that produced it
type Type string

const (
	TypeStatisticalOutlier Type = "STATISTICAL_OUTLIER"
	TypeBenfordViolation   Type = "BENFORD_VIOLATION"
	TypeAfterHoursPosting  Type = "AFTER_HOURS_POSTING"
	TypeWeekendPosting     Type = "WEEKEND_POSTING"
	TypeSameDayReversal    Type = "SAME_DAY_REVERSAL"
	TypeRoundNumberPattern Type = "ROUND_NUMBER_PATTERN"
	TypeVelocitySpike      Type = "VELOCITY_SPIKE"
	TypeDuplicateEntry     Type = "DUPLICATE_ENTRY"
)

// ReviewStatus tracks the downstream review workflow of an anomaly. The
// engine always emits OPEN; transitions belong to the review subsystem.
type ReviewStatus string

const (
	StatusOpen          ReviewStatus = "OPEN"
	StatusInvestigating ReviewStatus = "INVESTIGATING"
	StatusConfirmed     ReviewStatus = "CONFIRMED"
	StatusFalsePositive ReviewStatus = "FALSE_POSITIVE"
	StatusResolved      ReviewStatus = "RESOLVED"
)

// Anomaly is one detected irregularity, referencing at least one line
// item from the scanned batch. Immutable once produced by the engine.
type Anomaly struct {
	ID             string                 `json:"id"`
	GLAccount      string                 `json:"gl_account"`
	LineItems      []model.LineItem       `json:"line_items"`
	Type           Type                   `json:"type"`
	Severity       Severity               `json:"severity"`
	Score          float64                `json:"score"`
	Confidence     float64                `json:"confidence"`
	DetectedAt     time.Time              `json:"detected_at"`
	Description    string                 `json:"description"`
	Recommendation string                 `json:"recommendation"`
	Evidence       map[string]interface{} `json:"evidence"`
	Status         ReviewStatus           `json:"status"`
}

// ClampScore bounds a score to [0,100].
func ClampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// OutlierMethod selects the statistical outlier detection method
type OutlierMethod string

const (
	MethodZScore OutlierMethod = "ZSCORE"
	MethodIQR    OutlierMethod = "IQR"
	MethodMAD    OutlierMethod = "MAD"
)

// OutlierObservation is one statistically extreme line item
type OutlierObservation struct {
	Item      model.LineItem `json:"item"`
	Method    OutlierMethod  `json:"method"`
	Score     float64        `json:"score"`
	Threshold float64        `json:"threshold"`
	Deviation float64        `json:"deviation"`
	Mean      float64        `json:"mean,omitempty"`
	StdDev    float64        `json:"std_dev,omitempty"`
}

// BenfordResult is the first-digit distribution analysis of one account
type BenfordResult struct {
	GLAccount         string     `json:"gl_account"`
	TransactionCount  int        `json:"transaction_count"`
	DigitCounts       [9]int     `json:"digit_counts"`
	ExpectedPercent   [9]float64 `json:"expected_percent"`
	ObservedPercent   [9]float64 `json:"observed_percent"`
	ChiSquare         float64    `json:"chi_square"`
	PValue            float64    `json:"p_value"`
	MaxDeviationDigit int        `json:"max_deviation_digit"`
	MaxDeviation      float64    `json:"max_deviation"`
	IsAnomalous       bool       `json:"is_anomalous"`
	Severity          Severity   `json:"severity"`
}

// BehavioralMatch is one hit from a behavioral rule, tagged with the
// anomaly type the rule maps to.
type BehavioralMatch struct {
	Type       Type                   `json:"type"`
	GLAccount  string                 `json:"gl_account"`
	Items      []model.LineItem       `json:"items"`
	Severity   Severity               `json:"severity"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	Detail     string                 `json:"detail"`
	Evidence   map[string]interface{} `json:"evidence"`
}

// VelocityObservation is one fiscal period whose activity deviates from
// the trailing average of the same account.
type VelocityObservation struct {
	GLAccount        string   `json:"gl_account"`
	FiscalYear       int      `json:"fiscal_year"`
	FiscalPeriod     int      `json:"fiscal_period"`
	TransactionCount int      `json:"transaction_count"`
	TotalAmount      float64  `json:"total_amount"`
	AverageCount     float64  `json:"average_count"`
	AverageAmount    float64  `json:"average_amount"`
	CountDeviation   float64  `json:"count_deviation_pct"`
	AmountDeviation  float64  `json:"amount_deviation_pct"`
	Severity         Severity `json:"severity"`
	Score            float64  `json:"score"`
}
