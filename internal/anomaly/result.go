package anomaly

import (
	"sort"
	"time"

	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// NameCount pairs a dimension value with its occurrence count
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AccountStats is the per-account baseline computed for every account in
// the scanned batch, whether or not anomalies were found there.
type AccountStats struct {
	GLAccount        string       `json:"gl_account"`
	GLAccountName    string       `json:"gl_account_name"`
	TransactionCount int          `json:"transaction_count"`
	TotalDebit       float64      `json:"total_debit"`
	TotalCredit      float64      `json:"total_credit"`
	TotalAbsolute    float64      `json:"total_absolute"`
	MeanAmount       float64      `json:"mean_amount"`
	MedianAmount     float64      `json:"median_amount"`
	StdDevAmount     float64      `json:"std_dev_amount"`
	MinAmount        float64      `json:"min_amount"`
	MaxAmount        float64      `json:"max_amount"`
	TopUsers         []NameCount  `json:"top_users"`
	TopDocumentTypes []NameCount  `json:"top_document_types"`
	PostingsByHour   [24]int      `json:"postings_by_hour"`
	PostingsByDay    [7]int       `json:"postings_by_day"`
}

// Summary aggregates one detection run
type Summary struct {
	AnomaliesDetected int            `json:"anomalies_detected"`
	CriticalAnomalies int            `json:"critical_anomalies"`
	HighAnomalies     int            `json:"high_anomalies"`
	MediumAnomalies   int            `json:"medium_anomalies"`
	LowAnomalies      int            `json:"low_anomalies"`
	CountsByType      map[Type]int   `json:"counts_by_type"`
	FraudRiskScore    float64        `json:"fraud_risk_score"`
}

// DetectionResult is the sole output of a detection run.
type DetectionResult struct {
	AnalysisID           string                  `json:"analysis_id"`
	TenantID             string                  `json:"tenant_id"`
	Filter               model.Filter            `json:"filter"`
	GeneratedAt          time.Time               `json:"generated_at"`
	TotalLineItems       int                     `json:"total_line_items"`
	Anomalies            []Anomaly               `json:"anomalies"`
	AccountStats         map[string]AccountStats `json:"account_stats"`
	VelocityObservations []VelocityObservation   `json:"velocity_observations"`
	Summary              Summary                 `json:"summary"`
}

// SortAnomalies orders anomalies by severity descending, keeping
// emission order within equal severities.
func SortAnomalies(anomalies []Anomaly) {
	sort.SliceStable(anomalies, func(i, j int) bool {
		return anomalies[i].Severity.Rank() > anomalies[j].Severity.Rank()
	})
}

// RiskLevel classifies an account risk score
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// RiskFactor is one contributor to an account risk score
type RiskFactor struct {
	Type         Type    `json:"type"`
	Occurrences  int     `json:"occurrences"`
	TopSeverity  Severity `json:"top_severity"`
	Contribution float64 `json:"contribution"`
}

// AccountRiskProfile is the per-account rollup produced by the risk
// profiler.
type AccountRiskProfile struct {
	GLAccount         string       `json:"gl_account"`
	TenantID          string       `json:"tenant_id"`
	RiskScore         float64      `json:"risk_score"`
	RiskLevel         RiskLevel    `json:"risk_level"`
	AnomalyCount      int          `json:"anomaly_count"`
	CriticalCount     int          `json:"critical_count"`
	TopRiskFactors    []RiskFactor `json:"top_risk_factors"`
	ControlWeaknesses []string     `json:"control_weaknesses"`
	Recommendations   []string     `json:"recommendations"`
	GeneratedAt       time.Time    `json:"generated_at"`
}
