package anomaly

import (
	"fmt"
	"time"
)

// DetectionConfig drives one detection run. Each detector group is
// independently toggleable with its own thresholds.
type DetectionConfig struct {
	BenfordLaw          BenfordConfig     `json:"benford_law" mapstructure:"benford_law" yaml:"benford_law"`
	StatisticalOutliers OutlierConfig     `json:"statistical_outliers" mapstructure:"statistical_outliers" yaml:"statistical_outliers"`
	BehavioralAnomalies BehaviorConfig    `json:"behavioral_anomalies" mapstructure:"behavioral_anomalies" yaml:"behavioral_anomalies"`
	VelocityAnalysis    VelocityConfig    `json:"velocity_analysis" mapstructure:"velocity_analysis" yaml:"velocity_analysis"`
	RoundNumbers        RoundNumberConfig `json:"round_numbers" mapstructure:"round_numbers" yaml:"round_numbers"`
	DuplicateDetection  DuplicateConfig   `json:"duplicate_detection" mapstructure:"duplicate_detection" yaml:"duplicate_detection"`
}

// BenfordConfig configures the Benford's Law analyzer
type BenfordConfig struct {
	Enabled           bool    `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	MinTransactions   int     `json:"min_transactions" mapstructure:"min_transactions" yaml:"min_transactions" validate:"min=9"`
	SignificanceLevel float64 `json:"significance_level" mapstructure:"significance_level" yaml:"significance_level" validate:"gt=0,lt=1"`
}

// OutlierConfig configures statistical outlier detection
type OutlierConfig struct {
	Enabled         bool          `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Method          OutlierMethod `json:"method" mapstructure:"method" yaml:"method" validate:"oneof=ZSCORE IQR MAD"`
	ZScoreThreshold float64       `json:"z_score_threshold" mapstructure:"z_score_threshold" yaml:"z_score_threshold" validate:"gt=0"`
	IQRMultiplier   float64       `json:"iqr_multiplier" mapstructure:"iqr_multiplier" yaml:"iqr_multiplier" validate:"gt=0"`
	MADThreshold    float64       `json:"mad_threshold" mapstructure:"mad_threshold" yaml:"mad_threshold" validate:"gt=0"`
}

// BehaviorConfig configures the behavioral pattern rules. Timezone is a
// required IANA zone name; after-hours and weekend checks are evaluated
// in that zone, never in the host's local zone.
type BehaviorConfig struct {
	Enabled               bool          `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Timezone              string        `json:"timezone" mapstructure:"timezone" yaml:"timezone" validate:"required"`
	CheckAfterHours       bool          `json:"check_after_hours" mapstructure:"check_after_hours" yaml:"check_after_hours"`
	AfterHoursStart       int           `json:"after_hours_start" mapstructure:"after_hours_start" yaml:"after_hours_start" validate:"min=0,max=23"`
	AfterHoursEnd         int           `json:"after_hours_end" mapstructure:"after_hours_end" yaml:"after_hours_end" validate:"min=0,max=23"`
	CheckWeekends         bool          `json:"check_weekends" mapstructure:"check_weekends" yaml:"check_weekends"`
	CheckReversals        bool          `json:"check_reversals" mapstructure:"check_reversals" yaml:"check_reversals"`
	SameDayReversalWindow time.Duration `json:"same_day_reversal_window" mapstructure:"same_day_reversal_window" yaml:"same_day_reversal_window"`
}

// VelocityConfig configures the velocity analyzer
type VelocityConfig struct {
	Enabled            bool    `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	DeviationThreshold float64 `json:"deviation_threshold" mapstructure:"deviation_threshold" yaml:"deviation_threshold" validate:"gt=0"`
	LookbackPeriods    int     `json:"lookback_periods" mapstructure:"lookback_periods" yaml:"lookback_periods" validate:"min=1"`
}

// RoundNumberConfig configures round-number pattern detection
type RoundNumberConfig struct {
	Enabled        bool      `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Thresholds     []float64 `json:"thresholds" mapstructure:"thresholds" yaml:"thresholds" validate:"min=1"`
	MinOccurrences int       `json:"min_occurrences" mapstructure:"min_occurrences" yaml:"min_occurrences" validate:"min=1"`
}

// DuplicateConfig configures duplicate entry detection
type DuplicateConfig struct {
	Enabled         bool          `json:"enabled" mapstructure:"enabled" yaml:"enabled"`
	TimeWindow      time.Duration `json:"time_window" mapstructure:"time_window" yaml:"time_window"`
	AmountTolerance float64       `json:"amount_tolerance" mapstructure:"amount_tolerance" yaml:"amount_tolerance" validate:"min=0,lt=1"`
}

// DefaultDetectionConfig returns the standard configuration with every
// detector enabled.
func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		BenfordLaw: BenfordConfig{
			Enabled:           true,
			MinTransactions:   100,
			SignificanceLevel: 0.05,
		},
		StatisticalOutliers: OutlierConfig{
			Enabled:         true,
			Method:          MethodIQR,
			ZScoreThreshold: 3.0,
			IQRMultiplier:   1.5,
			MADThreshold:    3.5,
		},
		BehavioralAnomalies: BehaviorConfig{
			Enabled:               true,
			Timezone:              "UTC",
			CheckAfterHours:       true,
			AfterHoursStart:       19,
			AfterHoursEnd:         7,
			CheckWeekends:         true,
			CheckReversals:        true,
			SameDayReversalWindow: 24 * time.Hour,
		},
		VelocityAnalysis: VelocityConfig{
			Enabled:            true,
			DeviationThreshold: 200.0,
			LookbackPeriods:    12,
		},
		RoundNumbers: RoundNumberConfig{
			Enabled:        true,
			Thresholds:     []float64{1000, 5000, 10000},
			MinOccurrences: 5,
		},
		DuplicateDetection: DuplicateConfig{
			Enabled:         true,
			TimeWindow:      24 * time.Hour,
			AmountTolerance: 0.01,
		},
	}
}

// Validate checks cross-field constraints the struct tags cannot express.
func (c *DetectionConfig) Validate() error {
	if c.BehavioralAnomalies.Enabled && c.BehavioralAnomalies.Timezone == "" {
		return fmt.Errorf("behavioral anomalies enabled without a timezone")
	}
	if c.BehavioralAnomalies.CheckReversals && c.BehavioralAnomalies.SameDayReversalWindow <= 0 {
		return fmt.Errorf("same-day reversal window must be positive")
	}
	if c.DuplicateDetection.Enabled && c.DuplicateDetection.TimeWindow <= 0 {
		return fmt.Errorf("duplicate detection time window must be positive")
	}
	if c.StatisticalOutliers.Enabled {
		switch c.StatisticalOutliers.Method {
		case MethodZScore, MethodIQR, MethodMAD:
		default:
			return fmt.Errorf("unknown outlier method: %s", c.StatisticalOutliers.Method)
		}
	}
	return nil
}
