// Package engine orchestrates the detection run: fetch, grouping,
// detector fan-out, conversion to the unified anomaly shape, per-account
// statistics and the fraud-risk summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/anomaly/behavior"
	"github.com/Aidin1998/glsentinel/internal/anomaly/benford"
	"github.com/Aidin1998/glsentinel/internal/anomaly/outlier"
	"github.com/Aidin1998/glsentinel/internal/anomaly/stats"
	"github.com/Aidin1998/glsentinel/internal/anomaly/velocity"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
	"github.com/Aidin1998/glsentinel/internal/gl/source"
)

// maxOutliersPerAccount bounds outlier output volume on
// high-cardinality accounts.
const maxOutliersPerAccount = 10

// topListSize bounds the per-account top-user and top-document-type lists.
const topListSize = 5

var (
	// ErrMissingFiscalYear is returned when the mandatory filter lacks a
	// fiscal year; the engine rejects the run before any fetch.
	ErrMissingFiscalYear = errors.New("detection filter requires a fiscal year")

	// ErrInvalidLineItem wraps eager batch validation failures.
	ErrInvalidLineItem = errors.New("invalid line item in batch")
)

// Engine is the detection orchestrator. One Run processes one fetched
// snapshot synchronously; no state is shared across runs.
type Engine struct {
	logger   *zap.SugaredLogger
	source   source.GLDataSource
	cfg      anomaly.DetectionConfig
	behavior *behavior.Detector
	ids      IDGenerator
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithIDGenerator replaces the default UUID generator.
func WithIDGenerator(ids IDGenerator) Option {
	return func(e *Engine) { e.ids = ids }
}

// WithClock replaces the wall clock, for reproducible timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(logger *zap.SugaredLogger, src source.GLDataSource, cfg anomaly.DetectionConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detection config: %w", err)
	}
	behaviorDetector, err := behavior.NewDetector(logger, cfg.BehavioralAnomalies, cfg.RoundNumbers, cfg.DuplicateDetection)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		logger:   logger,
		source:   src,
		cfg:      cfg,
		behavior: behaviorDetector,
		ids:      UUIDGenerator{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run executes one detection pass for a tenant over the filtered batch.
func (e *Engine) Run(ctx context.Context, tenantID string, filter model.Filter) (*anomaly.DetectionResult, error) {
	if filter.FiscalYear == 0 {
		return nil, ErrMissingFiscalYear
	}

	items, err := e.source.GetGLLineItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("GL data source fetch failed: %w", err)
	}

	result := &anomaly.DetectionResult{
		AnalysisID:     e.ids.NewID(),
		TenantID:       tenantID,
		Filter:         filter,
		GeneratedAt:    e.now(),
		TotalLineItems: len(items),
		AccountStats:   make(map[string]anomaly.AccountStats),
		Summary:        anomaly.Summary{CountsByType: make(map[anomaly.Type]int)},
	}
	if len(items) == 0 {
		e.logger.Infow("Detection run found no line items",
			"tenant_id", tenantID,
			"fiscal_year", filter.FiscalYear)
		return result, nil
	}

	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidLineItem, err)
		}
	}

	// One grouping pass; every detector sees the same account partition.
	byAccount := groupByAccount(items)
	accounts := sortedKeys(byAccount)

	detectedAt := e.now()
	var anomalies []anomaly.Anomaly

	if e.cfg.StatisticalOutliers.Enabled {
		for _, account := range accounts {
			observations := outlier.Detect(byAccount[account], e.cfg.StatisticalOutliers)
			if len(observations) > maxOutliersPerAccount {
				observations = observations[:maxOutliersPerAccount]
			}
			for _, obs := range observations {
				anomalies = append(anomalies, e.convertOutlier(obs, detectedAt))
			}
		}
	}

	if e.cfg.BenfordLaw.Enabled {
		for _, account := range accounts {
			res := benford.Analyze(account, byAccount[account], e.cfg.BenfordLaw)
			if res == nil || !res.IsAnomalous {
				continue
			}
			anomalies = append(anomalies, e.convertBenford(res, byAccount[account], detectedAt))
		}
	}

	if e.cfg.BehavioralAnomalies.Enabled || e.cfg.RoundNumbers.Enabled || e.cfg.DuplicateDetection.Enabled {
		for _, match := range e.behavior.Detect(items, byAccount) {
			anomalies = append(anomalies, e.convertBehavioral(match, detectedAt))
		}
	}

	if e.cfg.VelocityAnalysis.Enabled {
		for _, account := range accounts {
			observations := velocity.Analyze(account, byAccount[account], e.cfg.VelocityAnalysis)
			result.VelocityObservations = append(result.VelocityObservations, observations...)
			for _, obs := range observations {
				anomalies = append(anomalies, e.convertVelocity(obs, byAccount[account], detectedAt))
			}
		}
	}

	anomalies = dedupeAnomalies(anomalies)
	anomaly.SortAnomalies(anomalies)
	result.Anomalies = anomalies

	for _, account := range accounts {
		result.AccountStats[account] = computeAccountStats(account, byAccount[account], e.behavior.Location())
	}

	result.Summary = summarize(anomalies, len(items))

	e.logger.Infow("Detection run completed",
		"tenant_id", tenantID,
		"analysis_id", result.AnalysisID,
		"line_items", len(items),
		"accounts", len(accounts),
		"anomalies", len(anomalies),
		"fraud_risk", result.Summary.FraudRiskScore)

	return result, nil
}

func groupByAccount(items []model.LineItem) map[string][]model.LineItem {
	byAccount := make(map[string][]model.LineItem)
	for i := range items {
		byAccount[items[i].GLAccount] = append(byAccount[items[i].GLAccount], items[i])
	}
	return byAccount
}

func sortedKeys(byAccount map[string][]model.LineItem) []string {
	keys := make([]string, 0, len(byAccount))
	for key := range byAccount {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// dedupeAnomalies drops repeated emissions of the same finding: same
// type, account and contributing line items. First emission wins.
func dedupeAnomalies(anomalies []anomaly.Anomaly) []anomaly.Anomaly {
	seen := make(map[string]bool, len(anomalies))
	deduped := anomalies[:0]
	for _, a := range anomalies {
		keys := make([]string, len(a.LineItems))
		for i := range a.LineItems {
			keys[i] = a.LineItems[i].Key()
		}
		sort.Strings(keys)
		signature := string(a.Type) + "|" + a.GLAccount + "|" + strings.Join(keys, ",")
		if seen[signature] {
			continue
		}
		seen[signature] = true
		deduped = append(deduped, a)
	}
	return deduped
}

func summarize(anomalies []anomaly.Anomaly, totalItems int) anomaly.Summary {
	summary := anomaly.Summary{
		AnomaliesDetected: len(anomalies),
		CountsByType:      make(map[anomaly.Type]int),
	}
	for _, a := range anomalies {
		summary.CountsByType[a.Type]++
		switch a.Severity {
		case anomaly.SeverityCritical:
			summary.CriticalAnomalies++
		case anomaly.SeverityHigh:
			summary.HighAnomalies++
		case anomaly.SeverityMedium:
			summary.MediumAnomalies++
		default:
			summary.LowAnomalies++
		}
	}

	risk := float64(15*summary.CriticalAnomalies + 8*summary.HighAnomalies)
	if totalItems > 0 {
		rate := float64(len(anomalies)) / float64(totalItems)
		if rate > 0.10 {
			risk += 20
		} else if rate > 0.05 {
			risk += 10
		}
	}
	summary.FraudRiskScore = anomaly.ClampScore(risk)
	return summary
}

// computeAccountStats buckets the hour and weekday histograms in loc,
// the same zone the after-hours and weekend rules evaluate in, so the
// baseline agrees with the classification.
func computeAccountStats(account string, items []model.LineItem, loc *time.Location) anomaly.AccountStats {
	accountStats := anomaly.AccountStats{
		GLAccount:        account,
		TransactionCount: len(items),
	}
	if len(items) == 0 {
		return accountStats
	}
	accountStats.GLAccountName = items[0].GLAccountName

	values := make([]float64, len(items))
	userCounts := make(map[string]int)
	typeCounts := make(map[string]int)
	accountStats.MinAmount = items[0].AbsAmount()

	for i := range items {
		v := items[i].AbsAmount()
		values[i] = v
		accountStats.TotalAbsolute += v
		if items[i].DebitCredit == model.Credit {
			accountStats.TotalCredit += v
		} else {
			accountStats.TotalDebit += v
		}
		if v < accountStats.MinAmount {
			accountStats.MinAmount = v
		}
		if v > accountStats.MaxAmount {
			accountStats.MaxAmount = v
		}
		userCounts[items[i].PostedBy]++
		typeCounts[items[i].DocumentType]++
		local := items[i].PostingDate.In(loc)
		accountStats.PostingsByHour[local.Hour()]++
		accountStats.PostingsByDay[int(local.Weekday())]++
	}

	accountStats.MeanAmount = stats.Mean(values)
	accountStats.MedianAmount = stats.Median(values)
	accountStats.StdDevAmount = stats.StdDev(values)
	accountStats.TopUsers = topCounts(userCounts, topListSize)
	accountStats.TopDocumentTypes = topCounts(typeCounts, topListSize)
	return accountStats
}

// topCounts returns the n highest-count entries, count descending with
// name as tiebreak for determinism.
func topCounts(counts map[string]int, n int) []anomaly.NameCount {
	entries := make([]anomaly.NameCount, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, anomaly.NameCount{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
