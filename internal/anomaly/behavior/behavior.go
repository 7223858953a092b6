// Package behavior implements the rule-based checks that are
// independent of statistical distribution: after-hours postings,
// weekend postings, same-day reversals, round-number patterns and
// near-duplicate entries.
package behavior

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// behavioralRule is one isolated check. Rules run sequentially; each
// sees the full batch plus the shared account index.
type behavioralRule struct {
	name    string
	enabled bool
	run     func(items []model.LineItem, byAccount map[string][]model.LineItem) []anomaly.BehavioralMatch
}

// Detector evaluates behavioral rules over a batch of line items. Each
// rule is independently toggleable; a panic inside one rule is recovered
// and logged so the remaining rules still run.
type Detector struct {
	logger   *zap.SugaredLogger
	cfg      anomaly.BehaviorConfig
	roundCfg anomaly.RoundNumberConfig
	dupCfg   anomaly.DuplicateConfig
	location *time.Location
	rules    []behavioralRule
}

// NewDetector resolves the configured timezone and builds a detector.
func NewDetector(logger *zap.SugaredLogger, cfg anomaly.BehaviorConfig, roundCfg anomaly.RoundNumberConfig, dupCfg anomaly.DuplicateConfig) (*Detector, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid behavioral timezone %q: %w", cfg.Timezone, err)
	}
	d := &Detector{
		logger:   logger,
		cfg:      cfg,
		roundCfg: roundCfg,
		dupCfg:   dupCfg,
		location: loc,
	}
	d.rules = []behavioralRule{
		{"after_hours", cfg.Enabled && cfg.CheckAfterHours, func(items []model.LineItem, _ map[string][]model.LineItem) []anomaly.BehavioralMatch {
			return d.detectAfterHours(items)
		}},
		{"weekend", cfg.Enabled && cfg.CheckWeekends, func(items []model.LineItem, _ map[string][]model.LineItem) []anomaly.BehavioralMatch {
			return d.detectWeekend(items)
		}},
		{"same_day_reversal", cfg.Enabled && cfg.CheckReversals, func(items []model.LineItem, _ map[string][]model.LineItem) []anomaly.BehavioralMatch {
			return d.detectSameDayReversals(items)
		}},
		{"round_numbers", roundCfg.Enabled, func(_ []model.LineItem, byAccount map[string][]model.LineItem) []anomaly.BehavioralMatch {
			return d.detectRoundNumbers(byAccount)
		}},
		{"duplicates", dupCfg.Enabled, func(_ []model.LineItem, byAccount map[string][]model.LineItem) []anomaly.BehavioralMatch {
			return d.detectDuplicates(byAccount)
		}},
	}
	return d, nil
}

// Location returns the timezone the time-based rules evaluate in.
func (d *Detector) Location() *time.Location {
	return d.location
}

// Detect runs all enabled rules over the batch. byAccount is the shared
// account index built by the orchestrator; items is the full batch in
// fetch order.
func (d *Detector) Detect(items []model.LineItem, byAccount map[string][]model.LineItem) []anomaly.BehavioralMatch {
	var matches []anomaly.BehavioralMatch
	for _, r := range d.rules {
		if !r.enabled {
			continue
		}
		rule := r
		matches = append(matches, d.runRule(rule.name, func() []anomaly.BehavioralMatch {
			return rule.run(items, byAccount)
		})...)
	}
	return matches
}

// runRule isolates one rule so a panic cannot abort the other rules.
func (d *Detector) runRule(name string, rule func() []anomaly.BehavioralMatch) (matches []anomaly.BehavioralMatch) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warnw("Behavioral rule panicked, skipping its output",
				"rule", name,
				"panic", r)
			matches = nil
		}
	}()
	return rule()
}

// inAfterHoursWindow reports whether hour falls in [start,end), where
// the window may wrap past midnight.
func inAfterHoursWindow(hour, start, end int) bool {
	if start <= end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// detectAfterHours flags postings whose local time falls in the
// configured window. Date-only postings carry a midnight clock with no
// real posting time to judge, so the rule skips them.
func (d *Detector) detectAfterHours(items []model.LineItem) []anomaly.BehavioralMatch {
	var matches []anomaly.BehavioralMatch
	for i := range items {
		posted := items[i].PostingDate
		if posted.Hour() == 0 && posted.Minute() == 0 && posted.Second() == 0 && posted.Nanosecond() == 0 {
			continue
		}
		local := posted.In(d.location)
		if !inAfterHoursWindow(local.Hour(), d.cfg.AfterHoursStart, d.cfg.AfterHoursEnd) {
			continue
		}
		matches = append(matches, anomaly.BehavioralMatch{
			Type:       anomaly.TypeAfterHoursPosting,
			GLAccount:  items[i].GLAccount,
			Items:      []model.LineItem{items[i]},
			Severity:   anomaly.SeverityMedium,
			Score:      50,
			Confidence: 60,
			Detail: fmt.Sprintf("Posting at %02d:%02d is outside business hours",
				local.Hour(), local.Minute()),
			Evidence: map[string]interface{}{
				"posting_hour":      local.Hour(),
				"after_hours_start": d.cfg.AfterHoursStart,
				"after_hours_end":   d.cfg.AfterHoursEnd,
				"timezone":          d.cfg.Timezone,
				"posted_by":         items[i].PostedBy,
			},
		})
	}
	return matches
}

func (d *Detector) detectWeekend(items []model.LineItem) []anomaly.BehavioralMatch {
	var matches []anomaly.BehavioralMatch
	for i := range items {
		local := items[i].PostingDate.In(d.location)
		day := local.Weekday()
		if day != time.Saturday && day != time.Sunday {
			continue
		}
		matches = append(matches, anomaly.BehavioralMatch{
			Type:       anomaly.TypeWeekendPosting,
			GLAccount:  items[i].GLAccount,
			Items:      []model.LineItem{items[i]},
			Severity:   anomaly.SeverityMedium,
			Score:      45,
			Confidence: 60,
			Detail:     fmt.Sprintf("Posting on %s", day),
			Evidence: map[string]interface{}{
				"weekday":   day.String(),
				"timezone":  d.cfg.Timezone,
				"posted_by": items[i].PostedBy,
			},
		})
	}
	return matches
}

func (d *Detector) detectSameDayReversals(items []model.LineItem) []anomaly.BehavioralMatch {
	// Index originals by document number for reversal lookup.
	byDocument := make(map[string][]model.LineItem)
	for i := range items {
		byDocument[items[i].DocumentNumber] = append(byDocument[items[i].DocumentNumber], items[i])
	}

	var matches []anomaly.BehavioralMatch
	for i := range items {
		reversing := items[i]
		if reversing.ReversalDocumentNumber == "" {
			continue
		}
		originals, ok := byDocument[reversing.ReversalDocumentNumber]
		if !ok {
			continue
		}
		for _, original := range originals {
			if !original.PostingDate.Before(reversing.PostingDate) {
				continue
			}
			elapsed := reversing.PostingDate.Sub(original.PostingDate)
			if elapsed > d.cfg.SameDayReversalWindow {
				continue
			}
			matches = append(matches, anomaly.BehavioralMatch{
				Type:       anomaly.TypeSameDayReversal,
				GLAccount:  reversing.GLAccount,
				Items:      []model.LineItem{original, reversing},
				Severity:   anomaly.SeverityHigh,
				Score:      70,
				Confidence: 85,
				Detail: fmt.Sprintf("Document %s reversed by %s within %.1f hours",
					original.DocumentNumber, reversing.DocumentNumber, elapsed.Hours()),
				Evidence: map[string]interface{}{
					"original_document":  original.DocumentNumber,
					"reversing_document": reversing.DocumentNumber,
					"hours_elapsed":      elapsed.Hours(),
					"amount":             original.Amount.String(),
				},
			})
		}
	}
	return matches
}

func (d *Detector) detectRoundNumbers(byAccount map[string][]model.LineItem) []anomaly.BehavioralMatch {
	accounts := sortedAccounts(byAccount)

	var matches []anomaly.BehavioralMatch
	for _, account := range accounts {
		var hits []model.LineItem
		for _, item := range byAccount[account] {
			amount := item.Amount.Abs().InexactFloat64()
			for _, threshold := range d.roundCfg.Thresholds {
				if amount == threshold {
					hits = append(hits, item)
					break
				}
			}
		}
		if len(hits) < d.roundCfg.MinOccurrences {
			continue
		}
		score := anomaly.ClampScore(float64(len(hits)) * 10)
		matches = append(matches, anomaly.BehavioralMatch{
			Type:       anomaly.TypeRoundNumberPattern,
			GLAccount:  account,
			Items:      hits,
			Severity:   anomaly.SeverityMedium,
			Score:      score,
			Confidence: anomaly.ClampScore(40 + float64(len(hits))*10),
			Detail: fmt.Sprintf("Account %s has %d postings at exact round amounts",
				account, len(hits)),
			Evidence: map[string]interface{}{
				"occurrences":     len(hits),
				"min_occurrences": d.roundCfg.MinOccurrences,
				"thresholds":      d.roundCfg.Thresholds,
			},
		})
	}
	return matches
}

func (d *Detector) detectDuplicates(byAccount map[string][]model.LineItem) []anomaly.BehavioralMatch {
	accounts := sortedAccounts(byAccount)

	var matches []anomaly.BehavioralMatch
	for _, account := range accounts {
		items := make([]model.LineItem, len(byAccount[account]))
		copy(items, byAccount[account])
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PostingDate.Before(items[j].PostingDate)
		})

		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				gap := items[j].PostingDate.Sub(items[i].PostingDate)
				if gap > d.dupCfg.TimeWindow {
					break
				}
				if items[i].DocumentNumber == items[j].DocumentNumber {
					continue
				}
				if !amountsMatch(items[i].AbsAmount(), items[j].AbsAmount(), d.dupCfg.AmountTolerance) {
					continue
				}
				similarity := referenceSimilarity(items[i].Reference, items[j].Reference)
				matches = append(matches, anomaly.BehavioralMatch{
					Type:       anomaly.TypeDuplicateEntry,
					GLAccount:  account,
					Items:      []model.LineItem{items[i], items[j]},
					Severity:   anomaly.SeverityHigh,
					Score:      65,
					Confidence: anomaly.ClampScore(60 + similarity*0.4),
					Detail: fmt.Sprintf("Documents %s and %s posted %.1f hours apart with matching amounts",
						items[i].DocumentNumber, items[j].DocumentNumber, gap.Hours()),
					Evidence: map[string]interface{}{
						"first_document":       items[i].DocumentNumber,
						"second_document":      items[j].DocumentNumber,
						"hours_apart":          gap.Hours(),
						"first_amount":         items[i].Amount.String(),
						"second_amount":        items[j].Amount.String(),
						"reference_similarity": similarity,
					},
				})
			}
		}
	}
	return matches
}

// amountsMatch reports whether two absolute amounts are equal within the
// tolerance fraction of the larger amount.
func amountsMatch(a, b, tolerance float64) bool {
	if a == b {
		return true
	}
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return true
	}
	return math.Abs(a-b)/larger <= tolerance
}

// referenceSimilarity returns a 0-100 similarity of two reference texts
// based on normalized edit distance. Attached as supporting evidence on
// duplicate pairs; it never gates the match itself.
func referenceSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 100
	}
	distance := levenshtein.ComputeDistance(a, b)
	return anomaly.ClampScore((1 - float64(distance)/float64(longest)) * 100)
}

// sortedAccounts returns account keys in deterministic order.
func sortedAccounts(byAccount map[string][]model.LineItem) []string {
	accounts := make([]string, 0, len(byAccount))
	for account := range byAccount {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts
}
