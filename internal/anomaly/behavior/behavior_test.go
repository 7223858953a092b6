package behavior

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Aidin1998/glsentinel/internal/anomaly"
	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

func defaultBehaviorConfig() anomaly.BehaviorConfig {
	return anomaly.BehaviorConfig{
		Enabled:               true,
		Timezone:              "UTC",
		CheckAfterHours:       true,
		AfterHoursStart:       19,
		AfterHoursEnd:         7,
		CheckWeekends:         true,
		CheckReversals:        true,
		SameDayReversalWindow: 24 * time.Hour,
	}
}

func defaultRoundConfig() anomaly.RoundNumberConfig {
	return anomaly.RoundNumberConfig{Enabled: true, Thresholds: []float64{1000, 5000, 10000}, MinOccurrences: 5}
}

func defaultDupConfig() anomaly.DuplicateConfig {
	return anomaly.DuplicateConfig{Enabled: true, TimeWindow: 24 * time.Hour, AmountTolerance: 0.01}
}

func newTestDetector(t *testing.T, cfg anomaly.BehaviorConfig, roundCfg anomaly.RoundNumberConfig, dupCfg anomaly.DuplicateConfig) *Detector {
	t.Helper()
	d, err := NewDetector(zaptest.NewLogger(t).Sugar(), cfg, roundCfg, dupCfg)
	require.NoError(t, err)
	return d
}

func item(doc, account string, posted time.Time, amount float64) model.LineItem {
	return model.LineItem{
		DocumentNumber: doc,
		LineNumber:     1,
		GLAccount:      account,
		FiscalYear:     posted.Year(),
		FiscalPeriod:   int(posted.Month()),
		PostingDate:    posted,
		Amount:         decimal.NewFromFloat(amount),
		Currency:       "EUR",
		PostedBy:       "jdoe",
	}
}

func matchesOfType(matches []anomaly.BehavioralMatch, t anomaly.Type) []anomaly.BehavioralMatch {
	var filtered []anomaly.BehavioralMatch
	for _, m := range matches {
		if m.Type == t {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func detect(d *Detector, items []model.LineItem) []anomaly.BehavioralMatch {
	byAccount := make(map[string][]model.LineItem)
	for i := range items {
		byAccount[items[i].GLAccount] = append(byAccount[items[i].GLAccount], items[i])
	}
	return d.Detect(items, byAccount)
}

func TestNewDetectorRejectsInvalidTimezone(t *testing.T) {
	cfg := defaultBehaviorConfig()
	cfg.Timezone = "Not/AZone"
	_, err := NewDetector(zaptest.NewLogger(t).Sugar(), cfg, defaultRoundConfig(), defaultDupConfig())
	assert.Error(t, err)
}

func TestInAfterHoursWindowWraparound(t *testing.T) {
	// Window [19,7) wraps past midnight.
	assert.True(t, inAfterHoursWindow(19, 19, 7))
	assert.True(t, inAfterHoursWindow(22, 19, 7))
	assert.True(t, inAfterHoursWindow(0, 19, 7))
	assert.True(t, inAfterHoursWindow(6, 19, 7))
	assert.False(t, inAfterHoursWindow(7, 19, 7))
	assert.False(t, inAfterHoursWindow(10, 19, 7))
	assert.False(t, inAfterHoursWindow(18, 19, 7))

	// Non-wrapping window.
	assert.True(t, inAfterHoursWindow(2, 1, 5))
	assert.False(t, inAfterHoursWindow(6, 1, 5))
}

func TestDetectAfterHours(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	// Monday 22:30 is after hours; Monday 10:00 is not.
	late := item("DOC-1", "400000", time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC), 250)
	normal := item("DOC-2", "400000", time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), 250)

	matches := matchesOfType(detect(d, []model.LineItem{late, normal}), anomaly.TypeAfterHoursPosting)
	require.Len(t, matches, 1)
	assert.Equal(t, "DOC-1", matches[0].Items[0].DocumentNumber)
	assert.Equal(t, 22, matches[0].Evidence["posting_hour"])
}

func TestDetectAfterHoursUsesConfiguredTimezone(t *testing.T) {
	cfg := defaultBehaviorConfig()
	cfg.Timezone = "Europe/Berlin"
	d := newTestDetector(t, cfg, defaultRoundConfig(), defaultDupConfig())

	// 18:30 UTC on a March Monday is 19:30 in Berlin: after hours there,
	// not in UTC.
	posting := item("DOC-1", "400000", time.Date(2025, 3, 10, 18, 30, 0, 0, time.UTC), 250)
	matches := matchesOfType(detect(d, []model.LineItem{posting}), anomaly.TypeAfterHoursPosting)
	require.Len(t, matches, 1)
	assert.Equal(t, 19, matches[0].Evidence["posting_hour"])
}

func TestDetectAfterHoursSkipsDateOnlyPostings(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	// A date-only posting lands at midnight; there is no posting time to
	// judge, even though hour 0 sits inside the wrapped window.
	dateOnly := item("DOC-1", "400000", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 250)
	justPastMidnight := item("DOC-2", "400000", time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC), 250)

	matches := matchesOfType(detect(d, []model.LineItem{dateOnly, justPastMidnight}), anomaly.TypeAfterHoursPosting)
	require.Len(t, matches, 1)
	assert.Equal(t, "DOC-2", matches[0].Items[0].DocumentNumber)
}

func TestRulePanicDoesNotAbortOtherRules(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())
	d.rules = append([]behavioralRule{{
		name:    "exploding",
		enabled: true,
		run: func([]model.LineItem, map[string][]model.LineItem) []anomaly.BehavioralMatch {
			panic("rule blew up")
		},
	}}, d.rules...)

	late := item("DOC-1", "400000", time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC), 250)
	matches := detect(d, []model.LineItem{late})

	assert.Len(t, matchesOfType(matches, anomaly.TypeAfterHoursPosting), 1)
}

func TestDetectWeekend(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	saturday := item("DOC-1", "400000", time.Date(2025, 3, 8, 11, 0, 0, 0, time.UTC), 250)
	wednesday := item("DOC-2", "400000", time.Date(2025, 3, 12, 11, 0, 0, 0, time.UTC), 250)

	matches := matchesOfType(detect(d, []model.LineItem{saturday, wednesday}), anomaly.TypeWeekendPosting)
	require.Len(t, matches, 1)
	assert.Equal(t, "DOC-1", matches[0].Items[0].DocumentNumber)
	assert.Equal(t, "Saturday", matches[0].Evidence["weekday"])
}

func TestDetectSameDayReversal(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	original := item("DOC-1", "400000", time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), 1200)
	reversing := item("DOC-2", "400000", time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC), -1200)
	reversing.ReversalDocumentNumber = "DOC-1"
	reversing.IsReversal = true

	matches := matchesOfType(detect(d, []model.LineItem{original, reversing}), anomaly.TypeSameDayReversal)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Items, 2)
	assert.Equal(t, "DOC-1", matches[0].Items[0].DocumentNumber)
	assert.Equal(t, "DOC-2", matches[0].Items[1].DocumentNumber)
	assert.Equal(t, anomaly.SeverityHigh, matches[0].Severity)
	assert.Equal(t, 85.0, matches[0].Confidence)
}

func TestDetectReversalOutsideWindowIgnored(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	original := item("DOC-1", "400000", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), 1200)
	reversing := item("DOC-2", "400000", time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC), -1200)
	reversing.ReversalDocumentNumber = "DOC-1"

	matches := matchesOfType(detect(d, []model.LineItem{original, reversing}), anomaly.TypeSameDayReversal)
	assert.Empty(t, matches)
}

func TestDetectRoundNumbers(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	base := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	var items []model.LineItem
	for i := 0; i < 5; i++ {
		items = append(items, item("RN-"+string(rune('A'+i)), "500000", base.AddDate(0, 0, i*3), 5000))
	}
	// Near-round amounts do not count: equality is exact.
	items = append(items, item("RN-X", "500000", base, 4999.99))

	matches := matchesOfType(detect(d, items), anomaly.TypeRoundNumberPattern)
	require.Len(t, matches, 1)
	assert.Equal(t, "500000", matches[0].GLAccount)
	assert.Len(t, matches[0].Items, 5)
	assert.Equal(t, 5, matches[0].Evidence["occurrences"])
}

func TestDetectRoundNumbersBelowMinOccurrences(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	base := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	var items []model.LineItem
	for i := 0; i < 4; i++ {
		items = append(items, item("RN-"+string(rune('A'+i)), "500000", base.AddDate(0, 0, i*5), 1000))
	}
	matches := matchesOfType(detect(d, items), anomaly.TypeRoundNumberPattern)
	assert.Empty(t, matches)
}

func TestDetectDuplicates(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	first := item("DOC-1", "400000", time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), 842.50)
	second := item("DOC-2", "400000", time.Date(2025, 3, 12, 11, 0, 0, 0, time.UTC), 842.50)
	first.Reference = "INV-20250312"
	second.Reference = "INV-20250312"

	matches := matchesOfType(detect(d, []model.LineItem{first, second}), anomaly.TypeDuplicateEntry)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Items, 2)
	assert.Equal(t, 100.0, matches[0].Evidence["reference_similarity"])
	// Identical references push confidence to the ceiling.
	assert.Equal(t, 100.0, matches[0].Confidence)
}

func TestDetectDuplicatesOutsideTimeWindow(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	first := item("DOC-1", "400000", time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), 842.50)
	second := item("DOC-2", "400000", time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC), 842.50)

	matches := matchesOfType(detect(d, []model.LineItem{first, second}), anomaly.TypeDuplicateEntry)
	assert.Empty(t, matches)
}

func TestDetectDuplicatesWithinTolerance(t *testing.T) {
	d := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())

	first := item("DOC-1", "400000", time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC), 1000)
	second := item("DOC-2", "400000", time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC), 1005)

	// 0.5% difference is within the 1% tolerance.
	matches := matchesOfType(detect(d, []model.LineItem{first, second}), anomaly.TypeDuplicateEntry)
	assert.Len(t, matches, 1)
}

func TestRuleIndependence(t *testing.T) {
	// Disabling the weekend check must not change the other rules'
	// matches.
	late := item("DOC-1", "400000", time.Date(2025, 3, 8, 22, 30, 0, 0, time.UTC), 250)

	all := newTestDetector(t, defaultBehaviorConfig(), defaultRoundConfig(), defaultDupConfig())
	allMatches := detect(all, []model.LineItem{late})
	require.Len(t, matchesOfType(allMatches, anomaly.TypeWeekendPosting), 1)
	require.Len(t, matchesOfType(allMatches, anomaly.TypeAfterHoursPosting), 1)

	cfg := defaultBehaviorConfig()
	cfg.CheckWeekends = false
	partial := newTestDetector(t, cfg, defaultRoundConfig(), defaultDupConfig())
	partialMatches := detect(partial, []model.LineItem{late})
	assert.Empty(t, matchesOfType(partialMatches, anomaly.TypeWeekendPosting))
	assert.Len(t, matchesOfType(partialMatches, anomaly.TypeAfterHoursPosting), 1)
}

func TestReferenceSimilarity(t *testing.T) {
	assert.Equal(t, 100.0, referenceSimilarity("", ""))
	assert.Equal(t, 100.0, referenceSimilarity("INV-1", "INV-1"))
	assert.Equal(t, 0.0, referenceSimilarity("abcd", "wxyz"))
	assert.InDelta(t, 80.0, referenceSimilarity("INV-1", "INV-2"), 1e-9)
}
