package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validItem() LineItem {
	return LineItem{
		DocumentNumber: "100000123",
		LineNumber:     2,
		GLAccount:      "400000",
		GLAccountName:  "Travel Expenses",
		CompanyCode:    "1000",
		FiscalYear:     2025,
		FiscalPeriod:   3,
		PostingDate:    time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC),
		DocumentDate:   time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewFromFloat(-1234.56),
		Currency:       "EUR",
		DebitCredit:    Credit,
		DocumentType:   "KR",
		PostedBy:       "jdoe",
	}
}

func TestKey(t *testing.T) {
	item := validItem()
	assert.Equal(t, "100000123/2", item.Key())
}

func TestAbsAmount(t *testing.T) {
	item := validItem()
	assert.Equal(t, 1234.56, item.AbsAmount())
}

func TestValidate(t *testing.T) {
	item := validItem()
	assert.NoError(t, item.Validate())

	tests := []struct {
		name   string
		mutate func(*LineItem)
	}{
		{"missing document number", func(li *LineItem) { li.DocumentNumber = "" }},
		{"missing GL account", func(li *LineItem) { li.GLAccount = "" }},
		{"missing posting date", func(li *LineItem) { li.PostingDate = time.Time{} }},
		{"missing currency", func(li *LineItem) { li.Currency = "" }},
		{"missing fiscal year", func(li *LineItem) { li.FiscalYear = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := validItem()
			tt.mutate(&item)
			assert.Error(t, item.Validate())
		})
	}
}

func TestFilterMatches(t *testing.T) {
	item := validItem()

	assert.True(t, (&Filter{FiscalYear: 2025}).Matches(&item))
	assert.False(t, (&Filter{FiscalYear: 2024}).Matches(&item))

	assert.True(t, (&Filter{FiscalYear: 2025, FiscalPeriod: 3}).Matches(&item))
	assert.False(t, (&Filter{FiscalYear: 2025, FiscalPeriod: 4}).Matches(&item))

	assert.True(t, (&Filter{FiscalYear: 2025, CompanyCode: "1000"}).Matches(&item))
	assert.False(t, (&Filter{FiscalYear: 2025, CompanyCode: "2000"}).Matches(&item))

	assert.True(t, (&Filter{FiscalYear: 2025, GLAccounts: []string{"999999", "400000"}}).Matches(&item))
	assert.False(t, (&Filter{FiscalYear: 2025, GLAccounts: []string{"999999"}}).Matches(&item))

	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)
	assert.True(t, (&Filter{FiscalYear: 2025, FromDate: &from, ToDate: &to}).Matches(&item))

	lateFrom := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	assert.False(t, (&Filter{FiscalYear: 2025, FromDate: &lateFrom}).Matches(&item))

	earlyTo := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, (&Filter{FiscalYear: 2025, ToDate: &earlyTo}).Matches(&item))
}
