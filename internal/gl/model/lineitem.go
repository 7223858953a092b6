package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DebitCredit indicates the posting side of a line item
type DebitCredit string

const (
	Debit  DebitCredit = "DEBIT"
	Credit DebitCredit = "CREDIT"
)

// LineItem represents one posted general-ledger line item. Instances are
// immutable once fetched; detectors never modify them.
type LineItem struct {
	DocumentNumber         string          `json:"document_number" gorm:"column:document_number;index:idx_document"`
	LineNumber             int             `json:"line_number" gorm:"column:line_number"`
	GLAccount              string          `json:"gl_account" gorm:"column:gl_account;index:idx_account"`
	GLAccountName          string          `json:"gl_account_name" gorm:"column:gl_account_name"`
	CompanyCode            string          `json:"company_code" gorm:"column:company_code"`
	FiscalYear             int             `json:"fiscal_year" gorm:"column:fiscal_year;index:idx_fiscal"`
	FiscalPeriod           int             `json:"fiscal_period" gorm:"column:fiscal_period;index:idx_fiscal"`
	PostingDate            time.Time       `json:"posting_date" gorm:"column:posting_date"`
	DocumentDate           time.Time       `json:"document_date" gorm:"column:document_date"`
	Amount                 decimal.Decimal `json:"amount" gorm:"column:amount;type:decimal(23,2)"`
	Currency               string          `json:"currency" gorm:"column:currency"`
	DebitCredit            DebitCredit     `json:"debit_credit" gorm:"column:debit_credit"`
	DocumentType           string          `json:"document_type" gorm:"column:document_type"`
	Reference              string          `json:"reference" gorm:"column:reference"`
	PostedBy               string          `json:"posted_by" gorm:"column:posted_by"`
	PostedByName           string          `json:"posted_by_name" gorm:"column:posted_by_name"`
	ReversalDocumentNumber string          `json:"reversal_document_number,omitempty" gorm:"column:reversal_document_number"`
	IsReversal             bool            `json:"is_reversal" gorm:"column:is_reversal"`
}

// TableName sets the gorm table name for line items
func (LineItem) TableName() string {
	return "gl_line_items"
}

// Key returns the unique document/line identifier of the item
func (li *LineItem) Key() string {
	return fmt.Sprintf("%s/%d", li.DocumentNumber, li.LineNumber)
}

// AbsAmount returns the absolute amount as a float for statistics
func (li *LineItem) AbsAmount() float64 {
	return li.Amount.Abs().InexactFloat64()
}

// Validate checks the fields every detector relies on. The engine
// validates eagerly, before any detector sees the batch.
func (li *LineItem) Validate() error {
	if li.DocumentNumber == "" {
		return fmt.Errorf("line item missing document number")
	}
	if li.GLAccount == "" {
		return fmt.Errorf("line item %s missing GL account", li.Key())
	}
	if li.PostingDate.IsZero() {
		return fmt.Errorf("line item %s missing posting date", li.Key())
	}
	if li.Currency == "" {
		return fmt.Errorf("line item %s missing currency", li.Key())
	}
	if li.FiscalYear == 0 {
		return fmt.Errorf("line item %s missing fiscal year", li.Key())
	}
	return nil
}

// Filter selects the line items for one detection run. FiscalYear is
// mandatory; everything else narrows the result set.
type Filter struct {
	GLAccounts   []string   `json:"gl_accounts,omitempty"`
	FiscalYear   int        `json:"fiscal_year"`
	FiscalPeriod int        `json:"fiscal_period,omitempty"`
	FromDate     *time.Time `json:"from_date,omitempty"`
	ToDate       *time.Time `json:"to_date,omitempty"`
	CompanyCode  string     `json:"company_code,omitempty"`
}

// Matches reports whether an item satisfies the filter. Used by the
// in-memory source; the gorm source translates the same predicate to SQL.
func (f *Filter) Matches(li *LineItem) bool {
	if li.FiscalYear != f.FiscalYear {
		return false
	}
	if f.FiscalPeriod != 0 && li.FiscalPeriod != f.FiscalPeriod {
		return false
	}
	if f.CompanyCode != "" && li.CompanyCode != f.CompanyCode {
		return false
	}
	if f.FromDate != nil && li.PostingDate.Before(*f.FromDate) {
		return false
	}
	if f.ToDate != nil && li.PostingDate.After(*f.ToDate) {
		return false
	}
	if len(f.GLAccounts) > 0 {
		found := false
		for _, acct := range f.GLAccounts {
			if acct == li.GLAccount {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
