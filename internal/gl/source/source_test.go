package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

func fixtureItems() []model.LineItem {
	posted := func(day int) time.Time {
		return time.Date(2025, 3, day, 10, 0, 0, 0, time.UTC)
	}
	return []model.LineItem{
		{DocumentNumber: "D-1", LineNumber: 1, GLAccount: "400000", CompanyCode: "1000", FiscalYear: 2025, FiscalPeriod: 3, PostingDate: posted(5), Amount: decimal.NewFromInt(100), Currency: "EUR"},
		{DocumentNumber: "D-2", LineNumber: 1, GLAccount: "500000", CompanyCode: "1000", FiscalYear: 2025, FiscalPeriod: 3, PostingDate: posted(12), Amount: decimal.NewFromInt(200), Currency: "EUR"},
		{DocumentNumber: "D-3", LineNumber: 1, GLAccount: "400000", CompanyCode: "2000", FiscalYear: 2025, FiscalPeriod: 4, PostingDate: time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(300), Currency: "EUR"},
		{DocumentNumber: "D-4", LineNumber: 1, GLAccount: "400000", CompanyCode: "1000", FiscalYear: 2024, FiscalPeriod: 3, PostingDate: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), Amount: decimal.NewFromInt(400), Currency: "EUR"},
	}
}

func TestStaticSourceFiltersByFiscalYear(t *testing.T) {
	src := NewStaticSource(fixtureItems())
	items, err := src.GetGLLineItems(context.Background(), model.Filter{FiscalYear: 2025})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestStaticSourceFiltersByAccountAndPeriod(t *testing.T) {
	src := NewStaticSource(fixtureItems())

	items, err := src.GetGLLineItems(context.Background(), model.Filter{
		FiscalYear: 2025,
		GLAccounts: []string{"400000"},
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, err = src.GetGLLineItems(context.Background(), model.Filter{
		FiscalYear:   2025,
		FiscalPeriod: 3,
		CompanyCode:  "1000",
	})
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStaticSourceEmptyResult(t *testing.T) {
	src := NewStaticSource(fixtureItems())
	items, err := src.GetGLLineItems(context.Background(), model.Filter{FiscalYear: 2030})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFailingSource(t *testing.T) {
	fetchErr := errors.New("connection refused")
	src := NewFailingSource(fetchErr)
	_, err := src.GetGLLineItems(context.Background(), model.Filter{FiscalYear: 2025})
	assert.ErrorIs(t, err, fetchErr)
}

func TestStaticSourceHonorsContext(t *testing.T) {
	src := NewStaticSource(fixtureItems())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.GetGLLineItems(ctx, model.Filter{FiscalYear: 2025})
	assert.ErrorIs(t, err, context.Canceled)
}
