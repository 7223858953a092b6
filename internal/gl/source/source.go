package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Aidin1998/glsentinel/internal/gl/model"
)

// GLDataSource is the single upstream collaborator of the detection
// engine: one synchronous fetch of all line items matching a filter.
// Failures are propagated to the caller unchanged; the engine does not
// retry.
type GLDataSource interface {
	GetGLLineItems(ctx context.Context, filter model.Filter) ([]model.LineItem, error)
}

// GormSource serves line items from a relational gl_line_items table.
type GormSource struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewGormSource opens a database connection for the given driver and DSN.
// Supported drivers are "postgres" and "sqlite".
func NewGormSource(driver, dsn string, logger *zap.SugaredLogger) (*GormSource, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	return &GormSource{db: db, logger: logger}, nil
}

// GetGLLineItems fetches all line items matching the filter in one query.
func (s *GormSource) GetGLLineItems(ctx context.Context, filter model.Filter) ([]model.LineItem, error) {
	query := s.db.WithContext(ctx).
		Model(&model.LineItem{}).
		Where("fiscal_year = ?", filter.FiscalYear)

	if filter.FiscalPeriod != 0 {
		query = query.Where("fiscal_period = ?", filter.FiscalPeriod)
	}
	if filter.CompanyCode != "" {
		query = query.Where("company_code = ?", filter.CompanyCode)
	}
	if len(filter.GLAccounts) > 0 {
		query = query.Where("gl_account IN ?", filter.GLAccounts)
	}
	if filter.FromDate != nil {
		query = query.Where("posting_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("posting_date <= ?", *filter.ToDate)
	}

	var items []model.LineItem
	if err := query.Order("document_number, line_number").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch GL line items: %w", err)
	}

	s.logger.Debugw("Fetched GL line items",
		"fiscal_year", filter.FiscalYear,
		"count", len(items))

	return items, nil
}

// Migrate creates the gl_line_items table when it does not exist yet.
func (s *GormSource) Migrate() error {
	return s.db.AutoMigrate(&model.LineItem{})
}

// StaticSource serves a fixed in-memory batch. Used by tests and by
// file-fed CLI runs.
type StaticSource struct {
	items []model.LineItem
	err   error
}

// NewStaticSource creates a source backed by the given slice.
func NewStaticSource(items []model.LineItem) *StaticSource {
	return &StaticSource{items: items}
}

// NewFailingSource creates a source whose fetch always fails with err.
func NewFailingSource(err error) *StaticSource {
	return &StaticSource{err: err}
}

// GetGLLineItems returns the subset of the static batch matching the filter.
func (s *StaticSource) GetGLLineItems(ctx context.Context, filter model.Filter) ([]model.LineItem, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var matched []model.LineItem
	for i := range s.items {
		if filter.Matches(&s.items[i]) {
			matched = append(matched, s.items[i])
		}
	}
	return matched, nil
}
