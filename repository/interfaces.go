// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/wmjones/demand-planning-api/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// DailyAggregate is one per-date rollup row in item-aggregate mode. Collapsed
// dimensions carry the distinct values seen, concatenated in SQL.
type DailyAggregate struct {
	BusinessDate time.Time `gorm:"type:date"`
	TotalY05     *float64
	TotalY50     float64
	TotalY95     *float64
	States       *string
	DMAIDs       *string `gorm:"column:dma_ids"`
	DCIDs        *string `gorm:"column:dc_ids"`
}

// DashboardRow is one grouped total for the dashboard forecast.
type DashboardRow struct {
	BusinessDate time.Time `gorm:"type:date"`
	State        *string
	DMAID        *string `gorm:"column:dma_id"`
	DCID         *int64  `gorm:"column:dc_id"`
	TotalY50     float64
}

// DashboardSummary aggregates the whole dashboard selection.
type DashboardSummary struct {
	RecordCount int64
	AvgY50      *float64 `gorm:"column:avg_y_50"`
	MinY50      *float64 `gorm:"column:min_y_50"`
	MaxY50      *float64 `gorm:"column:max_y_50"`
}

// DateAverage is one point of the per-date average series.
type DateAverage struct {
	BusinessDate time.Time `gorm:"type:date"`
	AvgY50       float64   `gorm:"column:avg_y_50"`
}

// RawQueryResult holds the stringified output of a gated read-only query.
type RawQueryResult struct {
	Columns []string
	Rows    [][]string
}

// ForecastRepository defines read operations over the baseline forecast
type ForecastRepository interface {
	ByFilter(ctx context.Context, filter models.ForecastFilter) ([]*models.ForecastRow, error)
	AggregateByDate(ctx context.Context, filter models.ForecastFilter) ([]*DailyAggregate, error)
	DashboardRows(ctx context.Context, filter models.ForecastFilter) ([]*DashboardRow, error)
	DashboardSummary(ctx context.Context, filter models.ForecastFilter) (*DashboardSummary, error)
	SummaryByState(ctx context.Context, states []string) ([]*models.ForecastSummary, error)
	AveragesByDate(ctx context.Context, filter models.ForecastFilter) ([]*DateAverage, error)
	DistinctValues(ctx context.Context, dimension string) ([]string, error)
	ExecuteReadOnly(ctx context.Context, query string, timeout time.Duration) (*RawQueryResult, error)
	RefreshSummary(ctx context.Context) error
}

// AdjustmentRepository defines operations for forecast adjustments
type AdjustmentRepository interface {
	Repository[models.Adjustment, models.AdjustmentFilter]
	ActiveCandidates(ctx context.Context, filter models.ForecastFilter) ([]*models.Adjustment, error)
	UpdateIsActive(ctx context.Context, id uint, isActive bool) error
	Delete(ctx context.Context, id uint) error
}
