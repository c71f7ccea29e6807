package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/utils"
	"gorm.io/gorm"
)

// ErrUnknownDimension is returned when a distinct-value query names a column
// outside the whitelist.
var ErrUnknownDimension = fmt.Errorf("unknown dimension")

// ForecastRepositoryImpl implements the ForecastRepository interface
type ForecastRepositoryImpl struct {
	*BaseRepository[models.ForecastRow, models.ForecastFilter]
}

// NewForecastRepository creates a new forecast repository
func NewForecastRepository(db *gorm.DB) ForecastRepository {
	return &ForecastRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ForecastRow, models.ForecastFilter](db),
	}
}

// ByFilter retrieves baseline rows matching the filter, newest business date
// first so a truncating cap keeps the most recent window. Queries without an
// explicit limit are capped at the default.
func (r *ForecastRepositoryImpl) ByFilter(ctx context.Context, filter models.ForecastFilter) ([]*models.ForecastRow, error) {
	db := r.getDB(ctx)

	limit := filter.Limit
	if limit <= 0 {
		limit = utils.DefaultForecastRowLimit
	}
	if limit > utils.MaxForecastRowLimit {
		limit = utils.MaxForecastRowLimit
	}

	var rows []*models.ForecastRow
	err := r.applyFilter(db, filter).
		Order("business_date DESC, id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// AggregateByDate rolls the filtered baseline up per business date, summing
// the quantiles and concatenating the distinct values of collapsed dimensions.
func (r *ForecastRepositoryImpl) AggregateByDate(ctx context.Context, filter models.ForecastFilter) ([]*DailyAggregate, error) {
	db := r.getDB(ctx)

	var aggregates []*DailyAggregate
	err := r.applyFilter(db.Model(&models.ForecastRow{}), filter).
		Select(`business_date,
			SUM(y_05) AS total_y05,
			SUM(y_50) AS total_y50,
			SUM(y_95) AS total_y95,
			STRING_AGG(DISTINCT state, ',' ORDER BY state) AS states,
			STRING_AGG(DISTINCT dma_id, ',' ORDER BY dma_id) AS dma_ids,
			STRING_AGG(DISTINCT dc_id::text, ',' ORDER BY dc_id::text) AS dc_ids`).
		Group("business_date").
		Order("business_date ASC").
		Scan(&aggregates).Error
	if err != nil {
		return nil, err
	}

	return aggregates, nil
}

// DashboardRows returns per-(date, state, dma, dc) median totals for the
// dashboard view.
func (r *ForecastRepositoryImpl) DashboardRows(ctx context.Context, filter models.ForecastFilter) ([]*DashboardRow, error) {
	db := r.getDB(ctx)

	var rows []*DashboardRow
	err := r.applyFilter(db.Model(&models.ForecastRow{}), filter).
		Select("business_date, state, dma_id, dc_id, SUM(y_50) AS total_y50").
		Group("business_date, state, dma_id, dc_id").
		Order("business_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// DashboardSummary aggregates the whole dashboard selection in one pass.
func (r *ForecastRepositoryImpl) DashboardSummary(ctx context.Context, filter models.ForecastFilter) (*DashboardSummary, error) {
	db := r.getDB(ctx)

	var summary DashboardSummary
	err := r.applyFilter(db.Model(&models.ForecastRow{}), filter).
		Select("COUNT(*) AS record_count, AVG(y_50) AS avg_y_50, MIN(y_50) AS min_y_50, MAX(y_50) AS max_y_50").
		Scan(&summary).Error
	if err != nil {
		return nil, err
	}

	return &summary, nil
}

// SummaryByState reads per-state rollups from the forecast_summary
// materialized view.
func (r *ForecastRepositoryImpl) SummaryByState(ctx context.Context, states []string) ([]*models.ForecastSummary, error) {
	db := r.getDB(ctx)

	query := db.Model(&models.ForecastSummary{})
	if len(states) > 0 {
		query = query.Where("state IN ?", states)
	}

	var summaries []*models.ForecastSummary
	if err := query.Order("state ASC").Find(&summaries).Error; err != nil {
		return nil, err
	}

	return summaries, nil
}

// AveragesByDate returns the per-date average of the baseline median for the
// filtered selection.
func (r *ForecastRepositoryImpl) AveragesByDate(ctx context.Context, filter models.ForecastFilter) ([]*DateAverage, error) {
	db := r.getDB(ctx)

	var averages []*DateAverage
	err := r.applyFilter(db.Model(&models.ForecastRow{}), filter).
		Select("business_date, AVG(y_50) AS avg_y_50").
		Group("business_date").
		Order("business_date ASC").
		Scan(&averages).Error
	if err != nil {
		return nil, err
	}

	return averages, nil
}

// DistinctValues lists the distinct values of a whitelisted dimension. The
// column name is interpolated only after the whitelist lookup.
func (r *ForecastRepositoryImpl) DistinctValues(ctx context.Context, dimension string) ([]string, error) {
	column, ok := models.DistinctDimensionColumn(dimension)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDimension, dimension)
	}

	db := r.getDB(ctx)
	rows, err := db.Raw(fmt.Sprintf(
		"SELECT DISTINCT %s::text FROM forecast_data WHERE %s IS NOT NULL ORDER BY 1",
		column, column)).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// ExecuteReadOnly runs an already-vetted read-only statement inside a
// transaction with a local statement timeout and stringifies the result set.
func (r *ForecastRepositoryImpl) ExecuteReadOnly(ctx context.Context, query string, timeout time.Duration) (*RawQueryResult, error) {
	db := r.getDB(ctx)

	tx := db.Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	if timeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())).Error; err != nil {
			return nil, err
		}
	}

	rows, err := tx.Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &RawQueryResult{Columns: columns}
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				record[i] = v.String
			}
		}
		result.Rows = append(result.Rows, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, tx.Commit().Error
}

// RefreshSummary refreshes the forecast_summary materialized view without
// blocking concurrent readers.
func (r *ForecastRepositoryImpl) RefreshSummary(ctx context.Context) error {
	db := r.getDB(ctx)
	return db.Exec("REFRESH MATERIALIZED VIEW CONCURRENTLY forecast_summary").Error
}

// applyFilter applies filter conditions to the GORM query. Every predicate
// uses bound parameters; multi-value dimensions become IN clauses and the
// date range is inclusive on both ends.
func (r *ForecastRepositoryImpl) applyFilter(db *gorm.DB, filter models.ForecastFilter) *gorm.DB {
	if filter.InventoryItemID != nil {
		db = db.Where("inventory_item_id = ?", *filter.InventoryItemID)
	}
	if len(filter.States) > 0 {
		db = db.Where("state IN ?", filter.States)
	}
	if len(filter.DMAIDs) > 0 {
		db = db.Where("dma_id IN ?", filter.DMAIDs)
	}
	if len(filter.DCIDs) > 0 {
		db = db.Where("dc_id IN ?", filter.DCIDs)
	}
	if len(filter.RestaurantIDs) > 0 {
		db = db.Where("restaurant_id IN ?", filter.RestaurantIDs)
	}
	if filter.StartDate != nil {
		db = db.Where("business_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		db = db.Where("business_date <= ?", *filter.EndDate)
	}

	return db
}
