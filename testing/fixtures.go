// Package testing provides test utilities and database setup for testing the forecast engine
package testing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// BaselineRow describes one forecast observation to seed. Optional dimensions
// left nil stay NULL in the table.
type BaselineRow struct {
	RestaurantID    int64
	InventoryItemID int64
	BusinessDate    string
	State           *string
	DMAID           *string
	DCID            *int64
	Y05             *float64
	Y50             float64
	Y95             *float64
}

// CreateBaselineRow inserts one forecast_data row
func (tf *TestFixtures) CreateBaselineRow(spec BaselineRow) (*models.ForecastRow, error) {
	date, err := time.Parse(models.BusinessDateLayout, spec.BusinessDate)
	if err != nil {
		return nil, fmt.Errorf("invalid business date %q: %w", spec.BusinessDate, err)
	}

	row := &models.ForecastRow{
		RestaurantID:    spec.RestaurantID,
		InventoryItemID: spec.InventoryItemID,
		BusinessDate:    date,
		State:           spec.State,
		DMAID:           spec.DMAID,
		DCID:            spec.DCID,
		Y05:             spec.Y05,
		Y50:             spec.Y50,
		Y95:             spec.Y95,
	}

	if err := tf.DB.DB.Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create baseline row: %w", err)
	}

	return row, nil
}

// CreateBaselineSeries inserts one row per day over an inclusive date span for
// a single restaurant and item, all with the same median value.
func (tf *TestFixtures) CreateBaselineSeries(restaurantID, itemID int64, startDate, endDate string, y50 float64, state *string) ([]*models.ForecastRow, error) {
	start, err := time.Parse(models.BusinessDateLayout, startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(models.BusinessDateLayout, endDate)
	if err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}

	var rows []*models.ForecastRow
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		row, err := tf.CreateBaselineRow(BaselineRow{
			RestaurantID:    restaurantID,
			InventoryItemID: itemID,
			BusinessDate:    d.Format(models.BusinessDateLayout),
			State:           state,
			Y50:             y50,
		})
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// CreateAdjustment inserts an active adjustment owned by the given user
func (tf *TestFixtures) CreateAdjustment(userID string, value float64, scope models.FilterContext) (*models.Adjustment, error) {
	adjustment := &models.Adjustment{
		UUID:            uuid.New(),
		AdjustmentValue: value,
		FilterContext:   scope,
		InventoryItemID: scope.InventoryItemID,
		UserID:          userID,
		IsActive:        utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(adjustment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test adjustment: %w", err)
	}

	return adjustment, nil
}

// CreateInactiveAdjustment inserts an adjustment that has been toggled off
func (tf *TestFixtures) CreateInactiveAdjustment(userID string, value float64, scope models.FilterContext) (*models.Adjustment, error) {
	adjustment := &models.Adjustment{
		UUID:            uuid.New(),
		AdjustmentValue: value,
		FilterContext:   scope,
		InventoryItemID: scope.InventoryItemID,
		UserID:          userID,
		IsActive:        utils.ToPtr(false),
	}

	if err := tf.DB.DB.Create(adjustment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test adjustment: %w", err)
	}

	return adjustment, nil
}

// ScopeForStates builds a scope restricted to the given states with an
// inclusive date window
func ScopeForStates(states []string, startDate, endDate string) models.FilterContext {
	return models.FilterContext{
		States: states,
		DateRange: &models.DateRange{
			StartDate: utils.ToPtr(startDate),
			EndDate:   utils.ToPtr(endDate),
		},
	}
}
