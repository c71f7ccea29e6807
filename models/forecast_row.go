package models

import (
	"strconv"
	"time"
)

// Sentinel values reported for dimensions the query left unrestricted when
// rows are aggregated per date.
const (
	AggregateStateSentinel      = "ALL"
	AggregateDMASentinel        = "AGGREGATED"
	AggregateDCSentinel         = "-1"
	AggregateRestaurantSentinel = int64(1)
)

// ForecastRow represents one baseline forecast observation in the database
type ForecastRow struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	RestaurantID    int64     `gorm:"not null;uniqueIndex:uk_forecast_data_grain,priority:1" json:"restaurant_id"`
	InventoryItemID int64     `gorm:"not null;uniqueIndex:uk_forecast_data_grain,priority:2;index:idx_forecast_data_item" json:"inventory_item_id"`
	BusinessDate    time.Time `gorm:"type:date;not null;uniqueIndex:uk_forecast_data_grain,priority:3;index:idx_forecast_data_business_date" json:"business_date"`
	DMAID           *string   `gorm:"column:dma_id;index:idx_forecast_data_dma_id" json:"dma_id,omitempty"`
	DCID            *int64    `gorm:"column:dc_id;index:idx_forecast_data_dc_id" json:"dc_id,omitempty"`
	State           *string   `gorm:"index:idx_forecast_data_state" json:"state,omitempty"`
	Y05             *float64  `gorm:"column:y_05" json:"y_05,omitempty"`
	Y50             float64   `gorm:"column:y_50;not null" json:"y_50"`
	Y95             *float64  `gorm:"column:y_95" json:"y_95,omitempty"`
}

// TableName returns the table name for the model
func (ForecastRow) TableName() string {
	return "forecast_data"
}

// BusinessDateString returns the business date in the wire format used for
// window checks and responses.
func (r *ForecastRow) BusinessDateString() string {
	return r.BusinessDate.Format(BusinessDateLayout)
}

// ForecastFilter represents filter criteria for baseline forecast queries.
// Empty slices leave the dimension unrestricted.
type ForecastFilter struct {
	InventoryItemID *int64   `json:"inventory_item_id,omitempty"`
	States          []string `json:"states,omitempty"`
	DMAIDs          []string `json:"dma_ids,omitempty"`
	DCIDs           []int64  `json:"dc_ids,omitempty"`
	RestaurantIDs   []int64  `json:"restaurant_ids,omitempty"`
	StartDate       *string  `json:"start_date,omitempty"`
	EndDate         *string  `json:"end_date,omitempty"`
	Limit           int      `json:"limit,omitempty"`
}

// ScopeContext converts the filter into the scope value object used for
// adjustment matching.
func (f ForecastFilter) ScopeContext() FilterContext {
	ctx := FilterContext{
		InventoryItemID: f.InventoryItemID,
		States:          f.States,
		DMAIDs:          f.DMAIDs,
	}
	for _, dc := range f.DCIDs {
		ctx.DCIDs = append(ctx.DCIDs, strconv.FormatInt(dc, 10))
	}
	if f.StartDate != nil || f.EndDate != nil {
		ctx.DateRange = &DateRange{StartDate: f.StartDate, EndDate: f.EndDate}
	}
	return ctx
}

// IsItemAggregate reports whether the query pins an inventory item, which
// switches the engine into per-date aggregation.
func (f ForecastFilter) IsItemAggregate() bool {
	return f.InventoryItemID != nil
}
