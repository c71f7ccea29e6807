package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/wmjones/demand-planning-api/utils"
	"gorm.io/gorm"
)

// Adjustment value bounds, in percent of the median forecast.
const (
	AdjustmentValueMin = -100.0
	AdjustmentValueMax = 100.0
)

// Adjustment represents a percentage overlay on the baseline forecast scoped
// by a FilterContext. The value is additive percent-of-median, applied once.
type Adjustment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:uk_forecast_adjustments_uuid" json:"uuid"`
	AdjustmentValue float64       `gorm:"type:numeric(5,2);not null" json:"adjustment_value"`
	FilterContext   FilterContext `gorm:"type:jsonb;not null" json:"filter_context"`
	InventoryItemID *int64        `gorm:"index:idx_forecast_adjustments_item" json:"inventory_item_id,omitempty"`
	UserID          string        `gorm:"not null;index:idx_forecast_adjustments_user_id" json:"user_id"`
	UserEmail       *string       `json:"user_email,omitempty"`
	UserName        *string       `json:"user_name,omitempty"`
	IsActive        *bool         `gorm:"not null;default:true;index:idx_forecast_adjustments_is_active" json:"is_active"`
	StartDate       *time.Time    `gorm:"type:date" json:"start_date,omitempty"`
	EndDate         *time.Time    `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt       time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_forecast_adjustments_created_at" json:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (Adjustment) TableName() string {
	return "forecast_adjustments"
}

// BeforeCreate is called before creating a new record
func (a *Adjustment) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	if a.IsActive == nil {
		a.IsActive = utils.ToPtr(true)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = utils.UTCNow()
	}
	a.syncWindowColumns()
	return nil
}

// BeforeUpdate is called before updating a record
func (a *Adjustment) BeforeUpdate(tx *gorm.DB) error {
	now := utils.UTCNow()
	a.UpdatedAt = &now
	return nil
}

// syncWindowColumns mirrors the jsonb date window into the typed date columns
// so candidate queries can prefilter on them.
func (a *Adjustment) syncWindowColumns() {
	if a.FilterContext.DateRange == nil {
		return
	}
	if s := a.FilterContext.DateRange.StartDate; s != nil {
		if t, err := time.Parse(BusinessDateLayout, *s); err == nil {
			a.StartDate = &t
		}
	}
	if e := a.FilterContext.DateRange.EndDate; e != nil {
		if t, err := time.Parse(BusinessDateLayout, *e); err == nil {
			a.EndDate = &t
		}
	}
}

// Scope returns the full scope of the adjustment for matching, folding the
// item column into the stored filter context.
func (a *Adjustment) Scope() FilterContext {
	scope := a.FilterContext
	if scope.InventoryItemID == nil {
		scope.InventoryItemID = a.InventoryItemID
	}
	return scope
}

// AppliesTo reports whether the adjustment matches the query scope and its
// window covers the given business date.
func (a *Adjustment) AppliesTo(query FilterContext, businessDate string) bool {
	if !utils.IsTrue(a.IsActive) {
		return false
	}
	scope := a.Scope()
	return scope.MatchesScope(query) && scope.WindowContains(businessDate)
}

// AdjustmentFilter represents filter criteria for adjustments
type AdjustmentFilter struct {
	ID              *uint      `json:"id,omitempty"`
	UUID            *uuid.UUID `json:"uuid,omitempty"`
	UserID          *string    `json:"user_id,omitempty"`
	IsActive        *bool      `json:"is_active,omitempty"`
	InventoryItemID *int64     `json:"inventory_item_id,omitempty"`
	CreatedAfter    *time.Time `json:"created_after,omitempty"`
	CreatedBefore   *time.Time `json:"created_before,omitempty"`
}
