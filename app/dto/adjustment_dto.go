package dto

// DateRangeDTO bounds an adjustment scope in business dates, inclusive on
// both ends. A missing bound leaves that side open.
type DateRangeDTO struct {
	StartDate *string `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// FilterContextDTO is the stored scope of an adjustment. The states, dmaIds,
// dcIds and dateRange keys must all be present; an empty dimension list means
// the adjustment applies to every value of that dimension. The dimension
// fields are pointers so a missing key is distinguishable from an empty list.
type FilterContextDTO struct {
	InventoryItemID *int64        `json:"inventoryItemId,omitempty"`
	States          *[]string     `json:"states"`
	DMAIDs          *[]string     `json:"dmaIds"`
	DCIDs           *[]string     `json:"dcIds"`
	DateRange       *DateRangeDTO `json:"dateRange"`
}

// CreateAdjustmentRequest creates a percentage overlay on the forecast
type CreateAdjustmentRequest struct {
	AdjustmentValue *float64          `json:"adjustment_value" validate:"required"`
	FilterContext   *FilterContextDTO `json:"filter_context" validate:"required"`
	InventoryItemID *int64            `json:"inventory_item_id,omitempty"`
}

// UpdateAdjustmentRequest toggles the active flag of an adjustment
type UpdateAdjustmentRequest struct {
	ID       uint  `json:"id" validate:"required"`
	IsActive *bool `json:"is_active" validate:"required"`
}

// ListAdjustmentsQuery carries the query-string parameters of the list endpoint
type ListAdjustmentsQuery struct {
	All             bool   `query:"all"`
	Limit           int    `query:"limit" validate:"omitempty,min=1"`
	InventoryItemID *int64 `query:"inventory_item_id"`
}

// AdjustmentItem is one adjustment as returned by the API. IsOwn tells the
// caller whether the record belongs to the authenticated user.
type AdjustmentItem struct {
	ID              uint             `json:"id"`
	UUID            string           `json:"uuid"`
	AdjustmentValue float64          `json:"adjustment_value"`
	FilterContext   FilterContextDTO `json:"filter_context"`
	InventoryItemID *int64           `json:"inventory_item_id,omitempty"`
	UserID          string           `json:"user_id"`
	UserEmail       *string          `json:"user_email,omitempty"`
	UserName        *string          `json:"user_name,omitempty"`
	IsActive        bool             `json:"is_active"`
	StartDate       *string          `json:"start_date,omitempty"`
	EndDate         *string          `json:"end_date,omitempty"`
	CreatedAt       string           `json:"created_at"`
	UpdatedAt       *string          `json:"updated_at,omitempty"`
	IsOwn           bool             `json:"is_own"`
}

// CreateAdjustmentResponse echoes the stored adjustment
type CreateAdjustmentResponse struct {
	Message    string         `json:"message"`
	Adjustment AdjustmentItem `json:"adjustment"`
}

// ListAdjustmentsResponse is the payload of the list endpoint
type ListAdjustmentsResponse struct {
	Message       string           `json:"message"`
	Items         []AdjustmentItem `json:"items"`
	Count         int              `json:"count"`
	CurrentUserID string           `json:"current_user_id"`
}

// UpdateAdjustmentResponse returns the toggled adjustment
type UpdateAdjustmentResponse struct {
	Message    string         `json:"message"`
	Adjustment AdjustmentItem `json:"adjustment"`
}

// DeleteAdjustmentResponse confirms a deletion
type DeleteAdjustmentResponse struct {
	Message string `json:"message"`
}
