package dto

// Actions accepted by the forecast query endpoint. Distinct-value lookups use
// the ActionDistinctPrefix followed by a whitelisted dimension name.
const (
	ActionGetForecastData      = "get_forecast_data"
	ActionGetDashboardForecast = "get_dashboard_forecast"
	ActionGetForecastSummary   = "get_forecast_summary"
	ActionGetForecastByDate    = "get_forecast_by_date"
	ActionExecuteQuery         = "execute_query"
	ActionRefreshSummary       = "refresh_materialized_view"
	ActionDistinctPrefix       = "get_distinct_"
)

// Engine modes reported on forecast data responses
const (
	ModeLocationDetail = "location_detail"
	ModeItemAggregate  = "item_aggregate"
)

// ForecastQueryRequest is the envelope of the POST /forecasts/query endpoint
type ForecastQueryRequest struct {
	Action  string           `json:"action" validate:"required"`
	Filters *ForecastFilters `json:"filters,omitempty"`
	Query   string           `json:"query,omitempty"`
}

// ForecastFilters carries the user-selected dimensions of a forecast query.
// Empty slices leave a dimension unrestricted.
type ForecastFilters struct {
	InventoryItemID *int64   `json:"inventory_item_id,omitempty"`
	States          []string `json:"states,omitempty"`
	DMAIDs          []string `json:"dma_ids,omitempty"`
	DCIDs           []int64  `json:"dc_ids,omitempty"`
	RestaurantIDs   []int64  `json:"restaurant_ids,omitempty"`
	StartDate       *string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate         *string  `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Limit           int      `json:"limit,omitempty" validate:"omitempty,min=1"`
}

// ForecastDataPoint is one adjusted forecast observation. In item-aggregate
// mode the location dimensions carry concatenated values or sentinels.
type ForecastDataPoint struct {
	RestaurantID           int64    `json:"restaurant_id"`
	InventoryItemID        int64    `json:"inventory_item_id"`
	BusinessDate           string   `json:"business_date"`
	DMAID                  *string  `json:"dma_id,omitempty"`
	DCID                   *string  `json:"dc_id,omitempty"`
	State                  *string  `json:"state,omitempty"`
	Y05                    *float64 `json:"y_05,omitempty"`
	Y50                    float64  `json:"y_50"`
	Y95                    *float64 `json:"y_95,omitempty"`
	OriginalY50            float64  `json:"original_y50"`
	AdjustedY50            float64  `json:"adjusted_y50"`
	TotalAdjustmentPercent float64  `json:"total_adjustment_percent"`
	AdjustmentCount        int      `json:"adjustment_count"`
}

// ForecastDataResponse is the payload of the get_forecast_data action
type ForecastDataResponse struct {
	Message string              `json:"message"`
	Mode    string              `json:"mode"`
	Count   int                 `json:"count"`
	Points  []ForecastDataPoint `json:"points"`
}

// DashboardPoint is one grouped total of the dashboard forecast
type DashboardPoint struct {
	BusinessDate string  `json:"business_date"`
	State        *string `json:"state,omitempty"`
	DMAID        *string `json:"dma_id,omitempty"`
	DCID         *int64  `json:"dc_id,omitempty"`
	TotalY50     float64 `json:"total_y50"`
}

// DashboardSummary aggregates the dashboard selection
type DashboardSummary struct {
	RecordCount int64    `json:"record_count"`
	AvgY50      *float64 `json:"avg_y50,omitempty"`
	MinY50      *float64 `json:"min_y50,omitempty"`
	MaxY50      *float64 `json:"max_y50,omitempty"`
}

// DashboardForecastResponse is the payload of the get_dashboard_forecast action
type DashboardForecastResponse struct {
	Message string           `json:"message"`
	Data    []DashboardPoint `json:"data"`
	Summary DashboardSummary `json:"summary"`
}

// StateSummary is one row of the per-state forecast summary
type StateSummary struct {
	State       string  `json:"state"`
	RecordCount int64   `json:"record_count"`
	AvgY50      float64 `json:"avg_y50"`
	MinY50      float64 `json:"min_y50"`
	MaxY50      float64 `json:"max_y50"`
}

// ForecastSummaryResponse is the payload of the get_forecast_summary action
type ForecastSummaryResponse struct {
	Message string         `json:"message"`
	Items   []StateSummary `json:"items"`
	Cached  bool           `json:"cached"`
}

// DateAverage is one point of the per-date average series
type DateAverage struct {
	BusinessDate string  `json:"business_date"`
	AvgY50       float64 `json:"avg_y50"`
}

// ForecastByDateResponse is the payload of the get_forecast_by_date action
type ForecastByDateResponse struct {
	Message string        `json:"message"`
	Items   []DateAverage `json:"items"`
	Cached  bool          `json:"cached"`
}

// DistinctValuesResponse is the payload of the get_distinct_<dimension> actions
type DistinctValuesResponse struct {
	Message   string   `json:"message"`
	Dimension string   `json:"dimension"`
	Values    []string `json:"values"`
}

// RawQueryResponse is the payload of the execute_query action
type RawQueryResponse struct {
	Message string     `json:"message"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// RefreshSummaryResponse is the payload of the refresh_materialized_view action
type RefreshSummaryResponse struct {
	Message string `json:"message"`
}
