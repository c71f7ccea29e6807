package models

// ForecastSummary maps the forecast_summary materialized view, which holds
// per-state rollups of the baseline median.
type ForecastSummary struct {
	State       string  `gorm:"primaryKey" json:"state"`
	RecordCount int64   `json:"record_count"`
	AvgY50      float64 `gorm:"column:avg_y_50" json:"avg_y_50"`
	MinY50      float64 `gorm:"column:min_y_50" json:"min_y_50"`
	MaxY50      float64 `gorm:"column:max_y_50" json:"max_y_50"`
}

// TableName returns the view name for the model
func (ForecastSummary) TableName() string {
	return "forecast_summary"
}
