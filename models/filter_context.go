package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BusinessDateLayout is the wire format for business dates. ISO dates compare
// lexicographically, so string comparison is safe for window checks.
const BusinessDateLayout = "2006-01-02"

// DateRange bounds an adjustment or query to a span of business dates.
// Both bounds are inclusive. A missing bound means the range is open.
type DateRange struct {
	StartDate *string `json:"startDate,omitempty"`
	EndDate   *string `json:"endDate,omitempty"`
}

// Contains reports whether the given business date falls inside the range.
// A range with a missing bound never excludes a date on that side.
func (r *DateRange) Contains(businessDate string) bool {
	if r == nil {
		return true
	}
	if r.StartDate != nil && businessDate < *r.StartDate {
		return false
	}
	if r.EndDate != nil && businessDate > *r.EndDate {
		return false
	}
	return true
}

// FilterContext is the shared scope value object used both as the query filter
// of a forecast request and as the stored scope of an adjustment. It is
// persisted as jsonb on forecast_adjustments.
type FilterContext struct {
	InventoryItemID *int64     `json:"inventoryItemId,omitempty"`
	States          []string   `json:"states"`
	DMAIDs          []string   `json:"dmaIds"`
	DCIDs           []string   `json:"dcIds"`
	DateRange       *DateRange `json:"dateRange,omitempty"`
}

// Value implements the driver.Valuer interface for FilterContext
func (f FilterContext) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for FilterContext
func (f *FilterContext) Scan(value any) error {
	if value == nil {
		*f = FilterContext{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into FilterContext", value)
	}

	return json.Unmarshal(bytes, f)
}

// MatchesScope reports whether an adjustment with this scope applies to a
// query with the given scope. Per dimension: an empty set on the adjustment is
// a wildcard; otherwise the query's set must intersect the adjustment's set,
// and a query that leaves the dimension unrestricted only matches wildcard
// adjustments. The item rule is equality against the query's pinned item, with
// a nil adjustment item matching any query.
func (f FilterContext) MatchesScope(query FilterContext) bool {
	if f.InventoryItemID != nil {
		if query.InventoryItemID == nil || *query.InventoryItemID != *f.InventoryItemID {
			return false
		}
	}
	return dimensionMatches(f.States, query.States) &&
		dimensionMatches(f.DMAIDs, query.DMAIDs) &&
		dimensionMatches(f.DCIDs, query.DCIDs)
}

// WindowContains reports whether the scope's date window covers the given
// business date. Bounds are inclusive; an absent window always matches.
func (f FilterContext) WindowContains(businessDate string) bool {
	return f.DateRange.Contains(businessDate)
}

func dimensionMatches(scope, query []string) bool {
	if len(scope) == 0 {
		return true
	}
	if len(query) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(scope))
	for _, v := range scope {
		set[v] = struct{}{}
	}
	for _, v := range query {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}

// Distinct-value dimensions exposed by the query surface. Anything outside
// this whitelist is rejected before it reaches SQL.
const (
	DimensionState      = "state"
	DimensionDMA        = "dma_id"
	DimensionDC         = "dc_id"
	DimensionItem       = "inventory_item_id"
	DimensionRestaurant = "restaurant_id"
)

var distinctDimensionColumns = map[string]string{
	DimensionState:      "state",
	DimensionDMA:        "dma_id",
	DimensionDC:         "dc_id",
	DimensionItem:       "inventory_item_id",
	DimensionRestaurant: "restaurant_id",
}

// DistinctDimensionColumn maps a dimension name to its forecast_data column.
// The second return value is false for dimensions outside the whitelist.
func DistinctDimensionColumn(dimension string) (string, bool) {
	col, ok := distinctDimensionColumns[dimension]
	return col, ok
}
