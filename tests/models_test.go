// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/utils"
)

func TestDateRangeContains(t *testing.T) {
	t.Run("NilRangeMatchesEverything", func(t *testing.T) {
		var r *models.DateRange
		assert.True(t, r.Contains("2025-01-15"))
	})

	t.Run("InclusiveBounds", func(t *testing.T) {
		r := &models.DateRange{
			StartDate: utils.ToPtr("2025-01-10"),
			EndDate:   utils.ToPtr("2025-01-20"),
		}

		assert.True(t, r.Contains("2025-01-10"))
		assert.True(t, r.Contains("2025-01-20"))
		assert.False(t, r.Contains("2025-01-09"))
		assert.False(t, r.Contains("2025-01-21"))
	})

	t.Run("OpenStart", func(t *testing.T) {
		r := &models.DateRange{EndDate: utils.ToPtr("2025-01-20")}
		assert.True(t, r.Contains("1999-01-01"))
		assert.False(t, r.Contains("2025-01-21"))
	})

	t.Run("OpenEnd", func(t *testing.T) {
		r := &models.DateRange{StartDate: utils.ToPtr("2025-01-10")}
		assert.True(t, r.Contains("2099-12-31"))
		assert.False(t, r.Contains("2025-01-09"))
	})
}

func TestFilterContextJSONRoundTrip(t *testing.T) {
	item := int64(42)
	original := models.FilterContext{
		InventoryItemID: &item,
		States:          []string{"TX", "CA"},
		DMAIDs:          []string{"DMA-1"},
		DCIDs:           []string{"7"},
		DateRange: &models.DateRange{
			StartDate: utils.ToPtr("2025-01-01"),
			EndDate:   utils.ToPtr("2025-01-31"),
		},
	}

	value, err := original.Value()
	require.NoError(t, err)

	// Stored form uses camelCase keys
	var raw map[string]any
	require.NoError(t, json.Unmarshal(value.([]byte), &raw))
	assert.Contains(t, raw, "inventoryItemId")
	assert.Contains(t, raw, "states")
	assert.Contains(t, raw, "dmaIds")
	assert.Contains(t, raw, "dcIds")
	assert.Contains(t, raw, "dateRange")

	var scanned models.FilterContext
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestFilterContextScanEdgeCases(t *testing.T) {
	t.Run("NilValue", func(t *testing.T) {
		var fc models.FilterContext
		require.NoError(t, fc.Scan(nil))
		assert.Empty(t, fc.States)
		assert.Nil(t, fc.DateRange)
	})

	t.Run("StringValue", func(t *testing.T) {
		var fc models.FilterContext
		require.NoError(t, fc.Scan(`{"states":["TX"],"dmaIds":[],"dcIds":[]}`))
		assert.Equal(t, []string{"TX"}, fc.States)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		var fc models.FilterContext
		assert.Error(t, fc.Scan(12345))
	})
}

func TestAdjustmentScope(t *testing.T) {
	item := int64(9)

	t.Run("ItemColumnFoldsIn", func(t *testing.T) {
		adj := &models.Adjustment{
			FilterContext:   models.FilterContext{States: []string{"TX"}},
			InventoryItemID: &item,
		}

		scope := adj.Scope()
		require.NotNil(t, scope.InventoryItemID)
		assert.Equal(t, item, *scope.InventoryItemID)
	})

	t.Run("StoredItemWins", func(t *testing.T) {
		stored := int64(3)
		adj := &models.Adjustment{
			FilterContext:   models.FilterContext{InventoryItemID: &stored},
			InventoryItemID: &item,
		}

		scope := adj.Scope()
		require.NotNil(t, scope.InventoryItemID)
		assert.Equal(t, stored, *scope.InventoryItemID)
	})
}

func TestAdjustmentAppliesTo(t *testing.T) {
	adj := &models.Adjustment{
		AdjustmentValue: 10,
		FilterContext: models.FilterContext{
			States: []string{"TX"},
			DateRange: &models.DateRange{
				StartDate: utils.ToPtr("2025-01-10"),
				EndDate:   utils.ToPtr("2025-01-20"),
			},
		},
		IsActive: utils.ToPtr(true),
	}

	query := models.FilterContext{States: []string{"TX"}}

	assert.True(t, adj.AppliesTo(query, "2025-01-15"))
	assert.False(t, adj.AppliesTo(query, "2025-01-21"))
	assert.False(t, adj.AppliesTo(models.FilterContext{States: []string{"CA"}}, "2025-01-15"))

	adj.IsActive = utils.ToPtr(false)
	assert.False(t, adj.AppliesTo(query, "2025-01-15"))
}

func TestDistinctDimensionColumn(t *testing.T) {
	for dimension, expected := range map[string]string{
		models.DimensionState:      "state",
		models.DimensionDMA:        "dma_id",
		models.DimensionDC:         "dc_id",
		models.DimensionItem:       "inventory_item_id",
		models.DimensionRestaurant: "restaurant_id",
	} {
		col, ok := models.DistinctDimensionColumn(dimension)
		assert.True(t, ok, dimension)
		assert.Equal(t, expected, col)
	}

	_, ok := models.DistinctDimensionColumn("password")
	assert.False(t, ok)

	_, ok = models.DistinctDimensionColumn("state; DROP TABLE forecast_data")
	assert.False(t, ok)
}

func TestForecastFilterScopeContext(t *testing.T) {
	item := int64(5)
	filter := models.ForecastFilter{
		InventoryItemID: &item,
		States:          []string{"TX"},
		DCIDs:           []int64{7, 8},
		StartDate:       utils.ToPtr("2025-01-01"),
		EndDate:         utils.ToPtr("2025-01-31"),
	}

	scope := filter.ScopeContext()
	require.NotNil(t, scope.InventoryItemID)
	assert.Equal(t, item, *scope.InventoryItemID)
	assert.Equal(t, []string{"TX"}, scope.States)
	assert.Equal(t, []string{"7", "8"}, scope.DCIDs)
	require.NotNil(t, scope.DateRange)
	assert.Equal(t, "2025-01-01", *scope.DateRange.StartDate)
	assert.Equal(t, "2025-01-31", *scope.DateRange.EndDate)

	assert.True(t, filter.IsItemAggregate())
	assert.False(t, models.ForecastFilter{}.IsItemAggregate())
}
