// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	businessflow "github.com/wmjones/demand-planning-api/business_flow"
	"github.com/wmjones/demand-planning-api/config"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/repository"
	testingutil "github.com/wmjones/demand-planning-api/testing"
	"github.com/wmjones/demand-planning-api/utils"
)

func testQueryConfig() *config.ProductionConfig {
	return &config.ProductionConfig{
		Query: config.QueryConfig{
			DefaultRowLimit:     10000,
			MaxRowLimit:         100000,
			RawStatementTimeout: 30 * time.Second,
			ExportRowLimit:      50000,
		},
		Cache: config.CacheConfig{
			Enabled: false,
		},
	}
}

func newForecastFlow(testDB *testingutil.TestDB) businessflow.ForecastFlow {
	forecastRepo := repository.NewForecastRepository(testDB.DB)
	adjustmentRepo := repository.NewAdjustmentRepository(testDB.DB)
	return businessflow.NewForecastFlow(forecastRepo, adjustmentRepo, nil, testQueryConfig())
}

func TestForecastFlowGetForecastData(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newForecastFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		_, err := fixtures.CreateBaselineSeries(100, 1, "2025-01-01", "2025-01-05", 100, utils.ToPtr("TX"))
		require.NoError(t, err)

		t.Run("BaselineWithoutAdjustments", func(t *testing.T) {
			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{States: []string{"TX"}}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "location_detail", resp.Mode)
			require.Equal(t, 5, resp.Count)

			for _, p := range resp.Points {
				assert.Equal(t, 100.0, p.Y50)
				assert.Equal(t, 100.0, p.AdjustedY50)
				assert.Equal(t, 0.0, p.TotalAdjustmentPercent)
				assert.Equal(t, 0, p.AdjustmentCount)
			}
		})

		t.Run("AdditiveComposition", func(t *testing.T) {
			scope := testingutil.ScopeForStates([]string{"TX"}, "2025-01-01", "2025-01-05")
			_, err := fixtures.CreateAdjustment("user-a", 20, scope)
			require.NoError(t, err)
			_, err = fixtures.CreateAdjustment("user-b", 10, scope)
			require.NoError(t, err)

			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{States: []string{"TX"}}, metadata)
			require.NoError(t, err)
			require.Equal(t, 5, resp.Count)

			// 100 * (1 + (20+10)/100), applied once
			for _, p := range resp.Points {
				assert.Equal(t, 100.0, p.OriginalY50)
				assert.InDelta(t, 130.0, p.AdjustedY50, 1e-9)
				assert.InDelta(t, 30.0, p.TotalAdjustmentPercent, 1e-9)
				assert.Equal(t, 2, p.AdjustmentCount)
			}
		})

		t.Run("WindowBoundariesInclusive", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, err := fixtures.CreateBaselineSeries(100, 1, "2025-01-01", "2025-01-05", 100, utils.ToPtr("TX"))
			require.NoError(t, err)

			scope := testingutil.ScopeForStates([]string{"TX"}, "2025-01-02", "2025-01-04")
			_, err = fixtures.CreateAdjustment("user-a", 10, scope)
			require.NoError(t, err)

			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{States: []string{"TX"}}, metadata)
			require.NoError(t, err)
			require.Equal(t, 5, resp.Count)

			expected := map[string]float64{
				"2025-01-01": 100,
				"2025-01-02": 110,
				"2025-01-03": 110,
				"2025-01-04": 110,
				"2025-01-05": 100,
			}
			for _, p := range resp.Points {
				assert.InDelta(t, expected[p.BusinessDate], p.AdjustedY50, 1e-9, p.BusinessDate)
			}
		})

		t.Run("InactiveAdjustmentsIgnored", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, err := fixtures.CreateBaselineSeries(100, 1, "2025-01-01", "2025-01-01", 100, utils.ToPtr("TX"))
			require.NoError(t, err)
			_, err = fixtures.CreateInactiveAdjustment("user-a", 50, testingutil.ScopeForStates([]string{"TX"}, "2025-01-01", "2025-01-31"))
			require.NoError(t, err)

			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{States: []string{"TX"}}, metadata)
			require.NoError(t, err)
			require.Equal(t, 1, resp.Count)
			assert.Equal(t, 100.0, resp.Points[0].AdjustedY50)
		})

		t.Run("ScopedAdjustmentDoesNotLeak", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())
			_, err := fixtures.CreateBaselineSeries(100, 1, "2025-01-01", "2025-01-01", 100, utils.ToPtr("TX"))
			require.NoError(t, err)
			_, err = fixtures.CreateAdjustment("user-a", 50, models.FilterContext{States: []string{"CA"}})
			require.NoError(t, err)

			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{States: []string{"TX"}}, metadata)
			require.NoError(t, err)
			require.Equal(t, 1, resp.Count)
			assert.Equal(t, 100.0, resp.Points[0].AdjustedY50)
		})

		t.Run("StartDateAfterEndDateRejected", func(t *testing.T) {
			_, err := flow.GetForecastData(ctx, models.ForecastFilter{
				StartDate: utils.ToPtr("2025-02-01"),
				EndDate:   utils.ToPtr("2025-01-01"),
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsStartDateAfterEndDate(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestForecastFlowItemAggregate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newForecastFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		// Same item in two states, two restaurants
		_, err := fixtures.CreateBaselineSeries(100, 7, "2025-01-01", "2025-01-02", 100, utils.ToPtr("TX"))
		require.NoError(t, err)
		_, err = fixtures.CreateBaselineSeries(200, 7, "2025-01-01", "2025-01-02", 50, utils.ToPtr("CA"))
		require.NoError(t, err)

		item := int64(7)

		t.Run("UnrestrictedDimensionsGetSentinels", func(t *testing.T) {
			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{InventoryItemID: &item}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "item_aggregate", resp.Mode)
			require.Equal(t, 2, resp.Count)

			p := resp.Points[0]
			assert.Equal(t, int64(1), p.RestaurantID)
			assert.Equal(t, item, p.InventoryItemID)
			require.NotNil(t, p.State)
			assert.Equal(t, models.AggregateStateSentinel, *p.State)
			require.NotNil(t, p.DMAID)
			assert.Equal(t, models.AggregateDMASentinel, *p.DMAID)
			require.NotNil(t, p.DCID)
			assert.Equal(t, models.AggregateDCSentinel, *p.DCID)

			// Both restaurants summed per date
			assert.Equal(t, 150.0, p.Y50)
		})

		t.Run("RestrictedDimensionKeepsValues", func(t *testing.T) {
			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{
				InventoryItemID: &item,
				States:          []string{"TX", "CA"},
			}, metadata)
			require.NoError(t, err)
			require.Equal(t, 2, resp.Count)

			p := resp.Points[0]
			require.NotNil(t, p.State)
			assert.Equal(t, "CA,TX", *p.State)
			assert.Equal(t, 150.0, p.Y50)
		})

		t.Run("ItemScopedAdjustmentApplies", func(t *testing.T) {
			_, err := fixtures.CreateAdjustment("user-a", 10, models.FilterContext{InventoryItemID: &item})
			require.NoError(t, err)

			resp, err := flow.GetForecastData(ctx, models.ForecastFilter{InventoryItemID: &item}, metadata)
			require.NoError(t, err)
			require.Equal(t, 2, resp.Count)
			assert.InDelta(t, 165.0, resp.Points[0].AdjustedY50, 1e-9)
			assert.Equal(t, 1, resp.Points[0].AdjustmentCount)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestForecastFlowQuerySurface(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newForecastFlow(testDB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		_, err := fixtures.CreateBaselineSeries(100, 1, "2025-01-01", "2025-01-03", 100, utils.ToPtr("TX"))
		require.NoError(t, err)
		_, err = fixtures.CreateBaselineSeries(200, 1, "2025-01-01", "2025-01-03", 50, utils.ToPtr("CA"))
		require.NoError(t, err)

		t.Run("DashboardRequiresStates", func(t *testing.T) {
			_, err := flow.GetDashboardForecast(ctx, models.ForecastFilter{}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsStatesRequired(err))
		})

		t.Run("DashboardForecast", func(t *testing.T) {
			resp, err := flow.GetDashboardForecast(ctx, models.ForecastFilter{States: []string{"TX"}}, metadata)
			require.NoError(t, err)
			assert.Len(t, resp.Data, 3)
			assert.Equal(t, int64(3), resp.Summary.RecordCount)
			require.NotNil(t, resp.Summary.AvgY50)
			assert.InDelta(t, 100.0, *resp.Summary.AvgY50, 1e-9)
		})

		t.Run("ForecastSummary", func(t *testing.T) {
			require.NoError(t, testDB.RefreshSummary())

			resp, err := flow.GetForecastSummary(ctx, []string{"TX", "CA"}, metadata)
			require.NoError(t, err)
			assert.False(t, resp.Cached)
			require.Len(t, resp.Items, 2)
			assert.Equal(t, "CA", resp.Items[0].State)
			assert.Equal(t, "TX", resp.Items[1].State)
		})

		t.Run("ForecastByDate", func(t *testing.T) {
			resp, err := flow.GetForecastByDate(ctx, models.ForecastFilter{States: []string{"TX", "CA"}}, metadata)
			require.NoError(t, err)
			require.Len(t, resp.Items, 3)
			assert.Equal(t, "2025-01-01", resp.Items[0].BusinessDate)
			assert.InDelta(t, 75.0, resp.Items[0].AvgY50, 1e-9)
		})

		t.Run("DistinctValues", func(t *testing.T) {
			resp, err := flow.GetDistinctValues(ctx, models.DimensionState, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.DimensionState, resp.Dimension)
			assert.Equal(t, []string{"CA", "TX"}, resp.Values)
		})

		t.Run("DistinctValuesUnknownDimension", func(t *testing.T) {
			_, err := flow.GetDistinctValues(ctx, "secrets", metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsUnknownDimension(err))
		})

		t.Run("ReadOnlyQueryAllowed", func(t *testing.T) {
			resp, err := flow.ExecuteReadOnlyQuery(ctx,
				"  SELECT COUNT(*) AS total FROM forecast_data  ", metadata)
			require.NoError(t, err)
			assert.Equal(t, []string{"total"}, resp.Columns)
			require.Len(t, resp.Rows, 1)
			assert.Equal(t, "6", resp.Rows[0][0])
		})

		t.Run("CTEAllowed", func(t *testing.T) {
			resp, err := flow.ExecuteReadOnlyQuery(ctx,
				"WITH t AS (SELECT y_50 FROM forecast_data) SELECT COUNT(*) FROM t", metadata)
			require.NoError(t, err)
			require.Len(t, resp.Rows, 1)
		})

		t.Run("MutationRejected", func(t *testing.T) {
			for _, stmt := range []string{
				"UPDATE forecast_data SET y_50 = 0",
				"DELETE FROM forecast_data",
				"DROP TABLE forecast_data",
				"INSERT INTO forecast_data (restaurant_id) VALUES (1)",
			} {
				_, err := flow.ExecuteReadOnlyQuery(ctx, stmt, metadata)
				require.Error(t, err, stmt)
				assert.True(t, businessflow.IsQueryNotReadOnly(err), stmt)
			}
		})

		t.Run("EmptyQueryRejected", func(t *testing.T) {
			_, err := flow.ExecuteReadOnlyQuery(ctx, "   ", metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsQueryTextRequired(err))
		})

		t.Run("RefreshSummary", func(t *testing.T) {
			resp, err := flow.RefreshSummary(ctx, metadata)
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Message)
		})

		t.Run("ExportCSV", func(t *testing.T) {
			result, err := flow.ExportForecast(ctx, models.ForecastFilter{States: []string{"TX"}}, businessflow.ExportFormatCSV, metadata)
			require.NoError(t, err)
			assert.Equal(t, "text/csv", result.ContentType)
			assert.Contains(t, result.FileName, ".csv")
			assert.Contains(t, string(result.Content), "business_date")
			assert.Contains(t, string(result.Content), "2025-01-01")
		})

		t.Run("ExportXLSX", func(t *testing.T) {
			result, err := flow.ExportForecast(ctx, models.ForecastFilter{States: []string{"TX"}}, businessflow.ExportFormatXLSX, metadata)
			require.NoError(t, err)
			assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", result.ContentType)
			assert.Contains(t, result.FileName, ".xlsx")
			assert.NotEmpty(t, result.Content)
		})

		t.Run("ExportUnknownFormat", func(t *testing.T) {
			_, err := flow.ExportForecast(ctx, models.ForecastFilter{}, "pdf", metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidExportFormat(err))
		})

		return nil
	})
	require.NoError(t, err)
}
