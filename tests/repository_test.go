// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/repository"
	testingutil "github.com/wmjones/demand-planning-api/testing"
	"github.com/wmjones/demand-planning-api/utils"
)

func TestForecastRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewForecastRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		// Two restaurants in different states sharing an item over three days
		_, err := fixtures.CreateBaselineSeries(100, 1, "2025-01-01", "2025-01-03", 100, utils.ToPtr("TX"))
		require.NoError(t, err)
		_, err = fixtures.CreateBaselineSeries(200, 1, "2025-01-01", "2025-01-03", 50, utils.ToPtr("CA"))
		require.NoError(t, err)

		t.Run("ByFilterStateRestriction", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.ForecastFilter{States: []string{"TX"}})
			require.NoError(t, err)
			require.Len(t, rows, 3)
			for _, row := range rows {
				require.NotNil(t, row.State)
				assert.Equal(t, "TX", *row.State)
				assert.Equal(t, int64(100), row.RestaurantID)
			}
		})

		t.Run("ByFilterMultiValueIn", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.ForecastFilter{States: []string{"TX", "CA"}})
			require.NoError(t, err)
			assert.Len(t, rows, 6)
		})

		t.Run("ByFilterDateRangeInclusive", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.ForecastFilter{
				States:    []string{"TX"},
				StartDate: utils.ToPtr("2025-01-02"),
				EndDate:   utils.ToPtr("2025-01-03"),
			})
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "2025-01-03", rows[0].BusinessDateString())
			assert.Equal(t, "2025-01-02", rows[1].BusinessDateString())
		})

		t.Run("ByFilterCapKeepsNewestDates", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.ForecastFilter{States: []string{"TX"}, Limit: 2})
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "2025-01-03", rows[0].BusinessDateString())
			assert.Equal(t, "2025-01-02", rows[1].BusinessDateString())
		})

		t.Run("ByFilterRestaurantRestriction", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.ForecastFilter{RestaurantIDs: []int64{200}})
			require.NoError(t, err)
			require.Len(t, rows, 3)
			assert.Equal(t, int64(200), rows[0].RestaurantID)
		})

		t.Run("ByFilterLimit", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.ForecastFilter{Limit: 2})
			require.NoError(t, err)
			assert.Len(t, rows, 2)
		})

		t.Run("AggregateByDate", func(t *testing.T) {
			item := int64(1)
			aggregates, err := repo.AggregateByDate(ctx, models.ForecastFilter{InventoryItemID: &item})
			require.NoError(t, err)
			require.Len(t, aggregates, 3)

			// Both restaurants sum per date, states concatenated in order
			assert.Equal(t, 150.0, aggregates[0].TotalY50)
			require.NotNil(t, aggregates[0].States)
			assert.Equal(t, "CA,TX", *aggregates[0].States)
		})

		t.Run("DashboardRowsAndSummary", func(t *testing.T) {
			filter := models.ForecastFilter{States: []string{"TX", "CA"}}

			rows, err := repo.DashboardRows(ctx, filter)
			require.NoError(t, err)
			assert.Len(t, rows, 6) // one per (date, state) pair

			summary, err := repo.DashboardSummary(ctx, filter)
			require.NoError(t, err)
			assert.Equal(t, int64(6), summary.RecordCount)
			require.NotNil(t, summary.AvgY50)
			assert.InDelta(t, 75.0, *summary.AvgY50, 1e-9)
			require.NotNil(t, summary.MinY50)
			assert.Equal(t, 50.0, *summary.MinY50)
			require.NotNil(t, summary.MaxY50)
			assert.Equal(t, 100.0, *summary.MaxY50)
		})

		t.Run("SummaryByState", func(t *testing.T) {
			require.NoError(t, testDB.RefreshSummary())

			summaries, err := repo.SummaryByState(ctx, []string{"TX"})
			require.NoError(t, err)
			require.Len(t, summaries, 1)
			assert.Equal(t, "TX", summaries[0].State)
			assert.Equal(t, int64(3), summaries[0].RecordCount)
			assert.InDelta(t, 100.0, summaries[0].AvgY50, 1e-9)
		})

		t.Run("RefreshSummaryConcurrently", func(t *testing.T) {
			assert.NoError(t, repo.RefreshSummary(ctx))
		})

		t.Run("AveragesByDate", func(t *testing.T) {
			averages, err := repo.AveragesByDate(ctx, models.ForecastFilter{States: []string{"TX", "CA"}})
			require.NoError(t, err)
			require.Len(t, averages, 3)
			assert.InDelta(t, 75.0, averages[0].AvgY50, 1e-9)
		})

		t.Run("DistinctValues", func(t *testing.T) {
			values, err := repo.DistinctValues(ctx, models.DimensionState)
			require.NoError(t, err)
			assert.Equal(t, []string{"CA", "TX"}, values)

			values, err = repo.DistinctValues(ctx, models.DimensionRestaurant)
			require.NoError(t, err)
			assert.Equal(t, []string{"100", "200"}, values)
		})

		t.Run("DistinctValuesUnknownDimension", func(t *testing.T) {
			_, err := repo.DistinctValues(ctx, "password")
			require.Error(t, err)
			assert.True(t, errors.Is(err, repository.ErrUnknownDimension))
		})

		t.Run("ExecuteReadOnly", func(t *testing.T) {
			result, err := repo.ExecuteReadOnly(ctx,
				"SELECT state, COUNT(*) AS n FROM forecast_data GROUP BY state ORDER BY state",
				30*time.Second)
			require.NoError(t, err)
			assert.Equal(t, []string{"state", "n"}, result.Columns)
			require.Len(t, result.Rows, 2)
			assert.Equal(t, []string{"CA", "3"}, result.Rows[0])
			assert.Equal(t, []string{"TX", "3"}, result.Rows[1])
		})

		t.Run("ExecuteReadOnlyStatementTimeout", func(t *testing.T) {
			_, err := repo.ExecuteReadOnly(ctx, "SELECT pg_sleep(2)", 100*time.Millisecond)
			assert.Error(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdjustmentRepository(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		repo := repository.NewAdjustmentRepository(testDB.DB)
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		t.Run("SaveRoundTrip", func(t *testing.T) {
			scope := testingutil.ScopeForStates([]string{"TX", "CA"}, "2025-01-01", "2025-01-31")
			created, err := fixtures.CreateAdjustment("user-a", 7.5, scope)
			require.NoError(t, err)
			require.NotZero(t, created.ID)

			loaded, err := repo.ByID(ctx, created.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.Equal(t, 7.5, loaded.AdjustmentValue)
			assert.Equal(t, []string{"TX", "CA"}, loaded.FilterContext.States)
			require.NotNil(t, loaded.FilterContext.DateRange)
			assert.Equal(t, "2025-01-01", *loaded.FilterContext.DateRange.StartDate)
			assert.Equal(t, "2025-01-31", *loaded.FilterContext.DateRange.EndDate)
			assert.True(t, utils.IsTrue(loaded.IsActive))

			// Typed window columns mirror the jsonb date range
			require.NotNil(t, loaded.StartDate)
			assert.Equal(t, "2025-01-01", loaded.StartDate.Format(models.BusinessDateLayout))
			require.NotNil(t, loaded.EndDate)
			assert.Equal(t, "2025-01-31", loaded.EndDate.Format(models.BusinessDateLayout))
		})

		t.Run("ByIDNotFound", func(t *testing.T) {
			loaded, err := repo.ByID(ctx, 999999)
			assert.NoError(t, err)
			assert.Nil(t, loaded)
		})

		t.Run("ActiveCandidatesExcludesInactive", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateAdjustment("user-a", 10, models.FilterContext{})
			require.NoError(t, err)
			_, err = fixtures.CreateInactiveAdjustment("user-a", 20, models.FilterContext{})
			require.NoError(t, err)

			candidates, err := repo.ActiveCandidates(ctx, models.ForecastFilter{})
			require.NoError(t, err)
			require.Len(t, candidates, 1)
			assert.Equal(t, 10.0, candidates[0].AdjustmentValue)
		})

		t.Run("ActiveCandidatesWindowPrefilter", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			january := testingutil.ScopeForStates(nil, "2025-01-01", "2025-01-31")
			open := models.FilterContext{}
			_, err := fixtures.CreateAdjustment("user-a", 10, january)
			require.NoError(t, err)
			_, err = fixtures.CreateAdjustment("user-a", 20, open)
			require.NoError(t, err)

			// February query cannot overlap the January window
			candidates, err := repo.ActiveCandidates(ctx, models.ForecastFilter{
				StartDate: utils.ToPtr("2025-02-01"),
				EndDate:   utils.ToPtr("2025-02-28"),
			})
			require.NoError(t, err)
			require.Len(t, candidates, 1)
			assert.Equal(t, 20.0, candidates[0].AdjustmentValue)

			// A query overlapping January sees both
			candidates, err = repo.ActiveCandidates(ctx, models.ForecastFilter{
				StartDate: utils.ToPtr("2025-01-15"),
				EndDate:   utils.ToPtr("2025-02-15"),
			})
			require.NoError(t, err)
			assert.Len(t, candidates, 2)
		})

		t.Run("ByFilterNewestFirst", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			first, err := fixtures.CreateAdjustment("user-a", 1, models.FilterContext{})
			require.NoError(t, err)
			second, err := fixtures.CreateAdjustment("user-a", 2, models.FilterContext{})
			require.NoError(t, err)

			adjustments, err := repo.ByFilter(ctx, models.AdjustmentFilter{}, "created_at DESC, id DESC", 0, 0)
			require.NoError(t, err)
			require.Len(t, adjustments, 2)
			assert.Equal(t, second.ID, adjustments[0].ID)
			assert.Equal(t, first.ID, adjustments[1].ID)
		})

		t.Run("ByFilterUserRestriction", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			_, err := fixtures.CreateAdjustment("user-a", 1, models.FilterContext{})
			require.NoError(t, err)
			_, err = fixtures.CreateAdjustment("user-b", 2, models.FilterContext{})
			require.NoError(t, err)

			adjustments, err := repo.ByFilter(ctx, models.AdjustmentFilter{UserID: utils.ToPtr("user-a")}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, adjustments, 1)
			assert.Equal(t, "user-a", adjustments[0].UserID)

			count, err := repo.Count(ctx, models.AdjustmentFilter{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)
		})

		t.Run("UpdateIsActive", func(t *testing.T) {
			created, err := fixtures.CreateAdjustment("user-a", 5, models.FilterContext{})
			require.NoError(t, err)

			require.NoError(t, repo.UpdateIsActive(ctx, created.ID, false))

			loaded, err := repo.ByID(ctx, created.ID)
			require.NoError(t, err)
			require.NotNil(t, loaded)
			assert.False(t, utils.IsTrue(loaded.IsActive))
			assert.NotNil(t, loaded.UpdatedAt)

			require.NoError(t, repo.UpdateIsActive(ctx, created.ID, true))

			loaded, err = repo.ByID(ctx, created.ID)
			require.NoError(t, err)
			assert.True(t, utils.IsTrue(loaded.IsActive))
		})

		t.Run("Delete", func(t *testing.T) {
			created, err := fixtures.CreateAdjustment("user-a", 5, models.FilterContext{})
			require.NoError(t, err)

			require.NoError(t, repo.Delete(ctx, created.ID))

			loaded, err := repo.ByID(ctx, created.ID)
			assert.NoError(t, err)
			assert.Nil(t, loaded)
		})

		return nil
	})
	require.NoError(t, err)
}
