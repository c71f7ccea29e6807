// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wmjones/demand-planning-api/app/dto"
	businessflow "github.com/wmjones/demand-planning-api/business_flow"
	"github.com/wmjones/demand-planning-api/repository"
	testingutil "github.com/wmjones/demand-planning-api/testing"
	"github.com/wmjones/demand-planning-api/utils"
)

var (
	userAlice = businessflow.Identity{UserID: "user-alice", Email: "alice@example.com", Name: "Alice Example"}
	userBob   = businessflow.Identity{UserID: "user-bob", Email: "bob@example.com"}
)

func newAdjustmentFlow(testDB *testingutil.TestDB) businessflow.AdjustmentFlow {
	adjustmentRepo := repository.NewAdjustmentRepository(testDB.DB)
	return businessflow.NewAdjustmentFlow(adjustmentRepo, testQueryConfig())
}

func createRequest(value float64) *dto.CreateAdjustmentRequest {
	return &dto.CreateAdjustmentRequest{
		AdjustmentValue: utils.ToPtr(value),
		FilterContext: &dto.FilterContextDTO{
			States: utils.ToPtr([]string{"TX"}),
			DMAIDs: utils.ToPtr([]string{}),
			DCIDs:  utils.ToPtr([]string{}),
			DateRange: &dto.DateRangeDTO{
				StartDate: utils.ToPtr("2025-01-01"),
				EndDate:   utils.ToPtr("2025-01-31"),
			},
		},
	}
}

func TestAdjustmentFlowCreate(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newAdjustmentFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		t.Run("ValidCreate", func(t *testing.T) {
			resp, err := flow.CreateAdjustment(ctx, createRequest(7.5), userAlice, metadata)
			require.NoError(t, err)

			item := resp.Adjustment
			assert.NotZero(t, item.ID)
			assert.NotEmpty(t, item.UUID)
			assert.Equal(t, 7.5, item.AdjustmentValue)
			assert.Equal(t, userAlice.UserID, item.UserID)
			require.NotNil(t, item.UserEmail)
			assert.Equal(t, "alice@example.com", *item.UserEmail)
			require.NotNil(t, item.UserName)
			assert.Equal(t, "Alice Example", *item.UserName)
			assert.True(t, item.IsActive)
			assert.True(t, item.IsOwn)
			require.NotNil(t, item.FilterContext.States)
			assert.Equal(t, []string{"TX"}, *item.FilterContext.States)
			require.NotNil(t, item.StartDate)
			assert.Equal(t, "2025-01-01", *item.StartDate)
			require.NotNil(t, item.EndDate)
			assert.Equal(t, "2025-01-31", *item.EndDate)
		})

		t.Run("UserNameFallsBackToEmailLocalPart", func(t *testing.T) {
			resp, err := flow.CreateAdjustment(ctx, createRequest(5), userBob, metadata)
			require.NoError(t, err)
			require.NotNil(t, resp.Adjustment.UserName)
			assert.Equal(t, "bob", *resp.Adjustment.UserName)
		})

		t.Run("BoundaryValuesAccepted", func(t *testing.T) {
			for _, value := range []float64{-100, 100, 0} {
				_, err := flow.CreateAdjustment(ctx, createRequest(value), userAlice, metadata)
				assert.NoError(t, err, "value %v", value)
			}
		})

		t.Run("OutOfRangeRejected", func(t *testing.T) {
			for _, value := range []float64{-100.01, 100.01, 500} {
				_, err := flow.CreateAdjustment(ctx, createRequest(value), userAlice, metadata)
				require.Error(t, err, "value %v", value)
				assert.True(t, businessflow.IsAdjustmentValueOutOfRange(err), "value %v", value)
			}
		})

		t.Run("MissingValueRejected", func(t *testing.T) {
			req := createRequest(0)
			req.AdjustmentValue = nil
			_, err := flow.CreateAdjustment(ctx, req, userAlice, metadata)
			assert.Error(t, err)
		})

		t.Run("MissingFilterContextRejected", func(t *testing.T) {
			req := createRequest(10)
			req.FilterContext = nil
			_, err := flow.CreateAdjustment(ctx, req, userAlice, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsFilterContextRequired(err))
		})

		t.Run("MissingScopeKeysRejected", func(t *testing.T) {
			mutations := map[string]func(*dto.FilterContextDTO){
				"states":    func(fc *dto.FilterContextDTO) { fc.States = nil },
				"dmaIds":    func(fc *dto.FilterContextDTO) { fc.DMAIDs = nil },
				"dcIds":     func(fc *dto.FilterContextDTO) { fc.DCIDs = nil },
				"dateRange": func(fc *dto.FilterContextDTO) { fc.DateRange = nil },
			}
			for key, drop := range mutations {
				req := createRequest(10)
				drop(req.FilterContext)
				_, err := flow.CreateAdjustment(ctx, req, userAlice, metadata)
				require.Error(t, err, "missing %s", key)
				assert.True(t, businessflow.IsInvalidFilterContext(err), "missing %s", key)
			}
		})

		t.Run("EmptyScopeListsStoreWildcard", func(t *testing.T) {
			req := createRequest(10)
			req.FilterContext.States = utils.ToPtr([]string{})
			resp, err := flow.CreateAdjustment(ctx, req, userAlice, metadata)
			require.NoError(t, err)
			require.NotNil(t, resp.Adjustment.FilterContext.States)
			assert.Empty(t, *resp.Adjustment.FilterContext.States)
		})

		t.Run("MalformedDatesRejected", func(t *testing.T) {
			req := createRequest(10)
			req.FilterContext.DateRange.StartDate = utils.ToPtr("01/15/2025")
			_, err := flow.CreateAdjustment(ctx, req, userAlice, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidFilterContext(err))
		})

		t.Run("InvertedWindowRejected", func(t *testing.T) {
			req := createRequest(10)
			req.FilterContext.DateRange.StartDate = utils.ToPtr("2025-02-01")
			req.FilterContext.DateRange.EndDate = utils.ToPtr("2025-01-01")
			_, err := flow.CreateAdjustment(ctx, req, userAlice, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsStartDateAfterEndDate(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdjustmentFlowList(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newAdjustmentFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		_, err := flow.CreateAdjustment(ctx, createRequest(10), userAlice, metadata)
		require.NoError(t, err)
		_, err = flow.CreateAdjustment(ctx, createRequest(20), userAlice, metadata)
		require.NoError(t, err)
		_, err = flow.CreateAdjustment(ctx, createRequest(30), userBob, metadata)
		require.NoError(t, err)

		t.Run("MineOnlyByDefault", func(t *testing.T) {
			resp, err := flow.ListAdjustments(ctx, dto.ListAdjustmentsQuery{}, userAlice, metadata)
			require.NoError(t, err)
			assert.Equal(t, 2, resp.Count)
			assert.Equal(t, userAlice.UserID, resp.CurrentUserID)
			for _, item := range resp.Items {
				assert.Equal(t, userAlice.UserID, item.UserID)
				assert.True(t, item.IsOwn)
			}
		})

		t.Run("NewestFirst", func(t *testing.T) {
			resp, err := flow.ListAdjustments(ctx, dto.ListAdjustmentsQuery{}, userAlice, metadata)
			require.NoError(t, err)
			require.Equal(t, 2, resp.Count)
			assert.Equal(t, 20.0, resp.Items[0].AdjustmentValue)
			assert.Equal(t, 10.0, resp.Items[1].AdjustmentValue)
		})

		t.Run("AllAnnotatesOwnership", func(t *testing.T) {
			resp, err := flow.ListAdjustments(ctx, dto.ListAdjustmentsQuery{All: true}, userAlice, metadata)
			require.NoError(t, err)
			assert.Equal(t, 3, resp.Count)

			owned := 0
			for _, item := range resp.Items {
				if item.IsOwn {
					owned++
					assert.Equal(t, userAlice.UserID, item.UserID)
				} else {
					assert.Equal(t, userBob.UserID, item.UserID)
				}
			}
			assert.Equal(t, 2, owned)
		})

		t.Run("LimitApplies", func(t *testing.T) {
			resp, err := flow.ListAdjustments(ctx, dto.ListAdjustmentsQuery{All: true, Limit: 1}, userAlice, metadata)
			require.NoError(t, err)
			assert.Equal(t, 1, resp.Count)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestAdjustmentFlowLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		flow := newAdjustmentFlow(testDB)
		ctx := testingutil.CreateTestContext()
		metadata := businessflow.NewClientMetadata("127.0.0.1", "test-agent")

		created, err := flow.CreateAdjustment(ctx, createRequest(15), userAlice, metadata)
		require.NoError(t, err)
		id := created.Adjustment.ID

		t.Run("ToggleOffAndOn", func(t *testing.T) {
			resp, err := flow.SetAdjustmentActive(ctx, id, false, userAlice, metadata)
			require.NoError(t, err)
			assert.False(t, resp.Adjustment.IsActive)

			resp, err = flow.SetAdjustmentActive(ctx, id, true, userAlice, metadata)
			require.NoError(t, err)
			assert.True(t, resp.Adjustment.IsActive)
		})

		t.Run("UpdateByNonOwnerDenied", func(t *testing.T) {
			_, err := flow.SetAdjustmentActive(ctx, id, false, userBob, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAdjustmentAccessDenied(err))
		})

		t.Run("UpdateMissingReportsNotFound", func(t *testing.T) {
			// Missing records never report access denied, even to non-owners
			_, err := flow.SetAdjustmentActive(ctx, 999999, false, userBob, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAdjustmentNotFound(err))
			assert.False(t, businessflow.IsAdjustmentAccessDenied(err))
		})

		t.Run("DeleteByNonOwnerDenied", func(t *testing.T) {
			_, err := flow.DeleteAdjustment(ctx, id, userBob, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAdjustmentAccessDenied(err))
		})

		t.Run("DeleteByOwner", func(t *testing.T) {
			_, err := flow.DeleteAdjustment(ctx, id, userAlice, metadata)
			require.NoError(t, err)

			_, err = flow.DeleteAdjustment(ctx, id, userAlice, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAdjustmentNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
