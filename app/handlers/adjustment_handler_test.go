package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wmjones/demand-planning-api/app/dto"
	businessflow "github.com/wmjones/demand-planning-api/business_flow"
)

// recordingAdjustmentFlow captures the arguments the handler forwards so tests
// can assert on the request shape without a database.
type recordingAdjustmentFlow struct {
	lastSetID     uint
	lastSetActive bool
	lastDeleteID  uint
}

func (r *recordingAdjustmentFlow) CreateAdjustment(ctx context.Context, req *dto.CreateAdjustmentRequest, identity businessflow.Identity, metadata *businessflow.ClientMetadata) (*dto.CreateAdjustmentResponse, error) {
	return &dto.CreateAdjustmentResponse{Message: "Adjustment created successfully"}, nil
}

func (r *recordingAdjustmentFlow) ListAdjustments(ctx context.Context, query dto.ListAdjustmentsQuery, identity businessflow.Identity, metadata *businessflow.ClientMetadata) (*dto.ListAdjustmentsResponse, error) {
	return &dto.ListAdjustmentsResponse{Message: "Adjustments retrieved successfully"}, nil
}

func (r *recordingAdjustmentFlow) SetAdjustmentActive(ctx context.Context, id uint, isActive bool, identity businessflow.Identity, metadata *businessflow.ClientMetadata) (*dto.UpdateAdjustmentResponse, error) {
	r.lastSetID = id
	r.lastSetActive = isActive
	return &dto.UpdateAdjustmentResponse{Message: "Adjustment updated successfully"}, nil
}

func (r *recordingAdjustmentFlow) DeleteAdjustment(ctx context.Context, id uint, identity businessflow.Identity, metadata *businessflow.ClientMetadata) (*dto.DeleteAdjustmentResponse, error) {
	r.lastDeleteID = id
	return &dto.DeleteAdjustmentResponse{Message: "Adjustment deleted successfully"}, nil
}

func newAdjustmentTestApp(flow businessflow.AdjustmentFlow) *fiber.App {
	handler := NewAdjustmentHandler(flow)

	app := fiber.New()
	app.Use(func(c fiber.Ctx) error {
		c.Locals("user_id", "user-test")
		c.Locals("user_email", "test@example.com")
		return c.Next()
	})
	app.Patch("/api/v1/adjustments", handler.UpdateAdjustment)
	app.Delete("/api/v1/adjustments", handler.DeleteAdjustment)

	return app
}

func TestUpdateAdjustmentRequestShape(t *testing.T) {
	t.Run("IDTravelsInBody", func(t *testing.T) {
		flow := &recordingAdjustmentFlow{}
		app := newAdjustmentTestApp(flow)

		body, err := json.Marshal(fiber.Map{"id": 42, "is_active": false})
		require.NoError(t, err)

		req := httptest.NewRequest(fiber.MethodPatch, "/api/v1/adjustments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, uint(42), flow.lastSetID)
		assert.False(t, flow.lastSetActive)
	})

	t.Run("MissingIDRejected", func(t *testing.T) {
		flow := &recordingAdjustmentFlow{}
		app := newAdjustmentTestApp(flow)

		body, err := json.Marshal(fiber.Map{"is_active": true})
		require.NoError(t, err)

		req := httptest.NewRequest(fiber.MethodPatch, "/api/v1/adjustments", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, flow.lastSetID)
	})
}

func TestDeleteAdjustmentRequestShape(t *testing.T) {
	t.Run("IDTravelsInQueryString", func(t *testing.T) {
		flow := &recordingAdjustmentFlow{}
		app := newAdjustmentTestApp(flow)

		req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/adjustments?id=7", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, uint(7), flow.lastDeleteID)
	})

	t.Run("MissingIDRejected", func(t *testing.T) {
		flow := &recordingAdjustmentFlow{}
		app := newAdjustmentTestApp(flow)

		req := httptest.NewRequest(fiber.MethodDelete, "/api/v1/adjustments", nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, flow.lastDeleteID)
	})
}
