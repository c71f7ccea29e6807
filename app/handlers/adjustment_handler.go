package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/wmjones/demand-planning-api/app/dto"
	businessflow "github.com/wmjones/demand-planning-api/business_flow"
	"github.com/wmjones/demand-planning-api/utils"
)

// AdjustmentHandlerInterface defines the contract for adjustment handlers
type AdjustmentHandlerInterface interface {
	CreateAdjustment(c fiber.Ctx) error
	ListAdjustments(c fiber.Ctx) error
	UpdateAdjustment(c fiber.Ctx) error
	DeleteAdjustment(c fiber.Ctx) error
}

// AdjustmentHandler handles adjustment-related HTTP requests
type AdjustmentHandler struct {
	adjustmentFlow businessflow.AdjustmentFlow
	validator      *validator.Validate
}

func (h *AdjustmentHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *AdjustmentHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewAdjustmentHandler creates a new adjustment handler
func NewAdjustmentHandler(adjustmentFlow businessflow.AdjustmentFlow) *AdjustmentHandler {
	return &AdjustmentHandler{
		adjustmentFlow: adjustmentFlow,
		validator:      validator.New(),
	}
}

// identityFromContext builds the caller identity from auth middleware locals
func identityFromContext(c fiber.Ctx) (businessflow.Identity, bool) {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return businessflow.Identity{}, false
	}
	email, _ := c.Locals("user_email").(string)
	name, _ := c.Locals("user_name").(string)
	return businessflow.Identity{
		UserID: userID,
		Email:  email,
		Name:   name,
	}, true
}

// CreateAdjustment handles the adjustment creation process
// @Summary Create Adjustment
// @Description Create a percentage adjustment scoped by a filter context
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param request body dto.CreateAdjustmentRequest true "Adjustment creation data"
// @Success 201 {object} dto.APIResponse{data=dto.CreateAdjustmentResponse} "Adjustment created successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/adjustments [post]
func (h *AdjustmentHandler) CreateAdjustment(c fiber.Ctx) error {
	var req dto.CreateAdjustmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	identity, ok := identityFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER_ID", nil)
	}

	// Get client information
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.adjustmentFlow.CreateAdjustment(h.createRequestContext(c, "/api/v1/adjustments"), &req, identity, metadata)
	if err != nil {
		if businessflow.IsAdjustmentValueNotNumeric(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Adjustment value must be a finite number", "ADJUSTMENT_VALUE_NOT_NUMERIC", nil)
		}
		if businessflow.IsAdjustmentValueOutOfRange(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Adjustment value must be between -100 and 100", "ADJUSTMENT_VALUE_OUT_OF_RANGE", nil)
		}
		if businessflow.IsFilterContextRequired(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Filter context is required", "FILTER_CONTEXT_REQUIRED", nil)
		}
		if businessflow.IsInvalidFilterContext(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Filter context is invalid", "INVALID_FILTER_CONTEXT", nil)
		}
		if businessflow.IsStartDateAfterEndDate(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
		}

		log.Println("Adjustment creation failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Adjustment creation failed", "ADJUSTMENT_CREATION_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Adjustment created successfully", result)
}

// ListAdjustments lists the caller's adjustments, or everyone's with all=true
// @Summary List Adjustments
// @Description List adjustments newest first, annotated with ownership
// @Tags Adjustments
// @Produce json
// @Param all query bool false "Include other users' adjustments"
// @Param limit query int false "Maximum number of adjustments to return"
// @Param inventory_item_id query int false "Restrict to one inventory item"
// @Success 200 {object} dto.APIResponse{data=dto.ListAdjustmentsResponse} "Adjustments retrieved successfully"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/adjustments [get]
func (h *AdjustmentHandler) ListAdjustments(c fiber.Ctx) error {
	var query dto.ListAdjustmentsQuery
	if err := c.Bind().Query(&query); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY_PARAMS", err.Error())
	}

	identity, ok := identityFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.adjustmentFlow.ListAdjustments(h.createRequestContext(c, "/api/v1/adjustments"), query, identity, metadata)
	if err != nil {
		log.Println("Adjustment listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Adjustment listing failed", "ADJUSTMENT_LISTING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Adjustments retrieved successfully", result)
}

// UpdateAdjustment toggles the active flag of an adjustment the caller owns.
// The adjustment id travels in the request body.
// @Summary Update Adjustment
// @Description Activate or deactivate an adjustment
// @Tags Adjustments
// @Accept json
// @Produce json
// @Param request body dto.UpdateAdjustmentRequest true "Adjustment update data"
// @Success 200 {object} dto.APIResponse{data=dto.UpdateAdjustmentResponse} "Adjustment updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Adjustment belongs to another user"
// @Failure 404 {object} dto.APIResponse "Adjustment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/adjustments [patch]
func (h *AdjustmentHandler) UpdateAdjustment(c fiber.Ctx) error {
	var req dto.UpdateAdjustmentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	// Validate request
	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	identity, ok := identityFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.adjustmentFlow.SetAdjustmentActive(h.createRequestContext(c, "/api/v1/adjustments"), req.ID, *req.IsActive, identity, metadata)
	if err != nil {
		return h.lifecycleErrorResponse(c, err, "Adjustment update failed", "ADJUSTMENT_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// DeleteAdjustment permanently removes an adjustment the caller owns. The
// adjustment id travels in the query string.
// @Summary Delete Adjustment
// @Description Delete an adjustment
// @Tags Adjustments
// @Produce json
// @Param id query int true "Adjustment ID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteAdjustmentResponse} "Adjustment deleted successfully"
// @Failure 400 {object} dto.APIResponse "Missing or invalid adjustment ID"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Adjustment belongs to another user"
// @Failure 404 {object} dto.APIResponse "Adjustment not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/adjustments [delete]
func (h *AdjustmentHandler) DeleteAdjustment(c fiber.Ctx) error {
	id, err := adjustmentIDFromQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Adjustment ID must be a positive integer", "INVALID_ADJUSTMENT_ID", nil)
	}

	identity, ok := identityFromContext(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "User not found in context", "MISSING_USER_ID", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.adjustmentFlow.DeleteAdjustment(h.createRequestContext(c, "/api/v1/adjustments"), id, identity, metadata)
	if err != nil {
		return h.lifecycleErrorResponse(c, err, "Adjustment deletion failed", "ADJUSTMENT_DELETION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// lifecycleErrorResponse maps ownership errors. Existence is reported before
// ownership so callers cannot probe other users' adjustment IDs.
func (h *AdjustmentHandler) lifecycleErrorResponse(c fiber.Ctx, err error, message, fallbackCode string) error {
	if businessflow.IsAdjustmentNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Adjustment not found", "ADJUSTMENT_NOT_FOUND", nil)
	}
	if businessflow.IsAdjustmentAccessDenied(err) {
		return h.ErrorResponse(c, fiber.StatusForbidden, "Access denied: adjustment belongs to another user", "ADJUSTMENT_ACCESS_DENIED", nil)
	}

	log.Println(message, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, message, fallbackCode, nil)
}

func adjustmentIDFromQuery(c fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Query("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, strconv.ErrSyntax
	}
	return uint(id), nil
}

// createRequestContext creates a context with timeout and request-scoped values for business flow calls
func (h *AdjustmentHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *AdjustmentHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
	// Create context with custom timeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	// Add request-scoped values for observability
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel) // Store cancel function for cleanup

	return ctx
}
