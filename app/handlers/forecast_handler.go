package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/wmjones/demand-planning-api/app/dto"
	businessflow "github.com/wmjones/demand-planning-api/business_flow"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/utils"
)

// ForecastHandlerInterface defines the contract for forecast handlers
type ForecastHandlerInterface interface {
	QueryForecast(c fiber.Ctx) error
	GetForecastSeries(c fiber.Ctx) error
	ExportForecast(c fiber.Ctx) error
}

// ForecastHandler handles forecast-related HTTP requests
type ForecastHandler struct {
	forecastFlow businessflow.ForecastFlow
	validator    *validator.Validate
}

func (h *ForecastHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *ForecastHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(forecastFlow businessflow.ForecastFlow) *ForecastHandler {
	return &ForecastHandler{
		forecastFlow: forecastFlow,
		validator:    validator.New(),
	}
}

// QueryForecast dispatches forecast query actions
// @Summary Query Forecast
// @Description Run a forecast query action against the demand data
// @Tags Forecasts
// @Accept json
// @Produce json
// @Param request body dto.ForecastQueryRequest true "Forecast query"
// @Success 200 {object} dto.APIResponse "Query executed successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid request"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 422 {object} dto.APIResponse "Query rejected by the read-only policy"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/forecasts/query [post]
func (h *ForecastHandler) QueryForecast(c fiber.Ctx) error {
	var req dto.ForecastQueryRequest
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

	// Get client information
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	ctx := h.createRequestContext(c, "/api/v1/forecasts/query")
	filter := toForecastFilter(req.Filters)

	var result any
	var err error

	switch {
	case req.Action == dto.ActionGetForecastData:
		result, err = h.forecastFlow.GetForecastData(ctx, filter, metadata)
	case req.Action == dto.ActionGetDashboardForecast:
		result, err = h.forecastFlow.GetDashboardForecast(ctx, filter, metadata)
	case req.Action == dto.ActionGetForecastSummary:
		result, err = h.forecastFlow.GetForecastSummary(ctx, filter.States, metadata)
	case req.Action == dto.ActionGetForecastByDate:
		result, err = h.forecastFlow.GetForecastByDate(ctx, filter, metadata)
	case req.Action == dto.ActionExecuteQuery:
		result, err = h.forecastFlow.ExecuteReadOnlyQuery(ctx, req.Query, metadata)
	case req.Action == dto.ActionRefreshSummary:
		result, err = h.forecastFlow.RefreshSummary(ctx, metadata)
	case strings.HasPrefix(req.Action, dto.ActionDistinctPrefix):
		dimension := strings.TrimPrefix(req.Action, dto.ActionDistinctPrefix)
		result, err = h.forecastFlow.GetDistinctValues(ctx, dimension, metadata)
	default:
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown query action", "UNKNOWN_ACTION", req.Action)
	}

	if err != nil {
		return h.queryErrorResponse(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Query executed successfully", result)
}

// queryErrorResponse maps business errors of the query engine to HTTP statuses
func (h *ForecastHandler) queryErrorResponse(c fiber.Ctx, err error) error {
	if businessflow.IsStatesRequired(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one state must be selected", "STATES_REQUIRED", nil)
	}
	if businessflow.IsStartDateAfterEndDate(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date cannot be after end date", "INVALID_DATE_RANGE", nil)
	}
	if businessflow.IsUnknownDimension(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown dimension", "UNKNOWN_DIMENSION", nil)
	}
	if businessflow.IsQueryTextRequired(err) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Query text is required", "QUERY_REQUIRED", nil)
	}
	if businessflow.IsQueryNotReadOnly(err) {
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Only read-only queries are allowed", "QUERY_NOT_READ_ONLY", nil)
	}

	log.Println("Forecast query failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Forecast query failed", "FORECAST_QUERY_FAILED", nil)
}

// GetForecastSeries returns the per-date average series for the filtered selection
// @Summary Get Forecast Series
// @Description Get the per-date average forecast for the selection
// @Tags Forecasts
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.ForecastByDateResponse} "Series retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid query parameters"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/forecasts/series [get]
func (h *ForecastHandler) GetForecastSeries(c fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY_PARAMS", err.Error())
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.forecastFlow.GetForecastByDate(h.createRequestContext(c, "/api/v1/forecasts/series"), filter, metadata)
	if err != nil {
		return h.queryErrorResponse(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Forecast series retrieved successfully", result)
}

// ExportForecast streams the adjusted forecast as a CSV or Excel file
// @Summary Export Forecast
// @Description Download the adjusted forecast for the selection
// @Tags Forecasts
// @Produce octet-stream
// @Param format query string false "Export format (csv or xlsx)"
// @Success 200 {file} file "Export file"
// @Failure 400 {object} dto.APIResponse "Invalid query parameters"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/forecasts/export [get]
func (h *ForecastHandler) ExportForecast(c fiber.Ctx) error {
	filter, err := filterFromQuery(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY_PARAMS", err.Error())
	}

	format := c.Query("format", businessflow.ExportFormatCSV)
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	// Exports read large row sets, give them a longer budget
	ctx := h.createRequestContextWithTimeout(c, "/api/v1/forecasts/export", 2*time.Minute)

	result, err := h.forecastFlow.ExportForecast(ctx, filter, format, metadata)
	if err != nil {
		if businessflow.IsInvalidExportFormat(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Export format must be csv or xlsx", "INVALID_EXPORT_FORMAT", nil)
		}
		return h.queryErrorResponse(c, err)
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.FileName))
	return c.Status(fiber.StatusOK).Send(result.Content)
}

// toForecastFilter converts the request filters to the model filter
func toForecastFilter(f *dto.ForecastFilters) models.ForecastFilter {
	if f == nil {
		return models.ForecastFilter{}
	}
	return models.ForecastFilter{
		InventoryItemID: f.InventoryItemID,
		States:          f.States,
		DMAIDs:          f.DMAIDs,
		DCIDs:           f.DCIDs,
		RestaurantIDs:   f.RestaurantIDs,
		StartDate:       f.StartDate,
		EndDate:         f.EndDate,
		Limit:           f.Limit,
	}
}

// filterFromQuery parses the selection filter from query-string parameters
func filterFromQuery(c fiber.Ctx) (models.ForecastFilter, error) {
	var filter models.ForecastFilter

	if v := c.Query("item_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("item_id must be an integer")
		}
		filter.InventoryItemID = &id
	}
	filter.States = splitQueryList(c.Query("states"))
	filter.DMAIDs = splitQueryList(c.Query("dma_ids"))
	for _, raw := range splitQueryList(c.Query("dc_ids")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, fmt.Errorf("dc_ids must be integers")
		}
		filter.DCIDs = append(filter.DCIDs, id)
	}
	if v := c.Query("start_date"); v != "" {
		if _, err := time.Parse(models.BusinessDateLayout, v); err != nil {
			return filter, fmt.Errorf("start_date must be a date in format %s", models.BusinessDateLayout)
		}
		filter.StartDate = utils.ToPtr(v)
	}
	if v := c.Query("end_date"); v != "" {
		if _, err := time.Parse(models.BusinessDateLayout, v); err != nil {
			return filter, fmt.Errorf("end_date must be a date in format %s", models.BusinessDateLayout)
		}
		filter.EndDate = utils.ToPtr(v)
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func splitQueryList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

// createRequestContext creates a context with timeout and request-scoped values for business flow calls
func (h *ForecastHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	return h.createRequestContextWithTimeout(c, endpoint, 30*time.Second)
}

// createRequestContextWithTimeout creates a context with custom timeout and request-scoped values
func (h *ForecastHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) context.Context {
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
