package businessflow

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/wmjones/demand-planning-api/app/dto"
	"github.com/wmjones/demand-planning-api/config"
	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/repository"
	"github.com/wmjones/demand-planning-api/utils"
)

// AdjustmentFlow manages the lifecycle of forecast adjustments
type AdjustmentFlow interface {
	CreateAdjustment(ctx context.Context, req *dto.CreateAdjustmentRequest, identity Identity, metadata *ClientMetadata) (*dto.CreateAdjustmentResponse, error)
	ListAdjustments(ctx context.Context, query dto.ListAdjustmentsQuery, identity Identity, metadata *ClientMetadata) (*dto.ListAdjustmentsResponse, error)
	SetAdjustmentActive(ctx context.Context, id uint, isActive bool, identity Identity, metadata *ClientMetadata) (*dto.UpdateAdjustmentResponse, error)
	DeleteAdjustment(ctx context.Context, id uint, identity Identity, metadata *ClientMetadata) (*dto.DeleteAdjustmentResponse, error)
}

// AdjustmentFlowImpl implements the adjustment business flow
type AdjustmentFlowImpl struct {
	adjustmentRepo repository.AdjustmentRepository
	config         *config.ProductionConfig
}

// NewAdjustmentFlow creates a new adjustment flow
func NewAdjustmentFlow(adjustmentRepo repository.AdjustmentRepository, cfg *config.ProductionConfig) AdjustmentFlow {
	return &AdjustmentFlowImpl{
		adjustmentRepo: adjustmentRepo,
		config:         cfg,
	}
}

// CreateAdjustment stores a new percentage overlay owned by the caller
func (f *AdjustmentFlowImpl) CreateAdjustment(ctx context.Context, req *dto.CreateAdjustmentRequest, identity Identity, metadata *ClientMetadata) (*dto.CreateAdjustmentResponse, error) {
	if req.AdjustmentValue == nil {
		return nil, NewBusinessError("ADJUSTMENT_VALUE_REQUIRED", "adjustment value is required", ErrAdjustmentValueNotNumeric)
	}
	value := *req.AdjustmentValue
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, NewBusinessError("ADJUSTMENT_VALUE_NOT_NUMERIC", "adjustment value must be a finite number", ErrAdjustmentValueNotNumeric)
	}
	if value < models.AdjustmentValueMin || value > models.AdjustmentValueMax {
		return nil, NewBusinessErrorf("ADJUSTMENT_VALUE_OUT_OF_RANGE",
			"adjustment value %.2f must be between %.0f and %.0f",
			ErrAdjustmentValueOutOfRange, value, models.AdjustmentValueMin, models.AdjustmentValueMax)
	}
	if req.FilterContext == nil {
		return nil, NewBusinessError("FILTER_CONTEXT_REQUIRED", "filter context is required", ErrFilterContextRequired)
	}

	scope, err := f.validateScope(req.FilterContext)
	if err != nil {
		return nil, err
	}

	adjustment := &models.Adjustment{
		AdjustmentValue: value,
		FilterContext:   scope,
		InventoryItemID: req.InventoryItemID,
		UserID:          identity.UserID,
	}
	if identity.Email != "" {
		adjustment.UserEmail = utils.ToPtr(identity.Email)
	}
	if name := displayName(identity); name != "" {
		adjustment.UserName = utils.ToPtr(name)
	}

	if err := f.adjustmentRepo.Save(ctx, adjustment); err != nil {
		return nil, NewBusinessError("ADJUSTMENT_SAVE_FAILED", "failed to save adjustment", err)
	}

	return &dto.CreateAdjustmentResponse{
		Message:    "Adjustment created successfully",
		Adjustment: toAdjustmentItem(adjustment, identity.UserID),
	}, nil
}

// validateScope checks the stored filter context and converts it to the model
// representation. All four scope keys must be present, even when empty, so a
// wildcard adjustment is always an explicit choice.
func (f *AdjustmentFlowImpl) validateScope(fc *dto.FilterContextDTO) (models.FilterContext, error) {
	if fc.States == nil || fc.DMAIDs == nil || fc.DCIDs == nil || fc.DateRange == nil {
		return models.FilterContext{}, NewBusinessError("INVALID_FILTER_CONTEXT",
			"filter context must carry the states, dmaIds, dcIds and dateRange keys", ErrInvalidFilterContext)
	}

	scope := models.FilterContext{
		InventoryItemID: fc.InventoryItemID,
		States:          *fc.States,
		DMAIDs:          *fc.DMAIDs,
		DCIDs:           *fc.DCIDs,
	}

	start, end := fc.DateRange.StartDate, fc.DateRange.EndDate
	if start != nil {
		if _, err := time.Parse(models.BusinessDateLayout, *start); err != nil {
			return scope, NewBusinessError("INVALID_FILTER_CONTEXT", "start date is not a valid business date", ErrInvalidFilterContext)
		}
	}
	if end != nil {
		if _, err := time.Parse(models.BusinessDateLayout, *end); err != nil {
			return scope, NewBusinessError("INVALID_FILTER_CONTEXT", "end date is not a valid business date", ErrInvalidFilterContext)
		}
	}
	if start != nil && end != nil && *start > *end {
		return scope, NewBusinessError("INVALID_DATE_RANGE", "start date cannot be after end date", ErrStartDateAfterEndDate)
	}
	if start != nil || end != nil {
		scope.DateRange = &models.DateRange{
			StartDate: start,
			EndDate:   end,
		}
	}

	return scope, nil
}

// displayName prefers the token's name claim and falls back to the local part
// of the email address
func displayName(identity Identity) string {
	if identity.Name != "" {
		return identity.Name
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		return identity.Email[:at]
	}
	return ""
}

// ListAdjustments returns the caller's adjustments newest first. With the all
// flag it returns everyone's adjustments, each annotated with ownership.
func (f *AdjustmentFlowImpl) ListAdjustments(ctx context.Context, query dto.ListAdjustmentsQuery, identity Identity, metadata *ClientMetadata) (*dto.ListAdjustmentsResponse, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = utils.DefaultAdjustmentListLimit
	}

	filter := models.AdjustmentFilter{
		InventoryItemID: query.InventoryItemID,
	}
	if !query.All {
		filter.UserID = utils.ToPtr(identity.UserID)
	}

	adjustments, err := f.adjustmentRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, 0)
	if err != nil {
		return nil, NewBusinessError("ADJUSTMENT_LOOKUP_FAILED", "failed to list adjustments", err)
	}

	items := make([]dto.AdjustmentItem, 0, len(adjustments))
	for _, adj := range adjustments {
		items = append(items, toAdjustmentItem(adj, identity.UserID))
	}

	return &dto.ListAdjustmentsResponse{
		Message:       "Adjustments retrieved successfully",
		Items:         items,
		Count:         len(items),
		CurrentUserID: identity.UserID,
	}, nil
}

// SetAdjustmentActive toggles an adjustment the caller owns
func (f *AdjustmentFlowImpl) SetAdjustmentActive(ctx context.Context, id uint, isActive bool, identity Identity, metadata *ClientMetadata) (*dto.UpdateAdjustmentResponse, error) {
	adjustment, err := f.ownedAdjustment(ctx, id, identity)
	if err != nil {
		return nil, err
	}

	if err := f.adjustmentRepo.UpdateIsActive(ctx, id, isActive); err != nil {
		return nil, NewBusinessError("ADJUSTMENT_UPDATE_FAILED", "failed to update adjustment", err)
	}

	adjustment.IsActive = utils.ToPtr(isActive)
	adjustment.UpdatedAt = utils.ToPtr(utils.UTCNow())

	message := "Adjustment deactivated successfully"
	if isActive {
		message = "Adjustment activated successfully"
	}

	return &dto.UpdateAdjustmentResponse{
		Message:    message,
		Adjustment: toAdjustmentItem(adjustment, identity.UserID),
	}, nil
}

// DeleteAdjustment permanently removes an adjustment the caller owns
func (f *AdjustmentFlowImpl) DeleteAdjustment(ctx context.Context, id uint, identity Identity, metadata *ClientMetadata) (*dto.DeleteAdjustmentResponse, error) {
	if _, err := f.ownedAdjustment(ctx, id, identity); err != nil {
		return nil, err
	}

	if err := f.adjustmentRepo.Delete(ctx, id); err != nil {
		return nil, NewBusinessError("ADJUSTMENT_DELETE_FAILED", "failed to delete adjustment", err)
	}

	return &dto.DeleteAdjustmentResponse{
		Message: "Adjustment deleted successfully",
	}, nil
}

// ownedAdjustment loads an adjustment and checks ownership. Existence is
// checked before ownership so a missing record never reports access denied.
func (f *AdjustmentFlowImpl) ownedAdjustment(ctx context.Context, id uint, identity Identity) (*models.Adjustment, error) {
	adjustment, err := f.adjustmentRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("ADJUSTMENT_LOOKUP_FAILED", "failed to load adjustment", err)
	}
	if adjustment == nil {
		return nil, NewBusinessError("ADJUSTMENT_NOT_FOUND", "adjustment not found", ErrAdjustmentNotFound)
	}
	if adjustment.UserID != identity.UserID {
		return nil, NewBusinessError("ADJUSTMENT_ACCESS_DENIED", "adjustment belongs to another user", ErrAdjustmentAccessDenied)
	}
	return adjustment, nil
}

// toAdjustmentItem converts an adjustment to its API representation
func toAdjustmentItem(adj *models.Adjustment, currentUserID string) dto.AdjustmentItem {
	item := dto.AdjustmentItem{
		ID:              adj.ID,
		UUID:            adj.UUID.String(),
		AdjustmentValue: adj.AdjustmentValue,
		FilterContext:   toFilterContextDTO(adj.FilterContext),
		InventoryItemID: adj.InventoryItemID,
		UserID:          adj.UserID,
		UserEmail:       adj.UserEmail,
		UserName:        adj.UserName,
		IsActive:        utils.IsTrue(adj.IsActive),
		IsOwn:           adj.UserID == currentUserID,
	}
	if adj.StartDate != nil {
		item.StartDate = utils.ToPtr(adj.StartDate.Format(models.BusinessDateLayout))
	}
	if adj.EndDate != nil {
		item.EndDate = utils.ToPtr(adj.EndDate.Format(models.BusinessDateLayout))
	}
	if !adj.CreatedAt.IsZero() {
		item.CreatedAt = adj.CreatedAt.Format(time.RFC3339)
	}
	if adj.UpdatedAt != nil {
		item.UpdatedAt = utils.ToPtr(adj.UpdatedAt.Format(time.RFC3339))
	}
	return item
}

func toFilterContextDTO(fc models.FilterContext) dto.FilterContextDTO {
	out := dto.FilterContextDTO{
		InventoryItemID: fc.InventoryItemID,
		States:          scopeList(fc.States),
		DMAIDs:          scopeList(fc.DMAIDs),
		DCIDs:           scopeList(fc.DCIDs),
		DateRange:       &dto.DateRangeDTO{},
	}
	if fc.DateRange != nil {
		out.DateRange.StartDate = fc.DateRange.StartDate
		out.DateRange.EndDate = fc.DateRange.EndDate
	}
	return out
}

// scopeList always reports a scope dimension as a list so responses carry all
// four scope keys
func scopeList(values []string) *[]string {
	if values == nil {
		values = []string{}
	}
	return &values
}
