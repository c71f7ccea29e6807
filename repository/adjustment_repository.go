package repository

import (
	"context"

	"github.com/wmjones/demand-planning-api/models"
	"github.com/wmjones/demand-planning-api/utils"
	"gorm.io/gorm"
)

// AdjustmentRepositoryImpl implements the AdjustmentRepository interface
type AdjustmentRepositoryImpl struct {
	*BaseRepository[models.Adjustment, models.AdjustmentFilter]
}

// NewAdjustmentRepository creates a new adjustment repository
func NewAdjustmentRepository(db *gorm.DB) AdjustmentRepository {
	return &AdjustmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Adjustment, models.AdjustmentFilter](db),
	}
}

// ByFilter retrieves adjustments based on filter criteria
func (r *AdjustmentRepositoryImpl) ByFilter(ctx context.Context, filter models.AdjustmentFilter, orderBy string, limit, offset int) ([]*models.Adjustment, error) {
	db := r.getDB(ctx)

	var adjustments []*models.Adjustment
	query := r.applyFilter(db, filter)

	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&adjustments).Error
	if err != nil {
		return nil, err
	}

	return adjustments, nil
}

// Count returns the number of adjustments matching the filter
func (r *AdjustmentRepositoryImpl) Count(ctx context.Context, filter models.AdjustmentFilter) (int64, error) {
	db := r.getDB(ctx)

	var count int64
	query := r.applyFilter(db.Model(&models.Adjustment{}), filter)

	err := query.Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Exists checks if any adjustment matching the filter exists
func (r *AdjustmentRepositoryImpl) Exists(ctx context.Context, filter models.AdjustmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// ActiveCandidates returns active adjustments whose date window can overlap
// the query's range. Scope matching stays in the business layer; this only
// prefilters on the typed columns.
func (r *AdjustmentRepositoryImpl) ActiveCandidates(ctx context.Context, filter models.ForecastFilter) ([]*models.Adjustment, error) {
	db := r.getDB(ctx)

	query := db.Where("is_active = ?", true)
	if filter.EndDate != nil {
		query = query.Where("(start_date IS NULL OR start_date <= ?)", *filter.EndDate)
	}
	if filter.StartDate != nil {
		query = query.Where("(end_date IS NULL OR end_date >= ?)", *filter.StartDate)
	}

	var adjustments []*models.Adjustment
	err := query.Order("created_at ASC, id ASC").Find(&adjustments).Error
	if err != nil {
		return nil, err
	}

	return adjustments, nil
}

// UpdateIsActive toggles the is_active flag of an adjustment
func (r *AdjustmentRepositoryImpl) UpdateIsActive(ctx context.Context, id uint, isActive bool) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Model(&models.Adjustment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":  isActive,
			"updated_at": utils.UTCNow(),
		}).Error
	if err != nil {
		return err
	}

	return nil
}

// Delete removes an adjustment permanently
func (r *AdjustmentRepositoryImpl) Delete(ctx context.Context, id uint) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}

	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	err = db.Delete(&models.Adjustment{}, id).Error
	if err != nil {
		return err
	}

	return nil
}

// applyFilter applies filter conditions to the GORM query
func (r *AdjustmentRepositoryImpl) applyFilter(db *gorm.DB, filter models.AdjustmentFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.UserID != nil {
		db = db.Where("user_id = ?", *filter.UserID)
	}
	if filter.IsActive != nil {
		db = db.Where("is_active = ?", *filter.IsActive)
	}
	if filter.InventoryItemID != nil {
		db = db.Where("inventory_item_id = ?", *filter.InventoryItemID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at < ?", *filter.CreatedBefore)
	}

	return db
}
