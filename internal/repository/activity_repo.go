package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// ActivityFilter describes pagination & search options for activities.
type ActivityFilter struct {
	Search        string
	Status        string
	Category      string
	OwnerID       *uint
	ParticipantID *uint
	// VisibleTo limits results to activities the user owns, participates in,
	// or that are approved.
	VisibleTo *uint
	Sort      string
	Page      int
	PageSize  int
}

// ActivityRepository defines persistence operations for activities.
type ActivityRepository interface {
	ListWithFilter(ctx context.Context, filter ActivityFilter) ([]models.Activity, int64, error)
	GetByID(ctx context.Context, id uint) (models.Activity, error)
	GetDetailed(ctx context.Context, id uint) (models.Activity, error)
	Create(ctx context.Context, activity *models.Activity) error
	// UpdateIfStatus writes the given columns only while the persisted status
	// still equals expected. It returns the number of rows changed.
	UpdateIfStatus(ctx context.Context, id uint, expected string, updates map[string]interface{}) (int64, error)
	DeleteIfStatus(ctx context.Context, id uint, expected string) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository instantiates a GORM-backed repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) ListWithFilter(ctx context.Context, filter ActivityFilter) ([]models.Activity, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Activity{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", strings.ToLower(filter.Category))
	}
	if filter.OwnerID != nil && filter.ParticipantID != nil {
		query = query.Where("owner_id = ? OR id IN (?)", *filter.OwnerID,
			r.db.Model(&models.Participant{}).Select("activity_id").Where("user_id = ?", *filter.ParticipantID))
	} else if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	} else if filter.ParticipantID != nil {
		query = query.Where("id IN (?)",
			r.db.Model(&models.Participant{}).Select("activity_id").Where("user_id = ?", *filter.ParticipantID))
	}
	if filter.VisibleTo != nil {
		query = query.Where("owner_id = ? OR status = ? OR id IN (?)", *filter.VisibleTo, models.ActivityStatusApproved,
			r.db.Model(&models.Participant{}).Select("activity_id").Where("user_id = ?", *filter.VisibleTo))
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeActivitySort(filter.Sort))

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var activities []models.Activity
	if err := query.Find(&activities).Error; err != nil {
		return nil, 0, err
	}

	return activities, total, nil
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *activityRepository) GetDetailed(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	err := r.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("joined_at ASC, id ASC") }).
		Preload("Applications", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&activity, id).Error
	if err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *activityRepository) UpdateIfStatus(ctx context.Context, id uint, expected string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Activity{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *activityRepository) DeleteIfStatus(ctx context.Context, id uint, expected string) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND status = ?", id, expected).Delete(&models.Activity{})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		if affected == 0 {
			return nil
		}
		return deleteChildren(tx, id)
	})
	return affected, err
}

func (r *activityRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&models.Activity{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return deleteChildren(tx, id)
	})
}

// deleteChildren removes dependent rows explicitly; sqlite does not enforce
// the cascade declared on the models unless foreign keys are switched on.
func deleteChildren(tx *gorm.DB, activityID uint) error {
	for _, model := range []interface{}{&models.Participant{}, &models.Application{}, &models.Attachment{}} {
		if err := tx.Where("activity_id = ?", activityID).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}

func normalizeActivitySort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "created_at", "created_at:asc", "created_at.asc":
		return "created_at ASC"
	case "updated_at", "updated_at:asc", "updated_at.asc":
		return "updated_at ASC"
	case "-updated_at", "updated_at:desc", "updated_at.desc":
		return "updated_at DESC"
	case "start_date", "start_date:asc", "start_date.asc":
		return "start_date ASC"
	case "-start_date", "start_date:desc", "start_date.desc":
		return "start_date DESC"
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	default:
		return "created_at DESC"
	}
}

// lockActivity loads an activity and holds a row lock on it until the
// surrounding transaction ends, so status updates on the same row wait.
// SQLite has no row locks; its single writer gives the same ordering.
func lockActivity(ctx context.Context, db *gorm.DB, activityID uint) (models.Activity, error) {
	var activity models.Activity
	if err := forUpdate(db.WithContext(ctx)).First(&activity, activityID).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}
