package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// ApplicationFilter narrows application queries.
type ApplicationFilter struct {
	ActivityID *uint
	UserID     *uint
	Status     string
	// VisibleTo restricts results to the user's own applications and
	// applications against activities the user owns.
	VisibleTo *uint
	Page      int
	PageSize  int
}

// ApplicationRepository defines data operations for credit applications.
type ApplicationRepository interface {
	List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error)
	GetByID(ctx context.Context, id uint) (models.Application, error)
	CountActive(ctx context.Context, activityID, userID uint) (int64, error)
	Create(ctx context.Context, application *models.Application) error
	UpdateIfStatus(ctx context.Context, id uint, expected string, updates map[string]interface{}) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type applicationRepository struct {
	db *gorm.DB
}

// NewApplicationRepository instantiates the repository.
func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) filtered(ctx context.Context, filter ApplicationFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&models.Application{})

	if filter.ActivityID != nil {
		query = query.Where("activity_id = ?", *filter.ActivityID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.VisibleTo != nil {
		query = query.Where("user_id = ? OR activity_id IN (?)", *filter.VisibleTo,
			r.db.Model(&models.Activity{}).Select("id").Where("owner_id = ?", *filter.VisibleTo))
	}
	return query
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]models.Application, int64, error) {
	query := r.filtered(ctx, filter)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var applications []models.Application
	if err := query.Order("created_at DESC, id DESC").Find(&applications).Error; err != nil {
		return nil, 0, err
	}
	return applications, total, nil
}

func (r *applicationRepository) GetByID(ctx context.Context, id uint) (models.Application, error) {
	var application models.Application
	if err := r.db.WithContext(ctx).Preload("Activity").First(&application, id).Error; err != nil {
		return models.Application{}, err
	}
	return application, nil
}

func (r *applicationRepository) CountActive(ctx context.Context, activityID, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Application{}).
		Where("activity_id = ? AND user_id = ? AND status <> ?", activityID, userID, models.ApplicationStatusRejected).
		Count(&count).Error
	return count, err
}

func (r *applicationRepository) Create(ctx context.Context, application *models.Application) error {
	return r.db.WithContext(ctx).Omit("Activity").Create(application).Error
}

func (r *applicationRepository) UpdateIfStatus(ctx context.Context, id uint, expected string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *applicationRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Application{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
