package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// AttachmentRepository persists metadata about activity attachments.
type AttachmentRepository interface {
	List(ctx context.Context, activityID uint) ([]models.Attachment, error)
	Get(ctx context.Context, activityID, id uint) (models.Attachment, error)
	Delete(ctx context.Context, activityID, id uint) error
	// CreateIfActivityStatus inserts the attachment only while the parent
	// activity still has the expected status, holding the parent row lock for
	// the duration. It returns the status it found; nothing is written when it
	// differs from expected.
	CreateIfActivityStatus(ctx context.Context, attachment *models.Attachment, expected string) (string, error)
	// DeleteIfActivityStatus is the delete counterpart of CreateIfActivityStatus.
	DeleteIfActivityStatus(ctx context.Context, activityID, id uint, expected string) (string, error)
	IncrementDownloads(ctx context.Context, activityID, id uint) error
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository constructs a repository for attachment records.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) List(ctx context.Context, activityID uint) ([]models.Attachment, error) {
	var attachments []models.Attachment
	if err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("created_at ASC, id ASC").
		Find(&attachments).Error; err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *attachmentRepository) Get(ctx context.Context, activityID, id uint) (models.Attachment, error) {
	var attachment models.Attachment
	if err := r.db.WithContext(ctx).
		Where("activity_id = ? AND id = ?", activityID, id).
		First(&attachment).Error; err != nil {
		return models.Attachment{}, err
	}
	return attachment, nil
}

func (r *attachmentRepository) Delete(ctx context.Context, activityID, id uint) error {
	result := r.db.WithContext(ctx).
		Where("activity_id = ? AND id = ?", activityID, id).
		Delete(&models.Attachment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *attachmentRepository) CreateIfActivityStatus(ctx context.Context, attachment *models.Attachment, expected string) (string, error) {
	var current string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := lockActivity(ctx, tx, attachment.ActivityID)
		if err != nil {
			return err
		}
		current = activity.Status
		if current != expected {
			return nil
		}
		return tx.Create(attachment).Error
	})
	return current, err
}

func (r *attachmentRepository) DeleteIfActivityStatus(ctx context.Context, activityID, id uint, expected string) (string, error) {
	var current string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity, err := lockActivity(ctx, tx, activityID)
		if err != nil {
			return err
		}
		current = activity.Status
		if current != expected {
			return nil
		}
		return (&attachmentRepository{db: tx}).Delete(ctx, activityID, id)
	})
	return current, err
}

func (r *attachmentRepository) IncrementDownloads(ctx context.Context, activityID, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("activity_id = ? AND id = ?", activityID, id).
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1)).Error
}
