package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// ParticipantRepository persists the participant credit ledger.
type ParticipantRepository interface {
	// Transaction runs fn against a repository bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx ParticipantRepository) error) error
	GetActivity(ctx context.Context, activityID uint) (models.Activity, error)
	// LockActivity is GetActivity plus a row lock held until the transaction
	// ends. Ledger guards use it so a concurrent submit cannot slip in between
	// the draft check and the write.
	LockActivity(ctx context.Context, activityID uint) (models.Activity, error)
	List(ctx context.Context, activityID uint) ([]models.Participant, error)
	FindByUsers(ctx context.Context, activityID uint, userIDs []uint) ([]models.Participant, error)
	// Insert adds the pairs that do not exist yet and returns how many were inserted.
	Insert(ctx context.Context, activityID uint, userIDs []uint, credits float64, joinedAt time.Time) (int64, error)
	Delete(ctx context.Context, activityID uint, userIDs []uint) (int64, error)
	UpdateCredits(ctx context.Context, activityID, userID uint, credits float64) (int64, error)
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository constructs the ledger repository.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func (r *participantRepository) Transaction(ctx context.Context, fn func(tx ParticipantRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&participantRepository{db: tx})
	})
}

func (r *participantRepository) GetActivity(ctx context.Context, activityID uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, activityID).Error; err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func (r *participantRepository) LockActivity(ctx context.Context, activityID uint) (models.Activity, error) {
	return lockActivity(ctx, r.db, activityID)
}

func (r *participantRepository) List(ctx context.Context, activityID uint) ([]models.Participant, error) {
	var participants []models.Participant
	if err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("joined_at ASC, id ASC").
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepository) FindByUsers(ctx context.Context, activityID uint, userIDs []uint) ([]models.Participant, error) {
	var participants []models.Participant
	if len(userIDs) == 0 {
		return participants, nil
	}
	if err := r.db.WithContext(ctx).
		Where("activity_id = ? AND user_id IN ?", activityID, userIDs).
		Find(&participants).Error; err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *participantRepository) Insert(ctx context.Context, activityID uint, userIDs []uint, credits float64, joinedAt time.Time) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	rows := make([]models.Participant, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, models.Participant{
			ActivityID: activityID,
			UserID:     userID,
			Credits:    credits,
			JoinedAt:   joinedAt,
		})
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "activity_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	return result.RowsAffected, result.Error
}

func (r *participantRepository) Delete(ctx context.Context, activityID uint, userIDs []uint) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("activity_id = ? AND user_id IN ?", activityID, userIDs).
		Delete(&models.Participant{})
	return result.RowsAffected, result.Error
}

func (r *participantRepository) UpdateCredits(ctx context.Context, activityID, userID uint, credits float64) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Participant{}).
		Where("activity_id = ? AND user_id = ?", activityID, userID).
		Update("credits", credits)
	return result.RowsAffected, result.Error
}
