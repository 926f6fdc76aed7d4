package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/activity-credit-api/internal/database"
	"github.com/noah-isme/activity-credit-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedActivity(t *testing.T, db *gorm.DB, ownerID uint, status string) models.Activity {
	t.Helper()
	activity := models.Activity{
		Title:    "Robotics league",
		Category: "competition",
		Status:   status,
		OwnerID:  ownerID,
	}
	require.NoError(t, db.Create(&activity).Error)
	return activity
}

func TestParticipantRepositoryInsertIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewParticipantRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusDraft)
	ctx := context.Background()

	added, err := repo.Insert(ctx, activity.ID, []uint{2, 3}, 2, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(2), added)

	added, err = repo.Insert(ctx, activity.ID, []uint{2}, 5, time.Now())
	require.NoError(t, err)
	require.Equal(t, int64(0), added)

	participants, err := repo.List(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
	require.Equal(t, 2.0, participants[0].Credits, "existing credits must be left untouched")
}

func TestParticipantRepositoryTransactionRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewParticipantRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusDraft)
	ctx := context.Background()

	_, err := repo.Insert(ctx, activity.ID, []uint{2, 3}, 1, time.Now())
	require.NoError(t, err)

	err = repo.Transaction(ctx, func(tx ParticipantRepository) error {
		if _, err := tx.Delete(ctx, activity.ID, []uint{2}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.ErrorIs(t, err, gorm.ErrInvalidData)

	participants, err := repo.List(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, participants, 2)
}

func TestActivityRepositoryUpdateIfStatusIsCompareAndSwap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusPendingReview)
	ctx := context.Background()

	affected, err := repo.UpdateIfStatus(ctx, activity.ID, models.ActivityStatusPendingReview, map[string]interface{}{"status": models.ActivityStatusApproved})
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	affected, err = repo.UpdateIfStatus(ctx, activity.ID, models.ActivityStatusPendingReview, map[string]interface{}{"status": models.ActivityStatusRejected})
	require.NoError(t, err)
	require.Equal(t, int64(0), affected)

	stored, err := repo.GetByID(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusApproved, stored.Status)
}

func TestActivityRepositoryListFiltersByOwnerOrParticipant(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	owned := seedActivity(t, db, 5, models.ActivityStatusDraft)
	joined := seedActivity(t, db, 6, models.ActivityStatusApproved)
	_ = seedActivity(t, db, 7, models.ActivityStatusDraft)
	require.NoError(t, db.Create(&models.Participant{ActivityID: joined.ID, UserID: 5, JoinedAt: time.Now()}).Error)

	user := uint(5)
	items, total, err := repo.ListWithFilter(context.Background(), ActivityFilter{OwnerID: &user, ParticipantID: &user, PageSize: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	ids := []uint{items[0].ID, items[1].ID}
	require.ElementsMatch(t, []uint{owned.ID, joined.ID}, ids)

	items, total, err = repo.ListWithFilter(context.Background(), ActivityFilter{Status: models.ActivityStatusApproved})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, joined.ID, items[0].ID)

	stranger := uint(9)
	items, total, err = repo.ListWithFilter(context.Background(), ActivityFilter{VisibleTo: &stranger})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, joined.ID, items[0].ID)
}

func TestActivityRepositoryDeleteIfStatusRemovesChildren(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusDraft)
	require.NoError(t, db.Create(&models.Participant{ActivityID: activity.ID, UserID: 2, JoinedAt: time.Now()}).Error)
	ctx := context.Background()

	affected, err := repo.DeleteIfStatus(ctx, activity.ID, models.ActivityStatusApproved)
	require.NoError(t, err)
	require.Equal(t, int64(0), affected)

	affected, err = repo.DeleteIfStatus(ctx, activity.ID, models.ActivityStatusDraft)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	var count int64
	require.NoError(t, db.Model(&models.Participant{}).Where("activity_id = ?", activity.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestApplicationRepositoryVisibility(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApplicationRepository(db)
	owned := seedActivity(t, db, 9, models.ActivityStatusApproved)
	other := seedActivity(t, db, 8, models.ActivityStatusApproved)
	ctx := context.Background()

	for _, app := range []models.Application{
		{ActivityID: owned.ID, UserID: 2, Status: models.ApplicationStatusPending},
		{ActivityID: other.ID, UserID: 9, Status: models.ApplicationStatusPending},
		{ActivityID: other.ID, UserID: 3, Status: models.ApplicationStatusRejected},
	} {
		app := app
		require.NoError(t, repo.Create(ctx, &app))
	}

	viewer := uint(9)
	items, total, err := repo.List(ctx, ApplicationFilter{VisibleTo: &viewer})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	count, err := repo.CountActive(ctx, other.ID, 3)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAttachmentRepositoryIncrementDownloads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttachmentRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusDraft)
	ctx := context.Background()

	attachment := models.Attachment{ActivityID: activity.ID, FileName: "poster.pdf", URL: "https://files.test/poster.pdf", UploadedBy: 1}
	status, err := repo.CreateIfActivityStatus(ctx, &attachment, models.ActivityStatusDraft)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusDraft, status)
	require.NoError(t, repo.IncrementDownloads(ctx, activity.ID, attachment.ID))
	require.NoError(t, repo.IncrementDownloads(ctx, activity.ID, attachment.ID))

	stored, err := repo.Get(ctx, activity.ID, attachment.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), stored.DownloadCount)

	require.ErrorIs(t, repo.Delete(ctx, activity.ID+1, attachment.ID), gorm.ErrRecordNotFound)
}

func TestAttachmentRepositoryWritesOnlyWhileStatusMatches(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttachmentRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusDraft)
	ctx := context.Background()

	kept := models.Attachment{ActivityID: activity.ID, FileName: "poster.pdf", URL: "https://files.test/poster.pdf", UploadedBy: 1}
	_, err := repo.CreateIfActivityStatus(ctx, &kept, models.ActivityStatusDraft)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Activity{}).Where("id = ?", activity.ID).
		Update("status", models.ActivityStatusPendingReview).Error)

	late := models.Attachment{ActivityID: activity.ID, FileName: "late.pdf", URL: "https://files.test/late.pdf", UploadedBy: 1}
	status, err := repo.CreateIfActivityStatus(ctx, &late, models.ActivityStatusDraft)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPendingReview, status)
	require.Zero(t, late.ID)

	status, err = repo.DeleteIfActivityStatus(ctx, activity.ID, kept.ID, models.ActivityStatusDraft)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPendingReview, status)

	attachments, err := repo.List(ctx, activity.ID)
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	require.Equal(t, "poster.pdf", attachments[0].FileName)

	_, err = repo.CreateIfActivityStatus(ctx, &models.Attachment{ActivityID: activity.ID + 100}, models.ActivityStatusDraft)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLedgerGuardLocksParentRow(t *testing.T) {
	// SQLite drops row locks, so the emitted SQL is checked against the
	// Postgres dialect without connecting.
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost user=credit dbname=credit sslmode=disable"}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	statement := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		var activity models.Activity
		return forUpdate(tx).First(&activity, 7)
	})
	require.Contains(t, statement, `FROM "activities"`)
	require.True(t, strings.HasSuffix(statement, "FOR UPDATE"), statement)
}

func TestParticipantRepositoryLockActivityInTransaction(t *testing.T) {
	db := setupTestDB(t)
	repo := NewParticipantRepository(db)
	activity := seedActivity(t, db, 1, models.ActivityStatusDraft)
	ctx := context.Background()

	err := repo.Transaction(ctx, func(tx ParticipantRepository) error {
		locked, err := tx.LockActivity(ctx, activity.ID)
		require.NoError(t, err)
		require.Equal(t, models.ActivityStatusDraft, locked.Status)

		_, err = tx.LockActivity(ctx, activity.ID+100)
		require.ErrorIs(t, err, gorm.ErrRecordNotFound)
		return nil
	})
	require.NoError(t, err)
}
