package service

import (
	"context"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/category"
	"github.com/noah-isme/activity-credit-api/internal/database"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

var (
	student1 = authz.User{ID: 1, Role: authz.RoleStudent}
	student2 = authz.User{ID: 2, Role: authz.RoleStudent}
	student3 = authz.User{ID: 3, Role: authz.RoleStudent}
	teacher  = authz.User{ID: 10, Role: authz.RoleTeacher}
	teacher2 = authz.User{ID: 11, Role: authz.RoleTeacher}
	admin    = authz.User{ID: 99, Role: authz.RoleAdmin}
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type fixture struct {
	db            *gorm.DB
	redis         *redis.Client
	activityRepo  repository.ActivityRepository
	appRepo       repository.ApplicationRepository
	auditRepo     repository.AuditLogRepository
	audit         AuditService
	confirmations ConfirmationService
	activities    ActivityService
	participants  ParticipantService
	applications  ApplicationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenSQLite(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	validate := NewValidator()
	logger := testLogger()

	f := &fixture{
		db:           db,
		redis:        client,
		activityRepo: repository.NewActivityRepository(db),
		appRepo:      repository.NewApplicationRepository(db),
		auditRepo:    repository.NewAuditLogRepository(db),
	}
	f.audit = NewAuditService(f.auditRepo, logger)
	f.confirmations = NewConfirmationService(client, "test", 0, logger)
	events := NewEventPublisher(client, "test", nil, logger)
	f.activities = NewActivityService(f.activityRepo, category.DefaultRegistry(), f.confirmations, f.audit, events, validate, logger)
	f.participants = NewParticipantService(repository.NewParticipantRepository(db), f.audit, events, validate, logger)
	f.applications = NewApplicationService(f.appRepo, f.activityRepo, ApplicationPolicy{}, f.audit, events, validate, logger)
	return f
}

func competitionRequest() dto.ActivityCreateRequest {
	return dto.ActivityCreateRequest{
		Title:    "Robotics league",
		Category: category.Competition,
		Details: map[string]interface{}{
			"competition_name":  "National Robotics League",
			"competition_level": "national",
			"award_rank":        "first",
		},
	}
}

func (f *fixture) createDraft(t *testing.T, owner authz.User) dto.ActivityResponse {
	t.Helper()
	activity, err := f.activities.Create(context.Background(), owner, competitionRequest())
	require.NoError(t, err)
	return activity
}

// setStatus forces a persisted status, bypassing the lifecycle.
func (f *fixture) setStatus(t *testing.T, id uint, status string) {
	t.Helper()
	require.NoError(t, f.db.Model(&models.Activity{}).Where("id = ?", id).Update("status", status).Error)
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.AuditLog{}).Where("action = ?", action).Count(&count).Error)
	return count
}

func (f *fixture) token(t *testing.T, user authz.User, id uint, action string) string {
	t.Helper()
	confirmation, err := f.activities.RequestConfirmation(context.Background(), user, id, action)
	require.NoError(t, err)
	return confirmation.Token
}

func ptrFloat(v float64) *float64 {
	return &v
}

func ptrString(v string) *string {
	return &v
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}
