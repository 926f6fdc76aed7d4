package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/export"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

// ExportFile is a rendered download.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportService renders activity ledgers for owners and reviewers.
type ExportService interface {
	ActivityLedger(ctx context.Context, user authz.User, activityID uint) (ExportFile, error)
}

type exportService struct {
	activities repository.ActivityRepository
	users      repository.UserRepository
	logger     zerolog.Logger
}

// NewExportService constructs the export service.
func NewExportService(activities repository.ActivityRepository, users repository.UserRepository, logger zerolog.Logger) ExportService {
	return &exportService{
		activities: activities,
		users:      users,
		logger:     logger.With().Str("component", "export_service").Logger(),
	}
}

func (s *exportService) ActivityLedger(ctx context.Context, user authz.User, activityID uint) (ExportFile, error) {
	activity, err := s.activities.GetDetailed(ctx, activityID)
	if err != nil {
		return ExportFile{}, lookupError(err, "activity", activityID)
	}
	caps := authz.Resolve(user, activity)
	if !caps.IsOwner && !caps.IsReviewer {
		return ExportFile{}, apperr.PermissionDenied("export ledger", "owner or reviewer")
	}

	ids := make([]uint, 0, len(activity.Participants)+len(activity.Applications))
	for _, p := range activity.Participants {
		ids = append(ids, p.UserID)
	}
	for _, a := range activity.Applications {
		ids = append(ids, a.UserID)
	}
	found, err := s.users.FindByIDs(ctx, uniqueIDs(ids))
	if err != nil {
		return ExportFile{}, err
	}
	users := make(map[uint]models.User, len(found))
	for _, u := range found {
		users[u.ID] = u
	}

	var buf bytes.Buffer
	if err := export.WriteLedger(&buf, activity, users); err != nil {
		s.logger.Error().Err(err).Uint("activity_id", activityID).Msg("failed to render ledger")
		return ExportFile{}, err
	}

	return ExportFile{
		FileName:    fmt.Sprintf("activity-%d-ledger.xlsx", activityID),
		ContentType: xlsxContentType,
		Content:     buf.Bytes(),
	}, nil
}
