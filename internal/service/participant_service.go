package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/lifecycle"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/observability"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

// ParticipantService manages the per-activity participant credit ledger.
// Every mutation re-reads the activity inside its transaction and requires
// the caller to own it while it is still a draft.
type ParticipantService interface {
	List(ctx context.Context, user authz.User, activityID uint) ([]dto.ParticipantResponse, error)
	Add(ctx context.Context, user authz.User, activityID uint, req dto.ParticipantAddRequest) (dto.ParticipantAddResponse, error)
	Remove(ctx context.Context, user authz.User, activityID, userID uint) error
	BatchRemove(ctx context.Context, user authz.User, activityID uint, req dto.BatchRemoveRequest) (dto.BatchResultResponse, error)
	SetCredits(ctx context.Context, user authz.User, activityID, userID uint, req dto.CreditsUpdateRequest) (dto.ParticipantResponse, error)
	BatchSetCredits(ctx context.Context, user authz.User, activityID uint, req dto.BatchCreditsRequest) (dto.BatchResultResponse, error)
	Leave(ctx context.Context, user authz.User, activityID uint) error
}

type participantService struct {
	repo      repository.ParticipantRepository
	audit     AuditRecorder
	events    EventPublisher
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewParticipantService constructs the ledger service.
func NewParticipantService(repo repository.ParticipantRepository, audit AuditRecorder, events EventPublisher, validate *validator.Validate, logger zerolog.Logger) ParticipantService {
	return &participantService{
		repo:      repo,
		audit:     audit,
		events:    events,
		validator: validate,
		logger:    logger.With().Str("component", "participant_service").Logger(),
		now:       time.Now,
	}
}

func (s *participantService) List(ctx context.Context, user authz.User, activityID uint) ([]dto.ParticipantResponse, error) {
	activity, err := s.repo.GetActivity(ctx, activityID)
	if err != nil {
		return nil, lookupError(err, "activity", activityID)
	}
	participants, err := s.repo.List(ctx, activityID)
	if err != nil {
		return nil, err
	}
	activity.Participants = participants
	if !canView(user, activity) {
		return nil, apperr.PermissionDenied("view participants", "owner, reviewer or participant")
	}
	return dto.NewParticipantResponseSlice(participants), nil
}

func (s *participantService) Add(ctx context.Context, user authz.User, activityID uint, req dto.ParticipantAddRequest) (dto.ParticipantAddResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ParticipantAddResponse{}, validationError(err)
	}
	if !lifecycle.CreditsInRange(req.Credits) {
		return dto.ParticipantAddResponse{}, apperr.Validation("credits", "credits out of range")
	}

	userIDs := uniqueIDs(req.UserIDs)
	var added int64
	err := s.repo.Transaction(ctx, func(tx repository.ParticipantRepository) error {
		if _, err := guardLedger(ctx, tx, user, activityID, "add participants"); err != nil {
			return err
		}
		n, err := tx.Insert(ctx, activityID, userIDs, req.Credits, s.now())
		added = n
		return err
	})
	if err != nil {
		observability.LedgerMutations().WithLabelValues("add", "failed").Inc()
		return dto.ParticipantAddResponse{}, err
	}
	observability.LedgerMutations().WithLabelValues("add", "ok").Inc()

	s.afterMutation(ctx, user, activityID, "participants.added", map[string]interface{}{
		"user_ids": userIDs,
		"added":    added,
		"credits":  req.Credits,
	})
	return dto.ParticipantAddResponse{AddedCount: int(added)}, nil
}

func (s *participantService) Remove(ctx context.Context, user authz.User, activityID, userID uint) error {
	err := s.repo.Transaction(ctx, func(tx repository.ParticipantRepository) error {
		if _, err := guardLedger(ctx, tx, user, activityID, "remove participant"); err != nil {
			return err
		}
		removed, err := tx.Delete(ctx, activityID, []uint{userID})
		if err != nil {
			return err
		}
		if removed == 0 {
			return apperr.NotFound("participant", userID)
		}
		return nil
	})
	if err != nil {
		observability.LedgerMutations().WithLabelValues("remove", "failed").Inc()
		return err
	}
	observability.LedgerMutations().WithLabelValues("remove", "ok").Inc()

	s.afterMutation(ctx, user, activityID, "participants.removed", map[string]interface{}{"user_ids": []uint{userID}})
	return nil
}

func (s *participantService) BatchRemove(ctx context.Context, user authz.User, activityID uint, req dto.BatchRemoveRequest) (dto.BatchResultResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BatchResultResponse{}, validationError(err)
	}

	userIDs := uniqueIDs(req.UserIDs)
	var removed int64
	err := s.repo.Transaction(ctx, func(tx repository.ParticipantRepository) error {
		if _, err := guardLedger(ctx, tx, user, activityID, "remove participants"); err != nil {
			return err
		}
		existing, err := tx.FindByUsers(ctx, activityID, userIDs)
		if err != nil {
			return err
		}
		if failures := missingParticipants(userIDs, existing); len(failures) > 0 {
			return apperr.NewBatchError("batch-remove", apperr.ErrNotFound, failures)
		}
		removed, err = tx.Delete(ctx, activityID, userIDs)
		return err
	})
	if err != nil {
		observability.LedgerMutations().WithLabelValues("batch_remove", "failed").Inc()
		return dto.BatchResultResponse{}, err
	}
	observability.LedgerMutations().WithLabelValues("batch_remove", "ok").Inc()

	s.afterMutation(ctx, user, activityID, "participants.removed", map[string]interface{}{"user_ids": userIDs})
	return dto.BatchResultResponse{Affected: int(removed)}, nil
}

func (s *participantService) SetCredits(ctx context.Context, user authz.User, activityID, userID uint, req dto.CreditsUpdateRequest) (dto.ParticipantResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ParticipantResponse{}, validationError(err)
	}
	credits := *req.Credits
	if !lifecycle.CreditsInRange(credits) {
		return dto.ParticipantResponse{}, apperr.Validation("credits", "credits out of range")
	}

	var updated models.Participant
	err := s.repo.Transaction(ctx, func(tx repository.ParticipantRepository) error {
		if _, err := guardLedger(ctx, tx, user, activityID, "set credits"); err != nil {
			return err
		}
		affected, err := tx.UpdateCredits(ctx, activityID, userID, credits)
		if err != nil {
			return err
		}
		if affected == 0 {
			return apperr.NotFound("participant", userID)
		}
		rows, err := tx.FindByUsers(ctx, activityID, []uint{userID})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperr.NotFound("participant", userID)
		}
		updated = rows[0]
		return nil
	})
	if err != nil {
		observability.LedgerMutations().WithLabelValues("set_credits", "failed").Inc()
		return dto.ParticipantResponse{}, err
	}
	observability.LedgerMutations().WithLabelValues("set_credits", "ok").Inc()

	s.afterMutation(ctx, user, activityID, "participants.credits_set", map[string]interface{}{
		"credits": map[string]float64{fmt.Sprint(userID): credits},
	})
	return dto.NewParticipantResponse(updated), nil
}

func (s *participantService) BatchSetCredits(ctx context.Context, user authz.User, activityID uint, req dto.BatchCreditsRequest) (dto.BatchResultResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.BatchResultResponse{}, validationError(err)
	}

	userIDs := make([]uint, 0, len(req.Credits))
	for userID := range req.Credits {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var rangeFailures []apperr.ItemFailure
	for _, userID := range userIDs {
		if !lifecycle.CreditsInRange(req.Credits[userID]) {
			rangeFailures = append(rangeFailures, apperr.ItemFailure{UserID: userID, Reason: "credits out of range"})
		}
	}

	var updated int64
	err := s.repo.Transaction(ctx, func(tx repository.ParticipantRepository) error {
		if _, err := guardLedger(ctx, tx, user, activityID, "set credits"); err != nil {
			return err
		}
		existing, err := tx.FindByUsers(ctx, activityID, userIDs)
		if err != nil {
			return err
		}
		failures := mergeFailures(rangeFailures, missingParticipants(userIDs, existing))
		if len(failures) > 0 {
			kind := apperr.ErrNotFound
			if len(rangeFailures) > 0 {
				kind = apperr.ErrValidation
			}
			return apperr.NewBatchError("batch-credits", kind, failures)
		}

		for _, userID := range userIDs {
			affected, err := tx.UpdateCredits(ctx, activityID, userID, req.Credits[userID])
			if err != nil {
				return err
			}
			updated += affected
		}
		return nil
	})
	if err != nil {
		observability.LedgerMutations().WithLabelValues("batch_credits", "failed").Inc()
		return dto.BatchResultResponse{}, err
	}
	observability.LedgerMutations().WithLabelValues("batch_credits", "ok").Inc()

	credits := make(map[string]float64, len(req.Credits))
	for userID, value := range req.Credits {
		credits[fmt.Sprint(userID)] = value
	}
	s.afterMutation(ctx, user, activityID, "participants.credits_set", map[string]interface{}{"credits": credits})
	return dto.BatchResultResponse{Affected: int(updated)}, nil
}

func (s *participantService) Leave(ctx context.Context, user authz.User, activityID uint) error {
	err := s.repo.Transaction(ctx, func(tx repository.ParticipantRepository) error {
		activity, err := tx.LockActivity(ctx, activityID)
		if err != nil {
			return lookupError(err, "activity", activityID)
		}
		rows, err := tx.FindByUsers(ctx, activityID, []uint{user.ID})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return apperr.PermissionDenied("leave activity", "participant")
		}
		if err := lifecycle.RequireEditable(activity.Status, "leave"); err != nil {
			return err
		}
		_, err = tx.Delete(ctx, activityID, []uint{user.ID})
		return err
	})
	if err != nil {
		observability.LedgerMutations().WithLabelValues("leave", "failed").Inc()
		return err
	}
	observability.LedgerMutations().WithLabelValues("leave", "ok").Inc()

	s.afterMutation(ctx, user, activityID, "participants.left", map[string]interface{}{"user_ids": []uint{user.ID}})
	return nil
}

func (s *participantService) afterMutation(ctx context.Context, user authz.User, activityID uint, action string, metadata map[string]interface{}) {
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     action,
		EntityType: "activity",
		EntityID:   uintPtr(activityID),
		Metadata:   metadata,
	})
	publishEvent(ctx, s.events, s.logger, LifecycleEvent{
		Type:       action,
		EntityType: "activity",
		EntityID:   activityID,
		ActivityID: activityID,
		ActorID:    user.ID,
	})
}

// guardLedger loads the activity inside the running transaction and checks
// that user owns it and it is still a draft.
func guardLedger(ctx context.Context, tx repository.ParticipantRepository, user authz.User, activityID uint, attempted string) (models.Activity, error) {
	activity, err := tx.LockActivity(ctx, activityID)
	if err != nil {
		return models.Activity{}, lookupError(err, "activity", activityID)
	}
	if !authz.Resolve(user, activity).IsOwner {
		return models.Activity{}, apperr.PermissionDenied(attempted, "owner")
	}
	if err := lifecycle.RequireEditable(activity.Status, attempted); err != nil {
		return models.Activity{}, err
	}
	return activity, nil
}

func missingParticipants(requested []uint, existing []models.Participant) []apperr.ItemFailure {
	present := make(map[uint]struct{}, len(existing))
	for _, participant := range existing {
		present[participant.UserID] = struct{}{}
	}
	var failures []apperr.ItemFailure
	for _, userID := range requested {
		if _, ok := present[userID]; !ok {
			failures = append(failures, apperr.ItemFailure{UserID: userID, Reason: "not a participant"})
		}
	}
	return failures
}

func mergeFailures(groups ...[]apperr.ItemFailure) []apperr.ItemFailure {
	var merged []apperr.ItemFailure
	for _, group := range groups {
		merged = append(merged, group...)
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].UserID < merged[j].UserID })
	return merged
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
