package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/lifecycle"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/observability"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

// ApplicationPolicy tunes which activities accept new applications.
type ApplicationPolicy struct {
	// RequireApprovedActivity only accepts applications against approved activities.
	RequireApprovedActivity bool
}

// ApplicationService runs the per-student credit application pipeline. It is
// independent of the parent activity's own review status.
type ApplicationService interface {
	Create(ctx context.Context, user authz.User, req dto.ApplicationCreateRequest) (dto.ApplicationResponse, error)
	Get(ctx context.Context, user authz.User, id uint) (dto.ApplicationResponse, error)
	List(ctx context.Context, user authz.User, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error)
	Update(ctx context.Context, user authz.User, id uint, req dto.ApplicationUpdateRequest) (dto.ApplicationResponse, error)
	Submit(ctx context.Context, user authz.User, id uint) (dto.ApplicationResponse, error)
	Review(ctx context.Context, user authz.User, id uint, req dto.ApplicationReviewRequest) (dto.ApplicationResponse, error)
	Delete(ctx context.Context, user authz.User, id uint) error
	Stats(ctx context.Context, user authz.User, req dto.ApplicationListRequest) (dto.ApplicationSummary, error)
}

type applicationService struct {
	repo       repository.ApplicationRepository
	activities repository.ActivityRepository
	policy     ApplicationPolicy
	audit      AuditRecorder
	events     EventPublisher
	validator  *validator.Validate
	sanitizer  *bluemonday.Policy
	tracer     trace.Tracer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewApplicationService constructs the application review pipeline.
func NewApplicationService(
	repo repository.ApplicationRepository,
	activities repository.ActivityRepository,
	policy ApplicationPolicy,
	audit AuditRecorder,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ApplicationService {
	return &applicationService{
		repo:       repo,
		activities: activities,
		policy:     policy,
		audit:      audit,
		events:     events,
		validator:  validate,
		sanitizer:  bluemonday.StrictPolicy(),
		tracer:     otel.Tracer(tracerPrefix + "application"),
		logger:     logger.With().Str("component", "application_service").Logger(),
		now:        time.Now,
	}
}

func (s *applicationService) Create(ctx context.Context, user authz.User, req dto.ApplicationCreateRequest) (dto.ApplicationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "application.create")
	defer span.End()
	span.SetAttributes(attribute.Int64("application.activity_id", int64(req.ActivityID)))

	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, failSpan(span, validationError(err), "validation_failed")
	}
	if !lifecycle.CreditsInRange(req.AppliedCredits) {
		return dto.ApplicationResponse{}, failSpan(span, apperr.Validation("applied_credits", "credits out of range"), "validation_failed")
	}

	activity, err := s.activities.GetByID(ctx, req.ActivityID)
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, lookupError(err, "activity", req.ActivityID), "activity_lookup_failed")
	}
	if s.policy.RequireApprovedActivity && activity.Status != models.ActivityStatusApproved {
		return dto.ApplicationResponse{}, failSpan(span, apperr.InvalidTransition("activity", activity.Status, "apply to"), "activity_not_open")
	}

	active, err := s.repo.CountActive(ctx, activity.ID, user.ID)
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, err, "count_failed")
	}
	if active > 0 {
		return dto.ApplicationResponse{}, failSpan(span, apperr.Duplicate("application", activity.ID, "an open application for this activity already exists"), "duplicate")
	}

	application := models.Application{
		ActivityID:     activity.ID,
		UserID:         user.ID,
		Status:         models.ApplicationStatusPending,
		AppliedCredits: req.AppliedCredits,
		Reason:         cleanText(s.sanitizer, req.Reason),
	}
	if req.Draft {
		application.Status = models.ApplicationStatusDraft
	} else {
		submittedAt := s.now()
		application.SubmittedAt = &submittedAt
	}

	if err := s.repo.Create(ctx, &application); err != nil {
		s.logger.Error().Err(err).Uint("activity_id", activity.ID).Msg("failed to create application")
		return dto.ApplicationResponse{}, failSpan(span, err, "create_failed")
	}
	application.Activity = &activity

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "application.created",
		EntityType: "application",
		EntityID:   uintPtr(application.ID),
		Metadata: map[string]interface{}{
			"activity_id":     activity.ID,
			"applied_credits": application.AppliedCredits,
			"status":          application.Status,
		},
	})

	return dto.NewApplicationResponse(application), nil
}

func (s *applicationService) Get(ctx context.Context, user authz.User, id uint) (dto.ApplicationResponse, error) {
	application, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, lookupError(err, "application", id)
	}
	if !canViewApplication(user, application) {
		return dto.ApplicationResponse{}, apperr.PermissionDenied("view application", "applicant, activity owner or reviewer")
	}
	return dto.NewApplicationResponse(application), nil
}

func (s *applicationService) List(ctx context.Context, user authz.User, req dto.ApplicationListRequest) (dto.ApplicationListResponse, error) {
	filter, err := s.filterFor(user, req)
	if err != nil {
		return dto.ApplicationListResponse{}, err
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	filter.Page = maxInt(req.Page, 1)
	filter.PageSize = pageSize

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ApplicationListResponse{}, err
	}
	return dto.ApplicationListResponse{
		Items:      dto.NewApplicationResponseSlice(items),
		Pagination: dto.NewPaginationMeta(filter.Page, pageSize, total),
	}, nil
}

func (s *applicationService) Stats(ctx context.Context, user authz.User, req dto.ApplicationListRequest) (dto.ApplicationSummary, error) {
	filter, err := s.filterFor(user, req)
	if err != nil {
		return dto.ApplicationSummary{}, err
	}
	items, _, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.ApplicationSummary{}, err
	}
	return SummarizeApplications(items), nil
}

func (s *applicationService) Update(ctx context.Context, user authz.User, id uint, req dto.ApplicationUpdateRequest) (dto.ApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, validationError(err)
	}

	application, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, lookupError(err, "application", id)
	}
	if application.UserID != user.ID {
		return dto.ApplicationResponse{}, apperr.PermissionDenied("edit application", "applicant")
	}
	if !lifecycle.ApplicationEditable(application.Status) {
		return dto.ApplicationResponse{}, apperr.InvalidTransition("application", application.Status, "edit")
	}

	updates := map[string]interface{}{}
	if req.AppliedCredits != nil {
		if !lifecycle.CreditsInRange(*req.AppliedCredits) {
			return dto.ApplicationResponse{}, apperr.Validation("applied_credits", "credits out of range")
		}
		updates["applied_credits"] = *req.AppliedCredits
	}
	if req.Reason != nil {
		updates["reason"] = cleanText(s.sanitizer, *req.Reason)
	}
	if len(updates) == 0 {
		return dto.NewApplicationResponse(application), nil
	}

	affected, err := s.repo.UpdateIfStatus(ctx, id, application.Status, updates)
	if err != nil {
		return dto.ApplicationResponse{}, err
	}
	if affected == 0 {
		return dto.ApplicationResponse{}, s.conflict(ctx, id)
	}

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "application.edited",
		EntityType: "application",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"fields": updatedKeys(updates)},
	})
	return s.reload(ctx, id)
}

func (s *applicationService) Submit(ctx context.Context, user authz.User, id uint) (dto.ApplicationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "application.submit")
	defer span.End()
	span.SetAttributes(attribute.Int64("application.id", int64(id)))

	application, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, lookupError(err, "application", id), "lookup_failed")
	}
	if application.UserID != user.ID {
		return dto.ApplicationResponse{}, failSpan(span, apperr.PermissionDenied("submit application", "applicant"), "permission_denied")
	}
	next, err := lifecycle.SubmitApplication(application.Status)
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, err, "invalid_transition")
	}

	submittedAt := s.now()
	affected, err := s.repo.UpdateIfStatus(ctx, id, application.Status, map[string]interface{}{
		"status":       next,
		"submitted_at": &submittedAt,
	})
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, err, "update_failed")
	}
	if affected == 0 {
		return dto.ApplicationResponse{}, failSpan(span, s.conflict(ctx, id), "conflict")
	}

	s.afterTransition(ctx, user, application, next, nil)
	return s.reload(ctx, id)
}

func (s *applicationService) Review(ctx context.Context, user authz.User, id uint, req dto.ApplicationReviewRequest) (dto.ApplicationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "application.review")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("application.id", int64(id)),
		attribute.Int64("review.actor_id", int64(user.ID)),
	)

	if !user.IsReviewer() {
		return dto.ApplicationResponse{}, failSpan(span, apperr.PermissionDenied("review application", "reviewer"), "permission_denied")
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ApplicationResponse{}, failSpan(span, validationError(err), "validation_failed")
	}

	application, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, lookupError(err, "application", id), "lookup_failed")
	}

	outcome, err := lifecycle.ReviewApplication(application, lifecycle.ReviewDecision{
		Status:         strings.ToLower(strings.TrimSpace(req.Status)),
		AwardedCredits: req.AwardedCredits,
		Override:       req.Override,
	})
	if err != nil {
		return dto.ApplicationResponse{}, failSpan(span, err, "review_rejected")
	}

	reviewedAt := s.now()
	comment := cleanText(s.sanitizer, req.ReviewComments)
	affected, err := s.repo.UpdateIfStatus(ctx, id, application.Status, map[string]interface{}{
		"status":          outcome.Status,
		"awarded_credits": outcome.AwardedCredits,
		"reviewer_id":     uintPtr(user.ID),
		"review_comments": comment,
		"reviewed_at":     &reviewedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Uint("application_id", id).Msg("failed to persist application review")
		return dto.ApplicationResponse{}, failSpan(span, err, "update_failed")
	}
	if affected == 0 {
		return dto.ApplicationResponse{}, failSpan(span, s.conflict(ctx, id), "conflict")
	}

	span.SetAttributes(
		attribute.String("application.status", outcome.Status),
		attribute.Float64("application.awarded_credits", outcome.AwardedCredits),
	)
	s.afterTransition(ctx, user, application, outcome.Status, map[string]interface{}{
		"awarded_credits": outcome.AwardedCredits,
		"override":        req.Override,
		"comment":         comment,
	})
	return s.reload(ctx, id)
}

func (s *applicationService) Delete(ctx context.Context, user authz.User, id uint) error {
	application, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "application", id)
	}

	owner := user.IsAdmin()
	if application.Activity != nil {
		owner = authz.Resolve(user, *application.Activity).IsOwner
	}
	if !owner {
		return apperr.PermissionDenied("delete application", "activity owner or admin")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "application", id)
	}

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "application.deleted",
		EntityType: "application",
		EntityID:   uintPtr(id),
		Metadata: map[string]interface{}{
			"activity_id": application.ActivityID,
			"user_id":     application.UserID,
			"status":      application.Status,
		},
	})
	return nil
}

func (s *applicationService) filterFor(user authz.User, req dto.ApplicationListRequest) (repository.ApplicationFilter, error) {
	status := strings.TrimSpace(req.Status)
	if status != "" && !lifecycle.IsApplicationStatus(status) {
		return repository.ApplicationFilter{}, apperr.Validation("status", "unknown application status")
	}
	filter := repository.ApplicationFilter{Status: status}
	if req.ActivityID > 0 {
		filter.ActivityID = uintPtr(req.ActivityID)
	}
	if req.UserID > 0 {
		filter.UserID = uintPtr(req.UserID)
	}
	if !user.IsReviewer() {
		filter.VisibleTo = uintPtr(user.ID)
	}
	return filter, nil
}

func (s *applicationService) afterTransition(ctx context.Context, user authz.User, application models.Application, next string, metadata map[string]interface{}) {
	observability.Transitions().WithLabelValues("application", application.Status, next).Inc()

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["from"] = application.Status
	metadata["to"] = next
	metadata["activity_id"] = application.ActivityID

	action := "application." + next
	if next == models.ApplicationStatusPending {
		action = "application.submitted"
	}
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     action,
		EntityType: "application",
		EntityID:   uintPtr(application.ID),
		Metadata:   metadata,
	})
	publishEvent(ctx, s.events, s.logger, LifecycleEvent{
		Type:       action,
		EntityType: "application",
		EntityID:   application.ID,
		ActivityID: application.ActivityID,
		From:       application.Status,
		To:         next,
		ActorID:    user.ID,
	})
}

func (s *applicationService) reload(ctx context.Context, id uint) (dto.ApplicationResponse, error) {
	application, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ApplicationResponse{}, lookupError(err, "application", id)
	}
	return dto.NewApplicationResponse(application), nil
}

func (s *applicationService) conflict(ctx context.Context, id uint) error {
	observability.TransitionConflicts().WithLabelValues("application").Inc()
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "application", id)
	}
	return apperr.Conflict("application", id, current.Status)
}

func canViewApplication(user authz.User, application models.Application) bool {
	if application.UserID == user.ID || user.IsReviewer() {
		return true
	}
	return application.Activity != nil && authz.Resolve(user, *application.Activity).IsOwner
}
