package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/category"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/lifecycle"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/observability"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ActivityService orchestrates the activity lifecycle: creation, edits while
// draft, submit, withdraw, review and deletion.
type ActivityService interface {
	Create(ctx context.Context, user authz.User, req dto.ActivityCreateRequest) (dto.ActivityResponse, error)
	Get(ctx context.Context, user authz.User, id uint) (dto.ActivityResponse, error)
	List(ctx context.Context, user authz.User, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	Update(ctx context.Context, user authz.User, id uint, req dto.ActivityUpdateRequest) (dto.ActivityResponse, error)
	Submit(ctx context.Context, user authz.User, id uint) (dto.ActivityResponse, error)
	Withdraw(ctx context.Context, user authz.User, id uint, token string) (dto.ActivityResponse, error)
	Review(ctx context.Context, user authz.User, id uint, req dto.ActivityReviewRequest) (dto.ActivityResponse, error)
	RequestConfirmation(ctx context.Context, user authz.User, id uint, action string) (dto.ConfirmationResponse, error)
	Delete(ctx context.Context, user authz.User, id uint, token string) error
	Stats(ctx context.Context, user authz.User, id uint) (dto.ActivityStatsResponse, error)
}

type activityService struct {
	repo          repository.ActivityRepository
	categories    *category.Registry
	confirmations ConfirmationService
	audit         AuditRecorder
	events        EventPublisher
	validator     *validator.Validate
	sanitizer     *bluemonday.Policy
	tracer        trace.Tracer
	logger        zerolog.Logger
	now           func() time.Time
}

// NewActivityService constructs the activity lifecycle service.
func NewActivityService(
	repo repository.ActivityRepository,
	categories *category.Registry,
	confirmations ConfirmationService,
	audit AuditRecorder,
	events EventPublisher,
	validate *validator.Validate,
	logger zerolog.Logger,
) ActivityService {
	return &activityService{
		repo:          repo,
		categories:    categories,
		confirmations: confirmations,
		audit:         audit,
		events:        events,
		validator:     validate,
		sanitizer:     bluemonday.StrictPolicy(),
		tracer:        otel.Tracer(tracerPrefix + "activity"),
		logger:        logger.With().Str("component", "activity_service").Logger(),
		now:           time.Now,
	}
}

func (s *activityService) Create(ctx context.Context, user authz.User, req dto.ActivityCreateRequest) (dto.ActivityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity.create")
	defer span.End()

	if user.Role != authz.RoleStudent && !user.IsAdmin() {
		return dto.ActivityResponse{}, failSpan(span, apperr.PermissionDenied("create activity", "student or admin"), "permission_denied")
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityResponse{}, failSpan(span, validationError(err), "validation_failed")
	}

	schema, err := s.categories.Lookup(req.Category)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "unsupported_category")
	}
	details, err := s.categories.Normalize(schema.Key, req.Details)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "validation_failed")
	}
	if err := checkDates(req.StartDate, req.EndDate); err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "validation_failed")
	}

	activity := models.Activity{
		Title:       cleanText(s.sanitizer, req.Title),
		Description: cleanText(s.sanitizer, req.Description),
		Category:    schema.Key,
		Status:      models.ActivityStatusDraft,
		OwnerID:     user.ID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Details:     datatypes.JSONMap(details),
	}
	if activity.Title == "" {
		return dto.ActivityResponse{}, failSpan(span, apperr.Validation("title", "is required"), "validation_failed")
	}

	if err := s.repo.Create(ctx, &activity); err != nil {
		s.logger.Error().Err(err).Uint("owner_id", user.ID).Msg("failed to create activity")
		return dto.ActivityResponse{}, failSpan(span, err, "create_failed")
	}
	span.SetAttributes(attribute.Int64("activity.id", int64(activity.ID)))

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "activity.created",
		EntityType: "activity",
		EntityID:   uintPtr(activity.ID),
		Metadata:   map[string]interface{}{"category": activity.Category, "title": activity.Title},
	})

	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) Get(ctx context.Context, user authz.User, id uint) (dto.ActivityResponse, error) {
	activity, err := s.repo.GetDetailed(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, lookupError(err, "activity", id)
	}
	if !canView(user, activity) {
		return dto.ActivityResponse{}, apperr.PermissionDenied("view activity", "owner, reviewer or participant")
	}
	return dto.NewActivityResponse(activity), nil
}

func (s *activityService) List(ctx context.Context, user authz.User, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	status := strings.TrimSpace(req.Status)
	if status != "" && !lifecycle.IsActivityStatus(status) {
		return dto.ActivityListResponse{}, apperr.Validation("status", "unknown activity status")
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := maxInt(req.Page, 1)

	filter := repository.ActivityFilter{
		Search:   strings.TrimSpace(req.Search),
		Status:   status,
		Category: strings.TrimSpace(req.Category),
		Sort:     req.Sort,
		Page:     page,
		PageSize: pageSize,
	}
	if req.OwnerID > 0 {
		filter.OwnerID = uintPtr(req.OwnerID)
	}
	if req.Mine {
		filter.OwnerID = uintPtr(user.ID)
		filter.ParticipantID = uintPtr(user.ID)
	}
	if !user.IsReviewer() {
		filter.VisibleTo = uintPtr(user.ID)
	}

	items, total, err := s.repo.ListWithFilter(ctx, filter)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	return dto.ActivityListResponse{
		Items:      dto.NewActivityResponseSlice(items),
		Summary:    SummarizeActivities(items),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
	}, nil
}

func (s *activityService) Update(ctx context.Context, user authz.User, id uint, req dto.ActivityUpdateRequest) (dto.ActivityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity.edit")
	defer span.End()
	span.SetAttributes(attribute.Int64("activity.id", int64(id)))

	if err := s.validator.Struct(req); err != nil {
		return dto.ActivityResponse{}, failSpan(span, validationError(err), "validation_failed")
	}

	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, lookupError(err, "activity", id), "lookup_failed")
	}
	if !authz.Resolve(user, activity).IsOwner {
		return dto.ActivityResponse{}, failSpan(span, apperr.PermissionDenied("edit activity", "owner"), "permission_denied")
	}
	if _, err := lifecycle.Next(activity.Status, lifecycle.ActionEdit, ""); err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "invalid_transition")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := cleanText(s.sanitizer, *req.Title)
		if title == "" {
			return dto.ActivityResponse{}, failSpan(span, apperr.Validation("title", "is required"), "validation_failed")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = cleanText(s.sanitizer, *req.Description)
	}

	categoryKey := activity.Category
	if req.Category != nil {
		schema, err := s.categories.Lookup(*req.Category)
		if err != nil {
			return dto.ActivityResponse{}, failSpan(span, err, "unsupported_category")
		}
		categoryKey = schema.Key
		updates["category"] = categoryKey
	}
	if req.Details != nil || categoryKey != activity.Category {
		source := req.Details
		if source == nil {
			source = map[string]interface{}(activity.Details)
		}
		details, err := s.categories.Normalize(categoryKey, source)
		if err != nil {
			return dto.ActivityResponse{}, failSpan(span, err, "validation_failed")
		}
		updates["details"] = datatypes.JSONMap(details)
	}

	start, end := activity.StartDate, activity.EndDate
	if req.StartDate != nil {
		start = req.StartDate
		updates["start_date"] = req.StartDate
	}
	if req.EndDate != nil {
		end = req.EndDate
		updates["end_date"] = req.EndDate
	}
	if err := checkDates(start, end); err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "validation_failed")
	}

	if len(updates) == 0 {
		detailed, err := s.repo.GetDetailed(ctx, id)
		if err != nil {
			return dto.ActivityResponse{}, lookupError(err, "activity", id)
		}
		return dto.NewActivityResponse(detailed), nil
	}

	affected, err := s.repo.UpdateIfStatus(ctx, id, models.ActivityStatusDraft, updates)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "update_failed")
	}
	if affected == 0 {
		return dto.ActivityResponse{}, failSpan(span, s.conflict(ctx, id), "conflict")
	}

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "activity.edited",
		EntityType: "activity",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"fields": updatedKeys(updates)},
	})

	detailed, err := s.repo.GetDetailed(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, lookupError(err, "activity", id)
	}
	return dto.NewActivityResponse(detailed), nil
}

func (s *activityService) Submit(ctx context.Context, user authz.User, id uint) (dto.ActivityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity.submit")
	defer span.End()
	span.SetAttributes(attribute.Int64("activity.id", int64(id)))

	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, lookupError(err, "activity", id), "lookup_failed")
	}
	if !authz.Resolve(user, activity).IsOwner {
		return dto.ActivityResponse{}, failSpan(span, apperr.PermissionDenied("submit activity", "owner"), "permission_denied")
	}
	next, err := lifecycle.Next(activity.Status, lifecycle.ActionSubmit, "")
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "invalid_transition")
	}

	details, err := s.categories.Validate(activity.Category, map[string]interface{}(activity.Details))
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "validation_failed")
	}
	if err := checkDates(activity.StartDate, activity.EndDate); err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "validation_failed")
	}

	submittedAt := s.now()
	return s.transition(ctx, span, user, activity, next, map[string]interface{}{
		"submitted_at": &submittedAt,
		"details":      datatypes.JSONMap(details),
	}, nil)
}

func (s *activityService) Withdraw(ctx context.Context, user authz.User, id uint, token string) (dto.ActivityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity.withdraw")
	defer span.End()
	span.SetAttributes(attribute.Int64("activity.id", int64(id)))

	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, lookupError(err, "activity", id), "lookup_failed")
	}
	if !authz.Resolve(user, activity).IsOwner {
		return dto.ActivityResponse{}, failSpan(span, apperr.PermissionDenied("withdraw activity", "owner"), "permission_denied")
	}
	next, err := lifecycle.Next(activity.Status, lifecycle.ActionWithdraw, "")
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "invalid_transition")
	}
	if err := s.confirmations.Consume(ctx, user, id, ConfirmWithdraw, token); err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "confirmation_failed")
	}

	return s.transition(ctx, span, user, activity, next, map[string]interface{}{
		"submitted_at": nil,
	}, nil)
}

func (s *activityService) Review(ctx context.Context, user authz.User, id uint, req dto.ActivityReviewRequest) (dto.ActivityResponse, error) {
	ctx, span := s.tracer.Start(ctx, "activity.review")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("activity.id", int64(id)),
		attribute.Int64("review.actor_id", int64(user.ID)),
	)

	comment := cleanText(s.sanitizer, req.ReviewComments)
	if err := lifecycle.RequireComment(comment); err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "comment_required")
	}
	if !user.IsReviewer() {
		return dto.ActivityResponse{}, failSpan(span, apperr.PermissionDenied("review activity", "reviewer"), "permission_denied")
	}
	decision := strings.ToLower(strings.TrimSpace(req.Status))

	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, lookupError(err, "activity", id), "lookup_failed")
	}

	if activity.Status == decision && activity.ReviewComments == comment &&
		activity.ReviewerID != nil && *activity.ReviewerID == user.ID {
		span.SetAttributes(attribute.Bool("review.idempotent", true))
		detailed, err := s.repo.GetDetailed(ctx, id)
		if err != nil {
			return dto.ActivityResponse{}, lookupError(err, "activity", id)
		}
		return dto.NewActivityResponse(detailed), nil
	}

	next, err := lifecycle.Next(activity.Status, lifecycle.ActionReview, decision)
	if err != nil {
		return dto.ActivityResponse{}, failSpan(span, err, "invalid_transition")
	}

	reviewedAt := s.now()
	return s.transition(ctx, span, user, activity, next, map[string]interface{}{
		"reviewer_id":     uintPtr(user.ID),
		"review_comments": comment,
		"reviewed_at":     &reviewedAt,
	}, map[string]interface{}{"comment": comment})
}

func (s *activityService) RequestConfirmation(ctx context.Context, user authz.User, id uint, action string) (dto.ConfirmationResponse, error) {
	action = strings.ToLower(strings.TrimSpace(action))
	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.ConfirmationResponse{}, lookupError(err, "activity", id)
	}
	if !authz.Resolve(user, activity).IsOwner {
		return dto.ConfirmationResponse{}, apperr.PermissionDenied(action+" activity", "owner")
	}

	switch action {
	case ConfirmDelete:
		if !user.IsAdmin() && !lifecycle.Allowed(activity.Status, lifecycle.ActionDelete) {
			return dto.ConfirmationResponse{}, apperr.InvalidTransition("activity", activity.Status, "delete")
		}
	case ConfirmWithdraw:
		if !lifecycle.Allowed(activity.Status, lifecycle.ActionWithdraw) {
			return dto.ConfirmationResponse{}, apperr.InvalidTransition("activity", activity.Status, "withdraw")
		}
	}

	return s.confirmations.Issue(ctx, user, id, action)
}

func (s *activityService) Delete(ctx context.Context, user authz.User, id uint, token string) error {
	ctx, span := s.tracer.Start(ctx, "activity.delete")
	defer span.End()
	span.SetAttributes(attribute.Int64("activity.id", int64(id)))

	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return failSpan(span, lookupError(err, "activity", id), "lookup_failed")
	}
	if !authz.Resolve(user, activity).IsOwner {
		return failSpan(span, apperr.PermissionDenied("delete activity", "owner or admin"), "permission_denied")
	}
	// Admins may delete in any status; owners only while draft.
	if !user.IsAdmin() {
		if _, err := lifecycle.Next(activity.Status, lifecycle.ActionDelete, ""); err != nil {
			return failSpan(span, err, "invalid_transition")
		}
	}
	if err := s.confirmations.Consume(ctx, user, id, ConfirmDelete, token); err != nil {
		return failSpan(span, err, "confirmation_failed")
	}

	affected, err := s.repo.DeleteIfStatus(ctx, id, activity.Status)
	if err != nil {
		s.logger.Error().Err(err).Uint("activity_id", id).Msg("failed to delete activity")
		return failSpan(span, err, "delete_failed")
	}
	if affected == 0 {
		return failSpan(span, s.conflict(ctx, id), "conflict")
	}

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "activity.deleted",
		EntityType: "activity",
		EntityID:   uintPtr(id),
		Metadata:   map[string]interface{}{"status": activity.Status, "title": activity.Title},
	})
	publishEvent(ctx, s.events, s.logger, LifecycleEvent{
		Type:       "activity.deleted",
		EntityType: "activity",
		EntityID:   id,
		ActivityID: id,
		From:       activity.Status,
		ActorID:    user.ID,
	})
	return nil
}

func (s *activityService) Stats(ctx context.Context, user authz.User, id uint) (dto.ActivityStatsResponse, error) {
	activity, err := s.repo.GetDetailed(ctx, id)
	if err != nil {
		return dto.ActivityStatsResponse{}, lookupError(err, "activity", id)
	}
	if !canView(user, activity) {
		return dto.ActivityStatsResponse{}, apperr.PermissionDenied("view activity", "owner, reviewer or participant")
	}
	return dto.ActivityStatsResponse{
		ActivityID:   activity.ID,
		Status:       activity.Status,
		Participants: SummarizeParticipants(activity.Participants),
		Applications: SummarizeApplications(activity.Applications),
	}, nil
}

// transition persists a status change with a compare-and-swap on the status
// the guards were evaluated against.
func (s *activityService) transition(
	ctx context.Context,
	span trace.Span,
	user authz.User,
	activity models.Activity,
	next string,
	updates map[string]interface{},
	metadata map[string]interface{},
) (dto.ActivityResponse, error) {
	updates["status"] = next
	affected, err := s.repo.UpdateIfStatus(ctx, activity.ID, activity.Status, updates)
	if err != nil {
		s.logger.Error().Err(err).Uint("activity_id", activity.ID).Str("to", next).Msg("failed to persist transition")
		return dto.ActivityResponse{}, failSpan(span, err, "update_failed")
	}
	if affected == 0 {
		return dto.ActivityResponse{}, failSpan(span, s.conflict(ctx, activity.ID), "conflict")
	}

	observability.Transitions().WithLabelValues("activity", activity.Status, next).Inc()
	span.SetAttributes(
		attribute.String("activity.from", activity.Status),
		attribute.String("activity.to", next),
	)

	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["from"] = activity.Status
	metadata["to"] = next
	action := "activity." + transitionVerb(activity.Status, next)
	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     action,
		EntityType: "activity",
		EntityID:   uintPtr(activity.ID),
		Metadata:   metadata,
	})
	publishEvent(ctx, s.events, s.logger, LifecycleEvent{
		Type:       action,
		EntityType: "activity",
		EntityID:   activity.ID,
		ActivityID: activity.ID,
		From:       activity.Status,
		To:         next,
		ActorID:    user.ID,
	})

	detailed, err := s.repo.GetDetailed(ctx, activity.ID)
	if err != nil {
		return dto.ActivityResponse{}, lookupError(err, "activity", activity.ID)
	}
	return dto.NewActivityResponse(detailed), nil
}

func (s *activityService) conflict(ctx context.Context, id uint) error {
	observability.TransitionConflicts().WithLabelValues("activity").Inc()
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return lookupError(err, "activity", id)
	}
	return apperr.Conflict("activity", id, current.Status)
}

func canView(user authz.User, activity models.Activity) bool {
	caps := authz.Resolve(user, activity)
	return caps.IsOwner || caps.IsReviewer || caps.IsParticipant || activity.Status == models.ActivityStatusApproved
}

func checkDates(start, end *time.Time) error {
	if start != nil && end != nil && !start.Before(*end) {
		return apperr.Validation("end_date", "end date must be after start date")
	}
	return nil
}

func transitionVerb(from, to string) string {
	switch to {
	case models.ActivityStatusPendingReview:
		return "submitted"
	case models.ActivityStatusDraft:
		return "withdrawn"
	case models.ActivityStatusApproved:
		return "approved"
	case models.ActivityStatusRejected:
		return "rejected"
	}
	return from + "_to_" + to
}

func updatedKeys(updates map[string]interface{}) []string {
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
