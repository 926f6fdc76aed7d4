package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

// AuditEntry captures the details required to persist an audit entry.
type AuditEntry struct {
	Actor      authz.User
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// AuditRecorder defines behaviour for recording lifecycle and ledger events.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) (dto.AuditEntryResponse, error)
}

// AuditService exposes methods to query and persist the audit trail.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, user authz.User, req dto.AuditListRequest) (dto.AuditListResponse, error)
}

type auditService struct {
	repo   repository.AuditLogRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit trail service.
func NewAuditService(repo repository.AuditLogRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) (dto.AuditEntryResponse, error) {
	if strings.TrimSpace(entry.Action) == "" {
		return dto.AuditEntryResponse{}, fmt.Errorf("action is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return dto.AuditEntryResponse{}, fmt.Errorf("entity type is required")
	}

	model := models.AuditLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  normalizeRole(string(entry.Actor.Role)),
		Action:     strings.ToLower(strings.TrimSpace(entry.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:   entry.EntityID,
		Metadata:   sanitizeMetadata(entry.Metadata),
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", model.Action).Msg("failed to persist audit entry")
		return dto.AuditEntryResponse{}, err
	}

	return dto.NewAuditEntryResponse(model), nil
}

func (s *auditService) List(ctx context.Context, user authz.User, req dto.AuditListRequest) (dto.AuditListResponse, error) {
	if !user.IsReviewer() {
		return dto.AuditListResponse{}, apperr.PermissionDenied("list audit log", "reviewer")
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := repository.AuditLogFilter{
		Page:       maxInt(req.Page, 1),
		PageSize:   pageSize,
		Action:     strings.TrimSpace(req.Action),
		EntityType: strings.TrimSpace(req.EntityType),
	}
	if req.ActorID > 0 {
		filter.ActorID = uintPtr(req.ActorID)
	}
	if req.EntityID > 0 {
		filter.EntityID = uintPtr(req.EntityID)
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AuditListResponse{}, err
	}

	responses := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, dto.NewAuditEntryResponse(entry))
	}

	return dto.AuditListResponse{
		Items:      responses,
		Pagination: dto.NewPaginationMeta(filter.Page, pageSize, total),
	}, nil
}

// recordAudit writes an audit entry without failing the caller; the
// mutation it describes has already been committed.
func recordAudit(ctx context.Context, recorder AuditRecorder, logger zerolog.Logger, entry AuditEntry) {
	if recorder == nil {
		return
	}
	if _, err := recorder.Record(ctx, entry); err != nil {
		logger.Warn().Err(err).Str("action", entry.Action).Msg("audit entry dropped")
	}
}

func sanitizeMetadata(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}

	sanitized := datatypes.JSONMap{}
	for key, value := range metadata {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "email") || strings.Contains(lower, "token") {
			sanitized[key] = "***"
			continue
		}
		sanitized[key] = value
	}
	return sanitized
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
