package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/lifecycle"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/observability"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

// FileStorage abstracts upload destinations.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// AttachmentService gates attachment mutation on the activity lifecycle and
// delegates bytes to FileStorage.
type AttachmentService interface {
	List(ctx context.Context, user authz.User, activityID uint) ([]dto.AttachmentResponse, error)
	Upload(ctx context.Context, user authz.User, activityID uint, file *multipart.FileHeader) (dto.AttachmentResponse, error)
	Delete(ctx context.Context, user authz.User, activityID, attachmentID uint) error
	Download(ctx context.Context, user authz.User, activityID, attachmentID uint) (dto.AttachmentResponse, error)
}

type attachmentService struct {
	repo       repository.AttachmentRepository
	activities repository.ActivityRepository
	storage    FileStorage
	audit      AuditRecorder
	logger     zerolog.Logger
	maxSize    int64
	tracer     trace.Tracer
}

// NewAttachmentService constructs the attachment service.
func NewAttachmentService(repo repository.AttachmentRepository, activities repository.ActivityRepository, storage FileStorage, audit AuditRecorder, maxSizeMB int, logger zerolog.Logger) AttachmentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &attachmentService{
		repo:       repo,
		activities: activities,
		storage:    storage,
		audit:      audit,
		logger:     logger.With().Str("component", "attachment_service").Logger(),
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		tracer:     otel.Tracer(tracerPrefix + "attachment"),
	}
}

func (s *attachmentService) List(ctx context.Context, user authz.User, activityID uint) ([]dto.AttachmentResponse, error) {
	if _, err := s.viewable(ctx, user, activityID); err != nil {
		return nil, err
	}
	items, err := s.repo.List(ctx, activityID)
	if err != nil {
		return nil, err
	}
	return dto.NewAttachmentResponseSlice(items), nil
}

func (s *attachmentService) Upload(ctx context.Context, user authz.User, activityID uint, file *multipart.FileHeader) (dto.AttachmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attachment.upload")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("attachment.activity_id", int64(activityID)),
		attribute.Int64("upload.max_bytes", s.maxSize),
	)

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if _, err := s.mutable(ctx, user, activityID, "upload attachment"); err != nil {
		return dto.AttachmentResponse{}, failSpan(span, err, "guard_failed")
	}

	if file == nil {
		return dto.AttachmentResponse{}, failSpan(span, apperr.Validation("file", "is required"), "validation_failed")
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)
	if file.Size > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.AttachmentResponse{}, failSpan(span, apperr.Validation("file", "file exceeds maximum allowed size"), "payload_too_large")
	}

	handle, err := file.Open()
	if err != nil {
		return dto.AttachmentResponse{}, failSpan(span, err, "open_failed")
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return dto.AttachmentResponse{}, failSpan(span, err, "read_failed")
	}
	if int64(buf.Len()) > s.maxSize {
		observability.UploadRejected().WithLabelValues("size").Inc()
		return dto.AttachmentResponse{}, failSpan(span, apperr.Validation("file", "file exceeds maximum allowed size"), "payload_too_large")
	}

	fileType := normalizeMime(mimetype.Detect(buf.Bytes()).String())
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !isAllowedType(fileType) {
		observability.UploadRejected().WithLabelValues("type").Inc()
		return dto.AttachmentResponse{}, failSpan(span, apperr.Validation("file", "file type not allowed: "+fileType), "type_not_allowed")
	}
	if err := s.scan(buf.Bytes(), fileType); err != nil {
		observability.UploadRejected().WithLabelValues("scan").Inc()
		return dto.AttachmentResponse{}, failSpan(span, err, "scan_failed")
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := sanitizeFileName(file.Filename)
	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadRejected().WithLabelValues("storage").Inc()
		s.logger.Error().Err(err).Uint("activity_id", activityID).Msg("attachment storage failed")
		return dto.AttachmentResponse{}, failSpan(span, err, "storage_failed")
	}

	record := models.Attachment{
		ActivityID: activityID,
		FileName:   name,
		URL:        url,
		MimeType:   fileType,
		SizeBytes:  int64(buf.Len()),
		Checksum:   hex.EncodeToString(checksum[:]),
		UploadedBy: user.ID,
	}
	current, err := s.repo.CreateIfActivityStatus(ctx, &record, models.ActivityStatusDraft)
	if err != nil {
		return dto.AttachmentResponse{}, failSpan(span, lookupError(err, "activity", activityID), "persistence_failed")
	}
	if current != models.ActivityStatusDraft {
		s.logger.Warn().Uint("activity_id", activityID).Str("url", url).Msg("activity left draft during upload, stored file orphaned")
		return dto.AttachmentResponse{}, failSpan(span, s.conflict(activityID, current), "status_changed")
	}
	span.SetStatus(codes.Ok, "stored")

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "attachment.uploaded",
		EntityType: "activity",
		EntityID:   uintPtr(activityID),
		Metadata:   map[string]interface{}{"attachment_id": record.ID, "file_name": name, "size_bytes": record.SizeBytes},
	})

	return dto.NewAttachmentResponse(record), nil
}

func (s *attachmentService) Delete(ctx context.Context, user authz.User, activityID, attachmentID uint) error {
	if _, err := s.mutable(ctx, user, activityID, "delete attachment"); err != nil {
		return err
	}
	current, err := s.repo.DeleteIfActivityStatus(ctx, activityID, attachmentID, models.ActivityStatusDraft)
	if err != nil {
		return lookupError(err, "attachment", attachmentID)
	}
	if current != models.ActivityStatusDraft {
		return s.conflict(activityID, current)
	}

	recordAudit(ctx, s.audit, s.logger, AuditEntry{
		Actor:      user,
		Action:     "attachment.deleted",
		EntityType: "activity",
		EntityID:   uintPtr(activityID),
		Metadata:   map[string]interface{}{"attachment_id": attachmentID},
	})
	return nil
}

func (s *attachmentService) Download(ctx context.Context, user authz.User, activityID, attachmentID uint) (dto.AttachmentResponse, error) {
	if _, err := s.viewable(ctx, user, activityID); err != nil {
		return dto.AttachmentResponse{}, err
	}
	attachment, err := s.repo.Get(ctx, activityID, attachmentID)
	if err != nil {
		return dto.AttachmentResponse{}, lookupError(err, "attachment", attachmentID)
	}
	if err := s.repo.IncrementDownloads(ctx, activityID, attachmentID); err != nil {
		s.logger.Warn().Err(err).Uint("attachment_id", attachmentID).Msg("failed to count download")
	} else {
		attachment.DownloadCount++
	}
	return dto.NewAttachmentResponse(attachment), nil
}

func (s *attachmentService) viewable(ctx context.Context, user authz.User, activityID uint) (models.Activity, error) {
	activity, err := s.activities.GetDetailed(ctx, activityID)
	if err != nil {
		return models.Activity{}, lookupError(err, "activity", activityID)
	}
	if !canView(user, activity) {
		return models.Activity{}, apperr.PermissionDenied("view attachments", "owner, reviewer or participant")
	}
	return activity, nil
}

func (s *attachmentService) mutable(ctx context.Context, user authz.User, activityID uint, attempted string) (models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
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

func (s *attachmentService) conflict(activityID uint, current string) error {
	observability.TransitionConflicts().WithLabelValues("attachment").Inc()
	return apperr.Conflict("activity", activityID, current)
}

func (s *attachmentService) scan(payload []byte, mime string) error {
	if mime != "application/zip" {
		return nil
	}
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return apperr.Validation("file", "archive could not be read")
	}
	var totalUncompressed uint64
	for _, f := range reader.File {
		totalUncompressed += f.UncompressedSize64
		if totalUncompressed > uint64(s.maxSize*20) {
			return apperr.Validation("file", "archive uncompressed size too large")
		}
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("attachment-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func normalizeMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	if lower == "application/x-zip-compressed" {
		return "application/zip"
	}
	return lower
}

func isAllowedType(m string) bool {
	switch m {
	case "application/pdf", "application/zip", "text/plain":
		return true
	case "image/png", "image/jpeg", "image/webp":
		return true
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return true
	default:
		return false
	}
}
