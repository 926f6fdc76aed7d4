package dto

import (
	"time"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// AttachmentResponse serializes attachment metadata.
type AttachmentResponse struct {
	ID            uint      `json:"id"`
	ActivityID    uint      `json:"activity_id"`
	FileName      string    `json:"file_name"`
	URL           string    `json:"url"`
	MimeType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	Checksum      string    `json:"checksum"`
	UploadedBy    uint      `json:"uploaded_by"`
	DownloadCount int64     `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewAttachmentResponse converts an attachment model into a DTO.
func NewAttachmentResponse(model models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:            model.ID,
		ActivityID:    model.ActivityID,
		FileName:      model.FileName,
		URL:           model.URL,
		MimeType:      model.MimeType,
		SizeBytes:     model.SizeBytes,
		Checksum:      model.Checksum,
		UploadedBy:    model.UploadedBy,
		DownloadCount: model.DownloadCount,
		CreatedAt:     model.CreatedAt,
	}
}

// NewAttachmentResponseSlice converts attachment models into DTOs.
func NewAttachmentResponseSlice(items []models.Attachment) []AttachmentResponse {
	responses := make([]AttachmentResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewAttachmentResponse(item))
	}
	return responses
}
