package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity status values.
const (
	ActivityStatusDraft         = "draft"
	ActivityStatusPendingReview = "pending_review"
	ActivityStatusApproved      = "approved"
	ActivityStatusRejected      = "rejected"
)

// Activity is a credit-bearing undertaking proposed by a student.
type Activity struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	Title          string            `gorm:"size:255;not null" json:"title"`
	Description    string            `gorm:"type:text" json:"description"`
	Category       string            `gorm:"size:64;index;not null" json:"category"`
	Status         string            `gorm:"size:32;index;not null;default:draft" json:"status"`
	OwnerID        uint              `gorm:"index;not null" json:"owner_id"`
	ReviewerID     *uint             `json:"reviewer_id"`
	ReviewComments string            `gorm:"type:text" json:"review_comments"`
	ReviewedAt     *time.Time        `json:"reviewed_at"`
	SubmittedAt    *time.Time        `json:"submitted_at"`
	StartDate      *time.Time        `json:"start_date"`
	EndDate        *time.Time        `json:"end_date"`
	Details        datatypes.JSONMap `gorm:"type:json" json:"details"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Participants   []Participant     `gorm:"constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Applications   []Application     `gorm:"constraint:OnDelete:CASCADE" json:"applications,omitempty"`
	Attachments    []Attachment      `gorm:"constraint:OnDelete:CASCADE" json:"attachments,omitempty"`
}

// IsDraft reports whether the activity is still editable.
func (a Activity) IsDraft() bool {
	return a.Status == ActivityStatusDraft
}

// Participant attaches a user to an activity with a credit value.
type Participant struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActivityID uint      `gorm:"not null;uniqueIndex:idx_participant_activity_user" json:"activity_id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_participant_activity_user" json:"user_id"`
	Credits    float64   `gorm:"not null;default:0" json:"credits"`
	JoinedAt   time.Time `gorm:"not null" json:"joined_at"`
}

// Attachment stores metadata about a file uploaded for an activity.
type Attachment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ActivityID    uint      `gorm:"index;not null" json:"activity_id"`
	FileName      string    `gorm:"size:255;not null" json:"file_name"`
	URL           string    `gorm:"size:1024;not null" json:"url"`
	MimeType      string    `gorm:"size:128" json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	Checksum      string    `gorm:"size:128" json:"checksum"`
	UploadedBy    uint      `gorm:"not null" json:"uploaded_by"`
	DownloadCount int64     `gorm:"not null;default:0" json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}
