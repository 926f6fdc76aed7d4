package models

import "time"

// Application status values.
const (
	ApplicationStatusDraft    = "draft"
	ApplicationStatusPending  = "pending"
	ApplicationStatusApproved = "approved"
	ApplicationStatusRejected = "rejected"
)

// Application is a student's individual claim for credit against an activity.
type Application struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ActivityID     uint       `gorm:"index;not null" json:"activity_id"`
	UserID         uint       `gorm:"index;not null" json:"user_id"`
	Status         string     `gorm:"size:32;index;not null" json:"status"`
	AppliedCredits float64    `gorm:"not null;default:0" json:"applied_credits"`
	AwardedCredits float64    `gorm:"not null;default:0" json:"awarded_credits"`
	Reason         string     `gorm:"type:text" json:"reason"`
	ReviewerID     *uint      `json:"reviewer_id"`
	ReviewComments string     `gorm:"type:text" json:"review_comments"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Activity       *Activity  `json:"activity,omitempty"`
}

// IsApproved reports whether awarded credits are meaningful.
func (a Application) IsApproved() bool {
	return a.Status == ApplicationStatusApproved
}
