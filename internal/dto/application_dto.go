package dto

import (
	"time"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// ApplicationCreateRequest is a student's credit claim.
type ApplicationCreateRequest struct {
	ActivityID     uint    `json:"activity_id" validate:"required,gt=0"`
	AppliedCredits float64 `json:"applied_credits"`
	Reason         string  `json:"reason" validate:"omitempty,max=2000"`
	Draft          bool    `json:"draft"`
}

// ApplicationUpdateRequest lets the applicant amend a claim before review.
type ApplicationUpdateRequest struct {
	AppliedCredits *float64 `json:"applied_credits"`
	Reason         *string  `json:"reason" validate:"omitempty,max=2000"`
}

// ApplicationReviewRequest is the reviewer's decision on a claim.
type ApplicationReviewRequest struct {
	Status         string   `json:"status" validate:"required"`
	AwardedCredits *float64 `json:"awarded_credits"`
	ReviewComments string   `json:"review_comments" validate:"omitempty,max=2000"`
	Override       bool     `json:"override"`
}

// ApplicationListRequest narrows the application listing.
type ApplicationListRequest struct {
	ActivityID uint
	UserID     uint
	Status     string
	Page       int
	PageSize   int
}

// ApplicationResponse serializes an application.
type ApplicationResponse struct {
	ID             uint       `json:"id"`
	ActivityID     uint       `json:"activity_id"`
	ActivityTitle  string     `json:"activity_title,omitempty"`
	UserID         uint       `json:"user_id"`
	Status         string     `json:"status"`
	AppliedCredits float64    `json:"applied_credits"`
	AwardedCredits float64    `json:"awarded_credits"`
	Reason         string     `json:"reason"`
	ReviewerID     *uint      `json:"reviewer_id"`
	ReviewComments string     `json:"review_comments"`
	ReviewedAt     *time.Time `json:"reviewed_at"`
	SubmittedAt    *time.Time `json:"submitted_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ApplicationListResponse wraps a paginated application listing with aggregates.
type ApplicationListResponse struct {
	Items      []ApplicationResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// NewApplicationResponse converts an application model into a DTO.
func NewApplicationResponse(model models.Application) ApplicationResponse {
	response := ApplicationResponse{
		ID:             model.ID,
		ActivityID:     model.ActivityID,
		UserID:         model.UserID,
		Status:         model.Status,
		AppliedCredits: model.AppliedCredits,
		AwardedCredits: model.AwardedCredits,
		Reason:         model.Reason,
		ReviewerID:     model.ReviewerID,
		ReviewComments: model.ReviewComments,
		ReviewedAt:     model.ReviewedAt,
		SubmittedAt:    model.SubmittedAt,
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}
	if model.Activity != nil {
		response.ActivityTitle = model.Activity.Title
	}
	return response
}

// NewApplicationResponseSlice converts application models into DTOs.
func NewApplicationResponseSlice(items []models.Application) []ApplicationResponse {
	responses := make([]ApplicationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewApplicationResponse(item))
	}
	return responses
}
