package dto

import (
	"time"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// ActivityCreateRequest captures the payload for proposing a new activity.
type ActivityCreateRequest struct {
	Title       string                 `json:"title" validate:"required,min=2,max=255"`
	Description string                 `json:"description" validate:"omitempty,max=5000"`
	Category    string                 `json:"category" validate:"required,max=64"`
	StartDate   *time.Time             `json:"start_date"`
	EndDate     *time.Time             `json:"end_date"`
	Details     map[string]interface{} `json:"details"`
}

// ActivityUpdateRequest allows patching a draft activity.
type ActivityUpdateRequest struct {
	Title       *string                `json:"title" validate:"omitempty,min=2,max=255"`
	Description *string                `json:"description" validate:"omitempty,max=5000"`
	Category    *string                `json:"category" validate:"omitempty,max=64"`
	StartDate   *time.Time             `json:"start_date"`
	EndDate     *time.Time             `json:"end_date"`
	Details     map[string]interface{} `json:"details"`
}

// ActivityReviewRequest is the reviewer's decision on an activity.
type ActivityReviewRequest struct {
	Status         string `json:"status" validate:"required"`
	ReviewComments string `json:"review_comments"`
}

// ActivityListRequest defines filters for listing activities.
type ActivityListRequest struct {
	Search   string
	Status   string
	Category string
	OwnerID  uint
	Mine     bool
	Sort     string
	Page     int
	PageSize int
}

// ConfirmationRequest asks for a token guarding a destructive action.
type ConfirmationRequest struct {
	Action string `json:"action" validate:"required,oneof=delete withdraw"`
}

// ConfirmationResponse carries a single-use confirmation token.
type ConfirmationResponse struct {
	Token      string    `json:"token"`
	Action     string    `json:"action"`
	ActivityID uint      `json:"activity_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ActivityResponse serializes an activity with its nested collections.
type ActivityResponse struct {
	ID             uint                   `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Category       string                 `json:"category"`
	Status         string                 `json:"status"`
	OwnerID        uint                   `json:"owner_id"`
	ReviewerID     *uint                  `json:"reviewer_id"`
	ReviewComments string                 `json:"review_comments"`
	ReviewedAt     *time.Time             `json:"reviewed_at"`
	SubmittedAt    *time.Time             `json:"submitted_at"`
	StartDate      *time.Time             `json:"start_date"`
	EndDate        *time.Time             `json:"end_date"`
	Details        map[string]interface{} `json:"details"`
	Editable       bool                   `json:"editable"`
	Participants   []ParticipantResponse  `json:"participants,omitempty"`
	Applications   []ApplicationResponse  `json:"applications,omitempty"`
	Attachments    []AttachmentResponse   `json:"attachments,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// ActivityListResponse wraps a paginated activity response. Summary counts
// the statuses of the returned page.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Summary    ActivitySummary    `json:"summary"`
	Pagination PaginationMeta     `json:"pagination"`
}

// ActivitySummary counts activities per status.
type ActivitySummary struct {
	Total         int `json:"total"`
	Draft         int `json:"draft"`
	PendingReview int `json:"pending_review"`
	Approved      int `json:"approved"`
	Rejected      int `json:"rejected"`
}

// ActivityStatsResponse exposes recomputed aggregates for one activity.
type ActivityStatsResponse struct {
	ActivityID   uint               `json:"activity_id"`
	Status       string             `json:"status"`
	Participants ParticipantSummary `json:"participants"`
	Applications ApplicationSummary `json:"applications"`
}

// ParticipantSummary aggregates the participant ledger.
type ParticipantSummary struct {
	Count        int     `json:"count"`
	TotalCredits float64 `json:"total_credits"`
}

// ApplicationSummary aggregates applications.
type ApplicationSummary struct {
	Total        int     `json:"total"`
	Draft        int     `json:"draft"`
	Pending      int     `json:"pending"`
	Approved     int     `json:"approved"`
	Rejected     int     `json:"rejected"`
	TotalApplied float64 `json:"total_applied"`
	TotalAwarded float64 `json:"total_awarded"`
}

// NewActivityResponse converts an activity model into a DTO.
func NewActivityResponse(model models.Activity) ActivityResponse {
	details := map[string]interface{}(model.Details)
	if details == nil {
		details = map[string]interface{}{}
	}

	response := ActivityResponse{
		ID:             model.ID,
		Title:          model.Title,
		Description:    model.Description,
		Category:       model.Category,
		Status:         model.Status,
		OwnerID:        model.OwnerID,
		ReviewerID:     model.ReviewerID,
		ReviewComments: model.ReviewComments,
		ReviewedAt:     model.ReviewedAt,
		SubmittedAt:    model.SubmittedAt,
		StartDate:      model.StartDate,
		EndDate:        model.EndDate,
		Details:        details,
		Editable:       model.IsDraft(),
		CreatedAt:      model.CreatedAt,
		UpdatedAt:      model.UpdatedAt,
	}

	if len(model.Participants) > 0 {
		response.Participants = NewParticipantResponseSlice(model.Participants)
	}
	if len(model.Applications) > 0 {
		response.Applications = NewApplicationResponseSlice(model.Applications)
	}
	if len(model.Attachments) > 0 {
		response.Attachments = NewAttachmentResponseSlice(model.Attachments)
	}

	return response
}

// NewActivityResponseSlice converts activity models into DTOs.
func NewActivityResponseSlice(items []models.Activity) []ActivityResponse {
	responses := make([]ActivityResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewActivityResponse(item))
	}
	return responses
}
