package dto

import (
	"time"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// ParticipantAddRequest adds users to an activity with a shared credit value.
type ParticipantAddRequest struct {
	UserIDs []uint  `json:"user_ids" validate:"required,min=1,dive,gt=0"`
	Credits float64 `json:"credits"`
}

// ParticipantAddResponse reports how many users were newly attached.
type ParticipantAddResponse struct {
	AddedCount int `json:"added_count"`
}

// CreditsUpdateRequest sets one participant's credits.
type CreditsUpdateRequest struct {
	Credits *float64 `json:"credits" validate:"required"`
}

// BatchRemoveRequest removes several participants at once.
type BatchRemoveRequest struct {
	UserIDs []uint `json:"user_ids" validate:"required,min=1,dive,gt=0"`
}

// BatchCreditsRequest maps user ids to their new credit values.
type BatchCreditsRequest struct {
	Credits map[uint]float64 `json:"credits" validate:"required,min=1"`
}

// BatchResultResponse reports how many rows a batch operation touched.
type BatchResultResponse struct {
	Affected int `json:"affected"`
}

// ParticipantResponse serializes a ledger entry.
type ParticipantResponse struct {
	ActivityID uint      `json:"activity_id"`
	UserID     uint      `json:"user_id"`
	Credits    float64   `json:"credits"`
	JoinedAt   time.Time `json:"joined_at"`
}

// NewParticipantResponse converts a participant model into a DTO.
func NewParticipantResponse(model models.Participant) ParticipantResponse {
	return ParticipantResponse{
		ActivityID: model.ActivityID,
		UserID:     model.UserID,
		Credits:    model.Credits,
		JoinedAt:   model.JoinedAt,
	}
}

// NewParticipantResponseSlice converts participant models into DTOs.
func NewParticipantResponseSlice(items []models.Participant) []ParticipantResponse {
	responses := make([]ParticipantResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewParticipantResponse(item))
	}
	return responses
}
