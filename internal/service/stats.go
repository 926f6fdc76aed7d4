package service

import (
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/models"
)

// SummarizeApplications recomputes application aggregates. Awarded credits
// only count for approved applications.
func SummarizeApplications(items []models.Application) dto.ApplicationSummary {
	var summary dto.ApplicationSummary
	for _, item := range items {
		summary.Total++
		summary.TotalApplied += item.AppliedCredits
		switch item.Status {
		case models.ApplicationStatusDraft:
			summary.Draft++
		case models.ApplicationStatusPending:
			summary.Pending++
		case models.ApplicationStatusApproved:
			summary.Approved++
			summary.TotalAwarded += item.AwardedCredits
		case models.ApplicationStatusRejected:
			summary.Rejected++
		}
	}
	return summary
}

// SummarizeParticipants totals the participant ledger.
func SummarizeParticipants(items []models.Participant) dto.ParticipantSummary {
	summary := dto.ParticipantSummary{Count: len(items)}
	for _, item := range items {
		summary.TotalCredits += item.Credits
	}
	return summary
}

// SummarizeActivities counts activities per status.
func SummarizeActivities(items []models.Activity) dto.ActivitySummary {
	summary := dto.ActivitySummary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case models.ActivityStatusDraft:
			summary.Draft++
		case models.ActivityStatusPendingReview:
			summary.PendingReview++
		case models.ActivityStatusApproved:
			summary.Approved++
		case models.ActivityStatusRejected:
			summary.Rejected++
		}
	}
	return summary
}
