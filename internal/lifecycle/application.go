package lifecycle

import (
	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/models"
)

const entityApplication = "application"

// Credit bounds shared by the ledger and the review pipeline.
const (
	MinCredits = 0.0
	MaxCredits = 10.0
)

// CreditsInRange reports whether c lies within the credit bounds.
func CreditsInRange(c float64) bool {
	return c >= MinCredits && c <= MaxCredits
}

// IsApplicationStatus reports whether s is a known application status.
func IsApplicationStatus(s string) bool {
	switch s {
	case models.ApplicationStatusDraft, models.ApplicationStatusPending, models.ApplicationStatusApproved, models.ApplicationStatusRejected:
		return true
	}
	return false
}

// ReviewDecision carries a reviewer's decision on an application.
type ReviewDecision struct {
	Status         string
	AwardedCredits *float64
	Override       bool
}

// ApplicationOutcome is the state an application moves to after review.
type ApplicationOutcome struct {
	Status         string
	AwardedCredits float64
}

// ReviewApplication validates a review against the current application and
// returns the resulting status and awarded credits. Awarded credits default
// to the applied credits and may only exceed them with an explicit override.
func ReviewApplication(current models.Application, decision ReviewDecision) (ApplicationOutcome, error) {
	if current.Status != models.ApplicationStatusPending {
		return ApplicationOutcome{}, apperr.InvalidTransition(entityApplication, current.Status, "review")
	}

	switch decision.Status {
	case models.ApplicationStatusRejected:
		return ApplicationOutcome{Status: models.ApplicationStatusRejected, AwardedCredits: 0}, nil
	case models.ApplicationStatusApproved:
		awarded := current.AppliedCredits
		if decision.AwardedCredits != nil {
			awarded = *decision.AwardedCredits
		}
		if !CreditsInRange(awarded) {
			return ApplicationOutcome{}, apperr.Validation("awarded_credits", "credits out of range")
		}
		if awarded > current.AppliedCredits && !decision.Override {
			return ApplicationOutcome{}, apperr.Validation("awarded_credits", "awarded credits exceed applied credits without override")
		}
		return ApplicationOutcome{Status: models.ApplicationStatusApproved, AwardedCredits: awarded}, nil
	default:
		return ApplicationOutcome{}, apperr.Validation("status", "review decision must be approved or rejected")
	}
}

// SubmitApplication moves a draft application to pending.
func SubmitApplication(current string) (string, error) {
	if current != models.ApplicationStatusDraft {
		return "", apperr.InvalidTransition(entityApplication, current, "submit")
	}
	return models.ApplicationStatusPending, nil
}

// ApplicationEditable reports whether the applicant may still change the claim.
func ApplicationEditable(status string) bool {
	return status == models.ApplicationStatusDraft || status == models.ApplicationStatusPending
}
