// Package lifecycle holds the transition tables for activities and
// applications. It is pure: callers load the persisted status, ask for the
// next status, and persist it with a compare-and-swap.
package lifecycle

import (
	"strings"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/models"
)

// Action names an activity operation guarded by the state machine.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionWithdraw Action = "withdraw"
	ActionReview   Action = "review"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
)

const entityActivity = "activity"

var activityTransitions = map[Action]map[string]bool{
	ActionSubmit: {
		models.ActivityStatusDraft: true,
	},
	ActionWithdraw: {
		models.ActivityStatusPendingReview: true,
		models.ActivityStatusApproved:      true,
		models.ActivityStatusRejected:      true,
	},
	ActionReview: {
		models.ActivityStatusPendingReview: true,
		models.ActivityStatusApproved:      true,
		models.ActivityStatusRejected:      true,
	},
	ActionEdit: {
		models.ActivityStatusDraft: true,
	},
	ActionDelete: {
		models.ActivityStatusDraft: true,
	},
}

// IsActivityStatus reports whether s is a known activity status.
func IsActivityStatus(s string) bool {
	switch s {
	case models.ActivityStatusDraft, models.ActivityStatusPendingReview, models.ActivityStatusApproved, models.ActivityStatusRejected:
		return true
	}
	return false
}

// Allowed reports whether action may be attempted from status.
func Allowed(from string, action Action) bool {
	return activityTransitions[action][from]
}

// Next returns the status an activity moves to. decision is only read for
// ActionReview and must be approved or rejected.
func Next(from string, action Action, decision string) (string, error) {
	if !Allowed(from, action) {
		return "", apperr.InvalidTransition(entityActivity, from, string(action))
	}

	switch action {
	case ActionSubmit:
		return models.ActivityStatusPendingReview, nil
	case ActionWithdraw:
		return models.ActivityStatusDraft, nil
	case ActionReview:
		switch decision {
		case models.ActivityStatusApproved, models.ActivityStatusRejected:
			return decision, nil
		default:
			return "", apperr.Validation("status", "review decision must be approved or rejected")
		}
	case ActionEdit:
		return from, nil
	case ActionDelete:
		return "", nil
	}
	return "", apperr.InvalidTransition(entityActivity, from, string(action))
}

// RequireComment enforces the non-empty review comment rule.
func RequireComment(comment string) error {
	if strings.TrimSpace(comment) == "" {
		return apperr.Validation("review_comments", "comment required")
	}
	return nil
}

// Editable reports whether participants, attachments and fields may change.
func Editable(status string) bool {
	return status == models.ActivityStatusDraft
}

// RequireEditable fails with InvalidTransition unless the activity is a draft.
func RequireEditable(status string, attempted string) error {
	if !Editable(status) {
		return apperr.InvalidTransition(entityActivity, status, attempted)
	}
	return nil
}
