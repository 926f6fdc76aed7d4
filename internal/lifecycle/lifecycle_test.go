package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/models"
)

const (
	draft    = models.ActivityStatusDraft
	pending  = models.ActivityStatusPendingReview
	approved = models.ActivityStatusApproved
	rejected = models.ActivityStatusRejected
)

func TestActivityTransitionTable(t *testing.T) {
	cases := []struct {
		from     string
		action   Action
		decision string
		want     string
		wantErr  error
	}{
		{draft, ActionSubmit, "", pending, nil},
		{pending, ActionSubmit, "", "", apperr.ErrInvalidTransition},
		{approved, ActionSubmit, "", "", apperr.ErrInvalidTransition},
		{rejected, ActionSubmit, "", "", apperr.ErrInvalidTransition},

		{pending, ActionWithdraw, "", draft, nil},
		{approved, ActionWithdraw, "", draft, nil},
		{rejected, ActionWithdraw, "", draft, nil},
		{draft, ActionWithdraw, "", "", apperr.ErrInvalidTransition},

		{pending, ActionReview, approved, approved, nil},
		{pending, ActionReview, rejected, rejected, nil},
		{approved, ActionReview, rejected, rejected, nil},
		{rejected, ActionReview, approved, approved, nil},
		{draft, ActionReview, approved, "", apperr.ErrInvalidTransition},
		{pending, ActionReview, draft, "", apperr.ErrValidation},

		{draft, ActionEdit, "", draft, nil},
		{pending, ActionEdit, "", "", apperr.ErrInvalidTransition},
		{approved, ActionEdit, "", "", apperr.ErrInvalidTransition},

		{draft, ActionDelete, "", "", nil},
		{rejected, ActionDelete, "", "", apperr.ErrInvalidTransition},
	}

	for _, tc := range cases {
		t.Run(tc.from+"/"+string(tc.action), func(t *testing.T) {
			got, err := Next(tc.from, tc.action, tc.decision)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestTransitionErrorCarriesStatuses(t *testing.T) {
	_, err := Next(pending, ActionEdit, "")
	var transition *apperr.TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, pending, transition.From)
	require.Equal(t, "edit", transition.Attempted)
}

func TestRequireComment(t *testing.T) {
	require.ErrorIs(t, RequireComment("   "), apperr.ErrValidation)
	require.NoError(t, RequireComment("良好"))
}

func TestEditableOnlyInDraft(t *testing.T) {
	require.True(t, Editable(draft))
	for _, status := range []string{pending, approved, rejected} {
		require.False(t, Editable(status))
		require.ErrorIs(t, RequireEditable(status, "add participant"), apperr.ErrInvalidTransition)
	}
}

func TestReviewApplication(t *testing.T) {
	app := models.Application{Status: models.ApplicationStatusPending, AppliedCredits: 3}
	two, eleven, four := 2.0, 11.0, 4.0

	out, err := ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusApproved, AwardedCredits: &two})
	require.NoError(t, err)
	require.Equal(t, ApplicationOutcome{Status: models.ApplicationStatusApproved, AwardedCredits: 2}, out)

	out, err = ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)
	require.Equal(t, 3.0, out.AwardedCredits)

	_, err = ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusApproved, AwardedCredits: &eleven, Override: true})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusApproved, AwardedCredits: &four})
	require.ErrorIs(t, err, apperr.ErrValidation)

	out, err = ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusApproved, AwardedCredits: &four, Override: true})
	require.NoError(t, err)
	require.Equal(t, 4.0, out.AwardedCredits)

	out, err = ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusRejected, AwardedCredits: &two})
	require.NoError(t, err)
	require.Equal(t, ApplicationOutcome{Status: models.ApplicationStatusRejected, AwardedCredits: 0}, out)

	app.Status = models.ApplicationStatusApproved
	_, err = ReviewApplication(app, ReviewDecision{Status: models.ApplicationStatusApproved})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestSubmitApplication(t *testing.T) {
	next, err := SubmitApplication(models.ApplicationStatusDraft)
	require.NoError(t, err)
	require.Equal(t, models.ApplicationStatusPending, next)

	_, err = SubmitApplication(models.ApplicationStatusRejected)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}
