package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
	"github.com/noah-isme/activity-credit-api/internal/authz"
	"github.com/noah-isme/activity-credit-api/internal/category"
	"github.com/noah-isme/activity-credit-api/internal/dto"
	"github.com/noah-isme/activity-credit-api/internal/models"
	"github.com/noah-isme/activity-credit-api/internal/repository"
)

func TestActivityLifecycleScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	activity := f.createDraft(t, student1)
	require.Equal(t, models.ActivityStatusDraft, activity.Status)
	require.True(t, activity.Editable)

	submitted, err := f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPendingReview, submitted.Status)
	require.NotNil(t, submitted.SubmittedAt)
	require.False(t, submitted.Editable)

	_, err = f.activities.Update(ctx, student1, activity.ID, dto.ActivityUpdateRequest{Title: ptrString("Renamed")})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
	var transition *apperr.TransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, models.ActivityStatusPendingReview, transition.From)

	reviewed, err := f.activities.Review(ctx, teacher, activity.ID, dto.ActivityReviewRequest{Status: "approved", ReviewComments: "良好"})
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewedAt)
	require.Equal(t, "良好", reviewed.ReviewComments)
	require.Equal(t, teacher.ID, *reviewed.ReviewerID)

	withdrawn, err := f.activities.Withdraw(ctx, student1, activity.ID, f.token(t, student1, activity.ID, ConfirmWithdraw))
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusDraft, withdrawn.Status)
	require.True(t, withdrawn.Editable)

	edited, err := f.activities.Update(ctx, student1, activity.ID, dto.ActivityUpdateRequest{Title: ptrString("Robotics league 2024")})
	require.NoError(t, err)
	require.Equal(t, "Robotics league 2024", edited.Title)

	require.Equal(t, int64(1), f.auditCount(t, "activity.approved"))
	require.Equal(t, int64(1), f.auditCount(t, "activity.withdrawn"))
}

func TestSubmitThenWithdrawRestoresDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)

	_, err := f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)
	withdrawn, err := f.activities.Withdraw(ctx, student1, activity.ID, f.token(t, student1, activity.ID, ConfirmWithdraw))
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusDraft, withdrawn.Status)
	require.Nil(t, withdrawn.SubmittedAt)

	_, err = f.participants.Add(ctx, student1, activity.ID, dto.ParticipantAddRequest{UserIDs: []uint{2}, Credits: 1})
	require.NoError(t, err)
}

func TestReviewRequiresCommentForEveryRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)
	_, err := f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)

	for _, actor := range []authz.User{student1, teacher, admin} {
		t.Run(string(actor.Role), func(t *testing.T) {
			_, err := f.activities.Review(ctx, actor, activity.ID, dto.ActivityReviewRequest{Status: "approved", ReviewComments: "  "})
			require.ErrorIs(t, err, apperr.ErrValidation)
			require.Contains(t, err.Error(), "comment required")
		})
	}

	stored, err := f.activityRepo.GetByID(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPendingReview, stored.Status)
}

func TestReviewRequiresReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)
	_, err := f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)

	_, err = f.activities.Review(ctx, student1, activity.ID, dto.ActivityReviewRequest{Status: "approved", ReviewComments: "self approve"})
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestReviewOnDraftIsInvalidTransition(t *testing.T) {
	f := newFixture(t)
	activity := f.createDraft(t, student1)

	_, err := f.activities.Review(context.Background(), teacher, activity.ID, dto.ActivityReviewRequest{Status: "approved", ReviewComments: "ok"})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestReviewCorrectionPathAndIdempotency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)
	_, err := f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)

	approve := dto.ActivityReviewRequest{Status: "approved", ReviewComments: "looks good"}
	_, err = f.activities.Review(ctx, teacher, activity.ID, approve)
	require.NoError(t, err)

	again, err := f.activities.Review(ctx, teacher, activity.ID, approve)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusApproved, again.Status)
	require.Equal(t, int64(1), f.auditCount(t, "activity.approved"))

	corrected, err := f.activities.Review(ctx, teacher2, activity.ID, dto.ActivityReviewRequest{Status: "rejected", ReviewComments: "missing certificate"})
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusRejected, corrected.Status)
	require.Equal(t, teacher2.ID, *corrected.ReviewerID)
	require.False(t, corrected.Editable)

	_, err = f.participants.Add(ctx, student1, activity.ID, dto.ParticipantAddRequest{UserIDs: []uint{2}})
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.activities.Review(ctx, teacher, activity.ID, dto.ActivityReviewRequest{Status: "draft", ReviewComments: "x"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

// staleActivityRepo serves a snapshot on the first read, as if another
// request changed the row between the guard and the write.
type staleActivityRepo struct {
	repository.ActivityRepository
	stale *models.Activity
}

func (r *staleActivityRepo) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	if r.stale != nil {
		snapshot := *r.stale
		r.stale = nil
		return snapshot, nil
	}
	return r.ActivityRepository.GetByID(ctx, id)
}

func TestConcurrentActivityReviewLosesWithConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)
	_, err := f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)

	snapshot, err := f.activityRepo.GetByID(ctx, activity.ID)
	require.NoError(t, err)

	_, err = f.activities.Review(ctx, teacher, activity.ID, dto.ActivityReviewRequest{Status: "approved", ReviewComments: "first"})
	require.NoError(t, err)

	stale := &staleActivityRepo{ActivityRepository: f.activityRepo, stale: &snapshot}
	loser := NewActivityService(stale, nil, f.confirmations, f.audit, nil, NewValidator(), testLogger())
	_, err = loser.Review(ctx, teacher2, activity.ID, dto.ActivityReviewRequest{Status: "rejected", ReviewComments: "second"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := f.activityRepo.GetByID(ctx, activity.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusApproved, stored.Status)
	require.Equal(t, "first", stored.ReviewComments)
}

func TestSubmitValidatesCategoryDetails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := competitionRequest()
	delete(req.Details, "competition_name")
	activity, err := f.activities.Create(ctx, student1, req)
	require.NoError(t, err)
	require.Equal(t, "", activity.Details["competition_name"])

	_, err = f.activities.Submit(ctx, student1, activity.ID)
	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "competition_name", validation.Field)

	_, err = f.activities.Submit(ctx, student2, activity.ID)
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestNonFiniteDetailNumbersStayReadable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.activities.Create(ctx, student1, dto.ActivityCreateRequest{
		Title:    "Campus cafe",
		Category: category.EntrepreneurshipPractice,
		Details: map[string]interface{}{
			"company_name":  "Acme",
			"share_percent": "NaN",
			"total_hours":   "Inf",
		},
	})
	require.NoError(t, err)
	_, err = json.Marshal(created)
	require.NoError(t, err)

	loaded, err := f.activities.Get(ctx, student1, created.ID)
	require.NoError(t, err)
	require.Equal(t, 0.0, loaded.Details["share_percent"])
	require.Equal(t, 0.0, loaded.Details["total_hours"])

	submitted, err := f.activities.Submit(ctx, student1, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.ActivityStatusPendingReview, submitted.Status)
}

func TestCreateGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := competitionRequest()
	req.Category = "sports_day"
	_, err := f.activities.Create(ctx, student1, req)
	require.ErrorIs(t, err, apperr.ErrUnsupportedCategory)

	_, err = f.activities.Create(ctx, teacher, competitionRequest())
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)

	req = competitionRequest()
	req.Title = ""
	_, err = f.activities.Create(ctx, student1, req)
	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "title", validation.Field)
}

func TestWithdrawRequiresMatchingSingleUseToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)

	_, err := f.activities.RequestConfirmation(ctx, student1, activity.ID, ConfirmWithdraw)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.activities.Submit(ctx, student1, activity.ID)
	require.NoError(t, err)

	_, err = f.activities.Withdraw(ctx, student1, activity.ID, "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	deleteToken, err := f.confirmations.Issue(ctx, student1, activity.ID, ConfirmDelete)
	require.NoError(t, err)
	_, err = f.activities.Withdraw(ctx, student1, activity.ID, deleteToken.Token)
	require.ErrorIs(t, err, apperr.ErrValidation)

	token := f.token(t, student1, activity.ID, ConfirmWithdraw)
	_, err = f.activities.Withdraw(ctx, student2, activity.ID, token)
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.activities.Withdraw(ctx, student1, activity.ID, token)
	require.NoError(t, err)
}

func TestDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft := f.createDraft(t, student1)
	_, err := f.participants.Add(ctx, student1, draft.ID, dto.ParticipantAddRequest{UserIDs: []uint{2}, Credits: 1})
	require.NoError(t, err)
	require.NoError(t, f.activities.Delete(ctx, student1, draft.ID, f.token(t, student1, draft.ID, ConfirmDelete)))
	_, err = f.activities.Get(ctx, student1, draft.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var orphans int64
	require.NoError(t, f.db.Model(&models.Participant{}).Where("activity_id = ?", draft.ID).Count(&orphans).Error)
	require.Zero(t, orphans)

	approved := f.createDraft(t, student1)
	f.setStatus(t, approved.ID, models.ActivityStatusApproved)

	_, err = f.activities.RequestConfirmation(ctx, student1, approved.ID, ConfirmDelete)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	token, err := f.confirmations.Issue(ctx, student1, approved.ID, ConfirmDelete)
	require.NoError(t, err)
	err = f.activities.Delete(ctx, student1, approved.ID, token.Token)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	require.NoError(t, f.activities.Delete(ctx, admin, approved.ID, f.token(t, admin, approved.ID, ConfirmDelete)))
}

func TestGetAndListVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own := f.createDraft(t, student1)
	other := f.createDraft(t, student2)
	public := f.createDraft(t, student2)
	f.setStatus(t, public.ID, models.ActivityStatusApproved)

	_, err := f.activities.Get(ctx, student1, other.ID)
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)
	_, err = f.activities.Get(ctx, teacher, other.ID)
	require.NoError(t, err)
	_, err = f.activities.Get(ctx, student1, public.ID)
	require.NoError(t, err)

	list, err := f.activities.List(ctx, student1, dto.ActivityListRequest{})
	require.NoError(t, err)
	ids := []uint{}
	for _, item := range list.Items {
		ids = append(ids, item.ID)
	}
	require.ElementsMatch(t, []uint{own.ID, public.ID}, ids)
	require.Equal(t, 1, list.Summary.Draft)
	require.Equal(t, 1, list.Summary.Approved)

	list, err = f.activities.List(ctx, teacher, dto.ActivityListRequest{Status: models.ActivityStatusDraft})
	require.NoError(t, err)
	require.Equal(t, int64(2), list.Pagination.TotalItems)

	_, err = f.activities.List(ctx, teacher, dto.ActivityListRequest{Status: "archived"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateChangesCategoryAndChecksDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)

	paper := "paper_patent"
	updated, err := f.activities.Update(ctx, student1, activity.ID, dto.ActivityUpdateRequest{
		Category: &paper,
		Details:  map[string]interface{}{"title": "On graphs", "kind": "paper"},
	})
	require.NoError(t, err)
	require.Equal(t, paper, updated.Category)
	require.Equal(t, "On graphs", updated.Details["title"])
	require.NotContains(t, updated.Details, "competition_name")

	start := mustDate(t, "2024-05-02")
	end := mustDate(t, "2024-05-01")
	_, err = f.activities.Update(ctx, student1, activity.ID, dto.ActivityUpdateRequest{StartDate: &start, EndDate: &end})
	var validation *apperr.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "end_date", validation.Field)

	_, err = f.activities.Update(ctx, student2, activity.ID, dto.ActivityUpdateRequest{Title: ptrString("Mine now")})
	require.ErrorIs(t, err, apperr.ErrPermissionDenied)
}

func TestActivityStatsRecomputesAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	activity := f.createDraft(t, student1)

	_, err := f.participants.Add(ctx, student1, activity.ID, dto.ParticipantAddRequest{UserIDs: []uint{2, 3}, Credits: 1.5})
	require.NoError(t, err)
	_, err = f.applications.Create(ctx, student2, dto.ApplicationCreateRequest{ActivityID: activity.ID, AppliedCredits: 2})
	require.NoError(t, err)

	stats, err := f.activities.Stats(ctx, student2, activity.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Participants.Count)
	require.Equal(t, 3.0, stats.Participants.TotalCredits)
	require.Equal(t, 1, stats.Applications.Pending)
	require.Equal(t, 2.0, stats.Applications.TotalApplied)
	require.Zero(t, stats.Applications.TotalAwarded)
}
