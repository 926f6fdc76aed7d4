package export

import (
	"io"
	"strconv"
	"time"

	"github.com/noah-isme/activity-credit-api/internal/models"
)

// Sheet titles used by the ledger workbook.
const (
	SheetParticipants = "Participants"
	SheetApplications = "Applications"
)

// LedgerSheets lays out an activity's participants and applications. users
// supplies display names; unknown ids are left blank.
func LedgerSheets(activity models.Activity, users map[uint]models.User) []SheetSpec {
	participants := SheetSpec{
		Title:  SheetParticipants,
		Header: []string{"User ID", "Name", "Email", "Credits", "Joined At"},
	}
	for _, p := range activity.Participants {
		user := users[p.UserID]
		participants.Rows = append(participants.Rows, []string{
			strconv.FormatUint(uint64(p.UserID), 10),
			user.Name,
			user.Email,
			formatCredits(p.Credits),
			p.JoinedAt.UTC().Format(time.RFC3339),
		})
	}

	applications := SheetSpec{
		Title:  SheetApplications,
		Header: []string{"Application ID", "User ID", "Name", "Status", "Applied Credits", "Awarded Credits", "Reviewed At", "Review Comments"},
	}
	for _, a := range activity.Applications {
		user := users[a.UserID]
		reviewedAt := ""
		if a.ReviewedAt != nil {
			reviewedAt = a.ReviewedAt.UTC().Format(time.RFC3339)
		}
		applications.Rows = append(applications.Rows, []string{
			strconv.FormatUint(uint64(a.ID), 10),
			strconv.FormatUint(uint64(a.UserID), 10),
			user.Name,
			a.Status,
			formatCredits(a.AppliedCredits),
			formatCredits(a.AwardedCredits),
			reviewedAt,
			a.ReviewComments,
		})
	}

	return []SheetSpec{participants, applications}
}

// WriteLedger renders the ledger workbook for activity into w.
func WriteLedger(w io.Writer, activity models.Activity, users map[uint]models.User) error {
	f, err := NewWorkbook(LedgerSheets(activity, users))
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func formatCredits(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
