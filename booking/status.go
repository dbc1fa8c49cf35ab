package booking

import (
	"fmt"
	"strings"
	"time"

	"robotics_club_services/models"
)

// RequestStatus is the effective status of a request, projected from its
// latest action. It is never stored.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusOverdue  RequestStatus = "overdue"
	StatusReturned RequestStatus = "returned"
	StatusRejected RequestStatus = "rejected"
)

const DateLayout = "2006-01-02"

// Latest returns the most recently recorded action, or nil.
func Latest(actions []models.Action) *models.Action {
	var latest *models.Action
	for i := range actions {
		if latest == nil || actions[i].Seq > latest.Seq {
			latest = &actions[i]
		}
	}
	return latest
}

// LatestOfKind returns the most recent action of kind k, or nil.
func LatestOfKind(actions []models.Action, k models.ActionKind) *models.Action {
	var latest *models.Action
	for i := range actions {
		if actions[i].Kind != k {
			continue
		}
		if latest == nil || actions[i].Seq > latest.Seq {
			latest = &actions[i]
		}
	}
	return latest
}

// EffectiveStatus maps a request's action log to its status. An approval that
// has not been returned reads as overdue once today is past the expected
// return date, without touching the stored action.
func EffectiveStatus(actions []models.Action, expectedReturn *time.Time, today time.Time) RequestStatus {
	latest := Latest(actions)
	if latest == nil {
		return StatusPending
	}
	switch latest.Kind {
	case models.ActionReject:
		return StatusRejected
	case models.ActionReturn:
		return StatusReturned
	case models.ActionApprove:
		if latest.Status == models.StatusReturned {
			return StatusReturned
		}
		if IsOverdue(expectedReturn, today) {
			return StatusOverdue
		}
		return StatusApproved
	}
	return StatusPending
}

// ApprovalStatus is the status stored on a new approve action.
func ApprovalStatus(expectedReturn *time.Time, today time.Time) models.ActionStatus {
	if IsOverdue(expectedReturn, today) {
		return models.StatusOverdue
	}
	return models.StatusOnService
}

// ActionOverdue reports whether a single action is an unreturned approval
// past its request's return date.
func ActionOverdue(a models.Action, expectedReturn *time.Time, today time.Time) bool {
	return a.Kind == models.ActionApprove && a.Status != models.StatusReturned && IsOverdue(expectedReturn, today)
}

// IsOverdue reports whether today is strictly after the expected return date.
func IsOverdue(expectedReturn *time.Time, today time.Time) bool {
	if expectedReturn == nil {
		return false
	}
	return DateOf(today, time.UTC).After(DateOf(*expectedReturn, time.UTC))
}

// DateOf truncates t to its calendar date in loc, returned as UTC midnight so
// dates compare the same way postgres DATE columns scan.
func DateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses an optional YYYY-MM-DD date. Blank input is no date.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, &Error{Code: CodeInvalidDate, Message: ErrInvalidDate.Message, Err: err}
	}
	return &t, nil
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b, time.UTC).Sub(DateOf(a, time.UTC)).Hours() / 24)
}

// StatusDisplay is the human label the mobile client shows next to a request.
func StatusDisplay(s RequestStatus, approvedQuantity int) string {
	switch s {
	case StatusApproved:
		return fmt.Sprintf("Approved (%d)", approvedQuantity)
	case StatusOverdue:
		return fmt.Sprintf("Overdue (%d)", approvedQuantity)
	case StatusReturned:
		return "Returned"
	case StatusRejected:
		return "Rejected"
	}
	return "Pending Review"
}

// checkTransition enforces the per-request lifecycle:
// pending -> approved -> returned, or pending -> rejected.
func checkTransition(history []models.Action, kind models.ActionKind) error {
	latest := Latest(history)
	switch kind {
	case models.ActionApprove:
		if latest != nil {
			return newError(CodeIllegalTransition, "request already has an admin decision")
		}
	case models.ActionReject:
		if latest != nil {
			return newError(CodeIllegalTransition, "only pending requests can be rejected")
		}
	case models.ActionReturn:
		if latest == nil || latest.Kind != models.ActionApprove || latest.Status == models.StatusReturned {
			return newError(CodeIllegalTransition, "only approved, unreturned requests can be returned")
		}
	default:
		return newError(CodeIllegalTransition, fmt.Sprintf("unknown action %q", kind))
	}
	return nil
}
