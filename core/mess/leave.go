package mess

import (
	"time"

	"github.com/pkg/errors"
)

// LeaveStatus is the state of a LeaveRequest: pending, then approved or rejected for good.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

func (s LeaveStatus) IsValid() bool {
	switch s {
	case LeavePending, LeaveApproved, LeaveRejected:
		return true
	}
	return false
}

func (s LeaveStatus) IsTerminal() bool {
	switch s {
	case LeaveApproved, LeaveRejected:
		return true
	}
	return false
}

// LeaveAction is a staff decision on a pending LeaveRequest.
type LeaveAction string

const (
	ActionApprove LeaveAction = "approve"
	ActionReject  LeaveAction = "reject"
)

func ParseLeaveAction(s string) (LeaveAction, error) {
	a := LeaveAction(s)
	if _, err := a.target(); err != nil {
		return "", err
	}
	return a, nil
}

func (a LeaveAction) target() (LeaveStatus, error) {
	switch a {
	case ActionApprove:
		return LeaveApproved, nil
	case ActionReject:
		return LeaveRejected, nil
	}
	return "", ErrInvalidAction
}

// LeaveRequest asks to skip one meal of one day; only approved requests earn a refund.
type LeaveRequest struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Date         Date        `json:"date"`
	MealType     MealType    `json:"meal_type"`
	Reason       string      `json:"reason"`
	Status       LeaveStatus `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	DecidedBy    string      `json:"decided_by,omitempty"`
	DecidedAt    *time.Time  `json:"decided_at,omitempty"`
	DecisionNote string      `json:"decision_note,omitempty"`
}

// SubmitLeave creates a pending LeaveRequest.
func SubmitLeave(userID string, date Date, mt MealType, reason string, at time.Time) (LeaveRequest, error) {
	if !mt.IsValid() {
		return LeaveRequest{}, ErrInvalidMealType
	}
	return LeaveRequest{
		UserID:    userID,
		Date:      date,
		MealType:  mt,
		Reason:    reason,
		Status:    LeavePending,
		CreatedAt: at.UTC(),
	}, nil
}

// Transition applies the staff decision `action`. It fails with ErrInvalidTransition
// unless the request is pending; on failure the request is left untouched.
func (lr *LeaveRequest) Transition(action LeaveAction, actorID, note string, at time.Time) error {
	to, err := action.target()
	if err != nil {
		return err
	}
	if lr.Status != LeavePending {
		return errors.Wrapf(ErrInvalidTransition, "cannot %s a request that is %s", action, lr.Status)
	}
	decidedAt := at.UTC()
	lr.Status = to
	lr.DecidedBy = actorID
	lr.DecidedAt = &decidedAt
	lr.DecisionNote = note
	return nil
}

func (lr *LeaveRequest) Approve(actorID, note string, at time.Time) error {
	return lr.Transition(ActionApprove, actorID, note, at)
}

func (lr *LeaveRequest) Reject(actorID, note string, at time.Time) error {
	return lr.Transition(ActionReject, actorID, note, at)
}

func (lr LeaveRequest) IsApproved() bool {
	return lr.Status == LeaveApproved
}
