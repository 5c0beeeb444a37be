package mess

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when a referenced user, meal record or leave request does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidTransition is returned when a leave request is decided on from a terminal state.
	ErrInvalidTransition = errors.New("invalid leave request transition")
	// ErrInvalidRange is returned when a date range starts after it ends.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrInvalidMealType is returned for a meal type other than breakfast, lunch or dinner.
	ErrInvalidMealType = errors.New("invalid meal type")
	// ErrLeaveExists is returned when a pending or approved leave request already covers the same meal.
	ErrLeaveExists = errors.New("leave request already exists")
	// ErrInvalidAction is returned for a leave action other than approve or reject.
	ErrInvalidAction = errors.New("invalid leave action")
)
