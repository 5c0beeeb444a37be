package mess

import "context"

type (
	// RecordFilter selects preference & attendance records; empty fields are ignored.
	RecordFilter struct {
		UserIDs []string
		Range   *DateRange
	}

	// LeaveFilter selects leave requests; empty fields are ignored.
	LeaveFilter struct {
		UserID   string
		Statuses []LeaveStatus
		MealType MealType
		Range    *DateRange
	}

	Repository interface {
		// UpsertPreference creates or replaces the preference of (UserID, Date).
		UpsertPreference(ctx context.Context, pref MealPreference) (MealPreference, error)
		QueryPreferences(ctx context.Context, filter RecordFilter) ([]MealPreference, error)

		// UpsertAttendance creates or replaces the record of (UserID, Date, MealType).
		UpsertAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error)
		QueryAttendance(ctx context.Context, filter RecordFilter) ([]AttendanceRecord, error)

		// CreateLeaveRequest returns ErrLeaveExists if a pending or approved request
		// of the same user already covers the same date & meal.
		CreateLeaveRequest(ctx context.Context, lr LeaveRequest) (LeaveRequest, error)
		// GetLeaveRequest returns ErrNotFound if no request has this id.
		GetLeaveRequest(ctx context.Context, id string) (LeaveRequest, error)
		QueryLeaveRequests(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error)
		// DecideLeaveRequest stores the decision of `lr` only if the stored request is still pending.
		// It returns ErrInvalidTransition if the request was already decided, ErrNotFound if it does not exist.
		DecideLeaveRequest(ctx context.Context, lr LeaveRequest) (LeaveRequest, error)

		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryNotifications returns the notifications of `userID`, newest first.
		QueryNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		// MarkNotificationsRead marks the given notifications of `userID` read; all of them if no id is given.
		MarkNotificationsRead(ctx context.Context, userID string, ids ...string) (int, error)
	}
)

// Matches reports whether lr passes the filter.
func (f *LeaveFilter) Matches(lr LeaveRequest) bool {
	if f == nil {
		return true
	}
	if f.UserID != "" && lr.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 {
		var found bool
		for _, s := range f.Statuses {
			if lr.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MealType != "" && lr.MealType != f.MealType {
		return false
	}
	if f.Range != nil && !f.Range.Contains(lr.Date) {
		return false
	}
	return true
}

// Matches reports whether the record of `userID` on day `d` passes the filter.
func (f *RecordFilter) Matches(userID string, d Date) bool {
	if f == nil {
		return true
	}
	if len(f.UserIDs) > 0 {
		var found bool
		for _, id := range f.UserIDs {
			if id == userID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.Range == nil || f.Range.Contains(d)
}
