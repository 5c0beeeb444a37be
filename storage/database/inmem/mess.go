package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core/mess"
)

type messRepository struct {
	db *messTables
}

var _ mess.Repository = (*messRepository)(nil)

func NewMessRepository(db *DB) *messRepository {
	return &messRepository{db: db.mess}
}

func (repo *messRepository) UpsertPreference(_ context.Context, pref mess.MealPreference) (mess.MealPreference, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	pref.Normalize()
	repo.db.preferences[prefKey{pref.UserID, pref.Date.String()}] = pref
	return pref, nil
}

func (repo *messRepository) QueryPreferences(_ context.Context, filter mess.RecordFilter) ([]mess.MealPreference, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	prefs := make([]mess.MealPreference, 0)
	for _, p := range repo.db.preferences {
		if filter.Matches(p.UserID, p.Date) {
			prefs = append(prefs, p)
		}
	}
	sort.Slice(prefs, func(i, j int) bool {
		if !prefs[i].Date.Equal(prefs[j].Date) {
			return prefs[i].Date.Before(prefs[j].Date)
		}
		return prefs[i].UserID < prefs[j].UserID
	})
	return prefs, nil
}

func (repo *messRepository) UpsertAttendance(_ context.Context, rec mess.AttendanceRecord) (mess.AttendanceRecord, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.attendance[attendanceKey{rec.UserID, rec.Date.String(), rec.MealType}] = rec
	return rec, nil
}

func (repo *messRepository) QueryAttendance(_ context.Context, filter mess.RecordFilter) ([]mess.AttendanceRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]mess.AttendanceRecord, 0)
	for _, r := range repo.db.attendance {
		if filter.Matches(r.UserID, r.Date) {
			records = append(records, r)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return mealOrder(a.MealType) < mealOrder(b.MealType)
	})
	return records, nil
}

func (repo *messRepository) CreateLeaveRequest(_ context.Context, lr mess.LeaveRequest) (mess.LeaveRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, other := range repo.db.leave {
		if other.UserID == lr.UserID && other.MealType == lr.MealType && other.Date.Equal(lr.Date) &&
			(other.Status == mess.LeavePending || other.Status == mess.LeaveApproved) {
			return mess.LeaveRequest{}, errors.Wrapf(mess.ErrLeaveExists, "leave request %s", other.ID)
		}
	}

	lr.ID = uuid.New().String()
	repo.db.leave[lr.ID] = &lr
	return lr, nil
}

func (repo *messRepository) GetLeaveRequest(_ context.Context, id string) (mess.LeaveRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if lr, ok := repo.db.leave[id]; ok {
		return *lr, nil
	}
	return mess.LeaveRequest{}, mess.ErrNotFound
}

func (repo *messRepository) QueryLeaveRequests(_ context.Context, filter mess.LeaveFilter) ([]mess.LeaveRequest, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	requests := make([]mess.LeaveRequest, 0)
	for _, lr := range repo.db.leave {
		if filter.Matches(*lr) {
			requests = append(requests, *lr)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		if !requests[i].Date.Equal(requests[j].Date) {
			return requests[i].Date.Before(requests[j].Date)
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

func (repo *messRepository) DecideLeaveRequest(_ context.Context, lr mess.LeaveRequest) (mess.LeaveRequest, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.leave[lr.ID]
	if !ok {
		return mess.LeaveRequest{}, mess.ErrNotFound
	}
	if stored.Status != mess.LeavePending {
		return mess.LeaveRequest{}, errors.Wrapf(mess.ErrInvalidTransition, "leave request is already %s", stored.Status)
	}
	stored.Status = lr.Status
	stored.DecidedBy = lr.DecidedBy
	stored.DecidedAt = lr.DecidedAt
	stored.DecisionNote = lr.DecisionNote
	return *stored, nil
}

func (repo *messRepository) CreateNotification(_ context.Context, n mess.Notification) (mess.Notification, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	n.ID = uuid.New().String()
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *messRepository) QueryNotifications(_ context.Context, userID string, unreadOnly bool) ([]mess.Notification, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	notifications := make([]mess.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.UserID == userID && !(unreadOnly && n.Read) {
			notifications = append(notifications, *n)
		}
	}
	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
	return notifications, nil
}

func (repo *messRepository) MarkNotificationsRead(_ context.Context, userID string, ids ...string) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var count int
	for _, n := range repo.db.notifications {
		if n.UserID != userID || n.Read || (len(ids) > 0 && !wanted[n.ID]) {
			continue
		}
		n.Read = true
		count++
	}
	return count, nil
}

func mealOrder(mt mess.MealType) int {
	for i, m := range mess.MealTypes {
		if m == mt {
			return i
		}
	}
	return len(mess.MealTypes)
}
