package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/hostelmess/core/mess"
)

const (
	preferenceColumns   = `user_id, date, breakfast, lunch, dinner, full_day_leave, updated_at`
	attendanceColumns   = `user_id, date, meal_type, attended, marked_at, hostel_sync`
	leaveColumns        = `id, user_id, date, meal_type, reason, status, created_at, decided_by, decided_at, decision_note`
	notificationColumns = `id, user_id, title, message, is_read, created_at`

	// unique index over the pending & approved requests of a (user, date, meal)
	openLeaveConstraint = "uq_leave_request_open"
)

type (
	preferenceRow struct {
		UserID       string    `db:"user_id"`
		Date         mess.Date `db:"date"`
		Breakfast    bool      `db:"breakfast"`
		Lunch        bool      `db:"lunch"`
		Dinner       bool      `db:"dinner"`
		FullDayLeave bool      `db:"full_day_leave"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	attendanceRow struct {
		UserID     string    `db:"user_id"`
		Date       mess.Date `db:"date"`
		MealType   string    `db:"meal_type"`
		Attended   bool      `db:"attended"`
		MarkedAt   time.Time `db:"marked_at"`
		HostelSync bool      `db:"hostel_sync"`
	}

	leaveRow struct {
		ID           string      `db:"id"`
		UserID       string      `db:"user_id"`
		Date         mess.Date   `db:"date"`
		MealType     string      `db:"meal_type"`
		Reason       string      `db:"reason"`
		Status       string      `db:"status"`
		CreatedAt    time.Time   `db:"created_at"`
		DecidedBy    null.String `db:"decided_by"`
		DecidedAt    null.Time   `db:"decided_at"`
		DecisionNote null.String `db:"decision_note"`
	}

	notificationRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		Title     string    `db:"title"`
		Message   string    `db:"message"`
		IsRead    bool      `db:"is_read"`
		CreatedAt time.Time `db:"created_at"`
	}
)

func (row preferenceRow) pref() mess.MealPreference {
	return mess.MealPreference{
		UserID:       row.UserID,
		Date:         row.Date,
		Breakfast:    row.Breakfast,
		Lunch:        row.Lunch,
		Dinner:       row.Dinner,
		FullDayLeave: row.FullDayLeave,
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}

func (row attendanceRow) record() mess.AttendanceRecord {
	return mess.AttendanceRecord{
		UserID:     row.UserID,
		Date:       row.Date,
		MealType:   mess.MealType(row.MealType),
		Attended:   row.Attended,
		MarkedAt:   row.MarkedAt.UTC(),
		HostelSync: row.HostelSync,
	}
}

func newLeaveRow(lr mess.LeaveRequest) leaveRow {
	return leaveRow{
		ID:           lr.ID,
		UserID:       lr.UserID,
		Date:         lr.Date,
		MealType:     string(lr.MealType),
		Reason:       lr.Reason,
		Status:       string(lr.Status),
		CreatedAt:    lr.CreatedAt.UTC(),
		DecidedBy:    null.NewString(lr.DecidedBy, lr.DecidedBy != ""),
		DecidedAt:    null.TimeFromPtr(lr.DecidedAt),
		DecisionNote: null.NewString(lr.DecisionNote, lr.DecisionNote != ""),
	}
}

func (row leaveRow) request() mess.LeaveRequest {
	lr := mess.LeaveRequest{
		ID:           row.ID,
		UserID:       row.UserID,
		Date:         row.Date,
		MealType:     mess.MealType(row.MealType),
		Reason:       row.Reason,
		Status:       mess.LeaveStatus(row.Status),
		CreatedAt:    row.CreatedAt.UTC(),
		DecidedBy:    row.DecidedBy.String,
		DecisionNote: row.DecisionNote.String,
	}
	if row.DecidedAt.Valid {
		t := row.DecidedAt.Time.UTC()
		lr.DecidedAt = &t
	}
	return lr
}

func (row notificationRow) notification() mess.Notification {
	return mess.Notification{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		Message:   row.Message,
		Read:      row.IsRead,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type messRepository struct {
	db *sqlx.DB
}

var _ mess.Repository = (*messRepository)(nil)

func NewMessRepository(db *sqlx.DB) *messRepository {
	return &messRepository{db: db}
}

func recordWhere(filter mess.RecordFilter) where {
	var w where
	if len(filter.UserIDs) > 0 {
		w.add("user_id = ANY(?::uuid[])", pq.Array(validUUIDs(filter.UserIDs)))
	}
	if filter.Range != nil {
		w.add("date BETWEEN ? AND ?", filter.Range.Start, filter.Range.End)
	}
	return w
}

func (repo *messRepository) UpsertPreference(ctx context.Context, pref mess.MealPreference) (mess.MealPreference, error) {
	pref.Normalize()
	q := `INSERT INTO meal_preference (` + preferenceColumns + `)
		VALUES (:user_id, :date, :breakfast, :lunch, :dinner, :full_day_leave, :updated_at)
		ON CONFLICT (user_id, date) DO UPDATE SET
			breakfast = EXCLUDED.breakfast, lunch = EXCLUDED.lunch, dinner = EXCLUDED.dinner,
			full_day_leave = EXCLUDED.full_day_leave, updated_at = EXCLUDED.updated_at`
	row := preferenceRow{
		UserID:       pref.UserID,
		Date:         pref.Date,
		Breakfast:    pref.Breakfast,
		Lunch:        pref.Lunch,
		Dinner:       pref.Dinner,
		FullDayLeave: pref.FullDayLeave,
		UpdatedAt:    pref.UpdatedAt.UTC(),
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return mess.MealPreference{}, errors.Wrap(err, "upserting meal preference")
	}
	return pref, nil
}

func (repo *messRepository) QueryPreferences(ctx context.Context, filter mess.RecordFilter) ([]mess.MealPreference, error) {
	w := recordWhere(filter)
	q := repo.db.Rebind(`SELECT ` + preferenceColumns + ` FROM meal_preference` + w.String() + ` ORDER BY date, user_id`)

	var rows []preferenceRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying meal preferences")
	}
	prefs := make([]mess.MealPreference, 0, len(rows))
	for _, row := range rows {
		prefs = append(prefs, row.pref())
	}
	return prefs, nil
}

func (repo *messRepository) UpsertAttendance(ctx context.Context, rec mess.AttendanceRecord) (mess.AttendanceRecord, error) {
	q := `INSERT INTO meal_attendance (` + attendanceColumns + `)
		VALUES (:user_id, :date, :meal_type, :attended, :marked_at, :hostel_sync)
		ON CONFLICT (user_id, date, meal_type) DO UPDATE SET
			attended = EXCLUDED.attended, marked_at = EXCLUDED.marked_at, hostel_sync = EXCLUDED.hostel_sync`
	row := attendanceRow{
		UserID:     rec.UserID,
		Date:       rec.Date,
		MealType:   string(rec.MealType),
		Attended:   rec.Attended,
		MarkedAt:   rec.MarkedAt.UTC(),
		HostelSync: rec.HostelSync,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return mess.AttendanceRecord{}, errors.Wrap(err, "upserting attendance")
	}
	return rec, nil
}

func (repo *messRepository) QueryAttendance(ctx context.Context, filter mess.RecordFilter) ([]mess.AttendanceRecord, error) {
	w := recordWhere(filter)
	q := repo.db.Rebind(`SELECT ` + attendanceColumns + ` FROM meal_attendance` + w.String() +
		` ORDER BY date, user_id, array_position(ARRAY['breakfast','lunch','dinner']::varchar[], meal_type)`)

	var rows []attendanceRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]mess.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo *messRepository) CreateLeaveRequest(ctx context.Context, lr mess.LeaveRequest) (mess.LeaveRequest, error) {
	lr.ID = uuid.New().String()
	q := `INSERT INTO leave_request (` + leaveColumns + `)
		VALUES (:id, :user_id, :date, :meal_type, :reason, :status, :created_at, :decided_by, :decided_at, :decision_note)`
	if _, err := repo.db.NamedExecContext(ctx, q, newLeaveRow(lr)); err != nil {
		if constraint, ok := uniqueConstraint(err); ok && constraint == openLeaveConstraint {
			return mess.LeaveRequest{}, mess.ErrLeaveExists
		}
		return mess.LeaveRequest{}, errors.Wrap(err, "inserting leave request")
	}
	return lr, nil
}

func (repo *messRepository) GetLeaveRequest(ctx context.Context, id string) (mess.LeaveRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return mess.LeaveRequest{}, mess.ErrNotFound
	}
	var row leaveRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+leaveColumns+` FROM leave_request WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return mess.LeaveRequest{}, mess.ErrNotFound
		}
		return mess.LeaveRequest{}, errors.Wrap(err, "getting leave request")
	}
	return row.request(), nil
}

func (repo *messRepository) QueryLeaveRequests(ctx context.Context, filter mess.LeaveFilter) ([]mess.LeaveRequest, error) {
	var w where
	if filter.UserID != "" {
		if _, err := uuid.Parse(filter.UserID); err != nil {
			return []mess.LeaveRequest{}, nil
		}
		w.add("user_id = ?", filter.UserID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		w.add("status = ANY(?)", pq.Array(statuses))
	}
	if filter.MealType != "" {
		w.add("meal_type = ?", string(filter.MealType))
	}
	if filter.Range != nil {
		w.add("date BETWEEN ? AND ?", filter.Range.Start, filter.Range.End)
	}

	var rows []leaveRow
	q := repo.db.Rebind(`SELECT ` + leaveColumns + ` FROM leave_request` + w.String() + ` ORDER BY date, created_at`)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying leave requests")
	}
	requests := make([]mess.LeaveRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, row.request())
	}
	return requests, nil
}

// DecideLeaveRequest only updates a pending row, so concurrent decisions cannot both win.
func (repo *messRepository) DecideLeaveRequest(ctx context.Context, lr mess.LeaveRequest) (mess.LeaveRequest, error) {
	if _, err := uuid.Parse(lr.ID); err != nil {
		return mess.LeaveRequest{}, mess.ErrNotFound
	}

	row := newLeaveRow(lr)
	q := `UPDATE leave_request
		SET status = $2, decided_by = $3, decided_at = $4, decision_note = $5
		WHERE id = $1 AND status = $6
		RETURNING ` + leaveColumns
	var updated leaveRow
	err := repo.db.GetContext(ctx, &updated, q,
		row.ID, row.Status, row.DecidedBy, row.DecidedAt, row.DecisionNote, string(mess.LeavePending))
	if err == nil {
		return updated.request(), nil
	}
	if err != sql.ErrNoRows {
		return mess.LeaveRequest{}, errors.Wrap(err, "deciding leave request")
	}

	// lost the race, or the request does not exist
	stored, err := repo.GetLeaveRequest(ctx, lr.ID)
	if err != nil {
		return mess.LeaveRequest{}, err
	}
	return mess.LeaveRequest{}, errors.Wrapf(mess.ErrInvalidTransition, "leave request is already %s", stored.Status)
}

func (repo *messRepository) CreateNotification(ctx context.Context, n mess.Notification) (mess.Notification, error) {
	n.ID = uuid.New().String()
	q := `INSERT INTO notification (` + notificationColumns + `)
		VALUES (:id, :user_id, :title, :message, :is_read, :created_at)`
	row := notificationRow{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return mess.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *messRepository) QueryNotifications(ctx context.Context, userID string, unreadOnly bool) ([]mess.Notification, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []mess.Notification{}, nil
	}
	q := `SELECT ` + notificationColumns + ` FROM notification WHERE user_id = $1`
	if unreadOnly {
		q += ` AND NOT is_read`
	}
	q += ` ORDER BY created_at DESC`

	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notifications := make([]mess.Notification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, row.notification())
	}
	return notifications, nil
}

func (repo *messRepository) MarkNotificationsRead(ctx context.Context, userID string, ids ...string) (int, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return 0, nil
	}
	var w where
	w.add("user_id = ?", userID)
	w.add("NOT is_read")
	if len(ids) > 0 {
		w.add("id = ANY(?::uuid[])", pq.Array(validUUIDs(ids)))
	}

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`UPDATE notification SET is_read = TRUE`+w.String()), w.args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return int(n), nil
}
