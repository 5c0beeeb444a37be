package mess

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core"
	"github.com/trezcool/hostelmess/core/user"
)

var NowFunc = time.Now // mockable

const leaveDecisionTmpl = "leave_decision"

type (
	ServiceInterface interface {
		SetPreference(ctx context.Context, userID string, in PreferenceInput) (MealPreference, error)
		Preferences(ctx context.Context, userID string, rng DateRange) ([]MealPreference, error)
		MarkAttendance(ctx context.Context, userID string, in AttendanceInput) (AttendanceRecord, error)
		Attendance(ctx context.Context, userID string, rng DateRange) ([]AttendanceRecord, error)
		SyncAttendance(ctx context.Context, date Date) (int, error)

		SubmitLeave(ctx context.Context, userID string, nl NewLeave) (LeaveRequest, error)
		GetLeave(ctx context.Context, id string) (LeaveRequest, error)
		QueryLeave(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error)
		ApprovedLeave(ctx context.Context, userID string, rng DateRange) ([]LeaveRequest, error)
		TransitionLeave(ctx context.Context, id string, action LeaveAction, actorID, note string) (LeaveRequest, error)

		ComputeAdjustment(ctx context.Context, userID string, rng DateRange) (Adjustment, error)
		ComputeAdjustments(ctx context.Context, rng DateRange) ([]Adjustment, error)
		ComputeWastageReport(ctx context.Context, rng DateRange) (WastageReport, error)

		Notifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error)
		MarkNotificationsRead(ctx context.Context, userID string, ids ...string) (int, error)

		Tariff() Tariff
	}

	Service struct {
		repo    Repository
		users   user.ServiceInterface
		mailSvc core.EmailService
		logger  core.Logger
		tariff  Tariff
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, users user.ServiceInterface, mailSvc core.EmailService, logger core.Logger, tariff Tariff) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailSvc: mailSvc,
		logger:  logger,
		tariff:  tariff,
	}
}

func (svc *Service) Tariff() Tariff {
	return svc.tariff
}

// getUser returns the User `id`, or ErrNotFound.
func (svc *Service) getUser(ctx context.Context, id string) (user.User, error) {
	usr, err := svc.users.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errors.Wrapf(ErrNotFound, "user %s", id)
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return usr, nil
}

func userFilter(userID string, rng DateRange) RecordFilter {
	return RecordFilter{UserIDs: []string{userID}, Range: &rng}
}

// Preferences & attendance

// SetPreference declares the meals of a day; days already past are billed and cannot change.
func (svc *Service) SetPreference(ctx context.Context, userID string, in PreferenceInput) (MealPreference, error) {
	if err := checkNotPast(in.Date, "cannot declare meals for a past date"); err != nil {
		return MealPreference{}, err
	}
	if _, err := svc.getUser(ctx, userID); err != nil {
		return MealPreference{}, err
	}
	pref := in.preference(userID)
	pref.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpsertPreference(ctx, pref)
}

func (svc *Service) Preferences(ctx context.Context, userID string, rng DateRange) ([]MealPreference, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return svc.repo.QueryPreferences(ctx, userFilter(userID, rng))
}

func (svc *Service) MarkAttendance(ctx context.Context, userID string, in AttendanceInput) (AttendanceRecord, error) {
	if _, err := svc.getUser(ctx, userID); err != nil {
		return AttendanceRecord{}, err
	}
	rec := AttendanceRecord{
		UserID:   userID,
		Date:     in.Date,
		MealType: in.MealType,
		Attended: in.Attended != nil && *in.Attended,
		MarkedAt: NowFunc().UTC(),
	}
	return svc.repo.UpsertAttendance(ctx, rec)
}

func (svc *Service) Attendance(ctx context.Context, userID string, rng DateRange) ([]AttendanceRecord, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return svc.repo.QueryAttendance(ctx, userFilter(userID, rng))
}

// SyncAttendance materializes the attendance of day `date` from the declared preferences & approved leave.
// Meals marked by hand are left untouched. It returns the number of records written.
func (svc *Service) SyncAttendance(ctx context.Context, date Date) (int, error) {
	if date.IsZero() {
		return 0, errors.Wrap(ErrInvalidRange, "a date is required")
	}
	rng := DateRange{Start: date, End: date}
	filter := RecordFilter{Range: &rng}

	prefs, err := svc.repo.QueryPreferences(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, "querying preferences")
	}
	existing, err := svc.repo.QueryAttendance(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, "querying attendance")
	}
	leave, err := svc.repo.QueryLeaveRequests(ctx, LeaveFilter{Statuses: []LeaveStatus{LeaveApproved}, Range: &rng})
	if err != nil {
		return 0, errors.Wrap(err, "querying leave requests")
	}

	now := NowFunc().UTC()
	var count int
	for _, ledger := range NewLedgers(prefs, existing, leave) {
		if _, ok := ledger.Preference(date); !ok {
			continue
		}
		for _, mt := range MealTypes {
			if rec, ok := ledger.Attendance(date, mt); ok && !rec.HostelSync {
				continue
			}
			rec := AttendanceRecord{
				UserID:     ledger.UserID,
				Date:       date,
				MealType:   mt,
				Attended:   !ledger.Skipped(date, mt),
				MarkedAt:   now,
				HostelSync: true,
			}
			if _, err := svc.repo.UpsertAttendance(ctx, rec); err != nil {
				return count, errors.Wrap(err, "syncing attendance")
			}
			count++
		}
	}
	return count, nil
}

// Leave workflow

func (svc *Service) SubmitLeave(ctx context.Context, userID string, nl NewLeave) (LeaveRequest, error) {
	if err := checkNotPast(nl.Date, "cannot request leave for a past date"); err != nil {
		return LeaveRequest{}, err
	}
	if _, err := svc.getUser(ctx, userID); err != nil {
		return LeaveRequest{}, err
	}

	lr, err := SubmitLeave(userID, nl.Date, nl.MealType, nl.Reason, NowFunc())
	if err != nil {
		return LeaveRequest{}, err
	}
	lr, err = svc.repo.CreateLeaveRequest(ctx, lr)
	if errors.Cause(err) == ErrLeaveExists {
		return LeaveRequest{}, core.NewValidationError(err, core.FieldError{
			Field: "meal_type",
			Error: fmt.Sprintf("a leave request for %s on %s already exists", nl.MealType, nl.Date),
		})
	}
	return lr, err
}

func (svc *Service) GetLeave(ctx context.Context, id string) (LeaveRequest, error) {
	if id == "" {
		return LeaveRequest{}, ErrNotFound
	}
	return svc.repo.GetLeaveRequest(ctx, id)
}

func (svc *Service) QueryLeave(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, error) {
	if filter.Range != nil {
		if err := filter.Range.Validate(); err != nil {
			return nil, err
		}
	}
	return svc.repo.QueryLeaveRequests(ctx, filter)
}

func (svc *Service) ApprovedLeave(ctx context.Context, userID string, rng DateRange) ([]LeaveRequest, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return svc.repo.QueryLeaveRequests(ctx, LeaveFilter{
		UserID:   userID,
		Statuses: []LeaveStatus{LeaveApproved},
		Range:    &rng,
	})
}

// TransitionLeave approves or rejects the pending LeaveRequest `id` on behalf of `actorID`.
// The student is notified of the decision; a failed notification does not fail the decision.
func (svc *Service) TransitionLeave(ctx context.Context, id string, action LeaveAction, actorID, note string) (LeaveRequest, error) {
	lr, err := svc.GetLeave(ctx, id)
	if err != nil {
		return LeaveRequest{}, err
	}
	if err = lr.Transition(action, actorID, note, NowFunc()); err != nil {
		return LeaveRequest{}, err
	}
	lr, err = svc.repo.DecideLeaveRequest(ctx, lr)
	if err != nil {
		return LeaveRequest{}, err
	}

	svc.notifyDecision(ctx, lr)
	return lr, nil
}

func (svc *Service) notifyDecision(ctx context.Context, lr LeaveRequest) {
	usr, err := svc.getUser(ctx, lr.UserID)
	if err != nil {
		svc.logger.Error("notifying leave decision", err, map[string]interface{}{"leave_request": lr.ID})
		return
	}

	title := fmt.Sprintf("Leave request %s", lr.Status)
	msg := fmt.Sprintf("Your leave request for %s on %s has been %s.", lr.MealType, lr.Date, lr.Status)
	if lr.DecisionNote != "" {
		msg += " Note: " + lr.DecisionNote
	}
	_, err = svc.repo.CreateNotification(ctx, Notification{
		UserID:    usr.ID,
		Title:     title,
		Message:   msg,
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		svc.logger.Error("creating notification", err, usr)
	}

	if usr.Email != "" && svc.mailSvc != nil {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      title,
			TemplateName: leaveDecisionTmpl,
			TemplateData: leaveDecisionData{
				Name:     usr.Name,
				MealType: lr.MealType.Label(),
				Date:     lr.Date.String(),
				Status:   string(lr.Status),
				Note:     lr.DecisionNote,
			},
		})
	}
}

type leaveDecisionData struct {
	Name     string
	MealType string
	Date     string
	Status   string
	Note     string
}

// Reports

func (svc *Service) ledger(ctx context.Context, userID string, rng DateRange) (*Ledger, error) {
	filter := userFilter(userID, rng)
	prefs, err := svc.repo.QueryPreferences(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying preferences")
	}
	records, err := svc.repo.QueryAttendance(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	leave, err := svc.ApprovedLeave(ctx, userID, rng)
	if err != nil {
		return nil, errors.Wrap(err, "querying approved leave")
	}
	return NewLedger(userID, prefs, records, leave), nil
}

func (svc *Service) ComputeAdjustment(ctx context.Context, userID string, rng DateRange) (Adjustment, error) {
	if err := rng.Validate(); err != nil {
		return Adjustment{}, err
	}
	if _, err := svc.getUser(ctx, userID); err != nil {
		return Adjustment{}, err
	}
	ledger, err := svc.ledger(ctx, userID, rng)
	if err != nil {
		return Adjustment{}, err
	}
	return ComputeAdjustment(svc.tariff, rng, ledger), nil
}

// ComputeAdjustments computes the Adjustment of every student over `rng`.
func (svc *Service) ComputeAdjustments(ctx context.Context, rng DateRange) ([]Adjustment, error) {
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	students, err := svc.users.Query(ctx, &user.QueryFilter{Roles: []user.Role{user.RoleStudent}}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	adjustments := make([]Adjustment, 0, len(students))
	for _, usr := range students {
		ledger, err := svc.ledger(ctx, usr.ID, rng)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, ComputeAdjustment(svc.tariff, rng, ledger))
	}
	return adjustments, nil
}

func (svc *Service) ComputeWastageReport(ctx context.Context, rng DateRange) (WastageReport, error) {
	if err := rng.Validate(); err != nil {
		return WastageReport{}, err
	}
	filter := RecordFilter{Range: &rng}
	prefs, err := svc.repo.QueryPreferences(ctx, filter)
	if err != nil {
		return WastageReport{}, errors.Wrap(err, "querying preferences")
	}
	leave, err := svc.repo.QueryLeaveRequests(ctx, LeaveFilter{Statuses: []LeaveStatus{LeaveApproved}, Range: &rng})
	if err != nil {
		return WastageReport{}, errors.Wrap(err, "querying approved leave")
	}
	return ComputeWastage(svc.tariff, rng, NewLedgers(prefs, nil, leave)), nil
}

// Notifications

func (svc *Service) Notifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, userID, unreadOnly)
}

func (svc *Service) MarkNotificationsRead(ctx context.Context, userID string, ids ...string) (int, error) {
	return svc.repo.MarkNotificationsRead(ctx, userID, ids...)
}
