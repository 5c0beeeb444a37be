package mess_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hostelmess/core"
	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
	emailsvc "github.com/trezcool/hostelmess/services/email"
	inmemdb "github.com/trezcool/hostelmess/storage/database/inmem"
	"github.com/trezcool/hostelmess/testutil"
)

type testEnv struct {
	svc     *mess.Service
	usrRepo user.Repository
	mailSvc *emailsvc.ConsoleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(logger)

	db := inmemdb.Open()
	env := &testEnv{
		usrRepo: inmemdb.NewUserRepository(db),
		mailSvc: emailsvc.NewConsoleServiceMock(conf),
	}
	env.svc = mess.NewService(inmemdb.NewMessRepository(db), user.NewService(env.usrRepo), env.mailSvc, logger, mess.FlatTariff(conf.Mess.MealPrice))
	return env
}

func (env *testEnv) student(t *testing.T, uname string) user.User {
	return testutil.CreateUser(t, env.usrRepo, uname, uname, uname+"@test.cd", user.RoleStudent, "")
}

func march(d int) mess.Date { return mess.NewDate(2024, time.March, d) }

func bPtr(b bool) *bool { return &b }

func mockNow(t *testing.T, now time.Time) {
	mess.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { mess.NowFunc = time.Now })
}

func TestService_ComputeAdjustment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mockNow(t, time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC))
	alice := env.student(t, "alice")

	_, err := env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: march(1), Breakfast: bPtr(false)})
	require.NoError(t, err)
	_, err = env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: march(2), FullDayLeave: true})
	require.NoError(t, err)

	tests := []struct {
		name      string
		userID    string
		rng       mess.DateRange
		wantCharg int64
		wantRef   int64
		wantErr   error
	}{
		{name: "one day", userID: alice.ID, rng: mess.DateRange{Start: march(1), End: march(1)}, wantCharg: 225, wantRef: 75},
		{name: "full day leave then no record", userID: alice.ID, rng: mess.DateRange{Start: march(2), End: march(3)}, wantCharg: 450, wantRef: 225},
		{name: "whole range", userID: alice.ID, rng: mess.DateRange{Start: march(1), End: march(3)}, wantCharg: 675, wantRef: 300},
		{name: "inverted range", userID: alice.ID, rng: mess.DateRange{Start: march(3), End: march(1)}, wantErr: mess.ErrInvalidRange},
		{name: "unknown user", userID: "lol", rng: mess.DateRange{Start: march(1), End: march(1)}, wantErr: mess.ErrNotFound},
		{name: "range too long", userID: alice.ID, rng: mess.DateRange{Start: mess.NewDate(2, time.January, 1), End: mess.NewDate(9999, time.December, 31)}, wantErr: mess.ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := env.svc.ComputeAdjustment(ctx, tt.userID, tt.rng)
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("ComputeAdjustment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			assert.Equal(t, tt.wantCharg, adj.TotalCharges)
			assert.Equal(t, tt.wantRef, adj.TotalRefunds)
			assert.Equal(t, tt.wantCharg-tt.wantRef, adj.NetAmount)

			again, err := env.svc.ComputeAdjustment(ctx, tt.userID, tt.rng)
			require.NoError(t, err)
			assert.Equal(t, adj, again)
		})
	}
}

func TestService_SetPreference_replaces(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mockNow(t, time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC))
	alice := env.student(t, "alice")

	_, err := env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: march(1), FullDayLeave: true})
	require.NoError(t, err)
	_, err = env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: march(1), Dinner: bPtr(false)})
	require.NoError(t, err)

	prefs, err := env.svc.Preferences(ctx, alice.ID, mess.DateRange{Start: march(1), End: march(31)})
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.False(t, prefs[0].FullDayLeave)
	assert.True(t, prefs[0].Breakfast)
	assert.False(t, prefs[0].Dinner)

	_, err = env.svc.SetPreference(ctx, "lol", mess.PreferenceInput{Date: march(1)})
	assert.Equal(t, mess.ErrNotFound, errors.Cause(err))
}

func TestService_SetPreference_pastDate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.student(t, "alice")
	month := mess.DateRange{Start: march(1), End: march(31)}

	mockNow(t, time.Date(2024, time.April, 15, 9, 0, 0, 0, time.UTC))
	before, err := env.svc.ComputeAdjustment(ctx, alice.ID, month)
	require.NoError(t, err)
	assert.Equal(t, int64(31*225), before.NetAmount)

	for _, d := range month.Days() {
		_, err = env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: d, FullDayLeave: true})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr), "%s: %v", d, err)
		assert.Equal(t, "date", vErr.Fields[0].Field)
	}

	after, err := env.svc.ComputeAdjustment(ctx, alice.ID, month)
	require.NoError(t, err)
	assert.Equal(t, before.NetAmount, after.NetAmount)

	// today is still open
	_, err = env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: mess.Today(), FullDayLeave: true})
	assert.NoError(t, err)
}

func TestService_LeaveWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mockNow(t, time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC))

	alice := env.student(t, "alice")
	warden := testutil.CreateUser(t, env.usrRepo, "Warden", "warden", "warden@test.cd", user.RoleWarden, "")

	lr, err := env.svc.SubmitLeave(ctx, alice.ID, mess.NewLeave{Date: march(5), MealType: mess.Lunch, Reason: "trip"})
	require.NoError(t, err)
	assert.Equal(t, mess.LeavePending, lr.Status)

	_, err = env.svc.SubmitLeave(ctx, alice.ID, mess.NewLeave{Date: march(5), MealType: mess.Lunch, Reason: "again"})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "duplicate open request: %v", err)
	assert.Equal(t, "meal_type", vErr.Fields[0].Field)

	_, err = env.svc.SubmitLeave(ctx, alice.ID, mess.NewLeave{Date: mess.NewDate(2024, time.February, 29), MealType: mess.Lunch, Reason: "late"})
	require.True(t, errors.As(err, &vErr), "past date: %v", err)
	assert.Equal(t, "date", vErr.Fields[0].Field)

	// pending leave earns no refund
	adj, err := env.svc.ComputeAdjustment(ctx, alice.ID, mess.DateRange{Start: march(5), End: march(5)})
	require.NoError(t, err)
	assert.Zero(t, adj.TotalRefunds)

	decided, err := env.svc.TransitionLeave(ctx, lr.ID, mess.ActionApprove, warden.ID, "ok")
	require.NoError(t, err)
	assert.Equal(t, mess.LeaveApproved, decided.Status)
	assert.Equal(t, warden.ID, decided.DecidedBy)

	_, err = env.svc.TransitionLeave(ctx, lr.ID, mess.ActionApprove, warden.ID, "")
	assert.Equal(t, mess.ErrInvalidTransition, errors.Cause(err))
	_, err = env.svc.TransitionLeave(ctx, lr.ID, mess.ActionReject, warden.ID, "")
	assert.Equal(t, mess.ErrInvalidTransition, errors.Cause(err))
	_, err = env.svc.TransitionLeave(ctx, "lol", mess.ActionReject, warden.ID, "")
	assert.Equal(t, mess.ErrNotFound, errors.Cause(err))

	// approved leave refunds the meal
	adj, err = env.svc.ComputeAdjustment(ctx, alice.ID, mess.DateRange{Start: march(5), End: march(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(75), adj.TotalRefunds)

	approved, err := env.svc.ApprovedLeave(ctx, alice.ID, mess.DateRange{Start: march(1), End: march(31)})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, lr.ID, approved[0].ID)

	// the student is notified
	notifications, err := env.svc.Notifications(ctx, alice.ID, true)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Leave request approved", notifications[0].Title)

	n, err := env.svc.MarkNotificationsRead(ctx, alice.ID, notifications[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	notifications, err = env.svc.Notifications(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Empty(t, notifications)

	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Lunch")
	assert.Contains(t, sent[0].TextContent, "2024-03-05")

	// a new request may follow a rejected one
	other, err := env.svc.SubmitLeave(ctx, alice.ID, mess.NewLeave{Date: march(6), MealType: mess.Dinner, Reason: "match"})
	require.NoError(t, err)
	_, err = env.svc.TransitionLeave(ctx, other.ID, mess.ActionReject, warden.ID, "no")
	require.NoError(t, err)
	_, err = env.svc.SubmitLeave(ctx, alice.ID, mess.NewLeave{Date: march(6), MealType: mess.Dinner, Reason: "match, please"})
	assert.NoError(t, err)
}

func TestService_TransitionLeave_concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.student(t, "alice")
	lr, err := env.svc.SubmitLeave(ctx, alice.ID, mess.NewLeave{Date: mess.Today().AddDays(1), MealType: mess.Breakfast, Reason: "exam"})
	require.NoError(t, err)

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			action := mess.ActionApprove
			if i%2 == 1 {
				action = mess.ActionReject
			}
			_, errs[i] = env.svc.TransitionLeave(ctx, lr.ID, action, "staff", "")
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.Equal(t, mess.ErrInvalidTransition, errors.Cause(err))
	}
	assert.Equal(t, 1, wins)

	stored, err := env.svc.GetLeave(ctx, lr.ID)
	require.NoError(t, err)
	assert.True(t, stored.Status.IsTerminal())
}

func TestService_SubmitLeave_concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.student(t, "alice")
	nl := mess.NewLeave{Date: mess.Today().AddDays(2), MealType: mess.Dinner, Reason: "concert"}

	const n = 20
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.SubmitLeave(ctx, alice.ID, nl)
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		var vErr *core.ValidationError
		if assert.True(t, errors.As(err, &vErr), err) {
			assert.Equal(t, mess.ErrLeaveExists, errors.Cause(vErr.Err))
		}
	}
	assert.Equal(t, 1, created)

	requests, err := env.svc.QueryLeave(ctx, mess.LeaveFilter{UserID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestService_SyncAttendance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mockNow(t, time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC))

	alice := env.student(t, "alice")
	bob := env.student(t, "bob")
	carol := env.student(t, "carol") // no preference: nothing synced

	_, err := env.svc.SetPreference(ctx, alice.ID, mess.PreferenceInput{Date: march(2), Breakfast: bPtr(false)})
	require.NoError(t, err)
	_, err = env.svc.SetPreference(ctx, bob.ID, mess.PreferenceInput{Date: march(2)})
	require.NoError(t, err)
	// bob's lunch was marked by hand
	_, err = env.svc.MarkAttendance(ctx, bob.ID, mess.AttendanceInput{Date: march(2), MealType: mess.Lunch, Attended: bPtr(false)})
	require.NoError(t, err)
	// bob's approved leave
	lr, err := env.svc.SubmitLeave(ctx, bob.ID, mess.NewLeave{Date: march(2), MealType: mess.Dinner, Reason: "party"})
	require.NoError(t, err)
	_, err = env.svc.TransitionLeave(ctx, lr.ID, mess.ActionApprove, "staff", "")
	require.NoError(t, err)

	n, err := env.svc.SyncAttendance(ctx, march(2))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// syncing again rewrites the synced records only
	n, err = env.svc.SyncAttendance(ctx, march(2))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	rng := mess.DateRange{Start: march(2), End: march(2)}
	attended := func(userID string) map[mess.MealType]bool {
		records, err := env.svc.Attendance(ctx, userID, rng)
		require.NoError(t, err)
		got := make(map[mess.MealType]bool)
		for _, r := range records {
			got[r.MealType] = r.Attended
		}
		return got
	}
	assert.Equal(t, map[mess.MealType]bool{mess.Breakfast: false, mess.Lunch: true, mess.Dinner: true}, attended(alice.ID))
	assert.Equal(t, map[mess.MealType]bool{mess.Breakfast: true, mess.Lunch: false, mess.Dinner: false}, attended(bob.ID))
	assert.Empty(t, attended(carol.ID))

	_, err = env.svc.SyncAttendance(ctx, mess.Date{})
	assert.Equal(t, mess.ErrInvalidRange, errors.Cause(err))
}

func TestService_ComputeWastageReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mockNow(t, time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC))

	for i := 0; i < 10; i++ {
		usr := env.student(t, "student"+string(rune('a'+i)))
		in := mess.PreferenceInput{Date: march(1)}
		if i < 4 {
			in.Breakfast = bPtr(false)
		}
		_, err := env.svc.SetPreference(ctx, usr.ID, in)
		require.NoError(t, err)
	}

	report, err := env.svc.ComputeWastageReport(ctx, mess.DateRange{Start: march(1), End: march(1)})
	require.NoError(t, err)
	assert.Equal(t, 4, report.MealsSkippedByType[mess.Breakfast])
	assert.Equal(t, 4, report.TotalSkipped)
	assert.Equal(t, int64(4*75), report.EstimatedCostSaved)

	_, err = env.svc.ComputeWastageReport(ctx, mess.DateRange{Start: march(2), End: march(1)})
	assert.Equal(t, mess.ErrInvalidRange, errors.Cause(err))
}
