package mess

import (
	"reflect"
	"testing"
	"time"
)

func day(d int) Date { return NewDate(2024, time.March, d) }

func mustRange(t *testing.T, start, end Date) DateRange {
	t.Helper()
	rng, err := NewDateRange(start, end)
	if err != nil {
		t.Fatalf("NewDateRange() error = %v", err)
	}
	return rng
}

func TestComputeAdjustment(t *testing.T) {
	tariff := FlatTariff(75)

	tests := []struct {
		name         string
		rng          DateRange
		prefs        []MealPreference
		leave        []LeaveRequest
		wantCharges  int64
		wantRefunds  int64
		wantSkipped  [][]MealType
		wantDayCount int
	}{
		{
			name:        "breakfast skipped",
			rng:         DateRange{day(1), day(1)},
			prefs:       []MealPreference{{UserID: "u1", Date: day(1), Breakfast: false, Lunch: true, Dinner: true}},
			wantCharges: 225, wantRefunds: 75,
			wantSkipped:  [][]MealType{{Breakfast}},
			wantDayCount: 1,
		},
		{
			name:        "full day leave then no record",
			rng:         DateRange{day(1), day(2)},
			prefs:       []MealPreference{{UserID: "u1", Date: day(1), FullDayLeave: true}},
			wantCharges: 450, wantRefunds: 225,
			wantSkipped:  [][]MealType{{Breakfast, Lunch, Dinner}, {}},
			wantDayCount: 2,
		},
		{
			name:        "full day leave overrides meal flags",
			rng:         DateRange{day(1), day(1)},
			prefs:       []MealPreference{{UserID: "u1", Date: day(1), Breakfast: true, Lunch: true, Dinner: true, FullDayLeave: true}},
			wantCharges: 225, wantRefunds: 225,
			wantSkipped:  [][]MealType{{Breakfast, Lunch, Dinner}},
			wantDayCount: 1,
		},
		{
			name:        "approved leave refunds once",
			rng:         DateRange{day(1), day(1)},
			prefs:       []MealPreference{{UserID: "u1", Date: day(1), Breakfast: true, Lunch: false, Dinner: true}},
			leave:       []LeaveRequest{{UserID: "u1", Date: day(1), MealType: Lunch, Status: LeaveApproved}},
			wantCharges: 225, wantRefunds: 75,
			wantSkipped:  [][]MealType{{Lunch}},
			wantDayCount: 1,
		},
		{
			name: "pending & rejected leave are ignored",
			rng:  DateRange{day(1), day(1)},
			leave: []LeaveRequest{
				{UserID: "u1", Date: day(1), MealType: Lunch, Status: LeavePending},
				{UserID: "u1", Date: day(1), MealType: Dinner, Status: LeaveRejected},
			},
			wantCharges: 225, wantRefunds: 0,
			wantSkipped:  [][]MealType{{}},
			wantDayCount: 1,
		},
		{
			name:        "records of other users are ignored",
			rng:         DateRange{day(1), day(1)},
			prefs:       []MealPreference{{UserID: "u2", Date: day(1), FullDayLeave: true}},
			leave:       []LeaveRequest{{UserID: "u2", Date: day(1), MealType: Lunch, Status: LeaveApproved}},
			wantCharges: 225, wantRefunds: 0,
			wantSkipped:  [][]MealType{{}},
			wantDayCount: 1,
		},
		{
			name:         "no records: every day charged, nothing refunded",
			rng:          DateRange{day(1), day(3)},
			wantCharges:  675,
			wantSkipped:  [][]MealType{{}, {}, {}},
			wantDayCount: 3,
		},
		{
			name:         "empty range",
			rng:          DateRange{day(2), day(1)},
			prefs:        []MealPreference{{UserID: "u1", Date: day(1), FullDayLeave: true}},
			wantSkipped:  [][]MealType{},
			wantDayCount: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := NewLedger("u1", tt.prefs, nil, tt.leave)
			got := ComputeAdjustment(tariff, tt.rng, ledger)

			if got.TotalCharges != tt.wantCharges {
				t.Errorf("TotalCharges = %v, want %v", got.TotalCharges, tt.wantCharges)
			}
			if got.TotalRefunds != tt.wantRefunds {
				t.Errorf("TotalRefunds = %v, want %v", got.TotalRefunds, tt.wantRefunds)
			}
			if got.NetAmount != tt.wantCharges-tt.wantRefunds {
				t.Errorf("NetAmount = %v, want %v", got.NetAmount, tt.wantCharges-tt.wantRefunds)
			}
			if got.NetAmount < 0 {
				t.Errorf("NetAmount = %v, want >= 0", got.NetAmount)
			}
			if len(got.Days) != tt.wantDayCount {
				t.Fatalf("len(Days) = %v, want %v", len(got.Days), tt.wantDayCount)
			}
			skipped := make([][]MealType, 0, len(got.Days))
			for _, d := range got.Days {
				skipped = append(skipped, d.SkippedMeals)
			}
			if !reflect.DeepEqual(skipped, tt.wantSkipped) {
				t.Errorf("SkippedMeals = %v, want %v", skipped, tt.wantSkipped)
			}
		})
	}
}

func TestComputeAdjustment_idempotent(t *testing.T) {
	ledger := NewLedger("u1",
		[]MealPreference{{UserID: "u1", Date: day(3), Breakfast: false, Lunch: true, Dinner: false}},
		[]AttendanceRecord{{UserID: "u1", Date: day(3), MealType: Lunch, Attended: true}},
		nil,
	)
	rng := mustRange(t, day(1), day(31))
	tariff := Tariff{Breakfast: 40, Lunch: 90, Dinner: 80}

	first := ComputeAdjustment(tariff, rng, ledger)
	second := ComputeAdjustment(tariff, rng, ledger)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("ComputeAdjustment() is not idempotent: %+v != %+v", first, second)
	}
	if first.TotalCharges != 31*210 {
		t.Errorf("TotalCharges = %v, want %v", first.TotalCharges, 31*210)
	}
	if first.TotalRefunds != 120 {
		t.Errorf("TotalRefunds = %v, want 120", first.TotalRefunds)
	}
}

func TestComputeAdjustment_attendanceDoesNotAffectMoney(t *testing.T) {
	rng := mustRange(t, day(1), day(1))
	withRecords := NewLedger("u1", nil, []AttendanceRecord{
		{UserID: "u1", Date: day(1), MealType: Breakfast, Attended: false},
		{UserID: "u1", Date: day(1), MealType: Lunch, Attended: true},
	}, nil)

	got := ComputeAdjustment(FlatTariff(75), rng, withRecords)
	if got.TotalRefunds != 0 {
		t.Errorf("TotalRefunds = %v, want 0", got.TotalRefunds)
	}
	want := AttendanceSummary{Marked: 2, Attended: 1, Percentage: 50}
	if got.Attendance != want {
		t.Errorf("Attendance = %+v, want %+v", got.Attendance, want)
	}
}

func TestComputeWastage(t *testing.T) {
	var prefs []MealPreference
	for i := 0; i < 10; i++ {
		prefs = append(prefs, MealPreference{
			UserID:    string(rune('a' + i)),
			Date:      day(1),
			Breakfast: i >= 4, // the first 4 users skip breakfast
			Lunch:     true,
			Dinner:    true,
		})
	}
	leave := []LeaveRequest{
		{UserID: "a", Date: day(2), MealType: Dinner, Status: LeaveApproved},
		{UserID: "b", Date: day(2), MealType: Dinner, Status: LeavePending},
	}
	tariff := FlatTariff(75)

	t.Run("single day", func(t *testing.T) {
		report := ComputeWastage(tariff, mustRange(t, day(1), day(1)), NewLedgers(prefs, nil, leave))

		want := map[MealType]int{Breakfast: 4, Lunch: 0, Dinner: 0}
		if !reflect.DeepEqual(report.MealsSkippedByType, want) {
			t.Errorf("MealsSkippedByType = %v, want %v", report.MealsSkippedByType, want)
		}
		if report.TotalSkipped != 4 {
			t.Errorf("TotalSkipped = %v, want 4", report.TotalSkipped)
		}
		if report.EstimatedCostSaved != 4*75 {
			t.Errorf("EstimatedCostSaved = %v, want %v", report.EstimatedCostSaved, 4*75)
		}
	})

	t.Run("per day", func(t *testing.T) {
		report := ComputeWastage(tariff, mustRange(t, day(1), day(3)), NewLedgers(prefs, nil, leave))

		if len(report.Days) != 3 {
			t.Fatalf("len(Days) = %v, want 3", len(report.Days))
		}
		wantDays := []map[MealType]int{
			{Breakfast: 4, Lunch: 0, Dinner: 0},
			{Breakfast: 0, Lunch: 0, Dinner: 1},
			{Breakfast: 0, Lunch: 0, Dinner: 0},
		}
		for i, d := range report.Days {
			if !reflect.DeepEqual(d.MealsSkipped, wantDays[i]) {
				t.Errorf("Days[%d].MealsSkipped = %v, want %v", i, d.MealsSkipped, wantDays[i])
			}
		}
		if report.TotalSkipped != 5 {
			t.Errorf("TotalSkipped = %v, want 5", report.TotalSkipped)
		}
	})

	t.Run("no records", func(t *testing.T) {
		report := ComputeWastage(tariff, mustRange(t, day(1), day(2)), nil)
		if report.TotalSkipped != 0 || report.EstimatedCostSaved != 0 {
			t.Errorf("ComputeWastage() = %+v, want nothing skipped", report)
		}
		if len(report.Days) != 2 {
			t.Errorf("len(Days) = %v, want 2", len(report.Days))
		}
	})
}
