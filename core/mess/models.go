package mess

import (
	"strings"
	"time"
)

// MealType is one of the three daily meals.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// MealTypes lists the daily meals in serving order.
var MealTypes = [...]MealType{Breakfast, Lunch, Dinner}

func ParseMealType(s string) (MealType, error) {
	mt := MealType(s)
	if !mt.IsValid() {
		return "", ErrInvalidMealType
	}
	return mt, nil
}

func (mt MealType) IsValid() bool {
	switch mt {
	case Breakfast, Lunch, Dinner:
		return true
	}
	return false
}

// Label is the capitalized meal name.
func (mt MealType) Label() string {
	if mt == "" {
		return ""
	}
	return strings.ToUpper(string(mt[:1])) + string(mt[1:])
}

// MealPreference is a student's declared intent for the meals of one day.
// There is at most one MealPreference per (UserID, Date).
type MealPreference struct {
	UserID       string    `json:"user_id"`
	Date         Date      `json:"date"`
	Breakfast    bool      `json:"breakfast"`
	Lunch        bool      `json:"lunch"`
	Dinner       bool      `json:"dinner"`
	FullDayLeave bool      `json:"full_day_leave"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Normalize forces the meal flags off when the whole day is on leave.
func (p *MealPreference) Normalize() {
	if p.FullDayLeave {
		p.Breakfast, p.Lunch, p.Dinner = false, false, false
	}
}

// Wants reports whether the student declared they will take meal `mt`.
func (p MealPreference) Wants(mt MealType) bool {
	if p.FullDayLeave {
		return false
	}
	switch mt {
	case Breakfast:
		return p.Breakfast
	case Lunch:
		return p.Lunch
	case Dinner:
		return p.Dinner
	}
	return false
}

// AttendanceRecord tells whether a student attended one meal.
// There is at most one AttendanceRecord per (UserID, Date, MealType).
type AttendanceRecord struct {
	UserID     string    `json:"user_id"`
	Date       Date      `json:"date"`
	MealType   MealType  `json:"meal_type"`
	Attended   bool      `json:"attended"`
	MarkedAt   time.Time `json:"marked_at"`
	HostelSync bool      `json:"hostel_sync"` // created by syncing preferences, not marked by hand
}

// Notification is a message for a user, e.g. a leave decision.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// DayAdjustment is the charge & refund of a single day.
type DayAdjustment struct {
	Date         Date       `json:"date"`
	Charge       int64      `json:"charge"`
	Refund       int64      `json:"refund"`
	SkippedMeals []MealType `json:"skipped_meals"`
}

// AttendanceSummary counts the marked meals of a period; it never affects the money.
type AttendanceSummary struct {
	Marked     int     `json:"marked"`
	Attended   int     `json:"attended"`
	Percentage float64 `json:"percentage"`
}

// Adjustment is the financial adjustment of a user over a date range.
type Adjustment struct {
	UserID       string            `json:"user_id"`
	Range        DateRange         `json:"range"`
	TotalCharges int64             `json:"total_charges"`
	TotalRefunds int64             `json:"total_refunds"`
	NetAmount    int64             `json:"net_amount"`
	Days         []DayAdjustment   `json:"days"`
	Attendance   AttendanceSummary `json:"attendance"`
}

// DailyWastage counts the meals skipped on one day.
type DailyWastage struct {
	Date         Date             `json:"date"`
	MealsSkipped map[MealType]int `json:"meals_skipped"`
}

// WastageReport aggregates the skipped meals of all users over a date range.
type WastageReport struct {
	Range              DateRange        `json:"range"`
	MealsSkippedByType map[MealType]int `json:"meals_skipped_by_type"`
	TotalSkipped       int              `json:"total_skipped"`
	EstimatedCostSaved int64            `json:"estimated_cost_saved"`
	Days               []DailyWastage   `json:"days"`
}
