package mess

import (
	"reflect"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/hostelmess/core"
)

var (
	mealTypeTag  = "mealtype"
	mealTypeText = "must be one of breakfast, lunch or dinner"
)

// InitValidators registers the mess validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterCustomTypeFunc(dateTypeFunc, Date{})

	_ = validate.RegisterValidation(mealTypeTag, mealTypeValidation)
	core.RegisterCustomTranslation(validate, translator, mealTypeTag, mealTypeText)
}

// dateTypeFunc lets `required` see a zero Date as missing.
func dateTypeFunc(field reflect.Value) interface{} {
	if d, ok := field.Interface().(Date); ok && !d.IsZero() {
		return d.String()
	}
	return nil
}

func mealTypeValidation(fl validator.FieldLevel) bool {
	if mt, ok := fl.Field().Interface().(MealType); ok {
		return mt.IsValid()
	}
	return false
}

// checkNotPast fails with a ValidationError on `date` when `d` is before today.
func checkNotPast(d Date, msg string) error {
	if d.Before(Today()) {
		return core.NewValidationError(nil, core.FieldError{Field: "date", Error: msg})
	}
	return nil
}

// PreferenceInput declares the meals a student will take on a day.
// A missing meal flag means the meal is wanted.
type PreferenceInput struct {
	Date         Date  `json:"date" validate:"required"`
	Breakfast    *bool `json:"breakfast"`
	Lunch        *bool `json:"lunch"`
	Dinner       *bool `json:"dinner"`
	FullDayLeave bool  `json:"full_day_leave"`
}

func (in *PreferenceInput) Validate(validate *validator.Validate) error {
	return validate.Struct(in)
}

func (in PreferenceInput) preference(userID string) MealPreference {
	flag := func(b *bool) bool { return b == nil || *b }
	pref := MealPreference{
		UserID:       userID,
		Date:         in.Date,
		Breakfast:    flag(in.Breakfast),
		Lunch:        flag(in.Lunch),
		Dinner:       flag(in.Dinner),
		FullDayLeave: in.FullDayLeave,
	}
	pref.Normalize()
	return pref
}

// AttendanceInput marks whether a meal was attended.
type AttendanceInput struct {
	Date     Date     `json:"date" validate:"required"`
	MealType MealType `json:"meal_type" validate:"required,mealtype"`
	Attended *bool    `json:"attended" validate:"required"`
}

func (in *AttendanceInput) Validate(validate *validator.Validate) error {
	return validate.Struct(in)
}

// NewLeave contains information needed to submit a LeaveRequest.
type NewLeave struct {
	Date     Date     `json:"date" validate:"required"`
	MealType MealType `json:"meal_type" validate:"required,mealtype"`
	Reason   string   `json:"reason" validate:"required,max=500"`
}

func (nl *NewLeave) Validate(validate *validator.Validate) error {
	nl.Reason = core.CleanString(nl.Reason)
	nl.MealType = MealType(core.CleanString(string(nl.MealType), true /* lower */))
	return validate.Struct(nl)
}

// LeaveDecision is the optional note a staff member attaches to a decision.
type LeaveDecision struct {
	Note string `json:"note" validate:"max=500"`
}

func (ld *LeaveDecision) Validate(validate *validator.Validate) error {
	ld.Note = core.CleanString(ld.Note)
	return validate.Struct(ld)
}
