package mess

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

// MaxRangeDays is the longest DateRange accepted, a leap year.
const MaxRangeDays = 366

// Date is a calendar day, stored as midnight UTC.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Today returns the current calendar day in UTC.
func Today() Date {
	return DateOf(NowFunc().UTC())
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, errors.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) AddDays(n int) Date {
	return DateOf(d.Time.AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.New("invalid date, expected a YYYY-MM-DD string")
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	return d.UnmarshalParam(s)
}

// UnmarshalParam implements echo.BindUnmarshaler.
func (d *Date) UnmarshalParam(param string) error {
	parsed, err := ParseDate(param)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*d = DateOf(v)
	case string:
		return d.UnmarshalParam(v[:min(len(v), len(dateLayout))])
	case []byte:
		s := string(v)
		return d.UnmarshalParam(s[:min(len(s), len(dateLayout))])
	case nil:
		*d = Date{}
	default:
		return errors.Errorf("cannot scan %T into mess.Date", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewDateRange returns the range [start, end], or ErrInvalidRange if start is after end
// or the range spans more than MaxRangeDays.
func NewDateRange(start, end Date) (DateRange, error) {
	rng := DateRange{Start: start, End: end}
	if err := rng.Validate(); err != nil {
		return DateRange{}, err
	}
	return rng, nil
}

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return errors.Wrap(ErrInvalidRange, "start and end dates are required")
	}
	if r.Start.After(r.End) {
		return errors.Wrapf(ErrInvalidRange, "start date %s is after end date %s", r.Start, r.End)
	}
	if r.End.After(r.Start.AddDays(MaxRangeDays - 1)) {
		return errors.Wrapf(ErrInvalidRange, "range %s spans more than %d days", r, MaxRangeDays)
	}
	return nil
}

// Days lists every day of the range; it is empty if Start is after End.
func (r DateRange) Days() []Date {
	if r.Start.After(r.End) {
		return nil
	}
	days := make([]Date, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// Len is the number of days in the range.
func (r DateRange) Len() int {
	if r.Start.After(r.End) {
		return 0
	}
	return int(r.End.Sub(r.Start.Time)/(24*time.Hour)) + 1
}

func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}
