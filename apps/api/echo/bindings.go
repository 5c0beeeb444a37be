package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core"
	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
)

const (
	orderingParam = "ordering"
	fromParam     = "from"
	toParam       = "to"
	dateParam     = "date"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the `ordering` query param, e.g. `?ordering=-created_at,name`.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindUserFilter reads the user.QueryFilter query params: search, role (repeatable), room, is_active.
func bindUserFilter(ctx echo.Context) *user.QueryFilter {
	params := ctx.QueryParams()
	filter := &user.QueryFilter{
		Search: params.Get("search"),
		Room:   params.Get("room"),
	}
	for _, r := range params["role"] {
		filter.Roles = append(filter.Roles, user.Role(strings.ToLower(strings.TrimSpace(r))))
	}
	if v := params.Get("is_active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &active
		}
	}
	return filter
}

func parseDateParam(ctx echo.Context, name string) (mess.Date, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return mess.Date{}, nil
	}
	d, err := mess.ParseDate(val)
	if err != nil {
		return mess.Date{}, core.NewValidationError(nil, core.FieldError{Field: name, Error: err.Error()})
	}
	return d, nil
}

// bindDateRange reads the `from` & `to` query params; without both, it defaults to the current month so far.
func bindDateRange(ctx echo.Context) (mess.DateRange, error) {
	from, err := parseDateParam(ctx, fromParam)
	if err != nil {
		return mess.DateRange{}, err
	}
	to, err := parseDateParam(ctx, toParam)
	if err != nil {
		return mess.DateRange{}, err
	}

	if from.IsZero() && to.IsZero() {
		today := mess.Today()
		from = mess.NewDate(today.Year(), today.Month(), 1)
		to = today
	}
	rng := mess.DateRange{Start: from, End: to}
	if err = rng.Validate(); err != nil {
		return mess.DateRange{}, err
	}
	return rng, nil
}

// bindLeaveFilter reads the mess.LeaveFilter query params: status (repeatable), meal_type, user_id, from, to.
func bindLeaveFilter(ctx echo.Context) (mess.LeaveFilter, error) {
	params := ctx.QueryParams()
	filter := mess.LeaveFilter{UserID: params.Get("user_id")}

	for _, s := range params["status"] {
		status := mess.LeaveStatus(strings.ToLower(strings.TrimSpace(s)))
		if !status.IsValid() {
			return mess.LeaveFilter{}, core.NewValidationError(nil, core.FieldError{Field: "status", Error: "invalid status"})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if mt := params.Get("meal_type"); mt != "" {
		mealType, err := mess.ParseMealType(strings.ToLower(mt))
		if err != nil {
			return mess.LeaveFilter{}, errors.Wrapf(err, "meal_type %q", mt)
		}
		filter.MealType = mealType
	}
	if params.Get(fromParam) != "" || params.Get(toParam) != "" {
		rng, err := bindDateRange(ctx)
		if err != nil {
			return mess.LeaveFilter{}, err
		}
		filter.Range = &rng
	}
	return filter, nil
}
