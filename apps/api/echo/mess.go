package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hostelmess/core/mess"
	"github.com/trezcool/hostelmess/core/user"
)

type messAPI struct {
	users    user.ServiceInterface
	svc      mess.ServiceInterface
	validate *validator.Validate
}

func registerMessAPI(g *echo.Group, jwt echo.MiddlewareFunc, users user.ServiceInterface, svc mess.ServiceInterface, validate *validator.Validate) {
	api := messAPI{
		users:    users,
		svc:      svc,
		validate: validate,
	}

	// per user endpoints: the user themselves or staff; some are restricted to the user themselves
	owner := []echo.MiddlewareFunc{jwt, ctxUserOrStaffMiddleware(users)}
	self := []echo.MiddlewareFunc{jwt, ctxUserOrStaffMiddleware(users), selfMiddleware(users)}

	ug := g.Group("/users/:id")
	ug.GET("/preferences", api.queryPreferences, owner...)
	ug.PUT("/preferences", api.setPreference, self...)
	ug.GET("/attendance", api.queryAttendance, owner...)
	ug.POST("/attendance", api.markAttendance, owner...)
	ug.GET("/leave-requests", api.queryUserLeave, owner...)
	ug.POST("/leave-requests", api.submitLeave, self...)
	ug.GET("/adjustment", api.adjustment, owner...)
	ug.GET("/notifications", api.notifications, self...)
	ug.POST("/notifications/read", api.readNotifications, self...)

	// staff endpoints
	lg := g.Group("/leave-requests", jwt, staffMiddleware())
	lg.GET("", api.queryLeave)
	lg.GET("/:id", api.retrieveLeave)
	lg.POST("/:id/approve", api.decideLeave(mess.ActionApprove))
	lg.POST("/:id/reject", api.decideLeave(mess.ActionReject))

	ag := g.Group("/attendance", jwt, staffMiddleware())
	ag.POST("/sync", api.syncAttendance)

	rg := g.Group("/reports", jwt, staffMiddleware())
	rg.GET("/wastage", api.wastageReport)
	rg.GET("/adjustments", api.adjustmentsReport)
}

// Preferences & attendance

func (api *messAPI) queryPreferences(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	prefs, err := api.svc.Preferences(ctx.Request().Context(), usr.ID, rng)
	if err != nil {
		return errors.Wrap(err, "querying preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *messAPI) setPreference(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	var data mess.PreferenceInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreferenceInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	pref, err := api.svc.SetPreference(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "setting preference")
	}
	return ctx.JSON(http.StatusOK, pref)
}

func (api *messAPI) queryAttendance(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	records, err := api.svc.Attendance(ctx.Request().Context(), usr.ID, rng)
	if err != nil {
		return errors.Wrap(err, "querying attendance")
	}
	return ctx.JSON(http.StatusOK, records)
}

func (api *messAPI) markAttendance(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	var data mess.AttendanceInput
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttendanceInput")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.MarkAttendance(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *messAPI) syncAttendance(ctx echo.Context) error {
	date, err := parseDateParam(ctx, dateParam)
	if err != nil {
		return err
	}
	if date.IsZero() {
		date = mess.Today()
	}

	n, err := api.svc.SyncAttendance(ctx.Request().Context(), date)
	if err != nil {
		return errors.Wrap(err, "syncing attendance")
	}
	return ctx.JSON(http.StatusOK, SyncResponse{Date: date, Synced: n})
}

// Leave workflow

func (api *messAPI) queryUserLeave(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	filter, err := bindLeaveFilter(ctx)
	if err != nil {
		return err
	}
	filter.UserID = usr.ID

	requests, err := api.svc.QueryLeave(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying leave requests")
	}
	return ctx.JSON(http.StatusOK, requests)
}

func (api *messAPI) submitLeave(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	var data mess.NewLeave
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLeave")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	lr, err := api.svc.SubmitLeave(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting leave request")
	}
	return ctx.JSON(http.StatusCreated, lr)
}

func (api *messAPI) queryLeave(ctx echo.Context) error {
	filter, err := bindLeaveFilter(ctx)
	if err != nil {
		return err
	}

	requests, err := api.svc.QueryLeave(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying leave requests")
	}
	return ctx.JSON(http.StatusOK, requests)
}

func (api *messAPI) retrieveLeave(ctx echo.Context) error {
	lr, err := api.svc.GetLeave(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting leave request")
	}
	return ctx.JSON(http.StatusOK, lr)
}

func (api *messAPI) decideLeave(action mess.LeaveAction) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		var data mess.LeaveDecision
		if err := ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to LeaveDecision")
		}
		if err := data.Validate(api.validate); err != nil {
			return err
		}

		ctxUsr, err := getContextUser(ctx, api.users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}

		lr, err := api.svc.TransitionLeave(ctx.Request().Context(), ctx.Param("id"), action, ctxUsr.ID, data.Note)
		if err != nil {
			return errors.Wrapf(err, "%s leave request", action)
		}
		return ctx.JSON(http.StatusOK, lr)
	}
}

// Reports

func (api *messAPI) adjustment(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	adj, err := api.svc.ComputeAdjustment(ctx.Request().Context(), usr.ID, rng)
	if err != nil {
		return errors.Wrap(err, "computing adjustment")
	}
	return ctx.JSON(http.StatusOK, adj)
}

func (api *messAPI) adjustmentsReport(ctx echo.Context) error {
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	adjustments, err := api.svc.ComputeAdjustments(ctx.Request().Context(), rng)
	if err != nil {
		return errors.Wrap(err, "computing adjustments")
	}
	return ctx.JSON(http.StatusOK, adjustments)
}

func (api *messAPI) wastageReport(ctx echo.Context) error {
	rng, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	report, err := api.svc.ComputeWastageReport(ctx.Request().Context(), rng)
	if err != nil {
		return errors.Wrap(err, "computing wastage report")
	}
	return ctx.JSON(http.StatusOK, report)
}

// Notifications

func (api *messAPI) notifications(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}
	unreadOnly, _ := strconv.ParseBool(ctx.QueryParam("unread"))

	notifications, err := api.svc.Notifications(ctx.Request().Context(), usr.ID, unreadOnly)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, notifications)
}

func (api *messAPI) readNotifications(ctx echo.Context) error {
	usr, err := getContextObject(ctx)
	if err != nil {
		return err
	}

	var data ReadNotificationsRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReadNotificationsRequest")
	}

	n, err := api.svc.MarkNotificationsRead(ctx.Request().Context(), usr.ID, data.IDs...)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, ReadNotificationsResponse{Updated: n})
}

type (
	SyncResponse struct {
		Date   mess.Date `json:"date"`
		Synced int       `json:"synced"`
	}

	ReadNotificationsRequest struct {
		IDs []string `json:"ids"`
	}

	ReadNotificationsResponse struct {
		Updated int `json:"updated"`
	}
)
