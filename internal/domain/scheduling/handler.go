package scheduling

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/pkg/civil"
	"github.com/hmtp/hmtp/pkg/pagination"
)

type Handler struct {
	svc     *Service
	booking *BookingCoordinator
}

func NewHandler(svc *Service, booking *BookingCoordinator) *Handler {
	return &Handler{svc: svc, booking: booking}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := []string{auth.RoleDoctor, auth.RoleNurse}

	// Doctors and availability: anyone signed in reads, staff manage.
	api.GET("/doctors", h.ListDoctors)
	api.GET("/doctors/:id", h.GetDoctor)
	api.GET("/doctors/:id/availability", h.ListAvailability)
	api.GET("/doctors/:id/availability/check", h.CheckAvailability)

	manage := api.Group("/doctors", auth.RequireRole(auth.RoleDoctor))
	manage.POST("", h.CreateDoctor)
	manage.PUT("/:id", h.UpdateDoctor)
	manage.POST("/:id/availability", h.AddAvailability)
	manage.DELETE("/:id/availability/:availability_id", h.DeleteAvailability)
	api.DELETE("/doctors/:id", h.DeleteDoctor, auth.RequireRole(auth.RoleAdmin))

	appts := api.Group("/appointments", auth.RequireRole(append(clinical, auth.RolePatient)...))
	appts.GET("", h.ListAppointments)
	appts.GET("/:id", h.GetAppointment)
	appts.POST("", h.CreateAppointment)
	appts.PUT("/:id", h.UpdateAppointment)
	appts.POST("/:id/cancel", h.CancelAppointment)
	api.DELETE("/appointments/:id", h.DeleteAppointment, auth.RequireRole(auth.RoleAdmin))
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func queryID(c echo.Context, name string) (int64, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func queryDateTime(c echo.Context, name string) (civil.DateTime, error) {
	v := c.QueryParam(name)
	if v == "" {
		return civil.DateTime{}, nil
	}
	dt, err := civil.ParseDateTime(v)
	if err != nil {
		return civil.DateTime{}, apperr.Validation("invalid %s: %s", name, v)
	}
	return dt, nil
}

// -- Doctor Handlers --

func (h *Handler) CreateDoctor(c echo.Context) error {
	var d Doctor
	if err := c.Bind(&d); err != nil {
		return apperr.Validation("invalid request body")
	}
	d.ID = 0
	if err := h.svc.CreateDoctor(c.Request().Context(), &d); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	d, err := h.svc.GetDoctor(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), c.QueryParam("specialization"), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Doctor{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var u DoctorUpdate
	if err := c.Bind(&u); err != nil {
		return apperr.Validation("invalid request body")
	}
	d, err := h.svc.UpdateDoctor(c.Request().Context(), id, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDoctor(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDoctor(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Availability Handlers --

type availabilityRequest struct {
	DayOfWeek   *int             `json:"day_of_week"`
	StartTime   *civil.TimeOfDay `json:"start_time"`
	EndTime     *civil.TimeOfDay `json:"end_time"`
	IsAvailable *bool            `json:"is_available"`
}

func (h *Handler) AddAvailability(c echo.Context) error {
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req availabilityRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	switch {
	case req.DayOfWeek == nil:
		return apperr.Validation("day_of_week is required")
	case req.StartTime == nil:
		return apperr.Validation("start_time is required")
	case req.EndTime == nil:
		return apperr.Validation("end_time is required")
	}
	a := &Availability{
		DoctorID:    doctorID,
		DayOfWeek:   *req.DayOfWeek,
		StartTime:   *req.StartTime,
		EndTime:     *req.EndTime,
		IsAvailable: req.IsAvailable == nil || *req.IsAvailable,
	}
	if err := h.svc.AddAvailability(c.Request().Context(), a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAvailability(c echo.Context) error {
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListAvailability(c.Request().Context(), doctorID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteAvailability(c echo.Context) error {
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	id, err := parseID(c, "availability_id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAvailability(c.Request().Context(), doctorID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	doctorID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	at, err := queryDateTime(c, "at")
	if err != nil {
		return err
	}
	res, err := h.booking.Check(c.Request().Context(), doctorID, at)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// -- Appointment Handlers --

func (h *Handler) CreateAppointment(c echo.Context) error {
	var a Appointment
	if err := c.Bind(&a); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := h.booking.Create(c.Request().Context(), &a); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.booking.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	var f AppointmentFilter
	var err error
	if f.DoctorID, err = queryID(c, "doctor_id"); err != nil {
		return err
	}
	if f.PatientID, err = queryID(c, "patient_id"); err != nil {
		return err
	}
	if f.From, err = queryDateTime(c, "from"); err != nil {
		return err
	}
	if f.To, err = queryDateTime(c, "to"); err != nil {
		return err
	}
	f.Status = c.QueryParam("status")

	items, total, err := h.booking.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var u AppointmentUpdate
	if err := c.Bind(&u); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.booking.Update(c.Request().Context(), id, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.booking.Cancel(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAppointment(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.booking.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
