package billing

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	read.GET("/invoices", h.ListInvoices)
	read.GET("/invoices/patient/:patient_id", h.ListInvoices)
	read.GET("/invoices/:id", h.GetInvoice)
	read.GET("/invoices/:id/payments", h.ListPayments)
	read.GET("/invoices/:id/insurance-claims", h.ListClaims)

	write := api.Group("", auth.RequireRole(auth.RoleNurse))
	write.POST("/invoices", h.CreateInvoice)
	write.POST("/payments", h.RecordPayment)
	write.POST("/insurance-claims", h.SubmitClaim)
}

func parseID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) CreateInvoice(c echo.Context) error {
	var inv Invoice
	if err := c.Bind(&inv); err != nil {
		return apperr.Validation("invalid request body")
	}
	inv.ID = 0
	if err := h.svc.CreateInvoice(c.Request().Context(), &inv); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, inv)
}

func (h *Handler) GetInvoice(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	inv, err := h.svc.GetInvoice(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, inv)
}

// ListInvoices takes the patient from the path or the patient_id query
// parameter.
func (h *Handler) ListInvoices(c echo.Context) error {
	pg := pagination.FromContext(c)
	raw := c.Param("patient_id")
	if raw == "" {
		raw = c.QueryParam("patient_id")
	}
	patientID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return apperr.Validation("patient_id is required")
	}
	items, total, err := h.svc.ListInvoices(c.Request().Context(), patientID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Invoice{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type paymentResponse struct {
	Payment       *Payment `json:"payment"`
	InvoiceStatus string   `json:"invoice_status"`
}

func (h *Handler) RecordPayment(c echo.Context) error {
	var p Payment
	if err := c.Bind(&p); err != nil {
		return apperr.Validation("invalid request body")
	}
	p.ID = 0
	inv, err := h.svc.RecordPayment(c.Request().Context(), &p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, paymentResponse{Payment: &p, InvoiceStatus: inv.Status})
}

func (h *Handler) ListPayments(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListPayments(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Payment{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) SubmitClaim(c echo.Context) error {
	var cl Claim
	if err := c.Bind(&cl); err != nil {
		return apperr.Validation("invalid request body")
	}
	cl.ID = 0
	if err := h.svc.SubmitClaim(c.Request().Context(), &cl); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cl)
}

func (h *Handler) ListClaims(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListClaims(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Claim{}
	}
	return c.JSON(http.StatusOK, items)
}
