package pharmacy

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc, f.ledger), f, echo.New()
}

func TestHandler_Dispense(t *testing.T) {
	h, f, e := newTestHandler()
	m, p := f.stock(t, "clinic-a", 100)

	body := `{"prescription_id":` + strconv.FormatInt(p.ID, 10) + `,"quantity":10}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)).WithContext(tenantCtx("clinic-a"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Dispense(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["message"] != "medicine dispensed" {
		t.Errorf("unexpected message: %v", got["message"])
	}
	if got["remaining_stock"] != float64(90) || got["medicine_id"] != float64(m.ID) {
		t.Errorf("unexpected body: %v", got)
	}
}

func TestHandler_Dispense_Insufficient(t *testing.T) {
	h, f, e := newTestHandler()
	_, p := f.stock(t, "clinic-a", 3)

	body := `{"prescription_id":` + strconv.FormatInt(p.ID, 10) + `,"quantity":4}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)).WithContext(tenantCtx("clinic-a"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.Dispense(e.NewContext(req, httptest.NewRecorder()))
	if err != ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if apperr.HTTPStatus(apperr.KindOf(err)) != http.StatusConflict {
		t.Errorf("expected 409, got %d", apperr.HTTPStatus(apperr.KindOf(err)))
	}
}

func TestHandler_Dispense_MissingPrescription(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":1}`)).WithContext(tenantCtx("clinic-a"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	if err := h.Dispense(e.NewContext(req, httptest.NewRecorder())); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_ListPrescriptions_RequiresPatient(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?patient_id=abc", nil).WithContext(tenantCtx("clinic-a"))

	if err := h.ListPrescriptions(e.NewContext(req, httptest.NewRecorder())); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHandler_GetMedicine_OtherTenant(t *testing.T) {
	h, f, e := newTestHandler()
	m, _ := f.stock(t, "clinic-a", 3)

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tenantCtx("clinic-b"))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatInt(m.ID, 10))

	if err := h.GetMedicine(c); err != ErrMedicineNotFound {
		t.Errorf("expected ErrMedicineNotFound, got %v", err)
	}
}
