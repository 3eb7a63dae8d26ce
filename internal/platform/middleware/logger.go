package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

// Logger emits one structured "request" event per request. The tenant is
// read after the handler runs, once authentication has established it.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid, _ := c.Get("request_id").(string)

			err := next(c)

			status := c.Response().Status
			evt := logger.Info()
			if err != nil {
				ae := apperr.As(err)
				if !c.Response().Committed {
					status = apperr.HTTPStatus(ae.Kind)
					if he, ok := err.(*echo.HTTPError); ok {
						status = he.Code
					}
				}
				evt = logger.Warn().Str("error_code", ae.Code)
				if status >= 500 {
					evt = logger.Error().Err(err)
				}
			}

			tenantID, _ := c.Get("tenant_id").(string)
			evt.
				Str("request_id", rid).
				Str("tenant_id", tenantID).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
