package audit

import (
	"context"

	"github.com/labstack/echo/v4"
)

type metaKey struct{}

type requestMeta struct {
	ip        string
	requestID string
}

// RequestMeta captures the caller IP and request id for audit entries.
func RequestMeta() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid, _ := c.Get("request_id").(string)
			ctx := context.WithValue(c.Request().Context(), metaKey{}, requestMeta{ip: c.RealIP(), requestID: rid})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func metaFromContext(ctx context.Context) requestMeta {
	m, _ := ctx.Value(metaKey{}).(requestMeta)
	return m
}
