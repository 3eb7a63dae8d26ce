package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

const (
	RoleAdmin         = "admin"
	RoleDoctor        = "doctor"
	RoleNurse         = "nurse"
	RolePatient       = "patient"
	RoleLabTechnician = "lab_technician"
	RolePharmacist    = "pharmacist"
)

var validRoles = map[string]bool{
	RoleAdmin: true, RoleDoctor: true, RoleNurse: true,
	RolePatient: true, RoleLabTechnician: true, RolePharmacist: true,
}

func ValidRole(role string) bool { return validRoles[role] }

// RequireRole returns middleware that admits callers holding one of roles.
// Admins are always admitted.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleFromContext(c.Request().Context())
			if role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return apperr.ErrForbidden.WithMessage("required role: %s", strings.Join(roles, " or "))
		}
	}
}
