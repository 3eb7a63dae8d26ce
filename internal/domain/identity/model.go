package identity

import (
	"net/mail"
	"strings"
	"time"

	"github.com/hmtp/hmtp/internal/platform/apperr"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
)

var (
	ErrNotFound           = apperr.New(apperr.KindNotFound, "user_not_found", "user not found")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "email_taken", "a user with this email already exists")
	ErrInvalidCredentials = apperr.New(apperr.KindAuth, "invalid_credentials", "incorrect email or password")
	ErrInactiveUser       = apperr.New(apperr.KindAuth, "inactive_user", "inactive user")
)

const minPasswordLen = 8

// User is a login account. Email is unique across all tenants.
type User struct {
	ID             int64     `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	Email          string    `db:"email" json:"email"`
	HashedPassword string    `db:"hashed_password" json:"-"`
	FullName       string    `db:"full_name" json:"full_name"`
	Role           string    `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

func (r *Registration) normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.FullName = strings.TrimSpace(r.FullName)
	r.TenantID = strings.TrimSpace(r.TenantID)
}

func (r *Registration) validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil || r.Email == "" {
		return apperr.Validation("a valid email is required")
	}
	if len(r.Password) < minPasswordLen {
		return apperr.Validation("password must be at least %d characters", minPasswordLen)
	}
	if r.FullName == "" {
		return apperr.Validation("full_name is required")
	}
	if !auth.ValidRole(r.Role) {
		return apperr.Validation("invalid role: %s", r.Role)
	}
	if !db.ValidTenantID(r.TenantID) {
		return apperr.Validation("invalid tenant_id")
	}
	return nil
}

// Token is the login response.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
