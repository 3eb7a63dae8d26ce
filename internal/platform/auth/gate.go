package auth

import (
	"context"
	"errors"

	"github.com/hmtp/hmtp/internal/platform/apperr"
)

var (
	ErrInvalidToken   = apperr.New(apperr.KindAuth, "invalid_token", "could not validate credentials")
	ErrTenantMismatch = apperr.New(apperr.KindAuth, "tenant_mismatch", "token tenant does not match the user's tenant")
	ErrUserNotFound   = apperr.New(apperr.KindAuth, "user_not_found", "user not found")
)

// Account is what the gate needs to know about a user.
type Account struct {
	ID       int64
	Email    string
	TenantID string
	Role     string
}

// UserLookup finds an active user by token subject across all tenants.
// Implementations return ErrUserNotFound when no active user matches.
type UserLookup interface {
	FindActiveBySubject(ctx context.Context, subject string) (*Account, error)
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64  `json:"user_id"`
	Subject  string `json:"subject"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
}

// Gate turns a bearer token into a Principal.
type Gate struct {
	tokens *TokenService
	users  UserLookup
}

func NewGate(tokens *TokenService, users UserLookup) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate verifies token and checks that the user it names still
// exists, is active, and belongs to the tenant the token claims.
func (g *Gate) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	acct, err := g.users.FindActiveBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, apperr.Storage(err)
	}
	if acct.TenantID != claims.TenantID {
		return nil, ErrTenantMismatch
	}

	return &Principal{
		UserID:   acct.ID,
		Subject:  acct.Email,
		TenantID: acct.TenantID,
		Role:     acct.Role,
	}, nil
}
