package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/hmtp/hmtp/internal/domain/audit"
	"github.com/hmtp/hmtp/internal/platform/auth"
	"github.com/hmtp/hmtp/internal/platform/db"
)

type Service struct {
	repo   Repository
	tokens *auth.TokenService
	tx     db.Transactor
	audit  *audit.Recorder
}

func NewService(repo Repository, tokens *auth.TokenService, tx db.Transactor, rec *audit.Recorder) *Service {
	return &Service{repo: repo, tokens: tokens, tx: tx, audit: rec}
}

// Register creates an active user in the tenant named by the registration.
// The request is unauthenticated, so the tenant is bound here rather than
// by the auth middleware.
func (s *Service) Register(ctx context.Context, r Registration) (*User, error) {
	r.normalize()
	if err := r.validate(); err != nil {
		return nil, err
	}
	hash, err := s.tokens.HashPassword(r.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		TenantID:       r.TenantID,
		Email:          r.Email,
		HashedPassword: hash,
		FullName:       r.FullName,
		Role:           r.Role,
		IsActive:       true,
	}

	ctx = db.WithTenant(ctx, r.TenantID)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, u); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Event{
			UserID:       u.ID,
			Action:       audit.ActionRegisterUser,
			ResourceType: audit.ResourceUser,
			ResourceID:   u.ID,
			Details:      map[string]string{"email": u.Email, "role": u.Role},
		})
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Login exchanges credentials for an access token. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.tokens.VerifyPassword(u.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrInactiveUser
	}
	signed, exp, err := s.tokens.Issue(u.Email, u.TenantID, u.Role)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "bearer", ExpiresAt: exp}, nil
}

// Me returns the authenticated caller's account.
func (s *Service) Me(ctx context.Context) (*User, error) {
	p := auth.PrincipalFromContext(ctx)
	if p == nil {
		return nil, auth.ErrInvalidToken
	}
	u, err := s.repo.GetByEmail(ctx, p.Subject)
	if err != nil {
		return nil, err
	}
	if u.TenantID != p.TenantID {
		return nil, auth.ErrTenantMismatch
	}
	return u, nil
}

// FindActiveBySubject implements auth.UserLookup.
func (s *Service) FindActiveBySubject(ctx context.Context, subject string) (*auth.Account, error) {
	u, err := s.repo.GetByEmail(ctx, subject)
	if errors.Is(err, ErrNotFound) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, auth.ErrUserNotFound
	}
	return &auth.Account{ID: u.ID, Email: u.Email, TenantID: u.TenantID, Role: u.Role}, nil
}
