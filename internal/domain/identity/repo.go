package identity

import "context"

// Repository stores users. Lookups by email are unscoped: login and token
// verification happen before a tenant is known.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
}
