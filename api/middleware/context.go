package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Principal is the authenticated caller as established by Auth.
type Principal struct {
	UserID   string
	Role     string
	AccessID string // jti of the bearer token, also the session key
}

type principalKey struct{}

// WithPrincipal stores p on ctx, replacing any earlier principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext reports false for unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func update(ctx context.Context, fn func(*Principal)) context.Context {
	p, _ := PrincipalFromContext(ctx)
	fn(&p)
	return WithPrincipal(ctx, p)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return update(ctx, func(p *Principal) { p.UserID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return update(ctx, func(p *Principal) { p.Role = role })
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return update(ctx, func(p *Principal) { p.AccessID = accessID })
}

func UserIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.UserID
}

// UserUUIDFromContext is uuid.Nil when the caller is anonymous or the id is malformed.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.Role
}

func AccessIDFromContext(ctx context.Context) string {
	p, _ := PrincipalFromContext(ctx)
	return p.AccessID
}
