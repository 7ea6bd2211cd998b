package security

import (
	"context"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

type Principal struct {
	Subject string
	Role    Role
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func WithAdmin(ctx context.Context, subject string) context.Context {
	return WithPrincipal(ctx, Principal{Subject: subject, Role: RoleAdmin})
}

// WithSystem marks ctx as an internal caller such as a broker consumer.
func WithSystem(ctx context.Context, subject string) context.Context {
	return WithPrincipal(ctx, Principal{Subject: subject, Role: RoleSystem})
}

// SystemAllowed is implemented by commands internal consumers may dispatch.
type SystemAllowed interface {
	AllowSystem() bool
}

// Authorizer guards the command bus: admins run every command, system
// callers run the commands that opt in. Reads are not authorized here.
type Authorizer struct{}

func (Authorizer) Authorize(ctx context.Context, message any) error {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return ErrUnauthorized
	}
	switch p.Role {
	case RoleAdmin:
		return nil
	case RoleSystem:
		if sa, ok := message.(SystemAllowed); ok && sa.AllowSystem() {
			return nil
		}
	}
	return ErrForbidden
}
