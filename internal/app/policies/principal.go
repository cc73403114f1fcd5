package policies

import (
	"context"
	"strings"
)

type Role string

const (
	RoleGuest    Role = "guest"
	RoleAdmin    Role = "admin"
	RolePayments Role = "payments"
	RoleSystem   Role = "system"
)

// Principal is the caller identity asserted by the gateway in front of the
// service. An empty ID means an anonymous caller.
type Principal struct {
	ID    string
	Roles []Role
}

// System is used by background workers and the payment consumer.
var System = Principal{ID: "system", Roles: []Role{RoleSystem}}

func (p Principal) Anonymous() bool {
	return strings.TrimSpace(p.ID) == ""
}

func (p Principal) HasRole(role Role) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Privileged callers may act on reservations they do not own.
func (p Principal) Privileged() bool {
	return p.HasRole(RoleAdmin) || p.HasRole(RolePayments) || p.HasRole(RoleSystem)
}

// ParseRoles reads a comma separated role list. Unknown roles are dropped.
func ParseRoles(raw string) []Role {
	var roles []Role
	for _, part := range strings.Split(raw, ",") {
		switch r := Role(strings.ToLower(strings.TrimSpace(part))); r {
		case RoleGuest, RoleAdmin, RolePayments, RoleSystem:
			roles = append(roles, r)
		}
	}
	return roles
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
