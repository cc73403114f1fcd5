package policies

import (
	"context"

	"staybook/internal/domain/shared/domainerr"
)

type keyed interface {
	Key() string
}

// Rule says who may send a message. Public rules admit anonymous callers;
// otherwise the principal must be authenticated and, when Roles is set, hold
// one of them.
type Rule struct {
	Public bool
	Roles  []Role
}

// AccessPolicy authorizes bus messages by key. Keys without a rule are denied.
type AccessPolicy struct {
	rules map[string]Rule
}

func NewAccessPolicy(rules map[string]Rule) *AccessPolicy {
	copied := make(map[string]Rule, len(rules))
	for k, v := range rules {
		copied[k] = v
	}
	return &AccessPolicy{rules: copied}
}

func (p *AccessPolicy) Authorize(ctx context.Context, message any) error {
	msg, ok := message.(keyed)
	if !ok {
		return &domainerr.ForbiddenError{Action: "unknown"}
	}
	rule, ok := p.rules[msg.Key()]
	if !ok {
		return &domainerr.ForbiddenError{Action: msg.Key()}
	}
	if rule.Public {
		return nil
	}
	principal := PrincipalFrom(ctx)
	if principal.Anonymous() {
		return &domainerr.ForbiddenError{Action: msg.Key()}
	}
	if len(rule.Roles) == 0 {
		return nil
	}
	for _, r := range rule.Roles {
		if principal.HasRole(r) {
			return nil
		}
	}
	return &domainerr.ForbiddenError{Action: msg.Key()}
}

// CanActFor reports whether the principal may read or change a record owned
// by ownerID.
func CanActFor(p Principal, ownerID string) bool {
	if p.Privileged() {
		return true
	}
	return !p.Anonymous() && p.ID == ownerID
}
