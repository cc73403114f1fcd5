package guest

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

var (
	ErrIDRequired   = errors.New("guest: id is required")
	ErrEmailInvalid = errors.New("guest: email is invalid")
	ErrNameRequired = errors.New("guest: name is required")
)

type ID string

// Guest is an identity created by the unauthenticated checkout. It is keyed
// by email so repeated checkouts reuse it.
type Guest struct {
	ID        ID
	Email     string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository stores guests by normalized email. ByEmail returns nil, nil for
// an unknown address.
type Repository interface {
	ByEmail(ctx context.Context, email string) (*Guest, error)
	Save(ctx context.Context, g *Guest) error
}

type CreateParams struct {
	ID        ID
	Email     string
	Name      string
	Phone     string
	CreatedAt time.Time
}

func NewGuest(params CreateParams) (*Guest, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	email, err := NormalizeEmail(params.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	now := params.CreatedAt
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Guest{
		ID:        ID(id),
		Email:     email,
		Name:      name,
		Phone:     strings.TrimSpace(params.Phone),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Refresh updates contact details supplied on a later checkout. Empty values
// keep what is stored.
func (g *Guest) Refresh(name, phone string, now time.Time) bool {
	changed := false
	if name = strings.TrimSpace(name); name != "" && name != g.Name {
		g.Name = name
		changed = true
	}
	if phone = strings.TrimSpace(phone); phone != "" && phone != g.Phone {
		g.Phone = phone
		changed = true
	}
	if changed {
		g.UpdatedAt = now.UTC()
	}
	return changed
}

func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrEmailInvalid
	}
	return strings.ToLower(addr.Address), nil
}
