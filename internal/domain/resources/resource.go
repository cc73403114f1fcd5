package resources

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"staybook/internal/domain/shared/events"
	"staybook/internal/domain/shared/money"
)

var (
	ErrIDRequired       = errors.New("resources: id is required")
	ErrTitleRequired    = errors.New("resources: title is required")
	ErrInvalidKind      = errors.New("resources: kind must be property or activity")
	ErrCapacity         = errors.New("resources: capacity must be at least 1")
	ErrPropertyCapacity = errors.New("resources: a property hosts a single party at a time")
	ErrBasePrice        = errors.New("resources: base price must be non-negative")
	ErrInvalidSlot      = errors.New("resources: slot must be formatted HH:MM")
	ErrPropertySlots    = errors.New("resources: properties are booked by night, not by slot")
	ErrUnknownSlot      = errors.New("resources: slot is not offered by this activity")
	ErrSlotRequired     = errors.New("resources: slot is required for this activity")
)

type ID string

type Kind string

const (
	KindProperty Kind = "property"
	KindActivity Kind = "activity"
)

// ParseKind accepts the lower- or upper-case wire form.
func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindProperty:
		return KindProperty, nil
	case KindActivity:
		return KindActivity, nil
	default:
		return "", ErrInvalidKind
	}
}

var slotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Resource is a bookable unit: a property rented per night or an activity
// sold per date and time slot.
type Resource struct {
	ID        ID
	Kind      Kind
	Title     string
	City      string
	Capacity  int
	BasePrice money.Money
	Slots     []string
	Active    bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Resource, error)
	Save(ctx context.Context, resource *Resource) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}

type Params struct {
	ID        ID
	Kind      Kind
	Title     string
	City      string
	Capacity  int
	BasePrice money.Money
	Slots     []string
	Active    bool
	Now       time.Time
}

func NewResource(params Params) (*Resource, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	r := &Resource{
		ID:        ID(strings.TrimSpace(string(params.ID))),
		CreatedAt: params.Now.UTC(),
	}
	if err := r.apply(params); err != nil {
		return nil, err
	}
	r.Record(ResourceUpserted{ResourceID: r.ID, Kind: r.Kind, Active: r.Active, At: r.UpdatedAt})
	return r, nil
}

// Update replaces the mutable attributes. The kind of an existing resource
// cannot change because existing reservations depend on it.
func (r *Resource) Update(params Params) error {
	if params.Kind != "" && params.Kind != r.Kind {
		return ErrInvalidKind
	}
	params.Kind = r.Kind
	if err := r.apply(params); err != nil {
		return err
	}
	r.Record(ResourceUpserted{ResourceID: r.ID, Kind: r.Kind, Active: r.Active, At: r.UpdatedAt})
	return nil
}

// Deactivate hides the resource from search and rejects new reservations.
// Existing reservations keep their claims.
func (r *Resource) Deactivate(now time.Time) {
	r.setActive(false, now)
}

func (r *Resource) Activate(now time.Time) {
	r.setActive(true, now)
}

func (r *Resource) setActive(active bool, now time.Time) {
	if r.Active == active {
		return
	}
	r.Active = active
	r.UpdatedAt = now.UTC()
	r.Record(ResourceUpserted{ResourceID: r.ID, Kind: r.Kind, Active: r.Active, At: r.UpdatedAt})
}

func (r *Resource) apply(params Params) error {
	kind, err := ParseKind(string(params.Kind))
	if err != nil {
		return err
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return ErrTitleRequired
	}
	if params.BasePrice.Amount < 0 {
		return ErrBasePrice
	}
	if _, err := money.New(params.BasePrice.Amount, params.BasePrice.Currency); err != nil {
		return err
	}
	capacity := params.Capacity
	slots, err := normalizeSlots(params.Slots)
	if err != nil {
		return err
	}
	switch kind {
	case KindProperty:
		if capacity == 0 {
			capacity = 1
		}
		if capacity != 1 {
			return ErrPropertyCapacity
		}
		if len(slots) > 0 {
			return ErrPropertySlots
		}
	case KindActivity:
		if capacity < 1 {
			return ErrCapacity
		}
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	r.Kind = kind
	r.Title = title
	r.City = strings.TrimSpace(params.City)
	r.Capacity = capacity
	r.BasePrice = money.Must(params.BasePrice.Amount, params.BasePrice.Currency)
	r.Slots = slots
	r.Active = params.Active
	r.UpdatedAt = now.UTC()
	return nil
}

// RequireSlot validates the slot a caller asks for against the resource kind.
// Properties take no slot; activities with declared slots require one of them.
func (r *Resource) RequireSlot(slot string) (string, error) {
	slot = strings.TrimSpace(slot)
	if r.Kind == KindProperty {
		if slot != "" {
			return "", ErrPropertySlots
		}
		return "", nil
	}
	if len(r.Slots) == 0 {
		if slot != "" {
			return "", ErrUnknownSlot
		}
		return "", nil
	}
	if slot == "" {
		return "", ErrSlotRequired
	}
	for _, s := range r.Slots {
		if s == slot {
			return slot, nil
		}
	}
	return "", ErrUnknownSlot
}

// Lanes lists the independent capacity pools of the resource: one per slot,
// or a single unnamed one.
func (r *Resource) Lanes() []string {
	if len(r.Slots) == 0 {
		return []string{""}
	}
	return append([]string(nil), r.Slots...)
}

func normalizeSlots(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if !slotPattern.MatchString(v) {
			return nil, ErrInvalidSlot
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

type ResourceUpserted struct {
	ResourceID ID
	Kind       Kind
	Active     bool
	At         time.Time
}

func (e ResourceUpserted) EventName() string     { return "resource.upserted" }
func (e ResourceUpserted) AggregateID() string   { return string(e.ResourceID) }
func (e ResourceUpserted) OccurredAt() time.Time { return e.At }
