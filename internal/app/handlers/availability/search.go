package availability

import (
	"context"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	"staybook/internal/domain/pricing"
	"staybook/internal/domain/resources"
	"staybook/internal/domain/shared/daterange"
	"staybook/internal/domain/shared/domainerr"
)

// SearchQuery annotates a page of active resources with their availability
// for one range and party size.
type SearchQuery struct {
	Kind      string    `validate:"omitempty,oneof=property activity"`
	City      string    `validate:"max=100"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
	PartySize int       `validate:"gte=1"`
	Limit     int       `validate:"gte=0,lte=100"`
	Offset    int       `validate:"gte=0"`
}

func (q SearchQuery) Key() string { return SearchKey }

func (h *Handler) Search(ctx context.Context, q SearchQuery) (dto.SearchResult, error) {
	unit, ctx, release, err := uow.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.SearchResult{}, err
	}
	defer release()

	dr, err := daterange.New(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.SearchResult{}, domainerr.Validation("range", err)
	}
	params := resources.SearchParams{
		City:        q.City,
		MinCapacity: q.PartySize,
		OnlyActive:  true,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if q.Kind != "" {
		kind, err := resources.ParseKind(q.Kind)
		if err != nil {
			return dto.SearchResult{}, domainerr.Validation("kind", err)
		}
		params.Kind = kind
	}
	params = params.Normalized()
	page, err := unit.Resources().Search(ctx, params)
	if err != nil {
		return dto.SearchResult{}, err
	}

	cal := uow.Calendar(unit, h.MaxDays)
	pricer := uow.Pricing(unit)
	items := make([]dto.SearchItem, 0, len(page.Items))
	for _, res := range page.Items {
		item, err := h.annotate(ctx, cal, pricer, res, dr, q.PartySize)
		if err != nil {
			return dto.SearchResult{}, err
		}
		items = append(items, item)
	}
	return dto.SearchResult{Items: items, Total: page.Total, Limit: params.Limit, Offset: params.Offset}, nil
}

// annotate evaluates every lane of the resource and reports the best one:
// an admitting lane over a rejecting one, then the most remaining capacity.
func (h *Handler) annotate(
	ctx context.Context,
	cal domainavailability.Calendar,
	pricer pricing.Resolver,
	res *resources.Resource,
	dr daterange.DateRange,
	party int,
) (dto.SearchItem, error) {
	rates, err := pricer.Rates(ctx, res, dr)
	if err != nil {
		return dto.SearchItem{}, err
	}
	var best domainavailability.Window
	found := false
	for _, slot := range res.Lanes() {
		ix, err := cal.Build(ctx, domainavailability.Lane{Resource: res, Slot: slot}, dr)
		if err != nil {
			return dto.SearchItem{}, err
		}
		w := domainavailability.NewWindow(ix, res.Capacity, party, rates)
		if !found || better(w, best) {
			best, found = w, true
		}
	}
	item := dto.SearchItem{
		Resource:          dto.MapResource(res),
		Slot:              best.Slot,
		IsAvailable:       best.AllAvailable(),
		RemainingCapacity: best.MinRemaining(),
	}
	if item.IsAvailable {
		quote, err := pricer.Quote(ctx, res, dr, party)
		if err != nil {
			return dto.SearchItem{}, err
		}
		item.Total = dto.MapMoneyRef(quote.Total)
	}
	return item, nil
}

func better(candidate, current domainavailability.Window) bool {
	if candidate.AllAvailable() != current.AllAvailable() {
		return candidate.AllAvailable()
	}
	return candidate.MinRemaining() > current.MinRemaining()
}

var _ queries.HandlerFunc[SearchQuery, dto.SearchResult] = (*Handler)(nil).Search
