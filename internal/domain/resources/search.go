package resources

import (
	"sort"
	"strings"
)

const (
	defaultSearchLimit = 24
	maxSearchLimit     = 100
)

// SearchParams describe catalog filters and paging options.
type SearchParams struct {
	Kind        Kind
	City        string
	MinCapacity int
	OnlyActive  bool
	Limit       int
	Offset      int
}

// Normalized returns a sanitized copy of params.
func (p SearchParams) Normalized() SearchParams {
	normalized := p
	normalized.City = strings.TrimSpace(strings.ToLower(normalized.City))
	if kind, err := ParseKind(string(normalized.Kind)); err == nil {
		normalized.Kind = kind
	} else {
		normalized.Kind = ""
	}
	if normalized.MinCapacity < 0 {
		normalized.MinCapacity = 0
	}
	if normalized.Limit <= 0 {
		normalized.Limit = defaultSearchLimit
	}
	if normalized.Limit > maxSearchLimit {
		normalized.Limit = maxSearchLimit
	}
	if normalized.Offset < 0 {
		normalized.Offset = 0
	}
	return normalized
}

// Matches reports whether a resource passes the (normalized) filters.
func (p SearchParams) Matches(r *Resource) bool {
	if r == nil {
		return false
	}
	if p.OnlyActive && !r.Active {
		return false
	}
	if p.Kind != "" && r.Kind != p.Kind {
		return false
	}
	if p.City != "" && strings.ToLower(r.City) != p.City {
		return false
	}
	if p.MinCapacity > 0 && r.Capacity < p.MinCapacity {
		return false
	}
	return true
}

// SearchResult wraps search hits with meta.
type SearchResult struct {
	Items []*Resource
	Total int
}

// Page applies the filters, a stable id ordering and paging to an in-memory
// candidate set. Stores without a query language share it.
func (p SearchParams) Page(candidates []*Resource) SearchResult {
	params := p.Normalized()
	matched := make([]*Resource, 0, len(candidates))
	for _, r := range candidates {
		if params.Matches(r) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	total := len(matched)
	if params.Offset >= total {
		return SearchResult{Items: []*Resource{}, Total: total}
	}
	end := params.Offset + params.Limit
	if end > total {
		end = total
	}
	return SearchResult{Items: matched[params.Offset:end], Total: total}
}
