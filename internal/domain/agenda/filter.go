package agenda

import (
	"strings"

	"gigbook/internal/domain/gig"
)

type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusPending StatusFilter = "pending"
	StatusPaid    StatusFilter = "paid"
)

// Filter is a conjunction of predicates over the visible gig set. A range
// filter (both bounds set) takes precedence over the single-date filter.
type Filter struct {
	From   string
	To     string
	On     string
	Status StatusFilter
	Query  string
}

// Apply runs the filter pipeline: date range or single date, then status,
// then case-insensitive substring search across title, band name, location
// and notes. Order is stable.
func Apply(gigs []gig.VisibleGig, f Filter) []gig.VisibleGig {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	result := make([]gig.VisibleGig, 0, len(gigs))
	for _, g := range gigs {
		if !matchDate(g, f) {
			continue
		}
		if !matchStatus(g, f.Status) {
			continue
		}
		if query != "" && !matchQuery(g, query) {
			continue
		}
		result = append(result, g)
	}
	return result
}

func matchDate(g gig.VisibleGig, f Filter) bool {
	if f.From != "" && f.To != "" {
		return g.Date >= f.From && g.Date <= f.To
	}
	if f.On != "" {
		return g.Date == f.On
	}
	return true
}

func matchStatus(g gig.VisibleGig, status StatusFilter) bool {
	switch status {
	case StatusPending:
		return g.Status != gig.StatusPaid
	case StatusPaid:
		return g.Status == gig.StatusPaid
	default:
		return true
	}
}

func matchQuery(g gig.VisibleGig, query string) bool {
	for _, field := range []string{g.Title, g.BandName, g.Location, g.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Stats partitions the summed values by payment status. Computed over
// whatever set the caller passes in, so it always reflects the active
// filter, never the unfiltered total.
type Stats struct {
	Received float64 `json:"received"`
	Pending  float64 `json:"pending"`
	Total    float64 `json:"total"`
}

// Reduce is a single linear pass; an unset value counts as zero.
func Reduce(gigs []gig.VisibleGig) Stats {
	var stats Stats
	for _, g := range gigs {
		var value float64
		if g.Value != nil {
			value = *g.Value
		}
		if g.Status == gig.StatusPaid {
			stats.Received += value
		} else {
			stats.Pending += value
		}
		stats.Total += value
	}
	return stats
}
