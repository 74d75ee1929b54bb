package gig

import "sort"

// Merge projects a shared gig through a viewer's override. Each non-nil
// override field replaces the shared value; everything else is inherited.
func Merge(g Gig, o *Override) VisibleGig {
	if o == nil {
		return VisibleGig{Gig: g}
	}

	merged := g
	if o.Title != nil {
		merged.Title = *o.Title
	}
	if o.Value != nil {
		merged.Value = o.Value
	}
	if o.Status != nil {
		merged.Status = *o.Status
	}
	if o.Notes != nil {
		merged.Notes = *o.Notes
	}
	return VisibleGig{Gig: merged, Overridden: true}
}

// MergeAll applies a viewer's overrides over a set of shared gigs, dropping
// any gig whose override is hidden. Input order is preserved.
func MergeAll(gigs []Gig, overrides map[string]Override) []VisibleGig {
	result := make([]VisibleGig, 0, len(gigs))
	for _, g := range gigs {
		if o, ok := overrides[g.ID]; ok {
			if o.Hidden {
				continue
			}
			result = append(result, Merge(g, &o))
			continue
		}
		result = append(result, Merge(g, nil))
	}
	return result
}

// SortByDate orders gigs by canonical date ascending. The sort is stable so
// same-day gigs keep their arrival order.
func SortByDate(list []VisibleGig) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Date < list[j].Date
	})
}
