package gig

import "testing"

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func statusPtr(v Status) *Status { return &v }

func TestMergeInheritsUnsetFields(t *testing.T) {
	shared := Gig{ID: "g1", Title: "Festival", Date: "2024-06-01", Value: floatPtr(300), Status: StatusPending, Notes: "shared notes"}
	o := &Override{ViewerID: "v1", GigID: "g1", Value: floatPtr(150)}

	merged := Merge(shared, o)
	if merged.Value == nil || *merged.Value != 150 {
		t.Fatalf("expected overridden value 150, got %v", merged.Value)
	}
	if merged.Title != "Festival" || merged.Notes != "shared notes" || merged.Status != StatusPending {
		t.Fatalf("expected inherited fields to survive, got %+v", merged)
	}
	if !merged.Overridden {
		t.Fatalf("expected overridden flag set")
	}
}

func TestMergeNilOverrideIsPlainProjection(t *testing.T) {
	shared := Gig{ID: "g1", Title: "Festival", Date: "2024-06-01"}
	merged := Merge(shared, nil)
	if merged.Overridden {
		t.Fatalf("expected overridden flag unset")
	}
	if merged.Gig != shared {
		t.Fatalf("expected shared gig unchanged, got %+v", merged.Gig)
	}
}

// The merge never writes back into the shared record, so two viewers with
// different overrides see different projections of the same row.
func TestMergeLeavesSharedRecordUntouched(t *testing.T) {
	shared := Gig{ID: "g1", Title: "Festival", Value: floatPtr(300), Status: StatusPending}

	a := Merge(shared, &Override{Title: strPtr("My gig"), Status: statusPtr(StatusPaid)})
	b := Merge(shared, &Override{Value: floatPtr(99)})

	if shared.Title != "Festival" || *shared.Value != 300 || shared.Status != StatusPending {
		t.Fatalf("shared record mutated: %+v", shared)
	}
	if a.Title != "My gig" || a.Status != StatusPaid || *a.Value != 300 {
		t.Fatalf("unexpected projection for viewer a: %+v", a)
	}
	if b.Title != "Festival" || b.Status != StatusPending || *b.Value != 99 {
		t.Fatalf("unexpected projection for viewer b: %+v", b)
	}
}

func TestMergeAllDropsHidden(t *testing.T) {
	gigs := []Gig{{ID: "g1", Title: "Keep"}, {ID: "g2", Title: "Hide"}, {ID: "g3", Title: "Plain"}}
	overrides := map[string]Override{
		"g1": {GigID: "g1", Title: strPtr("Renamed")},
		"g2": {GigID: "g2", Hidden: true},
	}

	result := MergeAll(gigs, overrides)
	if len(result) != 2 {
		t.Fatalf("expected 2 visible gigs, got %d", len(result))
	}
	if result[0].ID != "g1" || result[0].Title != "Renamed" || !result[0].Overridden {
		t.Fatalf("unexpected first projection: %+v", result[0])
	}
	if result[1].ID != "g3" || result[1].Overridden {
		t.Fatalf("unexpected second projection: %+v", result[1])
	}
}
