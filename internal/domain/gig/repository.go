package gig

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	GetGig(ctx context.Context, id string) (*Gig, error)
	ListPersonal(ctx context.Context, ownerID string) ([]Gig, error)
	ListByBand(ctx context.Context, bandID string) ([]Gig, error)
	ListByBands(ctx context.Context, bandIDs []string) ([]Gig, error)
	CreateGig(ctx context.Context, g *Gig) error
	UpdateGig(ctx context.Context, id string, fields map[string]any) error
	DeleteGig(ctx context.Context, id string) error
	DeleteByScope(ctx context.Context, ownerID string, bandID *string) (int64, error)

	GetOverride(ctx context.Context, viewerID, gigID string) (*Override, error)
	ListOverrides(ctx context.Context, viewerID string, gigIDs []string) ([]Override, error)
	UpsertOverride(ctx context.Context, o *Override) error
	DeleteOverride(ctx context.Context, viewerID, gigID string) error
}
