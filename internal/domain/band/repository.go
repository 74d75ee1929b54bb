package band

import "context"

type Repository interface {
	Transaction(ctx context.Context, fn func(Repository) error) error

	CreateBand(ctx context.Context, b *Band) error
	GetBand(ctx context.Context, id string) (*Band, error)
	ListBandsByUser(ctx context.Context, userID string) ([]Band, error)
	UpdateBand(ctx context.Context, id string, fields map[string]any) error
	DeleteBand(ctx context.Context, id string) error

	AddMember(ctx context.Context, m *Member) error
	GetMember(ctx context.Context, bandID, userID string) (*Member, error)
	ListMembers(ctx context.Context, bandID string) ([]Member, error)
	UpdateMemberRole(ctx context.Context, bandID, userID, role string) error
	DeleteMember(ctx context.Context, bandID, userID string) error

	CreateInvite(ctx context.Context, invite *Invite) error
	GetInviteByToken(ctx context.Context, token string) (*Invite, error)
	ListInvitesByBand(ctx context.Context, bandID string) ([]Invite, error)
	UpdateInviteStatus(ctx context.Context, id, status string) error
}

// Mailer delivers invite links. Implementations live in the email adapter;
// a nil mailer means invites are link-only.
type Mailer interface {
	SendInvite(ctx context.Context, to, bandName, link string) error
}
