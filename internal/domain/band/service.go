package band

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gigbook/internal/realtime"
	"gigbook/pkg/logger"
)

type Service struct {
	repo         Repository
	cache        *TenancyCache
	mailer       Mailer
	hub          *realtime.Hub
	log          logger.Logger
	inviteExpiry time.Duration
	inviteBase   string
	now          func() time.Time
}

func NewService(repo Repository, cache *TenancyCache, mailer Mailer, hub *realtime.Hub, log logger.Logger, inviteExpiry time.Duration, inviteBase string) *Service {
	if inviteExpiry <= 0 {
		inviteExpiry = 7 * 24 * time.Hour
	}
	return &Service{
		repo:         repo,
		cache:        cache,
		mailer:       mailer,
		hub:          hub,
		log:          log,
		inviteExpiry: inviteExpiry,
		inviteBase:   strings.TrimRight(inviteBase, "/"),
		now:          time.Now,
	}
}

// CreateBand creates a band and its owner membership in one transaction.
func (s *Service) CreateBand(ctx context.Context, viewerID, name, description string) (*Band, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	b := Band{
		ID:          uuid.NewString(),
		Name:        name,
		OwnerID:     viewerID,
		Description: strings.TrimSpace(description),
	}
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if err := tx.CreateBand(ctx, &b); err != nil {
			return err
		}
		return tx.AddMember(ctx, &Member{BandID: b.ID, UserID: viewerID, Role: RoleOwner})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return &b, nil
}

func (s *Service) GetBand(ctx context.Context, id string) (*Band, error) {
	return s.repo.GetBand(ctx, id)
}

// ListBands returns the viewer's bands through the tenancy cache.
func (s *Service) ListBands(ctx context.Context, viewerID string) ([]Band, error) {
	return s.cache.Load(viewerID, func() ([]Band, error) {
		return s.repo.ListBandsByUser(ctx, viewerID)
	})
}

func (s *Service) UpdateBand(ctx context.Context, viewerID, bandID, name, description string) (*Band, error) {
	if err := s.requireRole(ctx, bandID, viewerID, RoleAdmin); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	fields := map[string]any{"name": name, "description": strings.TrimSpace(description)}
	if err := s.repo.UpdateBand(ctx, bandID, fields); err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return s.repo.GetBand(ctx, bandID)
}

// DeleteBand removes the band, its memberships, invites and gigs (store-level
// cascade). Owner only. Other members discover the deletion through realtime
// or the polling backstop.
func (s *Service) DeleteBand(ctx context.Context, viewerID, bandID string) error {
	b, err := s.repo.GetBand(ctx, bandID)
	if err != nil {
		return err
	}
	if b.OwnerID != viewerID {
		return ErrPermissionDenied
	}

	if err := s.repo.DeleteBand(ctx, bandID); err != nil {
		return err
	}

	s.cache.Invalidate()
	if s.hub != nil {
		s.hub.Publish(realtime.Change{Table: realtime.TableGigs, OwnerID: b.OwnerID, BandID: &bandID})
	}
	return nil
}

func (s *Service) LeaveBand(ctx context.Context, viewerID, bandID string) error {
	member, err := s.repo.GetMember(ctx, bandID, viewerID)
	if err != nil {
		return err
	}
	if member.Role == RoleOwner {
		return ErrOwnerCannotLeave
	}

	if err := s.repo.DeleteMember(ctx, bandID, viewerID); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

func (s *Service) ListMembers(ctx context.Context, viewerID, bandID string) ([]Member, error) {
	if err := s.requireRole(ctx, bandID, viewerID, RoleMember); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, bandID)
}

// ChangeMemberRole lets owner or admin set another member to admin or member.
// Nobody may touch the owner's role.
func (s *Service) ChangeMemberRole(ctx context.Context, actorID, bandID, targetID, role string) error {
	if role != RoleAdmin && role != RoleMember {
		return fmt.Errorf("invalid role %q", role)
	}
	if err := s.requireRole(ctx, bandID, actorID, RoleAdmin); err != nil {
		return err
	}

	target, err := s.repo.GetMember(ctx, bandID, targetID)
	if err != nil {
		return err
	}
	if target.Role == RoleOwner {
		return ErrOwnerImmutable
	}

	return s.repo.UpdateMemberRole(ctx, bandID, targetID, role)
}

func (s *Service) RemoveMember(ctx context.Context, actorID, bandID, targetID string) error {
	if err := s.requireRole(ctx, bandID, actorID, RoleAdmin); err != nil {
		return err
	}

	target, err := s.repo.GetMember(ctx, bandID, targetID)
	if err != nil {
		return err
	}
	if target.Role == RoleOwner {
		return ErrOwnerImmutable
	}

	if err := s.repo.DeleteMember(ctx, bandID, targetID); err != nil {
		return err
	}
	s.cache.Invalidate()
	return nil
}

// CreateInvite issues an opaque-token invite. With an email address set, the
// invite is restricted to that address and the link is mailed out
// best-effort; an empty address makes an open link.
func (s *Service) CreateInvite(ctx context.Context, viewerID, bandID, email string) (*Invite, error) {
	if err := s.requireRole(ctx, bandID, viewerID, RoleAdmin); err != nil {
		return nil, err
	}

	invite := Invite{
		ID:        uuid.NewString(),
		BandID:    bandID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Token:     uuid.NewString(),
		Status:    InviteStatusPending,
		CreatedBy: viewerID,
		ExpiresAt: s.now().Add(s.inviteExpiry),
	}
	if err := s.repo.CreateInvite(ctx, &invite); err != nil {
		return nil, err
	}

	if invite.Email != "" && s.mailer != nil {
		b, err := s.repo.GetBand(ctx, bandID)
		if err == nil {
			if err := s.mailer.SendInvite(ctx, invite.Email, b.Name, s.InviteLink(invite.Token)); err != nil {
				s.log.InternalError("bands: invite mail failed", err, "band_id", bandID)
			}
		}
	}

	return &invite, nil
}

func (s *Service) InviteLink(token string) string {
	return s.inviteBase + "/?invite=" + token
}

func (s *Service) ListInvites(ctx context.Context, viewerID, bandID string) ([]Invite, error) {
	if err := s.requireRole(ctx, bandID, viewerID, RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListInvitesByBand(ctx, bandID)
}

func (s *Service) CancelInvite(ctx context.Context, viewerID, bandID, inviteID string) error {
	if err := s.requireRole(ctx, bandID, viewerID, RoleAdmin); err != nil {
		return err
	}
	return s.repo.UpdateInviteStatus(ctx, inviteID, InviteStatusCancelled)
}

// AcceptInvite validates the token and, in one transaction, adds the viewer
// as a member and marks the invite accepted. Joining twice through the same
// band is tolerated (the invite is still consumed). Returns the band so the
// caller can select it as the active context.
func (s *Service) AcceptInvite(ctx context.Context, viewerID, viewerEmail, token string) (*Band, error) {
	invite, err := s.repo.GetInviteByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite.Status != InviteStatusPending {
		return nil, ErrInviteNotFound
	}
	if s.now().After(invite.ExpiresAt) {
		return nil, ErrInviteExpired
	}
	if invite.Email != "" && !strings.EqualFold(invite.Email, strings.TrimSpace(viewerEmail)) {
		return nil, ErrInviteNotYours
	}

	err = s.repo.Transaction(ctx, func(tx Repository) error {
		_, err := tx.GetMember(ctx, invite.BandID, viewerID)
		if err == nil {
			return tx.UpdateInviteStatus(ctx, invite.ID, InviteStatusAccepted)
		}

		if err := tx.AddMember(ctx, &Member{BandID: invite.BandID, UserID: viewerID, Role: RoleMember}); err != nil {
			return err
		}
		return tx.UpdateInviteStatus(ctx, invite.ID, InviteStatusAccepted)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate()
	return s.repo.GetBand(ctx, invite.BandID)
}

// BandIDs, IsMember and IsOwner satisfy the gig service's tenancy dependency
// off the cached membership list.
func (s *Service) BandIDs(ctx context.Context, viewerID string) ([]string, error) {
	bands, err := s.ListBands(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bands))
	for _, b := range bands {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (s *Service) IsMember(ctx context.Context, bandID, viewerID string) (bool, error) {
	bands, err := s.ListBands(ctx, viewerID)
	if err != nil {
		return false, err
	}
	for _, b := range bands {
		if b.ID == bandID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) IsOwner(ctx context.Context, bandID, viewerID string) (bool, error) {
	bands, err := s.ListBands(ctx, viewerID)
	if err != nil {
		return false, err
	}
	for _, b := range bands {
		if b.ID == bandID {
			return b.OwnerID == viewerID, nil
		}
	}
	return false, nil
}

func (s *Service) requireRole(ctx context.Context, bandID, viewerID, minimum string) error {
	member, err := s.repo.GetMember(ctx, bandID, viewerID)
	if err != nil {
		return ErrPermissionDenied
	}
	if roleLevel(member.Role) < roleLevel(minimum) {
		return ErrPermissionDenied
	}
	return nil
}
