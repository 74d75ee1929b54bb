package gig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gigbook/internal/realtime"
	"gigbook/pkg/logger"
)

// Tenancy answers membership questions for the current viewer. Backed by the
// band service through its cache, so repeated fetches don't hit the store.
type Tenancy interface {
	BandIDs(ctx context.Context, viewerID string) ([]string, error)
	IsMember(ctx context.Context, bandID, viewerID string) (bool, error)
	IsOwner(ctx context.Context, bandID, viewerID string) (bool, error)
}

type Service struct {
	repo      Repository
	tenancy   Tenancy
	hub       *realtime.Hub
	log       logger.Logger
	chunkSize int
}

func NewService(repo Repository, tenancy Tenancy, hub *realtime.Hub, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		tenancy:   tenancy,
		hub:       hub,
		log:       log,
		chunkSize: 25,
	}
}

func (s *Service) SetChunkSize(size int) {
	if size > 0 {
		s.chunkSize = size
	}
}

// Fetch returns the visible gig set for one scope. A band scope returns the
// band's gigs as stored, without override merging; the personal scope merges
// the viewer's overrides over every band gig and drops hidden ones.
func (s *Service) Fetch(ctx context.Context, viewerID string, bandID *string) ([]VisibleGig, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	if bandID != nil {
		return s.fetchBand(ctx, viewerID, *bandID)
	}
	return s.fetchPersonal(ctx, viewerID)
}

func (s *Service) fetchBand(ctx context.Context, viewerID, bandID string) ([]VisibleGig, error) {
	member, err := s.tenancy.IsMember(ctx, bandID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrPermissionDenied
	}

	gigs, err := s.repo.ListByBand(ctx, bandID)
	if err != nil {
		return nil, err
	}

	result := make([]VisibleGig, 0, len(gigs))
	for _, g := range gigs {
		result = append(result, VisibleGig{Gig: g})
	}
	SortByDate(result)
	return result, nil
}

func (s *Service) fetchPersonal(ctx context.Context, viewerID string) ([]VisibleGig, error) {
	bandIDs, err := s.tenancy.BandIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	var own, shared []Gig
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		own, err = s.repo.ListPersonal(groupCtx, viewerID)
		return err
	})
	if len(bandIDs) > 0 {
		group.Go(func() error {
			var err error
			shared, err = s.repo.ListByBands(groupCtx, bandIDs)
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	overrides := map[string]Override{}
	if len(shared) > 0 {
		gigIDs := make([]string, 0, len(shared))
		for _, g := range shared {
			gigIDs = append(gigIDs, g.ID)
		}
		rows, err := s.repo.ListOverrides(ctx, viewerID, gigIDs)
		if err != nil {
			return nil, err
		}
		for _, o := range rows {
			overrides[o.GigID] = o
		}
	}

	result := make([]VisibleGig, 0, len(own)+len(shared))
	for _, g := range own {
		result = append(result, VisibleGig{Gig: g})
	}
	result = append(result, MergeAll(shared, overrides)...)
	SortByDate(result)
	return result, nil
}

// Create inserts a shared gig. Creating into a band is reserved for the
// band's owner; members see the gig through their personal fetch instead.
func (s *Service) Create(ctx context.Context, viewerID string, input CreateInput, bandID *string) (*Gig, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}
	if err := validateCreate(&input); err != nil {
		return nil, err
	}

	if bandID != nil {
		owner, err := s.tenancy.IsOwner(ctx, *bandID, viewerID)
		if err != nil {
			return nil, err
		}
		if !owner {
			return nil, ErrPermissionDenied
		}
	}

	g := &Gig{
		ID:       uuid.NewString(),
		OwnerID:  viewerID,
		BandID:   bandID,
		Title:    strings.TrimSpace(input.Title),
		Date:     input.Date,
		Location: strings.TrimSpace(input.Location),
		Value:    input.Value,
		Status:   input.Status,
		Notes:    input.Notes,
		BandName: strings.TrimSpace(input.BandName),
	}
	if err := s.repo.CreateGig(ctx, g); err != nil {
		return nil, err
	}

	s.publishGig(g)
	return g, nil
}

// CreateMany inserts a batch of personal gigs, chunked: inserts within one
// chunk run concurrently, chunks run sequentially.
func (s *Service) CreateMany(ctx context.Context, viewerID string, inputs []CreateInput) ([]Gig, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	created := make([]Gig, len(inputs))
	for start := 0; start < len(inputs); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(inputs) {
			end = len(inputs)
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			group.Go(func() error {
				g, err := s.Create(groupCtx, viewerID, inputs[i], nil)
				if err != nil {
					return fmt.Errorf("row %d: %w", i, err)
				}
				created[i] = *g
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// Update patches either the shared row (asOverride false, owner-gated like
// Create) or the viewer's overlay (asOverride true, which rewrites every
// overridable field as given). Both paths return the recomputed visible
// projection for the viewer.
func (s *Service) Update(ctx context.Context, viewerID, id string, patch UpdatePatch, override *OverridePatch) (*VisibleGig, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	g, err := s.repo.GetGig(ctx, id)
	if err != nil {
		return nil, err
	}

	if override != nil {
		return s.upsertOverride(ctx, viewerID, g, *override)
	}

	fields, err := patch.fields()
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := s.checkWritable(ctx, viewerID, g); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateGig(ctx, id, fields); err != nil {
			return nil, err
		}
		g, err = s.repo.GetGig(ctx, id)
		if err != nil {
			return nil, err
		}
		s.publishGig(g)
	}

	return s.visibleFor(ctx, viewerID, g)
}

func (s *Service) upsertOverride(ctx context.Context, viewerID string, g *Gig, patch OverridePatch) (*VisibleGig, error) {
	if err := s.checkOverridable(ctx, viewerID, g); err != nil {
		return nil, err
	}
	if patch.Value != nil && *patch.Value < 0 {
		return nil, ErrNegativeValue
	}
	if patch.Status != nil && !validStatus(*patch.Status) {
		return nil, ErrInvalidStatus
	}

	o := &Override{
		ViewerID: viewerID,
		GigID:    g.ID,
		Title:    patch.Title,
		Value:    patch.Value,
		Status:   patch.Status,
		Notes:    patch.Notes,
		Hidden:   patch.Hidden,
	}
	if err := s.repo.UpsertOverride(ctx, o); err != nil {
		return nil, err
	}

	s.publishOverride(viewerID)
	merged := Merge(*g, o)
	return &merged, nil
}

// Delete hard-deletes the shared row (owner-gated like Create), or,
// asOverride, hides the gig from the viewer only by flipping the override's
// hidden flag. The hidden upsert keeps any field overrides the viewer already
// had. Returns the affected gig so callers can offer undo.
func (s *Service) Delete(ctx context.Context, viewerID, id string, asOverride bool) (*Gig, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	g, err := s.repo.GetGig(ctx, id)
	if err != nil {
		return nil, err
	}

	if !asOverride {
		if err := s.checkWritable(ctx, viewerID, g); err != nil {
			return nil, err
		}
		if err := s.repo.DeleteGig(ctx, id); err != nil {
			return nil, err
		}
		s.publishGig(g)
		return g, nil
	}

	if err := s.checkOverridable(ctx, viewerID, g); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetOverride(ctx, viewerID, id)
	if err != nil && !errors.Is(err, ErrOverrideNotFound) {
		return nil, err
	}
	o := &Override{ViewerID: viewerID, GigID: id, Hidden: true}
	if existing != nil {
		o.Title, o.Value, o.Status, o.Notes = existing.Title, existing.Value, existing.Status, existing.Notes
	}
	if err := s.repo.UpsertOverride(ctx, o); err != nil {
		return nil, err
	}

	s.publishOverride(viewerID)
	return g, nil
}

// ClearOverride drops the viewer's overlay entirely, restoring pure
// inheritance (and un-hiding the gig if it was hidden).
func (s *Service) ClearOverride(ctx context.Context, viewerID, id string) (*VisibleGig, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	g, err := s.repo.GetGig(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteOverride(ctx, viewerID, id); err != nil {
		return nil, err
	}

	s.publishOverride(viewerID)
	merged := Merge(*g, nil)
	return &merged, nil
}

// DeleteAll bulk-deletes the viewer's own gigs in one scope: nil for
// personal-only, a band id for that band only. Overrides are untouched.
func (s *Service) DeleteAll(ctx context.Context, viewerID string, bandID *string) (int64, error) {
	if viewerID == "" {
		return 0, ErrUnauthenticated
	}

	count, err := s.repo.DeleteByScope(ctx, viewerID, bandID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.publishGig(&Gig{OwnerID: viewerID, BandID: bandID})
	}
	return count, nil
}

// Subscription is a live feed handle; Cancel stops it.
type Subscription struct {
	cancel func()
}

func (s *Subscription) Cancel() {
	if s != nil && s.cancel != nil {
		s.cancel()
	}
}

// SubscribeChanges opens a change feed scoped like Fetch and re-delivers the
// full refreshed visible set on every relevant row change. A refetch failure
// is logged and the feed keeps going; the caller still holds its last set.
func (s *Service) SubscribeChanges(ctx context.Context, viewerID string, bandID *string, onChange func([]VisibleGig)) (*Subscription, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	scope := realtime.Scope{ViewerID: viewerID, BandID: bandID}
	if bandID == nil {
		bandIDs, err := s.tenancy.BandIDs(ctx, viewerID)
		if err != nil {
			return nil, err
		}
		scope.BandIDs = bandIDs
	}

	ch, cancel := s.hub.Subscribe(scope)
	go func() {
		for range ch {
			refreshed, err := s.Fetch(ctx, viewerID, bandID)
			if err != nil {
				s.log.InternalError("gigs: refetch after change failed", err, "viewer_id", viewerID)
				continue
			}
			onChange(refreshed)
		}
	}()

	return &Subscription{cancel: cancel}, nil
}

// checkWritable gates direct writes to the shared row: a personal gig
// belongs to its owner, a band gig to the band's owner. Members change what
// they see through overrides instead.
func (s *Service) checkWritable(ctx context.Context, viewerID string, g *Gig) error {
	if g.BandID == nil {
		if g.OwnerID != viewerID {
			return ErrPermissionDenied
		}
		return nil
	}
	owner, err := s.tenancy.IsOwner(ctx, *g.BandID, viewerID)
	if err != nil {
		return err
	}
	if !owner {
		return ErrPermissionDenied
	}
	return nil
}

func (s *Service) checkOverridable(ctx context.Context, viewerID string, g *Gig) error {
	if g.BandID == nil {
		return ErrOverrideNotAllowed
	}
	owner, err := s.tenancy.IsOwner(ctx, *g.BandID, viewerID)
	if err != nil {
		return err
	}
	if owner {
		return ErrOverrideNotAllowed
	}
	member, err := s.tenancy.IsMember(ctx, *g.BandID, viewerID)
	if err != nil {
		return err
	}
	if !member {
		return ErrPermissionDenied
	}
	return nil
}

func (s *Service) visibleFor(ctx context.Context, viewerID string, g *Gig) (*VisibleGig, error) {
	o, err := s.repo.GetOverride(ctx, viewerID, g.ID)
	if err != nil && !errors.Is(err, ErrOverrideNotFound) {
		return nil, err
	}
	merged := Merge(*g, o)
	return &merged, nil
}

func (s *Service) publishGig(g *Gig) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(realtime.Change{Table: realtime.TableGigs, OwnerID: g.OwnerID, BandID: g.BandID})
}

func (s *Service) publishOverride(viewerID string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(realtime.Change{Table: realtime.TableOverrides, OwnerID: viewerID})
}

func validateCreate(input *CreateInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return ErrTitleRequired
	}
	date, err := CanonicalDate(input.Date)
	if err != nil {
		return err
	}
	input.Date = date
	if input.Value != nil && *input.Value < 0 {
		return ErrNegativeValue
	}
	if input.Status == "" {
		input.Status = StatusPending
	}
	if !validStatus(input.Status) {
		return ErrInvalidStatus
	}
	return nil
}

func validStatus(status Status) bool {
	return status == StatusPending || status == StatusPaid
}

func (p UpdatePatch) fields() (map[string]any, error) {
	fields := map[string]any{}
	if p.Title != nil {
		if strings.TrimSpace(*p.Title) == "" {
			return nil, ErrTitleRequired
		}
		fields["title"] = strings.TrimSpace(*p.Title)
	}
	if p.Date != nil {
		date, err := CanonicalDate(*p.Date)
		if err != nil {
			return nil, err
		}
		fields["date"] = date
	}
	if p.Location != nil {
		fields["location"] = strings.TrimSpace(*p.Location)
	}
	if p.Value.Set {
		if p.Value.Value != nil && *p.Value.Value < 0 {
			return nil, ErrNegativeValue
		}
		fields["value"] = p.Value.Value
	}
	if p.Status != nil {
		if !validStatus(*p.Status) {
			return nil, ErrInvalidStatus
		}
		fields["status"] = *p.Status
	}
	if p.Notes != nil {
		fields["notes"] = *p.Notes
	}
	if p.BandName != nil {
		fields["band_name"] = strings.TrimSpace(*p.BandName)
	}
	return fields, nil
}
