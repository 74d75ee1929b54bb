package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"gigbook/internal/domain/band"
	"gigbook/internal/domain/gig"
	"gigbook/pkg/logger"
)

var ErrNothingToUndo = errors.New("nothing to undo")

// BatchDeleteError reports the ids whose deletes failed server-side; the
// matching entries have already been restored locally.
type BatchDeleteError struct {
	Failed []string
	Cause  error
}

func (e *BatchDeleteError) Error() string {
	return fmt.Sprintf("%d deletes failed: %v", len(e.Failed), e.Cause)
}

func (e *BatchDeleteError) Unwrap() error {
	return e.Cause
}

// Store is the slice of the gig service the session drives.
type Store interface {
	Fetch(ctx context.Context, viewerID string, bandID *string) ([]gig.VisibleGig, error)
	Create(ctx context.Context, viewerID string, input gig.CreateInput, bandID *string) (*gig.Gig, error)
	Update(ctx context.Context, viewerID, id string, patch gig.UpdatePatch, override *gig.OverridePatch) (*gig.VisibleGig, error)
	Delete(ctx context.Context, viewerID, id string, asOverride bool) (*gig.Gig, error)
	SubscribeChanges(ctx context.Context, viewerID string, bandID *string, onChange func([]gig.VisibleGig)) (*gig.Subscription, error)
}

// BandDirectory is the polling backstop's view of the band service.
type BandDirectory interface {
	GetBand(ctx context.Context, id string) (*band.Band, error)
}

type Options struct {
	SwitchDebounce  time.Duration
	UndoWindow      time.Duration
	PollSchedule    string
	DeleteChunkSize int
}

// Session holds the authoritative in-memory visible gig list for one viewer
// and one selected context, reconciling optimistic local mutations against
// confirmed results and realtime pushes. All entry points serialize on one
// mutex; network calls run outside it and reconcile by id on completion.
type Session struct {
	mu        sync.Mutex
	store     Store
	bands     BandDirectory
	selection SelectionStore
	log       logger.Logger
	opts      Options

	viewerID string
	gigs     []gig.VisibleGig
	bandID   *string

	contextToken  uint64
	inFlightKey   string
	inFlightToken uint64
	switchTimer   *time.Timer

	sub         *gig.Subscription
	poller      *cron.Cron
	listeners   map[int]chan []gig.VisibleGig
	nextWatchID int

	lastDeleted   *gig.Gig
	lastDeletedAt time.Time
	now           func() time.Time
}

func NewSession(store Store, bands BandDirectory, selection SelectionStore, log logger.Logger, viewerID string, opts Options) *Session {
	if opts.DeleteChunkSize <= 0 {
		opts.DeleteChunkSize = 25
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = 10 * time.Second
	}
	return &Session{
		store:     store,
		bands:     bands,
		selection: selection,
		log:       log,
		opts:      opts,
		viewerID:  viewerID,
		listeners: make(map[int]chan []gig.VisibleGig),
		now:       time.Now,
	}
}

// Start restores the persisted context selection, loads it, and starts the
// polling backstop that detects an out-of-band deletion of the selected band.
func (s *Session) Start(ctx context.Context) {
	selected, err := s.selection.Get(s.viewerID)
	if err != nil {
		s.log.InternalError("agenda: restore selection failed", err, "viewer_id", s.viewerID)
		selected = nil
	}
	s.switchNow(ctx, selected)

	if s.opts.PollSchedule != "" && s.bands != nil {
		poller := cron.New(cron.WithSeconds())
		if _, err := poller.AddFunc(s.opts.PollSchedule, func() { s.checkSelectedBand(ctx) }); err != nil {
			s.log.InternalError("agenda: poll schedule invalid", err, "schedule", s.opts.PollSchedule)
		} else {
			poller.Start()
			s.poller = poller
		}
	}
}

// Stop tears down the subscription, the poller and every watcher.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.switchTimer != nil {
		s.switchTimer.Stop()
		s.switchTimer = nil
	}
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	for id, ch := range s.listeners {
		close(ch)
		delete(s.listeners, id)
	}
	poller := s.poller
	s.poller = nil
	s.mu.Unlock()

	if poller != nil {
		poller.Stop()
	}
}

// Snapshot returns a copy of the current visible gig list.
func (s *Session) Snapshot() []gig.VisibleGig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneList(s.gigs)
}

// Context returns the currently selected band, nil for personal.
func (s *Session) Context() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bandID == nil {
		return nil
	}
	id := *s.bandID
	return &id
}

// Watch registers a snapshot consumer. The channel coalesces: a slow
// consumer sees the latest state, not every intermediate one.
func (s *Session) Watch() (<-chan []gig.VisibleGig, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextWatchID
	s.nextWatchID++
	ch := make(chan []gig.VisibleGig, 1)
	s.listeners[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if ch, ok := s.listeners[id]; ok {
				delete(s.listeners, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// SwitchContext selects a new calendar context. Rapid repeated switches are
// debounced so only the final target triggers a fetch and resubscribe.
func (s *Session) SwitchContext(ctx context.Context, bandID *string) {
	if s.opts.SwitchDebounce <= 0 {
		s.switchNow(ctx, bandID)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.switchTimer != nil {
		s.switchTimer.Stop()
	}
	target := cloneBandID(bandID)
	s.switchTimer = time.AfterFunc(s.opts.SwitchDebounce, func() {
		s.switchNow(ctx, target)
	})
}

func (s *Session) switchNow(ctx context.Context, bandID *string) {
	key := contextKey(bandID)

	s.mu.Lock()
	if s.inFlightKey == key {
		// A fetch for this context is already running.
		s.mu.Unlock()
		return
	}
	s.contextToken++
	token := s.contextToken
	s.bandID = cloneBandID(bandID)
	s.inFlightKey = key
	s.inFlightToken = token
	if s.sub != nil {
		s.sub.Cancel()
		s.sub = nil
	}
	s.mu.Unlock()

	if err := s.selection.Set(s.viewerID, bandID); err != nil {
		s.log.InternalError("agenda: persist selection failed", err, "viewer_id", s.viewerID)
	}

	gigs, err := s.store.Fetch(ctx, s.viewerID, bandID)

	s.mu.Lock()
	// Only the newest fetch clears the guard; a stale resolver for the same
	// key must not re-open it while a fresher fetch is still running.
	if s.inFlightToken == token {
		s.inFlightKey = ""
		s.inFlightToken = 0
	}
	if s.contextToken != token {
		// The context moved on while this fetch was in flight.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.mu.Unlock()
		s.log.InternalError("agenda: context fetch failed", err, "viewer_id", s.viewerID, "context", key)
		return
	}
	s.gigs = gigs
	s.notifyLocked()
	s.mu.Unlock()

	sub, err := s.store.SubscribeChanges(ctx, s.viewerID, bandID, func(snapshot []gig.VisibleGig) {
		s.applyPush(token, snapshot)
	})
	if err != nil {
		// Live updates are best-effort; the last fetch result stands.
		s.log.BusinessError("agenda: subscribe failed", err, "viewer_id", s.viewerID, "context", key)
		return
	}

	s.mu.Lock()
	if s.contextToken != token {
		s.mu.Unlock()
		sub.Cancel()
		return
	}
	s.sub = sub
	s.mu.Unlock()
}

// applyPush replaces the list with a pushed snapshot unless it is
// field-for-field identical to the current one, in which case it is
// discarded without notifying anyone.
func (s *Session) applyPush(token uint64, snapshot []gig.VisibleGig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contextToken != token {
		return
	}
	if equalSets(s.gigs, snapshot) {
		return
	}
	s.gigs = snapshot
	s.notifyLocked()
}

// Create appends an optimistic placeholder immediately and swaps it for the
// confirmed row (deduplicating by id against any racing push) once the
// repository answers.
func (s *Session) Create(ctx context.Context, input gig.CreateInput) (*gig.Gig, error) {
	normalized := input
	date, err := gig.CanonicalDate(input.Date)
	if err != nil {
		return nil, err
	}
	normalized.Date = date
	if normalized.Status == "" {
		normalized.Status = gig.StatusPending
	}

	placeholderID := "pending-" + uuid.NewString()
	placeholder := gig.VisibleGig{Gig: gig.Gig{
		ID:       placeholderID,
		OwnerID:  s.viewerID,
		BandID:   s.Context(),
		Title:    normalized.Title,
		Date:     normalized.Date,
		Location: normalized.Location,
		Value:    normalized.Value,
		Status:   normalized.Status,
		Notes:    normalized.Notes,
		BandName: normalized.BandName,
	}}

	var created *gig.Gig
	err = s.applyOptimistic(
		func() {
			s.gigs = append(s.gigs, placeholder)
			gig.SortByDate(s.gigs)
		},
		func() (func(), error) {
			g, err := s.store.Create(ctx, s.viewerID, normalized, s.Context())
			if err != nil {
				return nil, err
			}
			created = g
			return func() {
				s.removeLocked(placeholderID)
				s.upsertLocked(gig.VisibleGig{Gig: *g})
				gig.SortByDate(s.gigs)
			}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces the entry by id with the optimistic value, persists, and
// reconciles with the confirmed projection or rolls back. An override that
// hides the gig removes the entry instead.
func (s *Session) Update(ctx context.Context, id string, patch gig.UpdatePatch, override *gig.OverridePatch) error {
	hide := override != nil && override.Hidden
	return s.applyOptimistic(
		func() {
			if hide {
				s.removeLocked(id)
				return
			}
			for i := range s.gigs {
				if s.gigs[i].ID == id {
					s.gigs[i] = applyLocal(s.gigs[i], patch, override)
					break
				}
			}
			gig.SortByDate(s.gigs)
		},
		func() (func(), error) {
			confirmed, err := s.store.Update(ctx, s.viewerID, id, patch, override)
			if err != nil {
				return nil, err
			}
			return func() {
				if hide {
					s.removeLocked(id)
					return
				}
				s.upsertLocked(*confirmed)
				gig.SortByDate(s.gigs)
			}, nil
		},
	)
}

// ToggleStatus flips PENDING↔PAID, through the override overlay when asked.
func (s *Session) ToggleStatus(ctx context.Context, id string, asOverride bool) error {
	s.mu.Lock()
	var next gig.Status
	found := false
	for i := range s.gigs {
		if s.gigs[i].ID == id {
			found = true
			if s.gigs[i].Status == gig.StatusPaid {
				next = gig.StatusPending
			} else {
				next = gig.StatusPaid
			}
			break
		}
	}
	s.mu.Unlock()
	if !found {
		return gig.ErrGigNotFound
	}

	if asOverride {
		return s.Update(ctx, id, gig.UpdatePatch{}, &gig.OverridePatch{Status: &next})
	}
	return s.Update(ctx, id, gig.UpdatePatch{Status: &next}, nil)
}

// Delete removes the entry immediately; a failed persist re-inserts it. A
// confirmed hard delete becomes the undo candidate.
func (s *Session) Delete(ctx context.Context, id string, asOverride bool) error {
	return s.applyOptimistic(
		func() {
			s.removeLocked(id)
		},
		func() (func(), error) {
			deleted, err := s.store.Delete(ctx, s.viewerID, id, asOverride)
			if err != nil {
				return nil, err
			}
			if !asOverride {
				s.mu.Lock()
				s.lastDeleted = deleted
				s.lastDeletedAt = s.now()
				s.mu.Unlock()
			}
			return nil, nil
		},
	)
}

// DeleteMany removes all given ids optimistically, then issues the deletes
// in chunks: deletes within a chunk run concurrently, chunks sequentially.
// Entries whose delete failed server-side are re-inserted; confirmed deletes
// stay gone.
func (s *Session) DeleteMany(ctx context.Context, ids []string) error {
	s.mu.Lock()
	removed := make(map[string]gig.VisibleGig, len(ids))
	for _, id := range ids {
		for i := range s.gigs {
			if s.gigs[i].ID == id {
				removed[id] = s.gigs[i]
				break
			}
		}
	}
	kept := s.gigs[:0]
	for _, g := range s.gigs {
		if _, ok := removed[g.ID]; !ok {
			kept = append(kept, g)
		}
	}
	s.gigs = kept
	s.notifyLocked()
	s.mu.Unlock()

	var failMu sync.Mutex
	var failed []string
	var firstErr error

	pending := make([]string, 0, len(removed))
	for id := range removed {
		pending = append(pending, id)
	}

	for start := 0; start < len(pending); start += s.opts.DeleteChunkSize {
		end := start + s.opts.DeleteChunkSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, id := range pending[start:end] {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.store.Delete(ctx, s.viewerID, id, false); err != nil {
					failMu.Lock()
					failed = append(failed, id)
					if firstErr == nil {
						firstErr = err
					}
					failMu.Unlock()
				}
			}()
		}
		wg.Wait()
	}

	if len(failed) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, id := range failed {
		s.gigs = append(s.gigs, removed[id])
	}
	gig.SortByDate(s.gigs)
	s.notifyLocked()
	s.mu.Unlock()

	return &BatchDeleteError{Failed: failed, Cause: firstErr}
}

// Undo recreates the most recently hard-deleted gig within the undo window.
// The row gets a fresh id; the original one is gone for good.
func (s *Session) Undo(ctx context.Context) (*gig.Gig, error) {
	s.mu.Lock()
	candidate := s.lastDeleted
	deletedAt := s.lastDeletedAt
	s.lastDeleted = nil
	s.mu.Unlock()

	if candidate == nil || s.now().Sub(deletedAt) > s.opts.UndoWindow {
		return nil, ErrNothingToUndo
	}

	input := gig.CreateInput{
		Title:    candidate.Title,
		Date:     candidate.Date,
		Location: candidate.Location,
		Value:    candidate.Value,
		Status:   candidate.Status,
		Notes:    candidate.Notes,
		BandName: candidate.BandName,
	}
	recreated, err := s.store.Create(ctx, s.viewerID, input, candidate.BandID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Surface the recreation only while its context is still selected; a
	// recreated personal gig has no place in a band snapshot.
	if contextKey(s.bandID) == contextKey(candidate.BandID) {
		s.upsertLocked(gig.VisibleGig{Gig: *recreated})
		gig.SortByDate(s.gigs)
		s.notifyLocked()
	}
	s.mu.Unlock()
	return recreated, nil
}

// Filtered applies the given filter to the current list and returns the
// subset plus its financial stats.
func (s *Session) Filtered(f Filter) ([]gig.VisibleGig, Stats) {
	subset := Apply(s.Snapshot(), f)
	return subset, Reduce(subset)
}

// checkSelectedBand is the polling backstop: if the selected band was
// deleted out of band, redirect the viewer to the personal context.
func (s *Session) checkSelectedBand(ctx context.Context) {
	selected := s.Context()
	if selected == nil {
		return
	}

	_, err := s.bands.GetBand(ctx, *selected)
	if err == nil {
		return
	}
	if errors.Is(err, band.ErrBandNotFound) {
		s.log.Info("agenda: selected band gone, falling back to personal", "band_id", *selected)
		s.switchNow(ctx, nil)
		return
	}
	s.log.BusinessError("agenda: band existence check failed", err, "band_id", *selected)
}

// applyOptimistic is the shared commit-or-rollback primitive behind
// create/update/delete: snapshot, local apply, persist outside the lock,
// then reconcile or restore.
func (s *Session) applyOptimistic(local func(), persist func() (func(), error)) error {
	s.mu.Lock()
	snapshot := cloneList(s.gigs)
	local()
	s.notifyLocked()
	s.mu.Unlock()

	commit, err := persist()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.gigs = snapshot
		s.notifyLocked()
		return err
	}
	if commit != nil {
		commit()
		s.notifyLocked()
	}
	return nil
}

func (s *Session) removeLocked(id string) {
	for i := range s.gigs {
		if s.gigs[i].ID == id {
			s.gigs = append(s.gigs[:i], s.gigs[i+1:]...)
			return
		}
	}
}

func (s *Session) upsertLocked(g gig.VisibleGig) {
	for i := range s.gigs {
		if s.gigs[i].ID == g.ID {
			s.gigs[i] = g
			return
		}
	}
	s.gigs = append(s.gigs, g)
}

func (s *Session) notifyLocked() {
	snapshot := cloneList(s.gigs)
	for _, ch := range s.listeners {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func applyLocal(current gig.VisibleGig, patch gig.UpdatePatch, override *gig.OverridePatch) gig.VisibleGig {
	next := current
	if override != nil {
		if override.Title != nil {
			next.Title = *override.Title
		}
		if override.Value != nil {
			next.Value = override.Value
		}
		if override.Status != nil {
			next.Status = *override.Status
		}
		if override.Notes != nil {
			next.Notes = *override.Notes
		}
		next.Overridden = true
		return next
	}

	if patch.Title != nil {
		next.Title = *patch.Title
	}
	if patch.Date != nil {
		if date, err := gig.CanonicalDate(*patch.Date); err == nil {
			next.Date = date
		}
	}
	if patch.Location != nil {
		next.Location = *patch.Location
	}
	if patch.Value.Set {
		next.Value = patch.Value.Value
	}
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.Notes != nil {
		next.Notes = *patch.Notes
	}
	if patch.BandName != nil {
		next.BandName = *patch.BandName
	}
	return next
}

// equalSets compares two visible sets field by field. Identical sets mean a
// pushed snapshot carries no new information and must not cause a re-render.
// The pairwise walk over id-sorted copies keeps duplicate ids from collapsing
// onto one entry.
func equalSets(a, b []gig.VisibleGig) bool {
	if len(a) != len(b) {
		return false
	}
	as := cloneList(a)
	bs := cloneList(b)
	sort.Slice(as, func(i, j int) bool { return as[i].ID < as[j].ID })
	sort.Slice(bs, func(i, j int) bool { return bs[i].ID < bs[j].ID })
	for i := range as {
		if !equalGig(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func equalGig(a, b gig.VisibleGig) bool {
	return a.ID == b.ID &&
		a.OwnerID == b.OwnerID &&
		a.Title == b.Title &&
		a.Date == b.Date &&
		a.Status == b.Status &&
		a.Location == b.Location &&
		a.Notes == b.Notes &&
		a.BandName == b.BandName &&
		a.Overridden == b.Overridden &&
		equalPtr(a.Value, b.Value) &&
		equalPtr(a.BandID, b.BandID)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneList(list []gig.VisibleGig) []gig.VisibleGig {
	clone := make([]gig.VisibleGig, len(list))
	copy(clone, list)
	return clone
}

func cloneBandID(bandID *string) *string {
	if bandID == nil {
		return nil
	}
	id := *bandID
	return &id
}

func contextKey(bandID *string) string {
	if bandID == nil {
		return "personal"
	}
	return *bandID
}
