package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-ical"

	"gigbook/internal/domain/agenda"
	gigdomain "gigbook/internal/domain/gig"
	"gigbook/internal/transport/httpserver/middleware"
)

type switchContextRequest struct {
	BandID *string `json:"band_id"`
}

type deleteManyRequest struct {
	IDs []string `json:"ids"`
}

// Agenda returns the live view of the viewer's active context: the current
// snapshot narrowed by the query filters, plus its financial stats.
func (h *Handlers) Agenda(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	gigs, stats := session.Filtered(filterParams(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"gigs":    gigs,
		"band_id": session.Context(),
		"stats":   stats,
	})
}

// SwitchAgendaContext selects the personal calendar (band_id null) or one of
// the viewer's bands as the active context. The switch is debounced; the
// response returns immediately and the new snapshot arrives on the stream.
func (h *Handlers) SwitchAgendaContext(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req switchContextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	session.SwitchContext(r.Context(), req.BandID)
	writeJSON(w, http.StatusAccepted, map[string]any{"band_id": req.BandID})
}

// StreamAgenda pushes snapshot updates over server-sent events. The first
// event carries the current state; afterwards one event per settled change,
// with intermediate states coalesced away for slow readers.
func (h *Handlers) StreamAgenda(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	updates, cancel := session.Watch()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(gigs []gigdomain.VisibleGig) bool {
		payload, err := json.Marshal(map[string]any{
			"gigs":    gigs,
			"band_id": session.Context(),
		})
		if err != nil {
			h.log.InternalError("agenda.stream: marshal failed", err, "viewer_id", viewer.ID)
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !writeEvent(session.Snapshot()) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-updates:
			if !open {
				return
			}
			if !writeEvent(snapshot) {
				return
			}
		}
	}
}

// DeleteManyGigs removes a selection of gigs from the active context. On a
// partial failure the failed entries are already back in the snapshot and
// their ids are reported with a 409.
func (h *Handlers) DeleteManyGigs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req deleteManyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "ids is required")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	err := session.DeleteMany(r.Context(), req.IDs)

	var batchErr *agenda.BatchDeleteError
	if errors.As(err, &batchErr) {
		h.log.BusinessError("agenda.delete_many: partial failure", err, "viewer_id", viewer.ID, "failed", len(batchErr.Failed))
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "partial_delete_failure",
			"failed": batchErr.Failed,
			"gigs":   session.Snapshot(),
		})
		return
	}
	if err != nil {
		writeDomainError(w, h.log, "agenda.delete_many", err, "viewer_id", viewer.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gigs": session.Snapshot()})
}

// UndoDelete recreates the most recently deleted gig if the undo window is
// still open. The recreated row carries a fresh id.
func (h *Handlers) UndoDelete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	recreated, err := session.Undo(r.Context())
	if errors.Is(err, agenda.ErrNothingToUndo) {
		writeError(w, http.StatusConflict, "nothing_to_undo", "nothing to undo")
		return
	}
	if err != nil {
		writeDomainError(w, h.log, "agenda.undo", err, "viewer_id", viewer.ID)
		return
	}
	writeJSON(w, http.StatusCreated, recreated)
}

// ExportAgenda renders the active context as an iCalendar file of all-day
// events, after applying the usual query filters.
func (h *Handlers) ExportAgenda(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	gigs, _ := session.Filtered(filterParams(r))

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//gigbook//EN")

	now := time.Now().UTC()
	for _, g := range gigs {
		day, err := time.Parse(gigdomain.DateLayout, g.Date)
		if err != nil {
			h.log.InternalError("agenda.export: bad stored date", err, "gig_id", g.ID, "date", g.Date)
			continue
		}

		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, g.ID+"@gigbook")
		event.Props.SetDateTime(ical.PropDateTimeStamp, now)
		event.Props.SetText(ical.PropSummary, g.Title)
		if g.Location != "" {
			event.Props.SetText(ical.PropLocation, g.Location)
		}
		if g.Notes != "" {
			event.Props.SetText(ical.PropDescription, g.Notes)
		}

		start := ical.NewProp(ical.PropDateTimeStart)
		start.SetValueType(ical.ValueDate)
		start.Value = day.Format("20060102")
		event.Props.Set(start)

		cal.Children = append(cal.Children, event.Component)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="gigs.ics"`)
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		h.log.InternalError("agenda.export: encode failed", err, "viewer_id", viewer.ID)
	}
}
