package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gigbook/internal/domain/agenda"
	gigdomain "gigbook/internal/domain/gig"
	"gigbook/internal/importer"
	"gigbook/internal/transport/httpserver/middleware"
)

type gigRequest struct {
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Location string   `json:"location"`
	Value    *float64 `json:"value"`
	Status   string   `json:"status"`
	Notes    string   `json:"notes"`
	BandName string   `json:"band_name"`
}

// gigPatchRequest is a partial update. Absent fields are left alone; for the
// amount, an explicit JSON null clears it while absence means no change.
type gigPatchRequest struct {
	Title    *string         `json:"title"`
	Date     *string         `json:"date"`
	Location *string         `json:"location"`
	Value    json.RawMessage `json:"value"`
	Status   *string         `json:"status"`
	Notes    *string         `json:"notes"`
	BandName *string         `json:"band_name"`
}

func (req gigPatchRequest) patch() (gigdomain.UpdatePatch, error) {
	patch := gigdomain.UpdatePatch{
		Title:    req.Title,
		Date:     req.Date,
		Location: req.Location,
		Notes:    req.Notes,
		BandName: req.BandName,
	}
	if req.Status != nil {
		status := gigdomain.Status(*req.Status)
		patch.Status = &status
	}
	if len(req.Value) > 0 {
		patch.Value.Set = true
		if string(req.Value) != "null" {
			var value float64
			if err := json.Unmarshal(req.Value, &value); err != nil {
				return patch, err
			}
			patch.Value.Value = &value
		}
	}
	return patch, nil
}

// overrideRequest is a full write of the viewer's overlay: nil fields fall
// back to the shared values.
type overrideRequest struct {
	Title  *string  `json:"title"`
	Value  *float64 `json:"value"`
	Status *string  `json:"status"`
	Notes  *string  `json:"notes"`
	Hidden bool     `json:"hidden"`
}

func (req overrideRequest) patch() *gigdomain.OverridePatch {
	patch := &gigdomain.OverridePatch{
		Title:  req.Title,
		Value:  req.Value,
		Notes:  req.Notes,
		Hidden: req.Hidden,
	}
	if req.Status != nil {
		status := gigdomain.Status(*req.Status)
		patch.Status = &status
	}
	return patch
}

type importRequest struct {
	Rows []importer.Row `json:"rows"`
}

// ListGigs serves the stateless resource view of a scope: personal (merged
// with the viewer's overrides) or one band (raw shared rows). Filters and
// stats apply to whatever the query narrows the set down to.
func (h *Handlers) ListGigs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := bandIDParam(r)
	gigs, err := h.Gigs.Fetch(r.Context(), viewer.ID, bandID)
	if err != nil {
		writeDomainError(w, h.log, "gigs.list", err, "viewer_id", viewer.ID)
		return
	}

	filtered := agenda.Apply(gigs, filterParams(r))
	writeJSON(w, http.StatusOK, map[string]any{
		"gigs":    filtered,
		"band_id": bandID,
		"stats":   agenda.Reduce(filtered),
	})
}

// CreateGig creates a gig in the viewer's active context through the live
// session, so the caller's next snapshot already contains it.
func (h *Handlers) CreateGig(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req gigRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	created, err := session.Create(r.Context(), gigdomain.CreateInput{
		Title:    req.Title,
		Date:     req.Date,
		Location: req.Location,
		Value:    req.Value,
		Status:   gigdomain.Status(req.Status),
		Notes:    req.Notes,
		BandName: req.BandName,
	})
	if err != nil {
		writeDomainError(w, h.log, "gigs.create", err, "viewer_id", viewer.ID)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateGig patches a gig. With as_override=true the body is written to the
// viewer's personal overlay instead of the shared row.
func (h *Handlers) UpdateGig(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	gigID := chi.URLParam(r, "gig_id")
	session := h.Sessions.Session(r.Context(), viewer.ID)

	if boolParam(r, "as_override") {
		var req overrideRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
			return
		}
		if err := session.Update(r.Context(), gigID, gigdomain.UpdatePatch{}, req.patch()); err != nil {
			writeDomainError(w, h.log, "gigs.override", err, "gig_id", gigID)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"gigs": session.Snapshot()})
		return
	}

	var req gigPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	patch, err := req.patch()
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "value must be a number or null")
		return
	}

	if err := session.Update(r.Context(), gigID, patch, nil); err != nil {
		writeDomainError(w, h.log, "gigs.update", err, "gig_id", gigID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gigs": session.Snapshot()})
}

// ToggleGigStatus flips a gig between PENDING and PAID, as an override when
// asked.
func (h *Handlers) ToggleGigStatus(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	gigID := chi.URLParam(r, "gig_id")
	session := h.Sessions.Session(r.Context(), viewer.ID)
	if err := session.ToggleStatus(r.Context(), gigID, boolParam(r, "as_override")); err != nil {
		writeDomainError(w, h.log, "gigs.toggle", err, "gig_id", gigID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gigs": session.Snapshot()})
}

// DeleteGig removes a gig. With as_override=true the shared row survives and
// is only hidden from the viewer. A hard delete can be undone for a short
// window through the agenda undo endpoint.
func (h *Handlers) DeleteGig(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	gigID := chi.URLParam(r, "gig_id")
	session := h.Sessions.Session(r.Context(), viewer.ID)
	if err := session.Delete(r.Context(), gigID, boolParam(r, "as_override")); err != nil {
		writeDomainError(w, h.log, "gigs.delete", err, "gig_id", gigID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearGigOverride drops the viewer's overlay so the shared values show
// through again. The refreshed projection comes back in the response.
func (h *Handlers) ClearGigOverride(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	gigID := chi.URLParam(r, "gig_id")
	restored, err := h.Gigs.ClearOverride(r.Context(), viewer.ID, gigID)
	if err != nil {
		writeDomainError(w, h.log, "gigs.clear_override", err, "gig_id", gigID)
		return
	}
	writeJSON(w, http.StatusOK, restored)
}

// DeleteAllGigs wipes a whole scope: the viewer's personal gigs, or every
// gig of a band the viewer owns.
func (h *Handlers) DeleteAllGigs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := bandIDParam(r)
	deleted, err := h.Gigs.DeleteAll(r.Context(), viewer.ID, bandID)
	if err != nil {
		writeDomainError(w, h.log, "gigs.delete_all", err, "viewer_id", viewer.ID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

// ImportGigs validates raw parsed rows and bulk-creates the good ones as
// personal gigs. Rows that fail validation are reported back, not dropped
// silently.
func (h *Handlers) ImportGigs(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	prepared := importer.Prepare(req.Rows)
	created, err := h.Gigs.CreateMany(r.Context(), viewer.ID, prepared.Inputs)
	if err != nil {
		writeDomainError(w, h.log, "gigs.import", err, "viewer_id", viewer.ID, "rows", len(req.Rows))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"created":  created,
		"rejected": prepared.Rejected,
	})
}
