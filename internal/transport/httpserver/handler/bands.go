package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gigbook/internal/transport/httpserver/middleware"
)

type bandRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

type createInviteRequest struct {
	Email string `json:"email"`
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

func (h *Handlers) ListBands(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bands, err := h.Bands.ListBands(r.Context(), viewer.ID)
	if err != nil {
		writeDomainError(w, h.log, "bands.list", err, "viewer_id", viewer.ID)
		return
	}
	writeJSON(w, http.StatusOK, bands)
}

func (h *Handlers) CreateBand(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req bandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	result, err := h.Bands.CreateBand(r.Context(), viewer.ID, req.Name, req.Description)
	if err != nil {
		writeDomainError(w, h.log, "bands.create", err, "viewer_id", viewer.ID)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) UpdateBand(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req bandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	result, err := h.Bands.UpdateBand(r.Context(), viewer.ID, bandID, req.Name, req.Description)
	if err != nil {
		writeDomainError(w, h.log, "bands.update", err, "band_id", bandID)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) DeleteBand(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	if err := h.Bands.DeleteBand(r.Context(), viewer.ID, bandID); err != nil {
		writeDomainError(w, h.log, "bands.delete", err, "band_id", bandID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) LeaveBand(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	if err := h.Bands.LeaveBand(r.Context(), viewer.ID, bandID); err != nil {
		writeDomainError(w, h.log, "bands.leave", err, "band_id", bandID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ListBandMembers(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	members, err := h.Bands.ListMembers(r.Context(), viewer.ID, bandID)
	if err != nil {
		writeDomainError(w, h.log, "bands.members", err, "band_id", bandID)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handlers) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req changeRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	targetID := chi.URLParam(r, "user_id")
	if err := h.Bands.ChangeMemberRole(r.Context(), viewer.ID, bandID, targetID, strings.TrimSpace(req.Role)); err != nil {
		writeDomainError(w, h.log, "bands.change_role", err, "band_id", bandID, "target_id", targetID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) RemoveBandMember(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	targetID := chi.URLParam(r, "user_id")
	if err := h.Bands.RemoveMember(r.Context(), viewer.ID, bandID, targetID); err != nil {
		writeDomainError(w, h.log, "bands.remove_member", err, "band_id", bandID, "target_id", targetID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) CreateInvite(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req createInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	invite, err := h.Bands.CreateInvite(r.Context(), viewer.ID, bandID, req.Email)
	if err != nil {
		writeDomainError(w, h.log, "bands.create_invite", err, "band_id", bandID)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"invite": invite,
		"link":   h.Bands.InviteLink(invite.Token),
	})
}

func (h *Handlers) ListInvites(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	invites, err := h.Bands.ListInvites(r.Context(), viewer.ID, bandID)
	if err != nil {
		writeDomainError(w, h.log, "bands.list_invites", err, "band_id", bandID)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

func (h *Handlers) CancelInvite(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	bandID := chi.URLParam(r, "band_id")
	inviteID := chi.URLParam(r, "invite_id")
	if err := h.Bands.CancelInvite(r.Context(), viewer.ID, bandID, inviteID); err != nil {
		writeDomainError(w, h.log, "bands.cancel_invite", err, "band_id", bandID, "invite_id", inviteID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AcceptInvite turns a valid token into a membership, marks the invite
// accepted and selects the band as the viewer's active context.
func (h *Handlers) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	var req acceptInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}
	token := strings.TrimSpace(req.Token)
	if token == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	joined, err := h.Bands.AcceptInvite(r.Context(), viewer.ID, viewer.Email, token)
	if err != nil {
		writeDomainError(w, h.log, "bands.accept_invite", err, "viewer_id", viewer.ID)
		return
	}

	session := h.Sessions.Session(r.Context(), viewer.ID)
	session.SwitchContext(r.Context(), &joined.ID)

	writeJSON(w, http.StatusOK, joined)
}
