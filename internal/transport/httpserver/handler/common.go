package handler

import (
	"net/http"

	"gigbook/internal/transport/httpserver/middleware"
)

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) AuthMe(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, viewer)
}

// SignOut drops everything keyed to the viewer: the cached identity entry,
// the cached memberships and the live agenda session.
func (h *Handlers) SignOut(w http.ResponseWriter, r *http.Request) {
	viewer, ok := middleware.ViewerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return
	}

	if token, ok := middleware.TokenFromContext(r.Context()); ok {
		h.Identity.Invalidate(token)
	}
	h.Tenancy.Invalidate()
	h.Sessions.Drop(viewer.ID)

	w.WriteHeader(http.StatusNoContent)
}
