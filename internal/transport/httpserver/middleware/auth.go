package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gigbook/internal/config"
	"gigbook/internal/domain/identity"
	"gigbook/pkg/logger"
)

type contextKey int

const (
	viewerKey contextKey = iota
	tokenKey
)

// SupabaseAuth authenticates bearer tokens through the identity cache so a
// burst of repository calls costs at most one verification round trip.
type SupabaseAuth struct {
	verifier identity.Verifier
	cache    *identity.Cache
	log      logger.Logger
	skipAuth bool
	mock     identity.Viewer
}

func NewSupabaseAuth(cfg config.SupabaseConfig, verifier identity.Verifier, cache *identity.Cache, log logger.Logger) *SupabaseAuth {
	return &SupabaseAuth{
		verifier: verifier,
		cache:    cache,
		log:      log,
		skipAuth: cfg.SkipAuth,
		mock: identity.Viewer{
			ID:    strings.TrimSpace(cfg.MockViewerID),
			Email: strings.TrimSpace(cfg.MockViewerMail),
		},
	}
}

func (a *SupabaseAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			if a.mock.ID == "" {
				writeError(w, http.StatusInternalServerError, "auth_not_configured", "auth mock viewer id not configured")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), a.mock, "")))
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		viewer, ok := a.cache.Get(token)
		if !ok {
			var err error
			viewer, err = a.verifier.Verify(r.Context(), token)
			if err != nil {
				a.log.BusinessError("auth: verify failed", err)
				unauthorized(w)
				return
			}
			a.cache.Set(token, viewer)
		}

		next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), viewer, token)))
	})
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
}

func WithViewer(ctx context.Context, viewer identity.Viewer, token string) context.Context {
	ctx = context.WithValue(ctx, viewerKey, viewer)
	return context.WithValue(ctx, tokenKey, token)
}

func ViewerFromContext(ctx context.Context) (identity.Viewer, bool) {
	viewer, ok := ctx.Value(viewerKey).(identity.Viewer)
	if !ok || viewer.ID == "" {
		return identity.Viewer{}, false
	}
	return viewer, true
}

// TokenFromContext exposes the raw bearer token so sign-out can evict it
// from the identity cache.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok && token != ""
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
