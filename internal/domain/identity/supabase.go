package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gigbook/internal/config"
)

var ErrUnauthenticated = errors.New("not authenticated")

// SupabaseVerifier resolves access tokens against Supabase auth. When the
// project's JWT secret is configured the token is validated locally (the
// fast path); otherwise, or when local validation fails, it escalates to the
// /auth/v1/user endpoint.
type SupabaseVerifier struct {
	baseURL   string
	apiKey    string
	jwtSecret []byte
	client    *http.Client
}

func NewSupabaseVerifier(cfg config.SupabaseConfig) *SupabaseVerifier {
	timeout := cfg.AuthTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	var secret []byte
	if cfg.JWTSecret != "" {
		secret = []byte(cfg.JWTSecret)
	}

	return &SupabaseVerifier{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		apiKey:    cfg.PublishableKey,
		jwtSecret: secret,
		client:    &http.Client{Timeout: timeout},
	}
}

func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (Viewer, error) {
	if v.jwtSecret != nil {
		if viewer, err := v.verifyLocal(token); err == nil {
			return viewer, nil
		}
	}
	return v.verifyRemote(ctx, token)
}

func (v *SupabaseVerifier) verifyLocal(token string) (Viewer, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.jwtSecret, nil
	})
	if err != nil {
		return Viewer{}, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Viewer{}, ErrUnauthenticated
	}
	email, _ := claims["email"].(string)
	return Viewer{ID: sub, Email: email}, nil
}

type userResponse struct {
	ID    string `json:"id"`
	Sub   string `json:"sub"`
	Email string `json:"email"`
	User  struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

func (v *SupabaseVerifier) verifyRemote(ctx context.Context, token string) (Viewer, error) {
	if v.baseURL == "" || v.apiKey == "" {
		return Viewer{}, fmt.Errorf("supabase auth not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return Viewer{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", v.apiKey)

	resp, err := v.client.Do(req)
	if err != nil {
		return Viewer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Viewer{}, ErrUnauthenticated
	}

	var payload userResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Viewer{}, err
	}

	id := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if id == "" {
		return Viewer{}, ErrUnauthenticated
	}
	return Viewer{ID: id, Email: payload.Email}, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
