package identity

import "context"

// Viewer is the authenticated identity everything else is scoped to.
type Viewer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Verifier resolves an access token to a viewer.
type Verifier interface {
	Verify(ctx context.Context, token string) (Viewer, error)
}
