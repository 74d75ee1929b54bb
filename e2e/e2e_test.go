//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"gigbook/internal/adapters/email"
	"gigbook/internal/config"
	"gigbook/internal/db"
	"gigbook/internal/domain/agenda"
	banddomain "gigbook/internal/domain/band"
	gigdomain "gigbook/internal/domain/gig"
	"gigbook/internal/domain/identity"
	"gigbook/internal/realtime"
	bandrepo "gigbook/internal/repository/postgres/band"
	gigrepo "gigbook/internal/repository/postgres/gig"
	"gigbook/internal/transport/httpserver"
	"gigbook/internal/transport/httpserver/handler"
	"gigbook/internal/transport/httpserver/middleware"
	"gigbook/pkg/logger"
)

type testEnv struct {
	server     *httptest.Server
	authServer *httptest.Server
	db         *gorm.DB
	sessions   *agenda.Manager
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	authServer := newAuthServer(t)

	cfg := config.Config{
		DB: config.DBConfig{DSN: dsn},
		Supabase: config.SupabaseConfig{
			URL:            authServer.URL,
			PublishableKey: "test-key",
			AuthTimeout:    2 * time.Second,
		},
	}

	log := logger.New(io.Discard, slog.LevelError, "text")

	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}

	if err := db.Migrate(dbConn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := cleanDB(dbConn); err != nil {
		t.Fatalf("clean db: %v", err)
	}

	hub := realtime.NewHub()
	identityCache := identity.NewCache(time.Minute)
	tenancyCache := banddomain.NewTenancyCache(time.Minute)

	mailer := email.NewMailer(config.MailerConfig{}, log)
	bands := banddomain.NewService(bandrepo.NewPostgres(dbConn), tenancyCache, mailer, hub, log, 7*24*time.Hour, "https://gigbook.test")
	gigs := gigdomain.NewService(gigrepo.NewPostgres(dbConn), bands, hub, log)

	// Zero options keep context switches synchronous and disable the
	// background poller, so assertions can run right after each request.
	sessions := agenda.NewManager(gigs, bands, agenda.NewMemorySelectionStore(), log, agenda.Options{})

	handlers := handler.New(bands, gigs, sessions, identityCache, tenancyCache, log)
	auth := middleware.NewSupabaseAuth(cfg.Supabase, identity.NewSupabaseVerifier(cfg.Supabase), identityCache, log)
	router := httpserver.NewRouter(cfg, handlers, auth)
	server := httptest.NewServer(router)

	return &testEnv{server: server, authServer: authServer, db: dbConn, sessions: sessions}
}

func (e *testEnv) Close() {
	e.sessions.Close()
	e.server.Close()
	e.authServer.Close()
	sqlDB, err := e.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

// newAuthServer fakes the Supabase user endpoint: any bearer token is a
// valid user whose id is the token itself. Tokens are uuids because gig and
// band rows store owner ids in uuid columns.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		payload := map[string]interface{}{
			"id":    token,
			"email": token + "@example.com",
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}))
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.WithContext(context.Background()).Exec(
		"TRUNCATE TABLE personal_overrides, gigs, band_invites, band_members, bands RESTART IDENTITY CASCADE",
	).Error
}

func requestJSON(t *testing.T, client *http.Client, method, url, token string, payload interface{}) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	return resp, respBody
}

func requestRaw(t *testing.T, client *http.Client, method, url string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}

	return resp, respBody
}

func decodeBody(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(body, out); err != nil {
		t.Fatalf("decode response %s: %v", body, err)
	}
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type viewerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type bandResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"owner_id"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type memberResponse struct {
	BandID string `json:"band_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type inviteResponse struct {
	ID     string `json:"id"`
	BandID string `json:"band_id"`
	Email  string `json:"email"`
	Token  string `json:"token"`
	Status string `json:"status"`
}

type inviteEnvelope struct {
	Invite inviteResponse `json:"invite"`
	Link   string         `json:"link"`
}

type gigResponse struct {
	ID         string   `json:"id"`
	OwnerID    string   `json:"owner_id"`
	BandID     *string  `json:"band_id"`
	Title      string   `json:"title"`
	Date       string   `json:"date"`
	Location   string   `json:"location"`
	Value      *float64 `json:"value"`
	Status     string   `json:"status"`
	Notes      string   `json:"notes"`
	BandName   string   `json:"band_name"`
	Overridden bool     `json:"overridden"`
}

type statsResponse struct {
	Received float64 `json:"received"`
	Pending  float64 `json:"pending"`
	Total    float64 `json:"total"`
}

type gigListResponse struct {
	Gigs   []gigResponse `json:"gigs"`
	BandID *string       `json:"band_id"`
	Stats  statsResponse `json:"stats"`
}

type snapshotResponse struct {
	Gigs []gigResponse `json:"gigs"`
}

type rejectResponse struct {
	Index int    `json:"index"`
	Cause string `json:"cause"`
}

type importResponse struct {
	Created  []gigResponse    `json:"created"`
	Rejected []rejectResponse `json:"rejected"`
}

func findGig(gigs []gigResponse, id string) *gigResponse {
	for i := range gigs {
		if gigs[i].ID == id {
			return &gigs[i]
		}
	}
	return nil
}

func TestE2EHealthAndAuth(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}

	resp, body := requestRaw(t, client, http.MethodGet, env.server.URL+"/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/auth/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("auth/me without token status = %d, body %s", resp.StatusCode, body)
	}
	var envErr errorEnvelope
	decodeBody(t, body, &envErr)
	if envErr.Error.Code == "" {
		t.Fatalf("expected error envelope, got %s", body)
	}

	token := uuid.NewString()
	resp, body = requestJSON(t, client, http.MethodGet, env.server.URL+"/api/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auth/me status = %d, body %s", resp.StatusCode, body)
	}
	var viewer viewerResponse
	decodeBody(t, body, &viewer)
	if viewer.ID != token || viewer.Email != token+"@example.com" {
		t.Fatalf("unexpected viewer %+v", viewer)
	}
}

func TestE2EPersonalGigLifecycle(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	alice := uuid.NewString()
	base := env.server.URL + "/api"

	// Day-first slash dates are accepted and stored canonically.
	value := 300.0
	resp, body := requestJSON(t, client, http.MethodPost, base+"/gigs", alice, map[string]interface{}{
		"title":    "Jazz night",
		"date":     "5/6/2025",
		"location": "Blue Room",
		"value":    value,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create gig status = %d, body %s", resp.StatusCode, body)
	}
	var created gigResponse
	decodeBody(t, body, &created)
	if created.Date != "2025-06-05" {
		t.Fatalf("date = %q, want 2025-06-05", created.Date)
	}
	if created.Status != "PENDING" {
		t.Fatalf("status = %q, want PENDING", created.Status)
	}
	if created.BandID != nil {
		t.Fatalf("personal gig got band id %v", *created.BandID)
	}

	resp, body = requestJSON(t, client, http.MethodPost, base+"/gigs", alice, map[string]interface{}{
		"title": "Festival set",
		"date":  "2025-7-1",
		"value": 500.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create second gig status = %d, body %s", resp.StatusCode, body)
	}
	var second gigResponse
	decodeBody(t, body, &second)

	resp, body = requestJSON(t, client, http.MethodPost, base+"/gigs/"+second.ID+"/toggle", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, body %s", resp.StatusCode, body)
	}
	var list gigListResponse
	decodeBody(t, body, &list)
	if len(list.Gigs) != 2 {
		t.Fatalf("got %d gigs, want 2", len(list.Gigs))
	}
	// Lexicographic date order is chronological order.
	if list.Gigs[0].ID != created.ID || list.Gigs[1].ID != second.ID {
		t.Fatalf("unexpected order: %s then %s", list.Gigs[0].ID, list.Gigs[1].ID)
	}
	if list.Stats.Received != 500 || list.Stats.Pending != 300 || list.Stats.Total != 800 {
		t.Fatalf("stats = %+v", list.Stats)
	}

	// Patch with an explicit null clears the amount; absence leaves it alone.
	resp, body = requestJSON(t, client, http.MethodPatch, base+"/gigs/"+created.ID, alice, map[string]interface{}{
		"title": "Jazz night (late)",
		"value": nil,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", resp.StatusCode, body)
	}
	var snap snapshotResponse
	decodeBody(t, body, &snap)
	patched := findGig(snap.Gigs, created.ID)
	if patched == nil {
		t.Fatalf("patched gig missing from snapshot %s", body)
	}
	if patched.Title != "Jazz night (late)" || patched.Value != nil {
		t.Fatalf("patched gig = %+v", patched)
	}

	// Filters narrow the stateless view.
	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs?status=PAID", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("filtered list status = %d, body %s", resp.StatusCode, body)
	}
	decodeBody(t, body, &list)
	if len(list.Gigs) != 1 || list.Gigs[0].ID != second.ID {
		t.Fatalf("filtered list = %s", body)
	}

	resp, body = requestJSON(t, client, http.MethodDelete, base+"/gigs/"+second.ID, alice, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs", alice, nil)
	decodeBody(t, body, &list)
	if len(list.Gigs) != 1 {
		t.Fatalf("got %d gigs after delete, want 1", len(list.Gigs))
	}

	// Undo brings the deleted gig back under a fresh id.
	resp, body = requestJSON(t, client, http.MethodPost, base+"/agenda/undo", alice, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("undo status = %d, body %s", resp.StatusCode, body)
	}
	var restored gigResponse
	decodeBody(t, body, &restored)
	if restored.ID == second.ID {
		t.Fatalf("undo reused the deleted id %s", second.ID)
	}
	if restored.Title != "Festival set" || restored.Status != "PAID" {
		t.Fatalf("restored gig = %+v", restored)
	}

	resp, body = requestJSON(t, client, http.MethodPost, base+"/agenda/undo", alice, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second undo status = %d, body %s", resp.StatusCode, body)
	}
}

func TestE2EBandSharingAndOverrides(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	alice := uuid.NewString()
	bob := uuid.NewString()
	base := env.server.URL + "/api"

	resp, body := requestJSON(t, client, http.MethodPost, base+"/bands", alice, map[string]interface{}{
		"name": "The Night Owls",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create band status = %d, body %s", resp.StatusCode, body)
	}
	var band bandResponse
	decodeBody(t, body, &band)
	if band.OwnerID != alice {
		t.Fatalf("band owner = %s, want %s", band.OwnerID, alice)
	}

	resp, body = requestJSON(t, client, http.MethodPost, base+"/bands/"+band.ID+"/invites", alice, map[string]interface{}{
		"email": bob + "@example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create invite status = %d, body %s", resp.StatusCode, body)
	}
	var invite inviteEnvelope
	decodeBody(t, body, &invite)
	if invite.Invite.Token == "" || !strings.Contains(invite.Link, invite.Invite.Token) {
		t.Fatalf("invite envelope = %s", body)
	}

	resp, body = requestJSON(t, client, http.MethodPost, base+"/invites/accept", bob, map[string]interface{}{
		"token": invite.Invite.Token,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept invite status = %d, body %s", resp.StatusCode, body)
	}
	var joined bandResponse
	decodeBody(t, body, &joined)
	if joined.ID != band.ID {
		t.Fatalf("joined band %s, want %s", joined.ID, band.ID)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/bands/"+band.ID+"/members", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list members status = %d, body %s", resp.StatusCode, body)
	}
	var members []memberResponse
	decodeBody(t, body, &members)
	if len(members) != 2 {
		t.Fatalf("got %d members, want 2", len(members))
	}

	// Alice creates a shared gig through her band context.
	resp, body = requestJSON(t, client, http.MethodPut, base+"/agenda/context", alice, map[string]interface{}{
		"band_id": band.ID,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("switch context status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodPost, base+"/gigs", alice, map[string]interface{}{
		"title": "Warehouse party",
		"date":  "2025-09-20",
		"value": 400.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create band gig status = %d, body %s", resp.StatusCode, body)
	}
	var shared gigResponse
	decodeBody(t, body, &shared)
	if shared.BandID == nil || *shared.BandID != band.ID {
		t.Fatalf("gig band id = %v, want %s", shared.BandID, band.ID)
	}

	// The shared gig shows up in both the band view and bob's personal view.
	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs?band_id="+band.ID, bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("band view status = %d, body %s", resp.StatusCode, body)
	}
	var list gigListResponse
	decodeBody(t, body, &list)
	if len(list.Gigs) != 1 || list.Gigs[0].ID != shared.ID {
		t.Fatalf("band view = %s", body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs", bob, nil)
	decodeBody(t, body, &list)
	merged := findGig(list.Gigs, shared.ID)
	if merged == nil || merged.Overridden {
		t.Fatalf("bob's personal view = %s", body)
	}

	// Bob overrides the amount for himself only.
	bobValue := 150.0
	resp, body = requestJSON(t, client, http.MethodPatch, base+"/gigs/"+shared.ID+"?as_override=true", bob, map[string]interface{}{
		"value": bobValue,
		"notes": "my cut",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("override status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs", bob, nil)
	decodeBody(t, body, &list)
	merged = findGig(list.Gigs, shared.ID)
	if merged == nil || !merged.Overridden {
		t.Fatalf("bob's view after override = %s", body)
	}
	if merged.Value == nil || *merged.Value != bobValue || merged.Notes != "my cut" {
		t.Fatalf("bob's projection = %+v", merged)
	}
	// Unset fields still inherit from the shared record.
	if merged.Title != "Warehouse party" {
		t.Fatalf("override leaked into title: %+v", merged)
	}

	// The shared record and alice's view are untouched.
	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs?band_id="+band.ID, alice, nil)
	decodeBody(t, body, &list)
	if list.Gigs[0].Value == nil || *list.Gigs[0].Value != 400 || list.Gigs[0].Notes != "" {
		t.Fatalf("shared record changed: %+v", list.Gigs[0])
	}

	// The owner cannot override their own band gig.
	resp, body = requestJSON(t, client, http.MethodPatch, base+"/gigs/"+shared.ID+"?as_override=true", alice, map[string]interface{}{
		"value": 1.0,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("owner override status = %d, body %s", resp.StatusCode, body)
	}

	// An override delete hides the gig from bob without touching the row.
	resp, body = requestJSON(t, client, http.MethodDelete, base+"/gigs/"+shared.ID+"?as_override=true", bob, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("hide status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs", bob, nil)
	decodeBody(t, body, &list)
	if findGig(list.Gigs, shared.ID) != nil {
		t.Fatalf("hidden gig still in bob's view: %s", body)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs?band_id="+band.ID, alice, nil)
	decodeBody(t, body, &list)
	if len(list.Gigs) != 1 {
		t.Fatalf("shared row vanished: %s", body)
	}

	// Clearing the overlay restores the inherited projection.
	resp, body = requestJSON(t, client, http.MethodDelete, base+"/gigs/"+shared.ID+"/override", bob, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear override status = %d, body %s", resp.StatusCode, body)
	}
	var cleared gigResponse
	decodeBody(t, body, &cleared)
	if cleared.Overridden || cleared.Value == nil || *cleared.Value != 400 {
		t.Fatalf("cleared projection = %+v", cleared)
	}
}

func TestE2EImportAndDeleteAll(t *testing.T) {
	env := setupE2E(t)
	defer env.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	alice := uuid.NewString()
	base := env.server.URL + "/api"

	resp, body := requestJSON(t, client, http.MethodPost, base+"/gigs/import", alice, map[string]interface{}{
		"rows": []map[string]interface{}{
			{"title": "Opening slot", "date": "12/1/2025", "location": "Dock 5"},
			{"band_name": "The Night Owls", "date": "2025-03-08"},
			{"title": "No date at all"},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("import status = %d, body %s", resp.StatusCode, body)
	}
	var imported importResponse
	decodeBody(t, body, &imported)
	if len(imported.Created) != 2 {
		t.Fatalf("created %d gigs, want 2", len(imported.Created))
	}
	if len(imported.Rejected) != 1 || imported.Rejected[0].Index != 2 {
		t.Fatalf("rejected = %v, want row 2", imported.Rejected)
	}
	for _, g := range imported.Created {
		if g.Status != "PENDING" {
			t.Fatalf("imported gig status = %q", g.Status)
		}
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs?q=owls", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d, body %s", resp.StatusCode, body)
	}
	var list gigListResponse
	decodeBody(t, body, &list)
	if len(list.Gigs) != 1 || list.Gigs[0].Title != "The Night Owls" {
		t.Fatalf("search result = %s", body)
	}

	resp, body = requestJSON(t, client, http.MethodDelete, base+"/gigs", alice, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete all status = %d, body %s", resp.StatusCode, body)
	}
	var wiped struct {
		Deleted int64 `json:"deleted"`
	}
	decodeBody(t, body, &wiped)
	if wiped.Deleted != 2 {
		t.Fatalf("deleted = %d, want 2", wiped.Deleted)
	}

	resp, body = requestJSON(t, client, http.MethodGet, base+"/gigs", alice, nil)
	decodeBody(t, body, &list)
	if len(list.Gigs) != 0 {
		t.Fatalf("gigs left after delete all: %s", body)
	}
}
