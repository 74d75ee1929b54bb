package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"gigbook/internal/config"
	"gigbook/internal/transport/httpserver/handler"
	authmw "gigbook/internal/transport/httpserver/middleware"
)

func NewRouter(cfg config.Config, handlers *handler.Handlers, auth *authmw.SupabaseAuth) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(authmw.NewCORS(cfg.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Use(chimw.Timeout(30 * time.Second))

			r.Get("/auth/me", handlers.AuthMe)
			r.Post("/auth/sign-out", handlers.SignOut)

			r.Get("/bands", handlers.ListBands)
			r.Post("/bands", handlers.CreateBand)
			r.Patch("/bands/{band_id}", handlers.UpdateBand)
			r.Delete("/bands/{band_id}", handlers.DeleteBand)
			r.Post("/bands/{band_id}/leave", handlers.LeaveBand)
			r.Get("/bands/{band_id}/members", handlers.ListBandMembers)
			r.Patch("/bands/{band_id}/members/{user_id}", handlers.ChangeMemberRole)
			r.Delete("/bands/{band_id}/members/{user_id}", handlers.RemoveBandMember)
			r.Get("/bands/{band_id}/invites", handlers.ListInvites)
			r.Post("/bands/{band_id}/invites", handlers.CreateInvite)
			r.Delete("/bands/{band_id}/invites/{invite_id}", handlers.CancelInvite)
			r.Post("/invites/accept", handlers.AcceptInvite)

			r.Get("/gigs", handlers.ListGigs)
			r.Post("/gigs", handlers.CreateGig)
			r.Delete("/gigs", handlers.DeleteAllGigs)
			r.Post("/gigs/import", handlers.ImportGigs)
			r.Patch("/gigs/{gig_id}", handlers.UpdateGig)
			r.Delete("/gigs/{gig_id}", handlers.DeleteGig)
			r.Post("/gigs/{gig_id}/toggle", handlers.ToggleGigStatus)
			r.Delete("/gigs/{gig_id}/override", handlers.ClearGigOverride)

			r.Get("/agenda", handlers.Agenda)
			r.Put("/agenda/context", handlers.SwitchAgendaContext)
			r.Post("/agenda/delete-many", handlers.DeleteManyGigs)
			r.Post("/agenda/undo", handlers.UndoDelete)
			r.Get("/agenda/export.ics", handlers.ExportAgenda)
		})

		// The event stream stays open past the request timeout budget.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)
			r.Get("/agenda/stream", handlers.StreamAgenda)
		})
	})

	return r
}
