package app

import (
	"net/http"

	"gorm.io/gorm"

	"gigbook/internal/adapters/email"
	"gigbook/internal/config"
	"gigbook/internal/db"
	"gigbook/internal/domain/agenda"
	"gigbook/internal/domain/band"
	"gigbook/internal/domain/gig"
	"gigbook/internal/domain/identity"
	"gigbook/internal/realtime"
	bandrepo "gigbook/internal/repository/postgres/band"
	gigrepo "gigbook/internal/repository/postgres/gig"
	"gigbook/internal/transport/httpserver"
	"gigbook/internal/transport/httpserver/handler"
	"gigbook/internal/transport/httpserver/middleware"
	"gigbook/pkg/logger"
)

type App struct {
	cfg        config.Config
	httpServer *http.Server
	db         *gorm.DB
	sessions   *agenda.Manager
}

func New(log logger.Logger) (*App, error) {
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	log.Info("app: initializing database")
	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(dbConn); err != nil {
		return nil, err
	}

	hub := realtime.NewHub()
	identityCache := identity.NewCache(cfg.Agenda.IdentityTTL)
	tenancyCache := band.NewTenancyCache(cfg.Agenda.TenancyTTL)

	mailer := email.NewMailer(cfg.Mailer, log)
	bands := band.NewService(bandrepo.NewPostgres(dbConn), tenancyCache, mailer, hub, log, cfg.Agenda.InviteExpiry, cfg.Mailer.InviteBase)

	gigs := gig.NewService(gigrepo.NewPostgres(dbConn), bands, hub, log)
	gigs.SetChunkSize(cfg.Agenda.ImportChunkSize)

	var selection agenda.SelectionStore
	if cfg.Agenda.SelectionPath != "" {
		selection = agenda.NewFileSelectionStore(cfg.Agenda.SelectionPath)
	} else {
		selection = agenda.NewMemorySelectionStore()
	}
	sessions := agenda.NewManager(gigs, bands, selection, log, agenda.Options{
		SwitchDebounce:  cfg.Agenda.SwitchDebounce,
		UndoWindow:      cfg.Agenda.UndoWindow,
		PollSchedule:    cfg.Agenda.PollSchedule,
		DeleteChunkSize: cfg.Agenda.DeleteChunkSize,
	})

	handlers := handler.New(bands, gigs, sessions, identityCache, tenancyCache, log)
	auth := middleware.NewSupabaseAuth(cfg.Supabase, identity.NewSupabaseVerifier(cfg.Supabase), identityCache, log)
	router := httpserver.NewRouter(cfg, handlers, auth)

	return &App{
		cfg:        cfg,
		httpServer: httpserver.New(cfg, router),
		db:         dbConn,
		sessions:   sessions,
	}, nil
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

func (a *App) Close() error {
	a.sessions.Close()

	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
