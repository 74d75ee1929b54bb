package handler

import (
	"gigbook/internal/domain/agenda"
	banddomain "gigbook/internal/domain/band"
	gigdomain "gigbook/internal/domain/gig"
	"gigbook/internal/domain/identity"
	"gigbook/pkg/logger"
)

type Handlers struct {
	Bands    *banddomain.Service
	Gigs     *gigdomain.Service
	Sessions *agenda.Manager
	Identity *identity.Cache
	Tenancy  *banddomain.TenancyCache

	log logger.Logger
}

func New(bands *banddomain.Service, gigs *gigdomain.Service, sessions *agenda.Manager, identityCache *identity.Cache, tenancyCache *banddomain.TenancyCache, log logger.Logger) *Handlers {
	return &Handlers{
		Bands:    bands,
		Gigs:     gigs,
		Sessions: sessions,
		Identity: identityCache,
		Tenancy:  tenancyCache,
		log:      log,
	}
}
