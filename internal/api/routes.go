package api

import (
	"net/http"

	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		auth.Guard(runtime.Auth, runtime.Logger),
		groups(domain, runtime)...,
	)
}

func groups(domain *Domain, runtime *Runtime) []routes.Group {
	return []routes.Group{
		domain.Documents.Handler().Routes(),
		domain.Audit.Handler().Routes(),
		domain.Extractions.Handler().Routes(),
		domain.DocTypes.Handler().Routes(),
		domain.Engines.Handler().Routes(),
		domain.Capabilities.Handler().Routes(),
		domain.Routing.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
		domain.Rules.Handler().Routes(),
		domain.Validation.Handler().Routes(),
		domain.Proposals.Handler().Routes(),
		domain.Settings.Handler().Routes(),
		newStorageHandler(runtime.Storage, runtime.Logger).routes(),
	}
}
