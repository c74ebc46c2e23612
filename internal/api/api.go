// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/internal/infrastructure"
	"github.com/abekarar/openimis-claimslens/pkg/middleware"
	"github.com/abekarar/openimis-claimslens/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The returned Domain lets the server start queue consumers over the same
// systems the handlers use.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, *Domain, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(cfg, runtime)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, nil, err
	}
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.MutationID)

	return m, domain, nil
}
