package api

import (
	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/internal/infrastructure"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// Runtime is the infrastructure as seen by the API module: the shared
// systems, a logger tagged module=api, and the list paging limits.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
}

func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: infra.Scoped("module", "api"),
		Pagination:     cfg.API.Pagination,
	}
}
