package main

import (
	"context"
	"net/http"
	"time"

	"github.com/abekarar/openimis-claimslens/internal/api"
	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/internal/dispatch"
	"github.com/abekarar/openimis-claimslens/internal/infrastructure"
	"github.com/abekarar/openimis-claimslens/internal/validation"
	"github.com/abekarar/openimis-claimslens/pkg/handlers"
	"github.com/abekarar/openimis-claimslens/pkg/module"
)

type Modules struct {
	API    *module.Module
	Domain *api.Domain
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, domain, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Modules{
		API:    apiModule,
		Domain: domain,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

// validationWorker consumes the validation queue in-process. It returns
// nil when the configuration leaves the queue to external workers.
func (m *Modules) validationWorker(infra *infrastructure.Infrastructure, cfg *config.Config) *dispatch.Worker {
	if cfg.Processing.Workers() == 0 {
		return nil
	}
	return dispatch.NewWorker(
		infra.Redis,
		dispatch.Queues{
			Preprocessing: cfg.Processing.PreprocessingQueue,
			Validation:    cfg.Processing.ValidationQueue,
		},
		dispatch.WorkerConfig{
			Concurrency:    cfg.Processing.Workers(),
			DequeueTimeout: cfg.Processing.DequeueTimeoutDuration(),
		},
		validation.JobHandler(m.Domain.Validation),
		infra.Logger,
	)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "redis": "ok"}
		status := http.StatusOK
		if err := infra.Database.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := infra.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}

		handlers.RespondJSON(w, status, map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	})

	return router
}
