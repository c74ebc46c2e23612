package api

import (
	"github.com/abekarar/openimis-claimslens/internal/audit"
	"github.com/abekarar/openimis-claimslens/internal/capabilities"
	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/internal/dispatch"
	"github.com/abekarar/openimis-claimslens/internal/doctypes"
	"github.com/abekarar/openimis-claimslens/internal/documents"
	"github.com/abekarar/openimis-claimslens/internal/engines"
	"github.com/abekarar/openimis-claimslens/internal/extractions"
	"github.com/abekarar/openimis-claimslens/internal/prompts"
	"github.com/abekarar/openimis-claimslens/internal/proposals"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/routing"
	"github.com/abekarar/openimis-claimslens/internal/rules"
	"github.com/abekarar/openimis-claimslens/internal/settings"
	"github.com/abekarar/openimis-claimslens/internal/validation"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Audit        audit.System
	Capabilities capabilities.System
	Dispatch     dispatch.System
	DocTypes     doctypes.System
	Documents    documents.System
	Engines      engines.System
	Extractions  extractions.System
	Prompts      prompts.System
	Proposals    proposals.System
	Registry     registry.System
	Routing      routing.System
	Rules        rules.System
	Settings     settings.System
	Validation   validation.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	db := runtime.Database.Connection()
	lockTTL := cfg.Processing.LockTTLDuration()

	queues := dispatch.Queues{
		Preprocessing: cfg.Processing.PreprocessingQueue,
		Validation:    cfg.Processing.ValidationQueue,
	}
	dispatchSystem := dispatch.New(runtime.Redis, queues, runtime.Logger)

	auditSystem := audit.New(db, runtime.Logger)
	settingsSystem := settings.New(db, runtime.Logger)
	registrySystem := registry.New(db, cfg.Processing.RegistryTimeoutDuration(), runtime.Logger)

	enginesSystem := engines.New(
		db,
		engines.NewSealer(cfg.Engines.Key()),
		runtime.Logger,
		runtime.Pagination,
	)
	capabilitiesSystem := capabilities.New(db, runtime.Logger, runtime.Pagination)
	routingSystem := routing.New(
		db,
		enginesSystem,
		capabilitiesSystem,
		runtime.Logger,
		runtime.Pagination,
	)

	doctypesSystem := doctypes.New(db, runtime.Logger, runtime.Pagination)
	promptsSystem := prompts.New(db, runtime.Logger, runtime.Pagination)

	docsSystem := documents.New(
		db,
		runtime.Storage,
		runtime.Locker,
		lockTTL,
		routingSystem,
		promptsSystem,
		registrySystem,
		dispatchSystem,
		documents.UploadConfig{
			MaxSize:      cfg.API.MaxUploadSizeBytes(),
			AllowedTypes: cfg.API.AllowedMimeTypes,
		},
		runtime.Logger,
		runtime.Pagination,
	)

	extractionsSystem := extractions.New(
		db,
		runtime.Locker,
		lockTTL,
		settingsSystem,
		runtime.Logger,
		runtime.Pagination,
	)

	rulesSystem := rules.New(db, runtime.Logger, runtime.Pagination)

	proposalsSystem := proposals.New(
		db,
		registrySystem,
		runtime.Locker,
		lockTTL,
		runtime.Logger,
		runtime.Pagination,
	)

	validationSystem := validation.New(
		db,
		validation.Deps{
			Documents:   docsSystem,
			Extractions: extractionsSystem,
			Registry:    registrySystem,
			Rules:       rulesSystem,
			Settings:    settingsSystem,
			Dispatch:    dispatchSystem,
		},
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Audit:        auditSystem,
		Capabilities: capabilitiesSystem,
		Dispatch:     dispatchSystem,
		DocTypes:     doctypesSystem,
		Documents:    docsSystem,
		Engines:      enginesSystem,
		Extractions:  extractionsSystem,
		Prompts:      promptsSystem,
		Proposals:    proposalsSystem,
		Registry:     registrySystem,
		Routing:      routingSystem,
		Rules:        rulesSystem,
		Settings:     settingsSystem,
		Validation:   validationSystem,
	}
}
