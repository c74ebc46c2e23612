package main

import (
	"fmt"
	"time"

	"github.com/abekarar/openimis-claimslens/internal/config"
	"github.com/abekarar/openimis-claimslens/internal/infrastructure"
	"github.com/abekarar/openimis-claimslens/pkg/lifecycle"
)

// starter is any subsystem that hooks itself into the lifecycle.
type starter interface {
	Start(lc *lifecycle.Coordinator) error
}

// Server owns the infrastructure and everything started on top of it:
// the HTTP listener and, when configured, the validation worker.
type Server struct {
	infra    *infrastructure.Infrastructure
	starters []namedStarter
}

type namedStarter struct {
	name string
	starter
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	modules.Mount(router)

	s := &Server{infra: infra}
	s.add("http", newHTTPServer(&cfg.Server, router, infra.Logger))
	if w := modules.validationWorker(infra, cfg); w != nil {
		s.add("validation worker", w)
	}

	infra.Logger.Info("claimlens initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"modules", router.Prefixes(),
	)
	return s, nil
}

func (s *Server) add(name string, st starter) {
	s.starters = append(s.starters, namedStarter{name, st})
}

// Start brings up the infrastructure, then each subsystem in order.
// Readiness is logged once every startup hook has completed.
func (s *Server) Start() error {
	if err := s.infra.Start(); err != nil {
		return err
	}
	for _, st := range s.starters {
		if err := st.Start(s.infra.Lifecycle); err != nil {
			return fmt.Errorf("start %s: %w", st.name, err)
		}
	}

	go func() {
		if err := s.infra.Lifecycle.WaitForStartup(); err != nil {
			s.infra.Logger.Error("startup failed", "error", err)
			return
		}
		s.infra.Logger.Info("ready")
	}()
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.infra.Logger.Info("shutting down", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
