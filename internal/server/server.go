// Package server wires the connection manager's components together: the
// database, the profile store and interface state table, the link drivers
// and device probe, the connection engine, the supervisor loop, and the
// management HTTP API. One Server is constructed at startup and passed its
// collaborators explicitly, so tests can build multiple isolated instances.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"netmand/internal/api"
	"netmand/internal/auth"
	"netmand/internal/config"
	"netmand/internal/database"
	"netmand/internal/drivers"
	"netmand/internal/engine"
	"netmand/internal/store"
	"netmand/internal/supervisor"
)

// Server owns the daemon's component graph and its HTTP listener.
type Server struct {
	cfg  config.Config          // Daemon configuration
	db   *database.Database     // Shared database handle
	sup  *supervisor.Supervisor // Health-check and reconnection loop
	http *http.Server           // Management API listener
}

// New constructs the full component graph from configuration: it opens the
// database, builds the stores, registers the link drivers, creates the
// engine and supervisor, ensures the bootstrap admin account, and prepares
// the HTTP router. Returns the assembled Server or an error.
func New(cfg config.Config) (*Server, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	profiles := store.NewProfileStore(db)
	states := store.NewInterfaceStateTable(db)
	probe := drivers.NewSysfsProbe()
	registry := drivers.NewDefaultRegistry()

	eng := engine.New(profiles, states, registry, probe, engine.Timeouts{
		Wired:    cfg.Timeouts.Wired(),
		Wireless: cfg.Timeouts.Wireless(),
		Tunnel:   cfg.Timeouts.Tunnel(),
	})

	sup := supervisor.New(eng, profiles, states, probe, supervisor.Config{
		PollInterval:       cfg.Supervisor.PollInterval(),
		GracePeriod:        cfg.Supervisor.GracePeriod(),
		ErrorBackoff:       cfg.Supervisor.ErrorBackoff,
		StartupAutoConnect: cfg.Supervisor.StartupAutoConnect == nil || *cfg.Supervisor.StartupAutoConnect,
	})

	authSvc := auth.NewService(db, cfg.JWTSecret)
	if err := authSvc.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, err
	}

	router := gin.Default()
	api.New(profiles, states, eng, sup, probe, authSvc).RegisterRoutes(router)

	return &Server{
		cfg: cfg,
		db:  db,
		sup: sup,
		http: &http.Server{
			Addr:    cfg.Listen,
			Handler: router,
		},
	}, nil
}

// Start launches the supervisor and serves the management API. It blocks
// until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.sup.Start(ctx); err != nil {
		return err
	}

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("management API failed: %w", err)
	}
	return nil
}

// Shutdown stops the management API and then the supervisor, waiting for
// in-flight reconnection work to finish so no partially updated records are
// left unpersisted.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return err
	}
	return s.sup.Stop()
}
