// Package supervisor implements the health-check and reconnection loop of
// the connection manager. On a fixed interval it polls the device probe,
// refreshes interface state bookkeeping, detects unexpected drops after a
// grace period, and re-establishes the previously bound profile. It also
// performs the one-time startup auto-connect pass.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"netmand/internal/database"
	"netmand/internal/drivers"
	"netmand/internal/engine"
	"netmand/internal/store"
)

// Config represents tuning options for the supervision loop.
type Config struct {
	PollInterval       time.Duration `json:"poll_interval"`        // Time between health-check polls (default: 10s)
	GracePeriod        time.Duration `json:"grace_period"`         // Minimum connected age before a drop triggers reconnection (default: 30s)
	ErrorBackoff       int           `json:"error_backoff"`        // Interval multiplier applied after a whole-poll failure (default: 3)
	StartupAutoConnect bool          `json:"startup_auto_connect"` // Whether to run the initial auto-connect pass
}

// DefaultConfig returns the standard supervision tuning: a dense poll
// interval so real failures are caught quickly, with a grace period that
// keeps momentary link flaps (e.g. a DHCP renewal) from being treated as
// failures.
func DefaultConfig() Config {
	return Config{
		PollInterval:       10 * time.Second,
		GracePeriod:        30 * time.Second,
		ErrorBackoff:       3,
		StartupAutoConnect: true,
	}
}

// Supervisor runs the periodic health-check loop. Reconnection attempts are
// launched as tracked goroutines so Stop can join them instead of leaking
// fire-and-forget work.
type Supervisor struct {
	eng      *engine.Engine             // Connection engine for reconnection attempts
	profiles *store.ProfileStore        // Profile collection, read for stats
	states   *store.InterfaceStateTable // Per-interface state bookkeeping
	probe    drivers.DeviceProbe        // Interface snapshot source
	config   Config                     // Loop tuning

	running bool                // Whether the loop is currently active
	stopCh  chan struct{}       // Channel to signal loop stop
	mu      sync.Mutex          // Protects running and stopCh
	wg      sync.WaitGroup      // Tracks the loop and reconnection goroutines
}

// New creates a supervisor wired to the given engine, stores, and probe.
// Returns a pointer to the newly created Supervisor.
func New(eng *engine.Engine, profiles *store.ProfileStore, states *store.InterfaceStateTable, probe drivers.DeviceProbe, config Config) *Supervisor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultConfig().GracePeriod
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = DefaultConfig().ErrorBackoff
	}

	return &Supervisor{
		eng:      eng,
		profiles: profiles,
		states:   states,
		probe:    probe,
		config:   config,
	}
}

// Start runs the startup auto-connect pass and launches the supervision
// loop in the background. A stopped supervisor can be started again. Returns
// an error if the supervisor is already running.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	log.Printf("starting connection supervisor (poll %s, grace %s)", s.config.PollInterval, s.config.GracePeriod)

	if s.config.StartupAutoConnect {
		s.autoConnectAll(ctx)
	}

	s.wg.Add(1)
	go s.loop(ctx, stopCh)
	return nil
}

// Stop signals the loop to exit and waits for it and any in-flight
// reconnection goroutines to finish. The loop only observes the signal
// between polls, so a partially processed poll completes its per-interface
// write-through before Stop returns.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("supervisor is not running")
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	log.Printf("connection supervisor stopped")
	return nil
}

// Running reports whether the supervision loop is active.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop is the supervision loop. A whole-poll failure (a misbehaving probe)
// is logged and followed by a longer backoff before the next poll so the
// supervisor never crash-loops against it.
func (s *Supervisor) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	interval := s.config.PollInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-timer.C:
			if err := s.Poll(ctx); err != nil {
				log.Printf("health-check poll failed: %v", err)
				interval = s.config.PollInterval * time.Duration(s.config.ErrorBackoff)
			} else {
				interval = s.config.PollInterval
			}
			timer.Reset(interval)
		}
	}
}

// Poll runs one health-check pass: it takes a fresh device snapshot and
// checks every observed interface. Errors inside one interface's check are
// isolated and do not abort the checks of the others; only a snapshot
// failure fails the poll as a whole.
func (s *Supervisor) Poll(ctx context.Context) error {
	snapshot, err := s.probe.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("device snapshot failed: %w", err)
	}

	for _, info := range snapshot {
		if err := s.checkInterface(ctx, info); err != nil {
			log.Printf("health check for %s failed: %v", info.Name, err)
		}
	}
	return nil
}

// checkInterface refreshes one interface's bookkeeping and performs drop
// detection: a connected interface that the probe reports as not connected,
// and whose connection is older than the grace period, is marked
// disconnected and, when a profile is bound, handed to a tracked
// reconnection goroutine that retries that specific profile. The interface
// returns to the profile it was using, never a fresh priority scan.
func (s *Supervisor) checkInterface(ctx context.Context, info drivers.InterfaceInfo) error {
	if info.Name == "" {
		return fmt.Errorf("snapshot entry has no interface name")
	}

	state, err := s.states.Get(info.Name)
	if err != nil {
		return err
	}

	if err := s.states.Touch(info.Name); err != nil {
		return err
	}

	if state.Status != database.StatusConnected || info.Connected {
		return nil
	}
	if state.ConnectedAt == nil || time.Since(*state.ConnectedAt) <= s.config.GracePeriod {
		return nil
	}

	log.Printf("interface %s unexpectedly disconnected", info.Name)
	if err := s.states.SetStatus(info.Name, database.StatusDisconnected); err != nil {
		return err
	}

	if state.BoundProfile == "" {
		return nil
	}

	profileName := state.BoundProfile
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("attempting reconnection: %s", profileName)
		err := s.eng.Connect(ctx, profileName)
		if err == nil {
			return
		}
		log.Printf("reconnection %s failed: %v", profileName, err)
		// A deleted bound profile leaves no trace through the engine, which
		// mutates nothing on a missing name; record the failure here.
		if errors.Is(err, engine.ErrProfileNotFound) {
			if err := s.states.SetStatus(info.Name, database.StatusFailed); err != nil {
				log.Printf("failed to mark %s failed: %v", info.Name, err)
			}
		}
	}()
	return nil
}

// autoConnectAll runs the one-time startup pass: every probed interface not
// already connected gets an ordered auto-connect attempt. Subsequent
// connections come only from drop detection or explicit calls.
func (s *Supervisor) autoConnectAll(ctx context.Context) {
	snapshot, err := s.probe.Snapshot(ctx)
	if err != nil {
		log.Printf("startup snapshot failed: %v", err)
		return
	}

	for _, info := range snapshot {
		if info.Connected {
			continue
		}
		if err := s.eng.SelectAndConnect(ctx, info.Name); err != nil {
			log.Printf("startup auto-connect for %s: %v", info.Name, err)
		}
	}
}
