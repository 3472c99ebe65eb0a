// Package engine implements the connection lifecycle engine. It turns a
// profile name into a live connection through the link driver for the
// profile's kind, performs ordered auto-connect selection, and keeps the
// profile store and interface state table bookkeeping consistent after every
// attempt. All decisions re-read current store state; nothing is cached
// across a driver call.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"netmand/internal/database"
	"netmand/internal/drivers"
	"netmand/internal/store"
)

// Sentinel errors for the engine's failure taxonomy. ErrProfileNotFound is a
// caller error and causes no state mutation; ErrDriverFailure is transient
// and recorded for later retry; ErrUnsupportedKind is a configuration defect
// fatal only to the requesting call; ErrAttemptInProgress rejects a second
// concurrent attempt on one interface.
var (
	ErrProfileNotFound   = store.ErrNotFound
	ErrDriverFailure     = errors.New("link driver failure")
	ErrUnsupportedKind   = errors.New("no driver registered for connection kind")
	ErrAttemptInProgress = errors.New("connection attempt already in progress")
	ErrNoCandidates      = errors.New("no auto-connect profile succeeded")
)

// Timeouts bounds every link driver invocation by connection kind. No single
// default is safe across media: a wired DHCP exchange and a WiFi association
// have materially different expected latencies.
type Timeouts struct {
	Wired    time.Duration // Bound for wired connect/disconnect (covers DHCP)
	Wireless time.Duration // Bound for wireless actions (covers association plus DHCP)
	Tunnel   time.Duration // Bound for tunnel up/down
}

// DefaultTimeouts returns the standard per-kind driver timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Wired:    45 * time.Second,
		Wireless: 60 * time.Second,
		Tunnel:   30 * time.Second,
	}
}

// Engine orchestrates connection attempts. It holds references to the
// profile store, the interface state table, the driver registry, and the
// device probe, and guarantees at most one in-flight attempt per interface.
type Engine struct {
	profiles *store.ProfileStore        // Durable profile collection
	states   *store.InterfaceStateTable // Live per-interface state
	registry *drivers.Registry          // Link drivers by connection kind
	probe    drivers.DeviceProbe        // Interface snapshots and post-connect info
	timeouts Timeouts                   // Per-kind driver invocation bounds

	mu       sync.Mutex          // Protects inflight
	inflight map[string]struct{} // Interfaces with an attempt in progress
}

// New creates a connection engine wired to the given collaborators.
// Returns a pointer to the newly created Engine.
func New(profiles *store.ProfileStore, states *store.InterfaceStateTable, registry *drivers.Registry, probe drivers.DeviceProbe, timeouts Timeouts) *Engine {
	return &Engine{
		profiles: profiles,
		states:   states,
		registry: registry,
		probe:    probe,
		timeouts: timeouts,
		inflight: make(map[string]struct{}),
	}
}

// Connect establishes the connection described by the named profile.
// A missing profile returns ErrProfileNotFound with no state mutation. The
// interface moves through connecting to connected or failed, the attempt is
// recorded on the profile either way, and driver errors of any shape are
// converted to a failed attempt rather than a panic. A second call for an
// interface with an attempt already in flight is rejected with
// ErrAttemptInProgress, not queued.
func (e *Engine) Connect(ctx context.Context, name string) error {
	profile, err := e.profiles.Get(name)
	if err != nil {
		return err
	}

	iface := targetInterface(profile)
	if !e.begin(iface) {
		return fmt.Errorf("%w: %s", ErrAttemptInProgress, iface)
	}
	defer e.end(iface)

	if err := e.states.MarkConnecting(iface, name); err != nil {
		return err
	}

	driver, ok := e.registry.Lookup(profile.Kind)
	if !ok {
		detail := fmt.Sprintf("no driver for kind %q", profile.Kind)
		e.recordFailure(iface, name, detail)
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, profile.Kind)
	}

	if err := e.invokeConnect(ctx, driver, iface, profile); err != nil {
		e.recordFailure(iface, name, err.Error())
		return fmt.Errorf("%w: %v", ErrDriverFailure, err)
	}

	if err := e.states.MarkConnected(iface); err != nil {
		return err
	}
	e.refreshNetworkInfo(ctx, iface)
	if err := e.profiles.RecordAttempt(name, true, ""); err != nil {
		log.Printf("failed to record successful attempt for %q: %v", name, err)
	}

	return nil
}

// SelectAndConnect performs automatic selection for one interface: it walks
// the interface's auto-connect profiles strictly in descending priority then
// ascending name order and stops at the first success. Candidates are never
// raced in parallel so two profiles cannot fight over the same interface.
// Returns ErrNoCandidates when the list is empty or every candidate failed.
func (e *Engine) SelectAndConnect(ctx context.Context, iface string) error {
	candidates, err := e.profiles.ListAutoConnect(iface)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		log.Printf("attempting auto-connect: %s", candidate.Name)
		if err := e.Connect(ctx, candidate.Name); err != nil {
			log.Printf("auto-connect %s failed: %v", candidate.Name, err)
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNoCandidates, iface)
}

// Disconnect tears down whatever connection is active on the interface.
// The teardown driver is chosen by the interface's observed kind from the
// device probe, not from the bound profile, since a profile may be absent.
// Disconnection bookkeeping is unconditional: status, bound profile, and
// connection timestamp are reset even if the driver call fails, because the
// caller's intent was to stop managing the interface.
func (e *Engine) Disconnect(ctx context.Context, iface string) error {
	if !e.begin(iface) {
		return fmt.Errorf("%w: %s", ErrAttemptInProgress, iface)
	}
	defer e.end(iface)

	kind := e.observedKind(ctx, iface)

	var driverErr error
	if driver, ok := e.registry.Lookup(kind); ok {
		callCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(kind))
		driverErr = driver.Disconnect(callCtx, iface)
		cancel()
	} else {
		driverErr = fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}

	if err := e.states.MarkDisconnected(iface); err != nil {
		return err
	}

	if driverErr != nil && !errors.Is(driverErr, ErrUnsupportedKind) {
		return fmt.Errorf("%w: %v", ErrDriverFailure, driverErr)
	}
	return driverErr
}

// invokeConnect runs the driver's connect action under the per-kind timeout.
// A panicking driver is converted into an ordinary error so an attempt can
// never take the process down.
func (e *Engine) invokeConnect(ctx context.Context, driver drivers.LinkDriver, iface string, profile *database.ConnectionProfile) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("driver panic: %v", r)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.timeoutFor(profile.Kind))
	defer cancel()

	return driver.Connect(callCtx, iface, profile)
}

// recordFailure applies the failed-attempt bookkeeping to both collections.
func (e *Engine) recordFailure(iface, name, detail string) {
	if err := e.states.MarkFailed(iface); err != nil {
		log.Printf("failed to mark %s failed: %v", iface, err)
	}
	if err := e.profiles.RecordAttempt(name, false, detail); err != nil {
		log.Printf("failed to record failed attempt for %q: %v", name, err)
	}
}

// refreshNetworkInfo captures the interface's post-connect address, gateway,
// and DNS servers into the state table. Probe errors are logged, not fatal:
// the connection itself already succeeded.
func (e *Engine) refreshNetworkInfo(ctx context.Context, iface string) {
	info, err := e.probe.NetworkInfo(ctx, iface)
	if err != nil {
		log.Printf("post-connect probe for %s failed: %v", iface, err)
		return
	}
	if err := e.states.RecordNetworkInfo(iface, info.IPAddress, info.Gateway, info.DNSServers); err != nil {
		log.Printf("failed to record network info for %s: %v", iface, err)
	}
}

// observedKind looks up the interface's kind in a fresh device snapshot,
// defaulting to wired when the interface is not currently visible.
func (e *Engine) observedKind(ctx context.Context, iface string) database.Kind {
	snapshot, err := e.probe.Snapshot(ctx)
	if err != nil {
		log.Printf("device snapshot failed: %v", err)
		return database.KindWired
	}
	for _, info := range snapshot {
		if info.Name == iface {
			return info.Kind
		}
	}
	return database.KindWired
}

// timeoutFor returns the driver invocation bound for a connection kind.
func (e *Engine) timeoutFor(kind database.Kind) time.Duration {
	switch kind {
	case database.KindWireless:
		return e.timeouts.Wireless
	case database.KindTunnel:
		return e.timeouts.Tunnel
	default:
		return e.timeouts.Wired
	}
}

// begin marks an interface as having an attempt in flight. It returns false
// when another attempt already holds the interface.
func (e *Engine) begin(iface string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inflight[iface]; busy {
		return false
	}
	e.inflight[iface] = struct{}{}
	return true
}

// end releases an interface's in-flight slot.
func (e *Engine) end(iface string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, iface)
}

// targetInterface resolves the interface an attempt will run on. A floating
// profile (no interface set, e.g. a VPN) runs on an interface named after
// the profile itself, which is how tunnel tools name the links they create.
func targetInterface(profile *database.ConnectionProfile) string {
	if profile.Interface != "" {
		return profile.Interface
	}
	return profile.Name
}
