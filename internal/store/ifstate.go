package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"netmand/internal/database"
)

// InterfaceStateTable owns the current observed and derived state of every
// network interface. Records are created lazily on first reference and are
// never deleted during the process lifetime, only reset. The consecutive
// error counter is mutated through MarkConnected and MarkFailed, which only
// the connection engine calls. The supervisor and the engine write
// concurrently (a poll's Touch can overlap an in-flight attempt), so every
// read-modify-write cycle runs under the table mutex.
type InterfaceStateTable struct {
	db *database.Database // Backing database for write-through persistence
	mu sync.Mutex         // Serializes read-modify-write cycles
}

// NewInterfaceStateTable creates an interface state table backed by the
// given database. Returns a pointer to the newly created table.
func NewInterfaceStateTable(db *database.Database) *InterfaceStateTable {
	return &InterfaceStateTable{db: db}
}

// Get retrieves the state record for one interface, creating and persisting
// a default disconnected record if none exists yet.
func (t *InterfaceStateTable) Get(iface string) (*database.InterfaceState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.get(iface)
}

// get is Get without the lock, for callers already holding the mutex.
func (t *InterfaceStateTable) get(iface string) (*database.InterfaceState, error) {
	state, err := t.db.GetInterfaceState(iface)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = &database.InterfaceState{
			Interface: iface,
			Status:    database.StatusDisconnected,
			LastSeen:  time.Now(),
		}
		if err := t.db.SaveInterfaceState(state); err != nil {
			return nil, fmt.Errorf("failed to create interface state: %w", err)
		}
		return state, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get interface state: %w", err)
	}
	return state, nil
}

// List returns all known interface state records ordered by interface name.
func (t *InterfaceStateTable) List() ([]database.InterfaceState, error) {
	states, err := t.db.ListInterfaceStates()
	if err != nil {
		return nil, fmt.Errorf("failed to list interface states: %w", err)
	}
	return states, nil
}

// SetStatus sets the state machine position of one interface.
func (t *InterfaceStateTable) SetStatus(iface string, status database.Status) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.Status = status
	})
}

// BindProfile records the profile currently driving an interface.
// An empty name unbinds the interface.
func (t *InterfaceStateTable) BindProfile(iface, profileName string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.BoundProfile = profileName
	})
}

// Touch updates the interface's last_seen timestamp. The supervisor calls
// this on every health-check poll regardless of status.
func (t *InterfaceStateTable) Touch(iface string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.LastSeen = time.Now()
	})
}

// RecordNetworkInfo stores the last observed network configuration of an
// interface: address, gateway, and DNS servers.
func (t *InterfaceStateTable) RecordNetworkInfo(iface, ipAddress, gateway string, dns []string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.IPAddress = ipAddress
		state.Gateway = gateway
		state.SetDNSList(dns)
	})
}

// MarkConnecting moves an interface into connecting status bound to the
// named profile and refreshes last_seen. Called by the engine at the start
// of an attempt.
func (t *InterfaceStateTable) MarkConnecting(iface, profileName string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.Status = database.StatusConnecting
		state.BoundProfile = profileName
		state.LastSeen = time.Now()
	})
}

// MarkConnected moves an interface into connected status, stamps
// connected_at, and resets the consecutive error counter. Called by the
// engine after a successful driver invocation.
func (t *InterfaceStateTable) MarkConnected(iface string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		now := time.Now()
		state.Status = database.StatusConnected
		state.ConnectedAt = &now
		state.ErrorCount = 0
	})
}

// MarkFailed moves an interface into failed status and increments the
// consecutive error counter. Called by the engine after a failed attempt.
func (t *InterfaceStateTable) MarkFailed(iface string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.Status = database.StatusFailed
		state.ErrorCount++
	})
}

// MarkDisconnected resets an interface to disconnected status, clearing the
// bound profile and connection timestamp. Disconnection bookkeeping is
// unconditional: the engine applies it even when the driver teardown fails.
func (t *InterfaceStateTable) MarkDisconnected(iface string) error {
	return t.update(iface, func(state *database.InterfaceState) {
		state.Status = database.StatusDisconnected
		state.BoundProfile = ""
		state.ConnectedAt = nil
	})
}

// update loads an interface record (creating the default if needed), applies
// the mutation, and persists the result before returning. The whole cycle
// holds the table mutex so a concurrent mutator cannot save a stale row over
// this one's result.
func (t *InterfaceStateTable) update(iface string, mutate func(*database.InterfaceState)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, err := t.get(iface)
	if err != nil {
		return err
	}

	mutate(state)

	if err := t.db.SaveInterfaceState(state); err != nil {
		return fmt.Errorf("failed to save interface state: %w", err)
	}
	return nil
}
