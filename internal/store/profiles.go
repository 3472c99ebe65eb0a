// Package store implements the two durable collections at the heart of the
// connection manager: the profile store, which owns named connection
// profiles, and the interface state table, which owns the live view of each
// network interface. Both apply write-through persistence: every mutating
// call is durably saved before it returns.
package store

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"netmand/internal/database"
	"netmand/internal/network"
)

// Sentinel errors returned by the profile store and interface state table.
// Callers should test them with errors.Is since validation failures carry
// additional detail.
var (
	ErrNotFound       = errors.New("profile not found")
	ErrDuplicateName  = errors.New("profile name already exists")
	ErrInvalidProfile = errors.New("invalid profile")
)

// ProfileStore owns the durable set of named connection profiles.
// It enforces name uniqueness and per-kind field group validation, and is the
// only writer of profile records.
type ProfileStore struct {
	db *database.Database // Backing database for write-through persistence
}

// NewProfileStore creates a profile store backed by the given database.
// Returns a pointer to the newly created ProfileStore.
func NewProfileStore(db *database.Database) *ProfileStore {
	return &ProfileStore{db: db}
}

// Create validates and inserts a new connection profile. The profile's
// bookkeeping fields are reset regardless of input. It fails with
// ErrDuplicateName if the name is already taken and with ErrInvalidProfile
// if the field groups required by the profile's kind and method are missing
// or malformed. On any failure nothing is inserted.
func (ps *ProfileStore) Create(profile *database.ConnectionProfile) error {
	if err := validateProfile(profile); err != nil {
		return err
	}

	if _, err := ps.db.GetProfile(profile.Name); err == nil {
		return fmt.Errorf("%w: %s", ErrDuplicateName, profile.Name)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check profile name: %w", err)
	}

	profile.LastConnected = nil
	profile.ConnectionAttempts = 0
	profile.LastError = ""

	if err := ps.db.CreateProfile(profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// Get retrieves a connection profile by name.
// Returns ErrNotFound if no profile with that name exists.
func (ps *ProfileStore) Get(name string) (*database.ConnectionProfile, error) {
	profile, err := ps.db.GetProfile(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// List returns all profiles, optionally filtered to one interface when iface
// is non-empty. Results are ordered by priority descending then name
// ascending, so the ordering is deterministic for equal priorities.
func (ps *ProfileStore) List(iface string) ([]database.ConnectionProfile, error) {
	profiles, err := ps.db.ListProfiles(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// ListAutoConnect returns the auto-connect candidates for one interface in
// selection order (priority descending, then name ascending). This is the
// candidate list the engine walks during automatic selection.
func (ps *ProfileStore) ListAutoConnect(iface string) ([]database.ConnectionProfile, error) {
	profiles, err := ps.List(iface)
	if err != nil {
		return nil, err
	}

	candidates := profiles[:0]
	for _, profile := range profiles {
		if profile.AutoConnect {
			candidates = append(candidates, profile)
		}
	}
	return candidates, nil
}

// Delete removes a profile by name. Deleting an absent name returns
// ErrNotFound rather than succeeding silently; callers wanting idempotent
// deletion must check existence first or tolerate the error. Deletion does
// not disturb an interface currently bound to the profile.
func (ps *ProfileStore) Delete(name string) error {
	rows, err := ps.db.DeleteProfile(name)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}

// RecordAttempt updates a profile's bookkeeping after a connection attempt.
// It increments the attempt counter; on success it sets last_connected and
// clears last_error, on failure it records the error detail and leaves
// last_connected untouched. A profile may be deleted while an attempt is in
// flight, so a missing name is logged and absorbed rather than propagated.
func (ps *ProfileStore) RecordAttempt(name string, success bool, detail string) error {
	profile, err := ps.db.GetProfile(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("attempt bookkeeping skipped, profile %q no longer exists", name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load profile for attempt record: %w", err)
	}

	profile.ConnectionAttempts++
	if success {
		now := time.Now()
		profile.LastConnected = &now
		profile.LastError = ""
	} else {
		profile.LastError = detail
	}

	if err := ps.db.SaveProfile(profile); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// validateProfile enforces the field group invariant: the static group is
// populated exactly when the method is static, and the wireless group exactly
// when the kind is wireless. A wireless profile may combine both (WiFi
// association does not assign an address).
func validateProfile(profile *database.ConnectionProfile) error {
	if profile.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	switch profile.Kind {
	case database.KindWired, database.KindWireless, database.KindTunnel:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidProfile, profile.Kind)
	}

	if profile.Method == "" {
		profile.Method = database.MethodDHCP
	}
	switch profile.Method {
	case database.MethodDHCP, database.MethodStatic, database.MethodManual:
	default:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidProfile, profile.Method)
	}

	if profile.Method == database.MethodStatic {
		if profile.IPAddress == "" || profile.Netmask == "" || profile.Gateway == "" {
			return fmt.Errorf("%w: static method requires ip_address, netmask and gateway", ErrInvalidProfile)
		}
		if err := network.ValidateStaticConfig(profile.IPAddress, profile.Netmask, profile.Gateway, profile.DNSList()); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
	} else if profile.IPAddress != "" || profile.Netmask != "" || profile.Gateway != "" || profile.DNSServers != "" {
		return fmt.Errorf("%w: static fields set but method is %s", ErrInvalidProfile, profile.Method)
	}

	if profile.Kind == database.KindWireless {
		if profile.SSID == "" {
			return fmt.Errorf("%w: wireless kind requires ssid", ErrInvalidProfile)
		}
		if profile.Security == "" {
			if profile.Secret != "" {
				profile.Security = "wpa-psk"
			} else {
				profile.Security = "none"
			}
		}
	} else if profile.SSID != "" || profile.Secret != "" || profile.Security != "" {
		return fmt.Errorf("%w: wireless fields set but kind is %s", ErrInvalidProfile, profile.Kind)
	}

	return nil
}
