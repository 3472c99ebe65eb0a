package supervisor

import (
	"fmt"
	"time"

	"netmand/internal/database"
)

// Stats represents a point-in-time summary of the connection manager:
// how many profiles exist, how many participate in auto-connect, and how
// many interfaces are currently connected.
type Stats struct {
	CollectedAt         time.Time `json:"collected_at"`          // When the stats were collected
	TotalProfiles       int       `json:"total_profiles"`        // Number of stored connection profiles
	AutoConnectProfiles int       `json:"auto_connect_profiles"` // Profiles flagged for automatic selection
	ConnectedInterfaces int       `json:"connected_interfaces"`  // Interfaces currently in connected status
	KnownInterfaces     int       `json:"known_interfaces"`      // Interfaces with a state record
	Supervising         bool      `json:"supervising"`           // Whether the health-check loop is running
}

// CollectStats reads the stores and summarizes the current connection
// picture. Stats are computed fresh on every call rather than cached.
func (s *Supervisor) CollectStats() (Stats, error) {
	profiles, err := s.profiles.List("")
	if err != nil {
		return Stats{}, fmt.Errorf("failed to collect profile stats: %w", err)
	}

	states, err := s.states.List()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to collect interface stats: %w", err)
	}

	stats := Stats{
		CollectedAt:     time.Now(),
		TotalProfiles:   len(profiles),
		KnownInterfaces: len(states),
		Supervising:     s.Running(),
	}
	for _, profile := range profiles {
		if profile.AutoConnect {
			stats.AutoConnectProfiles++
		}
	}
	for _, state := range states {
		if state.Status == database.StatusConnected {
			stats.ConnectedInterfaces++
		}
	}
	return stats, nil
}
