// Package database provides data models and database access layer for the
// network connection manager. It defines the database schema using GORM for
// ORM functionality and includes models for connection profiles, interface
// states, and management users.
package database

import (
	"strings"
	"time"
)

// Kind identifies the link-layer type of a connection profile or interface.
type Kind string

const (
	KindWired    Kind = "wired"    // Wired ethernet link
	KindWireless Kind = "wireless" // WiFi link
	KindTunnel   Kind = "tunnel"   // VPN tunnel interface
)

// Method identifies how IP configuration is assigned for a profile.
type Method string

const (
	MethodDHCP   Method = "dhcp"   // Address assigned by a DHCP server
	MethodStatic Method = "static" // Address configured from the profile's static fields
	MethodManual Method = "manual" // Address managed outside the engine
)

// Status represents the connection state machine position of one interface.
type Status string

const (
	StatusDisconnected Status = "disconnected" // No connection is active or being attempted
	StatusConnecting   Status = "connecting"   // A connection attempt is in flight
	StatusConnected    Status = "connected"    // The interface is connected and configured
	StatusFailed       Status = "failed"       // The last connection attempt failed
)

// ConnectionProfile represents a durable, user-named connection recipe.
// It stores everything needed to establish one connection: the target
// interface, the link kind, IP assignment method, and the static or wireless
// field group required by that kind, plus bookkeeping updated after every
// connection attempt.
type ConnectionProfile struct {
	Name      string `gorm:"primaryKey" json:"name"`     // Unique profile name, immutable once created
	Interface string `gorm:"index" json:"interface"`     // Target interface name; empty for floating profiles
	Kind      Kind   `gorm:"not null" json:"kind"`       // Link kind: wired, wireless, or tunnel
	Method    Method `gorm:"default:dhcp" json:"method"` // IP assignment method: dhcp, static, or manual

	// Static IP configuration, populated only when Method is static
	IPAddress  string `json:"ip_address,omitempty"`                   // Static IPv4 address
	Netmask    string `json:"netmask,omitempty"`                      // Static netmask
	Gateway    string `json:"gateway,omitempty"`                      // Default gateway
	DNSServers string `gorm:"type:text" json:"dns_servers,omitempty"` // DNS servers (comma-separated)

	// Wireless configuration, populated only when Kind is wireless
	SSID     string `json:"ssid,omitempty"`     // Network SSID to join
	Secret   string `json:"-"`                  // Opaque passphrase/credential (excluded from JSON)
	Security string `json:"security,omitempty"` // Security mode (e.g. "wpa-psk")

	AutoConnect bool `json:"auto_connect"`              // Whether the profile participates in automatic selection
	Priority    int  `gorm:"default:0" json:"priority"` // Higher tries first among auto-connect candidates

	// Connection bookkeeping, mutated only by attempt recording
	LastConnected      *time.Time `json:"last_connected,omitempty"`             // When the profile last connected successfully
	ConnectionAttempts int        `gorm:"default:0" json:"connection_attempts"` // Monotonic attempt counter
	LastError          string     `json:"last_error,omitempty"`                 // Error detail from the most recent failed attempt

	CreatedAt time.Time `json:"created_at"` // Creation timestamp
	UpdatedAt time.Time `json:"updated_at"` // Last update timestamp
}

// InterfaceState represents the engine's live view of one network interface.
// Records are created lazily on first reference and survive process restarts;
// they are reset rather than deleted.
type InterfaceState struct {
	Interface    string `gorm:"primaryKey" json:"interface"`        // Interface name, primary key
	BoundProfile string `json:"bound_profile,omitempty"`            // Profile currently driving this interface
	Status       Status `gorm:"default:disconnected" json:"status"` // Current state machine position

	IPAddress  string `json:"ip_address,omitempty"`                   // Last observed IPv4 address
	Gateway    string `json:"gateway,omitempty"`                      // Last observed default gateway
	DNSServers string `gorm:"type:text" json:"dns_servers,omitempty"` // Last observed DNS servers (comma-separated)

	ConnectedAt *time.Time `json:"connected_at,omitempty"`       // When the interface entered connected status
	LastSeen    time.Time  `json:"last_seen"`                    // Updated on every health-check poll
	ErrorCount  int        `gorm:"default:0" json:"error_count"` // Consecutive failure counter

	UpdatedAt time.Time `json:"updated_at"` // Last update timestamp
}

// User represents a management API user. It stores credentials for
// authenticating against the REST control surface.
type User struct {
	ID        uint       `gorm:"primaryKey" json:"id"`                 // Unique identifier for the user
	Username  string     `gorm:"uniqueIndex;not null" json:"username"` // Unique username for login
	Password  string     `gorm:"not null" json:"-"`                    // Hashed password (excluded from JSON)
	Role      string     `gorm:"default:admin" json:"role"`            // User role
	Active    bool       `gorm:"default:true" json:"active"`           // Whether the account may log in
	CreatedAt time.Time  `json:"created_at"`                           // Account creation timestamp
	UpdatedAt time.Time  `json:"updated_at"`                           // Last update timestamp
	LastLogin *time.Time `json:"last_login,omitempty"`                 // Last login timestamp
}

// DNSList returns the profile's DNS servers as an ordered slice.
// The servers are stored as a comma-separated text column.
func (p *ConnectionProfile) DNSList() []string {
	return splitDNS(p.DNSServers)
}

// SetDNSList stores an ordered list of DNS servers on the profile.
func (p *ConnectionProfile) SetDNSList(servers []string) {
	p.DNSServers = strings.Join(servers, ",")
}

// DNSList returns the interface's last observed DNS servers as a slice.
func (s *InterfaceState) DNSList() []string {
	return splitDNS(s.DNSServers)
}

// SetDNSList stores an ordered list of observed DNS servers on the state.
func (s *InterfaceState) SetDNSList(servers []string) {
	s.DNSServers = strings.Join(servers, ",")
}

func splitDNS(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	servers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			servers = append(servers, trimmed)
		}
	}
	return servers
}

// TableName returns the database table name for ConnectionProfile model.
// This implements the GORM Tabler interface to specify custom table names.
func (ConnectionProfile) TableName() string {
	return "connection_profiles"
}

// TableName returns the database table name for InterfaceState model.
// This implements the GORM Tabler interface to specify custom table names.
func (InterfaceState) TableName() string {
	return "interface_states"
}

// TableName returns the database table name for User model.
// This implements the GORM Tabler interface to specify custom table names.
func (User) TableName() string {
	return "users"
}
