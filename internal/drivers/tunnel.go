package drivers

import (
	"context"
	"fmt"

	"netmand/internal/database"
)

// TunnelDriver brings VPN tunnel profiles up and down through wg-quick.
// A tunnel profile's name is the name of its WireGuard configuration; there
// is no separate addressing step because the tunnel configuration carries
// its own addresses and routes.
type TunnelDriver struct {
	run runFunc // Command execution, injectable for tests
}

// NewTunnelDriver creates a tunnel link driver using the system's wg-quick
// tool. Returns a pointer to the new driver.
func NewTunnelDriver() *TunnelDriver {
	return &TunnelDriver{run: runCommand}
}

// Connect brings up the tunnel named by the profile.
func (d *TunnelDriver) Connect(ctx context.Context, iface string, profile *database.ConnectionProfile) error {
	if _, err := d.run(ctx, "wg-quick", "up", profile.Name); err != nil {
		return fmt.Errorf("failed to bring up tunnel %q: %w", profile.Name, err)
	}
	return nil
}

// Disconnect brings down the tunnel on the named interface.
func (d *TunnelDriver) Disconnect(ctx context.Context, iface string) error {
	if _, err := d.run(ctx, "wg-quick", "down", iface); err != nil {
		return fmt.Errorf("failed to bring down tunnel %s: %w", iface, err)
	}
	return nil
}
