package drivers

import (
	"context"
	"fmt"

	"netmand/internal/database"
	"netmand/internal/network"
)

// WiredDriver establishes connections on ethernet interfaces. It brings the
// link up with iproute2 and then either requests a DHCP lease or applies the
// profile's static address, gateway, and DNS configuration.
type WiredDriver struct {
	run runFunc // Command execution, injectable for tests
}

// NewWiredDriver creates a wired link driver using the system's iproute2,
// dhclient, and resolvectl tools. Returns a pointer to the new driver.
func NewWiredDriver() *WiredDriver {
	return &WiredDriver{run: runCommand}
}

// Connect brings the interface up and configures its address according to
// the profile's method. The manual method only raises the link and leaves
// addressing to outside management.
func (d *WiredDriver) Connect(ctx context.Context, iface string, profile *database.ConnectionProfile) error {
	if _, err := d.run(ctx, "ip", "link", "set", "dev", iface, "up"); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", iface, err)
	}

	switch profile.Method {
	case database.MethodDHCP:
		return requestDHCP(ctx, d.run, iface)
	case database.MethodStatic:
		return applyStatic(ctx, d.run, iface, profile)
	case database.MethodManual:
		return nil
	default:
		return fmt.Errorf("unknown method %q for wired connect", profile.Method)
	}
}

// Disconnect releases any DHCP lease, flushes addresses, and brings the
// interface down.
func (d *WiredDriver) Disconnect(ctx context.Context, iface string) error {
	// A stale lease daemon would re-add the address after the flush.
	d.run(ctx, "dhclient", "-r", iface)

	if _, err := d.run(ctx, "ip", "addr", "flush", "dev", iface); err != nil {
		return fmt.Errorf("failed to flush %s: %w", iface, err)
	}
	if _, err := d.run(ctx, "ip", "link", "set", "dev", iface, "down"); err != nil {
		return fmt.Errorf("failed to bring down %s: %w", iface, err)
	}
	return nil
}

// requestDHCP asks the system DHCP client for a lease on the interface.
// The -1 flag makes dhclient exit after a single attempt so the context
// deadline, not the client's own retry loop, bounds the call.
func requestDHCP(ctx context.Context, run runFunc, iface string) error {
	if _, err := run(ctx, "dhclient", "-1", iface); err != nil {
		return fmt.Errorf("DHCP request on %s failed: %w", iface, err)
	}
	return nil
}

// applyStatic replaces the interface's address, default route, and DNS
// servers with the profile's static configuration.
func applyStatic(ctx context.Context, run runFunc, iface string, profile *database.ConnectionProfile) error {
	if _, err := run(ctx, "ip", "addr", "flush", "dev", iface); err != nil {
		return fmt.Errorf("failed to flush %s: %w", iface, err)
	}

	addr := fmt.Sprintf("%s/%d", profile.IPAddress, network.PrefixLength(profile.Netmask))
	if _, err := run(ctx, "ip", "addr", "add", addr, "dev", iface); err != nil {
		return fmt.Errorf("failed to set address on %s: %w", iface, err)
	}

	if _, err := run(ctx, "ip", "route", "replace", "default", "via", profile.Gateway, "dev", iface); err != nil {
		return fmt.Errorf("failed to set gateway on %s: %w", iface, err)
	}

	if dns := profile.DNSList(); len(dns) > 0 {
		args := append([]string{"dns", iface}, dns...)
		if _, err := run(ctx, "resolvectl", args...); err != nil {
			return fmt.Errorf("failed to set DNS on %s: %w", iface, err)
		}
	}
	return nil
}
