package drivers

import (
	"context"
	"fmt"

	"netmand/internal/database"
)

// WirelessDriver establishes WiFi connections. It asks iwd to associate the
// station with the profile's SSID and then configures addressing: joining a
// network does not itself assign an address, so DHCP or the profile's static
// configuration is applied as a second step.
type WirelessDriver struct {
	run runFunc // Command execution, injectable for tests
}

// NewWirelessDriver creates a wireless link driver using the system's iwctl,
// iproute2, and dhclient tools. Returns a pointer to the new driver.
func NewWirelessDriver() *WirelessDriver {
	return &WirelessDriver{run: runCommand}
}

// Connect associates the interface with the profile's SSID and configures
// addressing according to the profile's method.
func (d *WirelessDriver) Connect(ctx context.Context, iface string, profile *database.ConnectionProfile) error {
	if profile.SSID == "" {
		return fmt.Errorf("wireless profile %q has no ssid", profile.Name)
	}

	if _, err := d.run(ctx, "ip", "link", "set", "dev", iface, "up"); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", iface, err)
	}

	args := []string{}
	if profile.Secret != "" {
		args = append(args, "--passphrase", profile.Secret)
	}
	args = append(args, "station", iface, "connect", profile.SSID)
	if _, err := d.run(ctx, "iwctl", args...); err != nil {
		return fmt.Errorf("failed to join %q on %s: %w", profile.SSID, iface, err)
	}

	switch profile.Method {
	case database.MethodDHCP:
		return requestDHCP(ctx, d.run, iface)
	case database.MethodStatic:
		return applyStatic(ctx, d.run, iface, profile)
	case database.MethodManual:
		return nil
	default:
		return fmt.Errorf("unknown method %q for wireless connect", profile.Method)
	}
}

// Disconnect leaves the current network and brings the interface down.
func (d *WirelessDriver) Disconnect(ctx context.Context, iface string) error {
	if _, err := d.run(ctx, "iwctl", "station", iface, "disconnect"); err != nil {
		return fmt.Errorf("failed to leave network on %s: %w", iface, err)
	}

	d.run(ctx, "dhclient", "-r", iface)
	if _, err := d.run(ctx, "ip", "link", "set", "dev", iface, "down"); err != nil {
		return fmt.Errorf("failed to bring down %s: %w", iface, err)
	}
	return nil
}
