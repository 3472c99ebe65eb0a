package drivers

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"netmand/internal/database"
)

// InterfaceInfo is one entry of a device snapshot: an interface's name, its
// link kind, and its observed status.
type InterfaceInfo struct {
	Name      string        `json:"name"`      // Interface name (e.g. "eth0")
	Kind      database.Kind `json:"kind"`      // Observed link kind
	Up        bool          `json:"up"`        // Whether the link is administratively up
	Connected bool          `json:"connected"` // Whether the link has a carrier and is operational
}

// NetworkInfo is the observed network configuration of one interface,
// captured after a successful connection.
type NetworkInfo struct {
	IPAddress  string   `json:"ip_address"`  // Current IPv4 address
	Gateway    string   `json:"gateway"`     // Current default gateway
	DNSServers []string `json:"dns_servers"` // Configured DNS servers
}

// DeviceProbe returns snapshots of the machine's network interfaces and
// their observed configuration. Implementations are pure reads with no
// mutation and must be safe for concurrent use.
type DeviceProbe interface {
	// Snapshot returns all managed interfaces ordered by name.
	Snapshot(ctx context.Context) ([]InterfaceInfo, error)

	// NetworkInfo returns the current address, gateway, and DNS servers of
	// one interface. Fields the probe cannot determine are left empty.
	NetworkInfo(ctx context.Context, iface string) (NetworkInfo, error)
}

// SysfsProbe reads interface metadata from /sys/class/net and queries
// iproute2 for addressing. The sysfs root is configurable so tests can point
// the probe at a synthetic tree.
type SysfsProbe struct {
	root        string // Sysfs network class directory (default /sys/class/net)
	resolvConf  string // Resolver configuration path (default /etc/resolv.conf)
	run         runFunc
}

// NewSysfsProbe creates a device probe reading the standard system paths.
// Returns a pointer to the newly created SysfsProbe.
func NewSysfsProbe() *SysfsProbe {
	return &SysfsProbe{
		root:       "/sys/class/net",
		resolvConf: "/etc/resolv.conf",
		run:        runCommand,
	}
}

// NewSysfsProbeWithRoot creates a device probe reading an alternate sysfs
// tree and resolver configuration. This is useful for tests that construct a
// synthetic /sys/class/net layout.
func NewSysfsProbeWithRoot(root, resolvConf string) *SysfsProbe {
	return &SysfsProbe{
		root:       root,
		resolvConf: resolvConf,
		run:        runCommand,
	}
}

// Snapshot enumerates the interfaces under the sysfs tree. The loopback
// interface is not managed and is excluded. Results are ordered by name.
func (p *SysfsProbe) Snapshot(ctx context.Context) ([]InterfaceInfo, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, err
	}

	var interfaces []InterfaceInfo
	for _, entry := range entries {
		name := entry.Name()
		if name == "lo" {
			continue
		}

		operstate := p.readAttr(name, "operstate")
		carrier := p.readAttr(name, "carrier")
		up := operstate == "up" || operstate == "unknown"

		interfaces = append(interfaces, InterfaceInfo{
			Name:      name,
			Kind:      p.classify(name),
			Up:        up,
			Connected: up && carrier == "1",
		})
	}

	sort.Slice(interfaces, func(i, j int) bool {
		return interfaces[i].Name < interfaces[j].Name
	})
	return interfaces, nil
}

var (
	inetPattern    = regexp.MustCompile(`inet (\d+\.\d+\.\d+\.\d+)`)
	gatewayPattern = regexp.MustCompile(`default via (\d+\.\d+\.\d+\.\d+)`)
)

// NetworkInfo reads the interface's IPv4 address and default gateway from
// iproute2 and the DNS servers from the resolver configuration. A field that
// cannot be read is left empty rather than failing the whole probe.
func (p *SysfsProbe) NetworkInfo(ctx context.Context, iface string) (NetworkInfo, error) {
	var info NetworkInfo

	if out, err := p.run(ctx, "ip", "-4", "addr", "show", "dev", iface); err == nil {
		if match := inetPattern.FindStringSubmatch(out); match != nil {
			info.IPAddress = match[1]
		}
	}

	if out, err := p.run(ctx, "ip", "route", "show", "dev", iface); err == nil {
		if match := gatewayPattern.FindStringSubmatch(out); match != nil {
			info.Gateway = match[1]
		}
	}

	if data, err := os.ReadFile(p.resolvConf); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			fields := strings.Fields(line)
			if len(fields) >= 2 && fields[0] == "nameserver" {
				info.DNSServers = append(info.DNSServers, fields[1])
			}
		}
	}

	return info, nil
}

// classify determines an interface's link kind from its sysfs attributes:
// a wireless subdirectory marks WiFi, tun_flags or a wireguard name prefix
// marks a tunnel, everything else is treated as wired.
func (p *SysfsProbe) classify(name string) database.Kind {
	if _, err := os.Stat(filepath.Join(p.root, name, "wireless")); err == nil {
		return database.KindWireless
	}
	if _, err := os.Stat(filepath.Join(p.root, name, "tun_flags")); err == nil {
		return database.KindTunnel
	}
	if strings.HasPrefix(name, "wg") || strings.HasPrefix(name, "tun") {
		return database.KindTunnel
	}
	return database.KindWired
}

// readAttr returns a trimmed sysfs attribute value, or empty on any error.
func (p *SysfsProbe) readAttr(iface, attr string) string {
	data, err := os.ReadFile(filepath.Join(p.root, iface, attr))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
