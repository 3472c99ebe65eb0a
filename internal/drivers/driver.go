// Package drivers defines the two external collaborator capabilities the
// connection engine depends on: DeviceProbe, which reads interface snapshots
// from the operating system, and LinkDriver, which performs the actual
// link-layer connect and disconnect actions for one connection kind. The
// exec-based implementations in this package drive standard platform tools;
// the engine itself depends only on the interfaces.
package drivers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"netmand/internal/database"
)

// LinkDriver performs the connect and disconnect actions for one connection
// kind. Implementations must honor the context deadline: every invocation is
// bounded by a per-kind timeout, and a deadline expiry is treated as a
// driver failure by the engine.
type LinkDriver interface {
	// Connect establishes the connection described by the resolved profile
	// on the named interface. Returns nil on success.
	Connect(ctx context.Context, iface string, profile *database.ConnectionProfile) error

	// Disconnect tears down whatever connection is active on the named
	// interface. Returns nil on success.
	Disconnect(ctx context.Context, iface string) error
}

// Registry maps connection kinds to their link drivers. The engine resolves
// a driver at dispatch time; a kind with no registered driver is a
// configuration defect that fails only the requesting call.
type Registry struct {
	drivers map[database.Kind]LinkDriver
}

// NewRegistry creates an empty driver registry.
// Returns a pointer to the newly created Registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[database.Kind]LinkDriver)}
}

// NewDefaultRegistry creates a registry populated with the exec-based
// drivers for all three connection kinds.
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()
	registry.Register(database.KindWired, NewWiredDriver())
	registry.Register(database.KindWireless, NewWirelessDriver())
	registry.Register(database.KindTunnel, NewTunnelDriver())
	return registry
}

// Register installs a driver for a connection kind, replacing any previous
// registration for that kind.
func (r *Registry) Register(kind database.Kind, driver LinkDriver) {
	r.drivers[kind] = driver
}

// Lookup returns the driver registered for a kind, or false if none is.
func (r *Registry) Lookup(kind database.Kind) (LinkDriver, bool) {
	driver, ok := r.drivers[kind]
	return driver, ok
}

// runFunc executes an external command and returns its combined output.
// Drivers take it as an injectable so tests can capture the commands that
// would run without touching the host network stack.
type runFunc func(ctx context.Context, name string, args ...string) (string, error)

// runCommand is the production runFunc. It runs the command under the given
// context and folds a non-zero exit into an error carrying the tool's output.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail != "" {
			return "", fmt.Errorf("%s failed: %s: %w", name, detail, err)
		}
		return "", fmt.Errorf("%s failed: %w", name, err)
	}
	return output.String(), nil
}
