package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmand/internal/database"
	"netmand/internal/drivers"
	"netmand/internal/engine"
	"netmand/internal/store"
)

type recordingDriver struct {
	mu       sync.Mutex
	connects []string
}

func (d *recordingDriver) Connect(ctx context.Context, iface string, profile *database.ConnectionProfile) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connects = append(d.connects, profile.Name)
	return nil
}

func (d *recordingDriver) Disconnect(ctx context.Context, iface string) error {
	return nil
}

func (d *recordingDriver) connectNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.connects...)
}

type fixedProbe struct {
	mu       sync.Mutex
	snapshot []drivers.InterfaceInfo
	err      error
	calls    []time.Time
}

func (p *fixedProbe) Snapshot(ctx context.Context) ([]drivers.InterfaceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, time.Now())
	if p.err != nil {
		return nil, p.err
	}
	return append([]drivers.InterfaceInfo(nil), p.snapshot...), nil
}

func (p *fixedProbe) NetworkInfo(ctx context.Context, iface string) (drivers.NetworkInfo, error) {
	return drivers.NetworkInfo{}, nil
}

func (p *fixedProbe) set(snapshot []drivers.InterfaceInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshot = snapshot
}

func (p *fixedProbe) callTimes() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.calls...)
}

type supervisorEnv struct {
	sup      *Supervisor
	db       *database.Database
	profiles *store.ProfileStore
	states   *store.InterfaceStateTable
	driver   *recordingDriver
	probe    *fixedProbe
}

func newSupervisorEnv(t *testing.T, config Config) *supervisorEnv {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	driver := &recordingDriver{}
	probe := &fixedProbe{}

	registry := drivers.NewRegistry()
	registry.Register(database.KindWired, driver)
	registry.Register(database.KindWireless, driver)
	registry.Register(database.KindTunnel, driver)

	profiles := store.NewProfileStore(db)
	states := store.NewInterfaceStateTable(db)
	eng := engine.New(profiles, states, registry, probe, engine.DefaultTimeouts())

	return &supervisorEnv{
		sup:      New(eng, profiles, states, probe, config),
		db:       db,
		profiles: profiles,
		states:   states,
		driver:   driver,
		probe:    probe,
	}
}

// backdate rewrites the interface's connection timestamp so drop detection
// can be tested against the grace period without sleeping.
func (env *supervisorEnv) backdate(t *testing.T, iface string, age time.Duration) {
	t.Helper()
	state, err := env.states.Get(iface)
	require.NoError(t, err)
	past := time.Now().Add(-age)
	state.ConnectedAt = &past
	require.NoError(t, env.db.SaveInterfaceState(state))
}

func (env *supervisorEnv) connectProfile(t *testing.T, name, iface string) {
	t.Helper()
	require.NoError(t, env.profiles.Create(&database.ConnectionProfile{
		Name: name, Interface: iface, Kind: database.KindWired, Method: database.MethodDHCP, AutoConnect: true,
	}))
	require.NoError(t, env.states.MarkConnecting(iface, name))
	require.NoError(t, env.states.MarkConnected(iface))
}

func TestSupervisor_Poll(t *testing.T) {
	t.Run("should leave a healthy connection alone", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.connectProfile(t, "office", "eth0")
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: true, Connected: true}})

		require.NoError(t, env.sup.Poll(context.Background()))

		state, err := env.states.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusConnected, state.Status)
		assert.Empty(t, env.driver.connectNames())
	})

	t.Run("should tolerate a drop younger than the grace period", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.connectProfile(t, "office", "eth0")
		env.backdate(t, "eth0", 29*time.Second)
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false}})

		require.NoError(t, env.sup.Poll(context.Background()))

		state, err := env.states.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusConnected, state.Status)
		assert.Empty(t, env.driver.connectNames())
	})

	t.Run("should reconnect the bound profile after the grace period", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.connectProfile(t, "office", "eth0")
		env.backdate(t, "eth0", 31*time.Second)
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false}})

		require.NoError(t, env.sup.Poll(context.Background()))

		require.Eventually(t, func() bool {
			state, err := env.states.Get("eth0")
			return err == nil && state.Status == database.StatusConnected
		}, 2*time.Second, 10*time.Millisecond)

		// The bound profile was retried, not rescanned by priority.
		assert.Equal(t, []string{"office"}, env.driver.connectNames())
	})

	t.Run("should not reconnect when no profile is bound", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		require.NoError(t, env.states.SetStatus("eth0", database.StatusConnected))
		env.backdate(t, "eth0", 31*time.Second)
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false}})

		require.NoError(t, env.sup.Poll(context.Background()))

		state, err := env.states.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusDisconnected, state.Status)
		assert.Empty(t, env.driver.connectNames())
	})

	t.Run("should mark interface failed when the bound profile was deleted", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.connectProfile(t, "office", "eth0")
		require.NoError(t, env.profiles.Delete("office"))
		env.backdate(t, "eth0", 31*time.Second)
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false}})

		require.NoError(t, env.sup.Poll(context.Background()))

		require.Eventually(t, func() bool {
			state, err := env.states.Get("eth0")
			return err == nil && state.Status == database.StatusFailed
		}, 2*time.Second, 10*time.Millisecond)
		assert.Empty(t, env.driver.connectNames())

		// The loop survives the condition and keeps polling.
		require.NoError(t, env.sup.Poll(context.Background()))
	})

	t.Run("should refresh last seen on every poll", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: false, Connected: false}})
		before, err := env.states.Get("eth0")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, env.sup.Poll(context.Background()))

		after, err := env.states.Get("eth0")
		require.NoError(t, err)
		assert.True(t, after.LastSeen.After(before.LastSeen))
	})

	t.Run("should fail the poll when the snapshot fails", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.probe.err = errors.New("sysfs unavailable")

		err := env.sup.Poll(context.Background())
		assert.ErrorContains(t, err, "device snapshot failed")
	})

	t.Run("should keep checking other interfaces when one check fails", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		env.probe.set([]drivers.InterfaceInfo{
			{Name: ""},
			{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false},
		})
		before, err := env.states.Get("eth0")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, env.sup.Poll(context.Background()))

		after, err := env.states.Get("eth0")
		require.NoError(t, err)
		assert.True(t, after.LastSeen.After(before.LastSeen))
	})
}

func TestSupervisor_Lifecycle(t *testing.T) {
	t.Run("should auto-connect unconnected interfaces on start", func(t *testing.T) {
		config := DefaultConfig()
		config.PollInterval = time.Hour // keep the loop out of the way
		env := newSupervisorEnv(t, config)
		require.NoError(t, env.profiles.Create(&database.ConnectionProfile{
			Name: "office", Interface: "eth0", Kind: database.KindWired, Method: database.MethodDHCP, AutoConnect: true,
		}))
		env.probe.set([]drivers.InterfaceInfo{
			{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false},
			{Name: "wlan0", Kind: database.KindWireless, Up: true, Connected: true},
		})

		require.NoError(t, env.sup.Start(context.Background()))
		defer env.sup.Stop()

		assert.True(t, env.sup.Running())
		assert.Equal(t, []string{"office"}, env.driver.connectNames())
	})

	t.Run("should skip the startup pass when disabled", func(t *testing.T) {
		config := DefaultConfig()
		config.PollInterval = time.Hour
		config.StartupAutoConnect = false
		env := newSupervisorEnv(t, config)
		require.NoError(t, env.profiles.Create(&database.ConnectionProfile{
			Name: "office", Interface: "eth0", Kind: database.KindWired, Method: database.MethodDHCP, AutoConnect: true,
		}))
		env.probe.set([]drivers.InterfaceInfo{{Name: "eth0", Kind: database.KindWired, Up: true, Connected: false}})

		require.NoError(t, env.sup.Start(context.Background()))
		defer env.sup.Stop()

		assert.Empty(t, env.driver.connectNames())
	})

	t.Run("should reject start while already running", func(t *testing.T) {
		config := DefaultConfig()
		config.PollInterval = time.Hour
		config.StartupAutoConnect = false
		env := newSupervisorEnv(t, config)

		require.NoError(t, env.sup.Start(context.Background()))
		defer env.sup.Stop()

		assert.Error(t, env.sup.Start(context.Background()))
	})

	t.Run("should reject stop while not running", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		assert.Error(t, env.sup.Stop())
	})

	t.Run("should stop cleanly and report not running", func(t *testing.T) {
		config := DefaultConfig()
		config.PollInterval = time.Hour
		config.StartupAutoConnect = false
		env := newSupervisorEnv(t, config)

		require.NoError(t, env.sup.Start(context.Background()))
		require.NoError(t, env.sup.Stop())
		assert.False(t, env.sup.Running())
	})

	t.Run("should poll again after a restart", func(t *testing.T) {
		config := DefaultConfig()
		config.PollInterval = 20 * time.Millisecond
		config.StartupAutoConnect = false
		env := newSupervisorEnv(t, config)

		require.NoError(t, env.sup.Start(context.Background()))
		require.Eventually(t, func() bool {
			return len(env.probe.callTimes()) >= 1
		}, 2*time.Second, 5*time.Millisecond)
		require.NoError(t, env.sup.Stop())

		polled := len(env.probe.callTimes())
		require.NoError(t, env.sup.Start(context.Background()))
		defer env.sup.Stop()

		assert.True(t, env.sup.Running())
		require.Eventually(t, func() bool {
			return len(env.probe.callTimes()) > polled
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("should survive failing polls with a longer interval", func(t *testing.T) {
		config := DefaultConfig()
		config.PollInterval = 20 * time.Millisecond
		config.ErrorBackoff = 3
		config.StartupAutoConnect = false
		env := newSupervisorEnv(t, config)
		env.probe.err = errors.New("sysfs unavailable")

		require.NoError(t, env.sup.Start(context.Background()))
		defer env.sup.Stop()

		require.Eventually(t, func() bool {
			return len(env.probe.callTimes()) >= 2
		}, 2*time.Second, 5*time.Millisecond)
		assert.True(t, env.sup.Running())

		// After the first failure the next poll waits three intervals.
		calls := env.probe.callTimes()
		assert.GreaterOrEqual(t, calls[1].Sub(calls[0]), 45*time.Millisecond)
	})
}

func TestSupervisor_CollectStats(t *testing.T) {
	t.Run("should summarize profiles and interface states", func(t *testing.T) {
		env := newSupervisorEnv(t, DefaultConfig())
		require.NoError(t, env.profiles.Create(&database.ConnectionProfile{
			Name: "office", Interface: "eth0", Kind: database.KindWired, Method: database.MethodDHCP, AutoConnect: true,
		}))
		require.NoError(t, env.profiles.Create(&database.ConnectionProfile{
			Name: "lab", Interface: "eth1", Kind: database.KindWired, Method: database.MethodDHCP,
		}))
		env.connectProfile(t, "cafe", "wlan0")

		stats, err := env.sup.CollectStats()
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalProfiles)
		assert.Equal(t, 2, stats.AutoConnectProfiles)
		assert.Equal(t, 1, stats.ConnectedInterfaces)
		assert.Equal(t, 1, stats.KnownInterfaces)
		assert.False(t, stats.Supervising)
		assert.False(t, stats.CollectedAt.IsZero())
	})
}
