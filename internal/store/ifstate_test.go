package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netmand/internal/database"
)

func TestInterfaceStateTable_Get(t *testing.T) {
	table := NewInterfaceStateTable(newTestDB(t))

	t.Run("should create default record lazily", func(t *testing.T) {
		state, err := table.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, "eth0", state.Interface)
		assert.Equal(t, database.StatusDisconnected, state.Status)
		assert.Empty(t, state.BoundProfile)
		assert.Nil(t, state.ConnectedAt)
	})

	t.Run("should persist the lazily created record", func(t *testing.T) {
		states, err := table.List()
		require.NoError(t, err)
		require.Len(t, states, 1)
		assert.Equal(t, "eth0", states[0].Interface)
	})

	t.Run("should return existing record on later get", func(t *testing.T) {
		require.NoError(t, table.SetStatus("eth0", database.StatusFailed))

		state, err := table.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusFailed, state.Status)
	})
}

func TestInterfaceStateTable_Mutations(t *testing.T) {
	table := NewInterfaceStateTable(newTestDB(t))

	t.Run("should bind and unbind profile", func(t *testing.T) {
		require.NoError(t, table.BindProfile("eth0", "office"))
		state, err := table.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, "office", state.BoundProfile)

		require.NoError(t, table.BindProfile("eth0", ""))
		state, err = table.Get("eth0")
		require.NoError(t, err)
		assert.Empty(t, state.BoundProfile)
	})

	t.Run("should update last seen on touch", func(t *testing.T) {
		before, err := table.Get("eth0")
		require.NoError(t, err)

		time.Sleep(10 * time.Millisecond)
		require.NoError(t, table.Touch("eth0"))

		after, err := table.Get("eth0")
		require.NoError(t, err)
		assert.True(t, after.LastSeen.After(before.LastSeen))
	})

	t.Run("should record network info", func(t *testing.T) {
		require.NoError(t, table.RecordNetworkInfo("eth0", "10.0.0.5", "10.0.0.1", []string{"10.0.0.1", "1.1.1.1"}))

		state, err := table.Get("eth0")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.5", state.IPAddress)
		assert.Equal(t, "10.0.0.1", state.Gateway)
		assert.Equal(t, []string{"10.0.0.1", "1.1.1.1"}, state.DNSList())
	})
}

func TestInterfaceStateTable_Transitions(t *testing.T) {
	table := NewInterfaceStateTable(newTestDB(t))

	t.Run("should mark connecting with bound profile", func(t *testing.T) {
		require.NoError(t, table.MarkConnecting("wlan0", "cafe"))

		state, err := table.Get("wlan0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusConnecting, state.Status)
		assert.Equal(t, "cafe", state.BoundProfile)
	})

	t.Run("should mark connected and reset errors", func(t *testing.T) {
		require.NoError(t, table.MarkFailed("wlan0"))
		require.NoError(t, table.MarkConnected("wlan0"))

		state, err := table.Get("wlan0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusConnected, state.Status)
		assert.NotNil(t, state.ConnectedAt)
		assert.Zero(t, state.ErrorCount)
	})

	t.Run("should count consecutive failures", func(t *testing.T) {
		require.NoError(t, table.MarkFailed("wlan0"))
		require.NoError(t, table.MarkFailed("wlan0"))

		state, err := table.Get("wlan0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusFailed, state.Status)
		assert.Equal(t, 2, state.ErrorCount)
	})

	t.Run("should clear binding and timestamp on disconnect", func(t *testing.T) {
		require.NoError(t, table.MarkConnected("wlan0"))
		require.NoError(t, table.MarkDisconnected("wlan0"))

		state, err := table.Get("wlan0")
		require.NoError(t, err)
		assert.Equal(t, database.StatusDisconnected, state.Status)
		assert.Empty(t, state.BoundProfile)
		assert.Nil(t, state.ConnectedAt)
	})
}

func TestInterfaceStateTable_ConcurrentWrites(t *testing.T) {
	t.Run("should not lose a status transition to a concurrent touch", func(t *testing.T) {
		table := NewInterfaceStateTable(newTestDB(t))

		for i := 0; i < 200; i++ {
			require.NoError(t, table.MarkConnecting("eth0", "office"))

			errs := make(chan error, 2)
			go func() { errs <- table.Touch("eth0") }()
			go func() { errs <- table.MarkConnected("eth0") }()
			require.NoError(t, <-errs)
			require.NoError(t, <-errs)

			state, err := table.Get("eth0")
			require.NoError(t, err)
			require.Equal(t, database.StatusConnected, state.Status, "iteration %d", i)
		}
	})
}
