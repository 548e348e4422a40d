package session

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brifyai/pautapro/internal/model"
	"github.com/brifyai/pautapro/internal/monitoring"
)

func TestManager_CreateGet(t *testing.T) {
	m := NewManager(time.Hour, nil)

	s := m.Create()
	require.NotEmpty(t, s.ID)
	assert.Equal(t, StateIdle, s.State())

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = m.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Len())
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(time.Hour, nil)

	a := m.GetOrCreate("chat-1")
	b := m.GetOrCreate("chat-1")
	assert.Same(t, a, b)
	assert.Equal(t, "chat-1", a.ID)

	c := m.GetOrCreate("")
	assert.NotEqual(t, "chat-1", c.ID)
	assert.Equal(t, 2, m.Len())
}

func TestManager_Delete(t *testing.T) {
	m := NewManager(time.Hour, nil)
	s := m.Create()

	assert.True(t, m.Delete(s.ID))
	assert.False(t, m.Delete(s.ID))
	assert.Equal(t, 0, m.Len())
}

func TestManager_Sweep(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	m := NewManager(30*time.Minute, metrics)
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	old := m.Create()
	fresh := m.Create()
	fresh.touch(start.Add(20 * time.Minute))

	busy := m.Create()
	busy.turn.Lock()
	defer busy.turn.Unlock()

	n := m.Sweep(start.Add(40 * time.Minute))
	assert.Equal(t, 1, n)

	_, ok := m.Get(old.ID)
	assert.False(t, ok)
	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
	_, ok = m.Get(busy.ID)
	assert.True(t, ok, "a session mid-turn is never evicted")
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SessionsActive), 0)
}

func TestManager_OnEvict(t *testing.T) {
	m := NewManager(30*time.Minute, nil)
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	var gone []string
	m.OnEvict(func(id string) { gone = append(gone, id) })

	deleted := m.Create()
	idle := m.Create()
	kept := m.Create()
	kept.touch(start.Add(20 * time.Minute))

	require.True(t, m.Delete(deleted.ID))
	assert.False(t, m.Delete(deleted.ID))
	assert.Equal(t, 1, m.Sweep(start.Add(40*time.Minute)))

	assert.Equal(t, []string{deleted.ID, idle.ID}, gone)
}

func TestManager_SweepDisabled(t *testing.T) {
	m := NewManager(0, nil)
	m.Create()
	assert.Equal(t, 0, m.Sweep(time.Now().Add(24*time.Hour)))
	assert.Equal(t, 1, m.Len())
}

func TestManager_RunStops(t *testing.T) {
	m := NewManager(time.Millisecond, nil)
	m.Create()
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestSession_PendingIsCopy(t *testing.T) {
	s := newSession("s", time.Now())
	assert.Nil(t, s.Pending())

	s.setPending(&model.PendingOrder{Structure: model.OrderStructure{Orden: model.Orden{Producto: "A", IDCliente: model.ID(1)}}})
	assert.Equal(t, StateAwaitingConfirmation, s.State())

	p := s.Pending()
	*p.Structure.Orden.IDCliente = 99
	p.Structure.Orden.Producto = "B"

	again := s.Pending()
	assert.Equal(t, int64(1), *again.Structure.Orden.IDCliente)
	assert.Equal(t, "A", again.Structure.Orden.Producto)

	s.clearPending(StateCancelled)
	assert.False(t, s.HasPending())
	assert.Equal(t, StateCancelled, s.State())
}
