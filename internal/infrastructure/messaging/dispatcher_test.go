package messaging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

// flakyHandler fails a fixed number of times before succeeding.
type flakyHandler struct {
	eventType shared.EventType
	failures  int
	attempts  int
	panics    bool
}

func (h *flakyHandler) Handle(event shared.Event) error {
	h.attempts++
	if h.panics {
		panic("handler exploded")
	}
	if h.attempts <= h.failures {
		return errors.New("transient failure")
	}
	return nil
}

func (h *flakyHandler) EventType() shared.EventType {
	return h.eventType
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *InMemoryEventBus) {
	t.Helper()
	busCfg := DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = false
	bus := NewInMemoryEventBus(busCfg)
	t.Cleanup(func() { _ = bus.Close() })

	cfg := DefaultDispatcherConfig()
	cfg.InitialBackoff = time.Millisecond
	return NewDispatcher(bus, cfg), bus
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d, bus := newTestDispatcher(t)

	h := &flakyHandler{eventType: shared.EventLevelUp, failures: 2}
	require.NoError(t, d.Register(h))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))

	assert.Equal(t, 3, h.attempts)
	assert.Empty(t, d.DeadLetters())
}

func TestDispatcher_DeadLettersAfterExhaustedRetries(t *testing.T) {
	d, bus := newTestDispatcher(t)

	h := &flakyHandler{eventType: shared.EventLevelUp, failures: 100}
	require.NoError(t, d.Register(h))

	// A dead-lettered event must not fail the publish.
	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))

	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, shared.EventLevelUp, dead[0].EventType)
	assert.Equal(t, "user-1", dead[0].AggregateID)
	assert.NotEmpty(t, dead[0].LastError)
}

func TestDispatcher_RecoversFromHandlerPanic(t *testing.T) {
	d, bus := newTestDispatcher(t)

	h := &flakyHandler{eventType: shared.EventBadgeGranted, panics: true}
	require.NoError(t, d.Register(h))

	require.NoError(t, bus.Publish(shared.NewBadgeGrantedEvent("user-1", "badge-1", "First Steps", 0)))

	require.Len(t, d.DeadLetters(), 1)
}

func TestDispatcher_RegisterAllStopsAtFirstFailure(t *testing.T) {
	busCfg := DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = false
	bus := NewInMemoryEventBus(busCfg)
	require.NoError(t, bus.Close())

	d := NewDispatcher(bus, DefaultDispatcherConfig())
	err := d.RegisterAll(&flakyHandler{eventType: shared.EventLevelUp})
	assert.Error(t, err)
}
