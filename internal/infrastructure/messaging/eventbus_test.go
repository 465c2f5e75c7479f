package messaging

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
)

func newSyncBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	bus := NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestInMemoryEventBus_DeliversToSubscribedType(t *testing.T) {
	bus := newSyncBus(t)

	var got []shared.EventType
	err := bus.Subscribe(shared.EventLevelUp, func(event shared.Event) error {
		got = append(got, event.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("user-1", 3)))

	// The streak event has no subscriber and must not leak across types.
	assert.Equal(t, []shared.EventType{shared.EventLevelUp}, got)
}

func TestInMemoryEventBus_SubscribeAllSeesEveryEvent(t *testing.T) {
	bus := newSyncBus(t)

	var count int
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2)))
	require.NoError(t, bus.Publish(shared.NewStreakUpdatedEvent("user-1", 7)))

	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_PublishNilEvent(t *testing.T) {
	bus := newSyncBus(t)
	assert.Error(t, bus.Publish(nil))
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = false
	bus := NewInMemoryEventBus(cfg)
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewLevelUpEvent("user-1", 1, 2))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_AsyncModeDelivers(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)
	t.Cleanup(func() { _ = bus.Close() })

	var wg sync.WaitGroup
	var count atomic.Int32
	wg.Add(3)
	require.NoError(t, bus.Subscribe(shared.EventBadgeGranted, func(event shared.Event) error {
		count.Add(1)
		wg.Done()
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(shared.NewBadgeGrantedEvent("user-1", "badge-1", "First Steps", 0)))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run in time")
	}
	assert.Equal(t, int32(3), count.Load())
}
