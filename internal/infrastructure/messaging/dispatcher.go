package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/learnloop/learnloop-hub/internal/domain/shared"
	"github.com/learnloop/learnloop-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// Sits between the bus and the notification handlers: wraps each handler
// with panic recovery and retries, and parks events whose handler keeps
// failing in a bounded dead-letter buffer for inspection. Handlers are
// idempotent-by-storage, so retrying a whole handler run is safe.
// ══════════════════════════════════════════════════════════════════════════════

// RegisteredHandler couples an event handler with its subscription type.
// The application eventhandlers all satisfy this shape.
type RegisteredHandler interface {
	Handle(event shared.Event) error
	EventType() shared.EventType
}

// DispatcherConfig contains configuration for the Dispatcher.
type DispatcherConfig struct {
	// MaxRetries per handler invocation.
	MaxRetries int

	// InitialBackoff is the first retry delay.
	InitialBackoff time.Duration

	// DeadLetterSize bounds the dead-letter buffer (oldest dropped first).
	DeadLetterSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultDispatcherConfig returns sensible defaults.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		DeadLetterSize: 1000,
	}
}

// Dispatcher wires handlers onto an event bus.
type Dispatcher struct {
	bus     shared.EventBus
	retrier *retry.Retrier
	logger  *slog.Logger

	mu         sync.Mutex
	deadLetter []DeadLetterEntry
	maxDead    int
}

// DeadLetterEntry records an event whose handler exhausted its retries.
type DeadLetterEntry struct {
	EventType   shared.EventType
	AggregateID string
	FailedAt    time.Time
	LastError   string
}

// NewDispatcher creates a new dispatcher on top of the given bus.
func NewDispatcher(bus shared.EventBus, config DispatcherConfig) *Dispatcher {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 100 * time.Millisecond
	}
	if config.DeadLetterSize <= 0 {
		config.DeadLetterSize = 1000
	}

	return &Dispatcher{
		bus: bus,
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxRetries+1),
			retry.WithInitialDelay(config.InitialBackoff),
			retry.WithMaxDelay(5*time.Second),
			// Handlers return plain errors, not retry.Retryable-wrapped
			// ones; retry everything that isn't marked permanent.
			retry.WithRetryIf(func(err error) bool {
				return !retry.IsPermanent(err)
			}),
		),
		logger:  config.Logger.With("component", "dispatcher"),
		maxDead: config.DeadLetterSize,
	}
}

// Register subscribes a handler for its event type, wrapped with retries
// and panic recovery.
func (d *Dispatcher) Register(h RegisteredHandler) error {
	eventType := h.EventType()
	return d.bus.Subscribe(eventType, func(event shared.Event) error {
		err := d.retrier.Do(context.Background(), func(context.Context) error {
			return d.safeHandle(h, event)
		})
		if err != nil {
			d.parkEvent(event, err)
			d.logger.Error("handler exhausted retries",
				"event_type", eventType,
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
		// The bus already logged per-attempt failures; a dead-lettered
		// event must not fail the publish.
		return nil
	})
}

// RegisterAll registers every handler, stopping at the first failure.
func (d *Dispatcher) RegisterAll(handlers ...RegisteredHandler) error {
	for _, h := range handlers {
		if err := d.Register(h); err != nil {
			return fmt.Errorf("register %s handler: %w", h.EventType(), err)
		}
	}
	return nil
}

// safeHandle invokes the handler, converting panics into errors.
func (d *Dispatcher) safeHandle(h RegisteredHandler, event shared.Event) (err error) {
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("handler panic",
				"event_type", event.EventType(),
				"panic", p,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler panicked: %v", p)
		}
	}()
	return h.Handle(event)
}

// parkEvent appends a dead-letter entry, evicting the oldest at capacity.
func (d *Dispatcher) parkEvent(event shared.Event, cause error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.deadLetter) >= d.maxDead {
		d.deadLetter = d.deadLetter[1:]
	}
	d.deadLetter = append(d.deadLetter, DeadLetterEntry{
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		FailedAt:    time.Now().UTC(),
		LastError:   cause.Error(),
	})
}

// DeadLetters returns a copy of the parked events.
func (d *Dispatcher) DeadLetters() []DeadLetterEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DeadLetterEntry, len(d.deadLetter))
	copy(out, d.deadLetter)
	return out
}
