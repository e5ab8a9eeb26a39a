package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeLightChanged is published once per applied light command.
	EventTypeLightChanged EventType = "light.changed"
)

// Default configuration
const (
	DefaultWorkerCount = 4
	DefaultQueueSize   = 100
)

// Event represents an event in the system
type Event struct {
	Type EventType
	Time time.Time
	Data map[string]any
}

// Handler is a function that handles events.
// Handlers run on the bus worker pool and must not block for long.
type Handler func(Event)

type delivery struct {
	event   Event
	handler Handler
}

// Bus fans events out to subscribers through a bounded worker pool.
// Publishers never wait on subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	queue chan delivery
	wg    sync.WaitGroup

	// closing is closed before queue so publishers can stop sending first
	closing   chan struct{}
	closeOnce sync.Once
	queueOnce sync.Once
}

// New creates a new event bus with default settings
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a new event bus with custom worker count and queue size
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus{
		handlers: make(map[EventType][]Handler),
		queue:    make(chan delivery, queueSize),
		closing:  make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for d := range b.queue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(d.event.Type)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			d.handler(d.event)
		}()
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish queues the event for every subscribed handler and returns the
// number of deliveries queued. It never blocks: deliveries are dropped when
// the queue is full or the bus is closing.
func (b *Bus) Publish(event Event) int {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	// The read lock is held across the sends; Close takes the write lock
	// before closing the queue.
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.closing:
		log.Warn().Str("event_type", string(event.Type)).Msg("Event bus closing, dropping event")
		return 0
	default:
	}

	queued := 0
	for _, handler := range b.handlers[event.Type] {
		select {
		case b.queue <- delivery{event: event, handler: handler}:
			queued++
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event bus queue full, dropping event")
		}
	}
	return queued
}

// Close stops accepting events, lets workers drain the queue and waits for
// them until ctx is done.
func (b *Bus) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
	})

	b.mu.Lock()
	b.queueOnce.Do(func() {
		close(b.queue)
	})
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
