// Package event provides an in-process publish/subscribe bus for registry
// notifications such as committed entity additions.
package event

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"icetrace/pkg/domain"
)

const (
	// EventQueueSize is the buffer of each channel subscriber.
	EventQueueSize = 20
	// AsyncQueueSize bounds PublishAsync's backlog.
	AsyncQueueSize = 256
	// AsyncWorkerPoolSize is the number of goroutines draining the async queue.
	AsyncWorkerPoolSize = 2
)

// EventType names a class of events.
type EventType string

// SubscriberID identifies a subscription for Unsubscribe.
type SubscriberID int

// HandlerFunc consumes events delivered to SubscribeFunc.
type HandlerFunc func(Event)

// Event is a single notification.
type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType EventType, data any) Event {
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Data: data}
}

// EntityAdded is the payload of AddedType events.
type EntityAdded struct {
	Entity domain.EntityType `json:"entity"`
	ID     uint64            `json:"id"`
	Record any               `json:"record"`
}

// AddedType returns the event type published when an entity of kind commits.
func AddedType(kind domain.EntityType) EventType {
	return EventType("registry." + string(kind) + ".added")
}

// Subscriber delivers events to a consumer. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

type asyncEvent struct {
	eventType EventType
	event     Event
}

type busMetrics struct {
	eventsTotal    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	deliveryErrors *prometheus.CounterVec
}

// Bus fans events out to subscribers registered per event type.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType]map[SubscriberID]Subscriber
	lastID      SubscriberID
	metrics     *busMetrics
	logger      *slog.Logger

	asyncQueue chan asyncEvent
	asyncWg    sync.WaitGroup
	stopCh     chan struct{}
	stopOnce   sync.Once
	stopped    bool
}

// NewBus creates a Bus and starts its async workers. A nil registry disables
// metrics; a nil logger falls back to slog.Default.
func NewBus(promRegistry prometheus.Registerer, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		subscribers: make(map[EventType]map[SubscriberID]Subscriber),
		logger:      logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		b.metrics = newBusMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		b.asyncWg.Add(1)
		go b.asyncWorker()
	}
	return b
}

func newBusMetrics(reg prometheus.Registerer) *busMetrics {
	m := &busMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icetrace",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events published by type.",
		}, []string{"type"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "icetrace",
			Subsystem: "events",
			Name:      "subscribers",
			Help:      "Active subscribers by type.",
		}, []string{"type"}),
		deliveryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "icetrace",
			Subsystem: "events",
			Name:      "delivery_errors_total",
			Help:      "Failed or dropped deliveries by type and reason.",
		}, []string{"type", "reason"}),
	}
	reg.MustRegister(m.eventsTotal, m.subscribers, m.deliveryErrors)
	return m
}

func (b *Bus) asyncWorker() {
	defer b.asyncWg.Done()
	for {
		select {
		case <-b.stopCh:
			b.drainAsync()
			return
		case ae := <-b.asyncQueue:
			b.Publish(ae.eventType, ae.event)
		}
	}
}

// drainAsync delivers whatever is still queued when the bus stops.
func (b *Bus) drainAsync() {
	for {
		select {
		case ae := <-b.asyncQueue:
			b.Publish(ae.eventType, ae.event)
		default:
			return
		}
	}
}

type channelSubscriber struct {
	ch     chan Event
	mu     sync.RWMutex
	closed bool
}

func (c *channelSubscriber) Deliver(evt Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	select {
	case c.ch <- evt:
		return nil
	default:
		return fmt.Errorf("subscriber queue full")
	}
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Subscribe returns a buffered channel receiving events of eventType. A
// subscriber whose buffer is full when an event arrives is dropped and its
// channel closed.
func (b *Bus) Subscribe(eventType EventType) (SubscriberID, <-chan Event) {
	sub := &channelSubscriber{ch: make(chan Event, EventQueueSize)}
	return b.Register(eventType, sub), sub.ch
}

// SubscribeFunc invokes fn for each event of eventType on a dedicated goroutine
// that exits when the subscription ends.
func (b *Bus) SubscribeFunc(eventType EventType, fn HandlerFunc) SubscriberID {
	id, ch := b.Subscribe(eventType)
	go func() {
		for evt := range ch {
			fn(evt)
		}
	}()
	return id
}

// Register adds an arbitrary Subscriber and returns its id.
func (b *Bus) Register(eventType EventType, sub Subscriber) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	id := b.lastID
	if _, ok := b.subscribers[eventType]; !ok {
		b.subscribers[eventType] = make(map[SubscriberID]Subscriber)
	}
	b.subscribers[eventType][id] = sub
	if b.metrics != nil {
		b.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return id
}

// Unsubscribe removes and closes a subscription. Unknown ids are ignored.
func (b *Bus) Unsubscribe(eventType EventType, id SubscriberID) {
	b.mu.Lock()
	sub, ok := b.subscribers[eventType][id]
	if ok {
		delete(b.subscribers[eventType], id)
		if len(b.subscribers[eventType]) == 0 {
			delete(b.subscribers, eventType)
		}
		if b.metrics != nil {
			b.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
		}
	}
	b.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Publish delivers evt to every subscriber of eventType on the caller's goroutine.
func (b *Bus) Publish(eventType EventType, evt Event) {
	b.mu.RLock()
	targets := make(map[SubscriberID]Subscriber, len(b.subscribers[eventType]))
	for id, sub := range b.subscribers[eventType] {
		targets[id] = sub
	}
	b.mu.RUnlock()

	for id, sub := range targets {
		if err := deliver(sub, evt); err != nil {
			b.Unsubscribe(eventType, id)
			if b.metrics != nil {
				b.metrics.deliveryErrors.WithLabelValues(string(eventType), "deliver").Inc()
			}
			b.logger.Debug("event delivery error", "type", eventType, "subscriber", id, "err", err)
		}
	}
	if b.metrics != nil {
		b.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

func deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues evt for the worker pool and returns without waiting for
// delivery. It reports false when the bus is stopped or the queue is full.
func (b *Bus) PublishAsync(eventType EventType, evt Event) bool {
	b.mu.RLock()
	stopped := b.stopped
	b.mu.RUnlock()
	if stopped {
		return false
	}
	select {
	case b.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		b.logger.Warn("async event queue full, dropping event", "type", eventType)
		if b.metrics != nil {
			b.metrics.deliveryErrors.WithLabelValues(string(eventType), "async-dropped").Inc()
		}
		return false
	}
}

// Stop rejects further async publishes, lets the workers deliver the events
// already queued and then closes every subscriber. Stop is idempotent.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()

		close(b.stopCh)
		b.asyncWg.Wait()

		b.mu.Lock()
		subs := b.subscribers
		b.subscribers = make(map[EventType]map[SubscriberID]Subscriber)
		b.mu.Unlock()

		for _, byID := range subs {
			for _, sub := range byID {
				sub.Close()
			}
		}
		if b.metrics != nil {
			b.metrics.subscribers.Reset()
		}
	})
}
