// Copyright (c) 2026 AetherCore contributors.

/*
Package eventbus implements a synchronous, in-process publish/subscribe
channel for decoupled notification between engine components and gameplay
modules. Publish fans an event out to every subscriber of its topic in
subscription order, on the publisher's own goroutine; a subscriber that
panics is caught, logged, and does not block its siblings.
*/
package eventbus

import (
	"log/slog"
	"reflect"
	"sync"
)

// Event is a value-semantic notification: handlers must not mutate
// Payload to communicate with other subscribers, since each subscriber on
// a topic may observe the same map.
type Event struct {
	Topic     string
	Timestamp int64 // unix nanos, stamped by the caller of Publish
	Payload   map[string]any
}

// Handler receives a published Event.
type Handler func(Event)

// defaultHistoryCapacity is the ring buffer size used when Config.HistoryCapacity is zero.
const defaultHistoryCapacity = 100

// Config configures a new Bus.
type Config struct {
	// HistoryCapacity bounds the per-topic ring buffer of recent events
	// retained for diagnostics. Zero means [defaultHistoryCapacity].
	HistoryCapacity int
	Logger          *slog.Logger
}

// Bus is a synchronous, topic-keyed publish/subscribe channel.
type Bus struct {
	mu              sync.Mutex
	subscribers     map[string][]Handler
	history         map[string][]Event
	historyCapacity int
	logger          *slog.Logger
}

// New constructs a Bus from cfg.
func New(cfg Config) *Bus {
	capacity := cfg.HistoryCapacity
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers:     make(map[string][]Handler),
		history:         make(map[string][]Event),
		historyCapacity: capacity,
		logger:          logger,
	}
}

// Subscribe registers handler for topic. Subscribing the same handler
// twice results in two invocations per publish — each call adds its own
// registration.
func (b *Bus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
}

// Unsubscribe removes the first registration of handler on topic, leaving
// any other handlers on that topic — including other registrations of the
// same function value — untouched. Go funcs are not comparable with ==, so
// handler identity is compared via its code pointer (reflect.ValueOf(...).
// Pointer()); this matches handler by the function it wraps, the same way
// the reference engine's EventBus.unsubscribe does a list.remove(handler)
// by object identity. Unsubscribing a handler that was never subscribed,
// or is already removed, is a no-op. To clear every handler on a topic at
// once, use [Bus.ClearSubscribers] instead.
func (b *Bus) Unsubscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := b.subscribers[topic]
	target := reflect.ValueOf(handler).Pointer()
	for i, h := range handlers {
		if h == nil {
			continue
		}
		if reflect.ValueOf(h).Pointer() == target {
			b.subscribers[topic] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// SubscribeIndexed registers handler for topic and returns a token that
// [Bus.UnsubscribeIndexed] can later use to remove exactly this
// registration, leaving any others on the same topic intact.
func (b *Bus) SubscribeIndexed(topic string, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], handler)
	return len(b.subscribers[topic]) - 1
}

// UnsubscribeIndexed removes the handler registered at token by
// [Bus.SubscribeIndexed], replacing its slot with a no-op so other
// indices on the same topic remain valid.
func (b *Bus) UnsubscribeIndexed(topic string, token int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	handlers := b.subscribers[topic]
	if token < 0 || token >= len(handlers) {
		return
	}
	handlers[token] = nil
}

// Publish invokes every subscriber of event.Topic synchronously, in
// subscription order. A handler panic is recovered, logged, and does not
// prevent remaining handlers from running. The event is also appended to
// that topic's bounded history ring buffer.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	handlers := append([]Handler(nil), b.subscribers[event.Topic]...)
	b.appendHistory(event)
	b.mu.Unlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		b.invoke(handler, event)
	}
}

func (b *Bus) invoke(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("eventbus: handler panicked",
				slog.String("topic", event.Topic),
				slog.Any("recovered", r))
		}
	}()
	handler(event)
}

func (b *Bus) appendHistory(event Event) {
	buf := append(b.history[event.Topic], event)
	if len(buf) > b.historyCapacity {
		buf = buf[len(buf)-b.historyCapacity:]
	}
	b.history[event.Topic] = buf
}

// GetHistory returns a copy of the retained events for topic, or across
// every topic (oldest first per topic, topics in no guaranteed order) if
// topic is empty.
func (b *Bus) GetHistory(topic string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if topic != "" {
		return append([]Event(nil), b.history[topic]...)
	}

	var all []Event
	for _, events := range b.history {
		all = append(all, events...)
	}
	return all
}

// ClearSubscribers removes every handler for topic, or for every topic if
// topic is empty. History is unaffected.
func (b *Bus) ClearSubscribers(topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if topic == "" {
		b.subscribers = make(map[string][]Handler)
		return
	}
	delete(b.subscribers, topic)
}
