package server

import (
	"context"
	"sync"
	"time"
)

const (
	// EventPageChanged announces a created or updated wiki page.
	EventPageChanged = "page-change"
	// EventTierLinksChanged announces a replaced tier ability link set.
	EventTierLinksChanged = "tier-links-change"

	// TopicPages carries wiki page events.
	TopicPages = "pages"
	// TopicTiers carries tier link events.
	TopicTiers = "tiers"
)

// ChangeEvent is broadcast to in-process subscribers after a successful
// mutation so cached snapshots can be refreshed.
type ChangeEvent struct {
	Topic     string
	EventType string
	EntityIDs []int64
	Timestamp time.Time
}

// ChangeDispatcher fans change events out to per-topic subscribers. Slow
// subscribers are skipped rather than blocking the publisher.
type ChangeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*changeSubscriber
	nextID      int64
	bufferSize  int
}

type changeSubscriber struct {
	id     int64
	stream chan ChangeEvent
}

// NewChangeDispatcher constructs an empty dispatcher.
func NewChangeDispatcher() *ChangeDispatcher {
	return &ChangeDispatcher{
		subscribers: make(map[string]map[int64]*changeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for the topic. The subscription ends when
// the context is cancelled or the returned cleanup is called.
func (d *ChangeDispatcher) Subscribe(ctx context.Context, topic string) (<-chan ChangeEvent, func()) {
	if topic == "" {
		ch := make(chan ChangeEvent)
		close(ch)
		return ch, func() {}
	}
	subscriber := &changeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan ChangeEvent, d.bufferSize),
	}
	d.registerSubscriber(topic, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(topic, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to all current subscribers of its topic.
func (d *ChangeDispatcher) Publish(event ChangeEvent) {
	if event.Topic == "" || event.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[event.Topic]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*changeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *ChangeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *ChangeDispatcher) registerSubscriber(topic string, subscriber *changeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[topic]; !ok {
		d.subscribers[topic] = make(map[int64]*changeSubscriber)
	}
	d.subscribers[topic][subscriber.id] = subscriber
}

func (d *ChangeDispatcher) unregisterSubscriber(topic string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[topic]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, topic)
		}
	}
	d.mu.Unlock()
}
