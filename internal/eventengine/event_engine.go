package eventengine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
)

var (
	ErrEventNotRegistered = errors.New("event not registered")
	ErrEngineClosed       = errors.New("event engine is closed")
	ErrEngineBusy         = errors.New("event engine buffer is full")
)

type Publisher interface {
	Publish(event *event.Event) error
}

type Subscriber interface {
	Subscribe(toEventName event.EventName, subscriber *event.Subscriber) error
	Unsubscribe(subscriber *event.Subscriber)
}

type RegisterPublisher interface {
	Publisher
	RegisterEvents(eventNames ...event.EventName)
}

type SubscribeRegisterPublisher interface {
	Subscriber
	RegisterPublisher
}

type EventEngineConfig struct {
	DoneCh        <-chan struct{}
	InternalSrvWG *sync.WaitGroup
	BufferSize    int
}

type eventEngine struct {
	*EventEngineConfig

	mu            sync.RWMutex
	closed        bool
	eventEngineCh chan *event.Event                      // what the engine listens to for published events.
	events        map[event.EventName][]*event.Subscriber // registered events and who listens to them.
}

func NewEventEngine(cfg *EventEngineConfig) (SubscribeRegisterPublisher, error) {
	if cfg == nil {
		return nil, errors.New("'eventEngineConfig' can not be nil")
	}

	if cfg.DoneCh == nil || cfg.InternalSrvWG == nil {
		return nil, errors.New("either DoneCh or InternalSrvWG is nil")
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}

	e := newEventEngine(cfg)

	e.InternalSrvWG.Add(1)
	go e.listen()

	return e, nil
}

func newEventEngine(cfg *EventEngineConfig) *eventEngine {
	return &eventEngine{
		EventEngineConfig: cfg,
		events:            make(map[event.EventName][]*event.Subscriber, 8),
		eventEngineCh:     make(chan *event.Event, cfg.BufferSize),
	}
}

func (e *eventEngine) listen() {
	defer e.InternalSrvWG.Done()

	log.Info().Msg("event engine is listening...")

	for {
		select {
		case <-e.DoneCh:
			log.Info().Msg("event engine is shutting down")
			e.shutdownEventEngineCh()

			// whatever was published before shutdown still goes out.
			for ee := range e.eventEngineCh {
				e.broadcast(ee)
			}

			e.shutdownSubscribersAddressCh()
			log.Info().Msg("event engine stopped")
			return

		case ee := <-e.eventEngineCh:
			e.broadcast(ee)
		}
	}
}

// broadcast hands the payload to every subscriber of the event. A subscriber
// whose channel is full misses this event; nobody else waits on it.
func (e *eventEngine) broadcast(ee *event.Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, sub := range e.events[ee.Name] {
		select {
		case sub.AddressCh <- ee.Payload:
		default:
			log.Warn().
				Str("event", string(ee.Name)).
				Str("subscriber", string(sub.Name)).
				Msg("subscriber is not keeping up, event dropped")
		}
	}
}

// RegisterEvents adds all events a publisher can publish to, to the [eventEngine].
//
// IMPORTANT: Register an event before you try to publish or subscribe to it.
func (e *eventEngine) RegisterEvents(eventNames ...event.EventName) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, eventName := range eventNames {
		if _, exists := e.events[eventName]; exists {
			continue
		}
		e.events[eventName] = nil
	}

	log.Debug().Interface("events", eventNames).Msg("registered events")
}

func (e *eventEngine) Subscribe(toEventName event.EventName, newSubscriber *event.Subscriber) error {
	if newSubscriber == nil || newSubscriber.AddressCh == nil {
		return errors.New("subscriber and its AddressCh can not be nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	subs, ok := e.events[toEventName]
	if !ok {
		return fmt.Errorf("%w: '%v', register it before subscribing", ErrEventNotRegistered, toEventName)
	}

	if slices.Contains(subs, newSubscriber) {
		return nil
	}

	e.events[toEventName] = append(subs, newSubscriber)

	return nil
}

// Unsubscribe removes the subscriber from every event and closes its
// AddressCh. Nothing is sent to the channel after Unsubscribe returns.
func (e *eventEngine) Unsubscribe(subscriber *event.Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return // its channel was closed by the shutdown.
	}

	found := false
	for name, subs := range e.events {
		idx := slices.Index(subs, subscriber)
		if idx < 0 {
			continue
		}
		found = true
		e.events[name] = slices.Delete(subs, idx, idx+1)
	}

	if found {
		close(subscriber.AddressCh)
	}
}

// Publish queues the event for broadcasting. It never blocks: when the engine
// buffer is full the event is rejected with ErrEngineBusy.
func (e *eventEngine) Publish(ee *event.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrEngineClosed
	}

	if _, exists := e.events[ee.Name]; !exists {
		return fmt.Errorf("%w: '%v'", ErrEventNotRegistered, ee.Name)
	}

	select {
	case e.eventEngineCh <- ee:
		return nil
	default:
		return ErrEngineBusy
	}
}

func (e *eventEngine) shutdownEventEngineCh() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	close(e.eventEngineCh)
}

func (e *eventEngine) shutdownSubscribersAddressCh() {
	e.mu.Lock()
	defer e.mu.Unlock()

	// one subscriber may listen to several events; close its channel once.
	closed := make(map[*event.Subscriber]struct{})
	for name, subs := range e.events {
		for _, sub := range subs {
			if _, done := closed[sub]; done {
				continue
			}
			closed[sub] = struct{}{}
			close(sub.AddressCh)
		}
		e.events[name] = nil
	}
}
