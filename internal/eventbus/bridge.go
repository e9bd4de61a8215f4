package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine"
	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
)

// subscriberName is the name of this event handler.
const subscriberName event.SubscriberName = "eventbus.bridge"

type publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

type BridgeConfig struct {
	DoneCh         <-chan struct{}
	InternalSrvWG  *sync.WaitGroup
	EventEngine    eventengine.Subscriber
	Publisher      publisher
	AddressChSize  int
	PublishTimeout time.Duration
}

// Bridge forwards every broadcast event to the message broker. Delivery is
// best effort: failures are logged and the event is dropped.
type Bridge struct {
	*BridgeConfig
	addressCh chan event.Payload
}

// envelope is the message body written to the broker.
type envelope struct {
	Event      event.EventName `json:"event"`
	Data       event.Payload   `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewBridge(cfg *BridgeConfig) (*Bridge, error) {
	if cfg == nil || cfg.DoneCh == nil || cfg.InternalSrvWG == nil || cfg.EventEngine == nil || cfg.Publisher == nil {
		return nil, fmt.Errorf("either 'DoneCh', 'InternalSrvWG', 'EventEngine' or 'Publisher' is nil in '%s'", subscriberName)
	}

	if cfg.AddressChSize <= 0 {
		cfg.AddressChSize = 64
	}

	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}

	b := &Bridge{
		BridgeConfig: cfg,
		addressCh:    make(chan event.Payload, cfg.AddressChSize),
	}

	if err := b.addSubscription(); err != nil {
		return nil, err
	}

	b.InternalSrvWG.Add(1)
	go b.listen()

	return b, nil
}

func (b *Bridge) listen() {
	defer b.InternalSrvWG.Done()

	log.Info().Str("subscriber", string(subscriberName)).Msg("listening...")

	// the event engine closes addressCh on shutdown, which ends the loop.
	for payload := range b.addressCh {
		b.forward(payload)
	}

	log.Info().Str("subscriber", string(subscriberName)).Msg("shutting down")
}

func (b *Bridge) forward(payload event.Payload) {
	body, err := json.Marshal(envelope{
		Event:      payload.EventName(),
		Data:       payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("event", string(payload.EventName())).Msg("failed to marshal event for broker")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.PublishTimeout)
	defer cancel()

	if err := b.Publisher.Publish(ctx, string(payload.EventName()), body); err != nil {
		log.Warn().Err(err).Str("event", string(payload.EventName())).Msg("failed to forward event to broker")
		return
	}

	log.Debug().Str("event", string(payload.EventName())).Msg("event forwarded to broker")
}

// addSubscription subscribes the bridge to every broadcast event.
func (b *Bridge) addSubscription() error {
	sub := &event.Subscriber{
		Name:      subscriberName,
		AddressCh: b.addressCh,
	}

	var errs error
	for _, name := range event.BroadcastEventNames {
		errs = errors.Join(errs, b.EventEngine.Subscribe(name, sub))
	}

	if errs != nil {
		b.EventEngine.Unsubscribe(sub)
		return fmt.Errorf("error subscribing %s to events: %w", subscriberName, errs)
	}

	return nil
}
