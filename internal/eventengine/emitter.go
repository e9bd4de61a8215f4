package eventengine

import (
	"github.com/rs/zerolog/log"

	"github.com/clarencepanto/stockflow-api-backend/internal/eventengine/event"
)

// Emitter is the notification capability handed to the transaction engines.
// A nil Emitter, or one without a publisher, drops events silently.
type Emitter struct {
	publisher Publisher
}

func NewEmitter(publisher Publisher) *Emitter {
	return &Emitter{publisher: publisher}
}

// Emit publishes payload and only logs when that fails; the caller's
// operation has already committed and must not observe notifier errors.
func (em *Emitter) Emit(payload event.Payload) {
	if em == nil || em.publisher == nil || payload == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("event", string(payload.EventName())).Msg("event publisher panicked")
		}
	}()

	err := em.publisher.Publish(
		&event.Event{
			Name:    payload.EventName(),
			Payload: payload,
		},
	)
	if err != nil {
		log.Warn().Err(err).Str("event", string(payload.EventName())).Msg("failed to publish event")
	}
}
