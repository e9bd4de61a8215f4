package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

const (
	publishTimeout = 5 * time.Second
	reconnectDelay = 5 * time.Second
)

var ErrNotReady = errors.New("rabbitmq publisher not ready")

type RabbitMQConfig struct {
	URL          string
	ExchangeName string
	ExchangeType string // defaults to "topic"
}

// RabbitMQPublisher publishes to one exchange over a confirm-mode channel
// and reconnects in the background when the broker drops the connection.
type RabbitMQPublisher struct {
	config RabbitMQConfig

	mu              sync.Mutex
	connection      *amqp.Connection
	producerChan    *amqp.Channel
	notifyConnClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	deliveryTag     uint64 // tag of the last publish on producerChan
	isReady         bool

	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewRabbitMQPublisher(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	if cfg.URL == "" || cfg.ExchangeName == "" {
		return nil, errors.New("rabbitmq url and exchange name are required")
	}

	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}

	rmq := &RabbitMQPublisher{
		config:  cfg,
		closeCh: make(chan struct{}),
	}

	if err := rmq.connect(); err != nil {
		return nil, fmt.Errorf("initial RabbitMQ connection failed: %w", err)
	}

	go rmq.handleReconnect()

	return rmq, nil
}

func (rmq *RabbitMQPublisher) connect() error {
	rmq.mu.Lock()
	defer rmq.mu.Unlock()

	log.Info().Str("exchange", rmq.config.ExchangeName).Msg("connecting to RabbitMQ")

	conn, err := amqp.Dial(rmq.config.URL)
	if err != nil {
		return fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open producer channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("producer channel could not be put into confirm mode: %w", err)
	}

	err = ch.ExchangeDeclare(
		rmq.config.ExchangeName, // name
		rmq.config.ExchangeType, // type
		true,                    // durable
		false,                   // auto-deleted
		false,                   // internal
		false,                   // no-wait
		nil,                     // arguments
	)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", rmq.config.ExchangeName, err)
	}

	rmq.connection = conn
	rmq.producerChan = ch
	rmq.notifyConnClose = conn.NotifyClose(make(chan *amqp.Error, 1))
	rmq.notifyConfirm = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	rmq.deliveryTag = 0
	rmq.isReady = true

	log.Info().Str("exchange", rmq.config.ExchangeName).Msg("RabbitMQ connected and exchange declared")
	return nil
}

func (rmq *RabbitMQPublisher) handleReconnect() {
	for {
		rmq.mu.Lock()
		notifyConnClose := rmq.notifyConnClose
		rmq.mu.Unlock()

		select {
		case <-rmq.closeCh:
			return
		case err, ok := <-notifyConnClose:
			if !ok && err == nil {
				// closed by us or the library; the closeCh case decides.
				select {
				case <-rmq.closeCh:
					return
				default:
				}
			}
			log.Error().Err(err).Msg("RabbitMQ connection lost, reconnecting")
		}

		rmq.mu.Lock()
		rmq.isReady = false
		rmq.mu.Unlock()

		for attempt := 1; ; attempt++ {
			select {
			case <-rmq.closeCh:
				return
			case <-time.After(reconnectDelay):
			}

			if err := rmq.connect(); err != nil {
				log.Warn().Err(err).Int("attempt", attempt).Msg("RabbitMQ reconnection failed")
				continue
			}

			log.Info().Int("attempt", attempt).Msg("RabbitMQ reconnected")
			break
		}
	}
}

// Publish sends body to the exchange under routingKey and waits for the
// broker to confirm it.
func (rmq *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	rmq.mu.Lock()
	defer rmq.mu.Unlock()

	if !rmq.isReady || rmq.producerChan == nil {
		return ErrNotReady
	}

	err := rmq.producerChan.Publish(
		rmq.config.ExchangeName, // exchange
		routingKey,              // routing key
		false,                   // mandatory
		false,                   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	rmq.deliveryTag++

	return awaitConfirm(ctx, rmq.notifyConfirm, rmq.deliveryTag, publishTimeout)
}

// awaitConfirm waits for the confirmation of the publish with deliveryTag.
// Confirmations of earlier publishes that timed out are skipped.
func awaitConfirm(ctx context.Context, confirms <-chan amqp.Confirmation, deliveryTag uint64, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case confirm, ok := <-confirms:
			if !ok {
				return errors.New("confirm channel closed before broker confirmation")
			}
			if confirm.DeliveryTag < deliveryTag {
				log.Debug().Uint64("deliveryTag", confirm.DeliveryTag).Msg("discarding late broker confirmation")
				continue
			}
			if !confirm.Ack {
				return errors.New("message published but not confirmed by broker")
			}
			return nil
		case <-timer.C:
			return errors.New("publish confirmation timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rmq *RabbitMQPublisher) Close() {
	rmq.closeOnce.Do(func() {
		close(rmq.closeCh)

		rmq.mu.Lock()
		defer rmq.mu.Unlock()

		rmq.isReady = false

		if rmq.producerChan != nil {
			if err := rmq.producerChan.Close(); err != nil {
				log.Error().Err(err).Msg("error closing RabbitMQ producer channel")
			}
			rmq.producerChan = nil
		}

		if rmq.connection != nil && !rmq.connection.IsClosed() {
			if err := rmq.connection.Close(); err != nil {
				log.Error().Err(err).Msg("error closing RabbitMQ connection")
			}
			rmq.connection = nil
		}

		log.Info().Msg("RabbitMQ publisher closed")
	})
}
