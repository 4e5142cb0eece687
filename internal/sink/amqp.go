package sink

import (
	"context"
	"fmt"
	"net"
	"net/url"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/malindarathnayake/AuditFlux/internal/config"
	"github.com/malindarathnayake/AuditFlux/internal/event"
	"github.com/malindarathnayake/AuditFlux/internal/observability"
)

// AMQPSink publishes one persistent JSON message per event to a durable
// fanout exchange.
type AMQPSink struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *observability.Logger
}

func NewAMQPSink(cfg config.AMQPSink, logger *observability.Logger) (*AMQPSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("missing amqp url")
	}
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("missing amqp exchange")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"fanout",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("AMQP session opened", map[string]interface{}{
		"exchange":    cfg.Exchange,
		"routing_key": cfg.RoutingKey,
	})

	return &AMQPSink{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func (s *AMQPSink) Submit(ev *event.Event, payload []byte) error {
	frame, err := encodeRecord(ev, payload)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	err = s.channel.PublishWithContext(
		context.Background(),
		s.exchange,
		s.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         frame,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish record: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if s.channel != nil {
		_ = s.channel.Close()
	}
	return s.conn.Close()
}

// amqpHostPort extracts the dialable host:port from an amqp URL for the
// reachability probe.
func amqpHostPort(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("missing host in amqp url")
	}
	port := u.Port()
	if port == "" {
		port = "5672"
	}
	return net.JoinHostPort(host, port), nil
}
