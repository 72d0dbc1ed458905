package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"catalog_ingest/internal/domain"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// RabbitMQ publishes item change events to a durable direct exchange.
type RabbitMQ struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string
	logger     *slog.Logger

	// amqp channels must not be shared between concurrent publishers.
	mu      sync.Mutex
	channel *amqp.Channel
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

func declareTopology(ch *amqp.Channel, cfg Config) error {
	err := ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// ItemMessage is the event body consumers receive for every stored item.
type ItemMessage struct {
	Action    string      `json:"action"`
	Item      ItemPayload `json:"item"`
	Timestamp time.Time   `json:"timestamp"`
}

type ItemPayload struct {
	ID            uuid.UUID  `json:"id"`
	ExternalID    string     `json:"external_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	UploadDate    time.Time  `json:"upload_date"`
	LengthSeconds int        `json:"length_seconds"`
	CategoryID    uuid.UUID  `json:"category_id"`
	SourceID      *uuid.UUID `json:"source_id,omitempty"`
}

func newItemMessage(item *domain.Item, isNew bool, now time.Time) ItemMessage {
	action := ActionUpdate
	if isNew {
		action = ActionCreate
	}

	return ItemMessage{
		Action: action,
		Item: ItemPayload{
			ID:            item.ID,
			ExternalID:    item.ExternalID,
			Title:         item.Title,
			Description:   item.Description,
			UploadDate:    item.UploadDate,
			LengthSeconds: item.Length,
			CategoryID:    item.CategoryID,
			SourceID:      item.SourceID,
		},
		Timestamp: now.UTC(),
	}
}

func (r *RabbitMQ) Publish(ctx context.Context, item *domain.Item, isNew bool) error {
	msg := newItemMessage(item, isNew, time.Now())

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	r.mu.Lock()
	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    item.ID.String(),
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.logger.Debug("published item",
		"external_id", item.ExternalID,
		"action", msg.Action,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
