package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"captions/internal/domain/entity"
	"captions/pkg/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Names shared by the gateway's publisher and the worker's consumer.
const (
	DispatchExchange   = "jobs.exchange"
	DispatchRoutingKey = "jobs.dispatch"
	DispatchQueue      = "captions.jobs"
)

// RabbitPublisher hands jobs to workers through a topic exchange. The
// channel runs in confirm mode, so a publish only succeeds once the broker
// has taken responsibility for the message.
type RabbitPublisher struct {
	channel    confirmChannel
	exchange   string
	routingKey string
}

type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// confirmChannel is the part of a confirm-mode channel the publisher uses.
type confirmChannel interface {
	publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

type amqpChannel struct {
	*amqp.Channel
}

func (c amqpChannel) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil {
		return nil, err
	}
	return dc, nil
}

func NewRabbitPublisher(conn *amqp.Connection, exchange, routingKey string) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}

	if err := DeclareExchange(ch, exchange); err != nil {
		ch.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}

	return &RabbitPublisher{
		channel:    amqpChannel{ch},
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

type exchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

func DeclareExchange(ch exchangeDeclarer, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true, // durable
		false,
		false,
		false,
		nil,
	)
}

// Publish sends body and waits for the broker's confirmation or ctx expiry.
func (p *RabbitPublisher) Publish(ctx context.Context, messageID string, body json.RawMessage) error {
	dc, err := p.channel.publish(ctx,
		p.exchange,
		p.routingKey,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Body:         body,
		},
	)
	if err != nil {
		return err
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return fmt.Errorf("%w: %s", errNacked, messageID)
	}
	return nil
}

// Dispatch publishes a dispatch message for jobID.
func (p *RabbitPublisher) Dispatch(ctx context.Context, jobID string) error {
	body, err := utils.ToRawMessage(entity.DispatchMessage{JobID: jobID})
	if err != nil {
		return &entity.DispatchFailedError{Err: err}
	}
	if err := p.Publish(ctx, jobID, body); err != nil {
		return &entity.DispatchFailedError{Err: err}
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	return p.channel.Close()
}
