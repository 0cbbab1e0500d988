package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"

	"captions/internal/domain/entity"

	amqp "github.com/rabbitmq/amqp091-go"
)

type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID string) error
}

type JobConsumer struct {
	channel   *amqp.Channel
	queue     string
	Processor JobProcessor
	Logger    *slog.Logger
}

// Each worker holds at most one unacknowledged job.
const prefetchCount = 1

func NewJobConsumer(conn *amqp.Connection, exchange, routingKey, queue string, p JobProcessor, logger *slog.Logger) (*JobConsumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := setupQueue(ch, exchange, routingKey, queue, prefetchCount); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &JobConsumer{
		channel:   ch,
		queue:     queue,
		Processor: p,
		Logger:    logger,
	}, nil
}

type queueChannel interface {
	exchangeDeclarer
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// setupQueue declares the exchange and a durable queue bound to it, and
// limits unacknowledged deliveries to prefetch. ch is closed on failure.
func setupQueue(ch queueChannel, exchange, routingKey, queue string, prefetch int) (err error) {
	defer func() {
		if err != nil {
			ch.Close()
		}
	}()

	if err := DeclareExchange(ch, exchange); err != nil {
		return err
	}

	_, err = ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	if err := ch.QueueBind(
		queue,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		return err
	}

	return ch.Qos(prefetch, 0, false)
}

// Start consumes until ctx is done or the channel closes. A job whose
// processing fails is not requeued: the failure is already recorded on the
// job itself.
func (c *JobConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("job consumer shutting down")
			return c.channel.Close()
		case msg, ok := <-msgs:
			if !ok {
				c.Logger.Warn("rabbitmq channel closed")
				return nil
			}
			c.handle(ctx, msg)
		}
	}
}

func (c *JobConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	jobID, err := decodeDispatch(msg.Body)
	if err != nil {
		c.Logger.Error("failed to decode dispatch message", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}

	if err := c.Processor.ProcessJob(ctx, jobID); err != nil {
		c.Logger.Error("failed to process job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}
	_ = msg.Ack(false)
}

func decodeDispatch(body []byte) (string, error) {
	var m entity.DispatchMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return "", err
	}
	if m.JobID == "" {
		return "", errMissingJobID
	}
	return m.JobID, nil
}
