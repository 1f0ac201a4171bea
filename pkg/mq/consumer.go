package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"obraflow/pkg/metrics"
	"obraflow/pkg/otel"
	"obraflow/pkg/trace"
	"obraflow/pkg/util"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// ErrorClassifier reports whether a handler error is worth a retry, plus a short label.
type ErrorClassifier func(err error) (retryable bool, errorType string)

type Consumer struct {
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	conn       *amqp091.Connection
	logger     *zap.Logger

	classify   ErrorClassifier
	retries    *util.RetryCounter
	maxRetries int64
	dlq        *Publisher

	mu      sync.Mutex
	tag     string
	stopped bool
}

// NewConsumer creates a consumer for a specific routing key.
func NewConsumer(url, queueName, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, ch, err := dial(url, "consumer/"+queueName)
	if err != nil {
		return nil, err
	}

	fail := func(format string, err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf(format, err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fail("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		return fail("failed to bind queue: %w", err)
	}

	if err := ch.Qos(16, 0, false); err != nil {
		return fail("failed to set qos: %w", err)
	}

	logger.Info("Consumer initialized",
		zap.String("routing_key", routingKey),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
		classify:   util.IsRetryableError,
		tag:        queueName + "-consumer",
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// SetErrorClassifier replaces the default classifier.
func (c *Consumer) SetErrorClassifier(fn ErrorClassifier) {
	if fn != nil {
		c.classify = fn
	}
}

// EnableRetry bounds requeues per message id and sends exhausted or
// non-retryable messages to the dead letter exchange.
func (c *Consumer) EnableRetry(counter *util.RetryCounter, maxRetries int64, dlq *Publisher) error {
	if dlq != nil {
		if _, err := DeclareDLQ(c.channel, c.routingKey); err != nil {
			return err
		}
	}
	c.retries = counter
	c.maxRetries = maxRetries
	c.dlq = dlq
	return nil
}

// IsConnected reports whether the underlying connection is open.
func (c *Consumer) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.stopped && c.conn != nil && !c.conn.IsClosed()
}

// Stop cancels the delivery subscription so StartConsuming returns once in-flight work is done.
func (c *Consumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if err := c.channel.Cancel(c.tag, false); err != nil {
		c.logger.Warn("Failed to cancel consumer", zap.String("queue", c.queue.Name), zap.Error(err))
	}
}

func (c *Consumer) Close() {
	c.Stop()
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming starts consuming messages. This method blocks and should be called in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		c.tag,
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
	)

	for msg := range deliveries {
		c.process(msg)
	}

	c.logger.Info("Consumer delivery channel closed", zap.String("queue", c.queue.Name))
	return nil
}

// process 保证每条消息都会被 ack、重新入队或转入 DLQ
func (c *Consumer) process(msg amqp091.Delivery) {
	start := time.Now()
	status := "ack"
	defer func() {
		metrics.RecordMQConsumeLatency(c.routingKey, c.queue.Name, status, time.Since(start))
	}()

	ctx := otel.GetTextMapPropagator().Extract(context.Background(), otel.NewMQHeaderCarrier(msg.Headers))
	if traceID, ok := msg.Headers["x-trace-id"].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, c.routingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			status = "panic"
			c.requeue(ctx, log, msg, fmt.Errorf("handler panic: %v", r), "panic")
		}
	}()

	err := c.handler(ctx, msg.Body)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Failed to ack message", zap.Error(ackErr))
		}
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	retryable, errorType := c.classify(err)
	log.Warn("Handler error",
		zap.Bool("retryable", retryable),
		zap.String("error_type", errorType),
		zap.Error(err),
	)

	if !retryable {
		status = "rejected"
		c.deadLetter(ctx, log, msg, errorType, err)
		return
	}
	status = "requeued"
	c.requeue(ctx, log, msg, err, errorType)
}

func (c *Consumer) requeue(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, cause error, errorType string) {
	if c.retries != nil && msg.MessageId != "" {
		key := util.FormatRetryKey(c.queue.Name, msg.MessageId)
		count, err := c.retries.IncrementAndGet(ctx, key)
		if err != nil {
			log.Warn("Retry counter unavailable, requeueing", zap.Error(err))
		} else if !util.ShouldRetry(count, c.maxRetries, true) {
			log.Error("Retries exhausted", zap.Int64("attempts", count))
			c.deadLetter(ctx, log, msg, errorType, cause)
			_ = c.retries.Reset(ctx, key)
			return
		}
	}
	if err := msg.Nack(false, true); err != nil {
		log.Error("Failed to nack message", zap.Error(err))
	}
}

func (c *Consumer) deadLetter(ctx context.Context, log *zap.Logger, msg amqp091.Delivery, errorType string, cause error) {
	if c.dlq != nil {
		if err := c.dlq.PublishToDLQ(ctx, c.routingKey, msg.Body, errorType, cause); err != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(err))
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}
	if err := msg.Nack(false, false); err != nil {
		log.Error("Failed to reject message", zap.Error(err))
	}
}
