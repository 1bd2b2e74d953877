// Package queue moves render jobs between the API and the worker over
// RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/personaforge/studiopod/internal/config"
	"github.com/personaforge/studiopod/internal/logging"
	"github.com/personaforge/studiopod/pkg/models"
)

// RenderQueue is the durable queue render jobs travel on.
const RenderQueue = "render_jobs"

// Client is one AMQP connection with a prefetch-1 channel, so a worker only
// holds a single render at a time.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logging.Logger
}

// NewClient connects to RabbitMQ and declares the render queue.
func NewClient(cfg config.QueueConfig, log *logging.Logger) (*Client, error) {
	vhost := strings.TrimPrefix(cfg.Vhost, "/")
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set qos: %w", err)
	}

	if _, err := channel.QueueDeclare(RenderQueue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Client{conn: conn, channel: channel, log: log}, nil
}

// PublishJob enqueues one render job.
func (c *Client) PublishJob(ctx context.Context, req *models.JobRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = c.channel.PublishWithContext(ctx, "", RenderQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.JobID,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// Consume processes render jobs until the context is canceled. Malformed
// messages are rejected without requeue; processed jobs are acked after the
// handler returns, and the result is published to the reply queue when one
// is named.
func (c *Client) Consume(ctx context.Context, handler func(ctx context.Context, req *models.JobRequest) *models.JobResult) error {
	deliveries, err := c.channel.Consume(RenderQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			var req models.JobRequest
			if err := json.Unmarshal(msg.Body, &req); err != nil {
				c.log.Warnf("rejecting malformed job message: %v", err)
				msg.Nack(false, false)
				continue
			}

			result := handler(ctx, &req)

			if msg.ReplyTo != "" {
				if err := c.publishResult(ctx, msg.ReplyTo, msg.CorrelationId, result); err != nil {
					c.log.Warnf("failed to publish result for job %s: %v", req.JobID, err)
				}
			}

			if err := msg.Ack(false); err != nil {
				c.log.Warnf("failed to ack job %s: %v", req.JobID, err)
			}
		}
	}
}

func (c *Client) publishResult(ctx context.Context, replyTo, correlationID string, result *models.JobResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return c.channel.PublishWithContext(ctx, "", replyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		Body:          body,
	})
}

// Close shuts the channel and connection down.
func (c *Client) Close() {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
