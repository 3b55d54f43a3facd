package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/forgo/planner/api/internal/model"
)

var (
	// ErrNotConfirmed indicates the broker refused a published message
	ErrNotConfirmed = errors.New("broker did not confirm message")

	// ErrClosed indicates the client was used after Close
	ErrClosed = errors.New("broker connection closed")
)

const (
	contentTypeJSON = "application/json"
	dialTimeout     = 10 * time.Second
	heartbeat       = 10 * time.Second
)

// Config holds RabbitMQ connection and queue settings
type Config struct {
	Host           string
	Port           int
	Username       string
	Password       string
	VHost          string
	OptimizerQueue string
	ProgressQueue  string
	ControlQueue   string
	PublishTimeout time.Duration
}

// URI renders the AMQP connection URI
func (c Config) URI() string {
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	return amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    vhost,
	}.String()
}

// Queues returns the queue names the client declares
func (c Config) Queues() []string {
	return []string{c.OptimizerQueue, c.ProgressQueue, c.ControlQueue}
}

// Client publishes work and control messages and consumes progress reports.
// Publishes share one confirm-mode channel and are serialized.
type Client struct {
	cfg    Config
	logger *slog.Logger
	conn   *amqp.Connection

	mu     sync.Mutex
	pubCh  *amqp.Channel
	closed bool
}

// Dial connects to RabbitMQ, declares the durable queues, and puts the
// publishing channel in confirm mode
func Dial(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cfg.URI(), amqp.Config{
		Heartbeat: heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
		Properties: amqp.Table{
			"connection_name": "planner-api",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueues(ch, cfg.Queues()); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	logger.Info("connected to broker",
		"host", cfg.Host,
		"port", cfg.Port,
		"vhost", cfg.VHost,
		"queues", cfg.Queues(),
	)

	return &Client{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		pubCh:  ch,
	}, nil
}

func declareQueues(ch *amqp.Channel, queues []string) error {
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", q, err)
		}
	}
	return nil
}

// PublishJob sends a job's problem to the optimizer queue. The message id is the job id.
func (c *Client) PublishJob(ctx context.Context, msg model.WorkMessage) error {
	pub, err := newPublishing(msg.JobID, msg, msg.Timestamp)
	if err != nil {
		return err
	}
	return c.publish(ctx, c.cfg.OptimizerQueue, pub)
}

// PublishControl sends a cooperative instruction to the control queue
func (c *Client) PublishControl(ctx context.Context, msg model.ControlMessage) error {
	pub, err := newPublishing(msg.MessageID(), msg, msg.Timestamp)
	if err != nil {
		return err
	}
	return c.publish(ctx, c.cfg.ControlQueue, pub)
}

func (c *Client) publish(ctx context.Context, queue string, pub amqp.Publishing) error {
	if c.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PublishTimeout)
		defer cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	confirm, err := c.pubCh.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, pub)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to confirm publish to %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("%w: queue %s message %s", ErrNotConfirmed, queue, pub.MessageId)
	}

	c.logger.Debug("published message",
		"queue", queue,
		"message_id", pub.MessageId,
		"bytes", len(pub.Body),
	)
	return nil
}

// ConsumeProgress starts an auto-ack consumer on the progress queue. The
// returned channel yields raw message bodies and closes when ctx is done or
// the broker delivery stream ends.
func (c *Client) ConsumeProgress(ctx context.Context) (<-chan []byte, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, c.cfg.ProgressQueue, "", true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to consume %s: %w", c.cfg.ProgressQueue, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					c.logger.Warn("progress delivery stream closed", "queue", c.cfg.ProgressQueue)
					return
				}
				select {
				case out <- d.Body:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ping reports whether the broker connection is still open
func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Close closes the publishing channel and the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.pubCh != nil {
		if err := c.pubCh.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// newPublishing encodes a message body as a persistent JSON publishing
func newPublishing(messageID string, body interface{}, at time.Time) (amqp.Publishing, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode message %s: %w", messageID, err)
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    at,
		Body:         payload,
	}, nil
}

// String renders a redacted connection target for logs
func (c Config) String() string {
	return c.Host + ":" + strconv.Itoa(c.Port) + c.VHost
}
