package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/planner/api/internal/model"
)

// EventChannel carries job events from a standalone progress listener to the
// server that owns the live subscribers
const EventChannel = "planner:job-events"

const publishTimeout = 2 * time.Second

// relayEvent is the pub/sub envelope
type relayEvent struct {
	JobID string                  `json:"job_id"`
	Type  model.ServerMessageType `json:"type"`
	Data  json.RawMessage         `json:"data,omitempty"`
}

type channelPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Broadcaster receives relayed events, normally the server's realtime hub
type Broadcaster interface {
	Broadcast(jobID string, kind model.ServerMessageType, data interface{})
}

// EventPublisher publishes job events to EventChannel. It satisfies the
// services' broadcaster so a process without a hub can still reach live
// subscribers. Failures are logged and dropped.
type EventPublisher struct {
	client channelPublisher
	logger *slog.Logger
}

// NewEventPublisher creates a publisher on the given Redis client
func NewEventPublisher(client channelPublisher, logger *slog.Logger) *EventPublisher {
	return &EventPublisher{client: client, logger: logger}
}

// Broadcast publishes one event
func (p *EventPublisher) Broadcast(jobID string, kind model.ServerMessageType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		p.logger.Warn("failed to encode relayed event", "job_id", jobID, "type", kind, "error", err)
		return
	}
	body, err := json.Marshal(relayEvent{JobID: jobID, Type: kind, Data: raw})
	if err != nil {
		p.logger.Warn("failed to encode relayed event", "job_id", jobID, "type", kind, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, EventChannel, body).Err(); err != nil {
		p.logger.Warn("failed to relay event", "job_id", jobID, "type", kind, "error", err)
	}
}

// RelayEvents subscribes to EventChannel and hands every event to dst until
// ctx is cancelled
func RelayEvents(ctx context.Context, client *redis.Client, dst Broadcaster, logger *slog.Logger) error {
	sub := client.Subscribe(ctx, EventChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	logger.Info("relaying job events", "channel", EventChannel)
	forwardEvents(ctx, sub.Channel(), dst, logger)
	return nil
}

func forwardEvents(ctx context.Context, messages <-chan *redis.Message, dst Broadcaster, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var ev relayEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.JobID == "" || ev.Type == "" {
				logger.Warn("ignoring malformed relayed event", "payload", msg.Payload)
				continue
			}
			dst.Broadcast(ev.JobID, ev.Type, ev.Data)
		}
	}
}
