package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/planner/api/internal/logging"
	"github.com/forgo/planner/api/internal/model"
)

type fakePublisher struct {
	channel  string
	messages []string
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.channel = channel
	f.messages = append(f.messages, string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

type broadcastCall struct {
	jobID string
	kind  model.ServerMessageType
	data  interface{}
}

type recordingBroadcaster struct {
	calls chan broadcastCall
}

func (r *recordingBroadcaster) Broadcast(jobID string, kind model.ServerMessageType, data interface{}) {
	r.calls <- broadcastCall{jobID: jobID, kind: kind, data: data}
}

func TestEventPublisher_Broadcast(t *testing.T) {
	pub := &fakePublisher{}
	p := NewEventPublisher(pub, logging.Discard())

	p.Broadcast("job:1", model.ServerMessageProgressUpdate, model.ProgressUpdate{JobID: "job:1", Iteration: 4})

	require.Len(t, pub.messages, 1)
	assert.Equal(t, EventChannel, pub.channel)

	var ev relayEvent
	require.NoError(t, json.Unmarshal([]byte(pub.messages[0]), &ev))
	assert.Equal(t, "job:1", ev.JobID)
	assert.Equal(t, model.ServerMessageProgressUpdate, ev.Type)
	assert.JSONEq(t, `{"job_id":"job:1","iteration":4,"best_solution":null,"timestamp":"0001-01-01T00:00:00Z"}`, string(ev.Data))
}

func TestEventPublisher_PublishErrorIsSwallowed(t *testing.T) {
	p := NewEventPublisher(&fakePublisher{err: errors.New("connection refused")}, logging.Discard())

	assert.NotPanics(t, func() {
		p.Broadcast("job:1", model.ServerMessageStatusChange, model.StatusChange{JobID: "job:1"})
	})
}

func TestForwardEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages := make(chan *redis.Message, 3)
	dst := &recordingBroadcaster{calls: make(chan broadcastCall, 3)}

	done := make(chan struct{})
	go func() {
		forwardEvents(ctx, messages, dst, logging.Discard())
		close(done)
	}()

	messages <- &redis.Message{Channel: EventChannel, Payload: "not json"}
	messages <- &redis.Message{Channel: EventChannel, Payload: `{"job_id":"job:1","type":"job_completed","data":{"job_id":"job:1"}}`}

	select {
	case call := <-dst.calls:
		assert.Equal(t, "job:1", call.jobID)
		assert.Equal(t, model.ServerMessageJobCompleted, call.kind)
		raw, ok := call.data.(json.RawMessage)
		require.True(t, ok)
		assert.JSONEq(t, `{"job_id":"job:1"}`, string(raw))
	case <-time.After(time.Second):
		t.Fatal("expected relayed event")
	}

	close(messages)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop when the channel closed")
	}
	assert.Empty(t, dst.calls)
}
