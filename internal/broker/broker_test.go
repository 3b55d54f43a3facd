package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/planner/api/internal/logging"
	"github.com/forgo/planner/api/internal/model"
)

func testConfig() Config {
	return Config{
		Host:           "rabbit.internal",
		Port:           5672,
		Username:       "planner",
		Password:       "s3cret",
		VHost:          "/",
		OptimizerQueue: "optimizer_jobs",
		ProgressQueue:  "optimizer_progress",
		ControlQueue:   "optimizer_control",
		PublishTimeout: time.Second,
	}
}

func TestConfig_URI(t *testing.T) {
	uri, err := amqp.ParseURI(testConfig().URI())
	require.NoError(t, err)

	assert.Equal(t, "amqp", uri.Scheme)
	assert.Equal(t, "rabbit.internal", uri.Host)
	assert.Equal(t, 5672, uri.Port)
	assert.Equal(t, "planner", uri.Username)
	assert.Equal(t, "s3cret", uri.Password)
	assert.Equal(t, "/", uri.Vhost)
}

func TestConfig_URIDefaultsVHost(t *testing.T) {
	cfg := testConfig()
	cfg.VHost = ""

	uri, err := amqp.ParseURI(cfg.URI())
	require.NoError(t, err)
	assert.Equal(t, "/", uri.Vhost)
}

func TestConfig_StringOmitsCredentials(t *testing.T) {
	s := testConfig().String()
	assert.NotContains(t, s, "s3cret")
	assert.Contains(t, s, "rabbit.internal:5672")
}

func TestNewPublishing_WorkMessage(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	msg := model.WorkMessage{
		JobID: "job:abc",
		ProblemData: model.ProblemData{
			Constraints: map[string]interface{}{"timeslots_per_day": float64(8)},
			Preferences: model.ProblemPreferences{
				Students:   []interface{}{},
				Teachers:   []interface{}{},
				Management: map[string]interface{}{},
			},
		},
		Timestamp: at,
	}

	pub, err := newPublishing(msg.JobID, msg, msg.Timestamp)
	require.NoError(t, err)

	assert.Equal(t, "job:abc", pub.MessageId)
	assert.Equal(t, uint8(amqp.Persistent), pub.DeliveryMode)
	assert.Equal(t, contentTypeJSON, pub.ContentType)
	assert.True(t, at.Equal(pub.Timestamp))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, "job:abc", decoded["job_id"])
	assert.Contains(t, decoded, "problem_data")
}

func TestNewPublishing_ControlMessage(t *testing.T) {
	msg := model.ControlMessage{
		JobID:  "job:abc",
		Action: model.ControlActionCancel,
		Data:   map[string]interface{}{},
	}

	pub, err := newPublishing(msg.MessageID(), msg, msg.Timestamp)
	require.NoError(t, err)

	assert.Equal(t, "job:abc_cancel", pub.MessageId)
	assert.False(t, pub.Timestamp.IsZero())

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, "cancel", decoded["action"])
}

func TestNewPublishing_EncodeError(t *testing.T) {
	_, err := newPublishing("bad", map[string]interface{}{"ch": make(chan int)}, time.Time{})
	assert.Error(t, err)
}

func TestDial_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 1

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, cfg, logging.Discard())
	assert.Error(t, err)
	assert.Nil(t, client)
}
