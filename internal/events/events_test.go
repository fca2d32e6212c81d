package events_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/chipmon/internal/events"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/monitor"
	"codeberg.org/mutker/chipmon/internal/recovery"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []message
	err          error
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, _ bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.messages = append(c.messages, message{topic: topic, qos: qos, payload: payload.([]byte)})
	}
	return doneToken{err: c.err}
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
}

func (c *fakeClient) published() []message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.messages...)
}

func enabledConfig() events.Config {
	cfg := events.DefaultConfig()
	cfg.Enabled = true
	return cfg
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "chipmon/chip0/events", events.Topic("chipmon", "chip0"))
	assert.Equal(t, "site/a/chip3/events", events.Topic("site/a/", "chip3"))
	assert.Equal(t, "chipmon/default/events", events.Topic("chipmon", ""))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, events.DefaultConfig().Validate())

	cfg := enabledConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Broker = ""
	assert.Error(t, cfg.Validate())

	cfg = enabledConfig()
	cfg.QoS = 3
	assert.Error(t, cfg.Validate())
}

func TestPublisherPublishesJSONEvents(t *testing.T) {
	client := &fakeClient{}
	pub := events.NewPublisher(client, enabledConfig(), logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pub.Run(ctx)
		close(done)
	}()

	pub.Notify(recovery.Event{
		SessionID:   "s-1",
		Chip:        "chip0",
		Type:        recovery.EventLogged,
		Kind:        monitor.ErrorTimeout,
		KindName:    monitor.ErrorTimeout.String(),
		Description: "Timeout recovery successful",
		RetryCount:  1,
		Success:     true,
	})

	require.Eventually(t, func() bool { return len(client.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	msg := client.published()[0]
	assert.Equal(t, "chipmon/chip0/events", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &got))
	assert.Equal(t, "logged", got["type"])
	assert.Equal(t, "Timeout recovery successful", got["description"])
	assert.Equal(t, true, got["success"])

	pub.Close()
	assert.True(t, client.disconnected)
}

func TestPublisherDrainsQueueOnShutdown(t *testing.T) {
	client := &fakeClient{}
	pub := events.NewPublisher(client, enabledConfig(), logger.Nop())

	pub.Notify(recovery.Event{Chip: "chip0", Type: recovery.EventLogged})
	pub.Notify(recovery.Event{Chip: "chip1", Type: recovery.EventDegradation})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.Run(ctx)

	assert.Len(t, client.published(), 2)
}

func TestPublisherSwallowsFailuresAndDropsOverflow(t *testing.T) {
	client := &fakeClient{err: stderrors.New("broker gone")}
	cfg := enabledConfig()
	cfg.BufferSize = 1
	pub := events.NewPublisher(client, cfg, logger.Nop())

	pub.Notify(recovery.Event{Chip: "chip0"})
	pub.Notify(recovery.Event{Chip: "chip0"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { pub.Run(ctx) })
	assert.Empty(t, client.published())
}
