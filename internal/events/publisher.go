package events

import (
	"context"
	"encoding/json"
	"strings"

	"codeberg.org/mutker/chipmon/internal/errors"
	"codeberg.org/mutker/chipmon/internal/logger"
	"codeberg.org/mutker/chipmon/internal/recovery"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher forwards recovery events to an MQTT broker. Notify never blocks
// the recovery engine: events are queued and dropped when the queue is full.
type Publisher struct {
	client Client
	cfg    Config
	logger logger.Logger
	queue  chan recovery.Event
}

// Connect dials the broker configured in cfg.
func Connect(cfg Config, log logger.Logger) (*Publisher, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetPingTimeout(defaultPingTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errFactory.Wrap(ErrConnect, token.Error())
	}

	return NewPublisher(client, cfg, log), nil
}

func NewPublisher(client Client, cfg Config, log logger.Logger) *Publisher {
	size := cfg.BufferSize
	if size < 1 {
		size = defaultBufferSize
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &Publisher{
		client: client,
		cfg:    cfg,
		logger: log,
		queue:  make(chan recovery.Event, size),
	}
}

// Topic returns the topic events of chip are published on.
func Topic(prefix, chip string) string {
	if chip == "" {
		chip = "default"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + chip + "/events"
}

// Notify implements recovery.Notifier.
func (p *Publisher) Notify(ev recovery.Event) {
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn().
			Str("chip", ev.Chip).
			Str("type", string(ev.Type)).
			Msg("Event queue full, dropping event")
	}
}

// Run publishes queued events until ctx is done, then drains what is left.
// Publish failures are logged and never reach the caller.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case ev := <-p.queue:
			p.logFailure(ev, p.publish(ev))
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case ev := <-p.queue:
			p.logFailure(ev, p.publish(ev))
		default:
			return
		}
	}
}

func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesceMS)
}

func (p *Publisher) publish(ev recovery.Event) error {
	errFactory := errors.New()

	payload, err := json.Marshal(ev)
	if err != nil {
		return errFactory.Wrap(ErrEncode, err)
	}

	token := p.client.Publish(Topic(p.cfg.TopicPrefix, ev.Chip), p.cfg.QoS, false, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return errFactory.WithData(ErrPublish, "publish timed out")
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublish, err)
	}
	return nil
}

func (p *Publisher) logFailure(ev recovery.Event, err error) {
	if err == nil {
		return
	}
	p.logger.Warn().
		Err(err).
		Str("chip", ev.Chip).
		Str("type", string(ev.Type)).
		Msg("Failed to publish event")
}
