// Package events bridges the controller to an MQTT broker: location updates
// arrive on {topic}/location and status snapshots are published retained on
// {topic}/status.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smokyabdulrahman/ramadan-times/internal/controller"
	"github.com/smokyabdulrahman/ramadan-times/internal/geo"
)

const (
	qos             = 1
	disconnectQuiet = 250 // ms
	connectTimeout  = 10 * time.Second
)

// client is the part of mqtt.Client the bridge uses.
type client interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Bridge is safe for concurrent use.
type Bridge struct {
	client client
	topic  string
	logger zerolog.Logger

	mu     sync.Mutex
	closed bool
	locs   chan geo.Location
}

// LocationTopic is where location updates are received.
func LocationTopic(topic string) string { return topic + "/location" }

// StatusTopic is where status snapshots are published.
func StatusTopic(topic string) string { return topic + "/status" }

func newBridge(c client, topic string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		client: c,
		topic:  topic,
		logger: logger,
		locs:   make(chan geo.Location, 1),
	}
}

// Connect dials broker and subscribes to the location topic. The
// subscription is renewed on every reconnect. A retained "offline" status
// is registered as the will message.
func Connect(broker, topic string, logger zerolog.Logger) (*Bridge, error) {
	b := newBridge(nil, topic, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("ramadan-times-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(StatusTopic(topic), `{"state":"offline"}`, qos, true)
	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("broker", broker).Msg("connected to MQTT broker")
		if err := b.Subscribe(); err != nil {
			logger.Error().Err(err).Msg("MQTT subscribe failed")
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("MQTT connection lost")
	}

	c := mqtt.NewClient(opts)
	b.client = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return b, nil
}

// Subscribe registers the location handler.
func (b *Bridge) Subscribe() error {
	topic := LocationTopic(b.topic)
	if token := b.client.Subscribe(topic, qos, b.onLocation); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// Locations delivers decoded location updates. Only the latest pending
// update is kept. The channel is closed by Close.
func (b *Bridge) Locations() <-chan geo.Location {
	return b.locs
}

func (b *Bridge) onLocation(_ mqtt.Client, msg mqtt.Message) {
	var loc geo.Location
	if err := json.Unmarshal(msg.Payload(), &loc); err != nil {
		b.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("ignoring malformed location message")
		return
	}
	if !loc.HasCoordinates() && loc.City == "" {
		b.logger.Warn().Str("topic", msg.Topic()).Msg("ignoring location message without coordinates or city")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case <-b.locs:
	default:
	}
	b.locs <- loc
	b.logger.Debug().Str("location", loc.String()).Msg("location message received")
}

// PublishStatus publishes s retained on the status topic.
func (b *Bridge) PublishStatus(s controller.Snapshot) error {
	payload, err := json.Marshal(s.Status())
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	topic := StatusTopic(b.topic)
	token := b.client.Publish(topic, qos, true, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Run publishes every snapshot from snaps until ctx is done or snaps closes.
func (b *Bridge) Run(ctx context.Context, snaps <-chan controller.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-snaps:
			if !ok {
				return
			}
			if err := b.PublishStatus(s); err != nil {
				b.logger.Warn().Err(err).Msg("status publish failed")
			}
		}
	}
}

// Close disconnects and closes the location channel.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.locs)
	b.mu.Unlock()

	b.client.Disconnect(disconnectQuiet)
}
