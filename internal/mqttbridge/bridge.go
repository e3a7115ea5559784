// Package mqttbridge publishes the state of each room to an MQTT broker, and sets a room's target temperature
// when a value is published on its command topic.
//
// Topics, relative to the configured prefix:
//
//	<prefix>/<room-id>/state        room state, as JSON (retained)
//	<prefix>/<room-id>/available    "online", or "offline" if the API no longer reports the room (retained)
//	<prefix>/<room-id>/target/set   target temperature, in degrees Celsius. An empty payload is ignored
package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/clambin/adax-monitor/internal/device"
	"github.com/clambin/adax-monitor/internal/poller"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	qos            = 1
	publishTimeout = 10 * time.Second
	commandTimeout = 30 * time.Second
)

// Config contains the MQTT session parameters.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Registry gives access to the devices.
type Registry interface {
	Device(id int) (*device.Device, bool)
}

// Bridge connects the devices to an MQTT broker.
type Bridge struct {
	client   mqtt.Client
	registry Registry
	poller   poller.Poller
	topic    string
	logger   *slog.Logger
	ctx      context.Context
}

// New returns a Bridge for the broker in cfg. New doesn't connect to the broker: that's done by Run.
func New(cfg Config, registry Registry, p poller.Poller, logger *slog.Logger) *Bridge {
	b := newBridge(nil, cfg.Topic, registry, p, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	// setting a target temperature calls the Adax API: don't block the client's message loop
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("connection to broker lost", "err", err)
	})
	b.client = mqtt.NewClient(opts)
	return b
}

func newBridge(client mqtt.Client, topic string, registry Registry, p poller.Poller, logger *slog.Logger) *Bridge {
	return &Bridge{
		client:   client,
		registry: registry,
		poller:   p,
		topic:    strings.TrimSuffix(topic, "/"),
		logger:   logger,
		ctx:      context.Background(),
	}
}

// Run connects to the broker and publishes every Update received from the poller, until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Debug("started")
	defer b.logger.Debug("stopped")

	b.ctx = ctx
	token := b.client.Connect()
	select {
	case <-ctx.Done():
		b.client.Disconnect(0)
		return nil
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
	}
	defer b.client.Disconnect(250)

	ch := b.poller.Subscribe()
	defer b.poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			b.publish(update)
		}
	}
}

func (b *Bridge) onConnect(client mqtt.Client) {
	topic := b.topic + "/+/target/set"
	token := client.Subscribe(topic, qos, b.handleSetTarget)
	if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
		b.logger.Error("failed to subscribe", "topic", topic, "err", token.Error())
		return
	}
	b.logger.Info("connected to broker", "subscribed", topic)
	// request a fresh update, so retained states are current
	b.poller.Refresh()
}

func (b *Bridge) publish(update poller.Update) {
	for _, room := range update.Rooms {
		payload, err := json.Marshal(room)
		if err != nil {
			b.logger.Error("failed to encode room state", "err", err)
			continue
		}
		b.send(b.roomTopic(room.ID, "state"), payload)

		availability := "online"
		if slices.Contains(update.Missing, room.ID) {
			availability = "offline"
		}
		b.send(b.roomTopic(room.ID, "available"), []byte(availability))
	}
}

func (b *Bridge) send(topic string, payload []byte) {
	token := b.client.Publish(topic, qos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		b.logger.Warn("publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Error("failed to publish", "topic", topic, "err", err)
	}
}

func (b *Bridge) roomTopic(id int, suffix string) string {
	return b.topic + "/" + strconv.Itoa(id) + "/" + suffix
}

func (b *Bridge) handleSetTarget(_ mqtt.Client, msg mqtt.Message) {
	logger := b.logger.With("topic", msg.Topic())

	d, err := b.lookup(msg.Topic())
	if err != nil {
		logger.Warn("invalid command", "err", err)
		return
	}
	var target *float64
	if payload := strings.TrimSpace(string(msg.Payload())); payload != "" {
		value, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			logger.Warn("invalid target temperature", "payload", payload)
			return
		}
		target = &value
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	if err = d.SetTarget(ctx, target); err != nil {
		logger.Error("failed to set target temperature", "err", err)
	}
}

func (b *Bridge) lookup(topic string) (*device.Device, error) {
	parts := strings.Split(strings.TrimPrefix(topic, b.topic+"/"), "/")
	if len(parts) != 3 || parts[1] != "target" || parts[2] != "set" {
		return nil, errors.New("unexpected topic")
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid room id: %w", err)
	}
	d, ok := b.registry.Device(id)
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, device.ErrRoomNotFound)
	}
	return d, nil
}
