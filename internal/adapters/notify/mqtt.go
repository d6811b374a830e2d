package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/okian/fallsense/internal/domain/model"
	"github.com/okian/fallsense/pkg/logger"
)

const (
	mqttQoS            = 1
	mqttConnectTimeout = 5 * time.Second
	mqttDisconnectMS   = 250
)

type publishFunc func(ctx context.Context, topic string, payload []byte) error

// MQTT publishes alerts to a broker topic.
type MQTT struct {
	topic   string
	publish publishFunc
	close   func()
}

// NewMQTT connects to broker and returns a publisher for topic.
func NewMQTT(ctx context.Context, broker, topic, clientID string) (*MQTT, error) {
	log := logger.Get().Named("mqtt")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn(context.Background(), "mqtt connection lost", logger.String("broker", broker), logger.Error(err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		return nil, fmt.Errorf("%w: %s: timeout", ErrConnect, broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnect, broker, err)
	}
	log.Info(ctx, "mqtt connected", logger.String("broker", broker), logger.String("topic", topic))

	return newMQTT(topic, func(ctx context.Context, topic string, payload []byte) error {
		t := client.Publish(topic, mqttQoS, false, payload)
		select {
		case <-t.Done():
			return t.Error()
		case <-ctx.Done():
			return ctx.Err()
		}
	}, func() { client.Disconnect(mqttDisconnectMS) }), nil
}

func newMQTT(topic string, publish publishFunc, closeFn func()) *MQTT {
	if closeFn == nil {
		closeFn = func() {}
	}
	return &MQTT{topic: topic, publish: publish, close: closeFn}
}

// Name implements Notifier.
func (m *MQTT) Name() string { return "mqtt" }

// Notify implements Notifier.
func (m *MQTT) Notify(ctx context.Context, a model.Alert) error {
	body, err := json.Marshal(NewPayload(a))
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrDelivery, err)
	}
	if err := m.publish(ctx, m.topic, body); err != nil {
		return fmt.Errorf("%w: publish %s: %v", ErrDelivery, m.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	m.close()
}
