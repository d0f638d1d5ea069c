package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/config"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/domain"
	"github.com/Enterprise-CMCS/managed-care-review-sub010/internal/logger"
)

// Publisher publishes raw MQTT messages.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTClient wraps a connected paho client.
type MQTTClient struct {
	client mqtt.Client
}

func NewMQTTClient(cfg *config.MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTClient{client: client}, nil
}

func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

// EventPublisher publishes every event as JSON on
// <prefix>/<stateCode>/<event type>.
type EventPublisher struct {
	pub    Publisher
	prefix string
	qos    byte
	logger *zap.Logger
}

func NewEventPublisher(pub Publisher, prefix string, qos byte, log *zap.Logger) *EventPublisher {
	return &EventPublisher{pub: pub, prefix: strings.TrimRight(prefix, "/"), qos: qos, logger: log}
}

func (p *EventPublisher) Topic(evt domain.Event) string {
	return fmt.Sprintf("%s/%s/%s", p.prefix, evt.StateCode, evt.Type)
}

func (p *EventPublisher) Notify(ctx context.Context, evt domain.Event) {
	log := logger.FromContext(ctx, p.logger)
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Error("failed to encode event", zap.String("event", string(evt.Type)), zap.Error(err))
		return
	}
	topic := p.Topic(evt)
	if err := p.pub.Publish(topic, p.qos, false, payload); err != nil {
		log.Error("failed to publish event", zap.String("topic", topic), zap.Error(err))
		return
	}
	log.Debug("event published", zap.String("topic", topic))
}
