// Package publish forwards sensor snapshots to an MQTT broker.
package publish

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/luki/aqdash/internal/config"
	"github.com/luki/aqdash/internal/sensor"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("publish: not connected to broker")

const publishTimeout = 5 * time.Second

// Publisher publishes snapshots as JSON to <basetopic>/<hardwareId>.
// Snapshots without a hardware id go to <basetopic>/<clientId>.
type Publisher struct {
	client    mqtt.Client
	baseTopic string
	clientID  string
	log       *zap.Logger
}

// Connect dials the broker from cfg.
func Connect(cfg config.MQTT, log *zap.Logger) (*Publisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "aqdash-" + host
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info("connected to MQTT broker", zap.String("broker", cfg.Broker))
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("MQTT connection lost", zap.Error(err))
		})

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("connect %s: timed out", cfg.Broker)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return New(client, cfg.BaseTopic, clientID, log), nil
}

// New wraps an existing client.
func New(client mqtt.Client, baseTopic, clientID string, log *zap.Logger) *Publisher {
	return &Publisher{client: client, baseTopic: baseTopic, clientID: clientID, log: log}
}

// Topic returns the topic a snapshot from hwid is published to.
func (p *Publisher) Topic(hwid string) string {
	if hwid == "" {
		hwid = p.clientID
	}
	return p.baseTopic + "/" + hwid
}

// Publish sends snap to the broker and waits for the publish to complete.
func (p *Publisher) Publish(snap sensor.Snapshot) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	topic := p.Topic(snap.HardwareID)
	tok := p.client.Publish(topic, 0, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.log.Debug("published snapshot", zap.String("topic", topic), zap.Int("readings", len(snap.Readings)))
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
