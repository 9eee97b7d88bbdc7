// Package mqttpub publishes pipeline outputs to an MQTT broker. Each camera
// gets three topics under the configured prefix:
//
//	<prefix>/<camera>/overlay   PNG depth overlay
//	<prefix>/<camera>/cloud     ASCII PCD of non-ground visible points
//	<prefix>/<camera>/clusters  JSON ranked cluster listing
package mqttpub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/sensor.fusion/internal/fusion"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l5rank"
	"github.com/banshee-data/sensor.fusion/internal/fusion/l6overlay"
	"github.com/banshee-data/sensor.fusion/internal/fusion/mapio"
	"github.com/banshee-data/sensor.fusion/internal/fusion/pipeline"
	"github.com/banshee-data/sensor.fusion/internal/security"
)

// Config holds broker and topic settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string

	Prefix string
	QoS    byte
	Retain bool
	// PublishTimeout bounds the wait for each publish acknowledgement.
	PublishTimeout time.Duration
}

// DefaultConfig returns QoS 0, retained messages under "fusion".
func DefaultConfig() Config {
	return Config{
		ClientID:       "sensor-fusion",
		Prefix:         "fusion",
		QoS:            0,
		Retain:         true,
		PublishTimeout: 2 * time.Second,
	}
}

// Publisher is a pipeline sink backed by an MQTT client.
type Publisher struct {
	client mqtt.Client
	cfg    Config
}

// NewPublisher wraps an existing client. A nil client disables publishing.
func NewPublisher(client mqtt.Client, cfg Config) *Publisher {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultConfig().Prefix
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultConfig().PublishTimeout
	}
	if cfg.QoS > 2 {
		cfg.QoS = 0
	}
	return &Publisher{client: client, cfg: cfg}
}

// Connect dials cfg.Broker and returns a publisher once connected. The
// client reconnects on its own after later connection loss.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("no MQTT broker configured")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultConfig().ClientID
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		fusion.Opsf("mqtt: connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		fusion.Diagf("mqtt: connected to %s", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timed out connecting to %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Broker, err)
	}
	return NewPublisher(client, cfg), nil
}

// Close disconnects the client.
func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Disconnect(250)
	}
}

// Sinks returns p wired into the overlay, cloud and cluster outputs.
func (p *Publisher) Sinks() pipeline.Sinks {
	return pipeline.Sinks{Overlay: p, Cloud: p, Clusters: p}
}

// Topic returns the topic for a camera output kind.
func (p *Publisher) Topic(cameraID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", p.cfg.Prefix, security.SanitizeFilename(cameraID), kind)
}

func (p *Publisher) publish(topic string, payload []byte) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retain, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		return fmt.Errorf("publishing to %s: timed out after %v", topic, p.cfg.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	fusion.Tracef("mqtt: published %d bytes to %s", len(payload), topic)
	return nil
}

// PublishOverlay publishes the overlay PNG.
func (p *Publisher) PublishOverlay(_ context.Context, out pipeline.OverlayOutput) error {
	data, err := l6overlay.EncodePNG(out.Overlay)
	if err != nil {
		return err
	}
	return p.publish(p.Topic(out.CameraID, "overlay"), data)
}

// PublishCloud publishes the filtered cloud as ASCII PCD.
func (p *Publisher) PublishCloud(_ context.Context, out pipeline.CloudOutput) error {
	var buf bytes.Buffer
	if err := mapio.WritePCD(&buf, out.Cloud); err != nil {
		return err
	}
	return p.publish(p.Topic(out.CameraID, "cloud"), buf.Bytes())
}

// ClusterMessage is the JSON payload of the clusters topic.
type ClusterMessage struct {
	FrameID   string                  `json:"frame_id"`
	CameraID  string                  `json:"camera_id"`
	Timestamp int64                   `json:"timestamp"`
	Clusters  []l5rank.ClusterSummary `json:"clusters"`
}

// PublishClusters publishes the ranked listing as JSON.
func (p *Publisher) PublishClusters(_ context.Context, report pipeline.ClusterReport) error {
	msg := ClusterMessage{
		FrameID:   report.FrameID,
		CameraID:  report.CameraID,
		Timestamp: report.Stamp.UnixMilli(),
		Clusters:  report.Summaries,
	}
	if msg.Clusters == nil {
		msg.Clusters = []l5rank.ClusterSummary{}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling clusters: %w", err)
	}
	return p.publish(p.Topic(report.CameraID, "clusters"), payload)
}
