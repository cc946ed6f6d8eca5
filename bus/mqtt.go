package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sightline-labs/sightflow/step"
)

// MQTT bridge errors.
var (
	ErrMQTTConnectFailed = errors.New("mqtt connect failed")
)

// disconnectQuiesce is the time allowed for pending publishes on Close,
// in milliseconds.
const disconnectQuiesce = 1000

// MQTTBridgeConfig configures the MQTT event bridge.
type MQTTBridgeConfig struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string

	// ClientID identifies this bridge to the broker (default "sightflow-bridge").
	ClientID string

	// TopicPrefix is prepended to published topics (default "sightflow").
	TopicPrefix string

	// QoS is the publish quality of service (0, 1, or 2).
	QoS byte

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// ConnectTimeout bounds the initial connection (default 10s).
	ConnectTimeout time.Duration

	// PublishTimeout bounds each publish acknowledgment (default 5s).
	PublishTimeout time.Duration

	// Logger receives publish failures. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// MQTTBridge forwards step events to an MQTT broker as JSON messages.
// Events publish to <prefix>/<run_id>/<kind>. Publish failures are
// logged and never propagate to step execution; attach the bridge
// behind a bus subscription when publish latency matters.
type MQTTBridge struct {
	client         pahomqtt.Client
	prefix         string
	qos            byte
	publishTimeout time.Duration
	logger         *slog.Logger
}

// NewMQTTBridge connects to the broker and returns a bridge.
func NewMQTTBridge(cfg MQTTBridgeConfig) (*MQTTBridge, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("%w: broker URL required", ErrMQTTConnectFailed)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "sightflow-bridge"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "sightflow"
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout == 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrMQTTConnectFailed, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMQTTConnectFailed, err)
	}

	return &MQTTBridge{
		client:         client,
		prefix:         cfg.TopicPrefix,
		qos:            cfg.QoS,
		publishTimeout: cfg.PublishTimeout,
		logger:         cfg.Logger,
	}, nil
}

// Handle publishes a single event.
func (b *MQTTBridge) Handle(event step.Event) {
	payload, err := json.Marshal(EventJSON(event))
	if err != nil {
		b.logger.Error("failed to encode event",
			"run_id", event.RunID,
			"kind", event.Kind,
			"error", err,
		)
		return
	}

	token := b.client.Publish(eventTopic(b.prefix, event), b.qos, false, payload)
	if !token.WaitTimeout(b.publishTimeout) {
		b.logger.Error("mqtt publish timed out",
			"run_id", event.RunID,
			"kind", event.Kind,
			"timeout", b.publishTimeout,
		)
		return
	}
	if err := token.Error(); err != nil {
		b.logger.Error("mqtt publish failed",
			"run_id", event.RunID,
			"kind", event.Kind,
			"error", err,
		)
	}
}

// Close disconnects from the broker, allowing pending publishes to drain.
func (b *MQTTBridge) Close() {
	b.client.Disconnect(disconnectQuiesce)
}

// eventTopic builds the topic for an event: <prefix>/<run_id>/<kind>.
func eventTopic(prefix string, e step.Event) string {
	return prefix + "/" + e.RunID + "/" + string(e.Kind)
}
