package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/datatracker/internal/logging"
	"github.com/sweeney/datatracker/internal/metric"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second

	// DefaultBufferSize is the number of messages held while disconnected.
	DefaultBufferSize = 64

	// DefaultClientID is used when the config leaves client_id empty.
	DefaultClientID = "datatracker"
)

// client is the subset of paho.Client the publisher uses.
type client interface {
	Connect() paho.Token
	IsConnected() bool
	IsConnectionOpen() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int
}

// RealPublisher publishes to an actual MQTT broker. Messages published
// while the connection is down are buffered and replayed on reconnect.
type RealPublisher struct {
	client client
	topics Topics

	mu  sync.Mutex
	buf *outbox
}

// NewRealPublisher creates a publisher for the given broker. A broker that is
// unreachable at startup is not an error; paho keeps retrying and buffered
// messages are flushed once it connects.
func NewRealPublisher(o Options) (*RealPublisher, error) {
	if o.ClientID == "" {
		o.ClientID = DefaultClientID
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := &RealPublisher{
		topics: o.Topics,
		buf:    newOutbox(o.BufferSize),
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(o.Topics.System, string(will), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			logging.Info("mqtt connected", zap.String("broker", o.Broker))
			p.flush()
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logging.Warn("mqtt connection lost", zap.Error(err))
		})

	p.client = paho.NewClient(opts)
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPublisher(c client, topics Topics, bufferSize int) *RealPublisher {
	return &RealPublisher{client: c, topics: topics, buf: newOutbox(bufferSize)}
}

func (p *RealPublisher) connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		logging.Warn("mqtt broker not reachable yet, buffering until connected")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	return nil
}

// PublishButton sends a button event (QoS 0, not retained).
func (p *RealPublisher) PublishButton(event ButtonEvent) error {
	payload, err := FormatButtonPayload(event)
	if err != nil {
		return fmt.Errorf("format button payload: %w", err)
	}
	return p.publish(p.topics.Events, 0, false, payload)
}

// PublishReading sends a metric reading (QoS 0, retained).
func (p *RealPublisher) PublishReading(r metric.Reading) error {
	payload, err := FormatReadingPayload(r)
	if err != nil {
		return fmt.Errorf("format reading payload: %w", err)
	}
	return p.publish(p.topics.Metrics, 0, true, payload)
}

// PublishSystem sends a system lifecycle event (QoS 1).
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(p.topics.System, 1, event.Retained, payload)
}

func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.buf.add(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	return p.send(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
}

func (p *RealPublisher) send(m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

// flush replays buffered messages oldest first.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	msgs, dropped := p.buf.take()
	p.mu.Unlock()

	if dropped > 0 {
		logging.Warn("mqtt outbox overflowed while offline", zap.Int("dropped", dropped))
	}
	if len(msgs) == 0 {
		return
	}
	logging.Info("replaying buffered mqtt messages", zap.Int("count", len(msgs)))
	for _, m := range msgs {
		if err := p.send(m); err != nil {
			logging.Warn("mqtt replay failed", zap.Error(err))
		}
	}
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the client is connected to the broker.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnected()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
