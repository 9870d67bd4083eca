package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/oven-controller/internal/logger"
	"github.com/sweeney/oven-controller/internal/logic"
)

const (
	// ClientID identifies the controller to the broker.
	ClientID = "oven-controller"
	// BufferCapacity bounds messages held while the broker is unreachable.
	BufferCapacity = 256

	publishTimeout = 5 * time.Second
)

// RealPublisher publishes to an actual MQTT broker.
// Messages published while disconnected are buffered and replayed on reconnect.
type RealPublisher struct {
	client paho.Client
	log    *logger.Logger

	mu  sync.Mutex
	buf *ringBuffer

	// OnReconnect, if set, is called after a reconnection replay.
	OnReconnect func()
}

// NewRealPublisher creates a publisher connected to the given broker.
// The broker publishes a retained SHUTDOWN/MQTT_DISCONNECT system event
// if the controller drops off without a clean disconnect.
func NewRealPublisher(broker string, log *logger.Logger) (*RealPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}
	p := &RealPublisher{
		log: log,
		buf: newRingBuffer(BufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{
		Timestamp: time.Now(),
		Event:     "SHUTDOWN",
		Reason:    "MQTT_DISCONNECT",
	})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	connected := false
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(TopicSystem, will, 1, true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warnw("mqtt connection lost", "broker", broker, "err", err)
		}).
		SetOnConnectHandler(func(c paho.Client) {
			p.mu.Lock()
			reconnect := connected
			connected = true
			p.mu.Unlock()
			if reconnect {
				p.log.Infow("mqtt reconnected", "broker", broker)
				p.flush(c)
				if p.OnReconnect != nil {
					p.OnReconnect()
				}
			}
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		// Connect keeps retrying in the background; publishes buffer until then.
		p.log.Warnw("mqtt broker not reachable yet, retrying", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Publish sends an oven event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: Topic, payload: payload, qos: 0})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{topic: TopicSystem, payload: payload, qos: 1, retained: event.Retained})
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		firstDrop := p.buf.push(msg)
		p.mu.Unlock()
		if firstDrop {
			p.log.Warnw("mqtt buffer full, dropping oldest", "capacity", BufferCapacity)
		}
		return nil
	}

	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages in order. Runs on the paho callback
// goroutine, so tokens are not awaited.
func (p *RealPublisher) flush(c paho.Client) {
	p.mu.Lock()
	msgs, dropped := p.buf.drainAll()
	p.mu.Unlock()

	if len(msgs) == 0 {
		return
	}
	p.log.Infow("mqtt replaying buffered messages", "count", len(msgs), "dropped", dropped)
	for _, m := range msgs {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
