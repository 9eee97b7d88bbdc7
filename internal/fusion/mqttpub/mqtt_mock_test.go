package mqttpub

import (
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

var _ mqtt.Client = (*mockClient)(nil)

// mockToken implements mqtt.Token for testing.
type mockToken struct {
	err       error
	completed bool
}

func newMockToken(err error) *mockToken { return &mockToken{err: err, completed: true} }

func (t *mockToken) Wait() bool                     { return t.completed }
func (t *mockToken) WaitTimeout(time.Duration) bool { return t.completed }
func (t *mockToken) Error() error                   { return t.err }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if t.completed {
		close(ch)
	}
	return ch
}

type mockMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// mockClient implements mqtt.Client for testing.
type mockClient struct {
	mu           sync.Mutex
	connected    bool
	publishError error
	stall        bool
	published    []mockMessage
}

func newMockClient() *mockClient { return &mockClient{connected: true} }

func (c *mockClient) messages() []mockMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mockMessage(nil), c.published...)
}

func (c *mockClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *mockClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *mockClient) Connect() mqtt.Token {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return newMockToken(nil)
}

func (c *mockClient) Disconnect(uint) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *mockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return newMockToken(mqtt.ErrNotConnected)
	}
	if c.stall {
		return &mockToken{}
	}
	if c.publishError != nil {
		return newMockToken(c.publishError)
	}
	data, _ := payload.([]byte)
	c.published = append(c.published, mockMessage{Topic: topic, Payload: data, QoS: qos, Retain: retained})
	return newMockToken(nil)
}

func (c *mockClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}

func (c *mockClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return newMockToken(nil)
}

func (c *mockClient) Unsubscribe(...string) mqtt.Token { return newMockToken(nil) }

func (c *mockClient) AddRoute(string, mqtt.MessageHandler) {}

func (c *mockClient) OptionsReader() mqtt.ClientOptionsReader { return mqtt.ClientOptionsReader{} }
