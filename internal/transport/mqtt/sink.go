// Package mqtt publishes notifications to an MQTT broker, one topic per source.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/opcua-alarms/internal/codec"
	"github.com/oshokin/opcua-alarms/internal/domain/event"
)

const (
	// disconnectQuiesce is how long Close waits for in-flight work, in milliseconds.
	disconnectQuiesce = 250

	// DefaultPublishTimeout bounds a single publish.
	DefaultPublishTimeout = 5 * time.Second
)

// ErrPublishTimeout is returned when the broker does not acknowledge in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

// Options configures the sink.
type Options struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	// Timeout bounds a single publish, DefaultPublishTimeout when zero.
	Timeout time.Duration
}

// publisher is the part of paho.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload any) paho.Token
	Disconnect(quiesce uint)
}

// Sink publishes protojson notifications to <prefix>/<source name>.
type Sink struct {
	client  publisher
	prefix  string
	qos     byte
	timeout time.Duration
}

// New connects to the broker.
func New(opts Options) (*Sink, error) {
	clientOptions := paho.NewClientOptions()
	clientOptions.AddBroker(opts.Broker)
	clientOptions.SetClientID(opts.ClientID)

	if opts.Username != "" {
		clientOptions.SetUsername(opts.Username)
	}

	if opts.Password != "" {
		clientOptions.SetPassword(opts.Password)
	}

	clientOptions.SetAutoReconnect(true)
	clientOptions.SetCleanSession(true)

	client := paho.NewClient(clientOptions)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", opts.Broker, token.Error())
	}

	return newSink(client, opts), nil
}

func newSink(client publisher, opts Options) *Sink {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}

	return &Sink{
		client:  client,
		prefix:  strings.TrimSuffix(opts.TopicPrefix, "/"),
		qos:     opts.QoS,
		timeout: timeout,
	}
}

// Name implements dispatch.Sink.
func (s *Sink) Name() string {
	return "mqtt"
}

// Topic returns the topic notifications of a source are published on.
func (s *Sink) Topic(sourceName string) string {
	if sourceName == "" {
		sourceName = "_"
	}

	return s.prefix + "/" + sourceName
}

// Send implements dispatch.Sink.
func (s *Sink) Send(ctx context.Context, n *event.Notification) error {
	payload, err := codec.Marshal(n)
	if err != nil {
		return err
	}

	topic := s.Topic(n.SourceName)
	token := s.client.Publish(topic, s.qos, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("%s: %w", topic, ErrPublishTimeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	return nil
}

// Close disconnects from the broker.
func (s *Sink) Close() error {
	s.client.Disconnect(disconnectQuiesce)

	return nil
}
