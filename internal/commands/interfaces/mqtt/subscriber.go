// Package mqtt turns PLC gateway telegrams published over MQTT into
// state-change commands.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	commands "wms-core/internal/commands/domain"
	"wms-core/internal/eventing"
)

const (
	locationStateTopic = "location/state"
	groupStateTopic    = "group/state"
)

// Router routes one command envelope to a terminal outcome.
type Router interface {
	Route(ctx context.Context, env eventing.Envelope) commands.Outcome
}

// ClientConfig holds broker connection settings.
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Dial connects to the MQTT broker.
func Dial(cfg ClientConfig) (paho.Client, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt: broker required")
	}
	opts := paho.NewClientOptions()
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

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// Translate maps a telegram message to a command envelope. The message body
// already has the command payload shape and is passed through unchanged.
func Translate(prefix, topic string, payload []byte, now time.Time) (eventing.Envelope, error) {
	suffix := strings.TrimPrefix(topic, strings.TrimSuffix(prefix, "/")+"/")
	var commandType commands.Type
	switch suffix {
	case locationStateTopic:
		commandType = commands.TypeChangeLocationState
	case groupStateTopic:
		commandType = commands.TypeChangeGroupState
	default:
		return eventing.Envelope{}, fmt.Errorf("mqtt: unrouted topic %q", topic)
	}
	return eventing.Envelope{
		EventType:     string(commandType),
		OccurredAt:    now.UTC(),
		SchemaVersion: 1,
		Payload:       append([]byte(nil), payload...),
	}, nil
}

// Subscriber feeds telegrams from the gateway topics into the router.
type Subscriber struct {
	client paho.Client
	router Router
	prefix string
	qos    byte
	logger *zap.Logger
	now    func() time.Time
}

// Option configures the subscriber.
type Option func(*Subscriber)

// WithQoS sets the subscription QoS.
func WithQoS(qos byte) Option {
	return func(s *Subscriber) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Subscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSubscriber constructs a subscriber. client may be nil when messages
// are fed through HandleMessage directly.
func NewSubscriber(client paho.Client, router Router, prefix string, opts ...Option) (*Subscriber, error) {
	if router == nil {
		return nil, errors.New("mqtt subscriber: nil router")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = "wms"
	}
	s := &Subscriber{
		client: client,
		router: router,
		prefix: prefix,
		qos:    1,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Topics returns the subscribed topics.
func (s *Subscriber) Topics() []string {
	return []string{s.prefix + "/" + locationStateTopic, s.prefix + "/" + groupStateTopic}
}

// Start subscribes to every gateway topic.
func (s *Subscriber) Start() error {
	if s.client == nil {
		return errors.New("mqtt subscriber: nil client")
	}
	for _, topic := range s.Topics() {
		if token := s.client.Subscribe(topic, s.qos, s.HandleMessage); token.Wait() && token.Error() != nil {
			return fmt.Errorf("mqtt subscriber: subscribe %s: %w", topic, token.Error())
		}
		s.logger.Info("mqtt subscribed", zap.String("topic", topic))
	}
	return nil
}

// Stop unsubscribes and disconnects.
func (s *Subscriber) Stop() {
	if s.client == nil {
		return
	}
	if token := s.client.Unsubscribe(s.Topics()...); token.Wait() && token.Error() != nil {
		s.logger.Warn("mqtt unsubscribe failed", zap.Error(token.Error()))
	}
	s.client.Disconnect(250)
}

// HandleMessage is the paho message callback.
func (s *Subscriber) HandleMessage(_ paho.Client, msg paho.Message) {
	env, err := Translate(s.prefix, msg.Topic(), msg.Payload(), s.now())
	if err != nil {
		s.logger.Warn("mqtt message dropped", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	outcome := s.router.Route(context.Background(), env)
	s.logger.Debug("mqtt telegram handled",
		zap.String("topic", msg.Topic()),
		zap.String("command_id", outcome.CommandID),
		zap.String("status", string(outcome.Status)),
	)
}
