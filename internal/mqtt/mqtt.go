package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"

	"github.com/MainakDebnath6/dbms-weather-analysis/internal/config"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/modules/weather/types"
	"github.com/MainakDebnath6/dbms-weather-analysis/internal/observability"
)

const (
	qos              = byte(1) // at least once
	handleTimeout    = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

var errStopped = errors.New("subscriber stopped")

// MessageHandler processes one decoded observation payload.
type MessageHandler func(ctx context.Context, req types.ObservationRequest) error

type Subscriber struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu sync.RWMutex
	handler   MessageHandler
	// rejected is told about payloads that never reach the handler.
	rejected func()
}

// SetMessageHandler installs the handler for observation payloads. It must be
// called before Connect so retained or queued messages are not dropped.
func (s *Subscriber) SetMessageHandler(handler MessageHandler) {
	s.handlerMu.Lock()
	s.handler = handler
	s.handlerMu.Unlock()
}

// SetRejectHandler installs a callback for payloads that fail to decode.
func (s *Subscriber) SetRejectHandler(fn func()) {
	s.handlerMu.Lock()
	s.rejected = fn
	s.handlerMu.Unlock()
}

func NewSubscriber(cfg config.Config, metrics *observability.Metrics, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{
		cfg:     cfg,
		logger:  logger.With("component", "mqtt"),
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Subscribing here also restores the subscription after an automatic
	// reconnect, since the session is clean.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		s.logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		if err := s.subscribe(c); err != nil {
			s.logger.Error("mqtt subscribe failed", "topic", cfg.MQTTTopic, "error", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		s.logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the broker connection. It returns when connected, when
// ctx is done, or when Disconnect is called.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return errStopped
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return errStopped
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	topic := s.cfg.MQTTTopic
	token := c.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	s.handlerMu.RLock()
	handler, rejected := s.handler, s.rejected
	s.handlerMu.RUnlock()

	var req types.ObservationRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.logger.Warn("failed to parse observation message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		if rejected != nil {
			rejected()
		}
		return
	}

	if handler == nil {
		s.logger.Warn("no message handler installed, dropping message", "topic", topic)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := handler(ctx, req); err != nil {
		s.logger.Warn("observation rejected",
			"topic", topic,
			"city", req.City,
			"date", req.Date,
			"error", err,
		)
		return
	}
	s.logger.Debug("processed observation message", "city", req.City, "date", req.Date)
}

// IsConnected reports whether the client currently holds a broker connection.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.MQTTTopic)
		token.WaitTimeout(2 * time.Second)
	}

	// Disconnect without holding s.mu to avoid lock contention/deadlocks.
	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
	if s.metrics != nil {
		if v {
			s.metrics.MQTTConnected.Set(1)
		} else {
			s.metrics.MQTTConnected.Set(0)
		}
	}
}
