// Package mqtt bridges an MQTT command topic to the dispatcher.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"moving-head/internal/config"
	"moving-head/internal/dispatch"
	"moving-head/internal/protocol"
)

const operationTimeout = 10 * time.Second

// Dispatcher applies raw frames
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte, enc protocol.Encoding) dispatch.Result
}

// Client is the part of a paho client the bridge uses
type Client interface {
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Unsubscribe(topics ...string) paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// DefaultQueueSize bounds the commands waiting behind a running one
const DefaultQueueSize = 64

// Bridge subscribes to the command topic and publishes acks. Commands are
// handed from the paho callback to Run through a bounded queue and applied
// one at a time in arrival order.
type Bridge struct {
	client Client
	d      Dispatcher
	cfg    config.MQTTConfig
	queue  chan []byte
}

// Connect dials the configured broker
func Connect(cfg config.MQTTConfig) (paho.Client, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetResumeSubs(true).
		// the subscription callback only enqueues, so in-order delivery
		// never stalls the paho router
		SetOrderMatters(true)
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
	})

	c := paho.NewClient(opts)
	if err := wait(c.Connect()); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, err)
	}
	return c, nil
}

// NewBridge creates a bridge over an already connected client
func NewBridge(client Client, d Dispatcher, cfg config.MQTTConfig) *Bridge {
	size := cfg.QueueSize
	if size < 1 {
		size = DefaultQueueSize
	}
	return &Bridge{client: client, d: d, cfg: cfg, queue: make(chan []byte, size)}
}

// Run subscribes and handles commands until ctx is done
func (b *Bridge) Run(ctx context.Context) error {
	ctx = dispatch.WithTransport(ctx, "mqtt")

	handler := func(_ paho.Client, msg paho.Message) {
		b.enqueue(msg)
	}
	if err := wait(b.client.Subscribe(b.cfg.CommandTopic, b.qos(), handler)); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.cfg.CommandTopic, err)
	}
	log.Info().Str("topic", b.cfg.CommandTopic).Int("queue", cap(b.queue)).Msg("MQTT command bridge started")

	for {
		select {
		case <-ctx.Done():
			if err := wait(b.client.Unsubscribe(b.cfg.CommandTopic)); err != nil {
				log.Warn().Err(err).Str("topic", b.cfg.CommandTopic).Msg("Failed to unsubscribe")
			}
			return nil
		case payload := <-b.queue:
			b.handle(ctx, payload)
		}
	}
}

// enqueue never blocks; a full queue drops the command
func (b *Bridge) enqueue(msg paho.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	select {
	case b.queue <- payload:
	default:
		log.Warn().
			Str("transport", "mqtt").
			Str("topic", msg.Topic()).
			Int("queued", len(b.queue)).
			Msg("Command queue full, dropping frame")
	}
}

func (b *Bridge) handle(ctx context.Context, payload []byte) {
	enc := protocol.Detect(payload)

	res := b.d.Dispatch(ctx, payload, enc)
	if res.Ack == nil || b.cfg.AckTopic == "" {
		return
	}

	// paho handlers must not block on their own publish tokens
	token := b.client.Publish(b.cfg.AckTopic, b.qos(), false, res.Ack)
	go func() {
		if err := wait(token); err != nil {
			log.Warn().Err(err).Uint32("seq", res.Sequence).Str("topic", b.cfg.AckTopic).Msg("Failed to publish ack")
		}
	}()
}

func (b *Bridge) qos() byte {
	return byte(b.cfg.QoS)
}

func wait(t paho.Token) error {
	if !t.WaitTimeout(operationTimeout) {
		return errors.New("timed out")
	}
	return t.Error()
}
