package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cakemarket/internal/domain/entity"
	"cakemarket/pkg/logger"
)

const natsSubjectPrefix = "chat.room."

var tracer = otel.Tracer("cakemarket/pubsub")

// natsHeaderCarrier adapts nats.Header to propagation.TextMapCarrier.
type natsHeaderCarrier nats.Header

func (c natsHeaderCarrier) Get(key string) string { return nats.Header(c).Get(key) }
func (c natsHeaderCarrier) Set(key, value string) { nats.Header(c).Set(key, value) }
func (c natsHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// NATSBroadcaster publishes committed messages on chat.room.<roomId>. Every
// process subscribes to chat.room.* and delivers to its own connections.
type NATSBroadcaster struct {
	nc    *nats.Conn
	local Deliverer
	sub   *nats.Subscription
}

func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

func NewNATSBroadcaster(nc *nats.Conn, local Deliverer) *NATSBroadcaster {
	return &NATSBroadcaster{nc: nc, local: local}
}

func (b *NATSBroadcaster) Publish(ctx context.Context, roomID string, message *entity.Message) error {
	subject := natsSubjectPrefix + roomID
	data, err := encode(roomID, message)
	if err != nil {
		return err
	}

	ctx, span := tracer.Start(ctx, subject+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "nats"),
			attribute.String("messaging.destination.name", subject),
			attribute.Int("messaging.message.payload_size_bytes", len(data)),
		),
	)
	defer span.End()

	header := nats.Header{}
	otel.GetTextMapPropagator().Inject(ctx, natsHeaderCarrier(header))

	if err := b.nc.PublishMsg(&nats.Msg{Subject: subject, Data: data, Header: header}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Start subscribes to every room subject. No queue group is used: each
// process must see every message.
func (b *NATSBroadcaster) Start() error {
	sub, err := b.nc.Subscribe(natsSubjectPrefix+"*", b.handle)
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	b.sub = sub
	logger.Info("NATS broadcaster subscribed to %s*", natsSubjectPrefix)
	return nil
}

func (b *NATSBroadcaster) handle(msg *nats.Msg) {
	ctx := context.Background()
	if msg.Header != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, natsHeaderCarrier(msg.Header))
	}
	_, span := tracer.Start(ctx, "deliver chat message", trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", msg.Subject)))
	defer span.End()

	env, err := decode(msg.Data)
	if err != nil {
		logger.Warn("NATS broadcaster: dropping message on %s: %v", msg.Subject, err)
		return
	}
	n := b.local.Deliver(env.RoomID, env.Message)
	span.SetAttributes(attribute.Int("chat.delivered", n))
}

func (b *NATSBroadcaster) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}
