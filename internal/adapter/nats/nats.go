// Package nats implements the message queue port using NATS JetStream.
package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/ActionForge/internal/logger"
	"github.com/Strob0t/ActionForge/internal/port/messagequeue"
)

const (
	streamName = "ACTIONFORGE"

	headerRequestID  = "X-Request-ID"
	headerRetryCount = "Retry-Count"
	headerDLQReason  = "DLQ-Reason"

	maxRetries = 3
	nakDelay   = 2 * time.Second
	dlqSuffix  = ".dlq"
)

// Queue implements messagequeue.Queue using NATS JetStream.
type Queue struct {
	nc *nats.Conn
	js jetstream.JetStream
}

var _ messagequeue.Queue = (*Queue)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url string) (*Queue, error) {
	nc, err := nats.Connect(url,
		nats.Name("actionforge"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"interactions.>", "actions.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Queue{nc: nc, js: js}, nil
}

// Publish sends a message to the given subject. The request ID in ctx, if
// any, travels in the X-Request-ID header.
func (q *Queue) Publish(ctx context.Context, subject string, data []byte) error {
	msg := &nats.Msg{Subject: subject, Data: data, Header: nats.Header{}}
	if id := logger.RequestID(ctx); id != "" {
		msg.Header.Set(headerRequestID, id)
	}
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}
	return nil
}

// Subscribe registers a durable consumer for subject. Messages failing
// messagequeue.Validate go straight to the dead letter subject. Handler
// errors are redelivered until maxRetries, then dead-lettered too.
func (q *Queue) Subscribe(ctx context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       durableName(subject),
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    maxRetries + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(ctx, msg, handler)
	})
	if err != nil {
		return nil, fmt.Errorf("nats consume: %w", err)
	}

	return cons.Stop, nil
}

func (q *Queue) handle(ctx context.Context, msg jetstream.Msg, handler messagequeue.Handler) {
	hctx := ctx
	if id := msg.Headers().Get(headerRequestID); id != "" {
		hctx = logger.WithRequestID(hctx, id)
	}

	if err := messagequeue.Validate(msg.Subject(), msg.Data()); err != nil {
		slog.Warn("invalid message", "subject", msg.Subject(), "error", err)
		q.moveToDLQ(hctx, msg, err)
		return
	}

	err := handler(hctx, msg.Subject(), msg.Data())
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	case messagequeue.IsPoison(err) || retryCount(msg) >= maxRetries:
		slog.Error("message handler failed permanently", "subject", msg.Subject(), "error", err)
		q.moveToDLQ(hctx, msg, err)
	default:
		slog.Error("message handler failed", "subject", msg.Subject(), "error", err)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
	}
}

// moveToDLQ republishes msg on <subject>.dlq and acknowledges the original.
func (q *Queue) moveToDLQ(ctx context.Context, msg jetstream.Msg, cause error) {
	dlq := &nats.Msg{Subject: msg.Subject() + dlqSuffix, Data: msg.Data(), Header: nats.Header{}}
	for k, vs := range msg.Headers() {
		for _, v := range vs {
			dlq.Header.Add(k, v)
		}
	}
	dlq.Header.Set(headerDLQReason, cause.Error())

	if _, err := q.js.PublishMsg(ctx, dlq); err != nil {
		slog.Error("dlq publish failed", "subject", dlq.Subject, "error", err)
		if nakErr := msg.Nak(); nakErr != nil {
			slog.Error("nats nak failed", "error", nakErr)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		slog.Error("nats ack failed", "error", err)
	}
}

// retryCount returns how many times msg has already failed. A Retry-Count
// header set by the publisher takes precedence over delivery metadata.
func retryCount(msg jetstream.Msg) int {
	if v := msg.Headers().Get(headerRetryCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	meta, err := msg.Metadata()
	if err != nil || meta.NumDelivered == 0 {
		return 0
	}
	return int(meta.NumDelivered) - 1
}

// durableName derives a consumer name from a subject. Durable names may not
// contain dots or wildcards.
func durableName(subject string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "all", " ", "_", "/", "_")
	return "actionforge_" + r.Replace(subject)
}

// KeyValue returns the named KV bucket, creating it with ttl if needed.
func (q *Queue) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := q.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("nats kv %s: %w", bucket, err)
	}
	kv, err = q.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: bucket, TTL: ttl})
	if err != nil {
		return nil, fmt.Errorf("nats kv create %s: %w", bucket, err)
	}
	return kv, nil
}

// Drain stops accepting new messages, lets in-flight handlers finish and
// closes the connection.
func (q *Queue) Drain() error {
	if err := q.nc.Drain(); err != nil {
		return fmt.Errorf("nats drain: %w", err)
	}
	return nil
}

// Close shuts down the NATS connection.
func (q *Queue) Close() error {
	q.nc.Close()
	return nil
}

// IsConnected reports whether the underlying connection is up.
func (q *Queue) IsConnected() bool {
	return q.nc != nil && q.nc.IsConnected()
}
