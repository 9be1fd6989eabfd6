// Package publisher drains a bounded outbound queue onto the node's
// pub/sub transport, framing each message as "<nodename>;<payload>".
package publisher

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"midasnode/internal/telemetry"
)

// queueCapacity matches the original node's bounded message queue.
const queueCapacity = 10

// idlePoll is how often Run checks the queue when it is empty, mirroring
// the original's 100µs sleep between empty-queue polls.
const idlePoll = 100 * time.Microsecond

// conn is the subset of *nats.Conn the publisher needs, narrowed so tests
// can drain the queue against a fake transport.
type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher owns the outbound message queue and the NATS connection it
// drains onto.
type Publisher struct {
	nodeName string
	subject  string
	queue    chan string
	conn     conn
	logger   *zap.Logger
	reg      *telemetry.Registry
}

// New connects to url and returns a publisher that will send on subject
// using the framing "<nodename>;<payload>".
func New(url, subject, nodeName string, logger *zap.Logger, reg *telemetry.Registry) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(c *nats.Conn, s *nats.Subscription, err error) {
			logger.Error("nats error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		nodeName: nodeName,
		subject:  subject,
		queue:    make(chan string, queueCapacity),
		conn:     nc,
		logger:   logger,
		reg:      reg,
	}, nil
}

// newWithConn builds a publisher around an already-constructed transport,
// used by tests to drain the queue without a live NATS server.
func newWithConn(c conn, subject, nodeName string, logger *zap.Logger, reg *telemetry.Registry) *Publisher {
	return &Publisher{
		nodeName: nodeName,
		subject:  subject,
		queue:    make(chan string, queueCapacity),
		conn:     c,
		logger:   logger,
		reg:      reg,
	}
}

// Enqueue places payload on the outbound queue, blocking the caller while
// the queue is full so a lagging publisher applies backpressure to
// producers instead of dropping notifications.
func (p *Publisher) Enqueue(ctx context.Context, payload string) error {
	select {
	case p.queue <- payload:
	case <-ctx.Done():
		return ctx.Err()
	}
	if p.reg != nil {
		p.reg.PublisherQueueDepth.Set(float64(len(p.queue)))
	}
	return nil
}

// Run drains the queue onto the NATS subject until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(idlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-p.queue:
			p.publish(payload)
		case <-ticker.C:
		}
	}
}

func (p *Publisher) publish(payload string) {
	msg := p.nodeName + ";" + payload
	if err := p.conn.Publish(p.subject, []byte(msg)); err != nil {
		p.logger.Error("publish failed", zap.Error(err))
		return
	}
	if p.reg != nil {
		p.reg.PublisherPublished.Inc()
		p.reg.PublisherQueueDepth.Set(float64(len(p.queue)))
	}
}

// Close tears down the NATS connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
