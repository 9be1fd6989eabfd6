package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"midasnode/internal/telemetry"
)

// Broker is the load-balancing router between front-facing clients and the
// back-facing responder pool. It maintains a FIFO queue of idle responder
// identities and dispatches each arriving request to the head of that
// queue, preserving the client's return path.
type Broker struct {
	mu        sync.Mutex
	idle      []string
	inboxes   map[string]chan envelope
	pending   []envelope

	logger *zap.Logger
	reg    *telemetry.Registry

	upgrader websocket.Upgrader
}

// New creates an empty broker.
func New(logger *zap.Logger, reg *telemetry.Registry) *Broker {
	return &Broker{
		inboxes: make(map[string]chan envelope),
		logger:  logger,
		reg:     reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// RegisterResponder announces a responder as ready and returns the inbox
// channel it should receive dispatched requests on. Called once when a
// responder joins; after every reply the responder re-announces itself with
// MarkReady instead.
func (b *Broker) RegisterResponder(id string) <-chan envelope {
	b.mu.Lock()
	defer b.mu.Unlock()

	inbox := make(chan envelope, 1)
	b.inboxes[id] = inbox
	b.idle = append(b.idle, id)
	b.dispatchLocked()
	return inbox
}

// MarkReady re-enqueues a responder as idle after it completes a reply.
func (b *Broker) MarkReady(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.idle = append(b.idle, id)
	b.dispatchLocked()
}

// Submit enqueues a parsed request and blocks until a responder answers
// it, or ctx is cancelled.
func (b *Broker) Submit(ctx context.Context, req Request) (interface{}, error) {
	env := envelope{req: req, reply: make(chan interface{}, 1)}

	b.mu.Lock()
	b.pending = append(b.pending, env)
	b.dispatchLocked()
	b.mu.Unlock()

	select {
	case reply := <-env.reply:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dispatchLocked pairs idle responders with pending requests in FIFO order.
// Must be called with b.mu held.
func (b *Broker) dispatchLocked() {
	for len(b.idle) > 0 && len(b.pending) > 0 {
		id := b.idle[0]
		b.idle = b.idle[1:]

		env := b.pending[0]
		b.pending = b.pending[1:]

		inbox, ok := b.inboxes[id]
		if !ok {
			// Responder departed between announcing ready and dispatch;
			// put the request back at the head of the queue.
			b.pending = append([]envelope{env}, b.pending...)
			continue
		}
		if b.reg != nil {
			b.reg.BrokerDispatched.Inc()
			b.reg.BrokerIdleWorkers.Set(float64(len(b.idle)))
		}
		inbox <- env
	}
	if b.reg != nil {
		b.reg.BrokerIdleWorkers.Set(float64(len(b.idle)))
	}
}

// ServeFrontend upgrades an HTTP request to a WebSocket connection and
// services requests on it until the client disconnects. Each request on
// the connection is answered in turn (request/reply on one client socket
// is strictly in order, per spec.md §5).
func (b *Broker) ServeFrontend(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn("frontend upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			b.writeReply(conn, map[string]string{"error": "malformed request"})
			continue
		}

		reply, err := b.Submit(r.Context(), req)
		if err != nil {
			return
		}
		b.writeReply(conn, reply)
	}
}

func (b *Broker) writeReply(conn *websocket.Conn, reply interface{}) {
	payload, err := json.Marshal(reply)
	if err != nil {
		b.logger.Error("reply marshal failed", zap.Error(err))
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		b.logger.Warn("reply write failed", zap.Error(err))
	}
}
