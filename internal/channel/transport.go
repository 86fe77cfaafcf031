package channel

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"payment-widget/internal/protocol"
)

// AnyOrigin is the broadcast target origin.
const AnyOrigin = "*"

// Transport is a postable-message link across an isolation boundary.
type Transport interface {
	// Post sends env to the host. targetOrigin scopes delivery; AnyOrigin
	// broadcasts.
	Post(env protocol.Envelope, targetOrigin string) error
	// Subscribe registers fn for inbound messages along with the origin they
	// were observed from.
	Subscribe(fn func(env protocol.Envelope, origin string)) (unsubscribe func())
}

// hub fans inbound messages out to subscribers.
type hub struct {
	mu       sync.Mutex
	next     int
	handlers map[int]func(protocol.Envelope, string)
}

func (h *hub) Subscribe(fn func(protocol.Envelope, string)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[int]func(protocol.Envelope, string))
	}
	id := h.next
	h.next++
	h.handlers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.handlers, id)
		})
	}
}

// Deliver hands an inbound message to every subscriber.
func (h *hub) Deliver(env protocol.Envelope, origin string) {
	h.mu.Lock()
	fns := make([]func(protocol.Envelope, string), 0, len(h.handlers))
	for _, fn := range h.handlers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(env, origin)
	}
}

// Subscribers returns the number of registered handlers.
func (h *hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// StreamTransport writes outbound envelopes as JSON lines.
type StreamTransport struct {
	hub
	wmu sync.Mutex
	w   io.Writer
}

// NewStreamTransport creates a transport writing to w.
func NewStreamTransport(w io.Writer) *StreamTransport {
	return &StreamTransport{w: w}
}

// Post implements Transport. A stream has a single peer, so the target
// origin is not used.
func (t *StreamTransport) Post(env protocol.Envelope, _ string) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", env.Type, err)
	}
	t.wmu.Lock()
	defer t.wmu.Unlock()
	if _, err := fmt.Fprintf(t.w, "%s\n", raw); err != nil {
		return fmt.Errorf("writing %s: %w", env.Type, err)
	}
	return nil
}

// Write implements io.Writer so other output can be interleaved with posted
// envelopes without tearing lines.
func (t *StreamTransport) Write(p []byte) (int, error) {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	return t.w.Write(p)
}

// Outbound is a posted envelope together with its target origin.
type Outbound struct {
	Envelope     protocol.Envelope `json:"envelope"`
	TargetOrigin string            `json:"targetOrigin"`
}

// QueueTransport buffers outbound envelopes until the host drains them.
type QueueTransport struct {
	hub
	qmu    sync.Mutex
	outbox []Outbound
}

// NewQueueTransport creates an empty queue transport.
func NewQueueTransport() *QueueTransport {
	return &QueueTransport{}
}

// Post implements Transport.
func (t *QueueTransport) Post(env protocol.Envelope, targetOrigin string) error {
	t.qmu.Lock()
	defer t.qmu.Unlock()
	t.outbox = append(t.outbox, Outbound{Envelope: env, TargetOrigin: targetOrigin})
	return nil
}

// Drain returns and clears the queued envelopes.
func (t *QueueTransport) Drain() []Outbound {
	t.qmu.Lock()
	defer t.qmu.Unlock()
	out := t.outbox
	t.outbox = nil
	if out == nil {
		out = []Outbound{}
	}
	return out
}

// Pending returns the number of queued envelopes.
func (t *QueueTransport) Pending() int {
	t.qmu.Lock()
	defer t.qmu.Unlock()
	return len(t.outbox)
}
