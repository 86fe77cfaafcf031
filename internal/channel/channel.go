// Package channel implements the handshake protocol between the widget and
// its embedding host.
package channel

import (
	"fmt"

	"go.uber.org/zap"

	"payment-widget/internal/domain"
	"payment-widget/internal/protocol"
)

// Options configures a Channel.
type Options struct {
	// Source tags outbound messages; inbound messages carrying it are echoes
	// and are dropped.
	Source  string
	Version string
	// ReplyToObserved scopes replies to the origin of the first recognized
	// host message instead of broadcasting.
	ReplyToObserved bool
}

// Event is a recognized inbound host message.
type Event struct {
	Type protocol.MessageType
	Init domain.InitData
}

// Channel tracks the handshake state and emits outbound messages. It is not
// safe for concurrent use; its owner serializes access.
type Channel struct {
	transport   Transport
	opts        Options
	logger      *zap.Logger
	state       domain.ChannelState
	origin      string
	unsubscribe func()
}

// New creates a channel in the UNINITIALIZED state.
func New(t Transport, opts Options, logger *zap.Logger) *Channel {
	if opts.Source == "" {
		opts.Source = protocol.DefaultSource
	}
	if opts.Version == "" {
		opts.Version = protocol.Version
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{
		transport: t,
		opts:      opts,
		logger:    logger,
		state:     domain.StateUninitialized,
	}
}

// State returns the current channel state.
func (c *Channel) State() domain.ChannelState {
	return c.state
}

// Origin returns the origin observed from the host, if any.
func (c *Channel) Origin() string {
	return c.origin
}

// Open subscribes deliver to inbound messages and announces READY.
func (c *Channel) Open(deliver func(env protocol.Envelope, origin string)) error {
	if err := c.transition(domain.StateReady); err != nil {
		return err
	}
	c.unsubscribe = c.transport.Subscribe(deliver)
	if err := c.post(protocol.TypeReady, protocol.ReadyData{Version: c.opts.Version}); err != nil {
		return err
	}
	return c.transition(domain.StateActive)
}

// Receive classifies an inbound message. ok is false for messages that must
// be ignored: echoes of our own output, unknown types, malformed payloads,
// INIT outside the ACTIVE state and anything after termination.
func (c *Channel) Receive(env protocol.Envelope, origin string) (ev Event, ok bool) {
	if env.Source == c.opts.Source {
		return Event{}, false
	}
	if c.state == domain.StateTerminated || c.state == domain.StateUninitialized {
		c.logger.Debug("ignoring message", zap.String("type", string(env.Type)), zap.String("state", string(c.state)))
		return Event{}, false
	}

	switch env.Type {
	case protocol.TypeInit:
		c.observe(origin)
		if c.state != domain.StateActive {
			c.logger.Debug("ignoring INIT", zap.String("state", string(c.state)))
			return Event{}, false
		}
		data, err := protocol.DecodeInit(env.Data)
		if err != nil {
			c.logger.Debug("ignoring malformed INIT", zap.Error(err))
			return Event{}, false
		}
		return Event{Type: protocol.TypeInit, Init: data}, true
	case protocol.TypeCancel:
		c.observe(origin)
		return Event{Type: protocol.TypeCancel}, true
	default:
		c.logger.Debug("ignoring unknown message type", zap.String("type", string(env.Type)))
		return Event{}, false
	}
}

// BeginSubmit moves ACTIVE to SUBMITTING. Only one submission may be in flight.
func (c *Channel) BeginSubmit() error {
	switch c.state {
	case domain.StateSubmitting:
		return domain.ErrSubmitInFlight
	case domain.StateTerminated:
		return domain.ErrTerminated
	}
	return c.transition(domain.StateSubmitting)
}

// SendResult emits RESULT and terminates. It is only valid while SUBMITTING.
func (c *Channel) SendResult(payload any) error {
	if c.state != domain.StateSubmitting {
		return domain.NewInvalidTransitionError(c.state, domain.StateTerminated)
	}
	c.terminate()
	return c.post(protocol.TypeResult, payload)
}

// Cancel emits CANCELLED with reason and terminates. It returns
// ErrTerminated when the channel has already terminated, so CANCELLED is
// sent at most once.
func (c *Channel) Cancel(reason string) error {
	if c.state == domain.StateTerminated {
		return domain.ErrTerminated
	}
	c.terminate()
	return c.post(protocol.TypeCancelled, protocol.CancelledData{Reason: reason})
}

func (c *Channel) terminate() {
	prev := c.state
	c.state = domain.StateTerminated
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.logger.Info("channel transition", zap.String("from", string(prev)), zap.String("to", string(c.state)))
}

func (c *Channel) transition(to domain.ChannelState) error {
	if err := domain.ValidateTransition(c.state, to); err != nil {
		return err
	}
	c.logger.Info("channel transition", zap.String("from", string(c.state)), zap.String("to", string(to)))
	c.state = to
	return nil
}

// observe records the origin of the first recognized host message.
func (c *Channel) observe(origin string) {
	if c.origin == "" && origin != "" {
		c.origin = origin
		c.logger.Info("host origin observed", zap.String("origin", origin))
	}
}

func (c *Channel) targetOrigin() string {
	if c.opts.ReplyToObserved && c.origin != "" {
		return c.origin
	}
	return AnyOrigin
}

func (c *Channel) post(t protocol.MessageType, data any) error {
	env, err := protocol.NewEnvelope(c.opts.Source, t, data)
	if err != nil {
		return err
	}
	if err := c.transport.Post(env, c.targetOrigin()); err != nil {
		return fmt.Errorf("posting %s: %w", t, err)
	}
	return nil
}
