// Package widget runs one payment widget instance: it owns the session,
// applies host messages and user edits, and emits the outcome over the channel.
package widget

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-widget/internal/allocation"
	"payment-widget/internal/channel"
	"payment-widget/internal/domain"
	"payment-widget/internal/protocol"
	"payment-widget/internal/result"
	"payment-widget/internal/validation"
)

// Defaults applied by New.
const (
	// DefaultProcessingDelay is the pause between an accepted submit and RESULT.
	DefaultProcessingDelay = 600 * time.Millisecond
	DefaultCurrency        = "AED"
)

// Config holds per-deployment widget settings.
type Config struct {
	Source          string
	Version         string
	ProcessingDelay time.Duration
	CardMode        validation.CardMode
	DefaultCurrency string
	ReplyToObserved bool
	// Now is the clock used for expiry checks and timestamps.
	Now func() time.Time
}

// Processor performs the downstream work for an accepted submission and
// returns a transaction identifier.
type Processor interface {
	Process(ctx context.Context, p result.Payload) (string, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, p result.Payload) (string, error)

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, p result.Payload) (string, error) {
	return f(ctx, p)
}

// SimulatedProcessor accepts every submission.
type SimulatedProcessor struct{}

// Process implements Processor.
func (SimulatedProcessor) Process(context.Context, result.Payload) (string, error) {
	return uuid.NewString(), nil
}

// Option configures a Widget.
type Option func(*Widget)

// WithProcessor replaces the simulated processor.
func WithProcessor(p Processor) Option {
	return func(w *Widget) { w.processor = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// Widget is a single widget instance. All access to its session is
// serialized through mu.
type Widget struct {
	mu        sync.Mutex
	cfg       Config
	session   *domain.Session
	channel   *channel.Channel
	processor Processor
	logger    *zap.Logger

	timer    *time.Timer
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// New creates a widget bound to transport t. Call Mount to start it.
func New(t channel.Transport, cfg Config, opts ...Option) *Widget {
	if cfg.ProcessingDelay < 0 {
		cfg.ProcessingDelay = 0
	}
	if cfg.CardMode == "" {
		cfg.CardMode = validation.CardModeLast4
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = DefaultCurrency
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		cfg:       cfg,
		session:   domain.NewSession(cfg.DefaultCurrency),
		processor: SimulatedProcessor{},
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.channel = channel.New(t, channel.Options{
		Source:          cfg.Source,
		Version:         cfg.Version,
		ReplyToObserved: cfg.ReplyToObserved,
	}, w.logger)
	return w
}

// Mount subscribes to the host and announces READY.
func (w *Widget) Mount() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channel.Open(w.deliver)
}

// ApplyLaunchParams applies a fallback INIT payload from the launch query.
// Malformed or absent payloads are ignored and reported as false.
func (w *Widget) ApplyLaunchParams(q url.Values) bool {
	data, ok := protocol.ParseInitQuery(q)
	if !ok {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.channel.State() == domain.StateTerminated {
		return false
	}
	w.session.ApplyInit(data)
	return true
}

// Done is closed once the widget has emitted RESULT or CANCELLED.
func (w *Widget) Done() <-chan struct{} {
	return w.done
}

// State returns the channel state.
func (w *Widget) State() domain.ChannelState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.channel.State()
}

// Edit applies fn to the session. Edits are refused while a submission is in
// flight and after termination.
func (w *Widget) Edit(fn func(s *domain.Session) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}
	return fn(w.session)
}

// Submit validates the session and, when it passes, schedules the RESULT.
func (w *Widget) Submit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.editable(); err != nil {
		return err
	}

	w.session.SubmitAttempted = true
	a := allocation.Allocate(w.session)
	errs := validation.Validate(w.session, a, w.validationOptions())
	if !validation.CanSubmit(a, errs) {
		return domain.NewSubmitBlockedError(errs.FieldIDs())
	}
	if err := w.channel.BeginSubmit(); err != nil {
		return err
	}

	payload := result.Compose(w.session, a, true, result.Options{
		Version:  w.version(),
		Now:      w.cfg.Now(),
		CardMode: w.cfg.CardMode,
	})
	w.logger.Info("submit accepted",
		zap.String("amount", domain.FormatAmount(a.TargetAmount)),
		zap.Int("methods", len(payload.MethodsSelected)))
	w.timer = time.AfterFunc(w.cfg.ProcessingDelay, func() { w.complete(payload) })
	return nil
}

// Cancel is the local user cancel action.
func (w *Widget) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.terminate(protocol.ReasonUser)
}

// View is a read-only rendering of the widget's derived state.
type View struct {
	State          domain.ChannelState                   `json:"state"`
	Payer          string                                `json:"payer"`
	Currency       string                                `json:"currency"`
	TargetAmount   decimal.Decimal                       `json:"targetAmount"`
	AllocatedTotal decimal.Decimal                       `json:"allocatedTotal"`
	RemainingDue   decimal.Decimal                       `json:"remainingDue"`
	ChangeDue      decimal.Decimal                       `json:"changeDue"`
	Subtotals      map[domain.Method]decimal.Decimal     `json:"subtotals"`
	IsZero         bool                                  `json:"isZero"`
	ShowMethods    bool                                  `json:"showMethods"`
	Methods        []domain.Method                       `json:"methods"`
	Splits         map[domain.Method][]result.SplitEntry `json:"splits"`
	Aliases        []protocol.AliasOption                `json:"aliases"`
	Errors         map[string]string                     `json:"errors"`
	CanSubmit      bool                                  `json:"canSubmit"`
}

// View recomputes the derived state from the current session.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.session
	a := allocation.Allocate(s)
	errs := validation.Validate(s, a, w.validationOptions())

	v := View{
		State:          w.channel.State(),
		Payer:          s.Payer,
		Currency:       s.Currency,
		TargetAmount:   a.TargetAmount,
		AllocatedTotal: a.AllocatedTotal,
		RemainingDue:   a.RemainingDue,
		ChangeDue:      a.ChangeDue,
		Subtotals:      a.Subtotals,
		IsZero:         a.IsZero,
		ShowMethods:    !a.IsZero,
		Methods:        s.ActiveMethods(),
		Splits:         make(map[domain.Method][]result.SplitEntry),
		Aliases:        make([]protocol.AliasOption, 0, len(s.Aliases)),
		Errors:         validation.Visible(s, a, errs),
		CanSubmit:      w.channel.State() == domain.StateActive && validation.CanSubmit(a, errs),
	}
	for _, m := range v.Methods {
		rows := make([]result.SplitEntry, 0, len(s.Splits[m]))
		for _, r := range s.Splits[m] {
			rows = append(rows, result.SplitEntry{Amount: r.Amount, Alias: r.Alias})
		}
		v.Splits[m] = rows
	}
	for _, al := range s.Aliases {
		v.Aliases = append(v.Aliases, protocol.AliasOption{Value: al.Value, Label: al.Label})
	}
	return v
}

// deliver is the transport subscription.
func (w *Widget) deliver(env protocol.Envelope, origin string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ev, ok := w.channel.Receive(env, origin)
	if !ok {
		return
	}
	switch ev.Type {
	case protocol.TypeInit:
		w.session.ApplyInit(ev.Init)
	case protocol.TypeCancel:
		if err := w.terminate(protocol.ReasonHostCancelled); err != nil {
			w.logger.Warn("host cancel failed", zap.Error(err))
		}
	}
}

// complete runs when the processing delay elapses.
func (w *Widget) complete(payload result.Payload) {
	txID, err := w.processor.Process(w.ctx, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.channel.State() != domain.StateSubmitting {
		w.logger.Info("result dropped", zap.String("state", string(w.channel.State())))
		return
	}
	if err != nil {
		w.logger.Warn("processing failed", zap.Error(err))
		payload = payload.Failed(err.Error())
	} else {
		payload = payload.Succeeded(txID)
	}
	if err := w.channel.SendResult(payload); err != nil {
		w.logger.Error("sending result", zap.Error(err))
	}
	w.logger.Info("submit completed", zap.String("status", payload.Status))
	w.finish()
}

// terminate emits CANCELLED and stops any pending submission.
func (w *Widget) terminate(reason string) error {
	if w.channel.State() == domain.StateTerminated {
		return domain.ErrTerminated
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	err := w.channel.Cancel(reason)
	w.finish()
	return err
}

func (w *Widget) finish() {
	w.doneOnce.Do(func() {
		w.cancel()
		close(w.done)
	})
}

func (w *Widget) editable() error {
	switch w.channel.State() {
	case domain.StateSubmitting:
		return domain.ErrSubmitInFlight
	case domain.StateTerminated:
		return domain.ErrTerminated
	}
	return nil
}

func (w *Widget) validationOptions() validation.Options {
	return validation.Options{CardMode: w.cfg.CardMode, Now: w.cfg.Now}
}

func (w *Widget) version() string {
	if w.cfg.Version == "" {
		return protocol.Version
	}
	return w.cfg.Version
}
