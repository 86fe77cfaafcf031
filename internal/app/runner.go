// Package app provides the line runner that drives one widget from a stream.
package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"payment-widget/internal/channel"
	"payment-widget/internal/domain"
	"payment-widget/internal/parser"
	"payment-widget/internal/protocol"
	"payment-widget/internal/widget"
)

// DefaultSettleTimeout bounds how long the runner waits for an in-flight
// submission when input ends.
const DefaultSettleTimeout = 5 * time.Second

// ErrSettleTimeout is returned when an in-flight submission did not finish
// before the runner gave up waiting.
var ErrSettleTimeout = errors.New("timed out waiting for submission result")

// Runner handles the main read-parse-execute-output loop. Lines starting with
// '{' are host envelopes, everything else is a user input event.
type Runner struct {
	widget  *widget.Widget
	link    *channel.StreamTransport
	reader  *bufio.Scanner
	logger  *zap.Logger
	timeout time.Duration
}

// NewRunner creates a runner for w. Command output is written through link so
// it interleaves cleanly with the envelopes the widget posts.
func NewRunner(w *widget.Widget, link *channel.StreamTransport, input io.Reader, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		widget:  w,
		link:    link,
		reader:  bufio.NewScanner(input),
		logger:  logger,
		timeout: DefaultSettleTimeout,
	}
}

// SetSettleTimeout overrides DefaultSettleTimeout.
func (r *Runner) SetSettleTimeout(d time.Duration) {
	r.timeout = d
}

// Run executes the main loop until EXIT is received or EOF is reached, then
// waits for any in-flight submission to resolve.
func (r *Runner) Run() error {
	for r.reader.Scan() {
		line := strings.TrimSpace(r.reader.Text())

		// Skip empty lines
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "{") {
			r.deliver(line)
			continue
		}

		cmd, err := parser.Parse(line)
		if err != nil {
			fmt.Fprintf(r.link, "ERROR %s\n", err)
			continue
		}

		if cmd.Name == "EXIT" {
			return r.settle()
		}

		result, err := r.widget.Execute(cmd)
		if err != nil {
			fmt.Fprintf(r.link, "ERROR %s\n", err)
			continue
		}

		if result != "" {
			fmt.Fprintln(r.link, result)
		}
	}

	if err := r.reader.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}

	return r.settle()
}

// deliver hands a host envelope to the widget. Malformed envelopes are
// dropped without output.
func (r *Runner) deliver(line string) {
	env, err := protocol.DecodeEnvelope([]byte(line))
	if err != nil {
		r.logger.Debug("ignoring malformed host message", zap.Error(err))
		return
	}
	r.link.Deliver(env, "")
}

func (r *Runner) settle() error {
	if r.widget.State() != domain.StateSubmitting {
		return nil
	}
	select {
	case <-r.widget.Done():
		return nil
	case <-time.After(r.timeout):
		return ErrSettleTimeout
	}
}
