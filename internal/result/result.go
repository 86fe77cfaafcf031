// Package result composes the RESULT payload reported to the host.
package result

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payment-widget/internal/allocation"
	"payment-widget/internal/domain"
	"payment-widget/internal/validation"
)

// Statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Payload is the RESULT payload. Fields are only ever added between protocol
// revisions; paymentMethod is the single-method field of the first revision.
type Payload struct {
	Version          string          `json:"version"`
	Status           string          `json:"status"`
	Success          bool            `json:"success"`
	Timestamp        string          `json:"timestamp"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ReceivedFrom     string          `json:"receivedFrom"`
	CurrencyTendered string          `json:"currencyTendered"`
	Description      string          `json:"description"`
	PaymentMethod    string          `json:"paymentMethod"`
	PaymentMethods   []string        `json:"paymentMethods"`
	TotalPayment     decimal.Decimal `json:"totalPayment"`
	RemainingDue     decimal.Decimal `json:"remainingDue"`
	Totals           Totals          `json:"totals"`
	Payer            Payer           `json:"payer"`
	MethodsSelected  []domain.Method `json:"methodsSelected"`
	Splits           Splits          `json:"splits"`
	PaymentDetails   Details         `json:"paymentDetails"`
	RequestID        string          `json:"requestId,omitempty"`
	TransactionID    string          `json:"transactionId,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Totals is the allocation breakdown.
type Totals struct {
	Target    decimal.Decimal `json:"target"`
	Allocated decimal.Decimal `json:"allocated"`
	Remaining decimal.Decimal `json:"remaining"`
	Change    decimal.Decimal `json:"change"`
	Cash      decimal.Decimal `json:"cash"`
	Card      decimal.Decimal `json:"card"`
	Cheque    decimal.Decimal `json:"cheque"`
}

// Payer identifies who paid.
type Payer struct {
	ID string `json:"id"`
}

// SplitEntry is one split row as entered.
type SplitEntry struct {
	Amount decimal.NullDecimal `json:"amount"`
	Alias  string              `json:"alias"`
}

// Splits holds the rows of every method; inactive methods have none.
type Splits struct {
	Cash   []SplitEntry `json:"cash"`
	Card   []SplitEntry `json:"card"`
	Cheque []SplitEntry `json:"cheque"`
}

// Details holds instrument details of the selected methods.
type Details struct {
	Card   *CardDetail   `json:"card,omitempty"`
	Cheque *ChequeDetail `json:"cheque,omitempty"`
}

// CardDetail never carries the full card number. The auth code is omitted
// in full PAN mode, where it is a CVV.
type CardDetail struct {
	Last4    string `json:"last4"`
	Expiry   string `json:"expiry"`
	AuthCode string `json:"authCode,omitempty"`
}

// ChequeDetail holds the cheque fields.
type ChequeDetail struct {
	Number string `json:"number"`
	Date   string `json:"date"`
}

// Options carries inputs that do not come from the session.
type Options struct {
	Version       string
	Now           time.Time
	CardMode      validation.CardMode
	TransactionID string
}

// Compose builds the payload for s.
func Compose(s *domain.Session, a allocation.Allocation, success bool, opts Options) Payload {
	methods := s.ActiveMethods()
	p := Payload{
		Version:          opts.Version,
		Timestamp:        opts.Now.UTC().Format(time.RFC3339Nano),
		Amount:           a.TargetAmount,
		Currency:         s.Currency,
		ReceivedFrom:     s.Payer,
		CurrencyTendered: s.CurrencyTendered,
		Description:      s.Description,
		PaymentMethods:   make([]string, 0, len(methods)),
		TotalPayment:     a.AllocatedTotal,
		RemainingDue:     a.RemainingDue,
		Totals: Totals{
			Target:    a.TargetAmount,
			Allocated: a.AllocatedTotal,
			Remaining: a.RemainingDue,
			Change:    a.ChangeDue,
			Cash:      a.Subtotal(domain.MethodCash),
			Card:      a.Subtotal(domain.MethodCard),
			Cheque:    a.Subtotal(domain.MethodCheque),
		},
		Payer:           Payer{ID: s.Payer},
		MethodsSelected: methods,
		Splits: Splits{
			Cash:   entries(s, domain.MethodCash),
			Card:   entries(s, domain.MethodCard),
			Cheque: entries(s, domain.MethodCheque),
		},
		RequestID:     s.RequestID,
		TransactionID: opts.TransactionID,
	}
	for _, m := range methods {
		p.PaymentMethods = append(p.PaymentMethods, m.Label())
	}
	if len(methods) > 0 {
		p.PaymentMethod = methods[0].Label()
	}

	if s.IsActive(domain.MethodCard) {
		card := &CardDetail{Last4: lastDigits(s.Card.Number, 4), Expiry: s.Card.Expiry}
		if opts.CardMode != validation.CardModePAN {
			card.AuthCode = s.Card.AuthCode
		}
		p.PaymentDetails.Card = card
	}
	if s.IsActive(domain.MethodCheque) {
		p.PaymentDetails.Cheque = &ChequeDetail{Number: s.Cheque.Number, Date: s.Cheque.Date}
	}

	return p.withOutcome(success, "")
}

// Succeeded marks the payload successful with the processor's transaction id.
func (p Payload) Succeeded(transactionID string) Payload {
	p.TransactionID = transactionID
	return p.withOutcome(true, "")
}

// Failed marks the payload failed with a reason.
func (p Payload) Failed(reason string) Payload {
	return p.withOutcome(false, reason)
}

func (p Payload) withOutcome(success bool, reason string) Payload {
	p.Success = success
	p.Error = reason
	if success {
		p.Status = StatusSucceeded
	} else {
		p.Status = StatusFailed
	}
	return p
}

func entries(s *domain.Session, m domain.Method) []SplitEntry {
	out := make([]SplitEntry, 0, len(s.Splits[m]))
	if !s.IsActive(m) {
		return out
	}
	for _, row := range s.Splits[m] {
		out = append(out, SplitEntry{Amount: row.Amount, Alias: row.Alias})
	}
	return out
}

func lastDigits(number string, n int) string {
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}
