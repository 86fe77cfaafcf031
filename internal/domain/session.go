// Package domain contains the session state of a payment widget and the
// edits a user or host can apply to it.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SplitRow is one instrument's share of a tender method.
type SplitRow struct {
	Amount decimal.NullDecimal
	Alias  string
}

// Alias is a pre-registered payment instrument offered for selection.
type Alias struct {
	Value string
	Label string
}

// CardDetails holds the card instrument fields.
type CardDetails struct {
	Number   string
	Expiry   string
	AuthCode string
}

// ChequeDetails holds the cheque instrument fields.
type ChequeDetails struct {
	Number string
	Date   string
}

// InitData is the decoded content of a host INIT message.
type InitData struct {
	// Amount is the resolved payable amount (payableAmount over amount).
	Amount           decimal.NullDecimal
	Currency         string
	ReceivedFrom     string
	CurrencyTendered string
	Description      string
	RequestID        string
	Aliases          []Alias
}

// Session is the mutable form state owned by a single widget instance.
type Session struct {
	Payer            string
	HostAmount       decimal.NullDecimal
	ManualAmount     decimal.NullDecimal
	Currency         string
	CurrencyTendered string
	Description      string
	RequestID        string
	Aliases          []Alias

	Selected map[Method]bool
	Splits   map[Method][]SplitRow
	Card     CardDetails
	Cheque   ChequeDetails

	SubmitAttempted bool
	Touched         map[string]bool
}

// NewSession creates an empty session with no methods selected.
func NewSession(defaultCurrency string) *Session {
	return &Session{
		Currency: defaultCurrency,
		Selected: make(map[Method]bool),
		Splits:   make(map[Method][]SplitRow),
		Touched:  make(map[string]bool),
	}
}

// IsActive reports whether m is currently selected.
func (s *Session) IsActive(m Method) bool {
	return s.Selected[m]
}

// ActiveMethods returns the selected methods in display order.
func (s *Session) ActiveMethods() []Method {
	active := make([]Method, 0, len(Methods))
	for _, m := range Methods {
		if s.Selected[m] {
			active = append(active, m)
		}
	}
	return active
}

// ToggleMethod selects or deselects a tender method.
// Deselecting drops the method's rows and instrument details; selecting seeds
// one empty row when the method has none.
func (s *Session) ToggleMethod(m Method, on bool) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
	if !on {
		delete(s.Selected, m)
		delete(s.Splits, m)
		switch m {
		case MethodCard:
			s.Card = CardDetails{}
		case MethodCheque:
			s.Cheque = ChequeDetails{}
		}
		return nil
	}
	s.Selected[m] = true
	if len(s.Splits[m]) == 0 {
		s.Splits[m] = []SplitRow{{}}
	}
	return nil
}

// AddSplitRow appends an empty row to an active method.
func (s *Session) AddSplitRow(m Method) error {
	if err := s.requireActive(m); err != nil {
		return err
	}
	s.Splits[m] = append(s.Splits[m], SplitRow{})
	return nil
}

// RemoveSplitRow removes a row. The last row of an active method is cleared
// instead of removed.
func (s *Session) RemoveSplitRow(m Method, i int) error {
	if _, err := s.row(m, i); err != nil {
		return err
	}
	rows := s.Splits[m]
	if len(rows) == 1 {
		rows[0] = SplitRow{}
		return nil
	}
	s.Splits[m] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

// SetSplitAmount sets a row amount from raw input; blank input clears it.
func (s *Session) SetSplitAmount(m Method, i int, raw string) error {
	r, err := s.row(m, i)
	if err != nil {
		return err
	}
	amount, err := ParseAmount(raw)
	if err != nil {
		return &ValidationError{Field: RowField(m, i, "amount"), Message: "enter a valid non-negative amount", Err: err}
	}
	r.Amount = amount
	return nil
}

// SetSplitAlias sets the alias selected for a row.
func (s *Session) SetSplitAlias(m Method, i int, alias string) error {
	r, err := s.row(m, i)
	if err != nil {
		return err
	}
	r.Alias = strings.TrimSpace(alias)
	return nil
}

// SetManualAmount overrides the host-supplied amount. Blank input clears the
// override.
func (s *Session) SetManualAmount(raw string) error {
	amount, err := ParseAmount(raw)
	if err != nil {
		return &ValidationError{Field: FieldAmount, Message: "enter a valid non-negative amount", Err: err}
	}
	s.ManualAmount = amount
	return nil
}

// SetPayer sets who is paying.
func (s *Session) SetPayer(payer string) {
	s.Payer = strings.TrimSpace(payer)
}

// SetCurrencyTendered sets the descriptive tendered currency.
func (s *Session) SetCurrencyTendered(currency string) {
	s.CurrencyTendered = strings.TrimSpace(currency)
}

// SetDescription sets the free-text description.
func (s *Session) SetDescription(description string) {
	s.Description = description
}

// SetCardField sets one of the card instrument fields: number, expiry or auth.
func (s *Session) SetCardField(field, value string) error {
	if err := s.requireActive(MethodCard); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	switch field {
	case "number":
		s.Card.Number = value
	case "expiry":
		s.Card.Expiry = value
	case "auth":
		s.Card.AuthCode = value
	default:
		return NewValidationError("card."+field, "unknown card field")
	}
	return nil
}

// SetChequeField sets one of the cheque instrument fields: number or date.
func (s *Session) SetChequeField(field, value string) error {
	if err := s.requireActive(MethodCheque); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	switch field {
	case "number":
		s.Cheque.Number = value
	case "date":
		s.Cheque.Date = value
	default:
		return NewValidationError("cheque."+field, "unknown cheque field")
	}
	return nil
}

// Touch records that a field has lost focus.
func (s *Session) Touch(field string) {
	s.Touched[field] = true
}

// ApplyInit applies a host INIT payload. Present fields overwrite the
// session; split rows are kept unless the payable amount is exactly zero, in
// which case the splits are reset to a single empty card row.
func (s *Session) ApplyInit(d InitData) {
	if d.Amount.Valid {
		s.HostAmount = d.Amount
	}
	if d.Currency != "" {
		s.Currency = d.Currency
	}
	if d.ReceivedFrom != "" {
		s.Payer = d.ReceivedFrom
	}
	if d.CurrencyTendered != "" {
		s.CurrencyTendered = d.CurrencyTendered
	}
	if d.Description != "" {
		s.Description = d.Description
	}
	if d.RequestID != "" {
		s.RequestID = d.RequestID
	}
	if len(d.Aliases) > 0 {
		s.Aliases = append([]Alias(nil), d.Aliases...)
	}

	if d.Amount.Valid && d.Amount.Decimal.IsZero() {
		s.Selected = map[Method]bool{MethodCard: true}
		s.Splits = map[Method][]SplitRow{MethodCard: {{}}}
		s.Card = CardDetails{}
		s.Cheque = ChequeDetails{}
	}
}

func (s *Session) requireActive(m Method) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
	if !s.Selected[m] {
		return fmt.Errorf("%w: %s", ErrMethodInactive, m)
	}
	return nil
}

func (s *Session) row(m Method, i int) (*SplitRow, error) {
	if err := s.requireActive(m); err != nil {
		return nil, err
	}
	rows := s.Splits[m]
	if i < 0 || i >= len(rows) {
		return nil, fmt.Errorf("%w: %s row %d", ErrRowOutOfRange, m, i)
	}
	return &rows[i], nil
}
