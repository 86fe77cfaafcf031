// Package protocol defines the message envelope exchanged between the widget
// and its host, and decodes host payloads.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"payment-widget/internal/domain"
)

// DefaultSource tags messages originated by the widget.
const DefaultSource = "payment-widget"

// Version is the protocol version announced in READY and RESULT.
const Version = "1.0.0"

// InitQueryParam is the launch-location parameter carrying a fallback INIT payload.
const InitQueryParam = "init"

// MessageType names a message kind.
type MessageType string

// Message types.
const (
	TypeInit      MessageType = "INIT"
	TypeCancel    MessageType = "CANCEL"
	TypeReady     MessageType = "READY"
	TypeResult    MessageType = "RESULT"
	TypeCancelled MessageType = "CANCELLED"
)

// Cancellation reasons.
const (
	ReasonUser          = "user"
	ReasonHostCancelled = "host_cancelled"
)

// Envelope is the shape of every message in both directions.
type Envelope struct {
	Source string          `json:"source"`
	Type   MessageType     `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// ReadyData is the payload of READY.
type ReadyData struct {
	Version string `json:"version"`
}

// CancelledData is the payload of CANCELLED.
type CancelledData struct {
	Reason string `json:"reason"`
}

// AliasOption is a selectable instrument offered by the host.
type AliasOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// InitPayload is the payload of INIT, and of the fallback init blob.
type InitPayload struct {
	Amount             json.RawMessage     `json:"amount,omitempty"`
	PayableAmount      json.RawMessage     `json:"payableAmount,omitempty"`
	Currency           string              `json:"currency,omitempty"`
	ReceivedFrom       string              `json:"receivedFrom,omitempty"`
	CurrencyTendered   string              `json:"currencyTendered,omitempty"`
	Description        string              `json:"description,omitempty"`
	TransactionAliases []AliasOption       `json:"transactionAliases,omitempty"`
	RequestID          string              `json:"requestId,omitempty"`
}

// NewEnvelope builds an envelope carrying data.
func NewEnvelope(source string, t MessageType, data any) (Envelope, error) {
	env := Envelope{Source: source, Type: t}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encoding %s payload: %w", t, err)
	}
	env.Data = raw
	return env, nil
}

// DecodeEnvelope parses a single JSON envelope.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decoding envelope: missing type")
	}
	return env, nil
}

// DecodeInit decodes an INIT payload. An amount that cannot be used is left
// unset without discarding the other fields. Hosts that wrap the payload as
// {"payload": {...}} are accepted as well.
func DecodeInit(raw json.RawMessage) (domain.InitData, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return domain.InitData{}, nil
	}

	var wrapped struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Payload) > 0 && wrapped.Payload[0] == '{' {
		raw = wrapped.Payload
	}

	var p InitPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.InitData{}, fmt.Errorf("decoding INIT payload: %w", err)
	}
	return p.toDomain(), nil
}

// ParseInitQuery extracts the fallback INIT payload from launch query
// parameters. ok is false when the parameter is absent or malformed.
func ParseInitQuery(q url.Values) (data domain.InitData, ok bool) {
	blob := q.Get(InitQueryParam)
	if strings.TrimSpace(blob) == "" {
		return domain.InitData{}, false
	}
	// Hosts commonly encode the blob once more on top of query encoding.
	if unescaped, err := url.PathUnescape(blob); err == nil {
		blob = unescaped
	}
	data, err := DecodeInit(json.RawMessage(blob))
	if err != nil {
		return domain.InitData{}, false
	}
	return data, true
}

func (p InitPayload) toDomain() domain.InitData {
	d := domain.InitData{
		Amount:           decodeAmount(p.PayableAmount),
		Currency:         p.Currency,
		ReceivedFrom:     p.ReceivedFrom,
		CurrencyTendered: p.CurrencyTendered,
		Description:      p.Description,
		RequestID:        p.RequestID,
	}
	if !d.Amount.Valid {
		d.Amount = decodeAmount(p.Amount)
	}
	for _, a := range p.TransactionAliases {
		d.Aliases = append(d.Aliases, domain.Alias{Value: a.Value, Label: a.Label})
	}
	return d
}

// decodeAmount reads an amount given as a JSON number or string. Anything
// that does not parse as a usable amount is treated as absent.
func decodeAmount(raw json.RawMessage) decimal.NullDecimal {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return decimal.NullDecimal{}
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.NullDecimal{}
		}
	}
	amount, err := domain.ParseAmount(text)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return amount
}
