package protocol

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInit(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantErr    bool
		wantAmount string // empty means unset
		wantPayer  string
	}{
		{name: "amount only", raw: `{"amount": 150.5, "receivedFrom": "patient"}`, wantAmount: "150.5", wantPayer: "patient"},
		{name: "payable wins over amount", raw: `{"amount": 150, "payableAmount": "90"}`, wantAmount: "90"},
		{name: "payable zero", raw: `{"amount": 150, "payableAmount": 0}`, wantAmount: "0"},
		{name: "null amount", raw: `{"amount": null}`},
		{name: "nested payload", raw: `{"payload": {"amount": 12, "receivedFrom": "insurance"}}`, wantAmount: "12", wantPayer: "insurance"},
		{name: "negative amount dropped", raw: `{"amount": -5}`},
		{name: "empty data", raw: ``},
		{name: "blank amount keeps other fields", raw: `{"amount": "", "receivedFrom": "patient", "description": "x"}`, wantPayer: "patient"},
		{name: "unparsable payable falls back to amount", raw: `{"payableAmount": "abc", "amount": 100, "receivedFrom": "patient"}`, wantAmount: "100", wantPayer: "patient"},
		{name: "null payable falls back to amount", raw: `{"payableAmount": null, "amount": "12.50"}`, wantAmount: "12.5"},
		{name: "boolean amount ignored", raw: `{"amount": true, "receivedFrom": "insurance"}`, wantPayer: "insurance"},
		{name: "exponent number ignored", raw: `{"amount": 1e200000000, "receivedFrom": "patient"}`, wantPayer: "patient"},
		{name: "exponent string ignored", raw: `{"amount": "1e5"}`},
		{name: "amount at upper bound ignored", raw: `{"amount": 1000000000000}`},
		{name: "too many decimal places ignored", raw: `{"amount": 10.005}`},
		{name: "out of range payable falls back", raw: `{"payableAmount": "5e3", "amount": 50}`, wantAmount: "50"},
		{name: "not an object", raw: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := DecodeInit(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantAmount == "" {
				assert.False(t, d.Amount.Valid)
			} else {
				require.True(t, d.Amount.Valid)
				assert.Equal(t, tt.wantAmount, d.Amount.Decimal.String())
			}
			assert.Equal(t, tt.wantPayer, d.ReceivedFrom)
		})
	}
}

func TestDecodeInit_AliasesAndRequestID(t *testing.T) {
	raw := `{"transactionAliases":[{"value":"cash1","label":"Drawer 1"}],"requestId":"r-9","currency":"USD"}`
	d, err := DecodeInit(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, "r-9", d.RequestID)
	assert.Equal(t, "USD", d.Currency)
	require.Len(t, d.Aliases, 1)
	assert.Equal(t, "Drawer 1", d.Aliases[0].Label)
}

func TestParseInitQuery(t *testing.T) {
	blob := `{"amount":40,"description":"50% deposit"}`

	q := url.Values{}
	q.Set(InitQueryParam, blob)
	d, ok := ParseInitQuery(q)
	require.True(t, ok)
	assert.Equal(t, "40", d.Amount.Decimal.String())
	assert.Equal(t, "50% deposit", d.Description)

	// Encoded twice, as a host using encodeURIComponent inside a query string would
	q.Set(InitQueryParam, url.PathEscape(blob))
	d, ok = ParseInitQuery(q)
	require.True(t, ok)
	assert.Equal(t, "50% deposit", d.Description)

	q.Set(InitQueryParam, "{not json")
	_, ok = ParseInitQuery(q)
	assert.False(t, ok)

	_, ok = ParseInitQuery(url.Values{})
	assert.False(t, ok)
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(DefaultSource, TypeReady, ReadyData{Version: Version})
	require.NoError(t, err)

	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"payment-widget","type":"READY","data":{"version":"1.0.0"}}`, string(raw))

	back, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeReady, back.Type)

	_, err = DecodeEnvelope([]byte(`{"source":"host"}`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`nope`))
	assert.Error(t, err)
}
