package domain

import (
	"fmt"
	"strings"
)

// Method is a tender method a split row is paid with.
type Method string

// Tender methods.
const (
	MethodCash   Method = "cash"
	MethodCard   Method = "card"
	MethodCheque Method = "cheque"
)

// Methods lists every tender method in display order.
var Methods = []Method{MethodCash, MethodCard, MethodCheque}

var methodLabels = map[Method]string{
	MethodCash:   "Cash",
	MethodCard:   "Credit card",
	MethodCheque: "Cheque",
}

// ParseMethod resolves a method identifier or label, case-insensitively.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash":
		return MethodCash, nil
	case "card", "credit card", "credit_card", "creditcard":
		return MethodCard, nil
	case "cheque", "check":
		return MethodCheque, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownMethod, s)
}

// Label returns the human-readable name of the method.
func (m Method) Label() string {
	if l, ok := methodLabels[m]; ok {
		return l
	}
	return string(m)
}

// Valid reports whether m is one of the known tender methods.
func (m Method) Valid() bool {
	_, ok := methodLabels[m]
	return ok
}

// Field identifiers used for touch tracking and error reporting.
const (
	FieldPayer      = "payer"
	FieldAmount     = "amount"
	FieldTotal      = "total"
	FieldCardNumber = "card.number"
	FieldCardExpiry = "card.expiry"
	FieldCardAuth   = "card.auth"
)

// RowField returns the identifier of a split row field, e.g. "cash.0.alias".
func RowField(m Method, row int, name string) string {
	return fmt.Sprintf("%s.%d.%s", m, row, name)
}
