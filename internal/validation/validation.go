// Package validation computes field-scoped errors for a session and decides
// whether it may be submitted.
package validation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"payment-widget/internal/allocation"
	"payment-widget/internal/domain"
)

// CardMode selects how the card identifier is checked.
type CardMode string

// Card modes.
const (
	CardModeLast4 CardMode = "last4"
	CardModePAN   CardMode = "pan"
)

// Error messages.
const (
	MsgPayerRequired      = "Received from is required"
	MsgAmountRequired     = "Enter the amount to pay"
	MsgPayFullAmount      = "Please pay the full amount"
	MsgAliasRequired      = "Select an alias"
	MsgAmountPositive     = "Amount must be greater than 0"
	MsgCardNumberRequired = "Card number is required"
	MsgCardLast4Invalid   = "Enter the last 4 digits of the card"
	MsgCardNumberInvalid  = "Enter a valid card number"
	MsgExpiryRequired     = "Expiry is required"
	MsgExpiryInvalid      = "Expiry must be MM/YY"
	MsgCardExpired        = "Card expired"
	MsgAuthRequired       = "Authorization code is required"
	MsgCVVInvalid         = "Enter a valid CVV"
)

var (
	last4Pattern  = regexp.MustCompile(`^\d{4}$`)
	panPattern    = regexp.MustCompile(`^\d{12,19}$`)
	cvvPattern    = regexp.MustCompile(`^\d{3,4}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
)

// Options configures deployment-dependent checks.
type Options struct {
	CardMode CardMode
	// Now returns the current time; expiry is checked against it.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// RowErrors holds the errors of one split row.
type RowErrors struct {
	Amount string
	Alias  string
}

// MethodErrors is the error record of one tender method. The concrete type
// is CashErrors, CardErrors or ChequeErrors.
type MethodErrors interface {
	Method() domain.Method
	collect(into map[string]string)
}

// CashErrors holds the errors of the cash section.
type CashErrors struct {
	Rows []RowErrors
}

// Method implements MethodErrors.
func (CashErrors) Method() domain.Method { return domain.MethodCash }

func (e CashErrors) collect(into map[string]string) {
	collectRows(domain.MethodCash, e.Rows, into)
}

// ChequeErrors holds the errors of the cheque section.
type ChequeErrors struct {
	Rows []RowErrors
}

// Method implements MethodErrors.
func (ChequeErrors) Method() domain.Method { return domain.MethodCheque }

func (e ChequeErrors) collect(into map[string]string) {
	collectRows(domain.MethodCheque, e.Rows, into)
}

// CardErrors holds the errors of the card section, including instrument checks.
type CardErrors struct {
	Rows   []RowErrors
	Number string
	Expiry string
	Auth   string
}

// Method implements MethodErrors.
func (CardErrors) Method() domain.Method { return domain.MethodCard }

func (e CardErrors) collect(into map[string]string) {
	collectRows(domain.MethodCard, e.Rows, into)
	put(into, domain.FieldCardNumber, e.Number)
	put(into, domain.FieldCardExpiry, e.Expiry)
	put(into, domain.FieldCardAuth, e.Auth)
}

// FieldErrors is the full error set of a session.
type FieldErrors struct {
	Payer   string
	Amount  string
	Total   string
	Methods map[domain.Method]MethodErrors
}

// Validate checks every field of s. The result does not depend on which
// fields are visible.
func Validate(s *domain.Session, a allocation.Allocation, opts Options) FieldErrors {
	errs := FieldErrors{Methods: make(map[domain.Method]MethodErrors)}

	if strings.TrimSpace(s.Payer) == "" {
		errs.Payer = MsgPayerRequired
	}
	if a.IsZero {
		errs.Amount = MsgAmountRequired
	}
	if a.RemainingDue.IsPositive() {
		errs.Total = MsgPayFullAmount
	}

	for _, m := range s.ActiveMethods() {
		rows := validateRows(s.Splits[m])
		switch m {
		case domain.MethodCash:
			errs.Methods[m] = CashErrors{Rows: rows}
		case domain.MethodCheque:
			errs.Methods[m] = ChequeErrors{Rows: rows}
		case domain.MethodCard:
			ce := CardErrors{Rows: rows}
			ce.Number = validateCardNumber(s.Card.Number, opts.CardMode)
			ce.Expiry = validateExpiry(s.Card.Expiry, opts.now())
			ce.Auth = validateAuth(s.Card.AuthCode, opts.CardMode)
			errs.Methods[m] = ce
		}
	}
	return errs
}

// Fields flattens the error set into field identifier -> message.
func (e FieldErrors) Fields() map[string]string {
	out := make(map[string]string)
	put(out, domain.FieldPayer, e.Payer)
	put(out, domain.FieldAmount, e.Amount)
	put(out, domain.FieldTotal, e.Total)
	for _, me := range e.Methods {
		me.collect(out)
	}
	return out
}

// FieldIDs returns the identifiers of every field in error, sorted.
func (e FieldErrors) FieldIDs() []string {
	fields := e.Fields()
	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasBlockingError reports whether any error is present, visible or not.
func HasBlockingError(e FieldErrors) bool {
	return len(e.Fields()) > 0
}

// CanSubmit reports whether the session may be submitted.
func CanSubmit(a allocation.Allocation, e FieldErrors) bool {
	return a.FullyAllocated() && !HasBlockingError(e)
}

// Visible filters the error set down to what should be shown: a field's
// error once it has been touched or a submit was attempted. The pay-full-amount
// banner shows once any funds are allocated or a submit was attempted.
func Visible(s *domain.Session, a allocation.Allocation, e FieldErrors) map[string]string {
	out := make(map[string]string)
	for id, msg := range e.Fields() {
		switch {
		case s.SubmitAttempted:
			out[id] = msg
		case id == domain.FieldTotal:
			if a.AllocatedTotal.IsPositive() {
				out[id] = msg
			}
		case s.Touched[id]:
			out[id] = msg
		}
	}
	return out
}

func validateRows(rows []domain.SplitRow) []RowErrors {
	out := make([]RowErrors, len(rows))
	for i, row := range rows {
		if row.Alias == "" {
			out[i].Alias = MsgAliasRequired
		}
		if row.Amount.Valid && !row.Amount.Decimal.IsPositive() {
			out[i].Amount = MsgAmountPositive
		}
	}
	return out
}

func validateCardNumber(number string, mode CardMode) string {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	switch {
	case digits == "":
		return MsgCardNumberRequired
	case mode == CardModePAN:
		if !panPattern.MatchString(digits) {
			return MsgCardNumberInvalid
		}
	default:
		if !last4Pattern.MatchString(digits) {
			return MsgCardLast4Invalid
		}
	}
	return ""
}

// validateExpiry accepts MM/YY cards through the last instant of that month.
func validateExpiry(expiry string, now time.Time) string {
	if expiry == "" {
		return MsgExpiryRequired
	}
	m := expiryPattern.FindStringSubmatch(expiry)
	if m == nil {
		return MsgExpiryInvalid
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	firstOfNext := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, now.Location())
	if !now.Before(firstOfNext) {
		return MsgCardExpired
	}
	return ""
}

func validateAuth(code string, mode CardMode) string {
	if code == "" {
		return MsgAuthRequired
	}
	if mode == CardModePAN && !cvvPattern.MatchString(code) {
		return MsgCVVInvalid
	}
	return ""
}

func collectRows(m domain.Method, rows []RowErrors, into map[string]string) {
	for i, r := range rows {
		put(into, domain.RowField(m, i, "amount"), r.Amount)
		put(into, domain.RowField(m, i, "alias"), r.Alias)
	}
}

func put(into map[string]string, id, msg string) {
	if msg != "" {
		into[id] = msg
	}
}
