// Package allocation derives the monetary breakdown of a session.
package allocation

import (
	"github.com/shopspring/decimal"

	"payment-widget/internal/domain"
)

// Allocation is the breakdown derived from a session. It is never stored;
// callers recompute it from the session on every read.
type Allocation struct {
	Subtotals      map[domain.Method]decimal.Decimal
	AllocatedTotal decimal.Decimal
	TargetAmount   decimal.Decimal
	RemainingDue   decimal.Decimal
	ChangeDue      decimal.Decimal
	// IsZero is set when no amount has been specified yet; method sections
	// are hidden and the user is asked to enter the total.
	IsZero bool
}

// Allocate computes the allocation for s.
func Allocate(s *domain.Session) Allocation {
	a := Allocation{
		Subtotals:    make(map[domain.Method]decimal.Decimal, len(domain.Methods)),
		TargetAmount: TargetAmount(s),
	}

	for _, m := range domain.Methods {
		sub := decimal.Zero
		if s.IsActive(m) {
			for _, row := range s.Splits[m] {
				sub = sub.Add(domain.ValueOrZero(row.Amount))
			}
		}
		a.Subtotals[m] = sub
		a.AllocatedTotal = a.AllocatedTotal.Add(sub)
	}

	a.RemainingDue = nonNegative(a.TargetAmount.Sub(a.AllocatedTotal))

	nonCash := a.Subtotals[domain.MethodCard].Add(a.Subtotals[domain.MethodCheque])
	owedAfterNonCash := nonNegative(a.TargetAmount.Sub(nonCash))
	a.ChangeDue = nonNegative(a.Subtotals[domain.MethodCash].Sub(owedAfterNonCash))

	a.IsZero = a.TargetAmount.IsZero()
	return a
}

// TargetAmount resolves the amount to satisfy: the manual override when set,
// then the host-supplied amount, then zero.
func TargetAmount(s *domain.Session) decimal.Decimal {
	if s.ManualAmount.Valid {
		return s.ManualAmount.Decimal
	}
	return domain.ValueOrZero(s.HostAmount)
}

// Subtotal returns the subtotal for m, zero for inactive methods.
func (a Allocation) Subtotal(m domain.Method) decimal.Decimal {
	return a.Subtotals[m]
}

// FullyAllocated reports whether nothing remains due.
func (a Allocation) FullyAllocated() bool {
	return a.RemainingDue.IsZero()
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
