package allocation

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-widget/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSession(t *testing.T, target string, rows map[domain.Method][]string) *domain.Session {
	t.Helper()
	s := domain.NewSession("AED")
	require.NoError(t, s.SetManualAmount(target))
	for _, m := range domain.Methods {
		amounts, ok := rows[m]
		if !ok {
			continue
		}
		require.NoError(t, s.ToggleMethod(m, true))
		for i, amount := range amounts {
			if i > 0 {
				require.NoError(t, s.AddSplitRow(m))
			}
			require.NoError(t, s.SetSplitAmount(m, i, amount))
		}
	}
	return s
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		rows      map[domain.Method][]string
		allocated string
		remaining string
		change    string
	}{
		{
			name:      "exact cash",
			target:    "100",
			rows:      map[domain.Method][]string{domain.MethodCash: {"100"}},
			allocated: "100", remaining: "0", change: "0",
		},
		{
			name:      "cash overpayment becomes change",
			target:    "100",
			rows:      map[domain.Method][]string{domain.MethodCash: {"120"}},
			allocated: "120", remaining: "0", change: "20",
		},
		{
			name:      "partial allocation",
			target:    "100",
			rows:      map[domain.Method][]string{domain.MethodCard: {"30", "20.25"}},
			allocated: "50.25", remaining: "49.75", change: "0",
		},
		{
			name:   "card covers part, cash covers the rest with change",
			target: "100",
			rows: map[domain.Method][]string{
				domain.MethodCard: {"70"},
				domain.MethodCash: {"50"},
			},
			allocated: "120", remaining: "0", change: "20",
		},
		{
			name:   "cash after non-cash overpayment is all change",
			target: "100",
			rows: map[domain.Method][]string{
				domain.MethodCheque: {"110"},
				domain.MethodCash:   {"5"},
			},
			allocated: "115", remaining: "0", change: "5",
		},
		{
			name:      "blank rows count as zero",
			target:    "10",
			rows:      map[domain.Method][]string{domain.MethodCash: {"", "4"}},
			allocated: "4", remaining: "6", change: "0",
		},
		{
			name:      "cents do not drift",
			target:    "0.3",
			rows:      map[domain.Method][]string{domain.MethodCash: {"0.1", "0.2"}},
			allocated: "0.3", remaining: "0", change: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Allocate(newSession(t, tt.target, tt.rows))
			assert.True(t, a.AllocatedTotal.Equal(dec(tt.allocated)), "allocated = %s", a.AllocatedTotal)
			assert.True(t, a.RemainingDue.Equal(dec(tt.remaining)), "remaining = %s", a.RemainingDue)
			assert.True(t, a.ChangeDue.Equal(dec(tt.change)), "change = %s", a.ChangeDue)
			assert.False(t, a.IsZero)
		})
	}
}

func TestTargetAmount_Precedence(t *testing.T) {
	s := domain.NewSession("AED")
	assert.True(t, TargetAmount(s).IsZero())
	assert.True(t, Allocate(s).IsZero)

	s.ApplyInit(domain.InitData{Amount: decimal.NewNullDecimal(dec("80"))})
	assert.True(t, TargetAmount(s).Equal(dec("80")))

	require.NoError(t, s.SetManualAmount("95.5"))
	assert.True(t, TargetAmount(s).Equal(dec("95.5")))

	// A later INIT does not displace the override
	s.ApplyInit(domain.InitData{Amount: decimal.NewNullDecimal(dec("60"))})
	assert.True(t, TargetAmount(s).Equal(dec("95.5")))

	require.NoError(t, s.SetManualAmount(""))
	assert.True(t, TargetAmount(s).Equal(dec("60")))
}

func TestAllocate_ZeroTarget(t *testing.T) {
	s := domain.NewSession("AED")
	s.ApplyInit(domain.InitData{Amount: decimal.NewNullDecimal(decimal.Zero)})

	a := Allocate(s)
	assert.True(t, a.IsZero)
	assert.True(t, a.RemainingDue.IsZero())
	assert.True(t, a.FullyAllocated())
}

func TestAllocate_ToggleOffRecomputes(t *testing.T) {
	s := newSession(t, "100", map[domain.Method][]string{
		domain.MethodCash: {"40"},
		domain.MethodCard: {"60"},
	})
	require.True(t, Allocate(s).FullyAllocated())

	require.NoError(t, s.ToggleMethod(domain.MethodCard, false))
	a := Allocate(s)
	assert.True(t, a.Subtotal(domain.MethodCard).IsZero())
	assert.True(t, a.Subtotal(domain.MethodCash).Equal(dec("40")))
	assert.True(t, a.RemainingDue.Equal(dec("60")))
}

func TestAllocate_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		s := domain.NewSession("AED")
		target := decimal.New(rng.Int63n(50000), -2)
		s.ManualAmount = decimal.NewNullDecimal(target)

		sum := decimal.Zero
		for _, m := range domain.Methods {
			if rng.Intn(2) == 0 {
				continue
			}
			s.Selected[m] = true
			n := 1 + rng.Intn(3)
			for j := 0; j < n; j++ {
				amount := decimal.New(rng.Int63n(30000), -2)
				s.Splits[m] = append(s.Splits[m], domain.SplitRow{Amount: decimal.NewNullDecimal(amount)})
				sum = sum.Add(amount)
			}
		}

		a := Allocate(s)
		require.True(t, a.AllocatedTotal.Equal(sum))
		require.False(t, a.RemainingDue.IsNegative())
		require.False(t, a.ChangeDue.IsNegative())
		if a.AllocatedTotal.GreaterThanOrEqual(target) {
			require.True(t, a.RemainingDue.IsZero())
		}

		nonCash := a.Subtotal(domain.MethodCard).Add(a.Subtotal(domain.MethodCheque))
		owed := decimal.Max(target.Sub(nonCash), decimal.Zero)
		if a.Subtotal(domain.MethodCash).LessThanOrEqual(owed) {
			require.True(t, a.ChangeDue.IsZero())
		}

		// Row order does not matter
		for _, m := range domain.Methods {
			r := s.Splits[m]
			for l, h := 0, len(r)-1; l < h; l, h = l+1, h-1 {
				r[l], r[h] = r[h], r[l]
			}
		}
		require.True(t, Allocate(s).AllocatedTotal.Equal(sum))
	}
}
