package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-widget/internal/domain"
	"payment-widget/internal/parser"
)

func exec(t *testing.T, w *Widget, line string) (string, error) {
	t.Helper()
	cmd, err := parser.Parse(line)
	require.NoError(t, err, line)
	return w.Execute(cmd)
}

func TestExecute(t *testing.T) {
	w, _ := mount(t, Config{})

	steps := []struct {
		line string
		want string
	}{
		{"PAYER Jane Doe", "Payer set to Jane Doe"},
		{"TOTAL 80", "Total set to 80"},
		{"METHOD card on", "Credit card selected"},
		{"METHOD cheque on", "Cheque selected"},
		{"ADD cheque", "Cheque row 1 added"},
		{"REMOVE cheque 1", "Cheque row 1 removed"},
		{"AMOUNT card 0 30", "Credit card row 0 amount 30"},
		{"AMOUNT cheque 0 50", "Cheque row 0 amount 50"},
		{"ALIAS card 0 visa", `Credit card row 0 alias "visa"`},
		{"ALIAS cheque 0 bank1", `Cheque row 0 alias "bank1"`},
		{"CARD number 4242", "Card number updated"},
		{"CARD expiry 12/30", "Card expiry updated"},
		{"CARD auth 777", "Card auth updated"},
		{"CHEQUE number 000123", "Cheque number updated"},
		{"CHEQUE date 2026-03-20", "Cheque date updated"},
		{"CURRENCY usd", "Currency tendered USD"},
		{"DESCRIPTION copay", "Description updated"},
		{"TOUCH payer", "Touched payer"},
		{"STATUS", "Widget: state=ACTIVE target=80.00 allocated=80.00 remaining=0.00 change=0.00 canSubmit=true"},
	}
	for _, st := range steps {
		got, err := exec(t, w, st.line)
		require.NoError(t, err, st.line)
		assert.Equal(t, st.want, got, st.line)
	}

	got, err := exec(t, w, "METHOD card off")
	require.NoError(t, err)
	assert.Equal(t, "Credit card deselected", got)
	assert.Empty(t, w.session.Card.Number, "deselecting clears card details")

	got, err = exec(t, w, "TOTAL")
	require.NoError(t, err)
	assert.Equal(t, "Total override cleared", got)
}

func TestExecute_Errors(t *testing.T) {
	w, _ := mount(t, Config{})

	_, err := exec(t, w, "METHOD bitcoin on")
	assert.ErrorIs(t, err, domain.ErrUnknownMethod)

	_, err = exec(t, w, "METHOD cash maybe")
	assert.Error(t, err)

	_, err = exec(t, w, "ADD cash")
	assert.ErrorIs(t, err, domain.ErrMethodInactive)

	_, err = exec(t, w, "METHOD cash on")
	require.NoError(t, err)

	_, err = exec(t, w, "AMOUNT cash 3 10")
	assert.ErrorIs(t, err, domain.ErrRowOutOfRange)

	_, err = exec(t, w, "AMOUNT cash 0 -5")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "cash.0.amount", verr.Field)

	_, err = exec(t, w, "REMOVE cash one")
	var perr *domain.ParseError
	assert.ErrorAs(t, err, &perr)

	_, err = exec(t, w, "CARD number 4242")
	assert.ErrorIs(t, err, domain.ErrMethodInactive)
}

func TestExecute_RejectsUnboundedAmounts(t *testing.T) {
	w, _ := mount(t, Config{})
	_, err := exec(t, w, "METHOD cash on")
	require.NoError(t, err)
	_, err = exec(t, w, "AMOUNT cash 0 25")
	require.NoError(t, err)

	for _, line := range []string{
		"AMOUNT cash 0 1e200000000",
		"AMOUNT cash 0 1000000000000",
		"AMOUNT cash 0 0.001",
		"TOTAL 1E9",
	} {
		_, err := exec(t, w, line)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, line)
	}

	got, err := exec(t, w, "STATUS")
	require.NoError(t, err)
	assert.Contains(t, got, "allocated=25.00")

	_, err = exec(t, w, "CANCEL")
	require.NoError(t, err)
	assert.Equal(t, domain.StateTerminated, w.State())
}

func TestExecute_StatusListsVisibleErrors(t *testing.T) {
	w, _ := mount(t, Config{})

	got, err := exec(t, w, "STATUS")
	require.NoError(t, err)
	assert.Equal(t, "Widget: state=ACTIVE target=0.00 allocated=0.00 remaining=0.00 change=0.00 canSubmit=false amount=unspecified", got)

	_, err = exec(t, w, "SUBMIT")
	var blocked *domain.SubmitBlockedError
	require.ErrorAs(t, err, &blocked)

	got, err = exec(t, w, "STATUS")
	require.NoError(t, err)
	assert.Contains(t, got, "\n  amount: Enter the amount to pay")
	assert.Contains(t, got, "\n  payer: Received from is required")
}

func TestExecute_ExitLeavesWidgetUntouched(t *testing.T) {
	w, q := mount(t, Config{})

	got, err := exec(t, w, "EXIT")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, domain.StateActive, w.State())
	assert.Zero(t, q.Pending(), "nothing is posted")
}
