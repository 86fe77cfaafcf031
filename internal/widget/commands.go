package widget

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"payment-widget/internal/domain"
	"payment-widget/internal/parser"
)

// Execute applies a parsed user input line and returns a one-line summary.
func (w *Widget) Execute(cmd *parser.Command) (string, error) {
	switch cmd.Name {
	case "PAYER":
		return w.handlePayer(cmd.Args)
	case "TOTAL":
		return w.handleTotal(cmd.Args)
	case "METHOD":
		return w.handleMethod(cmd.Args)
	case "ADD":
		return w.handleAdd(cmd.Args)
	case "REMOVE":
		return w.handleRemove(cmd.Args)
	case "AMOUNT":
		return w.handleAmount(cmd.Args)
	case "ALIAS":
		return w.handleAlias(cmd.Args)
	case "CARD":
		return w.handleCard(cmd.Args)
	case "CHEQUE":
		return w.handleCheque(cmd.Args)
	case "CURRENCY":
		return w.handleCurrency(cmd.Args)
	case "DESCRIPTION":
		return w.handleDescription(cmd.Args)
	case "TOUCH":
		return w.handleTouch(cmd.Args)
	case "STATUS":
		return w.handleStatus()
	case "SUBMIT":
		return w.handleSubmit()
	case "CANCEL":
		return w.handleCancel()
	case "EXIT":
		// Ends the input stream; the runner and server stop before Execute.
		return "", nil
	default:
		return "", fmt.Errorf("unknown command: %s", cmd.Name)
	}
}

// handlePayer handles the PAYER command.
func (w *Widget) handlePayer(args []string) (string, error) {
	payer := strings.Join(args, " ")
	err := w.Edit(func(s *domain.Session) error {
		s.SetPayer(payer)
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Payer set to %s", payer), nil
}

// handleTotal handles the TOTAL command. No argument clears the override.
func (w *Widget) handleTotal(args []string) (string, error) {
	raw := optional(args, 0)
	if err := w.Edit(func(s *domain.Session) error { return s.SetManualAmount(raw) }); err != nil {
		return "", err
	}
	if raw == "" {
		return "Total override cleared", nil
	}
	return fmt.Sprintf("Total set to %s", raw), nil
}

// handleMethod handles the METHOD command.
func (w *Widget) handleMethod(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("METHOD requires <method> <on|off>")
	}
	m, err := domain.ParseMethod(args[0])
	if err != nil {
		return "", err
	}
	var on bool
	switch strings.ToLower(args[1]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return "", fmt.Errorf("METHOD expects on or off, got %s", args[1])
	}

	if err := w.Edit(func(s *domain.Session) error { return s.ToggleMethod(m, on) }); err != nil {
		return "", err
	}
	if on {
		return fmt.Sprintf("%s selected", m.Label()), nil
	}
	return fmt.Sprintf("%s deselected", m.Label()), nil
}

// handleAdd handles the ADD command.
func (w *Widget) handleAdd(args []string) (string, error) {
	m, err := methodArg(args)
	if err != nil {
		return "", err
	}
	var rows int
	err = w.Edit(func(s *domain.Session) error {
		if err := s.AddSplitRow(m); err != nil {
			return err
		}
		rows = len(s.Splits[m])
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s row %d added", m.Label(), rows-1), nil
}

// handleRemove handles the REMOVE command.
func (w *Widget) handleRemove(args []string) (string, error) {
	m, row, err := rowArgs(args)
	if err != nil {
		return "", err
	}
	if err := w.Edit(func(s *domain.Session) error { return s.RemoveSplitRow(m, row) }); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s row %d removed", m.Label(), row), nil
}

// handleAmount handles the AMOUNT command. No value leaves the row blank.
func (w *Widget) handleAmount(args []string) (string, error) {
	m, row, err := rowArgs(args)
	if err != nil {
		return "", err
	}
	raw := optional(args, 2)
	if err := w.Edit(func(s *domain.Session) error { return s.SetSplitAmount(m, row, raw) }); err != nil {
		return "", err
	}
	if raw == "" {
		return fmt.Sprintf("%s row %d amount cleared", m.Label(), row), nil
	}
	return fmt.Sprintf("%s row %d amount %s", m.Label(), row, raw), nil
}

// handleAlias handles the ALIAS command.
func (w *Widget) handleAlias(args []string) (string, error) {
	m, row, err := rowArgs(args)
	if err != nil {
		return "", err
	}
	alias := optional(args, 2)
	if err := w.Edit(func(s *domain.Session) error { return s.SetSplitAlias(m, row, alias) }); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s row %d alias %q", m.Label(), row, alias), nil
}

// handleCard handles the CARD command. The value is not echoed back.
func (w *Widget) handleCard(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("CARD requires <number|expiry|auth> [value]")
	}
	field, value := args[0], optional(args, 1)
	if err := w.Edit(func(s *domain.Session) error { return s.SetCardField(field, value) }); err != nil {
		return "", err
	}
	return fmt.Sprintf("Card %s updated", field), nil
}

// handleCheque handles the CHEQUE command.
func (w *Widget) handleCheque(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("CHEQUE requires <number|date> [value]")
	}
	field, value := args[0], optional(args, 1)
	if err := w.Edit(func(s *domain.Session) error { return s.SetChequeField(field, value) }); err != nil {
		return "", err
	}
	return fmt.Sprintf("Cheque %s updated", field), nil
}

// handleCurrency handles the CURRENCY command (currency tendered).
func (w *Widget) handleCurrency(args []string) (string, error) {
	currency := strings.ToUpper(optional(args, 0))
	err := w.Edit(func(s *domain.Session) error {
		s.SetCurrencyTendered(currency)
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Currency tendered %s", currency), nil
}

// handleDescription handles the DESCRIPTION command.
func (w *Widget) handleDescription(args []string) (string, error) {
	description := strings.Join(args, " ")
	err := w.Edit(func(s *domain.Session) error {
		s.SetDescription(description)
		return nil
	})
	if err != nil {
		return "", err
	}
	return "Description updated", nil
}

// handleTouch handles the TOUCH command.
func (w *Widget) handleTouch(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("TOUCH requires <field>")
	}
	field := args[0]
	err := w.Edit(func(s *domain.Session) error {
		s.Touch(field)
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Touched %s", field), nil
}

// handleStatus handles the STATUS command.
// STATUS has no side effects.
func (w *Widget) handleStatus() (string, error) {
	v := w.View()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Widget: state=%s target=%s allocated=%s remaining=%s change=%s canSubmit=%t",
		v.State,
		domain.FormatAmount(v.TargetAmount),
		domain.FormatAmount(v.AllocatedTotal),
		domain.FormatAmount(v.RemainingDue),
		domain.FormatAmount(v.ChangeDue),
		v.CanSubmit)
	if v.IsZero {
		sb.WriteString(" amount=unspecified")
	}

	ids := make([]string, 0, len(v.Errors))
	for id := range v.Errors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&sb, "\n  %s: %s", id, v.Errors[id])
	}
	return sb.String(), nil
}

// handleSubmit handles the SUBMIT command.
func (w *Widget) handleSubmit() (string, error) {
	if err := w.Submit(); err != nil {
		return "", err
	}
	return "Submitting", nil
}

// handleCancel handles the CANCEL command.
func (w *Widget) handleCancel() (string, error) {
	if err := w.Cancel(); err != nil {
		return "", err
	}
	return "Cancelled", nil
}

func methodArg(args []string) (domain.Method, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("method required")
	}
	return domain.ParseMethod(args[0])
}

func rowArgs(args []string) (domain.Method, int, error) {
	if len(args) < 2 {
		return "", 0, fmt.Errorf("<method> <row> required")
	}
	m, err := domain.ParseMethod(args[0])
	if err != nil {
		return "", 0, err
	}
	row, err := strconv.Atoi(args[1])
	if err != nil {
		return "", 0, domain.NewParseError(fmt.Sprintf("invalid row index: %s", args[1]))
	}
	return m, row, nil
}

func optional(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}
