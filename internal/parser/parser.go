// Package parser handles parsing of user input lines for the payment widget.
package parser

import (
	"fmt"
	"strings"
)

// Command represents a parsed command with its name and arguments.
type Command struct {
	Name string
	Args []string
}

// commandArgCounts defines the number of REQUIRED arguments for each command.
// Optional arguments are not counted here.
var commandArgCounts = map[string]int{
	"PAYER":       1, // <payer>...
	"TOTAL":       0, // [amount] - none clears the override
	"METHOD":      2, // <method> <on|off>
	"ADD":         1, // <method>
	"REMOVE":      2, // <method> <row>
	"AMOUNT":      2, // <method> <row> [amount]
	"ALIAS":       2, // <method> <row> [alias]
	"CARD":        1, // <number|expiry|auth> [value]
	"CHEQUE":      1, // <number|date> [value]
	"CURRENCY":    0, // [code]
	"DESCRIPTION": 0, // [text]...
	"TOUCH":       1, // <field>
	"STATUS":      0,
	"SUBMIT":      0,
	"CANCEL":      0,
	"EXIT":        0,
}

// Parse turns one input line into a Command. A token starting with '#' ends
// the line only once the command's required arguments have been read; before
// that it is malformed input.
func Parse(line string) (*Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty input")
	}

	tokens := tokenize(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty input")
	}

	cmdName := strings.ToUpper(tokens[0])
	requiredArgs, known := commandArgCounts[cmdName]
	if !known {
		return nil, fmt.Errorf("unknown command: %s", cmdName)
	}

	args, err := extractArgs(tokens[1:], requiredArgs, cmdName)
	if err != nil {
		return nil, err
	}

	return &Command{
		Name: cmdName,
		Args: args,
	}, nil
}

// tokenize splits a line into tokens by whitespace.
func tokenize(line string) []string {
	return strings.Fields(line)
}

// extractArgs collects the arguments that precede any trailing comment.
func extractArgs(tokens []string, requiredCount int, cmdName string) ([]string, error) {
	args := make([]string, 0, requiredCount)

	for _, token := range tokens {
		comment := strings.HasPrefix(token, "#")
		if len(args) >= requiredCount {
			if comment {
				break
			}
			// optional trailing value, e.g. the amount of AMOUNT
			args = append(args, token)
			continue
		}
		if comment {
			return nil, fmt.Errorf("malformed input: unexpected '#' in required argument position for %s", cmdName)
		}
		// a '#' inside a token is part of the value
		args = append(args, token)
	}

	if len(args) < requiredCount {
		return nil, fmt.Errorf("insufficient arguments for %s: expected %d, got %d", cmdName, requiredCount, len(args))
	}

	return args, nil
}

// IsValidCommand checks if a command name is valid.
func IsValidCommand(name string) bool {
	_, ok := commandArgCounts[name]
	return ok
}

// GetRequiredArgCount returns the number of required arguments for a command.
func GetRequiredArgCount(name string) (int, bool) {
	count, ok := commandArgCounts[name]
	return count, ok
}
