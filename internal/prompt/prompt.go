// Package prompt asks for values on an interactive terminal.
package prompt

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/term"

	"github.com/stockbridge/zinv/internal/output"
)

// Interactive reports whether both stdin and stdout are terminals.
func Interactive() bool {
	return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd())
}

// Secret asks for a value without echoing it. An empty answer is allowed.
func Secret(title, description string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		Description(description).
		EchoMode(huh.EchoModePassword).
		Value(&result).
		Run()
	return strings.TrimSpace(result), wrap(err)
}

// Input asks for a visible value. An empty answer is allowed.
func Input(title, placeholder string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&result).
		Run()
	return strings.TrimSpace(result), wrap(err)
}

func wrap(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return output.ErrUsage("Cancelled")
	}
	return err
}
