// Package interactive provides interactive prompts and progress display.
package interactive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(title, description string) (bool, error)
}

// NewConfirmer returns a form-based confirmer on a terminal and a line
// prompter otherwise.
func NewConfirmer() Confirmer {
	if IsTerminal() {
		return &FormConfirmer{}
	}
	return NewPrompter()
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsOutputTerminal checks if w is a terminal.
func IsOutputTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// FormConfirmer renders a huh confirm form.
type FormConfirmer struct{}

// Confirm shows the form. Escape or Ctrl-C answers no.
func (FormConfirmer) Confirm(title, description string) (bool, error) {
	var ok bool
	confirm := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)
	if description != "" {
		confirm = confirm.Description(description)
	}

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("form error: %w", err)
	}
	return ok, nil
}

// Prompter reads y/n answers line by line.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// Confirm prints the question and reads one answer. Anything but y/yes,
// including end of input, is no.
func (p *Prompter) Confirm(title, description string) (bool, error) {
	if description != "" {
		_, _ = fmt.Fprintln(p.out, description)
	}
	_, _ = fmt.Fprintf(p.out, "%s [y/N] ", title)

	if !p.scanner.Scan() {
		_, _ = fmt.Fprintln(p.out)
		return false, p.scanner.Err()
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes", nil
}
