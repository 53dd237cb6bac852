// Package interactive provides the apply confirmation prompt.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamancini/clasp/internal/output"
)

// Prompter asks for confirmation before a diff is committed.
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

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// ConfirmApply shows the pending diff and asks whether to commit it. The
// diff is confirmed whole; per-item approval happens by editing the
// selection, not at the prompt.
func (p *Prompter) ConfirmApply(report *output.DiffReport) bool {
	_, _ = fmt.Fprintln(p.out, report.String())
	_, _ = fmt.Fprint(p.out, "\nApply these changes? [y/N] ")
	if !p.scanner.Scan() {
		return false
	}
	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}
