// Package tui renders document analysis progress on the terminal: a live
// Bubble Tea view on a TTY, plain progress lines otherwise.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// Decision is the resolved UI mode.
type Decision struct {
	Live    bool
	Warning string
}

// isTerminal reports whether a writer is a TTY.
var isTerminal = defaultIsTerminal

// ResolveMode picks live or plain output for mode auto|live|plain.
func ResolveMode(mode string, out io.Writer) (Decision, error) {
	normalized := strings.ToLower(strings.TrimSpace(mode))
	if normalized == "" {
		normalized = "auto"
	}
	switch normalized {
	case "auto":
		return Decision{Live: isTerminal(out)}, nil
	case "live":
		if isTerminal(out) {
			return Decision{Live: true}, nil
		}
		return Decision{Warning: "live progress requested but output is not a TTY; using plain output"}, nil
	case "plain":
		return Decision{}, nil
	default:
		return Decision{}, fmt.Errorf("invalid ui mode %q (expected auto|live|plain)", mode)
	}
}

func defaultIsTerminal(out io.Writer) bool {
	if out == nil {
		return false
	}
	if file, ok := out.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	if fder, ok := out.(interface{ Fd() uintptr }); ok {
		return term.IsTerminal(int(fder.Fd()))
	}
	return false
}

// PlainProgress writes one line per answered question.
func PlainProgress(out io.Writer) func(entities.Progress) {
	return func(p entities.Progress) {
		fmt.Fprintf(out, "[%d/%d] %s: %s\n", p.Done, p.Total, p.Aspect, p.Question)
	}
}
