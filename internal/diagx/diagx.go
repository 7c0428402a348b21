// Package diagx is the tracer's dedicated diagnostic channel (§7):
// probe-ordering violations, unmatched pops and I/O failures are
// appended here rather than panicking, and folded into the terminal
// ERROR/NOERROR sentinel at cleanup.
package diagx

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Severity mirrors the teacher's leveled diagnostic bag.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Diagnostic is one entry in the channel.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
}

// Bag accumulates diagnostics for the lifetime of one trace.
type Bag struct {
	items []Diagnostic
}

// NewBag returns an empty bag.
func NewBag() *Bag { return &Bag{} }

// Add appends d unconditionally; there is no cap, since a tracer run
// producing millions of diagnostics is itself the signal something is
// badly wrong and truncating them would hide that.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Report is a shortcut for Add with the three fields spelled out.
func (b *Bag) Report(sev Severity, code, message string) {
	b.Add(Diagnostic{Severity: sev, Code: code, Message: message})
}

// HasErrors reports whether any entry is SevError or worse.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity >= SevError {
			return true
		}
	}
	return false
}

// Len reports the number of accumulated diagnostics.
func (b *Bag) Len() int { return len(b.items) }

// Items returns the accumulated diagnostics; callers must not mutate
// the returned slice.
func (b *Bag) Items() []Diagnostic { return b.items }

// Dump writes every diagnostic to w, colorized when w is a TTY (or
// colorForce is true).
func (b *Bag) Dump(w io.Writer, colorForce bool) {
	useColor := colorForce
	if f, ok := w.(*os.File); ok && !useColor {
		useColor = term.IsTerminal(int(f.Fd()))
	}
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)
	infoColor := color.New(color.FgCyan)
	errColor.EnableColor()
	warnColor.EnableColor()
	infoColor.EnableColor()
	if !useColor {
		errColor.DisableColor()
		warnColor.DisableColor()
		infoColor.DisableColor()
	}
	for _, d := range b.items {
		var c *color.Color
		switch d.Severity {
		case SevError:
			c = errColor
		case SevWarning:
			c = warnColor
		default:
			c = infoColor
		}
		fmt.Fprintln(w, c.Sprintf("[%s] %s: %s", d.Severity, d.Code, d.Message))
	}
}
