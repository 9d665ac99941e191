package ui

import (
	"fmt"
	"io"
	"strings"
)

// ASCIILogo is printed at the start of interactive runs
const ASCIILogo = `
    ╔════════════════════════════════════════════════════╗
    ║  ┳━┓┏━┓┳━┓┳━┓o┏┳┓  ┏━┓┏┳┓┳                         ║
    ║  ┃┳┛┣━ ┃ ┃┃ ┃┃ ┃   ┣━  ┃ ┃                         ║
    ║  ┇┗┛┻━┛┇━┛┇━┛┇ ┇   ┻━┛ ┇ ┇━┛                       ║
    ║      subreddit → S3 → Redshift, one day at a time  ║
    ╚════════════════════════════════════════════════════╝
`

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		return fmt.Sprintf(colorString, text)
	}
}

func plain(text string) string { return text }

// Printer writes user-facing status lines. Quiet suppresses everything
// but errors; without color no escape codes are emitted.
type Printer struct {
	out   io.Writer
	color bool
	quiet bool
}

// NewPrinter creates a Printer writing to out
func NewPrinter(out io.Writer, color, quiet bool) *Printer {
	return &Printer{out: out, color: color, quiet: quiet}
}

func (p *Printer) paint(fn func(string) string) func(string) string {
	if !p.color {
		return plain
	}
	return fn
}

func withArg(msg string, args []interface{}) string {
	if len(args) > 0 {
		return msg + ": " + fmt.Sprintf("%v", args[0])
	}
	return msg
}

// Logo prints the ASCII logo
func (p *Printer) Logo() {
	if p.quiet {
		return
	}
	fmt.Fprint(p.out, p.paint(Cyan)(ASCIILogo))
}

// Error prints an error message in red, even when quiet
func (p *Printer) Error(msg string, args ...interface{}) {
	fmt.Fprintln(p.out, p.paint(Red)(withArg(msg, args)))
}

// Success prints a success message in green
func (p *Printer) Success(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(Green)(msg))
}

// Info prints a label and value
func (p *Printer) Info(label string, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", p.paint(Cyan)(label), p.paint(Yellow)(value))
}

// Warning prints a warning message in yellow
func (p *Printer) Warning(msg string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(Yellow)(withArg(msg, args)))
}

// Highlight prints a highlighted message in magenta
func (p *Printer) Highlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.paint(Magenta)(msg))
}

// Stage prints a tagged line for a pipeline stage, e.g. "[EXTRACT] 42 rows"
func (p *Printer) Stage(stage, msg string) {
	if p.quiet {
		return
	}
	tag := "[" + strings.ToUpper(stage) + "]"
	fmt.Fprintf(p.out, "%s %s\n", p.paint(Magenta)(tag), msg)
}

// Table prints label/value pairs with the labels aligned
func (p *Printer) Table(rows [][2]string) {
	if p.quiet {
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		label := r[0] + strings.Repeat(" ", width-len(r[0]))
		fmt.Fprintf(p.out, "  %s  %s\n", p.paint(Dim)(label), r[1])
	}
}
