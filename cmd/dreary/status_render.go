package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"dreary/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	tag    string
	colors text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

// statusLabelWidth fits the longest preflight check name.
const statusLabelWidth = 20

// statusReport writes the sectioned output of `dreary status`.
type statusReport struct {
	out      io.Writer
	colorize bool
	sections int
}

func newStatusReport(out io.Writer) *statusReport {
	return &statusReport{out: out, colorize: isTerminal(out)}
}

func (r *statusReport) section(title string) {
	if r.sections > 0 {
		fmt.Fprintln(r.out)
	}
	r.sections++
	heading := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(heading))
	if r.colorize {
		heading = text.Bold.Sprint(heading)
	}
	fmt.Fprintln(r.out, heading)
	fmt.Fprintln(r.out, rule)
}

func (r *statusReport) line(label string, kind statusKind, detail string) {
	fmt.Fprintln(r.out, formatStatusLine(label, kind, detail, r.colorize))
}

func (r *statusReport) check(result preflight.Result) {
	r.line(result.Name, checkKind(result), result.Detail)
}

func formatStatusLine(label string, kind statusKind, detail string, colorize bool) string {
	style := statusStyles[kind]
	tag := "[" + style.tag + "]"
	if colorize {
		tag = style.colors.Sprint(tag)
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", tag)
	if detail != "" {
		line += " " + detail
	}
	return line
}

func checkKind(r preflight.Result) statusKind {
	switch {
	case r.Passed:
		return statusOK
	case r.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
