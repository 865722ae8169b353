// Package prompt implements the line-oriented interactive questions the
// importers ask when arguments are omitted.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	highlight = "\033[96m"
	reset     = "\033[0m"
)

// ErrNoInput is returned when the input stream ends before an answer is read.
var ErrNoInput = errors.New("no input")

// Prompter reads answers line by line from an input stream.
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	color bool
}

// New creates a prompter. Color enables ANSI highlighting.
func New(in io.Reader, out io.Writer, color bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, color: color}
}

// NewFor prompts on in and out, highlighting only when out is a terminal.
func NewFor(in io.Reader, out io.Writer) *Prompter {
	color := false
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return New(in, out, color)
}

// Highlight wraps s in the highlight colour when colour is enabled.
func (p *Prompter) Highlight(s string) string {
	if !p.color {
		return s
	}
	return highlight + s + reset
}

// Printf writes formatted output.
func (p *Prompter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

// Println writes a line.
func (p *Prompter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

// Ask prints label and returns the trimmed answer. An answer on the final
// unterminated line is returned; a closed stream with nothing left is ErrNoInput.
func (p *Prompter) Ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question; only y or yes (any case) count as yes.
func (p *Prompter) Confirm(label string) (bool, error) {
	answer, err := p.Ask(label)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(answer) {
	case "Y", "YES":
		return true, nil
	default:
		return false, nil
	}
}

// Choose lists options numbered from 1 and returns the zero-based index of the
// selection. An empty answer returns ok=false. Invalid answers re-prompt.
func (p *Prompter) Choose(label string, options []string) (int, bool, error) {
	for {
		for i, option := range options {
			fmt.Fprintf(p.out, "%d) %s\n", i+1, option)
		}
		fmt.Fprintln(p.out)
		answer, err := p.Ask(label)
		if err != nil {
			return 0, false, err
		}
		if answer == "" {
			return 0, false, nil
		}
		n, ok := ParseIndex(answer, len(options))
		if !ok {
			fmt.Fprintln(p.out, p.Highlight("Invalid selection. Try again."))
			continue
		}
		return n, true, nil
	}
}

// ChooseMany lists options and returns the zero-based indexes of a
// comma-separated selection. Invalid entries are ignored.
func (p *Prompter) ChooseMany(label string, options []string) ([]int, error) {
	for i, option := range options {
		fmt.Fprintf(p.out, "%d) %s\n", i+1, option)
	}
	fmt.Fprintln(p.out)
	answer, err := p.Ask(label)
	if err != nil {
		return nil, err
	}
	return ParseSelection(answer, len(options)), nil
}

// ParseIndex converts a 1-based answer into a 0-based index within n options.
func ParseIndex(answer string, n int) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || v < 1 || v > n {
		return 0, false
	}
	return v - 1, true
}

// ParseSelection converts "1, 3,x" into valid 0-based indexes, in order.
func ParseSelection(answer string, n int) []int {
	var out []int
	for _, part := range strings.Split(answer, ",") {
		if idx, ok := ParseIndex(part, n); ok {
			out = append(out, idx)
		}
	}
	return out
}
