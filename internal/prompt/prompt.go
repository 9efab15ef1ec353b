// Package prompt reads operator answers from a terminal or any reader.
// Every loop is bounded; EOF, "q" or too many bad answers end it with
// ErrCancelled.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"chrinstaller/internal/messages"

	"golang.org/x/term"
)

// ErrCancelled is returned when the operator quits or input runs out.
var ErrCancelled = errors.New("prompt cancelled")

// DefaultMaxAttempts bounds how often a single question is repeated.
const DefaultMaxAttempts = 5

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	fd          int
	MaxAttempts int
}

// New returns a Prompter. Secrets are read without echo when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Prompter{in: bufio.NewReader(in), out: out, fd: fd, MaxAttempts: DefaultMaxAttempts}
}

// Interactive reports whether the input is a terminal.
func (p *Prompter) Interactive() bool {
	return p.fd >= 0
}

// readLine reads one answer. A lone "q" cancels.
func (p *Prompter) readLine() (string, error) {
	line, err := p.readRaw()
	if err != nil {
		return "", err
	}
	if line == "q" {
		return "", ErrCancelled
	}
	return line, nil
}

// readRaw reads one trimmed line. Only end of input cancels.
func (p *Prompter) readRaw() (string, error) {
	line, err := p.in.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrCancelled
	case err != nil && !errors.Is(err, io.EOF):
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Ask prompts for a value. An empty answer takes def. When check is
// non-nil the answer is repeated until check accepts it.
func (p *Prompter) Ask(label, def string, check func(string) error) (string, error) {
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if def != "" {
			fmt.Fprintf(p.out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(p.out, "%s: ", label)
		}
		answer, err := p.readLine()
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = def
		}
		if check == nil {
			return answer, nil
		}
		if err := check(answer); err != nil {
			fmt.Fprintln(p.out, messages.T("prompt.invalid", err))
			continue
		}
		return answer, nil
	}
	return "", ErrCancelled
}

// Secret prompts for a value without echoing it on a terminal. An empty
// answer is returned as is, and "q" is a password like any other.
func (p *Prompter) Secret(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if p.fd < 0 {
		return p.readRaw()
	}
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// Confirm asks a yes/no question. An empty answer takes def.
func (p *Prompter) Confirm(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s [%s]: ", label, hint)
		answer, err := p.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, messages.T("prompt.yes_no"))
	}
	return false, ErrCancelled
}

// Menu prints numbered options and returns the chosen number. An empty
// answer selects 1. Without accept only listed numbers are taken; with
// accept, any number is offered to it and a returned error is shown
// before asking again.
func (p *Prompter) Menu(title string, options []string, label string, accept func(choice int) error) (int, error) {
	fmt.Fprintln(p.out, title)
	for i, o := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, o)
	}
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		fmt.Fprintf(p.out, "%s [1]: ", label)
		answer, err := p.readLine()
		if err != nil {
			return 0, err
		}
		if answer == "" {
			answer = "1"
		}
		choice, err := strconv.Atoi(answer)
		if err != nil || choice < 1 {
			fmt.Fprintln(p.out, messages.T("version.invalid_choice", answer))
			continue
		}
		if accept == nil {
			if choice > len(options) {
				fmt.Fprintln(p.out, messages.T("version.invalid_choice", answer))
				continue
			}
			return choice, nil
		}
		if err := accept(choice); err != nil {
			fmt.Fprintln(p.out, err.Error())
			continue
		}
		return choice, nil
	}
	return 0, ErrCancelled
}
