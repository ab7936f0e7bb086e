package helpers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// TermPrompter asks on the controlling terminal. It satisfies wallet.Prompter.
type TermPrompter struct {
	mu     sync.Mutex
	in     *bufio.Reader
	out    io.Writer
	stdin  *os.File
	assume *bool
}

func NewTermPrompter() *TermPrompter {
	return &TermPrompter{
		in:    bufio.NewReader(os.Stdin),
		out:   os.Stderr,
		stdin: os.Stdin,
	}
}

// NewScriptedPrompter reads answers from in, one per line. Used for piped input.
func NewScriptedPrompter(in io.Reader, out io.Writer) *TermPrompter {
	return &TermPrompter{in: bufio.NewReader(in), out: out}
}

// AssumeYes answers every confirmation with yes (the --yes flag).
func (p *TermPrompter) AssumeYes() *TermPrompter {
	yes := true
	p.assume = &yes
	return p
}

func (p *TermPrompter) Password(label string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprint(p.out, label)

	if p.stdin != nil && term.IsTerminal(int(p.stdin.Fd())) {
		pw, err := term.ReadPassword(int(p.stdin.Fd()))
		_, _ = fmt.Fprintln(p.out) // best-effort newline
		if err != nil {
			ZeroBytes(pw)
			return nil, fmt.Errorf("password input failed: %w", err)
		}
		return pw, nil
	}

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		return nil, fmt.Errorf("password input failed: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func (p *TermPrompter) Confirm(label string) (bool, error) {
	if p.assume != nil {
		return *p.assume, nil
	}
	answer, err := p.PromptLineWithDefault(label+" [y/N]", "")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (p *TermPrompter) PromptLineWithDefault(label, def string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if def != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", label)
	}

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		if err == io.EOF {
			return def, nil
		}
		return def, err
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	return line, nil
}

func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
