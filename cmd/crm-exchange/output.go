package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

func writeJSONLine(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return withCode(exitFailed, fmt.Errorf("json encode: %w", err))
	}
	return nil
}

// prompter reads one answer per line. EOF reads as an empty answer with ok=false.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(format string, args ...any) (string, bool) {
	fmt.Fprintf(p.out, format, args...)
	if !p.in.Scan() {
		fmt.Fprintln(p.out)
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

func (p *prompter) confirm(format string, args ...any) bool {
	answer, ok := p.ask(format+" [y/N]: ", args...)
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
