package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// prompter asks yes/no questions on an interactive stream.
type prompter struct {
	mu     sync.Mutex
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{reader: bufio.NewReader(in), out: out}
}

// Confirm prints prompt and reports whether the answer is "y" (any case,
// surrounding space ignored). End of input counts as no.
func (p *prompter) Confirm(prompt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, _ = fmt.Fprint(p.out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && line == "" {
		_, _ = fmt.Fprintln(p.out)
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line), "y")
}
