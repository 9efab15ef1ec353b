package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scripted Runner for tests. Handler decides the result of each
// call; Missing lists tools that LookPath reports as absent.
type Fake struct {
	Handler func(c Command) ([]byte, error)
	Missing map[string]bool

	mu    sync.Mutex
	calls []Command
}

func (f *Fake) Run(_ context.Context, c Command) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Command{Name: c.Name, Args: append([]string(nil), c.Args...)})
	f.mu.Unlock()
	if f.Missing[c.Name] {
		return nil, fmt.Errorf("exec: %q: executable file not found in $PATH", c.Name)
	}
	if f.Handler == nil {
		return nil, nil
	}
	out, err := f.Handler(c)
	if c.Stdout != nil && len(out) > 0 {
		if _, werr := c.Stdout.Write(out); werr != nil {
			return nil, werr
		}
		return nil, err
	}
	return out, err
}

func (f *Fake) LookPath(name string) (string, error) {
	if f.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/bin/" + name, nil
}

// Calls returns every command run so far, rendered as "name arg arg".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.String())
	}
	return out
}

// CallsTo returns the calls made to a single tool.
func (f *Fake) CallsTo(name string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c == name || strings.HasPrefix(c, name+" ") {
			out = append(out, c)
		}
	}
	return out
}
