package passphrase

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Source resolves a keystore passphrase once, from an environment variable
// or an interactive prompt, and caches the result.
type Source struct {
	envVar string
	prompt string

	lookup   func(string) (string, bool)
	terminal func() bool
	read     func() ([]byte, error)
	out      io.Writer

	once  sync.Once
	value string
	err   error
}

// NewSource checks envVar before prompting on the terminal with prompt.
func NewSource(envVar, prompt string) *Source {
	fd := int(os.Stdin.Fd())
	if strings.TrimSpace(prompt) == "" {
		prompt = "Enter keystore passphrase: "
	}
	return &Source{
		envVar:   strings.TrimSpace(envVar),
		prompt:   prompt,
		lookup:   os.LookupEnv,
		terminal: func() bool { return term.IsTerminal(fd) },
		read:     func() ([]byte, error) { return term.ReadPassword(fd) },
		out:      os.Stderr,
	}
}

// Get returns the cached passphrase, resolving it on first use. Blank
// passphrases are rejected.
func (s *Source) Get() (string, error) {
	s.once.Do(func() {
		if s.envVar != "" {
			if value, ok := s.lookup(s.envVar); ok {
				if strings.TrimSpace(value) == "" {
					s.err = fmt.Errorf("%s is set but empty", s.envVar)
					return
				}
				s.value = value
				return
			}
		}
		if !s.terminal() {
			if s.envVar != "" {
				s.err = fmt.Errorf("keystore passphrase required; set %s or run interactively", s.envVar)
			} else {
				s.err = errors.New("keystore passphrase required and no terminal available")
			}
			return
		}
		fmt.Fprint(s.out, s.prompt)
		raw, err := s.read()
		fmt.Fprintln(s.out)
		if err != nil {
			s.err = fmt.Errorf("failed to read passphrase: %w", err)
			return
		}
		if strings.TrimSpace(string(raw)) == "" {
			s.err = errors.New("keystore passphrase cannot be empty")
			return
		}
		s.value = string(raw)
	})
	return s.value, s.err
}
