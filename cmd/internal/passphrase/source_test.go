package passphrase

import (
	"errors"
	"io"
	"testing"
)

func newTestSource(env map[string]string, tty bool, typed string, readErr error) (*Source, *int) {
	reads := 0
	s := NewSource("TEST_PASS", "")
	s.lookup = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	s.terminal = func() bool { return tty }
	s.read = func() ([]byte, error) {
		reads++
		return []byte(typed), readErr
	}
	s.out = io.Discard
	return s, &reads
}

func TestSourcePrefersEnvironment(t *testing.T) {
	s, reads := newTestSource(map[string]string{"TEST_PASS": "hunter2"}, true, "typed", nil)
	got, err := s.Get()
	if err != nil || got != "hunter2" {
		t.Fatalf("got %q, %v", got, err)
	}
	if *reads != 0 {
		t.Fatalf("prompted despite environment value")
	}
}

func TestSourceRejectsBlankEnvironment(t *testing.T) {
	s, _ := newTestSource(map[string]string{"TEST_PASS": "  "}, true, "typed", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected blank env value to fail")
	}
}

func TestSourcePromptsOnceAndCaches(t *testing.T) {
	s, reads := newTestSource(nil, true, "secret", nil)
	for i := 0; i < 2; i++ {
		got, err := s.Get()
		if err != nil || got != "secret" {
			t.Fatalf("got %q, %v", got, err)
		}
	}
	if *reads != 1 {
		t.Fatalf("expected one prompt, got %d", *reads)
	}
}

func TestSourceFailures(t *testing.T) {
	s, _ := newTestSource(nil, false, "", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected error without terminal")
	}
	s, _ = newTestSource(nil, true, "", nil)
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected empty passphrase error")
	}
	s, _ = newTestSource(nil, true, "", errors.New("tty gone"))
	if _, err := s.Get(); err == nil {
		t.Fatalf("expected read error")
	}
}
