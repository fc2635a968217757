package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	view := pauseMap{"nftstake": true}
	if err := Guard(view, "nftstake"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(view, "nft"); err != nil {
		t.Fatalf("unexpected error for active module: %v", err)
	}
	if err := Guard(nil, "nftstake"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}
