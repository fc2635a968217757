package common

import (
	"errors"
	"fmt"
)

// ErrModulePaused is returned when a mutation targets a paused module.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes the pause toggles a module consults before mutating state.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when module is paused. A nil view never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return fmt.Errorf("%s: %w", module, ErrModulePaused)
	}
	return nil
}
