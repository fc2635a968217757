package params

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StoreState captures the subset of state manager capabilities required by the
// parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Pauses maps module names to their pause toggle.
type Pauses map[string]bool

// Store provides typed accessors for administrator-controlled parameters.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

// SetPauses persists the supplied pause configuration under the canonical
// parameter store key as JSON.
func (s *Store) SetPauses(pauses Pauses) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	cleaned := make(Pauses, len(pauses))
	for module, paused := range pauses {
		name := normalizeModule(module)
		if name == "" || !paused {
			continue
		}
		cleaned[name] = true
	}
	encoded, err := json.Marshal(cleaned)
	if err != nil {
		return fmt.Errorf("params: encode pauses: %w", err)
	}
	return state.ParamStoreSet(ParamsKeyPauses, encoded)
}

// Pauses loads the persisted pause configuration. When unset, an empty
// configuration is returned.
func (s *Store) Pauses() (Pauses, error) {
	state, err := s.withState()
	if err != nil {
		return nil, err
	}
	raw, ok, err := state.ParamStoreGet(ParamsKeyPauses)
	if err != nil {
		return nil, err
	}
	if !ok || len(bytes.TrimSpace(raw)) == 0 {
		return Pauses{}, nil
	}
	var pauses Pauses
	if err := json.Unmarshal(raw, &pauses); err != nil {
		return nil, fmt.Errorf("params: decode pauses: %w", err)
	}
	return pauses, nil
}

// IsPaused reports whether module is currently paused. Storage failures are
// treated as paused so a corrupt flag never silently re-enables mutations.
func (s *Store) IsPaused(module string) bool {
	pauses, err := s.Pauses()
	if err != nil {
		return true
	}
	return pauses[normalizeModule(module)]
}

// SetPaused toggles the pause flag for a single module.
func (s *Store) SetPaused(module string, paused bool) error {
	name := normalizeModule(module)
	if name == "" {
		return fmt.Errorf("params: module name required")
	}
	pauses, err := s.Pauses()
	if err != nil {
		return err
	}
	if paused {
		pauses[name] = true
	} else {
		delete(pauses, name)
	}
	return s.SetPauses(pauses)
}

// PausedModules lists the paused modules in lexical order.
func (s *Store) PausedModules() ([]string, error) {
	pauses, err := s.Pauses()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pauses))
	for module, paused := range pauses {
		if paused {
			out = append(out, module)
		}
	}
	sort.Strings(out)
	return out, nil
}

func normalizeModule(module string) string {
	return strings.ToLower(strings.TrimSpace(module))
}
