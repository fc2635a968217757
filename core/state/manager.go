package state

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"nftstake/storage"
)

// Manager layers a revertible write journal over a key-value database. Every
// native module reads and writes through the same Manager so a failed batch
// can be unwound across the vault registry, the NFT collection and the
// reward token at once.
type Manager struct {
	db      storage.Database
	dirty   map[string][]byte
	journal []journalEntry
}

type journalEntry struct {
	key       string
	prev      []byte
	inOverlay bool
}

// ErrStaleNonce is returned when a nonce does not exceed the last one used.
var ErrStaleNonce = errors.New("state: stale nonce")

var (
	rolePrefix  = "role/"
	noncePrefix = "nonce/"
	paramPrefix = "param/"
)

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, dirty: make(map[string][]byte)}
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

func (m *Manager) getRaw(key []byte) ([]byte, bool, error) {
	hashed := kvKey(key)
	if value, ok := m.dirty[string(hashed)]; ok {
		if value == nil {
			return nil, false, nil
		}
		return value, true, nil
	}
	if m.db == nil {
		return nil, false, errors.New("state: database not configured")
	}
	value, err := m.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) setRaw(key []byte, value []byte) {
	hashed := string(kvKey(key))
	prev, inOverlay := m.dirty[hashed]
	m.journal = append(m.journal, journalEntry{key: hashed, prev: prev, inOverlay: inOverlay})
	m.dirty[hashed] = value
}

// KVGet decodes the RLP value stored under key into out.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	raw, ok, err := m.getRaw(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut RLP-encodes value and stages it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	m.setRaw(key, encoded)
	return nil
}

// KVDelete stages the removal of key.
func (m *Manager) KVDelete(key []byte) error {
	m.setRaw(key, nil)
	return nil
}

// Snapshot returns an identifier that RevertToSnapshot can unwind to.
func (m *Manager) Snapshot() int {
	return len(m.journal)
}

// RevertToSnapshot discards every write staged after the snapshot was taken.
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		entry := m.journal[i]
		if entry.inOverlay {
			m.dirty[entry.key] = entry.prev
		} else {
			delete(m.dirty, entry.key)
		}
	}
	m.journal = m.journal[:id]
}

// Commit flushes all staged writes to the database in one atomic batch.
func (m *Manager) Commit() error {
	if len(m.dirty) == 0 {
		m.journal = m.journal[:0]
		return nil
	}
	if m.db == nil {
		return errors.New("state: database not configured")
	}
	ops := make([]storage.Op, 0, len(m.dirty))
	for key, value := range m.dirty {
		ops = append(ops, storage.Op{Key: []byte(key), Value: value})
	}
	if err := m.db.Write(ops); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.dirty = make(map[string][]byte)
	m.journal = m.journal[:0]
	return nil
}

// Pending reports the number of staged keys awaiting Commit.
func (m *Manager) Pending() int { return len(m.dirty) }

func roleKey(role string, addr [20]byte) []byte {
	return []byte(rolePrefix + strings.ToLower(strings.TrimSpace(role)) + "/" + hex.EncodeToString(addr[:]))
}

// SetRole grants or revokes role for addr.
func (m *Manager) SetRole(role string, addr [20]byte, granted bool) error {
	if strings.TrimSpace(role) == "" {
		return errors.New("state: role required")
	}
	if !granted {
		return m.KVDelete(roleKey(role, addr))
	}
	return m.KVPut(roleKey(role, addr), true)
}

// HasRole reports whether addr holds role.
func (m *Manager) HasRole(role string, addr [20]byte) (bool, error) {
	var granted bool
	ok, err := m.KVGet(roleKey(role, addr), &granted)
	if err != nil || !ok {
		return false, err
	}
	return granted, nil
}

func nonceKey(scope string, addr [20]byte) []byte {
	return []byte(noncePrefix + scope + "/" + hex.EncodeToString(addr[:]))
}

// Nonce returns the last nonce consumed by addr within scope.
func (m *Manager) Nonce(scope string, addr [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.KVGet(nonceKey(scope, addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// ConsumeNonce records nonce for addr, rejecting replays and stale values.
func (m *Manager) ConsumeNonce(scope string, addr [20]byte, nonce uint64) error {
	if nonce == 0 {
		return fmt.Errorf("%w: nonce must be positive", ErrStaleNonce)
	}
	last, err := m.Nonce(scope, addr)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: %d (last %d)", ErrStaleNonce, nonce, last)
	}
	return m.KVPut(nonceKey(scope, addr), nonce)
}

// ParamStoreSet stores an opaque parameter payload.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("state: parameter name required")
	}
	m.setRaw([]byte(paramPrefix+trimmed), append([]byte(nil), value...))
	return nil
}

// ParamStoreGet loads an opaque parameter payload.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	return m.getRaw([]byte(paramPrefix + strings.TrimSpace(name)))
}
