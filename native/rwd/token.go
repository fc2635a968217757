package rwd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"nftstake/core/events"
	"nftstake/core/types"
	"nftstake/crypto"
)

var (
	errNilState = errors.New("reward token: state not configured")
	// ErrNotController is returned when a non-controller attempts to mint.
	ErrNotController = errors.New("reward token: caller is not a controller")
	// ErrNotOwner is returned when a controller change is not signed by the owner.
	ErrNotOwner = errors.New("reward token: caller is not the owner")
	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("reward token: amount must not be negative")
	// ErrOverflow is returned when a balance or the supply exceeds 256 bits.
	ErrOverflow = errors.New("reward token: amount overflows 256 bits")
	// ErrInsufficientBalance is returned when a transfer exceeds the sender balance.
	ErrInsufficientBalance = errors.New("reward token: insufficient balance")
)

const (
	// EventTypeMinted is emitted whenever a controller mints rewards.
	EventTypeMinted = "rwd.minted"
	// EventTypeTransfer is emitted on holder-to-holder transfers.
	EventTypeTransfer = "rwd.transfer"
	// EventTypeControllerUpdated is emitted when the controller set changes.
	EventTypeControllerUpdated = "rwd.controllerUpdated"
)

type tokenState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Token is a fungible reward asset whose supply grows only through mints
// performed by authorised controllers.
type Token struct {
	symbol  string
	state   tokenState
	emitter events.Emitter
}

// NewToken constructs a token namespaced under symbol.
func NewToken(symbol string) *Token {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		trimmed = "RWD"
	}
	return &Token{symbol: trimmed, emitter: events.NoopEmitter{}}
}

// Symbol returns the ticker of the token.
func (t *Token) Symbol() string { return t.symbol }

// SetState configures the state backend used by the token.
func (t *Token) SetState(state tokenState) { t.state = state }

// SetEmitter configures the event emitter used by the token.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		t.emitter = events.NoopEmitter{}
		return
	}
	t.emitter = emitter
}

func (t *Token) emit(evt *types.Event) {
	if t.emitter != nil && evt != nil {
		t.emitter.Emit(WrapEvent(evt))
	}
}

func (t *Token) key(parts ...string) []byte {
	return []byte("rwd/" + strings.ToLower(t.symbol) + "/" + strings.Join(parts, "/"))
}

func (t *Token) loadAmount(key []byte) (*uint256.Int, error) {
	if t.state == nil {
		return nil, errNilState
	}
	stored := new(big.Int)
	ok, err := t.state.KVGet(key, stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return uint256.NewInt(0), nil
	}
	value, overflow := uint256.FromBig(stored)
	if overflow {
		return nil, ErrOverflow
	}
	return value, nil
}

func (t *Token) storeAmount(key []byte, value *uint256.Int) error {
	if value.IsZero() {
		return t.state.KVDelete(key)
	}
	return t.state.KVPut(key, value.ToBig())
}

// Owner returns the account allowed to manage controllers.
func (t *Token) Owner() ([20]byte, error) {
	if t.state == nil {
		return [20]byte{}, errNilState
	}
	var owner [20]byte
	if _, err := t.state.KVGet(t.key("owner"), &owner); err != nil {
		return [20]byte{}, err
	}
	return owner, nil
}

// SetOwner installs the token owner. Once set, only the current owner may
// transfer ownership.
func (t *Token) SetOwner(caller, owner [20]byte) error {
	current, err := t.Owner()
	if err != nil {
		return err
	}
	var zero [20]byte
	if current != zero && current != caller {
		return ErrNotOwner
	}
	return t.state.KVPut(t.key("owner"), owner)
}

// SetController grants or revokes mint rights. Only the owner may call it.
func (t *Token) SetController(caller, controller [20]byte, enabled bool) error {
	owner, err := t.Owner()
	if err != nil {
		return err
	}
	if owner != caller {
		return ErrNotOwner
	}
	key := t.key("controller", hex.EncodeToString(controller[:]))
	if enabled {
		err = t.state.KVPut(key, true)
	} else {
		err = t.state.KVDelete(key)
	}
	if err != nil {
		return err
	}
	t.emit(&types.Event{Type: EventTypeControllerUpdated, Attributes: map[string]string{
		"symbol":     t.symbol,
		"controller": crypto.FormatRaw(controller),
		"enabled":    fmt.Sprintf("%t", enabled),
	}})
	return nil
}

// IsController reports whether addr may mint.
func (t *Token) IsController(addr [20]byte) (bool, error) {
	if t.state == nil {
		return false, errNilState
	}
	var enabled bool
	ok, err := t.state.KVGet(t.key("controller", hex.EncodeToString(addr[:])), &enabled)
	if err != nil || !ok {
		return false, err
	}
	return enabled, nil
}

// BalanceOf returns the balance held by addr.
func (t *Token) BalanceOf(addr [20]byte) (*big.Int, error) {
	value, err := t.loadAmount(t.key("balance", hex.EncodeToString(addr[:])))
	if err != nil {
		return nil, err
	}
	return value.ToBig(), nil
}

// TotalSupply returns the amount minted so far.
func (t *Token) TotalSupply() (*big.Int, error) {
	value, err := t.loadAmount(t.key("supply"))
	if err != nil {
		return nil, err
	}
	return value.ToBig(), nil
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return uint256.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrOverflow
	}
	return value, nil
}

// Mint credits amount to to. The caller must be a controller.
func (t *Token) Mint(caller, to [20]byte, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	controller, err := t.IsController(caller)
	if err != nil {
		return err
	}
	if !controller {
		return ErrNotController
	}
	supplyKey := t.key("supply")
	supply, err := t.loadAmount(supplyKey)
	if err != nil {
		return err
	}
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, value)
	if overflow {
		return ErrOverflow
	}
	balanceKey := t.key("balance", hex.EncodeToString(to[:]))
	balance, err := t.loadAmount(balanceKey)
	if err != nil {
		return err
	}
	newBalance, overflow := new(uint256.Int).AddOverflow(balance, value)
	if overflow {
		return ErrOverflow
	}
	if err := t.storeAmount(supplyKey, newSupply); err != nil {
		return err
	}
	if err := t.storeAmount(balanceKey, newBalance); err != nil {
		return err
	}
	t.emit(&types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"symbol":     t.symbol,
		"controller": crypto.FormatRaw(caller),
		"to":         crypto.FormatRaw(to),
		"amount":     value.Dec(),
	}})
	return nil
}

// Transfer moves amount from from to to.
func (t *Token) Transfer(from, to [20]byte, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	fromKey := t.key("balance", hex.EncodeToString(from[:]))
	fromBal, err := t.loadAmount(fromKey)
	if err != nil {
		return err
	}
	if fromBal.Lt(value) {
		return ErrInsufficientBalance
	}
	if err := t.storeAmount(fromKey, new(uint256.Int).Sub(fromBal, value)); err != nil {
		return err
	}
	toKey := t.key("balance", hex.EncodeToString(to[:]))
	toBal, err := t.loadAmount(toKey)
	if err != nil {
		return err
	}
	newTo, overflow := new(uint256.Int).AddOverflow(toBal, value)
	if overflow {
		return ErrOverflow
	}
	if err := t.storeAmount(toKey, newTo); err != nil {
		return err
	}
	t.emit(&types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"symbol": t.symbol,
		"from":   crypto.FormatRaw(from),
		"to":     crypto.FormatRaw(to),
		"amount": value.Dec(),
	}})
	return nil
}
