package nft

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"nftstake/core/events"
	"nftstake/core/types"
)

type collectionState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Collection is a minimal ERC-721 style registry of token ownership and
// transfer approvals.
type Collection struct {
	name    string
	state   collectionState
	emitter events.Emitter
	minters map[[20]byte]bool
}

// NewCollection constructs a collection namespaced under name.
func NewCollection(name string) *Collection {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		trimmed = "default"
	}
	return &Collection{name: trimmed, emitter: events.NoopEmitter{}, minters: make(map[[20]byte]bool)}
}

// Name returns the namespace of the collection.
func (c *Collection) Name() string { return c.name }

// SetState configures the state backend used by the collection.
func (c *Collection) SetState(state collectionState) { c.state = state }

// SetEmitter configures the event emitter used by the collection.
func (c *Collection) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// AllowMinter grants addr the right to mint new tokens. Genesis minting
// bypasses the check by passing a zero caller to Mint.
func (c *Collection) AllowMinter(addr [20]byte) { c.minters[addr] = true }

func (c *Collection) emit(evt *types.Event) {
	if c.emitter != nil && evt != nil {
		c.emitter.Emit(WrapEvent(evt))
	}
}

func (c *Collection) tokenKey(id uint64) []byte {
	return []byte("nft/" + c.name + "/token/" + strconv.FormatUint(id, 10))
}

func (c *Collection) balanceKey(owner [20]byte) []byte {
	return []byte("nft/" + c.name + "/balance/" + hex.EncodeToString(owner[:]))
}

func (c *Collection) operatorKey(owner, operator [20]byte) []byte {
	return []byte("nft/" + c.name + "/operator/" + hex.EncodeToString(owner[:]) + "/" + hex.EncodeToString(operator[:]))
}

// Token loads the persisted token record.
func (c *Collection) Token(id uint64) (*Token, bool, error) {
	if c.state == nil {
		return nil, false, errNilState
	}
	var token Token
	ok, err := c.state.KVGet(c.tokenKey(id), &token)
	if err != nil || !ok {
		return nil, false, err
	}
	return &token, true, nil
}

// OwnerOf returns the current owner of id.
func (c *Collection) OwnerOf(id uint64) ([20]byte, error) {
	token, ok, err := c.Token(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	return token.Owner, nil
}

// BalanceOf returns the number of tokens held by owner.
func (c *Collection) BalanceOf(owner [20]byte) (uint64, error) {
	if c.state == nil {
		return 0, errNilState
	}
	var count uint64
	if _, err := c.state.KVGet(c.balanceKey(owner), &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (c *Collection) adjustBalance(owner [20]byte, delta int) error {
	count, err := c.BalanceOf(owner)
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		count += uint64(delta)
	case uint64(-delta) > count:
		return fmt.Errorf("nft collection: balance underflow")
	default:
		count -= uint64(-delta)
	}
	if count == 0 {
		return c.state.KVDelete(c.balanceKey(owner))
	}
	return c.state.KVPut(c.balanceKey(owner), count)
}

// Mint creates id owned by to. A zero caller denotes genesis allocation.
func (c *Collection) Mint(caller, to [20]byte, id uint64, uri string) error {
	if c.state == nil {
		return errNilState
	}
	if !isZero(caller) && !c.minters[caller] {
		return ErrUnauthorized
	}
	if isZero(to) {
		return ErrZeroAddress
	}
	if _, ok, err := c.Token(id); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %d", ErrTokenExists, id)
	}
	token := &Token{ID: id, Owner: to, URI: strings.TrimSpace(uri)}
	if err := c.state.KVPut(c.tokenKey(id), token); err != nil {
		return err
	}
	if err := c.adjustBalance(to, 1); err != nil {
		return err
	}
	c.emit(TransferEvent(c.name, [20]byte{}, to, id))
	return nil
}

// Approve authorises spender to move id once. Only the owner or one of the
// owner's operators may approve.
func (c *Collection) Approve(caller, spender [20]byte, id uint64) error {
	token, ok, err := c.Token(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	if token.Owner != caller {
		operator, err := c.IsApprovedForAll(token.Owner, caller)
		if err != nil {
			return err
		}
		if !operator {
			return ErrNotApproved
		}
	}
	token.Approved = spender
	if err := c.state.KVPut(c.tokenKey(id), token); err != nil {
		return err
	}
	c.emit(ApprovalEvent(c.name, token.Owner, spender, id))
	return nil
}

// GetApproved returns the single-token approval for id.
func (c *Collection) GetApproved(id uint64) ([20]byte, error) {
	token, ok, err := c.Token(id)
	if err != nil {
		return [20]byte{}, err
	}
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	return token.Approved, nil
}

// SetApprovalForAll toggles operator's right to move every token of owner.
func (c *Collection) SetApprovalForAll(owner, operator [20]byte, approved bool) error {
	if c.state == nil {
		return errNilState
	}
	if owner == operator {
		return fmt.Errorf("nft collection: approve to caller")
	}
	var err error
	if approved {
		err = c.state.KVPut(c.operatorKey(owner, operator), true)
	} else {
		err = c.state.KVDelete(c.operatorKey(owner, operator))
	}
	if err != nil {
		return err
	}
	c.emit(ApprovalForAllEvent(c.name, owner, operator, approved))
	return nil
}

// IsApprovedForAll reports whether operator may move every token of owner.
func (c *Collection) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	if c.state == nil {
		return false, errNilState
	}
	var approved bool
	ok, err := c.state.KVGet(c.operatorKey(owner, operator), &approved)
	if err != nil || !ok {
		return false, err
	}
	return approved, nil
}

// TransferFrom moves id from from to to on behalf of spender. The spender must
// be the owner, the approved address for id, or an operator of the owner.
func (c *Collection) TransferFrom(spender, from, to [20]byte, id uint64) error {
	token, ok, err := c.Token(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %d", ErrTokenNotFound, id)
	}
	if token.Owner != from {
		return ErrNotOwner
	}
	if isZero(to) {
		return ErrZeroAddress
	}
	if spender != from && token.Approved != spender {
		operator, err := c.IsApprovedForAll(from, spender)
		if err != nil {
			return err
		}
		if !operator {
			return ErrNotApproved
		}
	}
	token.Owner = to
	token.Approved = [20]byte{}
	if err := c.state.KVPut(c.tokenKey(id), token); err != nil {
		return err
	}
	if err := c.adjustBalance(from, -1); err != nil {
		return err
	}
	if err := c.adjustBalance(to, 1); err != nil {
		return err
	}
	c.emit(TransferEvent(c.name, from, to, id))
	return nil
}
