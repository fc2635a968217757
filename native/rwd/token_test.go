package rwd

import (
	"errors"
	"math/big"
	"testing"

	"nftstake/core/state"
	"nftstake/storage"
)

func newTestToken(t *testing.T) *Token {
	t.Helper()
	token := NewToken("rwd")
	token.SetState(state.NewManager(storage.NewMemDB()))
	return token
}

func TestControllerMint(t *testing.T) {
	token := newTestToken(t)
	owner, vault, alice := [20]byte{1}, [20]byte{0xaa}, [20]byte{2}

	if err := token.SetOwner([20]byte{}, owner); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := token.SetOwner(alice, alice); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner check, got %v", err)
	}
	payer := NewPayer(token, vault)
	if err := payer.Pay(alice, big.NewInt(10)); !errors.Is(err, ErrNotController) {
		t.Fatalf("expected controller check, got %v", err)
	}
	if err := token.SetController(alice, vault, true); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected owner-only controller change, got %v", err)
	}
	if err := token.SetController(owner, vault, true); err != nil {
		t.Fatalf("set controller: %v", err)
	}
	if err := payer.Pay(alice, big.NewInt(10)); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if err := payer.Pay(alice, big.NewInt(-1)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected negative amount rejection, got %v", err)
	}
	balance, err := token.BalanceOf(alice)
	if err != nil || balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected balance %v err=%v", balance, err)
	}
	supply, _ := token.TotalSupply()
	if supply.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected supply %v", supply)
	}
}

func TestMintOverflow(t *testing.T) {
	token := newTestToken(t)
	owner, vault := [20]byte{1}, [20]byte{0xaa}
	_ = token.SetOwner([20]byte{}, owner)
	_ = token.SetController(owner, vault, true)

	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := token.Mint(vault, owner, maxUint); err != nil {
		t.Fatalf("mint max: %v", err)
	}
	if err := token.Mint(vault, owner, big.NewInt(1)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	if err := token.Mint(vault, owner, tooBig); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow for 2^256, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	token := newTestToken(t)
	owner, alice, bob := [20]byte{1}, [20]byte{2}, [20]byte{3}
	_ = token.SetOwner([20]byte{}, owner)
	_ = token.SetController(owner, owner, true)
	if err := token.Mint(owner, alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := token.Transfer(alice, bob, big.NewInt(6)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := token.Transfer(alice, bob, big.NewInt(5)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if bal, _ := token.BalanceOf(bob); bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected bob balance %v", bal)
	}
	if bal, _ := token.BalanceOf(alice); bal.Sign() != 0 {
		t.Fatalf("unexpected alice balance %v", bal)
	}
}
