package nft

import (
	"errors"
	"testing"

	"nftstake/core/events"
	"nftstake/core/state"
	"nftstake/storage"
)

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) { r.types = append(r.types, evt.EventType()) }

func newTestCollection(t *testing.T) (*Collection, *recordingEmitter) {
	t.Helper()
	collection := NewCollection("Punks")
	collection.SetState(state.NewManager(storage.NewMemDB()))
	rec := &recordingEmitter{}
	collection.SetEmitter(rec)
	return collection, rec
}

func TestMintAndOwnerOf(t *testing.T) {
	collection, rec := newTestCollection(t)
	alice := [20]byte{1}

	if err := collection.Mint([20]byte{}, alice, 1, "ipfs://one"); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := collection.Mint([20]byte{}, alice, 1, ""); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected duplicate mint error, got %v", err)
	}
	if err := collection.Mint([20]byte{9}, alice, 2, ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized minter, got %v", err)
	}
	collection.AllowMinter([20]byte{9})
	if err := collection.Mint([20]byte{9}, alice, 2, ""); err != nil {
		t.Fatalf("mint by minter: %v", err)
	}
	owner, err := collection.OwnerOf(1)
	if err != nil || owner != alice {
		t.Fatalf("unexpected owner %x err=%v", owner, err)
	}
	if _, err := collection.OwnerOf(3); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	balance, err := collection.BalanceOf(alice)
	if err != nil || balance != 2 {
		t.Fatalf("unexpected balance %d err=%v", balance, err)
	}
	if len(rec.types) != 2 || rec.types[0] != EventTypeTransfer {
		t.Fatalf("unexpected events %v", rec.types)
	}
}

func TestTransferRequiresApproval(t *testing.T) {
	collection, _ := newTestCollection(t)
	alice, bob, vault := [20]byte{1}, [20]byte{2}, [20]byte{0xaa}
	if err := collection.Mint([20]byte{}, alice, 5, ""); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := collection.TransferFrom(vault, alice, vault, 5); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected approval error, got %v", err)
	}
	if err := collection.Approve(bob, vault, 5); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("non-owner approve should fail, got %v", err)
	}
	if err := collection.Approve(alice, vault, 5); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := collection.TransferFrom(vault, bob, vault, 5); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if err := collection.TransferFrom(vault, alice, vault, 5); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	approved, err := collection.GetApproved(5)
	if err != nil || approved != ([20]byte{}) {
		t.Fatalf("approval must be cleared after transfer: %x err=%v", approved, err)
	}
	if count, _ := collection.BalanceOf(alice); count != 0 {
		t.Fatalf("expected alice balance 0, got %d", count)
	}
}

func TestOperatorApproval(t *testing.T) {
	collection, _ := newTestCollection(t)
	alice, vault := [20]byte{1}, [20]byte{0xaa}
	for _, id := range []uint64{1, 2} {
		if err := collection.Mint([20]byte{}, alice, id, ""); err != nil {
			t.Fatalf("mint %d: %v", id, err)
		}
	}
	if err := collection.SetApprovalForAll(alice, vault, true); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	custody := NewCustody(collection, vault)
	for _, id := range []uint64{1, 2} {
		if err := custody.TransferToVault(id, alice); err != nil {
			t.Fatalf("custody %d: %v", id, err)
		}
	}
	if owner, _ := custody.OwnerOf(2); owner != vault {
		t.Fatalf("vault should own token 2")
	}
	if err := custody.TransferToOwner(2, alice); err != nil {
		t.Fatalf("release: %v", err)
	}
	if owner, _ := custody.OwnerOf(2); owner != alice {
		t.Fatalf("alice should own token 2 again")
	}
	if err := collection.SetApprovalForAll(alice, alice, true); err == nil {
		t.Fatalf("expected self-approval to fail")
	}
}
