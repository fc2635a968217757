package nftstake

import (
	"fmt"
	"math/big"
	"strconv"
)

type registryState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

func depositKey(id uint64) []byte {
	return []byte("nftstake/deposit/" + strconv.FormatUint(id, 10))
}

// VaultRegistry owns the per-token deposit records and enforces the
// Empty -> Deposited -> Exiting -> Empty lifecycle.
type VaultRegistry struct {
	state   registryState
	custody CustodyAsset
}

// NewVaultRegistry binds the registry to its state backend and custody asset.
func NewVaultRegistry(state registryState, custody CustodyAsset) *VaultRegistry {
	return &VaultRegistry{state: state, custody: custody}
}

// Record returns the deposit record for id. Absent records are reported as
// StateEmpty.
func (r *VaultRegistry) Record(id uint64) (*DepositRecord, error) {
	if r == nil || r.state == nil {
		return nil, ErrNilState
	}
	var record DepositRecord
	ok, err := r.state.KVGet(depositKey(id), &record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &DepositRecord{TokenID: id, State: StateEmpty, Dust: big.NewInt(0)}, nil
	}
	if record.Dust == nil {
		record.Dust = big.NewInt(0)
	}
	return &record, nil
}

func (r *VaultRegistry) put(record *DepositRecord) error {
	return r.state.KVPut(depositKey(record.TokenID), record)
}

// Deposit takes custody of id from depositor and starts accrual at now.
func (r *VaultRegistry) Deposit(id uint64, depositor [20]byte, now uint64) (*DepositRecord, error) {
	record, err := r.Record(id)
	if err != nil {
		return nil, err
	}
	if record.State != StateEmpty {
		return nil, tokenErr(id, ErrAlreadyDeposited)
	}
	if r.custody == nil {
		return nil, tokenErr(id, ErrCustodyTransferFailed)
	}
	owner, err := r.custody.OwnerOf(id)
	if err != nil {
		return nil, fmt.Errorf("nftstake: token %d: %w: %w", id, ErrCustodyTransferFailed, err)
	}
	if owner != depositor {
		return nil, fmt.Errorf("nftstake: token %d: %w: not an owner", id, ErrCustodyTransferFailed)
	}
	if err := r.custody.TransferToVault(id, depositor); err != nil {
		return nil, fmt.Errorf("nftstake: token %d: %w: %w", id, ErrCustodyTransferFailed, err)
	}
	record = &DepositRecord{
		TokenID:      id,
		Depositor:    depositor,
		State:        StateDeposited,
		AccrualStart: now,
		Dust:         big.NewInt(0),
	}
	if err := r.put(record); err != nil {
		return nil, err
	}
	return record.clone(), nil
}

func (r *VaultRegistry) ownedRecord(id uint64, caller [20]byte, want State) (*DepositRecord, error) {
	record, err := r.Record(id)
	if err != nil {
		return nil, err
	}
	if record.State == StateEmpty {
		return nil, tokenErr(id, ErrInvalidState)
	}
	if record.Depositor != caller {
		return nil, tokenErr(id, ErrNotDepositor)
	}
	if record.State != want {
		return nil, tokenErr(id, ErrInvalidState)
	}
	return record, nil
}

// RequestExit freezes accrual on id and starts its unbonding clock.
func (r *VaultRegistry) RequestExit(id uint64, caller [20]byte, now uint64) (*DepositRecord, error) {
	record, err := r.ownedRecord(id, caller, StateDeposited)
	if err != nil {
		return nil, err
	}
	if now < record.AccrualStart {
		return nil, tokenErr(id, ErrNonMonotonicTime)
	}
	record.State = StateExiting
	record.ExitRequestedAt = now
	if err := r.put(record); err != nil {
		return nil, err
	}
	return record.clone(), nil
}

// FinalizeWithdrawal returns custody of id to its depositor once the unbonding
// delay has elapsed. The returned record is the final Exiting snapshot.
func (r *VaultRegistry) FinalizeWithdrawal(id uint64, caller [20]byte, now, delay uint64) (*DepositRecord, error) {
	record, err := r.ownedRecord(id, caller, StateExiting)
	if err != nil {
		return nil, err
	}
	if now < record.ExitRequestedAt {
		return nil, tokenErr(id, ErrNonMonotonicTime)
	}
	if now-record.ExitRequestedAt < delay {
		return nil, tokenErr(id, ErrUnbondingNotElapsed)
	}
	if r.custody == nil {
		return nil, tokenErr(id, ErrCustodyTransferFailed)
	}
	if err := r.custody.TransferToOwner(id, record.Depositor); err != nil {
		return nil, fmt.Errorf("nftstake: token %d: %w: %w", id, ErrCustodyTransferFailed, err)
	}
	if err := r.state.KVDelete(depositKey(id)); err != nil {
		return nil, err
	}
	return record, nil
}

// RecordClaim restarts accrual on id at now and returns the pre-claim record
// so the caller can settle the window [AccrualStart, now).
func (r *VaultRegistry) RecordClaim(id uint64, caller [20]byte, now uint64, dust *big.Int) (*DepositRecord, error) {
	record, err := r.ownedRecord(id, caller, StateDeposited)
	if err != nil {
		return nil, err
	}
	if now < record.AccrualStart {
		return nil, tokenErr(id, ErrNonMonotonicTime)
	}
	settled := record.clone()
	record.AccrualStart = now
	if dust == nil {
		dust = big.NewInt(0)
	}
	record.Dust = new(big.Int).Set(dust)
	if err := r.put(record); err != nil {
		return nil, err
	}
	return settled, nil
}
