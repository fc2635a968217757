package nftstake

import (
	"fmt"
	"math/big"
)

// ModuleName identifies the staking module for pause toggles and events.
const ModuleName = "nftstake"

// State is the custody lifecycle stage of a single token.
type State uint8

const (
	StateEmpty State = iota
	StateDeposited
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateDeposited:
		return "deposited"
	case StateExiting:
		return "exiting"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// DepositRecord tracks custody and accrual bookkeeping for one token.
type DepositRecord struct {
	TokenID         uint64
	Depositor       [20]byte
	State           State
	AccrualStart    uint64
	ExitRequestedAt uint64
	// Dust is the integral remainder below one time unit carried between
	// settlements.
	Dust *big.Int
}

func (r *DepositRecord) clone() *DepositRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Dust != nil {
		c.Dust = new(big.Int).Set(r.Dust)
	}
	return &c
}

// lastTouched is the latest timestamp the record has observed.
func (r *DepositRecord) lastTouched() uint64 {
	if r.State == StateExiting {
		return r.ExitRequestedAt
	}
	return r.AccrualStart
}

// RateCheckpoint fixes the per-unit reward rate from EffectiveAt onwards.
type RateCheckpoint struct {
	EffectiveAt uint64
	Rate        *big.Int
}

// Params configures the staking engine.
type Params struct {
	// UnbondingDelay is the number of seconds between an exit request and the
	// earliest withdrawal.
	UnbondingDelay uint64
	// TimeUnit is the number of seconds the rate is quoted per. One means the
	// rate is paid per second.
	TimeUnit uint64
	// SettleOnWithdraw pays the frozen balance during withdrawal. When false
	// the balance is forfeited.
	SettleOnWithdraw bool
}

// DefaultParams returns per-second accrual with settlement on withdrawal.
func DefaultParams() Params {
	return Params{TimeUnit: 1, SettleOnWithdraw: true}
}

// Validate ensures the parameters are usable.
func (p Params) Validate() error {
	if p.TimeUnit == 0 {
		return fmt.Errorf("%w: time unit must be positive", ErrInvalidParams)
	}
	return nil
}

// DepositInfo is the query view of a token position.
type DepositInfo struct {
	TokenID         uint64
	Depositor       [20]byte
	State           State
	AccrualStart    uint64
	ExitRequestedAt uint64
	WithdrawableAt  uint64
	Earned          *big.Int
}
