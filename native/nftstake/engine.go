package nftstake

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"nftstake/core/events"
	"nftstake/core/types"
	"nftstake/native/common"
)

var (
	rateCountKey = []byte("nftstake/rates/count")
	paramsKey    = []byte("nftstake/params")
)

func rateKey(idx uint64) []byte {
	return []byte("nftstake/rates/" + strconv.FormatUint(idx, 10))
}

type engineState interface {
	registryState
	Snapshot() int
	RevertToSnapshot(id int)
}

// Engine orchestrates NFT custody, reward accrual and payouts. Every batch
// mutation runs inside a state snapshot and is reverted as a whole when any
// element fails.
type Engine struct {
	state    engineState
	registry *VaultRegistry
	custody  CustodyAsset
	rewards  RewardAsset
	pauses   PauseFlag
	admins   AdminSet
	emitter  events.Emitter
	ledger   RateLedger
}

// NewEngine wires the staking engine to its external collaborators.
func NewEngine(custody CustodyAsset, rewards RewardAsset, pauses PauseFlag, admins AdminSet) *Engine {
	return &Engine{
		custody: custody,
		rewards: rewards,
		pauses:  pauses,
		admins:  admins,
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.registry = NewVaultRegistry(state, e.custody)
	e.ledger = RateLedger{}
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Registry exposes the vault registry for read-only queries.
func (e *Engine) Registry() *VaultRegistry { return e.registry }

func (e *Engine) emit(evt *types.Event) {
	if e.emitter != nil && evt != nil {
		e.emitter.Emit(WrapEvent(evt))
	}
}

// atomically runs fn inside a state snapshot. Events queued by fn are only
// emitted once fn succeeds.
func (e *Engine) atomically(fn func(emit func(*types.Event)) error) error {
	snapshot := e.state.Snapshot()
	var pending []*types.Event
	err := fn(func(evt *types.Event) { pending = append(pending, evt) })
	if err != nil {
		e.state.RevertToSnapshot(snapshot)
		return err
	}
	for _, evt := range pending {
		e.emit(evt)
	}
	return nil
}

func validateBatch(ids []uint64) error {
	if len(ids) == 0 {
		return ErrEmptyBatch
	}
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return tokenErr(id, ErrDuplicateToken)
		}
		seen[id] = struct{}{}
	}
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.admins == nil || !e.admins.IsAdmin(caller) {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.registry == nil {
		return ErrNilState
	}
	return nil
}

// loadLedger syncs the cached ledger with state. Checkpoints are append-only
// so the persisted count alone tells whether the cache has a stale tail from
// a reverted batch or is missing entries.
func (e *Engine) loadLedger() (*RateLedger, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var count uint64
	ok, err := e.state.KVGet(rateCountKey, &count)
	if err != nil {
		return nil, err
	}
	if !ok || count == 0 {
		return nil, ErrNotInitialized
	}
	e.ledger.truncate(int(count))
	for i := uint64(len(e.ledger.checkpoints)); i < count; i++ {
		var cp RateCheckpoint
		ok, err := e.state.KVGet(rateKey(i), &cp)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("nftstake engine: missing rate checkpoint %d", i)
		}
		if cp.Rate == nil {
			cp.Rate = big.NewInt(0)
		}
		e.ledger.checkpoints = append(e.ledger.checkpoints, cp)
	}
	return &e.ledger, nil
}

func (e *Engine) appendRate(rate *big.Int, now uint64) error {
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if err := ledger.AppendRate(rate, now); err != nil {
		return err
	}
	idx := uint64(ledger.Len() - 1)
	if err := e.state.KVPut(rateKey(idx), ledger.checkpoints[idx]); err != nil {
		return err
	}
	return e.state.KVPut(rateCountKey, idx+1)
}

// Initialized reports whether the rate ledger has been seeded.
func (e *Engine) Initialized() (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	var count uint64
	ok, err := e.state.KVGet(rateCountKey, &count)
	if err != nil {
		return false, err
	}
	return ok && count > 0, nil
}

// Initialize persists params and seeds the ledger with the initial rate
// effective from now. It may only run once.
func (e *Engine) Initialize(params Params, initialRate *big.Int, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if initialRate == nil || initialRate.Sign() < 0 {
		return ErrNegativeRate
	}
	initialized, err := e.Initialized()
	if err != nil {
		return err
	}
	if initialized {
		return ErrAlreadyInitialized
	}
	return e.atomically(func(emit func(*types.Event)) error {
		if err := e.state.KVPut(paramsKey, params); err != nil {
			return err
		}
		e.ledger = RateLedger{checkpoints: []RateCheckpoint{{EffectiveAt: now, Rate: new(big.Int).Set(initialRate)}}}
		if err := e.state.KVPut(rateKey(0), e.ledger.checkpoints[0]); err != nil {
			return err
		}
		if err := e.state.KVPut(rateCountKey, uint64(1)); err != nil {
			return err
		}
		emit(RateUpdatedEvent([20]byte{}, initialRate, now))
		return nil
	})
}

// Params returns the persisted engine parameters.
func (e *Engine) Params() (Params, error) {
	if err := e.ready(); err != nil {
		return Params{}, err
	}
	var params Params
	ok, err := e.state.KVGet(paramsKey, &params)
	if err != nil {
		return Params{}, err
	}
	if !ok {
		return DefaultParams(), nil
	}
	if params.TimeUnit == 0 {
		params.TimeUnit = 1
	}
	return params, nil
}

// Paused reports whether staking is currently paused.
func (e *Engine) Paused() bool {
	return common.Guard(e.pauses, ModuleName) != nil
}

// Stake deposits every token in ids on behalf of caller.
func (e *Engine) Stake(caller [20]byte, ids []uint64, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validateBatch(ids); err != nil {
		return err
	}
	if err := common.Guard(e.pauses, ModuleName); err != nil {
		return fmt.Errorf("%w: %w", ErrSystemPaused, err)
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return err
	}
	if _, err := ledger.RateAt(now); err != nil {
		return err
	}
	return e.atomically(func(emit func(*types.Event)) error {
		for _, id := range ids {
			record, err := e.registry.Deposit(id, caller, now)
			if err != nil {
				return err
			}
			emit(StakedEvent(id, record.Depositor, now))
		}
		return nil
	})
}

// Unstake freezes accrual on every token in ids and starts unbonding.
func (e *Engine) Unstake(caller [20]byte, ids []uint64, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := validateBatch(ids); err != nil {
		return err
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	return e.atomically(func(emit func(*types.Event)) error {
		for _, id := range ids {
			record, err := e.registry.RequestExit(id, caller, now)
			if err != nil {
				return err
			}
			emit(ExitRequestedEvent(id, record.Depositor, now, now+params.UnbondingDelay))
		}
		return nil
	})
}

// Claim settles accrued rewards for every token in ids and pays the total to
// caller in a single payout.
func (e *Engine) Claim(caller [20]byte, ids []uint64, now uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateBatch(ids); err != nil {
		return nil, err
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	err = e.atomically(func(emit func(*types.Event)) error {
		for _, id := range ids {
			record, err := e.registry.ownedRecord(id, caller, StateDeposited)
			if err != nil {
				return err
			}
			amount, dust, err := Earned(record, ledger, now, params.TimeUnit)
			if err != nil {
				return tokenErr(id, err)
			}
			if _, err := e.registry.RecordClaim(id, caller, now, dust); err != nil {
				return err
			}
			total.Add(total, amount)
		}
		if err := e.pay(caller, total); err != nil {
			return err
		}
		emit(ClaimedEvent(caller, ids, total, now))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

func (e *Engine) pay(to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if e.rewards == nil {
		return fmt.Errorf("%w: reward asset not configured", ErrPayoutFailed)
	}
	if err := e.rewards.Pay(to, new(big.Int).Set(amount)); err != nil {
		return fmt.Errorf("%w: %w", ErrPayoutFailed, err)
	}
	return nil
}

// Withdraw returns every token in ids to caller once unbonding has elapsed.
// The frozen balance is paid out or forfeited according to
// Params.SettleOnWithdraw. The returned amount is what was paid.
func (e *Engine) Withdraw(caller [20]byte, ids []uint64, now uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := validateBatch(ids); err != nil {
		return nil, err
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	frozen := new(big.Int)
	err = e.atomically(func(emit func(*types.Event)) error {
		for _, id := range ids {
			record, err := e.registry.FinalizeWithdrawal(id, caller, now, params.UnbondingDelay)
			if err != nil {
				return err
			}
			amount, _, err := Earned(record, ledger, now, params.TimeUnit)
			if err != nil {
				return tokenErr(id, err)
			}
			frozen.Add(frozen, amount)
			emit(WithdrawnEvent(id, record.Depositor, now))
		}
		if !params.SettleOnWithdraw {
			if frozen.Sign() > 0 {
				emit(RewardsForfeitedEvent(caller, ids, frozen, now))
			}
			return nil
		}
		if err := e.pay(caller, frozen); err != nil {
			return err
		}
		if frozen.Sign() > 0 {
			emit(ClaimedEvent(caller, ids, frozen, now))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !params.SettleOnWithdraw {
		return big.NewInt(0), nil
	}
	return frozen, nil
}

// EarningInfo sums the rewards currently owed across ids without mutating
// state. An empty set earns zero.
func (e *Engine) EarningInfo(ids []uint64, now uint64) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	total := new(big.Int)
	if len(ids) == 0 {
		return total, nil
	}
	if err := validateBatch(ids); err != nil {
		return nil, err
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		record, err := e.registry.Record(id)
		if err != nil {
			return nil, err
		}
		amount, _, err := Earned(record, ledger, now, params.TimeUnit)
		if err != nil {
			return nil, tokenErr(id, err)
		}
		total.Add(total, amount)
	}
	return total, nil
}

// DepositInfo returns the position of id together with its current earnings.
func (e *Engine) DepositInfo(id uint64, now uint64) (*DepositInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	record, err := e.registry.Record(id)
	if err != nil {
		return nil, err
	}
	info := &DepositInfo{
		TokenID:         id,
		Depositor:       record.Depositor,
		State:           record.State,
		AccrualStart:    record.AccrualStart,
		ExitRequestedAt: record.ExitRequestedAt,
		Earned:          big.NewInt(0),
	}
	if record.State == StateEmpty {
		return info, nil
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	if record.State == StateExiting {
		info.WithdrawableAt = record.ExitRequestedAt + params.UnbondingDelay
	}
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	amount, _, err := Earned(record, ledger, now, params.TimeUnit)
	if err != nil {
		return nil, tokenErr(id, err)
	}
	info.Earned = amount
	return info, nil
}

// Rates returns the full rate history.
func (e *Engine) Rates() ([]RateCheckpoint, error) {
	ledger, err := e.loadLedger()
	if err != nil {
		return nil, err
	}
	return ledger.Checkpoints(), nil
}

// UpdateRate appends a new rate effective from now. Administrator only.
func (e *Engine) UpdateRate(caller [20]byte, rate *big.Int, now uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() < 0 {
		return ErrNegativeRate
	}
	return e.atomically(func(emit func(*types.Event)) error {
		if err := e.appendRate(rate, now); err != nil {
			return err
		}
		emit(RateUpdatedEvent(caller, rate, now))
		return nil
	})
}

// Pause blocks new deposits. Administrator only.
func (e *Engine) Pause(caller [20]byte) error { return e.setPaused(caller, true) }

// Unpause re-enables deposits. Administrator only.
func (e *Engine) Unpause(caller [20]byte) error { return e.setPaused(caller, false) }

func (e *Engine) setPaused(caller [20]byte, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.pauses == nil {
		return errors.New("nftstake engine: pause flag not configured")
	}
	return e.atomically(func(emit func(*types.Event)) error {
		if err := e.pauses.SetPaused(ModuleName, paused); err != nil {
			return err
		}
		emit(PauseEvent(caller, paused))
		return nil
	})
}
