package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"nftstake/config"
	"nftstake/core/events"
	nstate "nftstake/core/state"
	"nftstake/core/types"
	"nftstake/native/nft"
	"nftstake/native/nftstake"
	"nftstake/native/params"
	"nftstake/native/rwd"
	"nftstake/observability"
	"nftstake/storage"
	"nftstake/storage/journal"
)

var (
	// ErrGenesisRequired is returned when a call arrives before genesis.
	ErrGenesisRequired = errors.New("node: genesis not applied")
	// ErrGenesisApplied is returned when genesis is applied twice.
	ErrGenesisApplied = errors.New("node: genesis already applied")
)

var metaKey = []byte("node/meta")

// nonceScope namespaces RPC replay protection nonces.
const nonceScope = "rpc"

type nodeMeta struct {
	Collection string
	Symbol     string
	Vault      [20]byte
	Minters    [][20]byte
}

type eventPayload interface {
	Event() *types.Event
}

// Options wires optional dependencies into the node.
type Options struct {
	Journal *journal.Journal
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Node is the central controller wiring the staking engine to its
// collaborators, the persistent store and the event sinks.
type Node struct {
	db         storage.Database
	manager    *nstate.Manager
	collection *nft.Collection
	token      *rwd.Token
	pauses     *params.Store
	engine     *nftstake.Engine
	vault      [20]byte

	buffer  *events.Buffer
	hub     *Hub
	journal *journal.Journal
	logger  *slog.Logger
	metrics *observability.StakingMetrics
	clock   func() time.Time

	stateMu sync.Mutex
}

// NewNode opens the node over db. Modules are rebuilt from persisted genesis
// metadata when present.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, errors.New("node: database required")
	}
	n := &Node{
		db:      db,
		manager: nstate.NewManager(db),
		buffer:  &events.Buffer{},
		hub:     NewHub(),
		journal: opts.Journal,
		logger:  opts.Logger,
		metrics: observability.Staking(),
		clock:   opts.Clock,
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	if n.clock == nil {
		n.clock = time.Now
	}
	n.pauses = params.NewStore(n.manager)

	var meta nodeMeta
	ok, err := n.manager.KVGet(metaKey, &meta)
	if err != nil {
		return nil, fmt.Errorf("node: load metadata: %w", err)
	}
	if ok {
		n.wire(meta)
	}
	return n, nil
}

func (n *Node) wire(meta nodeMeta) {
	n.vault = meta.Vault
	n.collection = nft.NewCollection(meta.Collection)
	n.collection.SetState(n.manager)
	n.collection.SetEmitter(n.buffer)
	for _, minter := range meta.Minters {
		n.collection.AllowMinter(minter)
	}
	n.token = rwd.NewToken(meta.Symbol)
	n.token.SetState(n.manager)
	n.token.SetEmitter(n.buffer)

	n.engine = nftstake.NewEngine(
		nft.NewCustody(n.collection, n.vault),
		rwd.NewPayer(n.token, n.vault),
		n.pauses,
		nftstake.AdminsFromRoles(n.manager),
	)
	n.engine.SetState(n.manager)
	n.engine.SetEmitter(n.buffer)
}

// Initialized reports whether genesis has been applied.
func (n *Node) Initialized() bool {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine != nil
}

// Vault returns the custody account.
func (n *Node) Vault() [20]byte { return n.vault }

// Hub exposes the committed event stream.
func (n *Node) Hub() *Hub { return n.hub }

func (n *Node) now() uint64 {
	ts := n.clock().Unix()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// ApplyGenesis initialises collection, reward token and engine state from g.
func (n *Node) ApplyGenesis(ctx context.Context, g *config.Genesis) error {
	if g == nil {
		return errors.New("node: genesis required")
	}
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.engine != nil {
		return ErrGenesisApplied
	}
	if err := g.Validate(); err != nil {
		return err
	}
	vault, err := g.VaultAddress()
	if err != nil {
		return err
	}
	owner, err := g.RewardOwner()
	if err != nil {
		return err
	}
	rate, err := g.Rate()
	if err != nil {
		return err
	}
	admins, err := g.AdminAddresses()
	if err != nil {
		return err
	}
	minters, err := g.MinterAddresses()
	if err != nil {
		return err
	}
	controllers, err := g.ControllerAddresses()
	if err != nil {
		return err
	}
	meta := nodeMeta{
		Collection: strings.TrimSpace(g.Collection),
		Symbol:     strings.TrimSpace(g.RewardToken.Symbol),
		Vault:      vault,
		Minters:    minters,
	}
	start := n.now()
	if g.GenesisTime > 0 {
		start = uint64(g.GenesisTime)
	}
	p := nftstake.Params{
		UnbondingDelay:   g.UnbondingDelay.WholeSeconds(),
		TimeUnit:         g.TimeUnitSeconds(),
		SettleOnWithdraw: g.Settle(),
	}

	n.wire(meta)
	snapshot := n.manager.Snapshot()
	apply := func() error {
		if err := n.manager.KVPut(metaKey, meta); err != nil {
			return err
		}
		for _, admin := range admins {
			if err := n.manager.SetRole(nftstake.RoleAdmin, admin, true); err != nil {
				return err
			}
		}
		if err := n.token.SetOwner([20]byte{}, owner); err != nil {
			return err
		}
		for _, controller := range append([][20]byte{vault}, controllers...) {
			if err := n.token.SetController(owner, controller, true); err != nil {
				return err
			}
		}
		for _, mint := range g.Mints {
			to, err := decodeAccount(mint.Owner)
			if err != nil {
				return err
			}
			if err := n.collection.Mint([20]byte{}, to, mint.TokenID, mint.URI); err != nil {
				return err
			}
		}
		return n.engine.Initialize(p, rate, start)
	}
	if err := apply(); err != nil {
		n.manager.RevertToSnapshot(snapshot)
		n.buffer.Reset()
		n.engine = nil
		return fmt.Errorf("node: apply genesis: %w", err)
	}
	if err := n.manager.Commit(); err != nil {
		n.manager.RevertToSnapshot(snapshot)
		n.buffer.Reset()
		n.engine = nil
		return err
	}
	n.metrics.SetRate(rate)
	n.metrics.SetCustody(0)
	n.publish(ctx, n.buffer.Drain())
	n.logger.Info("genesis applied",
		slog.String("vault", formatAddr(vault)),
		slog.Int("admins", len(admins)),
		slog.Int("mints", len(g.Mints)),
		slog.Uint64("genesisTime", start))
	return nil
}

// mutate runs fn under the state lock inside a snapshot. The snapshot
// commits when fn succeeds and reverts otherwise, so a batch never applies
// partially. A non-zero nonce is consumed in the same snapshot.
func (n *Node) mutate(ctx context.Context, operation string, caller [20]byte, nonce uint64, tokens int, fn func(now uint64) error) error {
	ctx, span := otel.Tracer("nftstake").Start(ctx, "node."+operation)
	defer span.End()
	span.SetAttributes(attribute.String("caller", formatAddr(caller)), attribute.Int("tokens", tokens))

	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.engine == nil {
		return ErrGenesisRequired
	}
	now := n.now()
	snapshot := n.manager.Snapshot()
	n.buffer.Reset()

	err := func() error {
		if nonce > 0 {
			if err := n.manager.ConsumeNonce(nonceScope, caller, nonce); err != nil {
				return err
			}
		}
		return fn(now)
	}()
	if err == nil {
		err = n.manager.Commit()
	}
	if err != nil {
		n.manager.RevertToSnapshot(snapshot)
		n.buffer.Reset()
		n.metrics.RecordOperation(operation, tokens, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Warn("mutation rejected",
			slog.String("operation", operation),
			slog.String("caller", formatAddr(caller)),
			slog.String("error", err.Error()))
		return err
	}
	n.metrics.RecordOperation(operation, tokens, nil)
	n.publish(ctx, n.buffer.Drain())
	n.logger.Info("mutation committed",
		slog.String("operation", operation),
		slog.String("caller", formatAddr(caller)),
		slog.Int("tokens", tokens),
		slog.Uint64("timestamp", now))
	return nil
}

func (n *Node) publish(ctx context.Context, drained []events.Event) {
	if len(drained) == 0 {
		return
	}
	payloads := make([]*types.Event, 0, len(drained))
	for _, evt := range drained {
		payload, ok := evt.(eventPayload)
		if !ok || payload.Event() == nil {
			continue
		}
		payloads = append(payloads, payload.Event())
	}
	if n.journal != nil {
		if _, err := n.journal.Append(ctx, payloads); err != nil {
			n.logger.Error("journal append failed", slog.String("error", err.Error()))
		}
	}
	for _, payload := range payloads {
		observability.Events().RecordEvent(payload.Type)
		n.hub.Publish(payload)
	}
}

func (n *Node) query(fn func(now uint64) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.engine == nil {
		return ErrGenesisRequired
	}
	return fn(n.now())
}

// Stake deposits ids on behalf of caller.
func (n *Node) Stake(ctx context.Context, caller [20]byte, nonce uint64, ids []uint64) error {
	err := n.mutate(ctx, "stake", caller, nonce, len(ids), func(now uint64) error {
		return n.engine.Stake(caller, ids, now)
	})
	if err == nil {
		n.metrics.AddCustody(len(ids))
	}
	return err
}

// Unstake starts unbonding for ids.
func (n *Node) Unstake(ctx context.Context, caller [20]byte, nonce uint64, ids []uint64) error {
	return n.mutate(ctx, "unstake", caller, nonce, len(ids), func(now uint64) error {
		return n.engine.Unstake(caller, ids, now)
	})
}

// Claim pays accrued rewards for ids and returns the amount paid.
func (n *Node) Claim(ctx context.Context, caller [20]byte, nonce uint64, ids []uint64) (*big.Int, error) {
	var paid *big.Int
	err := n.mutate(ctx, "claim", caller, nonce, len(ids), func(now uint64) error {
		amount, err := n.engine.Claim(caller, ids, now)
		paid = amount
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.RecordPayout(paid)
	return paid, nil
}

// Withdraw returns unbonded ids to caller and returns the settled amount.
func (n *Node) Withdraw(ctx context.Context, caller [20]byte, nonce uint64, ids []uint64) (*big.Int, error) {
	var paid *big.Int
	err := n.mutate(ctx, "withdraw", caller, nonce, len(ids), func(now uint64) error {
		amount, err := n.engine.Withdraw(caller, ids, now)
		paid = amount
		return err
	})
	if err != nil {
		return nil, err
	}
	n.metrics.AddCustody(-len(ids))
	n.metrics.RecordPayout(paid)
	return paid, nil
}

// UpdateRate appends a new reward rate effective immediately.
func (n *Node) UpdateRate(ctx context.Context, caller [20]byte, nonce uint64, rate *big.Int) error {
	err := n.mutate(ctx, "updateRate", caller, nonce, 0, func(now uint64) error {
		return n.engine.UpdateRate(caller, rate, now)
	})
	if err == nil {
		n.metrics.SetRate(rate)
	}
	return err
}

// Pause blocks new deposits.
func (n *Node) Pause(ctx context.Context, caller [20]byte, nonce uint64) error {
	return n.mutate(ctx, "pause", caller, nonce, 0, func(uint64) error {
		return n.engine.Pause(caller)
	})
}

// Unpause re-enables deposits.
func (n *Node) Unpause(ctx context.Context, caller [20]byte, nonce uint64) error {
	return n.mutate(ctx, "unpause", caller, nonce, 0, func(uint64) error {
		return n.engine.Unpause(caller)
	})
}

// Approve lets spender move token id on behalf of caller.
func (n *Node) Approve(ctx context.Context, caller [20]byte, nonce uint64, spender [20]byte, id uint64) error {
	return n.mutate(ctx, "approve", caller, nonce, 1, func(uint64) error {
		return n.collection.Approve(caller, spender, id)
	})
}

// SetApprovalForAll toggles operator rights over every token of caller.
func (n *Node) SetApprovalForAll(ctx context.Context, caller [20]byte, nonce uint64, operator [20]byte, approved bool) error {
	return n.mutate(ctx, "setApprovalForAll", caller, nonce, 0, func(uint64) error {
		return n.collection.SetApprovalForAll(caller, operator, approved)
	})
}

// Mint creates a collection token. Only genesis minters may call it.
func (n *Node) Mint(ctx context.Context, caller [20]byte, nonce uint64, to [20]byte, id uint64, uri string) error {
	var zero [20]byte
	if caller == zero {
		return nft.ErrUnauthorized
	}
	return n.mutate(ctx, "mint", caller, nonce, 1, func(uint64) error {
		return n.collection.Mint(caller, to, id, uri)
	})
}

// EarningInfo sums the rewards owed across ids at the current time.
func (n *Node) EarningInfo(ids []uint64) (*big.Int, error) {
	var out *big.Int
	err := n.query(func(now uint64) error {
		amount, err := n.engine.EarningInfo(ids, now)
		out = amount
		return err
	})
	return out, err
}

// DepositInfo returns the position of id.
func (n *Node) DepositInfo(id uint64) (*nftstake.DepositInfo, error) {
	var out *nftstake.DepositInfo
	err := n.query(func(now uint64) error {
		info, err := n.engine.DepositInfo(id, now)
		out = info
		return err
	})
	return out, err
}

// Rates returns the rate history.
func (n *Node) Rates() ([]nftstake.RateCheckpoint, error) {
	var out []nftstake.RateCheckpoint
	err := n.query(func(uint64) error {
		rates, err := n.engine.Rates()
		out = rates
		return err
	})
	return out, err
}

// StakingParams returns the engine parameters and the pause flag.
func (n *Node) StakingParams() (nftstake.Params, bool, error) {
	var (
		out    nftstake.Params
		paused bool
	)
	err := n.query(func(uint64) error {
		p, err := n.engine.Params()
		out = p
		paused = n.engine.Paused()
		return err
	})
	return out, paused, err
}

// OwnerOf returns the holder of collection token id.
func (n *Node) OwnerOf(id uint64) ([20]byte, error) {
	var out [20]byte
	err := n.query(func(uint64) error {
		owner, err := n.collection.OwnerOf(id)
		out = owner
		return err
	})
	return out, err
}

// BalanceOf returns the reward balance of addr.
func (n *Node) BalanceOf(addr [20]byte) (*big.Int, error) {
	var out *big.Int
	err := n.query(func(uint64) error {
		bal, err := n.token.BalanceOf(addr)
		out = bal
		return err
	})
	return out, err
}

// Nonce returns the last RPC nonce consumed by addr.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.manager.Nonce(nonceScope, addr)
}

// History returns journaled events matching filter.
func (n *Node) History(ctx context.Context, filter journal.Filter) ([]journal.Entry, error) {
	if n.journal == nil {
		return nil, errors.New("node: event journal disabled")
	}
	return n.journal.Query(ctx, filter)
}

// Close releases the journal and the database.
func (n *Node) Close() error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	var err error
	if n.journal != nil {
		err = n.journal.Close()
	}
	n.db.Close()
	return err
}
