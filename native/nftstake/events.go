package nftstake

import (
	"math/big"
	"strconv"
	"strings"

	"nftstake/core/events"
	"nftstake/core/types"
	"nftstake/crypto"
)

const (
	// EventTypeStaked is emitted when a token enters custody.
	EventTypeStaked = "nftstake.staked"
	// EventTypeExitRequested is emitted when accrual freezes and unbonding starts.
	EventTypeExitRequested = "nftstake.exitRequested"
	// EventTypeClaimed is emitted once per claim batch with the paid total.
	EventTypeClaimed = "nftstake.claimed"
	// EventTypeWithdrawn is emitted when a token leaves custody.
	EventTypeWithdrawn = "nftstake.withdrawn"
	// EventTypeRewardsForfeited is emitted when a withdrawal drops the frozen balance.
	EventTypeRewardsForfeited = "nftstake.rewards.forfeited"
	// EventTypeRateUpdated is emitted when a new rate checkpoint is appended.
	EventTypeRateUpdated = "nftstake.rateUpdated"
	// EventTypePaused is emitted when staking is paused.
	EventTypePaused = "nftstake.paused"
	// EventTypeUnpaused is emitted when staking resumes.
	EventTypeUnpaused = "nftstake.unpaused"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func formatIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func tokenEvent(eventType string, id uint64, account [20]byte, at uint64) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"tokenId":   strconv.FormatUint(id, 10),
			"account":   crypto.FormatRaw(account),
			"timestamp": strconv.FormatUint(at, 10),
		},
	}
}

// StakedEvent announces a deposit.
func StakedEvent(id uint64, depositor [20]byte, at uint64) *types.Event {
	return tokenEvent(EventTypeStaked, id, depositor, at)
}

// ExitRequestedEvent announces the start of unbonding.
func ExitRequestedEvent(id uint64, depositor [20]byte, at, withdrawableAt uint64) *types.Event {
	evt := tokenEvent(EventTypeExitRequested, id, depositor, at)
	evt.Attributes["withdrawableAt"] = strconv.FormatUint(withdrawableAt, 10)
	return evt
}

// WithdrawnEvent announces a completed withdrawal.
func WithdrawnEvent(id uint64, depositor [20]byte, at uint64) *types.Event {
	return tokenEvent(EventTypeWithdrawn, id, depositor, at)
}

// ClaimedEvent summarises a claim batch.
func ClaimedEvent(account [20]byte, ids []uint64, amount *big.Int, at uint64) *types.Event {
	return &types.Event{
		Type: EventTypeClaimed,
		Attributes: map[string]string{
			"account":   crypto.FormatRaw(account),
			"tokenIds":  formatIDs(ids),
			"amount":    formatAmount(amount),
			"timestamp": strconv.FormatUint(at, 10),
		},
	}
}

// RewardsForfeitedEvent records a frozen balance dropped on withdrawal.
func RewardsForfeitedEvent(account [20]byte, ids []uint64, amount *big.Int, at uint64) *types.Event {
	evt := ClaimedEvent(account, ids, amount, at)
	evt.Type = EventTypeRewardsForfeited
	return evt
}

// RateUpdatedEvent announces a new rate checkpoint.
func RateUpdatedEvent(admin [20]byte, rate *big.Int, at uint64) *types.Event {
	return &types.Event{
		Type: EventTypeRateUpdated,
		Attributes: map[string]string{
			"admin":       crypto.FormatRaw(admin),
			"rate":        formatAmount(rate),
			"effectiveAt": strconv.FormatUint(at, 10),
		},
	}
}

// PauseEvent announces a pause toggle.
func PauseEvent(admin [20]byte, paused bool) *types.Event {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return &types.Event{
		Type:       eventType,
		Attributes: map[string]string{"admin": crypto.FormatRaw(admin), "module": ModuleName},
	}
}
