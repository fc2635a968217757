package nft

import (
	"strconv"

	"nftstake/core/events"
	"nftstake/core/types"
	"nftstake/crypto"
)

const (
	// EventTypeTransfer is emitted on mint and every ownership change.
	EventTypeTransfer = "nft.transfer"
	// EventTypeApproval is emitted when a single-token approval changes.
	EventTypeApproval = "nft.approval"
	// EventTypeApprovalForAll is emitted when an operator is toggled.
	EventTypeApprovalForAll = "nft.approvalForAll"
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

func addr(a [20]byte) string { return crypto.AddressFromRaw(a).String() }

// TransferEvent describes an ownership change. A zero from address marks a mint.
func TransferEvent(collection string, from, to [20]byte, id uint64) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"collection": collection,
			"from":       addr(from),
			"to":         addr(to),
			"tokenId":    strconv.FormatUint(id, 10),
		},
	}
}

// ApprovalEvent describes a single-token approval grant.
func ApprovalEvent(collection string, owner, spender [20]byte, id uint64) *types.Event {
	return &types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"collection": collection,
			"owner":      addr(owner),
			"spender":    addr(spender),
			"tokenId":    strconv.FormatUint(id, 10),
		},
	}
}

// ApprovalForAllEvent describes an operator toggle.
func ApprovalForAllEvent(collection string, owner, operator [20]byte, approved bool) *types.Event {
	return &types.Event{
		Type: EventTypeApprovalForAll,
		Attributes: map[string]string{
			"collection": collection,
			"owner":      addr(owner),
			"operator":   addr(operator),
			"approved":   strconv.FormatBool(approved),
		},
	}
}
