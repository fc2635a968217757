package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const jsonRPCVersion = "2.0"

// RPCRequest is a single JSON-RPC 2.0 call.
type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

// RPCResponse carries either a result or an error.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Mutating actions. Each is signed as "<method>|<caller>|<payload>|<nonce>".
const (
	MethodStake             = "nftstake_stake"
	MethodUnstake           = "nftstake_unstake"
	MethodClaim             = "nftstake_claim"
	MethodWithdraw          = "nftstake_withdraw"
	MethodUpdateRate        = "nftstake_updateRate"
	MethodPause             = "nftstake_pause"
	MethodUnpause           = "nftstake_unpause"
	MethodApprove           = "nft_approve"
	MethodSetApprovalForAll = "nft_setApprovalForAll"
	MethodMint              = "nft_mint"
)

// Read-only queries.
const (
	MethodEarningInfo = "nftstake_earningInfo"
	MethodGetDeposit  = "nftstake_getDeposit"
	MethodRateHistory = "nftstake_rateHistory"
	MethodParams      = "nftstake_params"
	MethodHistory     = "nftstake_history"
	MethodNonce       = "nftstake_nonce"
	MethodOwnerOf     = "nft_ownerOf"
	MethodBalanceOf   = "rwd_balanceOf"
)

// MutationRequest is the parameter object of every signed method. Fields not
// used by a method are left empty.
type MutationRequest struct {
	Caller    string   `json:"caller"`
	TokenIDs  []uint64 `json:"tokenIds,omitempty"`
	Rate      string   `json:"rate,omitempty"`
	Target    string   `json:"target,omitempty"`
	TokenID   uint64   `json:"tokenId,omitempty"`
	Approved  bool     `json:"approved,omitempty"`
	URI       string   `json:"uri,omitempty"`
	Nonce     uint64   `json:"nonce"`
	Signature string   `json:"signature"`
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(id, 10)
	}
	return strings.Join(parts, ",")
}

// Payload returns the method specific portion of the signed message.
func (m *MutationRequest) Payload(method string) string {
	switch method {
	case MethodStake, MethodUnstake, MethodClaim, MethodWithdraw:
		return joinIDs(m.TokenIDs)
	case MethodUpdateRate:
		return strings.TrimSpace(m.Rate)
	case MethodApprove:
		return strings.TrimSpace(m.Target) + ":" + strconv.FormatUint(m.TokenID, 10)
	case MethodSetApprovalForAll:
		return strings.TrimSpace(m.Target) + ":" + strconv.FormatBool(m.Approved)
	case MethodMint:
		return strings.TrimSpace(m.Target) + ":" + strconv.FormatUint(m.TokenID, 10) + ":" + m.URI
	default:
		return ""
	}
}

// SigningMessage is the exact byte string a caller signs for method.
func (m *MutationRequest) SigningMessage(method string) []byte {
	return []byte(fmt.Sprintf("%s|%s|%s|%d", method, strings.TrimSpace(m.Caller), m.Payload(method), m.Nonce))
}

// SignatureBytes decodes the hex signature.
func (m *MutationRequest) SignatureBytes() ([]byte, error) {
	return hexutil.Decode(strings.TrimSpace(m.Signature))
}

type tokenIDsParams struct {
	TokenIDs []uint64 `json:"tokenIds"`
}

type tokenIDParams struct {
	TokenID uint64 `json:"tokenId"`
}

type addressParams struct {
	Address string `json:"address"`
}

type historyParams struct {
	Account string `json:"account,omitempty"`
	Type    string `json:"type,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// BatchResult acknowledges a custody mutation.
type BatchResult struct {
	Caller   string   `json:"caller"`
	TokenIDs []uint64 `json:"tokenIds"`
}

// PayoutResult reports the reward amount paid by claim or withdraw.
type PayoutResult struct {
	Caller   string   `json:"caller"`
	TokenIDs []uint64 `json:"tokenIds"`
	Amount   string   `json:"amount"`
}

// AmountResult wraps a decimal amount.
type AmountResult struct {
	Amount string `json:"amount"`
}

// DepositResult describes a token position.
type DepositResult struct {
	TokenID         uint64 `json:"tokenId"`
	Depositor       string `json:"depositor,omitempty"`
	State           string `json:"state"`
	AccrualStart    uint64 `json:"accrualStart,omitempty"`
	ExitRequestedAt uint64 `json:"exitRequestedAt,omitempty"`
	WithdrawableAt  uint64 `json:"withdrawableAt,omitempty"`
	Earned          string `json:"earned"`
}

// RateResult is one rate checkpoint.
type RateResult struct {
	EffectiveAt uint64 `json:"effectiveAt"`
	Rate        string `json:"rate"`
}

// ParamsResult reports the staking configuration.
type ParamsResult struct {
	UnbondingDelay   uint64 `json:"unbondingDelay"`
	TimeUnit         uint64 `json:"timeUnit"`
	SettleOnWithdraw bool   `json:"settleOnWithdraw"`
	Paused           bool   `json:"paused"`
}

// HistoryEntry is one journaled event.
type HistoryEntry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Account    string            `json:"account,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  int64             `json:"createdAt"`
}

// NonceResult reports the last consumed nonce.
type NonceResult struct {
	Address string `json:"address"`
	Nonce   uint64 `json:"nonce"`
}

// OwnerResult reports the holder of a token.
type OwnerResult struct {
	TokenID uint64 `json:"tokenId"`
	Owner   string `json:"owner"`
}

// BalanceResult reports a reward balance.
type BalanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseRate(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("rate is required")
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid rate")
	}
	return value, nil
}
