package rpc

import (
	"errors"
	"net/http"

	"nftstake/core"
	"nftstake/core/state"
	"nftstake/native/nft"
	"nftstake/native/nftstake"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeModulePaused       = -32040
	codeNotOwner           = -32041
	codeInvalidState       = -32042
	codeUnbondingPending   = -32043
	codeCustodyFailed      = -32044
	codePayoutFailed       = -32045
	codeTimeOrder          = -32046
	codeNotInitialized     = -32047
	codeStaleNonce         = -32048
	codeTokenNotFound      = -32049
	stakingPausedMessage   = "staking module paused"
	signatureMismatchError = "signature does not match caller"
)

type errorMapping struct {
	target  error
	status  int
	code    int
	message string
}

// Order matters: custody failures wrap the underlying collection error.
var errorMappings = []errorMapping{
	{nftstake.ErrSystemPaused, http.StatusServiceUnavailable, codeModulePaused, stakingPausedMessage},
	{nftstake.ErrUnauthorized, http.StatusForbidden, codeUnauthorized, "caller is not an administrator"},
	{nftstake.ErrNotDepositor, http.StatusForbidden, codeNotOwner, "caller is not the depositor"},
	{nftstake.ErrAlreadyDeposited, http.StatusConflict, codeInvalidState, "token already deposited"},
	{nftstake.ErrInvalidState, http.StatusConflict, codeInvalidState, "token is not in the required state"},
	{nftstake.ErrUnbondingNotElapsed, http.StatusConflict, codeUnbondingPending, "unbonding delay has not elapsed"},
	{nftstake.ErrCustodyTransferFailed, http.StatusBadRequest, codeCustodyFailed, "custody transfer failed"},
	{nftstake.ErrPayoutFailed, http.StatusInternalServerError, codePayoutFailed, "reward payout failed"},
	{nftstake.ErrNonMonotonicTime, http.StatusConflict, codeTimeOrder, "timestamp precedes recorded state"},
	{nftstake.ErrBeforeFirstCheckpoint, http.StatusConflict, codeTimeOrder, "timestamp precedes first rate checkpoint"},
	{nftstake.ErrNotInitialized, http.StatusServiceUnavailable, codeNotInitialized, "staking engine not initialised"},
	{core.ErrGenesisRequired, http.StatusServiceUnavailable, codeNotInitialized, "genesis not applied"},
	{state.ErrStaleNonce, http.StatusConflict, codeStaleNonce, "nonce already used"},
	{nftstake.ErrEmptyBatch, http.StatusBadRequest, codeInvalidParams, "tokenIds must not be empty"},
	{nftstake.ErrDuplicateToken, http.StatusBadRequest, codeInvalidParams, "tokenIds must be unique"},
	{nftstake.ErrNegativeRate, http.StatusBadRequest, codeInvalidParams, "rate must not be negative"},
	{nftstake.ErrInvalidParams, http.StatusBadRequest, codeInvalidParams, "invalid staking parameters"},
	{nft.ErrTokenNotFound, http.StatusNotFound, codeTokenNotFound, "token not found"},
	{nft.ErrTokenExists, http.StatusConflict, codeInvalidState, "token already exists"},
	{nft.ErrNotOwner, http.StatusForbidden, codeNotOwner, "caller does not own the token"},
	{nft.ErrNotApproved, http.StatusForbidden, codeNotOwner, "caller is not approved for the token"},
	{nft.ErrZeroAddress, http.StatusBadRequest, codeInvalidParams, "zero address not allowed"},
	{nft.ErrUnauthorized, http.StatusForbidden, codeUnauthorized, "caller may not mint"},
}

// classify converts a node error into an HTTP status and JSON-RPC error.
func classify(err error) (int, *RPCError) {
	for _, mapping := range errorMappings {
		if errors.Is(err, mapping.target) {
			return mapping.status, &RPCError{Code: mapping.code, Message: mapping.message, Data: err.Error()}
		}
	}
	return http.StatusInternalServerError, &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error()}
}
