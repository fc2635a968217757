package rpc

import (
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"nftstake/crypto"
	"nftstake/native/nftstake"
	"nftstake/observability/logging"
	"nftstake/storage/journal"
)

func (s *Server) handleMutation(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params MutationRequest
	if err := decodeSingleParam(req, &params); err != nil {
		s.invalidParams(w, req, err.Error(), nil)
		return
	}
	if params.Nonce == 0 {
		s.invalidParams(w, req, "nonce must be positive", nil)
		return
	}
	caller, err := verifySignature(req.Method, &params)
	if err != nil {
		s.logger.Warn("signature rejected",
			slog.String("method", req.Method),
			slog.String("caller", params.Caller),
			logging.MaskField("signature", params.Signature),
			slog.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "invalid signature", err.Error())
		if rec, ok := w.(*statusRecorder); ok {
			rec.code = codeUnauthorized
		}
		return
	}

	ctx := r.Context()
	batch := BatchResult{Caller: params.Caller, TokenIDs: params.TokenIDs}
	switch req.Method {
	case MethodStake:
		err = s.node.Stake(ctx, caller, params.Nonce, params.TokenIDs)
	case MethodUnstake:
		err = s.node.Unstake(ctx, caller, params.Nonce, params.TokenIDs)
	case MethodClaim, MethodWithdraw:
		var paid *big.Int
		if req.Method == MethodClaim {
			paid, err = s.node.Claim(ctx, caller, params.Nonce, params.TokenIDs)
		} else {
			paid, err = s.node.Withdraw(ctx, caller, params.Nonce, params.TokenIDs)
		}
		if err != nil {
			s.fail(w, req, err)
			return
		}
		writeResult(w, req.ID, PayoutResult{Caller: params.Caller, TokenIDs: params.TokenIDs, Amount: amountString(paid)})
		return
	case MethodUpdateRate:
		rate, parseErr := parseRate(params.Rate)
		if parseErr != nil {
			s.invalidParams(w, req, parseErr.Error(), nil)
			return
		}
		err = s.node.UpdateRate(ctx, caller, params.Nonce, rate)
	case MethodPause:
		err = s.node.Pause(ctx, caller, params.Nonce)
	case MethodUnpause:
		err = s.node.Unpause(ctx, caller, params.Nonce)
	case MethodApprove, MethodSetApprovalForAll, MethodMint:
		target, decodeErr := crypto.DecodeRaw(strings.TrimSpace(params.Target))
		if decodeErr != nil {
			s.invalidParams(w, req, "invalid target address", decodeErr.Error())
			return
		}
		switch req.Method {
		case MethodApprove:
			err = s.node.Approve(ctx, caller, params.Nonce, target, params.TokenID)
		case MethodSetApprovalForAll:
			err = s.node.SetApprovalForAll(ctx, caller, params.Nonce, target, params.Approved)
		default:
			err = s.node.Mint(ctx, caller, params.Nonce, target, params.TokenID, params.URI)
		}
	}
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, batch)
}

func (s *Server) handleEarningInfo(w http.ResponseWriter, req *RPCRequest) {
	var params tokenIDsParams
	if err := decodeSingleParam(req, &params); err != nil {
		s.invalidParams(w, req, err.Error(), nil)
		return
	}
	amount, err := s.node.EarningInfo(params.TokenIDs)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, AmountResult{Amount: amountString(amount)})
}

func depositResult(info *nftstake.DepositInfo) DepositResult {
	result := DepositResult{
		TokenID:         info.TokenID,
		State:           info.State.String(),
		AccrualStart:    info.AccrualStart,
		ExitRequestedAt: info.ExitRequestedAt,
		WithdrawableAt:  info.WithdrawableAt,
		Earned:          amountString(info.Earned),
	}
	if info.State != nftstake.StateEmpty {
		result.Depositor = crypto.FormatRaw(info.Depositor)
	}
	return result
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params tokenIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		s.invalidParams(w, req, err.Error(), nil)
		return
	}
	info, err := s.node.DepositInfo(params.TokenID)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, depositResult(info))
}

func (s *Server) handleRateHistory(w http.ResponseWriter, req *RPCRequest) {
	rates, err := s.node.Rates()
	if err != nil {
		s.fail(w, req, err)
		return
	}
	out := make([]RateResult, len(rates))
	for i, checkpoint := range rates {
		out[i] = RateResult{EffectiveAt: checkpoint.EffectiveAt, Rate: amountString(checkpoint.Rate)}
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleParams(w http.ResponseWriter, req *RPCRequest) {
	p, paused, err := s.node.StakingParams()
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, ParamsResult{
		UnbondingDelay:   p.UnbondingDelay,
		TimeUnit:         p.TimeUnit,
		SettleOnWithdraw: p.SettleOnWithdraw,
		Paused:           paused,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params historyParams
	if len(req.Params) > 0 {
		if err := decodeSingleParam(req, &params); err != nil {
			s.invalidParams(w, req, err.Error(), nil)
			return
		}
	}
	if params.Limit < 0 || params.Offset < 0 {
		s.invalidParams(w, req, "limit and offset must not be negative", nil)
		return
	}
	entries, err := s.node.History(r.Context(), journal.Filter{
		Account: strings.TrimSpace(params.Account),
		Type:    strings.TrimSpace(params.Type),
		Limit:   params.Limit,
		Offset:  params.Offset,
	})
	if err != nil {
		s.fail(w, req, err)
		return
	}
	out := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		attrs, err := entry.Decoded()
		if err != nil {
			s.fail(w, req, err)
			return
		}
		out = append(out, HistoryEntry{
			Sequence:   entry.Sequence,
			Type:       entry.Type,
			Account:    entry.Account,
			Attributes: attrs,
			CreatedAt:  entry.CreatedAt.Unix(),
		})
	}
	writeResult(w, req.ID, out)
}

func (s *Server) decodeAddressParam(w http.ResponseWriter, req *RPCRequest) (string, [20]byte, bool) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		s.invalidParams(w, req, err.Error(), nil)
		return "", [20]byte{}, false
	}
	addr, err := crypto.DecodeRaw(strings.TrimSpace(params.Address))
	if err != nil {
		s.invalidParams(w, req, "invalid address", err.Error())
		return "", [20]byte{}, false
	}
	return crypto.FormatRaw(addr), addr, true
}

func (s *Server) handleNonce(w http.ResponseWriter, req *RPCRequest) {
	formatted, addr, ok := s.decodeAddressParam(w, req)
	if !ok {
		return
	}
	nonce, err := s.node.Nonce(addr)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, NonceResult{Address: formatted, Nonce: nonce})
}
