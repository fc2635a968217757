package rpc

import (
	"net/http"

	"nftstake/crypto"
)

func (s *Server) handleOwnerOf(w http.ResponseWriter, req *RPCRequest) {
	var params tokenIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		s.invalidParams(w, req, err.Error(), nil)
		return
	}
	owner, err := s.node.OwnerOf(params.TokenID)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, OwnerResult{TokenID: params.TokenID, Owner: crypto.FormatRaw(owner)})
}

func (s *Server) handleBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	formatted, addr, ok := s.decodeAddressParam(w, req)
	if !ok {
		return
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		s.fail(w, req, err)
		return
	}
	writeResult(w, req.ID, BalanceResult{Address: formatted, Balance: amountString(balance)})
}
