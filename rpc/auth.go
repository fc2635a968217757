package rpc

import (
	"crypto/sha256"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	jwt "github.com/golang-jwt/jwt/v5"

	"nftstake/crypto"
)

// JWTConfig enables bearer-token authentication on mutating methods. An empty
// secret disables the check.
type JWTConfig struct {
	Secret    string
	Issuer    string
	ClockSkew time.Duration
}

func (c JWTConfig) enabled() bool { return strings.TrimSpace(c.Secret) != "" }

func extractBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if !s.cfg.JWT.enabled() {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	tokenString := extractBearer(header)
	if tokenString == "" {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	skew := s.cfg.JWT.ClockSkew
	if skew <= 0 {
		skew = 2 * time.Minute
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(skew),
	}
	if issuer := strings.TrimSpace(s.cfg.JWT.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	token, err := jwt.Parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return []byte(strings.TrimSpace(s.cfg.JWT.Secret)), nil
	}, opts...)
	if err != nil || !token.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

var errSignatureMismatch = errors.New(signatureMismatchError)

// verifySignature recovers the signer of the mutation and checks it matches
// the declared caller.
func verifySignature(method string, req *MutationRequest) ([20]byte, error) {
	var zero [20]byte
	caller, err := crypto.DecodeAddress(strings.TrimSpace(req.Caller))
	if err != nil {
		return zero, err
	}
	sig, err := req.SignatureBytes()
	if err != nil {
		return zero, err
	}
	digest := sha256.Sum256(req.SigningMessage(method))
	signer, err := crypto.RecoverAddress(digest[:], sig)
	if err != nil {
		return zero, err
	}
	if signer.Raw() != caller.Raw() {
		return zero, errSignatureMismatch
	}
	return caller.Raw(), nil
}

// SignMutation fills in the signature of req for method using key.
func SignMutation(method string, req *MutationRequest, key *crypto.PrivateKey) error {
	if key == nil {
		return errors.New("rpc: signing key required")
	}
	digest := sha256.Sum256(req.SigningMessage(method))
	sig, err := key.Sign(digest[:])
	if err != nil {
		return err
	}
	req.Signature = hexutil.Encode(sig)
	return nil
}
