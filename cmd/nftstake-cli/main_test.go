package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"nftstake/crypto"
	"nftstake/rpc"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type recordedCall struct {
	method string
	param  interface{}
}

func stubRPC(t *testing.T, responses map[string]string) *[]recordedCall {
	t.Helper()
	calls := &[]recordedCall{}
	original := rpcCall
	rpcCall = func(method string, param interface{}) (json.RawMessage, *rpcError, error) {
		*calls = append(*calls, recordedCall{method: method, param: param})
		body, ok := responses[method]
		if !ok {
			return nil, &rpcError{Code: -32601, Message: "unknown method " + method}, nil
		}
		if strings.HasPrefix(body, "error:") {
			return nil, &rpcError{Code: -32043, Message: strings.TrimPrefix(body, "error:")}, nil
		}
		return json.RawMessage(body), nil, nil
	}
	t.Cleanup(func() { rpcCall = original })
	return calls
}

func stubSigner(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	original := loadSigner
	loadSigner = func() (*crypto.PrivateKey, error) { return key, nil }
	t.Cleanup(func() { loadSigner = original })
	return key
}

func TestStakeSignsWithNextNonce(t *testing.T) {
	key := stubSigner(t)
	calls := stubRPC(t, map[string]string{
		rpc.MethodNonce: `{"address":"x","nonce":4}`,
		rpc.MethodStake: `{"caller":"x","tokenIds":[1,2,3]}`,
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"stake", "1,2", "3"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "Staked tokens [1 2 3]") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
	if len(*calls) != 2 {
		t.Fatalf("expected nonce lookup and stake, got %d calls", len(*calls))
	}
	req, ok := (*calls)[1].param.(rpc.MutationRequest)
	if !ok {
		t.Fatalf("unexpected param type %T", (*calls)[1].param)
	}
	if req.Nonce != 5 {
		t.Fatalf("expected nonce 5, got %d", req.Nonce)
	}
	sig, err := req.SignatureBytes()
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	digest := sha256.Sum256(req.SigningMessage(rpc.MethodStake))
	signer, err := crypto.RecoverAddress(digest[:], sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if signer.String() != key.PubKey().Address().String() || req.Caller != signer.String() {
		t.Fatalf("signature does not match caller")
	}
}

func TestClaimReportsPayout(t *testing.T) {
	stubSigner(t)
	stubRPC(t, map[string]string{
		rpc.MethodNonce: `{"nonce":0}`,
		rpc.MethodClaim: `{"tokenIds":[7],"amount":"1500"}`,
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"claim", "7"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "paid 1500") {
		t.Fatalf("unexpected output %q", stdout.String())
	}
}

func TestRPCErrorsExitNonZero(t *testing.T) {
	stubSigner(t)
	stubRPC(t, map[string]string{
		rpc.MethodNonce:    `{"nonce":1}`,
		rpc.MethodWithdraw: "error:unbonding delay has not elapsed",
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"withdraw", "1"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "RPC error -32043") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}
}

func TestDepositAndRatesOutput(t *testing.T) {
	stubRPC(t, map[string]string{
		rpc.MethodGetDeposit:  `{"tokenId":3,"state":"exiting","depositor":"nstk1abc","accrualStart":86400,"exitRequestedAt":172800,"withdrawableAt":259200,"earned":"42"}`,
		rpc.MethodRateHistory: `[{"effectiveAt":0,"rate":"10"},{"effectiveAt":86400,"rate":"20"}]`,
	})
	var stdout, stderr bytes.Buffer
	if code := run([]string{"deposit", "3"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"State:          exiting", "Withdrawable:   1970-01-04T00:00:00Z", "Earned:         42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	stdout.Reset()
	if code := run([]string{"rates"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "1970-01-02T00:00:00Z  20") {
		t.Fatalf("unexpected rates output %q", stdout.String())
	}
}

func TestUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"stake"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected usage error, got %d", code)
	}
	if code := run([]string{"bogus"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected unknown command error, got %d", code)
	}
	if _, err := parseTokenIDs([]string{"1", "x"}); err == nil {
		t.Fatalf("expected invalid token id error")
	}
}

func TestGlobalFlags(t *testing.T) {
	originalEndpoint, originalKeystore := rpcEndpoint, keystorePath
	defer func() { rpcEndpoint, keystorePath = originalEndpoint, originalKeystore }()
	rest, err := applyGlobalFlags([]string{"--rpc", "http://node:9000", "--keystore=admin.keystore", "pause"})
	if err != nil {
		t.Fatalf("apply flags: %v", err)
	}
	if rpcEndpoint != "http://node:9000" || keystorePath != "admin.keystore" {
		t.Fatalf("flags not applied: %s %s", rpcEndpoint, keystorePath)
	}
	if len(rest) != 1 || rest[0] != "pause" {
		t.Fatalf("unexpected remaining args %v", rest)
	}
	if _, err := applyGlobalFlags([]string{"--rpc"}); err == nil {
		t.Fatalf("expected missing value error")
	}
}

func TestCallRPCSendsBearerToken(t *testing.T) {
	originalClient, originalToken, originalEndpoint := httpClient, rpcAuthToken, rpcEndpoint
	defer func() { httpClient, rpcAuthToken, rpcEndpoint = originalClient, originalToken, originalEndpoint }()
	rpcAuthToken = "jwt-token"
	rpcEndpoint = "http://node.test"
	var seenAuth, seenMethod string
	httpClient = &http.Client{Transport: roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		seenAuth = req.Header.Get("Authorization")
		var body struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		seenMethod = body.Method
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"jsonrpc":"2.0","id":1,"result":{"amount":"9"}}`)),
		}, nil
	})}
	result, rpcErr, err := callRPC(rpc.MethodEarningInfo, map[string][]uint64{"tokenIds": {1}})
	if err != nil || rpcErr != nil {
		t.Fatalf("call failed: %v %v", err, rpcErr)
	}
	if seenAuth != "Bearer jwt-token" || seenMethod != rpc.MethodEarningInfo {
		t.Fatalf("unexpected request: %q %q", seenAuth, seenMethod)
	}
	if !strings.Contains(string(result), `"9"`) {
		t.Fatalf("unexpected result %s", result)
	}
}
