package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nftstake/cmd/internal/passphrase"
	"nftstake/crypto"
	"nftstake/rpc"
)

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// rpcCall is swapped out in tests.
var rpcCall = callRPC

func callRPC(method string, param interface{}) (json.RawMessage, *rpcError, error) {
	params := []interface{}{}
	if param != nil {
		params = append(params, param)
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(rpcEndpoint, "/")+"/", bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := strings.TrimSpace(rpcAuthToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, nil, fmt.Errorf("failed to decode RPC response (HTTP %d): %w", resp.StatusCode, err)
	}
	return rpcResp.Result, rpcResp.Error, nil
}

func handleRPCError(w io.Writer, err *rpcError) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC error %d: %s\n", err.Code, err.Message)
	if len(err.Data) > 0 && string(err.Data) != "null" {
		fmt.Fprintf(w, "  detail: %s\n", string(err.Data))
	}
	return 1
}

func handleRPCCallError(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "RPC call failed: %v\n", err)
	return 1
}

// query runs a read-only call and decodes its result into out.
func query(method string, param interface{}, out interface{}, stderr io.Writer) int {
	result, rpcErr, err := rpcCall(method, param)
	if err != nil {
		return handleRPCCallError(stderr, err)
	}
	if rpcErr != nil {
		return handleRPCError(stderr, rpcErr)
	}
	if err := json.Unmarshal(result, out); err != nil {
		fmt.Fprintf(stderr, "Failed to decode response: %v\n", err)
		return 1
	}
	return 0
}

// loadSigner is swapped out in tests.
var loadSigner = loadKeystoreKey

func loadKeystoreKey() (*crypto.PrivateKey, error) {
	pass, err := passphrase.NewSource(keyPassEnv, "Enter keystore passphrase: ").Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(keystorePath, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", keystorePath, err)
	}
	return key, nil
}

// submit fetches the next nonce, signs req for method and sends it.
func submit(method string, req rpc.MutationRequest, out interface{}, stderr io.Writer) int {
	key, err := loadSigner()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading signing key: %v\n", err)
		return 1
	}
	req.Caller = key.PubKey().Address().String()
	var nonce rpc.NonceResult
	if code := query(rpc.MethodNonce, map[string]string{"address": req.Caller}, &nonce, stderr); code != 0 {
		return code
	}
	req.Nonce = nonce.Nonce + 1
	if err := rpc.SignMutation(method, &req, key); err != nil {
		fmt.Fprintf(stderr, "Failed to sign request: %v\n", err)
		return 1
	}
	return query(method, req, out, stderr)
}
