package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"nftstake/cmd/internal/passphrase"
	"nftstake/crypto"
	"nftstake/rpc"
)

func parseTokenIDs(args []string) ([]uint64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one token id required")
	}
	ids := make([]uint64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid token id %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one token id required")
	}
	return ids, nil
}

func formatTimestamp(ts uint64) string {
	if ts == 0 {
		return "-"
	}
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

func runGenerateKey(args []string, stdout, stderr io.Writer) int {
	path := keystorePath
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(stderr, "Error: %s already exists; refusing to overwrite\n", path)
		return 1
	}
	pass, err := passphrase.NewSource(keyPassEnv, "Choose a keystore passphrase: ").Get()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := crypto.SaveToKeystore(path, key, pass); err != nil {
		fmt.Fprintf(stderr, "Failed to write keystore: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Generated new key and saved to %s\n", path)
	fmt.Fprintf(stdout, "Your address is: %s\n", key.PubKey().Address().String())
	return 0
}

func runAddress(stdout, stderr io.Writer) int {
	key, err := loadSigner()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading signing key: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, key.PubKey().Address().String())
	return 0
}

func runApprove(args []string, stdout, stderr io.Writer) int {
	switch len(args) {
	case 1:
		var out rpc.BatchResult
		if code := submit(rpc.MethodSetApprovalForAll, rpc.MutationRequest{Target: args[0], Approved: true}, &out, stderr); code != 0 {
			return code
		}
		fmt.Fprintf(stdout, "Approved %s as operator for all tokens\n", args[0])
		return 0
	case 2:
		id, err := strconv.ParseUint(strings.TrimSpace(args[1]), 10, 64)
		if err != nil {
			fmt.Fprintf(stderr, "Error: invalid token id %q\n", args[1])
			return 1
		}
		var out rpc.BatchResult
		if code := submit(rpc.MethodApprove, rpc.MutationRequest{Target: args[0], TokenID: id}, &out, stderr); code != 0 {
			return code
		}
		fmt.Fprintf(stdout, "Approved %s for token %d\n", args[0], id)
		return 0
	default:
		fmt.Fprintln(stderr, "Usage: nftstake-cli approve <operator> | approve <spender> <tokenId>")
		return 1
	}
}

var batchMethods = map[string]string{
	"stake":    rpc.MethodStake,
	"unstake":  rpc.MethodUnstake,
	"claim":    rpc.MethodClaim,
	"withdraw": rpc.MethodWithdraw,
}

var batchVerbs = map[string]string{
	"stake":    "Staked",
	"unstake":  "Unbonding",
	"claim":    "Claimed",
	"withdraw": "Withdrew",
}

func runBatchCommand(command string, args []string, stdout, stderr io.Writer) int {
	ids, err := parseTokenIDs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Usage: nftstake-cli %s <tokenId>...\nError: %v\n", command, err)
		return 1
	}
	method := batchMethods[command]
	req := rpc.MutationRequest{TokenIDs: ids}
	switch command {
	case "claim", "withdraw":
		var out rpc.PayoutResult
		if code := submit(method, req, &out, stderr); code != 0 {
			return code
		}
		fmt.Fprintf(stdout, "%s tokens %v; paid %s\n", batchVerbs[command], out.TokenIDs, out.Amount)
	default:
		var out rpc.BatchResult
		if code := submit(method, req, &out, stderr); code != 0 {
			return code
		}
		fmt.Fprintf(stdout, "%s tokens %v\n", batchVerbs[command], out.TokenIDs)
	}
	return 0
}

func runEarnings(args []string, stdout, stderr io.Writer) int {
	ids, err := parseTokenIDs(args)
	if err != nil {
		fmt.Fprintf(stderr, "Usage: nftstake-cli earnings <tokenId>...\nError: %v\n", err)
		return 1
	}
	var out rpc.AmountResult
	if code := query(rpc.MethodEarningInfo, map[string][]uint64{"tokenIds": ids}, &out, stderr); code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "Earned: %s\n", out.Amount)
	return 0
}

func runDeposit(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: nftstake-cli deposit <tokenId>")
		return 1
	}
	id, err := strconv.ParseUint(strings.TrimSpace(args[0]), 10, 64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid token id %q\n", args[0])
		return 1
	}
	var out rpc.DepositResult
	if code := query(rpc.MethodGetDeposit, map[string]uint64{"tokenId": id}, &out, stderr); code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "Token %d\n", out.TokenID)
	fmt.Fprintf(stdout, "  State:          %s\n", out.State)
	if out.Depositor != "" {
		fmt.Fprintf(stdout, "  Depositor:      %s\n", out.Depositor)
		fmt.Fprintf(stdout, "  Accrual start:  %s\n", formatTimestamp(out.AccrualStart))
	}
	if out.ExitRequestedAt > 0 {
		fmt.Fprintf(stdout, "  Exit requested: %s\n", formatTimestamp(out.ExitRequestedAt))
		fmt.Fprintf(stdout, "  Withdrawable:   %s\n", formatTimestamp(out.WithdrawableAt))
	}
	fmt.Fprintf(stdout, "  Earned:         %s\n", out.Earned)
	return 0
}

func runRates(stdout, stderr io.Writer) int {
	var out []rpc.RateResult
	if code := query(rpc.MethodRateHistory, nil, &out, stderr); code != 0 {
		return code
	}
	for _, rate := range out {
		fmt.Fprintf(stdout, "%s  %s\n", formatTimestamp(rate.EffectiveAt), rate.Rate)
	}
	return 0
}

func runParams(stdout, stderr io.Writer) int {
	var out rpc.ParamsResult
	if code := query(rpc.MethodParams, nil, &out, stderr); code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "Unbonding delay:    %s\n", time.Duration(out.UnbondingDelay)*time.Second)
	fmt.Fprintf(stdout, "Time unit:          %ds\n", out.TimeUnit)
	fmt.Fprintf(stdout, "Settle on withdraw: %t\n", out.SettleOnWithdraw)
	fmt.Fprintf(stdout, "Paused:             %t\n", out.Paused)
	return 0
}

func runUpdateRate(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: nftstake-cli update-rate <rate>")
		return 1
	}
	var out rpc.BatchResult
	if code := submit(rpc.MethodUpdateRate, rpc.MutationRequest{Rate: strings.TrimSpace(args[0])}, &out, stderr); code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "Rate updated to %s\n", strings.TrimSpace(args[0]))
	return 0
}

func runPauseCommand(command string, stdout, stderr io.Writer) int {
	method := rpc.MethodPause
	if command == "unpause" {
		method = rpc.MethodUnpause
	}
	var out rpc.BatchResult
	if code := submit(method, rpc.MutationRequest{}, &out, stderr); code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "Staking %sd\n", command)
	return 0
}

func runBalance(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: nftstake-cli balance <address>")
		return 1
	}
	var out rpc.BalanceResult
	if code := query(rpc.MethodBalanceOf, map[string]string{"address": strings.TrimSpace(args[0])}, &out, stderr); code != 0 {
		return code
	}
	fmt.Fprintf(stdout, "%s: %s\n", out.Address, out.Balance)
	return 0
}

func runHistory(args []string, stdout, stderr io.Writer) int {
	params := map[string]string{}
	if len(args) > 0 {
		params["account"] = args[0]
	}
	if len(args) > 1 {
		params["type"] = args[1]
	}
	var out []rpc.HistoryEntry
	if code := query(rpc.MethodHistory, params, &out, stderr); code != 0 {
		return code
	}
	for _, entry := range out {
		fmt.Fprintf(stdout, "#%d %s %s\n", entry.Sequence, entry.Type, time.Unix(entry.CreatedAt, 0).UTC().Format(time.RFC3339))
	}
	return 0
}
