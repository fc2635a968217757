package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	keyPassEnv     = "NFTSTAKE_KEY_PASS"
	rpcTokenEnv    = "NFTSTAKE_RPC_TOKEN"
	defaultKeyFile = "wallet.keystore"
)

var (
	rpcEndpoint  = defaultRPCEndpoint()
	rpcAuthToken = os.Getenv(rpcTokenEnv)
	keystorePath = defaultKeyFile
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stdout)
		return 0
	}
	command, rest := args[0], args[1:]
	switch command {
	case "generate-key":
		return runGenerateKey(rest, stdout, stderr)
	case "address":
		return runAddress(stdout, stderr)
	case "approve":
		return runApprove(rest, stdout, stderr)
	case "stake", "unstake", "claim", "withdraw":
		return runBatchCommand(command, rest, stdout, stderr)
	case "earnings":
		return runEarnings(rest, stdout, stderr)
	case "deposit":
		return runDeposit(rest, stdout, stderr)
	case "rates":
		return runRates(stdout, stderr)
	case "params":
		return runParams(stdout, stderr)
	case "update-rate":
		return runUpdateRate(rest, stdout, stderr)
	case "pause", "unpause":
		return runPauseCommand(command, stdout, stderr)
	case "balance":
		return runBalance(rest, stdout, stderr)
	case "history":
		return runHistory(rest, stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}
}

func defaultRPCEndpoint() string {
	if v := strings.TrimSpace(os.Getenv("RPC_URL")); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func applyGlobalFlags(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--rpc" || arg == "--keystore":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--rpc" {
				rpcEndpoint = args[i+1]
			} else {
				keystorePath = args[i+1]
			}
			i++
		case strings.HasPrefix(arg, "--rpc="):
			rpcEndpoint = strings.TrimPrefix(arg, "--rpc=")
		case strings.HasPrefix(arg, "--keystore="):
			keystorePath = strings.TrimPrefix(arg, "--keystore=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: nftstake-cli [--rpc URL] [--keystore PATH] <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signed commands read the keystore (default wallet.keystore); the passphrase")
	fmt.Fprintf(w, "comes from %s or an interactive prompt.\n", keyPassEnv)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  generate-key                  - Creates a new encrypted keystore")
	fmt.Fprintln(w, "  address                       - Prints the keystore address")
	fmt.Fprintln(w, "  approve <operator>            - Lets operator (usually the vault) move all your NFTs")
	fmt.Fprintln(w, "  approve <spender> <tokenId>   - Approves a single NFT")
	fmt.Fprintln(w, "  stake <tokenId>...            - Deposits NFTs into the vault")
	fmt.Fprintln(w, "  unstake <tokenId>...          - Starts unbonding; accrual stops")
	fmt.Fprintln(w, "  claim <tokenId>...            - Pays accrued rewards")
	fmt.Fprintln(w, "  withdraw <tokenId>...         - Returns unbonded NFTs")
	fmt.Fprintln(w, "  earnings <tokenId>...         - Shows rewards currently owed")
	fmt.Fprintln(w, "  deposit <tokenId>             - Shows a token's staking position")
	fmt.Fprintln(w, "  rates                         - Lists the reward rate history")
	fmt.Fprintln(w, "  params                        - Shows staking parameters")
	fmt.Fprintln(w, "  update-rate <rate>            - Admin: sets a new reward rate")
	fmt.Fprintln(w, "  pause | unpause               - Admin: toggles new deposits")
	fmt.Fprintln(w, "  balance <address>             - Shows a reward token balance")
	fmt.Fprintln(w, "  history [account] [type]      - Lists journaled events")
}
