// Command coreledger-cli talks to a running coreledgerd over JSON-RPC:
// chain inspection, transaction submission, mining control, and wallet
// operations.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/coreledger/coreledger/internal/rpc"
	"github.com/coreledger/coreledger/internal/rpcclient"
	"github.com/coreledger/coreledger/pkg/types"
	"golang.org/x/term"
)

const defaultEndpoint = "http://127.0.0.1:8707/"

func main() {
	endpoint := flag.String("rpc", defaultEndpoint, "node RPC endpoint")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := rpcclient.New(*endpoint)
	if err := dispatch(client, args); err != nil {
		fmt.Fprintln(os.Stderr, "coreledger-cli:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: coreledger-cli [-rpc endpoint] <command> [args]

Chain:
  chain info                     chain length, height, tip hash
  chain block <height>           one block by height
  chain dump                     the whole chain as JSON
  balance <address>              confirmed balance of an address

Mempool:
  mempool info                   pending transaction count
  mempool content                pending transactions as JSON

Network:
  peers                          connected peers
  nodeinfo                       this node's peer ID and addresses
  bans                           active peer bans

Mining:
  mining start|stop|status       control the continuous miner
  mining mine                    a single blocking mining attempt

Wallet (password prompted, never an argument):
  wallet create <name>           new wallet; prints the mnemonic ONCE
  wallet restore <name>          rebuild a wallet from its mnemonic
  wallet list                    wallet names in the node's keystore
  wallet accounts <name>         a wallet's addresses
  wallet new-address <name>      derive the next receiving address
  wallet balance <name>          sum of the wallet's address balances
  wallet send <name> <to> <amt>  sign and submit a transfer
`)
}

func dispatch(client *rpcclient.Client, args []string) error {
	switch args[0] {
	case "chain":
		return chainCmd(client, args[1:])
	case "balance":
		if len(args) != 2 {
			return fmt.Errorf("usage: balance <address>")
		}
		out, err := client.Balance(args[1])
		if err != nil {
			return err
		}
		fmt.Println(out.Balance)
		return nil
	case "mempool":
		return mempoolCmd(client, args[1:])
	case "peers":
		out, err := client.PeerInfo()
		if err != nil {
			return err
		}
		fmt.Printf("%d peers\n", out.Count)
		for _, p := range out.Peers {
			fmt.Printf("  %s  (%s)\n", p.ID, p.Source)
		}
		return nil
	case "nodeinfo":
		var out rpc.NodeInfoResult
		if err := client.Call("net.getNodeInfo", nil, &out); err != nil {
			return err
		}
		return printJSON(out)
	case "bans":
		var out []rpc.BanEntry
		if err := client.Call("net.getBanList", nil, &out); err != nil {
			return err
		}
		return printJSON(out)
	case "mining":
		return miningCmd(client, args[1:])
	case "wallet":
		return walletCmd(client, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func chainCmd(client *rpcclient.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chain info|block|dump")
	}
	switch args[0] {
	case "info":
		out, err := client.ChainInfo()
		if err != nil {
			return err
		}
		fmt.Printf("length:     %d\n", out.Length)
		fmt.Printf("height:     %d\n", out.Height)
		fmt.Printf("tip:        %s\n", out.TipHash)
		fmt.Printf("difficulty: %d\n", out.Difficulty)
		return nil
	case "block":
		if len(args) != 2 {
			return fmt.Errorf("usage: chain block <height>")
		}
		height, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("bad height %q", args[1])
		}
		out, err := client.BlockByHeight(height)
		if err != nil {
			return err
		}
		return printJSON(out)
	case "dump":
		var out json.RawMessage
		if err := client.Call("chain.getChain", nil, &out); err != nil {
			return err
		}
		return printJSON(out)
	default:
		return fmt.Errorf("unknown chain command %q", args[0])
	}
}

func mempoolCmd(client *rpcclient.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mempool info|content")
	}
	switch args[0] {
	case "info":
		out, err := client.MempoolInfo()
		if err != nil {
			return err
		}
		fmt.Printf("%d pending\n", out.Count)
		return nil
	case "content":
		var out rpc.MempoolContentResult
		if err := client.Call("mempool.getContent", nil, &out); err != nil {
			return err
		}
		return printJSON(out.Transactions)
	default:
		return fmt.Errorf("unknown mempool command %q", args[0])
	}
}

func miningCmd(client *rpcclient.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: mining start|stop|status|mine")
	}
	switch args[0] {
	case "start", "stop", "status":
		var out rpc.MiningStatusResult
		if err := client.Call("mining."+args[0], nil, &out); err != nil {
			return err
		}
		if out.Running {
			fmt.Println("mining")
		} else {
			fmt.Println("not mining")
		}
		return nil
	case "mine":
		var out rpc.BlockResult
		if err := client.Call("mining.mineOne", nil, &out); err != nil {
			return err
		}
		fmt.Printf("mined block %d  %s\n", out.Index, out.Hash)
		return nil
	default:
		return fmt.Errorf("unknown mining command %q", args[0])
	}
}

func walletCmd(client *rpcclient.Client, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: wallet create|restore|list|accounts|new-address|balance|send")
	}
	switch args[0] {
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("usage: wallet create <name>")
		}
		password, err := promptPassword("New wallet password: ")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}
		var out rpc.WalletCreateResult
		err = client.Call("wallet.create", rpc.WalletAuthParams{Wallet: args[1], Password: password}, &out)
		if err != nil {
			return err
		}
		fmt.Println("address:", out.Address)
		fmt.Println()
		fmt.Println("Recovery mnemonic (write it down, it is shown exactly once):")
		fmt.Println()
		fmt.Println("  " + out.Mnemonic)
		return nil
	case "restore":
		if len(args) != 2 {
			return fmt.Errorf("usage: wallet restore <name>")
		}
		fmt.Print("Mnemonic: ")
		mnemonic, err := readLine()
		if err != nil {
			return err
		}
		password, err := promptPassword("New wallet password: ")
		if err != nil {
			return err
		}
		var out rpc.WalletCreateResult
		err = client.Call("wallet.restore", rpc.WalletRestoreParams{
			Wallet: args[1], Password: password, Mnemonic: strings.TrimSpace(mnemonic),
		}, &out)
		if err != nil {
			return err
		}
		fmt.Println("address:", out.Address)
		return nil
	case "list":
		var out rpc.WalletListResult
		if err := client.Call("wallet.list", nil, &out); err != nil {
			return err
		}
		for _, name := range out.Wallets {
			fmt.Println(name)
		}
		return nil
	case "accounts":
		if len(args) != 2 {
			return fmt.Errorf("usage: wallet accounts <name>")
		}
		var out rpc.WalletAccountsResult
		if err := client.Call("wallet.accounts", rpc.WalletNameParams{Wallet: args[1]}, &out); err != nil {
			return err
		}
		for _, addr := range out.Addresses {
			fmt.Println(addr)
		}
		return nil
	case "new-address":
		if len(args) != 2 {
			return fmt.Errorf("usage: wallet new-address <name>")
		}
		password, err := promptPassword("Wallet password: ")
		if err != nil {
			return err
		}
		var out rpc.WalletCreateResult
		err = client.Call("wallet.newAddress", rpc.WalletAuthParams{Wallet: args[1], Password: password}, &out)
		if err != nil {
			return err
		}
		fmt.Println(out.Address)
		return nil
	case "balance":
		if len(args) != 2 {
			return fmt.Errorf("usage: wallet balance <name>")
		}
		var out rpc.BalanceResult
		if err := client.Call("wallet.getBalance", rpc.WalletNameParams{Wallet: args[1]}, &out); err != nil {
			return err
		}
		fmt.Println(out.Balance)
		return nil
	case "send":
		if len(args) != 4 {
			return fmt.Errorf("usage: wallet send <name> <to> <amount>")
		}
		amount, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil || amount <= 0 {
			return fmt.Errorf("bad amount %q", args[3])
		}
		password, err := promptPassword("Wallet password: ")
		if err != nil {
			return err
		}
		var out rpc.WalletSendResult
		err = client.Call("wallet.send", rpc.WalletSendParams{
			Wallet: args[1], Password: password,
			To: types.Address(strings.TrimSpace(args[2])), Amount: amount,
		}, &out)
		if err != nil {
			return err
		}
		fmt.Println("tx:", out.ID)
		return nil
	default:
		return fmt.Errorf("unknown wallet command %q", args[0])
	}
}

// promptPassword reads a password without echoing when stdin is a
// terminal, falling back to a plain line read otherwise (pipes, tests).
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(raw), nil
	}
	line, err := readLine()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var stdin = bufio.NewReader(os.Stdin)

func readLine() (string, error) {
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
