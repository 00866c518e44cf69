package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"

	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// terminalApprover asks the user on the terminal before the provider
// authorizes an account, changes networks or signs.
type terminalApprover struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
	fd  int
}

var _ provider.Approver = (*terminalApprover)(nil)

func newTerminalApprover() *terminalApprover {
	return &terminalApprover{
		in:  bufio.NewReader(os.Stdin),
		out: os.Stdout,
		fd:  int(os.Stdin.Fd()),
	}
}

func (a *terminalApprover) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (a *terminalApprover) confirm(question string) error {
	fmt.Fprintf(a.out, "%s [y/N]: ", question)
	answer, err := a.readLine()
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	default:
		return provider.ErrDeclined
	}
}

// readPassphrase reads without echo when stdin is a terminal.
func (a *terminalApprover) readPassphrase(prompt string) (string, error) {
	fmt.Fprint(a.out, prompt)
	if term.IsTerminal(a.fd) {
		pass, err := term.ReadPassword(a.fd)
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(pass), nil
	}
	return a.readLine()
}

func (a *terminalApprover) ApproveConnection(_ context.Context, candidates []common.Address) (common.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintln(a.out, "CommunityHub requests access to one of your accounts:")
	for i, c := range candidates {
		fmt.Fprintf(a.out, "  %d) %s\n", i+1, c.Hex())
	}
	fmt.Fprint(a.out, "Account to connect (number, empty for 1, n to decline): ")
	answer, err := a.readLine()
	if err != nil {
		return common.Address{}, err
	}
	if strings.EqualFold(answer, "n") || strings.EqualFold(answer, "no") {
		return common.Address{}, provider.ErrDeclined
	}
	index := 1
	if answer != "" {
		index, err = strconv.Atoi(answer)
		if err != nil || index < 1 || index > len(candidates) {
			return common.Address{}, fmt.Errorf("invalid account choice %q", answer)
		}
	}
	return candidates[index-1], nil
}

func (a *terminalApprover) ApproveNetworkSwitch(_ context.Context, params *utils.ChainParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.confirm(fmt.Sprintf("Switch the wallet to %s (chain id %v)?", params.Name, params.ChainID))
}

func (a *terminalApprover) ApproveNetworkAddition(_ context.Context, params *utils.ChainParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintln(a.out, "CommunityHub wants to add a network to your wallet:")
	fmt.Fprintf(a.out, "  Name:     %s\n", params.Name)
	fmt.Fprintf(a.out, "  Chain id: %v (%s)\n", params.ChainID, params.HexChainID())
	fmt.Fprintf(a.out, "  Currency: %s (%s)\n", params.Currency.Name, params.Currency.Symbol)
	fmt.Fprintf(a.out, "  RPC URL:  %s\n", params.RPCURL)
	if params.ExplorerURL != "" {
		fmt.Fprintf(a.out, "  Explorer: %s\n", params.ExplorerURL)
	}
	return a.confirm("Add this network?")
}

func (a *terminalApprover) ApproveTransaction(_ context.Context, req *provider.TxRequest) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	fmt.Fprintln(a.out, "Signature requested:")
	fmt.Fprintf(a.out, "  From:    %s\n", req.From.Hex())
	if req.To != nil {
		fmt.Fprintf(a.out, "  To:      %s\n", req.To.Hex())
	}
	if req.Network != nil {
		if req.Value != nil && req.Value.Sign() > 0 {
			fmt.Fprintf(a.out, "  Value:   %s %s\n", utils.FormatAmount(req.Value, req.Network.Currency.Decimals),
				req.Network.Currency.Symbol)
		}
		fmt.Fprintf(a.out, "  Network: %s\n", req.Network.Name)
	}
	if err := a.confirm("Sign and send?"); err != nil {
		return "", err
	}
	return a.readPassphrase("Passphrase: ")
}

// promptNewPassphrase asks for a passphrase twice.
func promptNewPassphrase(a *terminalApprover) (string, error) {
	pass, err := a.readPassphrase("New account passphrase: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("the passphrase must not be empty")
	}
	confirm, err := a.readPassphrase("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}
