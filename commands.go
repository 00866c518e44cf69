package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jessevdk/go-flags"

	"code.cryptopower.dev/group/communityhub/libwallet"
	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
	"code.cryptopower.dev/group/communityhub/logger"
	"code.cryptopower.dev/group/communityhub/wallet"
)

// app holds what every command shares: the parsed options and, once
// opened, the hub session.
type app struct {
	cfg       *config
	buildDate time.Time

	wallet   *wallet.Wallet
	mgr      *libwallet.HubManager
	terminal *terminalApprover
	printed  chan struct{}
}

func (a *app) approver() provider.Approver {
	if a.cfg.Yes {
		return &provider.AutoApprover{Passphrase: a.cfg.Passphrase}
	}
	if a.terminal == nil {
		a.terminal = newTerminalApprover()
	}
	return a.terminal
}

// open starts a session. load also fetches the proposal list.
func (a *app) open(load bool) (hub.ConnectionState, error) {
	cfg := a.cfg
	if err := cfg.validate(); err != nil {
		return hub.ConnectionState{}, err
	}

	netType := utils.ToNetworkType(cfg.Network)
	logDir := filepath.Join(cfg.LogDir, string(netType))
	initLogRotator(logDir, cfg.MaxLogZips)
	logToStderr = cfg.LogStderr
	if err := logger.SetLogLevels(cfg.DebugLevel); err != nil {
		return hub.ConnectionState{}, err
	}

	network, err := cfg.network()
	if err != nil {
		return hub.ConnectionState{}, err
	}

	a.wallet, err = wallet.NewWallet(cfg.HomeDir, string(netType), Version, logDir, a.buildDate)
	if err != nil {
		return hub.ConnectionState{}, err
	}

	listener, err := a.wallet.InitHubManager(&libwallet.InitParams{
		Network:         network,
		ContractAddress: cfg.Contract,
		KeystoreDir:     cfg.Keystore,
		Range:           cfg.proposalRange(),
		Approver:        a.approver(),
		LogLevel:        cfg.DebugLevel,
	})
	if err != nil {
		return hub.ConnectionState{}, err
	}
	a.mgr = a.wallet.GetHubManager()

	a.printed = make(chan struct{})
	go a.printUpdates(listener)

	log.Infof("communityhub %s on %s", Version, network.Name)
	return a.mgr.Start(load)
}

func (a *app) close() {
	if a.wallet != nil {
		a.wallet.Shutdown()
	}
	// printed exists only once the manager opened.
	if a.printed != nil {
		<-a.printed
	}
	closeLogRotator()
}

// printUpdates reports the progress of writes while the command waits.
func (a *app) printUpdates(listener *wallet.Listener) {
	defer close(a.printed)

	for u := range listener.Updates() {
		switch u.Type {
		case wallet.TransactionStateChanged:
			tx := u.Transaction
			switch tx.State {
			case hub.TxAwaitingSignature:
				fmt.Printf("Waiting for the wallet to sign the %s transaction...\n", tx.Kind)
			case hub.TxSubmitted:
				fmt.Printf("Submitted %s\n", tx.TxHash.Hex())
				if tx.TxURL != "" {
					fmt.Printf("  %s\n", tx.TxURL)
				}
				fmt.Println("Waiting for confirmation...")
			}
			if tx.TxHash != nil {
				uiLog.Debugf("transaction %s (%s): %s", tx.ID, utils.ShortHash(*tx.TxHash), tx.State)
			} else {
				uiLog.Debugf("transaction %s: %s", tx.ID, tx.State)
			}
		case wallet.ConnectionStateChanged:
			uiLog.Debugf("connection: %s", u.Connection)
		case wallet.ProposalsRefreshed:
			uiLog.Debugf("%d proposals loaded", len(u.Proposals))
		}
	}
}

// session opens the hub, runs fn and shuts everything down.
func (a *app) session(load bool, fn func(state hub.ConnectionState) error) error {
	defer a.close()

	state, err := a.open(load)
	if a.mgr == nil {
		return err
	}
	if err != nil {
		// A failed initial load still lets the command report the cached
		// view, which is empty here.
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	err = fn(state)
	var hubErr *hub.Error
	if errors.As(err, &hubErr) && hubErr.Diagnostic() != "" {
		log.Debugf("%v: %s", hubErr, hubErr.Diagnostic())
	}
	return err
}

func addCommands(parser *flags.Parser, a *app) error {
	commands := []struct {
		name, short string
		data        interface{}
	}{
		{"list", "List the proposals", &listCommand{app: a}},
		{"show", "Show a single proposal", &showCommand{app: a}},
		{"connect", "Authorize an account for CommunityHub", &connectCommand{app: a}},
		{"status", "Show the network and the connected account", &statusCommand{app: a}},
		{"create", "Create a proposal", &createCommand{app: a}},
		{"vote", "Vote on a proposal", &voteCommand{app: a}},
		{"donate", "Donate to a proposal", &donateCommand{app: a}},
		{"close", "Close a proposal you created", &closeCommand{app: a}},
		{"account-new", "Create a keystore account", &accountNewCommand{app: a}},
		{"account-list", "List keystore accounts", &accountListCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.short+".", c.data); err != nil {
			return err
		}
	}
	return nil
}

type listCommand struct {
	app     *app
	Reverse bool `long:"reverse" description:"Newest proposals first"`
	Mine    bool `long:"mine" description:"Only proposals created by the connected account"`
}

func (c *listCommand) Execute(_ []string) error {
	return c.app.session(true, func(state hub.ConnectionState) error {
		repo := c.app.mgr.Hub.Repository
		if !repo.Refreshed() {
			return errors.New("proposals are not available")
		}

		var proposals []hub.Proposal
		switch {
		case c.Mine:
			if !state.IsConnected() {
				return errors.New("connect an account to list your proposals")
			}
			proposals = repo.ByCreator(state.Address)
			if c.Reverse {
				reverse(proposals)
			}
		case c.Reverse:
			proposals = repo.Reversed()
		default:
			proposals = repo.Proposals()
		}

		if len(proposals) == 0 {
			fmt.Println("No proposals.")
			return nil
		}

		statuses := c.app.mgr.VoteStatuses(proposals)
		currency := c.app.mgr.Network().Currency

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tYES\tNO\tDONATED\tCREATOR\tCREATED\tYOUR VOTE\tDESCRIPTION")
		for _, p := range proposals {
			vote := "-"
			if state.IsConnected() {
				vote = statuses[p.ID].String()
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s %s\t%s\t%s\t%s\t%s\n", p.ID, openLabel(p.Open), p.VotesYes, p.VotesNo,
				utils.FormatAmount(p.Donated, currency.Decimals), currency.Symbol, utils.ShortAddress(p.Creator),
				utils.ExtractDateOrTime(p.CreatedAt.Unix()), vote, truncate(p.Description, 40))
		}
		return w.Flush()
	})
}

type showCommand struct {
	app  *app
	Args struct {
		ID uint64 `positional-arg-name:"id"`
	} `positional-args:"yes" required:"yes"`
}

func (c *showCommand) Execute(_ []string) error {
	return c.app.session(false, func(state hub.ConnectionState) error {
		p, err := c.app.mgr.Proposal(c.Args.ID)
		if err != nil {
			return err
		}
		currency := c.app.mgr.Network().Currency

		fmt.Printf("Proposal %d (%s)\n", p.ID, openLabel(p.Open))
		fmt.Printf("  Description: %s\n", p.Description)
		fmt.Printf("  Creator:     %s\n", p.Creator.Hex())
		fmt.Printf("  Beneficiary: %s\n", p.Beneficiary.Hex())
		fmt.Printf("  Votes:       %d yes / %d no\n", p.VotesYes, p.VotesNo)
		fmt.Printf("  Donated:     %s %s\n", utils.FormatAmount(p.Donated, currency.Decimals), currency.Symbol)
		fmt.Printf("  Created:     %s\n", utils.FormatUTCTime(p.CreatedAt.Unix()))

		if !state.IsConnected() {
			fmt.Println("Connect an account to vote, donate or close.")
			return nil
		}
		status := c.app.mgr.VoteStatus(p.ID)
		fmt.Printf("  Your vote:   %s\n", status)
		if state.WrongNetwork {
			fmt.Println("The wallet is on another network, voting is disabled.")
		}

		actions := hub.Actions(*p, status, state)
		var offered []string
		if actions.Vote {
			offered = append(offered, "vote")
		}
		if actions.Donate {
			offered = append(offered, "donate")
		}
		if actions.Close {
			offered = append(offered, "close")
		}
		if len(offered) > 0 {
			fmt.Printf("  Actions:     %s\n", strings.Join(offered, ", "))
		}
		return nil
	})
}

type connectCommand struct {
	app *app
}

func (c *connectCommand) Execute(_ []string) error {
	return c.app.session(false, func(state hub.ConnectionState) error {
		if state.IsConnected() && !state.WrongNetwork {
			fmt.Printf("Already %s\n", state)
			return nil
		}
		state, err := c.app.mgr.Connect()
		if err != nil {
			return err
		}
		fmt.Printf("Connected %s\n", state.Address.Hex())
		return nil
	})
}

type statusCommand struct {
	app *app
}

func (c *statusCommand) Execute(_ []string) error {
	return c.app.session(false, func(state hub.ConnectionState) error {
		mgr := c.app.mgr
		network := mgr.Network()

		fmt.Printf("Client:   communityhub %s (built %s)\n", c.app.wallet.Version(), c.app.wallet.BuildDate().Format("2006-01-02"))
		fmt.Printf("Network:  %s (chain id %v)\n", network.Name, network.ChainID)
		fmt.Printf("RPC:      %s\n", network.RPCURL)
		fmt.Printf("Contract: %s\n", mgr.Ledger.Address().Hex())
		fmt.Printf("Session:  %s\n", state)
		fmt.Printf("Log file: %s\n", c.app.wallet.LogFile())

		if !state.IsConnected() {
			return nil
		}
		balance, err := mgr.Balance(state.Address)
		if err != nil {
			log.Warnf("balance unavailable: %v", err)
			return nil
		}
		fmt.Printf("Balance:  %s %s\n", utils.FormatAmount(balance, network.Currency.Decimals), network.Currency.Symbol)
		return nil
	})
}

type createCommand struct {
	app         *app
	Description string `long:"description" required:"yes" description:"What the proposal is about"`
	Beneficiary string `long:"beneficiary" required:"yes" description:"Address receiving the donations"`
}

func (c *createCommand) Execute(_ []string) error {
	return c.app.session(false, func(hub.ConnectionState) error {
		result, err := c.app.mgr.CreateProposal(c.Description, c.Beneficiary)
		if err != nil {
			return err
		}
		fmt.Printf("Proposal %d created.\n", result.ProposalID)
		reportRefresh(result)
		return nil
	})
}

type voteCommand struct {
	app  *app
	Args struct {
		ID      uint64 `positional-arg-name:"id"`
		Support string `positional-arg-name:"yes|no"`
	} `positional-args:"yes" required:"yes"`
}

func (c *voteCommand) Execute(_ []string) error {
	var support bool
	switch strings.ToLower(c.Args.Support) {
	case "yes", "y":
		support = true
	case "no", "n":
	default:
		return fmt.Errorf("vote must be yes or no, got %q", c.Args.Support)
	}

	return c.app.session(false, func(hub.ConnectionState) error {
		result, err := c.app.mgr.Vote(c.Args.ID, support)
		if err != nil {
			return err
		}
		fmt.Printf("Vote recorded on proposal %d: %s\n", c.Args.ID, result.VoteStatus)
		reportRefresh(result)
		return nil
	})
}

type donateCommand struct {
	app  *app
	Args struct {
		ID     uint64 `positional-arg-name:"id"`
		Amount string `positional-arg-name:"amount"`
	} `positional-args:"yes" required:"yes"`
}

func (c *donateCommand) Execute(_ []string) error {
	return c.app.session(false, func(hub.ConnectionState) error {
		result, err := c.app.mgr.Donate(c.Args.ID, c.Args.Amount)
		if err != nil {
			return err
		}
		fmt.Printf("Donated %s %s to proposal %d.\n", c.Args.Amount, c.app.mgr.Network().Currency.Symbol, c.Args.ID)
		reportRefresh(result)
		return nil
	})
}

type closeCommand struct {
	app  *app
	Args struct {
		ID uint64 `positional-arg-name:"id"`
	} `positional-args:"yes" required:"yes"`
}

func (c *closeCommand) Execute(_ []string) error {
	return c.app.session(false, func(hub.ConnectionState) error {
		result, err := c.app.mgr.CloseProposal(c.Args.ID)
		if err != nil {
			return err
		}
		fmt.Printf("Proposal %d closed.\n", c.Args.ID)
		reportRefresh(result)
		return nil
	})
}

type accountNewCommand struct {
	app *app
}

func (c *accountNewCommand) Execute(_ []string) error {
	return c.app.session(false, func(hub.ConnectionState) error {
		passphrase := c.app.cfg.Passphrase
		if !c.app.cfg.Yes {
			var err error
			passphrase, err = promptNewPassphrase(c.app.terminal)
			if err != nil {
				return err
			}
		}
		if passphrase == "" {
			return errors.New("a passphrase is required, set --passphrase")
		}

		addr, err := c.app.mgr.NewAccount(passphrase)
		if err != nil {
			return err
		}
		fmt.Printf("Created account %s\n", addr.Hex())
		return nil
	})
}

type accountListCommand struct {
	app *app
}

func (c *accountListCommand) Execute(_ []string) error {
	return c.app.session(false, func(state hub.ConnectionState) error {
		accounts := c.app.mgr.ListAccounts()
		if len(accounts) == 0 {
			fmt.Println("No accounts, create one with account-new.")
			return nil
		}
		for _, addr := range accounts {
			marker := " "
			if state.IsConnected() && addr == state.Address {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, addr.Hex())
		}
		return nil
	})
}

func reportRefresh(result *hub.Result) {
	if result.RefreshErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: confirmed, but the proposal list could not be reloaded: %v\n", result.RefreshErr)
	}
}

func openLabel(open bool) string {
	if open {
		return "open"
	}
	return "closed"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func reverse(proposals []hub.Proposal) {
	for i, j := 0, len(proposals)-1; i < j; i, j = i+1, j-1 {
		proposals[i], proposals[j] = proposals[j], proposals[i]
	}
}
