package provider

import (
	"context"
	"math/big"
	"sync"

	"decred.org/dcrwallet/v2/errors"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// Config configures a KeystoreProvider.
type Config struct {
	// KeystoreDir holds the encrypted key files.
	KeystoreDir string
	// DBPath is the storm database holding authorizations and networks.
	DBPath string
	// Networks are registered on startup if they are not known yet.
	Networks []*utils.ChainParams
	// DefaultChainID is activated when no network was active before.
	DefaultChainID *big.Int
	Approver       Approver

	// ScryptN and ScryptP tune key encryption. Zero values select the
	// standard keystore parameters.
	ScryptN int
	ScryptP int
}

// KeystoreProvider is a Provider backed by a go-ethereum keystore and a
// JSON-RPC node connection per network.
type KeystoreProvider struct {
	ks       *keystore.KeyStore
	reg      *registry
	approver Approver

	mu       sync.RWMutex
	networks map[string]*utils.ChainParams
	active   *utils.ChainParams
	client   *ethclient.Client

	feed  event.Feed
	scope event.SubscriptionScope

	ksSub event.Subscription
	quit  chan struct{}
	wg    sync.WaitGroup
}

var _ Provider = (*KeystoreProvider)(nil)

// NewKeystoreProvider opens the keystore and the provider database.
func NewKeystoreProvider(cfg *Config) (*KeystoreProvider, error) {
	const op errors.Op = "provider.NewKeystoreProvider"

	if cfg.Approver == nil {
		return nil, errors.E(op, errors.Invalid, "approver is required")
	}

	scryptN, scryptP := cfg.ScryptN, cfg.ScryptP
	if scryptN == 0 || scryptP == 0 {
		scryptN, scryptP = keystore.StandardScryptN, keystore.StandardScryptP
	}

	reg, err := openRegistry(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	p := &KeystoreProvider{
		ks:       keystore.NewKeyStore(cfg.KeystoreDir, scryptN, scryptP),
		reg:      reg,
		approver: cfg.Approver,
		networks: make(map[string]*utils.ChainParams),
		quit:     make(chan struct{}),
	}

	saved, err := reg.networks()
	if err != nil {
		reg.close()
		return nil, errors.E(op, errors.IO, err)
	}
	for _, params := range saved {
		p.networks[params.ChainID.String()] = params
	}

	for _, params := range cfg.Networks {
		if _, ok := p.networks[params.ChainID.String()]; ok {
			continue
		}
		if err := params.Validate(); err != nil {
			reg.close()
			return nil, errors.E(op, errors.Invalid, err)
		}
		if err := reg.saveNetwork(params); err != nil {
			reg.close()
			return nil, errors.E(op, errors.IO, err)
		}
		p.networks[params.ChainID.String()] = params.Copy()
	}

	activeID := reg.activeChainID()
	if activeID == nil {
		activeID = cfg.DefaultChainID
	}
	if activeID != nil {
		p.active = p.networks[activeID.String()]
	}
	if p.active == nil && len(cfg.Networks) > 0 {
		p.active = p.networks[cfg.Networks[0].ChainID.String()]
	}
	if p.active != nil {
		reg.setActiveChainID(p.active.ChainID)
		log.Infof("Active network: %s (chain id %v)", p.active.Name, p.active.ChainID)
	}

	events := make(chan accounts.WalletEvent, 8)
	p.ksSub = p.ks.Subscribe(events)
	p.wg.Add(1)
	go p.watchKeystore(events)

	return p, nil
}

// watchKeystore revokes the authorization of accounts whose key file
// disappears and tells the subscribers.
func (p *KeystoreProvider) watchKeystore(events chan accounts.WalletEvent) {
	defer p.wg.Done()

	for {
		select {
		case ev := <-events:
			if ev.Kind != accounts.WalletDropped {
				continue
			}
			changed := false
			for _, acct := range ev.Wallet.Accounts() {
				if p.isAuthorized(acct.Address) {
					if err := p.reg.revoke(acct.Address); err != nil {
						log.Errorf("unable to revoke %s: %v", acct.Address.Hex(), err)
						continue
					}
					changed = true
				}
			}
			if changed {
				p.notifyAccounts()
			}

		case <-p.ksSub.Err():
			return

		case <-p.quit:
			return
		}
	}
}

func (p *KeystoreProvider) isAuthorized(addr common.Address) bool {
	authorized, err := p.reg.authorized()
	if err != nil {
		return false
	}
	for _, a := range authorized {
		if a == addr {
			return true
		}
	}
	return false
}

func (p *KeystoreProvider) notifyAccounts() {
	accts, err := p.Accounts(context.Background())
	if err != nil {
		log.Errorf("unable to list accounts: %v", err)
		return
	}
	p.feed.Send(Event{Type: AccountsChanged, Accounts: accts})
}

// Accounts returns the authorized accounts that still have a key in the
// keystore, the selected account first.
func (p *KeystoreProvider) Accounts(_ context.Context) ([]common.Address, error) {
	authorized, err := p.reg.authorized()
	if err != nil {
		return nil, errors.E(errors.Op("provider.Accounts"), errors.IO, err)
	}

	accts := make([]common.Address, 0, len(authorized))
	for _, addr := range authorized {
		if p.ks.HasAddress(addr) {
			accts = append(accts, addr)
		}
	}
	return accts, nil
}

// RequestAccounts asks the approver to authorize one of the keystore
// accounts. The chosen account becomes the selected one.
func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	const op errors.Op = "provider.RequestAccounts"

	candidates := p.ListAccounts()
	if len(candidates) == 0 {
		return nil, errors.E(op, errors.NotExist, utils.ErrNoAccounts)
	}

	chosen, err := p.approver.ApproveConnection(ctx, candidates)
	if err != nil {
		if errors.Is(err, ErrDeclined) {
			return nil, userRejected("the request")
		}
		return nil, errors.E(op, err)
	}
	if !p.ks.HasAddress(chosen) {
		return nil, unauthorized("account " + chosen.Hex() + " is not in the keystore")
	}

	if err := p.reg.authorize(chosen); err != nil {
		return nil, errors.E(op, errors.IO, err)
	}

	accts, err := p.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	p.feed.Send(Event{Type: AccountsChanged, Accounts: accts})

	return accts, nil
}

// RevokeAuthorization disconnects addr from the client.
func (p *KeystoreProvider) RevokeAuthorization(addr common.Address) error {
	if err := p.reg.revoke(addr); err != nil {
		return errors.E(errors.Op("provider.RevokeAuthorization"), errors.IO, err)
	}
	p.notifyAccounts()
	return nil
}

// ChainID returns the chain id of the active network.
func (p *KeystoreProvider) ChainID(_ context.Context) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.active == nil {
		return nil, &RPCError{Code: CodeDisconnected, Message: "no active network"}
	}
	return new(big.Int).Set(p.active.ChainID), nil
}

// ActiveNetwork returns a copy of the active network parameters or nil.
func (p *KeystoreProvider) ActiveNetwork() *utils.ChainParams {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.active == nil {
		return nil
	}
	return p.active.Copy()
}

// SwitchChain activates a registered network once the approver agrees.
// Unknown networks fail with CodeUnrecognizedChain.
func (p *KeystoreProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	p.mu.RLock()
	params, ok := p.networks[chainID.String()]
	current := p.active
	p.mu.RUnlock()

	if !ok {
		return unrecognizedChain(chainID)
	}
	if current != nil && current.ChainID.Cmp(chainID) == 0 {
		return nil
	}

	if err := p.approver.ApproveNetworkSwitch(ctx, params.Copy()); err != nil {
		if errors.Is(err, ErrDeclined) {
			return userRejected("the network switch")
		}
		return errors.E(errors.Op("provider.SwitchChain"), err)
	}

	p.mu.Lock()
	p.active = params
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.mu.Unlock()

	p.reg.setActiveChainID(params.ChainID)
	log.Infof("Switched to %s (chain id %v)", params.Name, params.ChainID)

	p.feed.Send(Event{Type: ChainChanged, ChainID: new(big.Int).Set(params.ChainID)})
	return nil
}

// AddChain registers a network once the approver agrees. Adding a network
// does not activate it.
func (p *KeystoreProvider) AddChain(ctx context.Context, params *utils.ChainParams) error {
	const op errors.Op = "provider.AddChain"

	if params == nil {
		return errors.E(op, errors.Invalid, utils.ErrNoChainParams)
	}
	if err := params.Validate(); err != nil {
		return errors.E(op, errors.Invalid, err)
	}

	if err := p.approver.ApproveNetworkAddition(ctx, params.Copy()); err != nil {
		if errors.Is(err, ErrDeclined) {
			return userRejected("the network addition")
		}
		return errors.E(op, err)
	}

	if err := p.reg.saveNetwork(params); err != nil {
		return errors.E(op, errors.IO, err)
	}

	p.mu.Lock()
	p.networks[params.ChainID.String()] = params.Copy()
	p.mu.Unlock()

	log.Infof("Registered network %s (chain id %v)", params.Name, params.ChainID)
	return nil
}

// Networks lists the registered networks.
func (p *KeystoreProvider) Networks() []*utils.ChainParams {
	p.mu.RLock()
	defer p.mu.RUnlock()

	list := make([]*utils.ChainParams, 0, len(p.networks))
	for _, params := range p.networks {
		list = append(list, params.Copy())
	}
	return list
}

// Backend dials the active network on first use.
func (p *KeystoreProvider) Backend(ctx context.Context) (Backend, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return nil, &RPCError{Code: CodeDisconnected, Message: "no active network"}
	}
	if p.client != nil {
		return p.client, nil
	}

	client, err := ethclient.DialContext(ctx, p.active.RPCURL)
	if err != nil {
		log.Errorf("unable to dial %s: %v", p.active.RPCURL, err)
		return nil, errors.E(errors.Op("provider.Backend"), errors.IO, err)
	}
	p.client = client
	return client, nil
}

// Transactor returns transact options signing as from on the active
// network. Every signature goes through the approver, and a signature is
// refused if the active network changed after the options were issued.
func (p *KeystoreProvider) Transactor(ctx context.Context, from common.Address) (*bind.TransactOpts, error) {
	if !p.isAuthorized(from) || !p.ks.HasAddress(from) {
		return nil, unauthorized("account " + from.Hex() + " is not authorized")
	}

	network := p.ActiveNetwork()
	if network == nil {
		return nil, &RPCError{Code: CodeDisconnected, Message: "no active network"}
	}

	signer := func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if addr != from {
			return nil, bind.ErrNotAuthorized
		}

		current := p.ActiveNetwork()
		if current == nil || current.ChainID.Cmp(network.ChainID) != 0 {
			return nil, &RPCError{Code: CodeChainDisconnected, Message: "network changed while signing"}
		}

		passphrase, err := p.approver.ApproveTransaction(ctx, &TxRequest{
			From:    from,
			To:      tx.To(),
			Value:   tx.Value(),
			Network: network,
		})
		if err != nil {
			if errors.Is(err, ErrDeclined) {
				return nil, userRejected("transaction signature")
			}
			return nil, err
		}

		signed, err := p.ks.SignTxWithPassphrase(accounts.Account{Address: from}, passphrase, tx, network.ChainID)
		if err != nil {
			if err == keystore.ErrDecrypt {
				return nil, unauthorized("could not decrypt key with given passphrase")
			}
			return nil, err
		}
		return signed, nil
	}

	return &bind.TransactOpts{
		From:    from,
		Signer:  signer,
		Context: ctx,
	}, nil
}

// SubscribeEvents delivers provider events to ch until the subscription
// is cancelled or the provider is closed.
func (p *KeystoreProvider) SubscribeEvents(ch chan<- Event) event.Subscription {
	return p.scope.Track(p.feed.Subscribe(ch))
}

// NewAccount creates a key protected by passphrase.
func (p *KeystoreProvider) NewAccount(passphrase string) (common.Address, error) {
	acct, err := p.ks.NewAccount(passphrase)
	if err != nil {
		return common.Address{}, errors.E(errors.Op("provider.NewAccount"), err)
	}
	log.Infof("Created account %s", acct.Address.Hex())
	return acct.Address, nil
}

// ListAccounts lists every keystore account, authorized or not.
func (p *KeystoreProvider) ListAccounts() []common.Address {
	accts := p.ks.Accounts()
	addrs := make([]common.Address, 0, len(accts))
	for _, acct := range accts {
		addrs = append(addrs, acct.Address)
	}
	return addrs
}

// Close stops the keystore watcher, ends every subscription and releases
// the database.
func (p *KeystoreProvider) Close() error {
	p.ksSub.Unsubscribe()
	close(p.quit)
	// unblocks a pending feed send in the watcher
	p.scope.Close()
	p.wg.Wait()

	p.mu.Lock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.mu.Unlock()

	return p.reg.close()
}
