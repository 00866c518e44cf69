package hub

import (
	"context"
	"math/big"
	"sync"
	"time"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"code.cryptopower.dev/group/communityhub/libwallet/provider"
)

const chainQueryTimeout = 10 * time.Second

// ConnectionManager owns the session identity. The state is replaced as a
// whole, so readers always see a consistent value.
type ConnectionManager struct {
	provider provider.Provider
	guard    *NetworkGuard
	resolver *VoteStatusResolver
	notifier *notifier

	// mu serializes writers; readers load state without it.
	mu    sync.Mutex
	state atomic.Pointer[ConnectionState]

	startOnce sync.Once
	closeOnce sync.Once
	sub       event.Subscription
	quit      chan struct{}
	wg        sync.WaitGroup
}

func NewConnectionManager(p provider.Provider, guard *NetworkGuard, resolver *VoteStatusResolver) *ConnectionManager {
	c := &ConnectionManager{
		provider: p,
		guard:    guard,
		resolver: resolver,
		quit:     make(chan struct{}),
	}
	c.state.Store(&ConnectionState{Status: Disconnected})
	return c
}

// Start subscribes to provider notifications. It is safe to call more
// than once; only the first call subscribes.
func (c *ConnectionManager) Start() {
	if c.provider == nil {
		return
	}
	c.startOnce.Do(func() {
		events := make(chan provider.Event, 8)
		c.sub = c.provider.SubscribeEvents(events)
		c.wg.Add(1)
		go c.handleEvents(events)
	})
}

// Close ends the provider subscription and waits for the handler to exit.
func (c *ConnectionManager) Close() {
	c.closeOnce.Do(func() {
		if c.sub != nil {
			c.sub.Unsubscribe()
		}
		close(c.quit)
		c.wg.Wait()
	})
}

func (c *ConnectionManager) handleEvents(events chan provider.Event) {
	defer c.wg.Done()

	for {
		select {
		case ev := <-events:
			switch ev.Type {
			case provider.AccountsChanged:
				c.accountsChanged(ev.Accounts)
			case provider.ChainChanged:
				c.chainChanged(ev)
			}

		case err := <-c.sub.Err():
			if err != nil {
				log.Errorf("provider subscription failed: %v", err)
			}
			return

		case <-c.quit:
			return
		}
	}
}

func (c *ConnectionManager) accountsChanged(accounts []common.Address) {
	// The chain id is unknown until a connect or a chain change reported it.
	var chainID *big.Int
	if len(accounts) > 0 && c.State().ChainID == nil {
		ctx, cancel := context.WithTimeout(context.Background(), chainQueryTimeout)
		id, err := c.provider.ChainID(ctx)
		cancel()
		if err != nil {
			log.Debugf("chain id unavailable: %v", err)
		}
		chainID = id
	}

	c.mu.Lock()
	prev := c.State()
	next := prev
	if len(accounts) == 0 {
		next = ConnectionState{Status: Disconnected, ChainID: prev.ChainID}
	} else {
		next.Status = Connected
		next.Address = accounts[0]
		if next.ChainID == nil {
			next.ChainID = chainID
		}
		next.WrongNetwork = next.ChainID != nil && !c.guard.IsTarget(next.ChainID)
	}

	if next.Address != prev.Address || next.Status != prev.Status {
		log.Infof("Account changed: %v -> %v", prev, next)
		c.resolver.Invalidate()
	}
	c.state.Store(&next)
	c.mu.Unlock()

	c.notifier.publishConnectionState(next)
}

func (c *ConnectionManager) chainChanged(ev provider.Event) {
	c.mu.Lock()
	next := c.State()
	next.ChainID = ev.ChainID
	next.WrongNetwork = next.IsConnected() && !c.guard.IsTarget(ev.ChainID)
	if next.WrongNetwork {
		log.Warnf("Provider switched to chain id %v, expected %v", ev.ChainID, c.guard.Target().ChainID)
	}
	c.state.Store(&next)
	c.mu.Unlock()

	c.notifier.publishConnectionState(next)
}

// State returns the current connection state.
func (c *ConnectionManager) State() ConnectionState {
	return *c.state.Load()
}

// Address returns the adopted identity.
func (c *ConnectionManager) Address() (common.Address, bool) {
	state := c.State()
	return state.Address, state.IsConnected()
}

// TrySilentConnect adopts an identity the provider already authorized
// without prompting. It never fails; the state stays Disconnected when no
// identity is available.
func (c *ConnectionManager) TrySilentConnect(ctx context.Context) ConnectionState {
	if c.provider == nil {
		return c.State()
	}

	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		log.Debugf("silent connect: %v", err)
		return c.State()
	}
	if len(accounts) == 0 {
		return c.State()
	}

	ok, chainID, err := c.guard.VerifyNetwork(ctx)
	if err != nil {
		log.Debugf("silent connect: %v", err)
	}

	state := ConnectionState{
		Status:       Connected,
		Address:      accounts[0],
		WrongNetwork: err == nil && !ok,
		ChainID:      chainID,
	}
	c.adopt(state)
	return state
}

// Connect makes the designated network active, then asks the user to
// authorize an identity. The state is untouched on failure.
func (c *ConnectionManager) Connect(ctx context.Context) (ConnectionState, error) {
	if c.provider == nil {
		return c.State(), newError(ProviderMissing, ActionConnect, "", nil)
	}

	if err := c.guard.EnsureNetwork(ctx); err != nil {
		return c.State(), Classify(ActionConnect, err)
	}

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		classified := Classify(ActionConnect, err)
		if classified.Kind == UserRejected {
			classified.Kind = UserRejectedConnection
		}
		return c.State(), classified
	}
	if len(accounts) == 0 {
		return c.State(), newError(Unknown, ActionConnect, "provider authorized no account", nil)
	}

	state := ConnectionState{
		Status:  Connected,
		Address: accounts[0],
		ChainID: c.guard.Target().ChainID,
	}
	c.adopt(state)
	return state, nil
}

func (c *ConnectionManager) adopt(state ConnectionState) {
	c.mu.Lock()
	if c.State().Address != state.Address {
		c.resolver.Invalidate()
	}
	c.state.Store(&state)
	c.mu.Unlock()

	log.Infof("Connected as %s", state.Address.Hex())
	c.notifier.publishConnectionState(state)
}
