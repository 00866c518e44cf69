package libwallet

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"

	"decred.org/dcrwallet/v2/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"code.cryptopower.dev/group/communityhub/libwallet/contract"
	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

const (
	providerDbName = "provider.db"
	keystoreDir    = "keystore"
)

// DefaultRange is the proposal id range mirrored when none is configured.
var DefaultRange = hub.Range{From: 1, To: 100}

// InitParams configures a HubManager.
type InitParams struct {
	RootDir string
	NetType utils.NetworkType

	// Network replaces the built-in parameters of NetType when set.
	Network *utils.ChainParams
	// ContractAddress overrides the default deployment of NetType.
	ContractAddress string
	// KeystoreDir defaults to <RootDir>/<net>/keystore.
	KeystoreDir string
	Range       hub.Range
	Approver    provider.Approver
	LogLevel    string

	// ScryptN and ScryptP tune key encryption of new accounts.
	ScryptN int
	ScryptP int
}

// HubManager owns the wallet provider, the contract binding and the hub
// session built on them.
type HubManager struct {
	params *InitParams

	Provider *provider.KeystoreProvider
	Ledger   *contract.CommunityHub
	Hub      *hub.Hub

	shuttingDown chan bool
	shutdownOnce sync.Once

	cancelMtx    sync.Mutex
	cancelFuncs  map[uint64]context.CancelFunc
	nextCancelID uint64
}

func NewHubManager(params *InitParams) (*HubManager, error) {
	errors.Separator = ":: "

	if params.NetType == utils.Unknown || params.NetType == "" {
		return nil, utils.ErrInvalidNet
	}

	network := params.Network
	if network == nil {
		var err error
		network, err = utils.ETHChainParams(params.NetType)
		if err != nil {
			log.Errorf("error initializing network parameters: %v", err)
			return nil, err
		}
	}
	if err := network.Validate(); err != nil {
		return nil, errors.Errorf("invalid network parameters: %v", err)
	}

	address, err := contractAddress(params)
	if err != nil {
		return nil, err
	}

	rootDir := filepath.Join(params.RootDir, string(params.NetType))
	if err = os.MkdirAll(rootDir, utils.UserFilePerm); err != nil {
		return nil, errors.Errorf("failed to create rootDir: %v", err)
	}

	if err = initLogRotator(filepath.Join(rootDir, utils.LogFileName)); err != nil {
		return nil, errors.Errorf("failed to init logRotator: %v", err.Error())
	}

	ksDir := params.KeystoreDir
	if ksDir == "" {
		ksDir = filepath.Join(rootDir, keystoreDir)
	}

	p, err := provider.NewKeystoreProvider(&provider.Config{
		KeystoreDir:    ksDir,
		DBPath:         filepath.Join(rootDir, providerDbName),
		Networks:       []*utils.ChainParams{network},
		DefaultChainID: network.ChainID,
		Approver:       params.Approver,
		ScryptN:        params.ScryptN,
		ScryptP:        params.ScryptP,
	})
	if err != nil {
		log.Errorf("Error opening wallet provider: %v", err)
		return nil, err
	}

	ledger, err := contract.NewCommunityHub(address, p)
	if err != nil {
		p.Close()
		return nil, err
	}

	rng := params.Range
	if rng == (hub.Range{}) {
		rng = DefaultRange
	}

	h, err := hub.New(&hub.Config{
		Provider: p,
		Ledger:   ledger,
		Network:  network,
		Range:    rng,
	})
	if err != nil {
		p.Close()
		return nil, err
	}

	mgr := &HubManager{
		params:   params,
		Provider: p,
		Ledger:   ledger,
		Hub:      h,
	}
	mgr.params.RootDir = rootDir
	mgr.params.Network = network
	mgr.params.Range = rng

	mgr.listenForShutdown()

	logLevel := params.LogLevel
	if logLevel == "" {
		logLevel = utils.DefaultLogLevel
	}
	SetLogLevels(logLevel)

	log.Infof("Using CommunityHub %s on %s (chain id %v)", address.Hex(), network.Name, network.ChainID)
	return mgr, nil
}

func contractAddress(params *InitParams) (common.Address, error) {
	if params.ContractAddress != "" {
		addr, ok := utils.ParseAddress(params.ContractAddress)
		if !ok {
			return common.Address{}, errors.E(errors.Invalid, utils.ErrInvalidAddress)
		}
		return addr, nil
	}
	addr, ok := utils.DefaultContractAddresses[params.NetType]
	if !ok {
		return common.Address{}, errors.Errorf("no CommunityHub deployment known on %s, provide a contract address",
			params.NetType.Display())
	}
	return addr, nil
}

func (mgr *HubManager) listenForShutdown() {
	mgr.cancelFuncs = make(map[uint64]context.CancelFunc)
	mgr.shuttingDown = make(chan bool)
	go func() {
		<-mgr.shuttingDown
		mgr.cancelMtx.Lock()
		for _, cancel := range mgr.cancelFuncs {
			cancel()
		}
		// A nil map marks the manager as shut down.
		mgr.cancelFuncs = nil
		mgr.cancelMtx.Unlock()
	}()
}

// signalShutdown reports whether this call triggered the shutdown.
func (mgr *HubManager) signalShutdown() bool {
	first := false
	mgr.shutdownOnce.Do(func() {
		close(mgr.shuttingDown)
		first = true
	})
	return first
}

// contextWithShutdownCancel returns a context cancelled on Shutdown. Calling
// the returned cancel func releases it early.
func (mgr *HubManager) contextWithShutdownCancel() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	mgr.cancelMtx.Lock()
	defer mgr.cancelMtx.Unlock()
	if mgr.cancelFuncs == nil {
		cancel()
		return ctx, cancel
	}

	id := mgr.nextCancelID
	mgr.nextCancelID++
	mgr.cancelFuncs[id] = cancel
	return ctx, func() {
		cancel()
		mgr.cancelMtx.Lock()
		delete(mgr.cancelFuncs, id)
		mgr.cancelMtx.Unlock()
	}
}

// Start follows the provider and adopts an authorized identity silently.
// When load is true the proposal list is fetched as well; a failed initial
// load is returned but leaves the session usable.
func (mgr *HubManager) Start(load bool) (hub.ConnectionState, error) {
	ctx, _ := mgr.contextWithShutdownCancel()
	state := mgr.Hub.Start(ctx)
	log.Infof("Session %s", state)

	if !load {
		return state, nil
	}
	if _, err := mgr.Hub.Repository.Refresh(ctx); err != nil {
		log.Warnf("Initial proposal load failed: %v", err)
		return state, err
	}
	return state, nil
}

func (mgr *HubManager) Shutdown() {
	// Trigger shuttingDown signal to cancel all contexts created with `contextWithShutdownCancel`.
	if !mgr.signalShutdown() {
		return
	}
	log.Info("Shutting down communityhub")

	mgr.Hub.Close()

	if err := mgr.Provider.Close(); err != nil {
		log.Errorf("provider closed with error: %v", err)
	} else {
		log.Info("provider closed successfully")
	}

	if logRotator != nil {
		log.Info("Shutting down log rotator")
		logRotator.Close()
		logRotator = nil
	}
}

func (mgr *HubManager) NetType() utils.NetworkType {
	return mgr.params.NetType
}

// Network returns the parameters of the designated network.
func (mgr *HubManager) Network() *utils.ChainParams {
	return mgr.params.Network.Copy()
}

func (mgr *HubManager) LogDir() string {
	return filepath.Join(mgr.params.RootDir, utils.LogFileName)
}

func (mgr *HubManager) Connect() (hub.ConnectionState, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Connection.Connect(ctx)
}

func (mgr *HubManager) Refresh() ([]hub.Proposal, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Repository.Refresh(ctx)
}

func (mgr *HubManager) Proposal(id uint64) (*hub.Proposal, error) {
	if p, ok := mgr.Hub.Repository.Get(id); ok {
		return &p, nil
	}
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Repository.Fetch(ctx, id)
}

// VoteStatuses resolves the connected identity's vote on every listed
// proposal.
func (mgr *HubManager) VoteStatuses(proposals []hub.Proposal) map[uint64]hub.VoteStatus {
	addr, ok := mgr.Hub.Connection.Address()
	if !ok {
		return map[uint64]hub.VoteStatus{}
	}
	ids := make([]uint64, 0, len(proposals))
	for _, p := range proposals {
		ids = append(ids, p.ID)
	}
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Resolver.ResolveAll(ctx, ids, addr)
}

func (mgr *HubManager) VoteStatus(id uint64) hub.VoteStatus {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.VoteStatus(ctx, id)
}

func (mgr *HubManager) CreateProposal(description, beneficiary string) (*hub.Result, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Orchestrator.Create(ctx, description, beneficiary)
}

func (mgr *HubManager) Vote(id uint64, support bool) (*hub.Result, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Orchestrator.Vote(ctx, id, support)
}

func (mgr *HubManager) Donate(id uint64, amount string) (*hub.Result, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Orchestrator.Donate(ctx, id, amount)
}

func (mgr *HubManager) CloseProposal(id uint64) (*hub.Result, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	return mgr.Hub.Orchestrator.Close(ctx, id)
}

// NewAccount creates a keystore account encrypted with passphrase.
func (mgr *HubManager) NewAccount(passphrase string) (common.Address, error) {
	addr, err := mgr.Provider.NewAccount(passphrase)
	if err != nil {
		return addr, utils.TranslateError(err)
	}
	return addr, nil
}

// ListAccounts returns every keystore account, authorized or not.
func (mgr *HubManager) ListAccounts() []common.Address {
	return mgr.Provider.ListAccounts()
}

// Balance returns the native balance of addr on the active network.
func (mgr *HubManager) Balance(addr common.Address) (*big.Int, error) {
	ctx, cancel := mgr.contextWithShutdownCancel()
	defer cancel()
	backend, err := mgr.Provider.Backend(ctx)
	if err != nil {
		return nil, err
	}
	reader, ok := backend.(ethereum.ChainStateReader)
	if !ok {
		return nil, errors.E(errors.Invalid, "backend cannot read balances")
	}
	return reader.BalanceAt(ctx, addr, nil)
}
