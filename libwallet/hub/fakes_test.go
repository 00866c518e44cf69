package hub_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"

	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

var (
	identityX = common.HexToAddress("0x1000000000000000000000000000000000000001")
	identityY = common.HexToAddress("0x2000000000000000000000000000000000000002")
	identityZ = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

// revertError mimics a node refusing a call with an Error(string) reason.
func revertError(reason string) error {
	stringType, _ := abi.NewType("string", "", nil)
	packed, _ := abi.Arguments{{Type: stringType}}.Pack(reason)
	data := append(common.FromHex("0x08c379a0"), packed...)
	return &provider.RPCError{
		Code:    provider.CodeExecutionReverted,
		Message: "execution reverted",
		Data:    hexutil.Encode(data),
	}
}

type fakeLedger struct {
	mu        sync.Mutex
	proposals []*hub.Proposal
	votes     map[uint64]map[common.Address]hub.VoteStatus
	txCount   int64

	listErr   error
	statusErr error
	listCalls int
	voteCalls int
	// voteGate, when set, holds Vote until it is closed.
	voteGate chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{votes: make(map[uint64]map[common.Address]hub.VoteStatus)}
}

func (l *fakeLedger) nextHash() common.Hash {
	l.txCount++
	return common.BigToHash(big.NewInt(l.txCount))
}

func (l *fakeLedger) find(id uint64) *hub.Proposal {
	for _, p := range l.proposals {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (l *fakeLedger) ListProposals(_ context.Context, from, to uint64) ([]*hub.Proposal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.listCalls++
	if l.listErr != nil {
		return nil, l.listErr
	}
	var list []*hub.Proposal
	for _, p := range l.proposals {
		if p.ID >= from && p.ID <= to {
			c := *p
			c.Donated = new(big.Int).Set(p.Donated)
			list = append(list, &c)
		}
	}
	return list, nil
}

func (l *fakeLedger) VoteStatus(_ context.Context, id uint64, voter common.Address) (hub.VoteStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.statusErr != nil {
		return hub.VoteNone, l.statusErr
	}
	return l.votes[id][voter], nil
}

func (l *fakeLedger) CreateProposal(_ context.Context, from common.Address, description string, beneficiary common.Address) (*hub.Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := uint64(len(l.proposals) + 1)
	l.proposals = append(l.proposals, &hub.Proposal{
		ID:          id,
		Creator:     from,
		Beneficiary: beneficiary,
		Description: description,
		Donated:     new(big.Int),
		CreatedAt:   time.Unix(1700000000, 0),
		Open:        true,
	})
	return &hub.Submission{TxHash: l.nextHash(), ProposalID: id}, nil
}

func (l *fakeLedger) Vote(_ context.Context, from common.Address, id uint64, support bool) (*hub.Submission, error) {
	l.mu.Lock()
	l.voteCalls++
	gate := l.voteGate
	l.mu.Unlock()

	if gate != nil {
		<-gate
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.find(id)
	if p == nil || !p.Open {
		return nil, revertError("Proposal closed")
	}
	if l.votes[id][from] != hub.VoteNone {
		return nil, revertError("Already voted")
	}
	if l.votes[id] == nil {
		l.votes[id] = make(map[common.Address]hub.VoteStatus)
	}
	if support {
		p.VotesYes++
		l.votes[id][from] = hub.VoteYes
	} else {
		p.VotesNo++
		l.votes[id][from] = hub.VoteNo
	}
	return &hub.Submission{TxHash: l.nextHash()}, nil
}

func (l *fakeLedger) Donate(_ context.Context, _ common.Address, id uint64, amount *big.Int) (*hub.Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.find(id)
	if p == nil || !p.Open {
		return nil, errors.New("execution reverted")
	}
	p.Donated = new(big.Int).Add(p.Donated, amount)
	return &hub.Submission{TxHash: l.nextHash()}, nil
}

func (l *fakeLedger) CloseProposal(_ context.Context, from common.Address, id uint64) (*hub.Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p := l.find(id)
	if p == nil || !p.Open || p.Creator != from {
		return nil, &provider.RPCError{Code: provider.CodeInternalError, Message: "Internal JSON-RPC error."}
	}
	p.Open = false
	return &hub.Submission{TxHash: l.nextHash()}, nil
}

func (l *fakeLedger) WaitConfirmed(context.Context, common.Hash) error {
	return nil
}

func (l *fakeLedger) calls() (list, vote int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listCalls, l.voteCalls
}

type fakeProvider struct {
	mu         sync.Mutex
	authorized []common.Address
	candidate  common.Address
	chainID    *big.Int
	known      map[string]bool

	declineConnect bool
	declineSwitch  bool
	failAdd        bool

	switchCalls int
	addCalls    int

	feed event.Feed
}

func newFakeProvider(chainID *big.Int, candidate common.Address) *fakeProvider {
	return &fakeProvider{
		candidate: candidate,
		chainID:   chainID,
		known:     map[string]bool{chainID.String(): true},
	}
}

func (p *fakeProvider) Accounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]common.Address(nil), p.authorized...), nil
}

func (p *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	p.mu.Lock()
	if p.declineConnect {
		p.mu.Unlock()
		return nil, &provider.RPCError{Code: provider.CodeUserRejected, Message: "user rejected the request"}
	}
	p.authorized = []common.Address{p.candidate}
	accts := append([]common.Address(nil), p.authorized...)
	p.mu.Unlock()

	p.feed.Send(provider.Event{Type: provider.AccountsChanged, Accounts: accts})
	return accts, nil
}

func (p *fakeProvider) ChainID(context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.chainID), nil
}

func (p *fakeProvider) SwitchChain(_ context.Context, chainID *big.Int) error {
	p.mu.Lock()
	p.switchCalls++
	if !p.known[chainID.String()] {
		p.mu.Unlock()
		return &provider.RPCError{Code: provider.CodeUnrecognizedChain, Message: "unrecognized chain"}
	}
	if p.declineSwitch {
		p.mu.Unlock()
		return &provider.RPCError{Code: provider.CodeUserRejected, Message: "user rejected the network switch"}
	}
	p.chainID = new(big.Int).Set(chainID)
	p.mu.Unlock()

	p.feed.Send(provider.Event{Type: provider.ChainChanged, ChainID: chainID})
	return nil
}

func (p *fakeProvider) AddChain(_ context.Context, params *utils.ChainParams) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addCalls++
	if p.failAdd {
		return errors.New("registration failed")
	}
	p.known[params.ChainID.String()] = true
	return nil
}

func (p *fakeProvider) Backend(context.Context) (provider.Backend, error) {
	return nil, errors.New("no backend")
}

func (p *fakeProvider) Transactor(context.Context, common.Address) (*bind.TransactOpts, error) {
	return nil, errors.New("no signer")
}

func (p *fakeProvider) SubscribeEvents(ch chan<- provider.Event) event.Subscription {
	return p.feed.Subscribe(ch)
}

// emitAccounts simulates the user switching accounts in the wallet.
func (p *fakeProvider) emitAccounts(accts ...common.Address) {
	p.mu.Lock()
	p.authorized = accts
	p.mu.Unlock()
	p.feed.Send(provider.Event{Type: provider.AccountsChanged, Accounts: accts})
}

// emitChain simulates the user switching networks in the wallet.
func (p *fakeProvider) emitChain(chainID *big.Int) {
	p.mu.Lock()
	p.chainID = chainID
	p.mu.Unlock()
	p.feed.Send(provider.Event{Type: provider.ChainChanged, ChainID: chainID})
}

func (p *fakeProvider) counts() (switches, adds int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.switchCalls, p.addCalls
}

type recordingListener struct {
	mu          sync.Mutex
	refreshes   int
	txStates    []hub.TxState
	connections []hub.ConnectionState
}

func (r *recordingListener) OnProposalsRefreshed([]hub.Proposal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
}

func (r *recordingListener) OnTransactionStateChanged(tx hub.PendingTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txStates = append(r.txStates, tx.State)
}

func (r *recordingListener) OnConnectionStateChanged(state hub.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections = append(r.connections, state)
}

func (r *recordingListener) states() []hub.TxState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hub.TxState(nil), r.txStates...)
}
