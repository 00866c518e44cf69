// Package hub keeps a client in sync with a CommunityHub contract. It
// verifies the session network and identity, mirrors proposal records,
// resolves vote statuses, drives writes from signature to confirmation and
// classifies their failures.
package hub

import (
	"context"

	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// Config configures a Hub.
type Config struct {
	// Provider may be nil when no wallet is available; every operation
	// then fails with ProviderMissing.
	Provider provider.Provider
	Ledger   Ledger
	Network  *utils.ChainParams
	Range    Range
	// ResolveConcurrency bounds concurrent vote status lookups.
	ResolveConcurrency int
}

// Hub wires the components of one session around a single provider handle.
type Hub struct {
	*notifier

	Guard        *NetworkGuard
	Connection   *ConnectionManager
	Repository   *Repository
	Resolver     *VoteStatusResolver
	Orchestrator *Orchestrator
}

func New(cfg *Config) (*Hub, error) {
	if cfg.Network == nil {
		return nil, utils.ErrNoChainParams
	}
	if err := cfg.Network.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Range.valid() {
		return nil, utils.ErrInvalidRange
	}

	n := newNotifier()
	guard := NewNetworkGuard(cfg.Provider, cfg.Network)
	resolver := NewVoteStatusResolver(cfg.Ledger, cfg.ResolveConcurrency)
	conn := NewConnectionManager(cfg.Provider, guard, resolver)
	conn.notifier = n
	repo := NewRepository(cfg.Ledger, guard, cfg.Range)
	repo.notifier = n
	orchestrator := NewOrchestrator(cfg.Ledger, guard, conn, repo, resolver)
	orchestrator.notifier = n

	return &Hub{
		notifier:     n,
		Guard:        guard,
		Connection:   conn,
		Repository:   repo,
		Resolver:     resolver,
		Orchestrator: orchestrator,
	}, nil
}

// Start subscribes to provider notifications and adopts an already
// authorized identity, if any.
func (h *Hub) Start(ctx context.Context) ConnectionState {
	h.Connection.Start()
	return h.Connection.TrySilentConnect(ctx)
}

// Close ends the provider subscription.
func (h *Hub) Close() {
	h.Connection.Close()
}

// VoteStatus resolves the connected identity's vote on proposal id.
func (h *Hub) VoteStatus(ctx context.Context, id uint64) VoteStatus {
	addr, ok := h.Connection.Address()
	if !ok {
		return VoteNone
	}
	return h.Resolver.Resolve(ctx, id, addr)
}

// ActionSet lists the actions offered on a proposal.
type ActionSet struct {
	Vote   bool
	Donate bool
	Close  bool
}

// Actions derives the actions offered to the connected identity. Votes
// need the designated network and no earlier vote; closing is reserved to
// the creator.
func Actions(p Proposal, status VoteStatus, conn ConnectionState) ActionSet {
	if !p.Open || !conn.IsConnected() {
		return ActionSet{}
	}
	return ActionSet{
		Vote:   !conn.WrongNetwork && status == VoteNone,
		Donate: true,
		Close:  conn.Address == p.Creator,
	}
}
