package hub

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// ErrProposalNotFound is returned by Fetch when the contract has no
// proposal with the requested id.
var ErrProposalNotFound = errors.New(utils.ErrNotExist)

// Repository mirrors the proposals of one id range. Every refresh replaces
// the whole cached sequence; a failed refresh keeps the previous one.
type Repository struct {
	ledger   Ledger
	guard    *NetworkGuard
	rng      Range
	notifier *notifier

	proposals atomic.Pointer[[]Proposal]
	refreshed atomic.Bool
}

func NewRepository(ledger Ledger, guard *NetworkGuard, rng Range) *Repository {
	r := &Repository{ledger: ledger, guard: guard, rng: rng}
	empty := make([]Proposal, 0)
	r.proposals.Store(&empty)
	return r
}

// Range returns the mirrored id range.
func (r *Repository) Range() Range {
	return r.rng
}

// Refresh re-reads the whole range from the contract and replaces the
// cache. The returned sequence is in the order the contract returned it.
func (r *Repository) Refresh(ctx context.Context) ([]Proposal, error) {
	ok, current, err := r.guard.VerifyNetwork(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(NetworkMismatch, ActionRefresh, "active chain id is "+current.String(), nil)
	}

	records, err := r.ledger.ListProposals(ctx, r.rng.From, r.rng.To)
	if err != nil {
		log.Errorf("Error fetching proposals %d..%d: %v", r.rng.From, r.rng.To, err)
		return nil, newError(FetchFailed, ActionRefresh, "", err)
	}

	proposals := make([]Proposal, 0, len(records))
	for _, p := range records {
		proposals = append(proposals, *p)
	}
	r.proposals.Store(&proposals)
	r.refreshed.Store(true)

	log.Debugf("Refreshed %d proposals in range %d..%d", len(proposals), r.rng.From, r.rng.To)
	r.notifier.publishProposalsRefreshed(copyProposals(proposals))

	return copyProposals(proposals), nil
}

// Refreshed reports whether at least one refresh succeeded.
func (r *Repository) Refreshed() bool {
	return r.refreshed.Load()
}

// Proposals returns the cached sequence.
func (r *Repository) Proposals() []Proposal {
	return copyProposals(*r.proposals.Load())
}

// Reversed returns the cached sequence newest first without touching the
// stored order.
func (r *Repository) Reversed() []Proposal {
	proposals := r.Proposals()
	for i, j := 0, len(proposals)-1; i < j; i, j = i+1, j-1 {
		proposals[i], proposals[j] = proposals[j], proposals[i]
	}
	return proposals
}

// ByCreator returns the cached proposals created by creator.
func (r *Repository) ByCreator(creator common.Address) []Proposal {
	var mine []Proposal
	for _, p := range *r.proposals.Load() {
		if p.Creator == creator {
			mine = append(mine, p)
		}
	}
	return mine
}

// Get returns a cached proposal.
func (r *Repository) Get(id uint64) (Proposal, bool) {
	for _, p := range *r.proposals.Load() {
		if p.ID == id {
			return p, true
		}
	}
	return Proposal{}, false
}

// Fetch reads a single proposal from the contract without replacing the
// cached sequence.
func (r *Repository) Fetch(ctx context.Context, id uint64) (*Proposal, error) {
	if id == 0 {
		return nil, newError(InvalidInput, ActionRefresh, "proposal id must be positive", nil)
	}

	ok, current, err := r.guard.VerifyNetwork(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(NetworkMismatch, ActionRefresh, "active chain id is "+current.String(), nil)
	}

	records, err := r.ledger.ListProposals(ctx, id, id)
	if err != nil {
		return nil, newError(FetchFailed, ActionRefresh, "", err)
	}
	if len(records) == 0 {
		return nil, ErrProposalNotFound
	}

	p := *records[0]
	return &p, nil
}

func copyProposals(proposals []Proposal) []Proposal {
	c := make([]Proposal, len(proposals))
	copy(c, proposals)
	return c
}
