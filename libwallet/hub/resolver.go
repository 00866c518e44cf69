package hub

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const defaultResolveConcurrency = 4

// VoteStatusResolver looks up how an identity voted. Results are cached
// for the current identity only; any identity change drops the cache.
//
// A failed lookup resolves to VoteNone so the vote action stays available.
// A real duplicate vote is refused by the contract later.
type VoteStatusResolver struct {
	ledger      Ledger
	concurrency int

	mu       sync.Mutex
	identity common.Address
	cache    map[uint64]VoteStatus
}

func NewVoteStatusResolver(ledger Ledger, concurrency int) *VoteStatusResolver {
	if concurrency <= 0 {
		concurrency = defaultResolveConcurrency
	}
	return &VoteStatusResolver{
		ledger:      ledger,
		concurrency: concurrency,
		cache:       make(map[uint64]VoteStatus),
	}
}

// Resolve returns the vote status of identity on proposal id, from the
// cache when possible. A zero identity is never looked up.
func (r *VoteStatusResolver) Resolve(ctx context.Context, id uint64, identity common.Address) VoteStatus {
	if identity == (common.Address{}) {
		return VoteNone
	}

	r.mu.Lock()
	if r.identity == identity {
		if status, ok := r.cache[id]; ok {
			r.mu.Unlock()
			return status
		}
	}
	r.mu.Unlock()

	return r.lookup(ctx, id, identity)
}

// Reload bypasses the cache.
func (r *VoteStatusResolver) Reload(ctx context.Context, id uint64, identity common.Address) VoteStatus {
	if identity == (common.Address{}) {
		return VoteNone
	}
	return r.lookup(ctx, id, identity)
}

func (r *VoteStatusResolver) lookup(ctx context.Context, id uint64, identity common.Address) VoteStatus {
	if r.ledger == nil {
		return VoteNone
	}

	status, err := r.ledger.VoteStatus(ctx, id, identity)
	if err != nil {
		log.Debugf("vote status of %s on proposal %d unavailable: %v", identity.Hex(), id, err)
		return VoteNone
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identity != identity {
		r.identity = identity
		r.cache = make(map[uint64]VoteStatus)
	}
	r.cache[id] = status
	return status
}

// ResolveAll resolves the statuses of several proposals concurrently.
func (r *VoteStatusResolver) ResolveAll(ctx context.Context, ids []uint64, identity common.Address) map[uint64]VoteStatus {
	statuses := make([]VoteStatus, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			statuses[i] = r.Resolve(gctx, id, identity)
			return nil
		})
	}
	_ = g.Wait()

	result := make(map[uint64]VoteStatus, len(ids))
	for i, id := range ids {
		result[id] = statuses[i]
	}
	return result
}

// Invalidate drops every cached status.
func (r *VoteStatusResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.identity = common.Address{}
	r.cache = make(map[uint64]VoteStatus)
}
