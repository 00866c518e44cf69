package hub

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// Result is the outcome of a confirmed write.
type Result struct {
	Tx         PendingTransaction
	ProposalID uint64
	// VoteStatus is set after a vote.
	VoteStatus VoteStatus
	// RefreshErr is set when the transaction confirmed but re-reading the
	// proposals afterwards failed.
	RefreshErr error
}

type slotKey struct {
	kind       Action
	proposalID uint64
}

// Orchestrator issues the state-changing calls and follows each one until
// it is confirmed or failed. At most one transaction per action and
// proposal is in flight.
type Orchestrator struct {
	ledger   Ledger
	guard    *NetworkGuard
	conn     *ConnectionManager
	repo     *Repository
	resolver *VoteStatusResolver
	notifier *notifier

	inFlightMu sync.Mutex
	inFlight   map[slotKey]*PendingTransaction
}

func NewOrchestrator(ledger Ledger, guard *NetworkGuard, conn *ConnectionManager, repo *Repository, resolver *VoteStatusResolver) *Orchestrator {
	return &Orchestrator{
		ledger:   ledger,
		guard:    guard,
		conn:     conn,
		repo:     repo,
		resolver: resolver,
		inFlight: make(map[slotKey]*PendingTransaction),
	}
}

// Create submits a new proposal paying donations to beneficiary.
func (o *Orchestrator) Create(ctx context.Context, description, beneficiary string) (*Result, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, newError(InvalidInput, ActionCreate, "description is required", nil)
	}
	beneficiaryAddr, ok := utils.ParseAddress(beneficiary)
	if !ok {
		return nil, newError(InvalidInput, ActionCreate, "beneficiary is not a valid address", nil)
	}

	return o.run(ctx, ActionCreate, 0, func(ctx context.Context, from common.Address) (*Submission, error) {
		return o.ledger.CreateProposal(ctx, from, description, beneficiaryAddr)
	})
}

// Vote votes on proposal id.
func (o *Orchestrator) Vote(ctx context.Context, id uint64, support bool) (*Result, error) {
	if id == 0 {
		return nil, newError(InvalidInput, ActionVote, "proposal id must be positive", nil)
	}

	return o.run(ctx, ActionVote, id, func(ctx context.Context, from common.Address) (*Submission, error) {
		return o.ledger.Vote(ctx, from, id, support)
	})
}

// Donate sends amount, in whole native units such as "2.5", to proposal id.
func (o *Orchestrator) Donate(ctx context.Context, id uint64, amount string) (*Result, error) {
	if id == 0 {
		return nil, newError(InvalidInput, ActionDonate, "proposal id must be positive", nil)
	}
	value, err := utils.ParseAmount(amount, o.guard.Target().Currency.Decimals)
	if err != nil {
		return nil, newError(InvalidInput, ActionDonate, "amount must be a positive number", err)
	}

	return o.run(ctx, ActionDonate, id, func(ctx context.Context, from common.Address) (*Submission, error) {
		return o.ledger.Donate(ctx, from, id, value)
	})
}

// Close closes proposal id. Only its creator can.
func (o *Orchestrator) Close(ctx context.Context, id uint64) (*Result, error) {
	if id == 0 {
		return nil, newError(InvalidInput, ActionClose, "proposal id must be positive", nil)
	}

	return o.run(ctx, ActionClose, id, func(ctx context.Context, from common.Address) (*Submission, error) {
		return o.ledger.CloseProposal(ctx, from, id)
	})
}

// InFlight lists the transactions awaiting a signature or confirmation.
func (o *Orchestrator) InFlight() []PendingTransaction {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()

	txs := make([]PendingTransaction, 0, len(o.inFlight))
	for _, tx := range o.inFlight {
		txs = append(txs, *tx)
	}
	return txs
}

type submitFunc func(ctx context.Context, from common.Address) (*Submission, error)

func (o *Orchestrator) run(ctx context.Context, kind Action, proposalID uint64, submit submitFunc) (*Result, error) {
	from, ok := o.conn.Address()
	if !ok {
		return nil, newError(NotConnected, kind, "", nil)
	}
	if o.ledger == nil {
		return nil, newError(ProviderMissing, kind, "", nil)
	}

	tx, err := o.claim(kind, proposalID)
	if err != nil {
		return nil, err
	}
	defer o.release(tx)

	o.setState(tx, TxPreparing)
	if err := o.guard.EnsureNetwork(ctx); err != nil {
		return nil, o.fail(tx, Classify(kind, err))
	}

	o.setState(tx, TxAwaitingSignature)
	sub, err := submit(ctx, from)
	if err != nil {
		return nil, o.fail(tx, Classify(kind, err))
	}

	hash := sub.TxHash
	o.update(tx, func(tx *PendingTransaction) {
		tx.State = TxSubmitted
		tx.SubmittedAt = time.Now()
		tx.TxHash = &hash
		tx.TxURL = o.guard.Target().TxURL(hash.Hex())
		if kind == ActionCreate {
			tx.ProposalID = sub.ProposalID
		}
	})
	log.Infof("%s transaction %s submitted: %s", kind, tx.ID, hash.Hex())

	// Confirmation has no upper bound, only ctx ends the wait.
	if err := o.ledger.WaitConfirmed(ctx, hash); err != nil {
		return nil, o.fail(tx, Classify(kind, err))
	}

	result := &Result{ProposalID: o.snapshot(tx).ProposalID}
	if _, err := o.repo.Refresh(ctx); err != nil {
		log.Warnf("%s transaction %s confirmed but refresh failed: %v", kind, tx.ID, err)
		result.RefreshErr = err
	}
	if kind == ActionVote {
		result.VoteStatus = o.resolver.Reload(ctx, proposalID, from)
	}

	o.setState(tx, TxConfirmed)
	result.Tx = o.snapshot(tx)
	log.Infof("%s transaction %s confirmed", kind, tx.ID)

	return result, nil
}

func (o *Orchestrator) claim(kind Action, proposalID uint64) (*PendingTransaction, error) {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()

	key := slotKey{kind: kind, proposalID: proposalID}
	if pending, ok := o.inFlight[key]; ok {
		detail := "a " + string(kind) + " is " + pending.State.String()
		return nil, newError(OperationInProgress, kind, detail, nil)
	}

	tx := &PendingTransaction{
		ID:         uuid.New().String(),
		Kind:       kind,
		ProposalID: proposalID,
		State:      TxIdle,
	}
	o.inFlight[key] = tx
	return tx, nil
}

func (o *Orchestrator) release(tx *PendingTransaction) {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()

	// create transactions learn their proposal id after submission
	for key, pending := range o.inFlight {
		if pending == tx {
			delete(o.inFlight, key)
		}
	}
}

func (o *Orchestrator) fail(tx *PendingTransaction, err *Error) error {
	o.update(tx, func(tx *PendingTransaction) {
		tx.State = TxFailed
		tx.Err = err
	})
	log.Errorf("%s transaction %s failed: %v (%s)", tx.Kind, tx.ID, err, err.Diagnostic())
	return err
}

func (o *Orchestrator) setState(tx *PendingTransaction, state TxState) {
	o.update(tx, func(tx *PendingTransaction) {
		tx.State = state
	})
}

func (o *Orchestrator) update(tx *PendingTransaction, fn func(tx *PendingTransaction)) {
	o.inFlightMu.Lock()
	fn(tx)
	snapshot := *tx
	o.inFlightMu.Unlock()

	o.notifier.publishTransactionState(&snapshot)
}

func (o *Orchestrator) snapshot(tx *PendingTransaction) PendingTransaction {
	o.inFlightMu.Lock()
	defer o.inFlightMu.Unlock()
	return *tx
}
