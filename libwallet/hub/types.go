package hub

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrTransactionReverted is returned by a Ledger when a mined transaction
// has a failed receipt status.
var ErrTransactionReverted = errors.New("transaction reverted")

// Proposal is a cached copy of a proposal record held by the contract.
// Only the tally fields and Open ever change remotely.
type Proposal struct {
	ID          uint64         `json:"id"`
	Creator     common.Address `json:"creator"`
	Beneficiary common.Address `json:"beneficiary"`
	Description string         `json:"description"`
	VotesYes    uint64         `json:"votesYes"`
	VotesNo     uint64         `json:"votesNo"`
	Donated     *big.Int       `json:"donated"`
	CreatedAt   time.Time      `json:"createdAt"`
	Open        bool           `json:"open"`
}

// VoteStatus is how an identity voted on a proposal.
type VoteStatus uint8

const (
	VoteNone VoteStatus = iota
	VoteYes
	VoteNo
)

func (s VoteStatus) String() string {
	switch s {
	case VoteNone:
		return "none"
	case VoteYes:
		return "yes"
	case VoteNo:
		return "no"
	default:
		return fmt.Sprintf("VoteStatus(%d)", uint8(s))
	}
}

// Range is an inclusive proposal id range.
type Range struct {
	From uint64
	To   uint64
}

func (r Range) valid() bool {
	return r.From > 0 && r.From <= r.To
}

// Contains reports whether id falls in the range.
func (r Range) Contains(id uint64) bool {
	return id >= r.From && id <= r.To
}

// ConnectionStatus is the identity half of a ConnectionState.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connected
)

// ConnectionState is the session connection as seen by every component.
// WrongNetwork overlays Connected: the address is kept while the active
// network differs from the designated one.
type ConnectionState struct {
	Status       ConnectionStatus
	Address      common.Address
	WrongNetwork bool
	ChainID      *big.Int
}

// IsConnected reports whether an identity is adopted.
func (s ConnectionState) IsConnected() bool {
	return s.Status == Connected
}

func (s ConnectionState) String() string {
	switch {
	case s.Status != Connected:
		return "disconnected"
	case s.WrongNetwork:
		return "connected(" + s.Address.Hex() + ", wrong network)"
	default:
		return "connected(" + s.Address.Hex() + ")"
	}
}

// Action names a user operation. Transaction kinds are the write actions.
type Action string

const (
	ActionConnect Action = "connect"
	ActionRefresh Action = "refresh"
	ActionCreate  Action = "create"
	ActionVote    Action = "vote"
	ActionDonate  Action = "donate"
	ActionClose   Action = "close"
)

// TxState is the lifecycle of an issued transaction.
type TxState int

const (
	TxIdle TxState = iota
	TxPreparing
	TxAwaitingSignature
	TxSubmitted
	TxConfirmed
	TxFailed
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxPreparing:
		return "preparing"
	case TxAwaitingSignature:
		return "awaiting signature"
	case TxSubmitted:
		return "submitted"
	case TxConfirmed:
		return "confirmed"
	case TxFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PendingTransaction tracks one write from the user's confirmation until it
// resolves. Listeners receive copies.
type PendingTransaction struct {
	ID          string
	Kind        Action
	ProposalID  uint64
	State       TxState
	SubmittedAt time.Time
	TxHash      *common.Hash
	TxURL       string
	Err         error
}

// Submission is what the ledger returns once a write is accepted.
type Submission struct {
	TxHash common.Hash
	// ProposalID is the id a created proposal is assigned.
	ProposalID uint64
}

// Ledger is the remote contract surface.
type Ledger interface {
	ListProposals(ctx context.Context, from, to uint64) ([]*Proposal, error)
	VoteStatus(ctx context.Context, id uint64, voter common.Address) (VoteStatus, error)

	CreateProposal(ctx context.Context, from common.Address, description string, beneficiary common.Address) (*Submission, error)
	Vote(ctx context.Context, from common.Address, id uint64, support bool) (*Submission, error)
	Donate(ctx context.Context, from common.Address, id uint64, amount *big.Int) (*Submission, error)
	CloseProposal(ctx context.Context, from common.Address, id uint64) (*Submission, error)

	// WaitConfirmed blocks until the transaction is mined. It returns
	// ErrTransactionReverted if the transaction failed.
	WaitConfirmed(ctx context.Context, txHash common.Hash) error
}
