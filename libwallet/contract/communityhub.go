// Package contract binds the CommunityHub contract to the hub Ledger
// interface.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"code.cryptopower.dev/group/communityhub/libwallet/hub"
	"code.cryptopower.dev/group/communityhub/libwallet/provider"
)

// CommunityHubABI is the subset of the contract interface the client uses.
const CommunityHubABI = `[
	{"type":"function","name":"listProposals","stateMutability":"view",
	 "inputs":[{"name":"fromId","type":"uint256"},{"name":"toId","type":"uint256"}],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"id","type":"uint256"},
		{"name":"creator","type":"address"},
		{"name":"beneficiary","type":"address"},
		{"name":"description","type":"string"},
		{"name":"votesYes","type":"uint256"},
		{"name":"votesNo","type":"uint256"},
		{"name":"donated","type":"uint256"},
		{"name":"createdAt","type":"uint256"},
		{"name":"open","type":"bool"}]}]},
	{"type":"function","name":"createProposal","stateMutability":"nonpayable",
	 "inputs":[{"name":"description","type":"string"},{"name":"beneficiary","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"vote","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"},{"name":"support","type":"bool"}],
	 "outputs":[]},
	{"type":"function","name":"donate","stateMutability":"payable",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"closeProposal","stateMutability":"nonpayable",
	 "inputs":[{"name":"id","type":"uint256"}],
	 "outputs":[]},
	{"type":"function","name":"getVoteStatus","stateMutability":"view",
	 "inputs":[{"name":"id","type":"uint256"},{"name":"voter","type":"address"}],
	 "outputs":[{"name":"","type":"uint8"}]}
]`

const defaultReceiptPollInterval = time.Second

// proposalRecord is the on-chain proposal tuple.
type proposalRecord struct {
	Id          *big.Int
	Creator     common.Address
	Beneficiary common.Address
	Description string
	VotesYes    *big.Int
	VotesNo     *big.Int
	Donated     *big.Int
	CreatedAt   *big.Int
	Open        bool
}

func (r *proposalRecord) toProposal() *hub.Proposal {
	return &hub.Proposal{
		ID:          r.Id.Uint64(),
		Creator:     r.Creator,
		Beneficiary: r.Beneficiary,
		Description: r.Description,
		VotesYes:    r.VotesYes.Uint64(),
		VotesNo:     r.VotesNo.Uint64(),
		Donated:     new(big.Int).Set(r.Donated),
		CreatedAt:   time.Unix(r.CreatedAt.Int64(), 0).UTC(),
		Open:        r.Open,
	}
}

// CommunityHub is a hub.Ledger talking to a deployed CommunityHub contract
// through the provider's active network.
type CommunityHub struct {
	address  common.Address
	abi      abi.ABI
	provider provider.Provider

	pollInterval time.Duration
}

var _ hub.Ledger = (*CommunityHub)(nil)

func NewCommunityHub(address common.Address, p provider.Provider) (*CommunityHub, error) {
	parsed, err := abi.JSON(strings.NewReader(CommunityHubABI))
	if err != nil {
		return nil, err
	}
	return &CommunityHub{
		address:      address,
		abi:          parsed,
		provider:     p,
		pollInterval: defaultReceiptPollInterval,
	}, nil
}

// Address returns the contract address.
func (c *CommunityHub) Address() common.Address {
	return c.address
}

// SetReceiptPollInterval changes how often WaitConfirmed polls for the
// receipt.
func (c *CommunityHub) SetReceiptPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// bound returns the contract bound to the provider's current backend. The
// backend changes when the provider switches networks.
func (c *CommunityHub) bound(ctx context.Context) (*bind.BoundContract, provider.Backend, error) {
	backend, err := c.provider.Backend(ctx)
	if err != nil {
		return nil, nil, err
	}
	return bind.NewBoundContract(c.address, c.abi, backend, backend, backend), backend, nil
}

func (c *CommunityHub) ListProposals(ctx context.Context, from, to uint64) ([]*hub.Proposal, error) {
	contract, _, err := c.bound(ctx)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	err = contract.Call(&bind.CallOpts{Context: ctx}, &out, "listProposals",
		new(big.Int).SetUint64(from), new(big.Int).SetUint64(to))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("abi: listProposals returned %d values", len(out))
	}

	records := *abi.ConvertType(out[0], new([]proposalRecord)).(*[]proposalRecord)
	proposals := make([]*hub.Proposal, 0, len(records))
	for i := range records {
		proposals = append(proposals, records[i].toProposal())
	}

	log.Tracef("listProposals(%d, %d) returned %d records", from, to, len(proposals))
	return proposals, nil
}

func (c *CommunityHub) VoteStatus(ctx context.Context, id uint64, voter common.Address) (hub.VoteStatus, error) {
	contract, _, err := c.bound(ctx)
	if err != nil {
		return hub.VoteNone, err
	}

	var out []interface{}
	err = contract.Call(&bind.CallOpts{Context: ctx}, &out, "getVoteStatus", new(big.Int).SetUint64(id), voter)
	if err != nil {
		return hub.VoteNone, err
	}
	if len(out) != 1 {
		return hub.VoteNone, fmt.Errorf("abi: getVoteStatus returned %d values", len(out))
	}

	status := *abi.ConvertType(out[0], new(uint8)).(*uint8)
	if status > uint8(hub.VoteNo) {
		return hub.VoteNone, fmt.Errorf("unexpected vote status %d", status)
	}
	return hub.VoteStatus(status), nil
}

// CreateProposal submits a proposal. The id the contract will assign is
// read with a call from the same sender right before submitting.
func (c *CommunityHub) CreateProposal(ctx context.Context, from common.Address, description string, beneficiary common.Address) (*hub.Submission, error) {
	contract, _, err := c.bound(ctx)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	err = contract.Call(&bind.CallOpts{From: from, Context: ctx}, &out, "createProposal", description, beneficiary)
	if err != nil {
		return nil, err
	}
	var predicted uint64
	if len(out) == 1 {
		predicted = (*abi.ConvertType(out[0], new(*big.Int)).(**big.Int)).Uint64()
	}

	tx, err := c.transact(ctx, contract, from, nil, "createProposal", description, beneficiary)
	if err != nil {
		return nil, err
	}
	return &hub.Submission{TxHash: tx.Hash(), ProposalID: predicted}, nil
}

func (c *CommunityHub) Vote(ctx context.Context, from common.Address, id uint64, support bool) (*hub.Submission, error) {
	contract, _, err := c.bound(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.transact(ctx, contract, from, nil, "vote", new(big.Int).SetUint64(id), support)
	if err != nil {
		return nil, err
	}
	return &hub.Submission{TxHash: tx.Hash(), ProposalID: id}, nil
}

func (c *CommunityHub) Donate(ctx context.Context, from common.Address, id uint64, amount *big.Int) (*hub.Submission, error) {
	contract, _, err := c.bound(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.transact(ctx, contract, from, amount, "donate", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return &hub.Submission{TxHash: tx.Hash(), ProposalID: id}, nil
}

func (c *CommunityHub) CloseProposal(ctx context.Context, from common.Address, id uint64) (*hub.Submission, error) {
	contract, _, err := c.bound(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.transact(ctx, contract, from, nil, "closeProposal", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return &hub.Submission{TxHash: tx.Hash(), ProposalID: id}, nil
}

func (c *CommunityHub) transact(ctx context.Context, contract *bind.BoundContract, from common.Address,
	value *big.Int, method string, params ...interface{}) (*types.Transaction, error) {
	opts, err := c.provider.Transactor(ctx, from)
	if err != nil {
		return nil, err
	}
	opts.Value = value

	tx, err := contract.Transact(opts, method, params...)
	if err != nil {
		return nil, err
	}
	log.Infof("Sent %s transaction %s from %s", method, tx.Hash().Hex(), from.Hex())
	return tx, nil
}

// WaitConfirmed polls for the receipt until the transaction is mined or
// ctx is done. Transient node errors are logged and polling continues.
func (c *CommunityHub) WaitConfirmed(ctx context.Context, txHash common.Hash) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		_, backend, err := c.bound(ctx)
		if err == nil {
			receipt, err := backend.TransactionReceipt(ctx, txHash)
			switch {
			case err == nil:
				if receipt.Status == types.ReceiptStatusFailed {
					return hub.ErrTransactionReverted
				}
				log.Debugf("Transaction %s mined in block %v", txHash.Hex(), receipt.BlockNumber)
				return nil
			case errors.Is(err, ethereum.NotFound):
				log.Trace("Transaction not yet mined")
			default:
				log.Tracef("Receipt retrieval failed: %v", err)
			}
		} else {
			log.Tracef("Backend unavailable: %v", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
