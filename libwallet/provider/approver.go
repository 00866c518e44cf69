package provider

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// ErrDeclined is returned by an Approver when the user says no.
var ErrDeclined = errors.New("user declined the request")

// TxRequest summarizes a transaction awaiting the user's signature.
type TxRequest struct {
	From    common.Address
	To      *common.Address
	Value   *big.Int
	Network *utils.ChainParams
}

// Approver is the user-facing side of the wallet. Every method may block
// until the user answers.
type Approver interface {
	// ApproveConnection picks the account to authorize from candidates.
	ApproveConnection(ctx context.Context, candidates []common.Address) (common.Address, error)
	ApproveNetworkSwitch(ctx context.Context, params *utils.ChainParams) error
	ApproveNetworkAddition(ctx context.Context, params *utils.ChainParams) error
	// ApproveTransaction returns the passphrase unlocking the signing key.
	ApproveTransaction(ctx context.Context, req *TxRequest) (string, error)
}

// AutoApprover approves every request. Account, when set, is the account
// authorized on connection; otherwise the first candidate is used.
type AutoApprover struct {
	Account    common.Address
	Passphrase string
}

var _ Approver = (*AutoApprover)(nil)

func (a *AutoApprover) ApproveConnection(_ context.Context, candidates []common.Address) (common.Address, error) {
	if len(candidates) == 0 {
		return common.Address{}, errors.New(utils.ErrNoAccounts)
	}
	if a.Account == (common.Address{}) {
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c == a.Account {
			return c, nil
		}
	}
	return common.Address{}, errors.New(utils.ErrNotExist)
}

func (a *AutoApprover) ApproveNetworkSwitch(context.Context, *utils.ChainParams) error {
	return nil
}

func (a *AutoApprover) ApproveNetworkAddition(context.Context, *utils.ChainParams) error {
	return nil
}

func (a *AutoApprover) ApproveTransaction(context.Context, *TxRequest) (string, error) {
	return a.Passphrase, nil
}
