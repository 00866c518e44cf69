// Package provider models the wallet provider: the agent that holds the
// signing keys, knows which networks exist and which one is active, and asks
// the user before authorizing an account, switching networks or signing.
//
// Failures are reported with the EIP-1193 provider error codes so that the
// callers can treat wallet errors and node errors the same way.
package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// EIP-1193 provider error codes and the JSON-RPC internal error code.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeInternalError     = -32603
	CodeExecutionReverted = 3
)

// Backend is the node connection used for contract calls and receipts.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Provider is the handle the client holds on the wallet. It is passed
// explicitly to every component that needs it.
type Provider interface {
	// Accounts returns the accounts already authorized for this client
	// without prompting the user.
	Accounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts asks the user to authorize an account.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	// ChainID returns the chain id of the active network.
	ChainID(ctx context.Context) (*big.Int, error)
	// SwitchChain asks the user to make chainID the active network.
	SwitchChain(ctx context.Context, chainID *big.Int) error
	// AddChain asks the user to register a network.
	AddChain(ctx context.Context, params *utils.ChainParams) error
	// Backend returns the node connection of the active network.
	Backend(ctx context.Context) (Backend, error)
	// Transactor returns transact options that sign as from on the active
	// network, prompting the user for every signature.
	Transactor(ctx context.Context, from common.Address) (*bind.TransactOpts, error)
	// SubscribeEvents delivers account and network changes to ch.
	SubscribeEvents(ch chan<- Event) event.Subscription
}

// EventType identifies an out-of-band provider notification.
type EventType int

const (
	// AccountsChanged is sent when the set of authorized accounts changes.
	AccountsChanged EventType = iota
	// ChainChanged is sent when the active network changes.
	ChainChanged
)

func (t EventType) String() string {
	switch t {
	case AccountsChanged:
		return "accountsChanged"
	case ChainChanged:
		return "chainChanged"
	default:
		return "unknown"
	}
}

// Event is a provider notification.
type Event struct {
	Type     EventType
	Accounts []common.Address
	ChainID  *big.Int
}

// RPCError is a provider error carrying an EIP-1193 code.
type RPCError struct {
	Code    int
	Message string
	Data    interface{}
}

var (
	_ rpc.Error     = (*RPCError)(nil)
	_ rpc.DataError = (*RPCError)(nil)
)

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// ErrorCode implements rpc.Error.
func (e *RPCError) ErrorCode() int { return e.Code }

// ErrorData implements rpc.DataError.
func (e *RPCError) ErrorData() interface{} { return e.Data }

func userRejected(request string) *RPCError {
	return &RPCError{Code: CodeUserRejected, Message: "user rejected " + request}
}

func unrecognizedChain(chainID *big.Int) *RPCError {
	return &RPCError{
		Code:    CodeUnrecognizedChain,
		Message: fmt.Sprintf("unrecognized chain id %v, try adding the chain first", chainID),
	}
}

func unauthorized(msg string) *RPCError {
	return &RPCError{Code: CodeUnauthorized, Message: msg}
}
