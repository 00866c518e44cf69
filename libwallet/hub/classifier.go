package hub

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"code.cryptopower.dev/group/communityhub/libwallet/provider"
)

// genericRejections name the likely causes when the contract refuses a
// transition without a reason.
var genericRejections = map[Action]string{
	ActionCreate: "check the description and beneficiary address",
	ActionVote:   "already voted, proposal closed, or no voting power",
	ActionDonate: "the proposal may be closed",
	ActionClose:  "only the creator can close an open proposal",
}

// Classify maps a raw remote-call failure to exactly one Kind. The checks
// run in priority order: user rejection, network mismatch, contract
// rejection, transport failure. Anything else is Unknown and keeps the raw
// message. Errors that are already classified pass through; one carrying no
// action is copied and labelled, the original is left untouched.
func Classify(action Action, err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		if classified.Action != "" {
			return classified
		}
		labelled := *classified
		labelled.Action = action
		return &labelled
	}

	code, hasCode := rpcCode(err)
	msg := strings.ToLower(err.Error())

	switch {
	case isUserRejection(err, code, hasCode, msg):
		return newError(UserRejected, action, "", err)

	case isNetworkMismatch(err, code, hasCode, msg):
		return newError(NetworkMismatch, action, "", err)

	case isContractRejection(err, code, hasCode, msg):
		detail := revertReason(err)
		if detail == "" {
			detail = genericRejections[action]
		}
		return newError(ContractRejected, action, detail, err)

	case isTransportFailure(err, msg):
		return newError(TransportFailure, action, "", err)
	}

	return newError(Unknown, action, err.Error(), err)
}

func rpcCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}

func isUserRejection(err error, code int, hasCode bool, msg string) bool {
	if hasCode && code == provider.CodeUserRejected {
		return true
	}
	if errors.Is(err, provider.ErrDeclined) {
		return true
	}
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

func isNetworkMismatch(err error, code int, hasCode bool, msg string) bool {
	if hasCode && code == provider.CodeChainDisconnected {
		return true
	}
	if errors.Is(err, types.ErrInvalidChainId) {
		return true
	}
	return strings.Contains(msg, "network changed") ||
		strings.Contains(msg, "chain id mismatch") ||
		strings.Contains(msg, "invalid chain id")
}

func isContractRejection(err error, code int, hasCode bool, msg string) bool {
	if hasCode && (code == provider.CodeInternalError || code == provider.CodeExecutionReverted) {
		return true
	}
	if errors.Is(err, ErrTransactionReverted) {
		return true
	}
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

func isTransportFailure(err error, msg string) bool {
	var (
		netErr       net.Error
		urlErr       *url.Error
		httpErr      rpc.HTTPError
		syntaxErr    *json.SyntaxError
		unmarshalErr *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &netErr), errors.As(err, &urlErr), errors.As(err, &httpErr):
		return true
	case errors.As(err, &syntaxErr), errors.As(err, &unmarshalErr):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, syscall.ECONNREFUSED):
		return true
	}
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") ||
		strings.HasPrefix(msg, "abi: ")
}

// revertReason extracts the Error(string) reason of a revert, from the
// error data when the node supplied it, else from the message.
func revertReason(err error) string {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := dataErr.ErrorData().(string); ok {
			if raw, decodeErr := hexutil.Decode(data); decodeErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}

	const marker = "execution reverted: "
	msg := err.Error()
	if i := strings.Index(msg, marker); i >= 0 {
		return strings.TrimSpace(msg[i+len(marker):])
	}
	return ""
}
