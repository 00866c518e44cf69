package hub

import "errors"

// Kind is the closed set of failures surfaced to the user.
type Kind int

const (
	Unknown Kind = iota
	InvalidInput
	ProviderMissing
	NotConnected
	NetworkSwitchRejected
	NetworkUnavailable
	NetworkMismatch
	UserRejectedConnection
	UserRejected
	OperationInProgress
	ContractRejected
	TransportFailure
	FetchFailed
)

var kindMessages = map[Kind]string{
	Unknown:                "unexpected error",
	InvalidInput:           "invalid input",
	ProviderMissing:        "no wallet provider available",
	NotConnected:           "no account connected",
	NetworkSwitchRejected:  "network switch rejected",
	NetworkUnavailable:     "network unavailable",
	NetworkMismatch:        "wrong network",
	UserRejectedConnection: "connection request rejected",
	UserRejected:           "transaction rejected",
	OperationInProgress:    "operation already in progress",
	ContractRejected:       "rejected by the contract",
	TransportFailure:       "node unreachable or bad response",
	FetchFailed:            "unable to fetch proposals",
}

func (k Kind) String() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[Unknown]
}

// Error is a classified failure. Error() is the short message shown to the
// user. Err keeps the raw cause for diagnostics.
type Error struct {
	Kind   Kind
	Action Action
	// Detail elaborates the message, e.g. a revert reason or the name of
	// the invalid field.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Action != "" {
		msg = string(e.Action) + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diagnostic returns the raw cause, if any.
func (e *Error) Diagnostic() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// KindOf returns the kind of a classified error, Unknown otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func newError(kind Kind, action Action, detail string, err error) *Error {
	return &Error{Kind: kind, Action: action, Detail: detail, Err: err}
}
