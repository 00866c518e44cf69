package utils

import (
	"decred.org/dcrwallet/v2/errors"
	"github.com/asdine/storm"
)

const (
	// Error Codes
	ErrInvalid                      = "invalid"
	ErrInvalidAddress               = "invalid_address"
	ErrInvalidAmount                = "invalid_amount"
	ErrInvalidPassphrase            = "invalid_passphrase"
	ErrNotConnected                 = "not_connected"
	ErrExist                        = "exists"
	ErrNotExist                     = "not_exists"
	ErrUnavailable                  = "unavailable"
	ErrContextCanceled              = "context_canceled"
	ErrProviderMissing              = "provider_missing"
	ErrProviderDatabaseInUse        = "provider_db_in_use"
	ErrNoAccounts                   = "no_accounts"
	ErrUnknownNetwork               = "unknown_network"
	ErrListenerAlreadyExist         = "listener_already_exist"
	ErrLoggerAlreadyRegistered      = "logger_already_registered"
	ErrLogRotatorAlreadyInitialized = "log_rotator_already_initialized"
	ErrRefreshAlreadyInProgress     = "refresh_already_in_progress"
)

var (
	ErrInvalidNet     = errors.New("invalid network type found")
	ErrNoChainParams  = errors.New("no valid chain config params provided")
	ErrInvalidRange   = errors.New("invalid proposal id range")
	ErrEmptyRPCURL    = errors.New("network rpc url is empty")
	ErrMissingChainID = errors.New("network chain id is missing")
)

// TranslateError maps the error kinds produced by the storage and keystore
// layers to the stable error codes above.
func TranslateError(err error) error {
	if err == storm.ErrNotFound {
		return errors.New(ErrNotExist)
	}
	if err, ok := err.(*errors.Error); ok {
		switch err.Kind {
		case errors.NotExist:
			return errors.New(ErrNotExist)
		case errors.Exist:
			return errors.New(ErrExist)
		case errors.Passphrase:
			return errors.New(ErrInvalidPassphrase)
		case errors.Invalid:
			return errors.New(ErrInvalid)
		}
	}
	return err
}
