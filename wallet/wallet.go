// Package wallet provides functions and types for interacting
// with the libwallet backend.
package wallet

import (
	"fmt"
	"path/filepath"
	"time"

	"code.cryptopower.dev/group/communityhub/libwallet"
	libutils "code.cryptopower.dev/group/communityhub/libwallet/utils"
)

const (
	listenerID  = "communityhub"
	DevBuild    = "dev"
	ProdBuild   = "prod"
	logFilename = "communityhub.log"
)

// Wallet represents the wallet back end of the app
type Wallet struct {
	hubManager *libwallet.HubManager
	Root       string
	buildDate  time.Time
	version    string
	logDir     string
	Net        libutils.NetworkType

	listener *Listener
}

// NewWallet initializies an new Wallet instance.
// The Wallet is not loaded until InitHubManager is called.
func NewWallet(root, net, version, logFolder string, buildDate time.Time) (*Wallet, error) {
	if root == "" {
		return nil, fmt.Errorf("root directory cannot be empty")
	}

	resolvedNetType := libutils.ToNetworkType(net)
	if resolvedNetType == libutils.Unknown {
		return nil, fmt.Errorf("network type is not supportted: %s", net)
	}

	wal := &Wallet{
		Root:      root,
		Net:       resolvedNetType,
		buildDate: buildDate,
		version:   version,
		logDir:    logFolder,
	}

	return wal, nil
}

func (wal *Wallet) BuildDate() time.Time {
	return wal.buildDate
}

func (wal *Wallet) Version() string {
	return wal.version
}

func (wal *Wallet) LogFile() string {
	return filepath.Join(wal.logDir, logFilename)
}

func (wal *Wallet) GetHubManager() *libwallet.HubManager {
	return wal.hubManager
}

// InitHubManager opens the hub manager on the wallet's root and network.
// Updates from the session are delivered on the returned listener.
func (wal *Wallet) InitHubManager(params *libwallet.InitParams) (*Listener, error) {
	params.RootDir = wal.Root
	params.NetType = wal.Net

	hubManager, err := libwallet.NewHubManager(params)
	if err != nil {
		return nil, HubManagerError{Message: "unable to open the community hub", Err: err}
	}

	listener := NewListener(16)
	if err = hubManager.Hub.AddNotificationListener(listener, listenerID); err != nil {
		hubManager.Shutdown()
		return nil, HubManagerError{Message: "unable to follow the community hub", Err: err}
	}

	wal.hubManager = hubManager
	wal.listener = listener
	return listener, nil
}

// Shutdown shutsdown the hubManager
func (wal *Wallet) Shutdown() {
	if wal.hubManager != nil {
		wal.hubManager.Hub.RemoveNotificationListener(listenerID)
		wal.hubManager.Shutdown()
	}
	if wal.listener != nil {
		wal.listener.Close()
	}
}

// TxURL returns the explorer link for txHash on the wallet's network.
func (wal *Wallet) TxURL(txHash string) string {
	if wal.hubManager == nil {
		return ""
	}
	return wal.hubManager.Network().TxURL(txHash)
}
