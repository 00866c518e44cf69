package hub

import (
	"context"
	"math/big"

	"code.cryptopower.dev/group/communityhub/libwallet/provider"
	"code.cryptopower.dev/group/communityhub/libwallet/utils"
)

// NetworkGuard keeps the provider on the one designated network.
type NetworkGuard struct {
	provider provider.Provider
	target   *utils.ChainParams
}

// NewNetworkGuard returns a guard for target. A nil provider is allowed and
// makes every check fail with ProviderMissing.
func NewNetworkGuard(p provider.Provider, target *utils.ChainParams) *NetworkGuard {
	return &NetworkGuard{provider: p, target: target.Copy()}
}

// Target returns the designated network.
func (g *NetworkGuard) Target() *utils.ChainParams {
	return g.target.Copy()
}

// IsTarget reports whether chainID is the designated network.
func (g *NetworkGuard) IsTarget(chainID *big.Int) bool {
	return chainID != nil && chainID.Cmp(g.target.ChainID) == 0
}

// VerifyNetwork reads the active chain id from the provider and reports
// whether it is the designated one.
func (g *NetworkGuard) VerifyNetwork(ctx context.Context) (bool, *big.Int, error) {
	if g.provider == nil {
		return false, nil, newError(ProviderMissing, "", "", nil)
	}

	current, err := g.provider.ChainID(ctx)
	if err != nil {
		return false, nil, newError(NetworkUnavailable, "", "", err)
	}
	return g.IsTarget(current), current, nil
}

// EnsureNetwork makes the designated network active. It asks the provider
// to switch; if the provider does not know the network it asks to register
// it and retries the switch once.
func (g *NetworkGuard) EnsureNetwork(ctx context.Context) error {
	ok, current, err := g.VerifyNetwork(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	log.Infof("Active chain id %v is not %v, requesting a switch to %s", current, g.target.ChainID, g.target.Name)

	err = g.provider.SwitchChain(ctx, g.target.ChainID)
	if err == nil {
		return nil
	}

	if code, ok := rpcCode(err); !ok || code != provider.CodeUnrecognizedChain {
		return switchFailure(err)
	}

	log.Infof("Provider does not know %s, requesting registration", g.target.Name)
	if err := g.provider.AddChain(ctx, g.target.Copy()); err != nil {
		return newError(NetworkUnavailable, "", "network registration failed", err)
	}

	if err := g.provider.SwitchChain(ctx, g.target.ChainID); err != nil {
		return switchFailure(err)
	}
	return nil
}

func switchFailure(err error) *Error {
	if code, ok := rpcCode(err); ok && code == provider.CodeUserRejected {
		return newError(NetworkSwitchRejected, "", "", err)
	}
	return newError(NetworkUnavailable, "", "", err)
}
