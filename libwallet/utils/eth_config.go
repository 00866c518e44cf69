package utils

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// UnstableParams is the Shardeum unstable network the CommunityHub
	// contract is deployed on.
	UnstableParams = &ChainParams{
		ChainID: big.NewInt(8080),
		Name:    "Shardeum Unstable",
		Currency: NativeCurrency{
			Name:     "Shardeum",
			Symbol:   "SHM",
			Decimals: 18,
		},
		RPCURL:      "https://api-unstable.shardeum.org",
		ExplorerURL: "https://explorer-unstable.shardeum.org",
	}

	// LocalnetParams targets a local development node.
	LocalnetParams = &ChainParams{
		ChainID: big.NewInt(31337),
		Name:    "Localnet",
		Currency: NativeCurrency{
			Name:     "Ether",
			Symbol:   "ETH",
			Decimals: 18,
		},
		RPCURL: "http://127.0.0.1:8545",
	}

	// DefaultContractAddresses maps each network to the CommunityHub
	// deployment the client talks to unless overridden.
	DefaultContractAddresses = map[NetworkType]common.Address{
		Unstable: common.HexToAddress("0xd927807767655E6e818af8EBbCf6cf41890E253c"),
	}
)

// ETHChainParams returns a copy of the network parameters for the provided
// network type.
func ETHChainParams(netType NetworkType) (*ChainParams, error) {
	switch netType {
	case Unstable:
		return UnstableParams.Copy(), nil
	case Localnet:
		return LocalnetParams.Copy(), nil
	default:
		return nil, ErrNoChainParams
	}
}
