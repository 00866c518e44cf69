package utils

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type NetworkType string

const (
	Unstable NetworkType = "unstable"
	Localnet NetworkType = "localnet"
	Unknown  NetworkType = "unknown"
)

// Display returns the title case network name to be displayed to the user.
func (n NetworkType) Display() string {
	caser := cases.Title(language.Und)
	return caser.String(string(n))
}

// ToNetworkType maps the provided network string identifier to the available
// network type constants.
func ToNetworkType(str string) NetworkType {
	switch strings.ToLower(str) {
	case "unstable", "shardeum", "shardeum-unstable":
		return Unstable
	case "localnet", "local", "hardhat", "devnet":
		return Localnet
	default:
		return Unknown
	}
}

// NativeCurrency describes the native coin of a chain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ChainParams holds everything a wallet provider needs to register and
// connect to a network. The field set mirrors the parameters accepted by
// wallet_addEthereumChain.
type ChainParams struct {
	ChainID     *big.Int       `json:"chainId"`
	Name        string         `json:"chainName"`
	Currency    NativeCurrency `json:"nativeCurrency"`
	RPCURL      string         `json:"rpcUrl"`
	ExplorerURL string         `json:"blockExplorerUrl"`
}

// HexChainID returns the chain id in the 0x-prefixed form wallets exchange.
func (p *ChainParams) HexChainID() string {
	if p.ChainID == nil {
		return ""
	}
	return hexutil.EncodeBig(p.ChainID)
}

// Validate checks that the parameters are complete enough to dial the network.
func (p *ChainParams) Validate() error {
	if p.ChainID == nil || p.ChainID.Sign() <= 0 {
		return ErrMissingChainID
	}
	if p.RPCURL == "" {
		return ErrEmptyRPCURL
	}
	if _, err := url.ParseRequestURI(p.RPCURL); err != nil {
		return fmt.Errorf("error: rpc url not properly constituted: %v", err)
	}
	if p.ExplorerURL != "" {
		if _, err := url.ParseRequestURI(p.ExplorerURL); err != nil {
			return fmt.Errorf("error: explorer url not properly constituted: %v", err)
		}
	}
	return nil
}

// TxURL returns the block explorer page for the provided transaction hash.
// An empty string is returned when no explorer is configured.
func (p *ChainParams) TxURL(txHash string) string {
	if p.ExplorerURL == "" || txHash == "" {
		return ""
	}
	return strings.TrimRight(p.ExplorerURL, "/") + "/tx/" + txHash
}

// Copy returns a deep copy of the params.
func (p *ChainParams) Copy() *ChainParams {
	c := *p
	if p.ChainID != nil {
		c.ChainID = new(big.Int).Set(p.ChainID)
	}
	return &c
}
