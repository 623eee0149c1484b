package chain

import (
	"github.com/btcsuite/btcutil/base58"

	"github.com/ethereum/go-ethereum/common"
)

type WalletType string

const (
	// WalletTypeEOA is a key based wallet usable on any chain of its family.
	WalletTypeEOA WalletType = "eoa"
	// WalletTypeMultisig is a contract wallet deployed on a subset of chains.
	WalletTypeMultisig WalletType = "multisig"
)

// Wallet references an account the user can connect to a dApp.
type Wallet struct {
	Address   string     `json:"address"`
	PublicKey string     `json:"publicKey"`
	Name      string     `json:"name,omitempty"`
	Type      WalletType `json:"type"`
	Family    Family     `json:"blockchain"`
	// ChainID is the chain the wallet was last used on.
	ChainID int64 `json:"chainId,omitempty"`
	// SupportedChainIDs lists the deployments of a multisig wallet.
	SupportedChainIDs []int64 `json:"supportedChainIds,omitempty"`
}

// IsDeployedOn reports whether the wallet can act on chainID. Key based
// wallets exist on every chain.
func (w Wallet) IsDeployedOn(chainID int64) bool {
	if w.Type != WalletTypeMultisig {
		return true
	}
	for _, id := range w.SupportedChainIDs {
		if id == chainID {
			return true
		}
	}
	return false
}

// SameAccount compares addresses with the family's rules (EVM addresses are
// case insensitive).
func (w Wallet) SameAccount(other Wallet) bool {
	if w.Family != other.Family {
		return false
	}
	if w.Family == Evm && common.IsHexAddress(w.Address) && common.IsHexAddress(other.Address) {
		return common.HexToAddress(w.Address) == common.HexToAddress(other.Address)
	}
	return w.Address == other.Address
}

// IsEvmAddress reports whether s is a 0x prefixed 20 byte hex address.
func IsEvmAddress(s string) bool {
	return len(s) == 42 && common.IsHexAddress(s)
}

// IsSolanaAddress reports whether s is a base58 encoded 32 byte key.
func IsSolanaAddress(s string) bool {
	if s == "" {
		return false
	}
	return len(base58.Decode(s)) == 32
}
