package params

const (
	MainnetChainID         int64 = 1
	OptimismChainID        int64 = 10
	ArbitrumChainID        int64 = 42161
	SepoliaChainID         int64 = 11155111
	SolanaMainnetChainID   int64 = 101
	SolanaTestnetChainID   int64 = 102
	SolanaDevnetChainID    int64 = 103
	TonMainnetChainID      int64 = -239
	TonTestnetChainID      int64 = -3
	solanaMainnetReference       = "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	solanaTestnetReference       = "4uhcVJyU9pJkvQyS88uRDiswHXSCkY3z"
	solanaDevnetReference        = "EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
)

// DefaultNetworks are used when the config omits "networks".
func DefaultNetworks() []NetworkConfig {
	return []NetworkConfig{
		{Family: "evm", ChainID: MainnetChainID, Name: "Ethereum", RPCURL: "https://ethereum-rpc.publicnode.com"},
		{Family: "evm", ChainID: OptimismChainID, Name: "Optimism", RPCURL: "https://mainnet.optimism.io"},
		{Family: "evm", ChainID: ArbitrumChainID, Name: "Arbitrum", RPCURL: "https://arb1.arbitrum.io/rpc"},
		{Family: "evm", ChainID: SepoliaChainID, Name: "Sepolia", RPCURL: "https://ethereum-sepolia-rpc.publicnode.com", Testnet: true},
		{Family: "solana", ChainID: SolanaMainnetChainID, Name: "Solana", CAIP2Reference: solanaMainnetReference, RPCURL: "https://api.mainnet-beta.solana.com"},
		{Family: "solana", ChainID: SolanaTestnetChainID, Name: "Solana Testnet", CAIP2Reference: solanaTestnetReference, RPCURL: "https://api.testnet.solana.com", Testnet: true},
		{Family: "solana", ChainID: SolanaDevnetChainID, Name: "Solana Devnet", CAIP2Reference: solanaDevnetReference, RPCURL: "https://api.devnet.solana.com", Testnet: true},
		{Family: "ton", ChainID: TonMainnetChainID, Name: "TON", CAIP2Reference: "-239"},
		{Family: "ton", ChainID: TonTestnetChainID, Name: "TON Testnet", CAIP2Reference: "-3", Testnet: true},
	}
}
