package walletconnect

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/params"
	"github.com/status-im/dapp-connector/services/connector/chain"
)

const solanaMainnet = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"

func testRegistry(t *testing.T) *chain.Registry {
	registry, err := chain.NewRegistry(params.DefaultNetworks())
	require.NoError(t, err)
	return registry
}

func TestProposalChains(t *testing.T) {
	registry := testRegistry(t)

	chains, err := proposalChains(ProposalParams{
		RequiredNamespaces: map[string]Namespace{
			"eip155": {Chains: []string{"eip155:1"}},
		},
		OptionalNamespaces: map[string]Namespace{
			"eip155:10": {},
			"eip155":    {Chains: []string{"eip155:1", "eip155:56"}},
			"solana":    {Chains: []string{solanaMainnet}},
		},
	}, registry, zap.NewNop())
	require.NoError(t, err)

	require.Equal(t, []int64{1, 10}, sortedIDs(chains[chain.Evm]))
	require.Equal(t, []int64{101}, chainIDs(chains[chain.Solana]))
	require.Equal(t, chain.Evm, proposalFamily(chains))
}

func sortedIDs(networks []chain.Network) []int64 {
	ids := chainIDs(networks)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestProposalChainsRequiredUnsupported(t *testing.T) {
	_, err := proposalChains(ProposalParams{
		RequiredNamespaces: map[string]Namespace{
			"eip155": {Chains: []string{"eip155:1", "eip155:56"}},
		},
	}, testRegistry(t), zap.NewNop())
	require.ErrorIs(t, err, ErrorChainsNotSupported)

	_, err = proposalChains(ProposalParams{
		OptionalNamespaces: map[string]Namespace{
			"cosmos": {Chains: []string{"cosmos:cosmoshub-4"}},
		},
	}, testRegistry(t), zap.NewNop())
	require.ErrorIs(t, err, ErrorChainsNotSupported)
}

func TestSolanaOnlyProposal(t *testing.T) {
	chains, err := proposalChains(ProposalParams{
		RequiredNamespaces: map[string]Namespace{
			"solana": {Chains: []string{solanaMainnet}},
		},
	}, testRegistry(t), zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, chain.Solana, proposalFamily(chains))
}

func TestSessionNamespaces(t *testing.T) {
	registry := testRegistry(t)
	evm := &chain.Wallet{Address: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb", Family: chain.Evm}

	// the dApp asked for one chain and a method no gateway handles
	namespaces := sessionNamespaces(registry, map[chain.Family]*chain.Wallet{chain.Evm: evm})

	require.Len(t, namespaces, 1)
	ns := namespaces["eip155"]
	require.Equal(t, supportedFeatures[chain.Evm].methods, ns.Methods)
	require.NotContains(t, ns.Methods, "wallet_addEthereumChain")
	require.Equal(t, []string{"accountsChanged", "chainChanged"}, ns.Events)
	require.Equal(t, []string{"eip155:1", "eip155:10", "eip155:42161", "eip155:11155111"}, ns.Chains)
	require.Equal(t, []string{
		"eip155:1:0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		"eip155:10:0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		"eip155:42161:0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
		"eip155:11155111:0x6d0aa2a774b74bb1d36f97700315adf962c69fcb",
	}, ns.Accounts)

	// a wallet from the wrong family is not offered
	wrong := &chain.Wallet{Address: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb", Family: chain.Solana}
	namespaces = sessionNamespaces(registry, map[chain.Family]*chain.Wallet{chain.Solana: wrong})
	require.Empty(t, namespaces)
}

func TestSessionNamespacesSpanBothFamilies(t *testing.T) {
	sol := &chain.Wallet{Address: "7EcDhSYGxXyscszYEp35KHN8vvw3svAuLKTzXwCFLtV", Family: chain.Solana}
	evm := &chain.Wallet{Address: "0x6d0aa2a774b74bb1d36f97700315adf962c69fcb", Family: chain.Evm}
	namespaces := sessionNamespaces(testRegistry(t), map[chain.Family]*chain.Wallet{chain.Evm: evm, chain.Solana: sol})

	require.Len(t, namespaces, 2)
	ns := namespaces["solana"]
	require.Len(t, ns.Chains, 3)
	require.Equal(t, solanaMainnet, ns.Chains[0])
	require.Equal(t, solanaMainnet+":"+sol.Address, ns.Accounts[0])
	require.Equal(t, supportedFeatures[chain.Solana].methods, ns.Methods)
}

func TestSessionChainLookup(t *testing.T) {
	s := &Session{Namespaces: map[string]Namespace{
		"eip155": {Accounts: []string{"eip155:10:0xabc"}},
	}}
	caip2, ok := sessionChain(s, chain.Evm)
	require.True(t, ok)
	require.Equal(t, "eip155:10", caip2)
	require.True(t, sessionHasChain(s, "eip155:10"))
	require.False(t, sessionHasChain(s, "eip155:1"))

	_, ok = sessionChain(s, chain.Solana)
	require.False(t, ok)
}

func TestRequestParams(t *testing.T) {
	require.Equal(t, []interface{}{}, requestParams(nil))
	require.Equal(t, []interface{}{"0x01", "0xabc"}, requestParams([]byte(`["0x01","0xabc"]`)))
	require.Equal(t, []interface{}{map[string]interface{}{"message": "abc"}}, requestParams([]byte(`{"message":"abc"}`)))
}
