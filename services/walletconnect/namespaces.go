package walletconnect

import (
	"strings"

	mapset "github.com/deckarep/golang-set"
	"go.uber.org/zap"

	"github.com/status-im/dapp-connector/services/connector/chain"
)

// relayFamilies are the families a WalletConnect session can carry.
var relayFamilies = []chain.Family{chain.Evm, chain.Solana}

// features are the relay methods and events a session is approved for,
// whatever the dApp asked.
type features struct {
	methods []string
	events  []string
}

var supportedFeatures = map[chain.Family]features{
	chain.Evm: {
		methods: []string{
			"eth_sendRawTransaction",
			"eth_sendTransaction",
			"eth_sign",
			"eth_signTransaction",
			"eth_signTypedData",
			"eth_signTypedData_v4",
			"personal_sign",
		},
		events: []string{"accountsChanged", "chainChanged"},
	},
	chain.Solana: {
		methods: []string{
			"solana_signAndSendTransaction",
			"solana_signMessage",
			"solana_signTransaction",
		},
		events: []string{"accountsChanged"},
	},
}

// namespaceChains lists the CAIP-2 chains of a namespace. A key such as
// "eip155:1" stands for its own chain.
func namespaceChains(key string, ns Namespace) []string {
	if strings.Contains(key, ":") {
		return []string{key}
	}
	return ns.Chains
}

func namespaceKey(key string) string {
	k, _, _ := strings.Cut(key, ":")
	return k
}

// supportedChains keeps the configured networks among caipChains.
func supportedChains(caipChains []string, networks *chain.Registry, logger *zap.Logger) (supported []chain.Network, unsupported []string) {
	supported = make([]chain.Network, 0, len(caipChains))
	for _, caip2Str := range caipChains {
		network, err := networks.ParseCAIP2(caip2Str)
		if err != nil {
			logger.Warn("Failed parsing CAIP-2", zap.String("str", caip2Str), zap.Error(err))
			unsupported = append(unsupported, caip2Str)
			continue
		}
		supported = append(supported, network)
	}
	return
}

// proposalChains resolves the chains of a proposal per family. Every
// required chain must be supported, unsupported optional chains are
// dropped.
func proposalChains(params ProposalParams, networks *chain.Registry, logger *zap.Logger) (map[chain.Family][]chain.Network, error) {
	seen := mapset.NewSet()
	out := make(map[chain.Family][]chain.Network)

	add := func(list []chain.Network) {
		for _, n := range list {
			if n.Family == chain.Ton || seen.Contains(n.CAIP2()) {
				continue
			}
			seen.Add(n.CAIP2())
			out[n.Family] = append(out[n.Family], n)
		}
	}

	for key, ns := range params.RequiredNamespaces {
		supported, unsupported := supportedChains(namespaceChains(key, ns), networks, logger)
		if len(unsupported) > 0 {
			return nil, ErrorChainsNotSupported
		}
		add(supported)
	}
	for key, ns := range params.OptionalNamespaces {
		supported, _ := supportedChains(namespaceChains(key, ns), networks, logger)
		add(supported)
	}

	if len(out) == 0 {
		return nil, ErrorChainsNotSupported
	}
	return out, nil
}

// proposalFamily picks the family whose gateway approves the proposal.
func proposalFamily(chains map[chain.Family][]chain.Network) chain.Family {
	for _, f := range relayFamilies {
		if len(chains[f]) > 0 {
			return f
		}
	}
	return ""
}

func chainIDs(networks []chain.Network) []int64 {
	ids := make([]int64, 0, len(networks))
	for _, n := range networks {
		ids = append(ids, n.ChainID)
	}
	return ids
}

func validAddress(family chain.Family, address string) bool {
	switch family {
	case chain.Evm:
		return chain.IsEvmAddress(address)
	case chain.Solana:
		return chain.IsSolanaAddress(address)
	}
	return false
}

func caip10Accounts(address string, networks []chain.Network) []string {
	accounts := make([]string, 0, len(networks))
	for _, n := range networks {
		accounts = append(accounts, chain.CAIP10(n, address))
	}
	return accounts
}

// sessionNamespaces builds the approved namespaces: every configured chain
// of a family with its supported methods and events, and the selected
// wallet on each chain. Families without a selected wallet are left out.
func sessionNamespaces(networks *chain.Registry, wallets map[chain.Family]*chain.Wallet) map[string]Namespace {
	out := make(map[string]Namespace)
	for _, family := range relayFamilies {
		configured := networks.Networks(family)
		wallet := wallets[family]
		if len(configured) == 0 || wallet == nil || !validAddress(family, wallet.Address) {
			continue
		}
		caip2 := make([]string, 0, len(configured))
		for _, n := range configured {
			caip2 = append(caip2, n.CAIP2())
		}
		f := supportedFeatures[family]
		out[family.Namespace()] = Namespace{
			Methods:  append([]string(nil), f.methods...),
			Chains:   caip2,
			Events:   append([]string(nil), f.events...),
			Accounts: caip10Accounts(wallet.Address, configured),
		}
	}
	return out
}

// sessionChain returns the first chain of the session in family, used as
// the chainId of session events.
func sessionChain(s *Session, family chain.Family) (string, bool) {
	ns, ok := s.Namespaces[family.Namespace()]
	if !ok {
		return "", false
	}
	if len(ns.Chains) > 0 {
		return ns.Chains[0], true
	}
	for _, account := range ns.Accounts {
		idx := strings.LastIndex(account, ":")
		if idx > 0 {
			return account[:idx], true
		}
	}
	return "", false
}

// sessionHasChain reports whether caip2 is part of the approved namespaces.
func sessionHasChain(s *Session, caip2 string) bool {
	ns, ok := s.Namespaces[namespaceKey(caip2)]
	if !ok {
		return false
	}
	for _, c := range ns.Chains {
		if c == caip2 {
			return true
		}
	}
	for _, account := range ns.Accounts {
		if strings.HasPrefix(account, caip2+":") {
			return true
		}
	}
	return false
}
