package chain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/status-im/dapp-connector/params"
)

var (
	ErrUnsupportedNetwork = errors.New("unsupported network")
	ErrInvalidCAIP2       = errors.New("CAIP-2 string is not valid")
)

// Network is a chain a family can be connected to.
type Network struct {
	Family         Family
	ChainID        int64
	Name           string
	CAIP2Reference string
	RPCURL         string
	Testnet        bool
}

// CAIP2 returns the "namespace:reference" chain identifier.
func (n Network) CAIP2() string {
	ref := n.CAIP2Reference
	if ref == "" {
		ref = strconv.FormatInt(n.ChainID, 10)
	}
	return n.Family.Namespace() + ":" + ref
}

// Registry holds the configured networks.
type Registry struct {
	networks []Network
}

func NewRegistry(configs []params.NetworkConfig) (*Registry, error) {
	r := &Registry{}
	for _, c := range configs {
		family, err := ParseFamily(c.Family)
		if err != nil {
			return nil, err
		}
		r.networks = append(r.networks, Network{
			Family:         family,
			ChainID:        c.ChainID,
			Name:           c.Name,
			CAIP2Reference: c.CAIP2Reference,
			RPCURL:         c.RPCURL,
			Testnet:        c.Testnet,
		})
	}
	return r, nil
}

func (r *Registry) Network(family Family, chainID int64) (Network, bool) {
	for _, n := range r.networks {
		if n.Family == family && n.ChainID == chainID {
			return n, true
		}
	}
	return Network{}, false
}

func (r *Registry) Supported(family Family, chainID int64) bool {
	_, ok := r.Network(family, chainID)
	return ok
}

// ChainIDs returns the chain ids of family in configuration order.
func (r *Registry) ChainIDs(family Family) []int64 {
	var ids []int64
	for _, n := range r.networks {
		if n.Family == family {
			ids = append(ids, n.ChainID)
		}
	}
	return ids
}

// Networks returns the networks of family in configuration order.
func (r *Registry) Networks(family Family) []Network {
	var out []Network
	for _, n := range r.networks {
		if n.Family == family {
			out = append(out, n)
		}
	}
	return out
}

// DefaultChainID is the first configured chain of family.
func (r *Registry) DefaultChainID(family Family) (int64, error) {
	ids := r.ChainIDs(family)
	if len(ids) == 0 {
		return 0, ErrUnsupportedNetwork
	}
	return ids[0], nil
}

// ParseCAIP2 resolves a "namespace:reference" identifier to a configured network.
func (r *Registry) ParseCAIP2(s string) (Network, error) {
	caip2 := strings.Split(s, ":")
	if len(caip2) != 2 {
		return Network{}, ErrInvalidCAIP2
	}
	family, err := FamilyFromNamespace(caip2[0])
	if err != nil {
		return Network{}, err
	}
	for _, n := range r.networks {
		if n.Family != family {
			continue
		}
		if n.CAIP2() == s {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w: %s", ErrUnsupportedNetwork, s)
}

// CAIP10 formats an account id as "namespace:reference:address".
func CAIP10(n Network, address string) string {
	return n.CAIP2() + ":" + address
}

// HexChainID encodes a chain id the way EIP-1193 providers expose it.
func HexChainID(chainID int64) string {
	return hexutil.EncodeUint64(uint64(chainID))
}

// ParseHexChainID accepts both "0x1" and decimal strings.
func ParseHexChainID(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := hexutil.DecodeUint64(strings.ToLower(s))
		if err != nil {
			return 0, ErrUnsupportedNetwork
		}
		return int64(v), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrUnsupportedNetwork
	}
	return v, nil
}
