package chains

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var ErrChainNotFound = errors.New("chain not found")

// ChainDescriptor is the immutable connection data for one chain.
type ChainDescriptor struct {
	ChainID             uint64         `json:"chainId"`
	Name                string         `json:"name"`
	Network             string         `json:"network"`
	RPCURL              string         `json:"rpcUrl"`
	RPCURLs             []string       `json:"rpcUrls"`
	NativeCurrency      NativeCurrency `json:"nativeCurrency"`
	ExplorerURL         string         `json:"explorerUrl,omitempty"`
	IsDefaultSelectable bool           `json:"isDefaultSelectable"`
}

// AddChainParameters is the EIP-3085 wallet_addEthereumChain payload.
type AddChainParameters struct {
	ChainID           string          `json:"chainId"`
	ChainName         string          `json:"chainName,omitempty"`
	NativeCurrency    *NativeCurrency `json:"nativeCurrency,omitempty"`
	RPCURLs           []string        `json:"rpcUrls,omitempty"`
	BlockExplorerURLs []string        `json:"blockExplorerUrls,omitempty"`
}

// Registry maps chain ids to descriptors. It is built once and never mutated.
type Registry struct {
	byID      map[uint64]ChainDescriptor
	byName    map[string]uint64
	ids       []uint64
	defaultID uint64
}

func NewRegistry(cfg *AllChainsConfig, defaultChainID uint64) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("chains config is nil")
	}
	if len(cfg.Networks) == 0 {
		return nil, errors.New("no networks configured")
	}

	r := &Registry{
		byID:   make(map[uint64]ChainDescriptor, len(cfg.Networks)),
		byName: make(map[string]uint64, len(cfg.Networks)),
	}

	for networkName, network := range cfg.Networks {
		if network.ChainID == 0 {
			return nil, errors.Newf("network %q has chainId 0", networkName)
		}
		if existing, ok := r.byID[network.ChainID]; ok {
			return nil, errors.Newf("duplicate chainId %d (%q and %q)", network.ChainID, existing.Network, networkName)
		}

		desc := ChainDescriptor{
			ChainID:             network.ChainID,
			Name:                network.Name,
			Network:             networkName,
			NativeCurrency:      network.NativeCurrency,
			ExplorerURL:         strings.TrimRight(strings.TrimSpace(network.Explorer), "/"),
			IsDefaultSelectable: !network.Hidden,
		}
		if desc.Name == "" {
			desc.Name = networkName
		}
		desc.RPCURLs, desc.RPCURL = pickRPCs(network.RPCs, cfg.ActiveRPC)

		r.byID[desc.ChainID] = desc
		r.byName[strings.ToLower(networkName)] = desc.ChainID
		r.ids = append(r.ids, desc.ChainID)
	}
	sort.Slice(r.ids, func(i, j int) bool { return r.ids[i] < r.ids[j] })

	if defaultChainID == 0 {
		defaultChainID = cfg.DefaultChainID
	}
	if defaultChainID != 0 {
		if _, ok := r.byID[defaultChainID]; !ok {
			return nil, errors.Wrapf(ErrChainNotFound, "default chain %d", defaultChainID)
		}
	}
	r.defaultID = defaultChainID

	return r, nil
}

// pickRPCs returns every usable url, preferred one first.
func pickRPCs(rpcs []RPC, preferred string) ([]string, string) {
	preferred = strings.TrimSpace(preferred)
	urls := make([]string, 0, len(rpcs))
	primary := ""
	for _, rpc := range rpcs {
		u := strings.TrimSpace(rpc.URL)
		if u == "" {
			continue
		}
		if primary == "" && preferred != "" && strings.EqualFold(strings.TrimSpace(rpc.Name), preferred) {
			primary = u
			urls = append([]string{u}, urls...)
			continue
		}
		urls = append(urls, u)
	}
	if primary == "" && len(urls) > 0 {
		primary = urls[0]
	}
	return urls, primary
}

func (r *Registry) Get(chainID uint64) (ChainDescriptor, error) {
	desc, ok := r.byID[chainID]
	if !ok {
		return ChainDescriptor{}, errors.Wrapf(ErrChainNotFound, "chainId %d", chainID)
	}
	return desc, nil
}

func (r *Registry) ByNetwork(name string) (ChainDescriptor, error) {
	id, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ChainDescriptor{}, errors.Wrapf(ErrChainNotFound, "network %q", name)
	}
	return r.byID[id], nil
}

func (r *Registry) Has(chainID uint64) bool {
	_, ok := r.byID[chainID]
	return ok
}

// IDs returns every chain id in ascending order.
func (r *Registry) IDs() []uint64 {
	out := make([]uint64, len(r.ids))
	copy(out, r.ids)
	return out
}

func (r *Registry) All() []ChainDescriptor {
	out := make([]ChainDescriptor, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.byID[id])
	}
	return out
}

// Default returns the configured default chain, if any.
func (r *Registry) Default() (ChainDescriptor, bool) {
	if r.defaultID == 0 {
		return ChainDescriptor{}, false
	}
	return r.byID[r.defaultID], true
}

// NetworkURLs is the url table a read-only connector can use: only chains with at least one RPC.
func (r *Registry) NetworkURLs() map[uint64][]string {
	out := make(map[uint64][]string)
	for _, id := range r.ids {
		desc := r.byID[id]
		if len(desc.RPCURLs) == 0 {
			continue
		}
		out[id] = append([]string(nil), desc.RPCURLs...)
	}
	return out
}

// NetworkIDs returns the sorted keys of NetworkURLs.
func (r *Registry) NetworkIDs() []uint64 {
	out := make([]uint64, 0, len(r.ids))
	for _, id := range r.ids {
		if len(r.byID[id].RPCURLs) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// AddChainParameters builds the payload a wallet needs to learn about chainID.
// Chains without a native currency only carry the id, wallets fill in the rest.
func (r *Registry) AddChainParameters(chainID uint64) (AddChainParameters, error) {
	desc, err := r.Get(chainID)
	if err != nil {
		return AddChainParameters{}, err
	}

	params := AddChainParameters{ChainID: hexutil.EncodeUint64(chainID)}
	if desc.NativeCurrency.Symbol == "" {
		return params, nil
	}

	nc := desc.NativeCurrency
	params.ChainName = desc.Name
	params.NativeCurrency = &nc
	params.RPCURLs = append([]string(nil), desc.RPCURLs...)
	if desc.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{desc.ExplorerURL}
	}
	return params, nil
}

// ParseChainIDHex parses a 0x-prefixed chain id as sent by wallets.
func ParseChainIDHex(s string) (uint64, error) {
	id, err := hexutil.DecodeUint64(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid chainId %q", s)
	}
	return id, nil
}
