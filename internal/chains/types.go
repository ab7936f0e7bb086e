package chains

type AllChainsConfig struct {
	Networks       map[string]NetworkConfig `json:"networks" yaml:"networks"`
	DefaultChainID uint64                   `json:"defaultChainId" yaml:"defaultChainId" mapstructure:"defaultChainId"`
	ActiveRPC      string                   `json:"activeRPC" yaml:"activeRPC" mapstructure:"activeRPC"`
}

// NetworkConfig describes a network and its RPC endpoints.
type NetworkConfig struct {
	Name           string         `json:"name" yaml:"name"`
	ChainID        uint64         `json:"chainId" yaml:"chainId" mapstructure:"chainId"`
	RPCs           []RPC          `json:"rpcs" yaml:"rpcs"`
	Explorer       string         `json:"explorer" yaml:"explorer" mapstructure:"explorer"`
	NativeCurrency NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency" mapstructure:"nativeCurrency"`
	Hidden         bool           `json:"hidden" yaml:"hidden"`
}

type RPC struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals uint8  `json:"decimals" yaml:"decimals"`
}

func (mc *AllChainsConfig) Normalize() {
	if mc == nil {
		return
	}
	for name, n := range mc.Networks {
		if n.Name == "" {
			n.Name = name
		}
		if n.NativeCurrency.Symbol != "" && n.NativeCurrency.Decimals == 0 {
			n.NativeCurrency.Decimals = 18
		}
		mc.Networks[name] = n
	}
}
