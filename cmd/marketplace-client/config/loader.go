package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/marketplace-client/internal/constants"
	"github.com/quantumauth-io/marketplace-client/internal/market"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	utilsconfig "github.com/quantumauth-io/quantum-go-utils/config"
)

const (
	IPFSModeRemote = "remote"
	IPFSModeMemory = "memory"
)

type ServerSettings struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowOrigins   []string `mapstructure:"allowOrigins"`
	LocalOnly      bool     `mapstructure:"localOnly"`
	RateLimit      float64  `mapstructure:"rateLimit"`
	Burst          int      `mapstructure:"burst"`
	MaxUploadBytes int64    `mapstructure:"maxUploadBytes"`
}

type IPFSSettings struct {
	Mode           string `mapstructure:"mode"`
	APIURL         string `mapstructure:"apiURL"`
	GatewayURL     string `mapstructure:"gatewayURL"`
	ProjectID      string `mapstructure:"projectId"`
	ProjectSecret  string `mapstructure:"projectSecret"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

type WalletSettings struct {
	Primary                  string `mapstructure:"primary"`
	Keystore                 string `mapstructure:"keystore"`
	DefaultChainID           uint64 `mapstructure:"defaultChainId"`
	ActivationTimeoutSeconds int    `mapstructure:"activationTimeoutSeconds"`
}

type ContractAddresses struct {
	Market string `mapstructure:"market"`
	NFT    string `mapstructure:"nft"`
}

type MarketSettings struct {
	ReadCacheSize int                          `mapstructure:"readCacheSize"`
	Contracts     map[string]ContractAddresses `mapstructure:"contracts"`
}

type Config struct {
	Server *ServerSettings         `mapstructure:"Server"`
	IPFS   *IPFSSettings           `mapstructure:"IPFS"`
	Wallet *WalletSettings         `mapstructure:"Wallet"`
	Market *MarketSettings         `mapstructure:"Market"`
	Chains *chains.AllChainsConfig `mapstructure:"Chains"`
}

func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	paths := []string{
		filepath.Join(home, ".config", constants.AppName),
		filepath.Join(home, "config"),
		".",
	}

	return utilsconfig.ParseConfigWithEmbedded[Config](paths, EmbeddedConfigYAML)
}

// ApplyEnv applies MARKET_* overrides. MARKET_ENV picks the content store endpoints.
func (c *Config) ApplyEnv() error {
	c.ensure()

	raw := strings.TrimSpace(os.Getenv("MARKET_ENV"))
	switch strings.ToLower(raw) {
	case "", "prod", "production":
		// keep configured endpoints

	case "local":
		c.IPFS.Mode = IPFSModeRemote
		c.IPFS.APIURL = "http://127.0.0.1:5001/api/v0"
		c.IPFS.GatewayURL = "http://127.0.0.1:8080/ipfs"

	case "memory", "test":
		c.IPFS.Mode = IPFSModeMemory

	default:
		return errors.Newf("invalid MARKET_ENV %q (allowed: local, memory, prod, empty)", raw)
	}

	if v := strings.TrimSpace(os.Getenv("MARKET_IPFS_PROJECT_ID")); v != "" {
		c.IPFS.ProjectID = v
	}
	if v := strings.TrimSpace(os.Getenv("MARKET_IPFS_PROJECT_SECRET")); v != "" {
		c.IPFS.ProjectSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("MARKET_KEYSTORE")); v != "" {
		c.Wallet.Keystore = v
	}
	return nil
}

// Normalize fills defaults and validates addresses and the connector kind.
func (c *Config) Normalize() error {
	c.ensure()

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == "" {
		c.Server.Port = "8090"
	}

	if c.IPFS.Mode == "" {
		c.IPFS.Mode = IPFSModeRemote
	}
	if c.IPFS.Mode != IPFSModeRemote && c.IPFS.Mode != IPFSModeMemory {
		return errors.Newf("IPFS.mode %q (allowed: remote, memory)", c.IPFS.Mode)
	}
	if c.IPFS.APIURL == "" {
		c.IPFS.APIURL = constants.DefaultIPFSAPI
	}
	if c.IPFS.GatewayURL == "" {
		c.IPFS.GatewayURL = constants.DefaultIPFSGateway
	}
	if c.IPFS.TimeoutSeconds <= 0 {
		c.IPFS.TimeoutSeconds = 120
	}

	if c.Wallet.Primary == "" {
		c.Wallet.Primary = wallet.KindNetwork.String()
	}
	kind, err := wallet.ParseKind(c.Wallet.Primary)
	if err != nil {
		return errors.Wrap(err, "Wallet.primary")
	}
	c.Wallet.Primary = kind.String()
	if c.Wallet.DefaultChainID == 0 {
		c.Wallet.DefaultChainID = constants.DefaultChainID
	}
	if c.Wallet.Keystore != "" {
		c.Wallet.Keystore = expandHome(c.Wallet.Keystore)
	}

	if c.Market.ReadCacheSize <= 0 {
		c.Market.ReadCacheSize = 512
	}

	out := make(map[string]ContractAddresses, len(c.Market.Contracts))
	for netKey, addrs := range c.Market.Contracts {
		nk := strings.ToLower(strings.TrimSpace(netKey))
		if nk == "" {
			return errors.New("Market.contracts has empty network key")
		}
		m, err := canonicalAddress(addrs.Market)
		if err != nil {
			return errors.Wrapf(err, "Market.contracts[%q].market", netKey)
		}
		n, err := canonicalAddress(addrs.NFT)
		if err != nil {
			return errors.Wrapf(err, "Market.contracts[%q].nft", netKey)
		}
		out[nk] = ContractAddresses{Market: m, NFT: n}
	}
	c.Market.Contracts = out

	c.Chains.Normalize()
	return nil
}

// ContractBook resolves the per-network contract addresses to chain ids.
func (c *Config) ContractBook(reg *chains.Registry) (map[uint64]market.Addresses, error) {
	book := make(map[uint64]market.Addresses, len(c.Market.Contracts))
	for netKey, addrs := range c.Market.Contracts {
		desc, err := reg.ByNetwork(netKey)
		if err != nil {
			return nil, errors.Wrapf(err, "Market.contracts[%q]", netKey)
		}
		book[desc.ChainID] = market.Addresses{
			Market: common.HexToAddress(addrs.Market),
			NFT:    common.HexToAddress(addrs.NFT),
		}
	}
	return book, nil
}

func (c *Config) ensure() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.IPFS == nil {
		c.IPFS = &IPFSSettings{}
	}
	if c.Wallet == nil {
		c.Wallet = &WalletSettings{}
	}
	if c.Market == nil {
		c.Market = &MarketSettings{}
	}
	if c.Chains == nil {
		c.Chains = &chains.AllChainsConfig{}
	}
}

func canonicalAddress(raw string) (string, error) {
	a := strings.TrimSpace(raw)
	if a == "" {
		return "", errors.New("empty address")
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	if !common.IsHexAddress(a) {
		return "", errors.Newf("invalid address %q", raw)
	}
	return common.HexToAddress(a).Hex(), nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
