package wallet

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// ClientSource hands out read clients per chain. *chains.ClientPool implements it.
type ClientSource interface {
	ForChain(ctx context.Context, chainID uint64) (chains.Client, error)
}

// NetworkConnector is a read-only RPC connection. It never has an account and never signs.
type NetworkConnector struct {
	*stateHolder
	registry       *chains.Registry
	clients        ClientSource
	defaultChainID uint64

	mu     sync.RWMutex
	client chains.Client
}

var _ Connector = (*NetworkConnector)(nil)

func NewNetworkConnector(registry *chains.Registry, clients ClientSource, defaultChainID uint64) *NetworkConnector {
	if defaultChainID == 0 && registry != nil {
		if def, ok := registry.Default(); ok {
			defaultChainID = def.ChainID
		}
	}
	return &NetworkConnector{
		stateHolder:    newStateHolder(KindNetwork),
		registry:       registry,
		clients:        clients,
		defaultChainID: defaultChainID,
	}
}

func (c *NetworkConnector) Kind() Kind { return KindNetwork }

func (c *NetworkConnector) State() State { return c.snapshot() }

func (c *NetworkConnector) CurrentAccount() (common.Address, bool) { return common.Address{}, false }

func (c *NetworkConnector) CurrentChainID() (uint64, bool) { return c.chainID() }

func (c *NetworkConnector) IsActive() bool { return c.snapshot().IsActive() }

func (c *NetworkConnector) IsActivating() bool { return c.snapshot().Activating }

func (c *NetworkConnector) Subscribe(fn func(State)) func() { return c.subscribe(fn) }

func (c *NetworkConnector) Signer() SigningHandle { return nil }

func (c *NetworkConnector) DefaultChainID() uint64 { return c.defaultChainID }

func (c *NetworkConnector) Activate(ctx context.Context, target *uint64) error {
	chainID := c.defaultChainID
	if target != nil {
		chainID = *target
	}

	if c.clients == nil {
		c.reset()
		return &ConnectError{Code: NoProvider, ChainID: chainID}
	}
	if chainID == 0 {
		c.reset()
		return &ConnectError{Code: UnsupportedChain, Cause: errors.New("no default chain configured")}
	}
	if c.registry != nil {
		desc, err := c.registry.Get(chainID)
		if err != nil {
			c.reset()
			return &ConnectError{Code: UnsupportedChain, ChainID: chainID, Cause: err}
		}
		if len(desc.RPCURLs) == 0 {
			c.reset()
			return &ConnectError{Code: UnsupportedChain, ChainID: chainID, Cause: errors.Newf("no rpc url for %q", desc.Network)}
		}
	}

	c.update(func(s *State) { s.Activating = true })

	client, err := c.clients.ForChain(ctx, chainID)
	if err != nil {
		c.setClient(nil)
		c.reset()
		log.Warn("network connector activation failed", "chain_id", chainID, "error", err)
		return &ConnectError{Code: NoProvider, ChainID: chainID, Cause: err}
	}

	c.setClient(client)
	c.update(func(s *State) {
		s.Account = nil
		s.ChainID = &chainID
		s.Activating = false
	})
	log.Info("network connector active", "chain_id", chainID)
	return nil
}

func (c *NetworkConnector) Deactivate() {
	c.setClient(nil)
	c.reset()
}

// Client returns the read client of the active chain.
func (c *NetworkConnector) Client() (chains.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil {
		return nil, errors.New("network connector is not active")
	}
	return c.client, nil
}

func (c *NetworkConnector) setClient(client chains.Client) {
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}
