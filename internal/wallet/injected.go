package wallet

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// InjectedConnector drives a user wallet through a Provider.
type InjectedConnector struct {
	*stateHolder
	provider Provider
	registry *chains.Registry

	subOnce sync.Once
	unsub   func()
}

var _ Connector = (*InjectedConnector)(nil)

// NewInjectedConnector accepts a nil provider; activation then fails with NoProvider.
func NewInjectedConnector(provider Provider, registry *chains.Registry) *InjectedConnector {
	return &InjectedConnector{
		stateHolder: newStateHolder(KindInjected),
		provider:    provider,
		registry:    registry,
	}
}

func (c *InjectedConnector) Kind() Kind { return KindInjected }

func (c *InjectedConnector) State() State { return c.snapshot() }

func (c *InjectedConnector) CurrentAccount() (common.Address, bool) { return c.account() }

func (c *InjectedConnector) CurrentChainID() (uint64, bool) { return c.chainID() }

func (c *InjectedConnector) IsActive() bool { return c.snapshot().IsActive() }

func (c *InjectedConnector) IsActivating() bool { return c.snapshot().Activating }

func (c *InjectedConnector) Subscribe(fn func(State)) func() { return c.subscribe(fn) }

func (c *InjectedConnector) Activate(ctx context.Context, target *uint64) error {
	var targetID uint64
	if target != nil {
		targetID = *target
	}

	if c.provider == nil {
		c.reset()
		return &ConnectError{Code: NoProvider, ChainID: targetID}
	}

	c.update(func(s *State) { s.Activating = true })
	c.listen()

	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		return c.fail(toConnectError(err, targetID, NoProvider))
	}
	if len(accounts) == 0 {
		return c.fail(&ConnectError{Code: UserRejected, ChainID: targetID, Cause: errors.New("no accounts authorized")})
	}

	current, err := c.provider.ChainID(ctx)
	if err != nil {
		return c.fail(toConnectError(err, targetID, NoProvider))
	}

	if target != nil && *target != current {
		if err := c.switchOrAdd(ctx, *target); err != nil {
			return c.fail(err)
		}
		current = *target
	}

	account := accounts[0]
	c.update(func(s *State) {
		s.Account = &account
		s.ChainID = &current
		s.Activating = false
	})
	log.Info("injected wallet connected", "account", account.Hex(), "chain_id", current)
	return nil
}

// switchOrAdd asks the wallet to switch, adding the chain first when the wallet does not know it.
func (c *InjectedConnector) switchOrAdd(ctx context.Context, chainID uint64) error {
	err := c.provider.SwitchChain(ctx, chainID)
	if err == nil {
		return nil
	}
	if code, ok := ProviderCodeOf(err); !ok || code != CodeUnrecognizedChain {
		return toConnectError(err, chainID, UnsupportedChain)
	}

	if c.registry == nil {
		return &ConnectError{Code: UnsupportedChain, ChainID: chainID, Cause: err}
	}
	params, perr := c.registry.AddChainParameters(chainID)
	if perr != nil {
		return &ConnectError{Code: UnsupportedChain, ChainID: chainID, Cause: perr}
	}
	if aerr := c.provider.AddChain(ctx, params); aerr != nil {
		return toConnectError(aerr, chainID, UnsupportedChain)
	}
	if serr := c.provider.SwitchChain(ctx, chainID); serr != nil {
		return toConnectError(serr, chainID, UnsupportedChain)
	}
	return nil
}

func (c *InjectedConnector) fail(err *ConnectError) error {
	c.reset()
	log.Warn("injected wallet activation failed", "code", err.Code.String(), "error", err)
	return err
}

func (c *InjectedConnector) Deactivate() {
	c.reset()
}

// Close drops the provider subscription.
func (c *InjectedConnector) Close() {
	if c.unsub != nil {
		c.unsub()
	}
}

func (c *InjectedConnector) Signer() SigningHandle {
	s := c.snapshot()
	if c.provider == nil || s.Account == nil || s.ChainID == nil || s.Activating {
		return nil
	}
	return &providerSigner{provider: c.provider, from: *s.Account, chainID: *s.ChainID}
}

func (c *InjectedConnector) listen() {
	c.subOnce.Do(func() {
		c.unsub = c.provider.Subscribe(ProviderEvents{
			AccountsChanged: c.onAccountsChanged,
			ChainChanged:    c.onChainChanged,
			Disconnect:      c.onDisconnect,
		})
	})
}

func (c *InjectedConnector) onAccountsChanged(accounts []common.Address) {
	if len(accounts) == 0 {
		// wallet locked or site disconnected
		c.reset()
		return
	}
	account := accounts[0]
	c.update(func(s *State) {
		if s.ChainID == nil {
			return
		}
		s.Account = &account
	})
}

func (c *InjectedConnector) onChainChanged(chainID uint64) {
	c.update(func(s *State) {
		if s.Account == nil {
			return
		}
		s.ChainID = &chainID
	})
}

func (c *InjectedConnector) onDisconnect(err error) {
	log.Warn("injected wallet disconnected", "error", err)
	c.reset()
}
