package chains

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/retry"
)

// Client is the RPC surface used by connectors, signers and contract calls.
// *ethclient.Client satisfies it.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

type DialFunc func(ctx context.Context, url string) (Client, error)

func dialEth(ctx context.Context, url string) (Client, error) {
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to connect to blockchain at %s", url)
	}
	return c, nil
}

// ClientPool dials one client per chain id and caches it.
type ClientPool struct {
	registry    *Registry
	dial        DialFunc
	dialTimeout time.Duration
	retryDelay  time.Duration

	mu      sync.Mutex
	clients map[uint64]Client
}

type PoolOption func(*ClientPool)

func WithDialFunc(dial DialFunc) PoolOption {
	return func(p *ClientPool) { p.dial = dial }
}

func WithDialTimeout(d time.Duration) PoolOption {
	return func(p *ClientPool) { p.dialTimeout = d }
}

func NewClientPool(registry *Registry, opts ...PoolOption) *ClientPool {
	p := &ClientPool{
		registry:    registry,
		dial:        dialEth,
		dialTimeout: 15 * time.Second,
		retryDelay:  2 * time.Second,
		clients:     make(map[uint64]Client),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ForChain returns (and caches) the client for chainID.
func (p *ClientPool) ForChain(ctx context.Context, chainID uint64) (Client, error) {
	p.mu.Lock()
	if existing := p.clients[chainID]; existing != nil {
		p.mu.Unlock()
		return existing, nil
	}
	p.mu.Unlock()

	desc, err := p.registry.Get(chainID)
	if err != nil {
		return nil, err
	}
	if len(desc.RPCURLs) == 0 {
		return nil, errors.Newf("network %q has no RPCs configured", desc.Network)
	}

	// Dial outside the lock
	dialed, err := p.dialVerified(ctx, desc)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if existing := p.clients[chainID]; existing != nil {
		p.mu.Unlock()
		dialed.Close()
		return existing, nil
	}
	p.clients[chainID] = dialed
	p.mu.Unlock()

	return dialed, nil
}

// dialVerified tries each url in order and keeps the first whose remote chain id matches.
func (p *ClientPool) dialVerified(ctx context.Context, desc ChainDescriptor) (Client, error) {
	ctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
	defer cancel()

	var lastErr error
	for _, url := range desc.RPCURLs {
		client, err := p.dial(ctx, url)
		if err != nil {
			lastErr = err
			log.Warn("rpc dial failed", "chain_id", desc.ChainID, "error", err)
			continue
		}

		remote, err := p.remoteChainID(ctx, client)
		if err != nil {
			client.Close()
			lastErr = errors.Wrapf(err, "chain id from %s", desc.Network)
			continue
		}
		if remote != desc.ChainID {
			client.Close()
			lastErr = errors.Newf("rpc for %q reports chainId %d, want %d", desc.Network, remote, desc.ChainID)
			continue
		}

		log.Info("rpc connected", "network", desc.Network, "chain_id", desc.ChainID)
		return client, nil
	}
	if lastErr == nil {
		lastErr = errors.Newf("network %q has no RPCs configured", desc.Network)
	}
	return nil, lastErr
}

func (p *ClientPool) remoteChainID(ctx context.Context, client Client) (uint64, error) {
	cfg := retry.DefaultConfig()
	cfg.MaxDelayBeforeRetrying = p.retryDelay
	cfg.InitialDelayBeforeRetrying = p.retryDelay / 10

	var chainID *big.Int
	_, err := retry.Retry(ctx, cfg,
		func(ctx context.Context) ([]interface{}, error) {
			id, err := client.ChainID(ctx)
			if err != nil {
				return nil, err
			}
			chainID = id
			return nil, nil
		},
		nil, // always retry
		"get chain id from rpc")
	if err != nil {
		return 0, err
	}
	if chainID == nil {
		return 0, errors.New("rpc returned no chain id")
	}
	return chainID.Uint64(), nil
}

// Close closes all cached clients (call on shutdown).
func (p *ClientPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, client := range p.clients {
		client.Close()
		delete(p.clients, id)
	}
}
