package wallet

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
)

func testRegistry() *chains.Registry {
	cfg := &chains.AllChainsConfig{
		Networks: map[string]chains.NetworkConfig{
			"mainnet": {ChainID: 1, RPCs: []chains.RPC{{Name: "public", URL: "https://eth.example"}}},
			"polygon": {
				ChainID:        137,
				RPCs:           []chains.RPC{{Name: "public", URL: "https://polygon.example"}},
				NativeCurrency: chains.NativeCurrency{Name: "Matic", Symbol: "MATIC", Decimals: 18},
			},
			"mumbai": {ChainID: 80001, RPCs: []chains.RPC{{Name: "public", URL: "https://mumbai.example"}}},
			"offline": {ChainID: 5},
		},
	}
	cfg.Normalize()
	r, err := chains.NewRegistry(cfg, 80001)
	if err != nil {
		panic(err)
	}
	return r
}

type fakeProvider struct {
	mu sync.Mutex

	accounts    []common.Address
	accountsErr error
	chainID     uint64
	known       map[uint64]bool
	switchErr   error
	addErr      error
	sendHash    common.Hash
	sendErr     error

	switchCalls []uint64
	added       []chains.AddChainParameters
	sent        []TxRequest
	events      ProviderEvents
}

func (f *fakeProvider) RequestAccounts(context.Context) ([]common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts, f.accountsErr
}

func (f *fakeProvider) ChainID(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chainID, nil
}

func (f *fakeProvider) SwitchChain(_ context.Context, chainID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switchCalls = append(f.switchCalls, chainID)
	if f.switchErr != nil {
		return f.switchErr
	}
	if f.known != nil && !f.known[chainID] {
		return &ProviderError{Code: CodeUnrecognizedChain, Message: "Unrecognized chain ID"}
	}
	f.chainID = chainID
	return nil
}

func (f *fakeProvider) AddChain(_ context.Context, params chains.AddChainParameters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, params)
	if f.addErr != nil {
		return f.addErr
	}
	id, err := chains.ParseChainIDHex(params.ChainID)
	if err != nil {
		return err
	}
	f.known[id] = true
	return nil
}

func (f *fakeProvider) SendTransaction(_ context.Context, req TxRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return f.sendHash, f.sendErr
}

func (f *fakeProvider) Subscribe(events ProviderEvents) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
	return func() {}
}

type fakeClient struct {
	chains.Client

	mu       sync.Mutex
	chainID  uint64
	nonce    uint64
	gas      uint64
	gasErr   error
	baseFee  *big.Int
	tip      *big.Int
	sent     []*types.Transaction
	sendErr  error
	receipts map[common.Hash]*types.Receipt
}

func (c *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(c.chainID), nil
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return c.nonce, nil
}

func (c *fakeClient) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return c.gas, c.gasErr
}

func (c *fakeClient) FeeHistory(context.Context, uint64, *big.Int, []float64) (*ethereum.FeeHistory, error) {
	return nil, ethereum.NotFound
}

func (c *fakeClient) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: c.baseFee}, nil
}

func (c *fakeClient) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return c.tip, nil
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeClient) Close() {}

type fakeClients struct {
	clients map[uint64]*fakeClient
	err     error
	calls   []uint64
}

func (f *fakeClients) ForChain(_ context.Context, chainID uint64) (chains.Client, error) {
	f.calls = append(f.calls, chainID)
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.clients[chainID]
	if !ok {
		c = &fakeClient{chainID: chainID}
		if f.clients == nil {
			f.clients = map[uint64]*fakeClient{}
		}
		f.clients[chainID] = c
	}
	return c, nil
}
