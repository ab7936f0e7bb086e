package wallet

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// Prompter asks the local user for the keystore password and for approvals.
type Prompter interface {
	Password(label string) ([]byte, error)
	Confirm(label string) (bool, error)
}

// KeystoreProvider is a local Provider backed by an encrypted keystore file.
// Unlock, chain changes and every transaction go through the Prompter.
type KeystoreProvider struct {
	keyJSON  []byte
	registry *chains.Registry
	clients  ClientSource
	prompter Prompter

	mu      sync.Mutex
	key     *keystore.Key
	chainID uint64
	known   map[uint64]bool
	subs    map[int]ProviderEvents
	nextSub int
}

var _ Provider = (*KeystoreProvider)(nil)

type KeystoreOption func(*KeystoreProvider)

// WithKnownChains limits the chains the wallet knows without an add request.
func WithKnownChains(ids ...uint64) KeystoreOption {
	return func(p *KeystoreProvider) {
		p.known = make(map[uint64]bool, len(ids))
		for _, id := range ids {
			p.known[id] = true
		}
	}
}

func WithStartChain(chainID uint64) KeystoreOption {
	return func(p *KeystoreProvider) { p.chainID = chainID }
}

func LoadKeystoreProvider(path string, registry *chains.Registry, clients ClientSource, prompter Prompter, opts ...KeystoreOption) (*KeystoreProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read keystore %s", path)
	}
	return NewKeystoreProvider(raw, registry, clients, prompter, opts...)
}

func NewKeystoreProvider(keyJSON []byte, registry *chains.Registry, clients ClientSource, prompter Prompter, opts ...KeystoreOption) (*KeystoreProvider, error) {
	if len(keyJSON) == 0 {
		return nil, errors.New("keystore is empty")
	}
	if registry == nil || clients == nil || prompter == nil {
		return nil, errors.New("keystore provider needs registry, clients and prompter")
	}

	p := &KeystoreProvider{
		keyJSON:  keyJSON,
		registry: registry,
		clients:  clients,
		prompter: prompter,
		subs:     make(map[int]ProviderEvents),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.known == nil {
		p.known = make(map[uint64]bool)
		for _, id := range registry.NetworkIDs() {
			p.known[id] = true
		}
	}
	if p.chainID == 0 {
		if def, ok := registry.Default(); ok {
			p.chainID = def.ChainID
		} else if ids := registry.NetworkIDs(); len(ids) > 0 {
			p.chainID = ids[0]
		}
	}
	return p, nil
}

func (p *KeystoreProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	p.mu.Lock()
	if p.key != nil {
		addr := p.key.Address
		p.mu.Unlock()
		return []common.Address{addr}, nil
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	password, err := p.prompter.Password("Keystore password: ")
	if err != nil || len(password) == 0 {
		return nil, ErrUserRejected("User rejected the request.")
	}
	defer zero(password)

	key, err := keystore.DecryptKey(p.keyJSON, string(password))
	if err != nil {
		return nil, &ProviderError{Code: CodeUnauthorized, Message: fmt.Sprintf("unlock keystore: %v", err)}
	}

	p.mu.Lock()
	if p.key == nil {
		p.key = key
	}
	addr := p.key.Address
	p.mu.Unlock()

	log.Info("keystore unlocked", "account", addr.Hex())
	return []common.Address{addr}, nil
}

func (p *KeystoreProvider) ChainID(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainID == 0 {
		return 0, &ProviderError{Code: CodeChainDisconnect, Message: "wallet has no chain"}
	}
	return p.chainID, nil
}

func (p *KeystoreProvider) SwitchChain(ctx context.Context, chainID uint64) error {
	p.mu.Lock()
	current := p.chainID
	known := p.known[chainID]
	p.mu.Unlock()

	if current == chainID {
		return nil
	}
	if !known {
		return &ProviderError{
			Code:    CodeUnrecognizedChain,
			Message: fmt.Sprintf("Unrecognized chain ID %d. Try adding the chain using wallet_addEthereumChain first.", chainID),
		}
	}

	name := fmt.Sprintf("chain %d", chainID)
	if desc, err := p.registry.Get(chainID); err == nil {
		name = desc.Name
	}
	if !p.confirm(fmt.Sprintf("Allow this site to switch the network to %s?", name)) {
		return ErrUserRejected("User rejected the request.")
	}

	p.mu.Lock()
	p.chainID = chainID
	subs := p.subscribers()
	p.mu.Unlock()

	for _, s := range subs {
		if s.ChainChanged != nil {
			s.ChainChanged(chainID)
		}
	}
	return nil
}

func (p *KeystoreProvider) AddChain(ctx context.Context, params chains.AddChainParameters) error {
	chainID, err := chains.ParseChainIDHex(params.ChainID)
	if err != nil {
		return &ProviderError{Code: -32602, Message: err.Error()}
	}
	// requests can only add chains this client can reach
	desc, err := p.registry.Get(chainID)
	if err != nil || len(desc.RPCURLs) == 0 {
		return &ProviderError{Code: CodeUnsupported, Message: fmt.Sprintf("chain %d cannot be added", chainID)}
	}

	name := params.ChainName
	if name == "" {
		name = desc.Name
	}
	if !p.confirm(fmt.Sprintf("Allow this site to add the network %s (%d)?", name, chainID)) {
		return ErrUserRejected("User rejected the request.")
	}

	p.mu.Lock()
	p.known[chainID] = true
	p.mu.Unlock()
	return nil
}

func (p *KeystoreProvider) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	p.mu.Lock()
	key := p.key
	chainID := p.chainID
	p.mu.Unlock()

	if key == nil {
		return common.Hash{}, &ProviderError{Code: CodeUnauthorized, Message: "wallet is locked"}
	}
	if req.From != (common.Address{}) && req.From != key.Address {
		return common.Hash{}, &ProviderError{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", req.From.Hex())}
	}
	if req.ChainID != 0 && req.ChainID != chainID {
		return common.Hash{}, &ProviderError{
			Code:    CodeChainDisconnect,
			Message: fmt.Sprintf("wallet is on chain %d, request targets chain %d", chainID, req.ChainID),
		}
	}

	client, err := p.clients.ForChain(ctx, chainID)
	if err != nil {
		return common.Hash{}, &ProviderError{Code: CodeChainDisconnect, Message: err.Error()}
	}

	to := "contract creation"
	if req.To != nil {
		to = req.To.Hex()
	}
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	if !p.confirm(fmt.Sprintf("Send transaction to %s with value %s wei on chain %d?", to, value.String(), chainID)) {
		return common.Hash{}, ErrUserRejected("User denied transaction signature.")
	}

	tx, err := buildTx(ctx, client, key.Address, chainID, req)
	if err != nil {
		return common.Hash{}, err
	}

	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(chainID))
	signed, err := types.SignTx(tx, signer, key.PrivateKey)
	if err != nil {
		return common.Hash{}, errors.Wrap(err, "sign")
	}

	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}

	log.Info("transaction sent", "hash", signed.Hash().Hex(), "chain_id", chainID, "nonce", signed.Nonce())
	return signed.Hash(), nil
}

func (p *KeystoreProvider) Subscribe(events ProviderEvents) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = events
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Lock forgets the decrypted key and tells subscribers the account is gone.
func (p *KeystoreProvider) Lock() {
	p.mu.Lock()
	p.key = nil
	subs := p.subscribers()
	p.mu.Unlock()

	for _, s := range subs {
		if s.AccountsChanged != nil {
			s.AccountsChanged(nil)
		}
	}
}

// subscribers must be called with p.mu held.
func (p *KeystoreProvider) subscribers() []ProviderEvents {
	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]ProviderEvents, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.subs[id])
	}
	return out
}

func (p *KeystoreProvider) confirm(label string) bool {
	ok, err := p.prompter.Confirm(label)
	if err != nil {
		log.Warn("prompt failed", "error", err)
		return false
	}
	return ok
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
