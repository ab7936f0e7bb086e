package market

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var ErrNoContracts = errors.New("no marketplace contracts on this chain")

// Addresses are the deployed contracts of one chain.
type Addresses struct {
	Market common.Address `json:"market"`
	NFT    common.Address `json:"nft"`
}

// Market sends buy and mint calls through a wallet signer and hands back a TxHandle.
type Market struct {
	book     map[uint64]Addresses
	receipts wallet.ClientSource
	wait     WaitConfig
}

type Option func(*Market)

func WithWaitConfig(cfg WaitConfig) Option {
	return func(m *Market) { m.wait = cfg }
}

func New(book map[uint64]Addresses, receipts wallet.ClientSource, opts ...Option) *Market {
	m := &Market{
		book:     make(map[uint64]Addresses, len(book)),
		receipts: receipts,
		wait:     DefaultWaitConfig(),
	}
	for id, a := range book {
		m.book[id] = a
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Market) Addresses(chainID uint64) (Addresses, error) {
	a, ok := m.book[chainID]
	if !ok {
		return Addresses{}, errors.Wrapf(ErrNoContracts, "chainId %d", chainID)
	}
	return a, nil
}

// Buy calls buyMarketItem(itemId) with price attached as value.
func (m *Market) Buy(ctx context.Context, signer wallet.SigningHandle, itemID, price *big.Int) (*TxHandle, error) {
	addrs, err := m.Addresses(signer.ChainID())
	if err != nil {
		return nil, err
	}
	if addrs.Market == (common.Address{}) {
		return nil, errors.Wrapf(ErrNoContracts, "market address missing on chainId %d", signer.ChainID())
	}
	data, err := PackBuy(itemID)
	if err != nil {
		return nil, err
	}

	value := new(big.Int)
	if price != nil {
		value.Set(price)
	}

	hash, err := signer.SendTransaction(ctx, wallet.TxRequest{To: &addrs.Market, Value: value, Data: data})
	if err != nil {
		return nil, err
	}
	log.Info("buy submitted", "item_id", itemID.String(), "tx", hash.Hex(), "chain_id", signer.ChainID())
	return m.handle(hash, signer.ChainID()), nil
}

// Mint calls mintToken(tokenURI) on the NFT contract.
func (m *Market) Mint(ctx context.Context, signer wallet.SigningHandle, tokenURI string) (*TxHandle, error) {
	addrs, err := m.Addresses(signer.ChainID())
	if err != nil {
		return nil, err
	}
	if addrs.NFT == (common.Address{}) {
		return nil, errors.Wrapf(ErrNoContracts, "nft address missing on chainId %d", signer.ChainID())
	}
	data, err := PackMint(tokenURI)
	if err != nil {
		return nil, err
	}

	hash, err := signer.SendTransaction(ctx, wallet.TxRequest{To: &addrs.NFT, Data: data})
	if err != nil {
		return nil, err
	}
	log.Info("mint submitted", "token_uri", tokenURI, "tx", hash.Hex(), "chain_id", signer.ChainID())
	return m.handle(hash, signer.ChainID()), nil
}

func (m *Market) handle(hash common.Hash, chainID uint64) *TxHandle {
	return &TxHandle{Hash: hash, ChainID: chainID, source: m.receipts, wait: m.wait}
}
