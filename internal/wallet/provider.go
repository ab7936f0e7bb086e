package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
)

// Provider is a user-controlled wallet. Every method may block on a user prompt.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params chains.AddChainParameters) error
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
	Subscribe(events ProviderEvents) (unsubscribe func())
}

// ProviderEvents are the wallet notifications a connector reflects into its state.
type ProviderEvents struct {
	AccountsChanged func(accounts []common.Address)
	ChainChanged    func(chainID uint64)
	Disconnect      func(err error)
}

// TxRequest is an unsigned call. Zero Gas means estimate.
type TxRequest struct {
	From    common.Address
	ChainID uint64
	To      *common.Address
	Value   *big.Int
	Data    []byte
	Gas     uint64
}

// SigningHandle sends transactions as the connected account.
type SigningHandle interface {
	Address() common.Address
	ChainID() uint64
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
}

type providerSigner struct {
	provider Provider
	from     common.Address
	chainID  uint64
}

func (s *providerSigner) Address() common.Address { return s.from }

func (s *providerSigner) ChainID() uint64 { return s.chainID }

func (s *providerSigner) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	req.From = s.from
	req.ChainID = s.chainID
	return s.provider.SendTransaction(ctx, req)
}
