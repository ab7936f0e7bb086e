package http

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/switcher"
	"github.com/quantumauth-io/marketplace-client/internal/txflow"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

// -------- DTOs for the local client API --------

type connectReq struct {
	Kind    string  `json:"kind"    binding:"required,oneof=injected network"`
	ChainID *uint64 `json:"chainId"`
}

type disconnectReq struct {
	Kind string `json:"kind" binding:"required,oneof=injected network"`
}

type switchReq struct {
	// 0 selects the default chain
	ChainID *uint64 `json:"chainId" binding:"required"`
}

type buyReq struct {
	ItemID string `json:"itemId" binding:"required,numeric"`
	Price  string `json:"price"  binding:"required,numeric"`
	Seller string `json:"seller"`
	Force  bool   `json:"force"`
}

type connectorRes struct {
	Kind       string          `json:"kind"`
	Account    *common.Address `json:"account,omitempty"`
	ChainID    *uint64         `json:"chainId,omitempty"`
	Active     bool            `json:"active"`
	Activating bool            `json:"activating"`
	Error      string          `json:"error,omitempty"`
}

type walletRes struct {
	Primary   string         `json:"primary"`
	Connected []connectorRes `json:"connectors"`
}

type optionsRes struct {
	Desired uint64            `json:"desired"`
	Options []switcher.Option `json:"options"`
}

type buyRes struct {
	Transaction  txflow.PendingTransaction `json:"transaction"`
	PriceDisplay string                    `json:"priceDisplay,omitempty"`
}

type canBuyRes struct {
	ItemID string `json:"itemId"`
	CanBuy bool   `json:"canBuy"`
	Reason string `json:"reason,omitempty"`
}

type tokenURIRes struct {
	ChainID  uint64 `json:"chainId"`
	TokenID  string `json:"tokenId"`
	TokenURI string `json:"tokenUri"`
}

func toConnectorRes(s wallet.State, errMsg string) connectorRes {
	return connectorRes{
		Kind:       s.Kind.String(),
		Account:    s.Account,
		ChainID:    s.ChainID,
		Active:     s.IsActive(),
		Activating: s.Activating,
		Error:      errMsg,
	}
}
