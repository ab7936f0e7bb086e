package http

import (
	"context"
	"io"
	"math/big"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/marketplace-client/internal/notify"
	"github.com/quantumauth-io/marketplace-client/internal/pinning"
	"github.com/quantumauth-io/marketplace-client/internal/switcher"
	"github.com/quantumauth-io/marketplace-client/internal/txflow"
	"github.com/quantumauth-io/marketplace-client/internal/utils"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const defaultMaxUpload = 64 << 20

type Switcher interface {
	SwitchChain(target switcher.Target)
	Options() []switcher.Option
	Desired() switcher.Target
}

type Transactions interface {
	Buy(ctx context.Context, req txflow.BuyRequest) (txflow.PendingTransaction, error)
	Mint(ctx context.Context, req txflow.MintRequest) (txflow.PendingTransaction, error)
	Status(key string) (txflow.PendingTransaction, bool)
	Snapshot() []txflow.PendingTransaction
}

type TokenReader interface {
	TokenURI(ctx context.Context, chainID uint64, tokenID *big.Int) (string, error)
}

type ErrorBoard interface {
	SetError(kind wallet.Kind, err error)
	Get(kind wallet.Kind) error
}

type Deps struct {
	Registry *chains.Registry
	Primary  wallet.Connector
	Network  wallet.Connector
	Injected wallet.Connector
	Switcher Switcher
	Errors   ErrorBoard
	Tx       Transactions
	Tokens   TokenReader
	Feed     *notify.Feed

	MaxUploadBytes int64
}

type Handler struct {
	d Deps
}

func NewHandler(d Deps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	if d.Errors == nil {
		d.Errors = switcher.NewErrorBoard()
	}
	if d.Feed == nil {
		d.Feed = notify.NewFeed(0)
	}
	return &Handler{d: d}
}

func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /api/wallet
func (h *Handler) Wallet(c *gin.Context) {
	res := walletRes{Primary: h.d.Primary.Kind().String()}
	for _, conn := range []wallet.Connector{h.d.Network, h.d.Injected} {
		if conn == nil {
			continue
		}
		res.Connected = append(res.Connected, toConnectorRes(conn.State(), h.errorText(conn.Kind())))
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/wallet/connect
func (h *Handler) Connect(c *gin.Context) {
	var req connectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	conn, ok := h.connector(req.Kind)
	if !ok {
		abort(c, http.StatusNotFound, errors.Newf("connector %q not configured", req.Kind))
		return
	}

	err := conn.Activate(c.Request.Context(), req.ChainID)
	h.d.Errors.SetError(conn.Kind(), err)
	if err != nil {
		log.Warn("wallet connect failed", "kind", req.Kind, "error", err)
		abort(c, connectStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, toConnectorRes(conn.State(), ""))
}

// POST /api/wallet/disconnect
func (h *Handler) Disconnect(c *gin.Context) {
	var req disconnectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	conn, ok := h.connector(req.Kind)
	if !ok {
		abort(c, http.StatusNotFound, errors.Newf("connector %q not configured", req.Kind))
		return
	}
	conn.Deactivate()
	h.d.Errors.SetError(conn.Kind(), nil)
	c.JSON(http.StatusOK, toConnectorRes(conn.State(), ""))
}

// GET /api/chains
func (h *Handler) Chains(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": h.d.Registry.All()})
}

// GET /api/chains/options
func (h *Handler) ChainOptions(c *gin.Context) {
	c.JSON(http.StatusOK, optionsRes{
		Desired: uint64(h.d.Switcher.Desired()),
		Options: h.d.Switcher.Options(),
	})
}

// POST /api/chains/switch
func (h *Handler) SwitchChain(c *gin.Context) {
	var req switchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	target := switcher.Target(*req.ChainID)
	if target != switcher.Default && !h.d.Registry.Has(*req.ChainID) {
		abort(c, http.StatusUnprocessableEntity, errors.Wrapf(chains.ErrChainNotFound, "chainId %d", *req.ChainID))
		return
	}

	h.d.Switcher.SwitchChain(target)
	c.JSON(http.StatusAccepted, gin.H{"desired": uint64(target)})
}

// POST /api/market/buy
func (h *Handler) Buy(c *gin.Context) {
	var req buyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	itemID, err := utils.ParseBigInt(req.ItemID)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	price, err := utils.ParseBigInt(req.Price)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	var seller common.Address
	if req.Seller != "" {
		if !common.IsHexAddress(req.Seller) {
			abort(c, http.StatusBadRequest, errors.Newf("invalid seller address %q", req.Seller))
			return
		}
		seller = common.HexToAddress(req.Seller)
	}

	if ok, reason := h.canBuy(seller); !ok && !req.Force {
		abort(c, http.StatusConflict, errors.New(reason))
		return
	}

	tx, err := h.d.Tx.Buy(c.Request.Context(), txflow.BuyRequest{ItemID: itemID, Price: price, Seller: seller})
	if err != nil {
		writeTxError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, buyRes{Transaction: tx, PriceDisplay: h.priceDisplay(price)})
}

// GET /api/market/items/:id/can-buy?seller=0x...
func (h *Handler) CanBuy(c *gin.Context) {
	itemID := c.Param("id")
	seller := c.Query("seller")
	if !common.IsHexAddress(seller) {
		abort(c, http.StatusBadRequest, errors.Newf("invalid seller address %q", seller))
		return
	}
	ok, reason := h.canBuy(common.HexToAddress(seller))
	c.JSON(http.StatusOK, canBuyRes{ItemID: itemID, CanBuy: ok, Reason: reason})
}

// GET /api/market/tokens/:id/uri?chainId=
func (h *Handler) TokenURI(c *gin.Context) {
	tokenID, err := utils.ParseBigInt(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	chainID, ok := h.d.Primary.CurrentChainID()
	if raw := c.Query("chainId"); raw != "" {
		chainID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			abort(c, http.StatusBadRequest, errors.Wrap(err, "chainId"))
			return
		}
		ok = true
	}
	if !ok {
		abort(c, http.StatusPreconditionRequired, errors.New("no active chain"))
		return
	}

	uri, err := h.d.Tokens.TokenURI(c.Request.Context(), chainID, tokenID)
	if err != nil {
		abort(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, tokenURIRes{ChainID: chainID, TokenID: tokenID.String(), TokenURI: uri})
}

// POST /api/market/mint (multipart: name, description, image, audio)
func (h *Handler) Mint(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 3*h.d.MaxUploadBytes)

	req := txflow.MintRequest{
		Name:        strings.TrimSpace(c.PostForm("name")),
		Description: c.PostForm("description"),
	}
	for _, field := range []struct {
		name string
		kind pinning.AssetKind
	}{{"image", pinning.AssetImage}, {"audio", pinning.AssetAudio}} {
		fh, err := c.FormFile(field.name)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			abort(c, http.StatusBadRequest, err)
			return
		}
		data, err := h.readUpload(fh)
		if err != nil {
			abort(c, http.StatusBadRequest, errors.Wrapf(err, "read %s", field.name))
			return
		}
		req.Assets = append(req.Assets, pinning.Asset{Kind: field.kind, FileName: fh.Filename, Bytes: data})
	}

	tx, err := h.d.Tx.Mint(c.Request.Context(), req)
	if err != nil {
		writeTxError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transaction": tx})
}

// GET /api/tx
func (h *Handler) Transactions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transactions": h.d.Tx.Snapshot()})
}

// GET /api/tx/:key
func (h *Handler) Transaction(c *gin.Context) {
	tx, ok := h.d.Tx.Status(c.Param("key"))
	if !ok {
		abort(c, http.StatusNotFound, errors.Newf("no transaction for %s", c.Param("key")))
		return
	}
	c.JSON(http.StatusOK, tx)
}

// GET /api/notifications?after=
func (h *Handler) Notifications(c *gin.Context) {
	var after uint64
	if raw := c.Query("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			abort(c, http.StatusBadRequest, errors.Wrap(err, "after"))
			return
		}
		after = v
	}
	c.JSON(http.StatusOK, gin.H{"notifications": h.d.Feed.Since(after)})
}

func (h *Handler) connector(kind string) (wallet.Connector, bool) {
	k, err := wallet.ParseKind(kind)
	if err != nil {
		return nil, false
	}
	var conn wallet.Connector
	switch k {
	case wallet.KindInjected:
		conn = h.d.Injected
	case wallet.KindNetwork:
		conn = h.d.Network
	}
	return conn, conn != nil
}

// canBuy mirrors the buy button: it needs a connected account that is not the seller.
func (h *Handler) canBuy(seller common.Address) (bool, string) {
	if h.d.Injected == nil {
		return false, "no wallet connected"
	}
	account, ok := h.d.Injected.CurrentAccount()
	if !ok {
		return false, "no wallet connected"
	}
	if account == seller {
		return false, "seller cannot buy own item"
	}
	return true, ""
}

func (h *Handler) priceDisplay(price *big.Int) string {
	var chainID uint64
	if h.d.Injected != nil {
		chainID, _ = h.d.Injected.CurrentChainID()
	}
	desc, err := h.d.Registry.Get(chainID)
	if err != nil || desc.NativeCurrency.Symbol == "" {
		return utils.FormatUnitsTrim(price, 18, 6)
	}
	return utils.FormatUnitsTrim(price, desc.NativeCurrency.Decimals, 6) + " " + desc.NativeCurrency.Symbol
}

func (h *Handler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.d.MaxUploadBytes {
		return nil, errors.Newf("file larger than %d bytes", h.d.MaxUploadBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, h.d.MaxUploadBytes))
}

func (h *Handler) errorText(kind wallet.Kind) string {
	if h.d.Errors == nil {
		return ""
	}
	if err := h.d.Errors.Get(kind); err != nil {
		return err.Error()
	}
	return ""
}
