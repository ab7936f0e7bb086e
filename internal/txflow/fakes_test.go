package txflow

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/marketplace-client/internal/notify"
	"github.com/quantumauth-io/marketplace-client/internal/pinning"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

var (
	account = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	seller  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeSigner struct{ chainID uint64 }

func (s fakeSigner) Address() common.Address { return account }
func (s fakeSigner) ChainID() uint64         { return s.chainID }
func (s fakeSigner) SendTransaction(context.Context, wallet.TxRequest) (common.Hash, error) {
	return common.Hash{}, nil
}

type signerSource struct{ signer wallet.SigningHandle }

func (s signerSource) Signer() wallet.SigningHandle { return s.signer }

type fakeHandle struct {
	hash    common.Hash
	release chan struct{}
	err     error
	ctxErr  error
}

func (h *fakeHandle) TxHash() common.Hash { return h.hash }

func (h *fakeHandle) AwaitConfirmation(ctx context.Context) (*types.Receipt, error) {
	if h.release != nil {
		<-h.release
	}
	h.ctxErr = ctx.Err()
	if h.err != nil {
		return nil, h.err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

type fakeContract struct {
	mu sync.Mutex

	handle  *fakeHandle
	sendErr error

	buys  []string
	mints []string
}

func (c *fakeContract) Buy(_ context.Context, _ wallet.SigningHandle, itemID, price *big.Int) (TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buys = append(c.buys, itemID.String()+"@"+price.String())
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	return c.handle, nil
}

func (c *fakeContract) Mint(_ context.Context, _ wallet.SigningHandle, tokenURI string) (TxHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mints = append(c.mints, tokenURI)
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	return c.handle, nil
}

func (c *fakeContract) buyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buys)
}

type note struct {
	action  string
	outcome notify.Outcome
	message string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (r *recordingNotifier) Notify(action string, outcome notify.Outcome, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, note{action, outcome, message})
}

func (r *recordingNotifier) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

// halfwayPinner reports the first asset half sent, then waits for release.
type halfwayPinner struct {
	reported chan struct{}
	release  chan struct{}
}

func (p *halfwayPinner) Validate(pinning.Content) error { return nil }

func (p *halfwayPinner) Run(_ context.Context, c pinning.Content, observers ...pinning.Observer) (pinning.Result, error) {
	a := c.Assets[0]
	task := pinning.UploadTask{
		Kind:     a.Kind,
		FileName: a.FileName,
		Size:     int64(len(a.Bytes)),
		Sent:     int64(len(a.Bytes)) / 2,
		Progress: 0.5,
		State:    pinning.TaskUploading,
	}
	for _, obs := range observers {
		obs(task)
	}
	close(p.reported)
	<-p.release
	return pinning.Result{TokenURI: "https://gw/ipfs/manifest"}, nil
}
