package txflow

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/quantumauth-io/marketplace-client/internal/market"
	"github.com/quantumauth-io/marketplace-client/internal/metrics"
	"github.com/quantumauth-io/marketplace-client/internal/notify"
	"github.com/quantumauth-io/marketplace-client/internal/pinning"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

const (
	ActionBuy  = "Buy NFT"
	ActionMint = "Add New NFT"

	buySuccessMessage  = "bought done successfully"
	mintSuccessMessage = "Added sucessfully"

	MintKey = "mint"
)

type Kind string

const (
	KindBuy  Kind = "buy"
	KindMint Kind = "mint"
)

type Status string

const (
	Idle                 Status = "idle"
	Submitting           Status = "submitting"
	AwaitingConfirmation Status = "awaiting_confirmation"
	Confirmed            Status = "confirmed"
	Failed               Status = "failed"
)

func (s Status) Terminal() bool { return s == Confirmed || s == Failed }

// PendingTransaction is the live state of one trigger.
type PendingTransaction struct {
	Key       string               `json:"key"`
	Kind      Kind                 `json:"kind"`
	Status    Status               `json:"status"`
	Pinning   bool                 `json:"pinning,omitempty"`
	AttemptID string               `json:"attemptId"`
	Args      map[string]string    `json:"args"`
	ChainID   uint64               `json:"chainId,omitempty"`
	TxHash    string               `json:"txHash,omitempty"`
	TokenURI  string               `json:"tokenUri,omitempty"`
	Uploads   []pinning.UploadTask `json:"uploads,omitempty"`
	Error     *TxError             `json:"error,omitempty"`
	StartedAt time.Time            `json:"startedAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func (p PendingTransaction) inFlight() bool {
	return p.Pinning || p.Status == Submitting || p.Status == AwaitingConfirmation
}

type BuyRequest struct {
	ItemID *big.Int       `validate:"required"`
	Price  *big.Int       `validate:"required"`
	Seller common.Address `validate:"-"`
}

type MintRequest struct {
	Name        string `validate:"required"`
	Description string
	Assets      []pinning.Asset `validate:"required,min=1"`
}

func BuyKey(itemID *big.Int) string { return "buy:" + itemID.String() }

// SignerSource yields the signing capability of the connected wallet, or nil.
type SignerSource interface {
	Signer() wallet.SigningHandle
}

type TxHandle interface {
	TxHash() common.Hash
	AwaitConfirmation(ctx context.Context) (*types.Receipt, error)
}

type Contract interface {
	Buy(ctx context.Context, signer wallet.SigningHandle, itemID, price *big.Int) (TxHandle, error)
	Mint(ctx context.Context, signer wallet.SigningHandle, tokenURI string) (TxHandle, error)
}

type Pinner interface {
	Validate(c pinning.Content) error
	Run(ctx context.Context, c pinning.Content, observers ...pinning.Observer) (pinning.Result, error)
}

type entry struct {
	tx   PendingTransaction
	done chan struct{}
}

type Orchestrator struct {
	signers  SignerSource
	contract Contract
	pinner   Pinner
	notifier notify.Notifier
	recorder metrics.Recorder
	validate *validator.Validate
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	wg      sync.WaitGroup
}

type Option func(*Orchestrator)

func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func New(signers SignerSource, contract Contract, pinner Pinner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		signers:  signers,
		contract: contract,
		pinner:   pinner,
		notifier: notify.LogNotifier{},
		recorder: metrics.NoopRecorder{},
		validate: validator.New(),
		now:      time.Now,
		entries:  map[string]*entry{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Buy starts a purchase and returns once it is registered. The flow continues after ctx ends.
func (o *Orchestrator) Buy(ctx context.Context, req BuyRequest) (PendingTransaction, error) {
	if err := o.validate.Struct(req); err != nil {
		return PendingTransaction{}, errors.Wrap(err, "invalid buy request")
	}
	if req.ItemID.Sign() < 0 || req.Price.Sign() < 0 {
		return PendingTransaction{}, errors.New("invalid buy request: negative amount")
	}
	signer := o.signer()
	if signer == nil {
		return PendingTransaction{}, ErrNoSigner
	}

	args := map[string]string{
		"itemId": req.ItemID.String(),
		"price":  req.Price.String(),
		"seller": req.Seller.Hex(),
	}
	tx, err := o.begin(BuyKey(req.ItemID), KindBuy, args, false)
	if err != nil {
		return PendingTransaction{}, err
	}

	if signer.Address() == req.Seller {
		log.Warn("buying own listing", "item_id", req.ItemID.String(), "account", signer.Address().Hex())
	}

	itemID, price := new(big.Int).Set(req.ItemID), new(big.Int).Set(req.Price)
	o.spawn(ctx, func(ctx context.Context) {
		o.submit(ctx, tx, signer, func(ctx context.Context) (TxHandle, error) {
			return o.contract.Buy(ctx, signer, itemID, price)
		})
	})
	return tx, nil
}

// Mint pins the content, then calls mint with the resulting token URI.
func (o *Orchestrator) Mint(ctx context.Context, req MintRequest) (PendingTransaction, error) {
	content := pinning.Content{Name: req.Name, Description: req.Description, Assets: req.Assets}
	if err := o.pinner.Validate(content); err != nil {
		return PendingTransaction{}, err
	}
	if err := o.validate.Struct(req); err != nil {
		return PendingTransaction{}, errors.Wrap(err, "invalid mint request")
	}
	signer := o.signer()
	if signer == nil {
		return PendingTransaction{}, ErrNoSigner
	}

	args := map[string]string{"name": req.Name, "description": req.Description}
	for _, a := range req.Assets {
		args[a.Kind.String()] = a.FileName
	}
	tx, err := o.begin(MintKey, KindMint, args, true)
	if err != nil {
		return PendingTransaction{}, err
	}
	pending := make([]pinning.UploadTask, 0, len(req.Assets))
	for _, a := range req.Assets {
		pending = append(pending, pinning.UploadTask{Kind: a.Kind, FileName: a.FileName, Size: int64(len(a.Bytes)), State: pinning.TaskPending})
	}
	tx = o.update(tx, func(p *PendingTransaction) { p.Uploads = pending })

	started := tx
	o.spawn(ctx, func(ctx context.Context) {
		res, err := o.pinner.Run(ctx, content, func(task pinning.UploadTask) {
			o.trackUpload(started, task)
		})
		if err != nil {
			log.Error("pinning failed", "attempt_id", started.AttemptID, "error", err)
			failed := o.update(started, func(p *PendingTransaction) { p.Uploads = res.Tasks })
			o.fail(failed, &TxError{Code: Unknown, Message: err.Error(), Cause: err})
			return
		}
		cur := o.update(started, func(p *PendingTransaction) {
			p.Pinning = false
			p.Status = Submitting
			p.TokenURI = res.TokenURI
			p.Uploads = res.Tasks
		})

		o.submit(ctx, cur, signer, func(ctx context.Context) (TxHandle, error) {
			return o.contract.Mint(ctx, signer, res.TokenURI)
		})
	})
	return tx, nil
}

func (o *Orchestrator) submit(ctx context.Context, tx PendingTransaction, signer wallet.SigningHandle, call func(context.Context) (TxHandle, error)) {
	tx = o.update(tx, func(p *PendingTransaction) {
		p.Status = Submitting
		p.ChainID = signer.ChainID()
	})

	h, err := call(ctx)
	if err != nil {
		o.fail(tx, Classify(err))
		return
	}

	tx = o.update(tx, func(p *PendingTransaction) {
		p.Status = AwaitingConfirmation
		p.TxHash = h.TxHash().Hex()
	})

	if _, err := h.AwaitConfirmation(ctx); err != nil {
		o.fail(tx, Classify(err))
		return
	}
	o.finish(tx, Confirmed, nil)
}

func (o *Orchestrator) fail(tx PendingTransaction, txErr *TxError) {
	o.finish(tx, Failed, txErr)
}

func (o *Orchestrator) finish(tx PendingTransaction, status Status, txErr *TxError) {
	tx = o.update(tx, func(p *PendingTransaction) {
		p.Status = status
		p.Pinning = false
		p.Error = txErr
	})

	action, message := ActionBuy, buySuccessMessage
	if tx.Kind == KindMint {
		action, message = ActionMint, mintSuccessMessage
	}
	outcome := notify.Success
	if status == Failed {
		outcome = notify.Failure
		message = txErr.Error()
		log.Warn("transaction failed", "key", tx.Key, "attempt_id", tx.AttemptID, "code", txErr.Code.String(), "error", message)
	} else {
		log.Info("transaction confirmed", "key", tx.Key, "attempt_id", tx.AttemptID, "tx", tx.TxHash)
	}

	o.recorder.TxOutcome(string(tx.Kind), string(status), tx.ChainID, tx.UpdatedAt.Sub(tx.StartedAt))
	o.notifier.Notify(action, outcome, message)

	o.mu.Lock()
	if e, ok := o.entries[tx.Key]; ok && e.tx.AttemptID == tx.AttemptID {
		close(e.done)
	}
	o.mu.Unlock()
}

func (o *Orchestrator) begin(key string, kind Kind, args map[string]string, pinningFirst bool) (PendingTransaction, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if e, ok := o.entries[key]; ok && e.tx.inFlight() {
		return PendingTransaction{}, errors.Wrapf(ErrInFlight, "%s", key)
	}

	now := o.now()
	tx := PendingTransaction{
		Key:       key,
		Kind:      kind,
		Status:    Idle,
		Pinning:   pinningFirst,
		AttemptID: uuid.NewString(),
		Args:      args,
		StartedAt: now,
		UpdatedAt: now,
	}
	if !pinningFirst {
		// Buys move straight to submitting so the guard is closed before the goroutine starts.
		tx.Status = Submitting
	}
	o.entries[key] = &entry{tx: tx, done: make(chan struct{})}
	return tx, nil
}

// update applies fn to the live entry when it still belongs to tx's attempt.
func (o *Orchestrator) update(tx PendingTransaction, fn func(p *PendingTransaction)) PendingTransaction {
	o.mu.Lock()
	defer o.mu.Unlock()

	fn(&tx)
	tx.UpdatedAt = o.now()
	if e, ok := o.entries[tx.Key]; ok && e.tx.AttemptID == tx.AttemptID {
		e.tx = tx
	}
	return tx
}

// trackUpload mirrors one pipeline task into the live entry of tx's attempt.
func (o *Orchestrator) trackUpload(tx PendingTransaction, task pinning.UploadTask) {
	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[tx.Key]
	if !ok || e.tx.AttemptID != tx.AttemptID {
		return
	}
	uploads := append([]pinning.UploadTask(nil), e.tx.Uploads...)
	replaced := false
	for i := range uploads {
		if uploads[i].Kind == task.Kind {
			uploads[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		uploads = append(uploads, task)
	}
	e.tx.Uploads = uploads
	e.tx.UpdatedAt = o.now()
}

func (o *Orchestrator) spawn(ctx context.Context, fn func(ctx context.Context)) {
	flowCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(flowCtx)
	}()
}

func (o *Orchestrator) signer() wallet.SigningHandle {
	if o.signers == nil {
		return nil
	}
	return o.signers.Signer()
}

func (o *Orchestrator) Status(key string) (PendingTransaction, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	e, ok := o.entries[key]
	if !ok {
		return PendingTransaction{}, false
	}
	return e.tx, true
}

func (o *Orchestrator) Snapshot() []PendingTransaction {
	o.mu.Lock()
	out := make([]PendingTransaction, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.tx)
	}
	o.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Await blocks until the current attempt for key is terminal or ctx ends.
func (o *Orchestrator) Await(ctx context.Context, key string) (PendingTransaction, error) {
	o.mu.Lock()
	e, ok := o.entries[key]
	o.mu.Unlock()
	if !ok {
		return PendingTransaction{}, errors.Newf("no transaction for %s", key)
	}

	select {
	case <-e.done:
		tx, _ := o.Status(key)
		return tx, nil
	case <-ctx.Done():
		return PendingTransaction{}, ctx.Err()
	}
}

// Wait blocks until every started flow has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

type marketContract struct{ m *market.Market }

// MarketContract adapts a market.Market to Contract.
func MarketContract(m *market.Market) Contract { return marketContract{m: m} }

func (c marketContract) Buy(ctx context.Context, signer wallet.SigningHandle, itemID, price *big.Int) (TxHandle, error) {
	h, err := c.m.Buy(ctx, signer, itemID, price)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (c marketContract) Mint(ctx context.Context, signer wallet.SigningHandle, tokenURI string) (TxHandle, error) {
	h, err := c.m.Mint(ctx, signer, tokenURI)
	if err != nil {
		return nil, err
	}
	return h, nil
}
