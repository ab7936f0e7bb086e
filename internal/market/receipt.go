package market

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

type WaitConfig struct {
	InitialDelay time.Duration
	Step         time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
}

func DefaultWaitConfig() WaitConfig {
	return WaitConfig{
		InitialDelay: 750 * time.Millisecond,
		Step:         250 * time.Millisecond,
		MaxDelay:     3 * time.Second,
		Timeout:      10 * time.Minute,
	}
}

// RevertError is a mined transaction with status 0.
type RevertError struct {
	TxHash  common.Hash
	Receipt *types.Receipt
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("transaction failed (transactionHash=%s, status=0)", e.TxHash.Hex())
}

// TxHandle is a submitted transaction.
type TxHandle struct {
	Hash    common.Hash
	ChainID uint64

	source wallet.ClientSource
	wait   WaitConfig
}

func (h *TxHandle) TxHash() common.Hash { return h.Hash }

// AwaitConfirmation polls for the receipt until mined, ctx ends or the timeout passes.
func (h *TxHandle) AwaitConfirmation(ctx context.Context) (*types.Receipt, error) {
	if h.source == nil {
		return nil, errors.New("no receipt source")
	}
	client, err := h.source.ForChain(ctx, h.ChainID)
	if err != nil {
		return nil, err
	}

	cfg := h.wait
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	delay := cfg.InitialDelay
	for {
		receipt, err := client.TransactionReceipt(ctx, h.Hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, &RevertError{TxHash: h.Hash, Receipt: receipt}
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			return nil, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, errors.Newf("timeout waiting for tx %s", h.Hash.Hex())
			}
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay += cfg.Step
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
