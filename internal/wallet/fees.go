package wallet

import (
	"context"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
)

const minGasLimit = 21_000

// buildTx fills nonce, gas and fees. EIP-1559 when the chain reports fees, legacy otherwise.
func buildTx(ctx context.Context, client chains.Client, from common.Address, chainID uint64, req TxRequest) (*types.Transaction, error) {
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, errors.Wrap(err, "nonce")
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit := req.Gas
	if gasLimit == 0 {
		gasLimit, err = estimateGasLimit(ctx, client, from, req.To, value, req.Data)
		if err != nil {
			return nil, err
		}
	}

	if maxFee, maxPrio, ok := suggest1559Fees(ctx, client); ok {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(chainID),
			Nonce:     nonce,
			GasTipCap: maxPrio,
			GasFeeCap: maxFee,
			Gas:       gasLimit,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		}), nil
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "gas price")
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       req.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     req.Data,
	}), nil
}

// estimateGasLimit adds a 10% margin. Estimation errors carry the revert reason, so they are returned as is.
func estimateGasLimit(ctx context.Context, client chains.Client, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{
		From:  from,
		To:    to,
		Value: value,
	}
	if len(data) > 0 {
		msg.Data = data
	}

	est, err := client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, err
	}

	u := est + est/10 // +10%
	if u < minGasLimit {
		u = minGasLimit
	}
	return u, nil
}

// suggest1559Fees tries fee history, then the tip cap on top of the latest base fee.
func suggest1559Fees(ctx context.Context, client chains.Client) (maxFee, maxPrio *big.Int, ok bool) {
	history, err := client.FeeHistory(ctx, 5, nil, []float64{10})
	if err == nil && history != nil && len(history.BaseFee) > 0 {
		baseNext := history.BaseFee[len(history.BaseFee)-1]

		var priority *big.Int
		if len(history.Reward) > 0 {
			last := history.Reward[len(history.Reward)-1]
			if len(last) > 0 && last[0] != nil && last[0].Sign() > 0 {
				priority = new(big.Int).Set(last[0])
			}
		}
		if priority == nil {
			if tip, tipErr := client.SuggestGasTipCap(ctx); tipErr == nil && tip != nil && tip.Sign() >= 0 {
				priority = tip
			}
		}

		if priority != nil && baseNext != nil {
			feeCap := new(big.Int).Mul(baseNext, big.NewInt(2))
			feeCap.Add(feeCap, priority)
			return feeCap, priority, true
		}
	}

	if header, err := client.HeaderByNumber(ctx, nil); err == nil && header != nil && header.BaseFee != nil {
		if tip, tipErr := client.SuggestGasTipCap(ctx); tipErr == nil && tip != nil {
			feeCap := new(big.Int).Mul(header.BaseFee, big.NewInt(2))
			feeCap.Add(feeCap, tip)
			return feeCap, tip, true
		}
	}

	return nil, nil, false
}
