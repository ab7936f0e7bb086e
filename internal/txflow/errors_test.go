package txflow

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/stretchr/testify/assert"
)

type rpcErr struct {
	code int
	msg  string
}

func (e rpcErr) Error() string  { return e.msg }
func (e rpcErr) ErrorCode() int { return e.code }

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    ErrorCode
		message string
	}{
		{"provider rejection", wallet.ErrUserRejected("User rejected the request."), UserRejected, "User rejected the request."},
		{"provider disconnected", &wallet.ProviderError{Code: wallet.CodeDisconnected, Message: "disconnected"}, NetworkUnavailable, "disconnected"},
		{"rpc revert", errors.Wrap(rpcErr{code: 3, msg: "execution reverted: Price mismatch"}, "estimate gas"), Reverted, "execution reverted: Price mismatch"},
		{"revert token", errors.New("execution reverted"), Reverted, "execution reverted"},
		{"deadline", errors.Wrap(context.DeadlineExceeded, "receipt"), NetworkUnavailable, "receipt: context deadline exceeded"},
		{"timeout token", errors.New("i/o timeout"), NetworkUnavailable, "i/o timeout"},
		{"unknown", errors.New("nonce too low"), Unknown, "nonce too low"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.message, got.Message)
			assert.Equal(t, tc.message, got.Error())
		})
	}

	assert.Nil(t, Classify(nil))
}

func TestTxErrorGenericMessage(t *testing.T) {
	assert.Equal(t, "request rejected in wallet", (&TxError{Code: UserRejected}).Error())
	assert.Equal(t, "transaction failed", (&TxError{}).Error())
}
