package txflow

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/quantumauth-io/marketplace-client/internal/market"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

var (
	ErrInFlight = errors.New("a transaction for this action is already in flight")
	ErrNoSigner = errors.New("no connected account can sign")
)

type ErrorCode int

const (
	Unknown ErrorCode = iota
	Reverted
	UserRejected
	NetworkUnavailable
)

func (c ErrorCode) String() string {
	switch c {
	case Reverted:
		return "reverted"
	case UserRejected:
		return "user_rejected"
	case NetworkUnavailable:
		return "network_unavailable"
	default:
		return "unknown"
	}
}

func (c ErrorCode) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// TxError is a failed buy or mint. Message is what the remote side reported.
type TxError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *TxError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return genericMessage(e.Code)
}

func (e *TxError) Unwrap() error { return e.Cause }

func genericMessage(code ErrorCode) string {
	switch code {
	case Reverted:
		return "transaction reverted"
	case UserRejected:
		return "request rejected in wallet"
	case NetworkUnavailable:
		return "network unavailable"
	default:
		return "transaction failed"
	}
}

var (
	revertTokens  = []string{"execution reverted", "reverted", "insufficient funds", "call exception"}
	rejectTokens  = []string{"user denied", "user rejected", "rejected by user", "declined"}
	networkTokens = []string{"connection refused", "connection reset", "timeout", "no such host", "eof", "network is unreachable", "dial tcp"}
)

// Classify turns a submit or confirmation failure into a TxError without rewriting its message.
func Classify(err error) *TxError {
	if err == nil {
		return nil
	}
	var te *TxError
	if errors.As(err, &te) {
		return te
	}

	out := &TxError{Code: Unknown, Message: err.Error(), Cause: err}

	var pe *wallet.ProviderError
	if errors.As(err, &pe) {
		out.Message = pe.Message
		switch pe.Code {
		case wallet.CodeUserRejected, wallet.CodeUnauthorized:
			out.Code = UserRejected
			return out
		case wallet.CodeDisconnected, wallet.CodeChainDisconnect:
			out.Code = NetworkUnavailable
			return out
		}
	}

	var rev *market.RevertError
	if errors.As(err, &rev) {
		out.Code = Reverted
		out.Message = rev.Error()
		return out
	}

	var re rpc.Error
	if errors.As(err, &re) {
		out.Message = re.Error()
		// 3 is the execution-reverted code go-ethereum uses for eth_call and eth_estimateGas.
		if re.ErrorCode() == 3 {
			out.Code = Reverted
			return out
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		out.Code = NetworkUnavailable
		return out
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, rejectTokens):
		out.Code = UserRejected
	case containsAny(msg, revertTokens):
		out.Code = Reverted
	case containsAny(msg, networkTokens):
		out.Code = NetworkUnavailable
	}
	return out
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
