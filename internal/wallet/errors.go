package wallet

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

type ConnectCode int

const (
	UserRejected ConnectCode = iota + 1
	UnsupportedChain
	NoProvider
)

func (c ConnectCode) String() string {
	switch c {
	case UserRejected:
		return "user_rejected"
	case UnsupportedChain:
		return "unsupported_chain"
	case NoProvider:
		return "no_provider"
	default:
		return "unknown"
	}
}

// ConnectError is returned by Activate.
type ConnectError struct {
	Code    ConnectCode
	ChainID uint64
	Cause   error
}

func (e *ConnectError) Error() string {
	var msg string
	switch e.Code {
	case UserRejected:
		msg = "user rejected the request"
	case UnsupportedChain:
		msg = fmt.Sprintf("chain %d is not supported by the wallet", e.ChainID)
	case NoProvider:
		msg = "no wallet provider available"
	default:
		msg = "wallet connection failed"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// ConnectCodeOf returns the code of the first ConnectError in err's chain.
func ConnectCodeOf(err error) (ConnectCode, bool) {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Code, true
	}
	return 0, false
}

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnect   = 4901
	CodeUnrecognizedChain = 4902
)

// ProviderError is an error reported by a wallet provider.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }

func ProviderCodeOf(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

func ErrUserRejected(message string) error {
	if message == "" {
		message = "User denied the request."
	}
	return &ProviderError{Code: CodeUserRejected, Message: message}
}

// toConnectError maps a provider failure; fallback is used for codes with no direct mapping.
func toConnectError(err error, chainID uint64, fallback ConnectCode) *ConnectError {
	if err == nil {
		return nil
	}
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce
	}
	code := fallback
	if pc, ok := ProviderCodeOf(err); ok {
		switch pc {
		case CodeUserRejected, CodeUnauthorized:
			code = UserRejected
		case CodeDisconnected, CodeChainDisconnect:
			code = NoProvider
		case CodeUnrecognizedChain, CodeUnsupported:
			code = UnsupportedChain
		}
	}
	return &ConnectError{Code: code, ChainID: chainID, Cause: err}
}
