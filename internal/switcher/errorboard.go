package switcher

import (
	"sync"

	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

// ErrorBoard keeps the latest activation error per connector kind.
type ErrorBoard struct {
	mu   sync.RWMutex
	errs map[wallet.Kind]error
}

func NewErrorBoard() *ErrorBoard {
	return &ErrorBoard{errs: make(map[wallet.Kind]error)}
}

func (b *ErrorBoard) SetError(kind wallet.Kind, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, kind)
		return
	}
	b.errs[kind] = err
}

func (b *ErrorBoard) Get(kind wallet.Kind) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.errs[kind]
}

// Messages returns the current error text keyed by connector kind name.
func (b *ErrorBoard) Messages() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(b.errs))
	for kind, err := range b.errs {
		out[kind.String()] = err.Error()
	}
	return out
}
