package wallet

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

type Kind int

const (
	KindInjected Kind = iota + 1
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindInjected:
		return "injected"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "injected", "metamask", "wallet":
		return KindInjected, nil
	case "network", "rpc":
		return KindNetwork, nil
	default:
		return 0, errors.Newf("unknown connector kind %q", s)
	}
}

// State is a snapshot of a connector. Account and ChainID are nil when unknown.
type State struct {
	Kind       Kind            `json:"-"`
	Account    *common.Address `json:"account,omitempty"`
	ChainID    *uint64         `json:"chainId,omitempty"`
	Activating bool            `json:"activating"`
}

func (s State) IsActive() bool {
	if s.Activating || s.ChainID == nil {
		return false
	}
	if s.Kind == KindInjected {
		return s.Account != nil
	}
	return true
}

func (s State) clone() State {
	out := State{Kind: s.Kind, Activating: s.Activating}
	if s.Account != nil {
		a := *s.Account
		out.Account = &a
	}
	if s.ChainID != nil {
		id := *s.ChainID
		out.ChainID = &id
	}
	return out
}

// Connector is the capability surface shared by the injected and network variants.
type Connector interface {
	Kind() Kind
	// Activate connects to target, or to the wallet's current / configured default chain when target is nil.
	Activate(ctx context.Context, target *uint64) error
	Deactivate()
	State() State
	CurrentAccount() (common.Address, bool)
	CurrentChainID() (uint64, bool)
	IsActive() bool
	IsActivating() bool
	// Signer is nil unless the connector can sign for a connected account.
	Signer() SigningHandle
	Subscribe(fn func(State)) (unsubscribe func())
}

// stateHolder is the single writer of one connector's State.
type stateHolder struct {
	mu        sync.Mutex
	state     State
	nextID    int
	observers map[int]func(State)
}

func newStateHolder(kind Kind) *stateHolder {
	return &stateHolder{
		state:     State{Kind: kind},
		observers: make(map[int]func(State)),
	}
}

func (h *stateHolder) snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.clone()
}

// update applies fn under the lock and notifies observers after releasing it.
func (h *stateHolder) update(fn func(s *State)) State {
	h.mu.Lock()
	before := h.state.clone()
	fn(&h.state)
	h.state.Kind = before.Kind
	after := h.state.clone()

	if sameState(before, after) {
		h.mu.Unlock()
		return after
	}

	ids := make([]int, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]func(State), 0, len(ids))
	for _, id := range ids {
		observers = append(observers, h.observers[id])
	}
	h.mu.Unlock()

	for _, obs := range observers {
		obs(after.clone())
	}
	return after
}

func (h *stateHolder) reset() State {
	return h.update(func(s *State) {
		s.Account = nil
		s.ChainID = nil
		s.Activating = false
	})
}

func (h *stateHolder) subscribe(fn func(State)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.observers, id)
			h.mu.Unlock()
		})
	}
}

func (h *stateHolder) account() (common.Address, bool) {
	s := h.snapshot()
	if s.Account == nil {
		return common.Address{}, false
	}
	return *s.Account, true
}

func (h *stateHolder) chainID() (uint64, bool) {
	s := h.snapshot()
	if s.ChainID == nil {
		return 0, false
	}
	return *s.ChainID, true
}

func sameState(a, b State) bool {
	if a.Activating != b.Activating {
		return false
	}
	if (a.Account == nil) != (b.Account == nil) || (a.Account != nil && *a.Account != *b.Account) {
		return false
	}
	if (a.ChainID == nil) != (b.ChainID == nil) || (a.ChainID != nil && *a.ChainID != *b.ChainID) {
		return false
	}
	return true
}
