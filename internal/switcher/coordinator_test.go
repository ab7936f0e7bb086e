package switcher

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/marketplace-client/internal/chains"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type recordingCache struct{ rec *recorder }

func (c recordingCache) ClearAll() { c.rec.add("clear") }

type fakeConnector struct {
	kind    wallet.Kind
	rec     *recorder
	mu      sync.Mutex
	chainID *uint64
	account *common.Address
	err     error
}

func (f *fakeConnector) Kind() wallet.Kind { return f.kind }

func (f *fakeConnector) Activate(_ context.Context, target *uint64) error {
	t := "default"
	if target != nil {
		t = fmt.Sprint(*target)
	}
	f.rec.add("activate:" + f.kind.String() + ":" + t)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		f.chainID = nil
		f.account = nil
		return f.err
	}
	if target != nil {
		id := *target
		f.chainID = &id
	}
	return nil
}

func (f *fakeConnector) Deactivate() {}

func (f *fakeConnector) State() wallet.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return wallet.State{Kind: f.kind, Account: f.account, ChainID: f.chainID}
}

func (f *fakeConnector) CurrentAccount() (common.Address, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.account == nil {
		return common.Address{}, false
	}
	return *f.account, true
}

func (f *fakeConnector) CurrentChainID() (uint64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.chainID == nil {
		return 0, false
	}
	return *f.chainID, true
}

func (f *fakeConnector) IsActive() bool { return f.State().IsActive() }

func (f *fakeConnector) IsActivating() bool { return false }

func (f *fakeConnector) Signer() wallet.SigningHandle { return nil }

func (f *fakeConnector) Subscribe(func(wallet.State)) func() { return func() {} }

func u64(v uint64) *uint64 { return &v }

func testRegistry(t *testing.T) *chains.Registry {
	t.Helper()
	cfg := &chains.AllChainsConfig{Networks: map[string]chains.NetworkConfig{
		"mainnet": {ChainID: 1, Name: "Mainnet", RPCs: []chains.RPC{{URL: "https://eth.example"}}},
		"polygon": {ChainID: 137, Name: "Polygon", RPCs: []chains.RPC{{URL: "https://polygon.example"}}},
		"mumbai":  {ChainID: 80001, Name: "Mumbai", RPCs: []chains.RPC{{URL: "https://mumbai.example"}}},
		"goerli":  {ChainID: 5, Name: "Goerli"},
		"hidden":  {ChainID: 99, Name: "Hidden", Hidden: true},
	}}
	r, err := chains.NewRegistry(cfg, 80001)
	require.NoError(t, err)
	return r
}

func TestSwitchChainNoOps(t *testing.T) {
	tests := []struct {
		name    string
		current *uint64
		desired Target
	}{
		{name: "same chain", current: u64(137), desired: 137},
		{name: "default while connected", current: u64(1), desired: Default},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			primary := &fakeConnector{kind: wallet.KindNetwork, rec: rec, chainID: tc.current}
			injected := &fakeConnector{kind: wallet.KindInjected, rec: rec, account: &common.Address{1}, chainID: tc.current}
			c := NewCoordinator(primary, injected, testRegistry(t), recordingCache{rec}, NewErrorBoard())

			c.SwitchChain(tc.desired)
			c.Wait()

			assert.Empty(t, rec.list())
			assert.Equal(t, tc.desired, c.Desired())
		})
	}
}

func TestSwitchChainDefaultWhenDisconnected(t *testing.T) {
	rec := &recorder{}
	primary := &fakeConnector{kind: wallet.KindInjected, rec: rec}
	c := NewCoordinator(primary, nil, testRegistry(t), recordingCache{rec}, NewErrorBoard())

	c.SwitchChain(Default)
	c.Wait()

	assert.Equal(t, []string{"clear", "activate:injected:default"}, rec.list())
}

func TestSwitchChainDualActivation(t *testing.T) {
	rec := &recorder{}
	primary := &fakeConnector{kind: wallet.KindNetwork, rec: rec, chainID: u64(1)}
	injected := &fakeConnector{kind: wallet.KindInjected, rec: rec, account: &common.Address{1}, chainID: u64(1)}
	c := NewCoordinator(primary, injected, testRegistry(t), recordingCache{rec}, NewErrorBoard())

	c.SwitchChain(137)
	c.Wait()

	events := rec.list()
	require.Len(t, events, 3)
	assert.Equal(t, "clear", events[0], "cache is cleared before any activation")
	assert.ElementsMatch(t, []string{"activate:network:137", "activate:injected:137"}, events[1:])
}

func TestSwitchChainInjectedWithoutAccountIsLeftAlone(t *testing.T) {
	rec := &recorder{}
	primary := &fakeConnector{kind: wallet.KindNetwork, rec: rec, chainID: u64(1)}
	injected := &fakeConnector{kind: wallet.KindInjected, rec: rec}
	c := NewCoordinator(primary, injected, testRegistry(t), recordingCache{rec}, NewErrorBoard())

	c.SwitchChain(137)
	c.Wait()

	assert.Equal(t, []string{"clear", "activate:network:137"}, rec.list())
}

func TestSwitchChainInjectedPrimary(t *testing.T) {
	rec := &recorder{}
	primary := &fakeConnector{kind: wallet.KindInjected, rec: rec, account: &common.Address{1}, chainID: u64(1)}
	c := NewCoordinator(primary, primary, testRegistry(t), recordingCache{rec}, NewErrorBoard())

	c.SwitchChain(80001)
	c.Wait()

	assert.Equal(t, []string{"clear", "activate:injected:80001"}, rec.list())
}

func TestSwitchChainReportsErrorsIndependently(t *testing.T) {
	rec := &recorder{}
	board := NewErrorBoard()
	board.SetError(wallet.KindInjected, errors.New("stale"))

	primary := &fakeConnector{kind: wallet.KindNetwork, rec: rec, chainID: u64(1), err: errors.New("dial failed")}
	injected := &fakeConnector{kind: wallet.KindInjected, rec: rec, account: &common.Address{1}, chainID: u64(1)}
	c := NewCoordinator(primary, injected, testRegistry(t), recordingCache{rec}, board)

	c.SwitchChain(137)
	c.Wait()

	assert.EqualError(t, board.Get(wallet.KindNetwork), "dial failed")
	assert.NoError(t, board.Get(wallet.KindInjected), "success clears the previous error")

	id, ok := injected.CurrentChainID()
	require.True(t, ok, "a failed primary does not roll back the wallet")
	assert.Equal(t, uint64(137), id)

	assert.Equal(t, map[string]string{"network": "dial failed"}, board.Messages())
}

func TestOptions(t *testing.T) {
	reg := testRegistry(t)
	network := wallet.NewNetworkConnector(reg, nil, 0)

	c := NewCoordinator(network, nil, reg, nil, nil)
	assert.Equal(t, Target(80001), c.Desired())
	assert.Equal(t, []Option{
		{ChainID: 1, Label: "Mainnet"},
		{ChainID: 137, Label: "Polygon"},
		{ChainID: 80001, Label: "Mumbai"},
	}, c.Options())

	injected := wallet.NewInjectedConnector(nil, reg)
	c = NewCoordinator(injected, injected, reg, nil, nil)
	assert.Equal(t, Default, c.Desired())
	assert.Equal(t, []Option{
		{ChainID: 0, Label: "Default Chain"},
		{ChainID: 1, Label: "Mainnet"},
		{ChainID: 5, Label: "Goerli"},
		{ChainID: 99, Label: "Hidden"},
		{ChainID: 137, Label: "Polygon"},
		{ChainID: 80001, Label: "Mumbai"},
	}, c.Options())
}

// gatedConnector holds its first activation until release is closed.
type gatedConnector struct {
	*fakeConnector
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedConnector) Activate(ctx context.Context, target *uint64) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeConnector.Activate(ctx, target)
}

type sinkCalls struct {
	mu    sync.Mutex
	calls int
	last  error
}

func (s *sinkCalls) SetError(_ wallet.Kind, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = err
}

func TestSwitchChainLatestTargetWins(t *testing.T) {
	rec := &recorder{}
	primary := &gatedConnector{
		fakeConnector: &fakeConnector{kind: wallet.KindNetwork, rec: rec},
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	sink := &sinkCalls{}
	c := NewCoordinator(primary, nil, testRegistry(t), nil, sink)

	c.SwitchChain(137)
	<-primary.entered
	c.SwitchChain(1)
	c.SwitchChain(80001)

	close(primary.release)
	c.Wait()

	id, ok := primary.CurrentChainID()
	require.True(t, ok)
	assert.Equal(t, uint64(80001), id)
	assert.Equal(t, Target(80001), c.Desired())
	assert.Equal(t, []string{"activate:network:137", "activate:network:80001"}, rec.list())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 1, sink.calls)
	assert.NoError(t, sink.last)
}
