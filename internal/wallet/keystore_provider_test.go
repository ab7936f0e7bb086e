package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedPrompter struct {
	password []byte
	approve  bool
	asked    []string
}

func (p *scriptedPrompter) Password(label string) ([]byte, error) {
	p.asked = append(p.asked, label)
	return append([]byte(nil), p.password...), nil
}

func (p *scriptedPrompter) Confirm(label string) (bool, error) {
	p.asked = append(p.asked, label)
	return p.approve, nil
}

func newTestKeystore(t *testing.T, password string) ([]byte, common.Address) {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)

	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
	}
	raw, err := keystore.EncryptKey(key, password, keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)
	return raw, key.Address
}

func TestKeystoreProviderUnlock(t *testing.T) {
	raw, addr := newTestKeystore(t, "correct horse")

	prompter := &scriptedPrompter{password: []byte("correct horse")}
	p, err := NewKeystoreProvider(raw, testRegistry(), &fakeClients{}, prompter)
	require.NoError(t, err)

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []common.Address{addr}, accounts)

	// second call does not prompt again
	_, err = p.RequestAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, prompter.asked, 1)

	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(80001), id)
}

func TestKeystoreProviderUnlockFailures(t *testing.T) {
	raw, _ := newTestKeystore(t, "correct horse")

	p, err := NewKeystoreProvider(raw, testRegistry(), &fakeClients{}, &scriptedPrompter{})
	require.NoError(t, err)
	_, err = p.RequestAccounts(context.Background())
	code, ok := ProviderCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeUserRejected, code)

	p, err = NewKeystoreProvider(raw, testRegistry(), &fakeClients{}, &scriptedPrompter{password: []byte("wrong")})
	require.NoError(t, err)
	_, err = p.RequestAccounts(context.Background())
	code, ok = ProviderCodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnauthorized, code)
}

func TestKeystoreProviderSwitchAndAdd(t *testing.T) {
	raw, _ := newTestKeystore(t, "pw")
	prompter := &scriptedPrompter{password: []byte("pw"), approve: true}
	p, err := NewKeystoreProvider(raw, testRegistry(), &fakeClients{}, prompter, WithKnownChains(80001))
	require.NoError(t, err)

	var changed []uint64
	p.Subscribe(ProviderEvents{ChainChanged: func(id uint64) { changed = append(changed, id) }})

	err = p.SwitchChain(context.Background(), 137)
	code, _ := ProviderCodeOf(err)
	assert.Equal(t, CodeUnrecognizedChain, code)

	params, err := testRegistry().AddChainParameters(137)
	require.NoError(t, err)
	require.NoError(t, p.AddChain(context.Background(), params))
	require.NoError(t, p.SwitchChain(context.Background(), 137))
	assert.Equal(t, []uint64{137}, changed)

	prompter.approve = false
	err = p.SwitchChain(context.Background(), 80001)
	code, _ = ProviderCodeOf(err)
	assert.Equal(t, CodeUserRejected, code)

	id, _ := p.ChainID(context.Background())
	assert.Equal(t, uint64(137), id)
}

func TestKeystoreProviderThroughInjectedConnector(t *testing.T) {
	raw, addr := newTestKeystore(t, "pw")
	prompter := &scriptedPrompter{password: []byte("pw"), approve: true}
	p, err := NewKeystoreProvider(raw, testRegistry(), &fakeClients{}, prompter, WithKnownChains(80001))
	require.NoError(t, err)

	c := NewInjectedConnector(p, testRegistry())
	require.NoError(t, c.Activate(context.Background(), u64(137)))

	acc, _ := c.CurrentAccount()
	assert.Equal(t, addr, acc)
	id, _ := c.CurrentChainID()
	assert.Equal(t, uint64(137), id)
}

func TestKeystoreProviderSendTransaction(t *testing.T) {
	raw, addr := newTestKeystore(t, "pw")
	client := &fakeClient{chainID: 80001, nonce: 7, gas: 100_000, baseFee: big.NewInt(30), tip: big.NewInt(2)}
	clients := &fakeClients{clients: map[uint64]*fakeClient{80001: client}}
	prompter := &scriptedPrompter{password: []byte("pw"), approve: true}

	p, err := NewKeystoreProvider(raw, testRegistry(), clients, prompter)
	require.NoError(t, err)
	_, err = p.RequestAccounts(context.Background())
	require.NoError(t, err)

	to := common.HexToAddress("0x00000000000000000000000000000000000c0de0")
	hash, err := p.SendTransaction(context.Background(), TxRequest{
		From:  addr,
		To:    &to,
		Value: big.NewInt(1000),
		Data:  []byte{0xde, 0xad},
	})
	require.NoError(t, err)

	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint8(types.DynamicFeeTxType), tx.Type())
	assert.Equal(t, uint64(7), tx.Nonce())
	assert.Equal(t, uint64(110_000), tx.Gas())
	assert.Equal(t, big.NewInt(62), tx.GasFeeCap())
	assert.Equal(t, big.NewInt(1000), tx.Value())

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(80001)), tx)
	require.NoError(t, err)
	assert.Equal(t, addr, sender)
}

func TestKeystoreProviderSendRejected(t *testing.T) {
	raw, _ := newTestKeystore(t, "pw")
	client := &fakeClient{chainID: 80001, gas: 50_000}
	clients := &fakeClients{clients: map[uint64]*fakeClient{80001: client}}
	prompter := &scriptedPrompter{password: []byte("pw")}

	p, err := NewKeystoreProvider(raw, testRegistry(), clients, prompter)
	require.NoError(t, err)

	_, err = p.SendTransaction(context.Background(), TxRequest{})
	code, _ := ProviderCodeOf(err)
	assert.Equal(t, CodeUnauthorized, code, "locked wallet")

	_, err = p.RequestAccounts(context.Background())
	require.NoError(t, err)

	_, err = p.SendTransaction(context.Background(), TxRequest{})
	code, _ = ProviderCodeOf(err)
	assert.Equal(t, CodeUserRejected, code)
	assert.Contains(t, err.Error(), "User denied transaction signature")
	assert.Empty(t, client.sent)
}
