package chains

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	Client
	chainID uint64
	closed  atomic.Bool
}

func (s *stubClient) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).SetUint64(s.chainID), nil
}

func (s *stubClient) Close() { s.closed.Store(true) }

func TestClientPoolCachesPerChain(t *testing.T) {
	r, err := NewRegistry(testConfig(), 0)
	require.NoError(t, err)

	var dials atomic.Int32
	pool := NewClientPool(r, WithDialFunc(func(ctx context.Context, url string) (Client, error) {
		dials.Add(1)
		return &stubClient{chainID: 137}, nil
	}))

	first, err := pool.ForChain(context.Background(), 137)
	require.NoError(t, err)
	second, err := pool.ForChain(context.Background(), 137)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), dials.Load())

	pool.Close()
	assert.True(t, first.(*stubClient).closed.Load())
}

func TestClientPoolSkipsWrongChain(t *testing.T) {
	r, err := NewRegistry(testConfig(), 0)
	require.NoError(t, err)

	var wrong *stubClient
	pool := NewClientPool(r, WithDialFunc(func(ctx context.Context, url string) (Client, error) {
		if url == "https://eth-mainnet.alchemyapi.io/v2/k" {
			wrong = &stubClient{chainID: 5}
			return wrong, nil
		}
		return &stubClient{chainID: 1}, nil
	}))

	client, err := pool.ForChain(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), client.(*stubClient).chainID)
	require.NotNil(t, wrong)
	assert.True(t, wrong.closed.Load())
}

func TestClientPoolErrors(t *testing.T) {
	r, err := NewRegistry(testConfig(), 0)
	require.NoError(t, err)

	pool := NewClientPool(r, WithDialFunc(func(ctx context.Context, url string) (Client, error) {
		return nil, errors.New("connection refused")
	}))

	_, err = pool.ForChain(context.Background(), 999)
	assert.True(t, errors.Is(err, ErrChainNotFound))

	_, err = pool.ForChain(context.Background(), 10)
	assert.ErrorContains(t, err, "no RPCs")

	_, err = pool.ForChain(context.Background(), 137)
	assert.ErrorContains(t, err, "connection refused")
}
