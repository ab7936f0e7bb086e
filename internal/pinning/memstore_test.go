package pinning

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAdd(t *testing.T) {
	s := NewMemoryStore()
	data := bytes.Repeat([]byte("a"), memChunk+10)

	var last int64
	id, err := s.Add(context.Background(), "a.bin", bytes.NewReader(data), int64(len(data)), func(sent, total int64) {
		assert.GreaterOrEqual(t, sent, last)
		last = sent
		assert.Equal(t, int64(len(data)), total)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), last)

	parsed, err := cid.Decode(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(cid.Raw), parsed.Type())
	assert.Equal(t, uint64(1), parsed.Version())

	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	ok, err := s.Has(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	other, err := s.Add(context.Background(), "b.bin", strings.NewReader("different"), 9, nil)
	require.NoError(t, err)
	assert.NotEqual(t, id, other)

	same, err := s.Add(context.Background(), "copy.bin", bytes.NewReader(data), int64(len(data)), nil)
	require.NoError(t, err)
	assert.Equal(t, id, same)
}

func TestMemoryStoreBadCID(t *testing.T) {
	_, err := NewMemoryStore().Get(context.Background(), "not-a-cid")
	assert.Error(t, err)
}
