package pinning

import (
	"bytes"
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	"github.com/multiformats/go-multihash"
)

const memChunk = 256 << 10

// MemoryStore is an in-process content-addressed store. Content ids are CIDv1 raw sha2-256,
// so the same bytes always map to the same id.
type MemoryStore struct {
	ds datastore.Datastore
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ds: dssync.MutexWrap(datastore.NewMapDatastore())}
}

func (s *MemoryStore) Add(ctx context.Context, name string, r io.Reader, size int64, onProgress ProgressFunc) (string, error) {
	var buf bytes.Buffer
	chunk := make([]byte, memChunk)
	src := &progressReader{r: r, total: size, fn: onProgress}
	for {
		n, err := src.Read(chunk)
		buf.Write(chunk[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "read %s", name)
		}
		if cerr := ctx.Err(); cerr != nil {
			return "", cerr
		}
	}

	data := buf.Bytes()
	c, err := ContentID(data)
	if err != nil {
		return "", err
	}
	if err := s.ds.Put(ctx, datastore.NewKey(c.String()), data); err != nil {
		return "", errors.Wrap(err, "store blob")
	}
	return c.String(), nil
}

func (s *MemoryStore) Get(ctx context.Context, contentID string) ([]byte, error) {
	c, err := cid.Decode(contentID)
	if err != nil {
		return nil, errors.Wrapf(err, "decode cid %q", contentID)
	}
	return s.ds.Get(ctx, datastore.NewKey(c.String()))
}

func (s *MemoryStore) Has(ctx context.Context, contentID string) (bool, error) {
	c, err := cid.Decode(contentID)
	if err != nil {
		return false, errors.Wrapf(err, "decode cid %q", contentID)
	}
	return s.ds.Has(ctx, datastore.NewKey(c.String()))
}

// ContentID computes the CIDv1 (raw, sha2-256) of data.
func ContentID(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, errors.Wrap(err, "hash content")
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}
