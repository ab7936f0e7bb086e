package pinning

import (
	"context"
	"io"
)

// ProgressFunc reports bytes of the asset handed to the store so far.
type ProgressFunc func(sent, total int64)

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

// Store is a content-addressed blob store. Add returns the content id of r.
type Store interface {
	Add(ctx context.Context, name string, r io.Reader, size int64, onProgress ProgressFunc) (string, error)
}

type progressReader struct {
	r     io.Reader
	sent  int64
	total int64
	fn    ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.fn != nil {
			p.fn(p.sent, p.total)
		}
	}
	return n, err
}
