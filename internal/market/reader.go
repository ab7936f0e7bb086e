package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/quantumauth-io/marketplace-client/internal/readcache"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

// Reader serves contract reads. Results are cached per chain until the cache is cleared.
type Reader struct {
	book    *Market
	clients wallet.ClientSource
	uris    *readcache.Cache[string, string]
}

func NewReader(m *Market, clients wallet.ClientSource, cacheSize int) (*Reader, error) {
	uris, err := readcache.New[string, string]("token-uri", cacheSize)
	if err != nil {
		return nil, err
	}
	return &Reader{book: m, clients: clients, uris: uris}, nil
}

// Cache exposes the backing cache so callers can register it for invalidation.
func (r *Reader) Cache() *readcache.Cache[string, string] { return r.uris }

func (r *Reader) TokenURI(ctx context.Context, chainID uint64, tokenID *big.Int) (string, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return "", errors.New("invalid token id")
	}
	key := fmt.Sprintf("%d:%s", chainID, tokenID.String())
	if uri, ok := r.uris.Get(key); ok {
		return uri, nil
	}

	addrs, err := r.book.Addresses(chainID)
	if err != nil {
		return "", err
	}
	client, err := r.clients.ForChain(ctx, chainID)
	if err != nil {
		return "", err
	}
	data, err := packTokenURI(tokenID)
	if err != nil {
		return "", err
	}

	nft := addrs.NFT
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &nft, Data: data}, nil)
	if err != nil {
		return "", errors.Wrapf(err, "tokenURI(%s)", tokenID.String())
	}
	uri, err := unpackTokenURI(out)
	if err != nil {
		return "", err
	}
	r.uris.Add(key, uri)
	return uri, nil
}
