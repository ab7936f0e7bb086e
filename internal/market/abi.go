package market

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The marketplace and NFT contracts, reduced to the methods this client calls.
const contractsABI = `[
  {"type":"function","name":"buyMarketItem","stateMutability":"payable",
   "inputs":[{"name":"itemId","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"mintToken","stateMutability":"nonpayable",
   "inputs":[{"name":"tokenURI","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]}
]`

const (
	methodBuy      = "buyMarketItem"
	methodMint     = "mintToken"
	methodTokenURI = "tokenURI"
)

var parsedABI abi.ABI

func init() {
	var err error
	parsedABI, err = abi.JSON(strings.NewReader(contractsABI))
	if err != nil {
		panic(err)
	}
}

func PackBuy(itemID *big.Int) ([]byte, error) {
	if itemID == nil || itemID.Sign() < 0 {
		return nil, errors.New("invalid item id")
	}
	return parsedABI.Pack(methodBuy, itemID)
}

func PackMint(tokenURI string) ([]byte, error) {
	if strings.TrimSpace(tokenURI) == "" {
		return nil, errors.New("token uri is empty")
	}
	return parsedABI.Pack(methodMint, tokenURI)
}

func packTokenURI(tokenID *big.Int) ([]byte, error) {
	return parsedABI.Pack(methodTokenURI, tokenID)
}

func unpackTokenURI(out []byte) (string, error) {
	vals, err := parsedABI.Unpack(methodTokenURI, out)
	if err != nil {
		return "", errors.Wrap(err, "unpack tokenURI")
	}
	if len(vals) != 1 {
		return "", errors.Newf("tokenURI returned %d values", len(vals))
	}
	uri, ok := vals[0].(string)
	if !ok {
		return "", errors.Newf("tokenURI returned %T", vals[0])
	}
	return uri, nil
}
