package wallet

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/quantumauth-io/marketplace-client/internal/securefile"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// CreateKeystore generates a fresh key and writes it as an encrypted keystore file
// that KeystoreProvider can load. scryptN and scryptP are the keystore KDF costs.
func CreateKeystore(path string, password []byte, scryptN, scryptP int) (common.Address, error) {
	if len(password) == 0 {
		return common.Address{}, errors.New("password must not be empty")
	}

	pk, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, errors.Wrap(err, "generate key")
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return common.Address{}, errors.Wrap(err, "key id")
	}

	key := &keystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(pk.PublicKey),
		PrivateKey: pk,
	}
	raw, err := keystore.EncryptKey(key, string(password), scryptN, scryptP)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "encrypt key")
	}

	if err = securefile.WriteFile(path, raw, false); err != nil {
		return common.Address{}, err
	}
	log.Info("keystore created", "address", key.Address.Hex(), "path", path)
	return key.Address, nil
}
