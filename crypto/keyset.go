package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PublicKeyset holds the public keys of a mint keyset, one key per
// power-of-two amount.
type PublicKeyset struct {
	Id      string
	MintURL string
	Unit    string
	Active  bool
	Keys    map[uint64]*secp256k1.PublicKey
}

// ParsePublicKeyset builds a PublicKeyset from the amount -> hex pubkey
// map a mint returns from its /v1/keys endpoint.
func ParsePublicKeyset(id, mintURL, unit string, keys map[uint64]string) (*PublicKeyset, error) {
	parsedKeys := make(map[uint64]*secp256k1.PublicKey, len(keys))
	for amount, key := range keys {
		pkbytes, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("invalid key for amount %v: %v", amount, err)
		}
		pubkey, err := secp256k1.ParsePubKey(pkbytes)
		if err != nil {
			return nil, fmt.Errorf("invalid key for amount %v: %v", amount, err)
		}
		parsedKeys[amount] = pubkey
	}

	return &PublicKeyset{Id: id, MintURL: mintURL, Unit: unit, Keys: parsedKeys}, nil
}

// DeriveId derives the keyset id from the keys, per NUT-02. Used to
// check that a keyset advertised by a mint matches its keys.
func (ks *PublicKeyset) DeriveId() string {
	amounts := make([]uint64, 0, len(ks.Keys))
	for amount := range ks.Keys {
		amounts = append(amounts, amount)
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })

	pubkeys := make([]byte, 0)
	for _, amount := range amounts {
		pubkeys = append(pubkeys, ks.Keys[amount].SerializeCompressed()...)
	}
	hash := sha256.Sum256(pubkeys)

	return "00" + hex.EncodeToString(hash[:])[:14]
}
