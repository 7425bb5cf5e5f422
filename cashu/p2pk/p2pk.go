// Package p2pk implements pay-to-public-key locking of ecash proofs
// as specified in NUT-11: constructing locked secrets, producing the
// witness signatures needed to spend them, and verifying those
// signatures when auditing received proofs.
package p2pk

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
)

var ErrEmptyWitness = errors.New("witness cannot be empty")

// Witness is the signature bundle attached to a proof to prove the
// right to spend a locked token.
type Witness struct {
	Signatures []string `json:"signatures"`
}

// DeriveKey derives the key the wallet uses to receive locked ecash.
// Path is m/129372'/0'/1'/0. Same master key always yields the same
// receiving key.
func DeriveKey(master *hdkeychain.ExtendedKey) (*btcec.PrivateKey, error) {
	// m/129372'
	purpose, err := master.Derive(hdkeychain.HardenedKeyStart + 129372)
	if err != nil {
		return nil, err
	}

	// m/129372'/0'
	coinType, err := purpose.Derive(hdkeychain.HardenedKeyStart + 0)
	if err != nil {
		return nil, err
	}

	// m/129372'/0'/1'
	account, err := coinType.Derive(hdkeychain.HardenedKeyStart + 1)
	if err != nil {
		return nil, err
	}

	// m/129372'/0'/1'/0
	extKey, err := account.Derive(0)
	if err != nil {
		return nil, err
	}

	return extKey.ECPrivKey()
}

// PublicKey returns the hex encoded compressed public key for the
// given private key. This is the key recipients advertise for
// receiving locked ecash.
func PublicKey(key *btcec.PrivateKey) string {
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

// NewSecret returns a serialized well-known secret locking ecash to
// the given public key.
func NewSecret(pubkey string) (string, error) {
	if _, err := ParsePublicKey(pubkey); err != nil {
		return "", err
	}

	// generate random nonce
	nonceBytes := make([]byte, 32)
	_, err := rand.Read(nonceBytes)
	if err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(nonceBytes)

	secretData := cashu.WellKnownSecret{
		Nonce: nonce,
		Data:  pubkey,
	}

	return cashu.SerializeSecret(cashu.SecretP2PK, secretData)
}

// Sign produces a hex encoded schnorr signature over the sha256 hash
// of the serialized secret. It does not check that the key matches the
// pubkey inside the secret; a signature from the wrong key simply
// fails verification.
func Sign(secret string, key *btcec.PrivateKey) (string, error) {
	hash := sha256.Sum256([]byte(secret))
	signature, err := schnorr.Sign(key, hash[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(signature.Serialize()), nil
}

// NewWitness bundles one or more signatures into the serialized
// witness attached to a proof.
func NewWitness(signatures ...string) (string, error) {
	if len(signatures) == 0 {
		return "", ErrEmptyWitness
	}

	witness, err := json.Marshal(Witness{Signatures: signatures})
	if err != nil {
		return "", err
	}
	return string(witness), nil
}

// Verify reports whether signature is a valid spend authorization for
// the given secret by the holder of pubkey. A malformed secret, a
// secret locked to a different key, an unparseable signature or public
// key all return false. It never fails: wrong-key is an expected
// outcome when auditing received proofs.
func Verify(secret, signature, pubkey string) bool {
	parsed := cashu.ParseSecret(secret)
	if parsed.Kind != cashu.SecretP2PK {
		return false
	}
	if parsed.P2PK.Data != pubkey {
		return false
	}

	publicKey, err := ParsePublicKey(pubkey)
	if err != nil {
		return false
	}

	sig, err := ParseSignature(signature)
	if err != nil {
		return false
	}

	hash := sha256.Sum256([]byte(secret))
	return sig.Verify(hash[:], publicKey)
}

// CanSign reports whether key is the key a secret is locked to.
func CanSign(secret cashu.WellKnownSecret, key *btcec.PrivateKey) bool {
	publicKey, err := ParsePublicKey(secret.Data)
	if err != nil {
		return false
	}

	return bytes.Equal(publicKey.SerializeCompressed(), key.PubKey().SerializeCompressed())
}

// CanSpendProof reports whether the proof is spendable with key:
// either its secret carries no lock at all, or it is locked to key.
func CanSpendProof(proof cashu.Proof, key *btcec.PrivateKey) bool {
	parsed := cashu.ParseSecret(proof.Secret)
	if parsed.Kind != cashu.SecretP2PK {
		return true
	}
	return CanSign(*parsed.P2PK, key)
}

// SignProofs attaches a witness signature to every proof in the list.
func SignProofs(proofs cashu.Proofs, key *btcec.PrivateKey) (cashu.Proofs, error) {
	signed := make(cashu.Proofs, len(proofs))
	for i, proof := range proofs {
		signature, err := Sign(proof.Secret, key)
		if err != nil {
			return nil, err
		}

		witness, err := NewWitness(signature)
		if err != nil {
			return nil, err
		}
		proof.Witness = witness
		signed[i] = proof
	}

	return signed, nil
}

func ParsePublicKey(key string) (*btcec.PublicKey, error) {
	hexPubkey, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %v", err)
	}
	pubkey, err := btcec.ParsePubKey(hexPubkey)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %v", err)
	}
	return pubkey, nil
}

func ParseSignature(signature string) (*schnorr.Signature, error) {
	hexSig, err := hex.DecodeString(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %v", err)
	}
	sig, err := schnorr.ParseSignature(hexSig)
	if err != nil {
		return nil, fmt.Errorf("invalid signature: %v", err)
	}

	return sig, nil
}
