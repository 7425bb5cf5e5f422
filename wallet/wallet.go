// Package wallet implements the ecash wallet core: the per-mint proof
// store, mint compatibility resolution, swaps into and out of
// P2PK-locked proofs, and the local transaction history.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
	"github.com/silentius-satoshi/ZapTok-sub008/cashu/p2pk"
	"github.com/silentius-satoshi/ZapTok-sub008/crypto"
	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

var (
	ErrNotEnoughFunds   = errors.New("not enough funds")
	ErrMintNotKnown     = errors.New("mint not known to wallet")
	ErrInvalidAmount    = errors.New("amount must be a positive integer")
	ErrKeysetIdMismatch = errors.New("keyset id does not match keys advertised by mint")
)

type Config struct {
	WalletPath     string
	CurrentMintURL string
}

// Wallet is constructed per session and owns the proof store for one
// identity. Storage is injected so tests can run against isolated
// instances; there is no shared global state.
type Wallet struct {
	db storage.WalletDB

	masterKey *hdkeychain.ExtendedKey
	p2pkKey   *btcec.PrivateKey

	// active sat keyset per mint url, fetched lazily
	activeKeysets map[string]*crypto.PublicKeyset
}

func InitStorage(path string) (storage.WalletDB, error) {
	// bolt db atm
	return storage.InitBolt(path)
}

func LoadWallet(config Config) (*Wallet, error) {
	db, err := InitStorage(config.WalletPath)
	if err != nil {
		return nil, fmt.Errorf("InitStorage: %v", err)
	}
	return LoadWalletWithDB(config, db)
}

// LoadWalletWithDB sets up a wallet on top of an already opened db.
func LoadWalletWithDB(config Config, db storage.WalletDB) (*Wallet, error) {
	seed := db.GetSeed()
	if len(seed) == 0 {
		// new wallet: generate mnemonic and derive seed from it
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return nil, err
		}
		mnemonic, err := bip39.NewMnemonic(entropy)
		if err != nil {
			return nil, err
		}
		seed = bip39.NewSeed(mnemonic, "")
		if err := db.SaveMnemonicSeed(mnemonic, seed); err != nil {
			return nil, err
		}
	}

	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	p2pkKey, err := p2pk.DeriveKey(masterKey)
	if err != nil {
		return nil, fmt.Errorf("error deriving key to receive locked ecash: %v", err)
	}

	wallet := &Wallet{
		db:            db,
		masterKey:     masterKey,
		p2pkKey:       p2pkKey,
		activeKeysets: make(map[string]*crypto.PublicKeyset),
	}

	if len(config.CurrentMintURL) > 0 {
		mintURL, err := normalizeMintURL(config.CurrentMintURL)
		if err != nil {
			return nil, fmt.Errorf("invalid mint url: %v", err)
		}
		if err := wallet.AddMint(mintURL); err != nil {
			return nil, err
		}
		if wallet.db.GetActiveMint() == "" {
			if err := wallet.db.SaveActiveMint(mintURL); err != nil {
				return nil, err
			}
		}
	}

	return wallet, nil
}

func normalizeMintURL(mint string) (string, error) {
	parsed, err := url.Parse(mint)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("mint url must be http or https: %v", mint)
	}
	return strings.TrimSuffix(parsed.String(), "/"), nil
}

// Close releases the underlying storage.
func (w *Wallet) Close() error {
	return w.db.Close()
}

// P2PKPublicKey returns the public key this wallet advertises for
// receiving locked ecash. Derivation is deterministic: same seed,
// same key.
func (w *Wallet) P2PKPublicKey() string {
	return p2pk.PublicKey(w.p2pkKey)
}

// Mnemonic returns the wallet's recovery phrase.
func (w *Wallet) Mnemonic() string {
	return w.db.GetMnemonic()
}

// AddProofs appends proofs to the given mint's bucket. Malformed
// proofs (missing amount or secret) reject the whole batch with
// cashu.ErrInvalidProof; the store never silently drops data.
func (w *Wallet) AddProofs(mintURL string, proofs cashu.Proofs) error {
	for _, proof := range proofs {
		if err := proof.Validate(); err != nil {
			return err
		}
	}
	return w.db.SaveProofs(mintURL, proofs)
}

// RemoveProofs marks the proofs with the given secrets consumed. The
// caller is responsible for having already spent them in a
// mint-confirmed operation; the store does not talk to mints.
func (w *Wallet) RemoveProofs(mintURL string, secrets []string) error {
	return w.db.DeleteProofs(mintURL, secrets)
}

// GetProofs returns the unspent proofs held for a mint.
func (w *Wallet) GetProofs(mintURL string) cashu.Proofs {
	return w.db.GetProofs(mintURL)
}

// CalculateBalance sums proof amounts per mint. Pure function: an
// empty input yields an empty map, and mints never cross-contaminate.
func CalculateBalance(proofsByMint map[string]cashu.Proofs) map[string]uint64 {
	balances := make(map[string]uint64, len(proofsByMint))
	for mint, proofs := range proofsByMint {
		balances[mint] = proofs.Amount()
	}
	return balances
}

// BalanceByMint returns the wallet's balance for each mint, derived
// from the stored proofs on every call.
func (w *Wallet) BalanceByMint() map[string]uint64 {
	return CalculateBalance(w.db.GetProofsByMint())
}

// Balance returns the total balance across all mints.
func (w *Wallet) Balance() uint64 {
	var balance uint64
	for _, mintBalance := range w.BalanceByMint() {
		balance += mintBalance
	}
	return balance
}

// activeKeyset returns the mint's active sat keyset, fetching and
// validating it on first use.
func (w *Wallet) activeKeyset(ctx context.Context, mintURL string) (*crypto.PublicKeyset, error) {
	if keyset, ok := w.activeKeysets[mintURL]; ok {
		return keyset, nil
	}

	keysRes, err := GetActiveKeysets(ctx, mintURL)
	if err != nil {
		return nil, fmt.Errorf("error getting active keyset from mint: %v", err)
	}

	for _, keysetKeys := range keysRes.Keysets {
		if keysetKeys.Unit != cashu.Sat.String() {
			continue
		}

		keyset, err := crypto.ParsePublicKeyset(keysetKeys.Id, mintURL, keysetKeys.Unit, keysetKeys.Keys)
		if err != nil {
			return nil, err
		}
		if keyset.DeriveId() != keyset.Id {
			return nil, ErrKeysetIdMismatch
		}

		w.activeKeysets[mintURL] = keyset
		return keyset, nil
	}

	return nil, fmt.Errorf("mint '%v' has no active sat keyset", mintURL)
}
