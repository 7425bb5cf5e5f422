// Package storage defines the persistence interface for the wallet
// and its bbolt implementation.
package storage

import (
	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
)

// Mint is a remote ecash issuer known to the wallet. Name and Version
// are filled in lazily from the mint's info endpoint. CreatedAt
// preserves insertion order, which matters when resolving mint
// compatibility: the first mint added wins ties.
type Mint struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	Version   string `json:"version,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// PendingLock holds proofs that were locked to a recipient at the mint
// but whose delivery has not been confirmed yet. They are kept around
// so a failed publish can be retried without losing funds.
type PendingLock struct {
	Id        string       `json:"id"`
	MintURL   string       `json:"mint_url"`
	Recipient string       `json:"recipient"`
	Proofs    cashu.Proofs `json:"proofs"`
	CreatedAt int64        `json:"created_at"`
}

type TxDirection string

const (
	TxIn  TxDirection = "in"
	TxOut TxDirection = "out"
)

// HistoryEntry is an immutable record of a wallet-affecting event.
// The token id slices drive the display-time classification: redeemed
// tokens mean a nutzap, created-only means a mint, destroyed-only a
// melt.
type HistoryEntry struct {
	Id              string      `json:"id"`
	Direction       TxDirection `json:"direction"`
	Amount          uint64      `json:"amount"`
	Timestamp       int64       `json:"timestamp"`
	CreatedTokens   []string    `json:"created_tokens,omitempty"`
	DestroyedTokens []string    `json:"destroyed_tokens,omitempty"`
	RedeemedTokens  []string    `json:"redeemed_tokens,omitempty"`
}

// WalletDB is the wallet's persistence boundary. Implementations must
// round-trip values exactly: what was saved is what comes back.
type WalletDB interface {
	SaveMnemonicSeed(mnemonic string, seed []byte) error
	GetSeed() []byte
	GetMnemonic() string

	SaveMint(Mint) error
	GetMint(url string) *Mint
	GetMints() []Mint
	DeleteMint(url string) error
	SaveActiveMint(url string) error
	GetActiveMint() string

	SaveProofs(mintURL string, proofs cashu.Proofs) error
	GetProofs(mintURL string) cashu.Proofs
	GetProofsByMint() map[string]cashu.Proofs
	DeleteProofs(mintURL string, secrets []string) error

	SavePendingLock(PendingLock) error
	GetPendingLocks() []PendingLock
	DeletePendingLock(id string) error

	// SaveHistoryEntry appends the entry unless its id was seen
	// before. It reports whether the entry was stored.
	SaveHistoryEntry(HistoryEntry) (bool, error)
	GetHistoryEntries() []HistoryEntry

	Close() error
}
