package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

var ErrNoCompatibleMint = errors.New("no compatible mint")

// AddMint registers a mint with the wallet. Adding a known mint is a
// no-op so insertion order (and with it compatibility tie-breaking)
// is preserved.
func (w *Wallet) AddMint(mint string) error {
	mintURL, err := normalizeMintURL(mint)
	if err != nil {
		return fmt.Errorf("invalid mint url: %v", err)
	}

	if w.db.GetMint(mintURL) != nil {
		return nil
	}

	// nanosecond resolution so mints added back to back keep their
	// insertion order
	return w.db.SaveMint(storage.Mint{
		URL:       mintURL,
		CreatedAt: time.Now().UnixNano(),
	})
}

// Mints returns the wallet's mints in the order they were added.
func (w *Wallet) Mints() []storage.Mint {
	return w.db.GetMints()
}

// ActiveMint returns the url of the mint currently used for outgoing
// operations.
func (w *Wallet) ActiveMint() string {
	return w.db.GetActiveMint()
}

// SetActiveMint switches the wallet's active mint. The mint must have
// been added first.
func (w *Wallet) SetActiveMint(mint string) error {
	mintURL, err := normalizeMintURL(mint)
	if err != nil {
		return fmt.Errorf("invalid mint url: %v", err)
	}
	if w.db.GetMint(mintURL) == nil {
		return fmt.Errorf("%w: %v", ErrMintNotKnown, mintURL)
	}
	return w.db.SaveActiveMint(mintURL)
}

// RemoveMint forgets a mint. The active mint cannot be removed, and
// neither can a mint still holding proofs.
func (w *Wallet) RemoveMint(mint string) error {
	mintURL, err := normalizeMintURL(mint)
	if err != nil {
		return fmt.Errorf("invalid mint url: %v", err)
	}
	if w.db.GetMint(mintURL) == nil {
		return fmt.Errorf("%w: %v", ErrMintNotKnown, mintURL)
	}
	if w.db.GetActiveMint() == mintURL {
		return errors.New("cannot remove the active mint")
	}
	if w.db.GetProofs(mintURL).Amount() > 0 {
		return fmt.Errorf("mint '%v' still holds proofs", mintURL)
	}
	return w.db.DeleteMint(mintURL)
}

// MintInfoFor fetches name and version for a known mint and stores
// them. Metadata is only fetched when asked for.
func (w *Wallet) MintInfoFor(ctx context.Context, mint string) (*storage.Mint, error) {
	mintURL, err := normalizeMintURL(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint url: %v", err)
	}

	stored := w.db.GetMint(mintURL)
	if stored == nil {
		return nil, fmt.Errorf("%w: %v", ErrMintNotKnown, mintURL)
	}
	if stored.Name != "" || stored.Version != "" {
		return stored, nil
	}

	info, err := GetMintInfo(ctx, mintURL)
	if err != nil {
		return nil, fmt.Errorf("error getting info for mint '%v': %v", mintURL, err)
	}

	stored.Name = info.Name
	stored.Version = info.Version
	if err := w.db.SaveMint(*stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// ResolveMintCompatibility picks a mint usable for a payment to a
// recipient accepting the given mints. The active mint is preferred
// and returned unchanged when compatible. Otherwise the first wallet
// mint (in the order they were added) present in the accepted list is
// returned and becomes the new active mint; switched reports that
// side effect. With no overlap at all the error names every mint on
// both sides.
func (w *Wallet) ResolveMintCompatibility(acceptedMints []string) (mintURL string, switched bool, err error) {
	accepted := make(map[string]bool, len(acceptedMints))
	for _, mint := range acceptedMints {
		if normalized, err := normalizeMintURL(mint); err == nil {
			accepted[normalized] = true
		}
	}

	activeMint := w.db.GetActiveMint()
	if accepted[activeMint] {
		return activeMint, false, nil
	}

	walletMints := w.db.GetMints()
	for _, mint := range walletMints {
		if accepted[mint.URL] {
			if err := w.db.SaveActiveMint(mint.URL); err != nil {
				return "", false, err
			}
			return mint.URL, true, nil
		}
	}

	walletMintURLs := make([]string, len(walletMints))
	for i, mint := range walletMints {
		walletMintURLs[i] = mint.URL
	}
	return "", false, fmt.Errorf(
		"%w: wallet has mints %v but recipient only accepts %v",
		ErrNoCompatibleMint, walletMintURLs, acceptedMints,
	)
}
