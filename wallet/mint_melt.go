package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

var ErrQuoteNotPaid = errors.New("mint quote has not been paid")

// RequestMint asks the active mint for a bolt11 quote. The returned
// invoice must be paid out of band before MintTokens can issue the
// ecash.
func (w *Wallet) RequestMint(ctx context.Context, amount uint64) (*PostMintQuoteBolt11Response, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	mintURL := w.db.GetActiveMint()
	if mintURL == "" {
		return nil, errors.New("no active mint set")
	}

	return PostMintQuoteBolt11(ctx, mintURL, PostMintQuoteBolt11Request{
		Amount: amount,
		Unit:   "sat",
	})
}

// MintTokens issues the ecash for a paid quote, stores the new proofs
// and records the mint in the history. Returns the minted amount.
func (w *Wallet) MintTokens(ctx context.Context, quoteId string, amount uint64) (uint64, error) {
	mintURL := w.db.GetActiveMint()
	if mintURL == "" {
		return 0, errors.New("no active mint set")
	}

	quoteState, err := GetMintQuoteState(ctx, mintURL, quoteId)
	if err != nil {
		return 0, err
	}
	if !quoteState.Paid && !strings.EqualFold(quoteState.State, "PAID") {
		return 0, ErrQuoteNotPaid
	}

	keyset, err := w.activeKeyset(ctx, mintURL)
	if err != nil {
		return 0, err
	}

	outputs, secrets, rs, err := createBlindedMessages(amount, keyset, randomSecret)
	if err != nil {
		return 0, err
	}

	mintResponse, err := PostMintBolt11(ctx, mintURL, PostMintBolt11Request{
		Quote:   quoteId,
		Outputs: outputs,
	})
	if err != nil {
		return 0, err
	}

	proofs, err := constructProofs(mintResponse.Signatures, secrets, rs, keyset)
	if err != nil {
		return 0, err
	}
	if err := w.AddProofs(mintURL, proofs); err != nil {
		return 0, err
	}

	if _, err := w.AddHistoryEntry(storage.HistoryEntry{
		Id:            uuid.NewString(),
		Direction:     storage.TxIn,
		Amount:        proofs.Amount(),
		Timestamp:     time.Now().Unix(),
		CreatedTokens: []string{quoteId},
	}); err != nil {
		return 0, fmt.Errorf("minted but could not record it in history: %v", err)
	}

	return proofs.Amount(), nil
}

// Melt pays a bolt11 invoice with proofs from the active mint. Proofs
// are only removed after the mint reports the payment succeeded.
func (w *Wallet) Melt(ctx context.Context, invoice string) (*PostMeltQuoteBolt11Response, error) {
	mintURL := w.db.GetActiveMint()
	if mintURL == "" {
		return nil, errors.New("no active mint set")
	}

	meltQuote, err := PostMeltQuoteBolt11(ctx, mintURL, PostMeltQuoteBolt11Request{
		Request: invoice,
		Unit:    "sat",
	})
	if err != nil {
		return nil, err
	}

	amountNeeded := meltQuote.Amount + meltQuote.FeeReserve
	inputs, err := w.selectProofsForAmount(mintURL, amountNeeded)
	if err != nil {
		return nil, err
	}

	meltResponse, err := PostMeltBolt11(ctx, mintURL, PostMeltBolt11Request{
		Quote:  meltQuote.Quote,
		Inputs: inputs,
	})
	if err != nil {
		return nil, err
	}

	// only delete proofs after the invoice has been paid
	if meltResponse.Paid || strings.EqualFold(meltResponse.State, "PAID") {
		if err := w.db.DeleteProofs(mintURL, inputs.Secrets()); err != nil {
			return nil, fmt.Errorf("melt succeeded but could not retire proofs: %v", err)
		}

		if _, err := w.AddHistoryEntry(storage.HistoryEntry{
			Id:              uuid.NewString(),
			Direction:       storage.TxOut,
			Amount:          meltQuote.Amount,
			Timestamp:       time.Now().Unix(),
			DestroyedTokens: []string{meltQuote.Quote},
		}); err != nil {
			return nil, fmt.Errorf("melt succeeded but could not record it in history: %v", err)
		}
	}

	return meltResponse, nil
}
