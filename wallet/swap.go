package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
	"github.com/silentius-satoshi/ZapTok-sub008/cashu/p2pk"
	"github.com/silentius-satoshi/ZapTok-sub008/crypto"
	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

// RedeemResult reports the outcome of redeeming locked proofs.
// Redemption is allowed to be partial: proofs locked to a key the
// wallet does not hold are excluded from the redeemed value and
// surfaced here instead of failing the whole operation.
type RedeemResult struct {
	// Total is the nominal amount across all proofs offered.
	Total uint64
	// Redeemed is the amount actually credited to the wallet.
	Redeemed uint64
	// Inaccessible is the amount locked to keys the wallet does not hold.
	Inaccessible uint64
	// InaccessibleProofs are the proofs that could not be spent.
	InaccessibleProofs cashu.Proofs
}

func randomSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(secretBytes), nil
}

// createBlindedMessages splits amount into power-of-two outputs and
// blinds a fresh secret from newSecret for each.
func createBlindedMessages(amount uint64, keyset *crypto.PublicKeyset,
	newSecret func() (string, error)) (cashu.BlindedMessages, []string, []*secp256k1.PrivateKey, error) {

	splitAmounts := cashu.AmountSplit(amount)

	blindedMessages := make(cashu.BlindedMessages, len(splitAmounts))
	secrets := make([]string, len(splitAmounts))
	rs := make([]*secp256k1.PrivateKey, len(splitAmounts))

	for i, amt := range splitAmounts {
		secret, err := newSecret()
		if err != nil {
			return nil, nil, nil, err
		}

		r, err := crypto.GenerateBlindingFactor()
		if err != nil {
			return nil, nil, nil, err
		}

		B_ := crypto.BlindMessage(secret, r)
		blindedMessages[i] = cashu.BlindedMessage{
			Amount: amt,
			B_:     hex.EncodeToString(B_.SerializeCompressed()),
			Id:     keyset.Id,
		}
		secrets[i] = secret
		rs[i] = r
	}

	return blindedMessages, secrets, rs, nil
}

// constructProofs unblinds the signatures returned by the mint into
// spendable proofs. Signatures must be in the same order as the
// outputs that produced secrets and rs.
func constructProofs(signatures cashu.BlindedSignatures, secrets []string,
	rs []*secp256k1.PrivateKey, keyset *crypto.PublicKeyset) (cashu.Proofs, error) {

	if len(signatures) != len(secrets) || len(signatures) != len(rs) {
		return nil, errors.New("mint returned a different number of signatures than requested")
	}

	proofs := make(cashu.Proofs, len(signatures))
	for i, signature := range signatures {
		C_bytes, err := hex.DecodeString(signature.C_)
		if err != nil {
			return nil, fmt.Errorf("invalid C_ from mint: %v", err)
		}
		C_, err := secp256k1.ParsePubKey(C_bytes)
		if err != nil {
			return nil, fmt.Errorf("invalid C_ from mint: %v", err)
		}

		K, ok := keyset.Keys[signature.Amount]
		if !ok {
			return nil, fmt.Errorf("mint signed for amount %v not in keyset", signature.Amount)
		}

		C := crypto.UnblindSignature(C_, rs[i], K)
		proofs[i] = cashu.Proof{
			Amount: signature.Amount,
			Id:     signature.Id,
			Secret: secrets[i],
			C:      hex.EncodeToString(C.SerializeCompressed()),
		}
	}

	return proofs, nil
}

// selectProofsForAmount picks stored proofs from a mint until their
// sum covers amount.
func (w *Wallet) selectProofsForAmount(mintURL string, amount uint64) (cashu.Proofs, error) {
	available := w.db.GetProofs(mintURL)
	if available.Amount() < amount {
		return nil, fmt.Errorf("%w: mint '%v' holds %v but %v needed",
			ErrNotEnoughFunds, mintURL, available.Amount(), amount)
	}

	selected := cashu.Proofs{}
	var selectedAmount uint64
	for _, proof := range available {
		selected = append(selected, proof)
		selectedAmount += proof.Amount
		if selectedAmount >= amount {
			break
		}
	}

	return selected, nil
}

// SendLocked swaps stored proofs into proofs of exactly amount locked
// to the recipient's public key. The swap inputs are deleted only
// after the mint confirms the swap; the locked proofs are recorded as
// a pending lock and stay in the db until the caller confirms
// delivery, so a failed delivery can be retried.
func (w *Wallet) SendLocked(ctx context.Context, amount uint64, mintURL, recipientPubkey string) (
	*storage.PendingLock, error) {

	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := p2pk.ParsePublicKey(recipientPubkey); err != nil {
		return nil, err
	}

	inputs, err := w.selectProofsForAmount(mintURL, amount)
	if err != nil {
		return nil, err
	}

	keyset, err := w.activeKeyset(ctx, mintURL)
	if err != nil {
		return nil, err
	}

	lockedOutputs, lockedSecrets, lockedRs, err := createBlindedMessages(amount, keyset,
		func() (string, error) { return p2pk.NewSecret(recipientPubkey) })
	if err != nil {
		return nil, fmt.Errorf("error creating locked outputs: %v", err)
	}

	changeAmount := inputs.Amount() - amount
	changeOutputs, changeSecrets, changeRs, err := createBlindedMessages(changeAmount, keyset, randomSecret)
	if err != nil {
		return nil, fmt.Errorf("error creating change outputs: %v", err)
	}

	outputs := append(lockedOutputs, changeOutputs...)
	swapResponse, err := PostSwap(ctx, mintURL, PostSwapRequest{Inputs: inputs, Outputs: outputs})
	if err != nil {
		return nil, err
	}

	secrets := append(lockedSecrets, changeSecrets...)
	rs := append(lockedRs, changeRs...)
	proofs, err := constructProofs(swapResponse.Signatures, secrets, rs, keyset)
	if err != nil {
		return nil, err
	}
	lockedProofs := proofs[:len(lockedOutputs)]
	changeProofs := proofs[len(lockedOutputs):]

	// the mint accepted the swap: inputs are spent no matter what
	// happens from here on
	if err := w.db.DeleteProofs(mintURL, inputs.Secrets()); err != nil {
		return nil, err
	}
	if len(changeProofs) > 0 {
		if err := w.db.SaveProofs(mintURL, changeProofs); err != nil {
			return nil, err
		}
	}

	pendingLock := storage.PendingLock{
		Id:        uuid.NewString(),
		MintURL:   mintURL,
		Recipient: recipientPubkey,
		Proofs:    lockedProofs,
		CreatedAt: time.Now().UnixNano(),
	}
	if err := w.db.SavePendingLock(pendingLock); err != nil {
		return nil, err
	}

	return &pendingLock, nil
}

// ConfirmSendLocked marks a pending lock as delivered.
func (w *Wallet) ConfirmSendLocked(lockId string) error {
	return w.db.DeletePendingLock(lockId)
}

// PendingLocks returns locked sends that were never confirmed
// delivered, oldest first, so callers can retry delivery.
func (w *Wallet) PendingLocks() []storage.PendingLock {
	return w.db.GetPendingLocks()
}

// swapToFresh swaps the given proofs at the mint into fresh plain
// proofs owned by this wallet. Locked inputs get witness signatures
// attached before the swap.
func (w *Wallet) swapToFresh(ctx context.Context, mintURL string, inputs cashu.Proofs) (cashu.Proofs, error) {
	keyset, err := w.activeKeyset(ctx, mintURL)
	if err != nil {
		return nil, err
	}

	signedInputs := make(cashu.Proofs, 0, len(inputs))
	for _, proof := range inputs {
		if cashu.IsProofLocked(proof) {
			signed, err := p2pk.SignProofs(cashu.Proofs{proof}, w.p2pkKey)
			if err != nil {
				return nil, err
			}
			proof = signed[0]
		}
		signedInputs = append(signedInputs, proof)
	}

	outputs, secrets, rs, err := createBlindedMessages(inputs.Amount(), keyset, randomSecret)
	if err != nil {
		return nil, err
	}

	swapResponse, err := PostSwap(ctx, mintURL, PostSwapRequest{Inputs: signedInputs, Outputs: outputs})
	if err != nil {
		return nil, err
	}

	return constructProofs(swapResponse.Signatures, secrets, rs, keyset)
}

// RedeemLocked redeems proofs that were locked to this wallet.
// Proofs locked to a key the wallet does not hold are excluded and
// reported in the result rather than failing the redemption: a
// partially inaccessible batch is an expected condition, not an
// error.
func (w *Wallet) RedeemLocked(ctx context.Context, mintURL string, proofs cashu.Proofs) (*RedeemResult, error) {
	// the url may come straight off a nutzap event's mint tag; proofs
	// must land in the same bucket AddMint registers
	mintURL, err := normalizeMintURL(mintURL)
	if err != nil {
		return nil, fmt.Errorf("invalid mint url: %v", err)
	}

	result := &RedeemResult{Total: proofs.Amount()}

	accessible := cashu.Proofs{}
	for _, proof := range proofs {
		if p2pk.CanSpendProof(proof, w.p2pkKey) {
			accessible = append(accessible, proof)
		} else {
			result.Inaccessible += proof.Amount
			result.InaccessibleProofs = append(result.InaccessibleProofs, proof)
		}
	}

	if len(accessible) == 0 {
		return result, nil
	}

	fresh, err := w.swapToFresh(ctx, mintURL, accessible)
	if err != nil {
		return nil, err
	}

	if err := w.AddMint(mintURL); err != nil {
		return nil, err
	}
	if err := w.AddProofs(mintURL, fresh); err != nil {
		return nil, err
	}

	result.Redeemed = fresh.Amount()
	return result, nil
}

// Send swaps stored proofs into a serializable token of exactly
// amount for out-of-band transfer.
func (w *Wallet) Send(ctx context.Context, amount uint64, mintURL string) (cashu.Token, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	inputs, err := w.selectProofsForAmount(mintURL, amount)
	if err != nil {
		return nil, err
	}

	keyset, err := w.activeKeyset(ctx, mintURL)
	if err != nil {
		return nil, err
	}

	sendOutputs, sendSecrets, sendRs, err := createBlindedMessages(amount, keyset, randomSecret)
	if err != nil {
		return nil, err
	}
	changeOutputs, changeSecrets, changeRs, err := createBlindedMessages(inputs.Amount()-amount, keyset, randomSecret)
	if err != nil {
		return nil, err
	}

	outputs := append(sendOutputs, changeOutputs...)
	swapResponse, err := PostSwap(ctx, mintURL, PostSwapRequest{Inputs: inputs, Outputs: outputs})
	if err != nil {
		return nil, err
	}

	secrets := append(sendSecrets, changeSecrets...)
	rs := append(sendRs, changeRs...)
	proofs, err := constructProofs(swapResponse.Signatures, secrets, rs, keyset)
	if err != nil {
		return nil, err
	}
	sendProofs := proofs[:len(sendOutputs)]
	changeProofs := proofs[len(sendOutputs):]

	if err := w.db.DeleteProofs(mintURL, inputs.Secrets()); err != nil {
		return nil, err
	}
	if len(changeProofs) > 0 {
		if err := w.db.SaveProofs(mintURL, changeProofs); err != nil {
			return nil, err
		}
	}

	token, err := cashu.NewTokenV4(sendProofs, mintURL, cashu.Sat)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Receive redeems a token received out of band, swapping its proofs
// into fresh ones so the sender can no longer spend them.
func (w *Wallet) Receive(ctx context.Context, token cashu.Token) (uint64, error) {
	mintURL, err := normalizeMintURL(token.Mint())
	if err != nil {
		return 0, fmt.Errorf("token has invalid mint url: %v", err)
	}

	fresh, err := w.swapToFresh(ctx, mintURL, token.Proofs())
	if err != nil {
		return 0, err
	}

	if err := w.AddMint(mintURL); err != nil {
		return 0, err
	}
	if err := w.AddProofs(mintURL, fresh); err != nil {
		return 0, err
	}

	return fresh.Amount(), nil
}
