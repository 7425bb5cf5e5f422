package nutzap

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/silentius-satoshi/ZapTok-sub008/wallet"
	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

// Receiver fetches nutzaps addressed to a pubkey and redeems their
// locked proofs into the wallet.
type Receiver struct {
	wallet  *wallet.Wallet
	querier Querier
	// pubkey whose nutzaps are fetched. Fetching needs no keys, so a
	// read-only receiver for someone else's pubkey is possible.
	pubkey string
	logger *slog.Logger
}

func NewReceiver(w *wallet.Wallet, querier Querier, pubkey string, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Receiver{wallet: w, querier: querier, pubkey: pubkey, logger: logger}
}

// Fetch returns the nutzaps addressed to the receiver's pubkey,
// newest first. Events that fail to parse are skipped, not fatal: one
// garbage event on a relay must not hide the rest.
func (r *Receiver) Fetch(ctx context.Context, limit int) ([]*IncomingNutzap, error) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	events, err := r.querier.Query(queryCtx, nostr.Filter{
		Kinds: []int{KindNutzap},
		Tags:  nostr.TagMap{"p": []string{r.pubkey}},
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	nutzaps := make([]*IncomingNutzap, 0, len(events))
	for _, ev := range events {
		nz, err := ParseNutzapEvent(ev)
		if err != nil {
			r.logger.Debug("skipping nutzap event",
				slog.String("event", ev.ID), slog.Any("error", err))
			continue
		}
		nutzaps = append(nutzaps, nz)
	}

	sort.Slice(nutzaps, func(i, j int) bool {
		return nutzaps[i].CreatedAt > nutzaps[j].CreatedAt
	})
	return nutzaps, nil
}

// Redeem swaps the nutzap's proofs for fresh ones owned by the
// wallet. Proofs locked to keys the wallet does not hold are reported
// in the result rather than failing the whole redemption, so a
// partially accessible nutzap still yields what it can. Successful
// redemptions are recorded in the history keyed by event id, which
// makes redeeming the same event twice record it once.
func (r *Receiver) Redeem(ctx context.Context, nz *IncomingNutzap) (*wallet.RedeemResult, error) {
	result, err := r.wallet.RedeemLocked(ctx, nz.Mint, nz.Proofs)
	if err != nil {
		return nil, err
	}

	if result.Redeemed > 0 {
		stored, err := r.wallet.AddHistoryEntry(storage.HistoryEntry{
			Id:             nz.EventID,
			Direction:      storage.TxIn,
			Amount:         result.Redeemed,
			Timestamp:      time.Now().Unix(),
			RedeemedTokens: []string{nz.EventID},
		})
		if err != nil {
			return nil, err
		}
		if !stored {
			r.logger.Debug("nutzap already in history", slog.String("event", nz.EventID))
		}
	}

	r.logger.Info("nutzap redeemed",
		slog.String("event", nz.EventID),
		slog.Uint64("redeemed", result.Redeemed),
		slog.Uint64("inaccessible", result.Inaccessible))

	return result, nil
}
