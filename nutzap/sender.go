package nutzap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/patrickmn/go-cache"

	"github.com/silentius-satoshi/ZapTok-sub008/wallet"
	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

var ErrNotLoggedIn = errors.New("not logged in")

const (
	// recipient infos change rarely; cache them briefly to avoid a
	// relay round trip per zap.
	infoCacheTTL = 10 * time.Minute

	queryTimeout = 10 * time.Second
)

// Sender publishes nutzaps. It needs a funded wallet and a nostr
// identity to sign outgoing events with.
type Sender struct {
	wallet  *wallet.Wallet
	querier Querier
	pub     Publisher

	// secretKey is the hex nostr key events are signed with. Empty
	// means no identity is loaded and sends fail immediately.
	secretKey string
	pubkey    string

	infoCache *cache.Cache
	logger    *slog.Logger
}

// NewSender builds a sender around the wallet and relay client. An
// empty secretKey is allowed; Send will refuse until one is set.
func NewSender(w *wallet.Wallet, querier Querier, pub Publisher,
	secretKey string, logger *slog.Logger) (*Sender, error) {

	var pubkey string
	if secretKey != "" {
		pk, err := nostr.GetPublicKey(secretKey)
		if err != nil {
			return nil, fmt.Errorf("invalid nostr key: %v", err)
		}
		pubkey = pk
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Sender{
		wallet:    w,
		querier:   querier,
		pub:       pub,
		secretKey: secretKey,
		pubkey:    pubkey,
		infoCache: cache.New(infoCacheTTL, 2*infoCacheTTL),
		logger:    logger,
	}, nil
}

// SendParams describe one nutzap.
type SendParams struct {
	// To is the recipient's nostr pubkey (hex).
	To     string
	Amount uint64
	// Comment goes into the event content. Optional.
	Comment string
	// EventID is the note being tipped. Optional.
	EventID string
	// GroupID carries group context. Optional.
	GroupID string
}

// SendResult reports a published nutzap.
type SendResult struct {
	// EventID of the published kind-9321 event.
	EventID string
	// Mint the proofs were locked at.
	Mint string
	// SwitchedMint reports that sending changed the wallet's active
	// mint to satisfy the recipient.
	SwitchedMint bool
	Amount       uint64
}

// Send locks Amount to the recipient's P2PK key and publishes the
// nutzap event. The flow is strictly sequential and fails fast: no
// identity, no recipient wallet, or no compatible mint each abort
// before any proofs are touched. If publishing fails after the swap,
// the locked proofs stay queued as a pending lock and the send can be
// retried from there; nothing is retried automatically.
func (s *Sender) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	if s.secretKey == "" {
		return nil, ErrNotLoggedIn
	}
	if params.To == "" {
		return nil, errors.New("no recipient")
	}
	if params.Amount == 0 {
		return nil, wallet.ErrInvalidAmount
	}

	info, err := s.recipientInfo(ctx, params.To)
	if err != nil {
		return nil, err
	}

	mintURL, switched, err := s.wallet.ResolveMintCompatibility(info.Mints)
	if err != nil {
		return nil, err
	}
	if switched {
		s.logger.Info("switched active mint for nutzap",
			slog.String("mint", mintURL), slog.String("recipient", params.To))
	}

	lock, err := s.wallet.SendLocked(ctx, params.Amount, mintURL, info.Pubkey)
	if err != nil {
		return nil, err
	}

	event, err := BuildNutzapEvent(params.To, mintURL, lock.Proofs,
		params.Comment, params.EventID, params.GroupID)
	if err != nil {
		return nil, err
	}
	if err := event.Sign(s.secretKey); err != nil {
		return nil, fmt.Errorf("error signing nutzap event: %v", err)
	}

	if err := s.pub.Publish(ctx, &event); err != nil {
		// proofs stay reserved under lock.Id for a retry
		return nil, fmt.Errorf("error publishing nutzap event: %v", err)
	}
	if err := s.wallet.ConfirmSendLocked(lock.Id); err != nil {
		return nil, err
	}

	if _, err := s.wallet.AddHistoryEntry(storage.HistoryEntry{
		Id:              event.ID,
		Direction:       storage.TxOut,
		Amount:          lock.Proofs.Amount(),
		Timestamp:       time.Now().Unix(),
		CreatedTokens:   []string{event.ID},
		DestroyedTokens: []string{lock.Id},
	}); err != nil {
		return nil, fmt.Errorf("nutzap sent but could not record it in history: %v", err)
	}

	s.logger.Info("nutzap sent", slog.String("event", event.ID),
		slog.Uint64("amount", lock.Proofs.Amount()), slog.String("mint", mintURL))

	return &SendResult{
		EventID:      event.ID,
		Mint:         mintURL,
		SwitchedMint: switched,
		Amount:       lock.Proofs.Amount(),
	}, nil
}

// recipientInfo returns the recipient's nutzap capability descriptor,
// from cache or from the relays. A recipient with no (valid) kind
// 10019 event cannot receive nutzaps.
func (s *Sender) recipientInfo(ctx context.Context, recipient string) (*Info, error) {
	if cached, ok := s.infoCache.Get(recipient); ok {
		return cached.(*Info), nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	events, err := s.querier.Query(queryCtx, nostr.Filter{
		Kinds:   []int{KindNutzapInfo},
		Authors: []string{recipient},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("error querying recipient info: %v", err)
	}

	// relays may return stale versions of the replaceable event;
	// keep the newest parseable one
	var info *Info
	for _, ev := range events {
		parsed, err := ParseInfoEvent(ev)
		if err != nil {
			s.logger.Debug("skipping invalid nutzap info event",
				slog.String("event", ev.ID), slog.Any("error", err))
			continue
		}
		if info == nil || parsed.CreatedAt > info.CreatedAt {
			info = parsed
		}
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRecipientWallet, recipient)
	}

	s.infoCache.Set(recipient, info, cache.DefaultExpiration)
	return info, nil
}

// PublishInfo announces the wallet's own nutzap capabilities: its
// P2PK receiving key and the mints it accepts.
func (s *Sender) PublishInfo(ctx context.Context, relays []string) (string, error) {
	if s.secretKey == "" {
		return "", ErrNotLoggedIn
	}

	mints := make([]string, 0)
	for _, mint := range s.wallet.Mints() {
		mints = append(mints, mint.URL)
	}
	if len(mints) == 0 {
		return "", errors.New("wallet has no mints")
	}

	event := BuildInfoEvent(s.wallet.P2PKPublicKey(), mints, relays)
	if err := event.Sign(s.secretKey); err != nil {
		return "", fmt.Errorf("error signing info event: %v", err)
	}
	if err := s.pub.Publish(ctx, &event); err != nil {
		return "", err
	}
	return event.ID, nil
}
