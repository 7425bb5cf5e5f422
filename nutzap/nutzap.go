// Package nutzap implements sending and receiving ecash tips over
// Nostr: recipients publish an informational event declaring the
// mints they accept and the public key to lock proofs to, and senders
// deliver P2PK-locked proofs in a nutzap event addressed to them.
package nutzap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nbd-wtf/go-nostr"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
)

const (
	// KindNutzapInfo is the replaceable event in which a recipient
	// declares accepted mints and their P2PK receiving key.
	KindNutzapInfo = 10019
	// KindNutzap carries the locked proofs of one tip.
	KindNutzap = 9321
)

var (
	ErrNoRecipientWallet = errors.New("recipient has no wallet")
	ErrMalformedNutzap   = errors.New("malformed nutzap event")
)

// Info is a recipient's capability descriptor: which mints they
// accept and which key proofs must be locked to. It is owned by the
// recipient; senders only read it.
type Info struct {
	// Pubkey is the P2PK public key to lock proofs to (not the
	// recipient's nostr key).
	Pubkey string
	// Mints the recipient accepts ecash from.
	Mints []string
	// Relays the recipient wants nutzaps published to.
	Relays []string

	EventID   string
	CreatedAt int64
}

// ParseInfoEvent reads a kind-10019 event into an Info. It fails if
// the event declares no P2PK key or no mints, since such a recipient
// cannot receive nutzaps.
func ParseInfoEvent(ev *nostr.Event) (*Info, error) {
	if ev.Kind != KindNutzapInfo {
		return nil, fmt.Errorf("unexpected event kind %d", ev.Kind)
	}

	info := &Info{EventID: ev.ID, CreatedAt: int64(ev.CreatedAt)}
	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "pubkey":
			info.Pubkey = tag[1]
		case "mint":
			info.Mints = append(info.Mints, tag[1])
		case "relay":
			info.Relays = append(info.Relays, tag[1])
		}
	}

	if info.Pubkey == "" {
		return nil, errors.New("nutzap info declares no p2pk key")
	}
	if len(info.Mints) == 0 {
		return nil, errors.New("nutzap info declares no mints")
	}
	return info, nil
}

// BuildInfoEvent constructs the (unsigned) informational event for a
// wallet accepting the given mints with the given P2PK key.
func BuildInfoEvent(p2pkPubkey string, mints, relays []string) nostr.Event {
	tags := nostr.Tags{{"pubkey", p2pkPubkey}}
	for _, mint := range mints {
		tags = append(tags, nostr.Tag{"mint", mint, "sat"})
	}
	for _, relay := range relays {
		tags = append(tags, nostr.Tag{"relay", relay})
	}

	return nostr.Event{
		Kind:      KindNutzapInfo,
		CreatedAt: nostr.Now(),
		Tags:      tags,
	}
}

// IncomingNutzap is one received tip, parsed from a kind-9321 event.
type IncomingNutzap struct {
	EventID string
	// Sender is the nostr pubkey the tip came from.
	Sender string
	// Amount is the nominal amount declared on the event. The
	// attached proofs are authoritative; the two can differ.
	Amount uint64
	// Mint the proofs were issued by.
	Mint string
	// RefEventID is the tipped note, if the zap targets one.
	RefEventID string
	// GroupID carries optional group context.
	GroupID string
	Comment string
	Proofs  cashu.Proofs

	CreatedAt int64
}

// ParseNutzapEvent reads a kind-9321 event. Events missing the
// amount, mint or proofs are malformed; callers scanning a batch are
// expected to skip them rather than abort.
func ParseNutzapEvent(ev *nostr.Event) (*IncomingNutzap, error) {
	if ev.Kind != KindNutzap {
		return nil, fmt.Errorf("%w: unexpected kind %d", ErrMalformedNutzap, ev.Kind)
	}

	nz := &IncomingNutzap{
		EventID:   ev.ID,
		Sender:    ev.PubKey,
		Comment:   ev.Content,
		CreatedAt: int64(ev.CreatedAt),
	}

	for _, tag := range ev.Tags {
		if len(tag) < 2 {
			continue
		}
		switch tag[0] {
		case "amount":
			amount, err := strconv.ParseUint(tag[1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid amount tag: %v", ErrMalformedNutzap, err)
			}
			nz.Amount = amount
		case "u":
			nz.Mint = tag[1]
		case "e":
			nz.RefEventID = tag[1]
		case "g":
			nz.GroupID = tag[1]
		case "proof":
			var proof cashu.Proof
			if err := json.Unmarshal([]byte(tag[1]), &proof); err != nil {
				return nil, fmt.Errorf("%w: invalid proof tag: %v", ErrMalformedNutzap, err)
			}
			nz.Proofs = append(nz.Proofs, proof)
		}
	}

	if nz.Amount == 0 {
		return nil, fmt.Errorf("%w: missing amount", ErrMalformedNutzap)
	}
	if nz.Mint == "" {
		return nil, fmt.Errorf("%w: missing mint", ErrMalformedNutzap)
	}
	if len(nz.Proofs) == 0 {
		return nil, fmt.Errorf("%w: no proofs attached", ErrMalformedNutzap)
	}

	return nz, nil
}

// BuildNutzapEvent constructs the (unsigned) nutzap event delivering
// the given locked proofs to recipient.
func BuildNutzapEvent(recipient, mintURL string, proofs cashu.Proofs,
	comment, refEventID, groupID string) (nostr.Event, error) {

	tags := nostr.Tags{
		{"p", recipient},
		{"amount", strconv.FormatUint(proofs.Amount(), 10)},
		{"u", mintURL},
	}
	for _, proof := range proofs {
		jsonProof, err := json.Marshal(proof)
		if err != nil {
			return nostr.Event{}, err
		}
		tags = append(tags, nostr.Tag{"proof", string(jsonProof)})
	}
	if refEventID != "" {
		tags = append(tags, nostr.Tag{"e", refEventID})
	}
	if groupID != "" {
		tags = append(tags, nostr.Tag{"g", groupID})
	}

	return nostr.Event{
		Kind:      KindNutzap,
		CreatedAt: nostr.Now(),
		Tags:      tags,
		Content:   comment,
	}, nil
}
