package wallet

import (
	"sort"
	"time"

	"github.com/silentius-satoshi/ZapTok-sub008/wallet/storage"
)

// TxType classifies a history entry for display.
type TxType string

const (
	TxNutzap  TxType = "nutzap"
	TxMint    TxType = "mint"
	TxMelt    TxType = "melt"
	TxSend    TxType = "send"
	TxReceive TxType = "receive"
)

// DefaultGroupingWindow is how far apart two otherwise identical
// entries may be and still collapse into one displayed transaction.
// Multi-proof operations land in the ledger as several entries within
// moments of each other; the window exists to fold that noise back
// into one logical transaction.
const DefaultGroupingWindow = 30 * time.Second

// GroupingOptions controls the display-time grouping pass.
type GroupingOptions struct {
	// Window is the maximum spread between entries in a group.
	// Zero means DefaultGroupingWindow.
	Window time.Duration
}

// TransactionGroup is one displayed transaction, possibly merging
// several underlying ledger entries.
type TransactionGroup struct {
	Type      TxType
	Direction storage.TxDirection
	Amount    uint64
	// Timestamp of the earliest entry in the group.
	Timestamp int64
	// Count of ledger entries merged into this group.
	Count int
	// TokenIds is the union of token ids referenced by the merged entries.
	TokenIds []string
	// EntryIds of the merged ledger entries.
	EntryIds []string
}

// AddHistoryEntry appends the entry to the ledger. Entries are
// deduplicated on id: re-inserting a seen id is a silent no-op and
// reports false.
func (w *Wallet) AddHistoryEntry(entry storage.HistoryEntry) (bool, error) {
	return w.db.SaveHistoryEntry(entry)
}

// AddHistoryEntries appends a batch of entries, skipping ids seen
// before.
func (w *Wallet) AddHistoryEntries(entries []storage.HistoryEntry) error {
	for _, entry := range entries {
		if _, err := w.db.SaveHistoryEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

// HistoryEntries returns the raw append-only ledger, oldest first.
func (w *Wallet) HistoryEntries() []storage.HistoryEntry {
	return w.db.GetHistoryEntries()
}

// GroupedHistory returns the display projection of the ledger.
func (w *Wallet) GroupedHistory(opts GroupingOptions) []TransactionGroup {
	return GroupTransactions(w.db.GetHistoryEntries(), opts)
}

// ClassifyEntry derives the display type of a ledger entry from its
// token arrays: redeemed tokens mean a nutzap, created-only a mint,
// destroyed-only a melt, and anything else falls back to plain
// send/receive by direction.
func ClassifyEntry(entry storage.HistoryEntry) TxType {
	switch {
	case len(entry.RedeemedTokens) > 0:
		return TxNutzap
	case len(entry.CreatedTokens) > 0 && len(entry.DestroyedTokens) == 0:
		return TxMint
	case len(entry.DestroyedTokens) > 0 && len(entry.CreatedTokens) == 0:
		return TxMelt
	case entry.Direction == storage.TxOut:
		return TxSend
	default:
		return TxReceive
	}
}

// GroupTransactions merges entries sharing type, direction and exact
// amount whose timestamps fall within the window into one group. It
// is a pure read projection: the ledger itself is never mutated, and
// running the pass twice yields the same groups. Amounts are compared
// for exact equality only.
func GroupTransactions(entries []storage.HistoryEntry, opts GroupingOptions) []TransactionGroup {
	window := opts.Window
	if window == 0 {
		window = DefaultGroupingWindow
	}
	windowSeconds := int64(window / time.Second)

	sorted := make([]storage.HistoryEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	groups := []TransactionGroup{}
	for _, entry := range sorted {
		entryType := ClassifyEntry(entry)

		merged := false
		for i := range groups {
			group := &groups[i]
			if group.Type != entryType ||
				group.Direction != entry.Direction ||
				group.Amount != entry.Amount {
				continue
			}
			// anchor the window at the group's first entry
			if entry.Timestamp-group.Timestamp > windowSeconds {
				continue
			}

			group.Count++
			group.EntryIds = append(group.EntryIds, entry.Id)
			group.TokenIds = appendUnique(group.TokenIds, tokenIds(entry)...)
			merged = true
			break
		}

		if !merged {
			groups = append(groups, TransactionGroup{
				Type:      entryType,
				Direction: entry.Direction,
				Amount:    entry.Amount,
				Timestamp: entry.Timestamp,
				Count:     1,
				TokenIds:  appendUnique(nil, tokenIds(entry)...),
				EntryIds:  []string{entry.Id},
			})
		}
	}

	return groups
}

func tokenIds(entry storage.HistoryEntry) []string {
	ids := make([]string, 0, len(entry.CreatedTokens)+len(entry.DestroyedTokens)+len(entry.RedeemedTokens))
	ids = append(ids, entry.CreatedTokens...)
	ids = append(ids, entry.DestroyedTokens...)
	ids = append(ids, entry.RedeemedTokens...)
	return ids
}

func appendUnique(ids []string, newIds ...string) []string {
	for _, id := range newIds {
		seen := false
		for _, existing := range ids {
			if existing == id {
				seen = true
				break
			}
		}
		if !seen {
			ids = append(ids, id)
		}
	}
	return ids
}
