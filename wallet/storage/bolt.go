package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
)

const (
	walletBucket  = "wallet"
	mintsBucket   = "mints"
	proofsBucket  = "proofs"
	pendingBucket = "pendinglocks"
	historyBucket = "history"

	mnemonicKey   = "mnemonic"
	seedKey       = "seed"
	activeMintKey = "activemint"
)

type BoltDB struct {
	bolt *bolt.DB
}

func InitBolt(path string) (*BoltDB, error) {
	boltdb, err := bolt.Open(filepath.Join(path, "wallet.db"), 0600,
		&bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("error opening wallet db: %v", err)
	}

	db := &BoltDB{bolt: boltdb}
	if err := db.initWalletBuckets(); err != nil {
		return nil, fmt.Errorf("error setting up wallet db: %v", err)
	}

	return db, nil
}

func (db *BoltDB) initWalletBuckets() error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		buckets := []string{walletBucket, mintsBucket, proofsBucket, pendingBucket, historyBucket}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) SaveMnemonicSeed(mnemonic string, seed []byte) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		if err := walletb.Put([]byte(seedKey), seed); err != nil {
			return err
		}
		return walletb.Put([]byte(mnemonicKey), []byte(mnemonic))
	})
}

func (db *BoltDB) GetSeed() []byte {
	var seed []byte
	db.bolt.View(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		if v := walletb.Get([]byte(seedKey)); v != nil {
			seed = make([]byte, len(v))
			copy(seed, v)
		}
		return nil
	})
	return seed
}

func (db *BoltDB) GetMnemonic() string {
	var mnemonic string
	db.bolt.View(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		mnemonic = string(walletb.Get([]byte(mnemonicKey)))
		return nil
	})
	return mnemonic
}

func (db *BoltDB) SaveMint(mint Mint) error {
	jsonMint, err := json.Marshal(mint)
	if err != nil {
		return err
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		mintsb := tx.Bucket([]byte(mintsBucket))
		return mintsb.Put([]byte(mint.URL), jsonMint)
	})
}

func (db *BoltDB) GetMint(url string) *Mint {
	var mint *Mint
	db.bolt.View(func(tx *bolt.Tx) error {
		mintsb := tx.Bucket([]byte(mintsBucket))
		if v := mintsb.Get([]byte(url)); v != nil {
			var m Mint
			if err := json.Unmarshal(v, &m); err == nil {
				mint = &m
			}
		}
		return nil
	})
	return mint
}

// GetMints returns the wallet's mints in the order they were added.
func (db *BoltDB) GetMints() []Mint {
	mints := []Mint{}

	db.bolt.View(func(tx *bolt.Tx) error {
		mintsb := tx.Bucket([]byte(mintsBucket))
		c := mintsb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var mint Mint
			if err := json.Unmarshal(v, &mint); err != nil {
				return fmt.Errorf("error reading mint: %v", err)
			}
			mints = append(mints, mint)
		}
		return nil
	})

	sort.SliceStable(mints, func(i, j int) bool {
		return mints[i].CreatedAt < mints[j].CreatedAt
	})
	return mints
}

func (db *BoltDB) DeleteMint(url string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		mintsb := tx.Bucket([]byte(mintsBucket))
		return mintsb.Delete([]byte(url))
	})
}

func (db *BoltDB) SaveActiveMint(url string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		return walletb.Put([]byte(activeMintKey), []byte(url))
	})
}

func (db *BoltDB) GetActiveMint() string {
	var url string
	db.bolt.View(func(tx *bolt.Tx) error {
		walletb := tx.Bucket([]byte(walletBucket))
		url = string(walletb.Get([]byte(activeMintKey)))
		return nil
	})
	return url
}

func (db *BoltDB) SaveProofs(mintURL string, proofs cashu.Proofs) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		mintb, err := proofsb.CreateBucketIfNotExists([]byte(mintURL))
		if err != nil {
			return err
		}

		for _, proof := range proofs {
			jsonProof, err := json.Marshal(proof)
			if err != nil {
				return err
			}
			if err := mintb.Put([]byte(proof.Secret), jsonProof); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) GetProofs(mintURL string) cashu.Proofs {
	proofs := cashu.Proofs{}

	db.bolt.View(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		mintb := proofsb.Bucket([]byte(mintURL))
		if mintb == nil {
			return nil
		}

		c := mintb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var proof cashu.Proof
			if err := json.Unmarshal(v, &proof); err != nil {
				return fmt.Errorf("error reading proof: %v", err)
			}
			proofs = append(proofs, proof)
		}
		return nil
	})

	return proofs
}

// GetProofsByMint returns every stored proof, bucketed by mint url.
func (db *BoltDB) GetProofsByMint() map[string]cashu.Proofs {
	proofsByMint := make(map[string]cashu.Proofs)

	db.bolt.View(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))

		c := proofsb.Cursor()
		for mintURL, v := c.First(); mintURL != nil; mintURL, v = c.Next() {
			// nested buckets have nil values
			if v != nil {
				continue
			}
			mintb := proofsb.Bucket(mintURL)
			if mintb == nil {
				continue
			}

			proofs := cashu.Proofs{}
			mc := mintb.Cursor()
			for k, pv := mc.First(); k != nil; k, pv = mc.Next() {
				var proof cashu.Proof
				if err := json.Unmarshal(pv, &proof); err != nil {
					return fmt.Errorf("error reading proof: %v", err)
				}
				proofs = append(proofs, proof)
			}
			proofsByMint[string(mintURL)] = proofs
		}
		return nil
	})

	return proofsByMint
}

func (db *BoltDB) DeleteProofs(mintURL string, secrets []string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		proofsb := tx.Bucket([]byte(proofsBucket))
		mintb := proofsb.Bucket([]byte(mintURL))
		if mintb == nil {
			return fmt.Errorf("no proofs stored for mint '%v'", mintURL)
		}

		for _, secret := range secrets {
			if err := mintb.Delete([]byte(secret)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *BoltDB) SavePendingLock(lock PendingLock) error {
	jsonLock, err := json.Marshal(lock)
	if err != nil {
		return err
	}

	return db.bolt.Update(func(tx *bolt.Tx) error {
		pendingb := tx.Bucket([]byte(pendingBucket))
		return pendingb.Put([]byte(lock.Id), jsonLock)
	})
}

func (db *BoltDB) GetPendingLocks() []PendingLock {
	locks := []PendingLock{}

	db.bolt.View(func(tx *bolt.Tx) error {
		pendingb := tx.Bucket([]byte(pendingBucket))
		c := pendingb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var lock PendingLock
			if err := json.Unmarshal(v, &lock); err != nil {
				return fmt.Errorf("error reading pending lock: %v", err)
			}
			locks = append(locks, lock)
		}
		return nil
	})

	sort.SliceStable(locks, func(i, j int) bool {
		return locks[i].CreatedAt < locks[j].CreatedAt
	})
	return locks
}

func (db *BoltDB) DeletePendingLock(id string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		pendingb := tx.Bucket([]byte(pendingBucket))
		return pendingb.Delete([]byte(id))
	})
}

func (db *BoltDB) SaveHistoryEntry(entry HistoryEntry) (bool, error) {
	stored := false
	err := db.bolt.Update(func(tx *bolt.Tx) error {
		historyb := tx.Bucket([]byte(historyBucket))
		// re-inserting a seen id is a no-op, not an error
		if historyb.Get([]byte(entry.Id)) != nil {
			return nil
		}

		jsonEntry, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		if err := historyb.Put([]byte(entry.Id), jsonEntry); err != nil {
			return err
		}
		stored = true
		return nil
	})
	return stored, err
}

func (db *BoltDB) GetHistoryEntries() []HistoryEntry {
	entries := []HistoryEntry{}

	db.bolt.View(func(tx *bolt.Tx) error {
		historyb := tx.Bucket([]byte(historyBucket))
		c := historyb.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var entry HistoryEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("error reading history entry: %v", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	return entries
}

func (db *BoltDB) Close() error {
	return db.bolt.Close()
}
