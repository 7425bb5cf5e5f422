package wallet

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
	"github.com/silentius-satoshi/ZapTok-sub008/crypto"
)

// fakeMint is an in-process mint for tests. It holds real keys and
// signs blinded outputs the same way a mint would, but accepts any
// inputs without checking them.
type fakeMint struct {
	keys     map[uint64]*secp256k1.PrivateKey
	keysetId string
}

func newFakeMint(t *testing.T) *fakeMint {
	t.Helper()

	keys := make(map[uint64]*secp256k1.PrivateKey)
	pubkeys := make(map[uint64]*secp256k1.PublicKey)
	for i := 0; i < 12; i++ {
		keyBytes := make([]byte, 32)
		keyBytes[30] = byte(i + 1)
		keyBytes[31] = 0x42
		key := secp256k1.PrivKeyFromBytes(keyBytes)
		amount := uint64(1 << i)
		keys[amount] = key
		pubkeys[amount] = key.PubKey()
	}

	keyset := crypto.PublicKeyset{Keys: pubkeys}
	return &fakeMint{keys: keys, keysetId: keyset.DeriveId()}
}

func (m *fakeMint) signOutputs(t *testing.T, outputs cashu.BlindedMessages) cashu.BlindedSignatures {
	t.Helper()

	signatures := make(cashu.BlindedSignatures, len(outputs))
	for i, output := range outputs {
		B_bytes, err := hex.DecodeString(output.B_)
		if err != nil {
			t.Fatalf("mint got invalid B_: %v", err)
		}
		B_, err := secp256k1.ParsePubKey(B_bytes)
		if err != nil {
			t.Fatalf("mint got invalid B_: %v", err)
		}
		key, ok := m.keys[output.Amount]
		if !ok {
			t.Fatalf("mint got output for unknown amount %v", output.Amount)
		}

		var point, result secp256k1.JacobianPoint
		B_.AsJacobian(&point)
		secp256k1.ScalarMultNonConst(&key.Key, &point, &result)
		result.ToAffine()
		C_ := secp256k1.NewPublicKey(&result.X, &result.Y)

		signatures[i] = cashu.BlindedSignature{
			Amount: output.Amount,
			C_:     hex.EncodeToString(C_.SerializeCompressed()),
			Id:     m.keysetId,
		}
	}
	return signatures
}

func (m *fakeMint) server(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/v1/info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(MintInfo{Name: "testmint", Version: "fakemint/0.1"})
	})

	mux.HandleFunc("/v1/keys", func(w http.ResponseWriter, r *http.Request) {
		keys := make(map[uint64]string, len(m.keys))
		for amount, key := range m.keys {
			keys[amount] = hex.EncodeToString(key.PubKey().SerializeCompressed())
		}
		json.NewEncoder(w).Encode(GetKeysResponse{
			Keysets: []KeysetKeys{{Id: m.keysetId, Unit: "sat", Keys: keys}},
		})
	})

	mux.HandleFunc("/v1/swap", func(w http.ResponseWriter, r *http.Request) {
		var swapRequest PostSwapRequest
		if err := json.NewDecoder(r.Body).Decode(&swapRequest); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(PostSwapResponse{
			Signatures: m.signOutputs(t, swapRequest.Outputs),
		})
	})

	mux.HandleFunc("/v1/mint/quote/bolt11", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PostMintQuoteBolt11Response{
			Quote: "testquote123", Request: "lnbc210n1fakeinvoice", State: "UNPAID",
		})
	})

	mux.HandleFunc("/v1/mint/quote/bolt11/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PostMintQuoteBolt11Response{
			Quote: "testquote123", State: "PAID", Paid: true,
		})
	})

	mux.HandleFunc("/v1/mint/bolt11", func(w http.ResponseWriter, r *http.Request) {
		var mintRequest PostMintBolt11Request
		if err := json.NewDecoder(r.Body).Decode(&mintRequest); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(PostMintBolt11Response{
			Signatures: m.signOutputs(t, mintRequest.Outputs),
		})
	})

	mux.HandleFunc("/v1/melt/quote/bolt11", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PostMeltQuoteBolt11Response{
			Quote: "meltquote123", Amount: 10, FeeReserve: 1, State: "UNPAID",
		})
	})

	mux.HandleFunc("/v1/melt/bolt11", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PostMeltQuoteBolt11Response{
			Quote: "meltquote123", Amount: 10, FeeReserve: 1, State: "PAID", Paid: true,
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// mintWallet returns a wallet whose active mint is a running fake mint.
func mintWallet(t *testing.T) (*Wallet, string) {
	t.Helper()

	mint := newFakeMint(t)
	server := mint.server(t)

	config := Config{WalletPath: t.TempDir(), CurrentMintURL: server.URL}
	w, err := LoadWallet(config)
	if err != nil {
		t.Fatalf("error loading wallet: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	return w, server.URL
}

// fundWallet seeds the wallet with proofs. The fake mint does not
// check swap inputs, so arbitrary proofs work as funds.
func fundWallet(t *testing.T, w *Wallet, mintURL string, amounts ...uint64) {
	t.Helper()

	proofs := make(cashu.Proofs, len(amounts))
	for i, amount := range amounts {
		secret, err := randomSecret()
		if err != nil {
			t.Fatalf("error generating secret: %v", err)
		}
		proofs[i] = cashu.Proof{Amount: amount, Id: "00ad268c4d1f5826", Secret: secret, C: "c"}
	}
	if err := w.AddProofs(mintURL, proofs); err != nil {
		t.Fatalf("error funding wallet: %v", err)
	}
}
