package wallet

import (
	"testing"

	"github.com/silentius-satoshi/ZapTok-sub008/cashu"
)

func testWallet(t *testing.T) *Wallet {
	t.Helper()

	config := Config{WalletPath: t.TempDir(), CurrentMintURL: "https://testmint.example.com"}
	w, err := LoadWallet(config)
	if err != nil {
		t.Fatalf("error loading wallet: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestCalculateBalance(t *testing.T) {
	tests := []struct {
		name         string
		proofsByMint map[string]cashu.Proofs
		expected     map[string]uint64
	}{
		{
			name:         "empty store",
			proofsByMint: map[string]cashu.Proofs{},
			expected:     map[string]uint64{},
		},
		{
			name: "balances per mint stay separate",
			proofsByMint: map[string]cashu.Proofs{
				"https://mint-one.example.com": {
					{Amount: 1, Secret: "s1", C: "c1"},
					{Amount: 4, Secret: "s2", C: "c2"},
				},
				"https://mint-two.example.com": {
					{Amount: 64, Secret: "s3", C: "c3"},
				},
			},
			expected: map[string]uint64{
				"https://mint-one.example.com": 5,
				"https://mint-two.example.com": 64,
			},
		},
		{
			name: "mint with no proofs has zero balance",
			proofsByMint: map[string]cashu.Proofs{
				"https://mint-one.example.com": {},
			},
			expected: map[string]uint64{"https://mint-one.example.com": 0},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			balances := CalculateBalance(test.proofsByMint)
			if len(balances) != len(test.expected) {
				t.Fatalf("expected '%v' balances but got '%v' instead", len(test.expected), len(balances))
			}
			for mint, expected := range test.expected {
				if balances[mint] != expected {
					t.Errorf("expected '%v' for mint '%v' but got '%v' instead",
						expected, mint, balances[mint])
				}
			}
		})
	}
}

func TestNormalizeMintURL(t *testing.T) {
	tests := []struct {
		mint     string
		expected string
		valid    bool
	}{
		{"https://testmint.example.com", "https://testmint.example.com", true},
		{"https://testmint.example.com/", "https://testmint.example.com", true},
		{"http://127.0.0.1:3338", "http://127.0.0.1:3338", true},
		{"ftp://testmint.example.com", "", false},
		{"testmint.example.com", "", false},
	}

	for _, test := range tests {
		normalized, err := normalizeMintURL(test.mint)
		if test.valid {
			if err != nil {
				t.Errorf("unexpected error for '%v': %v", test.mint, err)
			}
			if normalized != test.expected {
				t.Errorf("expected '%v' but got '%v' instead", test.expected, normalized)
			}
		} else if err == nil {
			t.Errorf("expected error for '%v' but got none", test.mint)
		}
	}
}

func TestWalletPersistence(t *testing.T) {
	path := t.TempDir()
	config := Config{WalletPath: path, CurrentMintURL: "https://testmint.example.com"}

	w, err := LoadWallet(config)
	if err != nil {
		t.Fatalf("error loading wallet: %v", err)
	}

	mnemonic := w.Mnemonic()
	if mnemonic == "" {
		t.Fatal("expected mnemonic to be generated")
	}
	pubkey := w.P2PKPublicKey()
	if pubkey == "" {
		t.Fatal("expected p2pk public key")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("error closing wallet: %v", err)
	}

	// same seed, same receiving key after reload
	reloaded, err := LoadWallet(config)
	if err != nil {
		t.Fatalf("error reloading wallet: %v", err)
	}
	defer reloaded.Close()

	if reloaded.Mnemonic() != mnemonic {
		t.Error("mnemonic changed across reload")
	}
	if reloaded.P2PKPublicKey() != pubkey {
		t.Error("p2pk public key changed across reload")
	}
	if reloaded.ActiveMint() != "https://testmint.example.com" {
		t.Errorf("expected '%v' but got '%v' instead",
			"https://testmint.example.com", reloaded.ActiveMint())
	}
}

func TestAddProofs(t *testing.T) {
	w := testWallet(t)
	mintURL := "https://testmint.example.com"

	proofs := cashu.Proofs{
		{Amount: 2, Id: "00ad268c4d1f5826", Secret: "secret1", C: "c1"},
		{Amount: 8, Id: "00ad268c4d1f5826", Secret: "secret2", C: "c2"},
	}
	if err := w.AddProofs(mintURL, proofs); err != nil {
		t.Fatalf("error adding proofs: %v", err)
	}
	if balance := w.Balance(); balance != 10 {
		t.Errorf("expected balance '%v' but got '%v' instead", 10, balance)
	}

	// a malformed proof rejects the whole batch
	bad := cashu.Proofs{
		{Amount: 4, Id: "00ad268c4d1f5826", Secret: "secret3", C: "c3"},
		{Amount: 0, Id: "00ad268c4d1f5826", Secret: "secret4", C: "c4"},
	}
	if err := w.AddProofs(mintURL, bad); err == nil {
		t.Fatal("expected error adding invalid proofs but got none")
	}
	if balance := w.Balance(); balance != 10 {
		t.Errorf("expected balance '%v' but got '%v' instead", 10, balance)
	}

	if err := w.RemoveProofs(mintURL, []string{"secret1"}); err != nil {
		t.Fatalf("error removing proofs: %v", err)
	}
	if balance := w.Balance(); balance != 8 {
		t.Errorf("expected balance '%v' but got '%v' instead", 8, balance)
	}
}
