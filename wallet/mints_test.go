package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestAddAndSetMints(t *testing.T) {
	w := testWallet(t)

	if err := w.AddMint("https://second-mint.example.com"); err != nil {
		t.Fatalf("error adding mint: %v", err)
	}
	// re-adding a known mint is a no-op
	if err := w.AddMint("https://second-mint.example.com"); err != nil {
		t.Fatalf("error re-adding mint: %v", err)
	}
	if err := w.AddMint("not-a-url"); err == nil {
		t.Fatal("expected error adding invalid mint url but got none")
	}

	mints := w.Mints()
	if len(mints) != 2 {
		t.Fatalf("expected '%v' mints but got '%v' instead", 2, len(mints))
	}
	if mints[0].URL != "https://testmint.example.com" {
		t.Errorf("expected first-added mint first but got '%v'", mints[0].URL)
	}

	if err := w.SetActiveMint("https://second-mint.example.com"); err != nil {
		t.Fatalf("error setting active mint: %v", err)
	}
	if active := w.ActiveMint(); active != "https://second-mint.example.com" {
		t.Errorf("expected '%v' but got '%v' instead", "https://second-mint.example.com", active)
	}

	err := w.SetActiveMint("https://never-added.example.com")
	if !errors.Is(err, ErrMintNotKnown) {
		t.Errorf("expected '%v' but got '%v' instead", ErrMintNotKnown, err)
	}
}

func TestMintInsertionOrder(t *testing.T) {
	w := testWallet(t)

	// added back to back, with the later mint sorting lexically first
	if err := w.AddMint("https://zzz-mint.example.com"); err != nil {
		t.Fatalf("error adding mint: %v", err)
	}
	if err := w.AddMint("https://aaa-mint.example.com"); err != nil {
		t.Fatalf("error adding mint: %v", err)
	}

	expected := []string{
		"https://testmint.example.com",
		"https://zzz-mint.example.com",
		"https://aaa-mint.example.com",
	}
	mints := w.Mints()
	if len(mints) != len(expected) {
		t.Fatalf("expected '%v' mints but got '%v' instead", len(expected), len(mints))
	}
	for i, url := range expected {
		if mints[i].URL != url {
			t.Errorf("expected '%v' at position %v but got '%v' instead", url, i, mints[i].URL)
		}
	}
}

func TestRemoveMint(t *testing.T) {
	w := testWallet(t)
	if err := w.AddMint("https://second-mint.example.com"); err != nil {
		t.Fatalf("error adding mint: %v", err)
	}

	// the active mint cannot be removed
	if err := w.RemoveMint("https://testmint.example.com"); err == nil {
		t.Fatal("expected error removing active mint but got none")
	}

	// neither can a mint still holding proofs
	fundWallet(t, w, "https://second-mint.example.com", 4)
	if err := w.RemoveMint("https://second-mint.example.com"); err == nil {
		t.Fatal("expected error removing funded mint but got none")
	}

	if err := w.RemoveProofs("https://second-mint.example.com",
		w.GetProofs("https://second-mint.example.com").Secrets()); err != nil {
		t.Fatalf("error removing proofs: %v", err)
	}
	if err := w.RemoveMint("https://second-mint.example.com"); err != nil {
		t.Fatalf("error removing mint: %v", err)
	}
	if len(w.Mints()) != 1 {
		t.Fatalf("expected '%v' mint but got '%v' instead", 1, len(w.Mints()))
	}

	err := w.RemoveMint("https://never-added.example.com")
	if !errors.Is(err, ErrMintNotKnown) {
		t.Errorf("expected '%v' but got '%v' instead", ErrMintNotKnown, err)
	}
}

func TestMintInfoFor(t *testing.T) {
	w, mintURL := mintWallet(t)

	mint, err := w.MintInfoFor(context.Background(), mintURL)
	if err != nil {
		t.Fatalf("error getting mint info: %v", err)
	}
	if mint.Name != "testmint" {
		t.Errorf("expected '%v' but got '%v' instead", "testmint", mint.Name)
	}
	if mint.Version != "fakemint/0.1" {
		t.Errorf("expected '%v' but got '%v' instead", "fakemint/0.1", mint.Version)
	}

	// metadata is stored, a second call does not refetch
	stored := w.Mints()[0]
	if stored.Name != "testmint" {
		t.Errorf("expected stored name '%v' but got '%v' instead", "testmint", stored.Name)
	}

	_, err = w.MintInfoFor(context.Background(), "https://never-added.example.com")
	if !errors.Is(err, ErrMintNotKnown) {
		t.Errorf("expected '%v' but got '%v' instead", ErrMintNotKnown, err)
	}
}

func TestResolveMintCompatibility(t *testing.T) {
	// wallet with mints A and B, A added first and active
	mintA := "https://testmint.example.com"
	mintB := "https://mint-b.example.com"
	mintC := "https://mint-c.example.com"
	mintD := "https://mint-d.example.com"

	setup := func(t *testing.T) *Wallet {
		w := testWallet(t)
		if err := w.AddMint(mintB); err != nil {
			t.Fatalf("error adding mint: %v", err)
		}
		return w
	}

	t.Run("active mint compatible", func(t *testing.T) {
		w := setup(t)
		mint, switched, err := w.ResolveMintCompatibility([]string{mintC, mintA})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mint != mintA {
			t.Errorf("expected '%v' but got '%v' instead", mintA, mint)
		}
		if switched {
			t.Error("expected no switch when active mint is compatible")
		}
	})

	t.Run("switches to first compatible mint", func(t *testing.T) {
		w := setup(t)
		mint, switched, err := w.ResolveMintCompatibility([]string{mintB, mintC})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mint != mintB {
			t.Errorf("expected '%v' but got '%v' instead", mintB, mint)
		}
		if !switched {
			t.Error("expected switch to be reported")
		}
		if active := w.ActiveMint(); active != mintB {
			t.Errorf("expected active mint '%v' but got '%v' instead", mintB, active)
		}
	})

	t.Run("tolerates trailing slashes in accepted list", func(t *testing.T) {
		w := setup(t)
		mint, switched, err := w.ResolveMintCompatibility([]string{mintB + "/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if mint != mintB || !switched {
			t.Errorf("expected switch to '%v' but got '%v' (switched %v)", mintB, mint, switched)
		}
	})

	t.Run("no overlap names both sides", func(t *testing.T) {
		w := setup(t)
		_, _, err := w.ResolveMintCompatibility([]string{mintC, mintD})
		if !errors.Is(err, ErrNoCompatibleMint) {
			t.Fatalf("expected '%v' but got '%v' instead", ErrNoCompatibleMint, err)
		}
		for _, mint := range []string{mintA, mintB, mintC, mintD} {
			if !strings.Contains(err.Error(), mint) {
				t.Errorf("expected error to name '%v' but it was '%v'", mint, err)
			}
		}
		// a failed resolution must not change the active mint
		if active := w.ActiveMint(); active != mintA {
			t.Errorf("expected active mint '%v' but got '%v' instead", mintA, active)
		}
	})
}
