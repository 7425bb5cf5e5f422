package cashu

import (
	"encoding/hex"
	"errors"
	"reflect"
	"testing"
)

func TestDecodeTokenV4(t *testing.T) {
	keysetIdBytes, _ := hex.DecodeString("00ad268c4d1f5826")
	Cbytes, _ := hex.DecodeString("038618543ffb6b8695df4ad4babcde92a34a96bdcd97dcee0d7ccf98d472126792")

	tests := []struct {
		tokenString string
		expected    TokenV4
	}{
		{
			tokenString: "cashuBpGF0gaJhaUgArSaMTR9YJmFwgaNhYQFhc3hAOWE2ZGJiODQ3YmQyMzJiYTc2ZGIwZGYxOTcyMTZiMjlkM2I4Y2MxNDU1M2NkMjc4MjdmYzFjYzk0MmZlZGI0ZWFjWCEDhhhUP_trhpXfStS6vN6So0qWvc2X3O4NfM-Y1HISZ5JhZGlUaGFuayB5b3VhbXVodHRwOi8vbG9jYWxob3N0OjMzMzhhdWNzYXQ=",
			expected: TokenV4{
				MintURL: "http://localhost:3338",
				TokenProofs: []TokenV4Proof{
					{
						Id: keysetIdBytes,
						Proofs: []ProofV4{
							{
								Amount: 1,
								Secret: "9a6dbb847bd232ba76db0df197216b29d3b8cc14553cd27827fc1cc942fedb4e",
								C:      Cbytes,
							},
						},
					},
				},
				Unit: "sat",
				Memo: "Thank you",
			},
		},
	}

	for _, test := range tests {
		token, err := DecodeTokenV4(test.tokenString)
		if err != nil {
			t.Fatalf("error decoding token: %v", err)
		}
		if token.Unit != test.expected.Unit {
			t.Errorf("expected '%v' but got '%v' instead", test.expected.Unit, token.Unit)
		}
		if token.Memo != test.expected.Memo {
			t.Errorf("expected '%v' but got '%v' instead", test.expected.Memo, token.Memo)
		}
		if token.Mint() != test.expected.MintURL {
			t.Errorf("expected '%v' but got '%v' instead", test.expected.MintURL, token.Mint())
		}
		if !reflect.DeepEqual(token.TokenProofs, test.expected.TokenProofs) {
			t.Errorf("expected '%v' but got '%v' instead", test.expected.TokenProofs, token.TokenProofs)
		}
	}
}

func TestTokenV4RoundTrip(t *testing.T) {
	proofs := Proofs{
		{Amount: 2, Id: "00ad268c4d1f5826", Secret: "secret1",
			C: "038618543ffb6b8695df4ad4babcde92a34a96bdcd97dcee0d7ccf98d472126792"},
		{Amount: 8, Id: "00ad268c4d1f5826", Secret: "secret2",
			C: "038618543ffb6b8695df4ad4babcde92a34a96bdcd97dcee0d7ccf98d472126792"},
	}

	token, err := NewTokenV4(proofs, "http://localhost:3338", Sat)
	if err != nil {
		t.Fatalf("error creating token: %v", err)
	}
	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("error serializing token: %v", err)
	}

	decoded, err := DecodeToken(serialized)
	if err != nil {
		t.Fatalf("error decoding token: %v", err)
	}
	if decoded.Mint() != "http://localhost:3338" {
		t.Errorf("expected '%v' but got '%v' instead", "http://localhost:3338", decoded.Mint())
	}
	if decoded.Amount() != 10 {
		t.Errorf("expected amount '%v' but got '%v' instead", 10, decoded.Amount())
	}
	if !reflect.DeepEqual(decoded.Proofs(), proofs) {
		t.Errorf("expected '%v' but got '%v' instead", proofs, decoded.Proofs())
	}
}

func TestTokenV3RoundTrip(t *testing.T) {
	proofs := Proofs{
		{Amount: 4, Id: "00ffd48b8f5ecf80", Secret: "somesecret",
			C: "0244538319de485d55bed3b29a642bee5879375ab9e7a620e11e48ba482421f3cf"},
	}

	token, err := NewTokenV3(proofs, "http://localhost:3338", Sat)
	if err != nil {
		t.Fatalf("error creating token: %v", err)
	}
	serialized, err := token.Serialize()
	if err != nil {
		t.Fatalf("error serializing token: %v", err)
	}

	decoded, err := DecodeToken(serialized)
	if err != nil {
		t.Fatalf("error decoding token: %v", err)
	}
	if decoded.Mint() != "http://localhost:3338" {
		t.Errorf("expected '%v' but got '%v' instead", "http://localhost:3338", decoded.Mint())
	}
	if !reflect.DeepEqual(decoded.Proofs(), proofs) {
		t.Errorf("expected '%v' but got '%v' instead", proofs, decoded.Proofs())
	}
}

func TestDecodeInvalidToken(t *testing.T) {
	invalid := []string{"", "cashu", "cashuC9999", "cashuBnotbase64!!!", "cashuAnotbase64!!!"}
	for _, tokenstr := range invalid {
		if _, err := DecodeToken(tokenstr); err == nil {
			t.Errorf("expected error decoding token '%v' but got none", tokenstr)
		}
	}
}

func TestProofValidate(t *testing.T) {
	tests := []struct {
		proof Proof
		valid bool
	}{
		{Proof{Amount: 1, Secret: "secret", C: "c"}, true},
		{Proof{Amount: 0, Secret: "secret", C: "c"}, false},
		{Proof{Amount: 1, Secret: "", C: "c"}, false},
		{Proof{Amount: 1, Secret: "secret", C: ""}, false},
	}

	for _, test := range tests {
		err := test.proof.Validate()
		if test.valid && err != nil {
			t.Errorf("expected valid proof but got error: %v", err)
		}
		if !test.valid {
			if err == nil {
				t.Errorf("expected error for proof '%v' but got none", test.proof)
			} else if !errors.Is(err, ErrInvalidProof) {
				t.Errorf("expected ErrInvalidProof but got '%v' instead", err)
			}
		}
	}
}

func TestAmountSplit(t *testing.T) {
	tests := []struct {
		amount   uint64
		expected []uint64
	}{
		{13, []uint64{1, 4, 8}},
		{64, []uint64{64}},
		{0, []uint64{}},
		{255, []uint64{1, 2, 4, 8, 16, 32, 64, 128}},
	}

	for _, test := range tests {
		split := AmountSplit(test.amount)
		if !reflect.DeepEqual(split, test.expected) {
			t.Errorf("expected '%v' but got '%v' instead", test.expected, split)
		}
	}
}

func TestCheckDuplicateProofs(t *testing.T) {
	proof := Proof{Amount: 1, Id: "id", Secret: "secret", C: "c"}
	other := Proof{Amount: 2, Id: "id", Secret: "othersecret", C: "c"}

	if CheckDuplicateProofs(Proofs{proof, other}) {
		t.Error("expected no duplicates")
	}
	if !CheckDuplicateProofs(Proofs{proof, other, proof}) {
		t.Error("expected duplicates to be detected")
	}
}
