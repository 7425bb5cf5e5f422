package cashu

import (
	"encoding/json"
	"errors"
	"fmt"
)

// SecretKind tags the result of parsing a proof secret.
type SecretKind int

const (
	// SecretPlain is a random-nonce secret: anyone holding the proof
	// can spend it.
	SecretPlain SecretKind = iota
	// SecretP2PK is a well-known secret locking the proof to a public key.
	SecretP2PK
	// SecretInvalid is a secret that looks structured (valid JSON array)
	// but does not parse as a known well-known secret. For spendability
	// classification it is treated like a plain secret.
	SecretInvalid
)

func (kind SecretKind) String() string {
	switch kind {
	case SecretP2PK:
		return "P2PK"
	case SecretInvalid:
		return "invalid"
	default:
		return "plain"
	}
}

// WellKnownSecret is the structured secret format from NUT-10:
// a serialized ["P2PK", {"nonce": ..., "data": ..., "tags": ...}] pair.
type WellKnownSecret struct {
	Nonce string     `json:"nonce"`
	Data  string     `json:"data"`
	Tags  [][]string `json:"tags,omitempty"`
}

// ParsedSecret is an explicit tagged variant. Callers branch on Kind
// instead of probing with decode-and-recover: a secret that is not valid
// well-known JSON is classified, never an error.
type ParsedSecret struct {
	Kind SecretKind
	// P2PK is set only when Kind == SecretP2PK.
	P2PK *WellKnownSecret
}

// ParseSecret classifies a proof secret. It never fails: anything that
// does not parse as a well-known P2PK secret comes back as SecretPlain
// or SecretInvalid.
func ParseSecret(secret string) ParsedSecret {
	var rawJsonSecret []json.RawMessage
	if err := json.Unmarshal([]byte(secret), &rawJsonSecret); err != nil {
		return ParsedSecret{Kind: SecretPlain}
	}

	// well-known secret should have a length of at least 2
	if len(rawJsonSecret) < 2 {
		return ParsedSecret{Kind: SecretInvalid}
	}

	var kind string
	if err := json.Unmarshal(rawJsonSecret[0], &kind); err != nil {
		return ParsedSecret{Kind: SecretInvalid}
	}
	if kind != "P2PK" {
		return ParsedSecret{Kind: SecretInvalid}
	}

	var secretData WellKnownSecret
	if err := json.Unmarshal(rawJsonSecret[1], &secretData); err != nil {
		return ParsedSecret{Kind: SecretInvalid}
	}
	if len(secretData.Data) == 0 {
		return ParsedSecret{Kind: SecretInvalid}
	}

	return ParsedSecret{Kind: SecretP2PK, P2PK: &secretData}
}

// SerializeSecret returns the json string to be put in the secret field
// of a proof.
func SerializeSecret(kind SecretKind, secretData WellKnownSecret) (string, error) {
	if kind != SecretP2PK {
		return "", errors.New("only P2PK well-known secrets are supported")
	}

	jsonSecret, err := json.Marshal(secretData)
	if err != nil {
		return "", err
	}

	secret := fmt.Sprintf("[\"%s\", %v]", kind.String(), string(jsonSecret))
	return secret, nil
}

// IsProofLocked reports whether the proof carries a P2PK spending
// condition. Secrets that fail to parse count as unlocked.
func IsProofLocked(proof Proof) bool {
	return ParseSecret(proof.Secret).Kind == SecretP2PK
}
