// Package crypto implements the wallet side of the blind
// Diffie-Hellman key exchange used by Cashu mints: blinding secrets
// before they are sent to the mint and unblinding the signatures that
// come back.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// HashToCurve maps a message to a point on the curve by repeated
// hashing until a valid x coordinate is found.
func HashToCurve(message []byte) *secp256k1.PublicKey {
	var point *secp256k1.PublicKey

	for point == nil || !point.IsOnCurve() {
		hash := sha256.Sum256(message)
		pkhash := append([]byte{0x02}, hash[:]...)
		point, _ = secp256k1.ParsePubKey(pkhash)
		message = hash[:]
	}
	return point
}

// GenerateBlindingFactor returns a fresh random blinding factor r.
func GenerateBlindingFactor() (*secp256k1.PrivateKey, error) {
	r := make([]byte, 32)
	if _, err := rand.Read(r); err != nil {
		return nil, err
	}
	blindingFactor, _ := btcec.PrivKeyFromBytes(r)
	return blindingFactor, nil
}

// BlindMessage computes B_ = Y + rG for secret with blinding factor r.
func BlindMessage(secret string, r *secp256k1.PrivateKey) *secp256k1.PublicKey {
	var ypoint, rpoint, blindedMessage secp256k1.JacobianPoint

	Y := HashToCurve([]byte(secret))
	Y.AsJacobian(&ypoint)
	r.PubKey().AsJacobian(&rpoint)

	secp256k1.AddNonConst(&ypoint, &rpoint, &blindedMessage)
	blindedMessage.ToAffine()

	return secp256k1.NewPublicKey(&blindedMessage.X, &blindedMessage.Y)
}

// UnblindSignature computes C = C_ - rK, where K is the mint public
// key for the amount being signed.
func UnblindSignature(C_ *secp256k1.PublicKey, r *secp256k1.PrivateKey,
	K *secp256k1.PublicKey) *secp256k1.PublicKey {

	var Kpoint, rKPoint, CPoint secp256k1.JacobianPoint
	K.AsJacobian(&Kpoint)

	var rNeg secp256k1.ModNScalar
	rNeg.NegateVal(&r.Key)

	secp256k1.ScalarMultNonConst(&rNeg, &Kpoint, &rKPoint)

	var C_Point secp256k1.JacobianPoint
	C_.AsJacobian(&C_Point)
	secp256k1.AddNonConst(&C_Point, &rKPoint, &CPoint)
	CPoint.ToAffine()

	return secp256k1.NewPublicKey(&CPoint.X, &CPoint.Y)
}
