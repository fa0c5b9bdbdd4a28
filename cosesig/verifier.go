// Package cosesig provides a concrete verify.Verifier built on COSE
// (RFC 8152) ECDSA verification, adapted from the teacher's massifs/cose
// package. It is one possible signature-primitive implementation for the
// Validator's external collaborator boundary — not the only one, and never
// hard-wired into the Validator itself.
package cosesig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/seriouscoderone/keriox/event"
	"github.com/veraison/go-cose"
)

// Algorithm is the single COSE algorithm this verifier supports: ECDSA
// with SHA-256 over the P-256 curve.
const Algorithm = cose.AlgorithmES256

var (
	// ErrBadKeyEncoding is returned when a event.PublicKey cannot be decoded
	// into a P-256 point.
	ErrBadKeyEncoding = errors.New("cosesig: public key is not a valid hex-encoded uncompressed P-256 point")
)

// Verifier verifies indexed signatures as detached COSE ES256 signatures
// over the event's canonical bytes.
type Verifier struct{}

// New returns a Verifier. It carries no state: every call decodes the key
// it is given, since KERI keys vary per event and are never cached here.
func New() Verifier { return Verifier{} }

// Verify implements verify.Verifier.
func (Verifier) Verify(key event.PublicKey, message []byte, sig event.IndexedSignature) (bool, error) {
	pub, err := decodeP256PublicKey(key)
	if err != nil {
		return false, err
	}

	coseVerifier, err := cose.NewVerifier(Algorithm, pub)
	if err != nil {
		return false, err
	}

	if err := coseVerifier.Verify(message, sig.Signature); err != nil {
		// A verification failure is "not valid", not an error to propagate —
		// mirrors how a failed cryptographic check is reported as a boolean
		// throughout the Validator, matching spec.md's Reject(reason) for
		// SignatureInvalid being produced by the caller, not by this layer.
		return false, nil
	}
	return true, nil
}

// decodeP256PublicKey decodes key as hex("04" || X(32) || Y(32)), the
// uncompressed SEC1 encoding of a P-256 point, following the same X/Y
// extraction the teacher's ECCoseKey.PublicKey uses for EC COSE keys.
func decodeP256PublicKey(key event.PublicKey) (*ecdsa.PublicKey, error) {
	raw, err := hex.DecodeString(string(key))
	if err != nil {
		return nil, ErrBadKeyEncoding
	}
	if len(raw) != 65 || raw[0] != 0x04 {
		return nil, ErrBadKeyEncoding
	}
	x := new(big.Int).SetBytes(raw[1:33])
	y := new(big.Int).SetBytes(raw[33:65])
	if !elliptic.P256().IsOnCurve(x, y) {
		return nil, ErrBadKeyEncoding
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}
