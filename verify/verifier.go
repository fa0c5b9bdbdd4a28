// Package verify defines the signature-verification capability the
// Validator depends on. Concrete implementations (see cosesig) are external
// collaborators — this package only fixes the boundary.
package verify

import "github.com/seriouscoderone/keriox/event"

// Verifier checks one indexed signature against the public key it claims to
// be signed by.
//
// For inception/rotation events the keys passed are those declared by the
// candidate event itself (self-signing); for interaction events they are
// the established current_keys of the prior IdentifierState. The Validator
// is responsible for selecting the right key set — Verifier only checks one
// (key, signature, message) triple at a time.
type Verifier interface {
	Verify(key event.PublicKey, message []byte, sig event.IndexedSignature) (bool, error)
}

// VerifyAll verifies every signature in sigs against keys (indexed by
// Signature.Index) and returns the indices that verified. Signatures whose
// index is out of range for keys are silently skipped — an out-of-range
// index can never be valid and is not itself a verifier error.
func VerifyAll(v Verifier, keys []event.PublicKey, message []byte, sigs []event.IndexedSignature) ([]int, error) {
	var valid []int
	for _, sig := range sigs {
		if sig.Index < 0 || sig.Index >= len(keys) {
			continue
		}
		ok, err := v.Verify(keys[sig.Index], message, sig)
		if err != nil {
			return nil, err
		}
		if ok {
			valid = append(valid, sig.Index)
		}
	}
	return valid, nil
}
