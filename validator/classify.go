package validator

import (
	"context"

	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/verify"
)

// Classify decides what should happen to candidate given priorState (nil if
// the identifier has no accepted events yet). It touches no storage: every
// fact a store would otherwise supply is passed in explicitly.
//
//   - existingDigest/existingDigestOK describe whatever digest (if any) is
//     already committed at candidate's (identifier, sequence) — used only to
//     detect duplicitous candidates and idempotent re-submission.
//   - delegatorResolved is true iff candidate is not a delegated event, or
//     its delegating event/seal is already present in the log.
//
// The returned error is non-nil only for an unexpected Verifier failure;
// every classification outcome, including rejection, is carried in Decision.
func Classify(
	ctx context.Context,
	v verify.Verifier,
	candidate event.SignedEventMessage,
	priorState *event.IdentifierState,
	existingDigest event.EventDigest,
	existingDigestOK bool,
	delegatorResolved bool,
) (Decision, error) {
	evt := candidate.Event

	if malformed(evt) {
		return reject(kelerr.ErrMalformedEvent, "candidate event fails structural check"), nil
	}

	isInception := evt.Type == event.Inception || evt.Type == event.DelegatedInception

	if isInception {
		if priorState != nil {
			return classifyAgainstExisting(candidate, existingDigest, existingDigestOK, kelerr.ErrBadSequence, "inception re-sent for an identifier that already has state")
		}
		if evt.Sequence != 0 {
			return reject(kelerr.ErrBadSequence, "inception must be sequence 0"), nil
		}
	} else {
		if priorState == nil {
			return escrow(EscrowOutOfOrder), nil
		}
		expectedNext := priorState.ExpectedNextSequence()
		switch {
		case evt.Sequence > expectedNext:
			return escrow(EscrowOutOfOrder), nil
		case evt.Sequence < expectedNext:
			return classifyAgainstExisting(candidate, existingDigest, existingDigestOK, kelerr.ErrBadSequence, "sequence moves backwards with no existing entry to compare against")
		case evt.PriorDigest != priorState.LastEventDigest:
			return classifyAgainstExisting(candidate, existingDigest, existingDigestOK, kelerr.ErrBadPriorDigest, "prior_digest does not match the committed event at sequence-1")
		}

		if evt.Type == event.Rotation || evt.Type == event.DelegatedRotation {
			if evt.KeyCommitmentDigest != priorState.NextDigest {
				return reject(kelerr.ErrBadKeyCommitment, "rotation keys do not match the prior next_digest commitment"), nil
			}
		}
	}

	// Idempotent re-submission of an already-committed event at this exact
	// sequence: accept trivially without re-deriving anything, satisfying
	// the idempotence property.
	if existingDigestOK && existingDigest == candidate.Digest {
		return accept(), nil
	}

	if evt.Type.IsDelegated() && !delegatorResolved {
		return escrow(EscrowMissingDelegator), nil
	}

	keys, threshold := signingKeys(evt, priorState)

	if len(keys) == 0 {
		return reject(kelerr.ErrThresholdUnsatisfiable, "no keys available to verify against"), nil
	}

	allIdx := make([]int, len(keys))
	for i := range keys {
		allIdx[i] = i
	}
	if !threshold.Satisfied(allIdx) {
		return reject(kelerr.ErrThresholdUnsatisfiable, "threshold cannot be met even if every key's signature were valid"), nil
	}

	validIdx, err := verify.VerifyAll(v, keys, evt.Raw, candidate.IndexedSignatures)
	if err != nil {
		return Decision{}, err
	}

	if !threshold.Satisfied(validIdx) {
		attempted := distinctIndices(candidate.IndexedSignatures, len(keys))
		if len(attempted) < len(keys) {
			return Decision{Kind: EscrowPartiallySigned, ValidSigIdx: validIdx}, nil
		}
		return reject(kelerr.ErrSignatureInvalid, "every key slot was attempted and valid signatures still do not meet threshold"), nil
	}

	witnessCount := len(candidate.WitnessReceipts)
	_, witnessThreshold := witnessPolicy(evt, priorState)
	if witnessCount < witnessThreshold {
		return Decision{Kind: EscrowPartiallyWitnessed, ValidSigIdx: validIdx}, nil
	}

	return Decision{Kind: Accept, ValidSigIdx: validIdx}, nil
}

// classifyAgainstExisting resolves the three-way fork between "nothing
// committed here yet" (the caller's sentinel reject reason applies),
// "something different is committed here" (Duplicitous), and "the same
// event is already committed here" (Accept, idempotent).
func classifyAgainstExisting(candidate event.SignedEventMessage, existingDigest event.EventDigest, existingDigestOK bool, sentinel error, detail string) (Decision, error) {
	if !existingDigestOK {
		return reject(sentinel, detail), nil
	}
	if existingDigest == candidate.Digest {
		return accept(), nil
	}
	return duplicitous(), nil
}

func malformed(evt event.KeyEvent) bool {
	if evt.Identifier == "" || len(evt.Raw) == 0 {
		return true
	}
	switch evt.Type {
	case event.Inception, event.Rotation, event.Interaction, event.DelegatedInception, event.DelegatedRotation:
	default:
		return true
	}
	if evt.Type.IsEstablishment() && len(evt.CurrentKeys) == 0 {
		return true
	}
	if evt.Type.IsDelegated() && evt.Delegator == "" {
		return true
	}
	return false
}

// signingKeys returns the key set and threshold a candidate must be verified
// against: its own declared keys for establishment events (self-signing), or
// the prior state's established keys for an interaction event.
func signingKeys(evt event.KeyEvent, prior *event.IdentifierState) ([]event.PublicKey, event.ThresholdSpec) {
	if evt.Type.IsEstablishment() {
		return evt.CurrentKeys, evt.CurrentThreshold
	}
	return prior.CurrentKeys, prior.CurrentThreshold
}

func witnessPolicy(evt event.KeyEvent, prior *event.IdentifierState) ([]event.IdentifierPrefix, int) {
	if evt.Type.IsEstablishment() {
		return evt.Witnesses, evt.WitnessThreshold
	}
	return prior.Witnesses, prior.WitnessThreshold
}

func distinctIndices(sigs []event.IndexedSignature, numKeys int) []int {
	seen := make(map[int]bool)
	for _, s := range sigs {
		if s.Index >= 0 && s.Index < numKeys {
			seen[s.Index] = true
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	return out
}
