package tel

import (
	"context"

	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
)

// Classify decides what should happen to candidate given priorState (nil if
// this credential has no accepted TEL events yet), mirroring
// validator.Classify's shape: a pure function touching no storage itself,
// with every fact a store would otherwise supply passed in explicitly.
//
//   - existingDigest/existingDigestOK describe whatever digest (if any) is
//     already committed at candidate's (CredentialKey, sequence).
//   - anchorResolved is true iff candidate's Anchor seal is already present
//     in the KEL's own SequencedIndex at (Anchor.Identifier, Anchor.Sequence)
//     with a matching digest — the one check that stands in for KEL's
//     signature verification, since a TEL event is never itself signed.
func Classify(
	ctx context.Context,
	candidate VerifiableEvent,
	priorState *RegistryState,
	existingDigest event.EventDigest,
	existingDigestOK bool,
	anchorResolved bool,
) (Decision, error) {
	evt := candidate.Event

	if malformed(evt) {
		return reject(ErrMalformedTelEvent, "candidate tel event fails structural check"), nil
	}

	if evt.Type.isInception() {
		if priorState != nil {
			return classifyAgainstExisting(candidate, existingDigest, existingDigestOK, ErrOutOfOrder, "iss/bis re-sent for a credential that already has state")
		}
		if evt.Sequence != 0 {
			return reject(ErrOutOfOrder, "iss/bis must be sequence 0"), nil
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
			return classifyAgainstExisting(candidate, existingDigest, existingDigestOK, ErrOutOfOrder, "sequence moves backwards with no existing entry to compare against")
		case evt.PriorDigest != priorState.LastEventDigest:
			return classifyAgainstExisting(candidate, existingDigest, existingDigestOK, ErrDigestsNotMatch, "prior_digest does not match the committed tel event at sequence-1")
		case priorState.Revoked:
			return reject(ErrEventAlreadySaved, "credential is already revoked, no further tel event is possible"), nil
		}
	}

	// Idempotent re-submission of an already-committed event at this exact
	// sequence: accept trivially, same as validator.Classify's handling.
	if existingDigestOK && existingDigest == candidate.Digest {
		return accept(), nil
	}

	if !anchorResolved {
		return escrow(EscrowMissingIssuerEvent), nil
	}

	return Decision{Kind: Accept}, nil
}

func classifyAgainstExisting(candidate VerifiableEvent, existingDigest event.EventDigest, existingDigestOK bool, sentinel error, detail string) (Decision, error) {
	if !existingDigestOK {
		return reject(sentinel, detail), nil
	}
	if existingDigest == candidate.Digest {
		return accept(), nil
	}
	return duplicitous(), nil
}

func malformed(evt TelEvent) bool {
	if evt.RegistryIdentifier == "" || evt.MessageDigest == "" || len(evt.Raw) == 0 {
		return true
	}
	switch evt.Type {
	case Issue, Revoke, BackerIssue, BackerRevoke:
	default:
		return true
	}
	if evt.Anchor.Identifier == "" || evt.Anchor.Digest == "" {
		return true
	}
	return false
}

// AnchorResolved reports whether evt's Anchor seal is already present in the
// KEL's own SequencedIndex — exported so the missing-issuer-event escrow
// observer can re-check exactly the same condition Classify was given.
func AnchorResolved(ctx context.Context, kel kelstore.SequencedIndex, evt TelEvent) (bool, error) {
	digest, ok, err := kel.Get(ctx, evt.Anchor.Identifier, evt.Anchor.Sequence)
	if err != nil {
		return false, err
	}
	return ok && digest == evt.Anchor.Digest, nil
}
