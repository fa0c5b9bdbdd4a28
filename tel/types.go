// Package tel implements the Transaction Event Log: a second, per-registry
// event family (credential issuance/revocation) anchored into a KEL via a
// seal and accepted through the same kelstore.SequencedIndex and
// kelstore.EscrowFactory the KEL itself uses, with its own classify/process
// pair standing in for validator.Classify/processor.Processor because a
// TEL event's validity additionally depends on its anchoring KEL seal being
// resolvable, not on any signature of its own.
package tel

import "github.com/seriouscoderone/keriox/event"

// EventType names the four TEL event variants.
type EventType string

const (
	Issue        EventType = "iss"
	Revoke       EventType = "rev"
	BackerIssue  EventType = "bis"
	BackerRevoke EventType = "brv"
)

// IsBacked reports whether t is one of the backer (witness-endorsed
// registry) variants, as opposed to a plain vc-registry entry.
func (t EventType) IsBacked() bool {
	return t == BackerIssue || t == BackerRevoke
}

// isInception reports whether t opens a new credential's state machine
// (iss/bis) as opposed to transitioning an existing one (rev/brv).
func (t EventType) isInception() bool {
	return t == Issue || t == BackerIssue
}

// TelEvent is the parsed, unsigned body of one TEL event.
type TelEvent struct {
	// RegistryIdentifier is the credential registry this event belongs to —
	// the TEL analogue of a KEL's controller identifier. SequencedIndex and
	// escrow entries are filed under CredentialKey(RegistryIdentifier,
	// MessageDigest), not under the registry alone.
	RegistryIdentifier event.IdentifierPrefix
	Sequence           uint64
	Type               EventType

	// MessageDigest is the credential (VC) this event issues or revokes.
	MessageDigest event.EventDigest
	// PriorDigest chains to the previous TEL event for this same credential,
	// empty for iss/bis.
	PriorDigest event.EventDigest

	// Anchor is the KEL event-seal this TEL event is anchored to: the
	// controller interaction event that carries this TEL event's digest in
	// its Seals list. A TEL event is only acceptable once Anchor resolves
	// against the KEL's own SequencedIndex.
	Anchor event.Seal

	Raw []byte
}

// VerifiableEvent pairs a TelEvent with its externally computed digest,
// mirroring teliox's VerifiableEvent wrapper.
type VerifiableEvent struct {
	Event  TelEvent
	Digest event.EventDigest
}

func (v VerifiableEvent) Registry() event.IdentifierPrefix { return v.Event.RegistryIdentifier }
func (v VerifiableEvent) Sequence() uint64                 { return v.Event.Sequence }

// CredentialKey is the synthetic identifier a TEL event's (registry,
// credential) pair is filed under in the shared kelstore.SequencedIndex and
// escrow tables: each credential within a registry has its own iss->rev
// sequence, distinct from any other credential the same registry manages,
// same as teliox's per-SAID event sequence (registry-level "management"
// events — rotating a registry's own backers — are out of scope here).
func CredentialKey(registry event.IdentifierPrefix, messageDigest event.EventDigest) event.IdentifierPrefix {
	return event.IdentifierPrefix(string(registry) + "/" + string(messageDigest))
}

// RegistryState is the derived per-credential state folded from one
// registry's TEL, keyed externally by (registry, credential digest) — it
// has no signing-key analogue since TEL events carry no signatures of
// their own, only an anchor into the already-verified KEL.
type RegistryState struct {
	RegistryIdentifier event.IdentifierPrefix
	MessageDigest      event.EventDigest
	Sequence           uint64
	LastEventDigest    event.EventDigest
	LastEventType      EventType
	Revoked            bool
}

// ExpectedNextSequence mirrors event.IdentifierState's method of the same
// name for the TEL's per-credential sequencing.
func (s *RegistryState) ExpectedNextSequence() uint64 {
	if s == nil {
		return 0
	}
	return s.Sequence + 1
}

// Apply folds one already-classified TEL event onto prior state. prior is
// nil for iss/bis.
func Apply(prior *RegistryState, evt TelEvent, digest event.EventDigest) RegistryState {
	return RegistryState{
		RegistryIdentifier: evt.RegistryIdentifier,
		MessageDigest:      evt.MessageDigest,
		Sequence:           evt.Sequence,
		LastEventDigest:    digest,
		LastEventType:      evt.Type,
		Revoked:            evt.Type == Revoke || evt.Type == BackerRevoke,
	}
}
