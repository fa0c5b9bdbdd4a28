package event

// IdentifierPrefix is the stable identity of a controller. It is opaque to
// this package — equality and hashing are the only operations it supports,
// both given for free by the underlying string.
type IdentifierPrefix string

// EventDigest is a self-addressing identifier: the cryptographic hash of the
// canonical serialization of an event, computed by an external collaborator
// over the exact bytes the wire parser read. This package never recomputes
// it.
type EventDigest string

// PublicKey is an opaque encoded public key as declared in a key event.
type PublicKey string

// EventType names the five KERI key-event variants.
type EventType string

const (
	Inception          EventType = "icp"
	Rotation           EventType = "rot"
	Interaction        EventType = "ixn"
	DelegatedInception EventType = "dip"
	DelegatedRotation  EventType = "drt"
)

// IsDelegated reports whether t is one of the delegated event types.
func (t EventType) IsDelegated() bool {
	return t == DelegatedInception || t == DelegatedRotation
}

// IsEstablishment reports whether t changes (or establishes) key state,
// as opposed to merely anchoring data (interaction events).
func (t EventType) IsEstablishment() bool {
	return t == Inception || t == Rotation || t == DelegatedInception || t == DelegatedRotation
}

// IndexedSignature pairs a signature with the index into current_keys of
// the signer that produced it.
type IndexedSignature struct {
	Index     int
	Signature []byte
}

// Seal is an anchored hash carried in a key event's seals list, or the
// validator event-seal referenced by a transferable receipt.
type Seal struct {
	Identifier IdentifierPrefix
	Sequence   uint64
	Digest     EventDigest
}

// KeyEvent is the parsed, unsigned body of a key event.
type KeyEvent struct {
	Identifier       IdentifierPrefix
	Sequence         uint64
	Type             EventType
	CurrentKeys      []PublicKey
	CurrentThreshold ThresholdSpec
	NextDigest       EventDigest // commitment to the next key set; empty once rotation has no successor planned
	PriorDigest      EventDigest // absent (empty) for inception

	// KeyCommitmentDigest is the digest of this event's own CurrentKeys (and
	// CurrentThreshold), computed externally by the same collaborator that
	// computes EventDigest over Raw. A rotation is only valid if this equals
	// the prior state's NextDigest; this package never hashes keys itself to
	// check it.
	KeyCommitmentDigest EventDigest
	Witnesses        []IdentifierPrefix
	WitnessThreshold int
	Seals            []Seal
	Delegator        IdentifierPrefix // empty unless Type.IsDelegated()

	// Raw is the exact byte sequence the external parser read. Digests are
	// always computed over Raw, never over a re-serialization of the
	// fields above.
	Raw []byte
}

// NontransReceipt is a nontransferable witness endorsement: a raw witness
// key plus a signature couplet over (identifier, sequence, digest).
type NontransReceipt struct {
	Identifier  IdentifierPrefix
	Sequence    uint64
	EventDigest EventDigest
	SignerKey   PublicKey
	Signature   []byte
}

// TransferableReceipt is a transferable-identifier witness endorsement: a
// validator event-seal plus indexed signatures over (identifier, sequence,
// digest).
type TransferableReceipt struct {
	Identifier    IdentifierPrefix
	Sequence      uint64
	EventDigest   EventDigest
	ValidatorSeal Seal
	Signatures    []IndexedSignature
}

// SignedEventMessage is a KeyEvent together with its indexed signatures and
// any witness receipts the sender attached directly to the message.
type SignedEventMessage struct {
	Event             KeyEvent
	Digest            EventDigest
	IndexedSignatures []IndexedSignature
	WitnessReceipts   []NontransReceipt
}

func (m SignedEventMessage) Identifier() IdentifierPrefix { return m.Event.Identifier }
func (m SignedEventMessage) Sequence() uint64             { return m.Event.Sequence }
