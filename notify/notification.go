package notify

import "github.com/seriouscoderone/keriox/event"

// Kind is the closed set of notification kinds the bus can dispatch,
// mirroring the JustNotification enum of the reference processor.
type Kind int

const (
	KeyEventAdded Kind = iota
	OutOfOrder
	PartiallySigned
	PartiallyWitnessed
	ReceiptAccepted
	ReceiptEscrowed
	ReceiptOutOfOrder
	TransReceiptOutOfOrder
	DuplicitousEvent
	MissingDelegatingEvent
	TelEventAdded
	TelOutOfOrder
	TelMissingIssuerEvent
	TelDuplicitousEvent
)

func (k Kind) String() string {
	switch k {
	case KeyEventAdded:
		return "KeyEventAdded"
	case OutOfOrder:
		return "OutOfOrder"
	case PartiallySigned:
		return "PartiallySigned"
	case PartiallyWitnessed:
		return "PartiallyWitnessed"
	case ReceiptAccepted:
		return "ReceiptAccepted"
	case ReceiptEscrowed:
		return "ReceiptEscrowed"
	case ReceiptOutOfOrder:
		return "ReceiptOutOfOrder"
	case TransReceiptOutOfOrder:
		return "TransReceiptOutOfOrder"
	case DuplicitousEvent:
		return "DuplicitousEvent"
	case MissingDelegatingEvent:
		return "MissingDelegatingEvent"
	case TelEventAdded:
		return "TelEventAdded"
	case TelOutOfOrder:
		return "TelOutOfOrder"
	case TelMissingIssuerEvent:
		return "TelMissingIssuerEvent"
	case TelDuplicitousEvent:
		return "TelDuplicitousEvent"
	default:
		return "Unknown"
	}
}

// Notification is a typed fact published on the bus. Only the field
// relevant to Kind is populated.
type Notification struct {
	Kind  Kind
	Event event.SignedEventMessage

	NontransReceipt *event.NontransReceipt
	TransReceipt    *event.TransferableReceipt

	// TelRegistry/TelSequence/TelDigest identify a tel package event without
	// this package importing tel (which itself depends on notify) — a Tel*
	// observer looks the full event back up from its own store using these.
	TelRegistry event.IdentifierPrefix
	TelSequence uint64
	TelDigest   event.EventDigest
}

func KeyEventAddedNotification(evt event.SignedEventMessage) Notification {
	return Notification{Kind: KeyEventAdded, Event: evt}
}

func OutOfOrderNotification(evt event.SignedEventMessage) Notification {
	return Notification{Kind: OutOfOrder, Event: evt}
}

func PartiallySignedNotification(evt event.SignedEventMessage) Notification {
	return Notification{Kind: PartiallySigned, Event: evt}
}

func PartiallyWitnessedNotification(evt event.SignedEventMessage) Notification {
	return Notification{Kind: PartiallyWitnessed, Event: evt}
}

func ReceiptAcceptedNotification(r event.NontransReceipt) Notification {
	return Notification{Kind: ReceiptAccepted, NontransReceipt: &r}
}

func ReceiptEscrowedNotification(r event.NontransReceipt) Notification {
	return Notification{Kind: ReceiptEscrowed, NontransReceipt: &r}
}

func ReceiptOutOfOrderNotification(r event.NontransReceipt) Notification {
	return Notification{Kind: ReceiptOutOfOrder, NontransReceipt: &r}
}

func TransReceiptOutOfOrderNotification(r event.TransferableReceipt) Notification {
	return Notification{Kind: TransReceiptOutOfOrder, TransReceipt: &r}
}

func DuplicitousEventNotification(evt event.SignedEventMessage) Notification {
	return Notification{Kind: DuplicitousEvent, Event: evt}
}

func MissingDelegatingEventNotification(evt event.SignedEventMessage) Notification {
	return Notification{Kind: MissingDelegatingEvent, Event: evt}
}

func TelEventAddedNotification(registry event.IdentifierPrefix, sn uint64, digest event.EventDigest) Notification {
	return Notification{Kind: TelEventAdded, TelRegistry: registry, TelSequence: sn, TelDigest: digest}
}

func TelOutOfOrderNotification(registry event.IdentifierPrefix, sn uint64, digest event.EventDigest) Notification {
	return Notification{Kind: TelOutOfOrder, TelRegistry: registry, TelSequence: sn, TelDigest: digest}
}

func TelMissingIssuerEventNotification(registry event.IdentifierPrefix, sn uint64, digest event.EventDigest) Notification {
	return Notification{Kind: TelMissingIssuerEvent, TelRegistry: registry, TelSequence: sn, TelDigest: digest}
}

func TelDuplicitousEventNotification(registry event.IdentifierPrefix, sn uint64, digest event.EventDigest) Notification {
	return Notification{Kind: TelDuplicitousEvent, TelRegistry: registry, TelSequence: sn, TelDigest: digest}
}
