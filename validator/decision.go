// Package validator implements the pure classification function the
// Processor calls before ever touching storage: given a candidate event and
// the current derived state for its identifier, decide whether it may be
// committed, must be escrowed (and under which kind), or must be rejected
// outright. Classify never mutates anything and never calls a store.
package validator

import "github.com/seriouscoderone/keriox/kelerr"

// Kind names the closed set of classification outcomes.
type Kind int

const (
	Accept Kind = iota
	EscrowOutOfOrder
	EscrowPartiallySigned
	EscrowPartiallyWitnessed
	EscrowMissingDelegator
	Duplicitous
	Reject
)

func (k Kind) String() string {
	switch k {
	case Accept:
		return "Accept"
	case EscrowOutOfOrder:
		return "EscrowOutOfOrder"
	case EscrowPartiallySigned:
		return "EscrowPartiallySigned"
	case EscrowPartiallyWitnessed:
		return "EscrowPartiallyWitnessed"
	case EscrowMissingDelegator:
		return "EscrowMissingDelegator"
	case Duplicitous:
		return "Duplicitous"
	case Reject:
		return "Reject"
	default:
		return "Unknown"
	}
}

// Decision is the outcome of Classify. Reason is populated only for Reject,
// naming one of the kelerr sentinels (ErrMalformedEvent, ErrBadPriorDigest,
// ErrBadKeyCommitment, ErrBadSequence, ErrSignatureInvalid,
// ErrThresholdUnsatisfiable).
type Decision struct {
	Kind          Kind
	Reason        error
	ValidSigIdx   []int // signer indices whose signatures verified
}

func accept() Decision { return Decision{Kind: Accept} }

func escrow(k Kind) Decision { return Decision{Kind: k} }

func duplicitous() Decision { return Decision{Kind: Duplicitous} }

func reject(sentinel error, detail string) Decision {
	return Decision{Kind: Reject, Reason: kelerr.Wrap(errString(detail), "classify", sentinel)}
}

type stringError string

func (e stringError) Error() string { return string(e) }

func errString(s string) error { return stringError(s) }
