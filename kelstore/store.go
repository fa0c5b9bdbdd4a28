// Package kelstore defines the storage capability set the Processor depends
// on, following the reference database's split into independent tables
// (logged events, the sequenced index, derived key state, receipts, and
// escrow) rather than one monolithic interface. Concrete backends
// (impl_inmem, azureblob) implement the whole set; callers depend only on
// the interfaces here.
package kelstore

import (
	"context"

	"github.com/seriouscoderone/keriox/event"
)

// Tx is an opaque transaction handle threaded through every mutating method.
// Non-transactional backends accept a nil Tx and commit each call
// immediately; transactional backends accumulate writes on Tx and apply them
// on Commit (azureblob applies them one by one, so a Commit that fails
// partway leaves the earlier writes in place). Per the top-level design note, the split between a
// log-append step and a later commit step is only meaningful for backends
// that have a real transactional phase — impl_inmem collapses the two.
type Tx interface {
	// discard is unexported: only a Transactor constructs and finalizes a Tx.
	discard()
}

// Transactor is implemented by backends whose writes must be batched for
// atomic commit (spec.md §5's "single storage transaction" option). Backends
// for which ordered, non-transactional writes already give crash-safety
// (the "ordered writes" option) may implement it as a no-op returning a nil
// Tx from Begin and treating Commit/Rollback as no-ops.
type Transactor interface {
	Begin(ctx context.Context) (Tx, error)
	Commit(ctx context.Context, tx Tx) error
	Rollback(ctx context.Context, tx Tx) error
}

// LogStore is the content-addressed store of raw events and their
// signature/receipt material, keyed by digest alone — it has no notion of
// sequence or identifier ordering.
type LogStore interface {
	// PutEvent records evt's raw bytes under its digest. Calling PutEvent
	// twice with the same digest is idempotent (invariant: digest
	// referential integrity) and must not be treated as an error.
	PutEvent(ctx context.Context, tx Tx, digest event.EventDigest, evt event.KeyEvent) error
	GetEvent(ctx context.Context, digest event.EventDigest) (event.KeyEvent, bool, error)

	PutSignatures(ctx context.Context, tx Tx, digest event.EventDigest, sigs []event.IndexedSignature) error
	GetSignatures(ctx context.Context, digest event.EventDigest) ([]event.IndexedSignature, error)

	PutNontransCouplets(ctx context.Context, tx Tx, digest event.EventDigest, couplets []event.NontransReceipt) error
	GetNontransCouplets(ctx context.Context, digest event.EventDigest) ([]event.NontransReceipt, error)
	// RemoveNontransCouplet deletes one couplet once it has been folded into
	// a committed receipt accumulation, mirroring the reference database's
	// remove_nontrans_receipt.
	RemoveNontransCouplet(ctx context.Context, tx Tx, digest event.EventDigest, signer event.PublicKey) error

	PutTransReceipts(ctx context.Context, tx Tx, digest event.EventDigest, receipts []event.TransferableReceipt) error
	GetTransReceipts(ctx context.Context, digest event.EventDigest) ([]event.TransferableReceipt, error)
}

// SequencedIndex orders committed digests by (identifier, sequence) — the
// dense-prefix view of the KEL that invariant 1 describes.
type SequencedIndex interface {
	// Insert records digest at (id, sn). It is an error to insert a second,
	// different digest at an already-occupied (id, sn); a duplicate insert
	// of the same digest is idempotent.
	Insert(ctx context.Context, tx Tx, id event.IdentifierPrefix, sn uint64, digest event.EventDigest) error
	Get(ctx context.Context, id event.IdentifierPrefix, sn uint64) (event.EventDigest, bool, error)
	// GetGreaterThan returns the digests for every sequence strictly greater
	// than sn, in ascending sequence order. The escrow observers do not call
	// it; OutOfOrderObserver reads its escrow table by (identifier, sn).
	GetGreaterThan(ctx context.Context, id event.IdentifierPrefix, sn uint64) ([]event.EventDigest, error)
	// Latest returns the highest committed sequence for id, or ok=false if
	// none has been committed yet.
	Latest(ctx context.Context, id event.IdentifierPrefix) (sn uint64, ok bool, err error)
}

// KeyStateStore holds the single derived IdentifierState per identifier
// named by invariant 3 (state == fold(apply, kel)).
type KeyStateStore interface {
	PutState(ctx context.Context, tx Tx, id event.IdentifierPrefix, state event.IdentifierState) error
	GetState(ctx context.Context, id event.IdentifierPrefix) (event.IdentifierState, bool, error)
}

// ReceiptStore holds accepted receipts — receipts_t/receipts_nt in the
// persistence layout — distinct from LogStore's trans_receipts_by_digest,
// which holds every receipt seen regardless of whether it has yet been
// folded into an accepted accumulation. Method names deliberately differ
// from LogStore's so a backend can keep the two tables genuinely separate.
type ReceiptStore interface {
	AcceptNontransReceipts(ctx context.Context, tx Tx, digest event.EventDigest, receipts []event.NontransReceipt) error
	GetAcceptedNontransReceipts(ctx context.Context, digest event.EventDigest) ([]event.NontransReceipt, error)

	AcceptTransReceipts(ctx context.Context, tx Tx, digest event.EventDigest, receipts []event.TransferableReceipt) error
	GetAcceptedTransReceipts(ctx context.Context, digest event.EventDigest) ([]event.TransferableReceipt, error)
}

// EscrowTable is a generic bounded holding area, keyed by an arbitrary
// caller-chosen key (identifier, or identifier+sequence, depending on the
// escrow kind) with ordered iteration from a given sequence — mirroring the
// reference EscrowDatabase trait's save_digest/insert/get_from_sn split.
//
// A (key, sn) pair holds a *set* of values, not a single slot: two distinct
// values escrowed at the same pair — duplicitous candidates with different
// digests, or two out-of-order events racing into the same future sequence
// — both accumulate rather than one clobbering the other. Put is idempotent
// only for a value already present; a differently-valued Put at the same
// (key, sn) adds alongside it.
type EscrowTable interface {
	Put(ctx context.Context, tx Tx, key string, sn uint64, value []byte) error
	// Get returns every value escrowed at (key, sn); ok is false only when
	// the set is empty.
	Get(ctx context.Context, key string, sn uint64) ([][]byte, bool, error)
	// GetFromSequence returns every value for key at any sequence >= sn, in
	// ascending sequence order (ties within one sequence in no particular
	// order) — the access pattern an escrow observer uses to rescan from
	// the point a gap was last known to exist.
	GetFromSequence(ctx context.Context, key string, sn uint64) ([][]byte, error)
	// Remove deletes exactly value from (key, sn); any other value still
	// escrowed at that pair is left in place.
	Remove(ctx context.Context, tx Tx, key string, sn uint64, value []byte) error
	Contains(ctx context.Context, key string, sn uint64) (bool, error)
	// Keys lists every distinct key currently holding at least one entry.
	// Observers whose redrive trigger does not share the escrowed entry's
	// key (e.g. missing-delegator, keyed by the delegated identifier but
	// triggered by the delegator's identifier) use this for a full scan.
	Keys(ctx context.Context) ([]string, error)
}

// EscrowFactory mints a named EscrowTable — one call per escrow kind
// (out-of-order, partially-signed, partially-witnessed, missing-delegator,
// receipt-out-of-order), mirroring the reference EscrowCreator trait.
type EscrowFactory interface {
	Escrow(name string) EscrowTable
}

// Store bundles the full capability set a Processor is built against. A
// concrete backend need only embed the table implementations and satisfy
// this interface; nothing in validator or processor imports a backend
// package directly.
type Store interface {
	LogStore
	SequencedIndex
	KeyStateStore
	ReceiptStore
	EscrowFactory
}
