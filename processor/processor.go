// Package processor orchestrates event ingestion: parse (external) → classify
// (validator) → validate → persist (kelstore) → notify (notify), per the
// acceptance state machine the top-level design names. Processor is the
// re-entry point escrow observers call back into — re-submission never
// bypasses Classify.
package processor

import (
	"context"
	"errors"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/validator"
	"github.com/seriouscoderone/keriox/verify"
)

const (
	EscrowOutOfOrder       = "out-of-order"
	EscrowPartiallySigned  = "partially-signed"
	EscrowPartiallyWitness = "partially-witnessed"
	EscrowMissingDelegator = "missing-delegator"
	EscrowDuplicitous      = "duplicitous"
	EscrowReceiptOOO       = "receipt-out-of-order"
	EscrowTransReceiptOOO  = "trans-receipt-out-of-order"
)

// Processor is the single re-entry point for ingesting messages.
type Processor struct {
	Store    kelstore.Store
	Bus      *notify.Bus
	Verifier verify.Verifier
	Log      logger.Logger
}

// New builds a Processor. log may be nil.
func New(store kelstore.Store, bus *notify.Bus, v verify.Verifier, log logger.Logger) *Processor {
	return &Processor{Store: store, Bus: bus, Verifier: v, Log: log}
}

func (p *Processor) infof(format string, args ...any) {
	if p.Log != nil {
		p.Log.Infof(format, args...)
	}
}

// Process dispatches msg by kind. The only errors returned are the ones the
// top-level error-handling design names as caller-visible: MalformedEvent,
// SignatureInvalid, ThresholdUnsatisfiable, chain-integrity failures,
// Duplicitous (recorded into the duplicitous table and published on the
// bus, same as any recoverable escrow outcome, but still reported to the
// caller as an error — unlike the recoverable escrow kinds, a duplicitous
// candidate is evidence of a fork, not something a future notification will
// resolve), and StorageError.
func (p *Processor) Process(ctx context.Context, msg Message) error {
	switch m := msg.(type) {
	case NoticeEvent:
		return p.processEvent(ctx, m.Event)
	case NoticeNontransReceipt:
		return p.processNontransReceipt(ctx, m.Receipt)
	case NoticeTransReceipt:
		return p.processTransReceipt(ctx, m.Receipt)
	case Reply:
		return kelerr.Wrap(errUnsupportedMessage, "reply/query subsystem is out of scope", kelerr.ErrMalformedEvent)
	default:
		return kelerr.Wrap(errUnsupportedMessage, "unknown message kind", kelerr.ErrMalformedEvent)
	}
}

var errUnsupportedMessage = errors.New("processor: unsupported message kind")
var errDuplicitousCandidate = errors.New("processor: distinct-digest collision at (identifier, sequence)")

func (p *Processor) processEvent(ctx context.Context, candidate event.SignedEventMessage) error {
	evt := candidate.Event
	id := evt.Identifier

	// The log is shared between the canonical KEL and every escrow table, so
	// the event's bytes and signatures are recorded here unconditionally,
	// before classification decides what else happens to it.
	if err := p.Store.PutEvent(ctx, nil, candidate.Digest, evt); err != nil {
		return kelerr.Wrap(err, "log event", kelerr.ErrStorage)
	}
	if err := p.Store.PutSignatures(ctx, nil, candidate.Digest, candidate.IndexedSignatures); err != nil {
		return kelerr.Wrap(err, "log signatures", kelerr.ErrStorage)
	}
	if len(candidate.WitnessReceipts) > 0 {
		if err := p.Store.PutNontransCouplets(ctx, nil, candidate.Digest, candidate.WitnessReceipts); err != nil {
			return kelerr.Wrap(err, "log witness couplets", kelerr.ErrStorage)
		}
	}

	// Re-read the merged accumulation back out of the log: a second
	// submission of the same digest with additional signatures (or witness
	// couplets) must be classified against the full accumulated set, not
	// just what arrived on this call — this is what lets a partially-signed
	// event become acceptable once enough copies have merged.
	mergedSigs, err := p.Store.GetSignatures(ctx, candidate.Digest)
	if err != nil {
		return kelerr.Wrap(err, "load accumulated signatures", kelerr.ErrStorage)
	}
	candidate.IndexedSignatures = mergedSigs
	mergedCouplets, err := p.Store.GetNontransCouplets(ctx, candidate.Digest)
	if err != nil {
		return kelerr.Wrap(err, "load accumulated witness couplets", kelerr.ErrStorage)
	}
	candidate.WitnessReceipts = mergedCouplets

	priorState, havePrior, err := p.Store.GetState(ctx, id)
	if err != nil {
		return kelerr.Wrap(err, "load key state", kelerr.ErrStorage)
	}
	var priorPtr *event.IdentifierState
	if havePrior {
		priorPtr = &priorState
	}

	existingDigest, existingOK, err := p.Store.Get(ctx, id, evt.Sequence)
	if err != nil {
		return kelerr.Wrap(err, "load sequenced index", kelerr.ErrStorage)
	}

	delegatorResolved, err := p.resolveDelegator(ctx, evt)
	if err != nil {
		return kelerr.Wrap(err, "resolve delegator seal", kelerr.ErrStorage)
	}

	decision, err := validator.Classify(ctx, p.Verifier, candidate, priorPtr, existingDigest, existingOK, delegatorResolved)
	if err != nil {
		return kelerr.Wrap(err, "classify candidate", kelerr.ErrStorage)
	}

	switch decision.Kind {
	case validator.Accept:
		return p.commit(ctx, candidate, priorPtr)
	case validator.EscrowOutOfOrder:
		return p.escrowEvent(ctx, EscrowOutOfOrder, candidate, notify.OutOfOrderNotification(candidate))
	case validator.EscrowPartiallySigned:
		return p.escrowEvent(ctx, EscrowPartiallySigned, candidate, notify.PartiallySignedNotification(candidate))
	case validator.EscrowPartiallyWitnessed:
		return p.escrowEvent(ctx, EscrowPartiallyWitness, candidate, notify.PartiallyWitnessedNotification(candidate))
	case validator.EscrowMissingDelegator:
		return p.escrowEvent(ctx, EscrowMissingDelegator, candidate, notify.MissingDelegatingEventNotification(candidate))
	case validator.Duplicitous:
		if err := p.escrowEvent(ctx, EscrowDuplicitous, candidate, notify.DuplicitousEventNotification(candidate)); err != nil {
			return err
		}
		return kelerr.Wrap(errDuplicitousCandidate, "duplicitous candidate recorded", kelerr.ErrDuplicitous)
	case validator.Reject:
		return decision.Reason
	default:
		return kelerr.Wrap(errUnsupportedMessage, "unknown decision kind", kelerr.ErrStorage)
	}
}

// commit persists an accepted event across the four stores and publishes
// KeyEventAdded. If Store also implements kelstore.Transactor the writes are
// wrapped in a transaction; otherwise they are issued in the order the
// top-level concurrency model requires (LogStore already done above, then
// SequencedIndex, then KeyStateStore) so a crash between them leaves only a
// harmless orphan log entry.
func (p *Processor) commit(ctx context.Context, candidate event.SignedEventMessage, prior *event.IdentifierState) error {
	evt := candidate.Event
	newState := event.Apply(prior, evt, candidate.Digest)

	tx, err := p.beginIfTransactor(ctx)
	if err != nil {
		return kelerr.Wrap(err, "begin commit transaction", kelerr.ErrStorage)
	}

	if err := p.Store.Insert(ctx, tx, evt.Identifier, evt.Sequence, candidate.Digest); err != nil {
		p.rollbackIfTransactor(ctx, tx)
		return kelerr.Wrap(err, "insert sequenced index", kelerr.ErrStorage)
	}
	if err := p.Store.PutState(ctx, tx, evt.Identifier, newState); err != nil {
		p.rollbackIfTransactor(ctx, tx)
		return kelerr.Wrap(err, "put key state", kelerr.ErrStorage)
	}
	if len(candidate.WitnessReceipts) > 0 {
		if err := p.Store.AcceptNontransReceipts(ctx, tx, candidate.Digest, candidate.WitnessReceipts); err != nil {
			p.rollbackIfTransactor(ctx, tx)
			return kelerr.Wrap(err, "accept attached witness receipts", kelerr.ErrStorage)
		}
	}

	if err := p.commitIfTransactor(ctx, tx); err != nil {
		return kelerr.Wrap(err, "commit transaction", kelerr.ErrStorage)
	}

	p.infof("processor: committed %s/%d digest=%s", evt.Identifier, evt.Sequence, candidate.Digest)

	if err := p.Bus.Publish(notify.KeyEventAddedNotification(candidate)); err != nil {
		p.infof("processor: observer error after commit of %s/%d: %v", evt.Identifier, evt.Sequence, err)
	}
	return nil
}

func (p *Processor) escrowEvent(ctx context.Context, table string, candidate event.SignedEventMessage, n notify.Notification) error {
	evt := candidate.Event
	if err := p.Store.Escrow(table).Put(ctx, nil, string(evt.Identifier), evt.Sequence, []byte(candidate.Digest)); err != nil {
		return kelerr.Wrap(err, "escrow candidate", kelerr.ErrStorage)
	}
	p.infof("processor: escrowed %s/%d into %s (%s)", evt.Identifier, evt.Sequence, table, n.Kind)
	if err := p.Bus.Publish(n); err != nil {
		p.infof("processor: observer error after escrow of %s/%d: %v", evt.Identifier, evt.Sequence, err)
	}
	return nil
}

// resolveDelegator reports whether evt (if delegated) has a seal in its
// Seals list, addressed to its Delegator, whose (sequence, digest) is
// already committed — i.e. the delegating event can be found in the log.
func (p *Processor) resolveDelegator(ctx context.Context, evt event.KeyEvent) (bool, error) {
	return DelegatorResolved(ctx, p.Store, evt)
}

// DelegatorResolved is exported so the missing-delegator escrow observer
// (package escrow) can re-check exactly the same condition Classify was
// given, without duplicating the seal-matching logic.
func DelegatorResolved(ctx context.Context, store kelstore.Store, evt event.KeyEvent) (bool, error) {
	if !evt.Type.IsDelegated() {
		return true, nil
	}
	for _, seal := range evt.Seals {
		if seal.Identifier != evt.Delegator {
			continue
		}
		digest, ok, err := store.Get(ctx, seal.Identifier, seal.Sequence)
		if err != nil {
			return false, err
		}
		if ok && digest == seal.Digest {
			return true, nil
		}
	}
	return false, nil
}

func (p *Processor) beginIfTransactor(ctx context.Context) (kelstore.Tx, error) {
	if tx, ok := p.Store.(kelstore.Transactor); ok {
		return tx.Begin(ctx)
	}
	return nil, nil
}

func (p *Processor) commitIfTransactor(ctx context.Context, tx kelstore.Tx) error {
	if t, ok := p.Store.(kelstore.Transactor); ok {
		return t.Commit(ctx, tx)
	}
	return nil
}

func (p *Processor) rollbackIfTransactor(ctx context.Context, tx kelstore.Tx) {
	if t, ok := p.Store.(kelstore.Transactor); ok {
		_ = t.Rollback(ctx, tx)
	}
}
