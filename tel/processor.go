package tel

import (
	"context"
	"errors"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
)

const (
	EscrowOutOfOrderTable    = "tel-out-of-order"
	EscrowMissingIssuerTable = "tel-missing-issuer"
	EscrowDuplicitousTable   = "tel-duplicitous"
)

// Processor is the single re-entry point for ingesting tel events, mirroring
// processor.Processor's parse(external)->classify->persist->notify shape.
// KelStore is the same kelstore.Store the KEL's own processor.Processor
// commits into — Classify consults its SequencedIndex directly to resolve a
// candidate's anchor, and Store's SequencedIndex/escrow tables are typically
// backed by that same instance (see InMemStore).
type Processor struct {
	Store    Store
	KelStore kelstore.Store
	Bus      *notify.Bus
	Log      logger.Logger
}

func New(store Store, kel kelstore.Store, bus *notify.Bus, log logger.Logger) *Processor {
	return &Processor{Store: store, KelStore: kel, Bus: bus, Log: log}
}

func (p *Processor) infof(format string, args ...any) {
	if p.Log != nil {
		p.Log.Infof(format, args...)
	}
}

var errUnresolvedAnchor = errors.New("tel: anchor could not be resolved")
var errDuplicitousCandidate = errors.New("tel: distinct-digest collision at (credential, sequence)")

// Process classifies and, depending on outcome, commits or escrows
// candidate. Re-submission from an escrow observer calls this exact method,
// never bypassing Classify.
func (p *Processor) Process(ctx context.Context, candidate VerifiableEvent) error {
	evt := candidate.Event
	key := CredentialKey(evt.RegistryIdentifier, evt.MessageDigest)

	if err := p.Store.PutEvent(ctx, nil, candidate.Digest, candidate); err != nil {
		return kelerr.Wrap(err, "log tel event", kelerr.ErrStorage)
	}

	priorState, havePrior, err := p.Store.GetState(ctx, key)
	if err != nil {
		return kelerr.Wrap(err, "load tel credential state", kelerr.ErrStorage)
	}
	var priorPtr *RegistryState
	if havePrior {
		priorPtr = &priorState
	}

	existingDigest, existingOK, err := p.Store.Get(ctx, key, evt.Sequence)
	if err != nil {
		return kelerr.Wrap(err, "load tel sequenced index", kelerr.ErrStorage)
	}

	anchorResolved, err := AnchorResolved(ctx, p.KelStore, evt)
	if err != nil {
		return kelerr.Wrap(err, "resolve tel anchor", kelerr.ErrStorage)
	}

	decision, err := Classify(ctx, candidate, priorPtr, existingDigest, existingOK, anchorResolved)
	if err != nil {
		return kelerr.Wrap(err, "classify tel candidate", kelerr.ErrStorage)
	}

	switch decision.Kind {
	case Accept:
		return p.commit(ctx, candidate, priorPtr, key)
	case EscrowOutOfOrder:
		return p.escrowEvent(ctx, EscrowOutOfOrderTable, candidate, key, notify.TelOutOfOrderNotification(evt.RegistryIdentifier, evt.Sequence, candidate.Digest))
	case EscrowMissingIssuerEvent:
		return p.escrowEvent(ctx, EscrowMissingIssuerTable, candidate, key, notify.TelMissingIssuerEventNotification(evt.RegistryIdentifier, evt.Sequence, candidate.Digest))
	case Duplicitous:
		if err := p.escrowEvent(ctx, EscrowDuplicitousTable, candidate, key, notify.TelDuplicitousEventNotification(evt.RegistryIdentifier, evt.Sequence, candidate.Digest)); err != nil {
			return err
		}
		return kelerr.Wrap(errDuplicitousCandidate, "duplicitous tel candidate recorded", ErrDuplicitous)
	case Reject:
		return decision.Reason
	default:
		return kelerr.Wrap(errUnresolvedAnchor, "unknown tel decision kind", kelerr.ErrStorage)
	}
}

func (p *Processor) commit(ctx context.Context, candidate VerifiableEvent, prior *RegistryState, key event.IdentifierPrefix) error {
	evt := candidate.Event
	newState := Apply(prior, evt, candidate.Digest)

	tx, err := p.beginIfTransactor(ctx)
	if err != nil {
		return kelerr.Wrap(err, "begin tel commit transaction", kelerr.ErrStorage)
	}

	if err := p.Store.Insert(ctx, tx, key, evt.Sequence, candidate.Digest); err != nil {
		p.rollbackIfTransactor(ctx, tx)
		return kelerr.Wrap(err, "insert tel sequenced index", kelerr.ErrStorage)
	}
	if err := p.Store.PutState(ctx, tx, key, newState); err != nil {
		p.rollbackIfTransactor(ctx, tx)
		return kelerr.Wrap(err, "put tel credential state", kelerr.ErrStorage)
	}

	if err := p.commitIfTransactor(ctx, tx); err != nil {
		return kelerr.Wrap(err, "commit tel transaction", kelerr.ErrStorage)
	}

	p.infof("tel: committed %s/%d digest=%s", key, evt.Sequence, candidate.Digest)

	if err := p.Bus.Publish(notify.TelEventAddedNotification(evt.RegistryIdentifier, evt.Sequence, candidate.Digest)); err != nil {
		p.infof("tel: observer error after commit of %s/%d: %v", key, evt.Sequence, err)
	}
	return nil
}

func (p *Processor) escrowEvent(ctx context.Context, table string, candidate VerifiableEvent, key event.IdentifierPrefix, n notify.Notification) error {
	evt := candidate.Event
	if err := p.Store.Escrow(table).Put(ctx, nil, string(key), evt.Sequence, []byte(candidate.Digest)); err != nil {
		return kelerr.Wrap(err, "escrow tel candidate", kelerr.ErrStorage)
	}
	p.infof("tel: escrowed %s/%d into %s (%s)", key, evt.Sequence, table, n.Kind)
	if err := p.Bus.Publish(n); err != nil {
		p.infof("tel: observer error after escrow of %s/%d: %v", key, evt.Sequence, err)
	}
	return nil
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
