package tel

import (
	"context"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/config"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/notify"
)

// OutOfOrderObserver drains the tel-out-of-order escrow on TelEventAdded,
// mirroring escrow.OutOfOrderObserver's contiguous-run drain for the KEL.
type OutOfOrderObserver struct {
	Processor *Processor
	Log       logger.Logger
}

var _ notify.Notifier = (*OutOfOrderObserver)(nil)

func (o *OutOfOrderObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.TelEventAdded {
		return nil
	}
	ctx := context.Background()
	key := CredentialKey(n.TelRegistry, o.messageDigestOf(ctx, n.TelDigest))
	table := o.Processor.Store.Escrow(EscrowOutOfOrderTable)

	for next := n.TelSequence + 1; ; next++ {
		digestsAtNext, ok, err := table.Get(ctx, string(key), next)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		advanced := false
		for _, digestBytes := range digestsAtNext {
			digest := event.EventDigest(digestBytes)

			candidate, found, err := o.Processor.Store.GetEvent(ctx, digest)
			if err != nil {
				return err
			}
			if !found {
				continue
			}

			if err := table.Remove(ctx, nil, string(key), next, digestBytes); err != nil {
				return err
			}
			if err := o.Processor.Process(ctx, candidate); err != nil {
				if o.Log != nil {
					o.Log.Infof("tel/out-of-order: re-submit of %s/%d failed: %v", key, next, err)
				}
				continue
			}
			advanced = true
		}
		if !advanced {
			return nil
		}
	}
}

// messageDigestOf recovers the credential digest a just-committed tel event
// carries, so the observer can rebuild the same CredentialKey the escrow
// entries are filed under.
func (o *OutOfOrderObserver) messageDigestOf(ctx context.Context, telEventDigest event.EventDigest) event.EventDigest {
	evt, ok, err := o.Processor.Store.GetEvent(ctx, telEventDigest)
	if err != nil || !ok {
		return ""
	}
	return evt.Event.MessageDigest
}

// MissingIssuerObserver subscribes to the KEL's own KeyEventAdded: a
// just-accepted KEL event might be exactly the anchor some escrowed tel
// event was waiting on. Escrow entries are keyed by CredentialKey, not the
// KEL identifier that resolves them, so this scans every key in the table,
// mirroring escrow.MissingDelegatorObserver's full-table scan.
type MissingIssuerObserver struct {
	Processor *Processor
	Log       logger.Logger
	// Policy bounds how many entries one Notify call will attempt across the
	// whole table scan, same as escrow.MissingDelegatorObserver's Policy on
	// the KEL side. The zero value attempts every entry.
	Policy config.EscrowPolicy
}

var _ notify.Notifier = (*MissingIssuerObserver)(nil)

func (o *MissingIssuerObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.KeyEventAdded {
		return nil
	}
	ctx := context.Background()
	table := o.Processor.Store.Escrow(EscrowMissingIssuerTable)

	keys, err := table.Keys(ctx)
	if err != nil {
		return err
	}
	attempted := 0
	for _, key := range keys {
		entries, err := table.GetFromSequence(ctx, key, 0)
		if err != nil {
			return err
		}
		for _, digestBytes := range entries {
			attempted++
			if !o.Policy.AllowsCount(attempted) {
				if o.Log != nil {
					o.Log.Infof("tel/missing-issuer: stopping scan at policy max_entries=%d", o.Policy.MaxEntries)
				}
				return nil
			}
			digest := event.EventDigest(digestBytes)
			candidate, found, err := o.Processor.Store.GetEvent(ctx, digest)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			resolved, err := AnchorResolved(ctx, o.Processor.KelStore, candidate.Event)
			if err != nil {
				return err
			}
			if !resolved {
				continue
			}
			if err := table.Remove(ctx, nil, key, candidate.Event.Sequence, digestBytes); err != nil {
				return err
			}
			if err := o.Processor.Process(ctx, candidate); err != nil {
				if o.Log != nil {
					o.Log.Infof("tel/missing-issuer: re-submit of %s/%d failed: %v", key, candidate.Event.Sequence, err)
				}
			}
		}
	}
	return nil
}

// RegisterAll wires every tel escrow observer onto bus. Pass config.Unbounded
// for the reference design's default of no automatic expiry.
func RegisterAll(bus *notify.Bus, proc *Processor, policy config.EscrowPolicy, log logger.Logger) {
	bus.Register(notify.TelEventAdded, &OutOfOrderObserver{Processor: proc, Log: log})
	bus.Register(notify.KeyEventAdded, &MissingIssuerObserver{Processor: proc, Log: log, Policy: policy})
}
