package escrow

import (
	"context"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/config"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// MissingDelegatorObserver subscribes to KeyEventAdded: the just-accepted
// event might itself be the delegating event some escrowed delegated event
// was waiting on. Escrow entries are keyed by the delegated child's own
// identifier, not its delegator, so this scans every key in the table.
type MissingDelegatorObserver struct {
	Store     kelstore.Store
	Processor *processor.Processor
	Log       logger.Logger
	// Policy bounds how many entries one Notify call will attempt across the
	// whole table scan. The zero value (config.Unbounded) attempts every
	// entry, matching the reference design's "no automatic expiry" default.
	Policy config.EscrowPolicy
}

var _ notify.Notifier = (*MissingDelegatorObserver)(nil)

func (o *MissingDelegatorObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.KeyEventAdded {
		return nil
	}
	ctx := context.Background()
	table := o.Store.Escrow(processor.EscrowMissingDelegator)

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
					o.Log.Infof("escrow/missing-delegator: stopping scan at policy max_entries=%d", o.Policy.MaxEntries)
				}
				return nil
			}
			digest := event.EventDigest(digestBytes)
			candidate, found, err := loadCandidate(ctx, o.Store, digest)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			resolved, err := processor.DelegatorResolved(ctx, o.Store, candidate.Event)
			if err != nil {
				return err
			}
			if !resolved {
				continue
			}
			if err := table.Remove(ctx, nil, key, candidate.Event.Sequence, digestBytes); err != nil {
				return err
			}
			if err := o.Processor.Process(ctx, processor.NoticeEvent{Event: candidate}); err != nil {
				if o.Log != nil {
					o.Log.Infof("escrow/missing-delegator: re-submit of %s/%d failed: %v", candidate.Event.Identifier, candidate.Event.Sequence, err)
				}
			}
		}
	}
	return nil
}
