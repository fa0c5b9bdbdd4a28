package escrow

import (
	"context"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// OutOfOrderObserver drains the out-of-order escrow: on KeyEventAdded for
// (I, S) it tries (I, S+1), and keeps advancing while re-submission
// succeeds, draining any contiguous run in one pass.
type OutOfOrderObserver struct {
	Store     kelstore.Store
	Processor *processor.Processor
	Log       logger.Logger
}

var _ notify.Notifier = (*OutOfOrderObserver)(nil)

func (o *OutOfOrderObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.KeyEventAdded {
		return nil
	}
	ctx := context.Background()
	id := n.Event.Event.Identifier
	table := o.Store.Escrow(processor.EscrowOutOfOrder)

	for next := n.Event.Event.Sequence + 1; ; next++ {
		digestsAtNext, ok, err := table.Get(ctx, string(id), next)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		advanced := false
		for _, digestBytes := range digestsAtNext {
			digest := event.EventDigest(digestBytes)

			candidate, found, err := loadCandidate(ctx, o.Store, digest)
			if err != nil {
				return err
			}
			if !found {
				continue
			}

			if err := table.Remove(ctx, nil, string(id), next, digestBytes); err != nil {
				return err
			}
			if err := o.Processor.Process(ctx, processor.NoticeEvent{Event: candidate}); err != nil {
				if o.Log != nil {
					o.Log.Infof("escrow/out-of-order: re-submit of %s/%d failed: %v", id, next, err)
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
