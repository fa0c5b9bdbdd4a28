package escrow

import (
	"context"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// PartiallySignedObserver subscribes to KeyEventAdded as a signal that the
// log has moved forward for an identifier, then re-checks every entry this
// identifier has waiting in the partially-signed escrow: a direct
// signature-attachment path outside the Message set (or a race between two
// concurrent submissions) can grow the log's accumulated signature set for
// a digest without that growth itself producing a KeyEventAdded.
type PartiallySignedObserver struct {
	Store     kelstore.Store
	Processor *processor.Processor
	Log       logger.Logger
}

var _ notify.Notifier = (*PartiallySignedObserver)(nil)

func (o *PartiallySignedObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.KeyEventAdded {
		return nil
	}
	ctx := context.Background()
	id := n.Event.Event.Identifier
	table := o.Store.Escrow(processor.EscrowPartiallySigned)

	entries, err := table.GetFromSequence(ctx, string(id), 0)
	if err != nil {
		return err
	}
	for _, digestBytes := range entries {
		digest := event.EventDigest(digestBytes)
		candidate, found, err := loadCandidate(ctx, o.Store, digest)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := table.Remove(ctx, nil, string(id), candidate.Event.Sequence, digestBytes); err != nil {
			return err
		}
		if err := o.Processor.Process(ctx, processor.NoticeEvent{Event: candidate}); err != nil {
			if o.Log != nil {
				o.Log.Infof("escrow/partially-signed: re-submit of %s/%d failed: %v", id, candidate.Event.Sequence, err)
			}
		}
	}
	return nil
}
