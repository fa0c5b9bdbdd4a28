package escrow

import (
	"context"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// PartiallyWitnessedObserver subscribes to ReceiptAccepted and
// ReceiptEscrowed; on a receipt for (I, sn, digest) it re-checks the
// witness threshold for any held event exactly matching that digest.
type PartiallyWitnessedObserver struct {
	Store     kelstore.Store
	Processor *processor.Processor
	Log       logger.Logger
}

var _ notify.Notifier = (*PartiallyWitnessedObserver)(nil)

func (o *PartiallyWitnessedObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.ReceiptAccepted && n.Kind != notify.ReceiptEscrowed {
		return nil
	}
	if n.NontransReceipt == nil {
		return nil
	}
	r := n.NontransReceipt
	ctx := context.Background()
	table := o.Store.Escrow(processor.EscrowPartiallyWitness)

	digestsAtSeq, ok, err := table.Get(ctx, string(r.Identifier), r.Sequence)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var matched []byte
	for _, digestBytes := range digestsAtSeq {
		if event.EventDigest(digestBytes) == r.EventDigest {
			matched = digestBytes
			break
		}
	}
	if matched == nil {
		return nil
	}

	candidate, found, err := loadCandidate(ctx, o.Store, r.EventDigest)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	if err := table.Remove(ctx, nil, string(r.Identifier), r.Sequence, matched); err != nil {
		return err
	}
	if err := o.Processor.Process(ctx, processor.NoticeEvent{Event: candidate}); err != nil {
		if o.Log != nil {
			o.Log.Infof("escrow/partially-witnessed: re-submit of %s/%d failed: %v", r.Identifier, r.Sequence, err)
		}
	}
	return nil
}
