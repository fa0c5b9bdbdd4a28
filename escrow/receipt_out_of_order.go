package escrow

import (
	"context"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/kelstore"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// ReceiptOutOfOrderObserver subscribes to KeyEventAdded: for the
// just-committed (id, sn, digest) it attaches any nontransferable receipts
// that were waiting on exactly that event.
type ReceiptOutOfOrderObserver struct {
	Store     kelstore.Store
	Processor *processor.Processor
	Log       logger.Logger
}

var _ notify.Notifier = (*ReceiptOutOfOrderObserver)(nil)

func (o *ReceiptOutOfOrderObserver) Notify(n notify.Notification, bus *notify.Bus) error {
	if n.Kind != notify.KeyEventAdded {
		return nil
	}
	ctx := context.Background()
	id := n.Event.Event.Identifier
	sn := n.Event.Event.Sequence
	table := o.Store.Escrow(processor.EscrowReceiptOOO)

	entries, ok, err := table.Get(ctx, string(id), sn)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	for _, encoded := range entries {
		r, err := processor.DecodeNontransReceipt(encoded)
		if err != nil {
			return err
		}
		if r.EventDigest != n.Event.Digest {
			continue
		}

		if err := table.Remove(ctx, nil, string(id), sn, encoded); err != nil {
			return err
		}
		if err := o.Processor.Process(ctx, processor.NoticeNontransReceipt{Receipt: r}); err != nil {
			if o.Log != nil {
				o.Log.Infof("escrow/receipt-out-of-order: re-submit of receipt for %s/%d failed: %v", id, sn, err)
			}
		}
	}
	return nil
}
