package processor

import (
	"context"
	"encoding/json"

	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/notify"
)

// processNontransReceipt implements spec.md §4.H's receipt-handling rule: a
// nontransferable receipt commits immediately if the event it endorses is
// already in the KEL at that exact (identifier, sequence, digest); if the
// event is logged at that (identifier, sequence) but not yet committed, the
// receipt is merged into the log's couplets for it; otherwise it waits in
// the receipt-out-of-order escrow for a KeyEventAdded that resolves it.
func (p *Processor) processNontransReceipt(ctx context.Context, r event.NontransReceipt) error {
	committed, ok, err := p.Store.Get(ctx, r.Identifier, r.Sequence)
	if err != nil {
		return kelerr.Wrap(err, "load sequenced index for receipt", kelerr.ErrStorage)
	}

	if ok && committed == r.EventDigest {
		if err := p.Store.AcceptNontransReceipts(ctx, nil, r.EventDigest, []event.NontransReceipt{r}); err != nil {
			return kelerr.Wrap(err, "accept nontransferable receipt", kelerr.ErrStorage)
		}
		if err := p.Bus.Publish(notify.ReceiptAcceptedNotification(r)); err != nil {
			p.infof("processor: observer error after accepting receipt for %s/%d: %v", r.Identifier, r.Sequence, err)
		}
		return nil
	}

	// The receipted event may already be logged (e.g. sitting in the
	// partially-witnessed escrow) without yet being committed. In that case
	// the receipt is merged straight into the log's couplets for that digest
	// rather than parked in the receipt-out-of-order escrow, since what it is
	// actually waiting on is a witness-threshold re-check, not the event's
	// arrival.
	if loggedEvt, loggedOK, loadErr := p.Store.GetEvent(ctx, r.EventDigest); loadErr != nil {
		return kelerr.Wrap(loadErr, "load logged event for receipt", kelerr.ErrStorage)
	} else if loggedOK && loggedEvt.Identifier == r.Identifier && loggedEvt.Sequence == r.Sequence {
		if err := p.Store.PutNontransCouplets(ctx, nil, r.EventDigest, []event.NontransReceipt{r}); err != nil {
			return kelerr.Wrap(err, "merge witness couplet into log", kelerr.ErrStorage)
		}
		if err := p.Bus.Publish(notify.ReceiptEscrowedNotification(r)); err != nil {
			p.infof("processor: observer error after merging witness couplet for %s/%d: %v", r.Identifier, r.Sequence, err)
		}
		return nil
	}

	encoded, err := json.Marshal(r)
	if err != nil {
		return kelerr.Wrap(err, "encode receipt for escrow", kelerr.ErrMalformedEvent)
	}
	if err := p.Store.Escrow(EscrowReceiptOOO).Put(ctx, nil, string(r.Identifier), r.Sequence, encoded); err != nil {
		return kelerr.Wrap(err, "escrow out-of-order receipt", kelerr.ErrStorage)
	}
	if err := p.Bus.Publish(notify.ReceiptOutOfOrderNotification(r)); err != nil {
		p.infof("processor: observer error after escrowing receipt for %s/%d: %v", r.Identifier, r.Sequence, err)
	}
	return nil
}

// processTransReceipt requires both the receipted event and the validator's
// own anchoring seal to already be committed, since verifying a
// transferable receipt's signatures depends on the validator's key state at
// that seal.
func (p *Processor) processTransReceipt(ctx context.Context, r event.TransferableReceipt) error {
	receiptedDigest, receiptedOK, err := p.Store.Get(ctx, r.Identifier, r.Sequence)
	if err != nil {
		return kelerr.Wrap(err, "load sequenced index for trans receipt", kelerr.ErrStorage)
	}
	validatorDigest, validatorOK, err := p.Store.Get(ctx, r.ValidatorSeal.Identifier, r.ValidatorSeal.Sequence)
	if err != nil {
		return kelerr.Wrap(err, "load validator seal for trans receipt", kelerr.ErrStorage)
	}

	resolved := receiptedOK && receiptedDigest == r.EventDigest &&
		validatorOK && validatorDigest == r.ValidatorSeal.Digest

	if resolved {
		if err := p.Store.AcceptTransReceipts(ctx, nil, r.EventDigest, []event.TransferableReceipt{r}); err != nil {
			return kelerr.Wrap(err, "accept transferable receipt", kelerr.ErrStorage)
		}
		if err := p.Bus.Publish(notify.ReceiptAcceptedNotification(event.NontransReceipt{Identifier: r.Identifier, Sequence: r.Sequence, EventDigest: r.EventDigest})); err != nil {
			p.infof("processor: observer error after accepting trans receipt for %s/%d: %v", r.Identifier, r.Sequence, err)
		}
		return nil
	}

	encoded, err := json.Marshal(r)
	if err != nil {
		return kelerr.Wrap(err, "encode trans receipt for escrow", kelerr.ErrMalformedEvent)
	}
	if err := p.Store.Escrow(EscrowTransReceiptOOO).Put(ctx, nil, string(r.Identifier), r.Sequence, encoded); err != nil {
		return kelerr.Wrap(err, "escrow out-of-order trans receipt", kelerr.ErrStorage)
	}
	if err := p.Bus.Publish(notify.TransReceiptOutOfOrderNotification(r)); err != nil {
		p.infof("processor: observer error after escrowing trans receipt for %s/%d: %v", r.Identifier, r.Sequence, err)
	}
	return nil
}

// DecodeNontransReceipt reverses the encoding processNontransReceipt uses to
// hold a receipt in the receipt-out-of-order escrow table, so the
// corresponding observer (package escrow) can recover it.
func DecodeNontransReceipt(b []byte) (event.NontransReceipt, error) {
	var r event.NontransReceipt
	err := json.Unmarshal(b, &r)
	return r, err
}

// DecodeTransReceipt is DecodeNontransReceipt's counterpart for the
// trans-receipt-out-of-order escrow table.
func DecodeTransReceipt(b []byte) (event.TransferableReceipt, error) {
	var r event.TransferableReceipt
	err := json.Unmarshal(b, &r)
	return r, err
}
