// Package escrow implements the one observer per escrow kind that
// spec.md §4.I names: each subscribes to the notifications that might make
// one of its held events newly acceptable, and re-submits through the same
// Processor entry point every other caller uses, so re-submission can never
// skip validation.
package escrow

import (
	"context"

	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
)

// loadCandidate reconstructs a SignedEventMessage from the shared log for
// digest, merging whatever signatures and witness couplets have accumulated
// there since the event was first escrowed.
func loadCandidate(ctx context.Context, store kelstore.Store, digest event.EventDigest) (event.SignedEventMessage, bool, error) {
	evt, ok, err := store.GetEvent(ctx, digest)
	if err != nil || !ok {
		return event.SignedEventMessage{}, ok, err
	}
	sigs, err := store.GetSignatures(ctx, digest)
	if err != nil {
		return event.SignedEventMessage{}, false, err
	}
	couplets, err := store.GetNontransCouplets(ctx, digest)
	if err != nil {
		return event.SignedEventMessage{}, false, err
	}
	return event.SignedEventMessage{
		Event:             evt,
		Digest:            digest,
		IndexedSignatures: sigs,
		WitnessReceipts:   couplets,
	}, true, nil
}
