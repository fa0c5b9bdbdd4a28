package escrow_test

import (
	"context"
	"testing"

	"github.com/seriouscoderone/keriox/escrow"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore/impl_inmem"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

type stubVerifier struct{}

func (stubVerifier) Verify(key event.PublicKey, message []byte, sig event.IndexedSignature) (bool, error) {
	return string(sig.Signature) == "valid", nil
}

func sigsAt(indices ...int) []event.IndexedSignature {
	out := make([]event.IndexedSignature, len(indices))
	for i, idx := range indices {
		out[i] = event.IndexedSignature{Index: idx, Signature: []byte("valid")}
	}
	return out
}

func TestPartiallySignedObserverDrainsOnRedrive(t *testing.T) {
	store := impl_inmem.New(nil)
	bus := notify.NewBus(nil)
	proc := processor.New(store, bus, stubVerifier{}, nil)
	obs := &escrow.PartiallySignedObserver{Store: store, Processor: proc}

	id := event.IdentifierPrefix("EOne")
	evt := event.KeyEvent{
		Identifier: id, Sequence: 0, Type: event.Inception,
		CurrentKeys: []event.PublicKey{"K1", "K2"}, CurrentThreshold: event.SimpleThreshold(2),
		NextDigest: "N", Raw: []byte("icp"),
	}
	candidate := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0)}

	ctx := context.Background()
	if err := proc.Process(ctx, processor.NoticeEvent{Event: candidate}); err != nil {
		t.Fatalf("initial Process: %v", err)
	}
	if _, ok, _ := store.GetState(ctx, id); ok {
		t.Fatal("expected no committed state with only 1 of 2 signatures")
	}

	// Simulate an out-of-band signature attachment merging straight into the
	// shared log, without going through Processor.
	if err := store.PutSignatures(ctx, nil, "D0", sigsAt(1)); err != nil {
		t.Fatalf("PutSignatures: %v", err)
	}

	trigger := notify.KeyEventAddedNotification(candidate)
	if err := obs.Notify(trigger, bus); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	state, ok, err := store.GetState(ctx, id)
	if err != nil || !ok || state.Sequence != 0 {
		t.Fatalf("expected redrive to commit sequence 0: ok=%v err=%v", ok, err)
	}
	if found, _ := store.Escrow(processor.EscrowPartiallySigned).Contains(ctx, string(id), 0); found {
		t.Fatal("expected partially-signed escrow entry to be drained")
	}
}

func TestPartiallyWitnessedObserverDrainsOnMatchingReceipt(t *testing.T) {
	store := impl_inmem.New(nil)
	bus := notify.NewBus(nil)
	proc := processor.New(store, bus, stubVerifier{}, nil)
	obs := &escrow.PartiallyWitnessedObserver{Store: store, Processor: proc}

	id := event.IdentifierPrefix("ETwo")
	evt := event.KeyEvent{
		Identifier: id, Sequence: 0, Type: event.Inception,
		CurrentKeys: []event.PublicKey{"K1"}, CurrentThreshold: event.SimpleThreshold(1),
		NextDigest: "N", Witnesses: []event.IdentifierPrefix{"W1"}, WitnessThreshold: 1,
		Raw: []byte("icp"),
	}
	candidate := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0)}

	ctx := context.Background()
	if err := proc.Process(ctx, processor.NoticeEvent{Event: candidate}); err != nil {
		t.Fatalf("initial Process: %v", err)
	}
	if _, ok, _ := store.GetState(ctx, id); ok {
		t.Fatal("expected no committed state before witness threshold is met")
	}

	receipt := event.NontransReceipt{Identifier: id, Sequence: 0, EventDigest: "D0", SignerKey: "W1", Signature: []byte("wsig")}
	if err := proc.Process(ctx, processor.NoticeNontransReceipt{Receipt: receipt}); err != nil {
		t.Fatalf("Process receipt: %v", err)
	}

	trigger := notify.ReceiptEscrowedNotification(receipt)
	if err := obs.Notify(trigger, bus); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	state, ok, err := store.GetState(ctx, id)
	if err != nil || !ok || state.Sequence != 0 {
		t.Fatalf("expected redrive to commit sequence 0 once witnessed: ok=%v err=%v", ok, err)
	}
	if found, _ := store.Escrow(processor.EscrowPartiallyWitness).Contains(ctx, string(id), 0); found {
		t.Fatal("expected partially-witnessed escrow entry to be drained")
	}
}

func TestMissingDelegatorObserverDrainsOnceDelegatorResolved(t *testing.T) {
	store := impl_inmem.New(nil)
	bus := notify.NewBus(nil)
	proc := processor.New(store, bus, stubVerifier{}, nil)
	obs := &escrow.MissingDelegatorObserver{Store: store, Processor: proc}

	delegator := event.IdentifierPrefix("EDelegator")
	child := event.IdentifierPrefix("EChild")

	delegatedIcp := event.KeyEvent{
		Identifier: child, Sequence: 0, Type: event.DelegatedInception,
		CurrentKeys: []event.PublicKey{"K1"}, CurrentThreshold: event.SimpleThreshold(1),
		NextDigest: "N", Delegator: delegator,
		Seals: []event.Seal{{Identifier: delegator, Sequence: 0, Digest: "DDEL"}},
		Raw:   []byte("dip"),
	}
	childCandidate := event.SignedEventMessage{Event: delegatedIcp, Digest: "DCHILD", IndexedSignatures: sigsAt(0)}

	ctx := context.Background()
	if err := proc.Process(ctx, processor.NoticeEvent{Event: childCandidate}); err != nil {
		t.Fatalf("Process delegated inception: %v", err)
	}
	if _, ok, _ := store.GetState(ctx, child); ok {
		t.Fatal("expected delegated inception to wait on its delegator")
	}

	delegatorIcp := event.KeyEvent{
		Identifier: delegator, Sequence: 0, Type: event.Inception,
		CurrentKeys: []event.PublicKey{"DK1"}, CurrentThreshold: event.SimpleThreshold(1),
		NextDigest: "DN", Raw: []byte("icp-delegator"),
	}
	delegatorCandidate := event.SignedEventMessage{Event: delegatorIcp, Digest: "DDEL", IndexedSignatures: sigsAt(0)}
	if err := proc.Process(ctx, processor.NoticeEvent{Event: delegatorCandidate}); err != nil {
		t.Fatalf("Process delegator inception: %v", err)
	}

	trigger := notify.KeyEventAddedNotification(delegatorCandidate)
	if err := obs.Notify(trigger, bus); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	state, ok, err := store.GetState(ctx, child)
	if err != nil || !ok || state.Sequence != 0 {
		t.Fatalf("expected delegated child to commit once delegator resolved: ok=%v err=%v", ok, err)
	}
}
