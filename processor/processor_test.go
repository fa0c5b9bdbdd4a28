package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/seriouscoderone/keriox/config"
	"github.com/seriouscoderone/keriox/escrow"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore/impl_inmem"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/processor"
)

// stubVerifier accepts any signature whose bytes equal "valid", independent
// of key — enough to drive the full pipeline without real cryptography.
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

type harness struct {
	store *impl_inmem.Store
	bus   *notify.Bus
	proc  *processor.Processor

	keyEventAdded int
	lastKind      notify.Kind
	kindCounts    map[notify.Kind]int
}

func newHarness() *harness {
	h := &harness{
		store:      impl_inmem.New(nil),
		bus:        notify.NewBus(nil),
		kindCounts: make(map[notify.Kind]int),
	}
	h.proc = processor.New(h.store, h.bus, stubVerifier{}, nil)
	escrow.RegisterAll(h.bus, h.store, h.proc, config.Unbounded, nil)

	h.bus.Register(notify.KeyEventAdded, notify.NotifierFunc(func(n notify.Notification, bus *notify.Bus) error {
		h.keyEventAdded++
		h.kindCounts[n.Kind]++
		return nil
	}))
	for _, k := range []notify.Kind{
		notify.OutOfOrder, notify.PartiallySigned, notify.PartiallyWitnessed,
		notify.ReceiptAccepted, notify.ReceiptEscrowed, notify.ReceiptOutOfOrder,
		notify.TransReceiptOutOfOrder, notify.DuplicitousEvent, notify.MissingDelegatingEvent,
	} {
		kind := k
		h.bus.Register(kind, notify.NotifierFunc(func(n notify.Notification, bus *notify.Bus) error {
			h.kindCounts[kind]++
			return nil
		}))
	}
	return h
}

func inception(id event.IdentifierPrefix, keys []event.PublicKey, threshold int, nextDigest event.EventDigest) event.KeyEvent {
	return event.KeyEvent{
		Identifier: id, Sequence: 0, Type: event.Inception,
		CurrentKeys: keys, CurrentThreshold: event.SimpleThreshold(threshold),
		NextDigest: nextDigest, Raw: []byte("icp-" + string(id)),
	}
}

func TestS1InceptionOnly(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	evt := inception(id, keys, 2, "NCommit")
	candidate := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0, 1, 2)}

	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: candidate}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	state, ok, err := h.store.GetState(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("GetState: ok=%v err=%v", ok, err)
	}
	if state.Sequence != 0 {
		t.Fatalf("expected sequence 0, got %d", state.Sequence)
	}
	if h.kindCounts[notify.KeyEventAdded] != 1 {
		t.Fatalf("expected exactly 1 KeyEventAdded, got %d", h.kindCounts[notify.KeyEventAdded])
	}
}

func TestS2RotationAfterInception(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	icp := inception(id, keys, 2, "NCommit")
	icpMsg := event.SignedEventMessage{Event: icp, Digest: "D0", IndexedSignatures: sigsAt(0, 1, 2)}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: icpMsg}); err != nil {
		t.Fatalf("Process inception: %v", err)
	}

	rot := event.KeyEvent{
		Identifier: id, Sequence: 1, Type: event.Rotation,
		PriorDigest: "D0", KeyCommitmentDigest: "NCommit",
		CurrentKeys: []event.PublicKey{"K1b", "K2b", "K3b"}, CurrentThreshold: event.SimpleThreshold(2),
		NextDigest: "NCommit2", Raw: []byte("rot"),
	}
	rotMsg := event.SignedEventMessage{Event: rot, Digest: "D1", IndexedSignatures: sigsAt(0, 1, 2)}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: rotMsg}); err != nil {
		t.Fatalf("Process rotation: %v", err)
	}

	state, ok, err := h.store.GetState(context.Background(), id)
	if err != nil || !ok {
		t.Fatalf("GetState: ok=%v err=%v", ok, err)
	}
	if state.Sequence != 1 {
		t.Fatalf("expected sequence 1, got %d", state.Sequence)
	}
	if state.CurrentKeys[0] != "K1b" {
		t.Fatalf("expected rotated keys, got %v", state.CurrentKeys)
	}
}

func TestS3OutOfOrderThenDrain(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	icp := inception(id, keys, 2, "NCommit")
	icpMsg := event.SignedEventMessage{Event: icp, Digest: "D0", IndexedSignatures: sigsAt(0, 1, 2)}

	rot := event.KeyEvent{
		Identifier: id, Sequence: 1, Type: event.Rotation,
		PriorDigest: "D0", KeyCommitmentDigest: "NCommit",
		CurrentKeys: []event.PublicKey{"K1b", "K2b", "K3b"}, CurrentThreshold: event.SimpleThreshold(2),
		NextDigest: "NCommit2", Raw: []byte("rot"),
	}
	rotMsg := event.SignedEventMessage{Event: rot, Digest: "D1", IndexedSignatures: sigsAt(0, 1, 2)}

	// Rotation arrives first: no key state yet, so it must escrow.
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: rotMsg}); err != nil {
		t.Fatalf("Process rotation first: %v", err)
	}
	if _, ok, _ := h.store.GetState(context.Background(), id); ok {
		t.Fatal("expected no key state before inception arrives")
	}
	if h.kindCounts[notify.OutOfOrder] != 1 {
		t.Fatalf("expected OutOfOrder notification, got %d", h.kindCounts[notify.OutOfOrder])
	}

	// Inception arrives: commits, and the out-of-order observer should
	// drain the rotation in the same call.
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: icpMsg}); err != nil {
		t.Fatalf("Process inception: %v", err)
	}

	state, ok, err := h.store.GetState(context.Background(), id)
	if err != nil || !ok || state.Sequence != 1 {
		t.Fatalf("expected drained rotation to commit sequence 1: ok=%v state=%+v err=%v", ok, state, err)
	}

	table := h.store.Escrow(processor.EscrowOutOfOrder)
	if contains, _ := table.Contains(context.Background(), string(id), 1); contains {
		t.Fatal("expected out-of-order escrow to be empty after drain")
	}
}

func TestS4PartiallySignedThenMerge(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	evt := inception(id, keys, 2, "NCommit")

	first := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0)}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: first}); err != nil {
		t.Fatalf("Process first copy: %v", err)
	}
	if _, ok, _ := h.store.GetState(context.Background(), id); ok {
		t.Fatal("expected no key state after only 1 of 2 required signatures")
	}
	if h.kindCounts[notify.PartiallySigned] != 1 {
		t.Fatalf("expected PartiallySigned notification, got %d", h.kindCounts[notify.PartiallySigned])
	}

	second := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(1, 2)}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: second}); err != nil {
		t.Fatalf("Process second copy: %v", err)
	}

	state, ok, err := h.store.GetState(context.Background(), id)
	if err != nil || !ok || state.Sequence != 0 {
		t.Fatalf("expected merged signatures to satisfy threshold: ok=%v err=%v", ok, err)
	}
}

func TestS5Duplicitous(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	evt := inception(id, keys, 2, "NCommit")
	first := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0, 1, 2)}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: first}); err != nil {
		t.Fatalf("Process first: %v", err)
	}

	rogue := event.KeyEvent{Identifier: id, Sequence: 0, Type: event.Inception, CurrentKeys: keys, CurrentThreshold: event.SimpleThreshold(2), Raw: []byte("rogue")}
	second := event.SignedEventMessage{Event: rogue, Digest: "D0-ROGUE", IndexedSignatures: sigsAt(0, 1, 2)}
	err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: second})
	if !errors.Is(err, kelerr.ErrDuplicitous) {
		t.Fatalf("expected Process to surface ErrDuplicitous, got %v", err)
	}

	state, ok, err := h.store.GetState(context.Background(), id)
	if err != nil || !ok || state.LastEventDigest != "D0" {
		t.Fatalf("expected state unchanged by duplicitous event: state=%+v ok=%v err=%v", state, ok, err)
	}
	if h.kindCounts[notify.DuplicitousEvent] != 1 {
		t.Fatalf("expected DuplicitousEvent notification, got %d", h.kindCounts[notify.DuplicitousEvent])
	}
}

func TestS6ReceiptBeforeEvent(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	evt := inception(id, keys, 2, "NCommit")

	receipt := event.NontransReceipt{Identifier: id, Sequence: 0, EventDigest: "D0", SignerKey: "W1", Signature: []byte("sig")}
	if err := h.proc.Process(context.Background(), processor.NoticeNontransReceipt{Receipt: receipt}); err != nil {
		t.Fatalf("Process receipt: %v", err)
	}
	if h.kindCounts[notify.ReceiptOutOfOrder] != 1 {
		t.Fatalf("expected ReceiptOutOfOrder notification, got %d", h.kindCounts[notify.ReceiptOutOfOrder])
	}

	candidate := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0, 1, 2)}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: candidate}); err != nil {
		t.Fatalf("Process inception: %v", err)
	}

	if h.kindCounts[notify.ReceiptAccepted] != 1 {
		t.Fatalf("expected ReceiptAccepted notification, got %d", h.kindCounts[notify.ReceiptAccepted])
	}
	accepted, err := h.store.GetAcceptedNontransReceipts(context.Background(), "D0")
	if err != nil || len(accepted) != 1 {
		t.Fatalf("expected 1 accepted receipt, got %d (err=%v)", len(accepted), err)
	}
}

func TestIdempotentProcessingDoesNotDuplicate(t *testing.T) {
	h := newHarness()
	id := event.IdentifierPrefix("EIdentifierOne")
	keys := []event.PublicKey{"K1", "K2", "K3"}
	evt := inception(id, keys, 2, "NCommit")
	candidate := event.SignedEventMessage{Event: evt, Digest: "D0", IndexedSignatures: sigsAt(0, 1, 2)}

	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: candidate}); err != nil {
		t.Fatalf("Process (1st): %v", err)
	}
	if err := h.proc.Process(context.Background(), processor.NoticeEvent{Event: candidate}); err != nil {
		t.Fatalf("Process (2nd): %v", err)
	}

	sigs, err := h.store.GetSignatures(context.Background(), "D0")
	if err != nil || len(sigs) != 3 {
		t.Fatalf("expected no duplicated signatures, got %d (err=%v)", len(sigs), err)
	}
	if h.kindCounts[notify.KeyEventAdded] != 2 {
		t.Fatalf("expected KeyEventAdded to fire once per successful Process call, got %d", h.kindCounts[notify.KeyEventAdded])
	}
}
