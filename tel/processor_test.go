package tel_test

import (
	"context"
	"testing"

	"github.com/seriouscoderone/keriox/config"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore/impl_inmem"
	"github.com/seriouscoderone/keriox/notify"
	"github.com/seriouscoderone/keriox/tel"
)

type harness struct {
	kel  *impl_inmem.Store
	tel  *tel.InMemStore
	bus  *notify.Bus
	proc *tel.Processor
}

func newHarness() *harness {
	kel := impl_inmem.New(nil)
	telStore := tel.NewInMemStore(kel, nil)
	bus := notify.NewBus(nil)
	proc := tel.New(telStore, kel, bus, nil)
	tel.RegisterAll(bus, proc, config.Unbounded, nil)
	return &harness{kel: kel, tel: telStore, bus: bus, proc: proc}
}

func anchorSeal(id event.IdentifierPrefix, sn uint64, digest event.EventDigest) event.Seal {
	return event.Seal{Identifier: id, Sequence: sn, Digest: digest}
}

func TestIssueAcceptedWhenAnchorAlreadyResolved(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.kel.Insert(ctx, nil, "EIssuer", 3, "DAnchor"); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}

	evt := tel.TelEvent{RegistryIdentifier: "ERegistry", Sequence: 0, Type: tel.Issue, MessageDigest: "DCred", Anchor: anchorSeal("EIssuer", 3, "DAnchor"), Raw: []byte("iss")}
	candidate := tel.VerifiableEvent{Event: evt, Digest: "DIss0"}

	if err := h.proc.Process(ctx, candidate); err != nil {
		t.Fatalf("Process: %v", err)
	}

	key := tel.CredentialKey("ERegistry", "DCred")
	state, ok, err := h.tel.GetState(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected committed state, ok=%v err=%v", ok, err)
	}
	if state.LastEventDigest != "DIss0" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestIssueEscrowedThenDrainedOnAnchorArrival(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	evt := tel.TelEvent{RegistryIdentifier: "ERegistry", Sequence: 0, Type: tel.Issue, MessageDigest: "DCred", Anchor: anchorSeal("EIssuer", 3, "DAnchor"), Raw: []byte("iss")}
	candidate := tel.VerifiableEvent{Event: evt, Digest: "DIss0"}

	if err := h.proc.Process(ctx, candidate); err != nil {
		t.Fatalf("Process: %v", err)
	}
	key := tel.CredentialKey("ERegistry", "DCred")
	if _, ok, _ := h.tel.GetState(ctx, key); ok {
		t.Fatal("expected no committed state yet, anchor unresolved")
	}

	// The anchor now arrives in the KEL: insert it and publish the KEL's own
	// KeyEventAdded the way processor.Processor.commit would.
	if err := h.kel.Insert(ctx, nil, "EIssuer", 3, "DAnchor"); err != nil {
		t.Fatalf("seed anchor: %v", err)
	}
	anchorEvt := event.SignedEventMessage{Event: event.KeyEvent{Identifier: "EIssuer", Sequence: 3}, Digest: "DAnchor"}
	if err := h.bus.Publish(notify.KeyEventAddedNotification(anchorEvt)); err != nil {
		t.Fatalf("publish KeyEventAdded: %v", err)
	}

	state, ok, err := h.tel.GetState(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected the escrowed issue to drain, ok=%v err=%v", ok, err)
	}
	if state.LastEventDigest != "DIss0" {
		t.Fatalf("unexpected state: %+v", state)
	}
}

func TestRevokeOutOfOrderThenDrainsOnIssueCommit(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.kel.Insert(ctx, nil, "EIssuer", 4, "DAnchorRev"); err != nil {
		t.Fatalf("seed rev anchor: %v", err)
	}

	rev := tel.TelEvent{RegistryIdentifier: "ERegistry", Sequence: 1, Type: tel.Revoke, MessageDigest: "DCred", PriorDigest: "DIss0", Anchor: anchorSeal("EIssuer", 4, "DAnchorRev"), Raw: []byte("rev")}
	revCandidate := tel.VerifiableEvent{Event: rev, Digest: "DRev1"}
	if err := h.proc.Process(ctx, revCandidate); err != nil {
		t.Fatalf("Process rev: %v", err)
	}

	key := tel.CredentialKey("ERegistry", "DCred")
	if _, ok, _ := h.tel.GetState(ctx, key); ok {
		t.Fatal("expected revoke to be escrowed out-of-order, not committed")
	}

	if err := h.kel.Insert(ctx, nil, "EIssuer", 3, "DAnchorIss"); err != nil {
		t.Fatalf("seed iss anchor: %v", err)
	}
	iss := tel.TelEvent{RegistryIdentifier: "ERegistry", Sequence: 0, Type: tel.Issue, MessageDigest: "DCred", Anchor: anchorSeal("EIssuer", 3, "DAnchorIss"), Raw: []byte("iss")}
	issCandidate := tel.VerifiableEvent{Event: iss, Digest: "DIss0"}
	if err := h.proc.Process(ctx, issCandidate); err != nil {
		t.Fatalf("Process iss: %v", err)
	}

	state, ok, err := h.tel.GetState(ctx, key)
	if err != nil || !ok {
		t.Fatalf("expected the escrowed revoke to drain after issue committed, ok=%v err=%v", ok, err)
	}
	if state.LastEventDigest != "DRev1" || !state.Revoked {
		t.Fatalf("unexpected state: %+v", state)
	}
}
