package tel

import (
	"context"
	"testing"

	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
)

func issEvent(registry event.IdentifierPrefix, msgDigest event.EventDigest, anchor event.Seal) TelEvent {
	return TelEvent{
		RegistryIdentifier: registry,
		Sequence:           0,
		Type:               Issue,
		MessageDigest:      msgDigest,
		Anchor:             anchor,
		Raw:                []byte("iss-bytes"),
	}
}

func revEvent(registry event.IdentifierPrefix, msgDigest, prior event.EventDigest, anchor event.Seal) TelEvent {
	return TelEvent{
		RegistryIdentifier: registry,
		Sequence:           1,
		Type:               Revoke,
		MessageDigest:      msgDigest,
		PriorDigest:        prior,
		Anchor:             anchor,
		Raw:                []byte("rev-bytes"),
	}
}

func TestClassifyAcceptsWellFormedIssue(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 3, Digest: "DAnchor"}
	evt := issEvent("ERegistry", "DCred", anchor)
	candidate := VerifiableEvent{Event: evt, Digest: "DIss0"}

	d, err := Classify(context.Background(), candidate, nil, "", false, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != Accept {
		t.Fatalf("expected Accept, got %s (reason=%v)", d.Kind, d.Reason)
	}
}

func TestClassifyEscrowsMissingIssuerEventWhenAnchorUnresolved(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 3, Digest: "DAnchor"}
	evt := issEvent("ERegistry", "DCred", anchor)
	candidate := VerifiableEvent{Event: evt, Digest: "DIss0"}

	d, err := Classify(context.Background(), candidate, nil, "", false, false)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != EscrowMissingIssuerEvent {
		t.Fatalf("expected EscrowMissingIssuerEvent, got %s", d.Kind)
	}
}

func TestClassifyEscrowsOutOfOrderRevokeWithNoPriorState(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 4, Digest: "DAnchor2"}
	evt := revEvent("ERegistry", "DCred", "DIss0", anchor)
	candidate := VerifiableEvent{Event: evt, Digest: "DRev1"}

	d, err := Classify(context.Background(), candidate, nil, "", false, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != EscrowOutOfOrder {
		t.Fatalf("expected EscrowOutOfOrder, got %s", d.Kind)
	}
}

func TestClassifyRejectsBadPriorDigestOnRevoke(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 4, Digest: "DAnchor2"}
	prior := &RegistryState{RegistryIdentifier: "ERegistry", MessageDigest: "DCred", Sequence: 0, LastEventDigest: "DIss0", LastEventType: Issue}
	evt := revEvent("ERegistry", "DCred", "DWrongPrior", anchor)
	candidate := VerifiableEvent{Event: evt, Digest: "DRev1"}

	d, err := Classify(context.Background(), candidate, prior, "", false, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != Reject || !kelerr.Is(d.Reason, ErrDigestsNotMatch) {
		t.Fatalf("expected Reject/ErrDigestsNotMatch, got %s (%v)", d.Kind, d.Reason)
	}
}

func TestClassifyRejectsEventAfterRevocation(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 5, Digest: "DAnchor3"}
	prior := &RegistryState{RegistryIdentifier: "ERegistry", MessageDigest: "DCred", Sequence: 1, LastEventDigest: "DRev1", LastEventType: Revoke, Revoked: true}
	evt := TelEvent{RegistryIdentifier: "ERegistry", Sequence: 2, Type: Revoke, MessageDigest: "DCred", PriorDigest: "DRev1", Anchor: anchor, Raw: []byte("rev-again")}
	candidate := VerifiableEvent{Event: evt, Digest: "DRev2"}

	d, err := Classify(context.Background(), candidate, prior, "", false, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != Reject || !kelerr.Is(d.Reason, ErrEventAlreadySaved) {
		t.Fatalf("expected Reject/ErrEventAlreadySaved, got %s (%v)", d.Kind, d.Reason)
	}
}

func TestClassifyDetectsDuplicitousIssue(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 3, Digest: "DAnchor"}
	prior := &RegistryState{RegistryIdentifier: "ERegistry", MessageDigest: "DCred", Sequence: 0, LastEventDigest: "DIss0", LastEventType: Issue}
	evt := issEvent("ERegistry", "DCred", anchor)
	candidate := VerifiableEvent{Event: evt, Digest: "DIssOther"}

	d, err := Classify(context.Background(), candidate, prior, "DIss0", true, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != Duplicitous {
		t.Fatalf("expected Duplicitous, got %s", d.Kind)
	}
}

func TestClassifyIsIdempotentOnExactResubmission(t *testing.T) {
	anchor := event.Seal{Identifier: "EIssuer", Sequence: 3, Digest: "DAnchor"}
	evt := issEvent("ERegistry", "DCred", anchor)
	candidate := VerifiableEvent{Event: evt, Digest: "DIss0"}

	d, err := Classify(context.Background(), candidate, nil, "DIss0", true, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != Accept {
		t.Fatalf("expected idempotent Accept, got %s", d.Kind)
	}
}

func TestClassifyRejectsMalformedEvent(t *testing.T) {
	evt := TelEvent{RegistryIdentifier: "", Sequence: 0, Type: Issue, Raw: []byte("x")}
	candidate := VerifiableEvent{Event: evt, Digest: "D0"}

	d, err := Classify(context.Background(), candidate, nil, "", false, true)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if d.Kind != Reject || !kelerr.Is(d.Reason, ErrMalformedTelEvent) {
		t.Fatalf("expected Reject/ErrMalformedTelEvent, got %s (%v)", d.Kind, d.Reason)
	}
}
