package tel

import (
	"context"

	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
)

// Store is the storage capability tel.Classify and tel.Processor depend on.
// SequencedIndex and EscrowFactory are the exact kelstore interfaces the KEL
// uses — a tel.Store implementation is expected to hand back the same
// underlying kelstore.Store's Insert/Get/Escrow so a TEL's ordering and
// escrow bookkeeping are genuinely the KEL's own tables, filed under the
// synthetic CredentialKey identifier rather than a controller identifier.
// Only the event body and per-credential derived state are TEL-shaped, since
// kelstore.LogStore/KeyStateStore are typed to KEL's event.KeyEvent/
// event.IdentifierState.
type Store interface {
	kelstore.SequencedIndex
	kelstore.EscrowFactory

	PutEvent(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, evt VerifiableEvent) error
	GetEvent(ctx context.Context, digest event.EventDigest) (VerifiableEvent, bool, error)

	PutState(ctx context.Context, tx kelstore.Tx, key event.IdentifierPrefix, state RegistryState) error
	GetState(ctx context.Context, key event.IdentifierPrefix) (RegistryState, bool, error)
}
