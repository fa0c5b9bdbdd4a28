package tel

import (
	"context"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelstore"
)

// InMemStore implements tel.Store, delegating SequencedIndex and
// EscrowFactory straight through to an embedded kelstore.Store — typically
// the same Store instance the KEL's own Processor uses, so a TEL's ordering
// shares the KEL's sequenced index, keyed by CredentialKey instead of a
// controller identifier. TEL escrow uses its own named tables (tel-*) from
// the same EscrowFactory, separate from the KEL observers' tables. Only the
// event body and per-credential state get
// their own maps, mirroring kelstore/impl_inmem's mutex-guarded table split.
type InMemStore struct {
	kelstore.Store

	log logger.Logger

	mu     sync.RWMutex
	events map[event.EventDigest]VerifiableEvent
	states map[event.IdentifierPrefix]RegistryState
}

var _ Store = (*InMemStore)(nil)

// NewInMemStore wraps kel, the same kelstore.Store the KEL processor commits
// into. log may be nil.
func NewInMemStore(kel kelstore.Store, log logger.Logger) *InMemStore {
	return &InMemStore{
		Store:  kel,
		log:    log,
		events: make(map[event.EventDigest]VerifiableEvent),
		states: make(map[event.IdentifierPrefix]RegistryState),
	}
}

func (s *InMemStore) PutEvent(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, evt VerifiableEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[digest] = evt
	return nil
}

func (s *InMemStore) GetEvent(ctx context.Context, digest event.EventDigest) (VerifiableEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evt, ok := s.events[digest]
	return evt, ok, nil
}

func (s *InMemStore) PutState(ctx context.Context, tx kelstore.Tx, key event.IdentifierPrefix, state RegistryState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state
	return nil
}

func (s *InMemStore) GetState(ctx context.Context, key event.IdentifierPrefix) (RegistryState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	return st, ok, nil
}
