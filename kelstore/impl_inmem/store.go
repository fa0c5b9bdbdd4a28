// Package impl_inmem is the reference kelstore.Store implementation: one map
// per logical table, mirroring the reference MemoryDatabase's table split
// (events/signatures/couplets/receipts, sequenced index, key state, escrow).
// The log, receipt, sequenced-index and key-state maps (and the digest
// filter) all share a single sync.RWMutex, so a writer to any one of them
// blocks readers of all of them; only the escrow tables have a lock each.
// The store never requires a real
// transaction — Tx is always nil here, and Begin/Commit/Rollback are no-ops,
// collapsing the log-then-commit split the durable backend needs.
package impl_inmem

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/bloomfilter"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore"
)

// Store implements kelstore.Store and kelstore.Transactor entirely in
// process memory.
type Store struct {
	log logger.Logger

	mu                sync.RWMutex
	events            map[event.EventDigest]event.KeyEvent
	signatures        map[event.EventDigest][]event.IndexedSignature
	nontransCouplets  map[event.EventDigest][]event.NontransReceipt
	logTransReceipts  map[event.EventDigest][]event.TransferableReceipt
	accNontransRecpts map[event.EventDigest][]event.NontransReceipt
	accTransReceipts  map[event.EventDigest][]event.TransferableReceipt

	kelIndex map[event.IdentifierPrefix]map[uint64]event.EventDigest
	keyState map[event.IdentifierPrefix]event.IdentifierState

	escrowMu sync.Mutex
	escrows  map[string]*escrowTable

	digestFilter *bloomfilter.Filter
}

// New returns an empty Store. log may be nil, in which case observations are
// silently dropped rather than panicking — matching the teacher's tolerance
// for a nil-safe logger in tests.
func New(log logger.Logger) *Store {
	filter, _ := bloomfilter.New(1024, 4)
	return &Store{
		log:               log,
		events:            make(map[event.EventDigest]event.KeyEvent),
		signatures:        make(map[event.EventDigest][]event.IndexedSignature),
		nontransCouplets:  make(map[event.EventDigest][]event.NontransReceipt),
		logTransReceipts:  make(map[event.EventDigest][]event.TransferableReceipt),
		accNontransRecpts: make(map[event.EventDigest][]event.NontransReceipt),
		accTransReceipts:  make(map[event.EventDigest][]event.TransferableReceipt),
		kelIndex:          make(map[event.IdentifierPrefix]map[uint64]event.EventDigest),
		keyState:          make(map[event.IdentifierPrefix]event.IdentifierState),
		escrows:           make(map[string]*escrowTable),
		digestFilter:      filter,
	}
}

func (s *Store) infof(format string, args ...any) {
	if s.log != nil {
		s.log.Infof(format, args...)
	}
}

// --- Transactor: no real transaction exists in memory ---

func (s *Store) Begin(ctx context.Context) (kelstore.Tx, error)     { return nil, nil }
func (s *Store) Commit(ctx context.Context, tx kelstore.Tx) error   { return nil }
func (s *Store) Rollback(ctx context.Context, tx kelstore.Tx) error { return nil }

// --- LogStore ---

func (s *Store) PutEvent(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, evt event.KeyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[digest] = evt
	s.digestFilter.Add(filterIndexFor(evt.Identifier), []byte(digest))
	return nil
}

func (s *Store) GetEvent(ctx context.Context, digest event.EventDigest) (event.KeyEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.digestFilter.MaybeContains(0, []byte(digest)) &&
		!s.digestFilter.MaybeContains(1, []byte(digest)) &&
		!s.digestFilter.MaybeContains(2, []byte(digest)) &&
		!s.digestFilter.MaybeContains(3, []byte(digest)) {
		return event.KeyEvent{}, false, nil
	}
	evt, ok := s.events[digest]
	return evt, ok, nil
}

// PutSignatures appends sigs to the digest's accumulated set, deduplicating
// by signer index — repeated submissions of the same event with
// incrementally more signatures merge rather than clobber.
func (s *Store) PutSignatures(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, sigs []event.IndexedSignature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.signatures[digest]
	seen := make(map[int]bool, len(existing))
	for _, sig := range existing {
		seen[sig.Index] = true
	}
	for _, sig := range sigs {
		if !seen[sig.Index] {
			existing = append(existing, sig)
			seen[sig.Index] = true
		}
	}
	s.signatures[digest] = existing
	return nil
}

func (s *Store) GetSignatures(ctx context.Context, digest event.EventDigest) ([]event.IndexedSignature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.IndexedSignature(nil), s.signatures[digest]...), nil
}

func (s *Store) PutNontransCouplets(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, couplets []event.NontransReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.nontransCouplets[digest]
	seen := make(map[event.PublicKey]bool, len(existing))
	for _, c := range existing {
		seen[c.SignerKey] = true
	}
	for _, c := range couplets {
		if !seen[c.SignerKey] {
			existing = append(existing, c)
			seen[c.SignerKey] = true
		}
	}
	s.nontransCouplets[digest] = existing
	return nil
}

func (s *Store) GetNontransCouplets(ctx context.Context, digest event.EventDigest) ([]event.NontransReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.NontransReceipt(nil), s.nontransCouplets[digest]...), nil
}

func (s *Store) RemoveNontransCouplet(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, signer event.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	couplets := s.nontransCouplets[digest]
	out := couplets[:0]
	for _, c := range couplets {
		if c.SignerKey != signer {
			out = append(out, c)
		}
	}
	s.nontransCouplets[digest] = out
	return nil
}

func (s *Store) PutTransReceipts(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, receipts []event.TransferableReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logTransReceipts[digest] = append(s.logTransReceipts[digest], receipts...)
	return nil
}

func (s *Store) GetTransReceipts(ctx context.Context, digest event.EventDigest) ([]event.TransferableReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.TransferableReceipt(nil), s.logTransReceipts[digest]...), nil
}

// --- SequencedIndex ---

func (s *Store) Insert(ctx context.Context, tx kelstore.Tx, id event.IdentifierPrefix, sn uint64, digest event.EventDigest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byseq, ok := s.kelIndex[id]
	if !ok {
		byseq = make(map[uint64]event.EventDigest)
		s.kelIndex[id] = byseq
	}
	if existing, ok := byseq[sn]; ok && existing != digest {
		return kelerr.Wrap(fmt.Errorf("identifier %s sequence %d already holds digest %s, got %s", id, sn, existing, digest), "sequenced index insert", kelerr.ErrDuplicitous)
	}
	byseq[sn] = digest
	s.infof("kelstore/impl_inmem: indexed %s/%d -> %s", id, sn, digest)
	return nil
}

func (s *Store) Get(ctx context.Context, id event.IdentifierPrefix, sn uint64) (event.EventDigest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byseq, ok := s.kelIndex[id]
	if !ok {
		return "", false, nil
	}
	d, ok := byseq[sn]
	return d, ok, nil
}

func (s *Store) GetGreaterThan(ctx context.Context, id event.IdentifierPrefix, sn uint64) ([]event.EventDigest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byseq, ok := s.kelIndex[id]
	if !ok {
		return nil, nil
	}
	seqs := make([]uint64, 0, len(byseq))
	for k := range byseq {
		if k > sn {
			seqs = append(seqs, k)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	out := make([]event.EventDigest, 0, len(seqs))
	for _, k := range seqs {
		out = append(out, byseq[k])
	}
	return out, nil
}

func (s *Store) Latest(ctx context.Context, id event.IdentifierPrefix) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byseq, ok := s.kelIndex[id]
	if !ok || len(byseq) == 0 {
		return 0, false, nil
	}
	var max uint64
	found := false
	for k := range byseq {
		if !found || k > max {
			max, found = k, true
		}
	}
	return max, found, nil
}

// --- KeyStateStore ---

func (s *Store) PutState(ctx context.Context, tx kelstore.Tx, id event.IdentifierPrefix, state event.IdentifierState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keyState[id] = state
	return nil
}

func (s *Store) GetState(ctx context.Context, id event.IdentifierPrefix) (event.IdentifierState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.keyState[id]
	return st, ok, nil
}

// --- ReceiptStore ---

func (s *Store) AcceptNontransReceipts(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, receipts []event.NontransReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accNontransRecpts[digest] = append(s.accNontransRecpts[digest], receipts...)
	return nil
}

func (s *Store) GetAcceptedNontransReceipts(ctx context.Context, digest event.EventDigest) ([]event.NontransReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.NontransReceipt(nil), s.accNontransRecpts[digest]...), nil
}

func (s *Store) AcceptTransReceipts(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, receipts []event.TransferableReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accTransReceipts[digest] = append(s.accTransReceipts[digest], receipts...)
	return nil
}

func (s *Store) GetAcceptedTransReceipts(ctx context.Context, digest event.EventDigest) ([]event.TransferableReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]event.TransferableReceipt(nil), s.accTransReceipts[digest]...), nil
}

// --- EscrowFactory ---

func (s *Store) Escrow(name string) kelstore.EscrowTable {
	s.escrowMu.Lock()
	defer s.escrowMu.Unlock()
	t, ok := s.escrows[name]
	if !ok {
		t = newEscrowTable()
		s.escrows[name] = t
	}
	return t
}

// filterIndexFor spreads identifiers across the filter's four blocks.
func filterIndexFor(id event.IdentifierPrefix) uint8 {
	var h uint8
	for i := 0; i < len(id); i++ {
		h += id[i]
	}
	return h % 4
}
