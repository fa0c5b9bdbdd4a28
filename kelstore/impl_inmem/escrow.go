package impl_inmem

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/seriouscoderone/keriox/kelstore"
)

// escrowTable is one named escrow kind's holding area: values keyed by an
// arbitrary string key (usually an IdentifierPrefix) and a sequence number
// within that key, mirroring the reference MemoryEscrowDb's
// key -> (sn -> value) layering. Each (key, sn) pair holds a set of values
// rather than a single slot, since distinct candidates can legitimately
// collide at the same pair (duplicitous digests, racing out-of-order
// events).
type escrowTable struct {
	mu    sync.RWMutex
	byKey map[string]map[uint64][][]byte
}

func newEscrowTable() *escrowTable {
	return &escrowTable{byKey: make(map[string]map[uint64][][]byte)}
}

var _ kelstore.EscrowTable = (*escrowTable)(nil)

func (t *escrowTable) Put(ctx context.Context, tx kelstore.Tx, key string, sn uint64, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bysn, ok := t.byKey[key]
	if !ok {
		bysn = make(map[uint64][][]byte)
		t.byKey[key] = bysn
	}
	for _, existing := range bysn[sn] {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	bysn[sn] = append(bysn[sn], append([]byte(nil), value...))
	return nil
}

func (t *escrowTable) Get(ctx context.Context, key string, sn uint64) ([][]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bysn, ok := t.byKey[key]
	if !ok {
		return nil, false, nil
	}
	values, ok := bysn[sn]
	return values, ok && len(values) > 0, nil
}

func (t *escrowTable) GetFromSequence(ctx context.Context, key string, sn uint64) ([][]byte, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bysn, ok := t.byKey[key]
	if !ok {
		return nil, nil
	}
	seqs := make([]uint64, 0, len(bysn))
	for k := range bysn {
		if k >= sn {
			seqs = append(seqs, k)
		}
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	var out [][]byte
	for _, k := range seqs {
		out = append(out, bysn[k]...)
	}
	return out, nil
}

func (t *escrowTable) Remove(ctx context.Context, tx kelstore.Tx, key string, sn uint64, value []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bysn, ok := t.byKey[key]
	if !ok {
		return nil
	}
	values := bysn[sn]
	for i, existing := range values {
		if bytes.Equal(existing, value) {
			bysn[sn] = append(values[:i], values[i+1:]...)
			break
		}
	}
	if len(bysn[sn]) == 0 {
		delete(bysn, sn)
	}
	return nil
}

func (t *escrowTable) Contains(ctx context.Context, key string, sn uint64) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	bysn, ok := t.byKey[key]
	if !ok {
		return false, nil
	}
	return len(bysn[sn]) > 0, nil
}

func (t *escrowTable) Keys(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.byKey))
	for k, bysn := range t.byKey {
		if len(bysn) > 0 {
			out = append(out, k)
		}
	}
	return out, nil
}
