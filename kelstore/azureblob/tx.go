package azureblob

import (
	"context"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore"
)

// pendingWrite is one staged blob write, applied in the order Commit
// receives them — LogStore's PutEvent/PutSignatures/PutNontransCouplets are
// never staged (processor.go writes those before Classify runs, outside any
// transaction), so a Tx only ever accumulates SequencedIndex, KeyStateStore
// and ReceiptStore writes, in that order, matching the commit order the
// top-level concurrency model requires.
type pendingWrite struct {
	path string
	body any
	opts []azblob.Option
}

// Tx batches writes in memory and applies them to blob storage only on
// Commit, so a crash before Commit leaves none of its writes visible; a
// failure during Commit can leave the earlier staged writes applied (see
// Commit).
type Tx struct {
	store   *Store
	pending []pendingWrite
}

var _ kelstore.Tx = (*Tx)(nil)

func (t *Tx) discard() {}

func (t *Tx) stage(path string, body any, opts ...azblob.Option) {
	t.pending = append(t.pending, pendingWrite{path: path, body: body, opts: opts})
}

// Begin starts a batched transaction.
func (s *Store) Begin(ctx context.Context) (kelstore.Tx, error) {
	return &Tx{store: s}, nil
}

// Commit applies every staged write in order. A failure partway through
// leaves earlier writes in place — blob storage has no multi-object atomic
// commit, so callers rely on re-delivery (every write here is either
// idempotent or ETag-guarded) rather than true atomicity.
func (s *Store) Commit(ctx context.Context, tx kelstore.Tx) error {
	batch, ok := tx.(*Tx)
	if !ok || batch == nil {
		return nil
	}
	for _, w := range batch.pending {
		if _, err := s.putJSON(ctx, w.path, w.body, w.opts...); err != nil && !isAlreadyExists(err) {
			return kelerr.Wrap(err, "commit staged write", kelerr.ErrStorage)
		}
	}
	return nil
}

// Rollback discards the batch; nothing was ever written to blob storage.
func (s *Store) Rollback(ctx context.Context, tx kelstore.Tx) error {
	if batch, ok := tx.(*Tx); ok && batch != nil {
		batch.pending = nil
	}
	return nil
}

// withTx runs inTx against tx when it is a live *azureblob.Tx, or falls back
// to applying the write immediately (direct) otherwise — e.g. when Store is
// used outside of Processor.commit's Begin/Commit bracket, such as logging
// signatures and couplets before classification.
func withTx(tx kelstore.Tx, inTx func(*Tx) error, direct func() error) error {
	if batch, ok := tx.(*Tx); ok && batch != nil {
		return inTx(batch)
	}
	return direct()
}

func mergeSignatures(existing, incoming []event.IndexedSignature) []event.IndexedSignature {
	seen := make(map[int]bool, len(existing))
	for _, sig := range existing {
		seen[sig.Index] = true
	}
	merged := append([]event.IndexedSignature(nil), existing...)
	for _, sig := range incoming {
		if !seen[sig.Index] {
			merged = append(merged, sig)
			seen[sig.Index] = true
		}
	}
	return merged
}

func mergeCouplets(existing, incoming []event.NontransReceipt) []event.NontransReceipt {
	seen := make(map[event.PublicKey]bool, len(existing))
	for _, c := range existing {
		seen[c.SignerKey] = true
	}
	merged := append([]event.NontransReceipt(nil), existing...)
	for _, c := range incoming {
		if !seen[c.SignerKey] {
			merged = append(merged, c)
			seen[c.SignerKey] = true
		}
	}
	return merged
}
