package azureblob

import (
	"context"

	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore"
)

// escrowTable is one named escrow table, keyed by the table name in its blob
// path prefix. Every escrow table shares the same container as the KEL
// itself — there is no separate store to provision per table. Each distinct
// value escrowed at a (key, sn) pair is its own blob, named by the value's
// content hash, so colliding candidates (duplicitous digests, racing
// out-of-order events) accumulate instead of overwriting one another.
type escrowTable struct {
	store *Store
	table string
}

var _ kelstore.EscrowTable = (*escrowTable)(nil)

func (e *escrowTable) Put(ctx context.Context, tx kelstore.Tx, key string, sn uint64, value []byte) error {
	path := escrowValuePath(e.table, key, sn, value)
	return withTx(tx, func(batch *Tx) error {
		batch.stage(path, value)
		return nil
	}, func() error {
		if _, err := e.store.putJSON(ctx, path, value); err != nil {
			return kelerr.Wrap(err, "escrow put", kelerr.ErrStorage)
		}
		return nil
	})
}

func (e *escrowTable) Get(ctx context.Context, key string, sn uint64) ([][]byte, bool, error) {
	lr, err := e.store.Blobs.List(ctx, azblob.WithListPrefix(escrowSequencePrefix(e.table, key, sn)))
	if err != nil {
		return nil, false, kelerr.Wrap(err, "list escrow values", kelerr.ErrStorage)
	}
	var values [][]byte
	for _, item := range lr.Items {
		var value []byte
		ok, err := e.store.getJSON(ctx, blobItemName(item), &value)
		if err != nil {
			return nil, false, err
		}
		if ok {
			values = append(values, value)
		}
	}
	return values, len(values) > 0, nil
}

func (e *escrowTable) GetFromSequence(ctx context.Context, key string, sn uint64) ([][]byte, error) {
	lr, err := e.store.Blobs.List(ctx, azblob.WithListPrefix(escrowKeyPrefix(e.table, key)))
	if err != nil {
		return nil, kelerr.Wrap(err, "list escrow entries", kelerr.ErrStorage)
	}
	type seqValue struct {
		sn    uint64
		value []byte
	}
	var found []seqValue
	for _, item := range lr.Items {
		name := blobItemName(item)
		itemSn, err := escrowSequenceFromBlobName(name)
		if err != nil {
			return nil, err
		}
		if itemSn < sn {
			continue
		}
		var value []byte
		ok, err := e.store.getJSON(ctx, name, &value)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, seqValue{itemSn, value})
		}
	}
	sortBySeq(found, func(i, j int) bool { return found[i].sn < found[j].sn })
	out := make([][]byte, len(found))
	for i, fv := range found {
		out[i] = fv.value
	}
	return out, nil
}

func (e *escrowTable) Remove(ctx context.Context, tx kelstore.Tx, key string, sn uint64, value []byte) error {
	if err := e.store.Blobs.Delete(ctx, escrowValuePath(e.table, key, sn, value)); err != nil {
		return kelerr.Wrap(err, "escrow remove", kelerr.ErrStorage)
	}
	return nil
}

func (e *escrowTable) Contains(ctx context.Context, key string, sn uint64) (bool, error) {
	_, ok, err := e.Get(ctx, key, sn)
	return ok, err
}

func (e *escrowTable) Keys(ctx context.Context) ([]string, error) {
	lr, err := e.store.Blobs.List(ctx, azblob.WithListPrefix(escrowTablePrefix(e.table)))
	if err != nil {
		return nil, kelerr.Wrap(err, "list escrow keys", kelerr.ErrStorage)
	}
	seen := make(map[string]bool)
	var keys []string
	for _, item := range lr.Items {
		key, ok := escrowKeyFromBlobName(e.table, blobItemName(item))
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
