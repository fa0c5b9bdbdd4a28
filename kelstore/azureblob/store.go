// Package azureblob is the durable kelstore.Store backend: every table is a
// prefix under one blob container, records are JSON-encoded, and
// compare-and-swap semantics come from blob ETags exactly as
// massifs.MassifCommitter uses them against go-datatrails-common/azblob —
// WithEtagNoneMatch("*") to guard a fresh blob's creation, WithEtagMatch(etag)
// to guard an update against a racing writer.
package azureblob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	azStorageBlob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/datatrails/go-datatrails-common/azblob"
	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/seriouscoderone/keriox/event"
	"github.com/seriouscoderone/keriox/kelerr"
	"github.com/seriouscoderone/keriox/kelstore"
)

// BlobStore is the narrow capability this package needs from a blob
// container client, mirroring massifs' own unexported logBlobReader/
// massifStore split. *azblob.Storer (the real client, dev or production)
// satisfies it structurally.
type BlobStore interface {
	Put(ctx context.Context, identity string, body azblob.ReaderCloser, opts ...azblob.Option) (*azblob.WriteResponse, error)
	Reader(ctx context.Context, identity string, opts ...azblob.Option) (*azblob.ReaderResponse, error)
	List(ctx context.Context, opts ...azblob.Option) (*azblob.ListerResponse, error)
	Delete(ctx context.Context, identity string, opts ...azblob.Option) error
}

// Store implements kelstore.Store and kelstore.Transactor against a blob
// container. Reads are always strongly consistent per-blob (a direct Reader
// call, never a list-index lookup) and writes go through Tx so commit can
// apply them in the order the top-level concurrency model requires.
type Store struct {
	Blobs BlobStore
	Log   logger.Logger
}

var (
	_ kelstore.Store      = (*Store)(nil)
	_ kelstore.Transactor = (*Store)(nil)
)

// New wraps an already-constructed blob container client. blobs is typically
// *azblob.Storer from go-datatrails-common/azblob, built with azblob.NewDev
// against an Azurite emulator in tests, or its production equivalent.
func New(blobs BlobStore, log logger.Logger) *Store {
	return &Store{Blobs: blobs, Log: log}
}

func (s *Store) infof(format string, args ...any) {
	if s.Log != nil {
		s.Log.Infof(format, args...)
	}
}

func (s *Store) putJSON(ctx context.Context, path string, v any, opts ...azblob.Option) (*azblob.WriteResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, kelerr.Wrap(err, "encode blob body", kelerr.ErrMalformedEvent)
	}
	return s.Blobs.Put(ctx, path, azblob.NewBytesReaderCloser(data), opts...)
}

func (s *Store) getJSON(ctx context.Context, path string, v any) (bool, error) {
	rr, err := s.Blobs.Reader(ctx, path)
	if err != nil {
		if isBlobNotFound(err) {
			return false, nil
		}
		return false, kelerr.Wrap(err, "read blob", kelerr.ErrStorage)
	}
	defer rr.Body.Close()
	data, err := io.ReadAll(rr.Body)
	if err != nil {
		return false, kelerr.Wrap(err, "read blob body", kelerr.ErrStorage)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, kelerr.Wrap(err, "decode blob body", kelerr.ErrMalformedEvent)
	}
	return true, nil
}

// --- LogStore ---

func (s *Store) PutEvent(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, evt event.KeyEvent) error {
	return withTx(tx, func(batch *Tx) error {
		batch.stage(eventPath(digest), evt, azblob.WithEtagNoneMatch("*"))
		return nil
	}, func() error {
		_, err := s.putJSON(ctx, eventPath(digest), evt, azblob.WithEtagNoneMatch("*"))
		if err != nil && !isAlreadyExists(err) {
			return kelerr.Wrap(err, "put event blob", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetEvent(ctx context.Context, digest event.EventDigest) (event.KeyEvent, bool, error) {
	var evt event.KeyEvent
	ok, err := s.getJSON(ctx, eventPath(digest), &evt)
	return evt, ok, err
}

func (s *Store) PutSignatures(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, sigs []event.IndexedSignature) error {
	existing, err := s.GetSignatures(ctx, digest)
	if err != nil {
		return err
	}
	merged := mergeSignatures(existing, sigs)
	return withTx(tx, func(batch *Tx) error {
		batch.stage(signaturesPath(digest), merged)
		return nil
	}, func() error {
		if _, err := s.putJSON(ctx, signaturesPath(digest), merged); err != nil {
			return kelerr.Wrap(err, "put signatures blob", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetSignatures(ctx context.Context, digest event.EventDigest) ([]event.IndexedSignature, error) {
	var sigs []event.IndexedSignature
	if _, err := s.getJSON(ctx, signaturesPath(digest), &sigs); err != nil {
		return nil, err
	}
	return sigs, nil
}

func (s *Store) PutNontransCouplets(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, couplets []event.NontransReceipt) error {
	existing, err := s.GetNontransCouplets(ctx, digest)
	if err != nil {
		return err
	}
	merged := mergeCouplets(existing, couplets)
	return withTx(tx, func(batch *Tx) error {
		batch.stage(coupletsPath(digest), merged)
		return nil
	}, func() error {
		if _, err := s.putJSON(ctx, coupletsPath(digest), merged); err != nil {
			return kelerr.Wrap(err, "put couplets blob", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetNontransCouplets(ctx context.Context, digest event.EventDigest) ([]event.NontransReceipt, error) {
	var couplets []event.NontransReceipt
	if _, err := s.getJSON(ctx, coupletsPath(digest), &couplets); err != nil {
		return nil, err
	}
	return couplets, nil
}

func (s *Store) RemoveNontransCouplet(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, signer event.PublicKey) error {
	existing, err := s.GetNontransCouplets(ctx, digest)
	if err != nil {
		return err
	}
	out := existing[:0]
	for _, c := range existing {
		if c.SignerKey != signer {
			out = append(out, c)
		}
	}
	if _, err := s.putJSON(ctx, coupletsPath(digest), out); err != nil {
		return kelerr.Wrap(err, "remove couplet", kelerr.ErrStorage)
	}
	return nil
}

func (s *Store) PutTransReceipts(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, receipts []event.TransferableReceipt) error {
	existing, err := s.GetTransReceipts(ctx, digest)
	if err != nil {
		return err
	}
	merged := append(existing, receipts...)
	return withTx(tx, func(batch *Tx) error {
		batch.stage(transReceiptsPath(digest), merged)
		return nil
	}, func() error {
		if _, err := s.putJSON(ctx, transReceiptsPath(digest), merged); err != nil {
			return kelerr.Wrap(err, "put trans receipts blob", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetTransReceipts(ctx context.Context, digest event.EventDigest) ([]event.TransferableReceipt, error) {
	var receipts []event.TransferableReceipt
	if _, err := s.getJSON(ctx, transReceiptsPath(digest), &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// --- SequencedIndex ---

func (s *Store) Insert(ctx context.Context, tx kelstore.Tx, id event.IdentifierPrefix, sn uint64, digest event.EventDigest) error {
	existing, ok, err := s.Get(ctx, id, sn)
	if err != nil {
		return err
	}
	if ok {
		if existing == digest {
			return nil
		}
		return kelerr.Wrap(fmt.Errorf("identifier %s sequence %d already holds digest %s, got %s", id, sn, existing, digest), "sequenced index insert", kelerr.ErrDuplicitous)
	}
	return withTx(tx, func(batch *Tx) error {
		batch.stage(indexPath(id, sn), digest, azblob.WithEtagNoneMatch("*"))
		return nil
	}, func() error {
		_, err := s.putJSON(ctx, indexPath(id, sn), digest, azblob.WithEtagNoneMatch("*"))
		if err != nil && !isAlreadyExists(err) {
			return kelerr.Wrap(err, "put index blob", kelerr.ErrStorage)
		}
		s.infof("kelstore/azureblob: indexed %s/%d -> %s", id, sn, digest)
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id event.IdentifierPrefix, sn uint64) (event.EventDigest, bool, error) {
	var digest event.EventDigest
	ok, err := s.getJSON(ctx, indexPath(id, sn), &digest)
	return digest, ok, err
}

func (s *Store) GetGreaterThan(ctx context.Context, id event.IdentifierPrefix, sn uint64) ([]event.EventDigest, error) {
	lr, err := s.Blobs.List(ctx, azblob.WithListPrefix(indexPrefix(id)))
	if err != nil {
		return nil, kelerr.Wrap(err, "list sequenced index", kelerr.ErrStorage)
	}
	type seqDigest struct {
		sn     uint64
		digest event.EventDigest
	}
	var found []seqDigest
	for _, item := range lr.Items {
		itemSn, err := sequenceFromBlobName(blobItemName(item))
		if err != nil {
			return nil, err
		}
		if itemSn <= sn {
			continue
		}
		digest, ok, err := s.Get(ctx, id, itemSn)
		if err != nil {
			return nil, err
		}
		if ok {
			found = append(found, seqDigest{itemSn, digest})
		}
	}
	sortBySeq(found, func(i, j int) bool { return found[i].sn < found[j].sn })
	out := make([]event.EventDigest, len(found))
	for i, fd := range found {
		out[i] = fd.digest
	}
	return out, nil
}

func (s *Store) Latest(ctx context.Context, id event.IdentifierPrefix) (uint64, bool, error) {
	lr, err := s.Blobs.List(ctx, azblob.WithListPrefix(indexPrefix(id)))
	if err != nil {
		return 0, false, kelerr.Wrap(err, "list sequenced index", kelerr.ErrStorage)
	}
	var max uint64
	found := false
	for _, item := range lr.Items {
		sn, err := sequenceFromBlobName(blobItemName(item))
		if err != nil {
			return 0, false, err
		}
		if !found || sn > max {
			max, found = sn, true
		}
	}
	return max, found, nil
}

// --- KeyStateStore ---

func (s *Store) PutState(ctx context.Context, tx kelstore.Tx, id event.IdentifierPrefix, state event.IdentifierState) error {
	return withTx(tx, func(batch *Tx) error {
		batch.stage(keyStatePath(id), state)
		return nil
	}, func() error {
		if _, err := s.putJSON(ctx, keyStatePath(id), state); err != nil {
			return kelerr.Wrap(err, "put key state blob", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetState(ctx context.Context, id event.IdentifierPrefix) (event.IdentifierState, bool, error) {
	var state event.IdentifierState
	ok, err := s.getJSON(ctx, keyStatePath(id), &state)
	return state, ok, err
}

// --- ReceiptStore ---

func (s *Store) AcceptNontransReceipts(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, receipts []event.NontransReceipt) error {
	existing, err := s.GetAcceptedNontransReceipts(ctx, digest)
	if err != nil {
		return err
	}
	merged := append(existing, receipts...)
	return withTx(tx, func(batch *Tx) error {
		batch.stage(acceptedNontransPath(digest), merged)
		return nil
	}, func() error {
		if _, err := s.putJSON(ctx, acceptedNontransPath(digest), merged); err != nil {
			return kelerr.Wrap(err, "put accepted nontrans receipts", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetAcceptedNontransReceipts(ctx context.Context, digest event.EventDigest) ([]event.NontransReceipt, error) {
	var receipts []event.NontransReceipt
	if _, err := s.getJSON(ctx, acceptedNontransPath(digest), &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

func (s *Store) AcceptTransReceipts(ctx context.Context, tx kelstore.Tx, digest event.EventDigest, receipts []event.TransferableReceipt) error {
	existing, err := s.GetAcceptedTransReceipts(ctx, digest)
	if err != nil {
		return err
	}
	merged := append(existing, receipts...)
	return withTx(tx, func(batch *Tx) error {
		batch.stage(acceptedTransPath(digest), merged)
		return nil
	}, func() error {
		if _, err := s.putJSON(ctx, acceptedTransPath(digest), merged); err != nil {
			return kelerr.Wrap(err, "put accepted trans receipts", kelerr.ErrStorage)
		}
		return nil
	})
}

func (s *Store) GetAcceptedTransReceipts(ctx context.Context, digest event.EventDigest) ([]event.TransferableReceipt, error) {
	var receipts []event.TransferableReceipt
	if _, err := s.getJSON(ctx, acceptedTransPath(digest), &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// --- EscrowFactory ---

func (s *Store) Escrow(name string) kelstore.EscrowTable {
	return &escrowTable{store: s, table: name}
}

// blobItemName dereferences the azblob list response's *string Name field,
// matching the pointer-typed BlobItemInternal.Name the real SDK returns.
func blobItemName(item *azStorageBlob.BlobItemInternal) string {
	if item == nil || item.Name == nil {
		return ""
	}
	return *item.Name
}

func sortBySeq[T any](s []T, less func(i, j int) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
