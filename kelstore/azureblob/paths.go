package azureblob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/seriouscoderone/keriox/event"
)

// Blob layout: one logical table per path prefix, JSON-encoded records. The
// sequenced index and escrow tables encode the sequence number into the blob
// name itself so a container listing can recover ordering without reading
// blob bodies.
const (
	prefixEvent           = "kel/events/"
	prefixSignatures      = "kel/signatures/"
	prefixCouplets        = "kel/couplets/"
	prefixTransReceipts   = "kel/transreceipts/"
	prefixAcceptedNontran = "kel/accepted-nontrans/"
	prefixAcceptedTrans   = "kel/accepted-trans/"
	prefixIndex           = "kel/index/"
	prefixKeyState        = "kel/keystate/"
	prefixEscrow          = "escrow/"
)

func eventPath(digest event.EventDigest) string        { return prefixEvent + string(digest) + ".json" }
func signaturesPath(digest event.EventDigest) string    { return prefixSignatures + string(digest) + ".json" }
func coupletsPath(digest event.EventDigest) string      { return prefixCouplets + string(digest) + ".json" }
func transReceiptsPath(digest event.EventDigest) string { return prefixTransReceipts + string(digest) + ".json" }
func acceptedNontransPath(digest event.EventDigest) string {
	return prefixAcceptedNontran + string(digest) + ".json"
}
func acceptedTransPath(digest event.EventDigest) string {
	return prefixAcceptedTrans + string(digest) + ".json"
}

func indexPath(id event.IdentifierPrefix, sn uint64) string {
	return fmt.Sprintf("%s%s/%020d.json", prefixIndex, id, sn)
}

func indexPrefix(id event.IdentifierPrefix) string {
	return fmt.Sprintf("%s%s/", prefixIndex, id)
}

func keyStatePath(id event.IdentifierPrefix) string {
	return prefixKeyState + string(id) + ".json"
}

// escrowValuePath names the blob for one distinct value escrowed at
// (table, key, sn). The value's own content hash is the final path segment
// so that two differently-valued candidates colliding on the same (key, sn)
// — duplicitous digests, or racing out-of-order events — land at distinct
// blobs instead of one overwriting the other; an identical value re-put at
// the same (key, sn) hashes to the same path and is a harmless no-op write.
func escrowValuePath(table, key string, sn uint64, value []byte) string {
	return fmt.Sprintf("%s%s.json", escrowSequencePrefix(table, key, sn), escrowValueHash(value))
}

func escrowValueHash(value []byte) string {
	sum := sha256.Sum256(value)
	return hex.EncodeToString(sum[:])
}

func escrowSequencePrefix(table, key string, sn uint64) string {
	return fmt.Sprintf("%s%020d/", escrowKeyPrefix(table, key), sn)
}

func escrowKeyPrefix(table, key string) string {
	return fmt.Sprintf("%s%s/%s/", prefixEscrow, table, key)
}

func escrowTablePrefix(table string) string {
	return fmt.Sprintf("%s%s/", prefixEscrow, table)
}

// sequenceFromBlobName extracts the zero-padded %020d component that
// indexPath appends as the final path segment.
func sequenceFromBlobName(name string) (uint64, error) {
	base := name
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	base = strings.TrimSuffix(base, ".json")
	sn, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("azureblob: blob name %q does not encode a sequence number: %w", name, err)
	}
	return sn, nil
}

// escrowSequenceFromBlobName extracts the zero-padded sequence segment from
// an escrow/{table}/{key}/{sn}/{valuehash}.json path — one segment higher
// than sequenceFromBlobName's target, since the final segment here is a
// value's content hash rather than the sequence itself (a (key, sn) pair
// can hold more than one distinctly-hashed value).
func escrowSequenceFromBlobName(name string) (uint64, error) {
	trimmed := strings.TrimSuffix(name, ".json")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return 0, fmt.Errorf("azureblob: blob name %q does not encode an escrow sequence number", name)
	}
	rest := trimmed[:i]
	snSeg := rest
	if j := strings.LastIndex(rest, "/"); j >= 0 {
		snSeg = rest[j+1:]
	}
	sn, err := strconv.ParseUint(snSeg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("azureblob: blob name %q does not encode a sequence number: %w", name, err)
	}
	return sn, nil
}

// escrowKeyFromBlobName recovers the key of an
// escrow/{table}/{key}/{sn}/{valuehash}.json path. The key may itself
// contain "/" (tel.CredentialKey does), so it is everything between the
// table prefix and the last two segments.
func escrowKeyFromBlobName(table, name string) (string, bool) {
	prefix := escrowTablePrefix(table)
	if !strings.HasPrefix(name, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(name, prefix)
	i := strings.LastIndex(rest, "/")
	if i < 0 {
		return "", false
	}
	rest = rest[:i]
	j := strings.LastIndex(rest, "/")
	if j <= 0 {
		return "", false
	}
	return rest[:j], true
}
