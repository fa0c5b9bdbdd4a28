// Package bloomfilter provides a digest-membership accelerator: a 4-way
// blocked Bloom filter adapted from the teacher's bloom package format,
// repurposed here as an advisory pre-check in front of impl_inmem's digest
// map rather than a leaf-membership proof over a Merkle log. A "definitely
// absent" answer lets a LogStore.Get short-circuit before the map lookup;
// every other answer still falls through to the authoritative map, so
// the false-positive rate never affects correctness.
package bloomfilter

import (
	"crypto/sha256"
	"errors"
)

const (
	// valueBytes is the fixed element width fed to the hash — every element,
	// regardless of its original length, is first reduced to this width by
	// SHA-256.
	valueBytes = 32

	// filters is the number of parallel bitsets, matching the teacher
	// format's 4-way blocking.
	filters uint8 = 4

	bloomDomain = 0xB0
)

var (
	ErrBadBitsPerElement = errors.New("bloomfilter: bitsPerElement must be > 0")
	ErrBadK              = errors.New("bloomfilter: k must be > 0")
)

// Filter is a single 4-way blocked Bloom filter over an open-ended set of
// digests. It is not safe for concurrent use without external
// synchronization — impl_inmem guards each Filter with the same RWMutex
// that guards the table it accelerates.
type Filter struct {
	k        uint8
	mBits    uint32
	inserted uint32
	bitsets  [filters][]byte
}

// New creates a Filter sized for expectedN elements at k hash rounds per
// filter. k=4 is a reasonable default matching the teacher format's typical
// configuration; callers needing a different false-positive/size tradeoff
// may pass a different k.
func New(expectedN uint64, k uint8) (*Filter, error) {
	if k == 0 {
		return nil, ErrBadK
	}
	if expectedN == 0 {
		expectedN = 1
	}
	const bitsPerElement = 10 // ~1% false-positive rate at k=4
	mBits64 := bitsPerElement * expectedN
	if mBits64 > uint64(^uint32(0)) {
		mBits64 = uint64(^uint32(0))
	}
	mBits := uint32(mBits64)
	if mBits == 0 {
		mBits = 8
	}
	bitsetBytes := (mBits + 7) / 8

	f := &Filter{k: k, mBits: mBits}
	for i := range f.bitsets {
		f.bitsets[i] = make([]byte, bitsetBytes)
	}
	return f, nil
}

// Add records elem as present in filterIdx (0..3). Which filter index a
// caller uses is up to them — impl_inmem uses one filter per identifier
// modulo 4, spreading identifiers across the four bitsets.
func (f *Filter) Add(filterIdx uint8, elem []byte) {
	filterIdx %= filters
	h1, h2 := hashPair(filterIdx, elem)
	setBits(f.bitsets[filterIdx], uint64(f.mBits), f.k, h1, h2)
	f.inserted++
}

// MaybeContains reports whether elem might be present in filterIdx. false
// means definitely absent; true means maybe present (check the
// authoritative store).
func (f *Filter) MaybeContains(filterIdx uint8, elem []byte) bool {
	filterIdx %= filters
	h1, h2 := hashPair(filterIdx, elem)
	return testBits(f.bitsets[filterIdx], uint64(f.mBits), f.k, h1, h2)
}

func hashPair(filterIdx uint8, elem []byte) (h1, h2 uint64) {
	digest := sha256.Sum256(elem)
	var buf [1 + 1 + valueBytes]byte
	buf[0] = bloomDomain
	buf[1] = filterIdx
	copy(buf[2:], digest[:])
	sum := sha256.Sum256(buf[:])
	h1 = readU64BE(sum[0:8])
	h2 = readU64BE(sum[8:16])
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}

func setBits(bitset []byte, mBits uint64, k uint8, h1, h2 uint64) {
	for i := uint64(0); i < uint64(k); i++ {
		j := (h1 + i*h2) % mBits
		bitset[j>>3] |= 1 << (j & 7)
	}
}

func testBits(bitset []byte, mBits uint64, k uint8, h1, h2 uint64) bool {
	for i := uint64(0); i < uint64(k); i++ {
		j := (h1 + i*h2) % mBits
		if bitset[j>>3]&(1<<(j&7)) == 0 {
			return false
		}
	}
	return true
}

func readU64BE(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}
